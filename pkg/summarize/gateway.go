// Package summarize turns a digest brief into a short synopsis, cascading from the
// abstractive provider to the chat provider to a local template that cannot fail.
package summarize

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/arkaiv/arkaiv/pkg/cache"
	"github.com/arkaiv/arkaiv/pkg/logger"
	"github.com/arkaiv/arkaiv/pkg/metrics"
	"github.com/arkaiv/arkaiv/pkg/models"
)

// ErrInvalidInput is returned for empty or whitespace-only text.
var ErrInvalidInput = errors.New("summarize: input text is empty")

// Path labels reported in logs and metrics besides provider names.
const (
	PathMock  = "mock"
	PathCache = "cache"
)

const (
	DefaultAttempts           = 3
	DefaultFactor             = 2.0
	DefaultPrimaryBaseDelay   = time.Second
	DefaultSecondaryBaseDelay = 2 * time.Second
	DefaultRateLimitWait      = 60 * time.Second
	DefaultMaxRateLimitWait   = 60 * time.Second
	DefaultCallTimeout        = models.DefaultTimeout
)

// Config wires providers and the retry policy. Nil providers are skipped; with both nil
// the gateway runs in mock mode.
type Config struct {
	Primary   models.Provider
	Secondary models.Provider

	Attempts           int
	Factor             float64
	PrimaryBaseDelay   time.Duration
	SecondaryBaseDelay time.Duration
	// RateLimitWait applies when a provider throttles without a Retry-After hint.
	RateLimitWait    time.Duration
	MaxRateLimitWait time.Duration
	CallTimeout      time.Duration

	MockText string
	Cache    *cache.SummaryCache
	Logger   logger.Logger
	Metrics  *metrics.Metrics
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *Config) setDefaults() {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Factor <= 0 {
		c.Factor = DefaultFactor
	}
	if c.PrimaryBaseDelay <= 0 {
		c.PrimaryBaseDelay = DefaultPrimaryBaseDelay
	}
	if c.SecondaryBaseDelay <= 0 {
		c.SecondaryBaseDelay = DefaultSecondaryBaseDelay
	}
	if c.RateLimitWait <= 0 {
		c.RateLimitWait = DefaultRateLimitWait
	}
	if c.MaxRateLimitWait <= 0 {
		c.MaxRateLimitWait = DefaultMaxRateLimitWait
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
}

type strategy struct {
	provider  models.Provider
	baseDelay time.Duration
}

// Gateway is safe for concurrent use.
type Gateway struct {
	cfg        Config
	strategies []strategy
	local      models.Provider
	mock       models.Provider
}

func New(cfg Config) *Gateway {
	cfg.setDefaults()
	g := &Gateway{
		cfg:   cfg,
		local: models.NewLocalSummarizer(),
	}
	if cfg.Primary != nil {
		g.strategies = append(g.strategies, strategy{provider: cfg.Primary, baseDelay: cfg.PrimaryBaseDelay})
	}
	if cfg.Secondary != nil {
		g.strategies = append(g.strategies, strategy{provider: cfg.Secondary, baseDelay: cfg.SecondaryBaseDelay})
	}
	if len(g.strategies) == 0 {
		g.mock = models.NewMockSummarizer(cfg.MockText)
	}
	return g
}

// MockMode reports whether no remote provider is configured.
func (g *Gateway) MockMode() bool { return g.mock != nil }

// Summarize returns a summary of text. The only error it returns is ErrInvalidInput;
// every provider failure degrades to the next path.
func (g *Gateway) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrInvalidInput
	}
	log := g.cfg.Logger

	if g.mock != nil {
		out, _ := g.mock.Summarize(ctx, text)
		g.cfg.Metrics.ObserveSummaryPath(PathMock)
		log.Info("Summarizer in mock mode, returning placeholder")
		return out, nil
	}

	if out, ok := g.cfg.Cache.Get(text); ok {
		g.cfg.Metrics.ObserveCacheHit()
		g.cfg.Metrics.ObserveSummaryPath(PathCache)
		log.Info("Summary served from cache")
		return out, nil
	}

	var failures []string
	for _, s := range g.strategies {
		out, err := g.attempt(ctx, s, text)
		if err == nil {
			g.cfg.Cache.Put(text, out)
			g.cfg.Metrics.ObserveSummaryPath(s.provider.Name())
			log.Info("Summary produced",
				logger.String("path", s.provider.Name()),
				logger.Strings("failed_paths", failures),
			)
			return out, nil
		}
		failures = append(failures, s.provider.Name())
		log.Warn("Summarization provider exhausted, falling back",
			logger.String("provider", s.provider.Name()),
			logger.Error(err),
		)
	}

	out, _ := g.local.Summarize(ctx, text)
	g.cfg.Metrics.ObserveSummaryPath(g.local.Name())
	log.Warn("Summary produced by local fallback",
		logger.String("path", g.local.Name()),
		logger.Strings("failed_paths", failures),
	)
	return out, nil
}

// attempt runs one provider under the retry policy. Between attempts it sleeps
// base*factor^attempt, or the throttle wait when the provider rate limited the call.
func (g *Gateway) attempt(ctx context.Context, s strategy, text string) (string, error) {
	name := s.provider.Name()
	log := g.cfg.Logger.With(logger.String("provider", name))
	var lastErr error
	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		out, err := s.provider.Summarize(callCtx, text)
		cancel()
		if err == nil {
			if strings.TrimSpace(out) != "" {
				g.cfg.Metrics.ObserveAttempt(name, metrics.OutcomeSuccess)
				return out, nil
			}
			err = models.ErrEmptyResponse
		}
		lastErr = err

		var rl *models.RateLimitError
		limited := errors.As(err, &rl)
		if limited {
			g.cfg.Metrics.ObserveAttempt(name, metrics.OutcomeRateLimited)
		} else {
			g.cfg.Metrics.ObserveAttempt(name, metrics.OutcomeError)
		}
		if attempt == g.cfg.Attempts {
			break
		}

		delay := g.backoff(s.baseDelay, attempt)
		if limited {
			delay = max(delay, g.rateLimitWait(rl))
		}
		log.Warn("Summarization attempt failed, retrying",
			logger.Int("attempt", attempt),
			logger.Bool("rate_limited", limited),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
		if err := g.cfg.Sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (g *Gateway) backoff(base time.Duration, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(g.cfg.Factor, float64(attempt)))
}

func (g *Gateway) rateLimitWait(rl *models.RateLimitError) time.Duration {
	wait := rl.RetryAfter
	if wait <= 0 {
		wait = g.cfg.RateLimitWait
	}
	return min(wait, g.cfg.MaxRateLimitWait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
