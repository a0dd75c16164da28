// Package runtime wires configuration into a running digest service: store, summarizer
// gateway, compiler, scheduler and HTTP router.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arkaiv/arkaiv/pkg/api"
	"github.com/arkaiv/arkaiv/pkg/cache"
	"github.com/arkaiv/arkaiv/pkg/config"
	"github.com/arkaiv/arkaiv/pkg/digest"
	"github.com/arkaiv/arkaiv/pkg/ingest"
	"github.com/arkaiv/arkaiv/pkg/logger"
	"github.com/arkaiv/arkaiv/pkg/metrics"
	"github.com/arkaiv/arkaiv/pkg/model"
	"github.com/arkaiv/arkaiv/pkg/models"
	"github.com/arkaiv/arkaiv/pkg/scheduler"
	"github.com/arkaiv/arkaiv/pkg/store"
	"github.com/arkaiv/arkaiv/pkg/summarize"
)

// StoreFactory opens the backing store.
type StoreFactory func(ctx context.Context, cfg config.MongoConfig) (store.Store, error)

// Option configures runtime construction.
type Option func(*options)

type options struct {
	storeFactory StoreFactory
	logger       logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	primary      models.Provider
	secondary    models.Provider
	overrideLLM  bool
}

// WithStoreFactory replaces the default Mongo/in-memory store selection.
func WithStoreFactory(f StoreFactory) Option {
	return func(o *options) {
		if f != nil {
			o.storeFactory = f
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock fixes the time source used by the compiler and retention.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithProviders bypasses provider construction from config. Nil for both selects mock mode.
func WithProviders(primary, secondary models.Provider) Option {
	return func(o *options) {
		o.primary, o.secondary = primary, secondary
		o.overrideLLM = true
	}
}

// DefaultStoreFactory connects to MongoDB and ensures indexes, or returns an in-memory
// store when no URI is configured.
func DefaultStoreFactory(ctx context.Context, cfg config.MongoConfig) (store.Store, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return store.NewMemoryStore(), nil
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	ms, err := store.NewMongoStore(ctx, cfg.URI, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := ms.CreateSchema(ctx); err != nil {
		_ = ms.Close()
		return nil, err
	}
	return ms, nil
}

// Runtime owns every long-lived component of the service.
type Runtime struct {
	cfg       *config.Config
	loc       *time.Location
	log       logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	store     store.Store
	gateway   *summarize.Gateway
	compiler  *digest.Compiler
	scheduler *scheduler.Scheduler
	closers   []func() error
}

// New validates cfg and builds the runtime.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("runtime requires a config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := &options{storeFactory: DefaultStoreFactory, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = logger.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rt := &Runtime{cfg: cfg, loc: loc, log: o.logger, metrics: o.metrics, now: o.now}

	rt.store, err = o.storeFactory(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.closers = append(rt.closers, rt.store.Close)

	primary, secondary := o.primary, o.secondary
	if !o.overrideLLM {
		primary, secondary, err = rt.buildProviders(ctx)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	sc := cfg.Summarizer
	var summaries *cache.SummaryCache
	if sc.Cache.Size > 0 {
		summaries = cache.NewSummaryCache(sc.Cache.Size, sc.Cache.TTL)
	}
	rt.gateway = summarize.New(summarize.Config{
		Primary:            primary,
		Secondary:          secondary,
		Attempts:           sc.Retry.Attempts,
		Factor:             sc.Retry.Factor,
		PrimaryBaseDelay:   sc.Retry.PrimaryBaseDelay,
		SecondaryBaseDelay: sc.Retry.SecondaryBaseDelay,
		RateLimitWait:      sc.Retry.RateLimitWait,
		MaxRateLimitWait:   sc.Retry.MaxRateLimitWait,
		CallTimeout:        sc.Timeout,
		Cache:              summaries,
		Logger:             o.logger.With(logger.String("component", "summarizer")),
		Metrics:            o.metrics,
	})
	if rt.gateway.MockMode() {
		rt.log.Warn("No summarization provider configured, running in mock mode")
	}

	rt.compiler, err = digest.NewCompiler(digest.Config{
		Tools:      rt.store,
		Digests:    rt.store,
		Summarizer: rt.gateway,
		Location:   loc,
		Now:        o.now,
		Logger:     o.logger.With(logger.String("component", "digest")),
		Metrics:    o.metrics,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.scheduler, err = scheduler.New(rt.compiler, scheduler.Config{
		Schedule:   cfg.Digest.Schedule,
		Location:   loc,
		RunOnStart: cfg.Digest.RunOnStart,
		RunTimeout: cfg.Digest.RunTimeout,
		Logger:     o.logger.With(logger.String("component", "scheduler")),
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// buildProviders creates the abstractive provider when a Hugging Face key is set and the
// chat provider when its config is usable.
func (rt *Runtime) buildProviders(ctx context.Context) (models.Provider, models.Provider, error) {
	sc := rt.cfg.Summarizer
	var primary, secondary models.Provider
	if strings.TrimSpace(sc.HuggingFace.APIKey) != "" {
		primary = models.NewHuggingFaceSummarizer(models.HuggingFaceConfig{
			APIKey:  sc.HuggingFace.APIKey,
			Model:   sc.HuggingFace.Model,
			BaseURL: sc.HuggingFace.BaseURL,
			Timeout: sc.Timeout,
		})
	}
	chat := models.ChatConfig{
		Provider:    sc.Chat.Provider,
		Model:       sc.Chat.Model,
		APIKey:      sc.Chat.APIKey,
		BaseURL:     sc.Chat.BaseURL,
		MaxTokens:   sc.Chat.MaxTokens,
		Temperature: sc.Chat.Temperature,
		Timeout:     sc.Timeout,
	}
	if chat.Enabled() {
		p, err := models.NewChatProvider(ctx, chat)
		if err != nil {
			return nil, nil, fmt.Errorf("chat provider: %w", err)
		}
		if c, ok := p.(interface{ Close() error }); ok {
			rt.closers = append(rt.closers, c.Close)
		}
		secondary = p
	}
	names := []string{}
	for _, p := range []models.Provider{primary, secondary} {
		if p != nil {
			names = append(names, p.Name())
		}
	}
	rt.log.Info("Summarization providers configured", logger.Strings("providers", names))
	return primary, secondary, nil
}

func (rt *Runtime) Store() store.Store              { return rt.store }
func (rt *Runtime) Gateway() *summarize.Gateway     { return rt.gateway }
func (rt *Runtime) Compiler() *digest.Compiler      { return rt.compiler }
func (rt *Runtime) Scheduler() *scheduler.Scheduler { return rt.scheduler }
func (rt *Runtime) Location() *time.Location        { return rt.loc }
func (rt *Runtime) Metrics() *metrics.Metrics       { return rt.metrics }
func (rt *Runtime) Config() *config.Config          { return rt.cfg }

// Router builds the HTTP API over the runtime's store; manual generation goes through the scheduler.
func (rt *Runtime) Router() *gin.Engine {
	return api.NewRouter(api.Config{
		Tools:    rt.store,
		Digests:  rt.store,
		Trigger:  rt.scheduler,
		Location: rt.loc,
		Logger:   rt.log.With(logger.String("component", "api")),
		Metrics:  rt.metrics,
	})
}

// Importer loads tool records into the runtime's catalog.
func (rt *Runtime) Importer() *ingest.Importer {
	return ingest.NewImporter(rt.store, rt.log.With(logger.String("component", "ingest")))
}

// Generate runs the compiler once, serialized with scheduled runs.
func (rt *Runtime) Generate(ctx context.Context) (*model.DailyDigest, error) {
	return rt.scheduler.Trigger(ctx)
}

// Prune deletes digests dated more than keepDays days before today.
func (rt *Runtime) Prune(ctx context.Context, keepDays int) (int64, error) {
	if keepDays < 0 {
		return 0, fmt.Errorf("keep days must not be negative: %d", keepDays)
	}
	cutoff := model.StartOfDay(rt.now(), rt.loc).AddDate(0, 0, -keepDays)
	n, err := rt.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune digests: %w", err)
	}
	rt.log.Info("Pruned digests", logger.Int64("deleted", n), logger.Time("cutoff", cutoff))
	return n, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
