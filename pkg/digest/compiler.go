// Package digest compiles the daily digest: it ranks tools per source, summarizes
// the resulting brief, renders the markdown report and upserts one digest per day.
package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arkaiv/arkaiv/pkg/concurrent"
	"github.com/arkaiv/arkaiv/pkg/logger"
	"github.com/arkaiv/arkaiv/pkg/metrics"
	"github.com/arkaiv/arkaiv/pkg/model"
	"github.com/arkaiv/arkaiv/pkg/store"
)

// Summarizer is satisfied by summarize.Gateway.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Config holds the compiler collaborators.
type Config struct {
	Tools      store.ToolRepository
	Digests    store.DigestRepository
	Summarizer Summarizer
	// Location fixes the calendar used to compute "today". Nil means UTC.
	Location *time.Location
	Now      func() time.Time
	Logger   logger.Logger
	Metrics  *metrics.Metrics
}

type Compiler struct {
	tools      store.ToolRepository
	digests    store.DigestRepository
	summarizer Summarizer
	loc        *time.Location
	now        func() time.Time
	log        logger.Logger
	metrics    *metrics.Metrics
}

func NewCompiler(cfg Config) (*Compiler, error) {
	switch {
	case cfg.Tools == nil:
		return nil, errors.New("digest: tool repository is required")
	case cfg.Digests == nil:
		return nil, errors.New("digest: digest repository is required")
	case cfg.Summarizer == nil:
		return nil, errors.New("digest: summarizer is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Compiler{
		tools:      cfg.Tools,
		digests:    cfg.Digests,
		summarizer: cfg.Summarizer,
		loc:        cfg.Location,
		now:        cfg.Now,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Location is the calendar the compiler computes days in.
func (c *Compiler) Location() *time.Location { return c.loc }

// Generate builds and persists today's digest. A run is all-or-nothing: any repository
// failure aborts before the final upsert, so no partial digest is ever written.
func (c *Compiler) Generate(ctx context.Context) (*model.DailyDigest, error) {
	start := c.now()
	log := c.log.With(logger.String("run_id", uuid.NewString()))

	d, err := c.generate(ctx, log, start)
	elapsed := c.now().Sub(start)
	if err != nil {
		c.metrics.ObserveDigestRun(metrics.OutcomeError, elapsed, 0, start)
		log.Error("Digest generation failed", logger.Error(err), logger.Duration("elapsed", elapsed))
		return nil, err
	}
	c.metrics.ObserveDigestRun(metrics.OutcomeSuccess, elapsed, d.TotalTools, start)
	log.Info("Digest generated",
		logger.String("digest_id", d.ID.Hex()),
		logger.Time("date", d.Date),
		logger.Int64("total_tools", d.TotalTools),
		logger.Int64("new_tools", d.NewTools),
		logger.Int("summary_len", len(d.Summary)),
		logger.Int("document_len", len(d.FormattedDocument)),
		logger.Duration("elapsed", elapsed),
	)
	return d, nil
}

func (c *Compiler) generate(ctx context.Context, log logger.Logger, now time.Time) (*model.DailyDigest, error) {
	today := model.StartOfDay(now, c.loc)
	yesterday := today.AddDate(0, 0, -1)
	log.Info("Generating digest", logger.Time("date", today))

	total, err := c.tools.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tools: %w", err)
	}
	fresh, err := c.tools.CountCreatedBetween(ctx, yesterday, today)
	if err != nil {
		return nil, fmt.Errorf("count new tools: %w", err)
	}

	top, err := c.topEntries(ctx)
	if err != nil {
		return nil, err
	}
	for _, src := range model.Sources() {
		log.Debug("Ranked source", logger.String("source", string(src)), logger.Int("entries", len(top.For(src))))
	}

	summary, err := c.summarizer.Summarize(ctx, BuildBrief(total, fresh, top))
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	d := model.DailyDigest{
		Date:       today,
		TotalTools: total,
		NewTools:   fresh,
		TopEntries: top,
		Summary:    summary,
	}
	d.FormattedDocument, err = RenderMarkdown(d, c.loc)
	if err != nil {
		return nil, fmt.Errorf("render digest: %w", err)
	}

	saved, err := c.digests.UpsertDaily(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("save digest: %w", err)
	}
	return saved, nil
}

// topEntries ranks every source concurrently; results stay labelled by source order.
func (c *Compiler) topEntries(ctx context.Context) (model.TopEntries, error) {
	sources := model.Sources()
	ranked, err := concurrent.ParallelMap(ctx, sources, func(ctx context.Context, src model.Source) ([]model.DigestEntry, error) {
		recs, err := c.tools.TopBySource(ctx, src, src.PrimaryMetric(), model.MaxTopEntries)
		if err != nil {
			return nil, fmt.Errorf("top %s: %w", src, err)
		}
		if len(recs) > model.MaxTopEntries {
			recs = recs[:model.MaxTopEntries]
		}
		entries := make([]model.DigestEntry, 0, len(recs))
		for _, rec := range recs {
			entries = append(entries, ToEntry(rec, src))
		}
		return entries, nil
	}, len(sources))
	if err != nil {
		return model.TopEntries{}, err
	}

	var top model.TopEntries
	for i, src := range sources {
		top.Set(src, ranked[i])
	}
	return top, nil
}
