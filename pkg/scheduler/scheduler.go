// Package scheduler runs the digest compiler on a daily cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/arkaiv/arkaiv/pkg/concurrent"
	"github.com/arkaiv/arkaiv/pkg/logger"
	"github.com/arkaiv/arkaiv/pkg/model"
)

const (
	// DefaultSchedule fires at 06:00 every day.
	DefaultSchedule = "0 6 * * *"
	// DefaultRunTimeout bounds one run, scheduled or manual.
	DefaultRunTimeout = 10 * time.Minute
)

// ErrRunning is returned by Trigger while another run is in progress.
var ErrRunning = errors.New("digest generation already running")

// Generator produces today's digest.
type Generator interface {
	Generate(ctx context.Context) (*model.DailyDigest, error)
}

type Config struct {
	Schedule   string
	Location   *time.Location
	RunOnStart bool
	RunTimeout time.Duration
	Logger     logger.Logger
}

// Scheduler owns the cron loop. Scheduled and manual runs share a single-slot pool,
// so at most one digest run is in flight.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	gen     Generator
	pool    *concurrent.WorkerPool
	log     logger.Logger
	timeout time.Duration
	onStart bool

	wg     sync.WaitGroup
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func New(gen Generator, cfg Config) (*Scheduler, error) {
	if gen == nil {
		return nil, errors.New("scheduler: generator is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	cl := cronLogger{log: cfg.Logger}
	s := &Scheduler{
		gen:     gen,
		pool:    concurrent.NewWorkerPool(1),
		log:     cfg.Logger,
		timeout: cfg.RunTimeout,
		onStart: cfg.RunOnStart,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := s.cron.AddFunc(cfg.Schedule, s.tick)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", cfg.Schedule, err)
	}
	s.entry = id
	s.log.Info("Digest scheduled",
		logger.String("schedule", cfg.Schedule),
		logger.String("timezone", cfg.Location.String()),
	)
	return s, nil
}

// Start begins ticking and, if configured, fires one run immediately in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	if s.onStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick()
		}()
	}
}

// Stop halts the schedule, cancels an in-flight run and waits for it until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled fire time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Running reports whether a digest run is in progress.
func (s *Scheduler) Running() bool {
	return s.pool.Busy()
}

// Trigger runs the generator now unless a run is already in progress.
// The run is bounded by RunTimeout whatever deadline ctx carries.
func (s *Scheduler) Trigger(ctx context.Context) (*model.DailyDigest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out *model.DailyDigest
	err := s.pool.TryDo(func() error {
		d, err := s.gen.Generate(ctx)
		out = d
		return err
	})
	if errors.Is(err, concurrent.ErrBusy) {
		return nil, ErrRunning
	}
	return out, err
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	_, err := s.Trigger(parent)
	switch {
	case errors.Is(err, ErrRunning):
		s.log.Warn("Skipping scheduled digest run, previous run still in progress")
	case err != nil:
		// The next tick retries the whole run.
		s.log.Error("Scheduled digest run failed", logger.Error(err))
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
