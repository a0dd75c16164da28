package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkaiv/arkaiv/pkg/model"
)

type fakeGenerator struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context) (*model.DailyDigest, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.DailyDigest{TotalTools: 1}, nil
}

func TestNewRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	_, err := New(&fakeGenerator{}, Config{Schedule: "every day"})
	assert.Error(t, err)

	_, err = New(nil, Config{})
	assert.Error(t, err)
}

func TestNextUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*3600)
	s, err := New(&fakeGenerator{}, Config{Schedule: "30 6 * * *", Location: loc})
	require.NoError(t, err)
	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	next := s.Next().In(loc)
	assert.Equal(t, 6, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestTrigger(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	s, err := New(gen, Config{})
	require.NoError(t, err)

	d, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.TotalTools)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestTriggerPropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s, err := New(&fakeGenerator{err: boom}, Config{})
	require.NoError(t, err)

	_, err = s.Trigger(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestTriggerIsNonReentrant(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, err := New(gen, Config{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background())
		done <- err
	}()
	<-gen.started
	assert.True(t, s.Running())

	_, err = s.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrRunning)

	close(gen.block)
	require.NoError(t, <-done)
	assert.False(t, s.Running())
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestTriggerAppliesRunTimeout(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{block: make(chan struct{})}
	s, err := New(gen, Config{RunTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = s.Trigger(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, s.Running())
}

func TestRunOnStartAndStopCancels(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, err := New(gen, Config{RunOnStart: true})
	require.NoError(t, err)

	s.Start()
	select {
	case <-gen.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run on start never fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
