// Package concurrent bounds and fans out work for the digest pipeline.
package concurrent

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ErrBusy is returned by TryDo when every slot is taken.
var ErrBusy = errors.New("worker pool busy")

// WorkerPool admits at most size concurrent runs and rejects the rest instead of queuing them.
// A pool of size one keeps scheduled and manual digest runs from overlapping.
type WorkerPool struct {
	slots chan struct{}
}

// NewWorkerPool creates a pool with size slots; non-positive sizes mean 1.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{slots: make(chan struct{}, size)}
}

// TryDo runs fn only if a slot is free right now.
func (wp *WorkerPool) TryDo(fn func() error) error {
	select {
	case wp.slots <- struct{}{}:
	default:
		return ErrBusy
	}
	defer func() { <-wp.slots }()
	return fn()
}

// Busy reports whether every slot is taken.
func (wp *WorkerPool) Busy() bool {
	return len(wp.slots) == cap(wp.slots)
}

// ParallelMap applies fn to every item with at most limit calls in flight (0 means unbounded)
// and returns the results in input order. The first failure cancels the context handed to the
// remaining calls and is returned with no results.
func ParallelMap[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), limit int) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
