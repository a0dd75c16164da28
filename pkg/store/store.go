// Package store persists tool records and daily digests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkaiv/arkaiv/pkg/model"
)

var (
	// ErrRepository matches every failure coming from the persistence layer.
	ErrRepository = errors.New("repository error")
	// ErrNotFound is returned when a requested digest does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRecord is returned when a tool record misses its url or source.
	ErrInvalidRecord = errors.New("invalid tool record")
)

const (
	// DefaultSearchLimit matches the page size of the search endpoint.
	DefaultSearchLimit = 12
	// DefaultListLimit caps tool listings.
	DefaultListLimit = 100
)

// ToolRepository is the read path the digest compiler needs.
type ToolRepository interface {
	CountAll(ctx context.Context) (int64, error)
	CountCreatedBetween(ctx context.Context, start, end time.Time) (int64, error)
	TopBySource(ctx context.Context, source model.Source, metric model.Metric, limit int) ([]model.ToolRecord, error)
}

// ToolCatalog is the full tool surface used by the API and the import command.
type ToolCatalog interface {
	ToolRepository
	UpsertTool(ctx context.Context, rec model.ToolRecord) (*model.ToolRecord, error)
	ListTools(ctx context.Context, source model.Source, limit int) ([]model.ToolRecord, error)
	Search(ctx context.Context, query string, limit int) ([]model.ToolRecord, error)
}

// DigestRepository stores one digest per calendar day.
type DigestRepository interface {
	UpsertDaily(ctx context.Context, digest model.DailyDigest) (*model.DailyDigest, error)
	Latest(ctx context.Context) (*model.DailyDigest, error)
	ByDate(ctx context.Context, day time.Time) (*model.DailyDigest, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is a backend serving both collections.
type Store interface {
	ToolCatalog
	DigestRepository
	Close() error
}

// RepositoryError wraps a driver failure with the operation that produced it.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRepository) match any RepositoryError.
func (e *RepositoryError) Is(target error) bool { return target == ErrRepository }

func repoErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{Op: op, Err: err}
}

func validateTool(rec model.ToolRecord) error {
	if rec.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRecord)
	}
	if !rec.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRecord, rec.Source)
	}
	return nil
}
