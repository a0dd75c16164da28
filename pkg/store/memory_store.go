package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/arkaiv/arkaiv/pkg/model"
)

// MemoryStore implements both repositories in process for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	tools   map[string]model.ToolRecord
	digests []model.DailyDigest
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tools: make(map[string]model.ToolRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source, used by tests that seed records "yesterday".
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) CountAll(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.tools)), nil
}

func (s *MemoryStore) CountCreatedBetween(_ context.Context, start, end time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, rec := range s.tools {
		if !rec.CreatedAt.Before(start) && rec.CreatedAt.Before(end) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TopBySource(_ context.Context, source model.Source, metric model.Metric, limit int) ([]model.ToolRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ToolRecord
	for _, rec := range s.tools {
		if rec.Source == source {
			out = append(out, project(rec))
		}
	}
	sortByMetric(out, metric)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// project mirrors the field projection applied by the Mongo query.
func project(rec model.ToolRecord) model.ToolRecord {
	return model.ToolRecord{
		ID:           rec.ID,
		Name:         rec.Name,
		Source:       rec.Source,
		Metrics:      rec.Metrics,
		URL:          rec.URL,
		Description:  rec.Description,
		Improvements: rec.Improvements,
	}
}

func sortByMetric(recs []model.ToolRecord, metrics ...model.Metric) {
	sort.SliceStable(recs, func(i, j int) bool {
		for _, m := range metrics {
			a, b := recs[i].Metrics.Value(m), recs[j].Metrics.Value(m)
			if a != b {
				return a > b
			}
		}
		return recs[i].URL < recs[j].URL
	})
}

func (s *MemoryStore) UpsertTool(_ context.Context, rec model.ToolRecord) (*model.ToolRecord, error) {
	if err := validateTool(rec); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.tools[rec.URL]
	if !ok {
		existing = model.ToolRecord{ID: primitive.NewObjectID(), URL: rec.URL, CreatedAt: rec.CreatedAt}
		if existing.CreatedAt.IsZero() {
			existing.CreatedAt = now
		}
	}
	existing.Name = rec.Name
	existing.Source = rec.Source
	existing.Metrics = rec.Metrics
	existing.Description = rec.Description
	if rec.Improvements != "" {
		existing.Improvements = rec.Improvements
	}
	existing.UpdatedAt = now
	existing.Timeline = append(append([]model.TimelinePoint(nil), existing.Timeline...),
		model.TimelinePoint{Date: now, Value: rec.PrimaryValue()})
	s.tools[rec.URL] = existing

	out := existing
	return &out, nil
}

func (s *MemoryStore) ListTools(_ context.Context, source model.Source, limit int) ([]model.ToolRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	metric := model.MetricStars
	if source != "" {
		metric = source.PrimaryMetric()
	}
	var out []model.ToolRecord
	for _, rec := range s.tools {
		if source == "" || rec.Source == source {
			out = append(out, rec)
		}
	}
	sortByMetric(out, metric)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Search(_ context.Context, query string, limit int) ([]model.ToolRecord, error) {
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ToolRecord
	for _, rec := range s.tools {
		if strings.Contains(strings.ToLower(rec.Name), q) || strings.Contains(strings.ToLower(rec.Description), q) {
			out = append(out, rec)
		}
	}
	sortByMetric(out, model.MetricStars, model.MetricDownloads, model.MetricCitations)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpsertDaily(_ context.Context, digest model.DailyDigest) (*model.DailyDigest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, end := model.DayRange(digest.Date)
	for i := range s.digests {
		d := &s.digests[i]
		if !d.Date.Before(start) && d.Date.Before(end) {
			d.TotalTools = digest.TotalTools
			d.NewTools = digest.NewTools
			d.TopEntries = digest.TopEntries
			d.Summary = digest.Summary
			d.FormattedDocument = digest.FormattedDocument
			out := *d
			return &out, nil
		}
	}

	digest.ID = primitive.NewObjectID()
	digest.Date = start
	if digest.CreatedAt.IsZero() {
		digest.CreatedAt = s.now()
	}
	s.digests = append(s.digests, digest)
	out := digest
	return &out, nil
}

func (s *MemoryStore) Latest(_ context.Context) (*model.DailyDigest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.DailyDigest
	for i := range s.digests {
		if latest == nil || s.digests[i].Date.After(latest.Date) {
			latest = &s.digests[i]
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) ByDate(_ context.Context, day time.Time) (*model.DailyDigest, error) {
	start, end := model.DayRange(day)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.digests {
		if !d.Date.Before(start) && d.Date.Before(end) {
			out := d
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.digests[:0]
	var removed int64
	for _, d := range s.digests {
		if d.Date.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	s.digests = kept
	return removed, nil
}

// DigestCount reports how many digests are stored.
func (s *MemoryStore) DigestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.digests)
}

// Close is a no-op; it lets MemoryStore stand in for MongoStore.
func (s *MemoryStore) Close() error { return nil }
