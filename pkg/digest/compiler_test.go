package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkaiv/arkaiv/pkg/model"
	"github.com/arkaiv/arkaiv/pkg/models"
	"github.com/arkaiv/arkaiv/pkg/store"
	"github.com/arkaiv/arkaiv/pkg/summarize"
)

var runAt = time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

type recordingSummarizer struct {
	mu     sync.Mutex
	out    string
	inputs []string
}

func (r *recordingSummarizer) Summarize(_ context.Context, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, text)
	return r.out, nil
}

func newCompiler(t *testing.T, s *store.MemoryStore, sum Summarizer, now func() time.Time) *Compiler {
	t.Helper()
	c, err := NewCompiler(Config{Tools: s, Digests: s, Summarizer: sum, Now: now})
	require.NoError(t, err)
	return c
}

func fixedClock(at time.Time) func() time.Time { return func() time.Time { return at } }

func seedScenario(t *testing.T, s *store.MemoryStore) {
	t.Helper()
	yesterday := runAt.Add(-20 * time.Hour)
	recs := []model.ToolRecord{
		{Name: "foo", Source: model.SourceGitHub, URL: "https://github.com/acme/foo", Metrics: model.Metrics{Stars: 500}, CreatedAt: yesterday},
		{Name: "bar", Source: model.SourceGitHub, URL: "https://github.com/acme/bar", Description: "Bar tool", Metrics: model.Metrics{Stars: 900}, CreatedAt: yesterday},
		{Name: "bert", Source: model.SourceHuggingFace, URL: "https://huggingface.co/google/bert-base-uncased", Description: "Encoder", Metrics: model.Metrics{Downloads: 1000, Stars: 7}, CreatedAt: yesterday},
		{Name: "paper", Source: model.SourceArXiv, URL: "https://arxiv.org/abs/2401.00001", Description: "A paper", Metrics: model.Metrics{Citations: 12}, CreatedAt: runAt.AddDate(0, 0, -10)},
	}
	for _, rec := range recs {
		_, err := s.UpsertTool(context.Background(), rec)
		require.NoError(t, err)
	}
}

func TestNewCompilerRequiresCollaborators(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	_, err := NewCompiler(Config{Digests: s, Summarizer: &recordingSummarizer{}})
	assert.Error(t, err)
	_, err = NewCompiler(Config{Tools: s, Summarizer: &recordingSummarizer{}})
	assert.Error(t, err)
	_, err = NewCompiler(Config{Tools: s, Digests: s})
	assert.Error(t, err)
}

func TestGenerateEndToEnd(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	seedScenario(t, s)
	sum := &recordingSummarizer{out: "Daily synopsis."}
	c := newCompiler(t, s, sum, fixedClock(runAt))

	d, err := c.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), d.Date)
	assert.Equal(t, int64(4), d.TotalTools)
	assert.Equal(t, int64(3), d.NewTools)
	assert.LessOrEqual(t, d.NewTools, d.TotalTools)
	assert.Equal(t, "Daily synopsis.", d.Summary)

	require.Len(t, d.TopEntries.GitHub, 2)
	assert.Equal(t, "bar", d.TopEntries.GitHub[0].Name)
	assert.Equal(t, "foo", d.TopEntries.GitHub[1].Name)
	assert.Contains(t, d.TopEntries.GitHub[1].Description, "acme/foo")
	assert.Equal(t, NoImprovements, d.TopEntries.GitHub[0].Improvements)

	require.Len(t, d.TopEntries.HuggingFace, 1)
	assert.Equal(t, model.Metrics{Downloads: 1000}, d.TopEntries.HuggingFace[0].Metrics, "only the primary metric is kept")
	require.Len(t, d.TopEntries.ArXiv, 1)

	require.Len(t, sum.inputs, 1)
	in := sum.inputs[0]
	assert.Contains(t, in, "Total AI Tools: 4")
	assert.Contains(t, in, "New Tools Today: 3")
	assert.Contains(t, in, "- bar: Bar tool")

	assert.Contains(t, d.FormattedDocument, "## Monday, January 1, 2024")
	assert.Contains(t, d.FormattedDocument, "#### 1. bar")
	assert.Contains(t, d.FormattedDocument, "- **Stars**: 900")
	assert.Contains(t, d.FormattedDocument, "- **Downloads**: 1000")
	assert.Contains(t, d.FormattedDocument, "- **Citations**: 12")

	stored, err := s.ByDate(context.Background(), d.Date)
	require.NoError(t, err)
	assert.Equal(t, d.ID, stored.ID)
}

func TestGenerateEmptyRepository(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	gw := summarize.New(summarize.Config{})
	c := newCompiler(t, s, gw, fixedClock(runAt))

	d, err := c.Generate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, d.TotalTools)
	assert.Zero(t, d.NewTools)
	assert.Empty(t, d.TopEntries.GitHub)
	assert.NotNil(t, d.TopEntries.GitHub)
	assert.Equal(t, models.MockSummary, d.Summary)
	assert.Contains(t, d.FormattedDocument, "No GitHub tools found.")
	assert.Contains(t, d.FormattedDocument, "No HuggingFace models found.")
	assert.Contains(t, d.FormattedDocument, "No arXiv papers found.")
}

func TestGenerateIsIdempotentPerDay(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	seedScenario(t, s)
	sum := &recordingSummarizer{out: "first"}
	now := runAt
	c := newCompiler(t, s, sum, func() time.Time { return now })

	first, err := c.Generate(context.Background())
	require.NoError(t, err)

	_, err = s.UpsertTool(context.Background(), model.ToolRecord{
		Name: "new", Source: model.SourceGitHub, URL: "https://github.com/acme/new", Metrics: model.Metrics{Stars: 5},
	})
	require.NoError(t, err)
	sum.out = "second"
	now = runAt.Add(6 * time.Hour)

	second, err := c.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s.DigestCount())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(5), second.TotalTools)
	assert.Equal(t, "second", second.Summary)
}

func TestGenerateNextDayCreatesNewDigest(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	now := runAt
	c := newCompiler(t, s, &recordingSummarizer{out: "x"}, func() time.Time { return now })

	_, err := c.Generate(context.Background())
	require.NoError(t, err)
	now = runAt.AddDate(0, 0, 1)
	_, err = c.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.DigestCount())
}

func TestGenerateUsesConfiguredLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC-5", -5*3600)
	s := store.NewMemoryStore()
	c, err := NewCompiler(Config{
		Tools: s, Digests: s, Summarizer: &recordingSummarizer{out: "x"},
		Location: loc,
		Now:      fixedClock(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	d, err := c.Generate(context.Background())
	require.NoError(t, err)
	assert.True(t, d.Date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)))
	assert.Contains(t, d.FormattedDocument, "Monday, January 1, 2024")
}

type failingTools struct {
	store.ToolRepository
	failTop bool
}

func (f failingTools) CountAll(ctx context.Context) (int64, error) {
	if !f.failTop {
		return 0, &store.RepositoryError{Op: "count", Err: errors.New("connection reset")}
	}
	return f.ToolRepository.CountAll(ctx)
}

func (f failingTools) TopBySource(context.Context, model.Source, model.Metric, int) ([]model.ToolRecord, error) {
	return nil, &store.RepositoryError{Op: "top", Err: errors.New("cursor killed")}
}

func TestGenerateRepositoryFailureWritesNothing(t *testing.T) {
	t.Parallel()

	for _, failTop := range []bool{false, true} {
		s := store.NewMemoryStore()
		sum := &recordingSummarizer{out: "x"}
		c, err := NewCompiler(Config{
			Tools: failingTools{ToolRepository: s, failTop: failTop}, Digests: s, Summarizer: sum,
			Now: fixedClock(runAt),
		})
		require.NoError(t, err)

		_, err = c.Generate(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrRepository)
		assert.Zero(t, s.DigestCount())
		assert.Empty(t, sum.inputs)
	}
}

func TestGeneratePropagatesInvalidInput(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	c := newCompiler(t, s, summarizerFunc(func(context.Context, string) (string, error) {
		return "", summarize.ErrInvalidInput
	}), fixedClock(runAt))

	_, err := c.Generate(context.Background())
	assert.ErrorIs(t, err, summarize.ErrInvalidInput)
	assert.Zero(t, s.DigestCount())
}

type summarizerFunc func(context.Context, string) (string, error)

func (f summarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

func TestGenerateRankingInvariant(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	for i, stars := range []int64{5, 50, 500, 5000, 50, 7} {
		_, err := s.UpsertTool(context.Background(), model.ToolRecord{
			Name:    "r" + string(rune('a'+i)),
			Source:  model.SourceGitHub,
			URL:     "https://github.com/acme/r" + string(rune('a'+i)),
			Metrics: model.Metrics{Stars: stars},
		})
		require.NoError(t, err)
	}
	c := newCompiler(t, s, &recordingSummarizer{out: "x"}, fixedClock(runAt))

	d, err := c.Generate(context.Background())
	require.NoError(t, err)
	for _, src := range model.Sources() {
		entries := d.TopEntries.For(src)
		require.LessOrEqual(t, len(entries), model.MaxTopEntries)
		metric := src.PrimaryMetric()
		for i := 1; i < len(entries); i++ {
			assert.GreaterOrEqual(t, entries[i-1].Metrics.Value(metric), entries[i].Metrics.Value(metric))
		}
	}
	gh := d.TopEntries.GitHub
	require.Len(t, gh, 3)
	assert.Equal(t, []int64{5000, 500, 50}, []int64{gh[0].Metrics.Stars, gh[1].Metrics.Stars, gh[2].Metrics.Stars})
	assert.Equal(t, "https://github.com/acme/rb", gh[2].URL, "equal stars break ties by url")
	assert.False(t, strings.Contains(d.FormattedDocument, "#### 4."))
}
