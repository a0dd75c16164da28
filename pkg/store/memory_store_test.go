package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkaiv/arkaiv/pkg/model"
)

func seed(t *testing.T, s *MemoryStore, recs ...model.ToolRecord) {
	t.Helper()
	for _, rec := range recs {
		_, err := s.UpsertTool(context.Background(), rec)
		require.NoError(t, err)
	}
}

func gh(url string, stars int64) model.ToolRecord {
	return model.ToolRecord{Name: url, Source: model.SourceGitHub, URL: url, Metrics: model.Metrics{Stars: stars}}
}

func TestMemoryStoreTopBySourceRanksAndBreaksTiesByURL(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s,
		gh("https://github.com/b/b", 500),
		gh("https://github.com/a/a", 500),
		gh("https://github.com/c/c", 900),
		gh("https://github.com/d/d", 10),
		model.ToolRecord{Name: "m", Source: model.SourceHuggingFace, URL: "https://huggingface.co/m", Metrics: model.Metrics{Downloads: 99999}},
	)

	top, err := s.TopBySource(context.Background(), model.SourceGitHub, model.MetricStars, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "https://github.com/c/c", top[0].URL)
	assert.Equal(t, "https://github.com/a/a", top[1].URL)
	assert.Equal(t, "https://github.com/b/b", top[2].URL)
	assert.Empty(t, top[0].Timeline, "projection drops the timeline")
}

func TestMemoryStoreUpsertToolKeepsCreatedAtAndAppendsTimeline(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	first := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return first })
	seed(t, s, gh("https://github.com/acme/foo", 10))

	second := first.Add(24 * time.Hour)
	s.SetClock(func() time.Time { return second })
	rec, err := s.UpsertTool(context.Background(), gh("https://github.com/acme/foo", 25))
	require.NoError(t, err)

	n, err := s.CountAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, first, rec.CreatedAt)
	assert.Equal(t, second, rec.UpdatedAt)
	require.Len(t, rec.Timeline, 2)
	assert.EqualValues(t, 25, rec.Timeline[1].Value)
}

func TestMemoryStoreUpsertToolValidates(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.UpsertTool(context.Background(), model.ToolRecord{Source: model.SourceGitHub})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = s.UpsertTool(context.Background(), model.ToolRecord{URL: "x", Source: "GitLab"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestMemoryStoreCountCreatedBetweenIsHalfOpen(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	today := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	for i, ts := range []time.Time{yesterday, yesterday.Add(time.Hour), today, yesterday.Add(-time.Second)} {
		rec := gh("https://github.com/x/"+string(rune('a'+i)), 1)
		rec.CreatedAt = ts
		seed(t, s, rec)
	}

	n, err := s.CountCreatedBetween(context.Background(), yesterday, today)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMemoryStoreUpsertDailyOverwritesSameDay(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.UpsertDaily(context.Background(), model.DailyDigest{Date: day, TotalTools: 1, Summary: "one"})
	require.NoError(t, err)
	second, err := s.UpsertDaily(context.Background(), model.DailyDigest{Date: day, TotalTools: 2, Summary: "two"})
	require.NoError(t, err)

	assert.Equal(t, 1, s.DigestCount())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.EqualValues(t, 2, second.TotalTools)
	assert.Equal(t, "two", second.Summary)

	got, err := s.ByDate(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Summary)
}

func TestMemoryStoreLatestAndPrune(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.Latest(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.UpsertDaily(ctx, model.DailyDigest{Date: base.AddDate(0, 0, i), TotalTools: int64(i)})
		require.NoError(t, err)
	}

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, base.AddDate(0, 0, 2), latest.Date)

	removed, err := s.DeleteBefore(ctx, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
	assert.Equal(t, 1, s.DigestCount())

	_, err = s.ByDate(ctx, base)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSearchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	rec := gh("https://github.com/acme/llama-tools", 5)
	rec.Name = "Llama Tools"
	other := gh("https://github.com/acme/other", 50)
	other.Description = "wraps LLAMA weights"
	seed(t, s, rec, other, gh("https://github.com/acme/unrelated", 100))

	got, err := s.Search(context.Background(), "llama", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://github.com/acme/other", got[0].URL)

	none, err := s.Search(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Nil(t, none)
}
