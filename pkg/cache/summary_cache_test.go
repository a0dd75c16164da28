package cache

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummaryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := NewSummaryCache(3, time.Hour)
	c.Put("brief a", "A")
	c.Put("brief b", "B")
	c.Put("brief c", "C")

	got, ok := c.Get("brief a")
	assert.True(t, ok)
	assert.Equal(t, "A", got)

	c.Put("brief d", "D")

	_, ok = c.Get("brief b")
	assert.False(t, ok, "b was least recently used")
	assert.Equal(t, 3, c.Len())
}

func TestSummaryCacheRefreshesExistingEntry(t *testing.T) {
	t.Parallel()

	c := NewSummaryCache(2, time.Hour)
	c.Put("brief", "old")
	c.Put("brief", "new")

	got, _ := c.Get("brief")
	assert.Equal(t, "new", got)
	assert.Equal(t, 1, c.Len())
}

func TestSummaryCacheExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewSummaryCache(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Put("stale", "s")
	_, ok := c.Get("stale")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("stale")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	c.Put("a", "1")
	now = now.Add(2 * time.Minute)
	c.Put("b", "2")
	assert.Equal(t, 1, c.Len(), "expired entries are dropped on write")
}

func TestSummaryCacheZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewSummaryCache(1, 0)
	c.now = func() time.Time { return now }
	c.Put("brief", "x")
	now = now.AddDate(1, 0, 0)

	_, ok := c.Get("brief")
	assert.True(t, ok)
}

func TestSummaryCacheNilSafe(t *testing.T) {
	t.Parallel()

	var c *SummaryCache
	c.Put("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func BenchmarkSummaryCachePut(b *testing.B) {
	c := NewSummaryCache(1000, 5*time.Minute)
	for i := 0; i < b.N; i++ {
		c.Put(strconv.Itoa(i), "summary")
	}
}
