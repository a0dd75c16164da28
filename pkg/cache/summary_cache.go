// Package cache keeps recently produced summaries so a same-day regeneration
// does not pay for another provider round trip.
package cache

import (
	"container/list"
	"crypto/sha256"
	"sync"
	"time"
)

// key is the digest of a brief; briefs themselves are not retained.
type key [sha256.Size]byte

func keyOf(text string) key { return sha256.Sum256([]byte(text)) }

type item struct {
	key     key
	summary string
	expires time.Time
}

// SummaryCache maps brief text to its summary with LRU eviction and a fixed TTL.
// A nil *SummaryCache is a valid, always-empty cache.
type SummaryCache struct {
	mu    sync.Mutex
	size  int
	ttl   time.Duration
	index map[key]*list.Element
	order *list.List // front is most recently used
	now   func() time.Time
}

// NewSummaryCache holds at most size summaries, each valid for ttl. A non-positive ttl never expires.
func NewSummaryCache(size int, ttl time.Duration) *SummaryCache {
	if size < 1 {
		size = 1
	}
	return &SummaryCache{
		size:  size,
		ttl:   ttl,
		index: make(map[key]*list.Element, size),
		order: list.New(),
		now:   time.Now,
	}
}

func (c *SummaryCache) expired(it *item, now time.Time) bool {
	return c.ttl > 0 && now.After(it.expires)
}

// Get returns the summary cached for text.
func (c *SummaryCache) Get(text string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[keyOf(text)]
	if !ok {
		return "", false
	}
	it := el.Value.(*item)
	if c.expired(it, c.now()) {
		c.remove(el)
		return "", false
	}
	c.order.MoveToFront(el)
	return it.summary, true
}

// Put stores summary for text, dropping expired entries and then the least recently used ones.
func (c *SummaryCache) Put(text, summary string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	k := keyOf(text)
	if el, ok := c.index[k]; ok {
		it := el.Value.(*item)
		it.summary, it.expires = summary, now.Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	c.index[k] = c.order.PushFront(&item{key: k, summary: summary, expires: now.Add(c.ttl)})

	for el := c.order.Back(); el != nil; {
		if c.order.Len() <= c.size && !c.expired(el.Value.(*item), now) {
			break
		}
		prev := el.Prev()
		c.remove(el)
		el = prev
	}
}

func (c *SummaryCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.index, el.Value.(*item).key)
}

// Len returns the number of cached summaries.
func (c *SummaryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
