// ABOUTME: Short-lived duplicate suppression for the ingestion path
// ABOUTME: Skips redelivered channel posts before they reach the filter and store

package dedupe

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// entry records when a message identity was first seen, plus its
// position in the eviction order.
type entry struct {
	added time.Time
	elem  *list.Element
}

// Cache remembers recently ingested message identities so redelivered
// updates can be skipped without a store round trip. The store's
// insert-if-absent write already makes redelivery harmless; the cache
// only avoids the wasted write and the duplicate log line. Entries
// expire after the TTL, and the oldest entry is evicted when the cache
// is at capacity.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // identity keys, oldest at front
	ttl     time.Duration
	maxSize int
}

// New creates a cache that forgets identities after ttl and holds at
// most maxSize of them.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// identity mirrors the store's message key. Truncating the timestamp
// to seconds matches the persisted precision.
func identity(id int64, channel string, ts time.Time) string {
	return fmt.Sprintf("%d|%s|%d", id, channel, ts.Unix())
}

// Seen reports whether the message identity was recorded within the
// TTL. It never records anything itself: callers mark an identity only
// once the event is definitively handled, so a failed handling attempt
// leaves redelivery able to retry.
func (c *Cache) Seen(id int64, channel string, ts time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneExpired(time.Now())

	_, seen := c.entries[identity(id, channel, ts)]
	return seen
}

// Mark records a message identity. Re-marking refreshes nothing; the
// original sighting keeps its expiry.
func (c *Cache) Mark(id int64, channel string, ts time.Time) {
	key := identity(id, channel, ts)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneExpired(now)

	if _, seen := c.entries[key]; seen {
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &entry{added: now, elem: c.order.PushBack(key)}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// pruneExpired drops expired entries from the front of the order list.
// Must be called with mu held.
func (c *Cache) pruneExpired(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key := front.Value.(string)
		if now.Sub(c.entries[key].added) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.entries, key)
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.order.Remove(front)
	delete(c.entries, front.Value.(string))
}
