package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SeenAfterMark(t *testing.T) {
	c := New(time.Minute, 100)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, c.Seen(1, "jobs", ts), "unmarked identity is fresh")
	c.Mark(1, "jobs", ts)
	assert.True(t, c.Seen(1, "jobs", ts))
}

func TestCache_SeenDoesNotRecord(t *testing.T) {
	c := New(time.Minute, 100)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Seen(1, "jobs", ts)
	assert.False(t, c.Seen(1, "jobs", ts), "a check must not mark the identity")
	assert.Equal(t, 0, c.Len())
}

func TestCache_DistinctIdentities(t *testing.T) {
	c := New(time.Minute, 100)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Mark(1, "jobs", ts)
	assert.False(t, c.Seen(1, "other", ts), "same id in another channel is a different message")
	assert.False(t, c.Seen(2, "jobs", ts))
	assert.False(t, c.Seen(1, "jobs", ts.Add(time.Second)), "edited reposts get a new timestamp")
}

func TestCache_EntriesExpire(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Mark(1, "jobs", ts)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.Seen(1, "jobs", ts), "expired identity is seen fresh")
	assert.Equal(t, 0, c.Len(), "expired entry was pruned")
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Minute, 2)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Mark(1, "jobs", ts)
	c.Mark(2, "jobs", ts)
	c.Mark(3, "jobs", ts) // evicts id 1

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Seen(1, "jobs", ts), "evicted identity is forgotten")
	assert.True(t, c.Seen(3, "jobs", ts))
}
