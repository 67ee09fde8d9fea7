package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Azhdankov/JobSearcher/internal/store"
)

// recordingStore counts retention calls and can fail them on demand.
type recordingStore struct {
	mu           sync.Mutex
	deleteCalls  int
	reclaimCalls int
	deleteErr    error
	reclaimErr   error
}

func (r *recordingStore) InsertMessage(context.Context, *store.Message) error { return nil }

func (r *recordingStore) DeleteOlderThan(_ context.Context, _ time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	return 2, r.deleteErr
}

func (r *recordingStore) ReclaimSpace(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reclaimCalls++
	return r.reclaimErr
}

func (r *recordingStore) SelectNew(context.Context, int) ([]*store.Message, error) { return nil, nil }

func (r *recordingStore) MarkCompletedSince(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *recordingStore) Close() error { return nil }

var _ store.Store = (*recordingStore)(nil)

func TestJob_TickDeletesAndReclaims(t *testing.T) {
	rs := &recordingStore{}
	job := New(rs, 48*time.Hour)

	job.Tick(context.Background())

	assert.Equal(t, 1, rs.deleteCalls)
	assert.Equal(t, 1, rs.reclaimCalls)
}

func TestJob_DeleteFailureStillReclaims(t *testing.T) {
	rs := &recordingStore{deleteErr: &store.StorageError{Op: "delete old messages", Err: errors.New("disk full")}}
	job := New(rs, 48*time.Hour)

	job.Tick(context.Background())

	assert.Equal(t, 1, rs.reclaimCalls, "reclaim runs even when delete fails")
}

func TestJob_FailuresDoNotStopSubsequentTicks(t *testing.T) {
	rs := &recordingStore{
		deleteErr:  errors.New("boom"),
		reclaimErr: errors.New("boom"),
	}
	job := New(rs, 48*time.Hour)

	job.Tick(context.Background())
	job.Tick(context.Background())

	assert.Equal(t, 2, rs.deleteCalls)
	assert.Equal(t, 2, rs.reclaimCalls)
}
