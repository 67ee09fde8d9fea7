package processor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azhdankov/JobSearcher/internal/store"
)

// fakeClassifier returns a scripted selection or error.
type fakeClassifier struct {
	mu       sync.Mutex
	calls    int
	batches  [][]*store.Message
	selected []store.Key
	err      error
}

func (f *fakeClassifier) Select(_ context.Context, items []*store.Message) ([]store.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, items)
	if f.err != nil {
		return nil, f.err
	}
	return f.selected, nil
}

// fakeNotifier records deliveries and fails on chosen calls.
type fakeNotifier struct {
	mu        sync.Mutex
	delivered []string
	failCalls map[int]bool // 1-based call index -> fail
	calls     int
}

func (f *fakeNotifier) Deliver(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failCalls[f.calls] {
		return errors.New("sink unavailable")
	}
	f.delivered = append(f.delivered, text)
	return nil
}

func setupStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func insert(t *testing.T, st store.Store, id int64, channel string, ts time.Time, text string) {
	t.Helper()
	require.NoError(t, st.InsertMessage(context.Background(), &store.Message{
		ID:          id,
		ChannelName: channel,
		ChannelID:   777,
		Timestamp:   ts,
		Text:        text,
	}))
}

func TestProcessor_EmptyBatchIsNoOp(t *testing.T) {
	st := setupStore(t)
	cls := &fakeClassifier{}
	sink := &fakeNotifier{}

	New(st, cls, sink).Tick(context.Background())

	assert.Zero(t, cls.calls, "classifier must not be called for an empty batch")
	assert.Zero(t, sink.calls)
}

func TestProcessor_SelectsAndNotifies(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	insert(t, st, 1, "x", base, "Backend engineer wanted, remote")
	insert(t, st, 2, "x", base.Add(time.Second), "Frontend internship")

	cls := &fakeClassifier{selected: []store.Key{{ID: 1, ChannelName: "x"}}}
	sink := &fakeNotifier{}

	New(st, cls, sink).Tick(ctx)

	// One classification call carrying the whole batch
	require.Equal(t, 1, cls.calls)
	assert.Len(t, cls.batches[0], 2)

	// Only the matched item is delivered
	require.Len(t, sink.delivered, 1)
	assert.Contains(t, sink.delivered[0], "Backend engineer wanted, remote")
	assert.Contains(t, sink.delivered[0], "t.me/c/777/1")

	// The whole window is completed, matched or not
	remaining, err := st.SelectNew(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestProcessor_ClassificationFailureStillClosesWindow(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	insert(t, st, 1, "x", time.Now().UTC().Truncate(time.Second), "some posting")

	cls := &fakeClassifier{err: errors.New("model unavailable")}
	sink := &fakeNotifier{}

	New(st, cls, sink).Tick(ctx)

	assert.Zero(t, sink.calls, "nothing is delivered when classification failed")

	remaining, err := st.SelectNew(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining, "the window closes even when classification failed")
}

func TestProcessor_NoClassifierIsDegradedMode(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	insert(t, st, 1, "x", time.Now().UTC().Truncate(time.Second), "some posting")

	sink := &fakeNotifier{}
	New(st, nil, sink).Tick(ctx)

	assert.Zero(t, sink.calls)

	remaining, err := st.SelectNew(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestProcessor_FanOutIsolation(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	insert(t, st, 1, "x", base, "first match")
	insert(t, st, 2, "x", base.Add(time.Second), "second match")
	insert(t, st, 3, "x", base.Add(2*time.Second), "third match")

	cls := &fakeClassifier{selected: []store.Key{
		{ID: 1, ChannelName: "x"},
		{ID: 2, ChannelName: "x"},
		{ID: 3, ChannelName: "x"},
	}}
	sink := &fakeNotifier{failCalls: map[int]bool{2: true}}

	New(st, cls, sink).Tick(ctx)

	// Item 2's failure must not prevent attempts for items 1 and 3
	assert.Equal(t, 3, sink.calls)
	require.Len(t, sink.delivered, 2)
	assert.Contains(t, sink.delivered[0], "first match")
	assert.Contains(t, sink.delivered[1], "third match")
}

func TestProcessor_DispatchInTimestampOrder(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	// Inserted out of order; dispatch must follow timestamps
	insert(t, st, 2, "x", base.Add(time.Second), "later")
	insert(t, st, 1, "x", base, "earlier")

	cls := &fakeClassifier{selected: []store.Key{
		{ID: 1, ChannelName: "x"},
		{ID: 2, ChannelName: "x"},
	}}
	sink := &fakeNotifier{}

	New(st, cls, sink).Tick(ctx)

	require.Len(t, sink.delivered, 2)
	assert.Contains(t, sink.delivered[0], "earlier")
	assert.Contains(t, sink.delivered[1], "later")
}

func TestProcessor_MidCycleInsertIsSwept(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	insert(t, st, 1, "x", base, "batched")

	// Classifier hook simulates a message ingested while the cycle runs
	cls := &hookClassifier{hook: func() {
		insert(t, st, 2, "x", base.Add(time.Second), "mid-cycle")
	}}

	New(st, cls, &fakeNotifier{}).Tick(ctx)

	remaining, err := st.SelectNew(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining, "the concurrently inserted message is inside the window and must be swept")
}

// hookClassifier runs a callback during classification.
type hookClassifier struct {
	hook func()
}

func (h *hookClassifier) Select(context.Context, []*store.Message) ([]store.Key, error) {
	h.hook()
	return nil, nil
}

// failingMarkStore wraps a Store and fails MarkCompletedSince.
type failingMarkStore struct {
	store.Store
}

func (f *failingMarkStore) MarkCompletedSince(context.Context, time.Time) (int64, error) {
	return 0, &store.StorageError{Op: "mark completed", Err: errors.New("database is locked")}
}

func TestProcessor_MarkFailureSkipsDispatch(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	insert(t, st, 1, "x", time.Now().UTC().Truncate(time.Second), "match")

	cls := &fakeClassifier{selected: []store.Key{{ID: 1, ChannelName: "x"}}}
	sink := &fakeNotifier{}

	New(&failingMarkStore{Store: st}, cls, sink).Tick(ctx)

	assert.Zero(t, sink.calls, "dispatching an unclosed window would duplicate notifications next tick")

	// Rows stay new, so the next tick naturally retries
	remaining, err := st.SelectNew(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestProcessor_ScenarioEndToEnd(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	// Ingest-side filtering already dropped the spam message; only A exists
	base := time.Now().UTC().Truncate(time.Second)
	insert(t, st, 1, "x", base, "Backend engineer wanted, remote")

	cls := &fakeClassifier{selected: []store.Key{{ID: 1, ChannelName: "x"}}}
	sink := &fakeNotifier{}

	New(st, cls, sink).Tick(ctx)

	require.Len(t, sink.delivered, 1)
	assert.Contains(t, sink.delivered[0], "Backend engineer wanted, remote")

	remaining, err := st.SelectNew(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// A second cycle is a no-op: the record does not reappear
	sink2 := &fakeNotifier{}
	cls2 := &fakeClassifier{}
	New(st, cls2, sink2).Tick(ctx)
	assert.Zero(t, cls2.calls)
	assert.Zero(t, sink2.calls)
}
