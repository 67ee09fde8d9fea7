// ABOUTME: Store interface and data types for message persistence
// ABOUTME: Defines the Message record, lifecycle status values, and StorageError

package store

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of a stored message.
// Transitions are monotonic: new -> completed, never back.
type Status string

const (
	StatusNew       Status = "new"
	StatusCompleted Status = "completed"
)

// Message represents a single channel message persisted for later
// selection. Identity is the triple (ID, ChannelName, Timestamp);
// re-inserting the same triple is a no-op.
type Message struct {
	ID          int64
	ChannelName string
	ChannelID   int64 // 0 when unknown; used only to build deep links
	Timestamp   time.Time
	Text        string
	Author      string // empty when the sender could not be resolved
	Status      Status
}

// Key identifies a message within one selection batch.
type Key struct {
	ID          int64
	ChannelName string
}

// Key returns the batch-level identity of the message.
func (m *Message) Key() Key {
	return Key{ID: m.ID, ChannelName: m.ChannelName}
}

// StorageError wraps a failed store operation. Callers decide whether
// to retry; the store itself never does.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store defines the interface for message persistence.
type Store interface {
	// InsertMessage persists a message. If a message with the same
	// (ID, ChannelName, Timestamp) already exists the call succeeds
	// without modifying the existing row.
	InsertMessage(ctx context.Context, msg *Message) error

	// DeleteOlderThan removes every message older than the cutoff,
	// regardless of status, and returns the number of rows deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Duration) (int64, error)

	// ReclaimSpace checkpoints the write-ahead log to bound the
	// on-disk footprint. Best-effort, safe alongside readers and writers.
	ReclaimSpace(ctx context.Context) error

	// SelectNew returns messages with status "new" ordered by timestamp
	// ascending, ties broken by insertion order. A limit <= 0 means no limit.
	SelectNew(ctx context.Context, limit int) ([]*Message, error)

	// MarkCompletedSince transitions every "new" message with a
	// timestamp at or after since to "completed" and returns the
	// number of rows updated.
	MarkCompletedSince(ctx context.Context, since time.Time) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
