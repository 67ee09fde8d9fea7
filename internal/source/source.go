// ABOUTME: Messaging-source boundary: the RawEvent shape and the Source interface
// ABOUTME: Defines the auth-failure sentinel used to classify fatal disconnects

package source

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthorized reports that the source rejected our credentials.
// Reconnecting cannot fix it; the caller is expected to terminate.
var ErrUnauthorized = errors.New("source: unauthorized")

// RawEvent is one inbound message notification, normalized at the
// source boundary. Optional fields carry zero values when the source
// could not resolve them.
type RawEvent struct {
	ID          int64
	ChannelName string
	ChannelID   int64 // 0 when unknown; used only for deep links
	Timestamp   time.Time
	Author      string // best-effort, empty when unresolvable
	Text        string
}

// Source is a live connection to the messaging system. Connect starts
// the event stream; the channel returned by Events is closed when the
// stream ends, after which Err reports why.
type Source interface {
	// Connect verifies credentials and starts delivering events.
	Connect(ctx context.Context) error

	// IsAuthorized reports whether the configured credentials are
	// currently accepted by the source.
	IsAuthorized(ctx context.Context) (bool, error)

	// Events returns the stream of inbound events. The channel is
	// closed when the connection ends for any reason.
	Events() <-chan RawEvent

	// Err returns the reason the event stream ended. It is nil while
	// the stream is live and after a clean, caller-requested stop.
	Err() error

	// Close tears down the connection and releases resources.
	Close() error
}
