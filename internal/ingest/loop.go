// ABOUTME: Ingestion loop consuming the source stream into the store
// ABOUTME: Supervises reconnects with bounded backoff; only auth failures are fatal

package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Azhdankov/JobSearcher/internal/dedupe"
	"github.com/Azhdankov/JobSearcher/internal/filter"
	"github.com/Azhdankov/JobSearcher/internal/source"
	"github.com/Azhdankov/JobSearcher/internal/store"
)

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute

	// Redelivery happens within moments of a reconnect, so the dedupe
	// window stays short and the cache small.
	dedupeTTL  = 10 * time.Minute
	dedupeSize = 4096
)

// Loop consumes raw events from the messaging source, filters them, and
// persists the accepted ones. A source connection is single-use, so the
// loop takes a factory and builds a fresh one per (re)connect.
type Loop struct {
	newSource func() source.Source
	filter    *filter.Filter
	store     store.Store
	seen      *dedupe.Cache
	logger    *slog.Logger
}

// New creates an ingestion loop.
func New(newSource func() source.Source, f *filter.Filter, st store.Store) *Loop {
	return &Loop{
		newSource: newSource,
		filter:    f,
		store:     st,
		seen:      dedupe.New(dedupeTTL, dedupeSize),
		logger:    slog.Default().With("component", "ingest"),
	}
}

// Run consumes the stream until the context is cancelled or the source
// reports an unrecoverable authorization failure. Transient disconnects
// trigger reconnection with exponential backoff; retrying a revoked
// credential would never succeed, so ErrUnauthorized is returned to the
// caller to terminate the process.
func (l *Loop) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		src := l.newSource()

		err := src.Connect(ctx)
		if errors.Is(err, source.ErrUnauthorized) {
			src.Close()
			return err
		}
		if err != nil {
			src.Close()
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Warn("connect failed, retrying", "error", err, "backoff", backoff.String())
			if !l.sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = initialBackoff

		for ev := range src.Events() {
			l.handle(ctx, ev)
		}
		src.Close()

		if ctx.Err() != nil {
			return nil
		}

		streamErr := src.Err()
		if streamErr == nil {
			l.logger.Info("source stream closed")
			return nil
		}
		if errors.Is(streamErr, source.ErrUnauthorized) {
			return streamErr
		}

		l.logger.Warn("disconnected, reconnecting", "error", streamErr, "backoff", backoff.String())
		if !l.sleep(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff)
	}
}

// handle filters one event and persists it when accepted. Storage
// failures are logged and dropped; the next event must not be lost
// because this one could not be written.
func (l *Loop) handle(ctx context.Context, ev source.RawEvent) {
	if l.seen.Seen(ev.ID, ev.ChannelName, ev.Timestamp) {
		l.logger.Debug("duplicate event skipped", "id", ev.ID, "channel", ev.ChannelName)
		return
	}

	res := l.filter.Apply(ev)
	if !res.Accepted {
		l.seen.Mark(ev.ID, ev.ChannelName, ev.Timestamp)
		l.logger.Info("skipped message",
			"id", ev.ID,
			"channel", ev.ChannelName,
			"reason", string(res.Reason),
		)
		return
	}

	if err := l.store.InsertMessage(ctx, res.Message); err != nil {
		// Not marked seen: a redelivery of this event may still succeed
		l.logger.Error("saving message failed",
			"id", ev.ID,
			"channel", ev.ChannelName,
			"error", err,
		)
		return
	}

	l.seen.Mark(ev.ID, ev.ChannelName, ev.Timestamp)
	l.logger.Info("saved message", "id", ev.ID, "channel", ev.ChannelName)
}

// sleep waits for the backoff period, returning false when the context
// was cancelled first.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
