// ABOUTME: Selection cycle: read new messages, classify once, close the window, notify
// ABOUTME: Completes the window even on classification failure and isolates per-item delivery errors

package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Azhdankov/JobSearcher/internal/classify"
	"github.com/Azhdankov/JobSearcher/internal/notify"
	"github.com/Azhdankov/JobSearcher/internal/store"
)

// Processor runs one selection cycle per tick. The scheduler guarantees
// ticks never overlap, so a cycle owns its batch exclusively.
type Processor struct {
	store      store.Store
	classifier classify.Classifier // nil means degraded mode: nothing is ever selected
	notifier   notify.Notifier     // nil means selections are logged but not delivered
	logger     *slog.Logger
}

// New creates a processor. Classifier and notifier may be nil when the
// corresponding collaborator is not configured.
func New(st store.Store, c classify.Classifier, n notify.Notifier) *Processor {
	return &Processor{
		store:      st,
		classifier: c,
		notifier:   n,
		logger:     slog.Default().With("component", "processor"),
	}
}

// Tick runs one selection cycle.
func (p *Processor) Tick(ctx context.Context) {
	// Correlation id ties the log lines of one cycle together
	logger := p.logger.With("cycle", uuid.NewString())

	items, err := p.store.SelectNew(ctx, 0)
	if err != nil {
		logger.Error("reading new messages failed", "error", err)
		return
	}
	if len(items) == 0 {
		logger.Info("no new messages, sleeping until next cycle")
		return
	}

	windowStart := earliestTimestamp(items)
	logger.Info("cycle started", "batch", len(items), "window_start", windowStart.Format(time.RFC3339))

	var selected []store.Key
	if p.classifier != nil {
		selected, err = p.classifier.Select(ctx, items)
		if err != nil {
			// The window still closes below: an unavailable classifier must
			// not pile up new rows forever. This batch's selection
			// opportunity is forfeited.
			logger.Error("classification failed, selecting nothing", "error", err)
			selected = nil
		}
	} else {
		logger.Warn("no classifier configured, selecting nothing")
	}

	updated, err := p.store.MarkCompletedSince(ctx, windowStart)
	if err != nil {
		// Rows stay new and the next tick re-reads them; dispatching now
		// would notify the same items again on that retry.
		logger.Error("closing selection window failed", "error", err)
		return
	}
	logger.Info("selection window closed", "completed", updated)

	p.dispatch(ctx, logger, items, selected)
}

// dispatch sends one notification per selected item, in batch order.
// A failed delivery is logged and skipped; it never blocks the rest.
func (p *Processor) dispatch(ctx context.Context, logger *slog.Logger, items []*store.Message, selected []store.Key) {
	if len(selected) == 0 {
		logger.Info("nothing selected, dispatch skipped")
		return
	}
	if p.notifier == nil {
		logger.Warn("no notifier configured, dispatch skipped", "selected", len(selected))
		return
	}

	keys := make(map[store.Key]bool, len(selected))
	for _, k := range selected {
		keys[k] = true
	}

	var delivered, failed int
	for _, item := range items {
		if !keys[item.Key()] {
			continue
		}

		text, err := notify.Format(item)
		if err != nil {
			failed++
			logger.Error("formatting notification failed", "id", item.ID, "channel", item.ChannelName, "error", err)
			continue
		}

		if err := p.notifier.Deliver(ctx, text); err != nil {
			failed++
			logger.Error("delivery failed", "id", item.ID, "channel", item.ChannelName, "error", err)
			continue
		}

		delivered++
		logger.Info("notification sent", "id", item.ID, "channel", item.ChannelName)
	}

	logger.Info("dispatch finished", "delivered", delivered, "failed", failed)
}

// earliestTimestamp returns the window start for the batch. Items arrive
// ordered ascending, but the minimum is computed explicitly rather than
// trusting position zero.
func earliestTimestamp(items []*store.Message) time.Time {
	earliest := items[0].Timestamp
	for _, it := range items[1:] {
		if it.Timestamp.Before(earliest) {
			earliest = it.Timestamp
		}
	}
	return earliest
}
