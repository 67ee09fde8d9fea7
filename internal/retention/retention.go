// ABOUTME: Retention job deleting aged records and reclaiming disk space
// ABOUTME: Each tick is independent; failures are logged and the next tick retries

package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/Azhdankov/JobSearcher/internal/store"
)

// Job deletes records older than the retention horizon and compacts the
// reclaimed space. It is naturally idempotent: a failed or missed tick
// only delays reclamation, so errors never stop the job.
type Job struct {
	store   store.Store
	horizon time.Duration
	logger  *slog.Logger
}

// New creates a retention job with the given horizon.
func New(st store.Store, horizon time.Duration) *Job {
	return &Job{
		store:   st,
		horizon: horizon,
		logger:  slog.Default().With("component", "retention"),
	}
}

// Tick runs one cleanup pass: delete aged rows, then checkpoint the WAL.
// Both steps are attempted even if the first fails.
func (j *Job) Tick(ctx context.Context) {
	deleted, err := j.store.DeleteOlderThan(ctx, j.horizon)
	if err != nil {
		j.logger.Error("deleting old messages failed", "error", err)
	} else if deleted > 0 {
		j.logger.Info("deleted old messages", "count", deleted, "horizon", j.horizon.String())
	}

	if err := j.store.ReclaimSpace(ctx); err != nil {
		j.logger.Error("reclaiming space failed", "error", err)
	}
}
