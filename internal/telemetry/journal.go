package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/iotsim/internal/automation"
	"github.com/nerrad567/iotsim/internal/device"
)

// journalWriteTimeout bounds one batch of journal writes.
const journalWriteTimeout = 5 * time.Second

// JournalRecorder appends every change to the snapshot journal.
type JournalRecorder struct {
	journal device.Journal
	logger  Logger
}

// NewJournalRecorder creates a JournalRecorder.
func NewJournalRecorder(journal device.Journal, logger Logger) *JournalRecorder {
	return &JournalRecorder{journal: journal, logger: orNoop(logger)}
}

// OnChange implements automation.Listener.
//
// Writes use their own timeout rather than the caller's context, so a
// request that ends right after a mutation still gets its changes recorded.
func (r *JournalRecorder) OnChange(_ context.Context, changes []automation.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	for _, c := range changes {
		if err := r.journal.Record(ctx, c.Snapshot, c.Source, c.PassID); err != nil {
			r.logger.Warn("recording device snapshot", "device_id", c.Snapshot.ID, "error", err)
		}
	}
}

// RunPruner deletes journal entries older than retention every interval
// until ctx ends. A non-positive retention or interval disables pruning.
func (r *JournalRecorder) RunPruner(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}

	r.prune(ctx, retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.prune(ctx, retention)
		}
	}
}

func (r *JournalRecorder) prune(ctx context.Context, retention time.Duration) {
	deleted, err := r.journal.Prune(ctx, retention)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("pruning snapshot journal", "error", err)
		}
		return
	}
	if deleted > 0 {
		r.logger.Info("pruned snapshot journal", "deleted", deleted, "retention", retention)
	}
}
