package device

import (
	"context"
	"time"
)

// JournalEntry is one recorded snapshot.
type JournalEntry struct {
	ID       int64    `json:"id"`
	Snapshot Snapshot `json:"snapshot"`

	// Source is what caused the change (simulation, manual, rule).
	Source Source `json:"source"`

	// PassID groups every change produced by one pass or one request.
	PassID string `json:"pass_id"`
}

// Journal stores device snapshots for later inspection.
//
// The journal is write-only from the simulator's point of view: device state
// is never restored from it. Implementations must be safe for concurrent use.
type Journal interface {
	// Record appends a snapshot.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - snap: Snapshot to store; its Timestamp becomes the record time
	//   - source: Origin of the change
	//   - passID: Identifier shared by changes from the same pass
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	Record(ctx context.Context, snap Snapshot, source Source, passID string) error

	// History returns the most recent entries for a device, newest first.
	// Limit is clamped to a sane range by the implementation.
	History(ctx context.Context, deviceID string, limit int) ([]JournalEntry, error)

	// Prune deletes entries recorded before now minus olderThan.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
