package automation

import (
	"context"

	"github.com/nerrad567/iotsim/internal/device"
)

// Change is one applied state change.
type Change struct {
	// PassID is shared by every change from the same pass or request.
	PassID string `json:"pass_id"`

	// Source is what caused the change.
	Source device.Source `json:"source"`

	// Snapshot is the device state after the change.
	Snapshot device.Snapshot `json:"snapshot"`

	// Delta is set for randomization steps only.
	Delta *device.Delta `json:"delta,omitempty"`
}

// Listener receives the changes applied by one pass or one request.
//
// OnChange is called after the System has released its lock, so a listener
// may call back into the System. Batches arrive one at a time in the order
// they were applied; under concurrent use a batch may be delivered on another
// caller's goroutine, and a callback's own changes follow the current batch.
// Listeners handle their own errors; nothing they do can fail the pass.
type Listener interface {
	OnChange(ctx context.Context, changes []Change)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, changes []Change)

// OnChange calls f(ctx, changes).
func (f ListenerFunc) OnChange(ctx context.Context, changes []Change) {
	f(ctx, changes)
}
