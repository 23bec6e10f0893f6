package telemetry

import (
	"context"

	"github.com/nerrad567/iotsim/internal/automation"
)

// Fanout delivers every batch of changes to each of its listeners in order.
// A panicking listener is logged and skipped; the others still run.
type Fanout struct {
	listeners []automation.Listener
	logger    Logger
}

// NewFanout creates a Fanout. Nil listeners are ignored.
func NewFanout(logger Logger, listeners ...automation.Listener) *Fanout {
	f := &Fanout{logger: orNoop(logger)}
	for _, l := range listeners {
		if l != nil {
			f.listeners = append(f.listeners, l)
		}
	}
	return f
}

// Len returns the number of listeners.
func (f *Fanout) Len() int {
	return len(f.listeners)
}

// OnChange implements automation.Listener.
func (f *Fanout) OnChange(ctx context.Context, changes []automation.Change) {
	for _, l := range f.listeners {
		f.deliver(ctx, l, changes)
	}
}

func (f *Fanout) deliver(ctx context.Context, l automation.Listener, changes []automation.Change) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("telemetry listener panic recovered", "panic", r, "changes", len(changes))
		}
	}()
	l.OnChange(ctx, changes)
}
