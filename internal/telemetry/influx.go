package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/iotsim/internal/automation"
	"github.com/nerrad567/iotsim/internal/device"
)

// PointWriter is the subset of the InfluxDB client the writer needs.
type PointWriter interface {
	WriteDeviceState(deviceID, kind, source string, fields map[string]any, at time.Time)
}

// InfluxWriter writes each change as a device_state point with an on field
// (0 or 1) and the kind-specific field.
type InfluxWriter struct {
	client PointWriter
}

// NewInfluxWriter creates an InfluxWriter.
func NewInfluxWriter(client PointWriter) *InfluxWriter {
	return &InfluxWriter{client: client}
}

// OnChange implements automation.Listener.
func (w *InfluxWriter) OnChange(_ context.Context, changes []automation.Change) {
	for _, c := range changes {
		snap := c.Snapshot
		w.client.WriteDeviceState(snap.ID, string(snap.Kind), string(c.Source), pointFields(snap), snap.Timestamp)
	}
}

func pointFields(snap device.Snapshot) map[string]any {
	on := 0
	if snap.Status == device.StatusOn {
		on = 1
	}
	fields := map[string]any{"on": on}

	switch name, value := snap.Attribute(); v := value.(type) {
	case int, float64:
		fields[name] = v
	case device.SecurityStatus:
		fields[name] = string(v)
	}
	return fields
}
