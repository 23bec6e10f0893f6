package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceState is the measurement every device snapshot is written to.
const MeasurementDeviceState = "device_state"

// WriteDeviceState writes one device snapshot.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Failures surface through the SetOnError callback.
//
// Parameters:
//   - deviceID: Device id, stored as the device_id tag
//   - kind: Device kind, stored as the kind tag
//   - source: What caused the change, stored as the source tag
//   - fields: Numeric and string readings (status, brightness, temperature, ...)
//   - at: Timestamp of the snapshot
//
// Example:
//
//	client.WriteDeviceState("Living Room Thermostat", "thermostat", "simulation",
//	    map[string]any{"on": 1, "temperature": 21.4}, time.Now())
func (c *Client) WriteDeviceState(deviceID, kind, source string, fields map[string]any, at time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(newDeviceStatePoint(deviceID, kind, source, fields, at))
	c.written.Add(1)
}

func newDeviceStatePoint(deviceID, kind, source string, fields map[string]any, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"device_id": deviceID,
			"kind":      kind,
			"source":    source,
		},
		fields,
		at,
	)
}
