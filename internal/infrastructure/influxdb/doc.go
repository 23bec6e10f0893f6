// Package influxdb provides InfluxDB connectivity for the simulator.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// Every applied device change becomes one point in the device_state
// measurement, tagged by device_id, kind and source.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("Living Room Light", "smart_light", "simulation",
//	    map[string]any{"on": 1, "brightness": 80}, time.Now())
//
// # Error Handling
//
// Writes never block or return errors; batch failures are delivered to the
// SetOnError callback. Connection and health check errors are returned directly.
package influxdb
