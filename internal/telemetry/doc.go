// Package telemetry exports device changes to the outside world.
//
// Each exporter is an automation.Listener registered on the System:
//
//   - MQTTPublisher: retained state per device plus change events
//   - InfluxWriter: one device_state point per change
//   - JournalRecorder: one SQLite journal row per change, pruned by retention
//   - Fanout: runs several listeners, isolating their panics
//
// CommandHandler is the inbound direction: it turns messages on
// iotsim/device/{slug}/set into System mutations.
//
// Every sink is write-only. Device state lives in the System and is never
// restored from MQTT, InfluxDB or the journal. Export failures are logged and
// never reach the simulation.
package telemetry
