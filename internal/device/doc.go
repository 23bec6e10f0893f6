// Package device models the simulated IoT devices.
//
// Every device has an id and an on/off status. Three variants add one
// kind-specific attribute each:
//
//   - SmartLight: brightness, an integer percentage in [0, 100]
//   - Thermostat: temperature in degrees Celsius, in [10, 30]
//   - SecurityCamera: security status (secure, insecure, motion_detected)
//
// Constructors and setters are strict: an out-of-range value returns
// ErrInvalidArgument and leaves the device untouched, so the bounds hold
// after every operation.
//
// # Randomization
//
// Randomize is the one polymorphic operation. It turns the device on or off
// with equal probability and then moves the attribute according to a
// Strategy:
//
//   - StrategyDrift: a bounded random walk (brightness ±10, temperature ±2),
//     clamped to the valid range
//   - StrategyResample: a fresh uniform draw over the full range
//
// The random source is passed in, so a seeded math/rand/v2 generator makes a
// run reproducible.
//
// # Journal
//
// SQLiteJournal records snapshots in the device_snapshots table for
// inspection through the API. The simulator never reads devices back from it.
//
// # Thread Safety
//
// Devices are plain values and are not safe for concurrent use. The
// automation package owns them and serialises access.
package device
