// Package automation drives the simulated devices.
//
// System owns every discovered device and is the only way to change one.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                   System (system.go)                   │
//	│                                                       │
//	│   Discover ──▶ devices (discovery order) + id index    │
//	│                                                       │
//	│   Execute ── one Randomize step per device ──┐        │
//	│   Simulate(n) ── n × Execute                 │        │
//	│   Run ── Execute every interval (runner.go)  │        │
//	│   TurnOn/SetBrightness/... (mutate.go) ──────┤        │
//	│        └─▶ motion rule (lights on)           │        │
//	│                                              ▼        │
//	│                         Listeners: []Change            │
//	└───────────────────────────────────────────────────────┘
//	          │              │              │             │
//	          ▼              ▼              ▼             ▼
//	     WebSocket hub    MQTT state    InfluxDB      SQLite journal
//
// # Key Types
//
//   - System: Device owner, randomization driver and timer loop
//   - Change: One applied change (snapshot, source, pass id)
//   - Listener: Receives the changes of each pass or request
//
// # Thread Safety
//
// System is safe for concurrent use. A single mutex guards the devices and
// the random source; listeners run after it is released.
//
// # Usage
//
//	sys := automation.NewSystem(
//	    automation.WithSeed(42),
//	    automation.WithLogger(log),
//	    automation.WithMotionLights(true),
//	)
//	light, _ := device.NewSmartLight("Living Room Light", device.StatusOff, 0)
//	if err := sys.Discover(light); err != nil {
//	    return err
//	}
//	if err := sys.Simulate(ctx, 3); err != nil {
//	    return err
//	}
//	report := sys.Report()
package automation
