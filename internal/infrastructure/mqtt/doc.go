// Package mqtt provides MQTT client connectivity for the simulator.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing device state (retained) and change events
//   - Subscriptions to device command topics, restored on reconnect
//   - Last Will and Testament so subscribers see the simulator go offline
//
// # Topics
//
//	iotsim/device/{slug}/state   retained JSON snapshot of one device
//	iotsim/device/{slug}/set     commands to one device
//	iotsim/event/{source}        change events (simulation, manual, rule)
//	iotsim/system/status         online/offline (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceState(device.Slug("Living Room Light"))
//	err = client.PublishRetained(topic, payload)
//
// Use TLS (mqtt.broker.tls) whenever the broker is not on localhost.
package mqtt
