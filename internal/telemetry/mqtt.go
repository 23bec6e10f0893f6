package telemetry

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/iotsim/internal/automation"
	"github.com/nerrad567/iotsim/internal/device"
	"github.com/nerrad567/iotsim/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client the publisher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTPublisher publishes device state and change events.
//
// For every change it sends the snapshot, retained, to
// iotsim/device/{slug}/state and the full change, not retained, to
// iotsim/event/{source}.
type MQTTPublisher struct {
	client Publisher
	qos    byte
	topics mqtt.Topics
	logger Logger
}

// NewMQTTPublisher creates a publisher sending with the given QoS.
func NewMQTTPublisher(client Publisher, qos byte, logger Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, qos: qos, logger: orNoop(logger)}
}

// OnChange implements automation.Listener.
func (p *MQTTPublisher) OnChange(_ context.Context, changes []automation.Change) {
	for _, c := range changes {
		p.publishState(c)
		p.publishEvent(c)
	}
}

func (p *MQTTPublisher) publishState(c automation.Change) {
	payload, err := json.Marshal(c.Snapshot)
	if err != nil {
		p.logger.Error("marshalling device state", "device_id", c.Snapshot.ID, "error", err)
		return
	}
	topic := p.topics.DeviceState(device.TopicSlug(c.Snapshot.ID))
	if err := p.client.Publish(topic, payload, p.qos, true); err != nil {
		p.logger.Warn("publishing device state", "topic", topic, "error", err)
	}
}

func (p *MQTTPublisher) publishEvent(c automation.Change) {
	payload, err := json.Marshal(c)
	if err != nil {
		p.logger.Error("marshalling device event", "device_id", c.Snapshot.ID, "error", err)
		return
	}
	topic := p.topics.Event(string(c.Source))
	if err := p.client.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("publishing device event", "topic", topic, "error", err)
	}
}
