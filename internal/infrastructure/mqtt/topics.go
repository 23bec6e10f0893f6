package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the simulator uses.
const TopicPrefix = "iotsim"

// Topics provides builders for simulator MQTT topics.
//
// Device topics are keyed by the device slug, because ids such as
// "Living Room Light" contain spaces:
//
//	topics := mqtt.Topics{}
//	topics.DeviceState("living-room-light")
//	// Returns: "iotsim/device/living-room-light/state"
type Topics struct{}

// DeviceState returns the retained state topic of a device.
func (Topics) DeviceState(slug string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, slug)
}

// DeviceSet returns the command topic of a device.
func (Topics) DeviceSet(slug string) string {
	return fmt.Sprintf("%s/device/%s/set", TopicPrefix, slug)
}

// Event returns the topic for change events from one source
// (simulation, manual, rule).
func (Topics) Event(source string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, source)
}

// SystemStatus returns the retained online/offline topic (also the LWT topic).
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllDeviceStates matches every device state topic.
func (Topics) AllDeviceStates() string {
	return TopicPrefix + "/device/+/state"
}

// AllDeviceSets matches every device command topic.
func (Topics) AllDeviceSets() string {
	return TopicPrefix + "/device/+/set"
}

// AllTopics matches every simulator topic.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// DeviceSlug extracts the slug from a device topic. It returns false for
// topics outside iotsim/device/{slug}/....
func (Topics) DeviceSlug(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "device" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
