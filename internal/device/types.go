package device

import (
	"fmt"
	"strings"
	"time"
)

// Status is the on/off power state shared by every device.
type Status string

// Power states.
const (
	StatusOn  Status = "on"
	StatusOff Status = "off"
)

// ParseStatus converts "on"/"off" (any case) to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOn:
		return StatusOn, nil
	case StatusOff:
		return StatusOff, nil
	}
	return "", fmt.Errorf("%w: status %q must be on or off", ErrInvalidArgument, s)
}

// Valid reports whether s is one of the two power states.
func (s Status) Valid() bool {
	return s == StatusOn || s == StatusOff
}

// Kind identifies the device variant.
type Kind string

// Device kinds.
const (
	KindSmartLight     Kind = "smart_light"
	KindThermostat     Kind = "thermostat"
	KindSecurityCamera Kind = "security_camera"
)

// AllKinds returns every supported kind.
func AllKinds() []Kind {
	return []Kind{KindSmartLight, KindThermostat, KindSecurityCamera}
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindSmartLight, KindThermostat, KindSecurityCamera:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidArgument, s)
}

// SecurityStatus is the reported state of a security camera.
type SecurityStatus string

// Camera states.
const (
	SecuritySecure         SecurityStatus = "secure"
	SecurityInsecure       SecurityStatus = "insecure"
	SecurityMotionDetected SecurityStatus = "motion_detected"
)

// ParseSecurityStatus accepts the canonical values and their display forms
// ("Secure", "Motion Detected", "motion-detected") case-insensitively.
func ParseSecurityStatus(s string) (SecurityStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)

	switch SecurityStatus(norm) {
	case SecuritySecure:
		return SecuritySecure, nil
	case SecurityInsecure:
		return SecurityInsecure, nil
	case SecurityMotionDetected:
		return SecurityMotionDetected, nil
	}
	return "", fmt.Errorf("%w: unknown security status %q", ErrInvalidArgument, s)
}

// Valid reports whether s is a known camera state.
func (s SecurityStatus) Valid() bool {
	switch s {
	case SecuritySecure, SecurityInsecure, SecurityMotionDetected:
		return true
	}
	return false
}

// Strategy selects how Randomize moves kind-specific attributes.
type Strategy string

// Randomization strategies.
const (
	// StrategyDrift moves the attribute by a bounded random delta and clamps it.
	StrategyDrift Strategy = "drift"

	// StrategyResample draws a fresh value from the attribute's full range.
	StrategyResample Strategy = "resample"
)

// ParseStrategy converts a string to a Strategy. Empty selects StrategyDrift.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case "", StrategyDrift:
		return StrategyDrift, nil
	case StrategyResample:
		return StrategyResample, nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidArgument, s)
}

// Source records what caused a state change.
type Source string

// Change sources.
const (
	SourceSimulation Source = "simulation"
	SourceManual     Source = "manual"
	SourceRule       Source = "rule"
)

// Attribute bounds and defaults.
const (
	MinBrightness     = 0
	MaxBrightness     = 100
	DefaultBrightness = 0
	BrightnessDrift   = 10

	MinTemperature     = 10.0
	MaxTemperature     = 30.0
	DefaultTemperature = 22.0
	TemperatureDrift   = 2.0

	DefaultStatus         = StatusOff
	DefaultSecurityStatus = SecuritySecure
)

// Attribute names used in snapshots, deltas and telemetry.
const (
	AttrBrightness     = "brightness"
	AttrTemperature    = "temperature"
	AttrSecurityStatus = "security_status"
)

// Rand is the random source used by Randomize.
// *math/rand/v2.Rand satisfies it; a seeded PCG makes runs reproducible.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Device is the capability set shared by every simulated device.
//
// Implementations are not safe for concurrent use; the automation system
// serialises access.
type Device interface {
	ID() string
	Kind() Kind
	Status() Status

	TurnOn()
	TurnOff()
	Toggle()

	// Randomize applies one randomization step and reports what changed.
	Randomize(rng Rand, strategy Strategy) Delta

	// Snapshot captures the current state stamped with at.
	Snapshot(at time.Time) Snapshot

	// Clone returns an independent copy.
	Clone() Device
}

// Snapshot is a point-in-time record of one device.
// Exactly one of Brightness, Temperature and SecurityStatus is set,
// matching Kind.
type Snapshot struct {
	ID             string          `json:"id"`
	Kind           Kind            `json:"kind"`
	Status         Status          `json:"status"`
	Timestamp      time.Time       `json:"timestamp"`
	Brightness     *int            `json:"brightness,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	SecurityStatus *SecurityStatus `json:"security_status,omitempty"`
}

// Attribute returns the name and value of the kind-specific field.
func (s Snapshot) Attribute() (string, any) {
	switch {
	case s.Brightness != nil:
		return AttrBrightness, *s.Brightness
	case s.Temperature != nil:
		return AttrTemperature, *s.Temperature
	case s.SecurityStatus != nil:
		return AttrSecurityStatus, *s.SecurityStatus
	}
	return "", nil
}

// Delta describes the effect of a single randomization step.
type Delta struct {
	DeviceID     string `json:"device_id"`
	Kind         Kind   `json:"kind"`
	StatusBefore Status `json:"status_before"`
	StatusAfter  Status `json:"status_after"`
	Attribute    string `json:"attribute"`
	Before       any    `json:"before"`
	After        any    `json:"after"`
}

// Changed reports whether the step altered any state.
func (d Delta) Changed() bool {
	return d.StatusBefore != d.StatusAfter || d.Before != d.After
}
