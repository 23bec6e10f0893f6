package device

import "time"

// Thermostat reports a temperature in degrees Celsius within [10, 30].
type Thermostat struct {
	base
	temperature float64
}

// NewThermostat creates a thermostat with the given initial state.
func NewThermostat(id string, status Status, temperature float64) (*Thermostat, error) {
	b, err := newBase(id, status)
	if err != nil {
		return nil, err
	}
	if err := validateTemperature(temperature); err != nil {
		return nil, err
	}
	return &Thermostat{base: b, temperature: temperature}, nil
}

// Kind returns KindThermostat.
func (t *Thermostat) Kind() Kind { return KindThermostat }

// Temperature returns the current temperature.
func (t *Thermostat) Temperature() float64 { return t.temperature }

// SetTemperature sets the temperature. NaN and values outside [10, 30] are
// rejected with ErrInvalidArgument.
func (t *Thermostat) SetTemperature(v float64) error {
	if err := validateTemperature(v); err != nil {
		return err
	}
	t.temperature = v
	return nil
}

// Randomize flips the power state with probability 1/2 and moves the
// temperature, either by a clamped uniform drift in [-2, 2] or by a fresh
// uniform draw over [10, 30].
func (t *Thermostat) Randomize(rng Rand, strategy Strategy) Delta {
	statusBefore := t.randomizeStatus(rng)
	before := t.temperature

	switch strategy {
	case StrategyResample:
		t.temperature = uniform(rng, MinTemperature, MaxTemperature)
	default:
		delta := uniform(rng, -TemperatureDrift, TemperatureDrift)
		t.temperature = clampFloat(t.temperature+delta, MinTemperature, MaxTemperature)
	}

	return Delta{
		DeviceID:     t.id,
		Kind:         KindThermostat,
		StatusBefore: statusBefore,
		StatusAfter:  t.status,
		Attribute:    AttrTemperature,
		Before:       before,
		After:        t.temperature,
	}
}

// Snapshot captures the thermostat's state.
func (t *Thermostat) Snapshot(at time.Time) Snapshot {
	temperature := t.temperature
	return Snapshot{
		ID:          t.id,
		Kind:        KindThermostat,
		Status:      t.status,
		Timestamp:   at,
		Temperature: &temperature,
	}
}

// Clone returns an independent copy.
func (t *Thermostat) Clone() Device {
	cpy := *t
	return &cpy
}
