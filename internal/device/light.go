package device

import (
	"math"
	"time"
)

// SmartLight is a dimmable light. Brightness is a percentage in [0, 100].
type SmartLight struct {
	base
	brightness int
}

// NewSmartLight creates a light with the given initial state.
//
// Returns ErrInvalidArgument for a blank id, an invalid status or a
// brightness outside [MinBrightness, MaxBrightness].
func NewSmartLight(id string, status Status, brightness int) (*SmartLight, error) {
	b, err := newBase(id, status)
	if err != nil {
		return nil, err
	}
	if err := validateBrightness(brightness); err != nil {
		return nil, err
	}
	return &SmartLight{base: b, brightness: brightness}, nil
}

// Kind returns KindSmartLight.
func (l *SmartLight) Kind() Kind { return KindSmartLight }

// Brightness returns the current brightness percentage.
func (l *SmartLight) Brightness() int { return l.brightness }

// SetBrightness sets the brightness. Values outside [0, 100] are rejected
// with ErrInvalidArgument and leave the light unchanged.
func (l *SmartLight) SetBrightness(v int) error {
	if err := validateBrightness(v); err != nil {
		return err
	}
	l.brightness = v
	return nil
}

// Randomize flips the power state with probability 1/2 and moves brightness.
//
// Drift adds a uniform delta in [-BrightnessDrift, BrightnessDrift], rounds
// to the nearest integer and clamps. Resample picks a uniform integer in
// [0, 100].
func (l *SmartLight) Randomize(rng Rand, strategy Strategy) Delta {
	statusBefore := l.randomizeStatus(rng)
	before := l.brightness

	switch strategy {
	case StrategyResample:
		l.brightness = MinBrightness + rng.IntN(MaxBrightness-MinBrightness+1)
	default:
		delta := uniform(rng, -BrightnessDrift, BrightnessDrift)
		l.brightness = clampInt(int(math.Round(float64(l.brightness)+delta)), MinBrightness, MaxBrightness)
	}

	return Delta{
		DeviceID:     l.id,
		Kind:         KindSmartLight,
		StatusBefore: statusBefore,
		StatusAfter:  l.status,
		Attribute:    AttrBrightness,
		Before:       before,
		After:        l.brightness,
	}
}

// Snapshot captures the light's state.
func (l *SmartLight) Snapshot(at time.Time) Snapshot {
	brightness := l.brightness
	return Snapshot{
		ID:         l.id,
		Kind:       KindSmartLight,
		Status:     l.status,
		Timestamp:  at,
		Brightness: &brightness,
	}
}

// Clone returns an independent copy.
func (l *SmartLight) Clone() Device {
	cpy := *l
	return &cpy
}
