package automation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/iotsim/internal/device"
)

// TurnOn switches a device on.
func (s *System) TurnOn(ctx context.Context, id string) (device.Snapshot, error) {
	return s.mutate(ctx, id, func(d device.Device) error {
		d.TurnOn()
		return nil
	})
}

// TurnOff switches a device off.
func (s *System) TurnOff(ctx context.Context, id string) (device.Snapshot, error) {
	return s.mutate(ctx, id, func(d device.Device) error {
		d.TurnOff()
		return nil
	})
}

// Toggle flips a device's power state.
func (s *System) Toggle(ctx context.Context, id string) (device.Snapshot, error) {
	return s.mutate(ctx, id, func(d device.Device) error {
		d.Toggle()
		return nil
	})
}

// SetBrightness sets a light's brightness.
//
// Returns device.ErrUnsupported if the device is not a light and
// device.ErrInvalidArgument if v is outside [0, 100].
func (s *System) SetBrightness(ctx context.Context, id string, v int) (device.Snapshot, error) {
	return s.mutate(ctx, id, func(d device.Device) error {
		l, ok := d.(*device.SmartLight)
		if !ok {
			return unsupported(d, "brightness")
		}
		return l.SetBrightness(v)
	})
}

// SetTemperature sets a thermostat's temperature.
func (s *System) SetTemperature(ctx context.Context, id string, v float64) (device.Snapshot, error) {
	return s.mutate(ctx, id, func(d device.Device) error {
		t, ok := d.(*device.Thermostat)
		if !ok {
			return unsupported(d, "temperature")
		}
		return t.SetTemperature(v)
	})
}

// SetSecurityStatus sets a camera's security status. Moving a camera into
// motion_detected triggers the motion rule when it is enabled.
func (s *System) SetSecurityStatus(ctx context.Context, id string, status device.SecurityStatus) (device.Snapshot, error) {
	return s.mutate(ctx, id, func(d device.Device) error {
		c, ok := d.(*device.SecurityCamera)
		if !ok {
			return unsupported(d, "security status")
		}
		return c.SetSecurityStatus(status)
	})
}

// DetectMotion reports motion on a camera: the security status becomes
// motion_detected and the camera's power state is toggled. Every report
// triggers the motion rule, even on a camera already in motion_detected.
func (s *System) DetectMotion(ctx context.Context, id string) (device.Snapshot, error) {
	return s.mutateMotion(ctx, id, true, func(d device.Device) error {
		c, ok := d.(*device.SecurityCamera)
		if !ok {
			return unsupported(d, "motion detection")
		}
		if err := c.SetSecurityStatus(device.SecurityMotionDetected); err != nil {
			return err
		}
		c.Toggle()
		return nil
	})
}

// mutate applies fn to one device under the lock, runs the rules and
// notifies listeners. It returns the device's state after fn.
func (s *System) mutate(ctx context.Context, id string, fn func(device.Device) error) (device.Snapshot, error) {
	return s.mutateMotion(ctx, id, false, fn)
}

// mutateMotion is mutate with the motion rule forced when motion is true.
// Otherwise the rule runs only when fn moves a camera into motion_detected.
func (s *System) mutateMotion(ctx context.Context, id string, motion bool, fn func(device.Device) error) (device.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return device.Snapshot{}, err
	}
	passID := uuid.NewString()

	s.mu.Lock()
	d, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return device.Snapshot{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}

	before := d.Status()
	wasMotion := inMotion(d)
	if err := fn(d); err != nil {
		s.mu.Unlock()
		return device.Snapshot{}, err
	}
	if d.Status() != before {
		s.logStatus(id, d.Status())
	}

	now := s.now()
	snap := d.Snapshot(now)
	changes := []Change{{PassID: passID, Source: device.SourceManual, Snapshot: snap}}
	if motion || !wasMotion {
		changes = append(changes, s.applyRulesLocked(d, passID)...)
	}
	s.enqueueLocked(ctx, changes)
	s.mu.Unlock()

	s.dispatch()
	return snap, nil
}

// applyRulesLocked runs the automation rules triggered by a change to d.
// The only rule turns every light on when a camera reports motion.
func (s *System) applyRulesLocked(d device.Device, passID string) []Change {
	if !s.motionLights {
		return nil
	}
	c, ok := d.(*device.SecurityCamera)
	if !ok || c.SecurityStatus() != device.SecurityMotionDetected {
		return nil
	}

	now := s.now()
	var changes []Change
	for _, other := range s.devices {
		if other.Kind() != device.KindSmartLight || other.Status() == device.StatusOn {
			continue
		}
		other.TurnOn()
		s.logStatus(other.ID(), device.StatusOn)
		changes = append(changes, Change{PassID: passID, Source: device.SourceRule, Snapshot: other.Snapshot(now)})
	}

	if len(changes) > 0 {
		s.logger.Info("motion detected, lights turned on", "camera_id", c.ID(), "lights", len(changes))
	}
	return changes
}

func inMotion(d device.Device) bool {
	c, ok := d.(*device.SecurityCamera)
	return ok && c.SecurityStatus() == device.SecurityMotionDetected
}

func unsupported(d device.Device, what string) error {
	return fmt.Errorf("%w: %s on %s %q", device.ErrUnsupported, what, d.Kind(), d.ID())
}
