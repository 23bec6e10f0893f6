package device

import "time"

// SecurityCamera reports whether the area it watches is secure.
type SecurityCamera struct {
	base
	securityStatus SecurityStatus
}

// NewSecurityCamera creates a camera with the given initial state.
func NewSecurityCamera(id string, status Status, securityStatus SecurityStatus) (*SecurityCamera, error) {
	b, err := newBase(id, status)
	if err != nil {
		return nil, err
	}
	if !securityStatus.Valid() {
		return nil, invalidf("security status %q", securityStatus)
	}
	return &SecurityCamera{base: b, securityStatus: securityStatus}, nil
}

// Kind returns KindSecurityCamera.
func (c *SecurityCamera) Kind() Kind { return KindSecurityCamera }

// SecurityStatus returns the current camera state.
func (c *SecurityCamera) SecurityStatus() SecurityStatus { return c.securityStatus }

// SetSecurityStatus sets the camera state. Unknown values are rejected with
// ErrInvalidArgument.
func (c *SecurityCamera) SetSecurityStatus(s SecurityStatus) error {
	if !s.Valid() {
		return invalidf("security status %q", s)
	}
	c.securityStatus = s
	return nil
}

// Randomize flips the power state with probability 1/2 and picks secure or
// insecure with equal probability. Motion is never produced by randomization;
// it is only reported through SetSecurityStatus. The strategy does not apply
// to an enumerated attribute.
func (c *SecurityCamera) Randomize(rng Rand, _ Strategy) Delta {
	statusBefore := c.randomizeStatus(rng)
	before := c.securityStatus

	if rng.IntN(2) == 0 {
		c.securityStatus = SecuritySecure
	} else {
		c.securityStatus = SecurityInsecure
	}

	return Delta{
		DeviceID:     c.id,
		Kind:         KindSecurityCamera,
		StatusBefore: statusBefore,
		StatusAfter:  c.status,
		Attribute:    AttrSecurityStatus,
		Before:       before,
		After:        c.securityStatus,
	}
}

// Snapshot captures the camera's state.
func (c *SecurityCamera) Snapshot(at time.Time) Snapshot {
	securityStatus := c.securityStatus
	return Snapshot{
		ID:             c.id,
		Kind:           KindSecurityCamera,
		Status:         c.status,
		Timestamp:      at,
		SecurityStatus: &securityStatus,
	}
}

// Clone returns an independent copy.
func (c *SecurityCamera) Clone() Device {
	cpy := *c
	return &cpy
}
