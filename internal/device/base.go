package device

// base holds the identity and power state common to every variant.
type base struct {
	id     string
	status Status
}

func newBase(id string, status Status) (base, error) {
	if err := ValidateID(id); err != nil {
		return base{}, err
	}
	if !status.Valid() {
		return base{}, invalidf("status %q must be on or off", status)
	}
	return base{id: id, status: status}, nil
}

// ID returns the device identifier.
func (b *base) ID() string { return b.id }

// Status returns the power state.
func (b *base) Status() Status { return b.status }

// TurnOn sets the status to on. Calling it on a device that is already on is a no-op.
func (b *base) TurnOn() { b.status = StatusOn }

// TurnOff sets the status to off.
func (b *base) TurnOff() { b.status = StatusOff }

// Toggle flips the power state.
func (b *base) Toggle() {
	if b.status == StatusOn {
		b.status = StatusOff
		return
	}
	b.status = StatusOn
}

// randomizeStatus turns the device on or off with equal probability and
// returns the status before the draw.
func (b *base) randomizeStatus(rng Rand) Status {
	before := b.status
	if rng.IntN(2) == 0 {
		b.TurnOn()
	} else {
		b.TurnOff()
	}
	return before
}
