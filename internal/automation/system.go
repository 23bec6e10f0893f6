package automation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/iotsim/internal/device"
)

// System owns the simulated devices and drives their randomization.
//
// Devices are kept in discovery order, and every pass visits them in that
// order. All access to devices and to the random source goes through a
// single mutex, so the API, the timer loop and bootstrap can share one
// System. Callers only ever receive clones or snapshots.
type System struct {
	mu           sync.Mutex
	devices      []device.Device
	index        map[string]device.Device
	slugs        map[string]string
	rng          device.Rand
	strategy     device.Strategy
	motionLights bool
	now          func() time.Time
	logger       Logger

	listenersMu sync.RWMutex
	listeners   []Listener

	dispatchMu  sync.Mutex
	pending     []batch
	dispatching bool

	passes     atomic.Uint64
	interval   atomic.Int64
	intervalCh chan time.Duration
}

// Option configures a System.
type Option func(*System)

// WithRand sets the random source. The System serialises calls to it.
func WithRand(rng device.Rand) Option {
	return func(s *System) { s.rng = rng }
}

// WithSeed uses a PCG generator seeded with seed, making runs reproducible.
func WithSeed(seed uint64) Option {
	return func(s *System) { s.rng = rand.New(rand.NewPCG(seed, seed)) } //nolint:gosec // simulation, not crypto
}

// WithStrategy sets the randomization strategy (default StrategyDrift).
func WithStrategy(strategy device.Strategy) Option {
	return func(s *System) { s.strategy = strategy }
}

// WithClock sets the clock used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *System) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(s *System) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMotionLights enables the rule that turns every light on when a
// camera reports motion.
func WithMotionLights(enabled bool) Option {
	return func(s *System) { s.motionLights = enabled }
}

// WithListener registers a change listener.
func WithListener(l Listener) Option {
	return func(s *System) { s.listeners = append(s.listeners, l) }
}

// NewSystem creates an empty System.
func NewSystem(opts ...Option) *System {
	s := &System{
		index:      make(map[string]device.Device),
		slugs:      make(map[string]string),
		strategy:   device.StrategyDrift,
		now:        time.Now,
		logger:     noopLogger{},
		intervalCh: make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // simulation, not crypto
	}
	return s
}

// AddListener registers a change listener after construction.
func (s *System) AddListener(l Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Strategy returns the randomization strategy in use.
func (s *System) Strategy() device.Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

// SetStrategy changes the randomization strategy for subsequent passes.
func (s *System) SetStrategy(strategy device.Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy = strategy
}

// Passes returns the number of completed randomization passes.
func (s *System) Passes() uint64 {
	return s.passes.Load()
}

// Discover adds a device to the system. Discovery order is preserved.
//
// Returns:
//   - device.ErrInvalidArgument for a nil device or blank id
//   - device.ErrDeviceExists if the id has already been discovered, or if
//     its topic slug is already taken by another device
func (s *System) Discover(d device.Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", device.ErrInvalidArgument)
	}
	if err := device.ValidateID(d.ID()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[d.ID()]; exists {
		return fmt.Errorf("%w: %s", device.ErrDeviceExists, d.ID())
	}
	slug := device.TopicSlug(d.ID())
	if other, taken := s.slugs[slug]; taken {
		return fmt.Errorf("%w: %s: topic slug %q already used by %s", device.ErrDeviceExists, d.ID(), slug, other)
	}
	s.devices = append(s.devices, d)
	s.index[d.ID()] = d
	s.slugs[slug] = d.ID()

	s.logger.Info("device discovered", "device_id", d.ID(), "kind", d.Kind())
	return nil
}

// Devices returns clones of all devices in discovery order.
func (s *System) Devices() []device.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]device.Device, len(s.devices))
	for i, d := range s.devices {
		out[i] = d.Clone()
	}
	return out
}

// Device returns a clone of one device.
func (s *System) Device(id string) (device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	return d.Clone(), nil
}

// Execute runs one automation pass: every device, in discovery order,
// receives exactly one randomization step.
//
// Returns:
//   - []device.Delta: One delta per device, in discovery order
//   - error: The context error if ctx is already done
func (s *System) Execute(ctx context.Context) ([]device.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	passID := uuid.NewString()

	s.mu.Lock()
	now := s.now()
	deltas := make([]device.Delta, 0, len(s.devices))
	changes := make([]Change, 0, len(s.devices))
	for _, d := range s.devices {
		delta := d.Randomize(s.rng, s.strategy)
		s.logDelta(delta)
		deltas = append(deltas, delta)
		changes = append(changes, Change{
			PassID:   passID,
			Source:   device.SourceSimulation,
			Snapshot: d.Snapshot(now),
			Delta:    &delta,
		})
	}
	s.enqueueLocked(ctx, changes)
	s.mu.Unlock()

	s.passes.Add(1)
	s.dispatch()
	return deltas, nil
}

// RandomizeDevice applies one randomization step to a single device.
func (s *System) RandomizeDevice(ctx context.Context, id string) (device.Delta, error) {
	if err := ctx.Err(); err != nil {
		return device.Delta{}, err
	}

	s.mu.Lock()
	d, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return device.Delta{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	delta := d.Randomize(s.rng, s.strategy)
	s.logDelta(delta)
	change := Change{
		PassID:   uuid.NewString(),
		Source:   device.SourceSimulation,
		Snapshot: d.Snapshot(s.now()),
		Delta:    &delta,
	}
	s.enqueueLocked(ctx, []Change{change})
	s.mu.Unlock()

	s.dispatch()
	return delta, nil
}

// Report captures every device's current state, keyed by id. Each entry
// carries the status, the current timestamp and the kind-specific field.
// It does not change any device.
func (s *System) Report() map[string]device.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make(map[string]device.Snapshot, len(s.devices))
	for _, d := range s.devices {
		out[d.ID()] = d.Snapshot(now)
	}
	return out
}

// Snapshots is Report in discovery order.
func (s *System) Snapshots() []device.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]device.Snapshot, len(s.devices))
	for i, d := range s.devices {
		out[i] = d.Snapshot(now)
	}
	return out
}

// Simulate runs n automation passes back to back with no delay.
//
// n == 0 is a no-op. A negative n returns device.ErrInvalidArgument.
// Cancellation is checked between passes; passes already run stay applied.
func (s *System) Simulate(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: iterations must not be negative, got %d", device.ErrInvalidArgument, n)
	}

	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := s.Execute(ctx); err != nil {
			return fmt.Errorf("simulation stopped after %d of %d passes: %w", i, n, err)
		}
	}

	if n > 0 {
		s.logger.Info("simulation complete", "iterations", n, "duration", time.Since(start))
	}
	return nil
}

// logDelta reports power transitions the way a device would announce them.
func (s *System) logDelta(delta device.Delta) {
	if delta.StatusBefore != delta.StatusAfter {
		s.logStatus(delta.DeviceID, delta.StatusAfter)
	}
	s.logger.Debug("device randomized",
		"device_id", delta.DeviceID,
		"attribute", delta.Attribute,
		"before", delta.Before,
		"after", delta.After,
	)
}

func (s *System) logStatus(id string, status device.Status) {
	s.logger.Debug(fmt.Sprintf("%s turned %s", id, status), "device_id", id, "status", status)
}

// batch is one set of changes waiting for delivery.
type batch struct {
	ctx     context.Context
	changes []Change
}

// enqueueLocked queues changes for delivery. It must be called with s.mu
// held, so the queue follows the order changes were applied in.
func (s *System) enqueueLocked(ctx context.Context, changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.dispatchMu.Lock()
	s.pending = append(s.pending, batch{ctx: ctx, changes: changes})
	s.dispatchMu.Unlock()
}

// dispatch delivers queued batches to every listener, oldest first. It must
// be called without s.mu held. Only one goroutine delivers at a time: a
// caller that finds delivery in progress returns at once and its batch is
// delivered by the goroutine already dispatching. This includes a listener
// calling back into the System.
func (s *System) dispatch() {
	s.dispatchMu.Lock()
	if s.dispatching {
		s.dispatchMu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.pending) > 0 {
		b := s.pending[0]
		s.pending[0] = batch{}
		s.pending = s.pending[1:]
		s.dispatchMu.Unlock()

		s.deliver(b)

		s.dispatchMu.Lock()
	}
	s.dispatching = false
	s.dispatchMu.Unlock()
}

func (s *System) deliver(b batch) {
	s.listenersMu.RLock()
	listeners := s.listeners
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		s.deliverOne(l, b)
	}
}

// deliverOne keeps a panicking listener from stalling the queue.
func (s *System) deliverOne(l Listener, b batch) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("listener panicked", "panic", r)
		}
	}()
	l.OnChange(b.ctx, b.changes)
}
