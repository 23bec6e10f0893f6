package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/iotsim/internal/device"
)

// recorder captures every batch delivered to a listener.
type recorder struct {
	mu      sync.Mutex
	batches [][]Change
}

func (r *recorder) OnChange(_ context.Context, changes []Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changes)
}

func (r *recorder) all() [][]Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]Change(nil), r.batches...)
}

var fixedNow = time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

// newTestSystem creates a seeded System with the three bootstrap devices.
func newTestSystem(t *testing.T, opts ...Option) *System {
	t.Helper()

	opts = append([]Option{WithSeed(7), WithClock(func() time.Time { return fixedNow })}, opts...)
	sys := NewSystem(opts...)

	light, err := device.NewSmartLight("Living Room Light", device.StatusOff, 0)
	require.NoError(t, err)
	thermo, err := device.NewThermostat("Living Room Thermostat", device.StatusOff, 22)
	require.NoError(t, err)
	cam, err := device.NewSecurityCamera("Front Door Camera", device.StatusOff, device.SecuritySecure)
	require.NoError(t, err)

	for _, d := range []device.Device{light, thermo, cam} {
		require.NoError(t, sys.Discover(d))
	}
	return sys
}

func TestDiscover(t *testing.T) {
	sys := newTestSystem(t)

	devices := sys.Devices()
	require.Len(t, devices, 3)
	assert.Equal(t, "Living Room Light", devices[0].ID())
	assert.Equal(t, "Living Room Thermostat", devices[1].ID())
	assert.Equal(t, "Front Door Camera", devices[2].ID())

	dup, _ := device.NewSmartLight("Living Room Light", device.StatusOn, 10)
	assert.ErrorIs(t, sys.Discover(dup), device.ErrDeviceExists)
	assert.ErrorIs(t, sys.Discover(nil), device.ErrInvalidArgument)
	assert.Len(t, sys.Devices(), 3)
}

func TestDiscover_RejectsTopicSlugClash(t *testing.T) {
	sys := newTestSystem(t)

	porch, _ := device.NewSmartLight("Porch Light", device.StatusOff, 0)
	require.NoError(t, sys.Discover(porch))

	clash, _ := device.NewSmartLight("porch_light", device.StatusOff, 0)
	err := sys.Discover(clash)
	require.ErrorIs(t, err, device.ErrDeviceExists)
	assert.Contains(t, err.Error(), "Porch Light")

	_, err = sys.Device("porch_light")
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
	assert.Len(t, sys.Devices(), 4)
}

func TestDevices_ReturnsClones(t *testing.T) {
	sys := newTestSystem(t)

	got := sys.Devices()[0]
	got.TurnOn()

	again, err := sys.Device("Living Room Light")
	require.NoError(t, err)
	assert.Equal(t, device.StatusOff, again.Status())

	_, err = sys.Device("Garage Light")
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}

func TestExecute_OneStepPerDeviceInOrder(t *testing.T) {
	rec := &recorder{}
	sys := newTestSystem(t, WithListener(rec))

	deltas, err := sys.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, deltas, 3)
	assert.Equal(t, "Living Room Light", deltas[0].DeviceID)
	assert.Equal(t, "Living Room Thermostat", deltas[1].DeviceID)
	assert.Equal(t, "Front Door Camera", deltas[2].DeviceID)
	assert.Equal(t, uint64(1), sys.Passes())

	batches := rec.all()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	passID := batches[0][0].PassID
	assert.NotEmpty(t, passID)
	for _, c := range batches[0] {
		assert.Equal(t, passID, c.PassID)
		assert.Equal(t, device.SourceSimulation, c.Source)
		require.NotNil(t, c.Delta)
		assert.Equal(t, c.Delta.DeviceID, c.Snapshot.ID)
	}
}

func TestExecute_EmptySystem(t *testing.T) {
	rec := &recorder{}
	sys := NewSystem(WithListener(rec))

	deltas, err := sys.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deltas)
	assert.Empty(t, rec.all(), "no listener call without changes")
}

func TestRandomizeDevice(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, err := sys.RandomizeDevice(ctx, "Living Room Thermostat")
		require.NoError(t, err)

		snap := sys.Report()["Living Room Thermostat"]
		require.NotNil(t, snap.Temperature)
		require.GreaterOrEqual(t, *snap.Temperature, device.MinTemperature)
		require.LessOrEqual(t, *snap.Temperature, device.MaxTemperature)
	}

	_, err := sys.RandomizeDevice(ctx, "nope")
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}

func TestSimulate_ReportHasOneEntryPerDevice(t *testing.T) {
	sys := newTestSystem(t)

	require.NoError(t, sys.Simulate(context.Background(), 5))
	assert.Equal(t, uint64(5), sys.Passes())

	report := sys.Report()
	require.Len(t, report, 3)

	light := report["Living Room Light"]
	require.NotNil(t, light.Brightness)
	assert.True(t, light.Status.Valid())
	assert.Equal(t, fixedNow, light.Timestamp)
	assert.GreaterOrEqual(t, *light.Brightness, device.MinBrightness)
	assert.LessOrEqual(t, *light.Brightness, device.MaxBrightness)

	thermo := report["Living Room Thermostat"]
	require.NotNil(t, thermo.Temperature)
	assert.Nil(t, thermo.Brightness)

	cam := report["Front Door Camera"]
	require.NotNil(t, cam.SecurityStatus)
	assert.Contains(t, []device.SecurityStatus{device.SecuritySecure, device.SecurityInsecure}, *cam.SecurityStatus)
}

func TestSimulate_Iterations(t *testing.T) {
	t.Run("zero is a no-op", func(t *testing.T) {
		sys := newTestSystem(t)
		before := sys.Report()

		require.NoError(t, sys.Simulate(context.Background(), 0))
		assert.Equal(t, before, sys.Report())
		assert.Zero(t, sys.Passes())
	})

	t.Run("negative is rejected", func(t *testing.T) {
		sys := newTestSystem(t)
		assert.ErrorIs(t, sys.Simulate(context.Background(), -1), device.ErrInvalidArgument)
	})

	t.Run("cancelled context stops", func(t *testing.T) {
		sys := newTestSystem(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := sys.Simulate(ctx, 3)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Zero(t, sys.Passes())
	})
}

func TestSimulate_SameSeedSameReport(t *testing.T) {
	a := newTestSystem(t, WithSeed(99))
	b := newTestSystem(t, WithSeed(99))

	require.NoError(t, a.Simulate(context.Background(), 20))
	require.NoError(t, b.Simulate(context.Background(), 20))

	assert.Equal(t, a.Report(), b.Report())
}

func TestSimulate_ResampleStrategyStaysInBounds(t *testing.T) {
	sys := newTestSystem(t, WithStrategy(device.StrategyResample))
	assert.Equal(t, device.StrategyResample, sys.Strategy())

	require.NoError(t, sys.Simulate(context.Background(), 500))

	report := sys.Report()
	assert.LessOrEqual(t, *report["Living Room Light"].Brightness, device.MaxBrightness)
	assert.GreaterOrEqual(t, *report["Living Room Thermostat"].Temperature, device.MinTemperature)
}

func TestReport_IsSideEffectFree(t *testing.T) {
	sys := newTestSystem(t)
	require.NoError(t, sys.Simulate(context.Background(), 2))

	assert.Equal(t, sys.Report(), sys.Report())
	assert.Equal(t, uint64(2), sys.Passes())
}

func TestSnapshots_DiscoveryOrder(t *testing.T) {
	sys := newTestSystem(t)

	snaps := sys.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, device.KindSmartLight, snaps[0].Kind)
	assert.Equal(t, device.KindThermostat, snaps[1].Kind)
	assert.Equal(t, device.KindSecurityCamera, snaps[2].Kind)
}

func TestSystem_ConcurrentUse(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch (i + j) % 4 {
				case 0:
					_, _ = sys.Execute(ctx)
				case 1:
					_, _ = sys.Toggle(ctx, "Living Room Light")
				case 2:
					_ = sys.Report()
				default:
					_ = sys.Devices()
				}
			}
		}(i)
	}
	wg.Wait()

	snap := sys.Report()["Living Room Light"]
	assert.True(t, snap.Status.Valid())
}
