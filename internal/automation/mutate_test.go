package automation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/iotsim/internal/device"
)

func TestTurnOnTurnOffToggle(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	snap, err := sys.TurnOn(ctx, "Living Room Light")
	require.NoError(t, err)
	assert.Equal(t, device.StatusOn, snap.Status)

	snap, err = sys.TurnOn(ctx, "Living Room Light")
	require.NoError(t, err)
	assert.Equal(t, device.StatusOn, snap.Status, "turning on twice stays on")

	snap, err = sys.TurnOff(ctx, "Living Room Light")
	require.NoError(t, err)
	assert.Equal(t, device.StatusOff, snap.Status)

	snap, err = sys.Toggle(ctx, "Living Room Light")
	require.NoError(t, err)
	assert.Equal(t, device.StatusOn, snap.Status)

	_, err = sys.TurnOn(ctx, "Attic Fan")
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}

func TestSetBrightness(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	snap, err := sys.SetBrightness(ctx, "Living Room Light", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, *snap.Brightness)

	_, err = sys.SetBrightness(ctx, "Living Room Light", 150)
	require.ErrorIs(t, err, device.ErrInvalidArgument)
	assert.Equal(t, 50, *sys.Report()["Living Room Light"].Brightness)

	_, err = sys.SetBrightness(ctx, "Living Room Thermostat", 50)
	assert.ErrorIs(t, err, device.ErrUnsupported)
}

func TestSetTemperature(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	snap, err := sys.SetTemperature(ctx, "Living Room Thermostat", 18.5)
	require.NoError(t, err)
	assert.Equal(t, 18.5, *snap.Temperature)

	_, err = sys.SetTemperature(ctx, "Living Room Thermostat", 31)
	assert.ErrorIs(t, err, device.ErrInvalidArgument)

	_, err = sys.SetTemperature(ctx, "Front Door Camera", 20)
	assert.ErrorIs(t, err, device.ErrUnsupported)
}

func TestSetSecurityStatus(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	snap, err := sys.SetSecurityStatus(ctx, "Front Door Camera", device.SecurityInsecure)
	require.NoError(t, err)
	assert.Equal(t, device.SecurityInsecure, *snap.SecurityStatus)

	_, err = sys.SetSecurityStatus(ctx, "Front Door Camera", "open")
	assert.ErrorIs(t, err, device.ErrInvalidArgument)

	_, err = sys.SetSecurityStatus(ctx, "Living Room Light", device.SecuritySecure)
	assert.ErrorIs(t, err, device.ErrUnsupported)
}

func TestDetectMotion(t *testing.T) {
	t.Run("toggles camera and sets motion", func(t *testing.T) {
		sys := newTestSystem(t)

		snap, err := sys.DetectMotion(context.Background(), "Front Door Camera")
		require.NoError(t, err)
		assert.Equal(t, device.SecurityMotionDetected, *snap.SecurityStatus)
		assert.Equal(t, device.StatusOn, snap.Status)

		snap, err = sys.DetectMotion(context.Background(), "Front Door Camera")
		require.NoError(t, err)
		assert.Equal(t, device.StatusOff, snap.Status)
	})

	t.Run("rule turns lights on", func(t *testing.T) {
		rec := &recorder{}
		sys := newTestSystem(t, WithMotionLights(true), WithListener(rec))
		second, _ := device.NewSmartLight("Porch Light", device.StatusOff, 0)
		require.NoError(t, sys.Discover(second))

		_, err := sys.DetectMotion(context.Background(), "Front Door Camera")
		require.NoError(t, err)

		report := sys.Report()
		assert.Equal(t, device.StatusOn, report["Living Room Light"].Status)
		assert.Equal(t, device.StatusOn, report["Porch Light"].Status)
		assert.Equal(t, device.StatusOff, report["Living Room Thermostat"].Status)

		batches := rec.all()
		require.Len(t, batches, 1)
		require.Len(t, batches[0], 3)
		assert.Equal(t, device.SourceManual, batches[0][0].Source)
		assert.Equal(t, device.SourceRule, batches[0][1].Source)
		assert.Equal(t, device.SourceRule, batches[0][2].Source)
		assert.Equal(t, batches[0][0].PassID, batches[0][2].PassID)
	})

	t.Run("rule fires only on entering motion", func(t *testing.T) {
		sys := newTestSystem(t, WithMotionLights(true))
		ctx := context.Background()

		_, err := sys.DetectMotion(ctx, "Front Door Camera")
		require.NoError(t, err)
		_, err = sys.TurnOff(ctx, "Living Room Light")
		require.NoError(t, err)

		for _, op := range []func(context.Context, string) (device.Snapshot, error){sys.TurnOff, sys.TurnOn, sys.Toggle} {
			_, err = op(ctx, "Front Door Camera")
			require.NoError(t, err)
			assert.Equal(t, device.StatusOff, sys.Report()["Living Room Light"].Status)
		}

		_, err = sys.SetSecurityStatus(ctx, "Front Door Camera", device.SecurityMotionDetected)
		require.NoError(t, err)
		assert.Equal(t, device.StatusOff, sys.Report()["Living Room Light"].Status, "already in motion_detected")

		_, err = sys.SetSecurityStatus(ctx, "Front Door Camera", device.SecuritySecure)
		require.NoError(t, err)
		_, err = sys.SetSecurityStatus(ctx, "Front Door Camera", device.SecurityMotionDetected)
		require.NoError(t, err)
		assert.Equal(t, device.StatusOn, sys.Report()["Living Room Light"].Status)
	})

	t.Run("repeated motion report fires again", func(t *testing.T) {
		sys := newTestSystem(t, WithMotionLights(true))
		ctx := context.Background()

		_, err := sys.DetectMotion(ctx, "Front Door Camera")
		require.NoError(t, err)
		_, err = sys.TurnOff(ctx, "Living Room Light")
		require.NoError(t, err)

		_, err = sys.DetectMotion(ctx, "Front Door Camera")
		require.NoError(t, err)
		assert.Equal(t, device.StatusOn, sys.Report()["Living Room Light"].Status)
	})

	t.Run("rule disabled", func(t *testing.T) {
		sys := newTestSystem(t, WithMotionLights(false))

		_, err := sys.DetectMotion(context.Background(), "Front Door Camera")
		require.NoError(t, err)
		assert.Equal(t, device.StatusOff, sys.Report()["Living Room Light"].Status)
	})

	t.Run("not a camera", func(t *testing.T) {
		sys := newTestSystem(t)
		_, err := sys.DetectMotion(context.Background(), "Living Room Light")
		assert.ErrorIs(t, err, device.ErrUnsupported)
	})
}

func TestMutate_ListenerCanCallBack(t *testing.T) {
	sys := newTestSystem(t)
	var seen int
	sys.AddListener(ListenerFunc(func(context.Context, []Change) {
		// Would deadlock if listeners ran under the lock.
		seen = len(sys.Report())
	}))

	_, err := sys.TurnOn(context.Background(), "Living Room Light")
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestMutate_RejectedChangeNotifiesNobody(t *testing.T) {
	rec := &recorder{}
	sys := newTestSystem(t, WithListener(rec))

	_, err := sys.SetBrightness(context.Background(), "Living Room Light", -1)
	require.Error(t, err)
	assert.Empty(t, rec.all())
}

func TestMutate_CallbackChangesFollowCurrentBatch(t *testing.T) {
	sys := newTestSystem(t)
	rec := &recorder{}
	var once sync.Once
	sys.AddListener(ListenerFunc(func(ctx context.Context, _ []Change) {
		once.Do(func() {
			_, err := sys.TurnOff(ctx, "Living Room Light")
			assert.NoError(t, err)
		})
	}))
	sys.AddListener(rec)

	_, err := sys.TurnOn(context.Background(), "Living Room Light")
	require.NoError(t, err)

	batches := rec.all()
	require.Len(t, batches, 2)
	assert.Equal(t, device.StatusOn, batches[0][0].Snapshot.Status)
	assert.Equal(t, device.StatusOff, batches[1][0].Snapshot.Status)
}

func TestMutate_DeliveryFollowsApplyOrder(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var delivered []device.Status
	sys.AddListener(ListenerFunc(func(_ context.Context, changes []Change) {
		once.Do(func() {
			close(entered)
			<-release
		})
		mu.Lock()
		defer mu.Unlock()
		for _, c := range changes {
			delivered = append(delivered, c.Snapshot.Status)
		}
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := sys.TurnOn(ctx, "Living Room Light")
		assert.NoError(t, err)
	}()
	<-entered

	snap, err := sys.TurnOff(ctx, "Living Room Light")
	require.NoError(t, err)
	assert.Equal(t, device.StatusOff, snap.Status)

	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []device.Status{device.StatusOn, device.StatusOff}, delivered)
	assert.Equal(t, device.StatusOff, sys.Report()["Living Room Light"].Status)
}

func TestMutate_PanickingListenerDoesNotStallDelivery(t *testing.T) {
	rec := &recorder{}
	sys := newTestSystem(t)
	sys.AddListener(ListenerFunc(func(context.Context, []Change) { panic("boom") }))
	sys.AddListener(rec)

	_, err := sys.TurnOn(context.Background(), "Living Room Light")
	require.NoError(t, err)
	_, err = sys.TurnOff(context.Background(), "Living Room Light")
	require.NoError(t, err)

	assert.Len(t, rec.all(), 2)
}
