package acquisition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bedmonitor-go/drivers/envsensor"
	"bedmonitor-go/errcode"
	"bedmonitor-go/state"
	"bedmonitor-go/x/syncx"
)

type fakeTilt struct {
	ax, ay, az int16
	err        error
	reads      int
}

func (f *fakeTilt) Wake() error { return nil }

func (f *fakeTilt) ReadAxes() (int16, int16, int16, error) {
	f.reads++
	return f.ax, f.ay, f.az, f.err
}

type fakeEnv struct {
	reading  envsensor.Reading
	err      error
	triggers int
	collects int
}

func (f *fakeEnv) Reset() error     { return nil }
func (f *fakeEnv) Calibrate() error { return nil }

func (f *fakeEnv) Trigger() (time.Duration, error) {
	f.triggers++
	return 0, nil
}

func (f *fakeEnv) Collect() (envsensor.Reading, error) {
	f.collects++
	return f.reading, f.err
}

func newTestService(t *testing.T) (*Service, *state.Store, *fakeTilt, *fakeEnv) {
	t.Helper()
	store := state.New(state.SafeRange{Min: 30, Max: 45}, 50*time.Millisecond)
	ft := &fakeTilt{az: 16384} // flat: gravity fully on Z, angle 0
	fe := &fakeEnv{reading: envsensor.Reading{Temperature: 36.5, Humidity: 55.0}}
	svc := New(store, syncx.NewTimedMutex(), ft, fe, zap.NewNop())
	return svc, store, ft, fe
}

func TestTiltReadEveryCycle(t *testing.T) {
	svc, store, ft, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc.Tick(ctx)
	}
	assert.Equal(t, 5, ft.reads)

	snap, ok := store.Snapshot()
	require.True(t, ok)
	assert.InDelta(t, 0.0, snap.Angle, 0.01)
	assert.True(t, snap.AlertActive) // 0° is below the safe range
	assert.False(t, snap.DataValid)  // no env read yet
}

func TestEnvReadOnStride(t *testing.T) {
	svc, store, _, fe := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2*EnvReadStride; i++ {
		svc.Tick(ctx)
	}
	assert.Equal(t, 2, fe.triggers)
	assert.Equal(t, 2, fe.collects)

	snap, ok := store.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.DataValid)
	assert.InDelta(t, 36.5, snap.Temperature, 0.01)
	assert.InDelta(t, 55.0, snap.Humidity, 0.01)
}

func TestEnvBusyKeepsPreviousValues(t *testing.T) {
	svc, store, _, fe := newTestService(t)
	ctx := context.Background()

	for i := 0; i < EnvReadStride; i++ {
		svc.Tick(ctx)
	}
	snap, ok := store.Snapshot()
	require.True(t, ok)
	require.True(t, snap.DataValid)

	fe.err = &errcode.E{C: errcode.NotReady, Op: "envsensor.Collect"}
	fe.reading = envsensor.Reading{Temperature: -40, Humidity: 0}
	for i := 0; i < EnvReadStride; i++ {
		svc.Tick(ctx)
	}

	snap, ok = store.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.DataValid, "validity never reverts")
	assert.InDelta(t, 36.5, snap.Temperature, 0.01)
	assert.InDelta(t, 55.0, snap.Humidity, 0.01)
}

func TestTiltErrorKeepsPreviousAngle(t *testing.T) {
	svc, store, ft, _ := newTestService(t)
	ctx := context.Background()

	// First cycle reads a 45° tilt (equal gravity on X and Z).
	ft.ax, ft.az = 16384, 16384
	svc.Tick(ctx)

	ft.err = errors.New("bus fault")
	ft.ax, ft.az = 0, 16384
	svc.Tick(ctx)

	snap, ok := store.Snapshot()
	require.True(t, ok)
	assert.InDelta(t, 45.0, snap.Angle, 0.01)
}

func TestBusContentionSkipsReadButUpdatesStore(t *testing.T) {
	svc, store, ft, _ := newTestService(t)
	ctx := context.Background()

	ft.ax, ft.az = 16384, 16384
	svc.Tick(ctx)
	require.Equal(t, 1, ft.reads)

	// Hold the sensor bus; the tilt read is skipped but the cycle still
	// refreshes the store with the previous angle.
	require.True(t, svc.bus.TryLockFor(0))
	done := make(chan struct{})
	go func() {
		svc.Tick(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick stalled on contended bus")
	}
	svc.bus.Unlock()

	assert.Equal(t, 1, ft.reads)
	snap, ok := store.Snapshot()
	require.True(t, ok)
	assert.InDelta(t, 45.0, snap.Angle, 0.01)
}
