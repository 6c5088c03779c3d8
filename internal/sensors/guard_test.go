package sensors

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/tipstation/internal/types"
)

type fakeAmbient struct {
	mu        sync.Mutex
	initFails int
	readFails int
	inits     int
	closes    int
	hang      bool
	reading   types.AmbientReading
}

func (f *fakeAmbient) Init(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	if f.initFails > 0 {
		f.initFails--
		return errors.New("no device at 0x76")
	}
	return nil
}

func (f *fakeAmbient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeAmbient) Read(ctx context.Context) (types.AmbientReading, error) {
	f.mu.Lock()
	hang := f.hang
	if f.readFails > 0 {
		f.readFails--
		f.mu.Unlock()
		return types.AmbientReading{}, errors.New("i2c: nack")
	}
	r := f.reading
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return types.AmbientReading{}, ctx.Err()
	}
	return r, nil
}

func (f *fakeAmbient) initCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAmbientLazyInit(t *testing.T) {
	dev := &fakeAmbient{reading: types.AmbientReading{TemperatureC: 21.5}}
	a := NewAmbient(dev, GuardOptions{BackOff: &backoff.ZeroBackOff{}})

	assert.False(t, a.Ready())
	r, err := a.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21.5, r.TemperatureC)
	assert.True(t, a.Ready())

	_, err = a.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dev.initCount(), "an initialized device is not reinitialized")
}

func TestAmbientInitBackoff(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	dev := &fakeAmbient{initFails: 2}
	a := NewAmbient(dev, GuardOptions{
		BackOff: backoff.NewConstantBackOff(10 * time.Second),
		Clock:   clock.Now,
	})
	ctx := context.Background()

	_, err := a.Read(ctx)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, 1, dev.initCount())

	// Inside the backoff window the hardware is left alone.
	clock.Advance(5 * time.Second)
	_, err = a.Read(ctx)
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, 1, dev.initCount())

	clock.Advance(6 * time.Second)
	_, err = a.Read(ctx)
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, 2, dev.initCount())

	clock.Advance(11 * time.Second)
	_, err = a.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dev.initCount())
}

func TestAmbientReadFailureReinitializes(t *testing.T) {
	dev := &fakeAmbient{readFails: 1, reading: types.AmbientReading{PressureHPa: 1000}}
	a := NewAmbient(dev, GuardOptions{BackOff: &backoff.ZeroBackOff{}})
	ctx := context.Background()

	_, err := a.Read(ctx)
	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.False(t, a.Ready())

	r, err := a.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, r.PressureHPa)
	assert.Equal(t, 2, dev.initCount())
}

func TestAmbientReadTimeout(t *testing.T) {
	dev := &fakeAmbient{hang: true}
	a := NewAmbient(dev, GuardOptions{Timeout: 20 * time.Millisecond, BackOff: &backoff.ZeroBackOff{}})

	start := time.Now()
	_, err := a.Read(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var readErr *ReadError
	assert.ErrorAs(t, err, &readErr)
	assert.Less(t, time.Since(start), time.Second)
}

// stuckAmbient ignores its context and returns only when released, like a
// driver wedged on the bus
type stuckAmbient struct {
	release     chan struct{}
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	reads       atomic.Int32
	closedBusy  atomic.Bool
	closes      atomic.Int32
}

func (f *stuckAmbient) Init(_ context.Context) error { return nil }

func (f *stuckAmbient) Close() error {
	f.closes.Add(1)
	if f.inFlight.Load() > 0 {
		f.closedBusy.Store(true)
	}
	return nil
}

func (f *stuckAmbient) Read(_ context.Context) (types.AmbientReading, error) {
	f.reads.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	<-f.release
	return types.AmbientReading{PressureHPa: 1000}, nil
}

func TestAbandonedReadKeepsDeviceBusy(t *testing.T) {
	dev := &stuckAmbient{release: make(chan struct{})}
	a := NewAmbient(dev, GuardOptions{Timeout: 20 * time.Millisecond, BackOff: &backoff.ZeroBackOff{}})
	ctx := context.Background()

	_, err := a.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = a.Read(ctx)
	assert.ErrorIs(t, err, ErrBusy)
	var readErr *ReadError
	assert.ErrorAs(t, err, &readErr)
	assert.Equal(t, int32(1), dev.reads.Load(), "driver must not be entered while busy")

	close(dev.release)
	assert.Eventually(t, func() bool {
		_, err := a.Read(ctx)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), dev.maxInFlight.Load())
	assert.NoError(t, a.Close())
	assert.False(t, dev.closedBusy.Load())
}

func TestCloseWaitsForAbandonedRead(t *testing.T) {
	dev := &stuckAmbient{release: make(chan struct{})}
	a := NewAmbient(dev, GuardOptions{Timeout: 50 * time.Millisecond, BackOff: &backoff.ZeroBackOff{}})

	_, err := a.Read(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	time.AfterFunc(10*time.Millisecond, func() { close(dev.release) })
	assert.NoError(t, a.Close())
	assert.Equal(t, int32(1), dev.closes.Load())
	assert.False(t, dev.closedBusy.Load())
}

func TestCloseLeavesWedgedDeviceAlone(t *testing.T) {
	dev := &stuckAmbient{release: make(chan struct{})}
	defer close(dev.release)
	a := NewAmbient(dev, GuardOptions{Timeout: 10 * time.Millisecond, BackOff: &backoff.ZeroBackOff{}})

	_, err := a.Read(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.ErrorIs(t, a.Close(), ErrBusy)
	assert.Zero(t, dev.closes.Load())
	assert.False(t, a.Ready())
}

func TestGuardCloseNeverInitialized(t *testing.T) {
	dev := &fakeAmbient{}
	a := NewAmbient(dev, GuardOptions{})
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
	assert.Equal(t, 0, dev.initCount())
}

func TestBoardCloseNeverOpened(t *testing.T) {
	b := NewBoard("")
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func TestAltitude(t *testing.T) {
	tests := []struct {
		name     string
		pressure float64
		want     float64
	}{
		{"sea level", 1013.25, 0},
		{"about 111m", 1000, 110.9},
		{"invalid", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Altitude(tt.pressure, 1013.25), 0.5)
		})
	}
}

func TestSimulatedAnalogTips(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	sim := &SimulatedAnalog{RainChannel: 0, TipEvery: time.Minute, TipDuration: time.Second, Clock: clock.Now}
	ctx := context.Background()
	require.NoError(t, sim.Init(ctx))

	v, err := sim.ReadVoltage(ctx, 0)
	require.NoError(t, err)
	assert.Less(t, float64(v), 0.35)

	clock.Advance(10 * time.Second)
	v, err = sim.ReadVoltage(ctx, 0)
	require.NoError(t, err)
	assert.Greater(t, float64(v), 3.5)

	v, err = sim.ReadVoltage(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, float64(v), 0.2)
}
