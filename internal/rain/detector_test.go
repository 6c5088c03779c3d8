package rain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/tipstation/internal/types"
)

var epoch = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

const poll = 50 * time.Millisecond

func feed(d *Detector, volts []types.Voltage, start time.Time, step time.Duration) {
	for i, v := range volts {
		d.Observe(v, start.Add(time.Duration(i)*step))
	}
}

func TestLevelCrossing(t *testing.T) {
	tests := []struct {
		name  string
		volts []types.Voltage
		want  uint64
	}{
		{"single occlusion", []types.Voltage{4.0, 4.0, 0.2, 0.2, 4.0}, 1},
		{"never occluded", []types.Voltage{4.0, 3.9, 4.1, 4.0}, 0},
		{"starts occluded", []types.Voltage{0.1, 0.1, 0.1}, 1},
		{"sustained occlusion", []types.Voltage{4.0, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2}, 1},
		{"threshold is not below", []types.Voltage{4.0, 0.35, 4.0}, 0},
		{"two separate tips", []types.Voltage{4.0, 0.2, 4.0, 4.0, 4.0, 4.0, 4.0, 0.2, 4.0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(LevelCrossing{Threshold: 0.35, MinTipInterval: 250 * time.Millisecond})
			feed(d, tt.volts, epoch, poll)
			assert.Equal(t, tt.want, d.TipCount())
		})
	}
}

func TestLevelCrossingDebounce(t *testing.T) {
	d := NewDetector(LevelCrossing{Threshold: 0.35, MinTipInterval: 250 * time.Millisecond})

	_, ok := d.Observe(0.2, epoch)
	require.True(t, ok)

	// Ringing: clear and occluded again 100ms later is inside the window.
	d.Observe(4.0, epoch.Add(50*time.Millisecond))
	_, ok = d.Observe(0.2, epoch.Add(100*time.Millisecond))
	assert.False(t, ok)
	assert.True(t, d.State().Armed, "an edge inside the window is consumed")

	// The consumed edge is not counted late while the beam stays blocked.
	_, ok = d.Observe(0.2, epoch.Add(400*time.Millisecond))
	assert.False(t, ok)

	d.Observe(4.0, epoch.Add(450*time.Millisecond))
	ev, ok := d.Observe(0.2, epoch.Add(500*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, uint64(2), ev.TipCount)
}

func TestDeltaDebounce(t *testing.T) {
	policy := DeltaDebounce{DeltaThreshold: 1.0, MinTipInterval: 250 * time.Millisecond}

	t.Run("first observation seeds", func(t *testing.T) {
		d := NewDetector(policy)
		_, ok := d.Observe(0.1, epoch)
		assert.False(t, ok)
		assert.True(t, d.State().HasLastVoltage)
		assert.Equal(t, types.Voltage(0.1), d.State().LastVoltage)
	})

	t.Run("two crossings within window", func(t *testing.T) {
		d := NewDetector(policy)
		feed(d, []types.Voltage{4.0, 0.2, 4.0}, epoch, poll)
		assert.Equal(t, uint64(1), d.TipCount())
	})

	t.Run("crossings outside window", func(t *testing.T) {
		d := NewDetector(policy)
		feed(d, []types.Voltage{4.0, 0.2, 4.0}, epoch, 300*time.Millisecond)
		assert.Equal(t, uint64(2), d.TipCount())
	})

	t.Run("small changes ignored", func(t *testing.T) {
		d := NewDetector(policy)
		feed(d, []types.Voltage{4.0, 3.5, 3.0, 2.5, 2.0}, epoch, time.Second)
		assert.Equal(t, uint64(0), d.TipCount())
		assert.Equal(t, types.Voltage(2.0), d.State().LastVoltage)
	})
}

func TestTipCountRateBound(t *testing.T) {
	const window = 250 * time.Millisecond
	noisy := []types.Voltage{4.0, 0.1, 4.0, 0.1, 0.1, 4.2, 0.0, 3.9, 0.3, 4.4, 0.1, 4.0, 0.2, 0.2, 4.1, 0.1}

	for _, policy := range []EdgePolicy{
		LevelCrossing{Threshold: 0.35, MinTipInterval: window},
		DeltaDebounce{DeltaThreshold: 1.0, MinTipInterval: window},
	} {
		t.Run(policy.Name(), func(t *testing.T) {
			d := NewDetector(policy)
			var last uint64
			var tips []time.Time
			for i, v := range noisy {
				now := epoch.Add(time.Duration(i) * 20 * time.Millisecond)
				if ev, ok := d.Observe(v, now); ok {
					tips = append(tips, ev.At)
				}
				require.GreaterOrEqual(t, d.TipCount(), last)
				last = d.TipCount()
			}
			require.NotEmpty(t, tips)
			for i := 1; i < len(tips); i++ {
				assert.GreaterOrEqual(t, tips[i].Sub(tips[i-1]), window)
			}
		})
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("delta", 0.35, 1.0, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "delta", p.Name())

	p, err = NewPolicy("", 0.35, 1.0, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "level", p.Name())

	_, err = NewPolicy("hall-effect", 0.35, 1.0, time.Second)
	assert.Error(t, err)
}

type scriptedReader struct {
	volts []types.Voltage
	errs  []error
	i     int
}

func (r *scriptedReader) ReadVoltage(_ context.Context) (types.Voltage, error) {
	i := r.i
	r.i++
	if i < len(r.errs) && r.errs[i] != nil {
		return 0, r.errs[i]
	}
	return r.volts[i], nil
}

type detectorObserver struct {
	d *Detector
}

func (o detectorObserver) ObserveVoltage(v types.Voltage, now time.Time) (TipEvent, bool) {
	return o.d.Observe(v, now)
}

func TestPollerReadErrorLeavesState(t *testing.T) {
	d := NewDetector(LevelCrossing{Threshold: 0.35, MinTipInterval: 250 * time.Millisecond})
	failure := errors.New("i2c: nack")
	reader := &scriptedReader{
		volts: []types.Voltage{4.0, 0, 0.2},
		errs:  []error{nil, failure, nil},
	}
	p := NewPoller(reader, detectorObserver{d}, poll, zap.NewNop().Sugar())
	tick := epoch
	p.now = func() time.Time { tick = tick.Add(poll); return tick }
	ctx := context.Background()

	require.NoError(t, p.Step(ctx))
	before := d.State()

	err := p.Step(ctx)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, before, d.State())

	require.NoError(t, p.Step(ctx))
	assert.Equal(t, uint64(1), d.TipCount())
}

// cyclingReader replays volts forever
type cyclingReader struct {
	mu    sync.Mutex
	volts []types.Voltage
	reads int
}

func (r *cyclingReader) ReadVoltage(_ context.Context) (types.Voltage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.volts[r.reads%len(r.volts)]
	r.reads++
	return v, nil
}

func (r *cyclingReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	d := NewDetector(LevelCrossing{Threshold: 0.35})
	reader := &cyclingReader{volts: []types.Voltage{4.0, 0.1}}
	p := NewPoller(reader, detectorObserver{d}, time.Millisecond, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return reader.count() >= 4 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}

	stopped := reader.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, reader.count(), "no reads after Run returns")
	assert.Positive(t, d.TipCount())
}
