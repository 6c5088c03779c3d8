package sensors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrBusy means a call abandoned at its deadline is still running in the
// driver, so the device cannot be used or released yet
var ErrBusy = errors.New("previous call still running")

// GuardOptions configures lazy initialization and read bounding of a device
type GuardOptions struct {
	Name string
	// Timeout bounds every Init and read call; zero means unbounded
	Timeout time.Duration
	// InitialInterval and MaxInterval shape the default exponential backoff
	// between failed initialization attempts
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// BackOff overrides the default policy when set
	BackOff backoff.BackOff
	Clock   func() time.Time
}

// Guard owns a Device and initializes it lazily. After a failed read the
// device is marked unavailable and the next call reinitializes it once.
// Failed initializations push the next attempt out along the backoff so an
// absent peripheral is not probed on every poll. A Guard serializes access
// to its device and is safe for concurrent use. A driver call abandoned at
// its deadline keeps the device busy until it returns; nothing else reaches
// the driver in the meantime.
type Guard struct {
	name    string
	dev     Device
	timeout time.Duration
	bo      backoff.BackOff
	maxWait time.Duration
	now     func() time.Time

	mu        sync.Mutex
	ready     bool
	notBefore time.Time
	lastErr   error
	// busy is closed when the last abandoned driver call returns
	busy chan struct{}
}

// NewGuard wraps dev
func NewGuard(dev Device, opts GuardOptions) *Guard {
	g := &Guard{
		name:    opts.Name,
		dev:     dev,
		timeout: opts.Timeout,
		bo:      opts.BackOff,
		maxWait: opts.MaxInterval,
		now:     opts.Clock,
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.bo == nil {
		eb := backoff.NewExponentialBackOff()
		if opts.InitialInterval > 0 {
			eb.InitialInterval = opts.InitialInterval
		}
		if opts.MaxInterval > 0 {
			eb.MaxInterval = opts.MaxInterval
		}
		eb.MaxElapsedTime = 0
		eb.Reset()
		g.bo = eb
	}
	if g.maxWait == 0 {
		g.maxWait = 5 * time.Minute
	}
	return g
}

// Name returns the device name used in errors and logs
func (g *Guard) Name() string {
	return g.name
}

// Ready reports whether the device is currently initialized
func (g *Guard) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// Init initializes the device now unless it is already initialized
func (g *Guard) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ensureLocked(ctx, true)
}

// Close releases the device. It is safe to call more than once and on a
// device that never initialized. A driver call still running after a
// timeout is given one more timeout to return; if it does not, the device is
// left alone and ErrBusy is returned.
func (g *Guard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = false

	if g.busy != nil {
		wait := g.timeout
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-g.busy:
			g.busy = nil
		case <-time.After(wait):
			return fmt.Errorf("closing %s: %w", g.name, ErrBusy)
		}
	}
	return g.dev.Close()
}

// idleLocked reports whether no abandoned driver call is still running
func (g *Guard) idleLocked() bool {
	if g.busy == nil {
		return true
	}
	select {
	case <-g.busy:
		g.busy = nil
		return true
	default:
		return false
	}
}

// ensureLocked initializes the device if needed. Unless force is set, an
// attempt inside the backoff window fails without touching the hardware.
func (g *Guard) ensureLocked(ctx context.Context, force bool) error {
	if g.ready {
		return nil
	}
	if !g.idleLocked() {
		return &InitError{Device: g.name, Err: ErrBusy}
	}
	now := g.now()
	if !force && now.Before(g.notBefore) {
		return &InitError{
			Device: g.name,
			Err:    fmt.Errorf("next attempt in %v: %w", g.notBefore.Sub(now).Round(time.Millisecond), g.lastErr),
		}
	}

	_, err := call(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.dev.Init(ctx)
	})
	if err != nil {
		wait := g.bo.NextBackOff()
		if wait == backoff.Stop {
			wait = g.maxWait
		}
		g.notBefore = now.Add(wait)
		g.lastErr = err
		return &InitError{Device: g.name, Err: err}
	}

	g.ready = true
	g.notBefore = time.Time{}
	g.lastErr = nil
	g.bo.Reset()
	return nil
}

// guardedRead runs fn against the guarded device, initializing it first when
// needed. A failed read marks the device unavailable.
func guardedRead[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var zero T
	if !g.idleLocked() {
		return zero, &ReadError{Device: g.name, Err: ErrBusy}
	}
	if err := g.ensureLocked(ctx, false); err != nil {
		return zero, err
	}
	v, err := call(ctx, g, fn)
	if err != nil {
		g.ready = false
		return zero, &ReadError{Device: g.name, Err: err}
	}
	return v, nil
}

// call runs fn bounded by the guard timeout. The drivers underneath do not
// take a context, so a hung call is abandoned rather than interrupted and
// the guard stays busy until it returns. g.mu must be held.
func call[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		g.busy = done
		var zero T
		return zero, ctx.Err()
	}
}
