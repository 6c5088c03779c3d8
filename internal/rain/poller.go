package rain

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/tipstation/internal/sensors"
	"github.com/chrissnell/tipstation/internal/types"
)

// Observer receives each voltage the poller reads. station.State implements
// it so detection happens under the station lock.
type Observer interface {
	ObserveVoltage(v types.Voltage, now time.Time) (TipEvent, bool)
}

// Poller reads the rain channel at a fixed interval and forwards every good
// reading to an Observer. Failed reads are logged and leave tip state alone.
type Poller struct {
	reader   sensors.VoltageReader
	observer Observer
	interval time.Duration
	logger   *zap.SugaredLogger
	now      func() time.Time

	// consecutive read failures, for log rate limiting
	failures int
}

// NewPoller creates a poller
func NewPoller(reader sensors.VoltageReader, observer Observer, interval time.Duration, logger *zap.SugaredLogger) *Poller {
	return &Poller{
		reader:   reader,
		observer: observer,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Infof("rain poller started, polling every %v", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("rain poller stopped")
			return nil
		case <-ticker.C:
			p.Step(ctx)
		}
	}
}

// Step performs one read and observation. The read error, if any, is
// returned after being logged.
func (p *Poller) Step(ctx context.Context) error {
	v, err := p.reader.ReadVoltage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		p.failures++
		// Log the first failure of a streak and then once every 100 polls.
		if p.failures == 1 || p.failures%100 == 0 {
			p.logger.Warnf("rain channel read failed (%d consecutive): %v", p.failures, err)
		}
		return err
	}
	if p.failures > 0 {
		p.logger.Infof("rain channel recovered after %d failed reads", p.failures)
		p.failures = 0
	}

	if ev, ok := p.observer.ObserveVoltage(v, p.now()); ok {
		p.logger.Debugf("rain tip #%d at %.3fV", ev.TipCount, float64(ev.Voltage))
	}
	return nil
}
