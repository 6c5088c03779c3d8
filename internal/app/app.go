// Package app assembles the station from its configuration and runs it.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/tipstation/internal/controllers/restserver"
	"github.com/chrissnell/tipstation/internal/managers"
	"github.com/chrissnell/tipstation/internal/rain"
	"github.com/chrissnell/tipstation/internal/sampler"
	"github.com/chrissnell/tipstation/internal/scheduler"
	"github.com/chrissnell/tipstation/internal/station"
	"github.com/chrissnell/tipstation/internal/storage"
	"github.com/chrissnell/tipstation/internal/types"
	"github.com/chrissnell/tipstation/pkg/config"
)

const healthCheckInterval = time.Minute

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Station is every long-lived component of a running station
type Station struct {
	Sensors   *managers.SensorManager
	Storage   *managers.StorageManager
	State     *station.State
	Sampler   *sampler.Sampler
	Poller    *rain.Poller
	Scheduler *scheduler.Scheduler
	Health    *storage.HealthManager
	REST      *restserver.Controller

	closeOnce sync.Once
	closeErr  error
}

// Build creates the station. Peripherals are not touched until first use;
// sinks are connected here so that a bad connection string fails startup.
func (a *App) Build(ctx context.Context) (*Station, error) {
	cfg := a.cfg
	s := &Station{Health: storage.NewHealthManager()}

	var err error
	s.Sensors, err = managers.NewSensorManager(&cfg.Sensors, a.logger.Named("sensors"))
	if err != nil {
		return nil, err
	}

	s.State, err = newState(cfg)
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	s.Sampler = newSampler(cfg, s.Sensors, s.State)
	s.Poller = rain.NewPoller(s.Sensors.RainReader(), s.State, cfg.Rain.PollInterval, a.logger.Named("rain"))

	if cfg.Station.Mode == config.ModePush {
		s.Storage, err = managers.NewStorageManager(ctx, &cfg.Storage, a.logger.Named("storage"))
		if err != nil {
			return nil, multierr.Append(err, s.Close())
		}
		s.Scheduler = newScheduler(cfg, s, a.logger.Named("scheduler"))
	}

	deps := restserver.Deps{
		State:   s.State,
		Sensors: make(map[string]restserver.ReadinessReporter),
		Health:  s.Health,
	}
	for _, g := range s.Sensors.Guards() {
		deps.Sensors[g.Name()] = g
	}
	if s.Scheduler != nil {
		deps.Source = restserver.PushSource{State: s.State}
		deps.Archive = s.Storage.Archive
		deps.Jobs = s.Scheduler
	} else {
		deps.Source = restserver.PullSource{Sampler: s.Sampler, State: s.State}
	}

	s.REST, err = restserver.NewController(cfg, deps, a.logger.Named("rest"))
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	return s, nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := a.Build(ctx)
	if err != nil {
		return err
	}
	return a.Serve(ctx, s)
}

// Serve runs the station until ctx is cancelled. Every background task has
// returned before the peripherals and sinks are released.
func (a *App) Serve(ctx context.Context, s *Station) error {
	defer func() {
		if err := s.Close(); err != nil {
			a.logger.Warnf("error releasing resources: %v", err)
		}
	}()

	a.logger.Infof("station %s starting in %s mode", a.cfg.Station.Name, a.cfg.Station.Mode)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Poller.Run(gctx) })
	if s.Scheduler != nil {
		g.Go(func() error { return s.Scheduler.Run(gctx) })
	}
	if s.Storage != nil && len(s.Storage.Checkers) > 0 {
		g.Go(func() error {
			return storage.RunHealthMonitor(gctx, s.Health, s.Storage.Checkers, healthCheckInterval)
		})
	}
	g.Go(func() error { return s.REST.Run(gctx) })

	err := g.Wait()
	a.logger.Info("shutdown complete")
	return err
}

// Check takes a single sample without starting any background work
func (a *App) Check(ctx context.Context) (types.Snapshot, error) {
	sensors, err := managers.NewSensorManager(&a.cfg.Sensors, a.logger.Named("sensors"))
	if err != nil {
		return types.Snapshot{}, err
	}
	defer sensors.Close()

	state, err := newState(a.cfg)
	if err != nil {
		return types.Snapshot{}, err
	}
	return newSampler(a.cfg, sensors, state).Sample(ctx)
}

// Close releases peripherals, sinks and publishers exactly once
func (s *Station) Close() error {
	s.closeOnce.Do(func() {
		if s.Storage != nil {
			s.closeErr = multierr.Append(s.closeErr, s.Storage.Close())
		}
		if s.Sensors != nil {
			s.closeErr = multierr.Append(s.closeErr, s.Sensors.Close())
		}
	})
	return s.closeErr
}

func newState(cfg *config.ConfigData) (*station.State, error) {
	policy, err := rain.NewPolicy(cfg.Rain.Policy, types.Voltage(cfg.Rain.Threshold),
		types.Voltage(cfg.Rain.DeltaThreshold), cfg.Rain.MinTipInterval)
	if err != nil {
		return nil, fmt.Errorf("rain detector: %w", err)
	}
	return station.New(rain.NewDetector(policy), cfg.Schedule.HistoryCapacity), nil
}

func newSampler(cfg *config.ConfigData, sm *managers.SensorManager, state *station.State) *sampler.Sampler {
	return sampler.New(sm.Ambient, sm.Analog, sm.UVChannel, state, sampler.Calibration{
		UVBaselineVolts: cfg.UV.BaselineVolts,
		UVIndexPerVolt:  cfg.UV.IndexPerVolt,
		MmPerTip:        cfg.Rain.MmPerTip,
	})
}

func newScheduler(cfg *config.ConfigData, s *Station, logger *zap.SugaredLogger) *scheduler.Scheduler {
	jobs := []scheduler.Job{{
		Name:     "fast",
		Interval: cfg.Schedule.FastInterval,
		Action:   scheduler.FastAction(s.Sampler, s.State, s.Storage.Realtime, s.Storage.Publishers, logger),
	}}
	if s.Storage.Archive != nil {
		jobs = append(jobs, scheduler.Job{
			Name:     "slow",
			Interval: cfg.Schedule.SlowInterval,
			Action:   scheduler.SlowAction(s.Sampler, *s.Storage.Archive),
		})
	}
	return scheduler.New(logger, cfg.Schedule.FireOnStart, jobs...)
}
