package storage

import (
	"context"
	"time"

	"github.com/chrissnell/tipstation/internal/log"
)

// HealthChecker is implemented by anything whose health can be probed
type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthData
}

// HealthCheckFunc adapts a function to HealthChecker
type HealthCheckFunc func(ctx context.Context) *HealthData

func (f HealthCheckFunc) CheckHealth(ctx context.Context) *HealthData { return f(ctx) }

// SinkChecker reports a sink healthy when it answers Ping
func SinkChecker(name string, sink Sink) HealthChecker {
	return HealthCheckFunc(func(ctx context.Context) *HealthData {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := sink.Ping(ctx); err != nil {
			return CreateHealthData(StatusUnhealthy, name+" ping failed", err)
		}
		return CreateHealthData(StatusHealthy, name+" operational", nil)
	})
}

// RunHealthMonitor checks every component immediately and then once per
// interval, recording the results in hm, until ctx is cancelled
func RunHealthMonitor(ctx context.Context, hm *HealthManager, checkers map[string]HealthChecker, interval time.Duration) error {
	updateHealth := func() {
		for name, checker := range checkers {
			health := checker.CheckHealth(ctx)
			hm.UpdateHealth(name, health)
			log.Debugf("updated %s health status: %s", name, health.Status)
		}
	}

	updateHealth()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			updateHealth()
		case <-ctx.Done():
			log.Info("stopping health monitor")
			return nil
		}
	}
}

// CreateHealthData creates a basic health data structure
func CreateHealthData(status, message string, err error) *HealthData {
	health := &HealthData{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}

	if err != nil {
		health.Error = err.Error()
	}

	return health
}
