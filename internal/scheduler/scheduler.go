// Package scheduler runs the station's periodic jobs, each on its own ticker
// so a slow firing of one job never delays another.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Action is the work a job does on each firing
type Action func(ctx context.Context) error

// Job is a named action run every Interval. LastFiredAt and LastError are
// maintained by the scheduler and read through Status.
type Job struct {
	Name        string
	Interval    time.Duration
	Action      Action
	LastFiredAt time.Time
	LastError   error

	runs     uint64
	failures uint64
}

// JobStatus is a point-in-time copy of a job's bookkeeping
type JobStatus struct {
	Name        string        `json:"name"`
	Interval    time.Duration `json:"interval"`
	LastFiredAt time.Time     `json:"last_fired_at"`
	LastError   string        `json:"last_error,omitempty"`
	Runs        uint64        `json:"runs"`
	Failures    uint64        `json:"failures"`
}

// Scheduler fires a fixed set of jobs until its context is cancelled
type Scheduler struct {
	jobs        []*Job
	fireOnStart bool
	logger      *zap.SugaredLogger
	now         func() time.Time

	mu sync.RWMutex
}

// New creates a scheduler. With fireOnStart every job fires once as soon as
// Run starts instead of waiting a full interval.
func New(logger *zap.SugaredLogger, fireOnStart bool, jobs ...Job) *Scheduler {
	s := &Scheduler{
		fireOnStart: fireOnStart,
		logger:      logger,
		now:         time.Now,
	}
	for i := range jobs {
		j := jobs[i]
		s.jobs = append(s.jobs, &j)
	}
	return s
}

// Run starts one goroutine per job and blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		if j.Interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive, got %v", j.Name, j.Interval)
		}
	}
	for _, j := range s.jobs {
		j := j
		g.Go(func() error {
			s.loop(ctx, j)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j *Job) {
	s.logger.Infof("starting %s job, firing every %v", j.Name, j.Interval)

	if s.fireOnStart {
		s.fire(ctx, j)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("stopping %s job", j.Name)
			return
		case <-ticker.C:
			s.fire(ctx, j)
		}
	}
}

// fire runs one firing bounded by the job interval. A failure or panic is
// logged and recorded; the job simply waits for its next tick.
func (s *Scheduler) fire(ctx context.Context, j *Job) {
	fireCtx, cancel := context.WithTimeout(ctx, j.Interval)
	defer cancel()

	started := s.now()
	err := s.safeRun(fireCtx, j)

	s.mu.Lock()
	j.LastFiredAt = started
	j.LastError = err
	j.runs++
	if err != nil {
		j.failures++
	}
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Errorf("%s job failed, skipping this firing: %v", j.Name, err)
		return
	}
	s.logger.Debugf("%s job completed in %v", j.Name, s.now().Sub(started))
}

func (s *Scheduler) safeRun(ctx context.Context, j *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("%s job panicked: %v\n%s", j.Name, r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.Action(ctx)
}

// Status returns the bookkeeping for every job in registration order
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{
			Name:        j.Name,
			Interval:    j.Interval,
			LastFiredAt: j.LastFiredAt,
			Runs:        j.runs,
			Failures:    j.failures,
		}
		if j.LastError != nil {
			st.LastError = j.LastError.Error()
		}
		out = append(out, st)
	}
	return out
}
