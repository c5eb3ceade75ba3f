// Package schedule runs periodic sync jobs on top of gocron.
package schedule

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// New creates a scheduler. Jobs do not fire until Start.
func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("schedule: create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Every registers fn to run each interval. A run that is still executing when
// the next one is due causes that next one to be skipped, not queued.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("schedule: create job %s: %w", name, err)
	}
	s.logger.Info("schedule: job registered", slog.String("job", name), slog.Duration("interval", interval))
	return job.ID().String(), nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.logger.Info("schedule: starting")
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info("schedule: stopping")
	return s.scheduler.Shutdown()
}
