// Package scheduler runs periodic maintenance jobs inside a service
// process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"travelbook/pkg/logger"

	"github.com/go-co-op/gocron/v2"
)

type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run. Zero means the interval.
	Timeout        time.Duration
	RunImmediately bool
	Run            func(ctx context.Context) error
}

type Scheduler struct {
	cron   gocron.Scheduler
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(log *logger.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: cron, log: log, ctx: ctx, cancel: cancel}, nil
}

// Add registers a job. A run that is still going when the next one is due
// delays that next run instead of overlapping it.
func (s *Scheduler) Add(job Job) error {
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}

	opts := []gocron.JobOption{
		gocron.WithName(job.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if job.RunImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err := s.cron.NewJob(
		gocron.DurationJob(job.Interval),
		gocron.NewTask(func() { s.run(job, timeout) }),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
	}

	s.log.Info("Scheduled job", "job", job.Name, "interval", job.Interval)
	return nil
}

func (s *Scheduler) run(job Job, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Error("Scheduled job failed", "job", job.Name, "duration", time.Since(start), "error", err)
		return
	}
	s.log.Debug("Scheduled job finished", "job", job.Name, "duration", time.Since(start))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}
