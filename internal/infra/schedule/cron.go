package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrUnknownJob = errors.New("schedule: unknown job")

// Job is a periodic maintenance task. Run reports how many items it repaired.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) (int, error)
}

// Scheduler runs maintenance jobs on cron specs. A job never overlaps with itself.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	base   context.Context

	mu   sync.Mutex
	jobs map[string]Job
	busy map[string]bool
}

func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		base:   context.WithoutCancel(ctx),
		jobs:   make(map[string]Job),
		busy:   make(map[string]bool),
	}
}

func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("schedule: job %q incomplete", job.Name)
	}
	s.mu.Lock()
	s.jobs[job.Name] = job
	s.mu.Unlock()
	if _, err := s.cron.AddFunc(job.Spec, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("schedule: job %s: %w", job.Name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("scheduler stopped")
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(name string) (int, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(job)
}

func (s *Scheduler) execute(job Job) (int, error) {
	s.mu.Lock()
	if s.busy[job.Name] {
		s.mu.Unlock()
		s.logger.Debug("job still running, skipping", "job", job.Name)
		return 0, nil
	}
	s.busy[job.Name] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.busy, job.Name)
		s.mu.Unlock()
	}()

	ctx := s.base
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	started := time.Now()
	n, err := job.Run(ctx)
	if err != nil {
		s.logger.Error("job failed", "job", job.Name, "repaired", n, "error", err)
		return n, err
	}
	if n > 0 {
		s.logger.Info("job completed", "job", job.Name, "repaired", n, "duration", time.Since(started))
	}
	return n, nil
}
