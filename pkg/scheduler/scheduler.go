package scheduler

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/freightbill/pkg/logger"
)

// JobFunc is the work performed on each run.
type JobFunc func(ctx context.Context) error

// Scheduler runs registered jobs when they are due.
type Scheduler struct {
	mu        sync.RWMutex
	jobs      map[string]*job
	wg        sync.WaitGroup
	interval  time.Duration
	immediate bool
	now       func() time.Time
	logger    *slog.Logger
}

type job struct {
	name     string
	schedule Schedule
	fn       JobFunc
	nextRun  time.Time
	running  bool
	lastErr  error
	runs     int
}

// JobStatus is a point-in-time view of a registered job.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	Running  bool      `json:"running"`
	Runs     int       `json:"runs"`
	LastErr  string    `json:"last_error,omitempty"`
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:     make(map[string]*job),
		interval: 30 * time.Second,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob registers a job under a unique name.
func (s *Scheduler) AddJob(name string, schedule Schedule, fn JobFunc) error {
	if fn == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}

	next := schedule.Next(s.now())
	if s.immediate {
		next = s.now()
	}
	s.jobs[name] = &job{name: name, schedule: schedule, fn: fn, nextRun: next}

	s.logger.Info("registered job",
		slog.String("job", name),
		slog.String("schedule", schedule.String()),
	)
	return nil
}

// Start checks for due jobs until ctx is cancelled, then waits for running
// jobs to return.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	count := len(s.jobs)
	s.mu.RUnlock()

	if count == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkJobs(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.checkJobs(ctx)
		}
	}
}

// RunNow triggers a job outside its schedule and waits for it. Returns nil
// without running if the job is already in progress.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if j.running {
		s.mu.Unlock()
		return nil
	}
	j.running = true
	s.mu.Unlock()

	return s.run(ctx, j)
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{
			Name:     j.name,
			Schedule: j.schedule.String(),
			NextRun:  j.nextRun,
			Running:  j.running,
			Runs:     j.runs,
		}
		if j.lastErr != nil {
			st.LastErr = j.lastErr.Error()
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b JobStatus) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// checkJobs starts every due job that is not already running.
func (s *Scheduler) checkJobs(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if j.nextRun.After(now) {
			continue
		}
		if j.running {
			s.logger.Warn("job still running, skipping tick", slog.String("job", j.name))
			continue
		}
		j.running = true
		j.nextRun = j.schedule.Next(now)
		due = append(due, j)
	}
	s.mu.Unlock()

	for _, j := range due {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.run(ctx, j)
		}()
	}
}

func (s *Scheduler) run(ctx context.Context, j *job) (err error) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}

		s.mu.Lock()
		j.running = false
		j.runs++
		j.lastErr = err
		s.mu.Unlock()

		if err != nil {
			s.logger.ErrorContext(ctx, "job failed",
				slog.String("job", j.name),
				logger.Duration(s.now().Sub(started)),
				logger.Error(err),
			)
			return
		}
		s.logger.DebugContext(ctx, "job finished",
			slog.String("job", j.name),
			logger.Duration(s.now().Sub(started)),
		)
	}()

	return j.fn(ctx)
}
