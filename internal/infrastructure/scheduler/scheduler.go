// Package scheduler runs the ledger's periodic maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registration and manual run errors
var (
	ErrSchedulerRunning = errors.New("scheduler: already started")
	ErrJobNotFound      = errors.New("scheduler: no such job")
	ErrDuplicateJob     = errors.New("scheduler: job name taken")
	ErrInvalidInterval  = errors.New("scheduler: interval must be positive")
	ErrJobInProgress    = errors.New("scheduler: job is running")
)

// JobStatus represents the outcome of the last run of a job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one unit of periodic work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobState is a snapshot of a registered job
type JobState struct {
	Name        string        `json:"name"`
	Interval    time.Duration `json:"interval"`
	Status      JobStatus     `json:"status"`
	Error       string        `json:"error,omitempty"`
	Runs        int64         `json:"runs"`
	Failures    int64         `json:"failures"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

type registeredJob struct {
	job      Job
	interval time.Duration

	runMu   sync.Mutex
	stateMu sync.Mutex
	state   JobState
}

// Config holds scheduler configuration
type Config struct {
	JobTimeout time.Duration
	// RunOnStart runs every job once right after Start
	RunOnStart bool
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{JobTimeout: 2 * time.Minute}
}

// Scheduler runs each registered job on its own ticker. Runs of one job never
// overlap; a tick that finds the job still running is skipped.
type Scheduler struct {
	config Config
	logger *zap.Logger

	mu        sync.Mutex
	jobs      map[string]*registeredJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	return &Scheduler{
		config: config,
		logger: logger.Named("scheduler"),
		jobs:   make(map[string]*registeredJob),
	}
}

// Register adds job to run every interval. Jobs must be registered before Start.
func (s *Scheduler) Register(job Job, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%s: %w", job.Name(), ErrInvalidInterval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrSchedulerRunning
	}
	if _, ok := s.jobs[job.Name()]; ok {
		return fmt.Errorf("%s: %w", job.Name(), ErrDuplicateJob)
	}
	s.jobs[job.Name()] = &registeredJob{
		job:      job,
		interval: interval,
		state:    JobState{Name: job.Name(), Interval: interval, Status: JobStatusPending},
	}
	return nil
}

// Start launches one loop per registered job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, rj := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, rj)
	}

	s.logger.Info("Scheduler started",
		zap.Int("jobs", len(s.jobs)),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the loops to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// RunNow runs the named job immediately and returns its error
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	rj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrJobNotFound)
	}
	if !rj.runMu.TryLock() {
		return fmt.Errorf("%s: %w", name, ErrJobInProgress)
	}
	defer rj.runMu.Unlock()
	return s.execute(ctx, rj)
}

// States returns a snapshot of every job, ordered by name
func (s *Scheduler) States() []JobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobState, 0, len(s.jobs))
	for _, rj := range s.jobs {
		out = append(out, rj.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) loop(ctx context.Context, rj *registeredJob) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.tick(ctx, rj)
	}

	ticker := time.NewTicker(rj.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Job loop stopping", zap.String("job", rj.job.Name()))
			return
		case <-ticker.C:
			s.tick(ctx, rj)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, rj *registeredJob) {
	if !rj.runMu.TryLock() {
		s.logger.Debug("Job still running, skipping tick", zap.String("job", rj.job.Name()))
		return
	}
	defer rj.runMu.Unlock()
	_ = s.execute(ctx, rj)
}

// execute runs the job under the job timeout. Callers hold rj.runMu.
func (s *Scheduler) execute(ctx context.Context, rj *registeredJob) (err error) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	started := time.Now().UTC()
	rj.update(func(st *JobState) {
		st.Status = JobStatusRunning
		st.StartedAt = &started
		st.Error = ""
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		completed := time.Now().UTC()
		rj.update(func(st *JobState) {
			st.Runs++
			st.CompletedAt = &completed
			if err != nil {
				st.Status = JobStatusFailed
				st.Failures++
				st.Error = err.Error()
				return
			}
			st.Status = JobStatusSuccess
		})

		if err != nil {
			s.logger.Error("Job failed",
				zap.String("job", rj.job.Name()),
				zap.Duration("elapsed", completed.Sub(started)),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("Job completed",
			zap.String("job", rj.job.Name()),
			zap.Duration("elapsed", completed.Sub(started)),
		)
	}()

	return rj.job.Run(jobCtx)
}

func (rj *registeredJob) update(fn func(*JobState)) {
	rj.stateMu.Lock()
	fn(&rj.state)
	rj.stateMu.Unlock()
}

func (rj *registeredJob) snapshot() JobState {
	rj.stateMu.Lock()
	defer rj.stateMu.Unlock()
	return rj.state
}
