// Package scheduler runs periodic maintenance jobs next to the distributor,
// such as reconciling the minted total against the completion records.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

// Name implements Job.
func (j JobFunc) Name() string { return j.JobName }

// Run implements Job.
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Success reports whether the run finished without error.
func (r JobResult) Success() bool { return r.Err == nil }

// JobInfo is a snapshot of a registered job.
type JobInfo struct {
	Name       string
	Interval   time.Duration
	RunCount   int64
	FailCount  int64
	LastResult *JobResult
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *slog.Logger

	// JobTimeout bounds a single run; zero means no bound.
	JobTimeout time.Duration

	// OnResult is called after every run.
	OnResult func(result JobResult)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Logger:     slog.Default(),
		JobTimeout: 30 * time.Second,
	}
}

type scheduledJob struct {
	job       Job
	interval  time.Duration
	running   sync.Mutex
	runCount  int64
	failCount int64
	last      *JobResult
}

// Scheduler runs each registered job on its own ticker. A job never overlaps
// with itself; a tick that arrives while the previous run is active is dropped.
type Scheduler struct {
	mu     sync.RWMutex
	config Config
	jobs   map[string]*scheduledJob

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler.
func New(config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Scheduler{
		config: config,
		jobs:   make(map[string]*scheduledJob),
	}
}

// Register adds a job that runs every interval once the scheduler starts.
func (s *Scheduler) Register(job Job, interval time.Duration) error {
	if job == nil {
		return ErrNilJob
	}
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrSchedulerAlreadyRunning
	}
	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	s.jobs[name] = &scheduledJob{job: job, interval: interval}
	s.config.Logger.Info("job registered", "job", name, "interval", interval.String())
	return nil
}

// Start launches one loop per registered job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrSchedulerAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, sj := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, sj)
	}

	s.config.Logger.Info("scheduler started", "jobs_count", len(s.jobs))
	return nil
}

// Stop cancels the loops and waits for running jobs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.cancel()
	s.cancel = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.config.Logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, sj *scheduledJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(sj.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, sj)
		}
	}
}

// RunNow executes a job immediately, ignoring its interval.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.RLock()
	sj, exists := s.jobs[name]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	sj.running.Lock()
	defer sj.running.Unlock()

	result := s.execute(ctx, sj)
	return result, result.Err
}

func (s *Scheduler) runJob(ctx context.Context, sj *scheduledJob) {
	if !sj.running.TryLock() {
		s.config.Logger.Warn("job still running, tick skipped", "job", sj.job.Name())
		return
	}
	defer sj.running.Unlock()

	s.execute(ctx, sj)
}

// execute runs the job once. The caller holds sj.running.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) JobResult {
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	name := sj.job.Name()
	started := time.Now()
	err := sj.job.Run(ctx)

	result := JobResult{
		JobName:   name,
		StartedAt: started,
		Duration:  time.Since(started),
		Err:       err,
	}

	s.mu.Lock()
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	last := result
	sj.last = &last
	s.mu.Unlock()

	if err != nil {
		s.config.Logger.Error("job failed", "job", name, "duration", result.Duration.String(), "error", err)
	} else {
		s.config.Logger.Debug("job completed", "job", name, "duration", result.Duration.String())
	}

	if s.config.OnResult != nil {
		s.config.OnResult(result)
	}
	return result
}

// ListJobs returns a snapshot of every registered job, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		info := JobInfo{
			Name:      name,
			Interval:  sj.interval,
			RunCount:  sj.runCount,
			FailCount: sj.failCount,
		}
		if sj.last != nil {
			last := *sj.last
			info.LastResult = &last
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrInvalidInterval         = errors.New("interval must be positive")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)
