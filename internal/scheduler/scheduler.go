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

const (
	DefaultSweepJob   = "ping-all-monitors"
	DefaultSweepEvery = 60 * time.Second
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
	ErrJobLocked  = errors.New("job locked by another instance")
)

type State int

const (
	StateIdle State = iota
	StateScheduled
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	default:
		return "idle"
	}
}

// Job is a named recurring task. The name is its identity: registering the
// same name again replaces the definition.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Locker serializes runs of a job across processes.
type Locker interface {
	TryLock(ctx context.Context, name string) (release func(), ok bool, err error)
}

type entry struct {
	mu      sync.Mutex
	job     Job
	state   State
	looping bool
	reset   chan time.Duration

	// held for the whole run; TryLock skips overlapping ticks
	running sync.Mutex
}

func (e *entry) definition() Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job
}

func (e *entry) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

type Scheduler struct {
	logger *zap.Logger
	locker Locker

	mu      sync.Mutex
	jobs    map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New returns a scheduler. A nil locker means runs are only serialized
// within this process.
func New(logger *zap.Logger, locker Locker) *Scheduler {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &Scheduler{
		logger: logger,
		locker: locker,
		jobs:   make(map[string]*entry),
	}
}

// Register adds or replaces a job. Replacing a job never starts a second
// loop for it; a running loop picks up the new period.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Every <= 0 {
		return fmt.Errorf("job %q: period must be positive", job.Name)
	}
	if job.Run == nil {
		return fmt.Errorf("job %q: run func is required", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.jobs[job.Name]; ok {
		e.mu.Lock()
		e.job = job
		e.mu.Unlock()
		select {
		case e.reset <- job.Every:
		default:
		}
		s.logger.Info("job_replaced", zap.String("job", job.Name), zap.Duration("every", job.Every))
		return nil
	}

	e := &entry{job: job, reset: make(chan time.Duration, 1)}
	s.jobs[job.Name] = e
	s.logger.Info("job_registered", zap.String("job", job.Name), zap.Duration("every", job.Every))
	if s.started {
		s.startLoop(e)
	}
	return nil
}

// Start launches one loop per job. Each loop runs its job immediately, then
// on every tick, until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	for _, e := range s.jobs {
		s.startLoop(e)
	}
}

// Stop cancels all loops and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler_stopped")
}

// Trigger runs a job now through the same serialization as scheduled ticks.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e, "manual", nil)
}

// RunExclusive runs fn in place of the job's own Run, under the same
// serialization. Callers use it when they need the run's result.
func (s *Scheduler) RunExclusive(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e, "manual", fn)
}

func (s *Scheduler) State(name string) (State, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return StateIdle, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// startLoop must be called with s.mu held.
func (s *Scheduler) startLoop(e *entry) {
	e.mu.Lock()
	if e.looping {
		e.mu.Unlock()
		return
	}
	e.looping = true
	e.state = StateScheduled
	e.mu.Unlock()

	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, e)
	}()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	job := e.definition()
	t := time.NewTicker(job.Every)
	defer func() {
		t.Stop()
		e.mu.Lock()
		e.looping = false
		e.state = StateIdle
		e.mu.Unlock()
	}()

	// immediate pass
	_ = s.run(ctx, e, "schedule", nil)

	for {
		select {
		case <-ctx.Done():
			return
		case every := <-e.reset:
			t.Reset(every)
		case <-t.C:
			_ = s.run(ctx, e, "schedule", nil)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, e *entry, trigger string, fn func(context.Context) error) error {
	job := e.definition()
	if fn != nil {
		job.Run = fn
	}
	log := s.logger.With(zap.String("job", job.Name), zap.String("trigger", trigger))

	if !e.running.TryLock() {
		log.Info("job_skipped_running")
		return ErrJobRunning
	}
	defer e.running.Unlock()

	release, ok, err := s.locker.TryLock(ctx, job.Name)
	if err != nil {
		log.Warn("job_lock_error", zap.Error(err))
		return fmt.Errorf("lock job %s: %w", job.Name, err)
	}
	if !ok {
		log.Info("job_skipped_locked")
		return ErrJobLocked
	}
	defer release()

	e.setState(StateRunning)
	defer func() {
		e.mu.Lock()
		if e.looping {
			e.state = StateScheduled
		} else {
			e.state = StateIdle
		}
		e.mu.Unlock()
	}()

	start := time.Now()
	err = runJob(ctx, job)
	if err != nil {
		log.Error("job_failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return err
	}
	log.Debug("job_completed", zap.Duration("took", time.Since(start)))
	return nil
}

func runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panic: %v", p)
		}
	}()
	return job.Run(ctx)
}
