package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

// overlapJob records how many runs were in flight at once.
type overlapJob struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	runs     atomic.Int32
	hold     time.Duration
}

func (o *overlapJob) Run(ctx context.Context) error {
	n := o.inFlight.Add(1)
	defer o.inFlight.Add(-1)
	for {
		m := o.maxSeen.Load()
		if n <= m || o.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	o.runs.Add(1)
	time.Sleep(o.hold)
	return nil
}

func TestRegister_Validation(t *testing.T) {
	s := New(zap.NewNop(), nil)
	run := func(context.Context) error { return nil }
	for _, j := range []Job{
		{Name: "", Every: time.Second, Run: run},
		{Name: "x", Every: 0, Run: run},
		{Name: "x", Every: time.Second},
	} {
		if err := s.Register(j); err == nil {
			t.Fatalf("expected error for %+v", j)
		}
	}
}

func TestRegister_IdempotentByName(t *testing.T) {
	s := New(zap.NewNop(), nil)
	var first, second atomic.Int32
	_ = s.Register(Job{Name: DefaultSweepJob, Every: time.Hour, Run: func(context.Context) error { first.Add(1); return nil }})
	_ = s.Register(Job{Name: DefaultSweepJob, Every: time.Hour, Run: func(context.Context) error { second.Add(1); return nil }})

	if got := s.Jobs(); len(got) != 1 || got[0] != DefaultSweepJob {
		t.Fatalf("want one job, got %v", got)
	}

	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, time.Second, func() bool { return second.Load() == 1 })
	if first.Load() != 0 {
		t.Fatalf("replaced definition must not run")
	}
}

func TestRegister_RepeatedWhileRunningNeverOverlaps(t *testing.T) {
	s := New(zap.NewNop(), nil)
	job := &overlapJob{hold: 20 * time.Millisecond}
	s.Start(context.Background())
	defer s.Stop()

	for i := 0; i < 5; i++ {
		if err := s.Register(Job{Name: "sweep", Every: 2 * time.Millisecond, Run: job.Run}); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, 2*time.Second, func() bool { return job.runs.Load() >= 3 })
	if got := job.maxSeen.Load(); got != 1 {
		t.Fatalf("runs overlapped: %d in flight", got)
	}
}

func TestTrigger_SkipsWhileRunning(t *testing.T) {
	s := New(zap.NewNop(), nil)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	_ = s.Register(Job{Name: "sweep", Every: time.Hour, Run: func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}})

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background(), "sweep") }()
	<-started

	if st, _ := s.State("sweep"); st != StateRunning {
		t.Fatalf("want running, got %v", st)
	}
	if err := s.Trigger(context.Background(), "sweep"); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("want ErrJobRunning, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if st, _ := s.State("sweep"); st != StateIdle {
		t.Fatalf("unscheduled job should return to idle, got %v", st)
	}
}

func TestTrigger_UnknownJob(t *testing.T) {
	s := New(zap.NewNop(), nil)
	if err := s.Trigger(context.Background(), "nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("want ErrUnknownJob, got %v", err)
	}
	if _, err := s.State("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("want ErrUnknownJob, got %v", err)
	}
}

func TestState_Lifecycle(t *testing.T) {
	s := New(zap.NewNop(), nil)
	gate := make(chan struct{})
	var calls atomic.Int32
	_ = s.Register(Job{Name: "sweep", Every: time.Hour, Run: func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			<-gate
		}
		return nil
	}})

	if st, _ := s.State("sweep"); st != StateIdle {
		t.Fatalf("want idle before start, got %v", st)
	}
	s.Start(context.Background())
	waitFor(t, time.Second, func() bool { st, _ := s.State("sweep"); return st == StateRunning })

	close(gate)
	waitFor(t, time.Second, func() bool { st, _ := s.State("sweep"); return st == StateScheduled })

	s.Stop()
	if st, _ := s.State("sweep"); st != StateIdle {
		t.Fatalf("want idle after stop, got %v", st)
	}
}

func TestFailuresKeepJobRegistered(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := New(zap.New(core), nil)
	var calls atomic.Int32
	_ = s.Register(Job{Name: "flaky", Every: 5 * time.Millisecond, Run: func(ctx context.Context) error {
		switch calls.Add(1) {
		case 1:
			panic("boom")
		case 2:
			return errors.New("registry down")
		}
		return nil
	}})

	s.Start(context.Background())
	waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 3 })
	s.Stop()

	if got := logs.FilterMessage("job_failed").Len(); got != 2 {
		t.Fatalf("want 2 failed runs logged, got %d", got)
	}
	if got := s.Jobs(); len(got) != 1 {
		t.Fatalf("job should stay registered, got %v", got)
	}
}

func TestLocker_HeldElsewhereSkipsRun(t *testing.T) {
	locker := NewMemoryLocker()
	release, ok, _ := locker.TryLock(context.Background(), "sweep")
	if !ok {
		t.Fatalf("first lock should succeed")
	}

	s := New(zap.NewNop(), locker)
	var calls atomic.Int32
	_ = s.Register(Job{Name: "sweep", Every: time.Hour, Run: func(context.Context) error { calls.Add(1); return nil }})

	if err := s.Trigger(context.Background(), "sweep"); !errors.Is(err, ErrJobLocked) {
		t.Fatalf("want ErrJobLocked, got %v", err)
	}
	release()
	if err := s.Trigger(context.Background(), "sweep"); err != nil {
		t.Fatalf("after release: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("want one run, got %d", calls.Load())
	}
}

type errLocker struct{}

func (errLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	return nil, false, errors.New("conn refused")
}

func TestLocker_ErrorIsReturned(t *testing.T) {
	s := New(zap.NewNop(), errLocker{})
	_ = s.Register(Job{Name: "sweep", Every: time.Hour, Run: func(context.Context) error { return nil }})
	if err := s.Trigger(context.Background(), "sweep"); err == nil {
		t.Fatalf("expected lock error")
	}
}

func TestMemoryLocker_ReleaseIsIdempotent(t *testing.T) {
	l := NewMemoryLocker()
	rel, ok, _ := l.TryLock(context.Background(), "a")
	if !ok {
		t.Fatal("lock a")
	}
	if _, ok, _ := l.TryLock(context.Background(), "a"); ok {
		t.Fatal("a is held")
	}
	if _, ok, _ := l.TryLock(context.Background(), "b"); !ok {
		t.Fatal("b is independent")
	}
	rel()
	rel()
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.TryLock(context.Background(), "a"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("want exactly one winner, got %d", wins.Load())
	}
}

func TestStateString(t *testing.T) {
	if StateIdle.String() != "idle" || StateScheduled.String() != "scheduled" || StateRunning.String() != "running" {
		t.Fatal("unexpected state names")
	}
}

func TestRunExclusive_SharesSerialization(t *testing.T) {
	s := New(zap.NewNop(), nil)
	var own atomic.Int32
	_ = s.Register(Job{Name: "sweep", Every: time.Hour, Run: func(context.Context) error { own.Add(1); return nil }})

	got := 0
	if err := s.RunExclusive(context.Background(), "sweep", func(context.Context) error { got = 42; return nil }); err != nil {
		t.Fatalf("RunExclusive: %v", err)
	}
	if got != 42 || own.Load() != 0 {
		t.Fatalf("fn should replace the job's run: got=%d own=%d", got, own.Load())
	}

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.RunExclusive(context.Background(), "sweep", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	if err := s.Trigger(context.Background(), "sweep"); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("want ErrJobRunning, got %v", err)
	}
	close(release)

	if err := s.RunExclusive(context.Background(), "missing", func(context.Context) error { return nil }); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("want ErrUnknownJob, got %v", err)
	}
}
