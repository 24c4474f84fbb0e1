package sweep

import (
	"context"
	"time"

	"github.com/hamed0406/pingwatch/internal/scheduler"
)

// Job wraps the executor as a named scheduler job.
func (e *Executor) Job(name string, every time.Duration) scheduler.Job {
	return scheduler.Job{
		Name:  name,
		Every: every,
		Run: func(ctx context.Context) error {
			_, err := e.RunSweep(ctx)
			return err
		},
	}
}

// exclusiveRunner is satisfied by *scheduler.Scheduler.
type exclusiveRunner interface {
	RunExclusive(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// OnDemand runs a sweep through the scheduler's serialization so a manual
// sweep never overlaps a scheduled one.
type OnDemand struct {
	Exec   *Executor
	Runner exclusiveRunner
	Name   string
}

// TriggerSweep finishes the sweep even if the caller goes away, so a dropped
// HTTP client cannot cut it short.
func (o OnDemand) TriggerSweep(ctx context.Context) (Summary, error) {
	ctx = context.WithoutCancel(ctx)
	var sum Summary
	err := o.Runner.RunExclusive(ctx, o.Name, func(ctx context.Context) error {
		var err error
		sum, err = o.Exec.RunSweep(ctx)
		return err
	})
	return sum, err
}
