package sweep

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/pingwatch/internal/domain"
	"github.com/hamed0406/pingwatch/internal/notify"
	"github.com/hamed0406/pingwatch/internal/probe"
	"github.com/hamed0406/pingwatch/internal/repo"
	"github.com/hamed0406/pingwatch/internal/transition"
)

const DefaultProbeTimeout = 10 * time.Second

// Observer records a result and reports the edge it produced.
type Observer interface {
	Observe(ctx context.Context, next *domain.PingResult) (transition.Observation, error)
}

// Alerter is satisfied by *notify.Dispatcher.
type Alerter interface {
	NotifyDown(ctx context.Context, m domain.Monitor, r domain.PingResult) notify.Report
	NotifyUp(ctx context.Context, m domain.Monitor, downSince, recoveredAt time.Time) notify.Report
}

// Summary describes one completed sweep.
type Summary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Monitors  int           `json:"monitors"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Errors    int           `json:"errors"`
	Down      int           `json:"down"`
	Up        int           `json:"up"`
}

type Config struct {
	ProbeTimeout time.Duration
	Concurrency  int
}

type Executor struct {
	Logger   *zap.Logger
	Registry repo.MonitorRegistry
	Prober   probe.Prober
	Tracker  Observer
	Alerts   Alerter
	Timeout  time.Duration
	Limit    int

	now func() time.Time

	mu   sync.Mutex
	last Summary
}

func NewExecutor(
	logger *zap.Logger,
	registry repo.MonitorRegistry,
	prober probe.Prober,
	tracker Observer,
	alerts Alerter,
	cfg Config,
) *Executor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Executor{
		Logger:   logger,
		Registry: registry,
		Prober:   prober,
		Tracker:  tracker,
		Alerts:   alerts,
		Timeout:  cfg.ProbeTimeout,
		Limit:    cfg.Concurrency,
		now:      time.Now,
	}
}

// counters are bumped from the per-monitor goroutines.
type counters struct {
	succeeded, failed, errors, down, up atomic.Int64
}

// RunSweep probes every active monitor once. Only a failed registry
// snapshot is returned as an error; per-monitor problems are logged and
// counted in the summary. When ctx is cancelled mid-sweep, the remaining
// monitors are skipped without recording anything.
func (e *Executor) RunSweep(ctx context.Context) (Summary, error) {
	started := e.now().UTC()
	sum := Summary{RunID: uuid.NewString(), StartedAt: started}
	log := e.Logger.With(zap.String("run_id", sum.RunID))

	monitors, err := e.Registry.ListActive(ctx)
	if err != nil {
		log.Error("sweep_list_failed", zap.Error(err))
		return sum, fmt.Errorf("list active monitors: %w", err)
	}
	sum.Monitors = len(monitors)
	log.Info("sweep_started", zap.Int("monitors", len(monitors)))

	var c counters
	var g errgroup.Group
	g.SetLimit(e.Limit)
	for _, m := range monitors {
		m := m
		g.Go(func() error {
			e.runMonitor(ctx, log, m, &c)
			return nil
		})
	}
	_ = g.Wait()

	sum.Succeeded = int(c.succeeded.Load())
	sum.Failed = int(c.failed.Load())
	sum.Errors = int(c.errors.Load())
	sum.Down = int(c.down.Load())
	sum.Up = int(c.up.Load())
	sum.Duration = e.now().Sub(started)

	e.mu.Lock()
	e.last = sum
	e.mu.Unlock()

	log.Info("sweep_completed",
		zap.Int("monitors", sum.Monitors),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("errors", sum.Errors),
		zap.Int("down", sum.Down),
		zap.Int("up", sum.Up),
		zap.Duration("took", sum.Duration),
	)
	return sum, nil
}

// Last returns the summary of the most recent completed sweep.
func (e *Executor) Last() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.last.RunID != ""
}

func (e *Executor) runMonitor(ctx context.Context, log *zap.Logger, m domain.Monitor, c *counters) {
	log = log.With(zap.String("monitor_id", string(m.ID)), zap.String("url", m.URL))
	defer func() {
		if p := recover(); p != nil {
			c.errors.Add(1)
			log.Error("monitor_panic", zap.Any("panic", p))
		}
	}()

	if ctx.Err() != nil {
		c.errors.Add(1)
		log.Info("monitor_skipped_cancelled", zap.Error(ctx.Err()))
		return
	}
	out := e.Prober.Probe(ctx, m.URL, e.Timeout)
	// a cancelled sweep says nothing about the endpoint: drop the outcome
	if ctx.Err() != nil {
		c.errors.Add(1)
		log.Info("monitor_skipped_cancelled", zap.Error(ctx.Err()))
		return
	}
	res := out.Result(m.ID, e.now().UTC())
	if out.Success {
		c.succeeded.Add(1)
	} else {
		c.failed.Add(1)
		log.Debug("probe_failed",
			zap.Int("status", out.StatusCode),
			zap.String("kind", string(out.Kind)),
			zap.String("reason", out.Message),
		)
	}

	obs, err := e.Tracker.Observe(ctx, &res)
	if err != nil {
		// no alert without a recorded result
		c.errors.Add(1)
		log.Warn("monitor_observe_failed", zap.Error(err))
		return
	}

	switch obs.Transition {
	case domain.TransitionBecameDown:
		c.down.Add(1)
		log.Info("monitor_down", zap.Int("status", res.StatusCode), zap.Int64("response_ms", res.ResponseTimeMs))
		if m.HasChannels() {
			e.Alerts.NotifyDown(ctx, m, res)
		}
	case domain.TransitionBecameUp:
		c.up.Add(1)
		log.Info("monitor_up", zap.Time("down_since", obs.Prior.Timestamp))
		if m.HasChannels() && obs.HasPrior {
			e.Alerts.NotifyUp(ctx, m, obs.Prior.Timestamp, res.Timestamp)
		}
	}
}
