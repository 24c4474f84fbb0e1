// Package transition derives up/down edges from a monitor's ping log.
//
// A monitor without history counts as up: its first failing probe is a
// became-down edge, its first passing probe is not an edge. Repeated
// failures never produce a second edge.
package transition

import (
	"context"
	"fmt"
	"sync"

	"github.com/hamed0406/pingwatch/internal/domain"
	"github.com/hamed0406/pingwatch/internal/repo"
)

// Classify compares the next result with the prior one. hasPrior=false means
// the monitor has no recorded history.
func Classify(prior domain.PingResult, hasPrior bool, next domain.PingResult) domain.Transition {
	wasUp := !hasPrior || prior.Success
	wasDown := hasPrior && !prior.Success
	isUp := next.Success
	isDown := !next.Success

	switch {
	case isDown && wasUp:
		return domain.TransitionBecameDown
	case isUp && wasDown:
		return domain.TransitionBecameUp
	default:
		return domain.TransitionNone
	}
}

// StateCache carries each monitor's last recorded result between sweeps.
type StateCache interface {
	Get(key string) (domain.PingResult, bool)
	Set(key string, value domain.PingResult)
	Delete(key string)
}

// Observation is what Observe learned while recording one result.
type Observation struct {
	Transition domain.Transition
	Prior      domain.PingResult
	HasPrior   bool
}

type Tracker struct {
	store repo.PingStore
	cache StateCache
	locks keyedMutex
}

type Option func(*Tracker)

// WithStateCache skips the store read when the cache already holds the
// monitor's last result. It only applies to stores without
// repo.AtomicAppender; an atomic store is always the source of the prior.
// The cache must only be written through this tracker.
func WithStateCache(c StateCache) Option {
	return func(t *Tracker) { t.cache = c }
}

func NewTracker(store repo.PingStore, opts ...Option) *Tracker {
	t := &Tracker{store: store}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Classify reads the monitor's most recent stored result and classifies next
// against it without recording anything.
func (t *Tracker) Classify(ctx context.Context, id domain.MonitorID, next domain.PingResult) (domain.Transition, error) {
	prior, found, err := t.store.MostRecent(ctx, id)
	if err != nil {
		return domain.TransitionNone, fmt.Errorf("read prior result: %w", err)
	}
	return Classify(prior, found, next), nil
}

// Observe reads the prior result, appends next and classifies the pair as
// one step. No other Observe for the same monitor can interleave: stores
// implementing repo.AtomicAppender do it in one transaction and always supply
// the prior themselves, others are serialized by a per-monitor lock in this
// tracker.
func (t *Tracker) Observe(ctx context.Context, next *domain.PingResult) (Observation, error) {
	key := string(next.MonitorID)
	unlock := t.locks.lock(key)
	defer unlock()

	var (
		prior domain.PingResult
		found bool
		err   error
	)
	if aa, ok := t.store.(repo.AtomicAppender); ok {
		prior, found, err = aa.AppendAfterLatest(ctx, next)
		if err != nil {
			return Observation{}, fmt.Errorf("append result: %w", err)
		}
	} else {
		prior, found, err = t.prior(ctx, next.MonitorID)
		if err != nil {
			return Observation{}, err
		}
		if err := t.store.Append(ctx, next); err != nil {
			t.forget(key)
			return Observation{}, fmt.Errorf("append result: %w", err)
		}
		if t.cache != nil {
			t.cache.Set(key, *next)
		}
	}

	return Observation{
		Transition: Classify(prior, found, *next),
		Prior:      prior,
		HasPrior:   found,
	}, nil
}

func (t *Tracker) prior(ctx context.Context, id domain.MonitorID) (domain.PingResult, bool, error) {
	if t.cache != nil {
		if r, ok := t.cache.Get(string(id)); ok {
			return r, true, nil
		}
	}
	r, found, err := t.store.MostRecent(ctx, id)
	if err != nil {
		return domain.PingResult{}, false, fmt.Errorf("read prior result: %w", err)
	}
	return r, found, nil
}

func (t *Tracker) forget(key string) {
	if t.cache != nil {
		t.cache.Delete(key)
	}
}

// keyedMutex hands out one mutex per key and drops it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m := k.locks[key]
	if m == nil {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
