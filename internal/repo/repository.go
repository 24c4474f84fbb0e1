package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/pingwatch/internal/domain"
)

// DefaultQueryLimit applies when the caller passes limit <= 0; MaxQueryLimit
// caps everything else. A day of one-minute probes fits under the cap.
const (
	DefaultQueryLimit = 1000
	MaxQueryLimit     = 5000
)

var (
	// ErrOutOfOrder is returned when an append would move a monitor's
	// history backwards in time.
	ErrOutOfOrder = errors.New("ping result older than latest for monitor")
	ErrNotFound   = errors.New("not found")
)

// TimeRange bounds a query. Zero values are unbounded.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Ports (interfaces): memory, postgres and file adapters implement these.

// MonitorRegistry is the read-only view of the externally owned monitor
// configuration.
type MonitorRegistry interface {
	ListActive(ctx context.Context) ([]domain.Monitor, error)
	Get(ctx context.Context, id domain.MonitorID) (domain.Monitor, error)
}

// PingStore is the append-only probe log. Query and RecentAcrossAllMonitors
// return newest first. RecentAcrossAllMonitors returns at most
// DefaultQueryLimit results.
type PingStore interface {
	Append(ctx context.Context, r *domain.PingResult) error
	// MostRecent reports found=false when the monitor has no history.
	MostRecent(ctx context.Context, id domain.MonitorID) (r domain.PingResult, found bool, err error)
	Query(ctx context.Context, id domain.MonitorID, tr TimeRange, limit int) ([]domain.PingResult, error)
	RecentAcrossAllMonitors(ctx context.Context, since time.Time) ([]domain.PingResult, error)
}

// AtomicAppender is implemented by stores that can read the prior result and
// append the new one without another writer slipping in between.
type AtomicAppender interface {
	AppendAfterLatest(ctx context.Context, r *domain.PingResult) (prior domain.PingResult, found bool, err error)
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultQueryLimit
	case limit > MaxQueryLimit:
		return MaxQueryLimit
	}
	return limit
}
