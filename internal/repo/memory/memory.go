package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/pingwatch/internal/domain"
	"github.com/hamed0406/pingwatch/internal/repo"
)

// Store keeps monitors and ping history in process. Per-monitor slices are
// in insertion order, which is also time order.
type Store struct {
	mu       sync.RWMutex
	monitors map[domain.MonitorID]domain.Monitor
	byID     map[domain.MonitorID][]domain.PingResult
	all      []domain.PingResult
}

func New() *Store {
	return &Store{
		monitors: make(map[domain.MonitorID]domain.Monitor),
		byID:     make(map[domain.MonitorID][]domain.PingResult),
		all:      make([]domain.PingResult, 0, 128),
	}
}

// ---- MonitorRegistry ----

// Put inserts or replaces a monitor. Tests and the YAML-less dev setup use
// it; production configuration lives outside this service.
func (m *Store) Put(mon domain.Monitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mon.ID == "" {
		mon.ID = domain.MonitorID(uuid.NewString())
	}
	m.monitors[mon.ID] = mon
}

func (m *Store) ListActive(ctx context.Context) ([]domain.Monitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Monitor, 0, len(m.monitors))
	for _, mon := range m.monitors {
		if mon.Active {
			out = append(out, mon)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) Get(ctx context.Context, id domain.MonitorID) (domain.Monitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mon, ok := m.monitors[id]
	if !ok {
		return domain.Monitor{}, repo.ErrNotFound
	}
	return mon, nil
}

// ---- PingStore ----

func (m *Store) Append(ctx context.Context, r *domain.PingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(r)
}

func (m *Store) AppendAfterLatest(ctx context.Context, r *domain.PingResult) (domain.PingResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prior, found := m.latestLocked(r.MonitorID)
	if err := m.appendLocked(r); err != nil {
		return domain.PingResult{}, false, err
	}
	return prior, found, nil
}

func (m *Store) appendLocked(r *domain.PingResult) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if last, ok := m.latestLocked(r.MonitorID); ok && r.Timestamp.Before(last.Timestamp) {
		return repo.ErrOutOfOrder
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := *r
	m.byID[r.MonitorID] = append(m.byID[r.MonitorID], cp)

	// keep the fleet-wide slice time ordered even when monitors interleave
	i := sort.Search(len(m.all), func(i int) bool { return m.all[i].Timestamp.After(cp.Timestamp) })
	m.all = append(m.all, domain.PingResult{})
	copy(m.all[i+1:], m.all[i:])
	m.all[i] = cp
	return nil
}

func (m *Store) latestLocked(id domain.MonitorID) (domain.PingResult, bool) {
	hist := m.byID[id]
	if len(hist) == 0 {
		return domain.PingResult{}, false
	}
	return hist[len(hist)-1], true
}

func (m *Store) MostRecent(ctx context.Context, id domain.MonitorID) (domain.PingResult, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.latestLocked(id)
	return r, ok, nil
}

func (m *Store) Query(ctx context.Context, id domain.MonitorID, tr repo.TimeRange, limit int) ([]domain.PingResult, error) {
	limit = repo.NormalizeLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.byID[id]
	out := make([]domain.PingResult, 0, min(limit, len(hist)))
	for i := len(hist) - 1; i >= 0 && len(out) < limit; i-- {
		if tr.Contains(hist[i].Timestamp) {
			out = append(out, hist[i])
		}
	}
	return out, nil
}

func (m *Store) RecentAcrossAllMonitors(ctx context.Context, since time.Time) ([]domain.PingResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PingResult
	for i := len(m.all) - 1; i >= 0 && len(out) < repo.DefaultQueryLimit; i-- {
		if m.all[i].Timestamp.Before(since) {
			break
		}
		out = append(out, m.all[i])
	}
	return out, nil
}
