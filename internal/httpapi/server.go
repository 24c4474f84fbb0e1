package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/pingwatch/internal/cache"
	"github.com/hamed0406/pingwatch/internal/domain"
	apimw "github.com/hamed0406/pingwatch/internal/httpapi/middleware"
	"github.com/hamed0406/pingwatch/internal/repo"
	"github.com/hamed0406/pingwatch/internal/scheduler"
	"github.com/hamed0406/pingwatch/internal/sweep"
)

// Sweeper runs a sweep on demand and returns its summary.
type Sweeper interface {
	TriggerSweep(ctx context.Context) (sweep.Summary, error)
}

type Server struct {
	Logger   *zap.Logger
	Registry repo.MonitorRegistry
	Pings    repo.PingStore
	Sweeps   Sweeper
	Status   *cache.TTL[MonitorStatus]

	now func() time.Time
}

func NewServer(l *zap.Logger, reg repo.MonitorRegistry, pings repo.PingStore, sw Sweeper, status *cache.TTL[MonitorStatus]) *Server {
	if status == nil {
		status = cache.New[MonitorStatus](time.Minute)
	}
	return &Server{Logger: l, Registry: reg, Pings: pings, Sweeps: sw, Status: status, now: time.Now}
}

// Limits are requests per minute and burst per client IP; zero RPM disables.
type Limits struct {
	PublicRPM, PublicBurst int
	AdminRPM, AdminBurst   int
}

func (s *Server) Router(keys apimw.Keys, origins []string, lim Limits) http.Handler {
	r := chi.NewRouter()
	if len(origins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		// status pages are public
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(lim.PublicRPM, lim.PublicBurst))
			r.Get("/status", s.handleSystemStatus)
			r.Get("/monitors/{id}/status", s.handleMonitorStatus)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(lim.PublicRPM, lim.PublicBurst))
			r.Use(apimw.RequireAny(keys))
			r.Get("/monitors/{id}/pings", s.handlePings)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(lim.AdminRPM, lim.AdminBurst))
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/sweeps", s.handleRunSweep)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now().UTC()
	out := SystemStatus{Timestamp: now}
	out.Services = append(out.Services, serviceStatus{Name: "API", Status: "operational", Description: "Operational API"})

	worker := serviceStatus{Name: "Monitoring Workers", Status: "degraded", Description: "Ping checks and alerting"}
	recent, err := s.Pings.RecentAcrossAllMonitors(r.Context(), now.Add(-workerFreshFor))
	if err != nil {
		s.Logger.Warn("status_recent_pings_error", zap.Error(err))
		worker.Status = "unknown"
	} else if len(recent) > 0 {
		worker.Status = "operational"
		ts := recent[0].Timestamp
		worker.LastCheck = &ts
	}
	out.Services = append(out.Services, worker)

	db := serviceStatus{Name: "Database", Status: "operational", Description: "Monitor registry and ping store"}
	if _, err := s.Registry.ListActive(r.Context()); err != nil {
		s.Logger.Warn("status_registry_error", zap.Error(err))
		db.Status = "down"
	}
	out.Services = append(out.Services, db)

	out.Overall = "degraded"
	if worker.Status == "operational" && db.Status == "operational" {
		out.Overall = "operational"
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if st, ok := s.Status.Get(id); ok {
		writeJSON(w, http.StatusOK, st)
		return
	}

	m, err := s.Registry.Get(r.Context(), domain.MonitorID(id))
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !m.Active) {
		writeJSON(w, http.StatusNotFound, MonitorStatus{MonitorID: domain.MonitorID(id), Name: "Unknown", Status: "unknown"})
		return
	}
	if err != nil {
		s.Logger.Error("status_registry_error", zap.String("monitor_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registry error")
		return
	}

	since := s.now().UTC().Add(-statusWindow)
	pings, err := s.Pings.Query(r.Context(), m.ID, repo.TimeRange{From: since}, repo.MaxQueryLimit)
	if err != nil {
		s.Logger.Error("status_query_error", zap.String("monitor_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query error")
		return
	}

	st := summarize(m, pings)
	s.Status.Set(id, st)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePings(w http.ResponseWriter, r *http.Request) {
	id := domain.MonitorID(chi.URLParam(r, "id"))
	q := r.URL.Query()

	var tr repo.TimeRange
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &tr.From}, {"to", &tr.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+p.name+": want RFC3339")
			return
		}
		*p.dst = t
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	if _, err := s.Registry.Get(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "monitor not found")
			return
		}
		s.Logger.Error("pings_registry_error", zap.String("monitor_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registry error")
		return
	}

	pings, err := s.Pings.Query(r.Context(), id, tr, limit)
	if err != nil {
		s.Logger.Error("pings_query_error", zap.String("monitor_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query error")
		return
	}
	if pings == nil {
		pings = []domain.PingResult{}
	}
	writeJSON(w, http.StatusOK, pings)
}

func (s *Server) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Sweeps.TriggerSweep(r.Context())
	switch {
	case errors.Is(err, scheduler.ErrJobRunning), errors.Is(err, scheduler.ErrJobLocked):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.Logger.Error("sweep_trigger_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	s.Logger.Info("sweep_triggered", zap.String("run_id", sum.RunID), zap.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusOK, sum)
}
