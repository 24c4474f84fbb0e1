package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/pingwatch/internal/domain"
	"github.com/hamed0406/pingwatch/internal/repo"
)

//go:embed schema.sql
var schemaSQL string

var _ repo.MonitorRegistry = (*Store)(nil)
var _ repo.PingStore = (*Store)(nil)
var _ repo.AtomicAppender = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates tables and the two hot-path indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ---- MonitorRegistry ----

const monitorColumns = `id, name, url, is_active, alert_email, webhook_url`

func (s *Store) ListActive(ctx context.Context) ([]domain.Monitor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+monitorColumns+`
		   FROM monitors
		  WHERE is_active = true
		  ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active monitors: %w", err)
	}
	defer rows.Close()

	var out []domain.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id domain.MonitorID) (domain.Monitor, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = $1`, string(id))
	m, err := scanMonitor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Monitor{}, repo.ErrNotFound
	}
	if err != nil {
		return domain.Monitor{}, fmt.Errorf("get monitor: %w", err)
	}
	return m, nil
}

func scanMonitor(row pgx.Row) (domain.Monitor, error) {
	var (
		id, name, url string
		active        bool
		email, hook   *string
	)
	if err := row.Scan(&id, &name, &url, &active, &email, &hook); err != nil {
		return domain.Monitor{}, err
	}
	m := domain.Monitor{ID: domain.MonitorID(id), Name: name, URL: url, Active: active}
	if email != nil {
		m.AlertEmail = *email
	}
	if hook != nil {
		m.WebhookURL = *hook
	}
	return m, nil
}

// ---- PingStore ----

const pingColumns = `id, monitor_id, ts, status_code, response_time_ms, success, error_kind`

func (s *Store) Append(ctx context.Context, r *domain.PingResult) error {
	_, _, err := s.AppendAfterLatest(ctx, r)
	return err
}

// AppendAfterLatest reads the prior result and inserts r in one transaction
// holding a per-monitor advisory lock, so two writers for the same monitor
// serialize.
func (s *Store) AppendAfterLatest(ctx context.Context, r *domain.PingResult) (domain.PingResult, bool, error) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	var (
		prior domain.PingResult
		found bool
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(r.MonitorID)); err != nil {
			return fmt.Errorf("lock monitor: %w", err)
		}
		row := tx.QueryRow(ctx,
			`SELECT `+pingColumns+`
			   FROM ping_results
			  WHERE monitor_id = $1
			  ORDER BY ts DESC
			  LIMIT 1`, string(r.MonitorID))
		p, err := scanPing(row)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read prior: %w", err)
		default:
			prior, found = p, true
		}
		if found && r.Timestamp.Before(prior.Timestamp) {
			return repo.ErrOutOfOrder
		}

		var kind *string
		if r.ErrorKind != "" {
			kind = &r.ErrorKind
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO ping_results
			   (`+pingColumns+`)
			 VALUES
			   ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, string(r.MonitorID), r.Timestamp, r.StatusCode, r.ResponseTimeMs, r.Success, kind,
		)
		if err != nil {
			return fmt.Errorf("insert ping result: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.PingResult{}, false, err
	}
	return prior, found, nil
}

func (s *Store) MostRecent(ctx context.Context, id domain.MonitorID) (domain.PingResult, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pingColumns+`
		   FROM ping_results
		  WHERE monitor_id = $1
		  ORDER BY ts DESC
		  LIMIT 1`, string(id))
	p, err := scanPing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PingResult{}, false, nil
	}
	if err != nil {
		return domain.PingResult{}, false, fmt.Errorf("most recent: %w", err)
	}
	return p, true, nil
}

func (s *Store) Query(ctx context.Context, id domain.MonitorID, tr repo.TimeRange, limit int) ([]domain.PingResult, error) {
	var from, to *time.Time
	if !tr.From.IsZero() {
		from = &tr.From
	}
	if !tr.To.IsZero() {
		to = &tr.To
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pingColumns+`
		   FROM ping_results
		  WHERE monitor_id = $1
		    AND ($2::timestamptz IS NULL OR ts >= $2)
		    AND ($3::timestamptz IS NULL OR ts <= $3)
		  ORDER BY ts DESC
		  LIMIT $4`, string(id), from, to, repo.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query pings: %w", err)
	}
	return collectPings(rows)
}

func (s *Store) RecentAcrossAllMonitors(ctx context.Context, since time.Time) ([]domain.PingResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pingColumns+`
		   FROM ping_results
		  WHERE ts >= $1
		  ORDER BY ts DESC
		  LIMIT $2`, since, repo.DefaultQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("recent pings: %w", err)
	}
	return collectPings(rows)
}

func collectPings(rows pgx.Rows) ([]domain.PingResult, error) {
	defer rows.Close()
	var out []domain.PingResult
	for rows.Next() {
		p, err := scanPing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPing(row pgx.Row) (domain.PingResult, error) {
	var (
		p         domain.PingResult
		monitorID string
		kind      *string
	)
	if err := row.Scan(&p.ID, &monitorID, &p.Timestamp, &p.StatusCode, &p.ResponseTimeMs, &p.Success, &kind); err != nil {
		return domain.PingResult{}, err
	}
	p.MonitorID = domain.MonitorID(monitorID)
	if kind != nil {
		p.ErrorKind = *kind
	}
	return p, nil
}
