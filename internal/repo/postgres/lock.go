package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TryLock takes a session-level advisory lock keyed on name. The lock lives
// on one pooled connection, which is held until release is called.
func (s *Store) TryLock(ctx context.Context, name string) (func(), bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire conn: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, name).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, name); err != nil {
			s.log.Warn("advisory_unlock_error", zap.String("name", name), zap.Error(err))
			// a broken session drops its locks; don't hand it back to the pool
			conn.Conn().Close(ctx)
		}
		conn.Release()
	}
	return release, true, nil
}
