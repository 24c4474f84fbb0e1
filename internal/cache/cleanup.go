package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunCleanup evicts expired entries every interval until ctx is done.
func (c *TTL[V]) RunCleanup(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				logger.Debug("cache_cleanup", zap.Int("removed", n), zap.Int("size", c.Size()))
			}
		}
	}
}
