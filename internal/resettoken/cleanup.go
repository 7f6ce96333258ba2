package resettoken

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Kyz7/hcg-auth/internal/logging"
)

// Cleaner periodically deletes reset tokens past their retention window.
type Cleaner struct {
	store     *Store
	interval  time.Duration
	retention time.Duration
	log       *zap.Logger
}

func NewCleaner(store *Store, interval, retention time.Duration, log *zap.Logger) *Cleaner {
	return &Cleaner{store: store, interval: interval, retention: retention, log: log}
}

// Run blocks until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

func (c *Cleaner) RunOnce(ctx context.Context) int64 {
	n, err := c.store.DeleteExpired(ctx, c.retention)
	if err != nil {
		logging.LogError(c.log, "reset token cleanup failed", err)
		return 0
	}
	if n > 0 {
		c.log.Info("cleaned up expired reset tokens", zap.Int64("deleted", n))
	}
	return n
}
