package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// Cleaner purges soft-deleted items once their retention has passed.
type Cleaner struct {
	DB        *sql.DB
	Interval  time.Duration
	Retention time.Duration
	Log       *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// CleanOnce removes the expired items and returns how many were removed.
func (c *Cleaner) CleanOnce(ctx context.Context) (int64, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	cutoff := now().Add(-c.Retention).Unix()
	res, err := c.DB.ExecContext(ctx, `
		DELETE FROM items
		 WHERE deleted = true
		   AND version < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Start runs CleanOnce every Interval until ctx is done.
func (c *Cleaner) Start(ctx context.Context) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(c.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := c.CleanOnce(ctx)
				if err != nil {
					log.Error("failed to clean soft-deleted items", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("cleaned soft-deleted items", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
