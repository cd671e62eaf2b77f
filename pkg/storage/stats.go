package storage

import (
	"context"
	"database/sql"
	"time"
)

// StartStatsRoutine reports the pool statistics of db to report every
// interval until ctx is cancelled.
func StartStatsRoutine(ctx context.Context, db *sql.DB, interval time.Duration, report func(sql.DBStats)) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report(db.Stats())
			case <-ctx.Done():
				return
			}
		}
	}()
}
