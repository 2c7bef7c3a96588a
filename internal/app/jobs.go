package app

import (
	"context"
	"time"

	"github.com/garyellow/goose-bot/internal/config"
)

// startBackgroundJobs starts all background goroutines tracked by the WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.every(ctx, "cache_cleanup", config.CacheCleanupInterval, true, a.cleanupCache)
	})
	a.wg.Go(func() {
		a.every(ctx, "ledger_metrics", config.MetricsUpdateInterval, true, func(context.Context) {
			a.recordLedgerMetrics()
		})
	})
	if a.snapshots != nil {
		a.wg.Go(func() {
			a.every(ctx, "ledger_backup", a.cfg.R2BackupInterval, false, a.backupLedger)
		})
	}
}

// every runs fn on a fixed interval until ctx is cancelled, optionally once
// immediately.
func (a *Application) every(ctx context.Context, job string, interval time.Duration, immediate bool, fn func(context.Context)) {
	log := a.logger.WithField("job", job)
	log.Debug("Background job started")
	defer log.Debug("Background job stopped")

	if immediate {
		fn(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// cleanupCache deletes expired course rows.
func (a *Application) cleanupCache(ctx context.Context) {
	start := time.Now()
	deleted, err := a.cache.Cleanup(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.WithError(err).Error("Failed to cleanup expired courses")
		}
		return
	}
	a.logger.WithField("deleted", deleted).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Course cache cleanup completed")
}

func (a *Application) recordLedgerMetrics() {
	a.metrics.SetLedgerEntries(a.ledger.Len())
}

// backupLedger uploads a ledger snapshot if the ledger grew.
func (a *Application) backupLedger(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, config.LedgerBackup)
	defer cancel()

	uploaded, err := a.snapshots.Backup(ctx, a.ledger.Path())
	if err != nil {
		a.logger.WithError(err).Warn("Ledger backup failed")
		return
	}
	if uploaded {
		a.logger.WithField("entries", a.ledger.Len()).Info("Ledger backed up")
	}
}
