// Package snapshot backs the reply ledger up to object storage and holds the
// single-instance lease that keeps two replicas from replying at once.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/garyellow/goose-bot/internal/logger"
	"github.com/garyellow/goose-bot/internal/metrics"
	"github.com/garyellow/goose-bot/internal/r2client"
)

const snapshotContentType = "application/zstd"

// Config holds snapshot manager configuration.
type Config struct {
	SnapshotKey string        // Object key of the compressed ledger
	LockKey     string        // Object key of the instance lease
	LockTTL     time.Duration // Lease duration
	// RenewInterval defaults to a third of LockTTL, at least 10s.
	RenewInterval time.Duration
	Host          string // Recorded in the lease for operators
}

// Manager uploads and restores ledger snapshots and owns the lease.
type Manager struct {
	store   r2client.Store
	cfg     Config
	lock    *r2client.Lock
	metrics *metrics.Metrics
	logger  *logger.Logger

	mu           sync.Mutex
	uploadedSize int64     // -1 until the first upload
	renewedAt    time.Time // last successful acquire or renew
}

// New creates a manager over store.
func New(store r2client.Store, cfg Config, m *metrics.Metrics, log *logger.Logger) *Manager {
	if cfg.RenewInterval <= 0 {
		cfg.RenewInterval = max(cfg.LockTTL/3, 10*time.Second)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		store:        store,
		cfg:          cfg,
		lock:         r2client.NewLock(store, cfg.LockKey, cfg.LockTTL, cfg.Host),
		metrics:      m,
		logger:       log.WithModule("snapshot"),
		uploadedSize: -1,
	}
}

// Restore downloads the latest snapshot into ledgerPath when no local
// ledger exists. It reports whether a snapshot was restored.
func (m *Manager) Restore(ctx context.Context, ledgerPath string) (bool, error) {
	if _, err := os.Stat(ledgerPath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("restore ledger: %w", err)
	}

	body, etag, err := m.store.Get(ctx, m.cfg.SnapshotKey)
	if errors.Is(err, r2client.ErrNotFound) {
		m.logger.Info("No ledger snapshot to restore")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore ledger: %w", err)
	}
	defer func() { _ = body.Close() }()

	if err := os.MkdirAll(filepath.Dir(ledgerPath), 0o755); err != nil {
		return false, fmt.Errorf("restore ledger: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(ledgerPath), ".ledger-restore-*")
	if err != nil {
		return false, fmt.Errorf("restore ledger: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	n, err := r2client.Decompress(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		m.recordBackup("restore_error")
		return false, fmt.Errorf("restore ledger: %w", err)
	}
	if err := os.Rename(tmpPath, ledgerPath); err != nil {
		return false, fmt.Errorf("restore ledger: %w", err)
	}

	m.mu.Lock()
	m.uploadedSize = n
	m.mu.Unlock()

	m.recordBackup("restored")
	m.logger.Info("Ledger restored from snapshot", "bytes", n, "etag", etag)
	return true, nil
}

// Backup uploads ledgerPath when it has grown since the last upload. The
// ledger is append-only, so an unchanged size means unchanged content.
func (m *Manager) Backup(ctx context.Context, ledgerPath string) (bool, error) {
	data, err := os.ReadFile(ledgerPath)
	if err != nil {
		m.recordBackup("error")
		return false, fmt.Errorf("backup ledger: %w", err)
	}

	m.mu.Lock()
	unchanged := int64(len(data)) == m.uploadedSize
	m.mu.Unlock()
	if unchanged {
		m.recordBackup("skipped")
		return false, nil
	}

	compressed, err := r2client.Compress(bytes.NewReader(data))
	if err != nil {
		m.recordBackup("error")
		return false, fmt.Errorf("backup ledger: %w", err)
	}
	etag, err := m.store.Put(ctx, m.cfg.SnapshotKey, bytes.NewReader(compressed), snapshotContentType)
	if err != nil {
		m.recordBackup("error")
		return false, fmt.Errorf("backup ledger: %w", err)
	}

	m.mu.Lock()
	m.uploadedSize = int64(len(data))
	m.mu.Unlock()

	m.recordBackup("success")
	m.logger.Debug("Ledger snapshot uploaded", "bytes", len(data), "compressed", len(compressed), "etag", etag)
	return true, nil
}

// AcquireLock takes the instance lease. False means another replica is running.
func (m *Manager) AcquireLock(ctx context.Context) (bool, error) {
	ok, err := m.lock.Acquire(ctx)
	if ok {
		m.mu.Lock()
		m.renewedAt = time.Now()
		m.mu.Unlock()
	}
	return ok, err
}

// HoldLock renews the lease until ctx is done. When the lease is lost, or
// the next renewal would come after it expires, onLost is called and
// HoldLock returns.
func (m *Manager) HoldLock(ctx context.Context, onLost func()) {
	ticker := time.NewTicker(m.cfg.RenewInterval)
	defer ticker.Stop()

	m.mu.Lock()
	lastRenewed := m.renewedAt
	m.mu.Unlock()
	if lastRenewed.IsZero() {
		lastRenewed = time.Now()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		renewed, err := m.lock.Renew(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			m.logger.WithError(err).Warn("Lease renew failed")
			if !m.expiresBeforeNextRenew(time.Since(lastRenewed)) {
				continue
			}
			m.logger.Error("Lease would expire before the next renewal")
		case !renewed:
			m.logger.Error("Lease lost to another instance")
		default:
			lastRenewed = time.Now()
			continue
		}
		if onLost != nil {
			onLost()
		}
		return
	}
}

// expiresBeforeNextRenew reports whether a lease last renewed elapsed ago
// runs out before the next tick.
func (m *Manager) expiresBeforeNextRenew(elapsed time.Duration) bool {
	return elapsed+m.cfg.RenewInterval >= m.cfg.LockTTL
}

// ReleaseLock gives the lease up if this instance holds it.
func (m *Manager) ReleaseLock(ctx context.Context) error {
	return m.lock.Release(ctx)
}

// LockHeld reports whether the lease is currently held.
func (m *Manager) LockHeld() bool {
	return m.lock.Held()
}

func (m *Manager) recordBackup(status string) {
	if m.metrics != nil {
		m.metrics.RecordLedgerBackup(status)
	}
}
