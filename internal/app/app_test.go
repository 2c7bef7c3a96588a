package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/goose-bot/internal/config"
	"github.com/garyellow/goose-bot/internal/directory"
	"github.com/garyellow/goose-bot/internal/ledger"
	"github.com/garyellow/goose-bot/internal/logger"
	"github.com/garyellow/goose-bot/internal/metrics"
	"github.com/garyellow/goose-bot/internal/r2client/r2clienttest"
	"github.com/garyellow/goose-bot/internal/snapshot"
	"github.com/garyellow/goose-bot/internal/storage"
)

// setupTestApp creates an Application with real storage and no network
// collaborators, enough to exercise the HTTP surface and background jobs.
func setupTestApp(t *testing.T) *Application {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.New(context.Background(), filepath.Join(dir, "cache.db"), 168*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	replies, err := ledger.Open(filepath.Join(dir, "submission_replies_u_goose.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = replies.Close() })

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	log := logger.Discard()

	return &Application{
		cfg: &config.Config{
			MetricsUsername:  "prometheus",
			MetricsPassword:  "s3cret",
			R2BackupInterval: time.Hour,
			ShutdownTimeout:  time.Second,
		},
		logger:   log,
		db:       db,
		metrics:  m,
		registry: registry,
		ledger:   replies,
		cache:    directory.NewCached(directory.NewChain(nil, m, log), db, m, log),
	}
}

func serve(a *Application, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestLivenessCheck(t *testing.T) {
	a := setupTestApp(t)

	w := serve(a, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode(t, w)["status"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestReadinessCheck_NotRunning(t *testing.T) {
	a := setupTestApp(t)

	w := serve(a, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "poll loop not running", decode(t, w)["reason"])
}

func TestReadinessCheck_Ready(t *testing.T) {
	a := setupTestApp(t)
	require.NoError(t, a.ledger.RecordReply("abc123"))
	a.ready.Store(true)

	w := serve(a, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "connected", body["database"])
	ledgerInfo, ok := body["ledger"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, ledgerInfo["entries"])
}

func TestReadinessCheck_DatabaseClosed(t *testing.T) {
	a := setupTestApp(t)
	a.ready.Store(true)
	require.NoError(t, a.db.Close())

	w := serve(a, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "database unavailable", decode(t, w)["reason"])
}

func TestMetricsEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		user, pass string
		setAuth    bool
		want       int
	}{
		{"auth disabled", false, "", "", false, http.StatusOK},
		{"valid credentials", true, "prometheus", "s3cret", true, http.StatusOK},
		{"wrong password", true, "prometheus", "nope", true, http.StatusUnauthorized},
		{"wrong user", true, "admin", "s3cret", true, http.StatusUnauthorized},
		{"no header", true, "", "", false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := setupTestApp(t)
			a.cfg.MetricsAuthEnabled = tt.enabled
			a.metrics.RecordReply("submissions", "success")

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := serve(a, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.True(t, strings.Contains(w.Body.String(), "goose_replies_total"))
			} else {
				assert.Equal(t, `Basic realm="metrics"`, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRecordLedgerMetrics(t *testing.T) {
	a := setupTestApp(t)
	require.NoError(t, a.ledger.RecordReply("a"))
	require.NoError(t, a.ledger.RecordReply("b"))

	a.recordLedgerMetrics()

	w := serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "goose_ledger_entries 2")
}

func TestBackgroundJobs_StopOnCancel(t *testing.T) {
	a := setupTestApp(t)
	a.snapshots = snapshot.New(r2clienttest.NewMemoryStore(), snapshot.Config{
		SnapshotKey: "ledger/test.zst",
		LockKey:     "locks/test",
		LockTTL:     time.Minute,
	}, a.metrics, a.logger)
	require.NoError(t, a.ledger.RecordReply("abc123"))

	ctx, cancel := context.WithCancel(context.Background())
	a.startBackgroundJobs(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background jobs did not stop")
	}

	// Shutdown-time backup uploads the grown ledger once.
	a.backupLedger(context.Background())
	uploaded, err := a.snapshots.Backup(context.Background(), a.ledger.Path())
	require.NoError(t, err)
	assert.False(t, uploaded)
}

func TestOpenLedger_StandbyLeavesNoLedger(t *testing.T) {
	ctx := context.Background()
	store := r2clienttest.NewMemoryStore()
	cfg := snapshot.Config{
		SnapshotKey: "ledger/submission_replies_u_goose.txt.zst",
		LockKey:     "locks/goose-bot-goose",
		LockTTL:     time.Minute,
	}

	// The active replica has backed up a ledger and still holds the lease.
	activeDir := t.TempDir()
	active := snapshot.New(store, cfg, nil, nil)
	activeLedger, err := openLedger(ctx, active, filepath.Join(activeDir, "ledger.txt"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = activeLedger.Close() })
	require.NoError(t, activeLedger.RecordReply("abc123"))
	_, err = active.Backup(ctx, activeLedger.Path())
	require.NoError(t, err)

	standbyPath := filepath.Join(t.TempDir(), "ledger.txt")
	_, err = openLedger(ctx, snapshot.New(store, cfg, nil, nil), standbyPath, logger.Discard())
	require.ErrorIs(t, err, ErrLockHeld)
	_, statErr := os.Stat(standbyPath)
	assert.True(t, os.IsNotExist(statErr), "standby must not restore a snapshot")

	// Once the lease is released, the next instance restores the latest snapshot.
	require.NoError(t, activeLedger.RecordReply("def456"))
	_, err = active.Backup(ctx, activeLedger.Path())
	require.NoError(t, err)
	require.NoError(t, active.ReleaseLock(ctx))

	successor := snapshot.New(store, cfg, nil, nil)
	restored, err := openLedger(ctx, successor, standbyPath, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = restored.Close() })
	assert.Equal(t, []string{"abc123", "def456"}, restored.Entries())
	assert.True(t, successor.LockHeld())
}
