package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/goose-bot/internal/ledger"
	"github.com/garyellow/goose-bot/internal/metrics"
	"github.com/garyellow/goose-bot/internal/r2client/r2clienttest"
)

func testConfig() Config {
	return Config{
		SnapshotKey:   "ledger/submission_replies_u_goose.txt.zst",
		LockKey:       "locks/goose-bot-goose",
		LockTTL:       time.Minute,
		RenewInterval: 5 * time.Millisecond,
		Host:          "test",
	}
}

func TestBackupThenRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := r2clienttest.NewMemoryStore()
	mgr := New(store, testConfig(), metrics.New(prometheus.NewRegistry()), nil)

	src := filepath.Join(t.TempDir(), "submission_replies_u_goose.txt")
	l, err := ledger.Open(src)
	require.NoError(t, err)
	require.NoError(t, l.RecordReply("abc123"))
	require.NoError(t, l.RecordReply("def456"))
	require.NoError(t, l.Close())

	uploaded, err := mgr.Backup(ctx, src)
	require.NoError(t, err)
	assert.True(t, uploaded)

	uploaded, err = mgr.Backup(ctx, src)
	require.NoError(t, err)
	assert.False(t, uploaded, "unchanged ledger is not re-uploaded")

	dst := filepath.Join(t.TempDir(), "nested", "submission_replies_u_goose.txt")
	restored, err := New(store, testConfig(), nil, nil).Restore(ctx, dst)
	require.NoError(t, err)
	assert.True(t, restored)

	got, err := ledger.Open(dst)
	require.NoError(t, err)
	defer got.Close()
	assert.Equal(t, []string{"abc123", "def456"}, got.Entries())
}

func TestRestore_KeepsExistingLedger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := r2clienttest.NewMemoryStore()
	mgr := New(store, testConfig(), nil, nil)

	path := filepath.Join(t.TempDir(), "ledger.txt")
	require.NoError(t, os.WriteFile(path, []byte("remote\n"), 0o644))
	_, err := mgr.Backup(ctx, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("local\n"), 0o644))
	restored, err := mgr.Restore(ctx, path)
	require.NoError(t, err)
	assert.False(t, restored)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "local\n", string(data))
}

func TestRestore_NoSnapshot(t *testing.T) {
	t.Parallel()
	mgr := New(r2clienttest.NewMemoryStore(), testConfig(), nil, nil)
	path := filepath.Join(t.TempDir(), "ledger.txt")

	restored, err := mgr.Restore(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.NoFileExists(t, path)
}

func TestBackup_MissingLedger(t *testing.T) {
	t.Parallel()
	mgr := New(r2clienttest.NewMemoryStore(), testConfig(), nil, nil)
	_, err := mgr.Backup(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestLock_SecondInstanceRefused(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := r2clienttest.NewMemoryStore()

	first := New(store, testConfig(), nil, nil)
	second := New(store, testConfig(), nil, nil)

	ok, err := first.AcquireLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, first.LockHeld())

	ok, err = second.AcquireLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.ReleaseLock(ctx))
	ok, err = second.AcquireLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHoldLock_CallsOnLost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := r2clienttest.NewMemoryStore()
	mgr := New(store, testConfig(), nil, nil)

	ok, err := mgr.AcquireLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Another replica overwrites the lease.
	_, err = store.Put(ctx, testConfig().LockKey, strings.NewReader(`{"owner":"other","expires_at":"2099-01-01T00:00:00Z"}`), "")
	require.NoError(t, err)

	var lost atomic.Bool
	done := make(chan struct{})
	go func() {
		mgr.HoldLock(ctx, func() { lost.Store(true) })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HoldLock did not return after losing the lease")
	}
	assert.True(t, lost.Load())
	assert.False(t, mgr.LockHeld())
}

func TestHoldLock_StopsOnCancel(t *testing.T) {
	t.Parallel()
	store := r2clienttest.NewMemoryStore()
	mgr := New(store, testConfig(), nil, nil)
	ok, err := mgr.AcquireLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.HoldLock(ctx, func() { t.Error("lease reported lost") })
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HoldLock did not stop")
	}
	assert.True(t, mgr.LockHeld())
}

func TestHoldLock_GivesUpBeforeExpiry(t *testing.T) {
	t.Parallel()
	store := r2clienttest.NewMemoryStore()
	cfg := testConfig()
	cfg.LockTTL = 300 * time.Millisecond
	cfg.RenewInterval = 100 * time.Millisecond
	mgr := New(store, cfg, nil, nil)

	ok, err := mgr.AcquireLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	acquired := time.Now()
	store.FailWrites(errors.New("r2 unavailable"))

	lostAt := make(chan time.Time, 1)
	go mgr.HoldLock(context.Background(), func() { lostAt <- time.Now() })

	select {
	case at := <-lostAt:
		assert.Less(t, at.Sub(acquired), cfg.LockTTL, "lease must be given up while it is still valid")
	case <-time.After(2 * time.Second):
		t.Fatal("HoldLock never gave up the failing lease")
	}
}

func TestExpiresBeforeNextRenew(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.LockTTL = 90 * time.Second
	cfg.RenewInterval = 30 * time.Second
	mgr := New(r2clienttest.NewMemoryStore(), cfg, nil, nil)

	assert.False(t, mgr.expiresBeforeNextRenew(30*time.Second))
	assert.True(t, mgr.expiresBeforeNextRenew(60*time.Second))
	assert.True(t, mgr.expiresBeforeNextRenew(90*time.Second))
}
