package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

const lockContentType = "application/json"

// LockInfo is the JSON body of a lock object.
type LockInfo struct {
	Owner     string    `json:"owner"`
	Host      string    `json:"host,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Lock is a lease held in object storage. Only one owner can hold an
// unexpired lease; an expired lease may be taken over with If-Match.
type Lock struct {
	store Store
	key   string
	ttl   time.Duration
	owner string
	host  string
	now   func() time.Time

	mu   sync.Mutex
	etag string
}

// NewLock creates a lock on key. host is informational, recorded so an
// operator can see which replica holds the lease.
func NewLock(store Store, key string, ttl time.Duration, host string) *Lock {
	return &Lock{
		store: store,
		key:   key,
		ttl:   ttl,
		owner: uuid.NewString(),
		host:  host,
		now:   time.Now,
	}
}

// Owner returns this instance's owner id.
func (l *Lock) Owner() string { return l.owner }

// TTL returns the lease duration.
func (l *Lock) TTL() time.Duration { return l.ttl }

// Held reports whether the last Acquire or Renew succeeded.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.etag != ""
}

// Acquire takes the lease. It returns false, nil when another owner holds
// an unexpired lease.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	body, err := l.body()
	if err != nil {
		return false, err
	}
	created, etag, err := l.store.PutIfAbsent(ctx, l.key, bytes.NewReader(body), lockContentType)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		l.etag = etag
		return true, nil
	}

	current, currentETag, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		// Released between our put and read; try once more next round.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if current != nil && current.Owner != l.owner && l.now().Before(current.ExpiresAt) {
		return false, nil
	}

	// Expired, unreadable, or ours from a previous run of this process.
	took, etag, err := l.store.PutIfMatch(ctx, l.key, bytes.NewReader(body), currentETag, lockContentType)
	if err != nil {
		return false, fmt.Errorf("acquire lock: take over: %w", err)
	}
	if took {
		l.etag = etag
	}
	return took, nil
}

// Renew extends the lease. It returns false, nil when the lease was lost.
func (l *Lock) Renew(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.etag == "" {
		return false, nil
	}
	body, err := l.body()
	if err != nil {
		return false, err
	}
	ok, etag, err := l.store.PutIfMatch(ctx, l.key, bytes.NewReader(body), l.etag, lockContentType)
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	if !ok {
		l.etag = ""
		return false, nil
	}
	l.etag = etag
	return true, nil
}

// Release deletes the lease if this instance still owns it.
func (l *Lock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.etag == "" {
		return nil
	}
	current, _, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		l.etag = ""
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if current != nil && current.Owner != l.owner {
		l.etag = ""
		return nil
	}
	if err := l.store.Delete(ctx, l.key); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.etag = ""
	return nil
}

func (l *Lock) body() ([]byte, error) {
	data, err := json.Marshal(LockInfo{Owner: l.owner, Host: l.host, ExpiresAt: l.now().Add(l.ttl)})
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}
	return data, nil
}

// read returns the current lease. A body that is not valid JSON yields a
// nil LockInfo so the caller treats it as expired.
func (l *Lock) read(ctx context.Context) (*LockInfo, string, error) {
	rc, etag, err := l.store.Get(ctx, l.key)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("read lock: %w", err)
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, etag, nil
	}
	return &info, etag, nil
}
