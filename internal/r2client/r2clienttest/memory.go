// Package r2clienttest provides an in-memory r2client.Store for tests.
package r2clienttest

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // ETags are content hashes, not security
	"encoding/hex"
	"io"
	"sync"

	"github.com/garyellow/goose-bot/internal/r2client"
)

// MemoryStore mirrors R2's conditional-write semantics in process.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	writeErr error
}

var _ r2client.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// FailWrites makes every later write return err. Nil restores normal writes.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Keys returns the number of stored objects.
func (m *MemoryStore) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func etagOf(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", r2client.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), etagOf(data), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return "", m.writeErr
	}
	m.objects[key] = data
	return etagOf(data), nil
}

func (m *MemoryStore) PutIfAbsent(_ context.Context, key string, body io.Reader, _ string) (bool, string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return false, "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return false, "", m.writeErr
	}
	if _, ok := m.objects[key]; ok {
		return false, "", nil
	}
	m.objects[key] = data
	return true, etagOf(data), nil
}

func (m *MemoryStore) PutIfMatch(_ context.Context, key string, body io.Reader, etag, _ string) (bool, string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return false, "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return false, "", m.writeErr
	}
	current, ok := m.objects[key]
	if !ok || etagOf(current) != etag {
		return false, "", nil
	}
	m.objects[key] = data
	return true, etagOf(data), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	delete(m.objects, key)
	return nil
}
