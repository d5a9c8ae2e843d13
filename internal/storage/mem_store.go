package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory ObjectStore for tests.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]*memObject
	calls   MemCalls

	// PutErr, when set, is returned by every Put call.
	PutErr error
}

// MemCalls tracks method invocations for test verification.
type MemCalls struct {
	Put    int
	Open   int
	Delete int
}

type memObject struct {
	obj  Object
	data []byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string]*memObject)}
}

// Put reads r fully and stores it under its hash.
func (m *MemStore) Put(ctx context.Context, r io.Reader, objectType ObjectType) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	if m.PutErr != nil {
		return nil, m.PutErr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if existing, ok := m.objects[hash]; ok {
		existing.obj.Metadata.RefCount++
		out := existing.obj
		return &out, nil
	}

	stored := &memObject{
		obj: Object{
			Hash:     hash,
			Type:     objectType,
			Size:     int64(len(data)),
			Metadata: Metadata{CreatedAt: time.Now(), RefCount: 1},
		},
		data: data,
	}
	m.objects[hash] = stored
	out := stored.obj
	return &out, nil
}

// Open returns a reader over a copy of the stored bytes.
func (m *MemStore) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Open++

	o, ok := m.objects[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

// Stat returns the object's descriptor.
func (m *MemStore) Stat(ctx context.Context, hash string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	out := o.obj
	return &out, nil
}

// Exists checks if an object exists.
func (m *MemStore) Exists(ctx context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[hash]
	return ok, nil
}

// Delete removes an object.
func (m *MemStore) Delete(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++

	if _, ok := m.objects[hash]; !ok {
		return ErrNotFound{Hash: hash}
	}
	delete(m.objects, hash)
	return nil
}

// List returns the sorted hashes matching objectType.
func (m *MemStore) List(ctx context.Context, objectType ObjectType) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hashes []string
	for hash, o := range m.objects {
		if objectType == "" || o.obj.Type == objectType {
			hashes = append(hashes, hash)
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

// Close is a no-op.
func (m *MemStore) Close() error {
	return nil
}

// Calls returns a snapshot of the invocation counters.
func (m *MemStore) Calls() MemCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Corrupt replaces the stored bytes of hash without updating its address.
func (m *MemStore) Corrupt(hash string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.objects[hash]; ok {
		o.data = data
	}
}
