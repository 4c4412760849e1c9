// Package storage provides object storage access with multiple backend support.
package storage

import (
	"context"
	"sync"
)

// ObjectStore defines the interface for blob storage backends.
// Implementations include S3 (production) and an in-memory store (tests).
type ObjectStore interface {
	// Put writes an object. Existing objects are overwritten.
	Put(ctx context.Context, bucket, key string, data []byte) error

	// Get reads an object. An absent object returns found == false and a
	// nil error; errors are reserved for infrastructure failures.
	Get(ctx context.Context, bucket, key string) (data []byte, found bool, err error)
}

// MemoryStore is an in-memory ObjectStore for tests and local runs.
// All methods are thread-safe.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// Compile-time check that MemoryStore implements ObjectStore.
var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// Put stores a copy of data under bucket/key.
func (s *MemoryStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.objects[objectKey(bucket, key)] = buf
	s.mu.Unlock()
	return nil
}

// Get returns the object stored under bucket/key, if any.
func (s *MemoryStore) Get(ctx context.Context, bucket, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	data, ok := s.objects[objectKey(bucket, key)]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, true, nil
}

// Delete removes an object. Missing objects are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.objects, objectKey(bucket, key))
	s.mu.Unlock()
	return nil
}
