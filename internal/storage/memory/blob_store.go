// Package memory stores state blobs in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

// BlobStore keeps blobs in a map guarded by a mutex.
type BlobStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writes int
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// GetObject returns a copy of the blob stored under path.
func (s *BlobStore) GetObject(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", watch.ErrStateNotFound, path)
	}
	return append([]byte(nil), data...), nil
}

// PutObject stores a copy of data under path.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), data...)
	s.writes++
	return nil
}

// Writes reports how many PutObject calls succeeded.
func (s *BlobStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
