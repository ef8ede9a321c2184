// Package state persists the last known ProductMap of each topic on a blob backend.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

const contentType = "application/json"

// Store maps topics to JSON documents on a watch.BlobStore.
type Store struct {
	blobs  watch.BlobStore
	hasher watch.Hasher
}

var _ watch.StateStore = (*Store)(nil)

// New wires a Store.
func New(blobs watch.BlobStore, hasher watch.Hasher) (*Store, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	return &Store{blobs: blobs, hasher: hasher}, nil
}

// PathFor returns the storage key of topic.
func (s *Store) PathFor(topic watch.Topic) string {
	return watch.StateKey(s.hasher, topic)
}

func (s *Store) objectPath(topic watch.Topic) string {
	return s.PathFor(topic) + ".json"
}

// Load returns the persisted snapshot of topic, or watch.ErrStateNotFound.
func (s *Store) Load(ctx context.Context, topic watch.Topic) (watch.ProductMap, error) {
	path := s.objectPath(topic)
	data, err := s.blobs.GetObject(ctx, path)
	if err != nil {
		if errors.Is(err, watch.ErrStateNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load %s: %w", watch.ErrStorage, path, err)
	}
	products := watch.ProductMap{}
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", watch.ErrStorage, path, err)
	}
	if products == nil {
		products = watch.ProductMap{}
	}
	return products, nil
}

// Save overwrites the snapshot of topic.
func (s *Store) Save(ctx context.Context, topic watch.Topic, products watch.ProductMap) error {
	if products == nil {
		products = watch.ProductMap{}
	}
	path := s.objectPath(topic)
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", watch.ErrStorage, path, err)
	}
	if err := s.blobs.PutObject(ctx, path, contentType, data); err != nil {
		return fmt.Errorf("%w: save %s: %w", watch.ErrStorage, path, err)
	}
	return nil
}
