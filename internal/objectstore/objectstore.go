// Package objectstore keeps binary audio artifacts in JetStream object store
// buckets.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrObjectNotFound is returned when no object exists under a key.
var ErrObjectNotFound = errors.New("object not found")

// Store puts, gets and deletes blobs by key within one bucket.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// JetStreamStore implements Store on a JetStream object store bucket.
type JetStreamStore struct {
	bucket string
	obs    jetstream.ObjectStore
}

var _ Store = (*JetStreamStore)(nil)

// Open creates the bucket when missing and returns a Store on it.
func Open(ctx context.Context, js jetstream.JetStream, bucket string) (*JetStreamStore, error) {
	obs, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:  bucket,
		Storage: jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open object store %s: %w", bucket, err)
	}
	return &JetStreamStore{bucket: bucket, obs: obs}, nil
}

// NewJetStreamStore wraps an already opened object store.
func NewJetStreamStore(bucket string, obs jetstream.ObjectStore) *JetStreamStore {
	return &JetStreamStore{bucket: bucket, obs: obs}
}

func (s *JetStreamStore) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.obs.PutBytes(ctx, key, data); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *JetStreamStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.obs.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

func (s *JetStreamStore) Delete(ctx context.Context, key string) error {
	if err := s.obs.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("failed to delete %s/%s: %w", s.bucket, key, err)
	}
	return nil
}
