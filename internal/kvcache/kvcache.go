// Package kvcache stores JSON views in JetStream key-value buckets. Buckets
// carry the TTL; every Put restarts the entry's age.
package kvcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// ErrContended is returned when a conditional write keeps losing to other
// writers.
var ErrContended = errors.New("cache write contended")

// maxSwapAttempts bounds the read-compare-write loop in PutIf.
const maxSwapAttempts = 8

// EnsureBucket creates the bucket, or updates its configuration when it
// already exists.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		TTL:     ttl,
		History: 1,
		Storage: jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Store is a typed view over a bucket.
type Store[T any] struct {
	kv jetstream.KeyValue
}

// New wraps kv.
func New[T any](kv jetstream.KeyValue) *Store[T] {
	return &Store[T]{kv: kv}
}

// Get decodes the value at key.
func (s *Store[T]) Get(ctx context.Context, key string) (*T, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	value := new(T)
	if err := json.Unmarshal(entry.Value(), value); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return value, nil
}

// Put encodes value at key.
func (s *Store[T]) Put(ctx context.Context, key string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// PutIf writes value at key unless keep reports that the current entry must
// stay. The compare and the write are one atomic step: the write is
// conditional on the revision that was read, and a lost race re-reads and
// decides again. An entry that no longer decodes is always replaced.
// It reports whether value was written.
func (s *Store[T]) PutIf(ctx context.Context, key string, value *T, keep func(current *T) bool) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s: %w", key, err)
	}

	for range maxSwapAttempts {
		entry, err := s.kv.Get(ctx, key)
		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
			_, err = s.kv.Create(ctx, key, data)
		case err != nil:
			return false, fmt.Errorf("failed to read %s: %w", key, err)
		default:
			current := new(T)
			if json.Unmarshal(entry.Value(), current) == nil && keep(current) {
				return false, nil
			}
			_, err = s.kv.Update(ctx, key, data, entry.Revision())
		}
		if err == nil {
			return true, nil
		}
		if !isRevisionConflict(err) {
			return false, fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	return false, fmt.Errorf("%w: %s", ErrContended, key)
}

// isRevisionConflict reports whether a conditional write lost to another
// writer. Create on an existing key and Update on a stale revision both
// fail with the wrong-last-sequence API error.
func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
