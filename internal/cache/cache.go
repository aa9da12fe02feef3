package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// Store is a string-keyed byte store with optional per-entry expiry.
// A ttl of zero keeps the entry until the backend evicts it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache layers JSON encoding and logging over a Store.
type Cache struct {
	store Store
	log   logrus.FieldLogger
}

// New creates a cache over the given backend
func New(store Store, log logrus.FieldLogger) *Cache {
	return &Cache{store: store, log: log}
}

// Get decodes the cached value for key into v. A backend failure or an
// undecodable entry is reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, v interface{}) bool {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache entry could not be decoded")
		return false
	}
	return true
}

// Set encodes v and stores it under key
func (c *Cache) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, data, ttl)
}

// Cached returns the value stored under key, or runs compute, stores its
// result with ttl and returns it. Concurrent misses may each run compute.
// Compute errors are returned and nothing is stored.
func Cached[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var value T
	if c.Get(ctx, key, &value) {
		return value, nil
	}

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
	return value, nil
}
