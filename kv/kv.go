// Package kv provides the key-value store abstraction used for caching,
// sessions and cross-request coordination.
package kv

import (
	"context"
	"time"
)

// Store is the key-value capability every component receives by injection.
// Implementations must provide atomic get/set/delete/expire per key; no
// multi-key transactions are assumed.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Expire resets the remaining lifetime of key. Expiring a missing
	// key is a no-op.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Close releases the backing resources.
	Close() error
}

// Prefixed wraps a Store so that every key is namespaced under a fixed
// prefix. Closing a Prefixed store is a no-op; the lifecycle of the
// underlying store belongs to its owner.
type Prefixed struct {
	base   Store
	prefix string
}

var _ Store = (*Prefixed)(nil)

// WithPrefix returns a view of base where every key is prefixed.
func WithPrefix(base Store, prefix string) *Prefixed {
	return &Prefixed{base: base, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.base.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return p.base.Set(ctx, p.prefix+key, value, ttl)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.base.Delete(ctx, p.prefix+key)
}

func (p *Prefixed) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return p.base.Expire(ctx, p.prefix+key, ttl)
}

func (p *Prefixed) Close() error { return nil }
