// Package cache provides a process-local TTL cache. Entries are lost on
// restart; callers must treat the cache as an optimization, never as a
// source of truth.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often Sweep evicts expired entries when the
// caller does not choose an interval.
const DefaultSweepInterval = time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL maps string keys to values with a per-entry expiry. A Get on an
// expired key evicts it, so the background sweep is purely a memory bound,
// not a correctness requirement.
type TTL[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
}

// NewTTL constructs an empty TTL cache.
func NewTTL[V any]() *TTL[V] {
	return &TTL[V]{entries: make(map[string]entry[V])}
}

// Set stores value under key, overwriting any existing entry. Entries with
// a non-positive ttl are rejected; there are no infinite entries.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
}

// Get returns the live value for key. Expired entries are evicted and
// reported as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !time.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes key if present.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Len reports the number of stored entries, including not-yet-swept
// expired ones.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep evicts expired entries every interval until ctx is done. Run it in
// its own goroutine.
func (c *TTL[V]) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *TTL[V]) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
