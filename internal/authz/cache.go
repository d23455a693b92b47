package authz

import (
	"context"
	"time"

	"github.com/warden-auth/warden/internal/platform/cache"
)

// PrincipalCache stores resolved principals keyed by the account's stable
// linked ID. Session-transient keys are deliberately not used: a recycled
// session handle must never observe another account's cached principal.
type PrincipalCache interface {
	Get(ctx context.Context, linkedID string) (*Principal, bool)
	Set(ctx context.Context, linkedID string, p *Principal, ttl time.Duration)
	Delete(ctx context.Context, linkedID string)
	Clear(ctx context.Context)
}

// MemoryPrincipalCache is a process-local PrincipalCache.
type MemoryPrincipalCache struct {
	ttl *cache.TTL[*Principal]
}

// NewMemoryPrincipalCache constructs an empty in-process cache.
func NewMemoryPrincipalCache() *MemoryPrincipalCache {
	return &MemoryPrincipalCache{ttl: cache.NewTTL[*Principal]()}
}

func (c *MemoryPrincipalCache) Get(ctx context.Context, linkedID string) (*Principal, bool) {
	return c.ttl.Get(linkedID)
}

func (c *MemoryPrincipalCache) Set(ctx context.Context, linkedID string, p *Principal, ttl time.Duration) {
	c.ttl.Set(linkedID, p, ttl)
}

func (c *MemoryPrincipalCache) Delete(ctx context.Context, linkedID string) {
	c.ttl.Delete(linkedID)
}

func (c *MemoryPrincipalCache) Clear(ctx context.Context) {
	c.ttl.Clear()
}

// Sweep runs the background eviction loop until ctx is done.
func (c *MemoryPrincipalCache) Sweep(ctx context.Context, interval time.Duration) {
	c.ttl.Sweep(ctx, interval)
}

var _ PrincipalCache = (*MemoryPrincipalCache)(nil)
