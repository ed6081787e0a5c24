package storage

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
)

// CachedUserStore caches identities by id in front of another UserStore.
// Lookups by email always reach the underlying store so that login sees the
// current password hash.
type CachedUserStore struct {
	next    auth.UserStore
	byID    *expirable.LRU[string, *auth.User]
	metrics *observability.Metrics
}

var _ auth.UserStore = (*CachedUserStore)(nil)

// NewCachedUserStore wraps next with an LRU of size entries that expire after ttl
func NewCachedUserStore(next auth.UserStore, size int, ttl time.Duration, metrics *observability.Metrics) *CachedUserStore {
	return &CachedUserStore{
		next:    next,
		byID:    expirable.NewLRU[string, *auth.User](size, nil, ttl),
		metrics: metrics,
	}
}

// Create stores a new identity
func (c *CachedUserStore) Create(ctx context.Context, user *auth.User) error {
	return c.next.Create(ctx, user)
}

// GetByID returns a cached copy when present
func (c *CachedUserStore) GetByID(ctx context.Context, id string) (*auth.User, error) {
	if user, ok := c.byID.Get(id); ok {
		c.metrics.RecordCacheLookup(true)
		return user.Clone(), nil
	}
	c.metrics.RecordCacheLookup(false)

	user, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.byID.Add(id, user.Clone())
	return user, nil
}

// GetByEmail bypasses the cache
func (c *CachedUserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return c.next.GetByEmail(ctx, email)
}

// Update writes through and drops the cached entry
func (c *CachedUserStore) Update(ctx context.Context, user *auth.User) error {
	if err := c.next.Update(ctx, user); err != nil {
		return err
	}
	c.byID.Remove(user.ID)
	return nil
}

// TouchLastLogin writes through and drops the cached entry
func (c *CachedUserStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := c.next.TouchLastLogin(ctx, id, at); err != nil {
		return err
	}
	c.byID.Remove(id)
	return nil
}

// Search bypasses the cache
func (c *CachedUserStore) Search(ctx context.Context, filter auth.SearchFilter) ([]*auth.User, error) {
	return c.next.Search(ctx, filter)
}

// Invalidate drops one cached identity
func (c *CachedUserStore) Invalidate(id string) {
	c.byID.Remove(id)
}

// Purge drops every cached identity
func (c *CachedUserStore) Purge() {
	c.byID.Purge()
}

// Len returns the number of cached identities
func (c *CachedUserStore) Len() int {
	return c.byID.Len()
}
