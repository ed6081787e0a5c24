package storage

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/storage/memory"
)

// countingStore counts lookups that reach the backing store
type countingStore struct {
	auth.UserStore
	getByID int
}

func (c *countingStore) GetByID(ctx context.Context, id string) (*auth.User, error) {
	c.getByID++
	return c.UserStore.GetByID(ctx, id)
}

func seededStore(t *testing.T) *countingStore {
	t.Helper()
	mem := memory.NewUserStore()
	now := time.Now()
	require.NoError(t, mem.Create(context.Background(), &auth.User{
		ID: "u1", Name: "Priya", Email: "priya@x.io", Role: auth.RoleAthlete,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
	return &countingStore{UserStore: mem}
}

func TestCachedUserStore_GetByIDHitsCache(t *testing.T) {
	ctx := context.Background()
	backing := seededStore(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cached := NewCachedUserStore(backing, 16, time.Minute, metrics)

	for i := 0; i < 3; i++ {
		u, err := cached.GetByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Priya", u.Name)
	}

	assert.Equal(t, 1, backing.getByID)
	assert.Equal(t, 1, cached.Len())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheHitsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMissesTotal))
}

func TestCachedUserStore_UpdateInvalidates(t *testing.T) {
	ctx := context.Background()
	backing := seededStore(t)
	cached := NewCachedUserStore(backing, 16, time.Minute, nil)

	u, err := cached.GetByID(ctx, "u1")
	require.NoError(t, err)

	u.IsActive = false
	require.NoError(t, cached.Update(ctx, u))

	again, err := cached.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, again.IsActive)
	assert.Equal(t, 2, backing.getByID)
}

func TestCachedUserStore_TouchLastLoginInvalidates(t *testing.T) {
	ctx := context.Background()
	backing := seededStore(t)
	cached := NewCachedUserStore(backing, 16, time.Minute, nil)

	_, err := cached.GetByID(ctx, "u1")
	require.NoError(t, err)

	at := time.Now().UTC()
	require.NoError(t, cached.TouchLastLogin(ctx, "u1", at))

	u, err := cached.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.LastLoginAt)
	assert.True(t, u.LastLoginAt.Equal(at))
}

func TestCachedUserStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cached := NewCachedUserStore(seededStore(t), 16, time.Minute, nil)

	u, _ := cached.GetByID(ctx, "u1")
	u.Name = "Mutated"

	again, _ := cached.GetByID(ctx, "u1")
	assert.Equal(t, "Priya", again.Name)
}

func TestCachedUserStore_Expiry(t *testing.T) {
	ctx := context.Background()
	backing := seededStore(t)
	cached := NewCachedUserStore(backing, 16, 20*time.Millisecond, nil)

	_, err := cached.GetByID(ctx, "u1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return cached.Len() == 0 }, time.Second, 10*time.Millisecond)

	_, err = cached.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.getByID)
}

func TestCachedUserStore_MissesAreNotCached(t *testing.T) {
	ctx := context.Background()
	backing := seededStore(t)
	cached := NewCachedUserStore(backing, 16, time.Minute, nil)

	_, err := cached.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
	assert.Equal(t, 0, cached.Len())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"postgres without url", func(c *Config) { c.Type = TypePostgres }, true},
		{"postgres", func(c *Config) { c.Type = TypePostgres; c.PostgresURL = "postgres://localhost/db" }, false},
		{"unknown type", func(c *Config) { c.Type = "mongo" }, true},
		{"cache without size", func(c *Config) { c.CacheEnabled = true; c.CacheSize = 0 }, true},
		{"cache", func(c *Config) { c.CacheEnabled = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
