// Package storage provides persistence backends for identities.
//
// # Overview
//
// Identities are stored behind auth.UserStore. Two implementations exist:
//
//   - memory: mutex-guarded maps, used for development and tests
//   - postgres: lib/pq backed store with goose migrations
//
// Either can be wrapped with CachedUserStore, a read-through cache of
// identities by id backed by an expirable LRU:
//
//	store := postgres.NewUserStore(db)
//	cached := storage.NewCachedUserStore(store, 1024, 30*time.Second, metrics)
//
// Every write that goes through CachedUserStore invalidates the cached
// entry. Writes made by other processes become visible once the entry
// expires, so the TTL bounds how long a deactivated account can still
// authenticate on another replica.
//
// # Redis
//
// postgres.NewRedisClient builds the go-redis client shared by the
// distributed rate limiter and the readiness check.
package storage
