package services

import (
	"context"
	"sync"
)

type lookupCacheKey struct{}

// lookupCache memoises catalog reference lookups for the duration of one
// batch. Entries never expire, the cache dies with the batch context.
type lookupCache struct {
	mu     sync.Mutex
	values map[string]string
}

// withLookupCache attaches a fresh lookup cache to the context. Calling it on
// a context that already carries a cache returns the context unchanged.
func withLookupCache(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Value(lookupCacheKey{}).(*lookupCache); ok {
		return ctx
	}
	return context.WithValue(ctx, lookupCacheKey{}, &lookupCache{values: map[string]string{}})
}

// cacheAndGet returns the cached value for key, invoking fetch on a miss and
// caching the result. Fetch errors are not cached.
func cacheAndGet(ctx context.Context, key string, fetch func() (string, error)) (string, error) {
	cache, ok := ctx.Value(lookupCacheKey{}).(*lookupCache)
	if !ok {
		return fetch()
	}

	cache.mu.Lock()
	if value, hit := cache.values[key]; hit {
		cache.mu.Unlock()
		return value, nil
	}
	cache.mu.Unlock()

	value, err := fetch()
	if err != nil {
		return "", err
	}

	cache.mu.Lock()
	cache.values[key] = value
	cache.mu.Unlock()
	return value, nil
}
