// Package cache defines the generic cache interface shared by solver
// components that memoize expensive recomputation.
package cache

// Cache is a minimal generic cache abstraction so that callers don't need
// to depend on a specific backing implementation.
type Cache interface {
	// Get returns the value for key, if present.
	Get(key any) (any, bool)

	// Set stores entry under key with the given cost, returning whether it
	// was admitted.
	Set(key any, entry any, cost int64) bool

	// Remove evicts key, if present.
	Remove(key any)

	// Close releases any resources held by the cache.
	Close()
}
