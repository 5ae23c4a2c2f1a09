// Package cachedstore provides a read-through caching wrapper for
// store.Store implementations.
package cachedstore

import "github.com/tartil-app/offlinecache/internal/store"

// Backend holds cached payloads.
// Implementations handle storage and eviction strategy.
type Backend interface {
	// Get retrieves a cached payload. Returns nil, false if not found.
	Get(key store.Key) ([]byte, bool)

	// Set stores a payload in the cache.
	Set(key store.Key, data []byte)

	// Invalidate drops key from the cache.
	Invalidate(key store.Key)

	// Purge drops every cached payload.
	Purge()

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int // Current number of entries
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
