// Package shard defines the strategy interface for distributing cached
// entries across storage directories.
package shard

import "github.com/tartil-app/offlinecache/internal/store"

// Strategy maps a key to a shard ID.
type Strategy interface {
	// Name returns a human-readable name for this strategy.
	// The name is persisted so a store can refuse a mismatched layout.
	Name() string

	// ShardID computes the shard ID for key.
	// The returned value is in the range [0, totalShards).
	ShardID(key store.Key, totalShards int) int
}
