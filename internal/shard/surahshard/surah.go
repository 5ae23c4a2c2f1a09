// Package surahshard implements surah-based sharding.
//
// Surah-based sharding keeps every ayah of a surah in the same shard, which
// gives directory locality when a reader caches or evicts a whole surah.
package surahshard

import (
	"github.com/tartil-app/offlinecache/internal/shard"
	"github.com/tartil-app/offlinecache/internal/store"
)

// Strategy implements surah-based sharding.
type Strategy struct{}

// Ensure Strategy implements shard.Strategy.
var _ shard.Strategy = (*Strategy)(nil)

// New creates a new surah-based sharding strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns the strategy name.
func (s *Strategy) Name() string {
	return "surah"
}

// ShardID returns the zero-based surah index reduced modulo totalShards.
// With totalShards >= 114 every surah gets its own shard.
func (s *Strategy) ShardID(key store.Key, totalShards int) int {
	if totalShards <= 1 || key.Surah < 1 {
		return 0
	}
	return (key.Surah - 1) % totalShards
}
