// Package fnvshard spreads keys evenly across shard directories by hashing
// them with FNV-1a.
//
// Every translation or reciter of an ayah hashes independently, so large
// audio sets do not pile into one directory per surah.
package fnvshard

import (
	"hash/fnv"

	"github.com/tartil-app/offlinecache/internal/shard"
	"github.com/tartil-app/offlinecache/internal/store"
)

var _ shard.Strategy = Strategy{}

// Strategy hashes the full key.
type Strategy struct{}

func New() Strategy { return Strategy{} }

func (Strategy) Name() string { return "fnv" }

// ShardID hashes the key's string form. The kind is part of the hash even
// though kinds live in separate trees, so a verse and its recitation need
// not share a shard number.
func (Strategy) ShardID(key store.Key, totalShards int) int {
	if totalShards <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return int(h.Sum32() % uint32(totalShards))
}
