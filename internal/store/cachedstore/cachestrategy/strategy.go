// Package cachestrategy defines cache eviction strategy interfaces.
package cachestrategy

import "github.com/tartil-app/offlinecache/internal/store"

// Strategy decides which payloads a read cache keeps.
type Strategy interface {
	Get(key store.Key) ([]byte, bool)
	Add(key store.Key, value []byte) bool
	Remove(key store.Key) bool
	Purge()
	Len() int
}
