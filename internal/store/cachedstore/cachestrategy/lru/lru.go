// Package lru implements an LRU cache eviction strategy.
package lru

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tartil-app/offlinecache/internal/store"
	"github.com/tartil-app/offlinecache/internal/store/cachedstore/cachestrategy"
)

// Compile-time check that Strategy implements cachestrategy.Strategy.
var _ cachestrategy.Strategy = (*Strategy)(nil)

// Strategy implements LRU eviction over payload keys.
type Strategy struct {
	cache *lru.Cache[store.Key, []byte]
}

// New creates a new LRU strategy holding at most capacity payloads.
func New(capacity int) (*Strategy, error) {
	c, err := lru.New[store.Key, []byte](capacity)
	if err != nil {
		return nil, err
	}
	return &Strategy{cache: c}, nil
}

// NewWithEvict is like New but calls onEvict for every entry pushed out by
// capacity.
func NewWithEvict(capacity int, onEvict func(key store.Key, value []byte)) (*Strategy, error) {
	c, err := lru.NewWithEvict[store.Key, []byte](capacity, onEvict)
	if err != nil {
		return nil, err
	}
	return &Strategy{cache: c}, nil
}

func (s *Strategy) Get(key store.Key) ([]byte, bool) {
	return s.cache.Get(key)
}

// Add reports whether an eviction occurred.
func (s *Strategy) Add(key store.Key, value []byte) bool {
	return s.cache.Add(key, value)
}

func (s *Strategy) Remove(key store.Key) bool {
	return s.cache.Remove(key)
}

func (s *Strategy) Purge() {
	s.cache.Purge()
}

func (s *Strategy) Len() int {
	return s.cache.Len()
}
