// Package memstore provides an in-memory store implementation for testing
// and for ephemeral caches.
package memstore

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/tartil-app/offlinecache/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

type entry struct {
	data     []byte
	checksum uint64
}

// Store is an in-memory store.
type Store struct {
	mu       sync.RWMutex
	entries  map[store.Key]entry
	counts   map[store.Kind]int
	total    int64
	capacity int64
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity limits the total payload size in bytes.
// Zero means unlimited.
func WithCapacity(bytes int64) Option {
	return func(s *Store) {
		s.capacity = bytes
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[store.Key]entry),
		counts:  make(map[store.Kind]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores a copy of data under key.
func (s *Store) Put(ctx context.Context, key store.Key, data []byte) (store.Delta, error) {
	if err := key.Validate(); err != nil {
		return store.Delta{}, err
	}

	sum := store.Checksum(data)
	size := int64(len(data))

	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.entries[key]
	if exists && old.checksum == sum && len(old.data) == len(data) {
		return store.Delta{}, nil
	}

	delta := store.Delta{Bytes: size}
	if exists {
		delta.Bytes -= int64(len(old.data))
	} else {
		delta.Entries = 1
	}
	if s.capacity > 0 && s.total+delta.Bytes > s.capacity {
		return store.Delta{}, store.ErrStorageFull
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	s.entries[key] = entry{data: copied, checksum: sum}
	s.counts[key.Kind] += delta.Entries
	s.total += delta.Bytes
	return delta, nil
}

// Get returns a copy of the payload stored under key.
func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	if store.Checksum(e.data) != e.checksum {
		return nil, store.ErrCorrupt
	}

	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

// Stat returns entry metadata.
func (s *Store) Stat(ctx context.Context, key store.Key) (store.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return store.Info{}, store.ErrNotFound
	}
	return store.Info{Key: key, Size: int64(len(e.data)), Checksum: e.checksum}, nil
}

// Delete removes key if present.
func (s *Store) Delete(ctx context.Context, key store.Key) (store.Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return store.Delta{}, nil
	}
	delete(s.entries, key)
	s.counts[key.Kind]--
	s.total -= int64(len(e.data))
	return store.Delta{Entries: -1, Bytes: -int64(len(e.data))}, nil
}

// Keys returns a sorted snapshot of the keys of the given kind.
func (s *Store) Keys(ctx context.Context, kind store.Kind) iter.Seq2[store.Key, error] {
	return func(yield func(store.Key, error) bool) {
		s.mu.RLock()
		keys := make([]store.Key, 0, s.counts[kind])
		for k := range maps.Keys(s.entries) {
			if k.Kind == kind {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()

		slices.SortFunc(keys, store.Key.Compare)
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(store.Key{}, err)
				return
			}
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Len returns the number of entries of the given kind.
func (s *Store) Len(kind store.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[kind]
}

// TotalSize returns the running payload total.
func (s *Store) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[store.Key]entry)
	s.counts = make(map[store.Kind]int)
	s.total = 0
	return nil
}

// Location returns a pseudo-location for key.
func (s *Store) Location(key store.Key) string {
	return "mem://" + key.String()
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}

// Corrupt flips a byte of the stored payload without updating its checksum
// (for test setup).
func (s *Store) Corrupt(key store.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || len(e.data) == 0 {
		return false
	}
	e.data[0] ^= 0xff
	return true
}
