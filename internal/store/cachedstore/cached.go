package cachedstore

import (
	"bytes"
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/tartil-app/offlinecache/internal/store"
)

// Compile-time checks.
var (
	_ store.Store    = (*Store)(nil)
	_ store.Locator  = (*Store)(nil)
	_ store.Scrubber = (*Store)(nil)
)

// Store wraps another Store with a read cache.
// Mutations go straight to the underlying store and invalidate the cache.
type Store struct {
	underlying store.Store
	backend    Backend

	// gen changes on every mutation. A read that raced a mutation does not
	// populate the cache.
	mu  sync.Mutex
	gen atomic.Uint64
}

// New creates a new cached store wrapping the given store.
func New(underlying store.Store, backend Backend) *Store {
	return &Store{
		underlying: underlying,
		backend:    backend,
	}
}

// Get reads a payload, checking the cache first.
func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, error) {
	if data, ok := s.backend.Get(key); ok {
		return bytes.Clone(data), nil
	}

	gen := s.gen.Load()
	data, err := s.underlying.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen.Load() == gen {
		s.backend.Set(key, bytes.Clone(data))
	}
	s.mu.Unlock()

	return data, nil
}

func (s *Store) Put(ctx context.Context, key store.Key, data []byte) (store.Delta, error) {
	delta, err := s.underlying.Put(ctx, key, data)
	s.invalidate(key)
	return delta, err
}

func (s *Store) Delete(ctx context.Context, key store.Key) (store.Delta, error) {
	delta, err := s.underlying.Delete(ctx, key)
	s.invalidate(key)
	return delta, err
}

func (s *Store) Clear(ctx context.Context) error {
	err := s.underlying.Clear(ctx)
	s.mu.Lock()
	s.gen.Add(1)
	s.backend.Purge()
	s.mu.Unlock()
	return err
}

func (s *Store) invalidate(key store.Key) {
	s.mu.Lock()
	s.gen.Add(1)
	s.backend.Invalidate(key)
	s.mu.Unlock()
}

func (s *Store) Stat(ctx context.Context, key store.Key) (store.Info, error) {
	return s.underlying.Stat(ctx, key)
}

func (s *Store) Keys(ctx context.Context, kind store.Kind) iter.Seq2[store.Key, error] {
	return s.underlying.Keys(ctx, kind)
}

func (s *Store) Len(kind store.Kind) int {
	return s.underlying.Len(kind)
}

func (s *Store) TotalSize() int64 {
	return s.underlying.TotalSize()
}

// Location delegates to the underlying store when it can locate payloads.
func (s *Store) Location(key store.Key) string {
	if l, ok := s.underlying.(store.Locator); ok {
		return l.Location(key)
	}
	return ""
}

// Scrub delegates to the underlying store. Stores that cannot scrub report
// an empty result.
func (s *Store) Scrub(ctx context.Context) (store.ScrubReport, error) {
	if sc, ok := s.underlying.(store.Scrubber); ok {
		return sc.Scrub(ctx)
	}
	return store.ScrubReport{}, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	s.backend.Purge()
	return s.underlying.Close()
}

// Stats returns cache statistics.
func (s *Store) Stats() Stats {
	return s.backend.Stats()
}

// Unwrap returns the underlying store.
func (s *Store) Unwrap() store.Store {
	return s.underlying
}
