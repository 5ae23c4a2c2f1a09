package cachedstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tartil-app/offlinecache/internal/store"
	"github.com/tartil-app/offlinecache/internal/store/memstore"
	"github.com/tartil-app/offlinecache/internal/store/storetest"
)

// fakeBackend is a simple map-backed backend for testing.
type fakeBackend struct {
	mu     sync.Mutex
	data   map[store.Key][]byte
	hits   int64
	misses int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[store.Key][]byte)}
}

func (b *fakeBackend) Get(key store.Key) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if data, ok := b.data[key]; ok {
		b.hits++
		return data, true
	}
	b.misses++
	return nil, false
}

func (b *fakeBackend) Set(key store.Key, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = data
}

func (b *fakeBackend) Invalidate(key store.Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

func (b *fakeBackend) Purge() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.data)
}

func (b *fakeBackend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{Hits: b.hits, Misses: b.misses, Size: len(b.data)}
}

func TestStore_Conformance(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T, capacity int64) store.Store {
		return New(memstore.New(memstore.WithCapacity(capacity)), newFakeBackend())
	})
}

func TestStore_CacheHit(t *testing.T) {
	backend := newFakeBackend()
	key := store.VerseKey(1, 1, "en")

	// Pre-populate cache.
	backend.Set(key, []byte("cached data"))

	s := New(memstore.New(), backend)
	data, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "cached data" {
		t.Errorf("Get() = %q, want %q", data, "cached data")
	}
	if stats := s.Stats(); stats.Hits != 1 {
		t.Errorf("Stats().Hits = %d, want 1", stats.Hits)
	}
}

func TestStore_CacheMiss(t *testing.T) {
	backend := newFakeBackend()
	underlying := memstore.New()
	ctx := context.Background()
	key := store.AudioKey(1, 1, "alafasy")

	// Put data in underlying store, not cache.
	if _, err := underlying.Put(ctx, key, []byte("underlying data")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	s := New(underlying, backend)
	data, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "underlying data" {
		t.Errorf("Get() = %q, want %q", data, "underlying data")
	}
	if _, ok := backend.data[key]; !ok {
		t.Error("data should be cached after miss")
	}
	if stats := s.Stats(); stats.Misses != 1 {
		t.Errorf("Stats().Misses = %d, want 1", stats.Misses)
	}
}

func TestStore_PutInvalidates(t *testing.T) {
	backend := newFakeBackend()
	s := New(memstore.New(), backend)
	ctx := context.Background()
	key := store.VerseKey(2, 255, "en")

	if _, err := s.Put(ctx, key, []byte("old")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := s.Get(ctx, key); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := s.Put(ctx, key, []byte("new")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "new" {
		t.Errorf("Get() after overwrite = %q, want %q", data, "new")
	}
}

func TestStore_DeleteAndClearInvalidate(t *testing.T) {
	backend := newFakeBackend()
	s := New(memstore.New(), backend)
	ctx := context.Background()
	a, b := store.VerseKey(1, 1, "en"), store.VerseKey(1, 2, "en")

	for _, k := range []store.Key{a, b} {
		if _, err := s.Put(ctx, k, []byte(k.String())); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if _, err := s.Get(ctx, k); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}

	if _, err := s.Delete(ctx, a); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, a); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := s.Get(ctx, b); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after Clear() error = %v, want ErrNotFound", err)
	}
	if n := s.Stats().Size; n != 0 {
		t.Errorf("Stats().Size after Clear() = %d, want 0", n)
	}
}

func TestStore_CallerCannotMutateCache(t *testing.T) {
	backend := newFakeBackend()
	s := New(memstore.New(), backend)
	ctx := context.Background()
	key := store.VerseKey(1, 1, "en")

	if _, err := s.Put(ctx, key, []byte("abc")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	first, _ := s.Get(ctx, key)
	first[0] = 'X'

	second, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(second) != "abc" {
		t.Errorf("Get() = %q after caller mutation, want %q", second, "abc")
	}
}

func TestStore_NotFound(t *testing.T) {
	s := New(memstore.New(), newFakeBackend())
	_, err := s.Get(context.Background(), store.VerseKey(114, 6, "en"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Location(t *testing.T) {
	s := New(memstore.New(), newFakeBackend())
	key := store.VerseKey(1, 1, "en")
	if got, want := s.Location(key), "mem://"+key.String(); got != want {
		t.Errorf("Location() = %q, want %q", got, want)
	}
}

func TestStats_HitRate(t *testing.T) {
	tests := []struct {
		name     string
		hits     int64
		misses   int64
		expected float64
	}{
		{"no requests", 0, 0, 0},
		{"all hits", 10, 0, 100},
		{"all misses", 0, 10, 0},
		{"50% hit rate", 5, 5, 50},
		{"75% hit rate", 3, 1, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Stats{Hits: tt.hits, Misses: tt.misses}
			if got := s.HitRate(); got != tt.expected {
				t.Errorf("HitRate() = %v, want %v", got, tt.expected)
			}
		})
	}
}
