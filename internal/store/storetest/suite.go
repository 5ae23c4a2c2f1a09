// Package storetest provides a conformance suite for store.Store
// implementations.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/tartil-app/offlinecache/internal/store"
)

// Factory creates an empty store for a single subtest.
// A capacity of zero means unlimited.
type Factory func(t *testing.T, capacity int64) store.Store

// TestStore runs every conformance test against the stores made by newStore.
func TestStore(t *testing.T, newStore Factory) {
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newStore) })
	t.Run("PutIdempotent", func(t *testing.T) { testPutIdempotent(t, newStore) })
	t.Run("PutOverwrite", func(t *testing.T) { testPutOverwrite(t, newStore) })
	t.Run("PutInvalidKey", func(t *testing.T) { testPutInvalidKey(t, newStore) })
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, newStore) })
	t.Run("DeleteAbsent", func(t *testing.T) { testDeleteAbsent(t, newStore) })
	t.Run("StorageFull", func(t *testing.T) { testStorageFull(t, newStore) })
	t.Run("KeysRestartable", func(t *testing.T) { testKeysRestartable(t, newStore) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newStore) })
	t.Run("NoDrift", func(t *testing.T) { testNoDrift(t, newStore) })
	t.Run("ConcurrentReaders", func(t *testing.T) { testConcurrentReaders(t, newStore) })
}

func testPutGet(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()
	key := store.VerseKey(1, 1, "en.sahih")
	data := []byte(`{"text":"In the name of Allah"}`)

	delta, err := s.Put(ctx, key, data)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if delta.Entries != 1 || delta.Bytes != int64(len(data)) {
		t.Errorf("Put() delta = %+v, want {1 %d}", delta, len(data))
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get() = %q, want %q", got, data)
	}

	info, err := s.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size != int64(len(data)) || info.Checksum != store.Checksum(data) {
		t.Errorf("Stat() = %+v, want size %d", info, len(data))
	}
	if s.Len(store.KindVerse) != 1 || s.Len(store.KindAudio) != 0 {
		t.Errorf("Len() = %d/%d, want 1/0", s.Len(store.KindVerse), s.Len(store.KindAudio))
	}
	if s.TotalSize() != int64(len(data)) {
		t.Errorf("TotalSize() = %d, want %d", s.TotalSize(), len(data))
	}
}

func testPutIdempotent(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()
	key := store.AudioKey(1, 1, "alafasy")
	data := bytes.Repeat([]byte{0x42}, 500)

	if _, err := s.Put(ctx, key, data); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	delta, err := s.Put(ctx, key, data)
	if err != nil {
		t.Fatalf("second Put() error = %v", err)
	}
	if !delta.IsZero() {
		t.Errorf("second Put() delta = %+v, want zero", delta)
	}
	if s.Len(store.KindAudio) != 1 || s.TotalSize() != 500 {
		t.Errorf("after second Put(): len=%d size=%d, want 1/500", s.Len(store.KindAudio), s.TotalSize())
	}
}

func testPutOverwrite(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()
	key := store.VerseKey(2, 255, "en")

	if _, err := s.Put(ctx, key, make([]byte, 100)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	delta, err := s.Put(ctx, key, bytes.Repeat([]byte("x"), 40))
	if err != nil {
		t.Fatalf("overwrite Put() error = %v", err)
	}
	if delta.Entries != 0 || delta.Bytes != -60 {
		t.Errorf("overwrite delta = %+v, want {0 -60}", delta)
	}
	if s.TotalSize() != 40 {
		t.Errorf("TotalSize() = %d, want 40", s.TotalSize())
	}
}

func testPutInvalidKey(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	_, err := s.Put(context.Background(), store.VerseKey(0, 1, "en"), []byte("x"))
	if !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("Put() error = %v, want ErrInvalidKey", err)
	}
	if s.TotalSize() != 0 {
		t.Errorf("TotalSize() = %d, want 0", s.TotalSize())
	}
}

func testGetNotFound(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()
	key := store.VerseKey(3, 3, "en")

	if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Stat(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Stat() error = %v, want ErrNotFound", err)
	}
}

func testDeleteAbsent(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()

	if _, err := s.Put(ctx, store.VerseKey(1, 1, "en"), []byte("abc")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	delta, err := s.Delete(ctx, store.VerseKey(1, 2, "en"))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !delta.IsZero() {
		t.Errorf("Delete() delta = %+v, want zero", delta)
	}
	if s.TotalSize() != 3 || s.Len(store.KindVerse) != 1 {
		t.Errorf("after Delete(): size=%d len=%d, want 3/1", s.TotalSize(), s.Len(store.KindVerse))
	}

	delta, err = s.Delete(ctx, store.VerseKey(1, 1, "en"))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if delta.Entries != -1 || delta.Bytes != -3 {
		t.Errorf("Delete() delta = %+v, want {-1 -3}", delta)
	}
}

func testStorageFull(t *testing.T, newStore Factory) {
	s := newStore(t, 1000)
	ctx := context.Background()

	if _, err := s.Put(ctx, store.AudioKey(1, 1, "r"), make([]byte, 800)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	_, err := s.Put(ctx, store.AudioKey(1, 2, "r"), make([]byte, 300))
	if !errors.Is(err, store.ErrStorageFull) {
		t.Fatalf("Put() error = %v, want ErrStorageFull", err)
	}
	if s.TotalSize() != 800 || s.Len(store.KindAudio) != 1 {
		t.Errorf("after rejected Put(): size=%d len=%d, want 800/1", s.TotalSize(), s.Len(store.KindAudio))
	}
	if _, err := s.Get(ctx, store.AudioKey(1, 2, "r")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() of rejected key error = %v, want ErrNotFound", err)
	}

	// Shrinking an existing entry always fits.
	if _, err := s.Put(ctx, store.AudioKey(1, 1, "r"), make([]byte, 100)); err != nil {
		t.Errorf("shrinking Put() error = %v", err)
	}
}

func testKeysRestartable(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()

	want := []store.Key{
		store.VerseKey(1, 1, "en"),
		store.VerseKey(1, 2, "en"),
		store.VerseKey(2, 1, "en"),
	}
	for _, k := range []store.Key{want[2], want[0], want[1], store.AudioKey(1, 1, "r")} {
		if _, err := s.Put(ctx, k, []byte(k.String())); err != nil {
			t.Fatalf("Put(%s) error = %v", k, err)
		}
	}

	seq := s.Keys(ctx, store.KindVerse)
	for pass := 0; pass < 2; pass++ {
		var got []store.Key
		for k, err := range seq {
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			got = append(got, k)
		}
		if len(got) != len(want) {
			t.Fatalf("pass %d: Keys() = %v, want %v", pass, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("pass %d: Keys()[%d] = %v, want %v", pass, i, got[i], want[i])
			}
		}
	}

	// Early termination must not leak or panic.
	for range seq {
		break
	}
}

func testClear(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := s.Put(ctx, store.VerseKey(1, i, "en"), []byte("verse")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if _, err := s.Put(ctx, store.AudioKey(1, 1, "r"), []byte("audio")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.TotalSize() != 0 || s.Len(store.KindVerse) != 0 || s.Len(store.KindAudio) != 0 {
		t.Errorf("after Clear(): size=%d verses=%d audio=%d, want zeros",
			s.TotalSize(), s.Len(store.KindVerse), s.Len(store.KindAudio))
	}
	if _, err := s.Get(ctx, store.VerseKey(1, 1, "en")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after Clear() error = %v, want ErrNotFound", err)
	}

	// Store remains usable.
	if _, err := s.Put(ctx, store.VerseKey(1, 1, "en"), []byte("again")); err != nil {
		t.Errorf("Put() after Clear() error = %v", err)
	}
}

func testNoDrift(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))

	present := make(map[store.Key]int64)
	for i := 0; i < 200; i++ {
		key := store.VerseKey(1+rng.IntN(3), 1+rng.IntN(7), "en")
		if rng.IntN(3) == 0 {
			if _, err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			delete(present, key)
			continue
		}
		data := bytes.Repeat([]byte("a"), 1+rng.IntN(64))
		if _, err := s.Put(ctx, key, data); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		present[key] = int64(len(data))
	}

	var want int64
	for _, size := range present {
		want += size
	}
	if s.TotalSize() != want {
		t.Errorf("TotalSize() = %d, want %d", s.TotalSize(), want)
	}
	if s.Len(store.KindVerse) != len(present) {
		t.Errorf("Len() = %d, want %d", s.Len(store.KindVerse), len(present))
	}
}

func testConcurrentReaders(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()
	key := store.VerseKey(1, 1, "en")
	v1 := bytes.Repeat([]byte("1"), 64)
	v2 := bytes.Repeat([]byte("2"), 32)

	if _, err := s.Put(ctx, key, v1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := s.Get(ctx, key)
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(got, v1) && !bytes.Equal(got, v2) {
					errs <- errors.New("observed partial write")
					return
				}
			}
		}()
	}
	for j := 0; j < 20; j++ {
		data := v1
		if j%2 == 0 {
			data = v2
		}
		if _, err := s.Put(ctx, key, data); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Get() error = %v", err)
	}
}
