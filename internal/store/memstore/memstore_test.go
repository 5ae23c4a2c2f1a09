package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/tartil-app/offlinecache/internal/store"
	"github.com/tartil-app/offlinecache/internal/store/storetest"
)

func TestStore_Conformance(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T, capacity int64) store.Store {
		return New(WithCapacity(capacity))
	})
}

func TestStore_CallerMutationIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := store.VerseKey(1, 1, "en")
	data := []byte("original")

	if _, err := s.Put(ctx, key, data); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data[0] = 'X'

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "original" {
		t.Errorf("Get() = %q, want %q", got, "original")
	}
}

func TestStore_Corrupt(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := store.AudioKey(1, 1, "r")

	if _, err := s.Put(ctx, key, []byte("payload")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !s.Corrupt(key) {
		t.Fatal("Corrupt() = false, want true")
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrCorrupt) {
		t.Errorf("Get() error = %v, want ErrCorrupt", err)
	}
}
