package fnvshard

import (
	"testing"

	"github.com/tartil-app/offlinecache/internal/store"
)

func TestStrategy_ShardID(t *testing.T) {
	const shards = 64
	keys := []store.Key{
		store.VerseKey(1, 1, "en.sahih"),
		store.AudioKey(2, 255, "alafasy"),
		store.VerseKey(114, 6, "ar"),
	}
	s := New()
	for _, k := range keys {
		t.Run(k.String(), func(t *testing.T) {
			id := s.ShardID(k, shards)
			if id < 0 || id >= shards {
				t.Fatalf("ShardID() = %d, want [0, %d)", id, shards)
			}
			if again := s.ShardID(k, shards); again != id {
				t.Errorf("ShardID() = %d then %d", id, again)
			}
		})
	}
	if got := s.ShardID(keys[0], 1); got != 0 {
		t.Errorf("ShardID() with one shard = %d, want 0", got)
	}
}

// Recitations of one long surah should reach every shard.
func TestStrategy_SpreadsSurah(t *testing.T) {
	const shards = 16
	var hit [shards]bool
	for ayah := 1; ayah <= 286; ayah++ {
		hit[New().ShardID(store.AudioKey(2, ayah, "alafasy"), shards)] = true
	}
	for i, ok := range hit {
		if !ok {
			t.Errorf("shard %d received no keys", i)
		}
	}
}
