package surahshard

import (
	"testing"

	"github.com/tartil-app/offlinecache/internal/store"
)

func TestStrategy_ShardID(t *testing.T) {
	s := New()

	tests := []struct {
		name  string
		key   store.Key
		total int
		want  int
	}{
		{"first surah", store.VerseKey(1, 7, "en"), 128, 0},
		{"last surah", store.VerseKey(114, 1, "en"), 128, 113},
		{"wraps", store.AudioKey(20, 1, "r"), 16, 3},
		{"single shard", store.VerseKey(50, 1, "en"), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ShardID(tt.key, tt.total); got != tt.want {
				t.Errorf("ShardID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStrategy_Locality(t *testing.T) {
	s := New()
	first := s.ShardID(store.VerseKey(36, 1, "en"), 32)
	for ayah := 2; ayah <= 83; ayah++ {
		if got := s.ShardID(store.VerseKey(36, ayah, "ar"), 32); got != first {
			t.Fatalf("ayah %d in shard %d, want %d", ayah, got, first)
		}
	}
}
