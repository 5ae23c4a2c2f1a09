package source

import (
	"context"
	"errors"
	"testing"

	"github.com/tartil-app/offlinecache/internal/store"
)

func TestObjectKeyRoundTrip(t *testing.T) {
	tests := []struct {
		prefix string
		key    store.Key
		ext    string
		want   string
	}{
		{"", store.VerseKey(2, 255, "en.sahih"), "zst", "verses/002/255/en.sahih.json.zst"},
		{"cdn/", store.AudioKey(1, 7, "abdul-basit"), "", "cdn/audio/001/007/abdul-basit.mp3"},
		{"a/b/", store.VerseKey(114, 6, "ar"), "gz", "a/b/verses/114/006/ar.json.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := ObjectKey(tt.prefix, tt.key, tt.ext)
			if got != tt.want {
				t.Fatalf("ObjectKey() = %q, want %q", got, tt.want)
			}
			key, ok := ParseObjectKey(tt.prefix, tt.key.Kind, got, tt.ext)
			if !ok || key != tt.key {
				t.Errorf("ParseObjectKey(%q) = %v, %v, want %v", got, key, ok, tt.key)
			}
		})
	}
}

func TestParseObjectKey_Rejects(t *testing.T) {
	for _, name := range []string{
		"verses/002/255/en.json",       // missing codec extension
		"audio/002/255/en.json.zst",    // wrong kind directory
		"verses/002/en.json.zst",       // missing ayah
		"verses/abc/001/en.json.zst",   // bad surah
		"verses/115/001/en.json.zst",   // surah out of range
		"verses/002/255/en.txt.zst",    // wrong payload extension
		"other/verses/002/255/en.json", // outside prefix
	} {
		if key, ok := ParseObjectKey("", store.KindVerse, name, "zst"); ok {
			t.Errorf("ParseObjectKey(%q) = %v, want rejection", name, key)
		}
	}
}

func TestStatic(t *testing.T) {
	src := Static{
		store.VerseKey(1, 2, "en"): []byte("b"),
		store.VerseKey(1, 1, "en"): []byte("a"),
		store.AudioKey(1, 1, "r"):  []byte("audio"),
	}
	ctx := context.Background()

	data, err := src.Fetch(ctx, store.VerseKey(1, 1, "en"))
	if err != nil || string(data) != "a" {
		t.Errorf("Fetch() = %q, %v, want %q", data, err, "a")
	}
	if _, err := src.Fetch(ctx, store.VerseKey(9, 9, "en")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch(missing) error = %v, want ErrNotFound", err)
	}

	var keys []store.Key
	for k, err := range src.List(ctx, store.KindVerse) {
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		keys = append(keys, k)
	}
	if len(keys) != 2 || keys[0] != store.VerseKey(1, 1, "en") {
		t.Errorf("List() = %v, want sorted verse keys", keys)
	}
}
