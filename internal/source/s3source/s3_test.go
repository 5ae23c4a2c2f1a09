package s3source

import (
	"context"
	"testing"

	"github.com/tartil-app/offlinecache/internal/codec/noopcodec"
	"github.com/tartil-app/offlinecache/internal/codec/zstdcodec"
	"github.com/tartil-app/offlinecache/internal/store"
)

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c", "a/b/c/"},
		{"/a/b/c/", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := &Source{}
			WithPrefix(tt.input)(s)
			if s.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", s.prefix, tt.want)
			}
		})
	}
}

func TestSource_objectKey(t *testing.T) {
	tests := []struct {
		name   string
		source *Source
		key    store.Key
		want   string
	}{
		{
			name:   "zstd verse",
			source: &Source{codec: zstdcodec.New()},
			key:    store.VerseKey(2, 255, "en.sahih"),
			want:   "verses/002/255/en.sahih.json.zst",
		},
		{
			name:   "uncompressed audio with prefix",
			source: &Source{codec: noopcodec.New(), prefix: "quran/v1/"},
			key:    store.AudioKey(1, 1, "alafasy"),
			want:   "quran/v1/audio/001/001/alafasy.mp3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.source.objectKey(tt.key); got != tt.want {
				t.Errorf("objectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	s := &Source{}
	WithRegion("me-south-1")(s)
	WithEndpoint("http://localhost:9000")(s)
	if s.region != "me-south-1" || s.endpoint != "http://localhost:9000" {
		t.Errorf("options not applied: region=%q endpoint=%q", s.region, s.endpoint)
	}
}

func TestNew_WithEndpoint(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	s, err := New(context.Background(), "quran", zstdcodec.New(),
		WithRegion("us-east-1"),
		WithEndpoint("http://localhost:9000"),
		WithPrefix("cache"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.client == nil {
		t.Error("client not created")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestFetch_Cancelled(t *testing.T) {
	s := &Source{codec: noopcodec.New()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Fetch(ctx, store.VerseKey(1, 1, "en")); err == nil {
		t.Error("Fetch() with cancelled context should return error")
	}
}
