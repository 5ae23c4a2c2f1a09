package noopcodec

import (
	"bytes"
	"testing"

	"github.com/tartil-app/offlinecache/internal/codec"
)

func TestCodec_PassThrough(t *testing.T) {
	c := New()
	if c.Extension() != "" {
		t.Errorf("Extension() = %q, want empty", c.Extension())
	}

	original := []byte{0xff, 0xfb, 0x90, 0x64} // MP3 frame header
	encoded, err := codec.Encode(c, original)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(encoded, original) {
		t.Errorf("Encode() = %x, want %x", encoded, original)
	}

	decoded, err := codec.Decode(c, bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(decoded, original) {
		t.Errorf("Decode() = %x, want %x", decoded, original)
	}
}
