package store

import (
	"errors"
	"slices"
	"testing"
)

func TestKey_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		wantErr bool
	}{
		{"verse", VerseKey(2, 255, "en.sahih"), false},
		{"audio", AudioKey(114, 6, "alafasy"), false},
		{"zero kind", Key{Surah: 1, Ayah: 1, Variant: "x"}, true},
		{"surah zero", VerseKey(0, 1, "en"), true},
		{"surah too large", VerseKey(115, 1, "en"), true},
		{"ayah zero", VerseKey(1, 0, "en"), true},
		{"ayah too large", VerseKey(2, 287, "en"), true},
		{"empty variant", VerseKey(1, 1, ""), true},
		{"path in variant", AudioKey(1, 1, "../etc"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Validate() error = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestKey_String(t *testing.T) {
	k := VerseKey(2, 255, "en.sahih")
	if got := k.String(); got != "verse/002/255/en.sahih" {
		t.Errorf("String() = %q, want %q", got, "verse/002/255/en.sahih")
	}

	parsed, err := ParseKey(k.String())
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if parsed != k {
		t.Errorf("ParseKey() = %+v, want %+v", parsed, k)
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, s := range []string{"", "verse/1/1", "video/001/001/x", "verse/abc/001/x", "audio/001/999/x"} {
		if _, err := ParseKey(s); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ParseKey(%q) error = %v, want ErrInvalidKey", s, err)
		}
	}
}

func TestKey_Compare(t *testing.T) {
	keys := []Key{
		AudioKey(1, 1, "a"),
		VerseKey(2, 1, "en"),
		VerseKey(1, 7, "en"),
		VerseKey(1, 7, "ar"),
	}
	slices.SortFunc(keys, Key.Compare)

	want := []Key{
		VerseKey(1, 7, "ar"),
		VerseKey(1, 7, "en"),
		VerseKey(2, 1, "en"),
		AudioKey(1, 1, "a"),
	}
	if !slices.Equal(keys, want) {
		t.Errorf("sorted = %v, want %v", keys, want)
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	if Checksum([]byte("bismillah")) != Checksum([]byte("bismillah")) {
		t.Error("Checksum() should be deterministic")
	}
	if Checksum([]byte("a")) == Checksum([]byte("b")) {
		t.Error("Checksum() should differ for different payloads")
	}
}
