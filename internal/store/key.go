package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind distinguishes verse text entries from recitation audio entries.
type Kind uint8

const (
	KindVerse Kind = iota + 1
	KindAudio
)

// Kinds lists every kind in iteration order.
var Kinds = []Kind{KindVerse, KindAudio}

// String returns the kind name used in key strings and paths.
func (k Kind) String() string {
	switch k {
	case KindVerse:
		return "verse"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "verse":
		return KindVerse, nil
	case "audio":
		return KindAudio, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidKey, s)
	}
}

const (
	// MaxSurah is the number of surahs.
	MaxSurah = 114

	// MaxAyah is the length of the longest surah.
	MaxAyah = 286
)

var variantPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Key identifies a cached entry.
// Variant is the translation ID for verses and the reciter ID for audio.
type Key struct {
	Kind    Kind
	Surah   int
	Ayah    int
	Variant string
}

// VerseKey returns the key of a verse translation.
func VerseKey(surah, ayah int, translationID string) Key {
	return Key{Kind: KindVerse, Surah: surah, Ayah: ayah, Variant: translationID}
}

// AudioKey returns the key of a recitation.
func AudioKey(surah, ayah int, reciterID string) Key {
	return Key{Kind: KindAudio, Surah: surah, Ayah: ayah, Variant: reciterID}
}

// Validate reports whether the key is well formed.
func (k Key) Validate() error {
	if k.Kind != KindVerse && k.Kind != KindAudio {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidKey, k.Kind)
	}
	if k.Surah < 1 || k.Surah > MaxSurah {
		return fmt.Errorf("%w: surah %d out of range", ErrInvalidKey, k.Surah)
	}
	if k.Ayah < 1 || k.Ayah > MaxAyah {
		return fmt.Errorf("%w: ayah %d out of range", ErrInvalidKey, k.Ayah)
	}
	if !variantPattern.MatchString(k.Variant) {
		return fmt.Errorf("%w: variant %q", ErrInvalidKey, k.Variant)
	}
	return nil
}

// String formats the key as kind/surah/ayah/variant, e.g. "verse/002/255/en.sahih".
func (k Key) String() string {
	return fmt.Sprintf("%s/%03d/%03d/%s", k.Kind, k.Surah, k.Ayah, k.Variant)
}

// Less orders keys by kind, surah, ayah, then variant.
func (k Key) Less(o Key) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	if k.Surah != o.Surah {
		return k.Surah < o.Surah
	}
	if k.Ayah != o.Ayah {
		return k.Ayah < o.Ayah
	}
	return k.Variant < o.Variant
}

// Compare returns -1, 0 or +1 for use with slices.SortFunc.
func (k Key) Compare(o Key) int {
	switch {
	case k == o:
		return 0
	case k.Less(o):
		return -1
	default:
		return 1
	}
}

// ParseKey parses a key produced by Key.String and validates it.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}

	kind, err := ParseKind(parts[0])
	if err != nil {
		return Key{}, err
	}
	surah, err := strconv.Atoi(parts[1])
	if err != nil {
		return Key{}, fmt.Errorf("%w: surah %q", ErrInvalidKey, parts[1])
	}
	ayah, err := strconv.Atoi(parts[2])
	if err != nil {
		return Key{}, fmt.Errorf("%w: ayah %q", ErrInvalidKey, parts[2])
	}

	k := Key{Kind: kind, Surah: surah, Ayah: ayah, Variant: parts[3]}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}
