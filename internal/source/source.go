// Package source defines remote origins that verse and audio payloads are
// fetched from before being cached.
//
// Objects are laid out as
//
//	<prefix>verses/<surah>/<ayah>/<translation>.json[.<codec ext>]
//	<prefix>audio/<surah>/<ayah>/<reciter>.mp3[.<codec ext>]
//
// with surah and ayah zero-padded to three digits.
package source

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/tartil-app/offlinecache/internal/store"
)

// ErrNotFound is returned when the origin has no object for a key.
var ErrNotFound = errors.New("source: object not found")

// Source fetches payloads by key.
type Source interface {
	Fetch(ctx context.Context, key store.Key) ([]byte, error)
	Close() error
}

// Lister is implemented by sources that can enumerate their keys.
type Lister interface {
	List(ctx context.Context, kind store.Kind) iter.Seq2[store.Key, error]
}

// NormalizePrefix returns prefix with exactly one trailing slash, or "".
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func kindDir(kind store.Kind) string {
	if kind == store.KindAudio {
		return "audio/"
	}
	return "verses/"
}

func payloadExt(kind store.Kind) string {
	if kind == store.KindAudio {
		return ".mp3"
	}
	return ".json"
}

// KindPrefix returns the object name prefix holding every key of kind.
func KindPrefix(prefix string, kind store.Kind) string {
	return prefix + kindDir(kind)
}

// ObjectKey returns the object name for key. codecExt is the codec's
// extension without a dot, or "" for uncompressed objects.
func ObjectKey(prefix string, key store.Key, codecExt string) string {
	name := fmt.Sprintf("%s%03d/%03d/%s%s", KindPrefix(prefix, key.Kind), key.Surah, key.Ayah, key.Variant, payloadExt(key.Kind))
	if codecExt != "" {
		name += "." + codecExt
	}
	return name
}

// ParseObjectKey is the inverse of ObjectKey. Objects that do not follow
// the layout return false.
func ParseObjectKey(prefix string, kind store.Kind, name, codecExt string) (store.Key, bool) {
	rest, ok := strings.CutPrefix(name, KindPrefix(prefix, kind))
	if !ok {
		return store.Key{}, false
	}
	if codecExt != "" {
		if rest, ok = strings.CutSuffix(rest, "."+codecExt); !ok {
			return store.Key{}, false
		}
	}
	if rest, ok = strings.CutSuffix(rest, payloadExt(kind)); !ok {
		return store.Key{}, false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return store.Key{}, false
	}
	surah, err1 := strconv.Atoi(parts[0])
	ayah, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return store.Key{}, false
	}
	key := store.Key{Kind: kind, Surah: surah, Ayah: ayah, Variant: parts[2]}
	if key.Validate() != nil {
		return store.Key{}, false
	}
	return key, true
}

// Static is an in-memory source, useful for tests and for seeding a cache
// from bundled content.
type Static map[store.Key][]byte

var (
	_ Source = Static(nil)
	_ Lister = Static(nil)
)

func (s Static) Fetch(ctx context.Context, key store.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := s[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return slices.Clone(data), nil
}

// List yields keys of kind in sorted order.
func (s Static) List(ctx context.Context, kind store.Kind) iter.Seq2[store.Key, error] {
	return func(yield func(store.Key, error) bool) {
		var keys []store.Key
		for k := range s {
			if k.Kind == kind {
				keys = append(keys, k)
			}
		}
		slices.SortFunc(keys, store.Key.Compare)
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(store.Key{}, err)
				return
			}
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (s Static) Close() error { return nil }
