package offlinecache

import (
	"encoding/json"
	"fmt"

	"github.com/tartil-app/offlinecache/internal/store"
)

// Key identifies a cached record.
type Key = store.Key

// Kind is the type of a cached record.
type Kind = store.Kind

const (
	KindVerse = store.KindVerse
	KindAudio = store.KindAudio
)

// VerseKey returns the key of a verse in a translation.
func VerseKey(surah, ayah int, translationID string) Key {
	return store.VerseKey(surah, ayah, translationID)
}

// AudioKey returns the key of a verse recitation by a reciter.
func AudioKey(surah, ayah int, reciterID string) Key {
	return store.AudioKey(surah, ayah, reciterID)
}

// ParseKey parses the form produced by Key.String, e.g. "verse/002/255/en.sahih".
func ParseKey(s string) (Key, error) {
	k, err := store.ParseKey(s)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return k, nil
}

// VerseRecord is the text of one verse in one translation.
type VerseRecord struct {
	Surah         int    `json:"surah"`
	Ayah          int    `json:"ayah"`
	TranslationID string `json:"translation_id"`
	Text          string `json:"text"`
	Translation   string `json:"translation,omitempty"`

	// Size is the stored payload length. It is set by GetVerse.
	Size int64 `json:"-"`
}

// Key returns the record's cache key.
func (r VerseRecord) Key() Key {
	return VerseKey(r.Surah, r.Ayah, r.TranslationID)
}

func (r VerseRecord) validate() error {
	if err := r.Key().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: verse %s has no text", ErrInvalidArgument, r.Key())
	}
	return nil
}

// payload is the stored encoding of the record.
func (r VerseRecord) payload() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding verse %s: %w", r.Key(), err)
	}
	return data, nil
}

func decodeVerse(key Key, data []byte) (VerseRecord, error) {
	var r VerseRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return VerseRecord{}, fmt.Errorf("%w: decoding verse %s: %w", ErrCorrupt, key, err)
	}
	if r.Key() != key {
		return VerseRecord{}, fmt.Errorf("%w: verse stored under %s claims %s", ErrCorrupt, key, r.Key())
	}
	r.Size = int64(len(data))
	return r, nil
}

// AudioRecord is the recitation of one verse by one reciter.
type AudioRecord struct {
	Surah     int
	Ayah      int
	ReciterID string
	Data      []byte

	// Location is the store's handle for the payload (a file path, a
	// database row or a memory address). It is set by GetAudio.
	Location string
}

// Key returns the record's cache key.
func (r AudioRecord) Key() Key {
	return AudioKey(r.Surah, r.Ayah, r.ReciterID)
}

// Size returns the payload length.
func (r AudioRecord) Size() int64 {
	return int64(len(r.Data))
}

func (r AudioRecord) validate() error {
	if err := r.Key().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: audio %s has no data", ErrInvalidArgument, r.Key())
	}
	return nil
}
