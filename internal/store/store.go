// Package store defines the content storage interface for cached verse and
// audio payloads.
package store

import (
	"context"
	"errors"
	"iter"

	"github.com/cespare/xxhash/v2"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("store: entry not found")

	// ErrStorageFull is returned when a write would exceed the capacity of
	// the underlying medium. The store is left unchanged.
	ErrStorageFull = errors.New("store: storage full")

	// ErrCorrupt is returned when a stored payload fails its integrity check.
	ErrCorrupt = errors.New("store: entry corrupt")

	// ErrInvalidKey is returned for keys that fail validation.
	ErrInvalidKey = errors.New("store: invalid key")
)

// Info describes a stored entry without its payload.
type Info struct {
	Key      Key
	Size     int64
	Checksum uint64
}

// Delta is the change a mutation applied to the store.
// Entries is -1, 0 or +1; Bytes is new size minus old size.
type Delta struct {
	Entries int
	Bytes   int64
}

// IsZero reports whether the mutation left the store unchanged.
func (d Delta) IsZero() bool {
	return d.Entries == 0 && d.Bytes == 0
}

// Store defines the interface for content storage backends.
// Implementations must be safe for concurrent use and must leave their
// contents and running totals untouched when a mutation fails.
type Store interface {
	// Put inserts or overwrites the payload stored under key.
	// Storing an identical payload twice returns a zero Delta.
	Put(ctx context.Context, key Key, data []byte) (Delta, error)

	// Get returns the payload stored under key.
	// Returns ErrNotFound if absent and ErrCorrupt if the integrity check fails.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Stat returns entry metadata without reading the payload.
	Stat(ctx context.Context, key Key) (Info, error)

	// Delete removes key. Deleting an absent key is not an error and
	// returns a zero Delta.
	Delete(ctx context.Context, key Key) (Delta, error)

	// Keys returns the keys of the given kind in a stable order.
	// Every range over the sequence reads a fresh snapshot.
	Keys(ctx context.Context, kind Kind) iter.Seq2[Key, error]

	// Len returns the number of entries of the given kind.
	Len(kind Kind) int

	// TotalSize returns the sum of all payload sizes in bytes.
	TotalSize() int64

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Locator is implemented by stores that can report where a payload lives,
// e.g. a file path.
type Locator interface {
	Location(key Key) string
}

// Checksum returns the integrity checksum of a payload.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Scrubber is implemented by stores that can check every stored payload
// against its recorded metadata.
type Scrubber interface {
	Scrub(ctx context.Context) (ScrubReport, error)
}

// ScrubReport summarizes a scrub pass.
type ScrubReport struct {
	Checked int
	Corrupt []Key
	Missing []Key
	Orphans int
}

// OK reports whether the scrub found no problems.
func (r ScrubReport) OK() bool {
	return len(r.Corrupt) == 0 && len(r.Missing) == 0 && r.Orphans == 0
}
