// Package cachestats keeps running cache totals in lockstep with a store
// and detects drift by recounting.
package cachestats

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/tartil-app/offlinecache/internal/store"
)

// ErrDrift is matched by every *DriftError.
var ErrDrift = errors.New("cachestats: running totals drifted from store contents")

// Stats is the aggregate view of a cache.
type Stats struct {
	Verses int
	Audio  int
	Size   int64
}

func (s Stats) String() string {
	return fmt.Sprintf("verses=%d audio=%d size=%d", s.Verses, s.Audio, s.Size)
}

// Count returns the entry count for kind.
func (s Stats) Count(kind store.Kind) int {
	switch kind {
	case store.KindVerse:
		return s.Verses
	case store.KindAudio:
		return s.Audio
	}
	return 0
}

// DriftError reports running totals that no longer match a full recount.
type DriftError struct {
	Running   Stats
	Recounted Stats
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("cachestats: drift detected: running %s, recounted %s", e.Running, e.Recounted)
}

func (e *DriftError) Is(target error) bool {
	return target == ErrDrift
}

// Source is the read side of a store the aggregator counts.
type Source interface {
	Len(kind store.Kind) int
	TotalSize() int64
	Keys(ctx context.Context, kind store.Kind) iter.Seq2[store.Key, error]
	Stat(ctx context.Context, key store.Key) (store.Info, error)
}

// Aggregator holds running totals. Callers apply the delta of every store
// mutation; nothing here rescans on read.
type Aggregator struct {
	mu    sync.RWMutex
	stats Stats
}

// New returns an aggregator with zero totals.
func New() *Aggregator {
	return &Aggregator{}
}

// Seed replaces the totals with the store's own maintained counts.
func (a *Aggregator) Seed(src Source) Stats {
	s := Stats{
		Verses: src.Len(store.KindVerse),
		Audio:  src.Len(store.KindAudio),
		Size:   src.TotalSize(),
	}
	a.mu.Lock()
	a.stats = s
	a.mu.Unlock()
	return s
}

// Apply adds a mutation's delta to the totals of kind.
func (a *Aggregator) Apply(kind store.Kind, d store.Delta) Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch kind {
	case store.KindVerse:
		a.stats.Verses += d.Entries
	case store.KindAudio:
		a.stats.Audio += d.Entries
	}
	a.stats.Size += d.Bytes
	return a.stats
}

// Reset zeroes the totals.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.stats = Stats{}
	a.mu.Unlock()
}

// Stats returns the current totals.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// Recount walks every key in src and sums entry sizes.
// The caller must keep src quiescent for the result to be meaningful.
func Recount(ctx context.Context, src Source) (Stats, error) {
	var s Stats
	for _, kind := range store.Kinds {
		for key, err := range src.Keys(ctx, kind) {
			if err != nil {
				return Stats{}, fmt.Errorf("listing %s keys: %w", kind, err)
			}
			if err := ctx.Err(); err != nil {
				return Stats{}, err
			}
			info, err := src.Stat(ctx, key)
			if err != nil {
				return Stats{}, fmt.Errorf("stat %s: %w", key, err)
			}
			switch kind {
			case store.KindVerse:
				s.Verses++
			case store.KindAudio:
				s.Audio++
			}
			s.Size += info.Size
		}
	}
	return s, nil
}

// Verify recounts src and compares the result with the running totals and
// with the store's own counters. A mismatch is returned as *DriftError and
// left uncorrected.
func (a *Aggregator) Verify(ctx context.Context, src Source) (Stats, error) {
	recounted, err := Recount(ctx, src)
	if err != nil {
		return Stats{}, err
	}
	return recounted, a.Check(recounted, src)
}

// Check compares a recount taken while src was quiescent with the running
// totals and with the store's own counters.
func (a *Aggregator) Check(recounted Stats, src Source) error {
	running := a.Stats()
	maintained := Stats{
		Verses: src.Len(store.KindVerse),
		Audio:  src.Len(store.KindAudio),
		Size:   src.TotalSize(),
	}
	if running != recounted {
		return &DriftError{Running: running, Recounted: recounted}
	}
	if maintained != recounted {
		return &DriftError{Running: maintained, Recounted: recounted}
	}
	return nil
}
