package offlinecache

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tartil-app/offlinecache/internal/source"
	"github.com/tartil-app/offlinecache/internal/stats"
	"github.com/tartil-app/offlinecache/internal/store"
)

// Source is a remote origin records can be prefetched from.
type Source = source.Source

// PrefetchResult summarizes a Prefetch call.
type PrefetchResult struct {
	Cached  int   // records written
	Skipped int   // records already cached
	Missing []Key // keys the source does not have
	Failed  []Key // keys whose fetch or write failed
	Bytes   int64 // payload bytes written
}

type fetched struct {
	key  Key
	data []byte
	err  error
}

// Prefetch downloads keys from src and caches them. It refuses to start
// while offline. A fetched verse that GetVerse could not read back is
// reported in Failed and not cached. Fetches run in parallel; writes go through the normal
// serialized mutation path one at a time. Prefetch stops at the first
// ErrStorageFull and returns it along with what was cached so far.
func (m *Manager) Prefetch(ctx context.Context, src Source, keys []Key) (PrefetchResult, error) {
	var result PrefetchResult
	if m.closed.Load() {
		return result, ErrClosed
	}
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return result, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	if !m.Snapshot().Online {
		return result, ErrOffline
	}

	var pending []Key
	for _, k := range keys {
		if _, err := m.store.Stat(ctx, k); err == nil {
			result.Skipped++
			continue
		}
		pending = append(pending, k)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan fetched)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.prefetchConcurrency)
	go func() {
		for _, k := range pending {
			g.Go(func() error {
				data, err := src.Fetch(gctx, k)
				select {
				case results <- fetched{key: k, data: data, err: err}:
				case <-gctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	var stop error
	for r := range results {
		if stop != nil {
			continue
		}
		if r.err != nil {
			m.stats.IncCounter(stats.MetricFetchFailures, 1)
			if errors.Is(r.err, source.ErrNotFound) {
				result.Missing = append(result.Missing, r.key)
			} else {
				result.Failed = append(result.Failed, r.key)
				m.logger.Warn("prefetch fetch failed", zap.Stringer("key", r.key), zap.Error(r.err))
			}
			continue
		}
		m.stats.IncCounter(stats.MetricFetches, 1)

		if err := checkPayload(r.key, r.data); err != nil {
			m.stats.IncCounter(stats.MetricFetchFailures, 1)
			result.Failed = append(result.Failed, r.key)
			m.logger.Warn("prefetch rejected payload", zap.Stringer("key", r.key), zap.Error(err))
			continue
		}
		if err := m.put(ctx, r.key, r.data); err != nil {
			result.Failed = append(result.Failed, r.key)
			if errors.Is(err, store.ErrStorageFull) || errors.Is(err, ErrClosed) || ctx.Err() != nil {
				stop = err
				cancel()
			}
			continue
		}
		result.Cached++
		result.Bytes += int64(len(r.data))
	}

	if stop == nil {
		stop = ctx.Err()
	}
	m.logger.Info("prefetch finished",
		zap.Int("cached", result.Cached),
		zap.Int("skipped", result.Skipped),
		zap.Int("missing", len(result.Missing)),
		zap.Int("failed", len(result.Failed)),
		zap.Error(stop),
	)
	return result, stop
}

// checkPayload rejects fetched content that would be cached but unreadable.
func checkPayload(key Key, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: %s: empty payload", ErrCorrupt, key)
	}
	if key.Kind != KindVerse {
		return nil
	}
	r, err := decodeVerse(key, data)
	if err != nil {
		return err
	}
	if err := r.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return nil
}
