// Package offlinecache keeps verse text and recitation audio available
// without network access and reports, truthfully, whether the device is
// online and whether cached content is complete enough to use offline.
//
// Example usage:
//
//	dataDir, err := offlinecache.WithDataDir("/path/to/cache", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m, err := offlinecache.New(dataDir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	err = m.CacheVerse(ctx, offlinecache.VerseRecord{
//	    Surah: 1, Ayah: 1, TranslationID: "en.sahih",
//	    Text: "In the name of Allah, the Entirely Merciful, the Especially Merciful.",
//	})
//	snap := m.Snapshot()
//	fmt.Println(snap.OfflineReady, offlinecache.FormatCacheSize(snap.Stats.Size))
package offlinecache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tartil-app/offlinecache/internal/cachestats"
	"github.com/tartil-app/offlinecache/internal/connectivity"
	"github.com/tartil-app/offlinecache/internal/readiness"
	"github.com/tartil-app/offlinecache/internal/stats"
	"github.com/tartil-app/offlinecache/internal/store"
	"github.com/tartil-app/offlinecache/internal/store/cachedstore"
	"github.com/tartil-app/offlinecache/internal/store/cachedstore/cachestrategy/lru"
	"github.com/tartil-app/offlinecache/internal/store/cachedstore/memory"
)

// ReadinessState is the state of the offline-readiness machine.
type ReadinessState = readiness.State

const (
	NotReady       = readiness.NotReady
	SyncingInitial = readiness.SyncingInitial
	Ready          = readiness.Ready
)

// CacheStats is the aggregate size of the cache.
type CacheStats struct {
	Verses int
	Audio  int
	Size   uint64
}

func toCacheStats(s cachestats.Stats) CacheStats {
	return CacheStats{Verses: s.Verses, Audio: s.Audio, Size: uint64(max(s.Size, 0))}
}

// Snapshot is an immutable view of the manager's public state.
type Snapshot struct {
	Online       bool
	OfflineReady bool
	Readiness    ReadinessState
	Stats        CacheStats
}

// Manager owns a content store and keeps its statistics, readiness and
// connectivity view consistent. A Manager is safe for concurrent use.
//
// Mutations are serialized. Each one updates the store, then the running
// totals, then readiness, so a Snapshot never pairs stats with a readiness
// value computed from different content.
type Manager struct {
	store       store.Store
	monitor     *connectivity.Monitor
	ownsMonitor bool
	agg         *cachestats.Aggregator
	tracker     *readiness.Tracker
	stats       stats.Collector
	logger      *zap.Logger

	prefetchConcurrency int

	// writeMu serializes mutations, including their store I/O.
	writeMu sync.Mutex

	// stateMu guards the view read by Snapshot. It is never held across
	// store I/O.
	stateMu sync.RWMutex
	online  bool

	// generation counts completed mutations so Verify can tell whether
	// the store moved under an unlocked recount.
	generation atomic.Uint64

	closed      atomic.Bool
	unsubscribe func()
	stopVerify  context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a Manager with the given options. WithStore (or WithDataDir /
// WithSQLite) is required.
//
// Totals are seeded from the store's persisted accounting, and readiness is
// restored from them, so a reopened cache can be Ready immediately.
//
// If New fails, the configured store is closed.
func New(opts ...Option) (_ *Manager, err error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.store == nil {
		return nil, ErrNoStore
	}
	defer func() {
		if err == nil {
			return
		}
		if cerr := cfg.store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing store: %w", cerr))
		}
	}()
	if cfg.readCacheEntries < 0 {
		return nil, fmt.Errorf("%w: read cache entries must not be negative, got %d",
			ErrInvalidArgument, cfg.readCacheEntries)
	}

	st := cfg.store
	if cfg.readCacheEntries > 0 {
		strategy, err := lru.New(cfg.readCacheEntries)
		if err != nil {
			return nil, fmt.Errorf("%w: read cache: %w", ErrInvalidArgument, err)
		}
		st = cachedstore.New(st, memory.New(strategy, cfg.stats))
	}

	m := &Manager{
		store:               st,
		monitor:             cfg.monitor,
		agg:                 cachestats.New(),
		tracker:             readiness.New(cfg.policy),
		stats:               cfg.stats,
		logger:              cfg.logger,
		prefetchConcurrency: cfg.prefetchConcurrency,
	}

	if m.monitor == nil {
		var monOpts []connectivity.Option
		monOpts = append(monOpts, connectivity.WithLogger(m.logger.Named("connectivity")))
		if cfg.probeAddress != "" {
			monOpts = append(monOpts,
				connectivity.WithProber(connectivity.NewDialProber(cfg.probeAddress, cfg.probeInterval)),
				connectivity.WithInterval(cfg.probeInterval),
			)
		}
		m.monitor = connectivity.New(monOpts...)
		m.ownsMonitor = true
	}

	// Subscribe before reading the state so no transition is missed.
	m.unsubscribe = m.monitor.Subscribe(func(s connectivity.State) {
		m.setOnline(s == connectivity.Online)
	})
	m.stateMu.Lock()
	m.online = m.monitor.Online()
	online := m.online
	seeded := m.agg.Seed(m.store)
	state := m.tracker.Restore(readiness.Input{Stats: seeded, Online: online})
	m.stateMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	m.stopVerify = cancel
	if m.ownsMonitor && cfg.probeAddress != "" {
		if err := m.monitor.Start(ctx); err != nil {
			cancel()
			m.unsubscribe()
			m.monitor.Stop()
			m.tracker.Close()
			return nil, fmt.Errorf("starting connectivity probe: %w", err)
		}
	}
	if cfg.verifyInterval > 0 {
		m.wg.Add(1)
		go m.verifyLoop(ctx, cfg.verifyInterval)
	}

	m.publishGauges()
	m.logger.Debug("manager initialized",
		zap.Stringer("stats", seeded),
		zap.Stringer("readiness", state),
		zap.String("policy", m.tracker.Policy().Name()),
		zap.Bool("online", online),
	)
	return m, nil
}

// Snapshot returns the current connectivity, readiness and stats as one
// consistent view.
func (m *Manager) Snapshot() Snapshot {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	state := m.tracker.State()
	return Snapshot{
		Online:       m.online,
		OfflineReady: state == readiness.Ready,
		Readiness:    state,
		Stats:        toCacheStats(m.agg.Stats()),
	}
}

// IsOnline reports the last known connectivity.
func (m *Manager) IsOnline() bool {
	return m.Snapshot().Online
}

// IsOfflineReady reports whether cached content may be used offline.
func (m *Manager) IsOfflineReady() bool {
	return m.Snapshot().OfflineReady
}

// Stats returns the current cache totals.
func (m *Manager) Stats() CacheStats {
	return m.Snapshot().Stats
}

// CacheVerse stores a verse. Caching an identical record again changes
// nothing.
func (m *Manager) CacheVerse(ctx context.Context, r VerseRecord) error {
	if err := r.validate(); err != nil {
		return err
	}
	data, err := r.payload()
	if err != nil {
		return err
	}
	return m.put(ctx, r.Key(), data)
}

// CacheAudio stores a recitation. Caching an identical record again
// changes nothing.
func (m *Manager) CacheAudio(ctx context.Context, r AudioRecord) error {
	if err := r.validate(); err != nil {
		return err
	}
	return m.put(ctx, r.Key(), r.Data)
}

// Evict removes key. Evicting an absent key is a no-op.
func (m *Manager) Evict(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return m.mutate(ctx, "evict", func(ctx context.Context) (bool, error) {
		if _, err := m.store.Stat(ctx, key); errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return true, nil
	}, func(ctx context.Context) error {
		delta, err := m.store.Delete(ctx, key)
		if err != nil {
			return fmt.Errorf("evicting %s: %w", key, err)
		}
		m.applyDelta(key.Kind, delta)
		m.stats.IncCounter(stats.MetricEvictions, 1)
		m.logger.Debug("evicted", zap.Stringer("key", key), zap.Int64("bytes", -delta.Bytes))
		return nil
	})
}

// Clear removes every cached record. Clearing an empty cache is a no-op.
func (m *Manager) Clear(ctx context.Context) error {
	return m.mutate(ctx, "clear", func(context.Context) (bool, error) {
		return m.store.Len(store.KindVerse) > 0 || m.store.Len(store.KindAudio) > 0, nil
	}, func(ctx context.Context) error {
		if err := m.store.Clear(ctx); err != nil {
			return fmt.Errorf("clearing store: %w", err)
		}
		m.stateMu.Lock()
		m.agg.Reset()
		m.stateMu.Unlock()
		m.stats.IncCounter(stats.MetricClears, 1)
		m.logger.Info("cache cleared")
		return nil
	})
}

func (m *Manager) put(ctx context.Context, key Key, data []byte) error {
	return m.mutate(ctx, "put", func(ctx context.Context) (bool, error) {
		info, err := m.store.Stat(ctx, key)
		if err != nil {
			return true, nil
		}
		return info.Size != int64(len(data)) || info.Checksum != store.Checksum(data), nil
	}, func(ctx context.Context) error {
		start := time.Now()
		delta, err := m.store.Put(ctx, key, data)
		m.stats.ObserveHistogram(stats.MetricWriteSeconds, time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, store.ErrStorageFull) {
				m.stats.IncCounter(stats.MetricStorageFull, 1)
			}
			return fmt.Errorf("caching %s: %w", key, err)
		}
		m.applyDelta(key.Kind, delta)
		m.stats.IncCounter(stats.MetricWrites, 1)
		m.logger.Debug("cached", zap.Stringer("key", key), zap.Int("bytes", len(data)))
		return nil
	})
}

// applyDelta folds a store delta into the running totals.
func (m *Manager) applyDelta(kind store.Kind, delta store.Delta) {
	m.stateMu.Lock()
	m.agg.Apply(kind, delta)
	m.stateMu.Unlock()
}

// mutate runs one serialized mutation. changes, if set, reports whether the
// mutation would alter anything; when it would not, readiness is left
// untouched. The mutation itself runs detached from ctx once started, and
// on failure readiness returns to its prior state.
func (m *Manager) mutate(
	ctx context.Context,
	op string,
	changes func(context.Context) (bool, error),
	do func(context.Context) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	ctx = context.WithoutCancel(ctx)

	if changes != nil {
		changed, err := changes(ctx)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}

	m.stateMu.Lock()
	m.tracker.Begin()
	m.stateMu.Unlock()

	err := do(ctx)
	m.generation.Add(1)
	if err != nil {
		m.stateMu.Lock()
		m.tracker.Abort()
		m.stateMu.Unlock()
		m.stats.IncCounter(stats.MetricWriteFailures, 1)
		m.logger.Warn("mutation failed", zap.String("op", op), zap.Error(err))
		m.publishGauges()
		return err
	}

	m.stateMu.Lock()
	m.tracker.Commit(readiness.Input{Stats: m.agg.Stats(), Online: m.online})
	m.stateMu.Unlock()
	m.publishGauges()
	return nil
}

// setOnline merges a connectivity transition into readiness. It does not
// wait for an in-flight mutation.
func (m *Manager) setOnline(online bool) {
	m.stateMu.Lock()
	m.online = online
	m.tracker.SetOnline(online)
	m.stateMu.Unlock()
	m.publishGauges()
}

// GetVerse returns a cached verse. A record that fails its integrity check
// is logged and reported as ErrNotFound wrapping ErrCorrupt.
func (m *Manager) GetVerse(ctx context.Context, surah, ayah int, translationID string) (VerseRecord, error) {
	key := VerseKey(surah, ayah, translationID)
	data, err := m.get(ctx, key)
	if err != nil {
		return VerseRecord{}, err
	}
	r, err := decodeVerse(key, data)
	if err != nil {
		return VerseRecord{}, m.corrupt(key, err)
	}
	return r, nil
}

// GetAudio returns a cached recitation with its storage location.
func (m *Manager) GetAudio(ctx context.Context, surah, ayah int, reciterID string) (AudioRecord, error) {
	key := AudioKey(surah, ayah, reciterID)
	data, err := m.get(ctx, key)
	if err != nil {
		return AudioRecord{}, err
	}
	r := AudioRecord{Surah: surah, Ayah: ayah, ReciterID: reciterID, Data: data}
	if l, ok := m.store.(store.Locator); ok {
		r.Location = l.Location(key)
	}
	return r, nil
}

func (m *Manager) get(ctx context.Context, key Key) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, store.ErrCorrupt) {
		return nil, m.corrupt(key, err)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// corrupt records a failed integrity check and converts it to absence.
func (m *Manager) corrupt(key Key, err error) error {
	m.stats.IncCounter(stats.MetricCorruptReads, 1)
	m.logger.Warn("corrupt record treated as missing", zap.Stringer("key", key), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}

// Keys lists cached keys of kind. Each range over the result reads a fresh
// listing.
func (m *Manager) Keys(ctx context.Context, kind Kind) iter.Seq2[Key, error] {
	if m.closed.Load() {
		return func(yield func(Key, error) bool) { yield(Key{}, ErrClosed) }
	}
	return m.store.Keys(ctx, kind)
}

// verifyAttempts bounds unlocked recounts before Verify falls back to
// holding mutations off for the whole walk.
const verifyAttempts = 3

// Verify recounts the store and compares it with the running totals.
// Drift is returned as *DriftError and logged; totals are not corrected.
//
// The walk runs without blocking mutations. If one lands during the walk
// the recount is discarded and retried; after verifyAttempts such retries
// the recount runs with mutations held off.
func (m *Manager) Verify(ctx context.Context) (CacheStats, error) {
	if m.closed.Load() {
		return CacheStats{}, ErrClosed
	}

	for range verifyAttempts {
		gen := m.generation.Load()
		recounted, err := cachestats.Recount(ctx, m.store)
		if cerr := ctx.Err(); cerr != nil {
			return CacheStats{}, cerr
		}

		m.writeMu.Lock()
		if m.generation.Load() != gen {
			m.writeMu.Unlock()
			continue
		}
		s, err := m.checkRecount(recounted, err)
		m.writeMu.Unlock()
		return s, err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.closed.Load() {
		return CacheStats{}, ErrClosed
	}
	recounted, err := cachestats.Recount(ctx, m.store)
	return m.checkRecount(recounted, err)
}

// checkRecount compares a quiescent recount with the running totals.
// The caller holds writeMu.
func (m *Manager) checkRecount(recounted cachestats.Stats, err error) (CacheStats, error) {
	if m.closed.Load() {
		return CacheStats{}, ErrClosed
	}
	if err != nil {
		return CacheStats{}, err
	}
	err = m.agg.Check(recounted, m.store)
	var drift *cachestats.DriftError
	if errors.As(err, &drift) {
		m.stats.IncCounter(stats.MetricDrift, 1)
		m.logger.Warn("cache accounting drift",
			zap.Stringer("running", drift.Running),
			zap.Stringer("recounted", drift.Recounted),
		)
	}
	return toCacheStats(recounted), err
}

// Scrub reads back every stored payload when the store supports it.
func (m *Manager) Scrub(ctx context.Context) (store.ScrubReport, error) {
	if m.closed.Load() {
		return store.ScrubReport{}, ErrClosed
	}
	sc, ok := m.store.(store.Scrubber)
	if !ok {
		return store.ScrubReport{}, nil
	}
	report, err := sc.Scrub(ctx)
	if err != nil {
		return report, err
	}
	if !report.OK() {
		m.logger.Warn("scrub found damaged records",
			zap.Int("corrupt", len(report.Corrupt)),
			zap.Int("missing", len(report.Missing)),
			zap.Int("orphans", report.Orphans),
		)
	}
	return report, nil
}

func (m *Manager) verifyLoop(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Verify(ctx); err != nil && !errors.Is(err, ErrDrift) && ctx.Err() == nil {
				m.logger.Warn("periodic verify failed", zap.Error(err))
			}
		}
	}
}

// OnReadinessChange registers fn to be called once per readiness change.
// Calls are asynchronous and ordered.
func (m *Manager) OnReadinessChange(fn func(ready bool)) (unsubscribe func()) {
	return m.tracker.Subscribe(fn)
}

// OnConnectivityChange registers fn to be called once per connectivity
// transition. Calls are asynchronous and ordered.
func (m *Manager) OnConnectivityChange(fn func(online bool)) (unsubscribe func()) {
	return m.monitor.Subscribe(func(s connectivity.State) { fn(s == connectivity.Online) })
}

// Connectivity returns the monitor the manager follows.
func (m *Manager) Connectivity() *connectivity.Monitor {
	return m.monitor
}

// Store returns the storage backend used by this manager.
func (m *Manager) Store() store.Store {
	return m.store
}

// Close stops background work, waits for an in-flight mutation and closes
// the store. A second call returns ErrClosed.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	m.stopVerify()
	m.wg.Wait()
	m.unsubscribe()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.ownsMonitor {
		m.monitor.Stop()
	}
	m.tracker.Close()

	if err := m.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	m.logger.Debug("manager closed")
	return nil
}

func (m *Manager) publishGauges() {
	s := m.Snapshot()
	m.stats.SetGauge(stats.MetricVerses, int64(s.Stats.Verses))
	m.stats.SetGauge(stats.MetricAudio, int64(s.Stats.Audio))
	m.stats.SetGauge(stats.MetricSizeBytes, int64(s.Stats.Size))
	m.stats.SetGauge(stats.MetricReady, stats.Bool(s.OfflineReady))
	m.stats.SetGauge(stats.MetricOnline, stats.Bool(s.Online))
}
