package offlinecache

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tartil-app/offlinecache/internal/codec/zstdcodec"
	"github.com/tartil-app/offlinecache/internal/connectivity"
	"github.com/tartil-app/offlinecache/internal/readiness"
	"github.com/tartil-app/offlinecache/internal/shard"
	"github.com/tartil-app/offlinecache/internal/shard/fnvshard"
	"github.com/tartil-app/offlinecache/internal/shard/surahshard"
	"github.com/tartil-app/offlinecache/internal/stats"
	"github.com/tartil-app/offlinecache/internal/store"
	"github.com/tartil-app/offlinecache/internal/store/diskstore"
	"github.com/tartil-app/offlinecache/internal/store/sqlitestore"
)

// DefaultPrefetchConcurrency bounds parallel source fetches in Prefetch.
const DefaultPrefetchConcurrency = 4

// Option configures a Manager.
type Option interface {
	apply(*options)
}

// options holds the manager configuration.
type options struct {
	store               store.Store
	monitor             *connectivity.Monitor
	probeAddress        string
	probeInterval       time.Duration
	policy              readiness.Policy
	stats               stats.Collector
	logger              *zap.Logger
	verifyInterval      time.Duration
	prefetchConcurrency int
	readCacheEntries    int
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		policy:              readiness.MinVerses(1),
		stats:               stats.NewNoop(),
		logger:              zap.NewNop(),
		prefetchConcurrency: DefaultPrefetchConcurrency,
		probeInterval:       connectivity.DefaultInterval,
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithStore sets the storage backend. The manager takes ownership and
// closes it on Close, or before New returns an error.
func WithStore(s store.Store) Option {
	return optionFunc(func(o *options) {
		o.store = s
	})
}

// WithConnectivity injects a connectivity monitor. The caller keeps
// ownership: Close unsubscribes but does not stop it.
// If neither this nor WithProbeAddress is set, the manager creates its own
// monitor, which stays offline until told otherwise.
func WithConnectivity(m *connectivity.Monitor) Option {
	return optionFunc(func(o *options) {
		o.monitor = m
	})
}

// WithProbeAddress makes the manager poll reachability by dialing address
// ("host:port") every interval. Zero interval uses the monitor default.
func WithProbeAddress(address string, interval time.Duration) Option {
	return optionFunc(func(o *options) {
		o.probeAddress = address
		if interval > 0 {
			o.probeInterval = interval
		}
	})
}

// WithPolicy sets the completeness policy that decides readiness.
// Default is at least one cached verse.
func WithPolicy(p readiness.Policy) Option {
	return optionFunc(func(o *options) {
		o.policy = p
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithVerifyInterval enables a background recount every d.
// Drift is logged and counted, never corrected.
func WithVerifyInterval(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.verifyInterval = d
	})
}

// WithPrefetchConcurrency bounds parallel fetches in Prefetch.
func WithPrefetchConcurrency(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.prefetchConcurrency = n
		}
	})
}

// WithReadCache keeps up to n recently read payloads in memory.
func WithReadCache(n int) Option {
	return optionFunc(func(o *options) {
		o.readCacheEntries = n
	})
}

// Directory layouts for WithDataDir.
const (
	// LayoutSurah keeps every ayah of a surah in one directory.
	LayoutSurah = "surah"
	// LayoutHash spreads entries evenly by key hash.
	LayoutHash = "fnv"
)

// DataDirOption configures the store opened by WithDataDir.
type DataDirOption func(*dataDirOptions)

type dataDirOptions struct {
	layout string
}

// WithLayout selects the directory layout. The layout is recorded in the
// store's index, and reopening a directory with another layout fails.
// Default is LayoutSurah.
func WithLayout(name string) DataDirOption {
	return func(o *dataDirOptions) { o.layout = name }
}

func shardStrategy(layout string) (shard.Strategy, error) {
	switch layout {
	case "", LayoutSurah:
		return surahshard.New(), nil
	case LayoutHash:
		return fnvshard.New(), nil
	}
	return nil, fmt.Errorf("%w: unknown directory layout %q", ErrInvalidArgument, layout)
}

// WithDataDir stores content under dir using zstd-compressed files.
// capacity limits total payload bytes; zero means unlimited.
func WithDataDir(dir string, capacity int64, opts ...DataDirOption) (Option, error) {
	var o dataDirOptions
	for _, opt := range opts {
		opt(&o)
	}
	strategy, err := shardStrategy(o.layout)
	if err != nil {
		return nil, err
	}

	st, err := diskstore.New(dir, zstdcodec.New(),
		diskstore.WithCapacity(capacity),
		diskstore.WithShardStrategy(strategy),
	)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	return WithStore(st), nil
}

// WithSQLite stores content in a SQLite database at path.
// capacity limits total payload bytes; zero means unlimited.
func WithSQLite(path string, capacity int64) (Option, error) {
	st, err := sqlitestore.New(path, sqlitestore.WithCapacity(capacity))
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	return WithStore(st), nil
}
