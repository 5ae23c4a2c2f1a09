// Package diskcachefx provides an fx module for a persistent offline cache
// manager.
package diskcachefx

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tartil-app/offlinecache"
	"github.com/tartil-app/offlinecache/internal/stats"
	"github.com/tartil-app/offlinecache/internal/stats/logger"
	statsprom "github.com/tartil-app/offlinecache/internal/stats/prometheus"
)

// Config holds configuration for the persistent cache manager.
type Config struct {
	// DataDir is the directory holding cached payloads.
	// Ignored when SQLitePath is set.
	DataDir string

	// SQLitePath, if set, stores content in a SQLite database instead of
	// files.
	SQLitePath string

	// Layout is the directory layout under DataDir, offlinecache.LayoutSurah
	// (the default) or offlinecache.LayoutHash.
	Layout string

	// Capacity limits total payload bytes. Zero means unlimited.
	Capacity int64

	// ReadCacheEntries is the number of payloads kept in memory.
	// Default is 256; negative disables the read cache.
	ReadCacheEntries int

	// ProbeAddress is dialed to detect connectivity, e.g. "api.quran.com:443".
	// If empty, connectivity stays offline until reported.
	ProbeAddress  string
	ProbeInterval time.Duration

	// VerifyInterval enables a periodic accounting recount.
	VerifyInterval time.Duration
}

// Module provides a persistent *offlinecache.Manager.
// Requires a Config and a *zap.Logger to be provided. If a
// prometheus.Registerer is also provided, metrics are registered there;
// otherwise they are logged at debug level.
var Module = fx.Module("diskcache",
	fx.Provide(
		newStatsCollector,
		newManager,
	),
)

// StatsParams holds dependencies for choosing the stats collector.
type StatsParams struct {
	fx.In

	Logger     *zap.Logger
	Registerer prometheus.Registerer `optional:"true"`
}

func newStatsCollector(p StatsParams) stats.Collector {
	if p.Registerer != nil {
		return statsprom.New(p.Registerer)
	}
	return logger.New(p.Logger.Named("offlinecache.stats"))
}

// Params holds dependencies for creating the manager.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided manager.
type Result struct {
	fx.Out

	Manager *offlinecache.Manager
}

func newManager(p Params) (Result, error) {
	cacheEntries := p.Config.ReadCacheEntries
	if cacheEntries == 0 {
		cacheEntries = 256
	}

	var backend offlinecache.Option
	var err error
	if p.Config.SQLitePath != "" {
		backend, err = offlinecache.WithSQLite(p.Config.SQLitePath, p.Config.Capacity)
	} else {
		backend, err = offlinecache.WithDataDir(p.Config.DataDir, p.Config.Capacity,
			offlinecache.WithLayout(p.Config.Layout))
	}
	if err != nil {
		return Result{}, err
	}

	opts := []offlinecache.Option{
		backend,
		offlinecache.WithStats(p.Collector),
		offlinecache.WithLogger(p.Logger.Named("offlinecache")),
		offlinecache.WithVerifyInterval(p.Config.VerifyInterval),
	}
	if cacheEntries > 0 {
		opts = append(opts, offlinecache.WithReadCache(cacheEntries))
	}
	if p.Config.ProbeAddress != "" {
		opts = append(opts, offlinecache.WithProbeAddress(p.Config.ProbeAddress, p.Config.ProbeInterval))
	}

	m, err := offlinecache.New(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return m.Close()
		},
	})

	return Result{Manager: m}, nil
}
