// Package memorycachefx provides an fx module for an in-memory offline cache
// manager. Useful for testing.
package memorycachefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tartil-app/offlinecache"
	"github.com/tartil-app/offlinecache/internal/connectivity"
	"github.com/tartil-app/offlinecache/internal/stats"
	"github.com/tartil-app/offlinecache/internal/stats/logger"
	"github.com/tartil-app/offlinecache/internal/store/memstore"
)

// Module provides an in-memory manager for testing, together with its
// store and a connectivity monitor the test can drive.
// Requires a *zap.Logger to be provided.
var Module = fx.Module("memorycache",
	fx.Provide(
		newStatsCollector,
		newMemStore,
		newMonitor,
		newManager,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("offlinecache.stats"))
}

func newMemStore() *memstore.Store {
	return memstore.New()
}

func newMonitor(lc fx.Lifecycle) *connectivity.Monitor {
	m := connectivity.New()
	lc.Append(fx.StopHook(m.Stop))
	return m
}

// Params holds dependencies for creating the manager.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Store     *memstore.Store
	Monitor   *connectivity.Monitor
	Lifecycle fx.Lifecycle
}

// Result holds the provided manager.
type Result struct {
	fx.Out

	Manager *offlinecache.Manager
}

func newManager(p Params) (Result, error) {
	m, err := offlinecache.New(
		offlinecache.WithStore(p.Store),
		offlinecache.WithConnectivity(p.Monitor),
		offlinecache.WithStats(p.Collector),
		offlinecache.WithLogger(p.Logger.Named("offlinecache")),
	)
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
