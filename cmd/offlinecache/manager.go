package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tartil-app/offlinecache"
	"github.com/tartil-app/offlinecache/internal/connectivity"
	"github.com/tartil-app/offlinecache/internal/stats"
	statslogger "github.com/tartil-app/offlinecache/internal/stats/logger"
)

// newLogger writes warnings to stderr, or everything down to debug with
// --verbose.
func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// session is an open manager plus the monitor it follows.
type session struct {
	manager *offlinecache.Manager
	monitor *connectivity.Monitor
	logger  *zap.Logger
}

func (s *session) Close() error {
	err := s.manager.Close()
	s.monitor.Stop()
	_ = s.logger.Sync()
	return err
}

// openSession opens the configured backend. When probe is non-empty the
// address is dialed once before the manager starts, so the snapshot
// reflects real connectivity.
func openSession(ctx context.Context, probe string) (*session, error) {
	logger := newLogger()

	var backend offlinecache.Option
	var err error
	if sqlitePath != "" {
		backend, err = offlinecache.WithSQLite(sqlitePath, capacity)
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		backend, err = offlinecache.WithDataDir(dataDir, capacity, offlinecache.WithLayout(shardLayout))
	}
	if err != nil {
		return nil, err
	}

	monOpts := []connectivity.Option{connectivity.WithLogger(logger.Named("connectivity"))}
	if probe != "" {
		monOpts = append(monOpts, connectivity.WithProber(connectivity.NewDialProber(probe, connectivity.DefaultInterval)))
	}
	mon := connectivity.New(monOpts...)
	mon.Probe(ctx)

	var collector stats.Collector = stats.NewNoop()
	if verbose {
		collector = statslogger.New(logger.Named("stats"))
	}

	opts := []offlinecache.Option{
		backend,
		offlinecache.WithConnectivity(mon),
		offlinecache.WithLogger(logger.Named("offlinecache")),
		offlinecache.WithStats(collector),
	}
	if readCache > 0 {
		opts = append(opts, offlinecache.WithReadCache(readCache))
	}
	if concurrency > 0 {
		opts = append(opts, offlinecache.WithPrefetchConcurrency(concurrency))
	}

	// New closes the backend store if it fails.
	m, err := offlinecache.New(opts...)
	if err != nil {
		mon.Stop()
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return &session{manager: m, monitor: mon, logger: logger}, nil
}
