package diskcachefx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/tartil-app/offlinecache"
)

func TestModule(t *testing.T) {
	tests := []struct {
		name   string
		config func(dir string) Config
	}{
		{"files", func(dir string) Config { return Config{DataDir: dir} }},
		{"files hashed", func(dir string) Config {
			return Config{DataDir: dir, Layout: offlinecache.LayoutHash}
		}},
		{"sqlite", func(dir string) Config {
			return Config{SQLitePath: filepath.Join(dir, "cache.db"), ReadCacheEntries: -1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			var m *offlinecache.Manager

			app := fxtest.New(t,
				fx.Supply(zap.NewNop(), tt.config(dir)),
				Module,
				fx.Populate(&m),
			)
			app.RequireStart()

			err := m.CacheAudio(context.Background(), offlinecache.AudioRecord{
				Surah: 1, Ayah: 1, ReciterID: "alafasy", Data: make([]byte, 1536),
			})
			if err != nil {
				t.Fatalf("CacheAudio() error = %v", err)
			}
			if got := offlinecache.FormatCacheSize(m.Stats().Size); got != "1.5 KB" {
				t.Errorf("FormatCacheSize() = %q, want %q", got, "1.5 KB")
			}
			app.RequireStop()
		})
	}
}

func TestModule_PrometheusMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	var m *offlinecache.Manager

	app := fxtest.New(t,
		fx.Supply(zap.NewNop(), Config{DataDir: t.TempDir()}),
		fx.Provide(func() prometheus.Registerer { return reg }),
		Module,
		fx.Populate(&m),
	)
	app.RequireStart()
	defer app.RequireStop()

	err := m.CacheVerse(context.Background(), offlinecache.VerseRecord{
		Surah: 1, Ayah: 1, TranslationID: "en", Text: "In the name of Allah",
	})
	if err != nil {
		t.Fatalf("CacheVerse() error = %v", err)
	}

	n, err := testutil.GatherAndCount(reg, "offlinecache_verses", "offlinecache_writes_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("GatherAndCount() = %d, want 2", n)
	}
}
