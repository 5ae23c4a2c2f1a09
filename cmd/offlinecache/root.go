package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tartil-app/offlinecache"
)

var (
	// Global flags.
	dataDir     string
	sqlitePath  string
	shardLayout string
	capacity    int64
	probeAddr   string
	readCache   int
	configPath  string
	verbose     bool
	concurrency int
)

var rootCmd = &cobra.Command{
	Use:   "offlinecache",
	Short: "Manage an offline cache of verse text and recitation audio",
	Long: `Offlinecache inspects and manages the on-device cache that keeps verse
text and recitation audio available without network access.

Settings can also be read from a TOML file (default
~/.offlinecache/config.toml). Flags given on the command line win.

Examples:
  # Show cache totals and readiness
  offlinecache stats

  # Cache a verse and read it back
  offlinecache put-verse 1 1 en.sahih "In the name of Allah"
  offlinecache get verse/001/001/en.sahih

  # Download a surah's recitation from a bucket
  offlinecache prefetch --from gs://my-bucket/content --kind audio --variant alafasy --surah 1

  # Recount totals and check every payload
  offlinecache verify --scrub`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		explicit := cmd.Flags().Changed("config")
		if !explicit {
			path = defaultConfigPath()
		}
		if path == "" || (!explicit && !fileExists(path)) {
			return nil
		}
		fc, err := loadFileConfig(path)
		if err != nil {
			return fmt.Errorf("loading config %s: %w", path, err)
		}
		applyFileConfig(fc, changedFlags(cmd))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "./cache", "directory holding cached content")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "use a SQLite database at this path instead of --data-dir")
	rootCmd.PersistentFlags().StringVar(&shardLayout, "shard", offlinecache.LayoutSurah, "directory layout under --data-dir: surah or fnv")
	rootCmd.PersistentFlags().Int64Var(&capacity, "capacity", 0, "maximum payload bytes (0 = unlimited)")
	rootCmd.PersistentFlags().StringVar(&probeAddr, "probe", "", "host:port dialed to decide connectivity")
	rootCmd.PersistentFlags().IntVar(&readCache, "read-cache", 0, "number of payloads kept in memory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// changedFlags reports which flags were set on the command line.
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	for _, name := range []string{"data-dir", "sqlite", "shard", "capacity", "probe", "read-cache", "verbose", "concurrency"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			changed[name] = true
		}
	}
	return changed
}
