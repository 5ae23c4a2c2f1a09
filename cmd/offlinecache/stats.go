package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tartil-app/offlinecache"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache totals, readiness and connectivity",
	Long: `Display the cache snapshot:
- Number of cached verses and recitations
- Total payload size
- Whether the cache is ready for offline use
- Connectivity (only meaningful with --probe)`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var statsJSON bool

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), probeAddr)
	if err != nil {
		return err
	}
	defer s.Close()

	snap := s.manager.Snapshot()
	if statsJSON {
		return json.NewEncoder(os.Stdout).Encode(snapshotJSON(snap))
	}

	fmt.Printf("Verses:    %d\n", snap.Stats.Verses)
	fmt.Printf("Audio:     %d\n", snap.Stats.Audio)
	fmt.Printf("Size:      %s\n", offlinecache.FormatCacheSize(snap.Stats.Size))
	fmt.Printf("Readiness: %s\n", snap.Readiness)
	fmt.Printf("Online:    %t\n", snap.Online)
	return nil
}

func snapshotJSON(snap offlinecache.Snapshot) map[string]any {
	return map[string]any{
		"online":        snap.Online,
		"offline_ready": snap.OfflineReady,
		"readiness":     snap.Readiness.String(),
		"verses":        snap.Stats.Verses,
		"audio":         snap.Stats.Audio,
		"size_bytes":    snap.Stats.Size,
		"size":          offlinecache.FormatCacheSize(snap.Stats.Size),
	}
}
