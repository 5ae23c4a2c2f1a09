package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tartil-app/offlinecache"
)

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Read a cached record",
	Long: `Read a cached record by key.

Keys have the form kind/surah/ayah/variant.

Examples:
  # Print a verse
  offlinecache get verse/002/255/en.sahih

  # Save a recitation
  offlinecache get audio/002/255/alafasy --out ayat-al-kursi.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var (
	getJSON bool
	getOut  string
)

func init() {
	getCmd.Flags().BoolVar(&getJSON, "json", false, "print verses as JSON")
	getCmd.Flags().StringVarP(&getOut, "out", "o", "", "write audio data to this file")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	key, err := offlinecache.ParseKey(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, "")
	if err != nil {
		return err
	}
	defer s.Close()

	switch key.Kind {
	case offlinecache.KindVerse:
		r, err := s.manager.GetVerse(ctx, key.Surah, key.Ayah, key.Variant)
		if err != nil {
			return notFound(key, err)
		}
		if getJSON {
			return json.NewEncoder(os.Stdout).Encode(r)
		}
		fmt.Println(r.Text)
	default:
		r, err := s.manager.GetAudio(ctx, key.Surah, key.Ayah, key.Variant)
		if err != nil {
			return notFound(key, err)
		}
		if getOut != "" {
			if err := os.WriteFile(getOut, r.Data, 0o644); err != nil {
				return fmt.Errorf("writing audio: %w", err)
			}
		}
		fmt.Printf("Size:     %s\n", offlinecache.FormatCacheSize(uint64(r.Size())))
		fmt.Printf("Location: %s\n", r.Location)
	}
	return nil
}

func notFound(key offlinecache.Key, err error) error {
	switch {
	case errors.Is(err, offlinecache.ErrCorrupt):
		return fmt.Errorf("%s is damaged and was treated as missing", key)
	case errors.Is(err, offlinecache.ErrNotFound):
		return fmt.Errorf("%s is not cached", key)
	}
	return err
}
