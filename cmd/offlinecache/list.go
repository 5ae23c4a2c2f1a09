package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tartil-app/offlinecache"
)

var listCmd = &cobra.Command{
	Use:       "list [verse|audio]",
	Short:     "List cached keys",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"verse", "audio"},
	RunE:      runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	kinds := []offlinecache.Kind{offlinecache.KindVerse, offlinecache.KindAudio}
	if len(args) == 1 && args[0] == "audio" {
		kinds = kinds[1:]
	} else if len(args) == 1 {
		kinds = kinds[:1]
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, "")
	if err != nil {
		return err
	}
	defer s.Close()

	for _, kind := range kinds {
		for key, err := range s.manager.Keys(ctx, kind) {
			if err != nil {
				return fmt.Errorf("listing %s: %w", kind, err)
			}
			fmt.Println(key)
		}
	}
	return nil
}
