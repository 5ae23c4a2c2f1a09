package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tartil-app/offlinecache"
)

var evictCmd = &cobra.Command{
	Use:   "evict KEY...",
	Short: "Remove records from the cache",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEvict,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached record",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(evictCmd)
	rootCmd.AddCommand(clearCmd)
}

func runEvict(cmd *cobra.Command, args []string) error {
	keys := make([]offlinecache.Key, 0, len(args))
	for _, a := range args {
		k, err := offlinecache.ParseKey(a)
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, "")
	if err != nil {
		return err
	}
	defer s.Close()

	for _, k := range keys {
		if err := s.manager.Evict(ctx, k); err != nil {
			return err
		}
		if verbose {
			fmt.Printf("Evicted %s\n", k)
		}
	}
	fmt.Printf("Cache size: %s\n", offlinecache.FormatCacheSize(s.manager.Stats().Size))
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, "")
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("Cache cleared.")
	return nil
}
