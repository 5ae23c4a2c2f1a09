package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tartil-app/offlinecache"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check cache accounting and payload integrity",
	Long: `Recount every cached record and compare with the stored totals.

With --scrub, also read back every payload and check its checksum, and
report payload files the index does not know about.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var verifyScrub bool

func init() {
	verifyCmd.Flags().BoolVar(&verifyScrub, "scrub", false, "read back and checksum every payload")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, "")
	if err != nil {
		return err
	}
	defer s.Close()

	recounted, err := s.manager.Verify(ctx)
	var drift *offlinecache.DriftError
	switch {
	case errors.As(err, &drift):
		fmt.Printf("Totals drifted: stored %s, recounted %s\n", drift.Running, drift.Recounted)
	case err != nil:
		return fmt.Errorf("verify failed: %w", err)
	default:
		fmt.Printf("Totals OK: %d verses, %d audio, %s\n",
			recounted.Verses, recounted.Audio, offlinecache.FormatCacheSize(recounted.Size))
	}

	if verifyScrub {
		report, scrubErr := s.manager.Scrub(ctx)
		if scrubErr != nil {
			return fmt.Errorf("scrub failed: %w", scrubErr)
		}
		fmt.Printf("Scrubbed %d payloads\n", report.Checked)
		for _, k := range report.Corrupt {
			fmt.Printf("  CORRUPT: %s\n", k)
		}
		for _, k := range report.Missing {
			fmt.Printf("  MISSING: %s\n", k)
		}
		if report.Orphans > 0 {
			fmt.Printf("  %d orphaned files\n", report.Orphans)
		}
		if !report.OK() {
			return fmt.Errorf("%d payloads failed verification", len(report.Corrupt)+len(report.Missing))
		}
	}

	if drift != nil {
		return err
	}
	fmt.Println("Cache verified successfully.")
	return nil
}
