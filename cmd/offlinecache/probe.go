package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tartil-app/offlinecache/internal/connectivity"
)

var probeCmd = &cobra.Command{
	Use:   "probe [ADDRESS]",
	Short: "Check whether an address is reachable",
	Long: `Dial host:port once and report online or offline. Without an argument
the --probe address is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

var probeTimeout time.Duration

func init() {
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 5*time.Second, "dial timeout")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	addr := probeAddr
	if len(args) == 1 {
		addr = args[0]
	}
	if addr == "" {
		return fmt.Errorf("no address to probe; pass one or set --probe")
	}

	mon := connectivity.New(
		connectivity.WithProber(connectivity.NewDialProber(addr, probeTimeout)),
		connectivity.WithInterval(probeTimeout),
	)
	defer mon.Stop()

	start := time.Now()
	state := mon.Probe(cmd.Context())
	fmt.Printf("%s: %s (%s)\n", addr, state, time.Since(start).Round(time.Millisecond))
	return nil
}
