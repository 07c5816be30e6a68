// Command spguardiand runs a single stability pool guardian daemon,
// grounded on the teacher's cmd/rivined/main.go + daemon.go, collapsed
// to this module's single-component wiring (no gateway/consensus set of
// its own — see pkg/daemon.New).
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/threefoldtech/stabilitypool/pkg/cli"
	"github.com/threefoldtech/stabilitypool/pkg/daemon"
)

func main() {
	cfg := daemon.DefaultConfig()

	root := &cobra.Command{
		Use:   "spguardiand",
		Short: "Stability pool guardian daemon",
		Long:  "spguardiand runs a stability pool guardian: a cycle engine, oracle prefetcher, and read-only HTTP API.",
		Run: func(*cobra.Command, []string) {
			runDaemon(cfg)
		},
	}
	cfg.RegisterAsFlags(root.Flags())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "spguardiand exited with an error:", err)
		os.Exit(cli.ExitCodeUsage)
	}
}

func runDaemon(cfg daemon.Config) {
	if err := cfg.Finalize(); err != nil {
		cli.DieWithError("invalid configuration", err)
	}

	fmt.Println("Starting stability pool guardian...")
	d, err := daemon.New(cfg)
	if err != nil {
		cli.DieWithError("failed to start daemon", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	fmt.Println("Finished loading. Listening on", cfg.APIAddr)
	<-sigChan

	fmt.Println("\rCaught stop signal, quitting...")
	if err := d.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "error during shutdown:", err)
	}
}
