// dispatchctl is the admin command-line tool for the dispatch engine's HTTP
// API: inspecting the queue and DLQ, listing connected extension sessions,
// and draining the dispatcher ahead of a redeploy.
//
// Usage:
//
//	dispatchctl [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Commands:
//
//	queue     Inspect and manage the job queue (status, enqueue, show, cancel, dlq)
//	sessions  List connected extension sessions
//	drain     Stop the dispatcher from binding new work
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/dispatch-engine/internal/cli"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "dispatchctl",
		Short:         "dispatchctl — admin CLI for the image-generation job dispatch engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "Engine API URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewQueueCmd(clientFn, outputFn),
		cli.NewSessionsCmd(clientFn, outputFn),
		cli.NewDrainCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
