// Package cmd assembles the hum2song-cli cobra command tree.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/apiclient"
	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/clierr"
)

var (
	serverURL      string
	requestTimeout time.Duration
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:   "hum2song-cli",
	Short: "hum2song CLI - submit hums, poll jobs, edit scores",
	Long: `hum2song-cli is a command-line client for the hum2song HTTP API.
It submits a short recording for transcription and synthesis, polls the
resulting job, downloads rendered artifacts, and round-trips the
canonical JSON score.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func newClient() *apiclient.Client {
	return apiclient.New(serverURL, requestTimeout)
}

// Execute runs the command tree and returns the process exit code: 0 ok,
// 2 task failed, 3 poll timeout, 4 network/contract error, 5 bad args.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return clierr.ExitCodeFor(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "Base URL of the hum2song server")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 30*time.Second, "Per-request HTTP timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON instead of a formatted summary")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(exportCmd)
}
