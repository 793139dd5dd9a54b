package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/clierr"
)

var renderOutputFormat string

var renderCmd = &cobra.Command{
	Use:   "render <task-id>",
	Short: "Re-synthesize audio from the current midi artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if renderOutputFormat != "mp3" && renderOutputFormat != "wav" {
			return clierr.BadArgs("--output-format must be mp3 or wav")
		}
		if err := newClient().Render(args[0], renderOutputFormat); err != nil {
			return err
		}
		fmt.Printf("task_id=%s re-rendered as %s\n", args[0], renderOutputFormat)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderOutputFormat, "output-format", "mp3", "Rendered audio format: mp3 or wav")
}
