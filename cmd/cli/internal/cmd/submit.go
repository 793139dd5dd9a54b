package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/clierr"
)

var (
	submitOutputFormat string
	submitWait         bool
	submitPollInterval time.Duration
	submitWaitTimeout  time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit <audio-file>",
	Short: "Submit a recording for transcription and synthesis",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		path := args[0]
		if submitOutputFormat != "mp3" && submitOutputFormat != "wav" {
			return clierr.BadArgs("--output-format must be mp3 or wav")
		}
		if _, err := os.Stat(path); err != nil {
			return clierr.BadArgs(fmt.Sprintf("cannot read %s: %v", path, err))
		}

		client := newClient()
		sub, err := client.Submit(path, submitOutputFormat)
		if err != nil {
			return err
		}
		fmt.Printf("task_id=%s status=%s poll_url=%s created_at=%s\n",
			sub.TaskID, sub.Status, sub.PollURL, sub.CreatedAt)

		if !submitWait {
			return nil
		}

		info, err := client.WaitForCompletion(sub.TaskID, submitPollInterval, submitWaitTimeout)
		if err != nil {
			return err
		}
		return reportTerminal(info)
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitOutputFormat, "output-format", "mp3", "Rendered audio format: mp3 or wav")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "Block until the job completes or fails")
	submitCmd.Flags().DurationVar(&submitPollInterval, "poll-interval", 2*time.Second, "Interval between polls when --wait is set")
	submitCmd.Flags().DurationVar(&submitWaitTimeout, "wait-timeout", 2*time.Minute, "Maximum time to wait when --wait is set")
}
