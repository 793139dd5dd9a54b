package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	waitPollInterval time.Duration
	waitMaxWait      time.Duration
)

var waitCmd = &cobra.Command{
	Use:   "wait <task-id>",
	Short: "Poll a job until it completes or fails",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		info, err := newClient().WaitForCompletion(args[0], waitPollInterval, waitMaxWait)
		if err != nil {
			return err
		}
		return reportTerminal(info)
	},
}

func init() {
	waitCmd.Flags().DurationVar(&waitPollInterval, "poll-interval", 2*time.Second, "Interval between polls")
	waitCmd.Flags().DurationVar(&waitMaxWait, "wait-timeout", 2*time.Minute, "Maximum time to wait")
}
