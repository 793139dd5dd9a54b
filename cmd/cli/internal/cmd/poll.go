package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll <task-id>",
	Short: "Print the current status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		info, err := newClient().GetTask(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			data, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		result := "<none>"
		if info.Result != nil {
			result = fmt.Sprintf("%s (%s) %s", info.Result.FileKind, info.Result.OutputFormat, info.Result.DownloadURL)
		}
		fmt.Printf("task_id=%s status=%s stage=%s progress=%.2f result=%s\n",
			info.TaskID, info.Status, info.Stage, info.Progress, result)
		return nil
	},
}
