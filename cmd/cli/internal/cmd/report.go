package cmd

import (
	"fmt"

	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/apiclient"
	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/clierr"
)

// reportTerminal prints a finalized TaskInfo and converts status=failed
// into the exit-code-2 error the CLI contract requires.
func reportTerminal(info *apiclient.TaskInfo) error {
	if info.Status == "failed" {
		msg := "task failed"
		if info.Error != nil && info.Error.Message != "" {
			msg = info.Error.Message
		}
		fmt.Printf("task_id=%s status=failed error=%q\n", info.TaskID, msg)
		return clierr.TaskFailed(msg)
	}
	result := "<none>"
	if info.Result != nil {
		result = fmt.Sprintf("%s (%s) %s", info.Result.FileKind, info.Result.OutputFormat, info.Result.DownloadURL)
	}
	fmt.Printf("task_id=%s status=%s progress=%.2f result=%s\n", info.TaskID, info.Status, info.Progress, result)
	return nil
}
