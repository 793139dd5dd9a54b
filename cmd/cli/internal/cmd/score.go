package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/clierr"
	hscore "github.com/zzn199216/hum2song-webui/internal/score"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Read or write a job's canonical score",
}

var scoreGetOut string

var scoreGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Fetch the normalized canonical score",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		sc, err := newClient().GetScore(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(sc, "", "  ")
		if err != nil {
			return clierr.New(clierr.ExitNetwork, "failed to encode score", err)
		}
		if scoreGetOut == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(scoreGetOut, data, 0o644); err != nil {
			return clierr.New(clierr.ExitNetwork, "failed to write score file", err)
		}
		fmt.Printf("wrote %s\n", scoreGetOut)
		return nil
	},
}

var scorePutCmd = &cobra.Command{
	Use:   "put <task-id> <score.json>",
	Short: "Replace a job's score, rebinding the midi artifact",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return clierr.BadArgs(fmt.Sprintf("cannot read %s: %v", args[1], err))
		}
		var sc hscore.Score
		if err := json.Unmarshal(data, &sc); err != nil {
			return clierr.BadArgs(fmt.Sprintf("invalid score JSON: %v", err))
		}
		if err := newClient().PutScore(args[0], sc); err != nil {
			return err
		}
		fmt.Printf("task_id=%s score updated\n", args[0])
		return nil
	},
}

func init() {
	scoreGetCmd.Flags().StringVar(&scoreGetOut, "out", "", "Write the score to this file instead of stdout")
	scoreCmd.AddCommand(scoreGetCmd)
	scoreCmd.AddCommand(scorePutCmd)
}
