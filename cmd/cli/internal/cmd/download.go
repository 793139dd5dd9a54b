package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/clierr"
)

var (
	downloadFileType string
	downloadOut      string
)

var downloadCmd = &cobra.Command{
	Use:   "download <task-id>",
	Short: "Download a completed job's audio or midi artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if downloadFileType != "audio" && downloadFileType != "midi" {
			return clierr.BadArgs("--file-type must be audio or midi")
		}
		data, contentType, err := newClient().DownloadArtifact(args[0], downloadFileType)
		if err != nil {
			return err
		}
		out := downloadOut
		if out == "" {
			out = args[0] + "." + defaultExt(downloadFileType, contentType)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return clierr.New(clierr.ExitNetwork, "failed to write output file", err)
		}
		fmt.Printf("wrote %s (%d bytes, %s)\n", out, len(data), contentType)
		return nil
	},
}

func defaultExt(fileType, contentType string) string {
	switch contentType {
	case "audio/mpeg":
		return "mp3"
	case "audio/wav":
		return "wav"
	case "audio/midi":
		return "mid"
	}
	if fileType == "midi" {
		return "mid"
	}
	return "bin"
}

func init() {
	downloadCmd.Flags().StringVar(&downloadFileType, "file-type", "audio", "Artifact to download: audio or midi")
	downloadCmd.Flags().StringVar(&downloadOut, "out", "", "Output file path (default: <task-id>.<ext>)")
}
