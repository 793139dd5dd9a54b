package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/clierr"
	"github.com/zzn199216/hum2song-webui/internal/codec"
)

var exportMIDIOut string

var exportCmd = &cobra.Command{
	Use:   "export <flattened.json>",
	Short: "Convert a flattened note list directly into a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return clierr.BadArgs(fmt.Sprintf("cannot read %s: %v", args[0], err))
		}
		var flat codec.Flattened
		if err := json.Unmarshal(data, &flat); err != nil {
			return clierr.BadArgs(fmt.Sprintf("invalid flattened JSON: %v", err))
		}

		midiBytes, err := newClient().ExportMIDI(flat)
		if err != nil {
			return err
		}

		out := exportMIDIOut
		if out == "" {
			out = "export.mid"
		}
		if err := os.WriteFile(out, midiBytes, 0o644); err != nil {
			return clierr.New(clierr.ExitNetwork, "failed to write midi file", err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", out, len(midiBytes))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportMIDIOut, "out", "export.mid", "Output MIDI file path")
}
