// Command hum2song-cli is the terminal client for the hum2song HTTP API:
// submit a recording, poll or wait for it, download artifacts, and
// round-trip the canonical score.
package main

import (
	"os"

	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
