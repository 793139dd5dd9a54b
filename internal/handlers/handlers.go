// Package handlers implements the HTTP surface: generate, poll, download,
// score read/write/render, and flattened MIDI export.
package handlers

import (
	"github.com/zzn199216/hum2song-webui/internal/config"
	"github.com/zzn199216/hum2song-webui/internal/jobstore"
	"github.com/zzn199216/hum2song-webui/internal/pipeline"
	"github.com/zzn199216/hum2song-webui/internal/stages"
)

// Handlers bundles every dependency the HTTP surface needs: the job store
// (single source of truth for status), the orchestrator (schedules
// background work), settings (paths and limits), and the synthesize
// adapter (re-render needs it directly, outside the full pipeline).
type Handlers struct {
	Store        *jobstore.Store
	Orchestrator *pipeline.Orchestrator
	Settings     config.Settings
	Synthesizer  stages.Synthesizer
}

// New wires a Handlers value. codec and score are packages of pure
// functions, not dependencies to inject — every handler calls them
// directly.
func New(store *jobstore.Store, orch *pipeline.Orchestrator, settings config.Settings, synth stages.Synthesizer) *Handlers {
	return &Handlers{
		Store:        store,
		Orchestrator: orch,
		Settings:     settings,
		Synthesizer:  synth,
	}
}
