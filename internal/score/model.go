// Package score implements the canonical, seconds-based score
// representation: the value types, the idempotent normalizer, and the
// safe/strong optimizer that the edit and export workflows depend on.
package score

import apierrors "github.com/zzn199216/hum2song-webui/internal/errors"

// Score is the canonical document. version is currently always 1.
type Score struct {
	Version       int     `json:"version"`
	TempoBPM      float64 `json:"tempo_bpm"`
	TimeSignature string  `json:"time_signature"`
	Tracks        []Track `json:"tracks"`
}

// Track is one instrument line.
type Track struct {
	ID      string      `json:"id,omitempty"`
	Name    string      `json:"name"`
	Program *int        `json:"program,omitempty"`
	Channel *int        `json:"channel,omitempty"`
	Notes   []NoteEvent `json:"notes"`
}

// NoteEvent is a single sounding note, timed in absolute seconds.
type NoteEvent struct {
	ID       string  `json:"id,omitempty"`
	Pitch    int     `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Velocity int     `json:"velocity"`
}

// Validate enforces the data-model invariants: pitch/channel/program/
// velocity ranges, duration > 0, start >= 0, and a positive tempo. It does
// not mutate the score. The optimizer's unconditional first pass silently
// drops notes with duration <= 0 or start < 0; it does not check pitch or
// velocity ranges.
func Validate(s Score) error {
	if s.TempoBPM <= 0 {
		return apierrors.InvalidInput("tempo_bpm must be positive")
	}
	for _, tr := range s.Tracks {
		if tr.Program != nil && (*tr.Program < 0 || *tr.Program > 127) {
			return apierrors.InvalidInput("track program out of range [0,127]")
		}
		if tr.Channel != nil && (*tr.Channel < 0 || *tr.Channel > 15) {
			return apierrors.InvalidInput("track channel out of range [0,15]")
		}
		for _, n := range tr.Notes {
			if n.Pitch < 0 || n.Pitch > 127 {
				return apierrors.InvalidInput("note pitch out of range [0,127]")
			}
			if n.Duration <= 0 {
				return apierrors.InvalidInput("note duration must be positive")
			}
			if n.Start < 0 {
				return apierrors.InvalidInput("note start must be non-negative")
			}
			if n.Velocity < 1 || n.Velocity > 127 {
				return apierrors.InvalidInput("note velocity out of range [1,127]")
			}
		}
	}
	return nil
}

// DefaultVelocity is applied when a note omits velocity.
const DefaultVelocity = 64

// DefaultTimeSignature is applied when a flattened score omits one.
const DefaultTimeSignature = "4/4"
