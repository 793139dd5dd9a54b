package score

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Normalize returns a score with every track name coerced to a non-empty
// string, note timings rounded to 6 decimal places, absent velocities
// defaulted to 64, stable content-derived ids assigned to every track and
// note, and each track's notes sorted by
// (start, pitch, duration, velocity, id). It is idempotent:
// Normalize(Normalize(x)) == Normalize(x) under canonical JSON serialization.
func Normalize(in Score) Score {
	out := Score{
		Version:       in.Version,
		TempoBPM:      in.TempoBPM,
		TimeSignature: in.TimeSignature,
		Tracks:        make([]Track, len(in.Tracks)),
	}
	if out.Version == 0 {
		out.Version = 1
	}

	for ti, tr := range in.Tracks {
		name := tr.Name
		if name == "" {
			name = fmt.Sprintf("Trackk%d", ti)
		}

		notes := make([]NoteEvent, len(tr.Notes))
		for ni, n := range tr.Notes {
			velocity := n.Velocity
			if velocity <= 0 {
				velocity = DefaultVelocity
			}
			notes[ni] = NoteEvent{
				ID:       n.ID,
				Pitch:    n.Pitch,
				Start:    round6(n.Start),
				Duration: round6(n.Duration),
				Velocity: velocity,
			}
		}

		outTrack := Track{
			ID:      tr.ID,
			Name:    name,
			Program: tr.Program,
			Channel: tr.Channel,
			Notes:   notes,
		}

		if outTrack.ID == "" {
			base := fmt.Sprintf("%d|%s|%s|%s", ti, outTrack.Name, optIntString(tr.Channel), optIntString(tr.Program))
			outTrack.ID = "t_" + sha1Short(base, 10)
		}

		seen := make(map[string]int)
		for ni := range outTrack.Notes {
			n := &outTrack.Notes[ni]
			if n.ID != "" {
				continue
			}
			key := fmt.Sprintf("%d|%s|%s|%d", n.Pitch, trimFloat(n.Start), trimFloat(n.Duration), n.Velocity)
			occ := seen[key]
			seen[key] = occ + 1
			base := fmt.Sprintf("%s|%s|%d", outTrack.ID, key, occ)
			n.ID = "n_" + sha1Short(base, 12)
		}

		sort.SliceStable(outTrack.Notes, func(i, j int) bool {
			a, b := outTrack.Notes[i], outTrack.Notes[j]
			if a.Start != b.Start {
				return a.Start < b.Start
			}
			if a.Pitch != b.Pitch {
				return a.Pitch < b.Pitch
			}
			if a.Duration != b.Duration {
				return a.Duration < b.Duration
			}
			if a.Velocity != b.Velocity {
				return a.Velocity < b.Velocity
			}
			return a.ID < b.ID
		})

		out.Tracks[ti] = outTrack
	}

	return out
}

func round6(v float64) float64 {
	const factor = 1e6
	return math.Round(v*factor) / factor
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optIntString(v *int) string {
	if v == nil {
		return "None"
	}
	return strconv.Itoa(*v)
}

func sha1Short(s string, n int) string {
	sum := sha1.Sum([]byte(s))
	hexStr := hex.EncodeToString(sum[:])
	if n > len(hexStr) {
		n = len(hexStr)
	}
	return hexStr[:n]
}
