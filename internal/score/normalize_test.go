package score

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canonicalJSON(t *testing.T, s Score) string {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return string(data)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	program := 40
	in := Score{
		TempoBPM:      96.5,
		TimeSignature: "3/4",
		Tracks: []Track{
			{
				Name:    "",
				Program: &program,
				Notes: []NoteEvent{
					{Pitch: 64, Start: 1.23456789, Duration: 0.5, Velocity: 90},
					{Pitch: 60, Start: 0.000000123, Duration: 0.25, Velocity: 64},
					{Pitch: 60, Start: 0.000000123, Duration: 0.25, Velocity: 64},
				},
			},
		},
	}

	once := Normalize(in)
	twice := Normalize(once)
	assert.Equal(t, canonicalJSON(t, once), canonicalJSON(t, twice))
}

func TestNormalizeCoercesTrackName(t *testing.T) {
	in := Score{TempoBPM: 120, Tracks: []Track{{Name: ""}, {Name: "Lead"}}}
	out := Normalize(in)
	assert.Equal(t, "Trackk0", out.Tracks[0].Name)
	assert.Equal(t, "Lead", out.Tracks[1].Name)
}

func TestNormalizeRoundsTimingsToSixDecimals(t *testing.T) {
	in := Score{TempoBPM: 120, Tracks: []Track{{
		Name:  "x",
		Notes: []NoteEvent{{Pitch: 60, Start: 0.12345678911, Duration: 0.98765432199, Velocity: 64}},
	}}}
	out := Normalize(in)
	assert.Equal(t, 0.123457, out.Tracks[0].Notes[0].Start)
	assert.Equal(t, 0.987654, out.Tracks[0].Notes[0].Duration)
}

func TestNormalizeAssignsStableIDs(t *testing.T) {
	in := Score{TempoBPM: 120, Tracks: []Track{{
		Name: "x",
		Notes: []NoteEvent{
			{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 64},
			{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 64},
		},
	}}}

	out := Normalize(in)
	require.NotEmpty(t, out.Tracks[0].ID)
	require.NotEmpty(t, out.Tracks[0].Notes[0].ID)
	require.NotEmpty(t, out.Tracks[0].Notes[1].ID)

	// Identical notes get distinct ids via the occurrence counter.
	assert.NotEqual(t, out.Tracks[0].Notes[0].ID, out.Tracks[0].Notes[1].ID)

	// Re-normalizing the same content reproduces the same ids.
	again := Normalize(in)
	assert.Equal(t, out.Tracks[0].Notes[0].ID, again.Tracks[0].Notes[0].ID)
}

func TestNormalizeIDChangesWhenTimingChanges(t *testing.T) {
	base := Score{TempoBPM: 120, Tracks: []Track{{
		Name:  "x",
		Notes: []NoteEvent{{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 64}},
	}}}
	moved := Score{TempoBPM: 120, Tracks: []Track{{
		Name:  "x",
		Notes: []NoteEvent{{Pitch: 60, Start: 1.0, Duration: 0.5, Velocity: 64}},
	}}}

	a := Normalize(base)
	b := Normalize(moved)
	assert.NotEqual(t, a.Tracks[0].Notes[0].ID, b.Tracks[0].Notes[0].ID)
}

func TestNormalizeSortsNotes(t *testing.T) {
	in := Score{TempoBPM: 120, Tracks: []Track{{
		Name: "x",
		Notes: []NoteEvent{
			{Pitch: 64, Start: 1.0, Duration: 0.5, Velocity: 64},
			{Pitch: 60, Start: 1.0, Duration: 0.5, Velocity: 64},
			{Pitch: 72, Start: 0.0, Duration: 0.5, Velocity: 64},
		},
	}}}

	out := Normalize(in)
	notes := out.Tracks[0].Notes
	assert.Equal(t, 72, notes[0].Pitch)
	assert.Equal(t, 60, notes[1].Pitch)
	assert.Equal(t, 64, notes[2].Pitch)
}

func TestNormalizeDefaultsOmittedVelocity(t *testing.T) {
	// A JSON body that omits velocity unmarshals to 0; the canonical score
	// must carry the documented default instead.
	var in Score
	require.NoError(t, json.Unmarshal([]byte(`{"tempo_bpm":120,"tracks":[{"name":"x","notes":[{"pitch":60,"start":0,"duration":0.5}]}]}`), &in))

	out := Normalize(in)
	assert.Equal(t, DefaultVelocity, out.Tracks[0].Notes[0].Velocity)

	// Explicit velocities pass through untouched.
	in.Tracks[0].Notes[0].Velocity = 90
	assert.Equal(t, 90, Normalize(in).Tracks[0].Notes[0].Velocity)
}

func TestNormalizeDefaultsVersion(t *testing.T) {
	out := Normalize(Score{TempoBPM: 120})
	assert.Equal(t, 1, out.Version)
}

func TestValidateRejectsBadNotes(t *testing.T) {
	cases := []struct {
		name string
		s    Score
	}{
		{"non-positive tempo", Score{TempoBPM: 0}},
		{"zero duration", Score{TempoBPM: 120, Tracks: []Track{{Notes: []NoteEvent{{Pitch: 60, Start: 0, Duration: 0, Velocity: 64}}}}}},
		{"negative start", Score{TempoBPM: 120, Tracks: []Track{{Notes: []NoteEvent{{Pitch: 60, Start: -1, Duration: 1, Velocity: 64}}}}}},
		{"pitch out of range", Score{TempoBPM: 120, Tracks: []Track{{Notes: []NoteEvent{{Pitch: 130, Start: 0, Duration: 1, Velocity: 64}}}}}},
		{"zero velocity", Score{TempoBPM: 120, Tracks: []Track{{Notes: []NoteEvent{{Pitch: 60, Start: 0, Duration: 1, Velocity: 0}}}}}},
		{"velocity out of range", Score{TempoBPM: 120, Tracks: []Track{{Notes: []NoteEvent{{Pitch: 60, Start: 0, Duration: 1, Velocity: 200}}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, Validate(tc.s))
		})
	}
}
