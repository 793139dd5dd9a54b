package codec

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	hscore "github.com/zzn199216/hum2song-webui/internal/score"
)

type roundedNote struct {
	pitch    int
	start    float64
	duration float64
}

func collectRounded(sc hscore.Score) []roundedNote {
	var out []roundedNote
	for _, tr := range sc.Tracks {
		for _, n := range tr.Notes {
			out = append(out, roundedNote{
				pitch:    n.Pitch,
				start:    math.Round(n.Start*1000) / 1000,
				duration: math.Round(n.Duration*1000) / 1000,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].pitch < out[j].pitch
	})
	return out
}

func TestToMIDIFromMIDIRoundTripPreservesNotes(t *testing.T) {
	in := hscore.Score{
		Version:       1,
		TempoBPM:      120,
		TimeSignature: "4/4",
		Tracks: []hscore.Track{
			{
				Name: "Lead",
				Notes: []hscore.NoteEvent{
					{Pitch: 60, Start: 0.0, Duration: 0.5, Velocity: 80},
					{Pitch: 64, Start: 0.5, Duration: 0.5, Velocity: 90},
					{Pitch: 67, Start: 1.0, Duration: 1.0, Velocity: 70},
				},
			},
		},
	}

	midiBytes, err := ToMIDI(in)
	require.NoError(t, err)
	require.True(t, len(midiBytes) > 4)
	require.Equal(t, "MThd", string(midiBytes[:4]))

	out, err := FromMIDI(midiBytes)
	require.NoError(t, err)

	require.Equal(t, collectRounded(in), collectRounded(out))
}

func TestFromMIDINormalizesEarliestStartToZero(t *testing.T) {
	in := hscore.Score{
		TempoBPM:      100,
		TimeSignature: "4/4",
		Tracks: []hscore.Track{
			{Notes: []hscore.NoteEvent{
				{Pitch: 60, Start: 2.0, Duration: 1.0, Velocity: 64},
			}},
		},
	}

	midiBytes, err := ToMIDI(in)
	require.NoError(t, err)

	out, err := FromMIDI(midiBytes)
	require.NoError(t, err)
	require.Len(t, out.Tracks, 1)
	require.Len(t, out.Tracks[0].Notes, 1)
	require.InDelta(t, 0.0, out.Tracks[0].Notes[0].Start, 1e-6)
}

func TestFromMIDIIntegratesPiecewiseTempoMap(t *testing.T) {
	// 480 ticks per quarter. First quarter at 120 bpm (0.5s), tempo then
	// drops to 60 bpm, so the second quarter-length note spans a full
	// second starting at 0.5s.
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var track smf.Track
	track.Add(0, smf.MetaTempo(120))
	track.Add(0, midi.NoteOn(0, 60, 80))
	track.Add(480, midi.NoteOff(0, 60))
	track.Add(0, smf.MetaTempo(60))
	track.Add(0, midi.NoteOn(0, 64, 80))
	track.Add(480, midi.NoteOff(0, 64))
	track.Close(0)
	s.Add(track)

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	sc, err := FromMIDI(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, sc.Tracks, 1)
	require.Len(t, sc.Tracks[0].Notes, 2)

	first, second := sc.Tracks[0].Notes[0], sc.Tracks[0].Notes[1]
	require.InDelta(t, 0.0, first.Start, 1e-6)
	require.InDelta(t, 0.5, first.Duration, 1e-6)
	require.InDelta(t, 0.5, second.Start, 1e-6)
	require.InDelta(t, 1.0, second.Duration, 1e-6)

	require.InDelta(t, 120.0, sc.TempoBPM, 1e-6)
}

func TestFromMIDICarriesProgramChangePerChannel(t *testing.T) {
	program := 24
	channel := 3
	in := hscore.Score{
		TempoBPM:      120,
		TimeSignature: "4/4",
		Tracks: []hscore.Track{{
			Name:    "Guitar",
			Program: &program,
			Channel: &channel,
			Notes:   []hscore.NoteEvent{{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 64}},
		}},
	}

	midiBytes, err := ToMIDI(in)
	require.NoError(t, err)

	out, err := FromMIDI(midiBytes)
	require.NoError(t, err)
	require.Len(t, out.Tracks, 1)
	require.NotNil(t, out.Tracks[0].Program)
	require.Equal(t, 24, *out.Tracks[0].Program)
	require.NotNil(t, out.Tracks[0].Channel)
	require.Equal(t, 3, *out.Tracks[0].Channel)
}

func TestFlattenedToScoreDefaults(t *testing.T) {
	start, dur := 0.0, 0.5
	f := Flattened{
		BPM: 120,
		Tracks: []FlattenedTrack{
			{TrackID: "tr1", Notes: []FlattenedNote{
				{Pitch: 60, StartSec: &start, DurationSec: &dur},
			}},
		},
	}

	sc, err := FlattenedToScore(f)
	require.NoError(t, err)
	require.Equal(t, "4/4", sc.TimeSignature)
	require.Equal(t, hscore.DefaultVelocity, sc.Tracks[0].Notes[0].Velocity)
}

func TestFlattenedToScoreRejectsNonPositiveBPM(t *testing.T) {
	_, err := FlattenedToScore(Flattened{BPM: 0})
	require.Error(t, err)
}

func TestFlattenedToScoreRejectsMissingFields(t *testing.T) {
	f := Flattened{
		BPM: 120,
		Tracks: []FlattenedTrack{
			{TrackID: "tr1", Notes: []FlattenedNote{{Pitch: 60}}},
		},
	}
	_, err := FlattenedToScore(f)
	require.Error(t, err)
}
