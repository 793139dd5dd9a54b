// Package codec implements MIDI↔Score conversion: a piecewise tempo-map
// decoder that never collapses a file to a single effective tempo, and a
// deterministic single-tempo writer. Timing survives a round trip in
// absolute seconds rather than being re-quantized to a grid.
package codec

import (
	"bytes"
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	hscore "github.com/zzn199216/hum2song-webui/internal/score"
)

// TicksPerQuarter is the resolution used by the Score→MIDI writer.
const TicksPerQuarter = 480

const defaultBPM = 120.0

// tempoPoint is one entry of a tempo map: an absolute tick at which the
// tempo (in BPM) changes.
type tempoPoint struct {
	tick uint32
	bpm  float64
}

// tempoMap is an ordered, tick-deduplicated list of tempoPoint with a
// synthetic entry at tick 0 when the file has none.
type tempoMap struct {
	points          []tempoPoint
	ticksPerQuarter uint32
}

func buildTempoMap(s *smf.SMF) tempoMap {
	ticksPerQuarter := uint32(TicksPerQuarter)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		ticksPerQuarter = uint32(mt)
	}

	var raw []tempoPoint
	for _, track := range s.Tracks {
		var abs uint32
		for _, ev := range track {
			abs += ev.Delta
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				raw = append(raw, tempoPoint{tick: abs, bpm: bpm})
			}
		}
	}

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].tick < raw[j].tick })

	points := make([]tempoPoint, 0, len(raw)+1)
	for _, p := range raw {
		if len(points) > 0 && points[len(points)-1].tick == p.tick {
			points[len(points)-1].bpm = p.bpm
			continue
		}
		points = append(points, p)
	}
	if len(points) == 0 || points[0].tick != 0 {
		points = append([]tempoPoint{{tick: 0, bpm: defaultBPM}}, points...)
	}

	return tempoMap{points: points, ticksPerQuarter: ticksPerQuarter}
}

// secondsAt converts an absolute tick to seconds by piecewise integration
// across every tempo segment up to and including tick.
func (tm tempoMap) secondsAt(tick uint32) float64 {
	var sec float64
	for i := 0; i < len(tm.points); i++ {
		segStart := tm.points[i].tick
		spq := 60.0 / tm.points[i].bpm

		var segEnd uint32
		open := i == len(tm.points)-1
		if !open {
			segEnd = tm.points[i+1].tick
		}

		if open || tick <= segEnd {
			ticksIn := tick - segStart
			sec += float64(ticksIn) / float64(tm.ticksPerQuarter) * spq
			return sec
		}

		ticksIn := segEnd - segStart
		sec += float64(ticksIn) / float64(tm.ticksPerQuarter) * spq
	}
	return sec
}

// initialBPM is used to populate Score.TempoBPM: the tempo in effect at
// tick 0 (the file's nominal tempo for downstream editing/re-rendering).
func (tm tempoMap) initialBPM() float64 {
	return tm.points[0].bpm
}

type pendingNote struct {
	startSec float64
	startSeq int
	velocity int
}

type rawNote struct {
	pitch    int
	start    float64
	duration float64
	velocity int
	seq      int
}

// FromMIDI decodes a Standard MIDI File into the canonical, seconds-based
// Score: tempo-mapped piecewise integration, per-(channel,pitch)
// note-on/note-off pairing, one output Track per MIDI channel used, and a
// shift so the earliest note starts at 0 seconds.
func FromMIDI(data []byte) (hscore.Score, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return hscore.Score{}, fmt.Errorf("parse midi: %w", err)
	}

	tm := buildTempoMap(s)

	notesByChannel := make(map[uint8][]rawNote)
	pendingByChannelPitch := make(map[uint8]map[uint8][]pendingNote)
	programByChannel := make(map[uint8]int)
	seq := 0

	for _, track := range s.Tracks {
		var abs uint32
		for _, ev := range track {
			abs += ev.Delta
			seq++

			var channel, pitch, velocity uint8
			if ev.Message.GetNoteOn(&channel, &pitch, &velocity) {
				startSec := tm.secondsAt(abs)
				if velocity == 0 {
					closeNote(notesByChannel, pendingByChannelPitch, channel, pitch, startSec, seq)
					continue
				}
				if pendingByChannelPitch[channel] == nil {
					pendingByChannelPitch[channel] = make(map[uint8][]pendingNote)
				}
				pendingByChannelPitch[channel][pitch] = append(pendingByChannelPitch[channel][pitch], pendingNote{
					startSec: startSec,
					startSeq: seq,
					velocity: int(velocity),
				})
				continue
			}
			if ev.Message.GetNoteOff(&channel, &pitch, &velocity) {
				endSec := tm.secondsAt(abs)
				closeNote(notesByChannel, pendingByChannelPitch, channel, pitch, endSec, seq)
				continue
			}
			var program uint8
			if ev.Message.GetProgramChange(&channel, &program) {
				programByChannel[channel] = int(program)
			}
		}
	}

	minStart := 0.0
	first := true
	for _, notes := range notesByChannel {
		for _, n := range notes {
			if first || n.start < minStart {
				minStart = n.start
				first = false
			}
		}
	}

	channels := make([]uint8, 0, len(notesByChannel))
	for ch := range notesByChannel {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	tracks := make([]hscore.Track, 0, len(channels))
	for _, ch := range channels {
		notes := notesByChannel[ch]
		sort.SliceStable(notes, func(i, j int) bool {
			if notes[i].start != notes[j].start {
				return notes[i].start < notes[j].start
			}
			return notes[i].seq < notes[j].seq
		})

		events := make([]hscore.NoteEvent, 0, len(notes))
		for _, n := range notes {
			events = append(events, hscore.NoteEvent{
				Pitch:    n.pitch,
				Start:    n.start - minStart,
				Duration: n.duration,
				Velocity: n.velocity,
			})
		}

		channel := int(ch)
		track := hscore.Track{
			Name:    fmt.Sprintf("Channel %d", ch+1),
			Channel: &channel,
			Notes:   events,
		}
		if prog, ok := programByChannel[ch]; ok {
			p := prog
			track.Program = &p
		}
		tracks = append(tracks, track)
	}

	return hscore.Score{
		Version:       1,
		TempoBPM:      tm.initialBPM(),
		TimeSignature: hscore.DefaultTimeSignature,
		Tracks:        tracks,
	}, nil
}

func closeNote(notesByChannel map[uint8][]rawNote, pending map[uint8]map[uint8][]pendingNote, channel, pitch uint8, endSec float64, seq int) {
	queue := pending[channel][pitch]
	if len(queue) == 0 {
		return
	}
	head := queue[0]
	pending[channel][pitch] = queue[1:]

	duration := endSec - head.startSec
	if duration <= 0 {
		return
	}
	notesByChannel[channel] = append(notesByChannel[channel], rawNote{
		pitch:    int(pitch),
		start:    head.startSec,
		duration: duration,
		velocity: head.velocity,
		seq:      head.startSeq,
	})
}

type timelineEvent struct {
	tick uint32
	on   bool
	ch   uint8
	note uint8
	vel  uint8
	idx  int
}

// ToMIDI encodes a Score into a Standard MIDI File deterministically: a
// single tempo event and a single time-signature event at tick 0, one
// program-change per track if set, and note-on/note-off pairs emitted in
// ascending start order with a stable (pitch, duration) tiebreak.
func ToMIDI(sc hscore.Score) ([]byte, error) {
	bpm := sc.TempoBPM
	if bpm <= 0 {
		bpm = defaultBPM
	}
	ticksPerSec := (bpm / 60.0) * float64(TicksPerQuarter)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var meta smf.Track
	meta.Add(0, smf.MetaTempo(bpm))
	num, denom := parseTimeSignature(sc.TimeSignature)
	meta.Add(0, smf.MetaTimeSig(num, denomPower(denom), 24, 8))
	meta.Close(0)
	s.Add(meta)

	for ti, tr := range sc.Tracks {
		var track smf.Track
		name := tr.Name
		if name == "" {
			name = fmt.Sprintf("Track %d", ti+1)
		}
		track.Add(0, smf.MetaTrackSequenceName(name))

		channel := uint8(ti % 16)
		if tr.Channel != nil {
			channel = uint8(*tr.Channel)
		}
		if tr.Program != nil {
			track.Add(0, midi.ProgramChange(channel, uint8(*tr.Program)))
		}

		notes := make([]hscore.NoteEvent, len(tr.Notes))
		copy(notes, tr.Notes)
		sort.SliceStable(notes, func(i, j int) bool {
			if notes[i].Start != notes[j].Start {
				return notes[i].Start < notes[j].Start
			}
			if notes[i].Pitch != notes[j].Pitch {
				return notes[i].Pitch < notes[j].Pitch
			}
			return notes[i].Duration < notes[j].Duration
		})

		events := make([]timelineEvent, 0, len(notes)*2)
		for idx, n := range notes {
			velocity := n.Velocity
			if velocity <= 0 {
				velocity = hscore.DefaultVelocity
			}
			onTick := uint32(n.Start*ticksPerSec + 0.5)
			offTick := uint32((n.Start+n.Duration)*ticksPerSec + 0.5)
			if offTick <= onTick {
				offTick = onTick + 1
			}
			events = append(events,
				timelineEvent{tick: onTick, on: true, ch: channel, note: uint8(n.Pitch), vel: uint8(velocity), idx: idx},
				timelineEvent{tick: offTick, on: false, ch: channel, note: uint8(n.Pitch), vel: 0, idx: idx},
			)
		}

		sort.SliceStable(events, func(i, j int) bool {
			if events[i].tick != events[j].tick {
				return events[i].tick < events[j].tick
			}
			if events[i].on != events[j].on {
				return !events[i].on
			}
			return events[i].idx < events[j].idx
		})

		var lastTick uint32
		for _, ev := range events {
			delta := ev.tick - lastTick
			lastTick = ev.tick
			if ev.on {
				track.Add(delta, midi.NoteOn(ev.ch, ev.note, ev.vel))
			} else {
				track.Add(delta, midi.NoteOff(ev.ch, ev.note))
			}
		}
		track.Close(0)
		s.Add(track)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write midi: %w", err)
	}
	return buf.Bytes(), nil
}

func parseTimeSignature(ts string) (num, denom uint8) {
	num, denom = 4, 4
	var n, d int
	if _, err := fmt.Sscanf(ts, "%d/%d", &n, &d); err == nil && n > 0 && d > 0 {
		num, denom = uint8(n), uint8(d)
	}
	return num, denom
}

// denomPower converts a time-signature denominator (4, 8, 16, ...) into the
// MIDI time-signature meta event's power-of-two encoding.
func denomPower(denom uint8) uint8 {
	var p uint8
	for d := denom; d > 1; d /= 2 {
		p++
	}
	return p
}

// FlattenedNote is one note in the simplified flattened input shape
// accepted by POST /export/midi. Pitch is a plain int, so a note that
// omits it decodes as pitch 0; only startSec and durationSec are checked
// for presence.
type FlattenedNote struct {
	Pitch       int      `json:"pitch"`
	StartSec    *float64 `json:"startSec"`
	DurationSec *float64 `json:"durationSec"`
	Velocity    *int     `json:"velocity"`
}

// FlattenedTrack is one track in the flattened shape.
type FlattenedTrack struct {
	TrackID string          `json:"trackId"`
	Notes   []FlattenedNote `json:"notes"`
}

// Flattened is the simplified request body for POST /export/midi.
type Flattened struct {
	BPM    float64          `json:"bpm"`
	Tracks []FlattenedTrack `json:"tracks"`
}

// FlattenedToScore converts the simplified flattened shape into a valid
// Score, filling in the default velocity (64) and time signature ("4/4").
func FlattenedToScore(f Flattened) (hscore.Score, error) {
	if f.BPM <= 0 {
		return hscore.Score{}, fmt.Errorf("bpm must be positive")
	}

	tracks := make([]hscore.Track, 0, len(f.Tracks))
	for _, ft := range f.Tracks {
		notes := make([]hscore.NoteEvent, 0, len(ft.Notes))
		for _, fn := range ft.Notes {
			if fn.StartSec == nil || fn.DurationSec == nil {
				return hscore.Score{}, fmt.Errorf("note missing startSec/durationSec")
			}
			velocity := hscore.DefaultVelocity
			if fn.Velocity != nil {
				velocity = *fn.Velocity
			}
			notes = append(notes, hscore.NoteEvent{
				Pitch:    fn.Pitch,
				Start:    *fn.StartSec,
				Duration: *fn.DurationSec,
				Velocity: velocity,
			})
		}
		tracks = append(tracks, hscore.Track{
			ID:    ft.TrackID,
			Name:  ft.TrackID,
			Notes: notes,
		})
	}

	return hscore.Score{
		Version:       1,
		TempoBPM:      f.BPM,
		TimeSignature: hscore.DefaultTimeSignature,
		Tracks:        tracks,
	}, nil
}
