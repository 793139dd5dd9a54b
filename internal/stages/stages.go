// Package stages defines the three external-collaborator contracts the
// pipeline orchestrator composes — preprocess, transcribe, synthesize —
// and a deterministic stub implementation of all three. The humming→notes
// model, the audio preprocessor, and the MIDI-to-audio synthesizer live
// outside this service; this package only specifies the interface they
// must satisfy and ships a stand-in that satisfies it.
package stages

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/zzn199216/hum2song-webui/internal/codec"
	apierrors "github.com/zzn199216/hum2song-webui/internal/errors"
	hscore "github.com/zzn199216/hum2song-webui/internal/score"
)

// Preprocessor cleans a raw recording, returning the path to a clean
// audio file suitable for transcription.
type Preprocessor interface {
	Preprocess(ctx context.Context, inputPath string) (string, error)
}

// Transcriber converts clean audio into a MIDI file capturing the note
// sequence.
type Transcriber interface {
	Transcribe(ctx context.Context, cleanAudioPath string) (string, error)
}

// Synthesizer renders a MIDI file into an audio file of the requested
// output format.
type Synthesizer interface {
	Synthesize(ctx context.Context, midiPath, outputFormat string) (string, error)
}

// Adapters bundles the three stage contracts the orchestrator depends on.
// Real and stub implementations are interchangeable; the orchestrator
// never distinguishes them.
type Adapters struct {
	Preprocessor
	Transcriber
	Synthesizer
}

// StubAdapters is the deterministic fallback used when real adapters
// aren't configured. It produces a minimal but valid MIDI file and a
// placeholder audio file so the rest of the pipeline, job store, and HTTP
// surface exercise real code paths end to end.
type StubAdapters struct {
	WorkDir string
}

// NewStubAdapters returns a StubAdapters rooted at workDir, where
// intermediate and output files are written.
func NewStubAdapters(workDir string) StubAdapters {
	return StubAdapters{WorkDir: workDir}
}

// Preprocess writes a small valid WAV file standing in for cleaned audio.
// It does not attempt to analyze inputPath's contents; real preprocessing
// happens outside this service.
func (s StubAdapters) Preprocess(_ context.Context, inputPath string) (string, error) {
	outPath := filepath.Join(s.WorkDir, baseNoExt(inputPath)+"_clean.wav")
	if err := writePlaceholderWAV(outPath, 1); err != nil {
		return "", apierrors.StageFailed("preprocessing", "stub preprocess failed", err)
	}
	return outPath, nil
}

// Transcribe writes a minimal but valid single-track MIDI file with one
// note, a deterministic stand-in for the humming→notes model.
func (s StubAdapters) Transcribe(_ context.Context, cleanAudioPath string) (string, error) {
	sc := hscore.Score{
		Version:       1,
		TempoBPM:      120,
		TimeSignature: hscore.DefaultTimeSignature,
		Tracks: []hscore.Track{
			{
				Name: "Hum",
				Notes: []hscore.NoteEvent{
					{Pitch: 60, Start: 0.0, Duration: 0.5, Velocity: 80},
				},
			},
		},
	}
	midiBytes, err := codec.ToMIDI(sc)
	if err != nil {
		return "", apierrors.StageFailed("converting", "stub transcribe failed", err)
	}

	outPath := filepath.Join(s.WorkDir, baseNoExt(cleanAudioPath)+".mid")
	if err := os.WriteFile(outPath, midiBytes, 0o644); err != nil {
		return "", apierrors.StageFailed("converting", "stub transcribe write failed", err)
	}
	return outPath, nil
}

// Synthesize writes a placeholder audio file of the requested format. For
// wav it is a genuinely valid (if silent) WAV container via go-audio/wav;
// for mp3 it is a byte-pattern placeholder, since no encoder is bundled.
func (s StubAdapters) Synthesize(_ context.Context, midiPath, outputFormat string) (string, error) {
	outPath := filepath.Join(s.WorkDir, baseNoExt(midiPath)+"."+outputFormat)

	switch outputFormat {
	case "wav":
		if err := writePlaceholderWAV(outPath, 2); err != nil {
			return "", apierrors.StageFailed("synthesizing", "stub synthesize failed", err)
		}
	default:
		var buf bytes.Buffer
		buf.WriteString("ID3")
		buf.Write(make([]byte, 1024))
		if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
			return "", apierrors.StageFailed("synthesizing", "stub synthesize write failed", err)
		}
	}
	return outPath, nil
}

func writePlaceholderWAV(path string, seconds int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	const sampleRate = 22050
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:   make([]int, sampleRate*seconds),
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func baseNoExt(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// RealAdapters shells out to configured external binaries for each stage.
// Each binary is invoked as `binary <input> <output>` with stderr captured
// into the returned error. No binary name is assumed beyond what the
// environment configures.
type RealAdapters struct {
	WorkDir            string
	PreprocessorBinary string
	TranscriberBinary  string
	SoundfontRenderer  string
	AudioTranscoder    string
}

func (r RealAdapters) Preprocess(ctx context.Context, inputPath string) (string, error) {
	outPath := filepath.Join(r.WorkDir, baseNoExt(inputPath)+"_clean.wav")
	if err := runBinary(ctx, r.PreprocessorBinary, inputPath, outPath); err != nil {
		return "", apierrors.StageFailed("preprocessing", "preprocess failed", err)
	}
	return outPath, nil
}

func (r RealAdapters) Transcribe(ctx context.Context, cleanAudioPath string) (string, error) {
	outPath := filepath.Join(r.WorkDir, baseNoExt(cleanAudioPath)+".mid")
	if err := runBinary(ctx, r.TranscriberBinary, cleanAudioPath, outPath); err != nil {
		return "", apierrors.StageFailed("converting", "transcribe failed", err)
	}
	return outPath, nil
}

func (r RealAdapters) Synthesize(ctx context.Context, midiPath, outputFormat string) (string, error) {
	outPath := filepath.Join(r.WorkDir, baseNoExt(midiPath)+"."+outputFormat)
	wavPath := filepath.Join(r.WorkDir, baseNoExt(midiPath)+"_rendered.wav")
	if err := runBinary(ctx, r.SoundfontRenderer, midiPath, wavPath); err != nil {
		return "", apierrors.StageFailed("synthesizing", "soundfont render failed", err)
	}
	if outputFormat == "wav" {
		return wavPath, nil
	}
	if err := runBinary(ctx, r.AudioTranscoder, wavPath, outPath); err != nil {
		return "", apierrors.StageFailed("synthesizing", "audio transcode failed", err)
	}
	return outPath, nil
}

func runBinary(ctx context.Context, binary, inputPath, outputPath string) error {
	if binary == "" {
		return fmt.Errorf("no binary configured")
	}
	cmd := exec.CommandContext(ctx, binary, inputPath, outputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", binary, err, stderr.String())
	}
	return nil
}
