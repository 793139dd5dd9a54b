package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/zzn199216/hum2song-webui/internal/codec"
	apierrors "github.com/zzn199216/hum2song-webui/internal/errors"
	"github.com/zzn199216/hum2song-webui/internal/jobstore"
	hscore "github.com/zzn199216/hum2song-webui/internal/score"
	"github.com/zzn199216/hum2song-webui/internal/util"
)

func (h *Handlers) scoreJSONPath(id string) string {
	return filepath.Join(h.Settings.OutputDir, id+".score.json")
}

func (h *Handlers) scoreMIDIPath(id string) string {
	return filepath.Join(h.Settings.OutputDir, id+".mid")
}

// loadOrDeriveScore returns the cached normalized score for id, deriving it
// from the bound MIDI artifact and caching the result if no cache exists
// yet.
func (h *Handlers) loadOrDeriveScore(id string) (hscore.Score, error) {
	cachePath := h.scoreJSONPath(id)
	if util.FileExists(cachePath) {
		data, err := os.ReadFile(cachePath)
		if err != nil {
			return hscore.Score{}, apierrors.Internal("failed to read cached score", err)
		}
		var sc hscore.Score
		if err := json.Unmarshal(data, &sc); err != nil {
			return hscore.Score{}, apierrors.Internal("failed to parse cached score", err)
		}
		return sc, nil
	}

	midiPath, err := h.Store.GetArtifactPath(id, jobstore.FileKindMIDI, util.FileExists)
	if err != nil {
		return hscore.Score{}, err
	}
	midiBytes, err := os.ReadFile(midiPath)
	if err != nil {
		return hscore.Score{}, apierrors.FileMissing(midiPath)
	}
	raw, err := codec.FromMIDI(midiBytes)
	if err != nil {
		return hscore.Score{}, apierrors.Internal("failed to parse midi into score", err)
	}
	normalized := hscore.Normalize(raw)

	if err := h.persistScoreJSON(id, normalized); err != nil {
		return hscore.Score{}, err
	}
	return normalized, nil
}

func (h *Handlers) persistScoreJSON(id string, sc hscore.Score) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return apierrors.Internal("failed to encode score", err)
	}
	if err := os.WriteFile(h.scoreJSONPath(id), data, 0o644); err != nil {
		return apierrors.Internal("failed to persist score", err)
	}
	return nil
}

// GetScore handles GET /tasks/{id}/score.
func (h *Handlers) GetScore(c *gin.Context) {
	id := c.Param("id")
	sc, err := h.loadOrDeriveScore(id)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

// DownloadScore handles GET /tasks/{id}/score/download?format=json, the
// file-attachment variant of GetScore. Only json is supported.
func (h *Handlers) DownloadScore(c *gin.Context) {
	id := c.Param("id")
	format := c.DefaultQuery("format", "json")
	if format != "json" {
		util.RespondError(c, apierrors.InvalidInput("format must be json"))
		return
	}

	sc, err := h.loadOrDeriveScore(id)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		util.RespondError(c, apierrors.Internal("failed to encode score", err))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+id+".score.json\"")
	c.Data(http.StatusOK, "application/json", data)
}

// PutScore handles PUT /tasks/{id}/score: normalizes the body, persists
// it, writes a fresh canonical MIDI, and rebinds the midi artifact.
func (h *Handlers) PutScore(c *gin.Context) {
	id := c.Param("id")

	info, err := h.Store.GetInfo(id)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	if info.Status != jobstore.StatusCompleted {
		util.RespondError(c, apierrors.NotCompleted(id))
		return
	}

	var sc hscore.Score
	if err := decodeStrictJSON(c, &sc); err != nil {
		util.RespondError(c, apierrors.InvalidInput(err.Error()))
		return
	}
	if err := hscore.Validate(sc); err != nil {
		util.RespondError(c, err)
		return
	}

	normalized := hscore.Normalize(sc)
	if err := h.persistScoreJSON(id, normalized); err != nil {
		util.RespondError(c, err)
		return
	}

	midiBytes, err := codec.ToMIDI(normalized)
	if err != nil {
		util.RespondError(c, apierrors.Internal("failed to encode score to midi", err))
		return
	}
	midiPath := h.scoreMIDIPath(id)
	if err := os.WriteFile(midiPath, midiBytes, 0o644); err != nil {
		util.RespondError(c, apierrors.Internal("failed to write midi", err))
		return
	}

	if err := h.Store.AttachArtifact(id, midiPath, jobstore.FileKindMIDI, util.FileExists); err != nil {
		util.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "task_id": id})
}

// RenderTask handles POST /tasks/{id}/render?output_format={mp3|wav}:
// synthesizes fresh audio from the current midi artifact and rebinds it.
func (h *Handlers) RenderTask(c *gin.Context) {
	id := c.Param("id")
	outputFormat := c.DefaultQuery("output_format", "mp3")
	if !validOutputFormat(outputFormat) {
		util.RespondError(c, apierrors.InvalidInput("output_format must be mp3 or wav"))
		return
	}

	midiPath, err := h.Store.GetArtifactPath(id, jobstore.FileKindMIDI, util.FileExists)
	if err != nil {
		util.RespondError(c, err)
		return
	}

	audioRaw, err := h.Synthesizer.Synthesize(c.Request.Context(), midiPath, outputFormat)
	if err != nil {
		util.RespondError(c, err)
		return
	}

	finalPath := filepath.Join(h.Settings.ArtifactsDir(), id+"."+outputFormat)
	if err := moveOrCopy(audioRaw, finalPath); err != nil {
		util.RespondError(c, apierrors.Internal("failed to publish rendered audio", err))
		return
	}

	if err := h.Store.AttachArtifact(id, finalPath, jobstore.FileKindAudio, util.FileExists); err != nil {
		util.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "task_id": id, "output_format": outputFormat})
}

// decodeStrictJSON rejects request bodies carrying unknown fields.
func decodeStrictJSON(c *gin.Context, dst interface{}) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(c.Request.Body); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(buf.Bytes()))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// moveOrCopy renames src to dst, falling back to copy+remove across
// devices — a copy of internal/pipeline's moveFile helper, which is
// unexported.
func moveOrCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return os.Remove(src)
}
