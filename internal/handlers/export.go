package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zzn199216/hum2song-webui/internal/codec"
	apierrors "github.com/zzn199216/hum2song-webui/internal/errors"
	"github.com/zzn199216/hum2song-webui/internal/util"
)

// ExportMIDI handles POST /export/midi: converts a flattened note list
// directly into MIDI bytes, with no job involved.
func (h *Handlers) ExportMIDI(c *gin.Context) {
	var flat codec.Flattened
	if err := decodeStrictJSON(c, &flat); err != nil {
		util.RespondError(c, apierrors.InvalidInput(err.Error()))
		return
	}

	sc, err := codec.FlattenedToScore(flat)
	if err != nil {
		util.RespondError(c, apierrors.InvalidInput(err.Error()))
		return
	}

	midiBytes, err := codec.ToMIDI(sc)
	if err != nil {
		util.RespondError(c, apierrors.Internal("failed to encode midi", err))
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\"export.mid\"")
	c.Data(http.StatusOK, "audio/midi", midiBytes)
}
