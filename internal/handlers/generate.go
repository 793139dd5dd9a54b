package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "github.com/zzn199216/hum2song-webui/internal/errors"
	"github.com/zzn199216/hum2song-webui/internal/jobstore"
	"github.com/zzn199216/hum2song-webui/internal/metrics"
	"github.com/zzn199216/hum2song-webui/internal/util"
)

// isoUTC formats t as UTC with seconds precision and a trailing Z.
func isoUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func validOutputFormat(format string) bool {
	return format == "mp3" || format == "wav"
}

// Generate handles POST /generate?output_format={mp3|wav}: accepts a
// multipart audio upload, creates a job, schedules the orchestrator, and
// returns 202 immediately with the queued job id.
func (h *Handlers) Generate(c *gin.Context) {
	outputFormat := c.DefaultQuery("output_format", "mp3")
	if !validOutputFormat(outputFormat) {
		util.RespondError(c, apierrors.InvalidInput("output_format must be mp3 or wav"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		util.RespondError(c, apierrors.InvalidInput("missing multipart field \"file\""))
		return
	}
	if fileHeader.Filename == "" {
		util.RespondError(c, apierrors.InvalidInput("missing filename"))
		return
	}

	id := h.Store.Create(jobstore.StagePreprocessing)

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext == "" {
		ext = ".wav"
	}
	uploadPath := filepath.Join(h.Settings.UploadDir, id+ext)

	ok, err := util.SaveUploadStreamed(fileHeader, uploadPath, h.Settings.MaxUploadSizeBytes())
	if err != nil {
		_ = h.Store.MarkFailed(id, "failed to store upload", nil, nil)
		util.RespondError(c, apierrors.Internal("failed to store upload", err))
		return
	}
	if !ok {
		apiErr := apierrors.UploadTooLarge(h.Settings.MaxUploadSizeMB)
		_ = h.Store.MarkFailed(id, apiErr.Message, nil, nil)
		util.RespondError(c, apiErr)
		return
	}

	if err := h.Orchestrator.Submit(id, uploadPath, outputFormat); err != nil {
		util.RespondError(c, err)
		return
	}

	m := metrics.Get()
	m.JobsCreatedTotal.WithLabelValues(outputFormat).Inc()
	m.JobsActive.WithLabelValues().Inc()

	info, err := h.Store.GetInfo(id)
	if err != nil {
		util.RespondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id":    id,
		"status":     string(info.Status),
		"poll_url":   fmt.Sprintf("/tasks/%s", id),
		"created_at": isoUTC(info.CreatedAt),
	})
}
