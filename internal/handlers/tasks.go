package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	apierrors "github.com/zzn199216/hum2song-webui/internal/errors"
	"github.com/zzn199216/hum2song-webui/internal/jobstore"
	"github.com/zzn199216/hum2song-webui/internal/util"
)

// jobInfoResponse is the poll wire shape. result/error are pointers so a
// missing one marshals to JSON null rather than being omitted.
type jobInfoResponse struct {
	TaskID    string           `json:"task_id"`
	Status    string           `json:"status"`
	Progress  float64          `json:"progress"`
	Stage     string           `json:"stage"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
	Result    *jobstore.Result `json:"result"`
	Error     *jobstore.Error  `json:"error"`
}

func toJobInfoResponse(info jobstore.Info) jobInfoResponse {
	return jobInfoResponse{
		TaskID:    info.ID,
		Status:    string(info.Status),
		Progress:  info.Progress,
		Stage:     string(info.Stage),
		CreatedAt: isoUTC(info.CreatedAt),
		UpdatedAt: isoUTC(info.UpdatedAt),
		Result:    info.Result,
		Error:     info.Error,
	}
}

// GetTask handles GET /tasks/{id}.
func (h *Handlers) GetTask(c *gin.Context) {
	id := c.Param("id")
	info, err := h.Store.GetInfo(id)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobInfoResponse(info))
}

// DownloadArtifact handles GET /tasks/{id}/download?file_type={audio|midi}.
func (h *Handlers) DownloadArtifact(c *gin.Context) {
	id := c.Param("id")
	fileType := c.Query("file_type")

	var fileKind jobstore.FileKind
	switch fileType {
	case "audio":
		fileKind = jobstore.FileKindAudio
	case "midi":
		fileKind = jobstore.FileKindMIDI
	default:
		util.RespondError(c, apierrors.InvalidInput("file_type must be audio or midi"))
		return
	}

	path, err := h.Store.GetArtifactPath(id, fileKind, util.FileExists)
	if err != nil {
		util.RespondError(c, err)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		util.RespondError(c, apierrors.FileMissing(path))
		return
	}

	contentType := util.ContentType(filepath.Ext(path))
	filename := filepath.Base(path)
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Data(http.StatusOK, contentType, data)
}
