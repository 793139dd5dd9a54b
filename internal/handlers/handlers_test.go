package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/zzn199216/hum2song-webui/internal/config"
	"github.com/zzn199216/hum2song-webui/internal/jobstore"
	"github.com/zzn199216/hum2song-webui/internal/logger"
	"github.com/zzn199216/hum2song-webui/internal/pipeline"
	hscore "github.com/zzn199216/hum2song-webui/internal/score"
	"github.com/zzn199216/hum2song-webui/internal/stages"
)

func init() {
	gin.SetMode(gin.TestMode)
	if logger.Log == nil {
		_ = logger.Initialize("error", filepath.Join(os.TempDir(), "handlers_test.log"))
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *Handlers, config.Settings) {
	t.Helper()
	base := t.TempDir()
	settings := config.Settings{
		BaseDir:         base,
		UploadDir:       filepath.Join(base, "uploads"),
		OutputDir:       filepath.Join(base, "outputs"),
		MaxUploadSizeMB: 1,
	}
	require.NoError(t, os.MkdirAll(settings.UploadDir, 0o755))
	require.NoError(t, os.MkdirAll(settings.OutputDir, 0o755))
	require.NoError(t, os.MkdirAll(settings.ArtifactsDir(), 0o755))

	store := jobstore.New()
	adapters := stages.Adapters{
		Preprocessor: stages.NewStubAdapters(settings.UploadDir),
		Transcriber:  stages.NewStubAdapters(settings.OutputDir),
		Synthesizer:  stages.NewStubAdapters(settings.OutputDir),
	}
	orch := pipeline.New(store, adapters, settings)
	orch.Start()
	t.Cleanup(orch.Stop)

	h := New(store, orch, settings, stages.NewStubAdapters(settings.OutputDir))

	r := gin.New()
	r.POST("/generate", h.Generate)
	r.GET("/tasks/:id", h.GetTask)
	r.GET("/tasks/:id/download", h.DownloadArtifact)
	r.GET("/tasks/:id/score", h.GetScore)
	r.GET("/tasks/:id/score/download", h.DownloadScore)
	r.PUT("/tasks/:id/score", h.PutScore)
	r.POST("/tasks/:id/render", h.RenderTask)
	r.POST("/export/midi", h.ExportMIDI)

	return r, h, settings
}

func multipartUploadRequest(t *testing.T, url, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func waitForCompletion(t *testing.T, r *gin.Engine, taskID string) jobInfoResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+taskID, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var info jobInfoResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		if info.Status == "completed" || info.Status == "failed" {
			return info
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not finalize in time")
	return jobInfoResponse{}
}

func TestGenerateHappyPath(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := multipartUploadRequest(t, "/generate?output_format=mp3", "a.wav", bytes.Repeat([]byte{0x00}, 1024))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var created struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "queued", created.Status)
	require.NotEmpty(t, created.TaskID)

	info := waitForCompletion(t, r, created.TaskID)
	require.Equal(t, "completed", info.Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+created.TaskID+"/download?file_type=audio", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	require.NotEmpty(t, w.Body.Bytes())
}

func TestDownloadBeforeCompletionIsConflict(t *testing.T) {
	r, h, _ := newTestRouter(t)
	id := h.Store.Create(jobstore.StagePreprocessing)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+id+"/download?file_type=audio", nil))
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDownloadInvalidFileTypeIsBadRequest(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := multipartUploadRequest(t, "/generate?output_format=mp3", "a.wav", []byte("x"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var created struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	waitForCompletion(t, r, created.TaskID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+created.TaskID+"/download?file_type=xxx", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUnknownTaskIsNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/00000000-0000-0000-0000-000000000000", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestScoreRoundTripAndRerender(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := multipartUploadRequest(t, "/generate?output_format=mp3", "a.wav", []byte("x"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var created struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	waitForCompletion(t, r, created.TaskID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+created.TaskID+"/score", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var sc hscore.Score
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sc))
	require.GreaterOrEqual(t, len(sc.Tracks), 1)
	require.GreaterOrEqual(t, len(sc.Tracks[0].Notes), 1)

	body, err := json.Marshal(sc)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	putReq := httptest.NewRequest(http.MethodPut, "/tasks/"+created.TaskID+"/score", bytes.NewReader(body))
	putReq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, putReq)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+created.TaskID+"/download?file_type=midi", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, len(w.Body.Bytes()) > 4)
	require.Equal(t, "MThd", string(w.Body.Bytes()[:4]))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+created.TaskID+"/download?file_type=audio", nil))
	require.Equal(t, http.StatusOK, w.Code)
	previousAudio := append([]byte(nil), w.Body.Bytes()...)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tasks/"+created.TaskID+"/render?output_format=wav", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+created.TaskID+"/download?file_type=audio", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
	require.NotEqual(t, previousAudio, w.Body.Bytes())
}

func TestGenerateRejectsOversizedUpload(t *testing.T) {
	r, _, settings := newTestRouter(t)

	oversized := bytes.Repeat([]byte{0x01}, int(settings.MaxUploadSizeBytes())+1)
	req := multipartUploadRequest(t, "/generate?output_format=mp3", "big.wav", oversized)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// No partial upload is left behind.
	entries, err := os.ReadDir(settings.UploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestGenerateRejectsInvalidOutputFormat(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := multipartUploadRequest(t, "/generate?output_format=ogg", "a.wav", []byte("x"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutScoreRejectsUnknownFields(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := multipartUploadRequest(t, "/generate?output_format=mp3", "a.wav", []byte("x"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var created struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	waitForCompletion(t, r, created.TaskID)

	body := []byte(`{"version":1,"tempo_bpm":120,"time_signature":"4/4","tracks":[],"surprise":true}`)
	w = httptest.NewRecorder()
	putReq := httptest.NewRequest(http.MethodPut, "/tasks/"+created.TaskID+"/score", bytes.NewReader(body))
	putReq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, putReq)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutScoreRejectsOutOfRangeVelocity(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := multipartUploadRequest(t, "/generate?output_format=mp3", "a.wav", []byte("x"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var created struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	waitForCompletion(t, r, created.TaskID)

	for _, body := range []string{
		`{"version":1,"tempo_bpm":120,"time_signature":"4/4","tracks":[{"name":"x","notes":[{"pitch":60,"start":0,"duration":0.5,"velocity":0}]}]}`,
		`{"version":1,"tempo_bpm":120,"time_signature":"4/4","tracks":[{"name":"x","notes":[{"pitch":60,"start":0,"duration":0.5,"velocity":200}]}]}`,
	} {
		w = httptest.NewRecorder()
		putReq := httptest.NewRequest(http.MethodPut, "/tasks/"+created.TaskID+"/score", bytes.NewReader([]byte(body)))
		putReq.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, putReq)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestExportMIDIFlattened(t *testing.T) {
	r, _, _ := newTestRouter(t)

	body := []byte(`{"bpm":120,"tracks":[{"trackId":"tr1","notes":[{"pitch":60,"startSec":0.0,"durationSec":0.5,"velocity":80},{"pitch":64,"startSec":0.5,"durationSec":0.5}]}]}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/export/midi", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "audio/midi", w.Header().Get("Content-Type"))
	require.True(t, len(w.Body.Bytes()) > 4)
	require.Equal(t, "MThd", string(w.Body.Bytes()[:4]))
}
