package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	hscore "github.com/zzn199216/hum2song-webui/internal/score"
)

func TestSubmitAndGetTask(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "mp3", r.URL.Query().Get("output_format"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(SubmitResponse{
			TaskID:    "abc123",
			Status:    "queued",
			PollURL:   "/tasks/abc123",
			CreatedAt: "2026-01-01T00:00:00Z",
		})
	})
	mux.HandleFunc("/tasks/abc123", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TaskInfo{
			TaskID:   "abc123",
			Status:   "completed",
			Progress: 1.0,
			Stage:    "finalizing",
			Result: &Result{
				FileKind:     "audio",
				OutputFormat: "mp3",
				Filename:     "abc123.mp3",
				DownloadURL:  "/tasks/abc123/download?file_type=audio",
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	upload := filepath.Join(t.TempDir(), "hum.wav")
	require.NoError(t, os.WriteFile(upload, []byte("dummy"), 0o644))

	client := New(srv.URL, 5*time.Second)
	sub, err := client.Submit(upload, "mp3")
	require.NoError(t, err)
	require.Equal(t, "abc123", sub.TaskID)
	require.Equal(t, "queued", sub.Status)

	info, err := client.GetTask(sub.TaskID)
	require.NoError(t, err)
	require.True(t, info.IsFinal())
	require.Equal(t, "completed", info.Status)
	require.NotNil(t, info.Result)
	require.Equal(t, "audio", info.Result.FileKind)
}

func TestGetTaskNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL, 5*time.Second)
	_, err := client.GetTask("missing")
	require.Error(t, err)
}

func TestScoreRoundTrip(t *testing.T) {
	var received hscore.Score
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/abc/score", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(hscore.Score{
				Version:       1,
				TempoBPM:      120,
				TimeSignature: "4/4",
				Tracks: []hscore.Track{{
					Name:  "lead",
					Notes: []hscore.NoteEvent{{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 80}},
				}},
			})
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "task_id": "abc"})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL, 5*time.Second)
	sc, err := client.GetScore("abc")
	require.NoError(t, err)
	require.Equal(t, 120.0, sc.TempoBPM)
	require.Len(t, sc.Tracks, 1)

	sc.TempoBPM = 140
	require.NoError(t, client.PutScore("abc", sc))
	require.Equal(t, 140.0, received.TempoBPM)
}

func TestWaitForCompletionTimesOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/slow", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TaskInfo{TaskID: "slow", Status: "running", Progress: 0.4, Stage: "converting"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL, 5*time.Second)
	_, err := client.WaitForCompletion("slow", 10*time.Millisecond, 30*time.Millisecond)
	require.Error(t, err)
}

func TestWaitForCompletionReportsFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/bad", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TaskInfo{
			TaskID: "bad",
			Status: "failed",
			Error:  &TaskError{Message: "stage preprocessing failed"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL, 5*time.Second)
	info, err := client.WaitForCompletion("bad", 10*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.Equal(t, "failed", info.Status)
	require.Equal(t, "stage preprocessing failed", info.Error.Message)
}
