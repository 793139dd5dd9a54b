// Package jobstore owns the job state machine: the single source of truth
// for status, stage, progress, timestamps, and artifact bindings. Jobs move
// queued → running → exactly one of completed/failed; finalized jobs reject
// all further mutation except artifact rebinding on completed.
package jobstore

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apierrors "github.com/zzn199216/hum2song-webui/internal/errors"
)

// Status is one of {queued, running, completed, failed}.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage is one of {preprocessing, converting, synthesizing, finalizing}.
type Stage string

const (
	StagePreprocessing Stage = "preprocessing"
	StageConverting    Stage = "converting"
	StageSynthesizing  Stage = "synthesizing"
	StageFinalizing    Stage = "finalizing"
)

// FileKind identifies an artifact kind bound to a job.
type FileKind string

const (
	FileKindAudio FileKind = "audio"
	FileKindMIDI  FileKind = "midi"
)

// Result is present iff a job's status is completed.
type Result struct {
	FileKind     FileKind `json:"file_type"`
	OutputFormat string   `json:"output_format"`
	Filename     string   `json:"filename"`
	DownloadURL  string   `json:"download_url"`
}

// Error is present iff a job's status is failed.
type Error struct {
	Message string  `json:"message"`
	TraceID *string `json:"trace_id"`
}

// Info is an immutable snapshot returned by value, never a shared
// reference into the store's internal state.
type Info struct {
	ID        string
	Status    Status
	Stage     Stage
	Progress  float64
	CreatedAt time.Time
	UpdatedAt time.Time
	Result    *Result
	Error     *Error
}

// IsFinalized reports whether the snapshot is in a terminal state.
func (i Info) IsFinalized() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// Validate checks the snapshot's cross-field invariants: completed carries
// a result, full progress, and no error; failed carries an error and no
// result; queued/running carry neither. A result's output format must
// agree with its file kind.
func (i Info) Validate() error {
	switch i.Status {
	case StatusCompleted:
		if i.Result == nil || i.Error != nil || i.Progress != 1.0 {
			return apierrors.InvalidInput("completed job must carry a result, no error, and progress 1.0")
		}
	case StatusFailed:
		if i.Error == nil || i.Result != nil {
			return apierrors.InvalidInput("failed job must carry an error and no result")
		}
	case StatusQueued, StatusRunning:
		if i.Result != nil || i.Error != nil {
			return apierrors.InvalidInput("non-finalized job must carry neither result nor error")
		}
	default:
		return apierrors.InvalidInput("unknown job status: " + string(i.Status))
	}
	if i.Progress < 0.0 || i.Progress > 1.0 {
		return apierrors.OutOfRange("progress must be within [0.0, 1.0]")
	}
	if i.Result != nil {
		switch i.Result.FileKind {
		case FileKindMIDI:
			if i.Result.OutputFormat != "mid" {
				return apierrors.InvalidInput("midi result must use output format mid")
			}
		case FileKindAudio:
			if i.Result.OutputFormat != "mp3" && i.Result.OutputFormat != "wav" {
				return apierrors.InvalidInput("audio result must use output format mp3 or wav")
			}
		default:
			return apierrors.InvalidInput("unknown result file kind: " + string(i.Result.FileKind))
		}
	}
	return nil
}

type record struct {
	id            string
	status        Status
	stage         Stage
	progress      float64
	createdAt     time.Time
	updatedAt     time.Time
	result        *Result
	err           *Error
	artifactPaths map[FileKind]string
}

func (r *record) isFinalized() bool {
	return r.status == StatusCompleted || r.status == StatusFailed
}

func (r *record) snapshot() Info {
	return Info{
		ID:        r.id,
		Status:    r.status,
		Stage:     r.stage,
		Progress:  r.progress,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
		Result:    r.result,
		Error:     r.err,
	}
}

// Store is the in-memory job store. All mutations are serialized by a
// single mutex; reads take a snapshot under the same lock and return it by
// value.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*record
}

// New creates an empty job store.
func New() *Store {
	return &Store{jobs: make(map[string]*record)}
}

// Create creates a queued job with progress=0.0 and the given initial
// stage, returning its id.
func (s *Store) Create(initialStage Stage) string {
	now := time.Now().UTC()
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &record{
		id:            id,
		status:        StatusQueued,
		stage:         initialStage,
		progress:      0.0,
		createdAt:     now,
		updatedAt:     now,
		artifactPaths: make(map[FileKind]string),
	}
	return id
}

// Exists reports whether id names a known job.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

// GetInfo returns an immutable snapshot of the job. Fails with NotFound if
// id is unknown.
func (s *Store) GetInfo(id string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return Info{}, apierrors.NotFound(id)
	}
	return rec.snapshot(), nil
}

// MarkRunning transitions a job to running. Legal only from queued or
// running; fails with AlreadyFinal otherwise.
func (s *Store) MarkRunning(id string, stage *Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return apierrors.NotFound(id)
	}
	if rec.isFinalized() {
		return apierrors.AlreadyFinal(id)
	}
	rec.status = StatusRunning
	if stage != nil {
		rec.stage = *stage
	}
	rec.updatedAt = time.Now().UTC()
	return nil
}

// UpdateProgress sets progress ∈ [0,1], promoting queued→running on first
// call. Fails with OutOfRange for an invalid progress value, AlreadyFinal
// if the job has finalized.
func (s *Store) UpdateProgress(id string, progress float64, stage *Stage) error {
	if progress < 0.0 || progress > 1.0 {
		return apierrors.OutOfRange("progress must be within [0.0, 1.0]")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return apierrors.NotFound(id)
	}
	if rec.isFinalized() {
		return apierrors.AlreadyFinal(id)
	}
	if rec.status == StatusQueued {
		rec.status = StatusRunning
	}
	rec.progress = progress
	if stage != nil {
		rec.stage = *stage
	}
	rec.updatedAt = time.Now().UTC()
	return nil
}

// MarkCompleted finalizes a job as completed, binding artifactPath under
// fileKind, inferring output format from the path extension if empty, and
// building the result's download_url. The existence check on artifactPath
// runs before the lock is acquired to keep the critical section free of
// filesystem I/O.
func (s *Store) MarkCompleted(id, artifactPath string, fileKind FileKind, outputFormat, filename string, fileExists func(string) bool) error {
	if !fileExists(artifactPath) {
		return apierrors.FileMissing(artifactPath)
	}

	if outputFormat == "" {
		outputFormat = inferOutputFormat(artifactPath)
	}
	if filename == "" {
		filename = filepath.Base(artifactPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return apierrors.NotFound(id)
	}
	if rec.isFinalized() {
		return apierrors.AlreadyFinal(id)
	}

	rec.status = StatusCompleted
	rec.progress = 1.0
	rec.stage = StageFinalizing
	rec.err = nil
	rec.result = &Result{
		FileKind:     fileKind,
		OutputFormat: outputFormat,
		Filename:     filename,
		DownloadURL:  "/tasks/" + id + "/download?file_type=" + string(fileKind),
	}
	rec.artifactPaths[fileKind] = artifactPath
	rec.updatedAt = time.Now().UTC()
	return nil
}

// MarkFailed finalizes a job as failed with a human-readable message.
func (s *Store) MarkFailed(id, message string, traceID *string, stage *Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return apierrors.NotFound(id)
	}
	if rec.isFinalized() {
		return apierrors.AlreadyFinal(id)
	}
	rec.status = StatusFailed
	if stage != nil {
		rec.stage = *stage
	}
	rec.result = nil
	rec.err = &Error{Message: message, TraceID: traceID}
	rec.updatedAt = time.Now().UTC()
	return nil
}

// AttachArtifact rebinds or adds an artifact mapping on an already
// completed job. Used by re-render and score-put. Fails with NotCompleted
// or FileMissing.
func (s *Store) AttachArtifact(id, artifactPath string, fileKind FileKind, fileExists func(string) bool) error {
	if !fileExists(artifactPath) {
		return apierrors.FileMissing(artifactPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return apierrors.NotFound(id)
	}
	if rec.status != StatusCompleted {
		return apierrors.NotCompleted(id)
	}
	rec.artifactPaths[fileKind] = artifactPath
	rec.updatedAt = time.Now().UTC()
	return nil
}

// GetArtifactPath returns the bound path for fileKind on a completed job.
// Legal only when status=completed and the mapping exists and the file
// still exists on disk.
func (s *Store) GetArtifactPath(id string, fileKind FileKind, fileExists func(string) bool) (string, error) {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return "", apierrors.NotFound(id)
	}
	if rec.status != StatusCompleted {
		s.mu.Unlock()
		return "", apierrors.NotCompleted(id)
	}
	path, bound := rec.artifactPaths[fileKind]
	s.mu.Unlock()

	if !bound {
		return "", apierrors.ArtifactUnavailable(id, string(fileKind))
	}
	if !fileExists(path) {
		return "", apierrors.FileMissing(path)
	}
	return path, nil
}

// Prune removes jobs whose updated_at is older than maxAge, returning the
// count removed. Does not touch disk artifacts.
func (s *Store) Prune(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.jobs {
		if rec.updatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

func inferOutputFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "mp3"
	case ".wav":
		return "wav"
	case ".mid", ".midi":
		return "mid"
	default:
		return "mp3"
	}
}
