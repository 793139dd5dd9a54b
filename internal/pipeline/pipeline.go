// Package pipeline implements the background orchestrator: composing
// preprocess → transcribe → synthesize under a job id, driving job store
// transitions, and owning determinism of output paths. Each stage's result
// is renamed into a canonical per-job location before the store is updated,
// and the original upload is removed whether the job succeeds or fails.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/zzn199216/hum2song-webui/internal/config"
	apierrors "github.com/zzn199216/hum2song-webui/internal/errors"
	"github.com/zzn199216/hum2song-webui/internal/jobstore"
	"github.com/zzn199216/hum2song-webui/internal/logger"
	"github.com/zzn199216/hum2song-webui/internal/metrics"
	"github.com/zzn199216/hum2song-webui/internal/stages"
	"github.com/zzn199216/hum2song-webui/internal/util"
)

// job is one unit of orchestrator work submitted by the HTTP surface.
type job struct {
	id           string
	inputPath    string
	outputFormat string
}

// maxWorkers caps the pool to avoid overwhelming the external stage
// subprocesses.
const maxWorkers = 8

// Orchestrator runs the three-stage pipeline for submitted jobs against a
// fixed-size worker pool; one job occupies one worker end-to-end.
type Orchestrator struct {
	store    *jobstore.Store
	adapters stages.Adapters
	settings config.Settings

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an Orchestrator. Call Start to spin up its worker pool.
func New(store *jobstore.Store, adapters stages.Adapters, settings config.Settings) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:    store,
		adapters: adapters,
		settings: settings,
		queue:    make(chan job, 256),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker pool. Safe to call once.
func (o *Orchestrator) Start() {
	workers := runtime.NumCPU()
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if workers < 1 {
		workers = 1
	}
	logger.Log.Info("pipeline orchestrator starting", zap.Int("workers", workers))
	for i := 0; i < workers; i++ {
		go o.worker(i)
	}
}

// Stop cancels in-flight work and closes the submission queue.
func (o *Orchestrator) Stop() {
	o.cancel()
	close(o.queue)
}

// Submit enqueues a job for background processing. The queue is buffered
// (256 entries); when it is full, Submit returns an internal error without
// enqueuing, and the job stays "queued" in the job store.
func (o *Orchestrator) Submit(id, inputPath, outputFormat string) error {
	select {
	case o.queue <- job{id: id, inputPath: inputPath, outputFormat: outputFormat}:
		return nil
	default:
		return apierrors.Internal("orchestrator queue full", nil)
	}
}

func (o *Orchestrator) worker(workerID int) {
	for {
		select {
		case j, ok := <-o.queue:
			if !ok {
				return
			}
			o.run(j)
		case <-o.ctx.Done():
			return
		}
	}
}

// run executes the full three-stage pipeline for one job. Any failure is
// caught at this boundary and translated into MarkFailed; nothing escapes
// the worker.
func (o *Orchestrator) run(j job) {
	stage := jobstore.StagePreprocessing

	defer o.cleanup(j)

	if !util.FileExists(j.inputPath) {
		o.fail(j.id, "input file missing", stage)
		return
	}

	preStage := jobstore.StagePreprocessing
	if err := o.store.MarkRunning(j.id, &preStage); err != nil {
		logger.Log.Warn("mark_running failed", zap.String("job_id", j.id), zap.Error(err))
		return
	}
	if err := o.store.UpdateProgress(j.id, 0.1, nil); err != nil {
		logger.Log.Warn("update_progress failed", zap.String("job_id", j.id), zap.Error(err))
		return
	}

	stageStart := time.Now()
	cleanRaw, err := o.adapters.Preprocess(o.ctx, j.inputPath)
	if err != nil {
		o.fail(j.id, err.Error(), stage)
		return
	}
	cleanPath, err := canonicalize(cleanRaw, filepath.Join(o.settings.UploadDir, j.id+"_clean.wav"))
	if err != nil {
		o.fail(j.id, fmt.Sprintf("failed to stage clean audio: %v", err), stage)
		return
	}
	metrics.Get().JobStageDuration.WithLabelValues(string(stage)).Observe(time.Since(stageStart).Seconds())

	stage = jobstore.StageConverting
	if err := o.store.UpdateProgress(j.id, 0.4, &stage); err != nil {
		logger.Log.Warn("update_progress failed", zap.String("job_id", j.id), zap.Error(err))
		return
	}

	stageStart = time.Now()
	midiRaw, err := o.adapters.Transcribe(o.ctx, cleanPath)
	if err != nil {
		o.fail(j.id, err.Error(), stage)
		return
	}
	midiPath, err := canonicalize(midiRaw, filepath.Join(o.settings.OutputDir, j.id+".mid"))
	if err != nil {
		o.fail(j.id, fmt.Sprintf("failed to stage midi: %v", err), stage)
		return
	}
	metrics.Get().JobStageDuration.WithLabelValues(string(stage)).Observe(time.Since(stageStart).Seconds())

	stage = jobstore.StageSynthesizing
	if err := o.store.UpdateProgress(j.id, 0.8, &stage); err != nil {
		logger.Log.Warn("update_progress failed", zap.String("job_id", j.id), zap.Error(err))
		return
	}

	stageStart = time.Now()
	audioRaw, err := o.adapters.Synthesize(o.ctx, midiPath, j.outputFormat)
	if err != nil {
		o.fail(j.id, err.Error(), stage)
		return
	}
	preArtifactPath, err := canonicalize(audioRaw, filepath.Join(o.settings.OutputDir, j.id+"."+j.outputFormat))
	if err != nil {
		o.fail(j.id, fmt.Sprintf("failed to stage audio: %v", err), stage)
		return
	}
	metrics.Get().JobStageDuration.WithLabelValues(string(stage)).Observe(time.Since(stageStart).Seconds())

	finalAudioPath := filepath.Join(o.settings.ArtifactsDir(), j.id+"."+j.outputFormat)
	if err := moveFile(preArtifactPath, finalAudioPath); err != nil {
		o.fail(j.id, fmt.Sprintf("failed to publish audio artifact: %v", err), jobstore.StageFinalizing)
		return
	}

	if err := o.store.MarkCompleted(j.id, finalAudioPath, jobstore.FileKindAudio, j.outputFormat, "", util.FileExists); err != nil {
		o.fail(j.id, fmt.Sprintf("failed to complete job: %v", err), jobstore.StageFinalizing)
		return
	}
	if err := o.store.AttachArtifact(j.id, midiPath, jobstore.FileKindMIDI, util.FileExists); err != nil {
		logger.Log.Warn("attach midi artifact failed", zap.String("job_id", j.id), zap.Error(err))
	}

	metrics.Get().JobsCompletedTotal.WithLabelValues(j.outputFormat).Inc()
	logger.Log.Info("job completed", logger.WithJobID(j.id), zap.String("format", j.outputFormat))
}

func (o *Orchestrator) fail(id, message string, stage jobstore.Stage) {
	logger.Log.Error("job failed", logger.WithJobID(id), logger.WithStage(string(stage)), zap.String("message", message))
	metrics.Get().JobsFailedTotal.WithLabelValues(string(stage)).Inc()
	if err := o.store.MarkFailed(id, message, nil, &stage); err != nil {
		logger.Log.Warn("mark_failed failed", zap.String("job_id", id), zap.Error(err))
	}
}

// cleanup always deletes the original upload; the clean intermediate is
// removed on a best-effort basis unless KeepIntermediates is set.
func (o *Orchestrator) cleanup(j job) {
	metrics.Get().JobsActive.WithLabelValues().Dec()
	if err := os.Remove(j.inputPath); err != nil && !os.IsNotExist(err) {
		logger.Log.Warn("failed to clean up upload", zap.String("job_id", j.id), zap.Error(err))
	}
	if !o.settings.KeepIntermediates {
		cleanPath := filepath.Join(o.settings.UploadDir, j.id+"_clean.wav")
		_ = os.Remove(cleanPath)
	}
}

// canonicalize moves src to dst if they differ, returning dst. It is a
// no-op (returning src) if src already equals dst.
func canonicalize(src, dst string) (string, error) {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return dst, nil
	}
	if err := moveFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// moveFile renames src to dst, falling back to copy+remove across devices.
func moveFile(src, dst string) error {
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
