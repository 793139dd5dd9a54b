package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zzn199216/hum2song-webui/internal/config"
	"github.com/zzn199216/hum2song-webui/internal/jobstore"
	"github.com/zzn199216/hum2song-webui/internal/logger"
	"github.com/zzn199216/hum2song-webui/internal/stages"
)

func init() {
	if logger.Log == nil {
		_ = logger.Initialize("error", filepath.Join(os.TempDir(), "pipeline_test.log"))
	}
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	base := t.TempDir()
	uploadDir := filepath.Join(base, "uploads")
	outputDir := filepath.Join(base, "outputs")
	require.NoError(t, os.MkdirAll(uploadDir, 0o755))
	require.NoError(t, os.MkdirAll(outputDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "artifacts"), 0o755))
	return config.Settings{
		BaseDir:   base,
		UploadDir: uploadDir,
		OutputDir: outputDir,
	}
}

func waitForTerminal(t *testing.T, store *jobstore.Store, id string) jobstore.Info {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		info, err := store.GetInfo(id)
		require.NoError(t, err)
		if info.IsFinalized() {
			return info
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not finalize in time")
	return jobstore.Info{}
}

func TestOrchestratorRunProducesCompletedJobWithArtifacts(t *testing.T) {
	settings := testSettings(t)
	store := jobstore.New()
	adapters := stages.Adapters{
		Preprocessor: stages.NewStubAdapters(settings.UploadDir),
		Transcriber:  stages.NewStubAdapters(settings.OutputDir),
		Synthesizer:  stages.NewStubAdapters(settings.OutputDir),
	}

	orch := New(store, adapters, settings)
	orch.Start()
	defer orch.Stop()

	id := store.Create(jobstore.StagePreprocessing)
	inputPath := filepath.Join(settings.UploadDir, id+".wav")
	require.NoError(t, os.WriteFile(inputPath, []byte("fake upload"), 0o644))

	require.NoError(t, orch.Submit(id, inputPath, "wav"))

	info := waitForTerminal(t, store, id)
	require.Equal(t, jobstore.StatusCompleted, info.Status)
	require.NotNil(t, info.Result)
	require.Equal(t, "wav", info.Result.OutputFormat)

	audioPath, err := store.GetArtifactPath(id, jobstore.FileKindAudio, func(p string) bool {
		_, statErr := os.Stat(p)
		return statErr == nil
	})
	require.NoError(t, err)
	require.FileExists(t, audioPath)
	require.Equal(t, filepath.Join(settings.ArtifactsDir(), id+".wav"), audioPath)

	midiPath, err := store.GetArtifactPath(id, jobstore.FileKindMIDI, func(p string) bool {
		_, statErr := os.Stat(p)
		return statErr == nil
	})
	require.NoError(t, err)
	require.FileExists(t, midiPath)

	require.NoFileExists(t, inputPath)
}

func TestOrchestratorRunMarksFailedWhenInputMissing(t *testing.T) {
	settings := testSettings(t)
	store := jobstore.New()
	adapters := stages.Adapters{
		Preprocessor: stages.NewStubAdapters(settings.UploadDir),
		Transcriber:  stages.NewStubAdapters(settings.OutputDir),
		Synthesizer:  stages.NewStubAdapters(settings.OutputDir),
	}

	orch := New(store, adapters, settings)
	orch.Start()
	defer orch.Stop()

	id := store.Create(jobstore.StagePreprocessing)
	missingPath := filepath.Join(settings.UploadDir, id+".wav")

	require.NoError(t, orch.Submit(id, missingPath, "wav"))

	info := waitForTerminal(t, store, id)
	require.Equal(t, jobstore.StatusFailed, info.Status)
	require.NotNil(t, info.Error)
}
