// Package config loads an immutable, validated process-wide Settings
// snapshot once at startup. Downstream components receive it by value and
// never read environment variables themselves.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/zzn199216/hum2song-webui/internal/util"
)

// Settings is the fully resolved, clamped configuration snapshot. It is
// loaded once and passed by value to every component that needs it.
type Settings struct {
	AppEnv string
	Host   string
	Port   string

	UploadDir string
	OutputDir string
	BaseDir   string

	MaxUploadSizeMB  int
	MaxAudioSeconds  int
	TargetSampleRate int

	OnsetThreshold float64
	FrameThreshold float64

	UseStubConverter  bool
	KeepIntermediates bool

	LogLevel string
	LogFile  string

	AllowedOrigins []string
}

// Load reads a .env file if present, falls back to process environment
// variables, clamps out-of-range values, and creates the upload, output,
// and artifact directories.
func Load() (Settings, error) {
	// Missing .env is not fatal; system environment variables still apply.
	_ = godotenv.Load()

	baseDir, err := os.Getwd()
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		AppEnv:            getEnv("APP_ENV", "dev"),
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnv("PORT", "8000"),
		UploadDir:         absPath(baseDir, getEnv("UPLOAD_DIR", "uploads")),
		OutputDir:         absPath(baseDir, getEnv("OUTPUT_DIR", "outputs")),
		BaseDir:           baseDir,
		MaxUploadSizeMB:   getEnvInt("MAX_UPLOAD_SIZE_MB", 10),
		MaxAudioSeconds:   getEnvInt("MAX_AUDIO_SECONDS", 30),
		TargetSampleRate:  getEnvInt("TARGET_SAMPLE_RATE", 22050),
		OnsetThreshold:    getEnvFloat("ONSET_THRESHOLD", 0.5),
		FrameThreshold:    getEnvFloat("FRAME_THRESHOLD", 0.3),
		UseStubConverter:  getEnvBool("USE_STUB_CONVERTER", true),
		KeepIntermediates: getEnvBool("KEEP_INTERMEDIATES", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", "server.log"),
	}

	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				s.AllowedOrigins = append(s.AllowedOrigins, origin)
			}
		}
	}

	s.clamp()

	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return Settings{}, err
	}
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return Settings{}, err
	}
	if err := os.MkdirAll(s.ArtifactsDir(), 0o755); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// clamp bounds every numeric setting to its usable range.
func (s *Settings) clamp() {
	if s.MaxUploadSizeMB <= 0 {
		s.MaxUploadSizeMB = 10
	}
	if s.MaxAudioSeconds <= 0 {
		s.MaxAudioSeconds = 20
	} else if s.MaxAudioSeconds > 60 {
		s.MaxAudioSeconds = 60
	}
	if s.TargetSampleRate < 8000 {
		s.TargetSampleRate = 22050
	}
	s.OnsetThreshold = clampFloat(s.OnsetThreshold, 0.05, 0.95)
	s.FrameThreshold = clampFloat(s.FrameThreshold, 0.05, 0.95)
}

// ArtifactsDir is the canonical post-completion artifact location,
// {base_dir}/artifacts.
func (s Settings) ArtifactsDir() string {
	return filepath.Join(s.BaseDir, "artifacts")
}

// MaxUploadSizeBytes converts the configured MB ceiling to bytes for the
// streaming upload guard in internal/util.SaveUploadStreamed.
func (s Settings) MaxUploadSizeBytes() int64 {
	return int64(s.MaxUploadSizeMB) * 1024 * 1024
}

func absPath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(baseDir, p))
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	return util.ParseInt(os.Getenv(key), fallback)
}

func getEnvFloat(key string, fallback float64) float64 {
	return util.ParseFloat(os.Getenv(key), fallback)
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
