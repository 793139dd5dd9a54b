package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zzn199216/hum2song-webui/internal/config"
	"github.com/zzn199216/hum2song-webui/internal/handlers"
	"github.com/zzn199216/hum2song-webui/internal/jobstore"
	"github.com/zzn199216/hum2song-webui/internal/logger"
	"github.com/zzn199216/hum2song-webui/internal/metrics"
	"github.com/zzn199216/hum2song-webui/internal/middleware"
	"github.com/zzn199216/hum2song-webui/internal/pipeline"
	"github.com/zzn199216/hum2song-webui/internal/stages"
)

func main() {
	// Initialize structured logging before everything else.
	logLevel := getEnvOrDefault("LOG_LEVEL", "info")
	logFile := getEnvOrDefault("LOG_FILE", "server.log")
	if err := logger.Initialize(logLevel, logFile); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Log.Info("=== hum2song server starting ===")

	settings, err := config.Load()
	if err != nil {
		logger.FatalWithFields("failed to load settings", err)
	}
	logger.Log.Info("settings loaded",
		zap.String("app_env", settings.AppEnv),
		zap.String("upload_dir", settings.UploadDir),
		zap.String("output_dir", settings.OutputDir),
		zap.Bool("use_stub_converter", settings.UseStubConverter),
	)

	store := jobstore.New()

	adapters := buildAdapters(settings)
	orchestrator := pipeline.New(store, adapters, settings)
	orchestrator.Start()
	defer orchestrator.Stop()

	pruneCtx, cancelPrune := context.WithCancel(context.Background())
	defer cancelPrune()
	go runPruneLoop(pruneCtx, store)

	metrics.Initialize()
	logger.Log.Info("prometheus metrics initialized")

	h := handlers.New(store, orchestrator, settings, adapters.Synthesizer)

	r := gin.New()
	r.Use(corsMiddleware(settings))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "hum2song",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/generate", h.Generate)
	r.GET("/tasks/:id", h.GetTask)
	r.GET("/tasks/:id/download", h.DownloadArtifact)
	r.GET("/tasks/:id/score", h.GetScore)
	r.GET("/tasks/:id/score/download", h.DownloadScore)
	r.PUT("/tasks/:id/score", h.PutScore)
	r.POST("/tasks/:id/render", h.RenderTask)
	r.POST("/export/midi", h.ExportMIDI)

	srv := &http.Server{
		Addr:    settings.Host + ":" + settings.Port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("hum2song server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("server forced to shutdown", err)
	}

	logger.Log.Info("server exited")
}

// runPruneLoop periodically removes stale job records, the in-process
// equivalent of the standalone cmd/prune-jobs binary's jobstore.Prune call.
func runPruneLoop(ctx context.Context, store *jobstore.Store) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed := store.Prune(24 * time.Hour)
			if removed > 0 {
				logger.Log.Info("pruned stale jobs", zap.Int("removed", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}

// buildAdapters wires real or stub stage adapters depending on
// USE_STUB_CONVERTER; both satisfy the same interface and the orchestrator
// never distinguishes them.
func buildAdapters(settings config.Settings) stages.Adapters {
	if settings.UseStubConverter {
		stub := stages.NewStubAdapters(settings.OutputDir)
		return stages.Adapters{
			Preprocessor: stages.NewStubAdapters(settings.UploadDir),
			Transcriber:  stub,
			Synthesizer:  stub,
		}
	}

	real := stages.RealAdapters{
		WorkDir:            settings.OutputDir,
		PreprocessorBinary: os.Getenv("PREPROCESSOR_BINARY"),
		TranscriberBinary:  os.Getenv("TRANSCRIBER_BINARY"),
		SoundfontRenderer:  os.Getenv("SOUNDFONT_RENDERER_BINARY"),
		AudioTranscoder:    os.Getenv("AUDIO_TRANSCODER_BINARY"),
	}
	return stages.Adapters{
		Preprocessor: stages.RealAdapters{WorkDir: settings.UploadDir, PreprocessorBinary: real.PreprocessorBinary},
		Transcriber:  real,
		Synthesizer:  real,
	}
}

// corsMiddleware configures allowed origins per APP_ENV: dev permits
// localhost frontends, production requires explicit ALLOWED_ORIGINS.
func corsMiddleware(settings config.Settings) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	origins := settings.AllowedOrigins
	if len(origins) == 0 {
		if settings.AppEnv == "production" {
			origins = []string{}
		} else {
			origins = []string{"http://localhost:3000", "http://localhost:5173"}
		}
	}
	corsConfig.AllowOrigins = origins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Accept"}
	corsConfig.AllowCredentials = false
	corsConfig.MaxAge = 86400

	logger.Log.Info("cors configured", zap.Strings("allowed_origins", corsConfig.AllowOrigins))
	return cors.New(corsConfig)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}
