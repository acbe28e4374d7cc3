package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/storycove/mediagen/internal/api"
	"github.com/storycove/mediagen/internal/config"
	"github.com/storycove/mediagen/internal/db"
	"github.com/storycove/mediagen/internal/media"
	"github.com/storycove/mediagen/internal/providers"
	"github.com/storycove/mediagen/internal/queue"
	"github.com/storycove/mediagen/internal/quota"
	"github.com/storycove/mediagen/internal/storage"
	"github.com/storycove/mediagen/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Human-readable logs in development, JSON everywhere else
	if cfg.AppEnv == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	log.Info().Str("env", cfg.AppEnv).Msg("Starting mediagen API")

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()
	log.Info().Msg("Connected to database")

	// Connect to Redis queue. A broker failure is not fatal: the API
	// keeps accepting requests in degraded mode and records pending
	// sentinels without enqueuing jobs.
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Queue unreachable, running in degraded mode")
		q = nil
	} else {
		defer q.Close()
		log.Info().Msg("Connected to Redis queue")
	}

	// Initialize storage
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Info().Str("bucket", cfg.SupabaseStorageBucket).Msg("Initialized Supabase storage")

	// Provider registry, quota guard, media service
	registry := providers.NewRegistry(cfg, stor)
	guard := quota.NewGuard(database)

	// A typed nil *queue.Queue must not leak into the Broker interface,
	// the degraded-mode check relies on a true nil.
	var broker media.Broker
	if q != nil {
		broker = q
	}
	svc := media.NewService(database, broker, guard)

	// Create API handler
	handler := api.NewHandler(database, svc, q)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Info().Msg("API key authentication enabled")
	} else {
		log.Warn().Msg("No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled and the broker is reachable
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled && q != nil {
		log.Info().Str("video_provider", cfg.VideoProvider).Str("audio_provider", cfg.AudioProvider).
			Msg("Worker enabled, starting background processing")

		w := worker.New(database, database, q, registry)

		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	} else if cfg.WorkerEnabled {
		log.Warn().Msg("Worker enabled but queue unreachable, worker not started")
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.APIPort).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
