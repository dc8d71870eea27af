package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/daily-balance/internal/api"
	"github.com/dvloznov/daily-balance/internal/api/handlers"
	"github.com/dvloznov/daily-balance/internal/config"
	"github.com/dvloznov/daily-balance/internal/jobs"
	"github.com/dvloznov/daily-balance/internal/jobs/inmemory"
	"github.com/dvloznov/daily-balance/internal/logger"
	"github.com/dvloznov/daily-balance/internal/pipeline"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.API.Port = *port
	}

	log := logger.NewFromConfig(cfg.Service.LogLevel, cfg.Service.LogFormat)
	ctx := logger.WithContext(context.Background(), log)

	factory, err := pipeline.NewFactory(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage and warehouse clients")
	}
	defer factory.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.API.QueueSize, cfg.API.QueueWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.API.QueueWorkers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, api.ReconcileJobHandler(factory)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	runsHandler := handlers.NewRunsHandler(jobQueue,
		jobs.Endpoint{Kind: cfg.Source.Kind, URI: cfg.Source.URI},
		jobs.Endpoint{Kind: cfg.Sink.Kind, URI: cfg.Sink.URI},
		log)
	if repo := factory.Warehouse(); repo != nil {
		runsHandler.SetRunLookup(repo)
	}
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      api.NewRouter(runsHandler, jobsHandler, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.API.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight runs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
