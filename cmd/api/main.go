package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/bankmail-ledger/internal/api/handlers"
	"github.com/dvloznov/bankmail-ledger/internal/api/middleware"
	"github.com/dvloznov/bankmail-ledger/internal/app"
	"github.com/dvloznov/bankmail-ledger/internal/config"
	"github.com/dvloznov/bankmail-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
	"github.com/dvloznov/bankmail-ledger/internal/processor"
)

func main() {
	configPath := flag.String("config", os.Getenv("BANKLEDGER_CONFIG"), "Path to YAML config (or set BANKLEDGER_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	ctx := logger.WithContext(context.Background(), log)

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer a.Close()

	// A single worker keeps one writer per ledger.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting batch worker")
	if err := jobQueue.Start(workerCtx, app.BatchHandler(a.Processor)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start batch worker")
	}

	batchesHandler := handlers.NewBatchesHandler(jobQueue, jobStore, log)
	extractHandler := handlers.NewExtractHandler(a.Extractor, processor.DetectorFromConfig(cfg.Dedup), a.Store, log)
	mux := handlers.NewMux(batchesHandler, extractHandler)

	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(cfg.HTTP.Token)(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTP.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	// Let a running batch finish before the context is cancelled.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
