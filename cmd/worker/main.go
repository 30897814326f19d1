package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dvloznov/bankmail-ledger/internal/app"
	"github.com/dvloznov/bankmail-ledger/internal/config"
	"github.com/dvloznov/bankmail-ledger/internal/jobs"
	"github.com/dvloznov/bankmail-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("BANKLEDGER_CONFIG"), "Path to YAML config (or set BANKLEDGER_CONFIG)")
	runNow := flag.Bool("run-now", false, "Run one batch immediately on start")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer a.Close()

	jobStore := inmemory.NewStore()
	// One worker: batches must not append to the same ledger concurrently.
	jobQueue := inmemory.NewQueue(10, jobStore, inmemory.WithWorkers(1))
	if err := jobQueue.Start(ctx, app.BatchHandler(a.Processor)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	scheduler := cron.New(cron.WithLogger(cronLogger{log}))
	if _, err := scheduler.AddFunc(cfg.Schedule, func() {
		publish(ctx, log, jobQueue, jobs.TriggerSchedule)
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Schedule).Msg("Invalid schedule")
	}
	scheduler.Start()

	log.Info().Str("schedule", cfg.Schedule).Msg("Worker service started")
	if *runNow {
		publish(ctx, log, jobQueue, jobs.TriggerManual)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancel()

	log.Info().Msg("Worker service stopped")
}

func publish(ctx context.Context, log zerolog.Logger, publisher jobs.Publisher, trigger jobs.Trigger) {
	job := &jobs.BatchJob{Trigger: trigger}
	if err := publisher.PublishBatch(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue batch")
		return
	}
	log.Info().Str("job_id", job.JobID).Str("trigger", string(trigger)).Msg("Batch enqueued")
}

// cronLogger routes scheduler messages to zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
