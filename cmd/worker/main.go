/**
 * OCR Worker - Main Entry Point
 *
 * Long-running worker that consumes OCR batch jobs from Redis.
 *
 * Architecture:
 * - Asynq consumer for the ocr:batch task type
 * - Shared pipeline: collector -> orchestrator -> file processor -> tesseract
 * - go-redis event publisher for job, file and run progress
 * - Optional PostgreSQL result store and GCS artifact mirror
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/fileprocess-ocr/internal/batch"
	"github.com/adverant/nexus/fileprocess-ocr/internal/config"
	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
	"github.com/adverant/nexus/fileprocess-ocr/internal/metrics"
	"github.com/adverant/nexus/fileprocess-ocr/internal/queue"
	"github.com/adverant/nexus/fileprocess-ocr/internal/recognizer"
	"github.com/adverant/nexus/fileprocess-ocr/internal/storage"
)

func main() {
	envErr := godotenv.Load(".env")

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.NewLogger("Worker").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	logger := logging.NewLogger("Worker")
	if envErr != nil {
		logger.Warn(".env not found, using system environment variables")
	}

	logger.Info("OCR worker starting",
		"queue", cfg.QueueName,
		"concurrency", cfg.WorkerConcurrency,
		"lang", cfg.Language,
		"postgres", cfg.DatabaseURL != "",
		"gcs_bucket", cfg.GCSBucket)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fail fast when tesseract or its trained data is missing.
	newRecognizer := func(language string) (recognizer.Recognizer, error) {
		return recognizer.NewTesseract(&recognizer.TesseractConfig{
			Language:       language,
			TessdataPrefix: cfg.TessdataPrefix,
		})
	}
	rec, err := newRecognizer(cfg.Language)
	if err != nil {
		logger.Error("Recognition engine unavailable", "error", err)
		os.Exit(1)
	}

	storageManager, err := storage.NewStorageManager(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize storage manager", "error", err)
		os.Exit(1)
	}
	defer storageManager.Close()

	events, err := queue.NewEventPublisher(ctx, cfg.RedisURL, cfg.QueueName)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "error", err)
		os.Exit(1)
	}
	defer events.Close()

	sinks := []batch.Sink{events}
	if storageManager.Enabled() {
		sinks = append(sinks, storageManager)
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:    cfg.RedisURL,
		QueueName:   cfg.QueueName,
		Concurrency: cfg.WorkerConcurrency,
		Events:      events,
		Runner: &queue.PipelineRunner{
			Config:        cfg,
			Recognizer:    rec,
			RecognizerFor: newRecognizer,
			Sampler:       metrics.Default(),
			Sinks:         sinks,
		},
	})
	if err != nil {
		logger.Error("Failed to initialize queue consumer", "error", err)
		os.Exit(1)
	}

	if err := consumer.Start(ctx); err != nil {
		logger.Error("Failed to start queue consumer", "error", err)
		os.Exit(1)
	}
	stats := consumer.GetStatistics()
	logger.Info("OCR worker ready, waiting for jobs",
		"task_type", queue.TaskTypeBatch,
		"queue", stats["queue"],
		"concurrency", stats["concurrency"])

	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping")

	if err := consumer.Stop(context.Background()); err != nil {
		logger.Error("Error stopping queue consumer", "error", err)
	}
	if stats, err := events.GetStats(context.Background()); err == nil {
		logger.Info("Final job counts", "processing", stats["processing"], "completed", stats["completed"], "failed", stats["failed"])
	}
	logger.Info("Shutdown complete")
}
