/**
 * OCR batch CLI
 *
 * Converts a file or directory of PDFs and images into UTF-8 text with per-page
 * hOCR and JSON reports.
 *
 * Exit codes:
 * - 0: every file processed (success or low_accuracy)
 * - 1: at least one file failed, or the pipeline could not start
 * - 2: no supported input files found
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/adverant/nexus/fileprocess-ocr/internal/batch"
	"github.com/adverant/nexus/fileprocess-ocr/internal/config"
	"github.com/adverant/nexus/fileprocess-ocr/internal/input"
	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
	"github.com/adverant/nexus/fileprocess-ocr/internal/metrics"
	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
	"github.com/adverant/nexus/fileprocess-ocr/internal/queue"
	"github.com/adverant/nexus/fileprocess-ocr/internal/recognizer"
	"github.com/adverant/nexus/fileprocess-ocr/internal/storage"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitNoInput = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// .env is optional.
	_ = godotenv.Load(".env")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitFailed
	}

	fs := flag.NewFlagSet("ocr", flag.ContinueOnError)
	inputPath := fs.String("input", "", "input file or directory (required)")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "output root directory")
	fs.StringVar(&cfg.Language, "lang", cfg.Language, "tesseract language profile, e.g. chi_sim+eng")
	fs.Float64Var(&cfg.AccuracyThreshold, "threshold", cfg.AccuracyThreshold, "accuracy threshold in [0,1]")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent files (0 = min(4, CPUs))")
	recursive := fs.Bool("recursive", false, "recurse into sub-directories")
	fs.IntVar(&cfg.DPI, "dpi", cfg.DPI, "PDF render resolution")
	fs.IntVar(&cfg.MaxSide, "max-side", cfg.MaxSide, "maximum page side in pixels before recognition")
	fs.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "retries per page")
	enqueue := fs.Bool("enqueue", false, "submit the batch to the worker queue instead of running it")
	if err := fs.Parse(args); err != nil {
		return exitNoInput
	}

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
		fs.Usage()
		return exitNoInput
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *enqueue {
		return submit(ctx, cfg, *inputPath, *recursive)
	}

	files, err := input.Collect(*inputPath, *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to collect inputs: %v\n", err)
		return exitFailed
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No supported files found under %s\n", *inputPath)
		return exitNoInput
	}

	layout := processor.NewLayout(cfg.OutputDir)
	if err := layout.Ensure(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare output directory: %v\n", err)
		return exitFailed
	}

	runID := uuid.New().String()
	logFile, err := os.Create(layout.RunLogPath(runID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create run log: %v\n", err)
		return exitFailed
	}
	defer logFile.Close()
	logging.Setup(cfg.LogLevel, cfg.LogFormat, logFile)
	logger := logging.NewLogger("CLI").With("run_id", runID)

	rec, err := recognizer.NewTesseract(&recognizer.TesseractConfig{
		Language:       cfg.Language,
		TessdataPrefix: cfg.TessdataPrefix,
	})
	if err != nil {
		logger.Error("Recognition engine unavailable", "error", err)
		return exitFailed
	}

	storageManager, err := storage.NewStorageManager(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize result storage", "error", err)
		return exitFailed
	}
	defer storageManager.Close()

	var sinks []batch.Sink
	if storageManager.Enabled() {
		sinks = append(sinks, storageManager)
	}

	orch, err := batch.Build(&batch.BuildOptions{
		Config:     cfg,
		Recognizer: rec,
		Sampler:    metrics.Default(),
		Sinks:      sinks,
		RunID:      runID,
	})
	if err != nil {
		logger.Error("Failed to build pipeline", "error", err)
		return exitFailed
	}

	logger.Info("Starting OCR run",
		"input", *inputPath,
		"files", len(files),
		"output", cfg.OutputDir,
		"lang", cfg.Language,
		"threshold", cfg.AccuracyThreshold,
		"workers", orch.Workers())

	summary, err := orch.Run(ctx, files)
	if summary != nil {
		fmt.Printf("processed %d files: success %d, low_accuracy %d, failed %d\n",
			len(summary.Files),
			summary.Counts[processor.StatusSuccess],
			summary.Counts[processor.StatusLowAccuracy],
			summary.Counts[processor.StatusFailed])
		fmt.Printf("output: %s\n", cfg.OutputDir)
	}
	if err != nil {
		logger.Error("Run did not complete cleanly", "error", err)
		return exitFailed
	}
	if summary.Counts[processor.StatusFailed] > 0 {
		reportFailed(ctx, storageManager.Postgres(), summary, logger)
		return exitFailed
	}
	return exitOK
}

// reportFailed lists the failed files of the run, read back from the result store
// when one is configured.
func reportFailed(ctx context.Context, store *storage.PostgresStore, summary *processor.RunSummary, logger *logging.Logger) {
	var failed []string
	if store != nil {
		paths, err := store.FailedFiles(ctx, summary.RunID)
		if err != nil {
			logger.Warn("Failed to read failed files from result store", "error", err)
		}
		failed = paths
	}
	if len(failed) == 0 {
		for _, f := range summary.Sorted() {
			if f.Status == processor.StatusFailed {
				failed = append(failed, f.SourcePath)
			}
		}
	}
	for _, path := range failed {
		fmt.Printf("failed: %s\n", path)
	}
}

func submit(ctx context.Context, cfg *config.Config, inputPath string, recursive bool) int {
	threshold := cfg.AccuracyThreshold
	info, err := queue.Enqueue(ctx, cfg.RedisURL, cfg.QueueName, &queue.BatchPayload{
		JobID:     uuid.New().String(),
		Input:     inputPath,
		Output:    cfg.OutputDir,
		Recursive: recursive,
		Language:  cfg.Language,
		Threshold: &threshold,
		Workers:   cfg.Workers,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to enqueue batch: %v\n", err)
		return exitFailed
	}
	fmt.Printf("enqueued task %s on queue %s\n", info.ID, info.Queue)
	return exitOK
}
