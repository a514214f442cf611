/**
 * Batch Orchestrator
 *
 * Runs the File Processor over many inputs with a bounded worker pool. A file
 * that errors or panics is isolated into a synthetic failed result, so a batch
 * of k inputs always yields k results. Results are collected in completion
 * order; RunSummary.Sorted restores input order.
 */

package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/fileprocess-ocr/internal/config"
	ocrerrors "github.com/adverant/nexus/fileprocess-ocr/internal/errors"
	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
	"github.com/adverant/nexus/fileprocess-ocr/internal/metrics"
	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
)

// Sink receives results as they complete. FileCompleted is called from worker
// goroutines and must be safe for concurrent use. Sink errors are logged only.
type Sink interface {
	FileCompleted(ctx context.Context, runID string, result *processor.FileResult) error
	RunCompleted(ctx context.Context, summary *processor.RunSummary) error
}

// OrchestratorConfig holds orchestrator configuration
type OrchestratorConfig struct {
	Layout  processor.Layout
	Workers int // <= 0 means min(4, NumCPU)
	Sinks   []Sink
	Sampler metrics.Sampler
	// RunID is generated when empty.
	RunID string
}

// Orchestrator runs batches.
type Orchestrator struct {
	processor processor.FileProcessorInterface
	config    *OrchestratorConfig
	workers   int
	sampler   metrics.Sampler
	logger    *logging.Logger
}

// NewOrchestrator creates a batch orchestrator around proc.
func NewOrchestrator(proc processor.FileProcessorInterface, cfg *OrchestratorConfig) (*Orchestrator, error) {
	if proc == nil {
		return nil, fmt.Errorf("file processor is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Layout.Root == "" {
		return nil, fmt.Errorf("output root is required")
	}

	sampler := cfg.Sampler
	if sampler == nil {
		sampler = metrics.Nop{}
	}

	return &Orchestrator{
		processor: proc,
		config:    cfg,
		workers:   config.ResolveWorkers(cfg.Workers),
		sampler:   sampler,
		logger:    logging.NewLogger("Orchestrator"),
	}, nil
}

// Workers returns the effective pool size.
func (o *Orchestrator) Workers() int {
	return o.workers
}

// Run processes inputs and writes reports/ocr_run_summary.json once all workers
// have finished. The returned error reports only a failure to write the summary;
// per-file failures are recorded in the summary.
func (o *Orchestrator) Run(ctx context.Context, inputs []string) (*processor.RunSummary, error) {
	runID := o.config.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	started := time.Now()
	log := o.logger.With("run_id", runID)

	summary := &processor.RunSummary{
		RunID:     runID,
		OutputDir: o.config.Layout.Root,
		StartedAt: started.UTC(),
		Files:     make([]*processor.FileResult, 0, len(inputs)),
	}

	log.Info("Starting batch", "files", len(inputs), "workers", o.workers)

	if err := o.config.Layout.Ensure(); err != nil {
		log.Error("Output layout unavailable, failing every input", "error", err)
		for i, path := range inputs {
			summary.Files = append(summary.Files,
				processor.NewFailedResult(path, i, 0, ocrerrors.NewOrchestrationError(path, err)))
		}
	} else {
		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		g.SetLimit(o.workers)

		for i, path := range inputs {
			g.Go(func() error {
				result := o.processOne(ctx, i, path)

				mu.Lock()
				summary.Files = append(summary.Files, result)
				mu.Unlock()

				o.notifyFile(ctx, runID, result)
				return nil
			})
		}
		// Tasks never return errors.
		_ = g.Wait()
	}

	summary.Tally()
	summary.DurationSeconds = time.Since(started).Seconds()
	summary.Metrics = map[string]interface{}{
		"workers": o.workers,
		"inputs":  len(inputs),
	}
	for k, v := range o.sampler.Sample() {
		summary.Metrics[k] = v
	}

	log.Info("Batch complete",
		"success", summary.Counts[processor.StatusSuccess],
		"low_accuracy", summary.Counts[processor.StatusLowAccuracy],
		"failed", summary.Counts[processor.StatusFailed],
		"duration_seconds", summary.DurationSeconds)

	summaryPath := o.config.Layout.SummaryPath()
	if err := processor.WriteJSON(summaryPath, summary); err != nil {
		return summary, ocrerrors.NewOutputError("", summaryPath, err)
	}

	for _, sink := range o.config.Sinks {
		if err := sink.RunCompleted(ctx, summary); err != nil {
			log.Warn("Sink failed to record run", "error", err)
		}
	}

	return summary, nil
}

// processOne converts errors and panics escaping the processor into a failed result.
func (o *Orchestrator) processOne(ctx context.Context, index int, path string) (result *processor.FileResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err := ocrerrors.NewOrchestrationError(path, fmt.Errorf("panic: %v", p))
			o.logger.Error("File processing panicked", "file", path, "panic", p)
			result = processor.NewFailedResult(path, index, time.Since(start), err)
		}
	}()

	res, err := o.processor.ProcessFile(ctx, path)
	if err == nil && res == nil {
		err = fmt.Errorf("processor returned no result")
	}
	if err != nil {
		o.logger.Error("File processing aborted", "file", path, "error", err)
		return processor.NewFailedResult(path, index, time.Since(start), ocrerrors.NewOrchestrationError(path, err))
	}

	res.Index = index
	return res
}

func (o *Orchestrator) notifyFile(ctx context.Context, runID string, result *processor.FileResult) {
	for _, sink := range o.config.Sinks {
		if err := sink.FileCompleted(ctx, runID, result); err != nil {
			o.logger.Warn("Sink failed to record file", "file", result.OriginalFilename, "error", err)
		}
	}
}
