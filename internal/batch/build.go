package batch

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/fileprocess-ocr/internal/config"
	"github.com/adverant/nexus/fileprocess-ocr/internal/input"
	"github.com/adverant/nexus/fileprocess-ocr/internal/metrics"
	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
	"github.com/adverant/nexus/fileprocess-ocr/internal/raster"
	"github.com/adverant/nexus/fileprocess-ocr/internal/recognizer"
)

// BuildOptions wires a complete pipeline.
type BuildOptions struct {
	Config     *config.Config
	Recognizer recognizer.Recognizer
	// Rasterizer defaults to raster.NewRasterizer(Config.DPI).
	Rasterizer processor.Rasterizer
	Sampler    metrics.Sampler
	Sinks      []Sink
	RunID      string
}

// Build assembles rasterizer, file processor and orchestrator from configuration.
func Build(opts *BuildOptions) (*Orchestrator, error) {
	if opts == nil || opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := opts.Config

	ras := opts.Rasterizer
	if ras == nil {
		ras = raster.NewRasterizer(cfg.DPI)
	}
	sampler := opts.Sampler
	if sampler == nil {
		sampler = metrics.Nop{}
	}

	layout := processor.NewLayout(cfg.OutputDir)
	proc, err := processor.NewProcessor(&processor.ProcessorConfig{
		Layout:            layout,
		Rasterizer:        ras,
		Recognizer:        opts.Recognizer,
		Sampler:           sampler,
		Language:          cfg.Language,
		AccuracyThreshold: cfg.AccuracyThreshold,
		MaxSide:           cfg.MaxSide,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file processor: %w", err)
	}

	return NewOrchestrator(proc, &OrchestratorConfig{
		Layout:  layout,
		Workers: cfg.Workers,
		Sinks:   opts.Sinks,
		Sampler: sampler,
		RunID:   opts.RunID,
	})
}

// CollectAndRun collects inputs under root and runs them. It returns a nil summary
// when no supported files were found.
func CollectAndRun(ctx context.Context, orch *Orchestrator, root string, recursive bool) (*processor.RunSummary, error) {
	files, err := input.Collect(root, recursive)
	if err != nil {
		return nil, fmt.Errorf("failed to collect inputs: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	return orch.Run(ctx, files)
}
