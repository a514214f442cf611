package queue

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/fileprocess-ocr/internal/batch"
	"github.com/adverant/nexus/fileprocess-ocr/internal/config"
	"github.com/adverant/nexus/fileprocess-ocr/internal/metrics"
	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
	"github.com/adverant/nexus/fileprocess-ocr/internal/recognizer"
)

// PipelineRunner runs batch jobs with the worker configuration and per-job overrides.
type PipelineRunner struct {
	Config     *config.Config
	Recognizer recognizer.Recognizer
	// RecognizerFor builds a recognizer for a job that overrides the language.
	// Such jobs are rejected when it is nil.
	RecognizerFor func(language string) (recognizer.Recognizer, error)
	Sampler       metrics.Sampler
	Sinks         []batch.Sink
}

// RunBatch implements BatchRunner. A job with no supported inputs returns a nil summary.
func (r *PipelineRunner) RunBatch(ctx context.Context, p *BatchPayload) (*processor.RunSummary, error) {
	cfg, err := jobConfig(r.Config, p)
	if err != nil {
		return nil, err
	}

	rec := r.Recognizer
	if cfg.Language != r.Config.Language {
		if r.RecognizerFor == nil {
			return nil, fmt.Errorf("job language %q differs from worker language %q", cfg.Language, r.Config.Language)
		}
		if rec, err = r.RecognizerFor(cfg.Language); err != nil {
			return nil, err
		}
	}

	orch, err := batch.Build(&batch.BuildOptions{
		Config:     cfg,
		Recognizer: rec,
		Sampler:    r.Sampler,
		Sinks:      r.Sinks,
	})
	if err != nil {
		return nil, err
	}
	return batch.CollectAndRun(ctx, orch, p.Input, p.Recursive)
}

// jobConfig applies payload overrides to a copy of base.
func jobConfig(base *config.Config, p *BatchPayload) (*config.Config, error) {
	cfg := *base
	if p.Output != "" {
		cfg.OutputDir = p.Output
	}
	if p.Threshold != nil {
		cfg.AccuracyThreshold = *p.Threshold
	}
	if p.Workers > 0 {
		cfg.Workers = p.Workers
	}
	if p.Language != "" {
		cfg.Language = p.Language
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job configuration: %w", err)
	}
	return &cfg, nil
}
