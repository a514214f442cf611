/**
 * File Processor for the OCR pipeline
 *
 * Drives one input file through the pipeline:
 * - Classification (pdf / image / unsupported)
 * - Rasterization into ordered page images
 * - Per-page recognition with bounded retry, strictly in page order
 * - Aggregation into combined text, mean accuracy and a terminal status
 * - Persistence of text, hOCR and JSON report artifacts
 */

package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ocrerrors "github.com/adverant/nexus/fileprocess-ocr/internal/errors"
	"github.com/adverant/nexus/fileprocess-ocr/internal/input"
	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
	"github.com/adverant/nexus/fileprocess-ocr/internal/metrics"
	"github.com/adverant/nexus/fileprocess-ocr/internal/raster"
	"github.com/adverant/nexus/fileprocess-ocr/internal/recognizer"
)

// Rasterizer produces ordered page images for a file.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, ft input.FileType) (*raster.Pages, error)
}

// FileProcessorInterface defines the interface for single-file processing
type FileProcessorInterface interface {
	ProcessFile(ctx context.Context, path string) (*FileResult, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Layout     Layout
	Rasterizer Rasterizer
	Recognizer recognizer.Recognizer
	Sampler    metrics.Sampler

	Language          string
	AccuracyThreshold float64
	MaxSide           int
	MaxRetries        int
	RetryDelay        time.Duration
}

// state is a File Processor lifecycle stage, logged at each transition.
type state string

const (
	statePending     state = "pending"
	stateRasterizing state = "rasterizing"
	stateRecognizing state = "recognizing"
	stateAggregating state = "aggregating"
	stateDone        state = "done"
)

// Processor processes single files.
type Processor struct {
	config  *ProcessorConfig
	layout  Layout
	raster  Rasterizer
	pages   *PageRunner
	sampler metrics.Sampler
	logger  *logging.Logger
}

// NewProcessor creates a new file processor
func NewProcessor(cfg *ProcessorConfig) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}
	if cfg.Rasterizer == nil {
		return nil, fmt.Errorf("rasterizer is required")
	}
	if cfg.Layout.Root == "" {
		return nil, fmt.Errorf("output root is required")
	}

	sampler := cfg.Sampler
	if sampler == nil {
		sampler = metrics.Nop{}
	}

	logger := logging.NewLogger("FileProcessor")
	return &Processor{
		config:  cfg,
		layout:  cfg.Layout,
		raster:  cfg.Rasterizer,
		sampler: sampler,
		logger:  logger,
		pages: NewPageRunner(cfg.Recognizer, RetryPolicy{
			Language:   cfg.Language,
			MaxSide:    cfg.MaxSide,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logging.NewLogger("PageRunner")),
	}, nil
}

// Provider names the recognition engine.
func (p *Processor) Provider() string {
	return p.config.Recognizer.Name()
}

// ProcessFile runs one file to a terminal status. File-level problems are recorded
// in the result; an error is returned only when artifacts cannot be written.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*FileResult, error) {
	start := time.Now()
	ft := input.Classify(path)
	stem := Stem(path)
	result := newFileResult(path, ft)
	log := p.logger.With("file", result.OriginalFilename)

	transition := func(s state, kv ...interface{}) {
		log.Debug("State transition", append([]interface{}{"state", s}, kv...)...)
	}
	transition(statePending, "type", ft)

	if ft == input.FileTypeUnsupported {
		perr := ocrerrors.NewUnsupportedFormatError(path, strings.ToLower(filepath.Ext(path)))
		result.Status = StatusFailed
		result.Errors = append(result.Errors, perr.Error())
		result.Metrics["error"] = perr.ToMap()
		log.Warn("Unsupported file type", "path", path)
		return p.finish(result, stem, start, transition)
	}

	transition(stateRasterizing)
	pages, err := p.raster.Rasterize(ctx, path, ft)
	if err != nil {
		perr := ocrerrors.NewRasterizeError(path, err)
		result.Status = StatusFailed
		result.Errors = append(result.Errors, perr.Error())
		result.Metrics["error"] = perr.ToMap()
		log.Error("Rasterization failed", "error", err)

		if err := p.writeText(result, stem, ""); err != nil {
			return nil, err
		}
		return p.finish(result, stem, start, transition)
	}

	result.PageCount = len(pages.Images)
	if ft == input.FileTypePDF {
		result.Metrics["declared_pages"] = pages.DeclaredPages
	}

	outcomes := make([]*PageOutcome, 0, len(pages.Images))
	pageMetrics := make([]map[string]interface{}, 0, len(pages.Images))
	for i, img := range pages.Images {
		n := i + 1
		transition(stateRecognizing, "page", n, "of", result.PageCount)

		outcome := p.pages.Run(ctx, n, img)
		outcomes = append(outcomes, outcome)

		pm := map[string]interface{}{
			"page":             n,
			"status":           outcome.Status,
			"attempts":         outcome.Attempts,
			"duration_seconds": outcome.Duration.Seconds(),
		}
		for k, v := range p.sampler.Sample() {
			pm[k] = v
		}

		if outcome.Status == StatusSuccess {
			hocrPath := p.layout.HOCRPath(stem, n)
			if err := os.WriteFile(hocrPath, outcome.HOCR, 0o644); err != nil {
				return nil, ocrerrors.NewOutputError(path, hocrPath, err)
			}
			result.LayoutPaths = append(result.LayoutPaths, hocrPath)
			pm["accuracy"] = outcome.Confidence
		} else {
			perr := ocrerrors.NewOCRFailedError(path, n, outcome.Attempts, outcome.Err)
			result.Errors = append(result.Errors, pageError(n, outcome))
			pm["error"] = perr.ToMap()
			log.Warn("Page failed after all attempts", "page", n, "attempts", outcome.Attempts, "error", outcome.Err)
		}
		pageMetrics = append(pageMetrics, pm)
	}

	transition(stateAggregating)
	if err := p.writeText(result, stem, CombineText(outcomes)); err != nil {
		return nil, err
	}

	result.Accuracy = MeanAccuracy(outcomes)
	result.Status = p.decide(result)
	if result.Status == StatusLowAccuracy {
		result.Errors = append(result.Errors, fmt.Sprintf("mean accuracy %.3f below threshold %.3f",
			*result.Accuracy, p.config.AccuracyThreshold))
	}

	result.Metrics["pages"] = pageMetrics
	if len(outcomes) > 0 {
		var total time.Duration
		for _, o := range outcomes {
			total += o.Duration
		}
		result.Metrics["avg_page_duration_seconds"] = total.Seconds() / float64(len(outcomes))
	} else {
		result.Metrics["avg_page_duration_seconds"] = nil
	}

	return p.finish(result, stem, start, transition)
}

// decide applies the status rule. Failed is reserved for unsupported and
// rasterization failures, which never reach here.
func (p *Processor) decide(result *FileResult) Status {
	if result.Accuracy == nil {
		return StatusSuccess
	}
	if *result.Accuracy >= p.config.AccuracyThreshold {
		return StatusSuccess
	}
	return StatusLowAccuracy
}

func (p *Processor) writeText(result *FileResult, stem string, text string) error {
	textPath := p.layout.TextPath(stem)
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return ocrerrors.NewOutputError(result.SourcePath, textPath, err)
	}
	result.TextOutputPath = &textPath
	return nil
}

func (p *Processor) finish(result *FileResult, stem string, start time.Time, transition func(state, ...interface{})) (*FileResult, error) {
	result.DurationSeconds = time.Since(start).Seconds()
	result.Metrics["accuracy_threshold"] = p.config.AccuracyThreshold
	result.Metrics["provider"] = p.Provider()
	for k, v := range p.sampler.Sample() {
		result.Metrics[k] = v
	}

	reportPath := p.layout.ReportPath(stem)
	result.ReportPath = reportPath
	if err := WriteJSON(reportPath, result); err != nil {
		return nil, ocrerrors.NewOutputError(result.SourcePath, reportPath, err)
	}

	transition(stateDone, "status", result.Status, "pages", result.PageCount, "duration_seconds", result.DurationSeconds)
	p.logger.Info("File processed",
		"file", result.OriginalFilename,
		"status", result.Status,
		"pages", result.PageCount,
		"errors", len(result.Errors))
	return result, nil
}

// pageError describes a failed page by its last attempt, or as not attempted when
// the run was cancelled before the first one.
func pageError(page int, o *PageOutcome) string {
	if o.Attempts == 0 {
		return fmt.Sprintf("page %d not attempted: %v", page, o.Err)
	}
	return fmt.Sprintf("page %d attempt %d: %v", page, o.Attempts, o.Err)
}

// CombineText joins page texts in order, each behind a page marker and followed
// by a blank line. Failed pages keep their marker with an empty body.
func CombineText(outcomes []*PageOutcome) string {
	lines := make([]string, 0, len(outcomes)*3)
	for i, o := range outcomes {
		lines = append(lines, fmt.Sprintf("=== [PAGE %d] ===", i+1))
		if o.Text != "" {
			lines = append(lines, o.Text)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// MeanAccuracy is the mean page confidence, with failed pages counted as 0.
// It is nil when there are no pages.
func MeanAccuracy(outcomes []*PageOutcome) *float64 {
	if len(outcomes) == 0 {
		return nil
	}
	var sum float64
	for _, o := range outcomes {
		if o.Status == StatusSuccess {
			sum += o.Confidence
		}
	}
	mean := sum / float64(len(outcomes))
	return &mean
}
