/**
 * Pipeline result types
 *
 * FileResult is the persisted unit of output (reports/<stem>.json); RunSummary
 * aggregates one batch invocation (reports/ocr_run_summary.json).
 */

package processor

import (
	"sort"
	"time"

	"github.com/adverant/nexus/fileprocess-ocr/internal/input"
)

// Status is the terminal outcome of a file, or the outcome of a single page.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusLowAccuracy Status = "low_accuracy"
	StatusFailed      Status = "failed"
)

// FileResult is the outcome of processing one input file.
type FileResult struct {
	OriginalFilename string         `json:"original_filename"`
	SourcePath       string         `json:"source_path"`
	FileType         input.FileType `json:"file_type"`
	Status           Status         `json:"status"`
	// TextOutputPath is nil only for unsupported inputs.
	TextOutputPath *string `json:"text_output_path"`
	// LayoutPaths holds one hOCR artifact per successfully recognized page.
	LayoutPaths []string `json:"hocr_paths"`
	// ReportPath is empty when the file aborted before its report was written.
	ReportPath      string                 `json:"report_path,omitempty"`
	Accuracy        *float64               `json:"accuracy"`
	PageCount       int                    `json:"page_count"`
	DurationSeconds float64                `json:"duration_seconds"`
	Errors          []string               `json:"errors"`
	Metrics         map[string]interface{} `json:"metrics"`

	// Index is the position of the file in the batch input list.
	Index int `json:"-"`
}

func newFileResult(path string, ft input.FileType) *FileResult {
	return &FileResult{
		OriginalFilename: baseName(path),
		SourcePath:       path,
		FileType:         ft,
		LayoutPaths:      []string{},
		Errors:           []string{},
		Metrics:          map[string]interface{}{},
	}
}

// NewFailedResult builds the record used when processing of a file aborted
// outside the processor's own handling.
func NewFailedResult(path string, index int, duration time.Duration, err error) *FileResult {
	r := newFileResult(path, input.Classify(path))
	r.Status = StatusFailed
	r.Index = index
	r.DurationSeconds = duration.Seconds()
	r.Errors = append(r.Errors, err.Error())
	return r
}

// PageOutcome is the result of the retry controller for one page.
type PageOutcome struct {
	Index      int // 1-based
	Status     Status
	Text       string
	Confidence float64
	HOCR       []byte
	Duration   time.Duration
	Attempts   int
	// Err is the reason of the last failed attempt.
	Err error
}

// RunSummary aggregates one batch invocation. Files are in completion order.
type RunSummary struct {
	RunID           string                 `json:"run_id"`
	OutputDir       string                 `json:"output_dir"`
	StartedAt       time.Time              `json:"started_at"`
	DurationSeconds float64                `json:"duration_seconds"`
	Files           []*FileResult          `json:"files"`
	Counts          map[Status]int         `json:"counts"`
	Metrics         map[string]interface{} `json:"metrics"`
}

// Sorted returns the files in input order.
func (s *RunSummary) Sorted() []*FileResult {
	files := make([]*FileResult, len(s.Files))
	copy(files, s.Files)
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Index < files[j].Index
	})
	return files
}

// Tally recomputes Counts from Files.
func (s *RunSummary) Tally() {
	s.Counts = map[Status]int{
		StatusSuccess:     0,
		StatusLowAccuracy: 0,
		StatusFailed:      0,
	}
	for _, f := range s.Files {
		s.Counts[f.Status]++
	}
}
