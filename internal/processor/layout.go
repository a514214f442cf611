package processor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Output sub-directories under the output root.
const (
	TextDir    = "text"
	HOCRDir    = "hocr"
	ReportsDir = "reports"
	LogsDir    = "logs"

	SummaryFilename = "ocr_run_summary.json"
)

// Layout addresses artifacts under an output root. Artifacts are partitioned by
// kind and input stem so concurrent workers never write the same path.
type Layout struct {
	Root string
}

// NewLayout creates a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

// Ensure creates the output directories. Safe to call repeatedly.
func (l Layout) Ensure() error {
	for _, dir := range []string{TextDir, HOCRDir, ReportsDir, LogsDir} {
		if err := os.MkdirAll(filepath.Join(l.Root, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	return nil
}

func (l Layout) TextPath(stem string) string {
	return filepath.Join(l.Root, TextDir, stem+".txt")
}

func (l Layout) HOCRPath(stem string, page int) string {
	return filepath.Join(l.Root, HOCRDir, fmt.Sprintf("%s_page_%d.hocr.html", stem, page))
}

func (l Layout) ReportPath(stem string) string {
	return filepath.Join(l.Root, ReportsDir, stem+".json")
}

func (l Layout) SummaryPath() string {
	return filepath.Join(l.Root, ReportsDir, SummaryFilename)
}

func (l Layout) RunLogPath(runID string) string {
	return filepath.Join(l.Root, LogsDir, "ocr_run_"+runID+".log")
}

// Stem is the file name without directory and final extension.
func Stem(path string) string {
	base := baseName(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func baseName(path string) string {
	return filepath.Base(path)
}

// WriteJSON writes v as indented UTF-8 JSON.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}
