package processor

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	ocrerrors "github.com/adverant/nexus/fileprocess-ocr/internal/errors"
	"github.com/adverant/nexus/fileprocess-ocr/internal/input"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

func TestProcessFileFailedPageKeepsOrder(t *testing.T) {
	rec := &fakeRecognizer{fail: func(page, _ int) error {
		if page == 2 {
			return errors.New("engine crashed")
		}
		return nil
	}}
	p, layout := newTestProcessor(t, &fakeRasterizer{pages: map[string]int{"scan.pdf": 3}}, rec)

	result, err := p.ProcessFile(context.Background(), "scan.pdf")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if result.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", result.PageCount)
	}
	if len(result.LayoutPaths) != 2 {
		t.Fatalf("LayoutPaths = %v, want 2 entries", result.LayoutPaths)
	}
	for _, path := range result.LayoutPaths {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("layout artifact %s missing: %v", path, err)
		}
	}

	want := "=== [PAGE 1] ===\ntext1\n\n=== [PAGE 2] ===\n\n=== [PAGE 3] ===\ntext3\n"
	if result.TextOutputPath == nil {
		t.Fatal("TextOutputPath is nil")
	}
	if got := readFile(t, *result.TextOutputPath); got != want {
		t.Errorf("combined text = %q, want %q", got, want)
	}
	if *result.TextOutputPath != layout.TextPath("scan") {
		t.Errorf("TextOutputPath = %s", *result.TextOutputPath)
	}
	if result.ReportPath != layout.ReportPath("scan") {
		t.Errorf("ReportPath = %s, want %s", result.ReportPath, layout.ReportPath("scan"))
	}
	if got := result.Metrics["declared_pages"]; got != 3 {
		t.Errorf("declared_pages = %v, want 3", got)
	}

	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "page 2 attempt 3: engine crashed") {
			found = true
		}
	}
	if !found {
		t.Errorf("errors %v do not mention page 2", result.Errors)
	}

	if rec.attempts[2] != 3 {
		t.Errorf("page 2 attempts = %d, want 3", rec.attempts[2])
	}
	if result.Accuracy == nil || math.Abs(*result.Accuracy-2.0/3.0) > 1e-9 {
		t.Errorf("Accuracy = %v, want 0.667", result.Accuracy)
	}
	if result.Status != StatusLowAccuracy {
		t.Errorf("Status = %s, want low_accuracy", result.Status)
	}
}

func TestProcessFileUnsupported(t *testing.T) {
	rec := &fakeRecognizer{}
	p, layout := newTestProcessor(t, &fakeRasterizer{}, rec)

	result, err := p.ProcessFile(context.Background(), "notes.docx")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if result.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", result.Status)
	}
	if result.FileType != input.FileTypeUnsupported {
		t.Errorf("FileType = %s", result.FileType)
	}
	if result.PageCount != 0 {
		t.Errorf("PageCount = %d, want 0", result.PageCount)
	}
	if result.TextOutputPath != nil {
		t.Errorf("TextOutputPath = %s, want nil", *result.TextOutputPath)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want exactly one", result.Errors)
	}
	if result.Accuracy != nil {
		t.Errorf("Accuracy = %v, want nil", *result.Accuracy)
	}
	if len(rec.calls) != 0 {
		t.Errorf("recognizer called %d times", len(rec.calls))
	}

	var report map[string]interface{}
	if err := json.Unmarshal([]byte(readFile(t, layout.ReportPath("notes"))), &report); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if report["text_output_path"] != nil {
		t.Errorf("report text_output_path = %v, want null", report["text_output_path"])
	}
	if report["status"] != "failed" {
		t.Errorf("report status = %v", report["status"])
	}
}

func TestProcessFileLowAccuracy(t *testing.T) {
	rec := &fakeRecognizer{confidence: 80}
	p, _ := newTestProcessor(t, &fakeRasterizer{}, rec)

	result, err := p.ProcessFile(context.Background(), "photo.png")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if result.Status != StatusLowAccuracy {
		t.Errorf("Status = %s, want low_accuracy", result.Status)
	}
	if result.Accuracy == nil || math.Abs(*result.Accuracy-0.80) > 1e-9 {
		t.Errorf("Accuracy = %v, want 0.80", result.Accuracy)
	}
	if result.TextOutputPath == nil {
		t.Fatal("text output not written")
	}
	if got := readFile(t, *result.TextOutputPath); !strings.Contains(got, "text1") {
		t.Errorf("combined text = %q", got)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "below threshold") {
		t.Errorf("Errors = %v", result.Errors)
	}
}

func TestProcessFileSuccess(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeRasterizer{}, &fakeRecognizer{})

	result, err := p.ProcessFile(context.Background(), "photo.jpg")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("Status = %s, want success", result.Status)
	}
	if result.Accuracy == nil || *result.Accuracy != 1.0 {
		t.Errorf("Accuracy = %v, want 1.0", result.Accuracy)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v", result.Errors)
	}
	if result.Metrics["provider"] != "fake" {
		t.Errorf("provider = %v", result.Metrics["provider"])
	}
	if _, ok := result.Metrics["timestamp_ms"]; !ok {
		t.Errorf("missing resource sample in metrics %v", result.Metrics)
	}
}

func TestProcessFileRasterizeFailure(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeRasterizer{err: errors.New("corrupt document")}, &fakeRecognizer{})

	result, err := p.ProcessFile(context.Background(), "broken.pdf")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", result.Status)
	}
	if result.PageCount != 0 || result.Accuracy != nil {
		t.Errorf("PageCount = %d, Accuracy = %v", result.PageCount, result.Accuracy)
	}
	if result.TextOutputPath == nil {
		t.Fatal("empty text artifact not written")
	}
	if got := readFile(t, *result.TextOutputPath); got != "" {
		t.Errorf("text = %q, want empty", got)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "corrupt document") {
		t.Errorf("Errors = %v", result.Errors)
	}
}

func TestProcessFileOutputFailure(t *testing.T) {
	// Layout never ensured, so artifact writes fail.
	p, err := NewProcessor(&ProcessorConfig{
		Layout:            NewLayout(t.TempDir() + "/missing"),
		Rasterizer:        &fakeRasterizer{},
		Recognizer:        &fakeRecognizer{},
		AccuracyThreshold: 0.95,
		MaxSide:           2400,
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	_, err = p.ProcessFile(context.Background(), "photo.png")
	if err == nil {
		t.Fatal("expected output error")
	}
	if code := ocrerrors.CodeOf(err); code != ocrerrors.ErrorOutputFailed {
		t.Errorf("CodeOf() = %s, want OUTPUT_FAILED", code)
	}
}

func TestProcessFileIdempotent(t *testing.T) {
	ras := &fakeRasterizer{pages: map[string]int{"book.pdf": 2}}
	p, _ := newTestProcessor(t, ras, &fakeRecognizer{})

	first, err := p.ProcessFile(context.Background(), "book.pdf")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	firstText := readFile(t, *first.TextOutputPath)

	second, err := p.ProcessFile(context.Background(), "book.pdf")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if first.Status != second.Status || firstText != readFile(t, *second.TextOutputPath) {
		t.Errorf("re-run changed outcome")
	}
}

func TestNewProcessorValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *ProcessorConfig
	}{
		{"nil config", nil},
		{"no recognizer", &ProcessorConfig{Layout: NewLayout("out"), Rasterizer: &fakeRasterizer{}}},
		{"no rasterizer", &ProcessorConfig{Layout: NewLayout("out"), Recognizer: &fakeRecognizer{}}},
		{"no root", &ProcessorConfig{Rasterizer: &fakeRasterizer{}, Recognizer: &fakeRecognizer{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProcessor(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCombineText(t *testing.T) {
	outcomes := []*PageOutcome{
		{Index: 1, Status: StatusSuccess, Text: "a\nb"},
		{Index: 2, Status: StatusFailed},
		{Index: 3, Status: StatusSuccess, Text: ""},
		{Index: 4, Status: StatusSuccess, Text: "d"},
	}
	got := CombineText(outcomes)
	if n := strings.Count(got, "=== [PAGE "); n != 4 {
		t.Errorf("marker count = %d, want 4", n)
	}
	for i, marker := range []string{"[PAGE 1]", "[PAGE 2]", "[PAGE 3]", "[PAGE 4]"} {
		if idx := strings.Index(got, marker); idx < 0 {
			t.Errorf("marker %d missing", i+1)
		}
	}
	if !(strings.Index(got, "[PAGE 1]") < strings.Index(got, "[PAGE 2]") &&
		strings.Index(got, "[PAGE 2]") < strings.Index(got, "[PAGE 3]") &&
		strings.Index(got, "[PAGE 3]") < strings.Index(got, "[PAGE 4]")) {
		t.Errorf("markers out of order: %q", got)
	}
	if CombineText(nil) != "" {
		t.Errorf("CombineText(nil) not empty")
	}
}

func TestMeanAccuracy(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []*PageOutcome
		want     *float64
	}{
		{"no pages", nil, nil},
		{"all success", []*PageOutcome{
			{Status: StatusSuccess, Confidence: 0.9},
			{Status: StatusSuccess, Confidence: 0.7},
		}, ptr(0.8)},
		{"failed counts as zero", []*PageOutcome{
			{Status: StatusSuccess, Confidence: 0.9},
			{Status: StatusFailed, Confidence: 0.5},
		}, ptr(0.45)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MeanAccuracy(tt.outcomes)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("MeanAccuracy() = %v, want nil", *got)
			case tt.want != nil && (got == nil || math.Abs(*got-*tt.want) > 1e-9):
				t.Errorf("MeanAccuracy() = %v, want %v", got, *tt.want)
			}
		})
	}
}

func ptr(f float64) *float64 { return &f }

func TestProcessFileCancelledRun(t *testing.T) {
	rec := &fakeRecognizer{}
	p, _ := newTestProcessor(t, &fakeRasterizer{pages: map[string]int{"scan.pdf": 2}}, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := p.ProcessFile(ctx, "scan.pdf")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	want := []string{
		"page 1 not attempted: context canceled",
		"page 2 not attempted: context canceled",
	}
	if len(result.Errors) < len(want) {
		t.Fatalf("Errors = %v", result.Errors)
	}
	for i, w := range want {
		if result.Errors[i] != w {
			t.Errorf("Errors[%d] = %q, want %q", i, result.Errors[i], w)
		}
	}
	if len(rec.calls) != 0 {
		t.Errorf("recognizer called %d times after cancellation", len(rec.calls))
	}
}
