package queue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/adverant/nexus/fileprocess-ocr/internal/config"
	"github.com/adverant/nexus/fileprocess-ocr/internal/input"
	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"minimal", `{"input":"/data/scans"}`, false},
		{"full", `{"jobId":"j1","input":"/data","output":"/out","recursive":true,"lang":"eng","threshold":0.9,"workers":2}`, false},
		{"missing input", `{"output":"/out"}`, true},
		{"threshold out of range", `{"input":"/data","threshold":1.5}`, true},
		{"negative workers", `{"input":"/data","workers":-1}`, true},
		{"not json", `input=/data`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.JobID == "" {
				t.Error("JobID not assigned")
			}
		})
	}
}

func TestNewBatchTaskRoundTrip(t *testing.T) {
	threshold := 0.8
	task, err := NewBatchTask(&BatchPayload{JobID: "j1", Input: "/data", Threshold: &threshold})
	if err != nil {
		t.Fatalf("NewBatchTask() error = %v", err)
	}
	if task.Type() != TaskTypeBatch {
		t.Errorf("Type() = %s", task.Type())
	}
	p, err := ParsePayload(task.Payload())
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if p.JobID != "j1" || p.Input != "/data" || p.Threshold == nil || *p.Threshold != 0.8 {
		t.Errorf("payload = %+v", p)
	}

	if _, err := NewBatchTask(&BatchPayload{}); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestJobConfig(t *testing.T) {
	base, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	base.Language = "eng"

	threshold := 0.5
	cfg, err := jobConfig(base, &BatchPayload{Input: "/in", Output: "/out", Threshold: &threshold, Workers: 3})
	if err != nil {
		t.Fatalf("jobConfig() error = %v", err)
	}
	if cfg.OutputDir != "/out" || cfg.AccuracyThreshold != 0.5 || cfg.Workers != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if base.OutputDir == "/out" {
		t.Error("base configuration mutated")
	}

	if cfg, err := jobConfig(base, &BatchPayload{Input: "/in", Language: "chi_sim"}); err != nil || cfg.Language != "chi_sim" {
		t.Errorf("language override: cfg = %+v, err = %v", cfg, err)
	}
	if _, err := jobConfig(base, &BatchPayload{Input: "/in", Workers: 500}); err == nil {
		t.Error("expected validation error for workers")
	}
}

func TestRunBatchRejectsLanguageWithoutFactory(t *testing.T) {
	base, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	base.Language = "eng"
	base.OutputDir = t.TempDir()

	r := &PipelineRunner{Config: base}
	if _, err := r.RunBatch(context.Background(), &BatchPayload{Input: t.TempDir(), Language: "deu"}); err == nil {
		t.Error("expected error for language override without RecognizerFor")
	}
}

func TestEncodeEvents(t *testing.T) {
	acc := 0.97
	result := &processor.FileResult{
		OriginalFilename: "scan.pdf",
		FileType:         input.FileTypePDF,
		Status:           processor.StatusSuccess,
		Accuracy:         &acc,
		PageCount:        3,
		DurationSeconds:  1.5,
		Errors:           []string{},
	}

	data, err := encodeEvent(fileEvent("run-1", result))
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	var ev map[string]interface{}
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("event is not JSON: %v", err)
	}
	if ev["event"] != "file:success" || ev["runId"] != "run-1" || ev["timestamp"] == "" {
		t.Errorf("event = %v", ev)
	}
	payload := ev["data"].(map[string]interface{})
	if payload["accuracy"] != 0.97 || payload["durationMs"] != float64(1500) {
		t.Errorf("data = %v", payload)
	}

	summary := &processor.RunSummary{RunID: "run-1", Files: []*processor.FileResult{result}}
	summary.Tally()
	data, err = encodeEvent(runEvent(summary))
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	if !strings.Contains(string(data), `"event":"run:completed"`) || !strings.Contains(string(data), `"success":1`) {
		t.Errorf("run event = %s", data)
	}
}
