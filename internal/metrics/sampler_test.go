package metrics

import "testing"

func TestNopSample(t *testing.T) {
	s := Nop{}.Sample()
	if _, ok := s["timestamp_ms"]; !ok {
		t.Fatalf("expected timestamp_ms in %v", s)
	}
	if len(s) != 1 {
		t.Errorf("expected only a timestamp, got %v", s)
	}
}

func TestProcessSample(t *testing.T) {
	s, err := NewProcessSampler()
	if err != nil {
		t.Skipf("process table not readable: %v", err)
	}

	sample := s.Sample()
	if _, ok := sample["timestamp_ms"]; !ok {
		t.Errorf("expected timestamp_ms in %v", sample)
	}
	if rss, ok := sample["rss_bytes"].(uint64); ok && rss == 0 {
		t.Errorf("rss_bytes = 0")
	}
}

func TestDefaultNeverNil(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
