/**
 * Resource sampling
 *
 * Process memory and CPU samples attached to per-page and per-file metrics.
 * Sampling is a capability chosen at startup: ProcessSampler when the
 * process table is readable, Nop otherwise.
 */

package metrics

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
)

// Sampler produces a free-form snapshot of resource usage.
type Sampler interface {
	Sample() map[string]interface{}
}

// ProcessSampler samples the current process through gopsutil.
type ProcessSampler struct {
	mu   sync.Mutex
	proc *process.Process
}

// NewProcessSampler opens the current process.
func NewProcessSampler() (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	// Prime the CPU counter so the first Sample reports a delta.
	_, _ = proc.Percent(0)
	return &ProcessSampler{proc: proc}, nil
}

// Sample returns rss_bytes, cpu_percent and timestamp_ms. Fields that cannot be
// read are omitted.
func (s *ProcessSampler) Sample() map[string]interface{} {
	sample := map[string]interface{}{
		"timestamp_ms": time.Now().UnixMilli(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if mem, err := s.proc.MemoryInfo(); err == nil {
		sample["rss_bytes"] = mem.RSS
	}
	if cpu, err := s.proc.Percent(0); err == nil {
		sample["cpu_percent"] = cpu
	}
	return sample
}

// Nop records only a timestamp.
type Nop struct{}

// Sample implements Sampler.
func (Nop) Sample() map[string]interface{} {
	return map[string]interface{}{"timestamp_ms": time.Now().UnixMilli()}
}

// Default returns a ProcessSampler, or Nop when the process cannot be inspected.
func Default() Sampler {
	s, err := NewProcessSampler()
	if err != nil {
		logging.NewLogger("Metrics").Warn("Resource sampling unavailable, using no-op sampler", "error", err)
		return Nop{}
	}
	return s
}
