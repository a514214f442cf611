/**
 * Queue Consumer for the OCR worker
 *
 * Consumes batch jobs from Redis through Asynq. Each task names an input path
 * and an output root; the worker runs the full pipeline over it and publishes
 * job, file and run events through the EventPublisher.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
)

// TaskTypeBatch is the Asynq task type for OCR batch jobs.
const TaskTypeBatch = "ocr:batch"

// BatchPayload describes one batch job. Zero-valued overrides fall back to the
// worker configuration.
type BatchPayload struct {
	JobID     string   `json:"jobId"`
	Input     string   `json:"input"`
	Output    string   `json:"output,omitempty"`
	Recursive bool     `json:"recursive,omitempty"`
	Language  string   `json:"lang,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Workers   int      `json:"workers,omitempty"`
}

// ParsePayload decodes and validates a task payload, assigning a job ID when absent.
func ParsePayload(data []byte) (*BatchPayload, error) {
	var p BatchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job data: %w", err)
	}
	if p.Input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if p.Threshold != nil && (*p.Threshold < 0 || *p.Threshold > 1) {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", *p.Threshold)
	}
	if p.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", p.Workers)
	}
	if p.JobID == "" {
		p.JobID = uuid.New().String()
	}
	return &p, nil
}

// NewBatchTask encodes payload as an Asynq task.
func NewBatchTask(p *BatchPayload) (*asynq.Task, error) {
	if p.Input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job data: %w", err)
	}
	return asynq.NewTask(TaskTypeBatch, data), nil
}

// Enqueue submits a batch job without starting a consumer.
func Enqueue(ctx context.Context, redisURL, queueName string, p *BatchPayload) (*asynq.TaskInfo, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	task, err := NewBatchTask(p)
	if err != nil {
		return nil, err
	}
	return client.EnqueueContext(ctx, task, asynq.Queue(queueName), asynq.MaxRetry(3))
}

// BatchRunner runs one batch job.
type BatchRunner interface {
	RunBatch(ctx context.Context, p *BatchPayload) (*processor.RunSummary, error)
}

// Consumer handles job consumption from Redis queue
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner BatchRunner
	events *EventPublisher
	config *ConsumerConfig
	logger *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Runner            BatchRunner
	Events            *EventPublisher // optional
	ProcessingTimeout time.Duration   // 0 means 30 minutes
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("Consumer")
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 5s, 10s, 20s, capped at 60s
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
		},
	)

	c := &Consumer{
		server: server,
		mux:    asynq.NewServeMux(),
		runner: cfg.Runner,
		events: cfg.Events,
		config: cfg,
		logger: logger,
	}
	c.mux.HandleFunc(TaskTypeBatch, c.handleBatch)

	return c, nil
}

// Start starts the queue consumer in the background.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

func (c *Consumer) handleBatch(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	p, err := ParsePayload(task.Payload())
	if err != nil {
		// Malformed payloads never succeed on retry.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log := c.logger.With("job_id", p.JobID)
	log.Info("Processing batch job", "input", p.Input, "output", p.Output, "recursive", p.Recursive)
	c.jobStatus(ctx, p.JobID, JobProcessing, nil)

	timeout := c.config.ProcessingTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	summary, err := c.runner.RunBatch(runCtx, p)
	duration := time.Since(startTime)
	if err != nil {
		log.Error("Batch job failed", "duration", duration, "error", err)
		c.jobStatus(ctx, p.JobID, JobFailed, map[string]interface{}{
			"error":            err.Error(),
			"processingTimeMs": duration.Milliseconds(),
		})
		return fmt.Errorf("batch processing failed: %w", err)
	}

	result := map[string]interface{}{"processingTimeMs": duration.Milliseconds(), "files": 0}
	if summary != nil {
		result["runId"] = summary.RunID
		result["files"] = len(summary.Files)
		result["counts"] = summary.Counts
	}
	log.Info("Batch job completed", "duration", duration, "files", result["files"])
	c.jobStatus(ctx, p.JobID, JobCompleted, result)
	return nil
}

func (c *Consumer) jobStatus(ctx context.Context, jobID string, status JobStatus, result map[string]interface{}) {
	if c.events == nil {
		return
	}
	if err := c.events.JobStatus(ctx, jobID, status, result); err != nil {
		c.logger.Warn("Failed to publish job status", "job_id", jobID, "status", status, "error", err)
	}
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
	}
}
