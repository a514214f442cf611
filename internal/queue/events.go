/**
 * Redis event publisher for the OCR worker
 *
 * Tracks job state in Redis sets and hashes next to the queue and publishes
 * job, file and run events on <queue>:events for live progress consumers.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
)

// JobStatus is the lifecycle state of a queued batch job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Event is the message published on the events channel.
type Event struct {
	Event     string                 `json:"event"`
	JobID     string                 `json:"jobId,omitempty"`
	RunID     string                 `json:"runId,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventPublisher publishes pipeline events to Redis.
type EventPublisher struct {
	client    *redis.Client
	queueName string
}

// NewEventPublisher connects to Redis.
func NewEventPublisher(ctx context.Context, redisURL, queueName string) (*EventPublisher, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if queueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &EventPublisher{client: client, queueName: queueName}, nil
}

func (e *EventPublisher) key(suffix string) string {
	return fmt.Sprintf("%s:%s", e.queueName, suffix)
}

// EventsChannel is the pub/sub channel events are published on.
func (e *EventPublisher) EventsChannel() string {
	return e.key("events")
}

// JobStatus moves jobID between the processing, completed and failed sets,
// stores result or error data, and publishes a job:<status> event.
func (e *EventPublisher) JobStatus(ctx context.Context, jobID string, status JobStatus, data map[string]interface{}) error {
	var encoded []byte
	if data != nil {
		var err error
		if encoded, err = json.Marshal(data); err != nil {
			return fmt.Errorf("failed to marshal job data: %w", err)
		}
	}

	pipe := e.client.TxPipeline()
	switch status {
	case JobProcessing:
		pipe.SAdd(ctx, e.key("processing"), jobID)
	case JobCompleted:
		pipe.SRem(ctx, e.key("processing"), jobID)
		pipe.SAdd(ctx, e.key("completed"), jobID)
		if encoded != nil {
			pipe.HSet(ctx, e.key("results"), jobID, encoded)
		}
	case JobFailed:
		pipe.SRem(ctx, e.key("processing"), jobID)
		pipe.SAdd(ctx, e.key("failed"), jobID)
		if encoded != nil {
			pipe.HSet(ctx, e.key("errors"), jobID, encoded)
		}
	default:
		return fmt.Errorf("unknown job status %q", status)
	}

	payload, err := encodeEvent(Event{Event: "job:" + string(status), JobID: jobID, Data: data})
	if err != nil {
		return err
	}
	pipe.Publish(ctx, e.EventsChannel(), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return nil
}

// FileCompleted publishes a file:<status> event.
func (e *EventPublisher) FileCompleted(ctx context.Context, runID string, result *processor.FileResult) error {
	payload, err := encodeEvent(fileEvent(runID, result))
	if err != nil {
		return err
	}
	return e.client.Publish(ctx, e.EventsChannel(), payload).Err()
}

// RunCompleted publishes a run:completed event with the status counts.
func (e *EventPublisher) RunCompleted(ctx context.Context, summary *processor.RunSummary) error {
	payload, err := encodeEvent(runEvent(summary))
	if err != nil {
		return err
	}
	return e.client.Publish(ctx, e.EventsChannel(), payload).Err()
}

func fileEvent(runID string, result *processor.FileResult) Event {
	data := map[string]interface{}{
		"filename":   result.OriginalFilename,
		"fileType":   result.FileType,
		"pageCount":  result.PageCount,
		"durationMs": int64(result.DurationSeconds * 1000),
		"errors":     len(result.Errors),
	}
	if result.Accuracy != nil {
		data["accuracy"] = *result.Accuracy
	}
	return Event{Event: "file:" + string(result.Status), RunID: runID, Data: data}
}

func runEvent(summary *processor.RunSummary) Event {
	return Event{
		Event: "run:completed",
		RunID: summary.RunID,
		Data: map[string]interface{}{
			"files":           len(summary.Files),
			"counts":          summary.Counts,
			"durationSeconds": summary.DurationSeconds,
		},
	}
}

func encodeEvent(ev Event) ([]byte, error) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", ev.Event, err)
	}
	return data, nil
}

// GetStats returns job counts per state.
func (e *EventPublisher) GetStats(ctx context.Context) (map[string]int64, error) {
	stats := map[string]int64{}
	for _, state := range []JobStatus{JobProcessing, JobCompleted, JobFailed} {
		n, err := e.client.SCard(ctx, e.key(string(state))).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s count: %w", state, err)
		}
		stats[string(state)] = n
	}
	return stats, nil
}

// Close closes the Redis client.
func (e *EventPublisher) Close() error {
	return e.client.Close()
}
