// Package queues provides the Redis-backed job queue feeding the summary
// pipeline. Jobs survive process restarts, are retried with backoff on
// failure, and land in a dead letter queue when retries are exhausted.
package queues

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Queue errors.
var (
	ErrJobNotFound = errors.New("job not found")
	ErrInvalidJob  = errors.New("invalid job")
	ErrQueueClosed = errors.New("queue is closed")
)

// SummaryJob asks the pipeline to summarize one meeting's transcript.
type SummaryJob struct {
	MeetingID     string    `json:"meeting_id"`
	TranscriptURL string    `json:"transcript_url"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// QueuedJob wraps a job with queue metadata.
type QueuedJob struct {
	ID           string          `json:"id"`
	Job          json.RawMessage `json:"job"`
	RetryCount   int             `json:"retry_count"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAfter time.Time       `json:"visible_after,omitempty"`
}

// ParseJob decodes the wrapped summary job.
func (qj *QueuedJob) ParseJob() (*SummaryJob, error) {
	var job SummaryJob
	if err := json.Unmarshal(qj.Job, &job); err != nil {
		return nil, err
	}
	if job.MeetingID == "" {
		return nil, ErrInvalidJob
	}
	return &job, nil
}

// Queue is the summary job queue.
type Queue interface {
	// Name returns the queue name.
	Name() string

	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job SummaryJob) error

	// Dequeue retrieves up to maxJobs jobs, blocking up to timeout.
	Dequeue(ctx context.Context, maxJobs int, timeout time.Duration) ([]*QueuedJob, error)

	// Ack acknowledges successful processing of a job.
	Ack(ctx context.Context, jobID string) error

	// Nack reports a processing failure; the job is retried with backoff
	// or dead-lettered once retries are exhausted.
	Nack(ctx context.Context, jobID string) error

	// MoveToDeadLetter moves a job to the dead letter queue.
	MoveToDeadLetter(ctx context.Context, jobID, reason string) error

	// Depth returns the number of jobs waiting.
	Depth(ctx context.Context) (int64, error)

	// Close releases queue resources.
	Close() error
}

// Config configures queue behavior.
type Config struct {
	Name              string        `yaml:"name"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetentionPeriod   time.Duration `yaml:"retention_period"`
}

// DefaultConfig returns the summary queue defaults. The generous visibility
// timeout covers a transcript fetch plus one LLM call.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		VisibilityTimeout: 300 * time.Second,
		MaxRetries:        3,
		RetentionPeriod:   24 * time.Hour,
	}
}

// Enqueuer adapts a Queue to the orchestrator's enqueue contract.
type Enqueuer struct {
	Queue Queue
}

// EnqueueSummary queues a summarize job for the meeting's transcript.
func (e Enqueuer) EnqueueSummary(ctx context.Context, meetingID, transcriptURL string) error {
	return e.Queue.Enqueue(ctx, SummaryJob{
		MeetingID:     meetingID,
		TranscriptURL: transcriptURL,
		EnqueuedAt:    time.Now(),
	})
}

// calculateBackoff returns the retry delay: 1s, 2s, 4s, ... capped at 5m.
func calculateBackoff(retryCount int) time.Duration {
	backoff := time.Second * (1 << uint(retryCount))
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	return backoff
}
