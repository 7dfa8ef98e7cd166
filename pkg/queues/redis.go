package queues

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key prefixes.
const (
	keyPrefixQueue      = "queue:"      // Waiting jobs (sorted set by visibility time)
	keyPrefixProcessing = "processing:" // Jobs being processed
	keyPrefixJob        = "job:"        // Job data
	keyPrefixDLQ        = "dlq:"        // Dead letter queue
)

// RedisQueue implements Queue using Redis sorted sets.
type RedisQueue struct {
	client *redis.Client
	name   string
	config Config
	closed chan struct{}
}

// NewRedisQueue creates a Redis-backed summary queue.
func NewRedisQueue(client *redis.Client, config Config) *RedisQueue {
	return &RedisQueue{
		client: client,
		name:   config.Name,
		config: config,
		closed: make(chan struct{}),
	}
}

// Name returns the queue name.
func (q *RedisQueue) Name() string {
	return q.name
}

// Enqueue adds a job to the queue.
func (q *RedisQueue) Enqueue(ctx context.Context, job SummaryJob) error {
	if job.MeetingID == "" {
		return ErrInvalidJob
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	jobID := uuid.New().String()

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	qj := &QueuedJob{
		ID:         jobID,
		Job:        jobBytes,
		RetryCount: 0,
		EnqueuedAt: job.EnqueuedAt,
	}
	qjBytes, err := json.Marshal(qj)
	if err != nil {
		return fmt.Errorf("failed to marshal queued job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.jobKey(jobID), qjBytes, q.config.RetentionPeriod)
	pipe.ZAdd(ctx, keyPrefixQueue+q.name, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: jobID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// Dequeue retrieves up to maxJobs jobs, polling until timeout when the queue
// is empty. Dequeued jobs move to the processing set under a visibility
// timeout; unacked jobs are recovered by RecoverStaleJobs.
func (q *RedisQueue) Dequeue(ctx context.Context, maxJobs int, timeout time.Duration) ([]*QueuedJob, error) {
	if maxJobs <= 0 {
		maxJobs = 1
	}

	queueKey := keyPrefixQueue + q.name
	processingKey := keyPrefixProcessing + q.name
	deadline := time.Now().Add(timeout)

	var jobs []*QueuedJob

	for time.Now().Before(deadline) && len(jobs) < maxJobs {
		result, err := q.client.ZPopMin(ctx, queueKey, 1).Result()
		if err != nil && err != redis.Nil {
			return jobs, fmt.Errorf("failed to pop from queue: %w", err)
		}
		if len(result) == 0 {
			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-ctx.Done():
				return jobs, ctx.Err()
			case <-q.closed:
				return jobs, ErrQueueClosed
			}
		}

		// Delayed jobs (retry backoff) are not visible yet; put the
		// job back and wait.
		entry := result[0]
		if entry.Score > float64(time.Now().UnixNano()) {
			q.client.ZAdd(ctx, queueKey, entry)
			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-ctx.Done():
				return jobs, ctx.Err()
			}
		}

		jobID := entry.Member.(string)

		data, err := q.client.Get(ctx, q.jobKey(jobID)).Bytes()
		if err == redis.Nil {
			// Job data expired, skip.
			continue
		}
		if err != nil {
			return jobs, fmt.Errorf("failed to get job data: %w", err)
		}

		var qj QueuedJob
		if err := json.Unmarshal(data, &qj); err != nil {
			return jobs, fmt.Errorf("failed to unmarshal job: %w", err)
		}

		qj.VisibleAfter = time.Now().Add(q.config.VisibilityTimeout)
		updated, _ := json.Marshal(qj)

		pipe := q.client.TxPipeline()
		pipe.Set(ctx, q.jobKey(jobID), updated, q.config.RetentionPeriod)
		pipe.ZAdd(ctx, processingKey, redis.Z{
			Score:  float64(qj.VisibleAfter.UnixNano()),
			Member: jobID,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return jobs, fmt.Errorf("failed to move job to processing: %w", err)
		}

		jobs = append(jobs, &qj)
	}

	return jobs, nil
}

// Ack acknowledges successful processing of a job.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyPrefixProcessing+q.name, jobID)
	pipe.Del(ctx, q.jobKey(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack reports a processing failure. The job is re-enqueued with exponential
// backoff, or dead-lettered once MaxRetries is reached.
func (q *RedisQueue) Nack(ctx context.Context, jobID string) error {
	data, err := q.client.Get(ctx, q.jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	var qj QueuedJob
	if err := json.Unmarshal(data, &qj); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	qj.RetryCount++
	if qj.RetryCount >= q.config.MaxRetries {
		return q.MoveToDeadLetter(ctx, jobID, "max retries exceeded")
	}

	qj.VisibleAfter = time.Now().Add(calculateBackoff(qj.RetryCount))
	updated, _ := json.Marshal(qj)

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyPrefixProcessing+q.name, jobID)
	pipe.Set(ctx, q.jobKey(jobID), updated, q.config.RetentionPeriod)
	pipe.ZAdd(ctx, keyPrefixQueue+q.name, redis.Z{
		Score:  float64(qj.VisibleAfter.UnixNano()),
		Member: jobID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack job: %w", err)
	}

	return nil
}

// MoveToDeadLetter moves a job to the dead letter queue with a reason.
func (q *RedisQueue) MoveToDeadLetter(ctx context.Context, jobID, reason string) error {
	data, err := q.client.Get(ctx, q.jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	dlqEntry := map[string]interface{}{
		"job":        string(data),
		"reason":     reason,
		"moved_at":   time.Now().Format(time.RFC3339),
		"queue_name": q.name,
	}
	dlqData, _ := json.Marshal(dlqEntry)

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyPrefixProcessing+q.name, jobID)
	pipe.Del(ctx, q.jobKey(jobID))
	pipe.ZAdd(ctx, keyPrefixDLQ+q.name, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: string(dlqData),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move job to DLQ: %w", err)
	}

	return nil
}

// Depth returns the number of waiting jobs.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, keyPrefixQueue+q.name).Result()
}

// RecoverStaleJobs re-enqueues jobs whose visibility timeout expired without
// an ack, dead-lettering those out of retries. Called periodically by the
// worker pool.
func (q *RedisQueue) RecoverStaleJobs(ctx context.Context) error {
	processingKey := keyPrefixProcessing + q.name
	queueKey := keyPrefixQueue + q.name

	stale, err := q.client.ZRangeByScore(ctx, processingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", float64(time.Now().UnixNano())),
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to find stale jobs: %w", err)
	}

	for _, jobID := range stale {
		data, err := q.client.Get(ctx, q.jobKey(jobID)).Bytes()
		if err == redis.Nil {
			q.client.ZRem(ctx, processingKey, jobID)
			continue
		}
		if err != nil {
			continue
		}

		var qj QueuedJob
		if err := json.Unmarshal(data, &qj); err != nil {
			continue
		}

		qj.RetryCount++
		if qj.RetryCount >= q.config.MaxRetries {
			q.MoveToDeadLetter(ctx, jobID, "visibility timeout exceeded")
			continue
		}

		updated, _ := json.Marshal(qj)
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, processingKey, jobID)
		pipe.Set(ctx, q.jobKey(jobID), updated, q.config.RetentionPeriod)
		pipe.ZAdd(ctx, queueKey, redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: jobID,
		})
		pipe.Exec(ctx)
	}

	return nil
}

// Close marks the queue closed; blocked Dequeue calls return ErrQueueClosed.
func (q *RedisQueue) Close() error {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
	return nil
}

func (q *RedisQueue) jobKey(jobID string) string {
	return keyPrefixJob + q.name + ":" + jobID
}

// Verify interface compliance
var _ Queue = (*RedisQueue)(nil)
