package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/storycove/mediagen/internal/models"
)

const (
	QueueMediaGeneration = "queue:media_generation"

	delayedSet   = "queue:media_generation:delayed"
	activeKey    = "queue:media_generation:active"
	completedKey = "queue:media_generation:completed"
	failedKey    = "queue:media_generation:failed"

	// Retry policy: MaxAttempts total runs per job, exponential backoff
	// starting at baseRetryDelay between them.
	MaxAttempts    = 3
	baseRetryDelay = 2 * time.Second

	promoteInterval = 1 * time.Second
)

// Queue is the durable broker mediating job handoff between the
// admission path and the worker pool. Multiple worker processes can
// share one broker; Redis list semantics deliver each job to exactly
// one consumer.
type Queue struct {
	client *redis.Client
}

// MediaJob is the transient unit of work. It lives only in the broker
// until claimed; all durable state is in the story row and cost ledger.
type MediaJob struct {
	ID        uuid.UUID        `json:"id"`
	StoryID   string           `json:"story_id"`
	MediaType models.MediaType `json:"media_type"`
	Content   string           `json:"content"`
	Title     string           `json:"title"`
	Theme     string           `json:"theme,omitempty"`
	Attempt   int              `json:"attempt"`
	CreatedAt time.Time        `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueMediaJob persists a new job to the broker. The first run is
// attempt 1; retries re-enter through ScheduleRetry.
func (q *Queue) EnqueueMediaJob(ctx context.Context, job *MediaJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Attempt == 0 {
		job.Attempt = 1
	}
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, QueueMediaGeneration, data).Err()
}

// Dequeue blocks up to timeout waiting for a job. Returns (nil, nil)
// when no job is available.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*MediaJob, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueMediaGeneration).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job MediaJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// RetryDelay returns the backoff applied after the given attempt
// fails: 2s after the first, doubling each time.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return baseRetryDelay * (1 << (attempt - 1))
}

// ScheduleRetry re-queues a failed job with exponential backoff,
// bumping its attempt counter. Returns the applied delay.
func (q *Queue) ScheduleRetry(ctx context.Context, job *MediaJob) (time.Duration, error) {
	delay := RetryDelay(job.Attempt)
	job.Attempt++

	data, err := json.Marshal(job)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.ZAdd(ctx, delayedSet, &redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("failed to schedule retry: %w", err)
	}

	return delay, nil
}

// StartPromoter moves due delayed jobs back onto the main list until
// ctx is cancelled. Run once per worker process; the ZREM guard keeps
// concurrent promoters from double-delivering.
func (q *Queue) StartPromoter(ctx context.Context) {
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.promoteDue(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("queue: failed to promote delayed jobs")
			}
		}
	}
}

func (q *Queue) promoteDue(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())

	members, err := q.client.ZRangeByScore(ctx, delayedSet, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 10,
	}).Result()
	if err != nil {
		return err
	}

	for _, member := range members {
		// Only the promoter that wins the ZREM pushes the job.
		removed, err := q.client.ZRem(ctx, delayedSet, member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.RPush(ctx, QueueMediaGeneration, member).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Counter updates backing the aggregate stats. Called by the worker
// around job execution.

func (q *Queue) MarkActive(ctx context.Context) {
	q.client.Incr(ctx, activeKey)
}

func (q *Queue) MarkCompleted(ctx context.Context) {
	q.client.Decr(ctx, activeKey)
	q.client.Incr(ctx, completedKey)
}

func (q *Queue) MarkFailed(ctx context.Context) {
	q.client.Decr(ctx, activeKey)
	q.client.Incr(ctx, failedKey)
}

// MarkRetried releases the active slot without counting a terminal
// outcome; the retry will claim its own slot when it runs.
func (q *Queue) MarkRetried(ctx context.Context) {
	q.client.Decr(ctx, activeKey)
}

// Stats returns aggregate queue-depth counts for operational tooling.
func (q *Queue) Stats(ctx context.Context) (*models.QueueStats, error) {
	waiting, err := q.client.LLen(ctx, QueueMediaGeneration).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}

	delayed, err := q.client.ZCard(ctx, delayedSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read delayed set: %w", err)
	}

	stats := &models.QueueStats{Waiting: waiting + delayed}

	for key, dst := range map[string]*int64{
		activeKey:    &stats.Active,
		completedKey: &stats.Completed,
		failedKey:    &stats.Failed,
	} {
		val, err := q.client.Get(ctx, key).Int64()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("failed to read counter %s: %w", key, err)
		}
		*dst = val
	}

	// The active gauge can drift below zero when its key is reset while
	// jobs are in flight, or stick above it after a worker crash between
	// claim and terminal mark. Clamp reads so tooling never sees a
	// negative in-flight count.
	stats.Active = nonNegative(stats.Active)

	return stats, nil
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
