// Package queue provides the durable FIFO work queue that feeds session
// tasks to the worker loop. Tasks are JSON records on a Redis list;
// producers push at one end and workers block-pop from the other, so
// ordering is strict FIFO within the single queue. The queue performs
// no deduplication — duplicate pushes are resolved by the consumer's
// completion check, not here.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list session tasks are enqueued on.
const DefaultKey = "queue:session_tasks"

// Task is the unit of work a producer enqueues. It is immutable once
// created and carries no progress state of its own; all durable
// progress lives in the state store.
type Task struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
}

// Queue is a Redis-backed FIFO task queue.
type Queue struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// New creates a Queue on the given list key. An empty key selects
// DefaultKey.
func New(client redis.UniversalClient, key string, logger *slog.Logger) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{client: client, key: key, logger: logger}
}

// Push appends a task to the tail of the queue.
func (q *Queue) Push(ctx context.Context, task Task) error {
	if task.SessionID == "" || task.Topic == "" {
		return fmt.Errorf("invalid task: session id and topic are required")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task for session %s: %w", task.SessionID, err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task for session %s: %w", task.SessionID, err)
	}
	q.logger.Debug("task enqueued",
		"session_id", task.SessionID,
		"topic", task.Topic,
		"queue", q.key)
	return nil
}

// Pop removes and returns the head of the queue, blocking up to
// timeout. It returns ok=false when the queue stayed empty for the
// whole timeout, which gives the caller a bounded suspension point to
// check its stop condition. Malformed entries are logged and reported
// as an empty pop rather than an error, so one bad payload cannot wedge
// a consumer.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Task, bool, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("failed to pop task: %w", err)
	}
	// BRPop returns [key, value].
	if len(result) != 2 {
		return Task{}, false, fmt.Errorf("unexpected BRPOP reply of length %d", len(result))
	}

	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		q.logger.Error("discarding malformed task payload",
			"queue", q.key,
			"payload", result[1],
			"error", err)
		return Task{}, false, nil
	}
	if task.SessionID == "" || task.Topic == "" {
		q.logger.Warn("discarding task with missing fields",
			"queue", q.key,
			"payload", result[1])
		return Task{}, false, nil
	}

	q.logger.Debug("task dequeued",
		"session_id", task.SessionID,
		"topic", task.Topic,
		"queue", q.key)
	return task, true, nil
}

// Len returns the current queue depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}
