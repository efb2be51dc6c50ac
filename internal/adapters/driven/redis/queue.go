package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

const (
	// Stream names
	taskStream = "shiur:tasks"
	taskGroup  = "shiur:workers"

	// Key prefixes
	taskKeyPrefix = "shiur:task:"

	// taskTTL bounds how long task bodies are kept for ack/nack
	// bookkeeping.
	taskTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams with a consumer
// group. Task bodies live in plain keys; the stream carries IDs.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a new Redis-backed task queue. The consumerName
// should be unique per worker instance (e.g. hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("worker-%d", time.Now().UnixNano())
	}

	q := &Queue{client: client, consumerName: consumerName}

	// Create consumer group if it doesn't exist
	ctx := context.Background()
	err := q.client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	return q, nil
}

// Enqueue adds a task to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]interface{}{
			"task_id":  task.ID,
			"type":     string(task.Type),
			"priority": task.Priority,
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Dequeue retrieves the next available task, waiting up to timeout.
// Returns nil when no task arrives in time.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		// Invalid message, acknowledge and skip
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		return nil, nil
	}

	raw, err := q.client.Get(ctx, taskKeyPrefix+taskID).Result()
	if errors.Is(err, redis.Nil) {
		// Task body expired, acknowledge and skip
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task data: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		return nil, nil
	}

	task.Status = domain.TaskStatusProcessing
	task.Attempts++
	task.UpdatedAt = time.Now()
	taskData, _ := json.Marshal(task)

	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)
	pipe.Set(ctx, taskKeyPrefix+task.ID+":msg", msg.ID, taskTTL)
	pipe.Exec(ctx)

	return &task, nil
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	msgID, err := q.client.Get(ctx, taskKeyPrefix+taskID+":msg").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}
	pipe.Del(ctx, taskKeyPrefix+taskID, taskKeyPrefix+taskID+":msg")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Nack marks a task as failed. Tasks over their attempt budget are
// dropped; others are re-enqueued.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	raw, err := q.client.Get(ctx, taskKeyPrefix+taskID).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get task data: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return fmt.Errorf("failed to decode task: %w", err)
	}

	// Clear the current delivery either way.
	if err := q.Ack(ctx, taskID); err != nil {
		return err
	}

	task.Error = reason
	task.UpdatedAt = time.Now()
	if task.MaxAttempts > 0 && task.Attempts >= task.MaxAttempts {
		task.Status = domain.TaskStatusFailed
		taskData, _ := json.Marshal(task)
		return q.client.Set(ctx, taskKeyPrefix+taskID, taskData, taskTTL).Err()
	}

	task.Status = domain.TaskStatusPending
	return q.Enqueue(ctx, &task)
}

// Ping checks queue backend health.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func isGroupExistsError(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}
