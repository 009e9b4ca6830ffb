package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"line-comicbot/pipeline"

	"github.com/hibiken/asynq"
)

// TaskType names the asynq task carrying a pipeline.Job.
const TaskType = "comic:job"

// Enqueuer is the part of *asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue publishes jobs to Redis for a separate worker process.
type Queue struct {
	client  Enqueuer
	logger  *slog.Logger
	timeout time.Duration
}

// NewQueue creates a queue dispatcher. timeout bounds each task on the worker.
func NewQueue(client Enqueuer, timeout time.Duration, logger *slog.Logger) *Queue {
	return &Queue{client: client, timeout: timeout, logger: logger}
}

// Dispatch enqueues job. Tasks are never retried: a second run could send
// the user a duplicate result.
func (q *Queue) Dispatch(ctx context.Context, job pipeline.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	opts := []asynq.Option{asynq.MaxRetry(0)}
	if q.timeout > 0 {
		opts = append(opts, asynq.Timeout(q.timeout))
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskType, payload), opts...)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	q.logger.Info("Job enqueued", "delivery_id", job.DeliveryID, "kind", job.Kind, "task_id", info.ID, "queue", info.Queue)
	return nil
}
