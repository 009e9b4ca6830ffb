package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"line-comicbot/pipeline"

	"github.com/hibiken/asynq"
)

// Worker consumes queued jobs.
type Worker struct {
	runner Runner
	logger *slog.Logger
}

// NewWorker creates a queue consumer for runner.
func NewWorker(runner Runner, logger *slog.Logger) *Worker {
	return &Worker{runner: runner, logger: logger}
}

// Handler registers the job handler.
func (w *Worker) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskType, w.handleJob)
	return mux
}

func (w *Worker) handleJob(ctx context.Context, task *asynq.Task) error {
	var job pipeline.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		w.logger.Error("Dropping malformed job", "error", err)
		return fmt.Errorf("decode job: %w: %w", err, asynq.SkipRetry)
	}
	outcome := w.runner.Run(ctx, job)
	w.logger.Debug("Queued job finished", "delivery_id", job.DeliveryID, "outcome", outcome)
	return nil
}
