// Package dispatch hands classified jobs to the pipeline after the webhook has
// been acknowledged, either in-process or through a Redis-backed queue.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"line-comicbot/pipeline"
)

// Runner executes one job to completion.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) pipeline.Outcome
}

// Dispatcher schedules a job without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job pipeline.Job) error
}

// Local runs each job on its own goroutine in this process.
type Local struct {
	runner Runner
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewLocal creates an in-process dispatcher.
func NewLocal(runner Runner, logger *slog.Logger) *Local {
	return &Local{runner: runner, logger: logger}
}

// Dispatch starts job in the background. The job keeps the request's values
// but not its cancellation, so it outlives the HTTP response.
func (l *Local) Dispatch(ctx context.Context, job pipeline.Job) error {
	ctx = context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runner.Run(ctx, job)
	}()
	return nil
}

// Wait blocks until in-flight jobs finish or ctx is done.
func (l *Local) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		l.logger.Warn("Shutdown interrupted in-flight jobs", "error", ctx.Err())
		return ctx.Err()
	}
}
