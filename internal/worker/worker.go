// Package worker runs queued cycle jobs against the orchestrator.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/fusion"
	"github.com/JakeFAU/harpoon/internal/queue"
)

// Runner executes one cycle. *fusion.Orchestrator satisfies it.
type Runner interface {
	Process(ctx context.Context, fragments []fragment.Input, threshold float64, maxIterations *int) (fusion.Outcome, error)
}

// Recorder receives job lifecycle transitions.
type Recorder interface {
	MarkRunning(jobID string, at time.Time)
	MarkFinished(jobID string, at time.Time, outcome fusion.Outcome, err error)
}

// Worker consumes queue items and runs their cycles.
type Worker struct {
	queue    queue.Queue
	runner   Runner
	recorder Recorder
	clock    fragment.Clock
	logger   *zap.Logger
}

// New constructs a Worker.
func New(q queue.Queue, runner Runner, recorder Recorder, clock fragment.Clock, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    q,
		runner:   runner,
		recorder: recorder,
		clock:    clock,
		logger:   logger,
	}
}

// Run dequeues until ctx ends or the queue is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", job.ID))
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job queue.Job) {
	w.recorder.MarkRunning(job.ID, w.clock.Now())
	if w.runner == nil {
		w.recorder.MarkFinished(job.ID, w.clock.Now(), fusion.Outcome{}, errors.New("no cycle runner configured"))
		return
	}

	outcome, err := w.runner.Process(ctx, job.Fragments, job.Threshold, job.MaxIterations)
	w.recorder.MarkFinished(job.ID, w.clock.Now(), outcome, err)

	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("cycle_id", outcome.CycleID),
		zap.Int("fragments", len(job.Fragments)),
	}
	switch {
	case outcome.CycleID == "":
		w.logger.Error("job failed", append(fields, zap.Error(err))...)
	case err != nil:
		w.logger.Warn("job finished with collaborator errors", append(fields, zap.Error(err))...)
	default:
		w.logger.Info("job finished", append(fields, zap.Int("iterations", outcome.Result.Iterations))...)
	}
}
