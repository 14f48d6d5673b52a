// Package dispatcher accepts cycle jobs, fans them out to a worker pool and
// tracks their status.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/fusion"
	"github.com/JakeFAU/harpoon/internal/queue"
	"github.com/JakeFAU/harpoon/internal/worker"
)

// ErrNoWorkers is returned by New when the pool would be empty.
var ErrNoWorkers = errors.New("dispatcher requires at least one worker")

// Config sizes the pool and the status history.
type Config struct {
	Workers     int
	HistorySize int
}

// Deps are the dispatcher's collaborators.
type Deps struct {
	Queue  queue.Queue
	Runner worker.Runner
	Clock  fragment.Clock
	IDs    fragment.IDGenerator
	Logger *zap.Logger
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   queue.Queue
	workers []*worker.Worker
	clock   fragment.Clock
	ids     fragment.IDGenerator
	logger  *zap.Logger

	mu      sync.Mutex
	history *lru.Cache[string, queue.Status]
}

// New creates a Dispatcher.
func New(cfg Config, deps Deps) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		return nil, ErrNoWorkers
	}
	if deps.Queue == nil || deps.Runner == nil || deps.Clock == nil || deps.IDs == nil {
		return nil, errors.New("dispatcher requires a queue, runner, clock and id generator")
	}
	size := cfg.HistorySize
	if size <= 0 {
		size = 1024
	}
	history, err := lru.New[string, queue.Status](size)
	if err != nil {
		return nil, fmt.Errorf("job history: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		queue:   deps.Queue,
		clock:   deps.Clock,
		ids:     deps.IDs,
		logger:  logger,
		history: history,
	}
	for i := range cfg.Workers {
		d.workers = append(d.workers, worker.New(deps.Queue, deps.Runner, d, deps.Clock, logger.With(zap.Int("worker", i))))
	}
	return d, nil
}

// Run starts all workers and blocks until the context finishes or the queue
// is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Submit records a job as queued and hands it to the queue.
func (d *Dispatcher) Submit(ctx context.Context, fragments []fragment.Input, threshold float64, maxIterations *int) (queue.Status, error) {
	id, err := d.ids.NewID()
	if err != nil {
		return queue.Status{}, fmt.Errorf("generate job id: %w", err)
	}
	job := queue.Job{
		ID:            id,
		Fragments:     fragments,
		Threshold:     threshold,
		MaxIterations: maxIterations,
		SubmittedAt:   d.clock.Now().UTC(),
	}
	status := queue.Status{
		JobID:       id,
		State:       queue.StateQueued,
		Fragments:   len(fragments),
		SubmittedAt: job.SubmittedAt,
	}
	d.mu.Lock()
	d.history.Add(id, status)
	d.mu.Unlock()

	if err := d.queue.Enqueue(ctx, job); err != nil {
		d.mu.Lock()
		d.history.Remove(id)
		d.mu.Unlock()
		return queue.Status{}, fmt.Errorf("queue enqueue: %w", err)
	}
	d.logger.Debug("job queued", zap.String("job_id", id), zap.Int("fragments", len(fragments)))
	return status, nil
}

// Status returns the last known status of a job. Old jobs age out of the
// history.
func (d *Dispatcher) Status(jobID string) (queue.Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Get(jobID)
}

// MarkRunning implements worker.Recorder.
func (d *Dispatcher) MarkRunning(jobID string, at time.Time) {
	d.update(jobID, func(s *queue.Status) {
		s.State = queue.StateRunning
		started := at.UTC()
		s.StartedAt = &started
	})
}

// MarkFinished implements worker.Recorder.
func (d *Dispatcher) MarkFinished(jobID string, at time.Time, outcome fusion.Outcome, err error) {
	d.update(jobID, func(s *queue.Status) {
		finished := at.UTC()
		s.FinishedAt = &finished
		s.CycleID = outcome.CycleID
		switch {
		case outcome.CycleID == "":
			s.State = queue.StateFailed
			if err != nil {
				s.Error = err.Error()
			}
		default:
			s.State = queue.StateSucceeded
			if err != nil {
				s.Warnings = []string{err.Error()}
			}
		}
	})
}

func (d *Dispatcher) update(jobID string, fn func(*queue.Status)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status, ok := d.history.Get(jobID)
	if !ok {
		return
	}
	fn(&status)
	d.history.Add(jobID, status)
}

// Close stops accepting jobs. Queued jobs still run while Run is active.
func (d *Dispatcher) Close() {
	d.queue.Close()
}
