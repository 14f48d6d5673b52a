// Package engine owns the harpoon batch transform.
//
// An Engine holds a scheduler and exposes two phases. ComputeStates fans the
// state constructor out over a batch and keeps input order. RunCycle then
// drives the absorb/requeue loop on the calling goroutine. An Engine may be
// shared by concurrent callers; every cycle keeps its queue, events and
// anchors private.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/hash/sha3"
	"github.com/JakeFAU/harpoon/internal/hygiene"
	"github.com/JakeFAU/harpoon/internal/language"
	"github.com/JakeFAU/harpoon/internal/scheduler"
)

// Options configures an Engine. Nil pointers select defaults.
type Options struct {
	MaxBatch   *int
	NumThreads *int
	Mode       scheduler.Mode
	Logger     *zap.Logger
}

// Engine is the shared handle: a scheduler plus configuration.
type Engine struct {
	sched  scheduler.Scheduler
	logger *zap.Logger
}

// New builds an Engine. It fails when NumThreads is explicitly zero or the
// pool cannot be built on this platform.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sched, err := scheduler.New(scheduler.Config{
		MaxBatch:   opts.MaxBatch,
		NumThreads: opts.NumThreads,
		Mode:       opts.Mode,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	logger.Info("engine ready",
		zap.String("scheduler", string(sched.Mode())),
		zap.Int("thread_count", sched.ThreadCount()),
		zap.Int("max_batch", sched.MaxBatch()),
	)
	return &Engine{sched: sched, logger: logger}, nil
}

// NewState derives the per-fragment record: identity, language, no score yet.
func NewState(input fragment.Input) fragment.State {
	id := sha3.Of(input.Body)
	return fragment.State{
		Input:       input,
		Hash:        id.Hash,
		Fingerprint: id.Fingerprint,
		Language:    language.Detect(input.Path, input.Body),
		Status:      fragment.StatusPending,
	}
}

// ComputeStates builds a state for every fragment and returns them in input
// order.
func (e *Engine) ComputeStates(fragments []fragment.Input) []fragment.State {
	return scheduler.Map(e.sched, fragments, NewState)
}

// RunCycle runs one absorb/requeue cycle. A nil maxIterations means no cap;
// a threshold above 1 then never terminates for a non-empty batch.
func (e *Engine) RunCycle(fragments []fragment.Input, threshold float64, maxIterations *int) fragment.CycleResult {
	if len(fragments) == 0 {
		return fragment.EmptyResult()
	}
	result := runCycle(e.ComputeStates(fragments), threshold, maxIterations)
	e.logger.Debug("cycle finished",
		zap.Int("fragments", len(fragments)),
		zap.Int("iterations", result.Iterations),
		zap.Int("absorbed", len(result.Absorbed)),
		zap.Int("pending", len(result.Pending)),
	)
	return result
}

// Hash returns the hex SHA3-256 of body.
func (e *Engine) Hash(body string) string {
	return sha3.Hash(body)
}

// Fingerprint returns the short display id of body.
func (e *Engine) Fingerprint(body string) string {
	return sha3.Fingerprint(body)
}

// Score evaluates body the way a cycle would, detecting language from path.
func (e *Engine) Score(filePath, body string) (fragment.Language, hygiene.Breakdown) {
	lang := language.Detect(filePath, body)
	return lang, hygiene.Evaluate(body, lang)
}

// ThreadCount reports the workers actually running.
func (e *Engine) ThreadCount() int {
	return e.sched.ThreadCount()
}

// ConfiguredThreads reports the requested thread count, nil when defaulted.
func (e *Engine) ConfiguredThreads() *int {
	return e.sched.ConfiguredThreads()
}

// MaxBatch reports the minimum run length per worker.
func (e *Engine) MaxBatch() int {
	return e.sched.MaxBatch()
}

// Mode reports which scheduler implementation backs the engine.
func (e *Engine) Mode() scheduler.Mode {
	return e.sched.Mode()
}

// Close releases the workers. Cycles started afterwards still complete.
func (e *Engine) Close() {
	e.sched.Close()
}
