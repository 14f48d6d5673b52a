// Package harpoon is the in-process API of the harpoon hygiene engine.
//
// An Engine hashes, classifies and scores batches of text fragments and runs
// the absorb/requeue cycle over them. Results are identical for every thread
// count and every surface: this package, the c-shared extension, and the
// WebAssembly module all run the same code.
//
//	eng, err := harpoon.New(harpoon.Options{})
//	if err != nil {
//		return err
//	}
//	defer eng.Close()
//	result := eng.RunCycle(fragments, 0.7, nil)
package harpoon

import (
	"fmt"

	"github.com/JakeFAU/harpoon/internal/engine"
	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/hash/sha3"
	"github.com/JakeFAU/harpoon/internal/scheduler"
	"github.com/JakeFAU/harpoon/internal/wire"
)

// Public data model.
type (
	Fragment    = fragment.Input
	Report      = fragment.Report
	CycleEvent  = fragment.CycleEvent
	CycleResult = fragment.CycleResult
	Summary     = fragment.Summary
	Language    = fragment.Language
)

// Errors callers may match with errors.Is.
var (
	ErrZeroThreads = scheduler.ErrZeroThreads
	ErrPoolBuild   = scheduler.ErrPoolBuild
	ErrShape       = wire.ErrShape
)

// DefaultMaxBatch is the batch granularity used when Options.MaxBatch is nil.
const DefaultMaxBatch = scheduler.DefaultMaxBatch

// DefaultMaxIterations is the cap EnvelopeCycle applies when none is given.
const DefaultMaxIterations = wire.DefaultMaxIterations

// Options configures New. Nil fields select defaults; an explicit zero
// NumThreads is rejected with ErrZeroThreads.
type Options struct {
	MaxBatch   *int
	NumThreads *int
}

// Engine is a reusable, concurrency-safe handle.
type Engine struct {
	core *engine.Engine
}

// New builds an Engine.
func New(opts Options) (*Engine, error) {
	core, err := engine.New(engine.Options{MaxBatch: opts.MaxBatch, NumThreads: opts.NumThreads})
	if err != nil {
		return nil, fmt.Errorf("harpoon: %w", err)
	}
	return &Engine{core: core}, nil
}

// RunCycle runs one cycle. A nil maxIterations means no cap. It never fails.
func (e *Engine) RunCycle(fragments []Fragment, threshold float64, maxIterations *int) CycleResult {
	return e.core.RunCycle(fragments, threshold, maxIterations)
}

// EnvelopeCycle is the JSON form of RunCycle used by the foreign-language
// surfaces. fragmentsJSON is an array of {path, idx, lines, body} objects; a
// nil maxIterations applies DefaultMaxIterations. Shape violations fail with
// an error matching ErrShape.
func (e *Engine) EnvelopeCycle(fragmentsJSON []byte, threshold float64, maxIterations *int) ([]byte, error) {
	fragments, err := wire.DecodeFragments(fragmentsJSON)
	if err != nil {
		return nil, err
	}
	limit := DefaultMaxIterations
	if maxIterations != nil {
		if *maxIterations < 0 {
			return nil, &wire.ShapeError{Field: "max_iterations", Reason: "expected an unsigned integer"}
		}
		limit = *maxIterations
	}
	return wire.EncodeResult(e.core.RunCycle(fragments, threshold, &limit))
}

// FragmentHash returns the hex SHA3-256 of body.
func (e *Engine) FragmentHash(body string) string {
	return e.core.Hash(body)
}

// Fingerprint returns the short base64 fingerprint of body.
func (e *Engine) Fingerprint(body string) string {
	return e.core.Fingerprint(body)
}

// ThreadCount is the effective worker count.
func (e *Engine) ThreadCount() int {
	return e.core.ThreadCount()
}

// ConfiguredThreads is the requested worker count, nil when defaulted.
func (e *Engine) ConfiguredThreads() *int {
	return e.core.ConfiguredThreads()
}

// Close releases the worker pool. The Engine must not be used afterwards.
func (e *Engine) Close() {
	e.core.Close()
}

// Hash returns the hex SHA3-256 of body.
func Hash(body string) string {
	return sha3.Hash(body)
}

// Fingerprint returns the short base64 fingerprint of body.
func Fingerprint(body string) string {
	return sha3.Fingerprint(body)
}

// Summarize condenses a result into counts, anchors and the mean absorbed
// score.
func Summarize(result CycleResult) Summary {
	return fragment.Summarize(result)
}
