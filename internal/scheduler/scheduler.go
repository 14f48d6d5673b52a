// Package scheduler fans per-item work out over a batch.
//
// Two implementations satisfy Scheduler: Pool, a fixed set of worker
// goroutines fed contiguous index ranges, and Sequential, which evaluates the
// batch inline. New picks one at construction time. Both cover every index
// exactly once, so callers writing results by index get input order back
// regardless of how work was distributed.
package scheduler

import (
	"errors"
	"fmt"
	"runtime"
)

// DefaultMaxBatch is the minimum run length handed to one worker when the
// caller does not choose one.
const DefaultMaxBatch = 64

// MaxThreads bounds the worker count a Pool accepts.
const MaxThreads = 4096

// Mode selects the scheduler implementation.
type Mode string

// Supported modes. ModeAuto picks a Pool when the platform has threads.
const (
	ModeAuto       Mode = "auto"
	ModePool       Mode = "pool"
	ModeSequential Mode = "sequential"
)

// ErrZeroThreads is returned when a thread count of zero is requested.
var ErrZeroThreads = errors.New("thread pool requires at least one thread")

// ErrPoolBuild is the sentinel wrapped by BuildError.
var ErrPoolBuild = errors.New("failed to build thread pool")

// BuildError reports why a pool could not be constructed.
type BuildError struct {
	Requested int
	Reason    string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPoolBuild, e.Reason)
}

// Unwrap lets errors.Is match ErrPoolBuild.
func (e *BuildError) Unwrap() error {
	return ErrPoolBuild
}

// Config controls scheduler construction. Nil pointers mean "not supplied".
type Config struct {
	MaxBatch   *int
	NumThreads *int
	Mode       Mode
}

// Scheduler runs fn over [0,n) split into disjoint contiguous ranges and
// returns once every range has finished. Implementations are safe for
// concurrent use by multiple callers.
type Scheduler interface {
	Run(n int, fn func(lo, hi int))
	ThreadCount() int
	ConfiguredThreads() *int
	MaxBatch() int
	Mode() Mode
	Close()
}

// New validates cfg and builds the matching Scheduler.
func New(cfg Config) (Scheduler, error) {
	var configured *int
	if cfg.NumThreads != nil {
		n := *cfg.NumThreads
		switch {
		case n == 0:
			return nil, ErrZeroThreads
		case n < 0:
			return nil, &BuildError{Requested: n, Reason: "thread count must be positive"}
		}
		configured = &n
	}
	maxBatch := DefaultMaxBatch
	if cfg.MaxBatch != nil {
		maxBatch = max(*cfg.MaxBatch, 1)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeAuto
	}
	switch mode {
	case ModeAuto:
		if !platformThreads {
			return newSequential(maxBatch, configured), nil
		}
	case ModePool:
		if !platformThreads {
			return nil, &BuildError{Requested: valueOr(configured, 0), Reason: "platform has no thread support"}
		}
	case ModeSequential:
		return newSequential(maxBatch, configured), nil
	default:
		return nil, fmt.Errorf("unknown scheduler mode %q", mode)
	}

	threads := runtime.GOMAXPROCS(0)
	if configured != nil {
		threads = *configured
	}
	if threads > MaxThreads {
		return nil, &BuildError{
			Requested: threads,
			Reason:    fmt.Sprintf("thread count %d exceeds limit %d", threads, MaxThreads),
		}
	}
	return newPool(threads, maxBatch, configured), nil
}

// Map applies fn to every element of in through s and returns the results in
// input order.
func Map[In, Out any](s Scheduler, in []In, fn func(In) Out) []Out {
	out := make([]Out, len(in))
	s.Run(len(in), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = fn(in[i])
		}
	})
	return out
}

func valueOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
