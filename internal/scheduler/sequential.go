package scheduler

// Sequential evaluates the whole batch on the calling goroutine. It is the
// only implementation on targets without threads.
type Sequential struct {
	maxBatch   int
	configured *int
}

func newSequential(maxBatch int, configured *int) *Sequential {
	return &Sequential{maxBatch: maxBatch, configured: configured}
}

// Run calls fn once over the full range.
func (s *Sequential) Run(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	fn(0, n)
}

// ThreadCount is always 1.
func (s *Sequential) ThreadCount() int {
	return 1
}

// ConfiguredThreads reports the requested thread count, nil for the default.
func (s *Sequential) ConfiguredThreads() *int {
	return copyInt(s.configured)
}

// MaxBatch reports the configured minimum run length.
func (s *Sequential) MaxBatch() int {
	return s.maxBatch
}

// Mode reports ModeSequential.
func (s *Sequential) Mode() Mode {
	return ModeSequential
}

// Close is a no-op.
func (s *Sequential) Close() {}
