package scheduler

import "sync"

type task struct {
	lo, hi int
	fn     func(lo, hi int)
	wg     *sync.WaitGroup
}

// Pool is a fixed set of worker goroutines consuming index ranges.
type Pool struct {
	threads    int
	maxBatch   int
	configured *int

	tasks     chan task
	quit      chan struct{}
	workers   sync.WaitGroup
	closeOnce sync.Once
}

func newPool(threads, maxBatch int, configured *int) *Pool {
	p := &Pool{
		threads:    threads,
		maxBatch:   maxBatch,
		configured: configured,
		tasks:      make(chan task),
		quit:       make(chan struct{}),
	}
	for i := 0; i < threads; i++ {
		p.workers.Add(1)
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.workers.Done()
	for {
		select {
		case t := <-p.tasks:
			t.fn(t.lo, t.hi)
			t.wg.Done()
		case <-p.quit:
			return
		}
	}
}

// Run partitions [0,n) into ranges of at least MaxBatch items and blocks
// until all of them finish. After Close, ranges run on the calling goroutine.
func (p *Pool) Run(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	chunk := p.chunkSize(n)
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		select {
		case p.tasks <- task{lo: lo, hi: hi, fn: fn, wg: &wg}:
		case <-p.quit:
			fn(lo, hi)
			wg.Done()
		}
	}
	wg.Wait()
}

// chunkSize spreads n over the workers without going below maxBatch.
func (p *Pool) chunkSize(n int) int {
	perWorker := (n + p.threads - 1) / p.threads
	return max(p.maxBatch, perWorker)
}

// ThreadCount reports the number of worker goroutines.
func (p *Pool) ThreadCount() int {
	return p.threads
}

// ConfiguredThreads reports the requested thread count, nil for the default.
func (p *Pool) ConfiguredThreads() *int {
	return copyInt(p.configured)
}

// MaxBatch reports the minimum run length.
func (p *Pool) MaxBatch() int {
	return p.maxBatch
}

// Mode reports ModePool.
func (p *Pool) Mode() Mode {
	return ModePool
}

// Close stops the workers. It is safe to call multiple times.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.workers.Wait()
}
