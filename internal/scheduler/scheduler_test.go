package scheduler

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNewRejectsZeroThreads(t *testing.T) {
	t.Parallel()

	s, err := New(Config{NumThreads: intPtr(0)})
	require.ErrorIs(t, err, ErrZeroThreads)
	require.Nil(t, s)
}

func TestNewRejectsOversizedPool(t *testing.T) {
	t.Parallel()

	_, err := New(Config{NumThreads: intPtr(MaxThreads + 1), Mode: ModePool})
	require.ErrorIs(t, err, ErrPoolBuild)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	require.Equal(t, MaxThreads+1, buildErr.Requested)
}

func TestNewRejectsNegativeThreads(t *testing.T) {
	t.Parallel()

	_, err := New(Config{NumThreads: intPtr(-2)})
	require.ErrorIs(t, err, ErrPoolBuild)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Mode: "turbo"})
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	s, err := New(Config{})
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, DefaultMaxBatch, s.MaxBatch())
	require.Nil(t, s.ConfiguredThreads())
	require.Equal(t, ModePool, s.Mode())
	require.Equal(t, runtime.GOMAXPROCS(0), s.ThreadCount())
}

func TestNewFloorsMaxBatch(t *testing.T) {
	t.Parallel()

	s, err := New(Config{MaxBatch: intPtr(0), NumThreads: intPtr(2)})
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 1, s.MaxBatch())
	require.Equal(t, 2, s.ThreadCount())
	require.Equal(t, 2, *s.ConfiguredThreads())
}

func TestSequentialMode(t *testing.T) {
	t.Parallel()

	s, err := New(Config{NumThreads: intPtr(8), Mode: ModeSequential})
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 1, s.ThreadCount())
	require.Equal(t, 8, *s.ConfiguredThreads())
	require.Equal(t, ModeSequential, s.Mode())
}

// TestMapPreservesOrder runs the same batch through several pool shapes.
func TestMapPreservesOrder(t *testing.T) {
	t.Parallel()

	in := make([]int, 1000)
	for i := range in {
		in[i] = i
	}
	want := make([]int, len(in))
	for i := range in {
		want[i] = i * i
	}

	shapes := []Config{
		{Mode: ModeSequential},
		{NumThreads: intPtr(1), MaxBatch: intPtr(1)},
		{NumThreads: intPtr(4), MaxBatch: intPtr(1)},
		{NumThreads: intPtr(7), MaxBatch: intPtr(13)},
		{NumThreads: intPtr(16), MaxBatch: intPtr(64)},
		{NumThreads: intPtr(3), MaxBatch: intPtr(5000)},
	}
	for _, cfg := range shapes {
		s, err := New(cfg)
		require.NoError(t, err)
		got := Map(s, in, func(v int) int { return v * v })
		s.Close()
		require.Equal(t, want, got)
	}
}

func TestRunCoversEveryIndexOnce(t *testing.T) {
	t.Parallel()

	s, err := New(Config{NumThreads: intPtr(4), MaxBatch: intPtr(3)})
	require.NoError(t, err)
	defer s.Close()

	hits := make([]atomic.Int32, 101)
	s.Run(len(hits), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			hits[i].Add(1)
		}
	})
	for i := range hits {
		require.Equal(t, int32(1), hits[i].Load(), "index %d", i)
	}
}

func TestChunkSizeHonoursMaxBatch(t *testing.T) {
	t.Parallel()

	p := newPool(4, 64, nil)
	defer p.Close()

	require.Equal(t, 64, p.chunkSize(10))
	require.Equal(t, 64, p.chunkSize(200))
	require.Equal(t, 250, p.chunkSize(1000))
}

func TestRunEmptyBatch(t *testing.T) {
	t.Parallel()

	s, err := New(Config{NumThreads: intPtr(2)})
	require.NoError(t, err)
	defer s.Close()

	called := false
	s.Run(0, func(int, int) { called = true })
	require.False(t, called)
	require.Empty(t, Map(s, []string{}, func(v string) string { return v }))
}

func TestConcurrentCallersShareOnePool(t *testing.T) {
	t.Parallel()

	s, err := New(Config{NumThreads: intPtr(3), MaxBatch: intPtr(2)})
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			in := make([]int, 50)
			for i := range in {
				in[i] = offset + i
			}
			out := Map(s, in, func(v int) int { return v + 1 })
			for i, v := range out {
				if v != offset+i+1 {
					t.Errorf("caller %d index %d: got %d", offset, i, v)
				}
			}
		}(c * 1000)
	}
	wg.Wait()
}

func TestRunAfterCloseStillCompletes(t *testing.T) {
	t.Parallel()

	s, err := New(Config{NumThreads: intPtr(2), MaxBatch: intPtr(1)})
	require.NoError(t, err)
	s.Close()
	s.Close()

	out := Map(s, []int{1, 2, 3}, func(v int) int { return v * 10 })
	require.Equal(t, []int{10, 20, 30}, out)
}

func TestConfiguredThreadsIsACopy(t *testing.T) {
	t.Parallel()

	s, err := New(Config{NumThreads: intPtr(2)})
	require.NoError(t, err)
	defer s.Close()

	*s.ConfiguredThreads() = 99
	require.Equal(t, 2, *s.ConfiguredThreads())
}
