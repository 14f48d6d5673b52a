package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/fragment"
)

// TestHubBatchBySize verifies the hub flushes once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	evt := sampleEvent(StageCycleStart)
	hub.Emit(evt)
	hub.Emit(evt)
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1 && len(sink.Batches()[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies a small batch is flushed after MaxBatchWait.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageCycleStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlockingWithoutConsumers asserts Emit never blocks callers.
func TestHubEmitNonBlockingWithoutConsumers(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:    Config{},
		events: make(chan Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent(StageCycleStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, int64(1), hub.Dropped())
}

// TestHubDiscardsInvalidEvents keeps malformed events away from sinks.
func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)

	hub.Emit(Event{Stage: StageCycleStart, TS: time.Now()})
	bad := sampleEvent(StageAbsorbed)
	bad.Hash = ""
	hub.Emit(bad)

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
	require.True(t, sink.Closed())
}

// TestHubFlushOnClose ensures Close drains buffered events before returning.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	}, sink)

	hub.Emit(sampleEvent(StageCycleStart))

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)

	hub.Emit(sampleEvent(StageCycleStart))
	require.Len(t, sink.Batches(), 1)
}

func TestNilHubIsInert(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(sampleEvent(StageCycleStart))
	require.NoError(t, hub.Close(context.Background()))
	require.Zero(t, hub.Dropped())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sampleEvent(StageCycleStart).Validate())
	require.NoError(t, sampleEvent(StageAbsorbed).Validate())
	require.NoError(t, sampleEvent(StageCycleDone).Validate())

	noIter := sampleEvent(StageRequeued)
	noIter.Iteration = 0
	require.Error(t, noIter.Validate())

	unknown := sampleEvent(StageCycleStart)
	unknown.Stage = "BOGUS"
	require.ErrorContains(t, unknown.Validate(), "unknown stage")

	negative := sampleEvent(StageCycleDone)
	negative.Dur = -time.Second
	require.Error(t, negative.Validate())
}

func TestFromCycleEvent(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	anchor := "abc"
	ts := time.Unix(100, 0).UTC()
	evt := FromCycleEvent(UUIDToBytes(id), ts, fragment.CycleEvent{
		Event:          fragment.EventAbsorbed,
		Path:           "a.py",
		Idx:            4,
		Hash:           "abc",
		HygieneScore:   0.75,
		AnchorNext:     &anchor,
		Language:       "python",
		Fingerprint:    "fp",
		IterationIndex: 2,
	})
	require.Equal(t, StageAbsorbed, evt.Stage)
	require.Equal(t, id, evt.CycleUUID())
	require.Equal(t, ts, evt.TS)
	require.Equal(t, uint32(4), evt.Idx)
	require.InDelta(t, 0.75, evt.Score, 1e-12)
	require.Equal(t, 2, evt.Iteration)
	require.NoError(t, evt.Validate())

	requeued := FromCycleEvent(UUIDToBytes(id), ts, fragment.CycleEvent{
		Event: fragment.EventRequeued, Hash: "abc", IterationIndex: 1,
	})
	require.Equal(t, StageRequeued, requeued.Stage)
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Event(nil), b...)
	}
	return out
}

func sampleEvent(stage Stage) Event {
	evt := Event{
		CycleID: UUIDToBytes(uuid.New()),
		TS:      time.Now(),
		Stage:   stage,
	}
	switch stage {
	case StageCycleStart:
		evt.Fragments = 3
	case StageAbsorbed, StageRequeued:
		evt.Path = "a.py"
		evt.Hash = "554c70065a66824f65e036709800854b75f5bf94b69932fdde85d53a3238b555"
		evt.Language = "python"
		evt.Score = 0.5333
		evt.Iteration = 1
	case StageCycleDone:
		evt.Absorbed = 2
		evt.Pending = 1
		evt.Dur = time.Millisecond
	}
	return evt
}
