package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/harpoon/internal/progress"
)

// PrometheusSink exports cycle progress as Prometheus collectors.
type PrometheusSink struct {
	cyclesStarted   prometheus.Counter
	cyclesCompleted prometheus.Counter
	cyclesRunning   prometheus.Gauge
	cycleRuntime    prometheus.Histogram

	evaluations  *prometheus.CounterVec
	scores       *prometheus.HistogramVec
	pendingTotal prometheus.Counter

	tracker *cycleTracker
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		cyclesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harpoon_progress_cycles_started_total",
			Help: "Cycles that have started.",
		}),
		cyclesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harpoon_progress_cycles_completed_total",
			Help: "Cycles that have finished.",
		}),
		cyclesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harpoon_progress_cycles_running",
			Help: "Cycles started but not yet finished.",
		}),
		cycleRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harpoon_progress_cycle_runtime_seconds",
			Help:    "Wall time per finished cycle.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harpoon_progress_fragment_evaluations_total",
			Help: "Fragment evaluations partitioned by language and outcome.",
		}, []string{"language", "outcome"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harpoon_progress_hygiene_score",
			Help:    "Hygiene scores observed during cycles.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"language"}),
		pendingTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harpoon_progress_fragments_left_pending_total",
			Help: "Fragments still queued when their cycle ended.",
		}),
		tracker: newCycleTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.cyclesStarted,
		s.cyclesCompleted,
		s.cyclesRunning,
		s.cycleRuntime,
		s.evaluations,
		s.scores,
		s.pendingTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCycleStart:
		s.cyclesStarted.Inc()
		if s.tracker.start(evt.CycleID) {
			s.cyclesRunning.Inc()
		}
	case progress.StageCycleDone:
		s.cyclesCompleted.Inc()
		if evt.Dur > 0 {
			s.cycleRuntime.Observe(evt.Dur.Seconds())
		}
		s.pendingTotal.Add(float64(evt.Pending))
		if s.tracker.complete(evt.CycleID) {
			s.cyclesRunning.Dec()
		}
	case progress.StageAbsorbed, progress.StageRequeued:
		lang := evt.Language
		if lang == "" {
			lang = "unknown"
		}
		outcome := "absorbed"
		if evt.Stage == progress.StageRequeued {
			outcome = "requeued"
		}
		s.evaluations.WithLabelValues(lang, outcome).Inc()
		s.scores.WithLabelValues(lang).Observe(evt.Score)
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type cycleTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newCycleTracker() *cycleTracker {
	return &cycleTracker{running: make(map[[16]byte]struct{})}
}

func (t *cycleTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *cycleTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
