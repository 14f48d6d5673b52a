// Package fusion runs cycles on behalf of a service and feeds the results to
// the surrounding collaborators: progress sinks, the cycle store, the archive,
// the publisher, and the metrics registry.
package fusion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/clock/system"
	"github.com/JakeFAU/harpoon/internal/engine"
	"github.com/JakeFAU/harpoon/internal/fragment"
	idgen "github.com/JakeFAU/harpoon/internal/id/uuid"
	"github.com/JakeFAU/harpoon/internal/metrics"
	"github.com/JakeFAU/harpoon/internal/progress"
	"github.com/JakeFAU/harpoon/internal/storage"
	"github.com/JakeFAU/harpoon/internal/wire"
)

// DefaultThreshold is the threshold ProcessFragment applies.
const DefaultThreshold = 0.7

// Config controls what the orchestrator does after a cycle.
type Config struct {
	// ArchivePrefix is the object prefix for archived results.
	ArchivePrefix string
	// Topic receives cycle summaries. Empty means the publisher default.
	Topic string
	// Metrics enables the Prometheus collectors.
	Metrics bool
}

// Deps are the optional collaborators. Nil fields are skipped.
type Deps struct {
	Store     fragment.CycleStore
	Archive   fragment.Archive
	Publisher fragment.Publisher
	Progress  progress.Emitter
	Clock     fragment.Clock
	IDs       fragment.IDGenerator
	Logger    *zap.Logger
}

// Outcome is the result of one orchestrated cycle.
type Outcome struct {
	CycleID string
	Summary fragment.Summary
	Result  fragment.CycleResult
}

// Response renders the outcome in its wire form.
func (o Outcome) Response() wire.CycleResponse {
	return wire.CycleResponse{CycleID: o.CycleID, Summary: o.Summary, Result: o.Result}
}

// Stats are cumulative counters across every cycle the orchestrator ran.
type Stats struct {
	TotalFragmentsProcessed int `json:"total_fragments_processed"`
	TotalAnchorsCreated     int `json:"total_anchors_created"`
	ThreadCount             int `json:"thread_count"`
	Cycles                  int `json:"cycles"`
}

// Orchestrator wraps an engine with the service-side collaborators.
type Orchestrator struct {
	engine    *engine.Engine
	store     fragment.CycleStore
	archive   fragment.Archive
	publisher fragment.Publisher
	progress  progress.Emitter
	clock     fragment.Clock
	ids       fragment.IDGenerator
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer

	mu    sync.RWMutex
	stats Stats
}

// New constructs an Orchestrator around eng.
func New(eng *engine.Engine, cfg Config, deps Deps) (*Orchestrator, error) {
	if eng == nil {
		return nil, errors.New("fusion: engine is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = idgen.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Metrics {
		metrics.Init()
		metrics.SetEngineThreads(eng.ThreadCount())
	}
	return &Orchestrator{
		engine:    eng,
		store:     deps.Store,
		archive:   deps.Archive,
		publisher: deps.Publisher,
		progress:  deps.Progress,
		clock:     deps.Clock,
		ids:       deps.IDs,
		cfg:       cfg,
		logger:    deps.Logger,
		tracer:    otel.Tracer("github.com/JakeFAU/harpoon/internal/fusion"),
		stats:     Stats{ThreadCount: eng.ThreadCount()},
	}, nil
}

// Engine exposes the wrapped engine for the standalone operations.
func (o *Orchestrator) Engine() *engine.Engine {
	return o.engine
}

// Process runs one cycle and hands the outcome to every configured
// collaborator. A collaborator failure is logged and returned, joined with
// any others, alongside a complete Outcome: the cycle itself cannot fail.
func (o *Orchestrator) Process(
	ctx context.Context,
	fragments []fragment.Input,
	threshold float64,
	maxIterations *int,
) (Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "fusion.Process", trace.WithAttributes(
		attribute.Int("harpoon.fragments", len(fragments)),
		attribute.Float64("harpoon.threshold", threshold),
	))
	defer span.End()

	cycleID, err := o.ids.NewID()
	if err != nil {
		span.SetStatus(codes.Error, "cycle id")
		return Outcome{}, fmt.Errorf("generate cycle id: %w", err)
	}
	progressID := progressCycleID(cycleID)
	started := o.clock.Now().UTC()
	o.emit(progress.Event{
		CycleID:   progressID,
		TS:        started,
		Stage:     progress.StageCycleStart,
		Fragments: len(fragments),
	})

	result := o.engine.RunCycle(fragments, threshold, maxIterations)
	finished := o.clock.Now().UTC()
	elapsed := finished.Sub(started)
	if elapsed < 0 {
		elapsed = 0
	}
	summary := fragment.Summarize(result)

	for _, evt := range result.Events {
		o.emit(progress.FromCycleEvent(progressID, finished, evt))
	}
	o.emit(progress.Event{
		CycleID:  progressID,
		TS:       finished,
		Stage:    progress.StageCycleDone,
		Absorbed: summary.AbsorbedCount,
		Pending:  summary.PendingCount,
		Dur:      elapsed,
	})

	o.record(len(fragments), summary)
	if o.cfg.Metrics {
		observe(result, maxIterations, elapsed)
	}
	span.SetAttributes(
		attribute.String("harpoon.cycle_id", cycleID),
		attribute.Int("harpoon.iterations", result.Iterations),
		attribute.Int("harpoon.absorbed", summary.AbsorbedCount),
	)
	o.logger.Debug("cycle processed",
		zap.String("cycle_id", cycleID),
		zap.Int("fragments", len(fragments)),
		zap.Int("absorbed", summary.AbsorbedCount),
		zap.Int("pending", summary.PendingCount),
		zap.Int("iterations", result.Iterations),
		zap.Duration("elapsed", elapsed),
	)

	outcome := Outcome{CycleID: cycleID, Summary: summary, Result: result}
	record := fragment.CycleRecord{
		ID:            cycleID,
		CreatedAt:     started,
		Threshold:     threshold,
		MaxIterations: maxIterations,
		Summary:       summary,
		Result:        result,
	}
	if err := o.persistAndPublish(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collaborator failure")
		return outcome, err
	}
	return outcome, nil
}

// ProcessFragment runs a one-fragment cycle at DefaultThreshold. A lone
// fragment scores the same on every pass, so a single evaluation decides it.
func (o *Orchestrator) ProcessFragment(ctx context.Context, input fragment.Input) (Outcome, error) {
	limit := 1
	return o.Process(ctx, []fragment.Input{input}, DefaultThreshold, &limit)
}

// Stats returns a snapshot of the cumulative counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stats
}

// Lookup returns a persisted cycle. It fails with storage.ErrNotFound when no
// store is configured.
func (o *Orchestrator) Lookup(ctx context.Context, id string) (fragment.CycleRecord, error) {
	if o.store == nil {
		return fragment.CycleRecord{}, fmt.Errorf("lookup %q: %w", id, storage.ErrNotFound)
	}
	record, err := o.store.GetCycle(ctx, id)
	if err != nil {
		return fragment.CycleRecord{}, fmt.Errorf("lookup %q: %w", id, err)
	}
	return record, nil
}

func (o *Orchestrator) record(fragments int, summary fragment.Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.TotalFragmentsProcessed += fragments
	o.stats.TotalAnchorsCreated += len(summary.Anchors)
	o.stats.Cycles++
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.progress == nil {
		return
	}
	o.progress.Emit(evt)
}

func (o *Orchestrator) persistAndPublish(ctx context.Context, record fragment.CycleRecord) error {
	var errs []error
	if o.store != nil {
		if err := o.store.SaveCycle(ctx, record); err != nil {
			errs = append(errs, o.collaboratorFailed("store", record.ID, fmt.Errorf("save cycle: %w", err)))
		}
	}

	uri := ""
	if o.archive != nil {
		var err error
		uri, err = o.archiveResult(ctx, record)
		if err != nil {
			errs = append(errs, o.collaboratorFailed("archive", record.ID, err))
		}
	}

	if o.publisher != nil {
		if err := o.publishSummary(ctx, record, uri); err != nil {
			errs = append(errs, o.collaboratorFailed("publisher", record.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) archiveResult(ctx context.Context, record fragment.CycleRecord) (string, error) {
	path, err := storage.ArchivePath(o.cfg.ArchivePrefix, record.ID, record.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("archive path: %w", err)
	}
	data, err := wire.EncodeResult(record.Result)
	if err != nil {
		return "", err
	}
	uri, err := o.archive.PutObject(ctx, path, storage.ContentTypeJSON, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return uri, nil
}

func (o *Orchestrator) publishSummary(ctx context.Context, record fragment.CycleRecord, uri string) error {
	payload := map[string]any{
		"cycle_id":          record.ID,
		"created_at":        record.CreatedAt.Format(time.RFC3339Nano),
		"hygiene_threshold": record.Threshold,
		"summary":           record.Summary,
	}
	if uri != "" {
		payload["archive_uri"] = uri
	}
	msgID, err := o.publisher.Publish(ctx, o.cfg.Topic, payload)
	if err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	o.logger.Debug("cycle summary published",
		zap.String("cycle_id", record.ID),
		zap.String("message_id", msgID),
	)
	return nil
}

func (o *Orchestrator) collaboratorFailed(name, cycleID string, err error) error {
	o.logger.Warn("cycle collaborator failed",
		zap.String("collaborator", name),
		zap.String("cycle_id", cycleID),
		zap.Error(err),
	)
	if o.cfg.Metrics {
		metrics.ObserveCollaboratorError(name)
	}
	return err
}

func observe(result fragment.CycleResult, maxIterations *int, elapsed time.Duration) {
	capped := maxIterations != nil && len(result.Pending) > 0 && result.Iterations >= *maxIterations
	metrics.ObserveCycle(result.Iterations, len(result.Anchors), capped, elapsed)
	for _, report := range result.Absorbed {
		metrics.ObserveFragment(report.Language, string(fragment.StatusAbsorbed))
	}
	for _, report := range result.Pending {
		metrics.ObserveFragment(report.Language, string(fragment.StatusPending))
	}
}

// progressCycleID maps a cycle ID onto the 16-byte progress form. IDs that
// are not UUIDs get a stable name-based UUID.
func progressCycleID(id string) [16]byte {
	parsed, err := uuid.Parse(id)
	if err != nil {
		parsed = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	}
	return progress.UUIDToBytes(parsed)
}
