package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/progress"
)

// LogSink writes one structured line per progress event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch. Fragment events go to debug level so
// large cycles do not flood production logs.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		cycleID := zap.Stringer("cycle_id", evt.CycleUUID())
		switch evt.Stage {
		case progress.StageCycleStart:
			s.logger.Info("cycle started", cycleID, zap.Int("fragments", evt.Fragments))
		case progress.StageCycleDone:
			s.logger.Info("cycle finished",
				cycleID,
				zap.Int("absorbed", evt.Absorbed),
				zap.Int("pending", evt.Pending),
				zap.Duration("dur", evt.Dur),
			)
		default:
			s.logger.Debug("fragment evaluated",
				cycleID,
				zap.String("stage", string(evt.Stage)),
				zap.String("path", evt.Path),
				zap.Uint32("idx", evt.Idx),
				zap.String("fingerprint", evt.Fingerprint),
				zap.String("language", evt.Language),
				zap.Float64("score", evt.Score),
				zap.Int("iteration", evt.Iteration),
			)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
