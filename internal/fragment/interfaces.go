package fragment

import (
	"context"
	"io"
	"time"
)

// CycleStore persists cycle records.
type CycleStore interface {
	SaveCycle(ctx context.Context, record CycleRecord) error
	GetCycle(ctx context.Context, id string) (CycleRecord, error)
}

// Archive writes full cycle results and returns a URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes cycle summaries to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces cycle IDs.
type IDGenerator interface {
	NewID() (string, error)
}
