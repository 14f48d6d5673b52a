// Package uuid generates cycle and job identifiers.
package uuid

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 identifiers, so cycle IDs sort by
// creation time in stores and archive listings.
type Generator struct {
	rand io.Reader
}

// New returns a Generator drawing from crypto/rand.
func New() *Generator {
	return &Generator{}
}

// NewFromReader returns a Generator drawing its random bits from r.
func NewFromReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// NewID returns a UUIDv7 string.
func (g *Generator) NewID() (string, error) {
	var (
		id  uuid.UUID
		err error
	)
	if g.rand != nil {
		id, err = uuid.NewV7FromReader(g.rand)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// CreatedAt recovers the millisecond timestamp embedded in a UUIDv7.
func CreatedAt(id string) (time.Time, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse id: %w", err)
	}
	if parsed.Version() != 7 {
		return time.Time{}, fmt.Errorf("id %s is version %d, not 7", id, parsed.Version())
	}
	ms := int64(parsed[0])<<40 | int64(parsed[1])<<32 | int64(parsed[2])<<24 |
		int64(parsed[3])<<16 | int64(parsed[4])<<8 | int64(parsed[5])
	return time.UnixMilli(ms).UTC(), nil
}
