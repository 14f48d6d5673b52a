package wire

import (
	"errors"
	"fmt"
)

// ErrShape marks input rejected before it reaches the engine.
var ErrShape = errors.New("malformed request")

// ShapeError locates a shape violation. Field uses a JSON-path-like form such
// as fragments[2].idx.
type ShapeError struct {
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrShape, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrShape, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrShape.
func (e *ShapeError) Unwrap() error {
	return ErrShape
}

func shapeErr(field, format string, args ...any) error {
	return &ShapeError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
