package pixels

import (
	"errors"
	"fmt"
)

// ErrStaleView is the panic value raised when a view is used after its
// buffer handed out a conflicting view or was released.
var ErrStaleView = errors.New("pixels: view used after its buffer was reborrowed or released")

// ShapeError reports buffer or view metadata that cannot be converted.
type ShapeError struct {
	// Op is the conversion that failed ("native_to_view", "view_to_native", ...).
	Op string

	// Shape is the offending shape, when one is known.
	Shape []int

	// Reason describes the inconsistency.
	Reason string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if len(e.Shape) > 0 {
		return fmt.Sprintf("pixels: %s: shape %v: %s", e.Op, e.Shape, e.Reason)
	}
	return fmt.Sprintf("pixels: %s: %s", e.Op, e.Reason)
}

func shapeErr(op string, shape []int, format string, args ...any) error {
	return &ShapeError{Op: op, Shape: shape, Reason: fmt.Sprintf(format, args...)}
}
