package ndarray

import (
	"fmt"

	"github.com/numlink/numlink/internal/foreign"
)

// ForeignError surfaces an exception raised inside the embedded engine.
type ForeignError = foreign.ForeignError

// ConversionError reports a type mismatch crossing the boundary.
type ConversionError = foreign.ConversionError

// IllegalStateError reports an operation that is invalid for the
// handle's current state, such as indexing a 0-dimensional scalar or
// using a released handle. It indicates a programmer error.
type IllegalStateError struct {
	Op     string
	Reason string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("illegal state in %s: %s", e.Op, e.Reason)
}

// ExhaustedError reports an iterator advanced past its end.
type ExhaustedError struct{}

func (e *ExhaustedError) Error() string {
	return "iterator exhausted"
}
