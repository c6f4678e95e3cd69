package foreign

import "fmt"

// ForeignError surfaces an exception raised inside the embedded engine.
// It carries the foreign type name and message so callers can diagnose
// the failure without re-entering the engine.
type ForeignError struct {
	Message  string
	TypeName string
}

func (e *ForeignError) Error() string {
	return fmt.Sprintf("foreign error [%s]: %s", e.TypeName, e.Message)
}

// ConversionError reports a type mismatch while crossing the boundary.
type ConversionError struct {
	SourceType string
	TargetType string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.SourceType, e.TargetType)
}
