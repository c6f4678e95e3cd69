// Package foreign implements the foreign call gateway: the only path by
// which native code invokes the embedded numerical engine. It marshals
// native values into engine values, dispatches named methods on named
// engine modules, and converts results back into tagged native values.
package foreign

// Ref is an opaque reference to an engine-owned array object.
type Ref int64

// Kind tags the shape of a call result.
type Kind int

const (
	// KindNone means the call produced no value.
	KindNone Kind = iota
	// KindScalar means the call produced a native scalar in Value.
	KindScalar
	// KindArray means the call produced an array reference in Ref.
	KindArray
)

// Result is a tagged value returned from the engine.
type Result struct {
	Kind  Kind
	Ref   Ref
	Value interface{}
}

// Float returns the scalar result as a float64.
func (r Result) Float() (float64, error) {
	switch v := r.Value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	}
	return 0, &ConversionError{SourceType: typeName(r.Value), TargetType: "float64"}
}

// Int returns the scalar result as an int64.
func (r Result) Int() (int64, error) {
	switch v := r.Value.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	}
	return 0, &ConversionError{SourceType: typeName(r.Value), TargetType: "int64"}
}

// Bool returns the scalar result as a bool.
func (r Result) Bool() (bool, error) {
	if v, ok := r.Value.(bool); ok {
		return v, nil
	}
	return false, &ConversionError{SourceType: typeName(r.Value), TargetType: "bool"}
}

// Str returns the scalar result as a string.
func (r Result) Str() (string, error) {
	if v, ok := r.Value.(string); ok {
		return v, nil
	}
	return "", &ConversionError{SourceType: typeName(r.Value), TargetType: "string"}
}

// TermKind identifies one dimension's selection in an index expression.
type TermKind int

const (
	// TermInt selects a single position and reduces the dimension.
	TermInt TermKind = iota
	// TermList selects a sequence of positions, preserving the dimension.
	TermList
	// TermSlice selects a start/stop/step range, preserving the dimension.
	TermSlice
)

// IndexTerm describes one dimension's selection. For TermSlice, nil
// bounds mean the dimension default.
type IndexTerm struct {
	Kind  TermKind
	Index int64
	List  []int64
	Start *int64
	Stop  *int64
	Step  *int64
}

// IndexExpr is an ordered multi-dimensional index expression.
type IndexExpr []IndexTerm

// FieldKind is the expected native type of a metadata field read.
type FieldKind int

const (
	// FieldInt expects an integer.
	FieldInt FieldKind = iota
	// FieldIntSlice expects a sequence of integers.
	FieldIntSlice
	// FieldString expects a string.
	FieldString
)

// BufferInfo describes an engine-owned buffer exposed to native code.
// Data is the complete backing buffer shared with the engine; the
// addressable window for one array starts at Offset and spans Length
// bytes.
type BufferInfo struct {
	Data      []byte
	Offset    int
	Length    int
	ByteOrder string // "<" or ">"
}

// Service is the boundary with the embedded numerical engine. All
// methods are safe for concurrent use; invocations are serialized
// against the engine's global execution lock internally.
type Service interface {
	// Initialize starts the engine. It must succeed exactly once before
	// any other call.
	Initialize() error

	// Token identifies the engine session. References are only valid
	// within the session that produced them.
	Token() string

	// Call invokes module.method(args..., kwargs?) and returns a tagged
	// result. Engine exceptions surface as *ForeignError.
	Call(module, method string, args []interface{}, kwargs map[string]interface{}) (Result, error)

	// GetField reads a named metadata attribute of an array reference,
	// converted to the expected kind. Mismatches fail with
	// *ConversionError.
	GetField(ref Ref, field string, kind FieldKind) (interface{}, error)

	// GetValue resolves an index expression against an array reference.
	GetValue(ref Ref, expr IndexExpr) (Result, error)

	// SetValue assigns into the selection described by an index
	// expression. Value is a native number or a Ref.
	SetValue(ref Ref, expr IndexExpr, value interface{}) error

	// FreeArray releases one reference count for ref. The caller must
	// detach any buffer view first and must not call this more than
	// once per held reference.
	FreeArray(ref Ref) error

	// Buffer exposes the engine-owned backing buffer for ref as shared
	// memory. Returns nil for references without a backing buffer.
	Buffer(ref Ref) (*BufferInfo, error)

	// Close shuts the engine session down.
	Close() error
}

func typeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case float64:
		return "float64"
	case int64:
		return "int64"
	case bool:
		return "bool"
	case string:
		return "string"
	}
	return "object"
}
