package ndarray

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/numlink/numlink/internal/foreign"
	"github.com/numlink/numlink/internal/membridge"
)

// Array is a native handle over either a foreign array reference or an
// eagerly extracted scalar. Exactly one of the two is present.
//
// Metadata (shape, strides, itemsize, size, dtype) is fetched lazily
// from the engine and cached forever; the engine treats array metadata
// as immutable after construction. Element data stays in engine-owned
// memory and is shared zero-copy through the buffer view.
type Array struct {
	sess  *Session
	token string // context token: the engine session this handle is valid in

	ref      foreign.Ref
	scalar   float64
	isScalar bool

	// Base points at the handle whose memory this handle views, when
	// known. Informational only, never an ownership edge.
	Base *Array

	mu         sync.Mutex
	released   bool
	view       []byte
	shape      []int
	strides    []int
	itemsize   int
	size       int
	sizeSet    bool
	dtype      DType
	transposed *Array
}

// IsScalar reports whether the handle holds an extracted scalar rather
// than a foreign array reference.
func (a *Array) IsScalar() bool { return a.isScalar }

// Scalar returns the scalar value of a 0-dimensional handle.
func (a *Array) Scalar() (float64, error) {
	if !a.isScalar {
		return 0, &IllegalStateError{Op: "scalar", Reason: "handle holds an array reference"}
	}
	return a.scalar, nil
}

// liveRef returns the foreign reference, failing if the handle is
// scalar or released.
func (a *Array) liveRef(op string) (foreign.Ref, error) {
	if a.isScalar {
		return 0, &IllegalStateError{Op: op, Reason: "handle holds a scalar, not an array reference"}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return 0, &IllegalStateError{Op: op, Reason: "handle has been released"}
	}
	return a.ref, nil
}

// --- metadata (lazy, first read wins, immutable afterwards) ---

// Shape returns the dimension sizes. Scalar handles have an empty shape.
func (a *Array) Shape() ([]int, error) {
	if a.isScalar {
		return []int{}, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil, &IllegalStateError{Op: "shape", Reason: "handle has been released"}
	}
	if a.shape == nil {
		v, err := a.sess.svc.GetField(a.ref, "shape", foreign.FieldIntSlice)
		if err != nil {
			return nil, err
		}
		a.shape = toInts(v.([]int64))
	}
	return append([]int(nil), a.shape...), nil
}

// Strides returns the per-dimension byte steps.
func (a *Array) Strides() ([]int, error) {
	if a.isScalar {
		return []int{}, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil, &IllegalStateError{Op: "strides", Reason: "handle has been released"}
	}
	if a.strides == nil {
		v, err := a.sess.svc.GetField(a.ref, "strides", foreign.FieldIntSlice)
		if err != nil {
			return nil, err
		}
		a.strides = toInts(v.([]int64))
	}
	return append([]int(nil), a.strides...), nil
}

// Itemsize returns the element width in bytes.
func (a *Array) Itemsize() (int, error) {
	if a.isScalar {
		return Float64.Itemsize(), nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return 0, &IllegalStateError{Op: "itemsize", Reason: "handle has been released"}
	}
	if a.itemsize == 0 {
		v, err := a.sess.svc.GetField(a.ref, "itemsize", foreign.FieldInt)
		if err != nil {
			return 0, err
		}
		a.itemsize = int(v.(int64))
	}
	return a.itemsize, nil
}

// Size returns the total element count. A scalar has size 1.
func (a *Array) Size() (int, error) {
	if a.isScalar {
		return 1, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return 0, &IllegalStateError{Op: "size", Reason: "handle has been released"}
	}
	if !a.sizeSet {
		v, err := a.sess.svc.GetField(a.ref, "size", foreign.FieldInt)
		if err != nil {
			return 0, err
		}
		a.size = int(v.(int64))
		a.sizeSet = true
	}
	return a.size, nil
}

// NDim returns the number of dimensions. A scalar has 0.
func (a *Array) NDim() (int, error) {
	shape, err := a.Shape()
	if err != nil {
		return 0, err
	}
	return len(shape), nil
}

// DType returns the element type.
func (a *Array) DType() (DType, error) {
	if a.isScalar {
		return Float64, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return "", &IllegalStateError{Op: "dtype", Reason: "handle has been released"}
	}
	if a.dtype == "" {
		v, err := a.sess.svc.GetField(a.ref, "dtype", foreign.FieldString)
		if err != nil {
			return "", err
		}
		a.dtype = DType(v.(string))
	}
	return a.dtype, nil
}

// View returns the zero-copy byte view over the engine-owned buffer,
// acquiring it on first use. Returns nil for scalar handles and for
// arrays with no addressable bytes. The view is plain memory and may be
// read concurrently without the execution lock while the handle is
// alive.
func (a *Array) View() ([]byte, error) {
	if a.isScalar {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil, &IllegalStateError{Op: "view", Reason: "handle has been released"}
	}
	if a.view == nil {
		view, err := membridge.Acquire(a.sess.svc, a.ref, a.sess.strict)
		if err != nil {
			return nil, err
		}
		a.view = view
	}
	return a.view, nil
}

// --- indexing & mutation ---

// Get resolves an index expression and returns a fresh handle: an array
// view for slice-bearing expressions, a scalar handle on full integer
// reduction. Indexing a scalar handle is an IllegalStateError and never
// reaches the engine.
func (a *Array) Get(indices ...Index) (*Array, error) {
	if a.isScalar {
		return nil, &IllegalStateError{Op: "get", Reason: "cannot index a 0-dimensional scalar"}
	}
	if len(indices) == 0 {
		return nil, &IllegalStateError{Op: "get", Reason: "at least one index is required"}
	}
	ref, err := a.liveRef("get")
	if err != nil {
		return nil, err
	}
	res, err := a.sess.svc.GetValue(ref, buildExpr(indices))
	if err != nil {
		return nil, err
	}
	out, err := a.sess.wrap(res)
	if err != nil {
		return nil, err
	}
	if !out.isScalar {
		out.Base = a
	}
	return out, nil
}

// Set assigns value into the selection described by indices. Value may
// be a native number or an *Array from the same session.
func (a *Array) Set(value interface{}, indices ...Index) error {
	if a.isScalar {
		return &IllegalStateError{Op: "set", Reason: "cannot index a 0-dimensional scalar"}
	}
	if len(indices) == 0 {
		return &IllegalStateError{Op: "set", Reason: "at least one index is required"}
	}
	ref, err := a.liveRef("set")
	if err != nil {
		return err
	}

	v := value
	if arr, ok := value.(*Array); ok {
		if arr.isScalar {
			v = arr.scalar
		} else {
			if arr.token != a.token {
				return &IllegalStateError{Op: "set", Reason: "value handle belongs to a different engine session"}
			}
			srcRef, err := arr.liveRef("set")
			if err != nil {
				return err
			}
			v = srcRef
		}
	}
	return a.sess.svc.SetValue(ref, buildExpr(indices), v)
}

// --- comparison, hashing, formatting ---

// Equal reports element-wise equality. Two scalars compare by value;
// two arrays compare by delegated full-shape comparison, where a shape
// mismatch means not-equal rather than an error; a scalar never equals
// an array.
func (a *Array) Equal(other *Array) bool {
	if other == nil {
		return false
	}
	if a.isScalar && other.isScalar {
		return a.scalar == other.scalar
	}
	if a.isScalar != other.isScalar {
		return false
	}
	if a.token != other.token {
		return false
	}

	refA, err := a.liveRef("equal")
	if err != nil {
		return false
	}
	refB, err := other.liveRef("equal")
	if err != nil {
		return false
	}

	res, err := a.sess.svc.Call(foreign.KernelModule, "equal",
		[]interface{}{int64(refA), int64(refB)}, nil)
	if err != nil {
		a.sess.log.WithError(err).Warn("delegated equality check failed")
		return false
	}
	eq, err := res.Bool()
	if err != nil {
		return false
	}
	return eq
}

// Hash returns a content hash. Scalars hash natively; arrays delegate
// to the engine. Hashes are not stable across engine sessions.
func (a *Array) Hash() (int64, error) {
	if a.isScalar {
		return int64(math.Float64bits(a.scalar)), nil
	}
	ref, err := a.liveRef("hash")
	if err != nil {
		return 0, err
	}
	res, err := a.sess.svc.Call(foreign.KernelModule, "hash", []interface{}{int64(ref)}, nil)
	if err != nil {
		return 0, err
	}
	return res.Int()
}

// String formats the handle. Scalars format natively; arrays delegate
// to the engine's representation.
func (a *Array) String() string {
	if a.isScalar {
		return strconv.FormatFloat(a.scalar, 'g', -1, 64)
	}
	ref, err := a.liveRef("string")
	if err != nil {
		return "<released ndarray>"
	}
	res, err := a.sess.svc.Call(foreign.KernelModule, "tostring", []interface{}{int64(ref)}, nil)
	if err != nil {
		return fmt.Sprintf("<ndarray: %v>", err)
	}
	s, err := res.Str()
	if err != nil {
		return fmt.Sprintf("<ndarray: %v>", err)
	}
	return s
}

// Transpose returns a handle viewing the same memory with reversed
// dimension order. The result is computed once per handle and cached.
// Transposing a scalar returns the handle itself.
func (a *Array) Transpose() (*Array, error) {
	if a.isScalar {
		return a, nil
	}
	a.mu.Lock()
	if a.transposed != nil {
		t := a.transposed
		a.mu.Unlock()
		return t, nil
	}
	if a.released {
		a.mu.Unlock()
		return nil, &IllegalStateError{Op: "transpose", Reason: "handle has been released"}
	}
	ref := a.ref
	a.mu.Unlock()

	res, err := a.sess.svc.Call(foreign.KernelModule, "transpose", []interface{}{int64(ref)}, nil)
	if err != nil {
		return nil, err
	}
	t, err := a.sess.wrap(res)
	if err != nil {
		return nil, err
	}
	t.Base = a

	a.mu.Lock()
	if a.transposed == nil {
		a.transposed = t
		a.mu.Unlock()
		return t, nil
	}
	cached := a.transposed
	a.mu.Unlock()

	// A concurrent caller cached its result first; release the
	// duplicate reference.
	t.Close()
	return cached, nil
}

// --- lifetime ---

// Close releases the handle's share of the foreign reference count.
// The buffer view is detached before the reference is decremented;
// doing it in the other order is a use-after-free. Close is idempotent
// and a no-op for scalar handles, which hold no foreign reference.
func (a *Array) Close() error {
	if a.isScalar {
		return nil
	}

	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return nil
	}
	a.released = true
	a.view = nil // detach the view first
	ref := a.ref
	a.mu.Unlock()

	return a.sess.svc.FreeArray(ref)
}

func toInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
