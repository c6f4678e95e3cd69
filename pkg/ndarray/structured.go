package ndarray

import (
	"errors"

	"github.com/numlink/numlink/internal/events"
	"github.com/numlink/numlink/internal/foreign"
)

// StructuredIterator yields sub-array handles along the leading
// dimension of an array. Each step is a foreign call; the produced
// handles view the parent's memory. The iterator holds its own share
// of the parent reference count, released at exhaustion or Close.
// Not safe for concurrent use.
type StructuredIterator struct {
	sess   *Session
	parent *Array
	iterID int64
	length int
	pos    int
	closed bool
}

// Iter begins leading-dimension iteration over the array. A 1-d array
// yields scalar handles; higher ranks yield array views. Scalar
// handles cannot be iterated.
func (a *Array) Iter() (*StructuredIterator, error) {
	if a.isScalar {
		return nil, &IllegalStateError{Op: "iter", Reason: "cannot iterate a 0-dimensional scalar"}
	}
	shape, err := a.Shape()
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		return nil, &IllegalStateError{Op: "iter", Reason: "array has no leading dimension"}
	}
	ref, err := a.liveRef("iter")
	if err != nil {
		return nil, err
	}
	res, err := a.sess.svc.Call(foreign.KernelModule, "iter_begin", []interface{}{int64(ref)}, nil)
	if err != nil {
		return nil, err
	}
	id, err := res.Int()
	if err != nil {
		return nil, err
	}
	return &StructuredIterator{
		sess:   a.sess,
		parent: a,
		iterID: id,
		length: shape[0],
	}, nil
}

// HasNext reports whether another sub-array remains. It consults the
// cached leading-dimension length and has no side effects.
func (it *StructuredIterator) HasNext() bool {
	return !it.closed && it.pos < it.length
}

// Next returns the next sub-array handle, or ExhaustedError once the
// leading dimension is consumed. Exhaustion releases the iterator's
// share of the parent reference.
func (it *StructuredIterator) Next() (*Array, error) {
	if it.closed {
		return nil, &ExhaustedError{}
	}
	res, err := it.sess.svc.Call(foreign.KernelModule, "iter_next", []interface{}{it.iterID}, nil)
	if err != nil {
		var fe *ForeignError
		if errors.As(err, &fe) && fe.TypeName == "StopIteration" {
			it.closed = true
			it.sess.events.Log(events.Event{
				Type:     events.EventIteratorExhausted,
				Severity: events.SeverityDebug,
				Session:  it.sess.token,
			})
			return nil, &ExhaustedError{}
		}
		return nil, err
	}
	it.pos++
	out, err := it.sess.wrap(res)
	if err != nil {
		return nil, err
	}
	if !out.isScalar {
		out.Base = it.parent
	}
	return out, nil
}

// Close releases the iterator's share of the parent reference. It is
// idempotent and a no-op after exhaustion, which already released it.
func (it *StructuredIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	_, err := it.sess.svc.Call(foreign.KernelModule, "iter_end", []interface{}{it.iterID}, nil)
	return err
}
