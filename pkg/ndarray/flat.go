package ndarray

// FlatIterator walks every element of an array in row-major order,
// decoding directly from the shared buffer view without any foreign
// calls. It is single-pass and not safe for concurrent use.
type FlatIterator struct {
	view     []byte
	shape    []int
	strides  []int
	itemsize int
	dtype    DType
	size     int
	pos      int
}

// Flat returns a flat element iterator over the array. The buffer view
// is acquired up front; iteration itself never enters the engine.
// Scalar handles cannot be iterated.
func (a *Array) Flat() (*FlatIterator, error) {
	if a.isScalar {
		return nil, &IllegalStateError{Op: "flat", Reason: "cannot iterate a 0-dimensional scalar"}
	}
	shape, err := a.Shape()
	if err != nil {
		return nil, err
	}
	strides, err := a.Strides()
	if err != nil {
		return nil, err
	}
	itemsize, err := a.Itemsize()
	if err != nil {
		return nil, err
	}
	dt, err := a.DType()
	if err != nil {
		return nil, err
	}
	size, err := a.Size()
	if err != nil {
		return nil, err
	}
	view, err := a.View()
	if err != nil {
		return nil, err
	}
	return &FlatIterator{
		view:     view,
		shape:    shape,
		strides:  strides,
		itemsize: itemsize,
		dtype:    dt,
		size:     size,
	}, nil
}

// HasNext reports whether another element remains. It has no side
// effects and may be called any number of times.
func (it *FlatIterator) HasNext() bool {
	return it.pos < it.size
}

// Next returns the next element widened to float64, or ExhaustedError
// once the iterator has passed the last element.
func (it *FlatIterator) Next() (float64, error) {
	if it.pos >= it.size {
		return 0, &ExhaustedError{}
	}
	off := 0
	rem := it.pos
	for d := len(it.shape) - 1; d >= 0; d-- {
		coord := rem % it.shape[d]
		rem /= it.shape[d]
		off += coord * it.strides[d]
	}
	it.pos++
	return decodeElement(it.dtype, it.view[off:off+it.itemsize])
}

// Float64s drains the remaining elements into a slice.
func (it *FlatIterator) Float64s() ([]float64, error) {
	out := make([]float64, 0, it.size-it.pos)
	for it.HasNext() {
		v, err := it.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
