package ndarray_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numlink/numlink/internal/events"
	"github.com/numlink/numlink/pkg/ndarray"
)

// ===== Flat iteration =====

func TestFlatRowMajor(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Flat()
	require.NoError(t, err)

	var got []float64
	for it.HasNext() {
		v, err := it.Next()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got)
}

func TestFlatHasNextIsPure(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2})
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Flat()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.True(t, it.HasNext())
	}
	v, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestFlatExhaustion(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1})
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Flat()
	require.NoError(t, err)

	_, err = it.Next()
	require.NoError(t, err)
	assert.False(t, it.HasNext())

	_, err = it.Next()
	var ex *ndarray.ExhaustedError
	require.ErrorAs(t, err, &ex)
	_, err = it.Next()
	require.ErrorAs(t, err, &ex)
}

func TestFlatRespectsStrides(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	defer a.Close()

	tr, err := a.Transpose()
	require.NoError(t, err)

	it, err := tr.Flat()
	require.NoError(t, err)
	vals, err := it.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, vals)
}

func TestFlatIntDTypes(t *testing.T) {
	s := newTestSession(t)

	a, err := s.ZerosTyped(ndarray.Int32, 3)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Set(-7, ndarray.At(1)))

	it, err := a.Flat()
	require.NoError(t, err)
	vals, err := it.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -7, 0}, vals)
}

func TestFlatOnScalar(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{5})
	require.NoError(t, err)
	defer a.Close()
	v, err := a.Get(ndarray.At(0))
	require.NoError(t, err)

	_, err = v.Flat()
	var ise *ndarray.IllegalStateError
	require.ErrorAs(t, err, &ise)
}

// ===== Structured iteration =====

func TestIterRows(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Iter()
	require.NoError(t, err)

	var rows [][]float64
	for it.HasNext() {
		row, err := it.Next()
		require.NoError(t, err)
		assert.Same(t, a, row.Base)

		flat, err := row.Flat()
		require.NoError(t, err)
		vals, err := flat.Float64s()
		require.NoError(t, err)
		rows = append(rows, vals)
		require.NoError(t, row.Close())
	}

	require.Len(t, rows, 2)
	assert.Equal(t, []float64{1, 2, 3}, rows[0])
	assert.Equal(t, []float64{4, 5, 6}, rows[1])
}

func TestIter1DYieldsScalars(t *testing.T) {
	s := newTestSession(t)

	a, err := s.Arange(3)
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Iter()
	require.NoError(t, err)

	var got []float64
	for it.HasNext() {
		v, err := it.Next()
		require.NoError(t, err)
		require.True(t, v.IsScalar())
		x, err := v.Scalar()
		require.NoError(t, err)
		got = append(got, x)
	}
	assert.Equal(t, []float64{0, 1, 2}, got)
}

func TestIterExhaustion(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2}, 2, 1)
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Iter()
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		row, err := it.Next()
		require.NoError(t, err)
		require.NoError(t, row.Close())
	}

	_, err = it.Next()
	var ex *ndarray.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.False(t, it.HasNext())
}

func TestIterHoldsParentAlive(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2, 3})
	require.NoError(t, err)

	it, err := a.Iter()
	require.NoError(t, err)

	// The handle's own share is gone, but the iterator still holds one.
	require.NoError(t, a.Close())

	v, err := it.Next()
	require.NoError(t, err)
	x, err := v.Scalar()
	require.NoError(t, err)
	assert.Equal(t, 1.0, x)

	require.NoError(t, it.Close())
}

func TestIterCloseIdempotent(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2})
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Iter()
	require.NoError(t, err)
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())

	_, err = it.Next()
	var ex *ndarray.ExhaustedError
	require.ErrorAs(t, err, &ex)
}

func TestIterOnScalar(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{5})
	require.NoError(t, err)
	defer a.Close()
	v, err := a.Get(ndarray.At(0))
	require.NoError(t, err)

	_, err = v.Iter()
	var ise *ndarray.IllegalStateError
	require.ErrorAs(t, err, &ise)
}

func TestIterExhaustionEvent(t *testing.T) {
	s := newTestSession(t)

	a, err := s.Arange(1)
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Iter()
	require.NoError(t, err)

	_, err = it.Next()
	require.NoError(t, err)
	_, err = it.Next()
	var ex *ndarray.ExhaustedError
	require.ErrorAs(t, err, &ex)

	exhausted := s.Events().RecentByType(events.EventIteratorExhausted, 5)
	assert.NotEmpty(t, exhausted)
}
