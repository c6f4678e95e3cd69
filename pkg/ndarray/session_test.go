package ndarray_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numlink/numlink/internal/events"
	"github.com/numlink/numlink/internal/foreign"
	"github.com/numlink/numlink/pkg/logger"
	"github.com/numlink/numlink/pkg/ndarray"
	"github.com/numlink/numlink/pkg/testutil"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Component: "test", Level: "error", Output: io.Discard})
}

// newTestSession starts a session over a real embedded engine.
func newTestSession(t *testing.T) *ndarray.Session {
	t.Helper()
	s, err := ndarray.New(ndarray.Config{Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newMockSession starts a session over a scriptable mock service.
func newMockSession(t *testing.T, mock *testutil.MockForeignService) *ndarray.Session {
	t.Helper()
	s, err := ndarray.New(ndarray.Config{Service: mock, Logger: quietLogger()})
	require.NoError(t, err)
	return s
}

func TestNewSession(t *testing.T) {
	s := newTestSession(t)
	assert.NotEmpty(t, s.Token())
}

func TestSessionCloseIdempotent(t *testing.T) {
	s, err := ndarray.New(ndarray.Config{Logger: quietLogger()})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestFromFloat64s(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	defer a.Close()

	shape, err := a.Shape()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, shape)

	it, err := a.Flat()
	require.NoError(t, err)
	vals, err := it.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, vals)
}

func TestFromFloat64sDefaultShape(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2, 3})
	require.NoError(t, err)
	defer a.Close()

	shape, err := a.Shape()
	require.NoError(t, err)
	assert.Equal(t, []int{3}, shape)
}

func TestFromFloat64sShapeMismatch(t *testing.T) {
	s := newTestSession(t)

	_, err := s.FromFloat64s([]float64{1, 2, 3}, 2, 2)
	var fe *ndarray.ForeignError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "ValueError", fe.TypeName)
}

func TestZerosTyped(t *testing.T) {
	s := newTestSession(t)

	a, err := s.ZerosTyped(ndarray.Int32, 2, 2)
	require.NoError(t, err)
	defer a.Close()

	dt, err := a.DType()
	require.NoError(t, err)
	assert.Equal(t, ndarray.Int32, dt)

	itemsize, err := a.Itemsize()
	require.NoError(t, err)
	assert.Equal(t, 4, itemsize)
}

func TestZerosUnknownDType(t *testing.T) {
	s := newTestSession(t)

	_, err := s.ZerosTyped(ndarray.DType("complex128"), 2)
	assert.Error(t, err)
}

func TestFull(t *testing.T) {
	s := newTestSession(t)

	a, err := s.Full(7.5, 3)
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Flat()
	require.NoError(t, err)
	vals, err := it.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{7.5, 7.5, 7.5}, vals)
}

func TestArange(t *testing.T) {
	s := newTestSession(t)

	a, err := s.Arange(4)
	require.NoError(t, err)
	defer a.Close()

	it, err := a.Flat()
	require.NoError(t, err)
	vals, err := it.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, vals)
}

// ===== Delegated operations =====

func TestInvokeAdd(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2, 3})
	require.NoError(t, err)
	defer a.Close()
	b, err := s.FromFloat64s([]float64{10, 20, 30})
	require.NoError(t, err)
	defer b.Close()

	sum, err := s.Invoke("nd", "add", []interface{}{a, b}, nil)
	require.NoError(t, err)
	defer sum.Close()

	it, err := sum.Flat()
	require.NoError(t, err)
	vals, err := it.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33}, vals)
}

func TestInvokeSumProducesScalar(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	defer a.Close()

	total, err := s.Invoke("nd", "sum", []interface{}{a}, nil)
	require.NoError(t, err)
	require.True(t, total.IsScalar())

	v, err := total.Scalar()
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
}

func TestInvokeComparisonProducesBooleanArray(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 5, 3})
	require.NoError(t, err)
	defer a.Close()
	b, err := s.FromFloat64s([]float64{2, 2, 3})
	require.NoError(t, err)
	defer b.Close()

	mask, err := s.Invoke("nd", "lt", []interface{}{a, b}, nil)
	require.NoError(t, err)
	defer mask.Close()

	dt, err := mask.DType()
	require.NoError(t, err)
	assert.Equal(t, ndarray.Uint8, dt)

	it, err := mask.Flat()
	require.NoError(t, err)
	vals, err := it.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, vals)
}

func TestInvokeBooleanScalar(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2})
	require.NoError(t, err)
	defer a.Close()
	b, err := s.FromFloat64s([]float64{1, 2})
	require.NoError(t, err)
	defer b.Close()
	c, err := s.FromFloat64s([]float64{1, 3})
	require.NoError(t, err)
	defer c.Close()

	eq, err := s.Invoke("nd", "equal", []interface{}{a, b}, nil)
	require.NoError(t, err)
	require.True(t, eq.IsScalar())
	v, err := eq.Scalar()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	ne, err := s.Invoke("nd", "equal", []interface{}{a, c}, nil)
	require.NoError(t, err)
	v, err = ne.Scalar()
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestInvokeStringScalar(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1})
	require.NoError(t, err)
	defer a.Close()

	_, err = s.Invoke("nd", "tostring", []interface{}{a}, nil)
	var ce *ndarray.ConversionError
	require.ErrorAs(t, err, &ce)
}

func TestInvokeCrossSessionHandle(t *testing.T) {
	s1 := newTestSession(t)
	s2 := newTestSession(t)

	a, err := s2.FromFloat64s([]float64{1, 2})
	require.NoError(t, err)
	defer a.Close()

	_, err = s1.Invoke("nd", "sum", []interface{}{a}, nil)
	var ise *ndarray.IllegalStateError
	require.ErrorAs(t, err, &ise)
}

func TestInvokeUnknownModule(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Invoke("linalg", "det", nil, nil)
	var fe *ndarray.ForeignError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "LookupError", fe.TypeName)
}

// ===== Events =====

func TestHandleLifecycleEvents(t *testing.T) {
	s := newTestSession(t)

	a, err := s.FromFloat64s([]float64{1, 2})
	require.NoError(t, err)

	created := s.Events().RecentByType(events.EventHandleCreated, 10)
	require.NotEmpty(t, created)

	require.NoError(t, a.Close())
	released := s.Events().RecentByType(events.EventHandleReleased, 10)
	require.NotEmpty(t, released)
}

func TestSessionUsesMockService(t *testing.T) {
	mock := testutil.NewMockForeignService()
	mock.CallFunc = func(module, method string, args []interface{}, kwargs map[string]interface{}) (foreign.Result, error) {
		return foreign.Result{Kind: foreign.KindArray, Ref: 42}, nil
	}
	s := newMockSession(t, mock)

	a, err := s.FromFloat64s([]float64{1, 2})
	require.NoError(t, err)
	assert.False(t, a.IsScalar())
	assert.Contains(t, mock.Calls(), "Call:nd.create")
}
