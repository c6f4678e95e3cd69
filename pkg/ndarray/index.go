package ndarray

import "github.com/numlink/numlink/internal/foreign"

// Index describes one dimension's selection in a Get/Set expression.
// Integer indices reduce dimensionality; slice, range, and list indices
// preserve it.
type Index interface {
	term() foreign.IndexTerm
}

// intIndex selects a single position.
type intIndex int

func (i intIndex) term() foreign.IndexTerm {
	return foreign.IndexTerm{Kind: foreign.TermInt, Index: int64(i)}
}

// At selects position i along one dimension. Negative values count from
// the end.
func At(i int) Index { return intIndex(i) }

// listIndex selects a sequence of positions.
type listIndex []int

func (l listIndex) term() foreign.IndexTerm {
	out := make([]int64, len(l))
	for i, v := range l {
		out[i] = int64(v)
	}
	return foreign.IndexTerm{Kind: foreign.TermList, List: out}
}

// Pick selects the given positions along one dimension, preserving it.
func Pick(ix ...int) Index { return listIndex(ix) }

// Slice selects a start/stop/step range along one dimension. Nil fields
// take the dimension default. Slice is a pure value type.
type Slice struct {
	Start *int
	Stop  *int
	Step  *int
}

func (s Slice) term() foreign.IndexTerm {
	return foreign.IndexTerm{
		Kind:  foreign.TermSlice,
		Start: opt(s.Start),
		Stop:  opt(s.Stop),
		Step:  opt(s.Step),
	}
}

func opt(p *int) *int64 {
	if p == nil {
		return nil
	}
	v := int64(*p)
	return &v
}

// I returns a pointer to v, for building Slice literals.
func I(v int) *int { return &v }

// All selects a whole dimension.
func All() Index { return Slice{} }

// Span selects the half-open range [start, stop) with step 1.
func Span(start, stop int) Index {
	return Slice{Start: I(start), Stop: I(stop)}
}

// Stepped selects the half-open range [start, stop) with the given step.
func Stepped(start, stop, step int) Index {
	return Slice{Start: I(start), Stop: I(stop), Step: I(step)}
}

func buildExpr(indices []Index) foreign.IndexExpr {
	expr := make(foreign.IndexExpr, len(indices))
	for i, ix := range indices {
		expr[i] = ix.term()
	}
	return expr
}
