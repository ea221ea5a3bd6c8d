package ir_test

// This file is the test-only scalar/array evaluator SPEC_FULL.md §8
// describes for property P6 (numeric equivalence via finite differences):
// it is not part of the differentiation core and exists solely to make P6
// testable without building a general tensor runtime, which spec.md §1's
// Non-goals explicitly exclude. It lives as an external (_test) package so
// that importing internal/autodiff (which itself imports internal/ir)
// does not create a test-only import cycle on internal/ir.

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensorforge/adcore/internal/autodiff"
	"github.com/tensorforge/adcore/internal/gradrules"
	"github.com/tensorforge/adcore/internal/ir"
)

// value is either a tensor (flat []float64 plus shape) or a tuple of values.
type value interface{}

type tensorVal struct {
	shape []int
	data  []float64
}

type tupleVal []value

func scalarVal(v float64) tensorVal { return tensorVal{shape: nil, data: []float64{v}} }

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// evalFunction interprets fn's body over the given parameter values and
// returns the value bound to fn.Ret.
func evalFunction(t *testing.T, fn *ir.Function, args map[string]value) value {
	t.Helper()
	env := make(map[int]value, len(fn.Params)+len(fn.Body))
	for _, p := range fn.Params {
		v, ok := args[p.Name]
		require.True(t, ok, "missing argument for parameter %s", p.Name)
		env[p.ID] = v
	}
	for _, b := range fn.Body {
		env[b.Var.ID] = evalExpr(t, b.Value, env)
	}
	v, ok := env[fn.Ret.Var.ID]
	require.True(t, ok, "return variable %s never bound", fn.Ret.Var.Name)
	return v
}

func evalExpr(t *testing.T, e ir.Expr, env map[int]value) value {
	t.Helper()
	switch v := e.(type) {
	case ir.VarRef:
		val, ok := env[v.Var.ID]
		require.True(t, ok, "unbound variable %s during evaluation", v.Var.Name)
		return val
	case ir.Const:
		if f, ok := v.Value.(float64); ok {
			return scalarVal(f)
		}
		t.Fatalf("eval: unsupported const value %v", v.Value)
		return nil
	case ir.TupleCtor:
		elems := make(tupleVal, len(v.Elems))
		for i, el := range v.Elems {
			elems[i] = evalExpr(t, el, env)
		}
		return elems
	case ir.TupleProj:
		tv := evalExpr(t, v.Tuple, env)
		tup, ok := tv.(tupleVal)
		require.True(t, ok, "projection of a non-tuple value")
		return tup[v.Index]
	case ir.Call:
		args := make([]value, len(v.Args))
		for i, a := range v.Args {
			args[i] = evalExpr(t, a, env)
		}
		return evalCall(t, v, args)
	default:
		t.Fatalf("eval: unhandled expression kind %T", e)
		return nil
	}
}

func evalCall(t *testing.T, c ir.Call, args []value) value {
	t.Helper()
	switch c.Op {
	case "zeros":
		shape, _ := c.Attrs["shape"].([]int)
		return tensorVal{shape: shape, data: make([]float64, size(shape))}
	case "ones":
		shape, _ := c.Attrs["shape"].([]int)
		data := make([]float64, size(shape))
		for i := range data {
			data[i] = 1
		}
		return tensorVal{shape: shape, data: data}
	case "neg":
		a := args[0].(tensorVal)
		out := make([]float64, len(a.data))
		for i, x := range a.data {
			out[i] = -x
		}
		return tensorVal{shape: a.shape, data: out}
	case "add":
		return elementwise(t, args[0].(tensorVal), args[1].(tensorVal), func(x, y float64) float64 { return x + y })
	case "sub":
		return elementwise(t, args[0].(tensorVal), args[1].(tensorVal), func(x, y float64) float64 { return x - y })
	case "mul":
		return elementwise(t, args[0].(tensorVal), args[1].(tensorVal), func(x, y float64) float64 { return x * y })
	case "sum":
		a := args[0].(tensorVal)
		s := 0.0
		for _, x := range a.data {
			s += x
		}
		return scalarVal(s)
	case "broadcast_to":
		a := args[0].(tensorVal)
		shape, _ := c.Attrs["shape"].([]int)
		return broadcastTo(t, a, shape)
	case "collapse_sum_to":
		a := args[0].(tensorVal)
		shape, _ := c.Attrs["shape"].([]int)
		return collapseSumTo(a, shape)
	default:
		t.Fatalf("eval: no interpreter registered for operator %q", c.Op)
		return nil
	}
}

func elementwise(t *testing.T, a, b tensorVal, op func(x, y float64) float64) tensorVal {
	t.Helper()
	switch {
	case len(a.data) == len(b.data):
		out := make([]float64, len(a.data))
		for i := range a.data {
			out[i] = op(a.data[i], b.data[i])
		}
		return tensorVal{shape: a.shape, data: out}
	case len(a.data) == 1:
		out := make([]float64, len(b.data))
		for i := range b.data {
			out[i] = op(a.data[0], b.data[i])
		}
		return tensorVal{shape: b.shape, data: out}
	case len(b.data) == 1:
		out := make([]float64, len(a.data))
		for i := range a.data {
			out[i] = op(a.data[i], b.data[0])
		}
		return tensorVal{shape: a.shape, data: out}
	default:
		t.Fatalf("eval: elementwise op on incompatible shapes %v / %v", a.shape, b.shape)
		return tensorVal{}
	}
}

func broadcastTo(t *testing.T, a tensorVal, shape []int) tensorVal {
	t.Helper()
	n := size(shape)
	if len(a.data) == n {
		return tensorVal{shape: shape, data: a.data}
	}
	require.Equal(t, 1, len(a.data), "broadcast_to only supports scalar or identical-size sources in this test evaluator")
	out := make([]float64, n)
	for i := range out {
		out[i] = a.data[0]
	}
	return tensorVal{shape: shape, data: out}
}

func collapseSumTo(a tensorVal, shape []int) tensorVal {
	if size(shape) == len(a.data) {
		return tensorVal{shape: shape, data: a.data}
	}
	s := 0.0
	for _, x := range a.data {
		s += x
	}
	return tensorVal{shape: shape, data: []float64{s}}
}

// TestP6_NumericGradientMatchesFiniteDifference runs S1's add+sum function
// and its AD-synthesized adjoint, then checks the adjoint's reported
// per-element gradients against a central-difference approximation of the
// forward function — spec.md §8's P6.
func TestP6_NumericGradientMatchesFiniteDifference(t *testing.T) {
	vecT := func(n int) ir.Tensor { return ir.Tensor{Shape: []int{n}, DType: ir.Float32} }
	scalarT := ir.Tensor{DType: ir.Float32}

	x := ir.Var{ID: 0, Name: "x", Type: vecT(3)}
	y := ir.Var{ID: 1, Name: "y", Type: vecT(3)}
	l := ir.Var{ID: 2, Name: "l", Type: vecT(3)}
	g := ir.Var{ID: 3, Name: "g", Type: scalarT}

	fn := &ir.Function{
		Name:   "f",
		Params: []ir.Var{x, y},
		Body: []ir.Binding{
			{Var: l, Value: ir.Call{Op: "add", Args: []ir.Expr{ir.VarRef{Var: x}, ir.VarRef{Var: y}}}},
			{Var: g, Value: ir.Call{Op: "sum", Args: []ir.Expr{ir.VarRef{Var: l}}}},
		},
		Ret: ir.VarRef{Var: g},
	}
	mod := ir.NewModule()
	mod.Add(fn)
	reg := gradrules.NewRegistry()

	out, err := autodiff.Differentiate(mod, "f", nil, reg)
	require.NoError(t, err)
	adjFn, ok := out.Lookup("f_adjoint")
	require.True(t, ok)

	xVals := tensorVal{shape: []int{3}, data: []float64{1, 2, 3}}
	yVals := tensorVal{shape: []int{3}, data: []float64{4, 5, 6}}

	result := evalFunction(t, adjFn, map[string]value{"x": xVals, "y": yVals})
	top, ok := result.(tupleVal)
	require.True(t, ok)
	require.Len(t, top, 2)
	grads, ok := top[1].(tupleVal)
	require.True(t, ok)
	require.Len(t, grads, 2)
	xAdj := grads[0].(tensorVal)
	yAdj := grads[1].(tensorVal)

	const eps = 1e-4
	forward := func(xv, yv []float64) float64 {
		r := evalFunction(t, fn, map[string]value{
			"x": tensorVal{shape: []int{3}, data: xv},
			"y": tensorVal{shape: []int{3}, data: yv},
		})
		return r.(tensorVal).data[0]
	}

	for i := 0; i < 3; i++ {
		xPlus := append([]float64(nil), xVals.data...)
		xMinus := append([]float64(nil), xVals.data...)
		xPlus[i] += eps
		xMinus[i] -= eps
		fd := (forward(xPlus, yVals.data) - forward(xMinus, yVals.data)) / (2 * eps)
		require.InDelta(t, fd, xAdj.data[i], 1e-2, "x_adjoint[%d] mismatch vs finite difference", i)
	}

	for i := 0; i < 3; i++ {
		yPlus := append([]float64(nil), yVals.data...)
		yMinus := append([]float64(nil), yVals.data...)
		yPlus[i] += eps
		yMinus[i] -= eps
		fd := (forward(xVals.data, yPlus) - forward(xVals.data, yMinus)) / (2 * eps)
		require.InDelta(t, fd, yAdj.data[i], 1e-2, "y_adjoint[%d] mismatch vs finite difference", i)
	}
}
