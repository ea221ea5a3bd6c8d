package shapeinfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorforge/adcore/internal/gradrules"
	"github.com/tensorforge/adcore/internal/ir"
)

func vec(n int) ir.Type { return ir.Tensor{Shape: []int{n}, DType: ir.Float64} }

func TestInferVarRefAndConst(t *testing.T) {
	reg := gradrules.NewRegistry()
	a := ir.Var{ID: 0, Name: "a", Type: vec(3)}
	env := Env{0: vec(3)}

	got, err := Infer(ir.VarRef{Var: a}, env, reg)
	require.NoError(t, err)
	assert.True(t, got.Equal(vec(3)))

	c := ir.Const{Type: ir.Tensor{DType: ir.Float64}, Value: 1.0}
	got, err = Infer(c, env, reg)
	require.NoError(t, err)
	assert.True(t, got.IsScalar())
}

func TestInferUnboundVar(t *testing.T) {
	reg := gradrules.NewRegistry()
	_, err := Infer(ir.VarRef{Var: ir.Var{ID: 99, Name: "ghost"}}, Env{}, reg)
	require.Error(t, err)
}

func TestInferCallAdd(t *testing.T) {
	reg := gradrules.NewRegistry()
	a := ir.Var{ID: 0, Name: "a", Type: vec(3)}
	b := ir.Var{ID: 1, Name: "b", Type: vec(3)}
	env := Env{0: vec(3), 1: vec(3)}

	call := ir.Call{Op: "add", Args: []ir.Expr{ir.VarRef{Var: a}, ir.VarRef{Var: b}}}
	got, err := Infer(call, env, reg)
	require.NoError(t, err)
	assert.True(t, got.Equal(vec(3)))
}

func TestInferCallUnknownOp(t *testing.T) {
	reg := gradrules.NewRegistry()
	a := ir.Var{ID: 0, Name: "a", Type: vec(3)}
	env := Env{0: vec(3)}
	call := ir.Call{Op: "matmul", Args: []ir.Expr{ir.VarRef{Var: a}}}
	_, err := Infer(call, env, reg)
	require.Error(t, err)
}

func TestInferTupleCtorAndProj(t *testing.T) {
	reg := gradrules.NewRegistry()
	a := ir.Var{ID: 0, Name: "a", Type: vec(3)}
	b := ir.Var{ID: 1, Name: "b", Type: ir.Tensor{DType: ir.Float64}}
	env := Env{0: vec(3), 1: ir.Tensor{DType: ir.Float64}}

	tup := ir.TupleCtor{Elems: []ir.Expr{ir.VarRef{Var: a}, ir.VarRef{Var: b}}}
	got, err := Infer(tup, env, reg)
	require.NoError(t, err)
	tt, ok := got.(ir.Tuple)
	require.True(t, ok)
	require.Len(t, tt.Elems, 2)

	tVar := ir.Var{ID: 2, Name: "t", Type: tt}
	env[2] = tt
	proj := ir.TupleProj{Tuple: ir.VarRef{Var: tVar}, Index: 1}
	got, err = Infer(proj, env, reg)
	require.NoError(t, err)
	assert.True(t, got.IsScalar())

	_, err = Infer(ir.TupleProj{Tuple: ir.VarRef{Var: tVar}, Index: 5}, env, reg)
	require.Error(t, err)
}

func TestInferFunction(t *testing.T) {
	reg := gradrules.NewRegistry()
	a := ir.Var{ID: 0, Name: "a", Type: vec(3)}
	b := ir.Var{ID: 1, Name: "b", Type: vec(3)}
	y := ir.Var{ID: 2, Name: "y", Type: vec(3)}
	fn := &ir.Function{
		Name:   "f",
		Params: []ir.Var{a, b},
		Body: []ir.Binding{
			{Var: y, Value: ir.Call{Op: "add", Args: []ir.Expr{ir.VarRef{Var: a}, ir.VarRef{Var: b}}}},
		},
		Ret: ir.VarRef{Var: y},
	}

	env, retT, err := InferFunction(fn, reg)
	require.NoError(t, err)
	assert.True(t, retT.Equal(vec(3)))
	assert.True(t, env[2].Equal(vec(3)))
}

func TestInferFunctionDeclaredTypeMismatch(t *testing.T) {
	reg := gradrules.NewRegistry()
	a := ir.Var{ID: 0, Name: "a", Type: vec(3)}
	b := ir.Var{ID: 1, Name: "b", Type: vec(3)}
	badY := ir.Var{ID: 2, Name: "y", Type: ir.Tensor{DType: ir.Float64}} // wrong shape
	fn := &ir.Function{
		Name:   "f",
		Params: []ir.Var{a, b},
		Body: []ir.Binding{
			{Var: badY, Value: ir.Call{Op: "add", Args: []ir.Expr{ir.VarRef{Var: a}, ir.VarRef{Var: b}}}},
		},
		Ret: ir.VarRef{Var: badY},
	}
	_, _, err := InferFunction(fn, reg)
	require.Error(t, err)
}
