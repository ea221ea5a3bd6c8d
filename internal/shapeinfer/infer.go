// Package shapeinfer computes the structural type (spec.md GLOSSARY) of an
// IR expression given the types already assigned to the variables in scope.
// It is the structural-type counterpart of the teacher's Hindley-Milner
// inference (internal/types/typechecker_core.go): a single recursive
// dispatch over a closed expression-kind union, consulting an external
// per-operator table (here, gradrules' shape rules) for Call nodes instead
// of unifying type variables.
package shapeinfer

import (
	"fmt"

	"github.com/tensorforge/adcore/internal/gradrules"
	"github.com/tensorforge/adcore/internal/ir"
)

// Env maps variable ID to its already-inferred structural type. Callers
// populate Env with parameter types and each binding's type as the walk
// proceeds through a Function's body, in order (spec.md §3: a binding's
// expression may reference only variables bound earlier).
type Env map[int]ir.Type

// Infer computes the structural type of e under env and registry reg. The
// registry supplies the shape rule for Call nodes (SPEC_FULL.md §4.8); all
// other Expr kinds are typed structurally without consulting it.
func Infer(e ir.Expr, env Env, reg *gradrules.Registry) (ir.Type, error) {
	switch ex := e.(type) {
	case ir.VarRef:
		t, ok := env[ex.Var.ID]
		if !ok {
			return nil, fmt.Errorf("shapeinfer: unbound variable %s", ex.Var)
		}
		return t, nil

	case ir.Const:
		return ex.Type, nil

	case ir.TupleCtor:
		elems := make([]ir.Type, len(ex.Elems))
		for i, sub := range ex.Elems {
			t, err := Infer(sub, env, reg)
			if err != nil {
				return nil, err
			}
			elems[i] = t
		}
		return ir.Tuple{Elems: elems}, nil

	case ir.TupleProj:
		tupT, err := Infer(ex.Tuple, env, reg)
		if err != nil {
			return nil, err
		}
		tup, ok := tupT.(ir.Tuple)
		if !ok {
			return nil, fmt.Errorf("shapeinfer: projection of non-tuple type %s", tupT)
		}
		if ex.Index < 0 || ex.Index >= len(tup.Elems) {
			return nil, fmt.Errorf("shapeinfer: tuple index %d out of range for %s", ex.Index, tupT)
		}
		return tup.Elems[ex.Index], nil

	case ir.Call:
		return inferCall(ex, env, reg)

	default:
		return nil, fmt.Errorf("shapeinfer: unhandled expression kind %T", e)
	}
}

func inferCall(c ir.Call, env Env, reg *gradrules.Registry) (ir.Type, error) {
	argTypes := make([]ir.Type, len(c.Args))
	for i, a := range c.Args {
		t, err := Infer(a, env, reg)
		if err != nil {
			return nil, err
		}
		argTypes[i] = t
	}
	rule, ok := reg.LookupShape(c.Op)
	if !ok {
		return nil, fmt.Errorf("shapeinfer: no shape rule registered for operator %q", c.Op)
	}
	return rule(c, argTypes)
}

// InferFunction walks fn's parameters and body in order, returning the
// fully-populated Env (every bound variable's structural type) plus the
// type of fn's return value. Used by the differentiation driver
// (internal/autodiff) to type-check the target function before
// differentiating it.
func InferFunction(fn *ir.Function, reg *gradrules.Registry) (Env, ir.Type, error) {
	env := make(Env, len(fn.Params)+len(fn.Body))
	for _, p := range fn.Params {
		env[p.ID] = p.Type
	}
	for _, b := range fn.Body {
		t, err := Infer(b.Value, env, reg)
		if err != nil {
			return nil, nil, fmt.Errorf("binding %s: %w", b.Var.Name, err)
		}
		if !t.Equal(b.Var.Type) {
			return nil, nil, fmt.Errorf("binding %s: declared type %s does not match inferred type %s", b.Var.Name, b.Var.Type, t)
		}
		env[b.Var.ID] = b.Var.Type
	}
	retT, ok := env[fn.Ret.Var.ID]
	if !ok {
		return nil, nil, fmt.Errorf("function %s: return variable %s is unbound", fn.Name, fn.Ret.Var)
	}
	return env, retT, nil
}
