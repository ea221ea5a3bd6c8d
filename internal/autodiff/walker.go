package autodiff

import (
	aderrors "github.com/tensorforge/adcore/internal/errors"
	"github.com/tensorforge/adcore/internal/ir"
)

// reverseWalk iterates the forward bindings in reverse order (C2, spec.md
// §4.2), dispatching each to its handler by binding-value kind.
func (p *pass) reverseWalk() error {
	for i := len(p.fn.Body) - 1; i >= 0; i-- {
		if err := p.visitBinding(p.fn.Body[i]); err != nil {
			return err
		}
	}
	return nil
}

// visitBinding implements one step of the reverse walk: the dead-adjoint
// skip (I5), adjoint-variable allocation and emission (I2), and dispatch
// on the binding's expression kind to propagate contributions to the
// variables E references.
func (p *pass) visitBinding(b ir.Binding) error {
	v := b.Var
	expr, had := p.store.getExpr(v)
	if !had {
		// Irrelevant: no downstream use contributed an adjoint. Skip
		// entirely — no adjoint_var allocated, no recursion into E
		// (spec.md §4.2 step 1, invariant I5).
		return nil
	}

	// Atomize before binding: expr may still carry one level of nested,
	// unatomized Calls (e.g. sub's partial nests a "neg" Call inside
	// collapse_sum_to's args) from the "store the first contribution raw"
	// peephole in accumulate — flattening is deferred until the expression
	// is actually about to be bound to a named variable.
	flat, err := p.atomizeChildren(expr)
	if err != nil {
		return err
	}
	a := p.emit(v.Name+"_adjoint", v.Type, flat)
	p.store.setVar(v, a)

	switch e := b.Value.(type) {
	case ir.Call:
		return p.visitCall(v, e, a)
	case ir.TupleCtor:
		return p.visitTupleCtor(e, a)
	case ir.TupleProj:
		return p.accumulateTupleProj(e.Tuple.Var, e.Index, a)
	case ir.VarRef:
		// Pure assignment V = x: fold adjoint_expr[V] (the expression,
		// not A) into adjoint_expr[x] — spec.md §4.2's key design point
		// (§4.4): this is the one place an expression increment, rather
		// than the named adjoint variable, is threaded through, because
		// it is already guaranteed (by I3) to carry visible tuple
		// structure when V is tuple-typed.
		return p.accumulate(e.Var, expr)
	case ir.Const:
		// Constants have no input adjoints.
		return nil
	default:
		return aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC002, p.fn.Name,
			"unsupported binding expression kind in target function body"))
	}
}

// visitCall invokes the gradient-rule dispatch (C6) for a Call binding,
// then folds each returned partial into the corresponding argument's
// adjoint expression (C4).
func (p *pass) visitCall(v ir.Var, c ir.Call, a ir.Var) error {
	partials, err := p.reg.PartialsOf(c, ir.VarRef{Var: a})
	if err != nil {
		return aderrors.WrapReport(aderrors.NewUnknownGradient(p.fn.Name, c.Op, v.Name))
	}
	if len(partials) != len(c.Args) {
		return aderrors.WrapReport(aderrors.NewInvariantViolation(p.fn.Name, "C6",
			"gradient rule returned a different number of partials than call arguments"))
	}
	for i, argExpr := range c.Args {
		argRef, ok := argExpr.(ir.VarRef)
		if !ok {
			return aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC002, p.fn.Name,
				"call argument in target function body is not a named variable"))
		}
		partialType, err := p.inferType(partials[i])
		if err != nil {
			return err
		}
		if !partialType.Equal(argRef.Var.Type) {
			return aderrors.WrapReport(aderrors.NewShapeMismatch(p.fn.Name, c.Op, argRef.Var.Name,
				argRef.Var.Type.String(), partialType.String()))
		}
		if err := p.accumulate(argRef.Var, partials[i]); err != nil {
			return err
		}
	}
	return nil
}

// visitTupleCtor folds TupleProj(a, i) into each constituent variable's
// adjoint expression; A is guaranteed tuple-typed by invariant I4.
func (p *pass) visitTupleCtor(tc ir.TupleCtor, a ir.Var) error {
	for i, el := range tc.Elems {
		elRef, ok := el.(ir.VarRef)
		if !ok {
			return aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC002, p.fn.Name,
				"tuple constructor element in target function body is not a named variable"))
		}
		proj := ir.TupleProj{Tuple: ir.VarRef{Var: a}, Index: i}
		if err := p.accumulate(elRef.Var, proj); err != nil {
			return err
		}
	}
	return nil
}
