package autodiff

import (
	aderrors "github.com/tensorforge/adcore/internal/errors"
	"github.com/tensorforge/adcore/internal/ir"
)

// zeroSkeleton builds the structurally-zero expression for t (spec.md
// §4.4): zeros(shape, dtype) for a Tensor leaf, a TupleCtor of
// zero-skeletons for a Tuple. Leaves are left as raw (unnamed) Calls —
// S5 shows the expected output embedding `zeros(t1)` inline rather than
// through a separately bound variable.
func zeroSkeleton(t ir.Type) ir.Expr {
	switch tt := t.(type) {
	case ir.Tensor:
		return ir.Call{Op: "zeros", Attrs: map[string]any{"shape": tt.Shape, "dtype": tt.DType}}
	case ir.Tuple:
		elems := make([]ir.Expr, len(tt.Elems))
		for i, e := range tt.Elems {
			elems[i] = zeroSkeleton(e)
		}
		return ir.TupleCtor{Elems: elems}
	default:
		return ir.Call{Op: "zeros"}
	}
}

// accumulate is the generalized addition of spec.md §4.4: fold inc into
// vInto's accumulated adjoint expression. The very first contribution to a
// variable is stored directly (the "first update = assignment" peephole
// the design notes call out: nested_add(zero_skeleton, inc) simplifies to
// inc, which is what keeps P5 — zero add-ops for a single-use variable —
// true without a special case in the walker).
func (p *pass) accumulate(vInto ir.Var, inc ir.Expr) error {
	cur, had := p.store.getExpr(vInto)
	if !had {
		p.store.setExpr(vInto, inc)
		return nil
	}
	merged, err := p.nestedAdd(cur, inc, vInto.Type)
	if err != nil {
		return err
	}
	p.store.setExpr(vInto, merged)
	return nil
}

// nestedAdd implements spec.md §4.4's nested_add: tuple-typed bases recurse
// structurally (invariant I3 — require inc to be a same-arity TupleCtor);
// tensor-typed bases fold into a single add Call over named operands (both
// sides atomized via p.name, which is the generalization of the spec's
// name(inc) — base may itself be a not-yet-named prior add result).
func (p *pass) nestedAdd(base, inc ir.Expr, t ir.Type) (ir.Expr, error) {
	if tup, ok := t.(ir.Tuple); ok {
		baseTup, ok := base.(ir.TupleCtor)
		if !ok {
			return nil, aderrors.WrapReport(aderrors.NewInvariantViolation(p.fn.Name, "I3",
				"nested_add: tuple-typed adjoint base is not a TupleCtor"))
		}
		incTup, ok := inc.(ir.TupleCtor)
		if !ok || len(incTup.Elems) != len(baseTup.Elems) {
			return nil, aderrors.WrapReport(aderrors.NewInvariantViolation(p.fn.Name, "I3",
				"nested_add: tuple-typed increment is not a TupleCtor of matching arity"))
		}
		elems := make([]ir.Expr, len(baseTup.Elems))
		for i := range baseTup.Elems {
			e, err := p.nestedAdd(baseTup.Elems[i], incTup.Elems[i], tup.Elems[i])
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return ir.TupleCtor{Elems: elems}, nil
	}

	baseRef, err := p.name(base)
	if err != nil {
		return nil, err
	}
	incRef, err := p.name(inc)
	if err != nil {
		return nil, err
	}
	return ir.Call{Op: "add", Args: []ir.Expr{baseRef, incRef}}, nil
}

// accumulateTupleProj handles spec.md §4.2's TupleProj dispatch: x's
// adjoint is ensured to be a zero-skeleton TupleCtor of its full structural
// type, then its k-th leaf is replaced via a positional fold — never a
// recursive add over the whole tuple, since the other positions are
// untouched (spec.md §4.3's structural-replace).
func (p *pass) accumulateTupleProj(x ir.Var, k int, a ir.Var) error {
	xt, ok := x.Type.(ir.Tuple)
	if !ok {
		return aderrors.WrapReport(aderrors.NewInvariantViolation(p.fn.Name, "I4",
			"tuple projection target is not tuple-typed"))
	}
	if k < 0 || k >= len(xt.Elems) {
		return aderrors.WrapReport(aderrors.NewInvariantViolation(p.fn.Name, "I4",
			"tuple projection index out of range"))
	}

	cur, had := p.store.getExpr(x)
	var tup ir.TupleCtor
	if !had {
		skel, ok := zeroSkeleton(xt).(ir.TupleCtor)
		if !ok {
			return aderrors.WrapReport(aderrors.NewInvariantViolation(p.fn.Name, "I3", "zero-skeleton of a tuple type must be a TupleCtor"))
		}
		tup = skel
	} else {
		t, ok := cur.(ir.TupleCtor)
		if !ok {
			return aderrors.WrapReport(aderrors.NewInvariantViolation(p.fn.Name, "I3",
				"tuple-typed adjoint is not a TupleCtor"))
		}
		tup = t
	}

	leafT := xt.Elems[k]
	pristine := tup.Elems[k].Key() == zeroSkeleton(leafT).Key()

	var newLeaf ir.Expr
	if pristine {
		newLeaf = ir.VarRef{Var: a}
	} else {
		merged, err := p.nestedAdd(tup.Elems[k], ir.VarRef{Var: a}, leafT)
		if err != nil {
			return err
		}
		newLeaf = merged
	}

	elems := make([]ir.Expr, len(tup.Elems))
	copy(elems, tup.Elems)
	elems[k] = newLeaf
	p.store.setExpr(x, ir.TupleCtor{Elems: elems})
	return nil
}
