package autodiff

import (
	"fmt"

	aderrors "github.com/tensorforge/adcore/internal/errors"
	"github.com/tensorforge/adcore/internal/gradrules"
	"github.com/tensorforge/adcore/internal/ir"
	"github.com/tensorforge/adcore/internal/shapeinfer"
)

// Differentiate is the Driver (C1) of spec.md §4.1: the core's single
// entry point. It returns a new module containing mod's target function
// unchanged plus a new function, <target>_adjoint, whose return value is
// (original_return, (adjoint_of_p1, adjoint_of_p2, …)) for each parameter
// named in requireGrads (or every parameter, in declaration order, if
// requireGrads is nil).
func Differentiate(mod *ir.Module, targetName string, requireGrads []string, reg *gradrules.Registry) (*ir.Module, error) {
	fn, ok := mod.Lookup(targetName)
	if !ok {
		return nil, aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC001, targetName,
			fmt.Sprintf("function %q does not exist in the module", targetName)))
	}

	env, retType, err := shapeinfer.InferFunction(fn, reg)
	if err != nil {
		return nil, aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC002, targetName,
			"target function body does not type-check: "+err.Error()))
	}
	projected := make(map[int]bool)
	for _, b := range fn.Body {
		if !ir.IsNormalized(b.Value) {
			return nil, aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC002, targetName,
				fmt.Sprintf("binding %q is not in normalized form (every Call/TupleCtor argument must be a named variable)", b.Var.Name)))
		}
		if tp, ok := b.Value.(ir.TupleProj); ok {
			if projected[tp.Tuple.Var.ID] {
				return nil, aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC002, targetName,
					fmt.Sprintf("binding %q projects out of a projection result (nested tuple projection)", b.Var.Name)))
			}
			projected[b.Var.ID] = true
		}
	}

	retTensor, ok := retType.(ir.Tensor)
	if !ok || !retTensor.IsScalar() || !retTensor.DType.IsFloat() {
		return nil, aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC003, targetName,
			fmt.Sprintf("return value has type %s, want a scalar floating-point tensor", retType)))
	}

	grads := requireGrads
	if grads == nil {
		grads = make([]string, len(fn.Params))
		for i, p := range fn.Params {
			grads[i] = p.Name
		}
	}
	gradVars := make([]ir.Var, len(grads))
	for i, name := range grads {
		v, ok := fn.Lookup(name)
		if !ok || !fn.IsParam(v) {
			return nil, aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC004, targetName,
				fmt.Sprintf("%q is not a parameter of %s", name, targetName)))
		}
		if !ir.HasFloatLeaf(v.Type) {
			return nil, aderrors.WrapReport(aderrors.NewPrecondition(aderrors.ADC004, targetName,
				fmt.Sprintf("parameter %q has no floating-dtype leaf", name)))
		}
		gradVars[i] = v
	}

	p := newPass(fn, reg, env)

	// (a) copy the forward bindings verbatim into the output body.
	p.out = append(p.out, fn.Body...)

	// (b) seed adjoint_expr[ret] = ones(shape=(), dtype=ret.dtype).
	retVar := fn.Ret.Var
	p.store.setExpr(retVar, ir.Call{Op: "ones", Attrs: map[string]any{"shape": retTensor.Shape, "dtype": retTensor.DType}})

	// (c) run the reverse walker.
	if err := p.reverseWalk(); err != nil {
		return nil, err
	}

	// (d) parameters never appear as a binding's Var, so the reverse walker
	// never runs visitBinding's emit/setVar step for them (that step is
	// keyed off fn.Body, not fn.Params) — their accumulated adjoint
	// expression, if any, sits only in adjoint_expr. Finish the job the
	// walker does for every ordinary variable: materialize whatever
	// contribution exists, or a structural zero if none does (S5/I5).
	outRefs := make([]ir.VarRef, len(gradVars))
	for i, v := range gradVars {
		expr, had := p.store.getExpr(v)
		if !had {
			expr = zeroSkeleton(v.Type)
		}
		flat, err := p.atomizeChildren(expr)
		if err != nil {
			return nil, err
		}
		av := p.emit(v.Name+"_adjoint", v.Type, flat)
		outRefs[i] = ir.VarRef{Var: av}
	}

	// (e) append the return tuple: (original_return, (grad1, grad2, …)).
	gradsTupleElems := make([]ir.Type, len(outRefs))
	for i, r := range outRefs {
		gradsTupleElems[i] = r.Var.Type
	}
	gradsType := ir.Tuple{Elems: gradsTupleElems}
	gradsElems := make([]ir.Expr, len(outRefs))
	for i, r := range outRefs {
		gradsElems[i] = r
	}
	gradsVar := p.emit("grads", gradsType, ir.TupleCtor{Elems: gradsElems})

	outerType := ir.Tuple{Elems: []ir.Type{retTensor, gradsType}}
	outerVar := p.emit("result", outerType, ir.TupleCtor{Elems: []ir.Expr{fn.Ret, ir.VarRef{Var: gradsVar}}})

	adjointFn := &ir.Function{
		Name:   fn.Name + "_adjoint",
		Params: append([]ir.Var{}, fn.Params...),
		Body:   p.out,
		Ret:    ir.VarRef{Var: outerVar},
	}

	out := ir.NewModule()
	for _, f := range mod.Functions {
		out.Add(f)
	}
	out.Add(adjointFn)
	return out, nil
}
