// Package autodiff is the reverse-mode differentiation core: the Driver
// (C1), Reverse Walker (C2), Adjoint Store (C3), Accumulator (C4), Emitter
// (C5) and Gradient Dispatch (C6) glue of spec.md §4. Grounded on
// internal/elaborate/elaborate.go's DictElaborator — a transform-by-case-
// dispatch pass over the same closed Core-IR node set ours borrows its
// shape from, with the same fresh-variable-allocator and invariant-
// assertion idioms.
package autodiff

import (
	"fmt"

	"github.com/tensorforge/adcore/internal/gradrules"
	"github.com/tensorforge/adcore/internal/ir"
	"github.com/tensorforge/adcore/internal/shapeinfer"
)

// pass carries all state for one differentiate() invocation (spec.md §5:
// entirely local to a single call, safe to run concurrently across
// functions). Never reused across two target functions.
type pass struct {
	fn    *ir.Function
	reg   *gradrules.Registry
	store *adjointStore
	memo  map[string]ir.Var
	alloc *ir.VarAllocator
	env   shapeinfer.Env
	out   []ir.Binding
	anon  map[string]int
}

func newPass(fn *ir.Function, reg *gradrules.Registry, env shapeinfer.Env) *pass {
	return &pass{
		fn:    fn,
		reg:   reg,
		store: newAdjointStore(),
		memo:  make(map[string]ir.Var),
		alloc: ir.NewVarAllocator(nextFreeID(fn)),
		env:   cloneEnv(env),
		anon:  make(map[string]int),
	}
}

func cloneEnv(env shapeinfer.Env) shapeinfer.Env {
	out := make(shapeinfer.Env, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// nextFreeID returns an ID guaranteed not to collide with any variable
// already bound in fn, so the pass's VarAllocator can mint fresh IDs
// without touching the forward program's namespace.
func nextFreeID(fn *ir.Function) int {
	max := -1
	for _, p := range fn.Params {
		if p.ID > max {
			max = p.ID
		}
	}
	for _, b := range fn.Body {
		if b.Var.ID > max {
			max = b.Var.ID
		}
	}
	return max + 1
}

// emit appends a binding to the output body and records its type in env,
// the unique point where fresh output-IR variables are allocated (C5,
// spec.md §4.5). Also registers the binding in the memo table under the
// bound expression's canonical key, so that a later name() call on a
// structurally-identical expression (e.g. the same adjoint re-threaded
// through a sibling accumulation) finds this binding instead of
// synthesizing a redundant duplicate — without this, the "owner" adjoint
// variable emitted here (l_adjoint, x_adjoint, …) and the memo used by
// name()'s own atomization would drift out of sync, reintroducing the
// duplicate-work memo was built to prevent.
func (p *pass) emit(baseName string, t ir.Type, e ir.Expr) ir.Var {
	v := p.alloc.Fresh(baseName, t)
	p.out = append(p.out, ir.Binding{Var: v, Value: e})
	p.env[v.ID] = v.Type
	if !ir.IsAtomic(e) {
		key := e.Key()
		if _, exists := p.memo[key]; !exists {
			p.memo[key] = v
		}
	}
	return v
}

// anonName produces the "<op>_grad_<n>" naming convention for nameless
// intermediates (spec.md §4.5), unique within the function.
func (p *pass) anonName(e ir.Expr) string {
	base := "tmp"
	if c, ok := e.(ir.Call); ok {
		base = c.Op + "_grad"
	}
	n := p.anon[base]
	p.anon[base] = n + 1
	return fmt.Sprintf("%s_%d", base, n)
}

// inferType computes the structural type of e under the pass's current
// environment (original forward variables plus every adjoint/intermediate
// variable emitted so far).
func (p *pass) inferType(e ir.Expr) (ir.Type, error) {
	return shapeinfer.Infer(e, p.env, p.reg)
}

// name materializes e into a VarRef, atomizing any nested non-atomic
// sub-expression bottom-up first (gradient rules may return partials with
// nested Calls — e.g. collapse_sum_to wrapping a freshly-built mul — since
// rules are pure and never emit bindings themselves, spec.md §4.6). This
// is the emitter's generalization of spec.md §4.4's `name(inc)`: leaves of
// an accumulated adjoint expression are always variables, never nested
// computations, which is what prevents the Θ(n²) blowup the memo map
// guards against.
func (p *pass) name(e ir.Expr) (ir.VarRef, error) {
	if v, ok := e.(ir.VarRef); ok {
		return v, nil
	}
	flat, err := p.atomizeChildren(e)
	if err != nil {
		return ir.VarRef{}, err
	}
	key := flat.Key()
	if v, ok := p.memo[key]; ok {
		return ir.VarRef{Var: v}, nil
	}
	t, err := p.inferType(flat)
	if err != nil {
		return ir.VarRef{}, err
	}
	v := p.emit(p.anonName(flat), t, flat)
	p.memo[key] = v
	return ir.VarRef{Var: v}, nil
}

// atomizeChildren rewrites the non-atomic arguments of a Call (if any) into
// named VarRefs, recursing first so inner Calls are bound before outer
// ones reference them. Other expression kinds, including a TupleCtor and
// its elements, are returned unchanged.
func (p *pass) atomizeChildren(e ir.Expr) (ir.Expr, error) {
	switch v := e.(type) {
	case ir.Call:
		args := make([]ir.Expr, len(v.Args))
		for i, a := range v.Args {
			if ir.IsAtomic(a) {
				args[i] = a
				continue
			}
			na, err := p.name(a)
			if err != nil {
				return nil, err
			}
			args[i] = na
		}
		return ir.Call{Op: v.Op, Args: args, Attrs: v.Attrs}, nil
	case ir.TupleProj:
		return v, nil
	default:
		return e, nil
	}
}
