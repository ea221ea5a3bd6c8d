// Package gradrules is the gradient-rule registry of spec.md §4.6/§6: an
// associative map from operator identity to a pure gradient-rule function,
// plus the matching structural-type (shape) rule used to type the
// operator's result. This is the extension point the differentiation core
// (internal/autodiff) consumes but never defines or enumerates.
package gradrules

import (
	"fmt"

	"github.com/tensorforge/adcore/internal/ir"
)

// entry bundles a gradient rule with the shape rule for the same operator,
// mirroring the teacher's DictionaryEntry (ClassName/TypeName/Method/Impl)
// keyed registration shape (internal/types/dictionaries.go).
type entry struct {
	grad  ir.GradRule
	shape ir.ShapeRule
}

// Registry maps operator identity (name) to its gradient and shape rules.
// It is built once via NewRegistry and is read-only for the lifetime of any
// differentiate() call (spec.md §5).
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates a registry pre-populated with the built-in
// differentiable operator library (§4.8 of SPEC_FULL.md).
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]entry)}
	r.registerBuiltins()
	return r
}

// Register adds a gradient rule and its shape rule for the named operator.
// Registering the same operator twice overwrites the previous entry.
func (r *Registry) Register(op string, grad ir.GradRule, shape ir.ShapeRule) {
	r.entries[op] = entry{grad: grad, shape: shape}
}

// Lookup retrieves the gradient rule for op, if one is registered.
func (r *Registry) Lookup(op string) (ir.GradRule, bool) {
	e, ok := r.entries[op]
	if !ok {
		return nil, false
	}
	return e.grad, true
}

// LookupShape retrieves the shape rule for op, if one is registered.
func (r *Registry) LookupShape(op string) (ir.ShapeRule, bool) {
	e, ok := r.entries[op]
	if !ok {
		return nil, false
	}
	return e.shape, true
}

// Registered reports whether op has any rule registered at all.
func (r *Registry) Registered(op string) bool {
	_, ok := r.entries[op]
	return ok
}

// PartialsOf is the C6 contract of spec.md §4.6: invoke the registered
// gradient rule for call.Op with the accumulated output adjoint, returning
// one partial Expr per argument.
func (r *Registry) PartialsOf(call ir.Call, outGrad ir.VarRef) ([]ir.Expr, error) {
	rule, ok := r.Lookup(call.Op)
	if !ok {
		return nil, fmt.Errorf("unknown gradient rule for operator %q", call.Op)
	}
	return rule(call, outGrad)
}
