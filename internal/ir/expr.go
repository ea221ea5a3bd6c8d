package ir

import (
	"fmt"
	"strings"
)

// Expr is one of {VarRef, TupleCtor, TupleProj, Call, Const} (spec.md §3).
// After normalization, arguments of Call and TupleCtor are restricted to
// VarRef, and TupleProj's operand is restricted to VarRef with a result
// that is never itself projected.
type Expr interface {
	String() string
	// Key returns a canonical string form used for structural-equality
	// memoization (the emitter's `memo` map, spec.md §3). Two expressions
	// with equal Key are considered the same adjoint contribution.
	Key() string
	exprNode()
}

// VarRef references a named variable.
type VarRef struct {
	Var Var
}

func (v VarRef) String() string { return v.Var.Name }
func (v VarRef) Key() string    { return fmt.Sprintf("var:%d", v.Var.ID) }
func (VarRef) exprNode()        {}

// TupleCtor builds a tuple value from its element expressions. Elements are
// restricted to VarRef except when TupleCtor is synthesized directly by the
// core as a zero-skeleton or structural-replace result (spec.md §4.3/§4.4).
type TupleCtor struct {
	Elems []Expr
}

func (t TupleCtor) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

func (t TupleCtor) Key() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.Key()
	}
	return fmt.Sprintf("tuple(%s)", strings.Join(parts, ","))
}
func (TupleCtor) exprNode() {}

// TupleProj projects the i-th element out of a tuple-typed variable.
// Operand is restricted to VarRef; the input IR never nests projection.
type TupleProj struct {
	Tuple VarRef
	Index int
}

func (t TupleProj) String() string { return fmt.Sprintf("%s[%d]", t.Tuple, t.Index) }
func (t TupleProj) Key() string    { return fmt.Sprintf("proj:%d:%d", t.Tuple.Var.ID, t.Index) }
func (TupleProj) exprNode()        {}

// Call invokes an operator by name with arbitrary attributes (e.g. target
// shape for broadcast_to). In the normalized *input* program every Args
// element is a VarRef (spec.md §1's input assumption, checked by the
// differentiation driver as a precondition); gradient rules, however, may
// return partials with nested Calls as arguments (e.g. collapse_sum_to
// wrapping a freshly-computed mul), which the emitter atomizes into named
// bindings before the Call is itself bound (internal/autodiff's name/
// atomize discipline).
type Call struct {
	Op    string
	Args  []Expr
	Attrs map[string]any
}

func (c Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Op, strings.Join(parts, ", "))
}

func (c Call) Key() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.Key()
	}
	return fmt.Sprintf("call:%s(%s)%s", c.Op, strings.Join(parts, ","), attrKey(c.Attrs))
}
func (Call) exprNode() {}

func attrKey(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	// Attributes in this IR are a shape list, plus a dtype on the zeros/ones
	// synthesis primitives, so a stable, deterministic rendering is simple;
	// spec.md treats Call attrs as opaque data carried alongside the
	// operator identity.
	if shape, ok := attrs["shape"].([]int); ok {
		dims := make([]string, len(shape))
		for i, d := range shape {
			dims[i] = fmt.Sprintf("%d", d)
		}
		key := "[" + strings.Join(dims, "x") + "]"
		if dt, ok := attrs["dtype"]; ok {
			key += fmt.Sprintf(":%v", dt)
		}
		return key
	}
	return fmt.Sprintf("%v", attrs)
}

// Const is a literal, constant-valued leaf. Constants have no input
// adjoints (spec.md §4.2).
type Const struct {
	Type  Type
	Value any
}

func (c Const) String() string { return fmt.Sprintf("%v", c.Value) }
func (c Const) Key() string    { return fmt.Sprintf("const:%v:%s", c.Value, c.Type) }
func (Const) exprNode()        {}

// IsAtomic reports whether e can appear directly as a Call/TupleCtor
// argument without further let-binding (mirrors core.IsAtomic in the
// teacher, internal/core/core.go).
func IsAtomic(e Expr) bool {
	switch e.(type) {
	case VarRef, Const:
		return true
	default:
		return false
	}
}

// IsNormalized reports whether e satisfies the input-program normalization
// assumption of spec.md §1: every Call/TupleCtor argument is a VarRef (or
// Const), and TupleProj's operand is a VarRef. Whether that operand's own
// value is itself a projection is not visible from e alone; the
// differentiation driver checks it separately. Used by the driver to
// validate a target function body before differentiating it.
func IsNormalized(e Expr) bool {
	switch v := e.(type) {
	case VarRef, Const:
		return true
	case TupleCtor:
		for _, el := range v.Elems {
			if !IsAtomic(el) {
				return false
			}
		}
		return true
	case TupleProj:
		return true
	case Call:
		for _, a := range v.Args {
			if !IsAtomic(a) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
