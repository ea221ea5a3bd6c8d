// Package ir defines the dataflow intermediate representation that the
// differentiation core (internal/autodiff) operates on: named SSA
// bindings over tensor and tuple-of-tensor values.
package ir

import (
	"fmt"
	"strings"
)

// DType is a leaf tensor element type.
type DType int

const (
	Float32 DType = iota
	Float64
	Int32
	Int64
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// IsFloat reports whether d is a floating-point type. Only floating leaves
// carry adjoints (spec.md §1 Non-goals).
func (d DType) IsFloat() bool {
	return d == Float32 || d == Float64
}

// Type is the structural type of an IR value: a tree of Tensor leaves under
// Tuple structure. Two values have the same structural type iff the trees
// match node for node (spec.md GLOSSARY).
type Type interface {
	String() string
	Equal(Type) bool
	// IsScalar reports whether this is a Tensor with an empty shape.
	IsScalar() bool
}

// Tensor is a leaf structural type: a shaped, typed tensor.
type Tensor struct {
	Shape []int
	DType DType
}

func (t Tensor) String() string {
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("Tensor(%s, %s)", strings.Join(dims, "x"), t.DType)
}

func (t Tensor) Equal(other Type) bool {
	o, ok := other.(Tensor)
	if !ok || len(o.Shape) != len(t.Shape) || o.DType != t.DType {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

func (t Tensor) IsScalar() bool { return len(t.Shape) == 0 }

// Tuple is a structural type composed of sub-structures.
type Tuple struct {
	Elems []Type
}

func (t Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

func (t Tuple) Equal(other Type) bool {
	o, ok := other.(Tuple)
	if !ok || len(o.Elems) != len(t.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

func (t Tuple) IsScalar() bool { return false }

// HasFloatLeaf reports whether t has at least one floating-dtype Tensor leaf
// anywhere in its structure (used to validate require_grads, spec.md §4.1).
func HasFloatLeaf(t Type) bool {
	switch v := t.(type) {
	case Tensor:
		return v.DType.IsFloat()
	case Tuple:
		for _, e := range v.Elems {
			if HasFloatLeaf(e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
