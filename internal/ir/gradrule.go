package ir

// GradRule is a pure gradient-rule function supplied by the operator
// library (spec.md §3, §4.6): given the original Call and the accumulated
// adjoint of its output, it returns one partial Expr per argument, each
// with the same structural type as the corresponding argument. Rules do
// not emit bindings and carry no state (spec.md §4.6).
type GradRule func(call Call, outGrad VarRef) ([]Expr, error)

// ShapeRule infers the structural type of a Call's result from its
// argument types and attributes (the structural-info black box of §6,
// specialized to this IR's closed operator set).
type ShapeRule func(call Call, argTypes []Type) (Type, error)
