package gradrules

import (
	"fmt"

	"github.com/tensorforge/adcore/internal/ir"
)

// registerBuiltins populates r with the differentiable operator subset of
// SPEC_FULL.md §4.8: the three synthesis primitives the core itself emits
// (zeros, ones, add) and the arithmetic/shape operators needed to run
// spec.md's end-to-end scenarios S1-S6 (add, sub, mul, sum, broadcast_to,
// collapse_sum_to). Modeled on the teacher's OperatorTable
// (internal/pipeline/op_table.go): one map entry per operator, covering
// both "what it computes" (shape rule) and "how it differentiates"
// (gradient rule).
func (r *Registry) registerBuiltins() {
	r.registerAdd()
	r.registerSub()
	r.registerMul()
	r.registerNeg()
	r.registerSum()
	r.registerBroadcastTo()
	r.registerCollapseSumTo()
	r.registerZeros()
	r.registerOnes()
}

// registerNeg: elementwise negation, same shape as its argument. d/da =
// -out_grad. registerSub's own gradient rule builds a "neg" Call for the
// b-argument's partial, so neg needs its own entry in the registry for
// shapeinfer to type that Call even when neg's own gradient is never
// dispatched directly.
func (r *Registry) registerNeg() {
	r.Register("neg",
		func(c ir.Call, outGrad ir.VarRef) ([]ir.Expr, error) {
			return []ir.Expr{ir.Call{Op: "neg", Args: []ir.Expr{outGrad}}}, nil
		},
		func(c ir.Call, argTypes []ir.Type) (ir.Type, error) {
			if len(argTypes) != 1 {
				return nil, fmt.Errorf("neg expects 1 argument, got %d", len(argTypes))
			}
			return argTypes[0], nil
		},
	)
}

// registerZeros and registerOnes cover the two synthesis primitives
// (spec.md §6) the core itself emits when building zero-skeletons and
// seeding the output adjoint — never operators a forward program calls
// directly, so their "gradient rule" is a defensive stub that should never
// be invoked; only their shape rule (reading the requested shape/dtype out
// of Attrs rather than from argument types) is exercised in practice.
func (r *Registry) registerZeros() {
	r.Register("zeros", notDifferentiable("zeros"), nullaryShapeFromAttrs)
}

func (r *Registry) registerOnes() {
	r.Register("ones", notDifferentiable("ones"), nullaryShapeFromAttrs)
}

func notDifferentiable(op string) ir.GradRule {
	return func(c ir.Call, outGrad ir.VarRef) ([]ir.Expr, error) {
		return nil, fmt.Errorf("%s is a synthesis primitive and is never differentiated", op)
	}
}

func nullaryShapeFromAttrs(c ir.Call, argTypes []ir.Type) (ir.Type, error) {
	shape, _ := c.Attrs["shape"].([]int)
	dt, ok := c.Attrs["dtype"].(ir.DType)
	if !ok {
		return nil, fmt.Errorf("%s: missing dtype attribute", c.Op)
	}
	return ir.Tensor{Shape: shape, DType: dt}, nil
}

// registerAdd: elementwise a+b with numpy-style broadcasting. Partials are
// reduced back down to the argument shape via collapse_sum_to, per the
// broadcasting-correctness responsibility assigned to rules by spec.md §4.6.
func (r *Registry) registerAdd() {
	r.Register("add",
		func(c ir.Call, outGrad ir.VarRef) ([]ir.Expr, error) {
			aShape, bShape, err := binaryArgShapes(c)
			if err != nil {
				return nil, err
			}
			return []ir.Expr{
				collapseTo(outGrad, aShape),
				collapseTo(outGrad, bShape),
			}, nil
		},
		binaryBroadcastShape,
	)
}

// registerSub: elementwise a-b. d/da = out_grad, d/db = -out_grad, each
// reduced to the argument's shape. The negation is expressed as a nested
// Call the emitter atomizes into its own named binding before
// collapse_sum_to is bound (internal/autodiff's atomization discipline).
func (r *Registry) registerSub() {
	r.Register("sub",
		func(c ir.Call, outGrad ir.VarRef) ([]ir.Expr, error) {
			aShape, bShape, err := binaryArgShapes(c)
			if err != nil {
				return nil, err
			}
			neg := ir.Call{Op: "neg", Args: []ir.Expr{outGrad}}
			return []ir.Expr{
				collapseTo(outGrad, aShape),
				ir.Call{Op: "collapse_sum_to", Args: []ir.Expr{neg}, Attrs: shapeAttrs(bShape)},
			}, nil
		},
		binaryBroadcastShape,
	)
}

// registerMul: elementwise a*b. d/da = out_grad*b, d/db = out_grad*a,
// each reduced to the corresponding argument's shape. Each product is a
// nested Call the emitter atomizes before collapse_sum_to is bound.
func (r *Registry) registerMul() {
	r.Register("mul",
		func(c ir.Call, outGrad ir.VarRef) ([]ir.Expr, error) {
			aShape, bShape, err := binaryArgShapes(c)
			if err != nil {
				return nil, err
			}
			a, b := c.Args[0], c.Args[1]
			gradA := ir.Call{Op: "mul", Args: []ir.Expr{outGrad, b}}
			gradB := ir.Call{Op: "mul", Args: []ir.Expr{outGrad, a}}
			return []ir.Expr{
				ir.Call{Op: "collapse_sum_to", Args: []ir.Expr{gradA}, Attrs: shapeAttrs(aShape)},
				ir.Call{Op: "collapse_sum_to", Args: []ir.Expr{gradB}, Attrs: shapeAttrs(bShape)},
			}, nil
		},
		binaryBroadcastShape,
	)
}

// registerSum: reduce-all to a scalar. d/da = broadcast_to(out_grad, shape(a)).
func (r *Registry) registerSum() {
	r.Register("sum",
		func(c ir.Call, outGrad ir.VarRef) ([]ir.Expr, error) {
			aShape, err := unaryArgShape(c)
			if err != nil {
				return nil, err
			}
			return []ir.Expr{ir.Call{Op: "broadcast_to", Args: []ir.Expr{outGrad}, Attrs: shapeAttrs(aShape)}}, nil
		},
		func(c ir.Call, argTypes []ir.Type) (ir.Type, error) {
			if len(argTypes) != 1 {
				return nil, fmt.Errorf("sum expects 1 argument, got %d", len(argTypes))
			}
			dt, err := dtypeOf(argTypes[0])
			if err != nil {
				return nil, err
			}
			return ir.Tensor{Shape: nil, DType: dt}, nil
		},
	)
}

// registerBroadcastTo: broadcast a tensor up to Attrs["shape"].
// d/da = collapse_sum_to(out_grad, shape(a)) — the inverse operation.
func (r *Registry) registerBroadcastTo() {
	r.Register("broadcast_to",
		func(c ir.Call, outGrad ir.VarRef) ([]ir.Expr, error) {
			aShape, err := unaryArgShape(c)
			if err != nil {
				return nil, err
			}
			return []ir.Expr{ir.Call{Op: "collapse_sum_to", Args: []ir.Expr{outGrad}, Attrs: shapeAttrs(aShape)}}, nil
		},
		func(c ir.Call, argTypes []ir.Type) (ir.Type, error) {
			if len(argTypes) != 1 {
				return nil, fmt.Errorf("broadcast_to expects 1 argument, got %d", len(argTypes))
			}
			dt, err := dtypeOf(argTypes[0])
			if err != nil {
				return nil, err
			}
			shape, _ := c.Attrs["shape"].([]int)
			return ir.Tensor{Shape: shape, DType: dt}, nil
		},
	)
}

// registerCollapseSumTo: sum-reduce a tensor down to Attrs["shape"].
// d/da = broadcast_to(out_grad, shape(a)) — the inverse operation.
func (r *Registry) registerCollapseSumTo() {
	r.Register("collapse_sum_to",
		func(c ir.Call, outGrad ir.VarRef) ([]ir.Expr, error) {
			aShape, err := unaryArgShape(c)
			if err != nil {
				return nil, err
			}
			return []ir.Expr{ir.Call{Op: "broadcast_to", Args: []ir.Expr{outGrad}, Attrs: shapeAttrs(aShape)}}, nil
		},
		func(c ir.Call, argTypes []ir.Type) (ir.Type, error) {
			if len(argTypes) != 1 {
				return nil, fmt.Errorf("collapse_sum_to expects 1 argument, got %d", len(argTypes))
			}
			dt, err := dtypeOf(argTypes[0])
			if err != nil {
				return nil, err
			}
			shape, _ := c.Attrs["shape"].([]int)
			return ir.Tensor{Shape: shape, DType: dt}, nil
		},
	)
}

// --- shared shape helpers ---

// argVarType reads the structural type of a Call argument. Gradient rules
// only ever receive the original forward Call, whose arguments are always
// VarRef by the input-normalization precondition the driver validates
// before differentiation begins (spec.md §1).
func argVarType(e ir.Expr) (ir.Type, error) {
	vr, ok := e.(ir.VarRef)
	if !ok {
		return nil, fmt.Errorf("expected a normalized (VarRef) call argument, got %T", e)
	}
	return vr.Var.Type, nil
}

func unaryArgShape(c ir.Call) ([]int, error) {
	if len(c.Args) != 1 {
		return nil, fmt.Errorf("%s expects 1 argument, got %d", c.Op, len(c.Args))
	}
	t, err := argVarType(c.Args[0])
	if err != nil {
		return nil, err
	}
	return tensorShape(t)
}

func binaryArgShapes(c ir.Call) (aShape, bShape []int, err error) {
	if len(c.Args) != 2 {
		return nil, nil, fmt.Errorf("%s expects 2 arguments, got %d", c.Op, len(c.Args))
	}
	aT, err := argVarType(c.Args[0])
	if err != nil {
		return nil, nil, err
	}
	bT, err := argVarType(c.Args[1])
	if err != nil {
		return nil, nil, err
	}
	aShape, err = tensorShape(aT)
	if err != nil {
		return nil, nil, err
	}
	bShape, err = tensorShape(bT)
	if err != nil {
		return nil, nil, err
	}
	return aShape, bShape, nil
}

func shapeAttrs(shape []int) map[string]any {
	return map[string]any{"shape": shape}
}

func tensorShape(t ir.Type) ([]int, error) {
	tt, ok := t.(ir.Tensor)
	if !ok {
		return nil, fmt.Errorf("expected a Tensor type, got %s", t)
	}
	return tt.Shape, nil
}

func dtypeOf(t ir.Type) (ir.DType, error) {
	tt, ok := t.(ir.Tensor)
	if !ok {
		return 0, fmt.Errorf("expected a Tensor type, got %s", t)
	}
	return tt.DType, nil
}

// collapseTo builds a collapse_sum_to(outGrad, shape) Call expression.
func collapseTo(outGrad ir.VarRef, shape []int) ir.Expr {
	return ir.Call{Op: "collapse_sum_to", Args: []ir.Expr{outGrad}, Attrs: shapeAttrs(shape)}
}

// binaryBroadcastShape is the shape rule shared by add/sub/mul: numpy-style
// broadcasting of two tensor shapes, right-aligned, each dimension either
// equal or one of them 1.
func binaryBroadcastShape(c ir.Call, argTypes []ir.Type) (ir.Type, error) {
	if len(argTypes) != 2 {
		return nil, fmt.Errorf("%s expects 2 arguments, got %d", c.Op, len(argTypes))
	}
	aShape, err := tensorShape(argTypes[0])
	if err != nil {
		return nil, err
	}
	bShape, err := tensorShape(argTypes[1])
	if err != nil {
		return nil, err
	}
	dt, err := dtypeOf(argTypes[0])
	if err != nil {
		return nil, err
	}
	shape, err := BroadcastShapes(aShape, bShape)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Op, err)
	}
	return ir.Tensor{Shape: shape, DType: dt}, nil
}

// BroadcastShapes computes the numpy-style broadcast of two shapes.
func BroadcastShapes(a, b []int) ([]int, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		da, db := 1, 1
		if i < len(a) {
			da = a[len(a)-1-i]
		}
		if i < len(b) {
			db = b[len(b)-1-i]
		}
		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
		case db == 1:
			out[n-1-i] = da
		default:
			return nil, fmt.Errorf("incompatible shapes %v and %v", a, b)
		}
	}
	return out, nil
}
