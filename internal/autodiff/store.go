package autodiff

import "github.com/tensorforge/adcore/internal/ir"

// adjointStore is the derived state of spec.md §3: the two maps the pass
// builds up over one reverse walk. Keyed by the original variable's stable
// ID, mirroring the teacher's node-ID-keyed span maps in
// internal/elaborate/elaborate.go (surfaceSpans map[uint64]ast.Pos).
type adjointStore struct {
	expr map[int]ir.Expr
	vr   map[int]ir.Var
}

func newAdjointStore() *adjointStore {
	return &adjointStore{expr: make(map[int]ir.Expr), vr: make(map[int]ir.Var)}
}

// getExpr returns the currently-accumulated adjoint expression for v, if
// any use downstream has contributed one yet.
func (s *adjointStore) getExpr(v ir.Var) (ir.Expr, bool) {
	e, ok := s.expr[v.ID]
	return e, ok
}

func (s *adjointStore) setExpr(v ir.Var, e ir.Expr) {
	s.expr[v.ID] = e
}

// getVar returns the output-IR variable naming v's final adjoint value,
// once C2 has processed v's defining binding (invariant I2).
func (s *adjointStore) getVar(v ir.Var) (ir.Var, bool) {
	a, ok := s.vr[v.ID]
	return a, ok
}

// setVar records v's adjoint variable. Called exactly once per v, at the
// moment v's defining binding is processed (invariant I2).
func (s *adjointStore) setVar(v ir.Var, a ir.Var) {
	s.vr[v.ID] = a
}
