// Package adyaml loads a hand-authored ir.Module from YAML, the format
// SPEC_FULL.md §4.10 introduces purely as ambient CLI plumbing around the
// differentiation core (the core itself takes no file format, per spec.md
// §6). Grounded on the teacher's internal/eval_harness/spec.go: read the
// file, yaml.Unmarshal into a plain schema struct, validate required
// fields, return a domain type.
package adyaml

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/tensorforge/adcore/internal/gradrules"
	"github.com/tensorforge/adcore/internal/ir"
	"github.com/tensorforge/adcore/internal/shapeinfer"
)

// bomUTF8 is the UTF-8 Byte Order Mark some editors prepend to text files.
var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// normalizeSource strips a leading BOM and applies Unicode NFC
// normalization, mirroring the teacher's lexer-boundary input
// normalization (internal/lexer/normalize.go) so that two hand-authored
// YAML files differing only in Unicode form or BOM presence parse to the
// same variable and function names.
func normalizeSource(src []byte) []byte {
	src = bytes.TrimPrefix(src, bomUTF8)
	if !norm.NFC.IsNormal(src) {
		src = norm.NFC.Bytes(src)
	}
	return src
}

// moduleSpec is the raw YAML schema: a named map of functionSpecs.
type moduleSpec struct {
	Functions map[string]functionSpec `yaml:"functions"`
}

type functionSpec struct {
	Params []paramSpec   `yaml:"params"`
	Body   []bindingSpec `yaml:"body"`
	Ret    string        `yaml:"ret"`
}

// typeSpec is the YAML rendering of ir.Type: a Tensor leaf (shape+dtype) or
// a Tuple of nested typeSpecs (spec.md GLOSSARY's structural type tree).
type typeSpec struct {
	Shape []int      `yaml:"shape,omitempty"`
	DType string     `yaml:"dtype,omitempty"`
	Elems []typeSpec `yaml:"elems,omitempty"`
}

func (t typeSpec) toType() (ir.Type, error) {
	if len(t.Elems) > 0 {
		elems := make([]ir.Type, len(t.Elems))
		for i, e := range t.Elems {
			et, err := e.toType()
			if err != nil {
				return nil, err
			}
			elems[i] = et
		}
		return ir.Tuple{Elems: elems}, nil
	}
	dt, err := parseDType(t.DType)
	if err != nil {
		return nil, err
	}
	return ir.Tensor{Shape: t.Shape, DType: dt}, nil
}

type paramSpec struct {
	Name     string `yaml:"name"`
	typeSpec `yaml:",inline"`
}

// bindingSpec is the YAML rendering of one ir.Binding. Exactly one of Op,
// Tuple, Proj, Assign, Const must be set, selecting the Call/TupleCtor/
// TupleProj/VarRef/Const expression kind respectively.
type bindingSpec struct {
	Name   string         `yaml:"name"`
	Op     string         `yaml:"op,omitempty"`
	Args   []string       `yaml:"args,omitempty"`
	Attrs  map[string]any `yaml:"attrs,omitempty"`
	Tuple  []string       `yaml:"tuple,omitempty"`
	Proj   *projSpec      `yaml:"proj,omitempty"`
	Assign string         `yaml:"assign,omitempty"`
	Const  *constSpec     `yaml:"const,omitempty"`
}

type projSpec struct {
	Of    string `yaml:"of"`
	Index int    `yaml:"index"`
}

type constSpec struct {
	Value    any `yaml:"value"`
	typeSpec `yaml:",inline"`
}

// Load reads path, parses it as a module YAML document, and builds a fully
// typed *ir.Module: each binding's argument names are resolved to ir.Var
// references by lookup in a name->Var environment built incrementally
// (params first, then each binding's own output becomes visible to later
// bindings, mirroring the body's SSA/ANF scoping), and shapeinfer.Infer
// assigns every binding's output Var its structural type. This is the
// point at which "every Call/TupleCtor argument is a named variable" and
// "no nested tuple projection" become syntactically guaranteed: the
// schema has no production for a nested expression.
func Load(path string) (*ir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("adyaml: read %s: %w", path, err)
	}
	data = normalizeSource(data)

	var spec moduleSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("adyaml: parse %s: %w", path, err)
	}
	if len(spec.Functions) == 0 {
		return nil, fmt.Errorf("adyaml: %s declares no functions", path)
	}

	names := make([]string, 0, len(spec.Functions))
	for name := range spec.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	reg := gradrules.NewRegistry()
	mod := ir.NewModule()
	for _, name := range names {
		fn, err := buildFunction(name, spec.Functions[name], reg)
		if err != nil {
			return nil, fmt.Errorf("adyaml: function %q: %w", name, err)
		}
		mod.Add(fn)
	}
	return mod, nil
}

func buildFunction(name string, spec functionSpec, reg *gradrules.Registry) (*ir.Function, error) {
	env := make(map[string]ir.Var, len(spec.Params)+len(spec.Body))
	alloc := ir.NewVarAllocator(0)
	shapeEnv := make(shapeinfer.Env, len(spec.Params)+len(spec.Body))

	params := make([]ir.Var, len(spec.Params))
	for i, p := range spec.Params {
		t, err := p.toType()
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		v := alloc.Fresh(p.Name, t)
		params[i] = v
		env[p.Name] = v
		shapeEnv[v.ID] = t
	}

	body := make([]ir.Binding, len(spec.Body))
	for i, b := range spec.Body {
		expr, err := buildExpr(b, env)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", b.Name, err)
		}
		t, err := shapeinfer.Infer(expr, shapeEnv, reg)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", b.Name, err)
		}
		v := alloc.Fresh(b.Name, t)
		body[i] = ir.Binding{Var: v, Value: expr}
		env[b.Name] = v
		shapeEnv[v.ID] = t
	}

	retVar, ok := env[spec.Ret]
	if !ok {
		return nil, fmt.Errorf("return variable %q is not bound by any param or binding", spec.Ret)
	}

	return &ir.Function{Name: name, Params: params, Body: body, Ret: ir.VarRef{Var: retVar}}, nil
}

func buildExpr(b bindingSpec, env map[string]ir.Var) (ir.Expr, error) {
	switch {
	case b.Proj != nil:
		v, err := lookup(env, b.Proj.Of)
		if err != nil {
			return nil, err
		}
		return ir.TupleProj{Tuple: ir.VarRef{Var: v}, Index: b.Proj.Index}, nil

	case len(b.Tuple) > 0:
		elems := make([]ir.Expr, len(b.Tuple))
		for i, name := range b.Tuple {
			v, err := lookup(env, name)
			if err != nil {
				return nil, err
			}
			elems[i] = ir.VarRef{Var: v}
		}
		return ir.TupleCtor{Elems: elems}, nil

	case b.Assign != "":
		v, err := lookup(env, b.Assign)
		if err != nil {
			return nil, err
		}
		return ir.VarRef{Var: v}, nil

	case b.Const != nil:
		t, err := b.Const.toType()
		if err != nil {
			return nil, err
		}
		return ir.Const{Type: t, Value: b.Const.Value}, nil

	case b.Op != "":
		args := make([]ir.Expr, len(b.Args))
		for i, name := range b.Args {
			v, err := lookup(env, name)
			if err != nil {
				return nil, err
			}
			args[i] = ir.VarRef{Var: v}
		}
		attrs, err := normalizeAttrs(b.Attrs)
		if err != nil {
			return nil, err
		}
		return ir.Call{Op: b.Op, Args: args, Attrs: attrs}, nil

	default:
		return nil, fmt.Errorf("binding has no recognized form (expected one of op/tuple/proj/assign/const)")
	}
}

func lookup(env map[string]ir.Var, name string) (ir.Var, error) {
	v, ok := env[name]
	if !ok {
		return ir.Var{}, fmt.Errorf("unbound variable %q", name)
	}
	return v, nil
}

// normalizeAttrs coerces the YAML-decoded "shape" attribute (a []any of
// ints) into the []int the ir.Call and gradrules shape rules expect.
func normalizeAttrs(attrs map[string]any) (map[string]any, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if k != "shape" {
			out[k] = v
			continue
		}
		shape, err := toIntSlice(v)
		if err != nil {
			return nil, fmt.Errorf("attrs.shape: %w", err)
		}
		out[k] = shape
	}
	return out, nil
}

func toIntSlice(v any) ([]int, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]int, len(raw))
	for i, e := range raw {
		n, ok := e.(int)
		if !ok {
			return nil, fmt.Errorf("expected an int at index %d, got %T", i, e)
		}
		out[i] = n
	}
	return out, nil
}

func parseDType(s string) (ir.DType, error) {
	switch s {
	case "f32":
		return ir.Float32, nil
	case "f64":
		return ir.Float64, nil
	case "i32":
		return ir.Int32, nil
	case "i64":
		return ir.Int64, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q (want one of f32, f64, i32, i64)", s)
	}
}
