// Package irprint is the deterministic pretty-printer for the dataflow IR
// (SPEC_FULL.md §4.9), the external "IR pretty-printing" collaborator
// spec.md §1 treats as out of the core's scope. Grounded on the teacher's
// internal/core/core.go Pretty(prog) and its per-node String() methods:
// same "render declarations in order, one per line" shape, specialized to
// the ir package's closed node set instead of Core IR's.
package irprint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tensorforge/adcore/internal/ir"
)

// Function renders fn as params, each binding as "name: Type = expr", and
// the return line, in declaration order — the direct analogue of the
// teacher's core.Pretty(prog).
func Function(fn *ir.Function) string {
	var sb strings.Builder
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
	}
	fmt.Fprintf(&sb, "fn %s(%s) {\n", fn.Name, strings.Join(params, ", "))
	for _, b := range fn.Body {
		fmt.Fprintf(&sb, "  %s: %s = %s\n", b.Var.Name, b.Var.Type, b.Value)
	}
	fmt.Fprintf(&sb, "  return %s\n}", fn.Ret)
	return sb.String()
}

// Module renders every function in mod, sorted by name so the output is
// deterministic regardless of map iteration order (spec.md §5's
// determinism guarantee extends to this rendering).
func Module(mod *ir.Module) string {
	names := make([]string, 0, len(mod.Functions))
	for name := range mod.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = Function(mod.Functions[name])
	}
	return strings.Join(parts, "\n\n")
}
