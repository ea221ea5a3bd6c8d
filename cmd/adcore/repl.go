package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/tensorforge/adcore/internal/adyaml"
	"github.com/tensorforge/adcore/internal/autodiff"
	"github.com/tensorforge/adcore/internal/gradrules"
	"github.com/tensorforge/adcore/internal/ir"
	"github.com/tensorforge/adcore/internal/irprint"
)

// runRepl is the interactive counterpart to "adcore diff": load a module
// once, then let the user differentiate any of its functions repeatedly
// without re-invoking the process. Grounded on internal/repl/repl.go's
// liner-backed prompt loop (history file, :-prefixed commands, EOF-to-quit)
// but scoped to this domain's single concern: no expression evaluator,
// just module inspection and repeated calls into autodiff.Differentiate.
func runRepl(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "%s: missing module file argument\n", red("Error"))
		fmt.Println("Usage: adcore repl <file.yaml>")
		os.Exit(1)
	}

	mod, err := adyaml.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(os.TempDir(), ".adcore_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}

	line.SetCompleter(func(s string) (c []string) {
		if !strings.HasPrefix(s, ":") {
			return nil
		}
		for _, cmd := range []string{":diff", ":print", ":list", ":help", ":quit"} {
			if strings.HasPrefix(cmd, s) {
				c = append(c, cmd)
			}
		}
		return c
	})

	fmt.Printf("%s loaded %d function(s) from %s\n", green("✓"), len(mod.Functions), args[0])
	fmt.Println("Type :help for commands, :quit to exit.")

	reg := gradrules.NewRegistry()
	for {
		input, err := line.Prompt("adcore> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			fmt.Println(green("Goodbye!"))
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
			continue
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		handleReplCommand(mod, reg, input)
	}
}

func handleReplCommand(mod *ir.Module, reg *gradrules.Registry, input string) {
	fields := strings.Fields(input)
	cmd := fields[0]
	rest := fields[1:]

	switch cmd {
	case ":quit", ":q", ":exit":
		fmt.Println(green("Goodbye!"))
		os.Exit(0)

	case ":help":
		fmt.Println("  :list                 list functions in the loaded module")
		fmt.Println("  :print <fn>           pretty-print a function")
		fmt.Println("  :diff <fn> [x,y,...]  differentiate a function, optionally subsetting require_grads")
		fmt.Println("  :quit                 exit")

	case ":list":
		for name := range mod.Functions {
			fmt.Printf("  %s\n", name)
		}

	case ":print":
		if len(rest) < 1 {
			fmt.Fprintf(os.Stderr, "%s: usage :print <fn>\n", red("Error"))
			return
		}
		fn, ok := mod.Lookup(rest[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: no function named %q\n", red("Error"), rest[0])
			return
		}
		fmt.Println(irprint.Function(fn))

	case ":diff":
		if len(rest) < 1 {
			fmt.Fprintf(os.Stderr, "%s: usage :diff <fn> [x,y,...]\n", red("Error"))
			return
		}
		var requireGrads []string
		if len(rest) >= 2 {
			requireGrads = strings.Split(rest[1], ",")
		}
		out, err := autodiff.Differentiate(mod, rest[0], requireGrads, reg)
		if err != nil {
			printDiffError(err)
			return
		}
		adjFn, _ := out.Lookup(rest[0] + "_adjoint")
		fmt.Println(irprint.Function(adjFn))

	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q (try :help)\n", red("Error"), cmd)
	}
}
