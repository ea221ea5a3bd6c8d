// Command adcore is the CLI front end for the differentiation core: load a
// YAML-described module, run Differentiate against a target function, and
// print the result. Grounded on cmd/ailang/main.go's flag-based
// subcommand dispatch and fatih/color output.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/tensorforge/adcore/internal/adyaml"
	"github.com/tensorforge/adcore/internal/autodiff"
	aderrors "github.com/tensorforge/adcore/internal/errors"
	"github.com/tensorforge/adcore/internal/gradrules"
	"github.com/tensorforge/adcore/internal/irprint"
)

var (
	// Version info - set by ldflags during build.
	Version = "dev"
	Commit  = "unknown"

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Print version information")
		helpFlag    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	switch flag.Arg(0) {
	case "diff":
		runDiff(flag.Args()[1:])
	case "print":
		runPrint(flag.Args()[1:])
	case "repl":
		runRepl(flag.Args()[1:])
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("Error"), flag.Arg(0))
		printHelp()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("adcore %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	fmt.Println("\nReverse-mode AD core for a tensor dataflow IR")
}

func printHelp() {
	fmt.Println(bold("adcore - reverse-mode AD core for a tensor dataflow IR"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  adcore <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s <file.yaml> --target f [--grad x,y]   Differentiate f and print f_adjoint\n", cyan("diff"))
	fmt.Printf("  %s <file.yaml> --target f                Print f as loaded, without differentiating\n", cyan("print"))
	fmt.Printf("  %s <file.yaml>                           Interactively differentiate functions in a loaded module\n", cyan("repl"))
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --version    Print version information")
	fmt.Println("  --help       Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s\n", cyan("adcore diff module.yaml --target f"))
	fmt.Printf("  %s\n", cyan("adcore diff module.yaml --target f --grad x"))
}

func runDiff(args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	target := fs.String("target", "", "name of the function to differentiate")
	grad := fs.String("grad", "", "comma-separated subset of parameters to return adjoints for (default: all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "%s: missing module file argument\n", red("Error"))
		fmt.Println("Usage: adcore diff <file.yaml> --target <fn> [--grad x,y]")
		os.Exit(1)
	}
	// Flag parsing stops at the module file; parse the flags after it too.
	file := fs.Arg(0)
	fs.Parse(fs.Args()[1:])
	if *target == "" {
		fmt.Fprintf(os.Stderr, "%s: --target is required\n", red("Error"))
		os.Exit(1)
	}

	mod, err := adyaml.Load(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	var requireGrads []string
	if *grad != "" {
		requireGrads = strings.Split(*grad, ",")
	}

	reg := gradrules.NewRegistry()
	out, err := autodiff.Differentiate(mod, *target, requireGrads, reg)
	if err != nil {
		printDiffError(err)
		os.Exit(1)
	}

	adjName := *target + "_adjoint"
	adjFn, ok := out.Lookup(adjName)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: internal error: %s not found after differentiation\n", red("Error"), adjName)
		os.Exit(1)
	}

	fmt.Printf("%s %s\n\n", green("✓"), "differentiation succeeded")
	fmt.Println(irprint.Function(adjFn))
}

func runPrint(args []string) {
	fs := flag.NewFlagSet("print", flag.ExitOnError)
	target := fs.String("target", "", "name of the function to print")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "%s: missing module file argument\n", red("Error"))
		fmt.Println("Usage: adcore print <file.yaml> --target <fn>")
		os.Exit(1)
	}
	// Flag parsing stops at the module file; parse the flags after it too.
	file := fs.Arg(0)
	fs.Parse(fs.Args()[1:])

	mod, err := adyaml.Load(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	if *target != "" {
		fn, ok := mod.Lookup(*target)
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: no function named %q in module\n", red("Error"), *target)
			os.Exit(1)
		}
		fmt.Println(irprint.Function(fn))
		return
	}

	fmt.Println(irprint.Module(mod))
}

// printDiffError renders a structured *errors.Report, when present, with
// its code and phase; falls back to the plain error string otherwise.
func printDiffError(err error) {
	rep, ok := aderrors.AsReport(err)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s [%s/%s]: %s\n", red("Error"), rep.Phase, rep.Code, rep.Message)
	if rep.Variable != "" {
		fmt.Fprintf(os.Stderr, "  variable: %s\n", rep.Variable)
	}
}
