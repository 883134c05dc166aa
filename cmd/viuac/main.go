// Command viuac assembles viua source into a linked module file: lex,
// normalise, parse, run the register-usage analyser over every function
// (and every block a function calls by name), generate bytecode, and write
// the result as an ELF64 envelope
// (spec.md §6, SPEC_FULL.md §5.10). Grounded on oisee-z80-optimizer's
// cmd/z80opt/main.go: a cobra.Command root with one flag-bearing subcommand
// and RunE returning wrapped errors rather than calling log.Fatal directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marekjm/viuavm-sub001/pkg/asm/analyser"
	"github.com/marekjm/viuavm-sub001/pkg/asm/codegen"
	"github.com/marekjm/viuavm-sub001/pkg/asm/parser"
	"github.com/marekjm/viuavm-sub001/pkg/module"
)

// errorDiagnostics reports the analyser.SeverityError findings in diags, the
// ones spec.md §4.6 treats as build failures rather than advisories.
func errorDiagnostics(diags []analyser.Diagnostic) []analyser.Diagnostic {
	var out []analyser.Diagnostic
	for _, d := range diags {
		if d.Severity == analyser.SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	var output string

	root := &cobra.Command{
		Use:   "viuac [source.asm]",
		Short: "Assemble viua source into a linked module file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("viuac: %w", err)
			}

			prog, err := parser.Parse(string(src))
			if err != nil {
				return fmt.Errorf("viuac: syntax error: %w", err)
			}

			if err := assembleTimeChecks(prog); err != nil {
				return err
			}

			mod, err := codegen.Generate(prog)
			if err != nil {
				return fmt.Errorf("viuac: %w", err)
			}

			raw, err := module.Write(mod)
			if err != nil {
				return fmt.Errorf("viuac: %w", err)
			}

			out := output
			if out == "" {
				out = args[0] + ".out"
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return fmt.Errorf("viuac: %w", err)
			}

			sugar.Infow("assembled module",
				"source", args[0], "output", out,
				"functions", len(mod.Functions), "blocks", len(mod.Blocks),
				"words", len(mod.Text))
			return nil
		},
	}
	root.Flags().StringVarP(&output, "output", "o", "", "Output module path (default: <source>.out)")

	if err := root.Execute(); err != nil {
		sugar.Error(err)
		os.Exit(1)
	}
}

// assembleTimeChecks runs the register-usage analyser (spec.md §4.6) over
// every function before code generation (a block is analysed only where a
// function calls it by name), surfacing the first diagnostic tagged fatal as
// the build failure it is.
func assembleTimeChecks(prog *parser.Program) error {
	blocks := make(map[string]*parser.Block, len(prog.Blocks))
	for _, b := range prog.Blocks {
		blocks[b.Name] = b
	}

	for _, fn := range prog.Functions {
		diags, err := analyser.Analyse(fn, blocks)
		if err != nil {
			return fmt.Errorf("viuac: analysing %s: %w", fn.Name, err)
		}
		if errs := errorDiagnostics(diags); len(errs) > 0 {
			return fmt.Errorf("viuac: %s: %s", fn.Name, errs[0].String())
		}
	}
	return nil
}
