// Command viuavm runs a linked module file: load the ELF64 envelope, spawn a
// process at its entry function, and drive it with pkg/process.Scheduler
// (spec.md §6, SPEC_FULL.md §6, §5.10). Grounded on the same
// oisee-z80-optimizer cmd/z80opt/main.go cobra.Command shape as viuac and
// viuadis.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marekjm/viuavm-sub001/pkg/module"
	"github.com/marekjm/viuavm-sub001/pkg/process"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	var entry string
	var registers int
	var globals int
	var maxConcurrent int64

	root := &cobra.Command{
		Use:   "viuavm [module]",
		Short: "Run a viua module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("viuavm: %w", err)
			}

			mod, err := module.Read(raw)
			if err != nil {
				return fmt.Errorf("viuavm: %w", err)
			}

			fn, ok := mod.FindFunction(entry)
			if !ok {
				return fmt.Errorf("viuavm: module has no %q function", entry)
			}

			p := process.NewProcess(mod, globals).WithLogger(sugar)
			p.Spawn(fn, registers)

			sched := process.NewScheduler(maxConcurrent, sugar)
			sched.Spawn(p)

			if err := sched.Run(context.Background()); err != nil {
				return fmt.Errorf("viuavm: %w", err)
			}

			if p.ExitCode != 0 {
				os.Exit(p.ExitCode)
			}
			return nil
		},
	}
	root.Flags().StringVar(&entry, "entry", "main", "Entry function name")
	root.Flags().IntVar(&registers, "registers", 16, "Local registers to allocate for the entry frame")
	root.Flags().IntVar(&globals, "globals", 16, "Global registers to allocate for the process")
	root.Flags().Int64Var(&maxConcurrent, "max-concurrent", 0, "Bound on concurrently running processes (0 = unbounded)")

	if err := root.Execute(); err != nil {
		sugar.Error(err)
		os.Exit(1)
	}
}
