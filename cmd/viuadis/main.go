// Command viuadis renders a linked module file back into assembly text
// (spec.md §6, SPEC_FULL.md §5.10): read the ELF64 envelope, hand the
// decoded process.Module to pkg/disasm. Grounded on the same
// oisee-z80-optimizer cmd/z80opt/main.go cobra.Command shape as the other
// two CLI tools in this tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marekjm/viuavm-sub001/pkg/disasm"
	"github.com/marekjm/viuavm-sub001/pkg/module"
)

func main() {
	var output string

	root := &cobra.Command{
		Use:   "viuadis [module]",
		Short: "Disassemble a viua module file into assembly text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("viuadis: %w", err)
			}

			mod, err := module.Read(raw)
			if err != nil {
				return fmt.Errorf("viuadis: %w", err)
			}

			text, err := disasm.Module(mod)
			if err != nil {
				return fmt.Errorf("viuadis: %w", err)
			}

			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			}
			return os.WriteFile(output, []byte(text), 0o644)
		},
	}
	root.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
