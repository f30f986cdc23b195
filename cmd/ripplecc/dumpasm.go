package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"ripplecc/internal/asm"
	"ripplecc/internal/codegen"
	"ripplecc/internal/irfmt"
)

// newDumpAsmCmd is a diagnostic sibling of build: it always writes to
// stdout and precedes the assembly with a comment block listing every
// global's assigned address, the way the teacher's -vb flag printed the
// syntax tree before code generation (src/main.go's ir.Root.Print(0,
// true)) rather than leaving that state opaque to the caller.
func newDumpAsmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-asm <module.json>",
		Short: "Compile a module and print its assembly and global layout to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDumpAsm(args[0])
		},
	}
}

func runDumpAsm(inPath string) error {
	log := newLogger()

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inPath, err)
	}
	defer in.Close()

	mod, err := irfmt.Decode(in)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", inPath, err)
	}

	result, err := codegen.Module(mod, currentConfig(), log)
	if err != nil {
		return fmt.Errorf("code generation error: %s", err)
	}

	names := make([]string, 0, len(result.Globals))
	for name := range result.Globals {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stdout, "; global layout")
	for _, name := range names {
		info := result.Globals[name]
		fmt.Fprintf(os.Stdout, ";   %s: address=%d size=%d\n", name, info.Address, info.Size)
	}

	fmt.Fprint(os.Stdout, asm.Print(result.Instructions))
	return nil
}
