package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ripplecc/internal/asm"
	"ripplecc/internal/codegen"
	"ripplecc/internal/irfmt"
)

func newBuildCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "build <module.json>",
		Short: "Compile a JSON-encoded IR module into Ripple VM assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(args[0], outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func runBuild(inPath, outPath string) error {
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

	text := asm.Print(result.Instructions)

	if outPath == "" {
		_, err = fmt.Fprint(os.Stdout, text)
		return err
	}
	return os.WriteFile(outPath, []byte(text), 0644)
}
