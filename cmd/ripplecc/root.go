// Command ripplecc is the command-line entry point for the Ripple VM code
// generator: it reads a module's IR (as JSON, emitted by the out-of-scope
// frontend/optimiser stages), drives internal/codegen over it, and writes
// the resulting assembly. Structured as a cobra command tree the way
// moby-moby's cmd/ and wazero's CLI do, replacing the teacher's single
// hand-rolled os.Args loop (src/util/args.go) with build/dump-asm/version
// subcommands sharing persistent flags. Spec.md section 1 names the
// assembler, linker, and VM as external collaborators; this binary's only
// job is producing the textual assembly they consume.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ripplecc/internal/codegen"
)

// appVersion is printed by the version subcommand.
const appVersion = "ripplecc 0.1.0"

// rootOptions mirrors the teacher's util.Options, extended with the
// Ripple-specific machine parameters from spec.md section 6.
type rootOptions struct {
	verbose      int
	threads      int
	bankSize     int
	memoryOffset int
	startBank    int
	maxImmediate int64
}

var rootOpt rootOptions

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ripplecc",
		Short:         "Code generator for the Ripple VM C compiler backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().CountVarP(&rootOpt.verbose, "verbose", "v", "increase log verbosity (-v, -vv)")
	root.PersistentFlags().IntVarP(&rootOpt.threads, "jobs", "j", 1, "worker threads for parallel function codegen")
	root.PersistentFlags().IntVar(&rootOpt.bankSize, "bank-size", 4096, "words per memory bank")
	root.PersistentFlags().IntVar(&rootOpt.memoryOffset, "memory-offset", 0, "reserved low-memory size (recorded in the config; global allocation still starts at address 0)")
	root.PersistentFlags().IntVar(&rootOpt.startBank, "start-bank", 0, "bank the entry point begins execution in")
	root.PersistentFlags().Int64Var(&rootOpt.maxImmediate, "max-immediate", 32767, "largest value an immediate-form instruction may encode")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newDumpAsmCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// newLogger builds the logrus.Entry every subcommand logs through, its
// level set from the repeated -v flag (spec.md section 1: -v enables
// Debug, -vv enables Trace).
func newLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	switch {
	case rootOpt.verbose >= 2:
		log.SetLevel(logrus.TraceLevel)
	case rootOpt.verbose == 1:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return logrus.NewEntry(log)
}

func currentConfig() codegen.Config {
	return codegen.Config{
		BankSize:     rootOpt.bankSize,
		MemoryOffset: rootOpt.memoryOffset,
		StartBank:    int16(rootOpt.startBank),
		MaxImmediate: rootOpt.maxImmediate,
		Threads:      rootOpt.threads,
	}
}

// main recovers a panic escaping command execution and reports it as a
// fatal but ordinary error rather than crashing with a raw stack trace.
// internal/codegen already recovers a panic confined to one function's
// lowering (spec.md section 7); this is the outer backstop for anything
// outside that per-function boundary (global lowering, IR decoding, a
// bug in the recovery path itself) — it does not paper over the
// underlying invariant violation, it just keeps the reported message
// identical in spirit: a CompilerError naming what broke.
func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ripplecc: %s\n", err)
		os.Exit(1)
	}
}

func execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return newRootCmd().Execute()
}
