// Command glox is the driver for the glox bytecode VM: it wires the
// lexer, compiler, and vm packages together behind a cobra command tree,
// the way the teacher's single-file driver wired the equivalent pieces
// for its own VM.
package main

import (
	"fmt"
	"os"

	"github.com/kristofer/glox/pkg/glox"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	traceFlag    bool
	verboseFlag  bool
	gcStressFlag bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if verboseFlag {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "glox",
		Short:         "glox is a bytecode virtual machine for a small class-based scripting language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&traceFlag, "trace", false, "print the stack and each instruction before executing it")
	root.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "raise logging to debug level")
	root.PersistentFlags().BoolVar(&gcStressFlag, "gc-stress", false, "collect garbage before every instruction")

	root.AddCommand(newRunCmd(), newReplCmd(), newDisassembleCmd(), newVersionCmd())
	return root
}

func configureLogging() {
	log.SetOutput(os.Stderr)
	level := log.InfoLevel
	if verboseFlag {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Compile and run a glox source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging()
			code, err := glox.RunFile(args[0], glox.Options{Trace: traceFlag || os.Getenv("GLOX_TRACE") != "", GCStress: gcStressFlag})
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive read-eval-print loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging()
			glox.REPL(glox.Options{Trace: traceFlag || os.Getenv("GLOX_TRACE") != "", GCStress: gcStressFlag})
			return nil
		},
	}
}

func newDisassembleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disassemble <file>",
		Short: "Compile a glox source file and print its disassembled bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging()
			return glox.DisassembleFile(args[0])
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the glox version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(glox.Version)
		},
	}
}
