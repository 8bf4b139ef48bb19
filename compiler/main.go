// Command minicc compiles the accepted C program into a native x86-64 Linux
// executable using nasm and ld.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/xiaobogaga/minicc/compiler/internal"
)

const usageExitCode = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, internal.NewExecExecutor())
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, executor internal.Executor) int {
	exitCode := 0
	cmd := newRootCommand(stderr, executor, &exitCode)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return usageExitCode
	}
	return exitCode
}

func newRootCommand(diagnostics io.Writer, executor internal.Executor, exitCode *int) *cobra.Command {
	config := internal.DefaultConfig()
	var grammar string

	cmd := &cobra.Command{
		Use:   "minicc [flags] <c_file>",
		Short: "Compile a C source file into a native executable",
		Long: `minicc validates a C source file against the accepted grammar, lowers it to
x86-64 NASM assembly and runs the assembler and linker found on PATH.

Intermediates live in a private directory under --work-dir that is removed
when the run ends unless --keep is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := internal.ParseGrammar(grammar)
			if err != nil {
				return err
			}
			config.Grammar = g
			if config.EmitAsmOnly && !cmd.Flags().Changed("output") {
				config.OutputPath = internal.AssemblyFileName
			}
			if err := config.Validate(); err != nil {
				return err
			}
			// Usage is for argument errors only from here on.
			cmd.SilenceUsage = true

			reporter := internal.NewReporter(diagnostics, config.Verbose, config.NoColor)
			driver := internal.NewDriver(config, executor, reporter)
			outcome := driver.Compile(cmd.Context(), args[0], config.OutputPath)
			driver.ReportOutcome(args[0], outcome)
			*exitCode = outcome.ExitCode()
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&config.OutputPath, "output", "o", config.OutputPath, "path of the produced executable (or listing with -S)")
	flags.StringVar(&grammar, "grammar", string(config.Grammar), "accepted grammar: exact or subset")
	flags.StringVar(&config.Assembler, "assembler", config.Assembler, "assembler executable")
	flags.StringVar(&config.Linker, "linker", config.Linker, "linker executable")
	flags.StringVar(&config.WorkDir, "work-dir", config.WorkDir, "parent directory for per-run intermediates")
	flags.BoolVar(&config.KeepIntermediates, "keep", false, "keep the intermediate directory")
	flags.BoolVarP(&config.EmitAsmOnly, "emit-asm", "S", false, "stop after writing the assembly listing")
	flags.BoolVarP(&config.Verbose, "verbose", "v", false, "print every stage and tool invocation")
	flags.BoolVar(&config.NoColor, "no-color", false, "disable coloured diagnostics")
	return cmd
}
