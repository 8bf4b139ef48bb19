package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type OutcomeKind int

const (
	Success OutcomeKind = iota
	InputReadFailure
	RejectedInput
	CodeGenFailure
	ToolchainFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case InputReadFailure:
		return "input read failure"
	case RejectedInput:
		return "rejected input"
	case CodeGenFailure:
		return "code generation failure"
	case ToolchainFailure:
		return "toolchain failure"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of one compilation. Stage is meaningful only for
// ToolchainFailure; Idle there means the work directory could not be set up.
type Outcome struct {
	Kind           OutcomeKind
	Stage          State
	Err            error
	ExecutablePath string
	// AssemblyPath is set when only the listing was requested.
	AssemblyPath string
}

// ExitCode maps the outcome onto the process exit status.
func (o Outcome) ExitCode() int {
	if o.Kind == Success {
		return 0
	}
	if errors.Is(o.Err, context.Canceled) {
		return 130
	}
	return 1
}

// Driver runs validate -> generate -> build for one source file.
type Driver struct {
	config   *Config
	executor Executor
	reporter *Reporter
	// newGenerator returns a fresh generator per compilation; generators
	// carry emission state.
	newGenerator func() CodeGenerator
}

func NewDriver(config *Config, executor Executor, reporter *Reporter) *Driver {
	return &Driver{
		config:       config,
		executor:     executor,
		reporter:     reporter,
		newGenerator: func() CodeGenerator { return NewX86_64Generator() },
	}
}

// Compile reads sourcePath once and, if it is accepted, produces exePath.
// Nothing is written for input that fails validation or generation.
func (d *Driver) Compile(ctx context.Context, sourcePath, exePath string) Outcome {
	d.reporter.Debugf(ReadPhase, "%s", sourcePath)
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return Outcome{Kind: InputReadFailure, Err: fmt.Errorf("%w %s: %w", ErrInputRead, sourcePath, err)}
	}

	d.reporter.Debugf(ValidatePhase, "grammar %s", d.config.Grammar)
	program, err := NewValidator(d.config.Grammar).Validate(source)
	if err != nil {
		return Outcome{Kind: RejectedInput, Err: err}
	}

	generator := d.newGenerator()
	d.reporter.Debugf(GeneratePhase, "target %s", generator.Target())
	listing, err := generator.Generate(program)
	if err != nil {
		return Outcome{Kind: CodeGenFailure, Err: err}
	}

	if d.config.EmitAsmOnly {
		if err := writeListing(exePath, listing); err != nil {
			return Outcome{Kind: CodeGenFailure, Err: err}
		}
		return Outcome{Kind: Success, AssemblyPath: exePath}
	}

	workDir, err := os.MkdirTemp(d.config.WorkDir, "minicc-*")
	if err != nil {
		return Outcome{Kind: ToolchainFailure, Stage: Idle, Err: fmt.Errorf("create work directory: %w", err)}
	}
	keepWorkDir := d.config.KeepIntermediates
	defer func() { d.removeWorkDir(workDir, keepWorkDir) }()

	asmPath := filepath.Join(workDir, AssemblyFileName)
	if err := writeListing(asmPath, listing); err != nil {
		return Outcome{Kind: ToolchainFailure, Stage: Idle, Err: err}
	}

	toolchain := NewToolchain(d.config, workDir, d.executor, d.reporter)
	if err := toolchain.Build(ctx, asmPath, exePath); err != nil {
		stage := Idle
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		if errors.Is(err, ErrFinalizationFailed) {
			// The link succeeded; leave the binary where it can be found.
			keepWorkDir = true
			d.reporter.Warnf(FinalizePhase, "linked executable left at %s", toolchain.LinkedPath())
		}
		return Outcome{Kind: ToolchainFailure, Stage: stage, Err: err}
	}
	return Outcome{Kind: Success, ExecutablePath: exePath}
}

func (d *Driver) removeWorkDir(workDir string, keep bool) {
	if keep {
		d.reporter.Infof(FinalizePhase, "intermediates kept in %s", workDir)
		return
	}
	if err := os.RemoveAll(workDir); err != nil {
		d.reporter.Warnf(FinalizePhase, "could not remove %s: %v", workDir, err)
	}
}

// writeListing stores the listing and syncs it before the assembler reads it.
func writeListing(path, listing string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write listing: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("write listing: %w", closeErr)
		}
	}()
	if _, err = f.WriteString(listing); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}
	return nil
}

// ReportOutcome prints the user-facing summary of o.
func (d *Driver) ReportOutcome(sourcePath string, o Outcome) {
	switch o.Kind {
	case Success:
		if o.AssemblyPath != "" {
			d.reporter.Successf("wrote assembly for %s to %s", sourcePath, o.AssemblyPath)
			return
		}
		d.reporter.Successf("compiled %s to %s", sourcePath, o.ExecutablePath)
	case InputReadFailure:
		d.reporter.Errorf(ReadPhase, "%v", o.Err)
	case RejectedInput:
		d.reporter.Errorf(ValidatePhase, "%s: %v", sourcePath, o.Err)
	case CodeGenFailure:
		d.reporter.Errorf(GeneratePhase, "%v", o.Err)
	case ToolchainFailure:
		d.reporter.Errorf(PhaseOf(o.Stage), "%v", o.Err)
		var stageErr *StageError
		if errors.As(o.Err, &stageErr) {
			d.reporter.Detail(stageErr.Stderr)
		}
	}
}
