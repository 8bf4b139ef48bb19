package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Intermediate artifact names inside a run's work directory. They are fixed
// because every run gets a directory of its own.
const (
	AssemblyFileName = "output.asm"
	ObjectFileName   = "temp.o"
	LinkedFileName   = "a.out"
)

type State int

const (
	Idle State = iota
	Assembling
	Linking
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Assembling:
		return "assembling"
	case Linking:
		return "linking"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func isAllowedTransition(from, to State) bool {
	if to == Failed {
		return from != Done && from != Failed
	}
	switch from {
	case Idle:
		return to == Assembling
	case Assembling:
		return to == Linking
	case Linking:
		return to == Finalizing
	case Finalizing:
		return to == Done
	}
	return false
}

// Toolchain drives the external assembler and linker for one build. A
// Toolchain is single use: Build may be called once.
type Toolchain struct {
	assembler string
	linker    string
	workDir   string
	executor  Executor
	reporter  *Reporter

	state   State
	history []State
}

func NewToolchain(config *Config, workDir string, executor Executor, reporter *Reporter) *Toolchain {
	return &Toolchain{
		assembler: config.Assembler,
		linker:    config.Linker,
		workDir:   workDir,
		executor:  executor,
		reporter:  reporter,
		state:     Idle,
		history:   []State{Idle},
	}
}

func (t *Toolchain) State() State { return t.state }

// History lists every state the toolchain has been in, oldest first.
func (t *Toolchain) History() []State {
	return append([]State(nil), t.history...)
}

func (t *Toolchain) transition(to State) {
	if !isAllowedTransition(t.state, to) {
		// Only reachable through a bug in Build.
		panic(fmt.Sprintf("toolchain: disallowed transition %s -> %s", t.state, to))
	}
	t.state = to
	t.history = append(t.history, to)
}

func (t *Toolchain) ObjectPath() string { return filepath.Join(t.workDir, ObjectFileName) }

func (t *Toolchain) LinkedPath() string { return filepath.Join(t.workDir, LinkedFileName) }

// AssemblerCommand is `nasm -f elf64 <asm> -o <obj>`.
func (t *Toolchain) AssemblerCommand(asmPath string) Command {
	return Command{Name: t.assembler, Args: []string{"-f", "elf64", asmPath, "-o", t.ObjectPath()}}
}

// LinkerCommand is `ld -m elf_x86_64 -e _start <obj> -o <linked>`.
func (t *Toolchain) LinkerCommand() Command {
	return Command{Name: t.linker, Args: []string{"-m", "elf_x86_64", "-e", EntrySymbol, t.ObjectPath(), "-o", t.LinkedPath()}}
}

// Build assembles asmPath, links the object and moves the result to exePath.
// Failures are returned as *StageError.
func (t *Toolchain) Build(ctx context.Context, asmPath, exePath string) error {
	if t.state != Idle {
		return fmt.Errorf("toolchain already used (state %s)", t.state)
	}

	t.transition(Assembling)
	if err := t.runTool(ctx, Assembling, t.AssemblerCommand(asmPath), ErrAssemblerFailed); err != nil {
		// A partial object is never reused.
		t.cleanup(t.ObjectPath())
		t.transition(Failed)
		return err
	}

	t.transition(Linking)
	if err := t.runTool(ctx, Linking, t.LinkerCommand(), ErrLinkerFailed); err != nil {
		t.cleanup(t.ObjectPath(), t.LinkedPath())
		t.transition(Failed)
		return err
	}

	t.transition(Finalizing)
	if err := t.finalize(exePath); err != nil {
		t.transition(Failed)
		return err
	}
	t.transition(Done)
	return nil
}

func (t *Toolchain) runTool(ctx context.Context, stage State, cmd Command, kind error) error {
	t.reporter.Debugf(PhaseOf(stage), "%s", cmd)
	result, err := t.executor.Run(ctx, cmd)
	if err != nil {
		return &StageError{Stage: stage, Kind: kind, Tool: cmd.Name, Err: err}
	}
	if result.ExitCode != 0 {
		return &StageError{
			Stage:    stage,
			Kind:     kind,
			Tool:     cmd.Name,
			ExitCode: result.ExitCode,
			Stderr:   strings.TrimSpace(string(result.Stderr)),
		}
	}
	return nil
}

// finalize moves the linked binary into place and removes the object. Both
// steps run even if the first one fails; a failed move leaves the binary
// where the linker put it.
func (t *Toolchain) finalize(exePath string) error {
	var errs []error
	if err := moveFile(t.LinkedPath(), exePath); err != nil {
		errs = append(errs, fmt.Errorf("move %s to %s: %w", t.LinkedPath(), exePath, err))
	}
	if err := os.Remove(t.ObjectPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove %s: %w", t.ObjectPath(), err))
	}
	if len(errs) > 0 {
		return &StageError{Stage: Finalizing, Kind: ErrFinalizationFailed, Err: errors.Join(errs...)}
	}
	return nil
}

// cleanup removes intermediates after a failed stage. It is best effort.
func (t *Toolchain) cleanup(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.reporter.Warnf(PhaseOf(t.state), "could not remove %s: %v", p, err)
		}
	}
}

// moveFile renames src to dst, copying when they are on different
// filesystems. src is only removed once dst is complete.
func moveFile(src, dst string) error {
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(renameErr, &linkErr) {
		return renameErr
	}
	if err := copyFile(src, dst); err != nil {
		return errors.Join(renameErr, err)
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	// O_CREATE honours umask; match the linker's mode explicitly.
	return out.Chmod(info.Mode().Perm())
}
