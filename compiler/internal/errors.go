package internal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInputRead          = errors.New("cannot read source file")
	ErrRejected           = errors.New("does not match accepted grammar")
	ErrCodeGen            = errors.New("code generation failed")
	ErrAssemblerFailed    = errors.New("assembler failed")
	ErrLinkerFailed       = errors.New("linker failed")
	ErrFinalizationFailed = errors.New("finalization failed")
)

// RejectionError explains why a source document is not in the accepted
// grammar. Line is 0 when the rejection is not tied to a position.
type RejectionError struct {
	Reason string
	Line   int
}

func (e *RejectionError) Error() string {
	if e == nil {
		return ""
	}
	reason := e.Reason
	if reason == "" {
		reason = ErrRejected.Error()
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, reason)
	}
	return reason
}

func (e *RejectionError) Unwrap() error { return ErrRejected }

func rejectf(line int, format string, args ...any) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...), Line: line}
}

// StageError is a toolchain stage failure. Kind is one of the stage
// sentinels above; Err carries the underlying cause, if any.
type StageError struct {
	Stage    State
	Kind     error
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Tool != "" {
		fmt.Fprintf(&b, " (%s", e.Tool)
		if e.ExitCode != 0 {
			fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
