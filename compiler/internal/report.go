package internal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type Phase string

const (
	PreparePhase  Phase = "preparing"
	ReadPhase     Phase = "reading"
	ValidatePhase Phase = "validating"
	GeneratePhase Phase = "generating"
	AssemblePhase Phase = "assembling"
	LinkPhase     Phase = "linking"
	FinalizePhase Phase = "finalizing"
)

// PhaseOf maps a toolchain state to the phase it reports under.
func PhaseOf(s State) Phase {
	switch s {
	case Assembling:
		return AssemblePhase
	case Linking:
		return LinkPhase
	case Finalizing:
		return FinalizePhase
	case Idle:
		return PreparePhase
	}
	return Phase(s.String())
}

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	SuccessLevel
	WarningLevel
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel:   "debug",
	InfoLevel:    "info",
	SuccessLevel: "ok",
	WarningLevel: "warning",
	ErrorLevel:   "error",
}

var levelColors = map[Level]lipgloss.Color{
	DebugLevel:   lipgloss.Color("8"),
	InfoLevel:    lipgloss.Color("12"),
	SuccessLevel: lipgloss.Color("10"),
	WarningLevel: lipgloss.Color("11"),
	ErrorLevel:   lipgloss.Color("9"),
}

// Reporter prints pipeline progress and diagnostics. Lines look like
//
//	[error while linking]: linker failed (ld exited with status 1)
//
// Colours are used only when out is a terminal.
type Reporter struct {
	out     io.Writer
	verbose bool
	color   bool
	styles  map[Level]lipgloss.Style
	detail  lipgloss.Style
}

func NewReporter(out io.Writer, verbose, noColor bool) *Reporter {
	r := &Reporter{
		out:     out,
		verbose: verbose,
		color:   !noColor && isTerminal(out),
		styles:  make(map[Level]lipgloss.Style, len(levelColors)),
	}
	renderer := lipgloss.NewRenderer(out)
	for level, c := range levelColors {
		style := renderer.NewStyle().Foreground(c)
		if level == ErrorLevel {
			style = style.Bold(true)
		}
		r.styles[level] = style
	}
	r.detail = renderer.NewStyle().Faint(true)
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Debugf prints only in verbose mode.
func (r *Reporter) Debugf(phase Phase, format string, args ...any) {
	if !r.verbose {
		return
	}
	r.Report(DebugLevel, phase, fmt.Sprintf(format, args...))
}

func (r *Reporter) Infof(phase Phase, format string, args ...any) {
	r.Report(InfoLevel, phase, fmt.Sprintf(format, args...))
}

func (r *Reporter) Successf(format string, args ...any) {
	r.Report(SuccessLevel, "", fmt.Sprintf(format, args...))
}

func (r *Reporter) Warnf(phase Phase, format string, args ...any) {
	r.Report(WarningLevel, phase, fmt.Sprintf(format, args...))
}

func (r *Reporter) Errorf(phase Phase, format string, args ...any) {
	r.Report(ErrorLevel, phase, fmt.Sprintf(format, args...))
}

func (r *Reporter) Report(level Level, phase Phase, msg string) {
	prefix := "[" + levelNames[level]
	if phase != "" {
		prefix += " while " + string(phase)
	}
	prefix += "]:"
	if r.color {
		prefix = r.styles[level].Render(prefix)
	}
	fmt.Fprintf(r.out, "%s %s\n", prefix, msg)
}

// Detail prints captured tool output indented under the last report.
func (r *Reporter) Detail(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		line = "    " + line
		if r.color {
			line = r.detail.Render(line)
		}
		fmt.Fprintln(r.out, line)
	}
}
