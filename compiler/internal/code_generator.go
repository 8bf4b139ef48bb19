package internal

import (
	"fmt"
	"strings"
)

// EntrySymbol is the process-entry symbol of generated listings.
const EntrySymbol = "_start"

// sysExit is the x86-64 Linux exit system call number.
const sysExit = 60

// CodeGenerator lowers a validated program into an assembly listing.
type CodeGenerator interface {
	Generate(program *ProgramAst) (string, error)
	Target() string
}

var _ CodeGenerator = (*X86_64Generator)(nil)

// X86_64Generator emits NASM syntax for x86-64 Linux. The program is entered
// at EntrySymbol without libc and leaves through the exit system call.
type X86_64Generator struct {
	text   strings.Builder
	status int64
	// done is set once main has emitted its exit sequence.
	done bool
}

func NewX86_64Generator() *X86_64Generator {
	return &X86_64Generator{}
}

// Generate is the package-level shorthand used by the driver.
func Generate(program *ProgramAst) (string, error) {
	return NewX86_64Generator().Generate(program)
}

func (g *X86_64Generator) Target() string { return "x86_64-linux-nasm" }

func (g *X86_64Generator) Generate(program *ProgramAst) (string, error) {
	g.text.Reset()
	g.status, g.done = 0, false
	if program == nil {
		return "", fmt.Errorf("%w: nil program", ErrCodeGen)
	}
	if err := g.VisitProgram(program); err != nil {
		return "", err
	}
	return g.text.String(), nil
}

func (g *X86_64Generator) VisitProgram(program *ProgramAst) error {
	main := program.MainFunction()
	if main == nil {
		return fmt.Errorf("%w: program has no main function", ErrCodeGen)
	}
	g.text.WriteString("section .text\n")
	fmt.Fprintf(&g.text, "global %s\n\n", EntrySymbol)
	return g.VisitFunction(main)
}

func (g *X86_64Generator) VisitFunction(function *FunctionAst) error {
	if function.FuncName != "main" {
		return fmt.Errorf("%w: function %s: only main can be lowered", ErrCodeGen, function.FuncName)
	}
	fmt.Fprintf(&g.text, "%s:\n", EntrySymbol)
	for _, stm := range function.FuncBody {
		if g.done {
			// Statements after the first return are unreachable.
			break
		}
		if err := WalkStatement(g, stm); err != nil {
			return err
		}
	}
	if !g.done {
		// Falling off the end of main returns 0.
		g.emitExit(0)
	}
	return nil
}

func (g *X86_64Generator) VisitReturn(stm *ReturnStatementAst) error {
	if stm.Return == nil {
		return fmt.Errorf("%w: return without value in main", ErrCodeGen)
	}
	if err := g.VisitExpression(stm.Return); err != nil {
		return err
	}
	g.emitExit(g.status)
	return nil
}

func (g *X86_64Generator) VisitExpression(expr *ExpressionAst) error {
	value, err := expr.ConstantValue()
	if err != nil {
		return err
	}
	g.status = value
	return nil
}

func (g *X86_64Generator) emitExit(status int64) {
	g.writeInstruction("mov", "rax", fmt.Sprint(sysExit), "syscall: exit")
	g.writeInstruction("mov", "rdi", fmt.Sprint(status), fmt.Sprintf("exit code: %d", status))
	g.text.WriteString("    syscall\n")
	g.done = true
}

func (g *X86_64Generator) writeInstruction(op, dst, src, comment string) {
	fmt.Fprintf(&g.text, "    %s %s, %-5s; %s\n", op, dst, src, comment)
}
