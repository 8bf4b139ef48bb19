package internal

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// AcceptedProgram is the one program text the exact grammar accepts.
const AcceptedProgram = "int main() { return 2; }"

type Grammar string

const (
	// ExactGrammar accepts AcceptedProgram only, modulo surrounding whitespace.
	ExactGrammar Grammar = "exact"
	// SubsetGrammar accepts any single `int main() { return <const>; }`
	// whose constant folds into an exit status.
	SubsetGrammar Grammar = "subset"
)

var grammars = []Grammar{ExactGrammar, SubsetGrammar}

func ParseGrammar(name string) (Grammar, error) {
	for _, g := range grammars {
		if string(g) == name {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown grammar %q (want one of %v)", name, grammars)
}

type Validator struct {
	grammar Grammar
	parser  Parser
}

func NewValidator(grammar Grammar) *Validator {
	return &Validator{grammar: grammar}
}

// Validate classifies source. It returns a ProgramAst only for accepted
// input and a *RejectionError otherwise. Validate never touches the
// filesystem.
func Validate(source []byte) (*ProgramAst, error) {
	return NewValidator(ExactGrammar).Validate(source)
}

func (v *Validator) Validate(source []byte) (*ProgramAst, error) {
	switch v.grammar {
	case ExactGrammar:
		trimmed := strings.TrimSpace(string(source))
		if trimmed != AcceptedProgram {
			return nil, &RejectionError{Reason: ErrRejected.Error()}
		}
		// TrimSpace also drops Unicode spaces the tokenizer does not skip.
		return v.parser.ParseSource([]byte(trimmed))
	case SubsetGrammar:
		return v.validateSubset(source)
	}
	return nil, fmt.Errorf("unknown grammar %q", v.grammar)
}

func (v *Validator) validateSubset(source []byte) (*ProgramAst, error) {
	if !utf8.Valid(source) {
		return nil, rejectf(0, "source is not valid UTF-8")
	}
	program, err := v.parser.ParseSource(source)
	if err != nil {
		return nil, err
	}
	main := program.MainFunction()
	if main == nil {
		return nil, rejectf(program.Functions[0].line, "no main function")
	}
	if len(main.FuncBody) != 1 {
		return nil, rejectf(main.line, "main must consist of a single return statement")
	}
	ret, ok := main.FuncBody[0].Statement.(*ReturnStatementAst)
	if !ok {
		return nil, rejectf(main.FuncBody[0].line, "main must consist of a single return statement")
	}
	status, err := ret.Return.ConstantValue()
	if err != nil {
		return nil, rejectf(ret.Return.line, "%v", err)
	}
	if status < 0 || status > 255 {
		return nil, rejectf(ret.Return.line, "exit status %d outside [0, 255]", status)
	}
	return program, nil
}
