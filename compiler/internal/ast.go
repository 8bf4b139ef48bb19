package internal

import "fmt"

// In this file we define the ast of the accepted C subset. A source file holds
// exactly one function definition; statements and expressions are tagged
// variants so that later passes switch on the tag instead of type-asserting
// blindly.

type ProgramAst struct {
	Functions []*FunctionAst
}

type FunctionAst struct {
	FuncName string
	ReturnTP VariableType
	FuncBody []*StatementAst
	line     int
}

type VariableType int

const (
	IntVariableType VariableType = iota
)

func (t VariableType) String() string {
	switch t {
	case IntVariableType:
		return "int"
	}
	return fmt.Sprintf("VariableType(%d)", int(t))
}

type StatementAst struct {
	StatementTP StatementType
	// ReturnStatementTP: *ReturnStatementAst
	Statement interface{}
	line      int
}

type StatementType int

const (
	ReturnStatementTP StatementType = iota
)

type ReturnStatementAst struct {
	Return *ExpressionAst
}

type ExpressionAst struct {
	ExpressionTP ExpressionType
	// IntegerConstantExpressionTP: int64
	// NegationExpressionTP, SubExpressionTP: *ExpressionAst
	Value interface{}
	line  int
}

type ExpressionType int

const (
	IntegerConstantExpressionTP ExpressionType = iota
	// -expr
	NegationExpressionTP
	// (expr)
	SubExpressionTP
)

// Visitor is implemented by passes that walk the ast. Walk dispatches on the
// node tag; a pass that cannot handle a tag returns an error.
type Visitor interface {
	VisitProgram(program *ProgramAst) error
	VisitFunction(function *FunctionAst) error
	VisitReturn(stm *ReturnStatementAst) error
	VisitExpression(expr *ExpressionAst) error
}

// WalkStatement dispatches a statement to the matching Visitor method.
func WalkStatement(v Visitor, stm *StatementAst) error {
	switch stm.StatementTP {
	case ReturnStatementTP:
		ret, ok := stm.Statement.(*ReturnStatementAst)
		if !ok {
			return fmt.Errorf("%w: malformed return statement at line %d", ErrCodeGen, stm.line)
		}
		return v.VisitReturn(ret)
	}
	return fmt.Errorf("%w: unsupported statement kind %d at line %d", ErrCodeGen, stm.StatementTP, stm.line)
}

// ConstantValue folds expr into its integer value.
func (expr *ExpressionAst) ConstantValue() (int64, error) {
	switch expr.ExpressionTP {
	case IntegerConstantExpressionTP:
		if v, ok := expr.Value.(int64); ok {
			return v, nil
		}
	case NegationExpressionTP:
		if inner, ok := expr.Value.(*ExpressionAst); ok {
			v, err := inner.ConstantValue()
			return -v, err
		}
	case SubExpressionTP:
		if inner, ok := expr.Value.(*ExpressionAst); ok {
			return inner.ConstantValue()
		}
	}
	return 0, fmt.Errorf("%w: cannot fold expression kind %d at line %d", ErrCodeGen, expr.ExpressionTP, expr.line)
}

// MainFunction returns the program's entry function, or nil.
func (program *ProgramAst) MainFunction() *FunctionAst {
	for _, f := range program.Functions {
		if f.FuncName == "main" {
			return f
		}
	}
	return nil
}
