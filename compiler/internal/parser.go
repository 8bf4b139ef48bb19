package internal

import (
	"bytes"
	"strconv"
)

// maxExpressionDepth bounds nested unary and parenthesised expressions.
const maxExpressionDepth = 256

type Parser struct {
	currentTokenPos int
	currentTokens   []*Token
	depth           int
}

// ParseSource tokenizes and parses source into a ProgramAst.
func (parser *Parser) ParseSource(source []byte) (*ProgramAst, error) {
	parser.reset()
	tokenizer := &Tokenizer{}
	tokens, err := tokenizer.Tokenize(bytes.NewReader(source))
	if err != nil {
		return nil, err
	}
	parser.currentTokens = tokens
	return parser.ParseProgram()
}

func (parser *Parser) reset() {
	parser.currentTokenPos, parser.currentTokens, parser.depth = 0, nil, 0
}

// Program:
//
//	int Identifier ( ) { statements }
//
// Exactly one function definition and nothing after it.
func (parser *Parser) ParseProgram() (*ProgramAst, error) {
	if !parser.hasRemainTokens() {
		return nil, rejectf(0, "empty translation unit")
	}
	function, err := parser.ParseFunctionDeclaration()
	if err != nil {
		return nil, err
	}
	if parser.hasRemainTokens() {
		return nil, parser.makeError(true)
	}
	return &ProgramAst{Functions: []*FunctionAst{function}}, nil
}

func (parser *Parser) ParseFunctionDeclaration() (*FunctionAst, error) {
	intToken, match := parser.expectToken(IntTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	if !parser.expectTokens(LeftParenthesesTP, RightParenthesesTP) {
		return nil, parser.makeError(true)
	}
	body, err := parser.parseFuncBody()
	if err != nil {
		return nil, err
	}
	return &FunctionAst{
		FuncName: nameToken.content,
		ReturnTP: IntVariableType,
		FuncBody: body,
		line:     intToken.line,
	}, nil
}

// {
//    statements
// }
func (parser *Parser) parseFuncBody() (stms []*StatementAst, err error) {
	_, match := parser.expectToken(LeftBraceTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	for parser.hasRemainTokens() {
		if _, match = parser.expectToken(RightBraceTP, false); match {
			break
		}
		stm, err := parser.parseStatement()
		if err != nil {
			return nil, err
		}
		stms = append(stms, stm)
	}
	_, match = parser.expectToken(RightBraceTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	return stms, nil
}

func (parser *Parser) parseStatement() (*StatementAst, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case ReturnTP:
		return parser.parseReturnStatement()
	}
	return nil, parser.makeError(true)
}

// return expression ;
func (parser *Parser) parseReturnStatement() (*StatementAst, error) {
	returnToken, _ := parser.expectToken(ReturnTP, true)
	expr, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, match := parser.expectToken(SemiColonTP, true); !match {
		return nil, parser.makeError(true)
	}
	return &StatementAst{
		StatementTP: ReturnStatementTP,
		Statement:   &ReturnStatementAst{Return: expr},
		line:        returnToken.line,
	}, nil
}

// expression: integer | - expression | ( expression )
func (parser *Parser) parseExpression() (*ExpressionAst, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	if parser.depth >= maxExpressionDepth {
		return nil, rejectf(token.line, "expression nested too deeply")
	}
	parser.depth++
	defer func() { parser.depth-- }()

	switch token.tp {
	case IntegerTP:
		parser.stepForward()
		value, err := strconv.ParseInt(token.content, 10, 64)
		if err != nil {
			return nil, rejectf(token.line, "integer constant %s out of range", token.content)
		}
		return &ExpressionAst{ExpressionTP: IntegerConstantExpressionTP, Value: value, line: token.line}, nil
	case MinusTP:
		parser.stepForward()
		inner, err := parser.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ExpressionAst{ExpressionTP: NegationExpressionTP, Value: inner, line: token.line}, nil
	case LeftParenthesesTP:
		parser.stepForward()
		inner, err := parser.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, match := parser.expectToken(RightParenthesesTP, true); !match {
			return nil, parser.makeError(true)
		}
		return &ExpressionAst{ExpressionTP: SubExpressionTP, Value: inner, line: token.line}, nil
	}
	return nil, parser.makeError(true)
}

func (parser *Parser) getCurrentToken() (*Token, error) {
	if !parser.hasRemainTokens() {
		return nil, parser.makeError(true)
	}
	return parser.currentTokens[parser.currentTokenPos], nil
}

func (parser *Parser) stepForward() {
	parser.currentTokenPos++
}

func (parser *Parser) hasRemainTokens() bool {
	return parser.currentTokenPos < len(parser.currentTokens)
}

func (parser *Parser) expectTokens(expectedTokenTPs ...TokenType) bool {
	for _, tokenType := range expectedTokenTPs {
		if _, ok := parser.expectToken(tokenType, true); !ok {
			return false
		}
	}
	return true
}

func (parser *Parser) expectToken(expectedTokenTp TokenType, walk bool) (*Token, bool) {
	if !parser.hasRemainTokens() || parser.currentTokens[parser.currentTokenPos].tp != expectedTokenTp {
		return nil, false
	}
	token := parser.currentTokens[parser.currentTokenPos]
	if walk {
		parser.currentTokenPos++
	}
	return token, true
}

func (parser *Parser) makeError(useCurrentPos bool) error {
	currentPos := parser.currentTokenPos
	if !useCurrentPos {
		currentPos--
	}
	if currentPos < 0 || currentPos >= len(parser.currentTokens) {
		line := 0
		if n := len(parser.currentTokens); n > 0 {
			line = parser.currentTokens[n-1].line
		}
		return rejectf(line, "syntax error: unexpected end of input")
	}
	currentToken := parser.currentTokens[currentPos]
	return rejectf(currentToken.line, "syntax error near %s", currentToken.content)
}
