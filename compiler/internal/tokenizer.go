package internal

import (
	"bufio"
	"fmt"
	"io"

	"github.com/xiaobogaga/minicc/util"
)

// A small Tokenizer for the C subset accepted by the driver.

// The subset has those elements:
// * KeyWord: int, return.
// * Symbol: {, }, (, ), ;, -.
// * Constant: decimal integer.
// * Identifier: letters, digits, underscore, not starting with a digit.
// * Comment: /**/, //.

type TokenType int

const (
	IntTP              TokenType = iota // int
	ReturnTP                            // return
	LeftBraceTP                         // {
	RightBraceTP                        // }
	LeftParenthesesTP                   // (
	RightParenthesesTP                  // )
	SemiColonTP                         // ;
	MinusTP                             // -
	IntegerTP                           // 42
	IdentifierTP                        // main
)

var tokenTypeNames = map[TokenType]string{
	IntTP:              "int",
	ReturnTP:           "return",
	LeftBraceTP:        "{",
	RightBraceTP:       "}",
	LeftParenthesesTP:  "(",
	RightParenthesesTP: ")",
	SemiColonTP:        ";",
	MinusTP:            "-",
	IntegerTP:          "integer",
	IdentifierTP:       "identifier",
}

func (tp TokenType) String() string {
	if name, ok := tokenTypeNames[tp]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(tp))
}

// keyWordTokenTPMap is the mapping from identifier to the corresponding TokenTP.
var keyWordTokenTPMap = map[string]TokenType{
	"int":    IntTP,
	"return": ReturnTP,
}

var simpleSymbolTokenTPMap = map[byte]TokenType{
	'{': LeftBraceTP,
	'}': RightBraceTP,
	'(': LeftParenthesesTP,
	')': RightParenthesesTP,
	';': SemiColonTP,
	'-': MinusTP,
}

type Token struct {
	content  string
	line     int
	startPos int
	endPos   int
	tp       TokenType
}

func (t *Token) Content() string { return t.content }

func (t *Token) Line() int { return t.line }

func (t *Token) Type() TokenType { return t.tp }

type Tokenizer struct {
	currentPos  int
	currentLine int
	inComment   bool
	// commentLine is where the open block comment started.
	commentLine int
	tokens      []*Token
}

// Tokenize reads all of rd and splits it into tokens. Comments are dropped.
// Any byte outside the subset's alphabet is an error, never a panic.
func (tokenizer *Tokenizer) Tokenize(rd io.Reader) ([]*Token, error) {
	bfReader := bufio.NewReader(rd)
	tokenizer.currentLine = 0
	for {
		line, err := bfReader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if len(line) > 0 {
			tokenizer.currentLine++
			tokenizer.currentPos = 0
			if lineErr := tokenizer.parseLine(line); lineErr != nil {
				return nil, lineErr
			}
		}
		if err == io.EOF {
			break
		}
	}
	if tokenizer.inComment {
		return nil, tokenizer.makeError("/*", tokenizer.commentLine, "unterminated comment")
	}
	return tokenizer.tokens, nil
}

func (tokenizer *Tokenizer) parseLine(line []byte) error {
	for {
		if tokenizer.inComment {
			if !tokenizer.skipToCommentEnd(line) {
				return nil
			}
		}
		tokenizer.trimSpace(line)
		if !tokenizer.hasRemainCharacters(line) {
			return nil
		}
		token, err := tokenizer.getNextToken(line)
		if err != nil {
			return err
		}
		// nil token with nil error means a comment was consumed.
		if token != nil {
			tokenizer.tokens = append(tokenizer.tokens, token)
		}
	}
}

// getNextToken returns the token starting at currentPos. line must have
// remaining non-space characters.
func (tokenizer *Tokenizer) getNextToken(line []byte) (*Token, error) {
	b := line[tokenizer.currentPos]
	switch {
	case b == '/':
		return nil, tokenizer.tokenComment(line)
	case util.IsDigit(b):
		return tokenizer.tokenNumber(line)
	case util.IsIdentStart(b):
		return tokenizer.toKeywordOrIdentifier(line), nil
	}
	if tp, ok := simpleSymbolTokenTPMap[b]; ok {
		return tokenizer.tokenSimpleSymbol(line, tp), nil
	}
	return nil, tokenizer.makeError(fmt.Sprintf("%q", b), tokenizer.currentLine, "unexpected character")
}

// trimSpace steps forward through line and skips all continuous space.
func (tokenizer *Tokenizer) trimSpace(line []byte) {
	for tokenizer.currentPos < len(line) && util.IsSpace(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
}

func (tokenizer *Tokenizer) hasRemainCharacters(line []byte) bool {
	return tokenizer.currentPos < len(line)
}

func (tokenizer *Tokenizer) tokenSimpleSymbol(line []byte, tp TokenType) *Token {
	token := &Token{
		content:  string(line[tokenizer.currentPos]),
		line:     tokenizer.currentLine,
		tp:       tp,
		startPos: tokenizer.currentPos,
		endPos:   tokenizer.currentPos + 1,
	}
	tokenizer.currentPos++
	return token
}

// tokenComment consumes a // or /* comment. Division is not part of the
// subset, so a lone / is an error.
func (tokenizer *Tokenizer) tokenComment(line []byte) error {
	next := tokenizer.currentPos + 1
	if next >= len(line) || (line[next] != '/' && line[next] != '*') {
		return tokenizer.makeError("/", tokenizer.currentLine, "unexpected character")
	}
	if line[next] == '/' {
		tokenizer.currentPos = len(line)
		return nil
	}
	tokenizer.currentPos += 2
	tokenizer.inComment = true
	tokenizer.commentLine = tokenizer.currentLine
	return nil
}

// skipToCommentEnd moves past the closing */ of an open block comment.
// It reports false when the comment continues on the next line.
func (tokenizer *Tokenizer) skipToCommentEnd(line []byte) bool {
	for tokenizer.currentPos < len(line)-1 {
		if line[tokenizer.currentPos] == '*' && line[tokenizer.currentPos+1] == '/' {
			tokenizer.currentPos += 2
			tokenizer.inComment = false
			return true
		}
		tokenizer.currentPos++
	}
	tokenizer.currentPos = len(line)
	return false
}

func (tokenizer *Tokenizer) tokenNumber(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	for tokenizer.currentPos < len(line) && util.IsDigit(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	// 2x is neither a number nor an identifier.
	if tokenizer.currentPos < len(line) && util.IsIdentStart(line[tokenizer.currentPos]) {
		for tokenizer.currentPos < len(line) && util.IsIdentPart(line[tokenizer.currentPos]) {
			tokenizer.currentPos++
		}
		return nil, tokenizer.makeError(string(line[startPos:tokenizer.currentPos]), tokenizer.currentLine,
			"incorrect integer format")
	}
	return &Token{
		content:  string(line[startPos:tokenizer.currentPos]),
		line:     tokenizer.currentLine,
		tp:       IntegerTP,
		startPos: startPos,
		endPos:   tokenizer.currentPos,
	}, nil
}

func (tokenizer *Tokenizer) toKeywordOrIdentifier(line []byte) *Token {
	startPos := tokenizer.currentPos
	for tokenizer.currentPos < len(line) && util.IsIdentPart(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	content := string(line[startPos:tokenizer.currentPos])
	tp, isKeyWord := keyWordTokenTPMap[content]
	if !isKeyWord {
		tp = IdentifierTP
	}
	return &Token{
		content:  content,
		line:     tokenizer.currentLine,
		tp:       tp,
		startPos: startPos,
		endPos:   tokenizer.currentPos,
	}
}

func (tokenizer *Tokenizer) makeError(near string, line int, msg string) error {
	return &RejectionError{
		Reason: fmt.Sprintf("tokenizer error near %s: %s", near, msg),
		Line:   line,
	}
}

func (tokenizer *Tokenizer) Reset() {
	tokenizer.currentPos, tokenizer.currentLine = 0, 0
	tokenizer.inComment, tokenizer.commentLine = false, 0
	tokenizer.tokens = nil
}
