package main

import (
	"fmt"
	"math"
	"strconv"
)

// Pos is a 1-based line/column marker into the source text.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// TokenType is the kind of a token.
type TokenType string

const (
	EOF     TokenType = "EOF"
	IDENT   TokenType = "IDENT"
	COMMENT TokenType = "COMMENT"

	// Keywords
	FN_KW       TokenType = "FN_KW"
	LET_KW      TokenType = "LET_KW"
	CONST_KW    TokenType = "CONST_KW"
	AS_KW       TokenType = "AS_KW"
	WHILE_KW    TokenType = "WHILE_KW"
	IF_KW       TokenType = "IF_KW"
	ELSE_KW     TokenType = "ELSE_KW"
	RETURN_KW   TokenType = "RETURN_KW"
	BREAK_KW    TokenType = "BREAK_KW"
	CONTINUE_KW TokenType = "CONTINUE_KW"

	// TY is a type name: int, double or void.
	TY TokenType = "TY"

	// Literals
	UINT_LITERAL   TokenType = "UINT_LITERAL"
	DOUBLE_LITERAL TokenType = "DOUBLE_LITERAL"
	CHAR_LITERAL   TokenType = "CHAR_LITERAL"
	STRING_LITERAL TokenType = "STRING_LITERAL"

	// Operators
	PLUS   TokenType = "PLUS"   // +
	MINUS  TokenType = "MINUS"  // -
	MUL    TokenType = "MUL"    // *
	DIV    TokenType = "DIV"    // /
	ASSIGN TokenType = "ASSIGN" // =
	EQ     TokenType = "EQ"     // ==
	NEQ    TokenType = "NEQ"    // !=
	LT     TokenType = "LT"     // <
	GT     TokenType = "GT"     // >
	LE     TokenType = "LE"     // <=
	GE     TokenType = "GE"     // >=
	ARROW  TokenType = "ARROW"  // ->

	// Delimiters
	L_PAREN   TokenType = "L_PAREN"
	R_PAREN   TokenType = "R_PAREN"
	L_BRACE   TokenType = "L_BRACE"
	R_BRACE   TokenType = "R_BRACE"
	COMMA     TokenType = "COMMA"
	COLON     TokenType = "COLON"
	SEMICOLON TokenType = "SEMICOLON"
)

// keywords maps reserved words to their token type.
var keywords = map[string]TokenType{
	"fn":       FN_KW,
	"let":      LET_KW,
	"const":    CONST_KW,
	"as":       AS_KW,
	"while":    WHILE_KW,
	"if":       IF_KW,
	"else":     ELSE_KW,
	"return":   RETURN_KW,
	"break":    BREAK_KW,
	"continue": CONTINUE_KW,
	"int":      TY,
	"double":   TY,
	"void":     TY,
}

// Token is a single lexeme. Only the payload field matching Type is set.
type Token struct {
	Type    TokenType
	Literal string // source text (identifier, keyword, operator, or raw literal)

	Int    int64   // UINT_LITERAL
	Double float64 // DOUBLE_LITERAL
	Char   rune    // CHAR_LITERAL
	Str    string  // STRING_LITERAL (escapes decoded), COMMENT

	Start Pos
	End   Pos
}

// DoubleBits returns the IEEE-754 bit pattern of a DOUBLE_LITERAL payload.
func (t Token) DoubleBits() uint64 {
	return math.Float64bits(t.Double)
}

// Value renders the token's payload for the token listing.
func (t Token) Value() string {
	switch t.Type {
	case UINT_LITERAL:
		return strconv.FormatInt(t.Int, 10)
	case DOUBLE_LITERAL:
		return strconv.FormatFloat(t.Double, 'g', -1, 64)
	case CHAR_LITERAL:
		return strconv.QuoteRune(t.Char)
	case STRING_LITERAL:
		return strconv.Quote(t.Str)
	case COMMENT:
		return strconv.Quote(t.Str)
	default:
		return t.Literal
	}
}

func (t Token) String() string {
	return fmt.Sprintf("Line: %d Column: %d Type: %s Value: %s", t.Start.Line, t.Start.Column, t.Type, t.Value())
}

// TokenStream is a read-only cursor over a buffered token slice. Several streams
// may share one slice; none of them modifies it.
type TokenStream struct {
	tokens []Token
	pos    int
}

// NewTokenStream returns a cursor positioned at the first token. The slice must
// end with an EOF token.
func NewTokenStream(tokens []Token) *TokenStream {
	return &TokenStream{tokens: tokens}
}

// Peek returns the current token without consuming it.
func (s *TokenStream) Peek() Token {
	return s.PeekAt(0)
}

// PeekAt returns the token n positions ahead. Past the end it returns EOF.
func (s *TokenStream) PeekAt(n int) Token {
	i := s.pos + n
	if i >= len(s.tokens) {
		return s.tokens[len(s.tokens)-1]
	}
	return s.tokens[i]
}

// Next consumes and returns the current token. EOF is never consumed.
func (s *TokenStream) Next() Token {
	tok := s.Peek()
	if s.pos < len(s.tokens)-1 {
		s.pos++
	}
	return tok
}

// Index returns the buffer index of the current token.
func (s *TokenStream) Index() int {
	return s.pos
}
