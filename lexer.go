package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"
)

const eof rune = -1

// Lexer turns a character stream into tokens. It reads the input exactly once
// with one rune of lookahead and cannot be rewound; use Tokenize to buffer the
// whole stream when more than one pass is needed.
type Lexer struct {
	in  io.RuneReader
	ch  rune // current lookahead rune, or eof
	pos Pos  // position of ch

	readErr error
	peeked  *Token

	// KeepComments surfaces line comments as COMMENT tokens instead of
	// skipping them.
	KeepComments bool
}

// NewLexer returns a lexer positioned at the first character of r.
func NewLexer(r io.Reader) *Lexer {
	rr, ok := r.(io.RuneReader)
	if !ok {
		rr = bufio.NewReader(r)
	}
	l := &Lexer{in: rr, pos: Pos{Line: 1, Column: 0}}
	l.advance()
	return l
}

// advance consumes the lookahead rune and reads the next one.
func (l *Lexer) advance() rune {
	r := l.ch
	if r == '\n' {
		l.pos.Line++
		l.pos.Column = 1
	} else {
		l.pos.Column++
	}
	next, _, err := l.in.ReadRune()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			l.readErr = err
		}
		next = eof
	}
	l.ch = next
	return r
}

// PeekToken returns the next token without consuming it.
func (l *Lexer) PeekToken() (Token, error) {
	if l.peeked == nil {
		tok, err := l.scan()
		if err != nil {
			return Token{}, err
		}
		l.peeked = &tok
	}
	return *l.peeked, nil
}

// NextToken consumes and returns the next token. At end of input it keeps
// returning EOF.
func (l *Lexer) NextToken() (Token, error) {
	if l.peeked != nil {
		tok := *l.peeked
		l.peeked = nil
		return tok, nil
	}
	return l.scan()
}

func (l *Lexer) scan() (Token, error) {
	for {
		tok, err := l.scanOne()
		if err != nil {
			return Token{}, err
		}
		if tok.Type == COMMENT && !l.KeepComments {
			continue
		}
		return tok, nil
	}
}

func (l *Lexer) scanOne() (Token, error) {
	l.skipWhitespace()
	if l.readErr != nil {
		return Token{}, fmt.Errorf("reading source: %w", l.readErr)
	}

	start := l.pos
	c := l.ch
	switch {
	case c == eof:
		return Token{Type: EOF, Start: start, End: start}, nil
	case isDigit(c):
		return l.scanNumber()
	case isLetter(c):
		return l.scanIdent(), nil
	case c == '"':
		return l.scanString()
	case c == '\'':
		return l.scanChar()
	}
	return l.scanOperator()
}

func (l *Lexer) skipWhitespace() {
	for l.ch != eof && unicode.IsSpace(l.ch) {
		l.advance()
	}
}

func isLetter(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isDigit(c rune) bool {
	return '0' <= c && c <= '9'
}

func (l *Lexer) token(tt TokenType, lit string, start Pos) Token {
	return Token{Type: tt, Literal: lit, Start: start, End: l.pos}
}

func (l *Lexer) scanIdent() Token {
	start := l.pos
	var sb strings.Builder
	for isLetter(l.ch) || unicode.IsDigit(l.ch) {
		sb.WriteRune(l.advance())
	}
	lit := sb.String()
	tt := IDENT
	if kw, ok := keywords[lit]; ok {
		tt = kw
	}
	return l.token(tt, lit, start)
}

func (l *Lexer) readDigits(sb *strings.Builder) {
	for isDigit(l.ch) {
		sb.WriteRune(l.advance())
	}
}

// scanNumber reads an unsigned integer or a double literal.
func (l *Lexer) scanNumber() (Token, error) {
	start := l.pos
	var sb strings.Builder
	l.readDigits(&sb)

	if l.ch != '.' {
		lit := sb.String()
		digits := strings.TrimLeft(lit, "0")
		if digits == "" {
			digits = "0"
		}
		v, err := strconv.ParseInt(digits, 10, 32)
		if err != nil {
			return Token{}, newError(ErrIntegerOverflow, start, "integer literal %s does not fit in 32 bits", lit)
		}
		tok := l.token(UINT_LITERAL, lit, start)
		tok.Int = v
		return tok, nil
	}

	sb.WriteRune(l.advance()) // '.'
	if !isDigit(l.ch) {
		return Token{}, newError(ErrInvalidNumber, l.pos, "expected digit after '.'")
	}
	l.readDigits(&sb)
	if l.ch == 'e' || l.ch == 'E' {
		sb.WriteRune(l.advance())
		if l.ch == '+' || l.ch == '-' {
			sb.WriteRune(l.advance())
		}
		if !isDigit(l.ch) {
			return Token{}, newError(ErrInvalidNumber, l.pos, "expected digit in exponent")
		}
		l.readDigits(&sb)
	}

	lit := sb.String()
	normalized := strings.TrimLeft(lit, "0")
	if strings.HasPrefix(normalized, ".") {
		normalized = "0" + normalized
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil && math.IsInf(v, 0) {
		return Token{}, newError(ErrInvalidNumber, start, "double literal %s is out of range", lit)
	}
	tok := l.token(DOUBLE_LITERAL, lit, start)
	tok.Double = v
	return tok, nil
}

// scanEscape decodes the character after a backslash.
func (l *Lexer) scanEscape() (rune, error) {
	pos := l.pos
	switch c := l.advance(); c {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case '\\', '"', '\'':
		return c, nil
	case eof:
		return 0, newError(ErrUnterminatedLiteral, pos, "end of input in escape sequence")
	default:
		return 0, newError(ErrInvalidEscape, pos, "invalid escape sequence \\%c", c)
	}
}

func (l *Lexer) scanChar() (Token, error) {
	start := l.pos
	l.advance() // opening '

	var c rune
	switch l.ch {
	case eof:
		return Token{}, newError(ErrUnterminatedLiteral, start, "unterminated char literal")
	case '\\':
		l.advance()
		var err error
		if c, err = l.scanEscape(); err != nil {
			return Token{}, err
		}
	default:
		c = l.advance()
	}

	if l.ch != '\'' {
		return Token{}, newError(ErrUnterminatedLiteral, l.pos, "expected closing ' in char literal")
	}
	l.advance()
	tok := l.token(CHAR_LITERAL, "'"+string(c)+"'", start)
	tok.Char = c
	return tok, nil
}

func (l *Lexer) scanString() (Token, error) {
	start := l.pos
	l.advance() // opening "

	var sb strings.Builder
	for l.ch != '"' {
		switch l.ch {
		case eof:
			return Token{}, newError(ErrUnterminatedLiteral, start, "unterminated string literal")
		case '\\':
			l.advance()
			c, err := l.scanEscape()
			if err != nil {
				return Token{}, err
			}
			sb.WriteRune(c)
		default:
			sb.WriteRune(l.advance())
		}
	}
	l.advance() // closing "

	s := sb.String()
	tok := l.token(STRING_LITERAL, strconv.Quote(s), start)
	tok.Str = s
	return tok, nil
}

// scanComment reads a line comment. The leading "//" is already consumed.
func (l *Lexer) scanComment(start Pos) Token {
	var sb strings.Builder
	for l.ch != '\n' && l.ch != eof {
		sb.WriteRune(l.advance())
	}
	tok := l.token(COMMENT, "//"+sb.String(), start)
	tok.Str = sb.String()
	return tok
}

func (l *Lexer) scanOperator() (Token, error) {
	start := l.pos
	c := l.advance()

	// two-character operators win over their one-character prefix
	twoChar := func(next rune, long, short TokenType) Token {
		if l.ch == next {
			l.advance()
			return l.token(long, string(c)+string(next), start)
		}
		return l.token(short, string(c), start)
	}

	switch c {
	case '+':
		return l.token(PLUS, "+", start), nil
	case '-':
		return twoChar('>', ARROW, MINUS), nil
	case '*':
		return l.token(MUL, "*", start), nil
	case '/':
		if l.ch == '/' {
			l.advance()
			return l.scanComment(start), nil
		}
		return l.token(DIV, "/", start), nil
	case '=':
		return twoChar('=', EQ, ASSIGN), nil
	case '<':
		return twoChar('=', LE, LT), nil
	case '>':
		return twoChar('=', GE, GT), nil
	case '!':
		if l.ch == '=' {
			l.advance()
			return l.token(NEQ, "!=", start), nil
		}
	case '(':
		return l.token(L_PAREN, "(", start), nil
	case ')':
		return l.token(R_PAREN, ")", start), nil
	case '{':
		return l.token(L_BRACE, "{", start), nil
	case '}':
		return l.token(R_BRACE, "}", start), nil
	case ',':
		return l.token(COMMA, ",", start), nil
	case ':':
		return l.token(COLON, ":", start), nil
	case ';':
		return l.token(SEMICOLON, ";", start), nil
	}
	return Token{}, newError(ErrUnrecognizedCharacter, start, "unexpected character %q", c)
}

// Tokenize drains a fresh lexer over r. The returned slice always ends with
// exactly one EOF token.
func Tokenize(r io.Reader, keepComments bool) ([]Token, error) {
	l := NewLexer(r)
	l.KeepComments = keepComments
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
