package main

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a compilation failure.
type ErrorKind string

const (
	// Tokenize errors
	ErrInvalidNumber         ErrorKind = "InvalidNumber"
	ErrIntegerOverflow       ErrorKind = "IntegerOverflow"
	ErrInvalidEscape         ErrorKind = "InvalidEscape"
	ErrUnterminatedLiteral   ErrorKind = "UnterminatedLiteral"
	ErrUnrecognizedCharacter ErrorKind = "UnrecognizedCharacter"

	ErrExpectedToken ErrorKind = "ExpectedToken"

	// Analysis errors
	ErrDuplicateDeclaration     ErrorKind = "DuplicateDeclaration"
	ErrNotDeclared              ErrorKind = "NotDeclared"
	ErrNotInitialized           ErrorKind = "NotInitialized"
	ErrAssignToConstant         ErrorKind = "AssignToConstant"
	ErrTypeMismatch             ErrorKind = "TypeMismatch"
	ErrNoMainFunction           ErrorKind = "NoMainFunction"
	ErrInvalidPrimaryExpression ErrorKind = "InvalidPrimaryExpression"
	ErrArgumentCount            ErrorKind = "ArgumentCount"
	ErrBreakOutsideLoop         ErrorKind = "BreakOutsideLoop"
)

// IsTokenize reports whether the kind is raised by the lexer.
func (k ErrorKind) IsTokenize() bool {
	switch k {
	case ErrInvalidNumber, ErrIntegerOverflow, ErrInvalidEscape, ErrUnterminatedLiteral, ErrUnrecognizedCharacter:
		return true
	}
	return false
}

// CompileError is the single error type produced by the lexer, pre-scanner and
// analyser. Every compilation stops at the first one.
type CompileError struct {
	Kind   ErrorKind
	Pos    Pos
	Detail string

	// ExpectedToken only
	Expected []TokenType
	Found    TokenType
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Pos, e.Kind)
	if e.Kind == ErrExpectedToken {
		names := make([]string, len(e.Expected))
		for i, tt := range e.Expected {
			names[i] = string(tt)
		}
		fmt.Fprintf(&sb, ": expected %s, found %s", strings.Join(names, " or "), e.Found)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func newError(kind ErrorKind, pos Pos, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Pos: pos, Detail: fmt.Sprintf(format, args...)}
}

func expectedError(found Token, expected ...TokenType) *CompileError {
	return &CompileError{Kind: ErrExpectedToken, Pos: found.Start, Expected: expected, Found: found.Type}
}
