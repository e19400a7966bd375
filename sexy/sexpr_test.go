package sexy

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "hello"},
		{"test_var", "test_var"},
		{"func-name", "func-name"},
		{"StackAlloc", "StackAlloc"},
		{"_start", "_start"},
		{"+", "+"},
		{"-", "-"},
	}

	for _, test := range tests {
		result, err := Parse(test.input)
		be.Err(t, err, nil)

		be.Equal(t, result.Type, NodeSymbol)
		be.Equal(t, result.Text, test.expected)
		be.Equal(t, result.String(), test.expected)
	}
}

func TestParseString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		output   string
	}{
		{`"hello"`, "hello", `"hello"`},
		{`"hello world"`, "hello world", `"hello world"`},
		{`""`, "", `""`},
		{`"test\"quote"`, `test"quote`, `"test\"quote"`},
		{`"test\\backslash"`, `test\backslash`, `"test\\backslash"`},
	}

	for _, test := range tests {
		result, err := Parse(test.input)
		be.Err(t, err, nil)

		be.Equal(t, result.Type, NodeString)
		be.Equal(t, result.Text, test.expected)
		be.Equal(t, result.String(), test.output)
	}
}

func TestParseStringNewlineEscape(t *testing.T) {
	result, err := Parse(`"a\nb"`)
	be.Err(t, err, nil)
	be.Equal(t, result.Text, "a\nb")
}

func TestStringEscapesReadBack(t *testing.T) {
	node := NewString("line\n\tindented \"q\" \\")
	be.Equal(t, node.String(), `"line\n\tindented \"q\" \\"`)
	be.True(t, !strings.Contains(node.String(), "\n"))

	parsed, err := Parse(node.String())
	be.Err(t, err, nil)
	be.Equal(t, parsed.Text, node.Text)
}

func TestParseInteger(t *testing.T) {
	for _, input := range []string{"42", "0", "-123", "+456"} {
		result, err := Parse(input)
		be.Err(t, err, nil)

		be.Equal(t, result.Type, NodeInteger)
		be.Equal(t, result.Text, input)
		be.Equal(t, result.String(), input)
	}
}

func TestParseEllipsis(t *testing.T) {
	result, err := Parse("...")
	be.Err(t, err, nil)

	be.Equal(t, result.Type, NodeEllipsis)
	be.Equal(t, result.String(), "...")
}

func TestParseList(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"()", "()"},
		{"(hello)", "(hello)"},
		{"(1 2 3)", "(1 2 3)"},
		{`(fn "main" 3 0 0 0 Ret)`, `(fn "main" 3 0 0 0 Ret)`},
		{"(nested (list here))", "(nested (list here))"},
		{"(  spaced\n  out  )", "(spaced out)"},
		{"(a ; comment\n b)", "(a b)"},
	}

	for _, test := range tests {
		result, err := Parse(test.input)
		be.Err(t, err, nil)

		be.Equal(t, result.Type, NodeList)
		be.Equal(t, result.String(), test.expected)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
	}{
		{"(unclosed", "expected ')'"},
		{")", "unexpected token"},
		{"a b", "expected EOF"},
		{`"unterminated`, "unterminated string"},
		{"(a . b)", "unexpected character '.'"},
		{"[1]", "unexpected character '['"},
		{`"bad\q"`, "invalid escape sequence"},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			_, err := Parse(test.input)
			be.True(t, err != nil)
			be.True(t, strings.Contains(err.Error(), test.message))
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		actual  string
		want    bool
	}{
		{"x", "x", true},
		{"x", "y", false},
		{"1", "1", true},
		{"1", `"1"`, false},
		{"...", "(anything at all)", true},
		{"(a b)", "(a b)", true},
		{"(a b)", "(a b c)", false},
		{"(a ...)", "(a)", true},
		{"(a ...)", "(a b c)", true},
		{"(... c)", "(a b c)", true},
		{"(... b ...)", "(a b c)", true},
		{"(... d ...)", "(a b c)", false},
		{"(a ... (Br -3) ...)", "(a x (Br -3) y)", true},
		{"(a ... (Br -3) ...)", "(a x (Br 3) y)", false},
		{"((... 2) 3)", "((1 2) 3)", true},
		{"(a)", "a", false},
	}

	for _, test := range tests {
		t.Run(test.pattern+" ~ "+test.actual, func(t *testing.T) {
			pattern, err := Parse(test.pattern)
			be.Err(t, err, nil)
			actual, err := Parse(test.actual)
			be.Err(t, err, nil)

			be.Equal(t, Match(pattern, actual), test.want)
			be.Equal(t, Mismatch(pattern, actual) == "", test.want)
		})
	}
}

func TestMismatchNamesPath(t *testing.T) {
	pattern, err := Parse("(fn (Push 1) Ret)")
	be.Err(t, err, nil)
	actual, err := Parse("(fn (Push 2) Ret)")
	be.Err(t, err, nil)

	msg := Mismatch(pattern, actual)
	be.True(t, strings.Contains(msg, "root[1][1]"))
	be.True(t, strings.Contains(msg, "expected 1, got 2"))
}

func TestNodeConstructors(t *testing.T) {
	node := NewList([]*Node{NewSymbol("name"), NewString("putint"), NewInteger("3"), NewEllipsis()})
	be.Equal(t, node.String(), `(name "putint" 3 ...)`)
	be.True(t, !node.IsAtom())
	be.True(t, node.Items[0].IsAtom())
}
