package parser_test

import (
	"strings"
	"testing"

	"github.com/bplaa-yai/v8m-rb/pkg/lexer"
	"github.com/bplaa-yai/v8m-rb/pkg/parser"
)

func parse(t *testing.T, src string) parser.Node {
	t.Helper()
	p := parser.NewParser(lexer.NewLexer(src))
	n := p.Parse()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("%q: %v", src, errs[0])
	}
	return n
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"1 | 2 ^ 3 & 4", "(1 | (2 ^ (3 & 4)))"},
		{"1 << 2 + 3", "(1 << (2 + 3))"},
		{"8 >>> 1 >> 2", "((8 >>> 1) >> 2)"},
		{"-x_y(1)", "(-x_y(1))"},
		{"2 * -3", "(2 * -3)"},
		{"sin(1, 2 % 3)", "sin(1, (2 % 3))"},
		{"f()", "f()"},
		{"true + null", "(true + null)"},
	}

	for _, test := range tests {
		if got := parse(t, test.input).String(); got != test.expected {
			t.Errorf("%q parsed as %s, want %s", test.input, got, test.expected)
		}
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"42", 42},
		{"-7", -7},
		{"0.5", 0.5},
		{"0x10", 16},
		{"-0x10", -16},
		{"2.5e3", 2500},
	}

	for _, test := range tests {
		n, ok := parse(t, test.input).(*parser.Number)
		if !ok {
			t.Errorf("%q is not a number literal", test.input)
			continue
		}
		if n.Value != test.expected {
			t.Errorf("%q = %v, want %v", test.input, n.Value, test.expected)
		}
	}
}

func TestConstants(t *testing.T) {
	b := parse(t, "(1 + 2) * 3").(*parser.Binary)
	if parser.IsConstant(b.Left) || !parser.IsConstant(b.Right) {
		t.Errorf("left %s right %s", b.Left, b.Right)
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
	}{
		{"", "Unexpected end of input"},
		{"1 +", "Unexpected end of input"},
		{"(1 + 2", "Missing closing parenthesis"},
		{"()", "Empty expression"},
		{"1 2", "at end of input"},
		{"x + 1", "Unknown identifier 'x'"},
		{"1 $ 2", "at end of input"},
		{"$", "Illegal character '$'"},
		{"sin(1,)", "Empty expression"},
	}

	for _, test := range tests {
		p := parser.NewParser(lexer.NewLexer(test.input))
		if n := p.Parse(); n != nil {
			t.Errorf("%q parsed as %s", test.input, n)
			continue
		}
		errs := p.Errors()
		if len(errs) == 0 {
			t.Errorf("%q: no error recorded", test.input)
			continue
		}
		if !strings.Contains(errs[0].Error(), test.message) {
			t.Errorf("%q: %v, want %q", test.input, errs[0], test.message)
		}
	}
}

func TestNodeSpans(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"42", "1:1-3"},
		{"1 + 2 * 3", "1:1-10"},
		{"(1 + 2) * 3", "1:2-12"},
		{"- (7)", "1:1-5"},
		{"sin(1, 2)", "1:1-10"},
		{"f()", "1:1-4"},
		{"1 +\n  0x10", "1:1-2:7"},
	}

	for _, test := range tests {
		if got := parse(t, test.input).Span().String(); got != test.expected {
			t.Errorf("%q spans %s, want %s", test.input, got, test.expected)
		}
	}
}

func TestUnderline(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"x + 1", "x + 1\n^"},
		{"12 + 3 4567", "12 + 3 4567\n       ^~~~"},
		{"1 + (2 * 3", "1 + (2 * 3\n          ^"},
		{"1 +\n  foo + 2", "  foo + 2\n  ^~~"},
		{"2 * >>>", "2 * >>>\n    ^~~"},
	}

	for _, test := range tests {
		p := parser.NewParser(lexer.NewLexer(test.input))
		if n := p.Parse(); n != nil {
			t.Errorf("%q parsed as %s", test.input, n)
			continue
		}
		errs := p.Errors()
		if len(errs) == 0 {
			t.Errorf("%q: no error recorded", test.input)
			continue
		}
		if got := errs[0].Underline(test.input); got != test.expected {
			t.Errorf("%q underlined as\n%s\nwant\n%s", test.input, got, test.expected)
		}
	}
}
