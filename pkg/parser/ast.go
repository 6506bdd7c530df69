package parser

import (
	"fmt"
	"strings"

	"github.com/bplaa-yai/v8m-rb/pkg/lexer"
)

// Node is an expression.
type Node interface {
	Span() lexer.Span
	String() string
}

// Number is a numeric literal.
type Number struct {
	Token lexer.Token
	Value float64
}

// Literal is one of true, false, null and undefined.
type Literal struct {
	Token lexer.Token
}

// Unary is a negation.
type Unary struct {
	Op      lexer.Token
	Operand Node
}

// Binary is an arithmetic, bitwise or shift operation.
type Binary struct {
	Op          lexer.Token
	Left, Right Node
}

// Call is a call of a named native.
type Call struct {
	Callee lexer.Token
	Args   []Node
	Rparen lexer.Token
}

func (n *Number) Span() lexer.Span  { return n.Token.Span }
func (n *Literal) Span() lexer.Span { return n.Token.Span }
func (n *Unary) Span() lexer.Span   { return n.Op.Span.To(n.Operand.Span()) }
func (n *Binary) Span() lexer.Span  { return n.Left.Span().To(n.Right.Span()) }
func (n *Call) Span() lexer.Span    { return n.Callee.Span.To(n.Rparen.Span) }

func (n *Number) String() string  { return n.Token.Lexeme }
func (n *Literal) String() string { return n.Token.Lexeme }
func (n *Unary) String() string   { return fmt.Sprintf("(%s%s)", n.Op.Lexeme, n.Operand) }
func (n *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op.Lexeme, n.Right)
}

func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", n.Callee.Lexeme, strings.Join(args, ", "))
}

// IsConstant reports whether n is a literal.
func IsConstant(n Node) bool {
	switch n.(type) {
	case *Number, *Literal:
		return true
	}
	return false
}
