package parser

import (
	"fmt"
	"strings"

	"github.com/bplaa-yai/v8m-rb/pkg/color"
	"github.com/bplaa-yai/v8m-rb/pkg/lexer"
)

// SyntaxError is a parsing error with the source range it refers to.
type SyntaxError struct {
	Msg  string
	Span lexer.Span
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at line %d, column %d", e.Msg, e.Span.Start.Line, e.Span.Start.Column)
}

// Format returns the error highlighted for a terminal.
func (e *SyntaxError) Format() string {
	return color.RedText(e.Msg) + " at " + color.YellowText(fmt.Sprintf("Line: %d, Column %d", e.Span.Start.Line, e.Span.Start.Column))
}

// Underline returns the source line holding the error with the erroneous
// range marked below it, ^ at the start and ~ for the rest. An empty range,
// as at end of input, gets a single ^.
func (e *SyntaxError) Underline(source string) string {
	start := e.Span.Start
	lineStart := start.Offset - (start.Column - 1)
	if lineStart < 0 || lineStart > len(source) || start.Offset > len(source) {
		return ""
	}
	line := source[lineStart:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	width := e.Span.Len()
	if e.Span.End.Line != start.Line {
		width = len(line) - (start.Column - 1)
	}
	marker := "^"
	if width > 1 {
		marker += strings.Repeat("~", width-1)
	}
	return line + "\n" + strings.Repeat(" ", start.Column-1) + marker
}

// handleUnexpectedToken is called when no expression can start at the current token
func (p *Parser) handleUnexpectedToken() {
	switch p.currentToken.Type {
	case lexer.EOF:
		p.addError("Unexpected end of input")
	case lexer.RPAREN:
		p.addError("Empty expression")
	case lexer.ILLEGAL:
		p.addError(fmt.Sprintf("Illegal character '%s'", p.currentToken.Lexeme))
	default:
		p.addError(fmt.Sprintf("Unexpected token '%s'", p.currentToken.Type))
	}
}

// handleUnexpectedEndOfInput is called when input remains after a complete expression
func (p *Parser) handleUnexpectedEndOfInput() {
	p.addError(fmt.Sprintf("Unexpected token '%s' at end of input", p.currentToken.Type))
}

// addError records a parsing error at the current token.
func (p *Parser) addError(msg string) {
	p.addErrorAt(p.currentToken, msg)
}

// addErrorAt records a parsing error covering tok.
func (p *Parser) addErrorAt(tok lexer.Token, msg string) {
	p.errors = append(p.errors, &SyntaxError{Msg: msg, Span: tok.Span})
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []*SyntaxError {
	return p.errors
}
