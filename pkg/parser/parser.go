package parser

import (
	"errors"
	"strconv"

	"github.com/bplaa-yai/v8m-rb/pkg/lexer"
)

// Binding powers, loosest first. All binary operators are left associative.
var precedence = map[lexer.TokenType]int{
	lexer.OR:    1,
	lexer.XOR:   2,
	lexer.AND:   3,
	lexer.SHL:   4,
	lexer.SAR:   4,
	lexer.SHR:   4,
	lexer.PLUS:  5,
	lexer.MINUS: 5,
	lexer.MULT:  6,
	lexer.DIV:   6,
	lexer.MOD:   6,
}

type Parser struct {
	lexer        *lexer.Lexer // lexer instance
	currentToken lexer.Token  // current token
	errors       []*SyntaxError
}

// NewParser creates a new parser instance
func NewParser(l *lexer.Lexer) *Parser {
	p := &Parser{lexer: l}

	// Initialize current token
	p.nextToken()

	return p
}

// Parse parses a single expression covering the whole input. It returns nil
// when the input has a syntax error.
func (p *Parser) Parse() Node {
	n := p.expression(1)
	if n == nil {
		return nil
	}
	if p.currentToken.Type != lexer.EOF {
		p.handleUnexpectedEndOfInput()
		return nil
	}
	return n
}

// expression parses operands joined by operators binding at least as
// tightly as minPrec.
func (p *Parser) expression(minPrec int) Node {
	left := p.unary()
	for left != nil {
		prec, ok := precedence[p.currentToken.Type]
		if !ok || prec < minPrec {
			return left
		}
		op := p.currentToken
		p.nextToken()
		right := p.expression(prec + 1)
		if right == nil {
			return nil
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return nil
}

func (p *Parser) unary() Node {
	if p.currentToken.Type != lexer.MINUS {
		return p.primary()
	}
	op := p.currentToken
	p.nextToken()
	operand := p.unary()
	if operand == nil {
		return nil
	}
	return &Unary{Op: op, Operand: operand}
}

func (p *Parser) primary() Node {
	tok := p.currentToken
	switch tok.Type {
	case lexer.NUM:
		v, err := parseNumber(tok.Literal)
		if err != nil {
			p.addErrorAt(tok, "Malformed number '"+tok.Lexeme+"'")
			return nil
		}
		p.nextToken()
		return &Number{Token: tok, Value: v}

	case lexer.TRUE, lexer.FALSE, lexer.NULL, lexer.UNDEFINED:
		p.nextToken()
		return &Literal{Token: tok}

	case lexer.LPAREN:
		p.nextToken()
		n := p.expression(1)
		if n == nil {
			return nil
		}
		if !p.expect(lexer.RPAREN, "Missing closing parenthesis") {
			return nil
		}
		return n

	case lexer.ID:
		p.nextToken()
		if p.currentToken.Type != lexer.LPAREN {
			p.addErrorAt(tok, "Unknown identifier '"+tok.Lexeme+"'")
			return nil
		}
		return p.call(tok)
	}

	p.handleUnexpectedToken()
	return nil
}

func (p *Parser) call(callee lexer.Token) Node {
	p.nextToken()
	c := &Call{Callee: callee}
	if p.currentToken.Type == lexer.RPAREN {
		c.Rparen = p.currentToken
		p.nextToken()
		return c
	}
	for {
		arg := p.expression(1)
		if arg == nil {
			return nil
		}
		c.Args = append(c.Args, arg)
		if p.currentToken.Type != lexer.COMMA {
			break
		}
		p.nextToken()
	}
	c.Rparen = p.currentToken
	if !p.expect(lexer.RPAREN, "Missing closing parenthesis") {
		return nil
	}
	return c
}

func (p *Parser) expect(t lexer.TokenType, msg string) bool {
	if p.currentToken.Type != t {
		p.addError(msg)
		return false
	}
	p.nextToken()
	return true
}

// nextToken advances to the next token from the lexer
func (p *Parser) nextToken() {
	p.currentToken = p.lexer.NextToken()
}

// parseNumber reads a number literal. The lexer has already converted hex
// literals to decimal. Out of range values round to infinity or zero.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	return v, nil
}
