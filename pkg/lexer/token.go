package lexer

import (
	"fmt"
)

type TokenType int
type TokenCategory int

type Token struct {
	Type    TokenType // Type of the token
	Lexeme  string    // Source text of the token
	Literal string    // Canonical value for numbers and keywords, empty otherwise
	Span    Span      // Where the token is in the source
}

// Pos returns where the token starts.
func (t Token) Pos() Position { return t.Span.Start }

const (
	NONE TokenCategory = iota
	KEYWORD
	IDENTIFIER
	LITERAL
	OPERATOR
	DELIMITER
)

const (
	EOF TokenType = iota // End of input

	TRUE      // true
	FALSE     // false
	NULL      // null
	UNDEFINED // undefined

	ID  // id (identifier)
	NUM // num (number)

	PLUS  // +
	MINUS // -
	MULT  // *
	DIV   // /
	MOD   // %
	OR    // |
	AND   // &
	XOR   // ^
	SHL   // <<
	SAR   // >>
	SHR   // >>>

	COMMA  // ,
	LPAREN // (
	RPAREN // )

	ILLEGAL // illegal token
)

var Keywords = map[string]TokenType{
	"true":      TRUE,
	"false":     FALSE,
	"null":      NULL,
	"undefined": UNDEFINED,
}

// operators is ordered so that a longer operator is tried before its
// prefixes.
var operators = []struct {
	text string
	typ  TokenType
}{
	{">>>", SHR},
	{">>", SAR},
	{"<<", SHL},
	{"+", PLUS},
	{"-", MINUS},
	{"*", MULT},
	{"/", DIV},
	{"%", MOD},
	{"|", OR},
	{"&", AND},
	{"^", XOR},
	{",", COMMA},
	{"(", LPAREN},
	{")", RPAREN},
}

var tokenNames = map[TokenType]string{
	ID:      "id",
	NUM:     "num",
	EOF:     "$",
	ILLEGAL: "illegal",
}

func init() {
	for word, t := range Keywords {
		tokenNames[t] = word
	}
	for _, op := range operators {
		tokenNames[op.typ] = op.text
	}
}

func (t Token) String() string {
	if t.Literal == "" || t.Literal == t.Lexeme {
		return fmt.Sprintf("%s %q @%s", t.Type, t.Lexeme, t.Span)
	}
	return fmt.Sprintf("%s %q (%s) @%s", t.Type, t.Lexeme, t.Literal, t.Span)
}

func (t TokenType) String() string {
	if str, ok := tokenNames[t]; ok {
		return str
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// GetCategory returns the category of the token
func (t TokenType) GetCategory() TokenCategory {
	switch t {
	case TRUE, FALSE, NULL, UNDEFINED:
		return KEYWORD
	case ID:
		return IDENTIFIER
	case NUM:
		return LITERAL
	case PLUS, MINUS, MULT, DIV, MOD, OR, AND, XOR, SHL, SAR, SHR:
		return OPERATOR
	case COMMA, LPAREN, RPAREN:
		return DELIMITER
	default:
		return NONE
	}
}

// IsKeyword checks if the given identifier is a keyword and returns its TokenType if it is
func IsKeyword(identifier string) (TokenType, bool) {
	tokenType, ok := Keywords[identifier]
	return tokenType, ok
}
