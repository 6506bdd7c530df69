package lexer

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lexer splits an expression into tokens. A minus directly followed by a
// digit is folded into the number when it cannot be a binary operator.
type Lexer struct {
	src       string
	off       int       // next byte to read
	line      int       // current line, from 1
	lineStart int       // offset of the first byte of the current line
	prev      TokenType // type of the last token returned
}

// NewLexer creates a lexer for src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, prev: EOF}
}

// Tokenize returns every token of s up to and including EOF.
func Tokenize(s string) []Token {
	l := NewLexer(s)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks
		}
	}
}

// MatchToken reports the token at the start of s. Leading blanks and
// comments match as EOF with the skipped text as lexeme.
func MatchToken(s string) (TokenType, string, bool) {
	if s == "" {
		return EOF, "", false
	}
	l := NewLexer(s)
	if l.skipBlank(); l.off > 0 {
		return EOF, s[:l.off], true
	}
	tok := l.scan()
	return tok.Type, tok.Lexeme, tok.Type != ILLEGAL
}

// NextToken returns the next token, EOF once the input is exhausted.
func (l *Lexer) NextToken() Token {
	l.skipBlank()
	tok := l.scan()
	l.prev = tok.Type
	return tok
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	saved := *l
	tok := l.NextToken()
	*l = saved
	return tok
}

// HasMore reports whether any input is left, blanks included.
func (l *Lexer) HasMore() bool {
	return l.off < len(l.src)
}

func (l *Lexer) pos() Position {
	return Position{Line: l.line, Column: l.off - l.lineStart + 1, Offset: l.off}
}

func (l *Lexer) token(t TokenType, start Position, literal string) Token {
	return Token{
		Type:    t,
		Lexeme:  l.src[start.Offset:l.off],
		Literal: literal,
		Span:    Span{Start: start, End: l.pos()},
	}
}

// skipBlank skips whitespace and // comments.
func (l *Lexer) skipBlank() {
	for l.off < len(l.src) {
		switch c := l.src[l.off]; {
		case c == '\n':
			l.off++
			l.line++
			l.lineStart = l.off
		case c == ' ' || c == '\t' || c == '\r':
			l.off++
		case strings.HasPrefix(l.src[l.off:], "//"):
			if i := strings.IndexByte(l.src[l.off:], '\n'); i >= 0 {
				l.off += i
			} else {
				l.off = len(l.src)
			}
		default:
			return
		}
	}
}

func (l *Lexer) scan() Token {
	start := l.pos()
	if l.off >= len(l.src) {
		return l.token(EOF, start, "")
	}

	c := l.src[l.off]
	switch {
	case isDigit(c):
		return l.number(start)
	case c == '-' && l.prevAllowsUnary() && l.off+1 < len(l.src) && isDigit(l.src[l.off+1]):
		l.off++
		return l.number(start)
	case isLetter(c):
		for l.off < len(l.src) && (isLetter(l.src[l.off]) || isDigit(l.src[l.off])) {
			l.off++
		}
		word := l.src[start.Offset:l.off]
		if t, ok := IsKeyword(word); ok {
			return l.token(t, start, word)
		}
		return l.token(ID, start, "")
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.off:], op.text) {
			l.off += len(op.text)
			return l.token(op.typ, start, "")
		}
	}

	_, size := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += size
	return l.token(ILLEGAL, start, "")
}

// number scans a decimal or hexadecimal literal; a leading minus has
// already been consumed. The literal is the value in decimal, so hex
// literals need no special handling later.
func (l *Lexer) number(start Position) Token {
	neg := l.src[start.Offset] == '-'
	if rest := l.src[l.off:]; len(rest) > 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X') && isHexDigit(rest[2]) {
		l.off += 2
		v := 0.0
		for l.off < len(l.src) && isHexDigit(l.src[l.off]) {
			v = v*16 + float64(hexValue(l.src[l.off]))
			l.off++
		}
		if neg {
			v = -v
		}
		return l.token(NUM, start, strconv.FormatFloat(v, 'f', -1, 64))
	}

	l.digits()
	if l.peekIs(0, '.') && l.peekDigit(1) {
		l.off++
		l.digits()
	}
	if l.peekIs(0, 'e') || l.peekIs(0, 'E') {
		switch {
		case l.peekDigit(1):
			l.off++
		case (l.peekIs(1, '+') || l.peekIs(1, '-')) && l.peekDigit(2):
			l.off += 2
		}
		l.digits()
	}
	lexeme := l.src[start.Offset:l.off]
	return l.token(NUM, start, lexeme)
}

func (l *Lexer) digits() {
	for l.off < len(l.src) && isDigit(l.src[l.off]) {
		l.off++
	}
}

func (l *Lexer) peekIs(n int, c byte) bool {
	return l.off+n < len(l.src) && l.src[l.off+n] == c
}

func (l *Lexer) peekDigit(n int) bool {
	return l.off+n < len(l.src) && isDigit(l.src[l.off+n])
}

// prevAllowsUnary reports whether a minus here starts an operand: at the
// start of input and after an operator or an opening delimiter.
func (l *Lexer) prevAllowsUnary() bool {
	switch l.prev.GetCategory() {
	case OPERATOR:
		return true
	case DELIMITER:
		return l.prev != RPAREN
	}
	return l.prev == EOF
}

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isLetter(b byte) bool { return b == '_' || (b|0x20) >= 'a' && (b|0x20) <= 'z' }

func isHexDigit(b byte) bool {
	return isDigit(b) || (b|0x20) >= 'a' && (b|0x20) <= 'f'
}

func hexValue(b byte) int {
	if isDigit(b) {
		return int(b - '0')
	}
	return int(b|0x20-'a') + 10
}
