package lexer

import "fmt"

// Position is a point in the source. Line and Column count from 1, Column
// in bytes; Offset is the byte offset from the start of the input.
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is the source range of a token or expression. End is exclusive.
type Span struct {
	Start, End Position
}

// To returns the span from the start of s to the end of other.
func (s Span) To(other Span) Span {
	return Span{Start: s.Start, End: other.End}
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End.Offset - s.Start.Offset }

func (s Span) String() string {
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%d:%d-%d", s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}
