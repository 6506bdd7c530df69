package frames

import (
	"errors"
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

var (
	ErrStackOverflow = errors.New("machine stack exhausted")
	ErrFrameCorrupt  = errors.New("frame chain corrupt")
)

// Stack is the simulated machine stack. It grows towards lower addresses:
// Push decrements sp, the last pushed word is at sp. Addresses are word
// indices into the stack.
type Stack struct {
	slots []tagged.Value
	sp    int
	fp    int
	limit int
}

// Mark captures sp and fp so a protocol can put them back when it unwinds.
type Mark struct {
	SP, FP int
}

// NewStack creates a stack of size words. reserve words at the low end are
// kept below the real stack limit for the protocols' own bookkeeping.
func NewStack(size, reserve int) *Stack {
	if reserve >= size {
		reserve = size / 2
	}
	return &Stack{
		slots: make([]tagged.Value, size),
		sp:    size,
		fp:    size,
		limit: reserve,
	}
}

// Base is the address one past the highest slot; an empty stack has
// sp == fp == Base().
func (s *Stack) Base() int { return len(s.slots) }

// SP returns the stack pointer.
func (s *Stack) SP() int { return s.sp }

// FP returns the frame pointer.
func (s *Stack) FP() int { return s.fp }

// SetSP moves the stack pointer.
func (s *Stack) SetSP(sp int) {
	if sp < 0 || sp > len(s.slots) {
		panic(fmt.Errorf("%w: sp %d outside [0,%d]", ErrFrameCorrupt, sp, len(s.slots)))
	}
	s.sp = sp
}

// Limit returns the real stack limit address.
func (s *Stack) Limit() int { return s.limit }

// Remaining returns how many words may still be pushed before crossing the
// real stack limit. It is negative once the limit has been crossed.
func (s *Stack) Remaining() int { return s.sp - s.limit }

// Mark records the current sp and fp.
func (s *Stack) Mark() Mark { return Mark{SP: s.sp, FP: s.fp} }

// Restore resets sp and fp to a mark.
func (s *Stack) Restore(m Mark) {
	s.SetSP(m.SP)
	s.fp = m.FP
}

// Push pushes one word.
func (s *Stack) Push(v tagged.Value) {
	if s.sp == 0 {
		panic(ErrStackOverflow)
	}
	s.sp--
	s.slots[s.sp] = v
}

// PushAll pushes words in order, so the last one ends up at sp.
func (s *Stack) PushAll(vs ...tagged.Value) {
	for _, v := range vs {
		s.Push(v)
	}
}

// Pop removes and returns the word at sp.
func (s *Stack) Pop() tagged.Value {
	if s.sp >= len(s.slots) {
		panic(fmt.Errorf("%w: pop from empty stack", ErrFrameCorrupt))
	}
	v := s.slots[s.sp]
	s.sp++
	return v
}

// Drop discards n words.
func (s *Stack) Drop(n int) {
	s.SetSP(s.sp + n)
}

// Peek returns the word i slots above sp.
func (s *Stack) Peek(i int) tagged.Value {
	return s.At(s.sp + i)
}

// At reads the word at addr.
func (s *Stack) At(addr int) tagged.Value {
	if addr < s.sp || addr >= len(s.slots) {
		panic(fmt.Errorf("%w: read at %d outside live stack [%d,%d)", ErrFrameCorrupt, addr, s.sp, len(s.slots)))
	}
	return s.slots[addr]
}

// SetAt writes the word at addr.
func (s *Stack) SetAt(addr int, v tagged.Value) {
	if addr < s.sp || addr >= len(s.slots) {
		panic(fmt.Errorf("%w: write at %d outside live stack [%d,%d)", ErrFrameCorrupt, addr, s.sp, len(s.slots)))
	}
	s.slots[addr] = v
}

// Words returns a copy of the live stack from sp upwards.
func (s *Stack) Words() []tagged.Value {
	return append([]tagged.Value(nil), s.slots[s.sp:]...)
}
