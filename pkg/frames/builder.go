package frames

import (
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Enter builds a frame of kind k: it saves the return address and the
// caller's fp, points fp at the saved fp, then pushes the marker and the
// descriptor's fields in order.
func (s *Stack) Enter(k Kind, ra tagged.Value, fields ...tagged.Value) error {
	d, err := Describe(k)
	if err != nil {
		return err
	}
	if len(fields) != len(d.Fields) {
		return fmt.Errorf("%w: %s frame takes %d fields, got %d", ErrFrameCorrupt, k, len(d.Fields), len(fields))
	}
	s.Push(ra)
	s.Push(tagged.FromSmi(int64(s.fp)))
	s.fp = s.sp
	s.Push(k.Marker())
	s.PushAll(fields...)
	return nil
}

// Leave tears down the current frame, which must be of kind k. It drops
// everything pushed inside the frame and returns the saved return address.
func (s *Stack) Leave(k Kind) (tagged.Value, error) {
	if got := s.Kind(); got != k {
		return 0, fmt.Errorf("%w: leaving %s frame but the current frame is %s", ErrFrameCorrupt, k, got)
	}
	s.SetSP(s.fp)
	callerFP := s.Pop()
	ra := s.Pop()
	if !callerFP.IsSmi() {
		return 0, fmt.Errorf("%w: saved fp %v is not a stack address", ErrFrameCorrupt, callerFP)
	}
	s.fp = int(callerFP.Smi())
	return ra, nil
}

// Kind returns the kind of the current frame.
func (s *Stack) Kind() Kind {
	return s.kindAt(s.fp)
}

func (s *Stack) kindAt(fp int) Kind {
	if fp >= len(s.slots) || fp+MarkerOffset < s.sp {
		return NoFrame
	}
	m := s.slots[fp+MarkerOffset]
	if !m.IsSmi() {
		return NoFrame
	}
	return Kind(m.Smi())
}

// Slot reads a named field of the current frame.
func (s *Stack) Slot(f Field) (tagged.Value, error) {
	addr, err := s.slotAddr(s.fp, f)
	if err != nil {
		return 0, err
	}
	return s.At(addr), nil
}

// SetSlot overwrites a named field of the current frame.
func (s *Stack) SetSlot(f Field, v tagged.Value) error {
	addr, err := s.slotAddr(s.fp, f)
	if err != nil {
		return err
	}
	s.SetAt(addr, v)
	return nil
}

func (s *Stack) slotAddr(fp int, f Field) (int, error) {
	k := s.kindAt(fp)
	d, err := Describe(k)
	if err != nil {
		return 0, err
	}
	off, ok := d.Offset(f)
	if !ok {
		return 0, fmt.Errorf("%w: %s frame has no %s slot", ErrFrameCorrupt, k, f)
	}
	return fp + off, nil
}

// CallerSP returns the caller's stack pointer at the time the current frame
// was entered: the address of the last argument pushed by the caller.
func (s *Stack) CallerSP() int {
	return s.fp + CallerSPOffset
}

// FrameInfo is what a stack walker sees of one frame.
type FrameInfo struct {
	Kind          Kind
	FP            int
	ReturnAddress tagged.Value
	Fields        map[Field]tagged.Value
}

// Walk visits frames from the innermost outwards until fn returns false or
// the bottom of the stack is reached.
func (s *Stack) Walk(fn func(FrameInfo) bool) error {
	for fp := s.fp; fp < len(s.slots); {
		k := s.kindAt(fp)
		d, err := Describe(k)
		if err != nil {
			return fmt.Errorf("frame at %d: %w", fp, err)
		}
		info := FrameInfo{
			Kind:          k,
			FP:            fp,
			ReturnAddress: s.slots[fp+ReturnAddressOffset],
			Fields:        make(map[Field]tagged.Value, len(d.Fields)),
		}
		for _, f := range d.Fields {
			off, _ := d.Offset(f)
			info.Fields[f] = s.slots[fp+off]
		}
		if !fn(info) {
			return nil
		}
		next := s.slots[fp+CallerFPOffset]
		if !next.IsSmi() || int(next.Smi()) <= fp {
			return fmt.Errorf("%w: frame at %d links to %v", ErrFrameCorrupt, fp, next)
		}
		fp = int(next.Smi())
	}
	return nil
}

// Frames returns the whole frame chain, innermost first.
func (s *Stack) Frames() ([]FrameInfo, error) {
	var out []FrameInfo
	err := s.Walk(func(fi FrameInfo) bool {
		out = append(out, fi)
		return true
	})
	return out, err
}
