package stubs

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/runtime"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// slots returns the operand slots holding the left and right operands.
func (d BinaryOp) slots() (left, right isolate.Operand) {
	if d.Swapped {
		return isolate.OperandRight, isolate.OperandLeft
	}
	return isolate.OperandLeft, isolate.OperandRight
}

// int32Writer is the stub binary ops use to box int32 results that do not
// fit a Smi.
var int32Writer = WriteInt32ToHeapNumber{
	Int:     isolate.OperandScratch0,
	Number:  isolate.OperandResult,
	Scratch: isolate.OperandScratch1,
	Sign:    isolate.OperandScratch2,
}

func (c *Cache) binaryOp(key Key, d BinaryOp) (isolate.Entry, error) {
	if d.TypeInfo == TypeStrings {
		return nil, ErrUnsupportedStub
	}
	smiCode := d.generatesSmiCode()
	return func(iso *isolate.Isolate) error {
		h := iso.Heap
		ls, rs := d.slots()
		left, right := iso.Regs.Operands[ls], iso.Regs.Operands[rs]

		if smiCode && left.IsSmi() && right.IsSmi() {
			if v, ok := d.smiOp(left.Smi(), right.Smi()); ok {
				iso.Regs.Result = v
				return nil
			}
		}
		if !h.IsNumber(left) || !h.IsNumber(right) {
			if d.TypeInfo != TypeGeneric {
				return c.transition(iso, key, d, TypeGeneric)
			}
			return c.genericOp(iso, d, left, right)
		}
		if d.TypeInfo == TypeDefault && !(left.IsSmi() && right.IsSmi()) {
			return c.transition(iso, key, d, TypeHeapNumbers)
		}
		return c.numberOp(iso, d, h.NumberValue(left), h.NumberValue(right), left, right)
	}, nil
}

// transition replaces the stub at key with the one for the wider type
// feedback and continues in it.
func (c *Cache) transition(iso *isolate.Isolate, key Key, from BinaryOp, to TypeInfo) error {
	next := from
	next.TypeInfo = to
	s, err := c.Get(next)
	if err != nil {
		return err
	}
	c.patch(key, s.Key)
	log.Debug("stubs: binary op type transition", "op", from.Op, "from", from.TypeInfo, "to", to)
	return iso.JumpCode(s.Code)
}

// smiOp is the inline Smi path. ok is false when the result is not a Smi
// and the operation has to be redone on doubles.
func (d BinaryOp) smiOp(a, b int64) (tagged.Value, bool) {
	switch d.Op {
	case OpAdd:
		return tagged.TryFromSmi(a + b)
	case OpSub:
		return tagged.TryFromSmi(a - b)
	case OpMul:
		p := a * b
		if p == 0 && (a < 0 || b < 0) {
			return 0, false // -0
		}
		return tagged.TryFromSmi(p)
	case OpDiv:
		if b != int64(d.KnownRHS) || a%b != 0 {
			return 0, false
		}
		return tagged.TryFromSmi(a / b)
	case OpMod:
		if b != int64(d.KnownRHS) || a < 0 {
			return 0, false
		}
		if isPowerOf2(int(b)) {
			return tagged.FromSmi(a & (b - 1)), true
		}
		return tagged.FromSmi(a % b), true
	case OpBitOr:
		return tagged.FromSmi(a | b), true
	case OpBitAnd:
		return tagged.FromSmi(a & b), true
	case OpBitXor:
		return tagged.FromSmi(a ^ b), true
	case OpShl, OpSar, OpShr:
		return tagged.TryFromSmi(shift(d.Op, int32(a), int32(b)))
	}
	return 0, false
}

// shift applies a shift operator to int32 operands. The count is taken
// modulo 32; SHR produces an unsigned result.
func shift(op Op, a, b int32) int64 {
	n := uint32(b) & 31
	switch op {
	case OpShl:
		return int64(a << n)
	case OpSar:
		return int64(a >> n)
	default:
		return int64(uint32(a) >> n)
	}
}

// toInt32 truncates f modulo 2^32. NaN and infinities become zero.
func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Mod(math.Trunc(f), 1<<32))))
}

func (d BinaryOp) intOp(x, y float64) int64 {
	a, b := toInt32(x), toInt32(y)
	switch d.Op {
	case OpBitOr:
		return int64(a | b)
	case OpBitAnd:
		return int64(a & b)
	case OpBitXor:
		return int64(a ^ b)
	}
	return shift(d.Op, a, b)
}

func (d BinaryOp) floatOp(x, y float64) float64 {
	switch d.Op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		return x / y
	default:
		return math.Mod(x, y)
	}
}

// numberOp is the double path for number operands.
func (c *Cache) numberOp(iso *isolate.Isolate, d BinaryOp, x, y float64, left, right tagged.Value) error {
	if d.Op.bitwise() {
		return c.intResult(iso, d, d.intOp(x, y), left, right)
	}
	num, err := c.resultNumber(iso, d, left, right)
	if err != nil {
		return err
	}
	iso.Heap.SetHeapNumberValue(num, d.floatOp(x, y))
	iso.Regs.Result = num
	return nil
}

// genericOp converts non-number operands before operating on them. The
// result is a Smi when it fits.
func (c *Cache) genericOp(iso *isolate.Isolate, d BinaryOp, left, right tagged.Value) error {
	x, y := runtime.ToNumber(iso.Heap, left), runtime.ToNumber(iso.Heap, right)
	if d.Op.bitwise() {
		return c.intResult(iso, d, d.intOp(x, y), left, right)
	}
	v, err := runtime.NewNumber(iso, d.floatOp(x, y))
	if err != nil {
		return err
	}
	iso.Regs.Result = v
	return nil
}

// intResult tags r as a Smi, or boxes it through the int32 writer stub.
func (c *Cache) intResult(iso *isolate.Isolate, d BinaryOp, r int64, left, right tagged.Value) error {
	if v, ok := tagged.TryFromSmi(r); ok {
		iso.Regs.Result = v
		return nil
	}
	num, err := c.resultNumber(iso, d, left, right)
	if err != nil {
		return err
	}
	if r > math.MaxInt32 {
		iso.Heap.SetHeapNumberValue(num, float64(r))
		iso.Regs.Result = num
		return nil
	}
	w, err := c.Get(int32Writer)
	if err != nil {
		return err
	}
	iso.Regs.Operands[int32Writer.Int] = RawInt32(int32(r))
	iso.Regs.Operands[int32Writer.Number] = num
	return iso.CallCode(w.Code)
}

// resultNumber returns the heap number the result goes into: an operand the
// overwrite mode allows reusing, or a fresh one.
func (c *Cache) resultNumber(iso *isolate.Isolate, d BinaryOp, left, right tagged.Value) (tagged.Value, error) {
	h := iso.Heap
	switch {
	case d.Mode == OverwriteLeft && h.InstanceType(left) == heap.HeapNumberType:
		return left, nil
	case d.Mode == OverwriteRight && h.InstanceType(right) == heap.HeapNumberType:
		return right, nil
	}
	raw, err := h.TryAllocate(heap.HeapNumberSize, 0)
	if errors.Is(err, heap.ErrNeedsSlowPath) {
		return iso.RT().AllocateHeapNumber(0)
	}
	if err != nil {
		return 0, fmt.Errorf("heap number: %w", err)
	}
	h.Store(raw, h.Root(heap.HeapNumberMapRoot))
	h.StoreFloat(raw.Plus(heap.HeapNumberValueOffset), 0)
	return raw.Tag(), nil
}
