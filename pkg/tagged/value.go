package tagged

import "fmt"

// Value is a single machine word as seen by the heap, the stack and the
// operand slots.
//
// Encoding scheme:
//   - Smi: low bit 0, payload is the integer shifted left by SmiTagSize
//   - HeapObject: low bit 1, payload is the byte address of the object
//
// A Value never carries a raw float; doubles live in heap numbers.
type Value uint64

const (
	SmiTag        uint64 = 0
	SmiTagSize           = 1
	SmiTagMask    uint64 = 1
	HeapObjectTag uint64 = 1

	// HeapObjectTagMask clears both low bits of an address. Object starts are
	// word aligned so the bit above the tag is always zero.
	HeapObjectTagMask uint64 = 3

	PointerSize     = 8
	PointerSizeLog2 = 3
)

// SmiValueSize is the payload width of a small integer. The range matches a
// 32-bit target so overflow checks behave the same on every host.
const SmiValueSize = 31

const (
	MaxSmi int64 = (1 << (SmiValueSize - 1)) - 1
	MinSmi int64 = -(1 << (SmiValueSize - 1))
)

// Zero is the Smi 0. It is also the word stored in freshly zeroed memory.
const Zero Value = 0

// Address is an untagged byte address in the simulated heap.
type Address uint64

// IsSmi reports whether v is a small integer.
func (v Value) IsSmi() bool {
	return uint64(v)&SmiTagMask == SmiTag
}

// IsHeapObject reports whether v is a reference to a heap object.
func (v Value) IsHeapObject() bool {
	return uint64(v)&SmiTagMask == HeapObjectTag
}

// Smi returns the integer payload of v.
// Panics if v is not a small integer.
func (v Value) Smi() int64 {
	if !v.IsSmi() {
		panic("tagged.Value.Smi: not a small integer")
	}
	return int64(v) >> SmiTagSize
}

// Address returns the untagged address of the object v refers to.
// Panics if v is a small integer.
func (v Value) Address() Address {
	if !v.IsHeapObject() {
		panic("tagged.Value.Address: not a heap object")
	}
	return Address(uint64(v) - HeapObjectTag)
}

// FromSmi creates a Smi. Panics if n is out of range.
func FromSmi(n int64) Value {
	if !IsSmiRange(n) {
		panic(fmt.Sprintf("tagged.FromSmi: %d out of range", n))
	}
	return Value(uint64(n) << SmiTagSize)
}

// TryFromSmi creates a Smi, returning false if n is out of range.
func TryFromSmi(n int64) (Value, bool) {
	if !IsSmiRange(n) {
		return 0, false
	}
	return Value(uint64(n) << SmiTagSize), true
}

// IsSmiRange reports whether n fits the Smi payload.
func IsSmiRange(n int64) bool {
	return n >= MinSmi && n <= MaxSmi
}

// FromAddress tags an object start address.
func FromAddress(a Address) Value {
	if uint64(a)&HeapObjectTagMask != 0 {
		panic(fmt.Sprintf("tagged.FromAddress: misaligned address %#x", uint64(a)))
	}
	return Value(uint64(a) | HeapObjectTag)
}

// Untag clears the heap object tag, the way generated code does before
// storing through an address it computed itself.
func Untag(v Value) Address {
	return Address(uint64(v) &^ HeapObjectTagMask)
}

// Words converts a byte size into a word count.
func Words(bytes int) int {
	return bytes >> PointerSizeLog2
}

// Bytes converts a word count into a byte size.
func Bytes(words int) int {
	return words << PointerSizeLog2
}

// String renders the word for traces.
func (v Value) String() string {
	if v.IsSmi() {
		return fmt.Sprintf("smi:%d", v.Smi())
	}
	return fmt.Sprintf("obj:%#x", uint64(v.Address()))
}
