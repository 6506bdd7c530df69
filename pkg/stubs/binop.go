package stubs

import (
	"fmt"
	"math/bits"
)

// Op is a binary arithmetic or bitwise operator.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitOr
	OpBitAnd
	OpBitXor
	OpShl
	OpSar
	OpShr

	numOps
)

var opNames = [...]string{
	OpAdd:    "ADD",
	OpSub:    "SUB",
	OpMul:    "MUL",
	OpDiv:    "DIV",
	OpMod:    "MOD",
	OpBitOr:  "BIT_OR",
	OpBitAnd: "BIT_AND",
	OpBitXor: "BIT_XOR",
	OpShl:    "SHL",
	OpSar:    "SAR",
	OpShr:    "SHR",
}

func (op Op) String() string {
	if op < numOps {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// bitwise reports whether op works on int32 values.
func (op Op) bitwise() bool { return op >= OpBitOr }

// OverwriteMode says which operand, if it is a heap number, may be reused to
// hold the result.
type OverwriteMode uint8

const (
	NoOverwrite OverwriteMode = iota
	OverwriteLeft
	OverwriteRight
)

func (m OverwriteMode) String() string {
	switch m {
	case NoOverwrite:
		return "Alloc"
	case OverwriteLeft:
		return "OverwriteLeft"
	case OverwriteRight:
		return "OverwriteRight"
	}
	return fmt.Sprintf("OverwriteMode(%d)", uint8(m))
}

// TypeInfo is the operand type feedback a binary op stub is specialized for.
type TypeInfo uint8

const (
	TypeDefault TypeInfo = iota
	TypeHeapNumbers
	TypeStrings
	TypeGeneric
)

func (t TypeInfo) String() string {
	switch t {
	case TypeDefault:
		return "Default"
	case TypeHeapNumbers:
		return "HeapNumbers"
	case TypeStrings:
		return "Strings"
	case TypeGeneric:
		return "Generic"
	}
	return fmt.Sprintf("TypeInfo(%d)", uint8(t))
}

// MaxKnownRHS is the largest power of two MOD is specialized for.
const MaxKnownRHS = 0x40000000

var (
	binopModeBits     = bitField{0, 2}
	binopOpBits       = bitField{2, 6}
	binopTypeInfoBits = bitField{8, 2}
	binopOrderBits    = bitField{10, 1}
	binopKnownIntBits = bitField{11, 6}
)

// BinaryOp is a generic binary operation stub.
type BinaryOp struct {
	Op   Op
	Mode OverwriteMode

	// Swapped means the left operand arrives in OperandRight and the right
	// one in OperandLeft.
	Swapped bool

	// KnownRHS is the constant right operand the stub is specialized for, or
	// zero. Only the values ClassifyRHS returns are canonical.
	KnownRHS int

	TypeInfo TypeInfo
}

// NewBinaryOp describes a binary op stub for a site whose right operand may
// be a compile-time constant.
func NewBinaryOp(op Op, mode OverwriteMode, swapped bool, rhs int, rhsKnown bool) BinaryOp {
	return BinaryOp{
		Op:       op,
		Mode:     mode,
		Swapped:  swapped,
		KnownRHS: ClassifyRHS(op, rhs, rhsKnown),
	}
}

// ClassifyRHS returns the constant a stub for op may be specialized for,
// or zero when the right operand gives no specialization. DIV specializes
// for 2 and 3; MOD for 2 through 10 and for powers of two up to MaxKnownRHS.
func ClassifyRHS(op Op, value int, known bool) int {
	if !known {
		return 0
	}
	switch op {
	case OpDiv:
		if value >= 2 && value <= 3 {
			return value
		}
	case OpMod:
		if value < 2 {
			return 0
		}
		if value <= 10 {
			return value
		}
		if value <= MaxKnownRHS && isPowerOf2(value) {
			return value
		}
	}
	return 0
}

func isPowerOf2(n int) bool { return n > 0 && n&(n-1) == 0 }

// Specialized reports whether the stub is specialized for a constant right
// operand.
func (d BinaryOp) Specialized() bool { return d.KnownRHS != 0 }

// generatesSmiCode reports whether the stub has an inline Smi path. DIV and
// MOD only get one when specialized.
func (d BinaryOp) generatesSmiCode() bool {
	if (d.Op == OpDiv || d.Op == OpMod) && !d.Specialized() {
		return false
	}
	return d.TypeInfo != TypeHeapNumbers && d.TypeInfo != TypeStrings
}

func (d BinaryOp) Kind() Kind { return GenericBinaryOpKind }

func (d BinaryOp) String() string {
	s := fmt.Sprintf("GenericBinaryOpStub_%s_%s_%s", d.Op, d.Mode, d.TypeInfo)
	if d.Swapped {
		s += "_RL"
	}
	if d.Specialized() {
		s += fmt.Sprintf("_ConstantRhs%d", d.KnownRHS)
	}
	return s
}

// knownIntKey packs KnownRHS into six bits: 0 for none, c+1 for small
// constants and 12+log2(c) for larger powers of two.
func knownIntKey(c int) uint32 {
	switch {
	case c == 0:
		return 0
	case c <= 10:
		return uint32(c) + 1
	default:
		return 12 + uint32(bits.TrailingZeros(uint(c)))
	}
}

func knownIntFromKey(k uint32) int {
	switch {
	case k == 0:
		return 0
	case k <= 11:
		return int(k) - 1
	default:
		return 1 << (k - 12)
	}
}

func (d BinaryOp) minorKey() (uint32, error) {
	if d.Op >= numOps || d.Mode > OverwriteRight || d.TypeInfo > TypeGeneric {
		return 0, ErrNonCanonical
	}
	if d.KnownRHS != ClassifyRHS(d.Op, d.KnownRHS, d.KnownRHS != 0) {
		return 0, fmt.Errorf("constant %d for %s: %w", d.KnownRHS, d.Op, ErrNonCanonical)
	}
	minor := binopModeBits.put(uint32(d.Mode)) |
		binopOpBits.put(uint32(d.Op)) |
		binopTypeInfoBits.put(uint32(d.TypeInfo)) |
		binopKnownIntBits.put(knownIntKey(d.KnownRHS))
	if d.Swapped {
		minor |= binopOrderBits.put(1)
	}
	return minor, nil
}

func decodeBinaryOp(minor uint32) (Description, error) {
	if err := checkUnused(minor, binopModeBits, binopOpBits, binopTypeInfoBits, binopOrderBits, binopKnownIntBits); err != nil {
		return nil, err
	}
	k := binopKnownIntBits.decode(minor)
	if k > 12+30 {
		return nil, fmt.Errorf("constant key %d: %w", k, ErrNonCanonical)
	}
	return BinaryOp{
		Op:       Op(binopOpBits.decode(minor)),
		Mode:     OverwriteMode(binopModeBits.decode(minor)),
		Swapped:  binopOrderBits.decode(minor) == 1,
		KnownRHS: knownIntFromKey(k),
		TypeInfo: TypeInfo(binopTypeInfoBits.decode(minor)),
	}, nil
}
