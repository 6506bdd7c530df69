package stubs

import (
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
)

// Operand fields are four bits wide, enough for every slot.
const operandBits = 4

func operandField(shift uint) bitField { return bitField{shift, operandBits} }

func encodeOperands(fields []bitField, ops ...isolate.Operand) (uint32, error) {
	var minor uint32
	for i, op := range ops {
		if !op.Valid() {
			return 0, fmt.Errorf("operand %s: %w", op, ErrNonCanonical)
		}
		v, err := fields[i].encode(uint32(op))
		if err != nil {
			return 0, err
		}
		minor |= v
	}
	return minor, nil
}

// ToBoolean converts the value in Slot to Smi 1 or 0.
type ToBoolean struct {
	Slot isolate.Operand
}

var toBooleanSlotBits = operandField(0)

func (d ToBoolean) Kind() Kind     { return ToBooleanKind }
func (d ToBoolean) String() string { return fmt.Sprintf("ToBooleanStub_%s", d.Slot) }

func (d ToBoolean) minorKey() (uint32, error) {
	return encodeOperands([]bitField{toBooleanSlotBits}, d.Slot)
}

func decodeToBoolean(minor uint32) (Description, error) {
	if err := checkUnused(minor, toBooleanSlotBits); err != nil {
		return nil, err
	}
	return ToBoolean{Slot: isolate.Operand(toBooleanSlotBits.decode(minor))}, nil
}

// WriteInt32ToHeapNumber stores the untagged int32 in Int into the heap
// number in Number. Scratch and Sign are clobbered.
type WriteInt32ToHeapNumber struct {
	Int     isolate.Operand
	Number  isolate.Operand
	Scratch isolate.Operand
	Sign    isolate.Operand
}

var writeInt32Bits = []bitField{
	operandField(0),  // int
	operandField(4),  // number
	operandField(8),  // scratch
	operandField(12), // sign
}

func (d WriteInt32ToHeapNumber) Kind() Kind { return WriteInt32ToHeapNumberKind }

func (d WriteInt32ToHeapNumber) String() string {
	return fmt.Sprintf("WriteInt32ToHeapNumberStub_%s_%s_%s_%s", d.Int, d.Number, d.Scratch, d.Sign)
}

func (d WriteInt32ToHeapNumber) minorKey() (uint32, error) {
	return encodeOperands(writeInt32Bits, d.Int, d.Number, d.Scratch, d.Sign)
}

func decodeWriteInt32ToHeapNumber(minor uint32) (Description, error) {
	if err := checkUnused(minor, writeInt32Bits...); err != nil {
		return nil, err
	}
	return WriteInt32ToHeapNumber{
		Int:     isolate.Operand(writeInt32Bits[0].decode(minor)),
		Number:  isolate.Operand(writeInt32Bits[1].decode(minor)),
		Scratch: isolate.Operand(writeInt32Bits[2].decode(minor)),
		Sign:    isolate.Operand(writeInt32Bits[3].decode(minor)),
	}, nil
}

// RecordWrite runs the write barrier for the slot at byte offset Offset (a
// Smi) of the object in Object.
type RecordWrite struct {
	Object  isolate.Operand
	Offset  isolate.Operand
	Scratch isolate.Operand
}

var recordWriteBits = []bitField{
	operandField(8), // object
	operandField(4), // offset
	operandField(0), // scratch
}

func (d RecordWrite) Kind() Kind { return RecordWriteKind }

func (d RecordWrite) String() string {
	return fmt.Sprintf("RecordWriteStub_%s_%s_%s", d.Object, d.Offset, d.Scratch)
}

func (d RecordWrite) minorKey() (uint32, error) {
	return encodeOperands(recordWriteBits, d.Object, d.Offset, d.Scratch)
}

func decodeRecordWrite(minor uint32) (Description, error) {
	if err := checkUnused(minor, recordWriteBits...); err != nil {
		return nil, err
	}
	return RecordWrite{
		Object:  isolate.Operand(recordWriteBits[0].decode(minor)),
		Offset:  isolate.Operand(recordWriteBits[1].decode(minor)),
		Scratch: isolate.Operand(recordWriteBits[2].decode(minor)),
	}, nil
}

// Transcendental selects the function a TranscendentalCache stub computes.
type Transcendental uint8

const (
	Sin Transcendental = iota
	Cos
	Log

	numTranscendentals
)

func (t Transcendental) String() string {
	switch t {
	case Sin:
		return "Sin"
	case Cos:
		return "Cos"
	case Log:
		return "Log"
	}
	return fmt.Sprintf("Transcendental(%d)", uint8(t))
}

// TranscendentalCache computes Type of the number in OperandLeft, memoizing
// results in a per-function table.
type TranscendentalCache struct {
	Type Transcendental
}

var transcendentalTypeBits = bitField{0, 2}

func (d TranscendentalCache) Kind() Kind     { return TranscendentalCacheKind }
func (d TranscendentalCache) String() string { return "TranscendentalCacheStub_" + d.Type.String() }

func (d TranscendentalCache) minorKey() (uint32, error) {
	if d.Type >= numTranscendentals {
		return 0, ErrNonCanonical
	}
	return transcendentalTypeBits.put(uint32(d.Type)), nil
}

func decodeTranscendentalCache(minor uint32) (Description, error) {
	if err := checkUnused(minor, transcendentalTypeBits); err != nil {
		return nil, err
	}
	return TranscendentalCache{Type: Transcendental(transcendentalTypeBits.decode(minor))}, nil
}

// StringAdd concatenates two strings. NoStringCheck means the caller already
// knows both operands are strings.
type StringAdd struct {
	NoStringCheck bool
}

var stringAddFlagBits = bitField{0, 1}

func (d StringAdd) Kind() Kind { return StringAddKind }

func (d StringAdd) String() string {
	if d.NoStringCheck {
		return "StringAddStub_NoStringCheck"
	}
	return "StringAddStub"
}

func (d StringAdd) minorKey() (uint32, error) {
	if d.NoStringCheck {
		return stringAddFlagBits.put(1), nil
	}
	return 0, nil
}

func decodeStringAdd(minor uint32) (Description, error) {
	if err := checkUnused(minor, stringAddFlagBits); err != nil {
		return nil, err
	}
	return StringAdd{NoStringCheck: minor == 1}, nil
}

// SubString, StringCompare and NumberToString take no parameters.
type (
	SubString      struct{}
	StringCompare  struct{}
	NumberToString struct{}
)

func (SubString) Kind() Kind                     { return SubStringKind }
func (SubString) String() string                 { return "SubStringStub" }
func (SubString) minorKey() (uint32, error)      { return 0, nil }
func (StringCompare) Kind() Kind                 { return StringCompareKind }
func (StringCompare) String() string             { return "StringCompareStub" }
func (StringCompare) minorKey() (uint32, error)  { return 0, nil }
func (NumberToString) Kind() Kind                { return NumberToStringKind }
func (NumberToString) String() string            { return "NumberToStringStub" }
func (NumberToString) minorKey() (uint32, error) { return 0, nil }

func decodeEmpty(d Description) func(uint32) (Description, error) {
	return func(minor uint32) (Description, error) {
		if minor != 0 {
			return nil, fmt.Errorf("%s takes no parameters: %w", d, ErrNonCanonical)
		}
		return d, nil
	}
}
