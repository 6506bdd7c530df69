// Package stubs implements parameterized code stubs. A stub is identified by
// a dense integer key computed from its description; the cache generates each
// distinct stub once and hands out the same code for every later request.
package stubs

import (
	"errors"
	"fmt"
)

var (
	ErrNonCanonical    = errors.New("stub description is not canonical")
	ErrUnsupportedStub = errors.New("stub family has no generator")
)

// Kind is the major key of a stub: the family it belongs to.
type Kind uint8

const (
	TranscendentalCacheKind Kind = iota
	ToBooleanKind
	GenericBinaryOpKind
	StringAddKind
	SubStringKind
	StringCompareKind
	WriteInt32ToHeapNumberKind
	NumberToStringKind
	RecordWriteKind

	numKinds
)

var kindNames = [...]string{
	TranscendentalCacheKind:    "TranscendentalCache",
	ToBooleanKind:              "ToBoolean",
	GenericBinaryOpKind:        "GenericBinaryOp",
	StringAddKind:              "StringAdd",
	SubStringKind:              "SubString",
	StringCompareKind:          "StringCompare",
	WriteInt32ToHeapNumberKind: "WriteInt32ToHeapNumber",
	NumberToStringKind:         "NumberToString",
	RecordWriteKind:            "RecordWrite",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Key is the cache identity of a stub: the kind in the low majorBits and the
// family-specific minor key above it.
type Key uint32

const (
	majorBits = 6
	minorBits = 25
)

var (
	majorField = bitField{0, majorBits}
	minorField = bitField{majorBits, minorBits}
)

// Kind returns the major key.
func (k Key) Kind() Kind { return Kind(majorField.decode(uint32(k))) }

// Minor returns the family-specific part of the key.
func (k Key) Minor() uint32 { return minorField.decode(uint32(k)) }

func (k Key) String() string {
	return fmt.Sprintf("%s/%#x", k.Kind(), k.Minor())
}

// Description is a fully parameterized stub. Descriptions are comparable
// values; two descriptions are the same stub exactly when they are equal.
type Description interface {
	Kind() Kind
	String() string

	// minorKey packs the parameters, failing with ErrNonCanonical when a
	// field is out of range or not in its canonical form.
	minorKey() (uint32, error)
}

// Encode computes the key of d.
func Encode(d Description) (Key, error) {
	minor, err := d.minorKey()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", d, err)
	}
	if minor > minorField.max() {
		return 0, fmt.Errorf("%s: minor key %#x too wide: %w", d, minor, ErrNonCanonical)
	}
	return Key(majorField.put(uint32(d.Kind())) | minorField.put(minor)), nil
}

// Decode recovers the description a key was computed from. Keys that no
// canonical description encodes to are rejected.
func Decode(k Key) (Description, error) {
	decode, ok := decoders[k.Kind()]
	if !ok {
		return nil, fmt.Errorf("key %#x: unknown kind %d: %w", uint32(k), uint8(k.Kind()), ErrNonCanonical)
	}
	d, err := decode(k.Minor())
	if err != nil {
		return nil, fmt.Errorf("key %#x: %w", uint32(k), err)
	}
	again, err := Encode(d)
	if err != nil || again != k {
		return nil, fmt.Errorf("key %#x does not round-trip: %w", uint32(k), ErrNonCanonical)
	}
	return d, nil
}

var decoders = map[Kind]func(minor uint32) (Description, error){
	TranscendentalCacheKind:    decodeTranscendentalCache,
	ToBooleanKind:              decodeToBoolean,
	GenericBinaryOpKind:        decodeBinaryOp,
	StringAddKind:              decodeStringAdd,
	SubStringKind:              decodeEmpty(SubString{}),
	StringCompareKind:          decodeEmpty(StringCompare{}),
	WriteInt32ToHeapNumberKind: decodeWriteInt32ToHeapNumber,
	NumberToStringKind:         decodeEmpty(NumberToString{}),
	RecordWriteKind:            decodeRecordWrite,
}

// bitField is a run of size bits starting at shift.
type bitField struct {
	shift, size uint
}

func (f bitField) max() uint32 { return 1<<f.size - 1 }

func (f bitField) mask() uint32 { return f.max() << f.shift }

// put places v in the field. v must fit.
func (f bitField) put(v uint32) uint32 { return (v & f.max()) << f.shift }

func (f bitField) decode(word uint32) uint32 { return (word >> f.shift) & f.max() }

// encode is put with a range check.
func (f bitField) encode(v uint32) (uint32, error) {
	if v > f.max() {
		return 0, fmt.Errorf("value %d does not fit %d bits: %w", v, f.size, ErrNonCanonical)
	}
	return f.put(v), nil
}

// checkUnused rejects minor keys with bits set outside the given fields.
func checkUnused(minor uint32, fields ...bitField) error {
	var used uint32
	for _, f := range fields {
		used |= f.mask()
	}
	if minor&^used != 0 {
		return fmt.Errorf("stray bits %#x: %w", minor&^used, ErrNonCanonical)
	}
	return nil
}
