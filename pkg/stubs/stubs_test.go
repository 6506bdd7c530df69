package stubs_test

import (
	"errors"
	"testing"

	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/stubs"
)

var allOps = []stubs.Op{
	stubs.OpAdd, stubs.OpSub, stubs.OpMul, stubs.OpDiv, stubs.OpMod,
	stubs.OpBitOr, stubs.OpBitAnd, stubs.OpBitXor, stubs.OpShl, stubs.OpSar, stubs.OpShr,
}

// knownValues lists every canonical KnownRHS for op.
func knownValues(op stubs.Op) []int {
	vals := []int{0}
	for v := 1; v <= stubs.MaxKnownRHS; v++ {
		if stubs.ClassifyRHS(op, v, true) == v {
			vals = append(vals, v)
		}
		if v >= 16 {
			v = v*2 - 1
		}
	}
	return vals
}

// allDescriptions enumerates every canonical description of the families
// with bounded parameter spaces.
func allDescriptions() []stubs.Description {
	var ds []stubs.Description
	for _, op := range allOps {
		for _, known := range knownValues(op) {
			for mode := stubs.NoOverwrite; mode <= stubs.OverwriteRight; mode++ {
				for ti := stubs.TypeDefault; ti <= stubs.TypeGeneric; ti++ {
					for _, swapped := range []bool{false, true} {
						ds = append(ds, stubs.BinaryOp{Op: op, Mode: mode, Swapped: swapped, KnownRHS: known, TypeInfo: ti})
					}
				}
			}
		}
	}
	for a := isolate.Operand(0); a < isolate.NumOperands; a++ {
		ds = append(ds, stubs.ToBoolean{Slot: a})
		for b := isolate.Operand(0); b < isolate.NumOperands; b += 3 {
			ds = append(ds,
				stubs.RecordWrite{Object: a, Offset: b, Scratch: (a + b) % isolate.NumOperands},
				stubs.WriteInt32ToHeapNumber{Int: a, Number: b, Scratch: 15 - a, Sign: 15 - b},
				stubs.WriteInt32ToHeapNumber{Int: a, Number: b, Scratch: 15 - a, Sign: 0},
			)
		}
	}
	for _, t := range []stubs.Transcendental{stubs.Sin, stubs.Cos, stubs.Log} {
		ds = append(ds, stubs.TranscendentalCache{Type: t})
	}
	return append(ds,
		stubs.StringAdd{}, stubs.StringAdd{NoStringCheck: true},
		stubs.SubString{}, stubs.StringCompare{}, stubs.NumberToString{},
	)
}

func TestKeyRoundTrip(t *testing.T) {
	for _, d := range allDescriptions() {
		k, err := stubs.Encode(d)
		if err != nil {
			t.Fatalf("Encode(%s): %v", d, err)
		}
		if k.Kind() != d.Kind() {
			t.Errorf("%s: key kind %s", d, k.Kind())
		}
		got, err := stubs.Decode(k)
		if err != nil {
			t.Fatalf("Decode(%v) for %s: %v", k, d, err)
		}
		if got != d {
			t.Errorf("Decode(Encode(%s)) = %s", d, got)
		}
	}
}

func TestKeysDoNotAlias(t *testing.T) {
	seen := make(map[stubs.Key]stubs.Description)
	for _, d := range allDescriptions() {
		k, err := stubs.Encode(d)
		if err != nil {
			t.Fatal(err)
		}
		if prev, ok := seen[k]; ok && prev != d {
			t.Errorf("%s and %s share key %v", prev, d, k)
		}
		seen[k] = d
	}
}

func TestKeyLayout(t *testing.T) {
	tests := []struct {
		d     stubs.Description
		minor uint32
	}{
		{
			stubs.BinaryOp{Op: stubs.OpMod, Mode: stubs.OverwriteRight, Swapped: true, KnownRHS: 8, TypeInfo: stubs.TypeHeapNumbers},
			2 | 4<<2 | 1<<8 | 1<<10 | 9<<11,
		},
		{stubs.BinaryOp{Op: stubs.OpDiv, KnownRHS: 3}, 3<<2 | 4<<11},
		{stubs.BinaryOp{Op: stubs.OpMod, KnownRHS: 16}, 4<<2 | 16<<11},
		{stubs.BinaryOp{Op: stubs.OpMod, KnownRHS: stubs.MaxKnownRHS}, 4<<2 | 42<<11},
		{stubs.RecordWrite{Object: 6, Offset: 7, Scratch: 3}, 0x673},
		{stubs.WriteInt32ToHeapNumber{Int: 1, Number: 2, Scratch: 3, Sign: 4}, 0x4321},
		{stubs.ToBoolean{Slot: isolate.OperandResult}, 2},
		{stubs.TranscendentalCache{Type: stubs.Log}, 2},
		{stubs.StringAdd{NoStringCheck: true}, 1},
	}
	for _, tt := range tests {
		k, err := stubs.Encode(tt.d)
		if err != nil {
			t.Fatalf("Encode(%s): %v", tt.d, err)
		}
		if k.Minor() != tt.minor {
			t.Errorf("%s: minor %#x, want %#x", tt.d, k.Minor(), tt.minor)
		}
		if want := stubs.Key(uint32(tt.d.Kind()) | tt.minor<<6); k != want {
			t.Errorf("%s: key %#x, want %#x", tt.d, uint32(k), uint32(want))
		}
	}
}

func TestClassifyRHS(t *testing.T) {
	tests := []struct {
		op    stubs.Op
		value int
		known bool
		want  int
	}{
		{stubs.OpDiv, 2, true, 2},
		{stubs.OpDiv, 3, true, 3},
		{stubs.OpDiv, 4, true, 0},
		{stubs.OpDiv, 1, true, 0},
		{stubs.OpDiv, 3, false, 0},
		{stubs.OpMod, 1, true, 0},
		{stubs.OpMod, 2, true, 2},
		{stubs.OpMod, 7, true, 7},
		{stubs.OpMod, 10, true, 10},
		{stubs.OpMod, 11, true, 0},
		{stubs.OpMod, 12, true, 0},
		{stubs.OpMod, 16, true, 16},
		{stubs.OpMod, 1 << 20, true, 1 << 20},
		{stubs.OpMod, stubs.MaxKnownRHS, true, stubs.MaxKnownRHS},
		{stubs.OpMod, stubs.MaxKnownRHS * 2, true, 0},
		{stubs.OpMod, -4, true, 0},
		{stubs.OpMod, 8, false, 0},
		{stubs.OpAdd, 2, true, 0},
		{stubs.OpShl, 4, true, 0},
	}
	for _, tt := range tests {
		if got := stubs.ClassifyRHS(tt.op, tt.value, tt.known); got != tt.want {
			t.Errorf("ClassifyRHS(%s, %d, %v) = %d, want %d", tt.op, tt.value, tt.known, got, tt.want)
		}
	}
	d := stubs.NewBinaryOp(stubs.OpMod, stubs.NoOverwrite, false, 12, true)
	if d.Specialized() {
		t.Errorf("MOD 12 is specialized: %s", d)
	}
}

func TestEncodeRejectsNonCanonical(t *testing.T) {
	tests := []stubs.Description{
		stubs.BinaryOp{Op: stubs.OpAdd, KnownRHS: 5},
		stubs.BinaryOp{Op: stubs.OpMod, KnownRHS: 12},
		stubs.BinaryOp{Op: stubs.OpDiv, KnownRHS: 4},
		stubs.BinaryOp{Op: stubs.Op(40)},
		stubs.BinaryOp{Op: stubs.OpAdd, Mode: stubs.OverwriteMode(3)},
		stubs.BinaryOp{Op: stubs.OpAdd, TypeInfo: stubs.TypeInfo(4)},
		stubs.ToBoolean{Slot: isolate.NumOperands},
		stubs.RecordWrite{Object: 1, Offset: 2, Scratch: 200},
		stubs.TranscendentalCache{Type: stubs.Transcendental(3)},
	}
	for _, d := range tests {
		if _, err := stubs.Encode(d); !errors.Is(err, stubs.ErrNonCanonical) {
			t.Errorf("Encode(%s): %v, want ErrNonCanonical", d, err)
		}
	}
}

func TestDecodeRejectsNonCanonical(t *testing.T) {
	key := func(kind stubs.Kind, minor uint32) stubs.Key {
		return stubs.Key(uint32(kind) | minor<<6)
	}
	tests := []struct {
		name string
		key  stubs.Key
	}{
		{"unknown kind", stubs.Key(60)},
		{"op out of range", key(stubs.GenericBinaryOpKind, 40<<2)},
		{"mode out of range", key(stubs.GenericBinaryOpKind, 3)},
		{"constant zero", key(stubs.GenericBinaryOpKind, uint32(stubs.OpMod)<<2|1<<11)},
		{"constant on ADD", key(stubs.GenericBinaryOpKind, 3<<11)},
		{"constant past the largest power", key(stubs.GenericBinaryOpKind, uint32(stubs.OpMod)<<2|43<<11)},
		{"stray binary op bits", key(stubs.GenericBinaryOpKind, 1<<17)},
		{"stray slot bits", key(stubs.ToBooleanKind, 1<<4)},
		{"transcendental type", key(stubs.TranscendentalCacheKind, 3)},
		{"parameterless with parameters", key(stubs.SubStringKind, 1)},
		{"string add flag", key(stubs.StringAddKind, 2)},
		{"record write stray bits", key(stubs.RecordWriteKind, 1<<12)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d, err := stubs.Decode(tt.key); !errors.Is(err, stubs.ErrNonCanonical) {
				t.Errorf("Decode(%#x) = %v, %v; want ErrNonCanonical", uint32(tt.key), d, err)
			}
		})
	}
}
