package stubs_test

import (
	"math"
	"testing"

	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/stubs"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

func get(t *testing.T, c *stubs.Cache, d stubs.Description) *stubs.Stub {
	t.Helper()
	s, err := c.Get(d)
	if err != nil {
		t.Fatalf("Get(%s): %v", d, err)
	}
	return s
}

func TestToBooleanStub(t *testing.T) {
	iso, c := newCache(t)
	h := iso.Heap
	tests := []struct {
		name string
		v    tagged.Value
		want int64
	}{
		{"zero", tagged.FromSmi(0), 0},
		{"smi", tagged.FromSmi(-4), 1},
		{"undefined", iso.Undefined(), 0},
		{"null", h.Null(), 0},
		{"false", h.Boolean(false), 0},
		{"true", h.Boolean(true), 1},
		{"NaN", number(t, iso, math.NaN()), 0},
		{"half", number(t, iso, 0.5), 1},
		{"object", iso.Roots().GlobalObject, 1},
	}
	s := get(t, c, stubs.ToBoolean{Slot: isolate.OperandObject})
	for _, tt := range tests {
		iso.Regs.Operands[isolate.OperandObject] = tt.v
		if err := iso.CallCode(s.Code); err != nil {
			t.Fatal(err)
		}
		if iso.Regs.Result != tagged.FromSmi(tt.want) {
			t.Errorf("%s: %v, want %d", tt.name, iso.Regs.Result, tt.want)
		}
		if iso.Regs.Operands[isolate.OperandObject] != iso.Regs.Result {
			t.Errorf("%s: slot not overwritten with the result", tt.name)
		}
	}
}

func TestWriteInt32ToHeapNumberStub(t *testing.T) {
	iso, c := newCache(t)
	d := stubs.WriteInt32ToHeapNumber{Int: 8, Number: 9, Scratch: 10, Sign: 11}
	s := get(t, c, d)
	for _, n := range []int32{0, 7, -5, math.MaxInt32, math.MinInt32} {
		num := number(t, iso, 0.25)
		iso.Regs.Operands[d.Int] = stubs.RawInt32(n)
		iso.Regs.Operands[d.Number] = num
		if err := iso.CallCode(s.Code); err != nil {
			t.Fatal(err)
		}
		if got := iso.Heap.HeapNumberValue(num); got != float64(n) {
			t.Errorf("wrote %v, want %d", got, n)
		}
		if iso.Regs.Result != num {
			t.Errorf("%d: result %v, want the heap number", n, iso.Regs.Result)
		}
		sign := int64(0)
		if n < 0 {
			sign = 1
		}
		if iso.Regs.Operands[d.Sign] != tagged.FromSmi(sign) {
			t.Errorf("%d: sign slot %v", n, iso.Regs.Operands[d.Sign])
		}
	}

	iso.Regs.Operands[d.Number] = tagged.FromSmi(3)
	if err := iso.CallCode(s.Code); err == nil {
		t.Error("writing into a Smi went unnoticed")
	}
}

func TestRecordWriteStub(t *testing.T) {
	iso, c := newCache(t)
	h := iso.Heap
	arr, err := h.NewFixedArray(2, iso.Undefined())
	if err != nil {
		t.Fatal(err)
	}
	young, err := h.TryAllocate(heap.HeapNumberSize, 0)
	if err != nil {
		t.Fatal(err)
	}
	h.Store(young, h.Root(heap.HeapNumberMapRoot))
	offset := heap.FixedArrayOffsetOf(1)
	h.Store(h.Revalidate(arr).Plus(offset), young.Tag())
	if len(h.RememberedSet()) != 0 {
		t.Fatal("raw store went through the barrier")
	}

	d := stubs.RecordWrite{Object: isolate.OperandObject, Offset: isolate.OperandAddress, Scratch: isolate.OperandScratch0}
	s := get(t, c, d)
	iso.Regs.Operands[d.Object] = arr
	iso.Regs.Operands[d.Offset] = tagged.FromSmi(int64(offset))
	if err := iso.CallCode(s.Code); err != nil {
		t.Fatal(err)
	}
	slots := h.RememberedSet()
	want := arr.Address() + tagged.Address(offset)
	if len(slots) != 1 || slots[0] != want {
		t.Errorf("remembered set %v, want [%#x]", slots, uint64(want))
	}

	iso.Regs.Operands[d.Offset] = iso.Undefined()
	if err := iso.CallCode(s.Code); err == nil {
		t.Error("non-Smi offset went unnoticed")
	}
}

func TestTranscendentalCacheStub(t *testing.T) {
	iso, c := newCache(t)
	tests := []struct {
		typ  stubs.Transcendental
		in   tagged.Value
		want float64
	}{
		{stubs.Sin, number(t, iso, 0.5), math.Sin(0.5)},
		{stubs.Cos, tagged.FromSmi(0), 1},
		{stubs.Log, tagged.FromSmi(1), 0},
		{stubs.Log, tagged.FromSmi(-1), math.NaN()},
	}
	for _, tt := range tests {
		s := get(t, c, stubs.TranscendentalCache{Type: tt.typ})
		_, missesBefore := c.TranscendentalStats(tt.typ)

		var first tagged.Value
		for i := 0; i < 2; i++ {
			iso.Regs.Operands[isolate.OperandLeft] = tt.in
			if err := iso.CallCode(s.Code); err != nil {
				t.Fatal(err)
			}
			got := iso.Regs.Result
			f := iso.Heap.HeapNumberValue(got)
			if f != tt.want && !(math.IsNaN(f) && math.IsNaN(tt.want)) {
				t.Errorf("%s(%v) = %v, want %v", tt.typ, tt.in, f, tt.want)
			}
			if i == 0 {
				first = got
			} else if got != first {
				t.Errorf("%s(%v): second lookup returned a new number", tt.typ, tt.in)
			}
		}
		if _, misses := c.TranscendentalStats(tt.typ); misses != missesBefore+1 {
			t.Errorf("%s: %d misses for one input", tt.typ, misses-missesBefore)
		}
	}
	if hits, _ := c.TranscendentalStats(stubs.Log); hits != 2 {
		t.Errorf("Log hits %d, want 2", hits)
	}
}
