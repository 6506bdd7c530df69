package stubs

import (
	"math"

	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/runtime"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// RawInt32 puts an untagged int32 into an operand slot. Only stubs that
// document an untagged input read such a slot.
func RawInt32(n int32) tagged.Value { return tagged.Value(uint32(n)) }

func rawInt32(v tagged.Value) int32 { return int32(uint32(v)) }

func toBoolean(d ToBoolean) isolate.Entry {
	return func(iso *isolate.Isolate) error {
		r := tagged.FromSmi(0)
		if runtime.ToBoolean(iso.Heap, iso.Regs.Operands[d.Slot]) {
			r = tagged.FromSmi(1)
		}
		iso.Regs.Operands[d.Slot] = r
		iso.Regs.Result = r
		return nil
	}
}

func writeInt32ToHeapNumber(d WriteInt32ToHeapNumber) isolate.Entry {
	return func(iso *isolate.Isolate) error {
		ops := &iso.Regs.Operands
		n := rawInt32(ops[d.Int])
		num := ops[d.Number]
		if err := iso.Assert(iso.Heap.InstanceType(num) == heap.HeapNumberType, "%s: %v is not a heap number", d, num); err != nil {
			return err
		}
		f := float64(n)
		b := math.Float64bits(f)
		ops[d.Sign] = tagged.FromSmi(int64(b >> 63))
		ops[d.Scratch] = tagged.FromSmi(int64(b>>52) & 0x7ff)
		iso.Heap.SetHeapNumberValue(num, f)
		iso.Regs.Result = num
		return nil
	}
}

func recordWrite(d RecordWrite) isolate.Entry {
	return func(iso *isolate.Isolate) error {
		ops := &iso.Regs.Operands
		obj, off := ops[d.Object], ops[d.Offset]
		if err := iso.Assert(obj.IsHeapObject() && off.IsSmi(), "%s: object %v offset %v", d, obj, off); err != nil {
			return err
		}
		iso.Heap.RecordWrite(obj, int(off.Smi()))
		ops[d.Scratch] = tagged.FromSmi(int64(obj.Address()) + off.Smi())
		return nil
	}
}

const transcendentalCacheSize = 512

// transcendentalTable memoizes one transcendental function. Entries are
// keyed by the input's bit pattern; results live in old space.
type transcendentalTable struct {
	entries [transcendentalCacheSize]struct {
		in  uint64
		out tagged.Value
	}
	hits, misses int
}

func transcendentalHash(bits uint64) int {
	h := uint32(bits) ^ uint32(bits>>32)
	h ^= h >> 16
	h ^= h >> 8
	return int(h & (transcendentalCacheSize - 1))
}

func (t Transcendental) apply(f float64) float64 {
	switch t {
	case Sin:
		return math.Sin(f)
	case Cos:
		return math.Cos(f)
	default:
		return math.Log(f)
	}
}

func (c *Cache) transcendentalStub(d TranscendentalCache) isolate.Entry {
	table := c.transcendental[d.Type]
	if table == nil {
		table = new(transcendentalTable)
		c.transcendental[d.Type] = table
	}
	return func(iso *isolate.Isolate) error {
		f := runtime.ToNumber(iso.Heap, iso.Regs.Operands[isolate.OperandLeft])
		bits := math.Float64bits(f)
		e := &table.entries[transcendentalHash(bits)]
		if e.out != 0 && e.in == bits {
			table.hits++
			iso.Regs.Result = e.out
			return nil
		}
		table.misses++
		num, err := iso.RT().AllocateHeapNumber(d.Type.apply(f))
		if err != nil {
			return err
		}
		e.in, e.out = bits, num
		iso.Regs.Result = num
		return nil
	}
}

// TranscendentalStats returns the hit and miss counts of a transcendental
// table.
func (c *Cache) TranscendentalStats(t Transcendental) (hits, misses int) {
	if t >= numTranscendentals || c.transcendental[t] == nil {
		return 0, 0
	}
	return c.transcendental[t].hits, c.transcendental[t].misses
}
