package runtime

import (
	"math"

	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// ToBoolean is the truthiness of v.
func ToBoolean(h *heap.Heap, v tagged.Value) bool {
	switch {
	case v.IsSmi():
		return v.Smi() != 0
	case v == h.Undefined(), v == h.Null(), v == h.Boolean(false), v == h.TheHole():
		return false
	case h.InstanceType(v) == heap.HeapNumberType:
		f := h.HeapNumberValue(v)
		return f != 0 && !math.IsNaN(f)
	default:
		return true
	}
}

// ToNumber converts the primitive values the heap models, and their
// wrappers, to a double. Everything else is NaN.
func ToNumber(h *heap.Heap, v tagged.Value) float64 {
	switch {
	case h.IsNumber(v):
		return h.NumberValue(v)
	case v == h.Boolean(true):
		return 1
	case v == h.Boolean(false), v == h.Null():
		return 0
	case h.InstanceType(v) == heap.JSValueType:
		return ToNumber(h, h.Field(v, heap.JSValueValueOffset))
	default:
		return math.NaN()
	}
}

// IsSmiDouble reports whether f is exactly representable as a Smi. Minus
// zero is not.
func IsSmiDouble(f float64) bool {
	return f == math.Trunc(f) &&
		f >= float64(tagged.MinSmi) && f <= float64(tagged.MaxSmi) &&
		!(f == 0 && math.Signbit(f))
}

// NewNumber returns f as a Smi when it fits and as a heap number
// otherwise.
func NewNumber(iso *isolate.Isolate, f float64) (tagged.Value, error) {
	if IsSmiDouble(f) {
		return tagged.FromSmi(int64(f)), nil
	}
	return iso.RT().AllocateHeapNumber(f)
}
