// Package isolatetest builds ready-to-run isolates for tests.
package isolatetest

import (
	"testing"

	"github.com/bplaa-yai/v8m-rb/pkg/builtins"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/runtime"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// New returns an isolate with the default configuration, the builtins and
// the default runtime installed.
func New(t testing.TB, opts ...isolate.Option) *isolate.Isolate {
	t.Helper()
	return NewWithConfig(t, isolate.DefaultConfig(), opts...)
}

// NewWithConfig is New with an explicit configuration.
func NewWithConfig(t testing.TB, cfg isolate.Config, opts ...isolate.Option) *isolate.Isolate {
	t.Helper()
	iso, err := isolate.New(cfg, opts...)
	if err != nil {
		t.Fatalf("isolate.New: %v", err)
	}
	builtins.Install(iso)
	runtime.Install(iso)
	return iso
}

// Function creates a function or fails the test.
func Function(t testing.TB, iso *isolate.Isolate, spec isolate.FunctionSpec) tagged.Value {
	t.Helper()
	fn, err := iso.NewFunction(spec)
	if err != nil {
		t.Fatalf("NewFunction(%s): %v", spec.Name, err)
	}
	return fn
}

// Capture records what a function body saw.
type Capture struct {
	Calls    int
	Receiver tagged.Value
	Args     []tagged.Value
	SP       int // stack pointer inside the body
}

// Body returns a body that records its call and returns result. A zero
// result returns the receiver.
func (c *Capture) Body(result tagged.Value) isolate.Body {
	return func(inv *isolate.Invocation) (tagged.Value, error) {
		c.Calls++
		c.Receiver = inv.Receiver()
		c.Args = inv.Args()
		c.SP = inv.Isolate().Stack.SP()
		if result == tagged.Zero {
			return inv.Receiver(), nil
		}
		return result, nil
	}
}

// Array builds an array holding vals through the runtime.
func Array(t testing.TB, iso *isolate.Isolate, vals ...tagged.Value) tagged.Value {
	t.Helper()
	args := vals
	if len(vals) == 1 {
		// A single number would be taken as a length.
		args = []tagged.Value{vals[0], vals[0]}
	}
	arr, err := iso.RT().NewArray(iso.Roots().ArrayFunction, args)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	iso.Heap.SetField(arr, heap.JSArrayLengthOffset, tagged.FromSmi(int64(len(vals))))
	return arr
}

// Verify fails the test if the heap does not verify.
func Verify(t testing.TB, iso *isolate.Isolate) {
	t.Helper()
	if err := iso.Heap.Verify(); err != nil {
		t.Fatalf("heap verification: %v", err)
	}
}

// Elements reads the element store of an array.
func Elements(iso *isolate.Isolate, arr tagged.Value) []tagged.Value {
	h := iso.Heap
	store := h.Field(arr, heap.JSObjectElementsOffset)
	out := make([]tagged.Value, h.FixedArrayLength(store))
	for i := range out {
		out[i] = h.FixedArrayGet(store, i)
	}
	return out
}
