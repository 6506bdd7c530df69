package builtins_test

import (
	"testing"

	"github.com/bplaa-yai/v8m-rb/pkg/builtins"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate/isolatetest"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

type arrayCall func(iso *isolate.Isolate, args ...tagged.Value) (tagged.Value, error)

var arrayForms = []struct {
	name string
	call arrayCall
}{
	{"call", func(iso *isolate.Isolate, args ...tagged.Value) (tagged.Value, error) {
		return builtins.Call(iso, iso.Roots().ArrayFunction, iso.Undefined(), args...)
	}},
	{"construct", func(iso *isolate.Isolate, args ...tagged.Value) (tagged.Value, error) {
		return builtins.Construct(iso, iso.Roots().ArrayFunction, args...)
	}},
}

func arrayLength(iso *isolate.Isolate, arr tagged.Value) int {
	return iso.Heap.SmiField(arr, heap.JSArrayLengthOffset)
}

func TestArrayLiteralKeepsArgumentOrder(t *testing.T) {
	for _, form := range arrayForms {
		t.Run(form.name, func(t *testing.T) {
			iso := isolatetest.New(t)
			arr, err := form.call(iso, smis(1, 2, 3)...)
			if err != nil {
				t.Fatal(err)
			}
			if !iso.Heap.InYoung(arr) {
				t.Error("array was not built by the fast path")
			}
			if n := arrayLength(iso, arr); n != 3 {
				t.Errorf("length %d, want 3", n)
			}
			got := isolatetest.Elements(iso, arr)
			want := smis(1, 2, 3)
			if len(got) != len(want) {
				t.Fatalf("elements %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("element %d = %v, want %v", i, got[i], want[i])
				}
			}
			if iso.Counters.ArrayFunctionNative != 1 {
				t.Errorf("%d native array calls, want 1", iso.Counters.ArrayFunctionNative)
			}
			isolatetest.Verify(t, iso)
		})
	}
}

func TestArrayPreallocatedForms(t *testing.T) {
	tests := []struct {
		name         string
		args         []tagged.Value
		wantLength   int
		wantCapacity int
	}{
		{"no arguments", nil, 0, heap.PreallocatedArrayElements},
		{"zero length", smis(0), 0, heap.PreallocatedArrayElements},
		{"length five", smis(5), 5, 5},
		{"length 1000", smis(1000), 1000, 1000},
	}
	for _, form := range arrayForms {
		for _, tt := range tests {
			t.Run(form.name+"/"+tt.name, func(t *testing.T) {
				iso := isolatetest.New(t)
				arr, err := form.call(iso, tt.args...)
				if err != nil {
					t.Fatal(err)
				}
				if n := arrayLength(iso, arr); n != tt.wantLength {
					t.Errorf("length %d, want %d", n, tt.wantLength)
				}
				elems := isolatetest.Elements(iso, arr)
				if len(elems) != tt.wantCapacity {
					t.Errorf("capacity %d, want %d", len(elems), tt.wantCapacity)
				}
				for i, v := range elems {
					if v != iso.Heap.TheHole() {
						t.Fatalf("element %d = %v, want the hole", i, v)
					}
				}
				elements := iso.Heap.Field(arr, heap.JSObjectElementsOffset)
				if got, want := elements.Address(), arr.Address()+heap.JSArraySize; got != want {
					t.Errorf("elements at %#x, want %#x", got, want)
				}
				isolatetest.Verify(t, iso)
			})
		}
	}
}

func TestArrayGenericFallback(t *testing.T) {
	tests := []struct {
		name       string
		args       func(iso *isolate.Isolate) []tagged.Value
		wantLength int
		wantElems  int
		wantErr    bool
	}{
		{"negative length", func(*isolate.Isolate) []tagged.Value { return smis(-1) }, 0, 0, true},
		{"fractional length", func(iso *isolate.Isolate) []tagged.Value {
			n, _ := iso.Heap.NewHeapNumberOld(2.5)
			return []tagged.Value{n}
		}, 0, 0, true},
		{"huge length", func(*isolate.Isolate) []tagged.Value { return smis(heap.InitialMaxFastElementArray) }, heap.InitialMaxFastElementArray, 0, false},
		{"non-number", func(iso *isolate.Isolate) []tagged.Value { return []tagged.Value{iso.Heap.Boolean(true)} }, 1, 1, false},
	}
	for _, form := range arrayForms {
		for _, tt := range tests {
			t.Run(form.name+"/"+tt.name, func(t *testing.T) {
				iso := isolatetest.New(t)
				arr, err := form.call(iso, tt.args(iso)...)
				if tt.wantErr {
					expectException(t, err, isolate.RangeError)
					return
				}
				if err != nil {
					t.Fatal(err)
				}
				if iso.Heap.InYoung(arr) {
					t.Error("generic array allocated in young space")
				}
				if n := arrayLength(iso, arr); n != tt.wantLength {
					t.Errorf("length %d, want %d", n, tt.wantLength)
				}
				if n := len(isolatetest.Elements(iso, arr)); n != tt.wantElems {
					t.Errorf("%d elements, want %d", n, tt.wantElems)
				}
				if iso.Counters.ArrayFunctionNative != 0 {
					t.Errorf("%d native array calls, want 0", iso.Counters.ArrayFunctionNative)
				}
				isolatetest.Verify(t, iso)
			})
		}
	}
}

func TestArrayFallsBackWhenYoungSpaceIsFull(t *testing.T) {
	cfg := isolate.DefaultConfig()
	cfg.Heap.YoungSpace = 16
	iso := isolatetest.NewWithConfig(t, cfg)

	for _, args := range [][]tagged.Value{nil, smis(0), smis(3), smis(7, 8, 9)} {
		before := iso.Stack.Mark()
		arr, err := builtins.Call(iso, iso.Roots().ArrayFunction, iso.Undefined(), args...)
		if err != nil {
			t.Fatal(err)
		}
		if iso.Heap.InYoung(arr) {
			t.Errorf("Array%v allocated in young space", args)
		}
		if iso.Stack.Mark() != before {
			t.Errorf("Array%v left the stack at %+v, want %+v", args, iso.Stack.Mark(), before)
		}
	}
	if iso.Counters.ArrayFunctionNative != 0 {
		t.Errorf("%d native array calls, want 0", iso.Counters.ArrayFunctionNative)
	}
	isolatetest.Verify(t, iso)
}

func TestArrayConstructFromFunctionBody(t *testing.T) {
	iso := isolatetest.New(t)
	var arr tagged.Value
	fn := isolatetest.Function(t, iso, isolate.FunctionSpec{
		Name: "makeArray",
		Body: func(inv *isolate.Invocation) (tagged.Value, error) {
			v, err := inv.Construct(inv.Isolate().Roots().ArrayFunction, smis(4, 5)...)
			arr = v
			return v, err
		},
	})
	before := iso.Stack.Mark()
	if _, err := iso.Call(fn, iso.Undefined()); err != nil {
		t.Fatal(err)
	}
	if n := arrayLength(iso, arr); n != 2 {
		t.Errorf("length %d, want 2", n)
	}
	if iso.Stack.Mark() != before {
		t.Errorf("stack %+v after call, want %+v", iso.Stack.Mark(), before)
	}
}
