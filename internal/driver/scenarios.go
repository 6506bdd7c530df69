package driver

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bplaa-yai/v8m-rb/internal/compiler"
	"github.com/bplaa-yai/v8m-rb/pkg/builtins"
	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/interpreter"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/stubs"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Env is what a scenario runs against.
type Env struct {
	Iso   *isolate.Isolate
	Stubs *stubs.Cache
}

// Scenario is one self-check of a protocol.
type Scenario struct {
	Name string
	Run  func(env *Env) error
}

// Scenarios are run in this order.
var Scenarios = []Scenario{
	{"arity adaptor", arityAdaptor},
	{"construct fast path", constructFastPath},
	{"array forms", arrayForms},
	{"apply", apply},
	{"function call", functionCall},
	{"number natives", numberNatives},
	{"binary op stubs", binaryOpStubs},
	{"transcendental cache", transcendentalCache},
	{"write barrier", writeBarrier},
	{"expressions", expressions},
}

func smis(ns ...int64) []tagged.Value {
	vs := make([]tagged.Value, len(ns))
	for i, n := range ns {
		vs[i] = tagged.FromSmi(n)
	}
	return vs
}

// recorder is a function body that keeps what it was called with.
type recorder struct {
	receiver tagged.Value
	args     []tagged.Value
}

func (r *recorder) body(inv *isolate.Invocation) (tagged.Value, error) {
	r.receiver = inv.Receiver()
	r.args = inv.Args()
	return tagged.FromSmi(int64(inv.Argc())), nil
}

func checkStack(iso *isolate.Isolate, before frames.Mark) error {
	if iso.Stack.Mark() != before {
		return fmt.Errorf("stack %+v, want %+v", iso.Stack.Mark(), before)
	}
	return nil
}

func arityAdaptor(env *Env) error {
	iso := env.Iso
	var r recorder
	fn, err := iso.NewFunction(isolate.FunctionSpec{Name: "three", Formals: 3, Body: r.body})
	if err != nil {
		return err
	}
	before := iso.Stack.Mark()
	adapted := iso.Counters.AdaptorCalls
	got, err := builtins.Call(iso, fn, iso.Undefined(), smis(1)...)
	if err != nil {
		return err
	}
	if got != tagged.FromSmi(3) || len(r.args) != 3 || r.args[0] != tagged.FromSmi(1) ||
		r.args[1] != iso.Undefined() || r.args[2] != iso.Undefined() {
		return fmt.Errorf("callee saw argc %v args %v", got, r.args)
	}
	if iso.Counters.AdaptorCalls != adapted+1 {
		return errors.New("call did not go through the adaptor")
	}
	return checkStack(iso, before)
}

func constructFastPath(env *Env) error {
	iso := env.Iso
	spec := isolate.ObjectMapSpec(2, 2, 0)
	var r recorder
	fn, err := iso.NewFunction(isolate.FunctionSpec{Name: "Point", Formals: 2, Body: r.body, InitialMap: &spec})
	if err != nil {
		return err
	}
	fast := iso.Counters.ConstructFastPath
	obj, err := builtins.Construct(iso, fn, smis(1, 2)...)
	if err != nil {
		return err
	}
	if iso.Counters.ConstructFastPath != fast+1 {
		return errors.New("construct took the slow path")
	}
	if !iso.IsJSObject(obj) || r.receiver != obj {
		return fmt.Errorf("construct returned %v, receiver was %v", obj, r.receiver)
	}
	if iso.Heap.MapOf(obj) != iso.InitialMap(fn) {
		return errors.New("object does not have the initial map")
	}
	return nil
}

func arrayForms(env *Env) error {
	iso := env.Iso
	h := iso.Heap
	array := iso.Roots().ArrayFunction
	native := iso.Counters.ArrayFunctionNative

	lit, err := builtins.Call(iso, array, iso.Undefined(), smis(7, 8, 9)...)
	if err != nil {
		return err
	}
	if h.InstanceType(lit) != heap.JSArrayType || h.Field(lit, heap.JSArrayLengthOffset) != tagged.FromSmi(3) {
		return fmt.Errorf("Array(7, 8, 9) = %v", lit)
	}
	pre, err := builtins.Construct(iso, array, smis(5)...)
	if err != nil {
		return err
	}
	elements := h.Field(pre, heap.JSObjectElementsOffset)
	if h.Field(pre, heap.JSArrayLengthOffset) != tagged.FromSmi(5) || h.FixedArrayLength(elements) != 5 {
		return fmt.Errorf("new Array(5) has length %v", h.Field(pre, heap.JSArrayLengthOffset))
	}
	if h.FixedArrayGet(elements, 0) != h.TheHole() {
		return errors.New("new Array(5) is not filled with holes")
	}
	if iso.Counters.ArrayFunctionNative != native+2 {
		return fmt.Errorf("%d native array constructions, want 2", iso.Counters.ArrayFunctionNative-native)
	}
	return nil
}

func apply(env *Env) error {
	iso := env.Iso
	var r recorder
	fn, err := iso.NewFunction(isolate.FunctionSpec{Name: "sum", Formals: 2, Body: r.body})
	if err != nil {
		return err
	}
	list, err := builtins.Call(iso, iso.Roots().ArrayFunction, iso.Undefined(), smis(4, 5)...)
	if err != nil {
		return err
	}
	before := iso.Stack.Mark()
	if _, err := builtins.Call(iso, iso.Roots().ApplyFunction, fn, iso.Heap.Null(), list); err != nil {
		return err
	}
	if r.receiver != iso.Roots().GlobalReceiver {
		return fmt.Errorf("null receiver became %v", r.receiver)
	}
	if len(r.args) != 2 || r.args[0] != tagged.FromSmi(4) || r.args[1] != tagged.FromSmi(5) {
		return fmt.Errorf("callee saw %v", r.args)
	}
	return checkStack(iso, before)
}

func functionCall(env *Env) error {
	iso := env.Iso
	var r recorder
	fn, err := iso.NewFunction(isolate.FunctionSpec{Name: "f", Formals: 1, Body: r.body})
	if err != nil {
		return err
	}
	before := iso.Stack.Mark()
	if _, err := builtins.Call(iso, iso.Roots().CallFunction, fn, tagged.FromSmi(9), tagged.FromSmi(1)); err != nil {
		return err
	}
	if iso.Heap.InstanceType(r.receiver) != heap.JSValueType {
		return fmt.Errorf("primitive receiver was not wrapped: %v", r.receiver)
	}
	if len(r.args) != 1 || r.args[0] != tagged.FromSmi(1) {
		return fmt.Errorf("callee saw %v", r.args)
	}
	_, err = builtins.Call(iso, iso.Roots().CallFunction, tagged.FromSmi(1))
	var exc *isolate.Exception
	if !errors.As(err, &exc) || exc.Kind != isolate.TypeError {
		return fmt.Errorf("calling a Smi: %v", err)
	}
	return checkStack(iso, before)
}

func numberNatives(env *Env) error {
	iso := env.Iso
	got, err := builtins.Call(iso, iso.Roots().NumberFunction, iso.Undefined(), iso.Heap.Boolean(true))
	if err != nil {
		return err
	}
	if got != tagged.FromSmi(1) {
		return fmt.Errorf("Number(true) = %v", got)
	}
	wrapped, err := builtins.Construct(iso, iso.Roots().BooleanFunction, tagged.FromSmi(0))
	if err != nil {
		return err
	}
	if iso.Heap.Field(wrapped, heap.JSValueValueOffset) != iso.Heap.Boolean(false) {
		return fmt.Errorf("new Boolean(0) wraps %v", iso.Heap.Field(wrapped, heap.JSValueValueOffset))
	}
	return nil
}

func binaryOpStubs(env *Env) error {
	iso := env.Iso
	h := iso.Heap
	mod, err := env.Stubs.NewBinaryOpSite(stubs.NewBinaryOp(stubs.OpMod, stubs.NoOverwrite, false, 8, true))
	if err != nil {
		return err
	}
	if got, err := mod.Call(tagged.FromSmi(29), tagged.FromSmi(8)); err != nil || got != tagged.FromSmi(5) {
		return fmt.Errorf("29 %% 8 = %v, %v", got, err)
	}

	add, err := env.Stubs.NewBinaryOpSite(stubs.BinaryOp{Op: stubs.OpAdd})
	if err != nil {
		return err
	}
	got, err := add.Call(tagged.FromSmi(tagged.MaxSmi), tagged.FromSmi(1))
	if err != nil {
		return err
	}
	if h.NumberValue(got) != float64(tagged.MaxSmi+1) {
		return fmt.Errorf("overflowing add = %v", h.NumberValue(got))
	}
	half, err := h.NewHeapNumberOld(0.5)
	if err != nil {
		return err
	}
	if got, err = add.Call(tagged.FromSmi(1), half); err != nil {
		return err
	}
	if h.NumberValue(got) != 1.5 {
		return fmt.Errorf("1 + 0.5 = %v", h.NumberValue(got))
	}
	if d := add.Stub().Desc.(stubs.BinaryOp); d.TypeInfo != stubs.TypeHeapNumbers {
		return fmt.Errorf("add site stayed on %s", d)
	}
	return nil
}

func transcendentalCache(env *Env) error {
	iso := env.Iso
	s, err := env.Stubs.Get(stubs.TranscendentalCache{Type: stubs.Sin})
	if err != nil {
		return err
	}
	var first tagged.Value
	for i := 0; i < 2; i++ {
		iso.Regs.Operands[isolate.OperandLeft] = tagged.FromSmi(1)
		if err := iso.CallCode(s.Code); err != nil {
			return err
		}
		if f := iso.Heap.HeapNumberValue(iso.Regs.Result); f != math.Sin(1) {
			return fmt.Errorf("sin(1) = %v", f)
		}
		if i == 1 && iso.Regs.Result != first {
			return errors.New("second sin(1) missed the cache")
		}
		first = iso.Regs.Result
	}
	return nil
}

func writeBarrier(env *Env) error {
	iso := env.Iso
	h := iso.Heap
	arr, err := h.NewFixedArray(1, iso.Undefined())
	if err != nil {
		return err
	}
	young, err := builtins.Call(iso, iso.Roots().ArrayFunction, iso.Undefined())
	if err != nil {
		return err
	}
	if !h.InYoung(young) {
		return errors.New("fast path array is not young")
	}
	offset := heap.FixedArrayOffsetOf(0)
	h.Store(h.Revalidate(arr).Plus(offset), young)

	d := stubs.RecordWrite{Object: isolate.OperandObject, Offset: isolate.OperandAddress, Scratch: isolate.OperandScratch0}
	s, err := env.Stubs.Get(d)
	if err != nil {
		return err
	}
	iso.Regs.Operands[d.Object] = arr
	iso.Regs.Operands[d.Offset] = tagged.FromSmi(int64(offset))
	if err := iso.CallCode(s.Code); err != nil {
		return err
	}
	slot := arr.Address() + tagged.Address(offset)
	for _, a := range h.RememberedSet() {
		if a == slot {
			return nil
		}
	}
	return fmt.Errorf("slot %#x is not in the remembered set", uint64(slot))
}

func expressions(env *Env) error {
	c := compiler.New(env.Iso, env.Stubs)
	c.Out = io.Discard
	for _, e := range []struct {
		src  string
		want string
	}{
		{"(1 + 0.5) * 2", "3"},
		{"-7 % 4", "-3"},
		{"1 / -(0)", "-Infinity"},
		{"(1 << 30) | 1", "1073741825"},
		{"true + sin(0)", "1"},
	} {
		v, err := c.Evaluate(e.src)
		if err != nil {
			return err
		}
		if got := interpreter.Describe(env.Iso.Heap, v); got != e.want {
			return fmt.Errorf("%s = %s, want %s", e.src, got, e.want)
		}
	}
	return nil
}
