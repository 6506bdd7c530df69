package isolate_test

import (
	"errors"
	"testing"

	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate/isolatetest"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

func newBare(t *testing.T) *isolate.Isolate {
	t.Helper()
	iso, err := isolate.New(isolate.DefaultConfig())
	if err != nil {
		t.Fatalf("isolate.New: %v", err)
	}
	return iso
}

func TestNewBootstrapsRoots(t *testing.T) {
	iso := newBare(t)
	h := iso.Heap
	r := iso.Roots()

	if h.InstanceType(r.GlobalContext) != heap.ContextType {
		t.Fatalf("global context is a %s", h.InstanceType(r.GlobalContext))
	}
	if iso.Regs.Context != r.GlobalContext {
		t.Error("context register does not hold the global context")
	}
	if got := iso.GlobalReceiverOf(r.GlobalContext); got != r.GlobalReceiver {
		t.Errorf("global receiver %v, want %v", got, r.GlobalReceiver)
	}
	slots := []struct {
		index int
		want  tagged.Value
	}{
		{heap.ContextGlobalIndex, r.GlobalObject},
		{heap.ContextArrayFunctionIndex, r.ArrayFunction},
		{heap.ContextNumberFunctionIndex, r.NumberFunction},
		{heap.ContextBooleanFunctionIndex, r.BooleanFunction},
	}
	for _, s := range slots {
		if got := iso.ContextSlot(r.GlobalContext, s.index); got != s.want {
			t.Errorf("context slot %d = %v, want %v", s.index, got, s.want)
		}
	}

	functions := []struct {
		name    string
		fn      tagged.Value
		code    isolate.Builtin
		formals int
	}{
		{"Array", r.ArrayFunction, isolate.ArrayCode, heap.DontAdaptArgumentsSentinel},
		{"Number", r.NumberFunction, isolate.NumberConstructor, heap.DontAdaptArgumentsSentinel},
		{"Boolean", r.BooleanFunction, isolate.BooleanConstructor, heap.DontAdaptArgumentsSentinel},
		{"call", r.CallFunction, isolate.FunctionCall, heap.DontAdaptArgumentsSentinel},
		{"apply", r.ApplyFunction, isolate.FunctionApply, 2},
	}
	for _, f := range functions {
		if !iso.IsFunction(f.fn) {
			t.Errorf("%s is not a function", f.name)
			continue
		}
		if got := iso.FunctionCode(f.fn); got != f.code.Code() {
			t.Errorf("%s code %v, want %s", f.name, got, f.code)
		}
		if got := iso.FormalParameterCount(f.fn); got != f.formals {
			t.Errorf("%s formals %d, want %d", f.name, got, f.formals)
		}
		if iso.FunctionContext(f.fn) != r.GlobalContext {
			t.Errorf("%s is not bound to the global context", f.name)
		}
	}
	if iso.ConstructStub(r.ArrayFunction) != isolate.ArrayConstructCode.Code() {
		t.Error("Array function has the wrong construct stub")
	}
	if iso.InitialMap(r.ArrayFunction) != r.ArrayMap {
		t.Error("Array function initial map is not the array map")
	}
	if err := h.Verify(); err != nil {
		t.Fatalf("bootstrapped heap does not verify: %v", err)
	}
}

func TestCodeTable(t *testing.T) {
	iso := newBare(t)
	if _, err := iso.Code(isolate.FunctionApply.Code()); !errors.Is(err, isolate.ErrUnknownCode) {
		t.Errorf("uninstalled builtin: %v", err)
	}
	if _, err := iso.Code(isolate.CodeID(iso.CodeCount())); !errors.Is(err, isolate.ErrUnknownCode) {
		t.Errorf("code past the table: %v", err)
	}

	called := 0
	id := iso.AddCode("noop", isolate.StubCode, func(iso *isolate.Isolate) error {
		called++
		return nil
	})
	code, err := iso.Code(id)
	if err != nil {
		t.Fatal(err)
	}
	if code.Name != "noop" || code.Kind != isolate.StubCode || code.ID != id {
		t.Errorf("code %+v", code)
	}
	if err := iso.CallCode(id); err != nil {
		t.Fatal(err)
	}
	if err := iso.JumpCode(id); err != nil {
		t.Fatal(err)
	}
	if called != 2 {
		t.Errorf("code ran %d times, want 2", called)
	}
}

func TestCallCodeChecksReturnAddress(t *testing.T) {
	iso := newBare(t)
	outer := iso.Regs.RA
	var seen tagged.Value
	good := iso.AddCode("good", isolate.StubCode, func(iso *isolate.Isolate) error {
		seen = iso.Regs.RA
		return nil
	})
	bad := iso.AddCode("bad", isolate.StubCode, func(iso *isolate.Isolate) error {
		iso.Regs.RA = tagged.FromSmi(-1)
		return nil
	})

	if err := iso.CallCode(good); err != nil {
		t.Fatal(err)
	}
	if seen == outer {
		t.Error("callee did not get a fresh return address")
	}
	if iso.Regs.RA != outer {
		t.Errorf("return address %v after call, want %v", iso.Regs.RA, outer)
	}
	if err := iso.CallCode(bad); err == nil {
		t.Error("clobbered return address went unnoticed")
	}
	if iso.Regs.RA != outer {
		t.Errorf("return address %v after bad call, want %v", iso.Regs.RA, outer)
	}
}

func TestRuntimeCallsInvalidateRawAddresses(t *testing.T) {
	iso := newBare(t)
	epoch := iso.Heap.Epoch()
	err := iso.RT().Throw(isolate.TypeError, "x")
	if !errors.Is(err, isolate.ErrNoRuntime) {
		t.Errorf("missing runtime: %v", err)
	}
	if iso.Heap.Epoch() == epoch {
		t.Error("runtime call did not end the raw address epoch")
	}
	if iso.Counters.RuntimeCalls != 1 {
		t.Errorf("%d runtime calls, want 1", iso.Counters.RuntimeCalls)
	}

	raw := iso.Heap.Revalidate(iso.Roots().GlobalObject)
	iso.RT()
	defer func() {
		if r := recover(); r == nil {
			t.Error("stale raw address was accepted")
		}
	}()
	iso.Heap.Load(raw)
}

func TestAssert(t *testing.T) {
	iso := newBare(t)
	if err := iso.Assert(true, "fine"); err != nil {
		t.Errorf("passing assert: %v", err)
	}
	if err := iso.Assert(false, "count %d", 3); !errors.Is(err, isolate.ErrAssertion) {
		t.Errorf("failing assert: %v", err)
	}
	iso.Flags.DebugCode = false
	if err := iso.Assert(false, "ignored"); err != nil {
		t.Errorf("assert without debug code: %v", err)
	}
}

func TestDebugger(t *testing.T) {
	iso := newBare(t)
	if iso.Debug.StepInPending() {
		t.Fatal("fresh isolate has a step armed")
	}
	iso.Debug.ArmStepIn()
	if _, err := iso.Heap.TryAllocate(2, heap.SizeInWords); !errors.Is(err, heap.ErrNeedsSlowPath) {
		t.Errorf("inline allocation with a step armed: %v", err)
	}
	iso.Debug.Disarm()
	if _, err := iso.Heap.TryAllocate(2, heap.SizeInWords); err != nil {
		t.Errorf("inline allocation after disarm: %v", err)
	}
}

func TestOperandNames(t *testing.T) {
	tests := []struct {
		op   isolate.Operand
		want string
		ok   bool
	}{
		{isolate.OperandLeft, "left", true},
		{isolate.OperandScratch2, "scratch2", true},
		{isolate.OperandAddress, "address", true},
		{12, "slot12", true},
		{isolate.NumOperands, "slot16", false},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Operand(%d) = %q, want %q", uint8(tt.op), got, tt.want)
		}
		if got := tt.op.Valid(); got != tt.ok {
			t.Errorf("Operand(%d).Valid() = %v", uint8(tt.op), got)
		}
	}
}

func TestInvocationArguments(t *testing.T) {
	iso := isolatetest.New(t)
	var got []tagged.Value
	var past tagged.Value
	var fnSeen tagged.Value
	var kind frames.Kind
	fn := isolatetest.Function(t, iso, isolate.FunctionSpec{
		Name:    "args",
		Formals: heap.DontAdaptArgumentsSentinel,
		Body: func(inv *isolate.Invocation) (tagged.Value, error) {
			got = inv.Args()
			past = inv.Arg(inv.Argc())
			fnSeen = inv.Function()
			kind = inv.Isolate().Stack.Kind()
			return tagged.FromSmi(int64(inv.Argc())), nil
		},
	})
	result, err := iso.Call(fn, iso.Undefined(), tagged.FromSmi(1), tagged.FromSmi(2), tagged.FromSmi(3))
	if err != nil {
		t.Fatal(err)
	}
	if result != tagged.FromSmi(3) {
		t.Errorf("argc %v, want 3", result)
	}
	for i, v := range got {
		if v != tagged.FromSmi(int64(i+1)) {
			t.Errorf("argument %d = %v", i, v)
		}
	}
	if past != iso.Undefined() {
		t.Errorf("argument past the end = %v, want undefined", past)
	}
	if fnSeen != fn {
		t.Error("invocation reports the wrong function")
	}
	if kind != frames.JavaScript {
		t.Errorf("body runs in a %s frame", kind)
	}
}

func TestCallNonFunction(t *testing.T) {
	iso := isolatetest.New(t)
	before := iso.Stack.Mark()
	_, err := iso.Call(iso.Heap.Null(), iso.Undefined(), tagged.FromSmi(1))
	var exc *isolate.Exception
	if !errors.As(err, &exc) || exc.Kind != isolate.TypeError {
		t.Fatalf("calling null: %v", err)
	}
	if iso.Stack.Mark() != before {
		t.Errorf("stack %+v after exception, want %+v", iso.Stack.Mark(), before)
	}
}

func TestNewFunctionRejectsUnknownCode(t *testing.T) {
	iso := newBare(t)
	_, err := iso.NewFunction(isolate.FunctionSpec{Name: "ghost", Code: isolate.CodeID(999)})
	if !errors.Is(err, isolate.ErrUnknownCode) {
		t.Errorf("NewFunction with unknown code: %v", err)
	}
}
