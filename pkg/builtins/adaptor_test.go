package builtins_test

import (
	"errors"
	"testing"

	"github.com/bplaa-yai/v8m-rb/pkg/builtins"
	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate/isolatetest"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

func smis(ns ...int64) []tagged.Value {
	out := make([]tagged.Value, len(ns))
	for i, n := range ns {
		out[i] = tagged.FromSmi(n)
	}
	return out
}

func expectException(t *testing.T, err error, kind isolate.ErrorKind) *isolate.Exception {
	t.Helper()
	var exc *isolate.Exception
	if !errors.As(err, &exc) {
		t.Fatalf("got %v, want a %s exception", err, kind)
	}
	if exc.Kind != kind {
		t.Fatalf("got %s (%s), want %s", exc.Kind, exc.Message, kind)
	}
	return exc
}

func TestArityAdaptation(t *testing.T) {
	for actual := 0; actual <= 4; actual++ {
		for expected := 0; expected <= 4; expected++ {
			iso := isolatetest.New(t)
			var c isolatetest.Capture
			fn := isolatetest.Function(t, iso, isolate.FunctionSpec{
				Name:    "f",
				Body:    c.Body(tagged.FromSmi(99)),
				Formals: expected,
			})
			recv := iso.Roots().GlobalReceiver
			args := smis(10, 20, 30, 40)[:actual]
			before := iso.Stack.Mark()

			result, err := iso.Call(fn, recv, args...)
			if err != nil {
				t.Fatalf("a=%d e=%d: %v", actual, expected, err)
			}
			if result != tagged.FromSmi(99) {
				t.Errorf("a=%d e=%d: result %v", actual, expected, result)
			}
			if iso.Stack.Mark() != before {
				t.Errorf("a=%d e=%d: stack %+v after return, want %+v", actual, expected, iso.Stack.Mark(), before)
			}
			if c.Receiver != recv {
				t.Errorf("a=%d e=%d: receiver %v, want %v", actual, expected, c.Receiver, recv)
			}
			if len(c.Args) != expected {
				t.Fatalf("a=%d e=%d: callee saw %d arguments", actual, expected, len(c.Args))
			}
			for i, got := range c.Args {
				want := iso.Undefined()
				if i < actual {
					want = args[i]
				}
				if got != want {
					t.Errorf("a=%d e=%d: argument %d = %v, want %v", actual, expected, i, got, want)
				}
			}
			wantAdaptor := 0
			if actual != expected {
				wantAdaptor = 1
			}
			if iso.Counters.AdaptorCalls != wantAdaptor {
				t.Errorf("a=%d e=%d: %d adaptor calls, want %d", actual, expected, iso.Counters.AdaptorCalls, wantAdaptor)
			}
		}
	}
}

func TestAdaptorFrameRecordsActualCount(t *testing.T) {
	iso := isolatetest.New(t)
	var kinds []frames.Kind
	var savedArgc tagged.Value
	fn := isolatetest.Function(t, iso, isolate.FunctionSpec{
		Name:    "inspect",
		Formals: 1,
		Body: func(inv *isolate.Invocation) (tagged.Value, error) {
			fs, err := inv.Isolate().Stack.Frames()
			if err != nil {
				return 0, err
			}
			for _, fi := range fs {
				kinds = append(kinds, fi.Kind)
				if fi.Kind == frames.ArgumentsAdaptor {
					savedArgc = fi.Fields[frames.FieldArgc]
				}
			}
			return iso.Undefined(), nil
		},
	})

	if _, err := iso.Call(fn, iso.Undefined(), smis(1, 2, 3)...); err != nil {
		t.Fatal(err)
	}
	if len(kinds) != 2 || kinds[0] != frames.JavaScript || kinds[1] != frames.ArgumentsAdaptor {
		t.Fatalf("frames %v, want [javascript arguments-adaptor]", kinds)
	}
	if savedArgc != tagged.FromSmi(3) {
		t.Errorf("adaptor frame argc %v, want 3", savedArgc)
	}
}

func TestDontAdaptSentinelSkipsAdaptorFrame(t *testing.T) {
	iso := isolatetest.New(t)
	var c isolatetest.Capture
	var sawAdaptor bool
	var walkErr error
	fn := isolatetest.Function(t, iso, isolate.FunctionSpec{
		Name:    "varargs",
		Formals: heap.DontAdaptArgumentsSentinel,
		Body: func(inv *isolate.Invocation) (tagged.Value, error) {
			walkErr = inv.Isolate().Stack.Walk(func(fi frames.FrameInfo) bool {
				sawAdaptor = sawAdaptor || fi.Kind == frames.ArgumentsAdaptor
				return true
			})
			return c.Body(0)(inv)
		},
	})

	if _, err := iso.Call(fn, iso.Undefined(), smis(1, 2)...); err != nil {
		t.Fatal(err)
	}
	if walkErr != nil {
		t.Errorf("walk: %v", walkErr)
	}
	if sawAdaptor {
		t.Error("don't-adapt callee ran under an adaptor frame")
	}
	if len(c.Args) != 2 {
		t.Errorf("callee saw %d arguments, want 2", len(c.Args))
	}
	if iso.Counters.AdaptorCalls != 0 {
		t.Errorf("%d adaptor calls, want 0", iso.Counters.AdaptorCalls)
	}
}

func TestAdaptorPassesExceptionsThrough(t *testing.T) {
	iso := isolatetest.New(t)
	fn := isolatetest.Function(t, iso, isolate.FunctionSpec{
		Name:    "thrower",
		Formals: 3,
		Body: func(inv *isolate.Invocation) (tagged.Value, error) {
			return 0, inv.Isolate().RT().Throw(isolate.TypeError, "boom")
		},
	})
	before := iso.Stack.Mark()
	_, err := iso.Call(fn, iso.Undefined(), smis(1)...)
	expectException(t, err, isolate.TypeError)
	if iso.Stack.Mark() != before {
		t.Errorf("stack %+v after exception, want %+v", iso.Stack.Mark(), before)
	}
}

func TestCFunctionAdaptorPushesCalledFunction(t *testing.T) {
	iso := isolatetest.New(t)
	var seen *builtins.NativeArguments
	native := func(iso *isolate.Isolate, args *builtins.NativeArguments) (tagged.Value, error) {
		seen = args
		return tagged.FromSmi(int64(args.Argc)), nil
	}
	code := iso.AddCode("native", isolate.NativeCode, builtins.Adaptor(native, builtins.NeedsCalledFunction))
	fn := isolatetest.Function(t, iso, isolate.FunctionSpec{Name: "native", Code: code, Formals: heap.DontAdaptArgumentsSentinel})

	before := iso.Stack.Mark()
	result, err := iso.Call(fn, iso.Heap.Null(), smis(5, 6)...)
	if err != nil {
		t.Fatal(err)
	}
	if result != tagged.FromSmi(4) {
		t.Errorf("argc seen by native = %v, want receiver + 2 args + function", result)
	}
	if seen.CalledFunction() != fn {
		t.Errorf("called function %v, want %v", seen.CalledFunction(), fn)
	}
	if seen.Receiver != iso.Heap.Null() || seen.Args[0] != tagged.FromSmi(5) || seen.Args[1] != tagged.FromSmi(6) {
		t.Errorf("native saw receiver %v args %v", seen.Receiver, seen.Args)
	}
	if seen.Construct {
		t.Error("plain call reported as construct")
	}
	if iso.Stack.Mark() != before {
		t.Errorf("stack %+v after return, want %+v", iso.Stack.Mark(), before)
	}
}
