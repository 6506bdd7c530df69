// Package builtins holds the calling-convention trampolines and the fast
// paths for construction, arrays and apply/call. Every builtin is an
// isolate.Entry: it reads Regs and the stack, pops its receiver and
// arguments and leaves the result in Regs.Result.
package builtins

import (
	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Install fills the reserved builtin slots of iso.
func Install(iso *isolate.Isolate) {
	table := map[isolate.Builtin]isolate.Entry{
		isolate.ArgumentsAdaptorTrampoline:   ArgumentsAdaptorTrampoline,
		isolate.JSConstructCall:              JSConstructCall,
		isolate.JSConstructStubGeneric:       JSConstructStubGeneric,
		isolate.JSConstructStubApi:           JSConstructStubApi,
		isolate.JSEntryTrampoline:            JSEntryTrampoline,
		isolate.JSConstructEntryTrampoline:   JSConstructEntryTrampoline,
		isolate.LazyCompile:                  LazyCompile,
		isolate.FunctionCall:                 FunctionCall,
		isolate.FunctionApply:                FunctionApply,
		isolate.ArrayCode:                    ArrayCode,
		isolate.ArrayConstructCode:           ArrayConstructCode,
		isolate.ArrayCodeGeneric:             ArrayCodeGeneric,
		isolate.CallNonFunction:              callNonFunction(false),
		isolate.CallNonFunctionAsConstructor: callNonFunction(true),
		isolate.NumberConstructor:            Adaptor(numberConstructor, NoExtraArguments),
		isolate.BooleanConstructor:           Adaptor(booleanConstructor, NoExtraArguments),
	}
	for b, entry := range table {
		iso.InstallBuiltin(b, entry)
	}
}

// unwind puts the stack back the way the caller left it and pops the
// caller's receiver and argc arguments, as a normal return would have.
func unwind(iso *isolate.Isolate, mark frames.Mark, argc int, err error) error {
	iso.Stack.Restore(mark)
	iso.Stack.Drop(argc + 1)
	return err
}

// leave tears down a frame of kind k, hands its return address back to the
// caller and drops argc+1 words of the caller's arguments.
func leave(iso *isolate.Isolate, k frames.Kind, argc int) error {
	ra, err := iso.Stack.Leave(k)
	if err != nil {
		return err
	}
	iso.Regs.RA = ra
	iso.Stack.Drop(argc + 1)
	return nil
}

// restoreContext reloads the context register from the current frame.
func restoreContext(iso *isolate.Isolate) error {
	ctx, err := iso.Stack.Slot(frames.FieldContext)
	if err != nil {
		return err
	}
	iso.Regs.Context = ctx
	return nil
}

// savedArgc reads the Smi-encoded count saved in the current frame.
func savedArgc(iso *isolate.Isolate) (int, error) {
	v, err := iso.Stack.Slot(frames.FieldArgc)
	if err != nil {
		return 0, err
	}
	return int(v.Smi()), nil
}

func smi(n int) tagged.Value {
	return tagged.FromSmi(int64(n))
}

func callNonFunction(asConstructor bool) isolate.Entry {
	return func(iso *isolate.Isolate) error {
		argc := iso.Regs.Argc
		what := "a function"
		if asConstructor {
			what = "a constructor"
		}
		err := iso.RT().Throw(isolate.TypeError, "%v is not %s", iso.Regs.Function, what)
		iso.Stack.Drop(argc + 1)
		return err
	}
}
