package isolate

import (
	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Every code entry follows one convention. On entry Regs.Argc holds the
// argument count and the stack holds the receiver followed by the
// arguments, the last argument at sp. On return, normal or not, the callee
// has popped the receiver and the arguments and restored fp.

// InvokeFlag selects between a call and a tail call.
type InvokeFlag uint8

const (
	CallFunctionFlag InvokeFlag = iota
	JumpFunctionFlag
)

// InvokeFunction invokes fn with argc arguments already on the stack. The
// callee's context is loaded from the function.
func (iso *Isolate) InvokeFunction(fn tagged.Value, argc int, flag InvokeFlag) error {
	iso.Regs.Function = fn
	iso.Regs.Context = iso.FunctionContext(fn)
	return iso.InvokeCode(iso.FunctionCode(fn), iso.FormalParameterCount(fn), argc, flag)
}

// InvokeCode runs code directly when the counts agree and through the
// arguments adaptor otherwise.
func (iso *Isolate) InvokeCode(code CodeID, expected, actual int, flag InvokeFlag) error {
	iso.Regs.Argc = actual
	if expected == actual {
		if flag == JumpFunctionFlag {
			return iso.JumpCode(code)
		}
		return iso.CallCode(code)
	}
	iso.Regs.Expected = expected
	iso.Regs.Entry = code
	if flag == JumpFunctionFlag {
		return iso.JumpBuiltin(ArgumentsAdaptorTrampoline)
	}
	return iso.CallBuiltin(ArgumentsAdaptorTrampoline)
}

// Call pushes recv and args and calls fn. Non-functions throw.
func (iso *Isolate) Call(fn, recv tagged.Value, args ...tagged.Value) (tagged.Value, error) {
	iso.Stack.Push(recv)
	iso.Stack.PushAll(args...)
	var err error
	if iso.IsFunction(fn) {
		err = iso.InvokeFunction(fn, len(args), CallFunctionFlag)
	} else {
		iso.Regs.Function = fn
		iso.Regs.Argc = len(args)
		err = iso.CallBuiltin(CallNonFunction)
	}
	if err != nil {
		return 0, err
	}
	return iso.Regs.Result, nil
}

// Construct pushes the receiver slot and args and runs new fn(...args).
func (iso *Isolate) Construct(fn tagged.Value, args ...tagged.Value) (tagged.Value, error) {
	iso.Stack.Push(fn)
	iso.Stack.PushAll(args...)
	iso.Regs.Function = fn
	iso.Regs.Argc = len(args)
	if err := iso.CallBuiltin(JSConstructCall); err != nil {
		return 0, err
	}
	return iso.Regs.Result, nil
}

// Body is a function's code at the language level. It returns the value
// of the call.
type Body func(inv *Invocation) (tagged.Value, error)

// Invocation is a running function's view of its call.
type Invocation struct {
	iso      *Isolate
	function tagged.Value
	argc     int
	base     int // address of the last argument
}

// jsFrameReserve is the headroom a function needs to set up its frame.
const jsFrameReserve = 8

func (iso *Isolate) functionEntry(body Body) Entry {
	return func(iso *Isolate) error {
		argc := iso.Regs.Argc
		fn := iso.Regs.Function
		mark := iso.Stack.Mark()
		if iso.Stack.Remaining() < jsFrameReserve {
			err := iso.RT().Throw(RangeError, "Maximum call stack size exceeded")
			iso.Stack.Drop(argc + 1)
			return err
		}
		if err := iso.Stack.Enter(frames.JavaScript, iso.Regs.RA, iso.Regs.Context, fn); err != nil {
			return err
		}
		inv := &Invocation{iso: iso, function: fn, argc: argc, base: iso.Stack.CallerSP()}
		result, err := body(inv)
		if err != nil {
			iso.Stack.Restore(mark)
			iso.Stack.Drop(argc + 1)
			return err
		}
		ra, err := iso.Stack.Leave(frames.JavaScript)
		if err != nil {
			return err
		}
		iso.Regs.RA = ra
		iso.Stack.Drop(argc + 1)
		iso.Regs.Result = result
		return nil
	}
}

// Isolate returns the isolate running the call.
func (inv *Invocation) Isolate() *Isolate { return inv.iso }

// Function returns the callee.
func (inv *Invocation) Function() tagged.Value { return inv.function }

// Argc returns the number of arguments the function received.
func (inv *Invocation) Argc() int { return inv.argc }

// Receiver returns this.
func (inv *Invocation) Receiver() tagged.Value {
	return inv.iso.Stack.At(inv.base + inv.argc)
}

// Arg returns argument i, or undefined past the end.
func (inv *Invocation) Arg(i int) tagged.Value {
	if i < 0 || i >= inv.argc {
		return inv.iso.Undefined()
	}
	return inv.iso.Stack.At(inv.base + inv.argc - 1 - i)
}

// Args returns all arguments in order.
func (inv *Invocation) Args() []tagged.Value {
	out := make([]tagged.Value, inv.argc)
	for i := range out {
		out[i] = inv.Arg(i)
	}
	return out
}

// Call calls fn from inside the running function and reloads the context
// from the function's frame afterwards.
func (inv *Invocation) Call(fn, recv tagged.Value, args ...tagged.Value) (tagged.Value, error) {
	v, err := inv.iso.Call(fn, recv, args...)
	inv.restoreContext()
	return v, err
}

// Construct runs new fn(...args) from inside the running function.
func (inv *Invocation) Construct(fn tagged.Value, args ...tagged.Value) (tagged.Value, error) {
	v, err := inv.iso.Construct(fn, args...)
	inv.restoreContext()
	return v, err
}

func (inv *Invocation) restoreContext() {
	if ctx, err := inv.iso.Stack.Slot(frames.FieldContext); err == nil {
		inv.iso.Regs.Context = ctx
	}
}
