package builtins

import (
	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Slots of FunctionApply's caller, relative to its internal frame. apply
// is declared with two parameters, so the adaptor guarantees exactly two
// arguments below the function it was called on.
const (
	applyArgsOffset     = frames.CallerSPOffset
	applyReceiverOffset = frames.CallerSPOffset + 1
	applyFunctionOffset = frames.CallerSPOffset + 2
)

// FunctionApply is Function.prototype.apply.
func FunctionApply(iso *isolate.Isolate) error {
	s := iso.Stack
	argc := iso.Regs.Argc
	mark := s.Mark()
	if err := iso.Assert(argc == 2, "apply called with %d arguments", argc); err != nil {
		return unwind(iso, mark, argc, err)
	}
	if err := s.Enter(frames.Internal, iso.Regs.RA, iso.Regs.Context); err != nil {
		return unwind(iso, mark, argc, err)
	}
	fp := s.FP()
	slot := func(off int) tagged.Value { return s.At(fp + off) }

	if fn := slot(applyFunctionOffset); !iso.IsFunction(fn) {
		err := iso.RT().Throw(isolate.TypeError, "Function.prototype.apply was called on %v, which is not a function", fn)
		return unwind(iso, mark, argc, err)
	}
	count, err := iso.RT().ApplyPrepare(slot(applyArgsOffset))
	if err != nil {
		return unwind(iso, mark, argc, err)
	}

	// The real stack limit is checked; the receiver word is covered by the
	// reserve below it.
	if s.Remaining() <= count {
		err := iso.RT().ApplyOverflow(slot(applyFunctionOffset), count)
		return unwind(iso, mark, argc, err)
	}

	fn := slot(applyFunctionOffset)
	iso.Regs.Context = iso.FunctionContext(fn)
	receiver, err := coerceReceiver(iso, slot(applyReceiverOffset))
	if err != nil {
		return unwind(iso, mark, argc, err)
	}
	s.Push(receiver)

	for index := 0; index < count; index++ {
		v, err := iso.RT().GetProperty(slot(applyArgsOffset), index)
		if err != nil {
			return unwind(iso, mark, argc, err)
		}
		s.Push(v)
	}

	if err := iso.InvokeFunction(slot(applyFunctionOffset), count, isolate.CallFunctionFlag); err != nil {
		return unwind(iso, mark, argc, err)
	}
	if err := restoreContext(iso); err != nil {
		return unwind(iso, mark, argc, err)
	}
	return leave(iso, frames.Internal, argc)
}

// FunctionCall is Function.prototype.call. The function to call is the
// receiver; the first argument becomes the new receiver and the rest are
// shifted down one slot.
func FunctionCall(iso *isolate.Isolate) error {
	s := iso.Stack
	mark := s.Mark()
	original := iso.Regs.Argc

	argc := original
	if argc == 0 {
		s.Push(iso.Undefined())
		argc++
	}

	functionSlot := s.SP() + argc
	fn := s.At(functionSlot)
	isFunction := iso.IsFunction(fn)
	if isFunction {
		iso.Regs.Context = iso.FunctionContext(fn)
		first := s.At(functionSlot - 1)
		if needsConversion(iso, first) {
			// The frame keeps the arguments visible to stack walkers while
			// the runtime runs.
			if err := s.Enter(frames.Internal, iso.Regs.RA, iso.Regs.Context); err != nil {
				return unwind(iso, mark, original, err)
			}
			recv, err := coerceReceiver(iso, first)
			if err != nil {
				return unwind(iso, mark, original, err)
			}
			if _, err := s.Leave(frames.Internal); err != nil {
				return unwind(iso, mark, original, err)
			}
			first = recv
		}
		s.SetAt(functionSlot-1, first)
	} else {
		// CALL_NON_FUNCTION takes the callee as its receiver.
		s.SetAt(functionSlot-1, fn)
	}

	for addr := functionSlot; addr > s.SP(); addr-- {
		s.SetAt(addr, s.At(addr-1))
	}
	s.Pop()
	argc--
	iso.Regs.Argc = argc
	iso.Regs.Function = fn

	if !isFunction {
		iso.Regs.Expected = 0
		iso.Regs.Entry = isolate.CallNonFunction.Code()
		return iso.JumpBuiltin(isolate.ArgumentsAdaptorTrampoline)
	}
	return iso.InvokeCode(iso.FunctionCode(fn), iso.FormalParameterCount(fn), argc, isolate.JumpFunctionFlag)
}

// needsConversion reports whether a receiver is not already a plain
// object.
func needsConversion(iso *isolate.Isolate, v tagged.Value) bool {
	return !iso.IsJSObject(v)
}

// coerceReceiver applies the receiver rules of call and apply: null and
// undefined become the global receiver of the current context, primitives
// are boxed, objects pass through.
func coerceReceiver(iso *isolate.Isolate, v tagged.Value) (tagged.Value, error) {
	h := iso.Heap
	switch {
	case v.IsSmi():
		return iso.RT().ToObject(v)
	case iso.IsNullOrUndefined(v):
		return iso.GlobalReceiverOf(iso.Regs.Context), nil
	}
	t := h.InstanceType(v)
	if t >= heap.FirstJSObjectType && t <= heap.LastJSObjectType {
		return v, nil
	}
	return iso.RT().ToObject(v)
}
