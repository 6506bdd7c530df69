package builtins

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/runtime"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// JSConstructCall dispatches new to the callee's construct stub. A callee
// that is not a function goes through the adaptor to a builtin that
// throws, with the callee as its receiver.
func JSConstructCall(iso *isolate.Isolate) error {
	fn := iso.Regs.Function
	if iso.IsFunction(fn) {
		return iso.JumpCode(iso.ConstructStub(fn))
	}
	iso.Regs.Expected = 0
	iso.Regs.Entry = isolate.CallNonFunctionAsConstructor.Code()
	return iso.JumpBuiltin(isolate.ArgumentsAdaptorTrampoline)
}

// JSConstructStubGeneric constructs an instance of Regs.Function.
func JSConstructStubGeneric(iso *isolate.Isolate) error {
	return construct(iso, false)
}

// JSConstructStubApi constructs an instance of an embedder function. The
// function's code is called without arity adaptation.
func JSConstructStubApi(iso *isolate.Isolate) error {
	return construct(iso, true)
}

func construct(iso *isolate.Isolate, api bool) error {
	s := iso.Stack
	h := iso.Heap
	argc := iso.Regs.Argc
	fn := iso.Regs.Function
	mark := s.Mark()

	if err := s.Enter(frames.Construct, iso.Regs.RA, iso.Regs.Context, smi(argc), fn); err != nil {
		return unwind(iso, mark, argc, err)
	}

	receiver, err := allocateReceiver(iso, fn)
	if err != nil {
		return unwind(iso, mark, argc, err)
	}

	// The first copy survives the call for result selection, the second
	// is the callee's receiver.
	s.Push(receiver)
	s.Push(receiver)
	args := s.CallerSP()
	for i := argc - 1; i >= 0; i-- {
		s.Push(s.At(args + i))
	}

	if api {
		iso.Regs.Function = fn
		iso.Regs.Context = iso.FunctionContext(fn)
		iso.Regs.Argc = argc
		err = iso.CallCode(iso.FunctionCode(fn))
	} else {
		err = iso.InvokeFunction(fn, argc, isolate.CallFunctionFlag)
	}
	if err != nil {
		return unwind(iso, mark, argc, err)
	}
	if err := restoreContext(iso); err != nil {
		return unwind(iso, mark, argc, err)
	}

	result := iso.Regs.Result
	receiver = s.Pop()
	if result.IsSmi() || h.InstanceType(result) < heap.FirstJSObjectType {
		result = receiver
	}

	saved, err := savedArgc(iso)
	if err != nil {
		return unwind(iso, mark, argc, err)
	}
	if err := leave(iso, frames.Construct, saved); err != nil {
		return err
	}
	iso.Regs.Result = result
	iso.Counters.ConstructedObjects++
	return nil
}

// allocateReceiver makes the object a constructor runs on: inline when the
// initial map allows it, through the runtime otherwise.
func allocateReceiver(iso *isolate.Isolate, fn tagged.Value) (tagged.Value, error) {
	if iso.Flags.InlineNew {
		obj, reason, err := tryAllocateReceiver(iso, fn)
		if err != nil {
			return 0, err
		}
		if reason == "" {
			iso.Counters.ConstructFastPath++
			return obj, nil
		}
		log.Debug("construct: runtime allocation", "reason", reason, "constructor", fn)
	}
	iso.Counters.ConstructSlowPath++
	return iso.RT().NewObject(fn)
}

// tryAllocateReceiver is the inline allocation. A non-empty reason means
// the runtime has to do it; nothing is left allocated in that case.
func tryAllocateReceiver(iso *isolate.Isolate, fn tagged.Value) (tagged.Value, string, error) {
	h := iso.Heap
	if iso.Debug.StepInPending() {
		return 0, "debug step pending", nil
	}
	m := iso.InitialMap(fn)
	if !h.IsMap(m) {
		return 0, "no initial map", nil
	}
	if h.MapInstanceType(m) == heap.JSFunctionType {
		return 0, "constructing a function", nil
	}

	size := h.SmiField(m, heap.MapInstanceSizeOffset)
	obj, err := h.TryAllocate(size, heap.SizeInWords)
	if errors.Is(err, heap.ErrNeedsSlowPath) {
		return 0, "young space exhausted", nil
	} else if err != nil {
		return 0, "", err
	}

	undefined := h.Undefined()
	empty := h.EmptyFixedArray()
	h.Store(obj, m)
	h.Store(obj.Plus(heap.JSObjectPropertiesOffset), empty)
	h.Store(obj.Plus(heap.JSObjectElementsOffset), empty)
	end := tagged.Bytes(size)
	for off := heap.JSObjectHeaderSize; off < end; off += tagged.PointerSize {
		h.Store(obj.Plus(off), undefined)
	}
	receiver := obj.Tag()
	top := h.YoungTop()

	n := runtime.OutOfObjectFields(h, m)
	if n == 0 {
		return receiver, "", nil
	}
	if err := iso.Assert(n > 0, "property allocation count %d for map %v", n, m); err != nil {
		return 0, "", err
	}

	store, err := h.TryAllocate(heap.FixedArraySizeFor(n), 0)
	if errors.Is(err, heap.ErrNeedsSlowPath) {
		if err := h.UndoAllocation(obj, top); err != nil {
			return 0, "", err
		}
		return 0, "property store allocation failed", nil
	} else if err != nil {
		return 0, "", err
	}
	h.Store(store, h.Root(heap.FixedArrayMapRoot))
	h.Store(store.Plus(heap.FixedArrayLengthOffset), smi(n))
	for i := 0; i < n; i++ {
		h.Store(store.Plus(heap.FixedArrayOffsetOf(i)), undefined)
	}
	h.Store(obj.Plus(heap.JSObjectPropertiesOffset), store.Tag())
	return receiver, "", nil
}
