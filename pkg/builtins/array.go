package builtins

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// ArrayCode is the Array function called as a function.
func ArrayCode(iso *isolate.Isolate) error {
	fn := iso.ContextSlot(globalContext(iso), heap.ContextArrayFunctionIndex)
	if err := iso.Assert(iso.Heap.IsMap(iso.InitialMap(fn)), "unexpected initial map for Array function"); err != nil {
		return unwind(iso, iso.Stack.Mark(), iso.Regs.Argc, err)
	}
	iso.Regs.Function = fn
	done, err := arrayNativeCode(iso, fn)
	if err != nil || done {
		return err
	}
	return iso.JumpBuiltin(isolate.ArrayCodeGeneric)
}

// ArrayConstructCode is the construct stub of the Array function.
func ArrayConstructCode(iso *isolate.Isolate) error {
	fn := iso.Regs.Function
	if iso.Flags.DebugCode {
		want := iso.ContextSlot(globalContext(iso), heap.ContextArrayFunctionIndex)
		ok := fn == want && iso.Heap.IsMap(iso.InitialMap(fn))
		if err := iso.Assert(ok, "unexpected Array function %v", fn); err != nil {
			return unwind(iso, iso.Stack.Mark(), iso.Regs.Argc, err)
		}
	}
	done, err := arrayNativeCode(iso, fn)
	if err != nil || done {
		return err
	}
	return iso.JumpBuiltin(isolate.JSConstructStubGeneric)
}

// ArrayCodeGeneric builds the array through the runtime.
func ArrayCodeGeneric(iso *isolate.Isolate) error {
	argc := iso.Regs.Argc
	s := iso.Stack
	args := make([]tagged.Value, argc)
	for i := range args {
		args[i] = s.Peek(argc - 1 - i)
	}
	arr, err := iso.RT().NewArray(iso.Regs.Function, args)
	s.Drop(argc + 1)
	if err != nil {
		return err
	}
	iso.Regs.Result = arr
	return nil
}

// globalContext returns the global context reachable from the current
// context register.
func globalContext(iso *isolate.Isolate) tagged.Value {
	ctx := iso.Regs.Context
	if iso.Heap.InstanceType(ctx) != heap.ContextType {
		return iso.Roots().GlobalContext
	}
	global := iso.ContextSlot(ctx, heap.ContextGlobalIndex)
	return iso.Heap.Field(global, heap.GlobalContextOffset)
}

// arrayNativeCode is the fast path shared by the call and construct forms.
// It returns false, with the stack untouched, when the generic code has
// to take over.
func arrayNativeCode(iso *isolate.Isolate, fn tagged.Value) (bool, error) {
	s := iso.Stack
	argc := iso.Regs.Argc

	var arr tagged.Value
	var ok bool
	var err error
	switch {
	case argc == 0:
		arr, ok, err = allocateEmptyJSArray(iso, fn, heap.PreallocatedArrayElements)
	case argc == 1:
		n := s.Peek(0)
		if !n.IsSmi() || n.Smi() < 0 || n.Smi() >= heap.InitialMaxFastElementArray {
			log.Debug("array: generic code", "argc", argc, "length", n)
			return false, nil
		}
		arr, ok, err = allocateJSArray(iso, fn, int(n.Smi()), true)
	default:
		arr, ok, err = allocateJSArray(iso, fn, argc, false)
		if ok {
			fillFromStack(iso, arr, argc)
			argc = 0
		}
	}
	if err != nil {
		return false, unwind(iso, s.Mark(), argc, err)
	}
	if !ok {
		log.Debug("array: generic code", "argc", iso.Regs.Argc, "reason", "young space exhausted")
		return false, nil
	}
	iso.Counters.ArrayFunctionNative++
	s.Drop(argc + 1)
	iso.Regs.Result = arr
	return true, nil
}

// fillFromStack pops the last argument first and stores it at the highest
// index, so the elements end up in argument order.
func fillFromStack(iso *isolate.Isolate, arr tagged.Value, argc int) {
	h := iso.Heap
	elements := h.Revalidate(h.Field(arr, heap.JSObjectElementsOffset))
	for i := argc - 1; i >= 0; i-- {
		h.Store(elements.Plus(heap.FixedArrayOffsetOf(i)), iso.Stack.Pop())
	}
}

// allocateEmptyJSArray allocates a zero-length array whose element store
// has capacity holes, in one allocation.
func allocateEmptyJSArray(iso *isolate.Isolate, fn tagged.Value, capacity int) (tagged.Value, bool, error) {
	if capacity <= 0 {
		return 0, false, iso.Assert(false, "empty array capacity %d", capacity)
	}
	return buildJSArray(iso, fn, 0, capacity, true)
}

// allocateJSArray allocates an array of length size together with its
// element store. A zero size still gets the preallocated capacity. Unless
// fillWithHoles is set the element slots are left for the caller.
func allocateJSArray(iso *isolate.Isolate, fn tagged.Value, size int, fillWithHoles bool) (tagged.Value, bool, error) {
	capacity := size
	if capacity == 0 {
		capacity = heap.PreallocatedArrayElements
		fillWithHoles = true
	}
	return buildJSArray(iso, fn, size, capacity, fillWithHoles)
}

func buildJSArray(iso *isolate.Isolate, fn tagged.Value, length, capacity int, fillWithHoles bool) (tagged.Value, bool, error) {
	h := iso.Heap
	m := iso.InitialMap(fn)
	raw, err := h.TryAllocate(heap.JSArraySize+heap.FixedArraySizeFor(capacity), 0)
	if errors.Is(err, heap.ErrNeedsSlowPath) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}

	elements := raw.Plus(heap.JSArraySize)
	h.Store(raw, m)
	h.Store(raw.Plus(heap.JSObjectPropertiesOffset), h.EmptyFixedArray())
	h.Store(raw.Plus(heap.JSObjectElementsOffset), elements.Tag())
	h.Store(raw.Plus(heap.JSArrayLengthOffset), smi(length))

	h.Store(elements, h.Root(heap.FixedArrayMapRoot))
	h.Store(elements.Plus(heap.FixedArrayLengthOffset), smi(capacity))
	if fillWithHoles {
		hole := h.TheHole()
		for i := 0; i < capacity; i++ {
			h.Store(elements.Plus(heap.FixedArrayOffsetOf(i)), hole)
		}
	}
	return raw.Tag(), true, nil
}
