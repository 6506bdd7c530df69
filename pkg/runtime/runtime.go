// Package runtime is the slow path behind the builtins. Everything here
// allocates in old space, goes through the write barrier and may throw.
package runtime

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Runtime implements isolate.Runtime for one isolate.
type Runtime struct {
	iso *isolate.Isolate
}

var _ isolate.Runtime = (*Runtime)(nil)

// New creates the runtime of iso without installing it.
func New(iso *isolate.Isolate) *Runtime {
	return &Runtime{iso: iso}
}

// Install creates the runtime and makes it the isolate's collaborator.
func Install(iso *isolate.Isolate) *Runtime {
	rt := New(iso)
	iso.SetRuntime(rt)
	return rt
}

func (rt *Runtime) heap() *heap.Heap { return rt.iso.Heap }

// Throw allocates an error object and returns it as an exception.
func (rt *Runtime) Throw(kind isolate.ErrorKind, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	obj, err := rt.iso.NewPlainObject(rt.iso.Roots().ErrorMap)
	if err != nil {
		return fmt.Errorf("allocating %s: %w", kind, err)
	}
	rt.heap().SetField(obj, isolate.ErrorKindOffset, tagged.FromSmi(int64(kind)))
	log.Debug("runtime: throw", "kind", kind, "message", msg)
	return &isolate.Exception{Kind: kind, Value: obj, Message: msg}
}

// NewObject allocates a receiver for constructor. A constructor without an
// initial map gets a default one first.
func (rt *Runtime) NewObject(constructor tagged.Value) (tagged.Value, error) {
	h := rt.heap()
	if !rt.iso.IsFunction(constructor) {
		return 0, rt.Throw(isolate.TypeError, "%v is not a constructor", constructor)
	}
	m := rt.iso.InitialMap(constructor)
	if !h.IsMap(m) {
		spec := isolate.ObjectMapSpec(isolate.DefaultInObjectProperties, 0, isolate.DefaultInObjectProperties)
		var err error
		if m, err = h.NewMapFromSpec(spec); err != nil {
			return 0, err
		}
		h.SetField(constructor, heap.JSFunctionPrototypeOrInitialMapOffset, m)
		log.Debug("runtime: created initial map", "constructor", constructor, "map", m)
	}
	obj, err := rt.iso.NewPlainObject(m)
	if err != nil {
		return 0, err
	}
	if n := OutOfObjectFields(h, m); n > 0 {
		props, err := h.NewFixedArray(n, h.Undefined())
		if err != nil {
			return 0, err
		}
		h.SetField(obj, heap.JSObjectPropertiesOffset, props)
	}
	return obj, nil
}

// OutOfObjectFields is the length of the property store an instance of m
// starts with.
func OutOfObjectFields(h *heap.Heap, m tagged.Value) int {
	return h.SmiField(m, heap.MapUnusedPropertyFieldsOffset) +
		h.SmiField(m, heap.MapPreAllocatedPropertyFieldsOffset) -
		h.SmiField(m, heap.MapInObjectPropertiesOffset)
}

// LazyCompile installs the real code of fn.
func (rt *Runtime) LazyCompile(fn tagged.Value) (isolate.CodeID, error) {
	code, err := rt.iso.CompileLazy(fn)
	if err != nil {
		return 0, err
	}
	log.Debug("runtime: lazy compile", "function", fn, "code", code)
	return code, nil
}

// GetProperty reads element index of object. Holes and missing elements
// read as undefined.
func (rt *Runtime) GetProperty(object tagged.Value, index int) (tagged.Value, error) {
	h := rt.heap()
	undefined := h.Undefined()
	t := h.InstanceType(object)
	if !t.IsJSObject() {
		if rt.iso.IsNullOrUndefined(object) {
			return 0, rt.Throw(isolate.TypeError, "cannot read element %d of %v", index, object)
		}
		return undefined, nil
	}
	if t == heap.JSArrayType && index >= h.SmiField(object, heap.JSArrayLengthOffset) {
		return undefined, nil
	}
	elements := h.Field(object, heap.JSObjectElementsOffset)
	if index < 0 || index >= h.FixedArrayLength(elements) {
		return undefined, nil
	}
	v := h.FixedArrayGet(elements, index)
	if v == h.TheHole() {
		return undefined, nil
	}
	return v, nil
}

// ToObject boxes numbers and booleans in wrapper objects made from the
// global Number and Boolean functions' initial maps.
func (rt *Runtime) ToObject(v tagged.Value) (tagged.Value, error) {
	h := rt.heap()
	var slot int
	switch {
	case h.InstanceType(v).IsJSObject():
		return v, nil
	case h.IsNumber(v):
		slot = heap.ContextNumberFunctionIndex
	case v == h.Boolean(true) || v == h.Boolean(false):
		slot = heap.ContextBooleanFunctionIndex
	default:
		return 0, rt.Throw(isolate.TypeError, "cannot convert %v to an object", v)
	}
	ctx := rt.iso.Roots().GlobalContext
	fn := rt.iso.ContextSlot(ctx, slot)
	obj, err := rt.iso.NewPlainObject(rt.iso.InitialMap(fn))
	if err != nil {
		return 0, err
	}
	h.SetField(obj, heap.JSValueValueOffset, v)
	return obj, nil
}

// ApplyPrepare returns how many elements an apply copies out of args.
func (rt *Runtime) ApplyPrepare(args tagged.Value) (int, error) {
	h := rt.heap()
	switch t := h.InstanceType(args); {
	case rt.iso.IsNullOrUndefined(args):
		return 0, nil
	case t == heap.JSArrayType:
		return h.SmiField(args, heap.JSArrayLengthOffset), nil
	case t.IsJSObject() && t != heap.JSFunctionType:
		return h.FixedArrayLength(h.Field(args, heap.JSObjectElementsOffset)), nil
	default:
		return 0, rt.Throw(isolate.TypeError, "apply: arguments list has wrong type")
	}
}

// ApplyOverflow always throws.
func (rt *Runtime) ApplyOverflow(fn tagged.Value, count int) error {
	return rt.Throw(isolate.RangeError, "Maximum call stack size exceeded (apply of %d arguments)", count)
}

// NewArray is the generic Array constructor.
func (rt *Runtime) NewArray(constructor tagged.Value, args []tagged.Value) (tagged.Value, error) {
	h := rt.heap()
	if len(args) == 1 && h.IsNumber(args[0]) {
		f := h.NumberValue(args[0])
		if f < 0 || f != math.Trunc(f) || f > float64(tagged.MaxSmi) {
			return 0, rt.Throw(isolate.RangeError, "invalid array length %v", f)
		}
		n := int(f)
		fill := h.TheHole()
		capacity := n
		if n > maxGenericCapacity {
			capacity = 0
		}
		return rt.newArray(constructor, n, capacity, func(int) tagged.Value { return fill })
	}
	return rt.newArray(constructor, len(args), len(args), func(i int) tagged.Value { return args[i] })
}

// Arrays longer than this keep an empty element store.
const maxGenericCapacity = 1 << 16

func (rt *Runtime) newArray(constructor tagged.Value, length, capacity int, at func(int) tagged.Value) (tagged.Value, error) {
	h := rt.heap()
	m := rt.iso.Roots().ArrayMap
	if rt.iso.IsFunction(constructor) {
		if im := rt.iso.InitialMap(constructor); h.IsMap(im) && h.MapInstanceType(im) == heap.JSArrayType {
			m = im
		}
	}
	arr, err := rt.iso.NewPlainObject(m)
	if err != nil {
		return 0, err
	}
	elements := h.EmptyFixedArray()
	if capacity > 0 {
		if elements, err = h.NewFixedArray(capacity, h.TheHole()); err != nil {
			return 0, err
		}
		for i := 0; i < capacity; i++ {
			h.FixedArraySet(elements, i, at(i))
		}
	}
	h.SetField(arr, heap.JSObjectElementsOffset, elements)
	h.SetField(arr, heap.JSArrayLengthOffset, tagged.FromSmi(int64(length)))
	return arr, nil
}

// AllocateHeapNumber boxes f in old space.
func (rt *Runtime) AllocateHeapNumber(f float64) (tagged.Value, error) {
	return rt.heap().NewHeapNumberOld(f)
}
