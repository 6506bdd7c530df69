package isolate

import (
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Roots are the isolate's well-known objects, all in old space.
type Roots struct {
	FunctionMap       tagged.Value
	ObjectMap         tagged.Value
	ArrayMap          tagged.Value
	NumberWrapperMap  tagged.Value
	BooleanWrapperMap tagged.Value
	ErrorMap          tagged.Value
	GlobalObjectMap   tagged.Value
	GlobalProxyMap    tagged.Value

	GlobalContext  tagged.Value
	GlobalObject   tagged.Value
	GlobalReceiver tagged.Value

	ArrayFunction   tagged.Value
	NumberFunction  tagged.Value
	BooleanFunction tagged.Value
	CallFunction    tagged.Value // Function.prototype.call
	ApplyFunction   tagged.Value // Function.prototype.apply
}

// Error objects keep their kind in the slot after the header.
const ErrorKindOffset = heap.JSObjectHeaderSize

// DefaultInObjectProperties is the in-object slot count given to the
// initial map of a function that is constructed without one.
const DefaultInObjectProperties = 4

func (iso *Isolate) bootstrap() error {
	h := iso.Heap
	r := &iso.roots
	words := tagged.Words

	// Internal slots past the header (wrapped value, error kind, global
	// links) are not properties, so these maps have no in-object properties.
	maps := []struct {
		dst  *tagged.Value
		spec heap.MapSpec
	}{
		{&r.FunctionMap, heap.MapSpec{Type: heap.JSFunctionType, InstanceSize: words(heap.JSFunctionSize)}},
		{&r.ObjectMap, heap.MapSpec{Type: heap.JSObjectType, InstanceSize: words(heap.JSObjectHeaderSize)}},
		{&r.ArrayMap, heap.MapSpec{Type: heap.JSArrayType, InstanceSize: words(heap.JSArraySize)}},
		{&r.NumberWrapperMap, heap.MapSpec{Type: heap.JSValueType, InstanceSize: words(heap.JSValueSize)}},
		{&r.BooleanWrapperMap, heap.MapSpec{Type: heap.JSValueType, InstanceSize: words(heap.JSValueSize)}},
		{&r.ErrorMap, heap.MapSpec{Type: heap.JSObjectType, InstanceSize: words(heap.JSObjectHeaderSize) + 1}},
		{&r.GlobalObjectMap, heap.MapSpec{Type: heap.JSGlobalObjectType, InstanceSize: words(heap.GlobalObjectSize)}},
		{&r.GlobalProxyMap, heap.MapSpec{Type: heap.JSGlobalProxyType, InstanceSize: words(heap.JSObjectHeaderSize)}},
	}
	for _, m := range maps {
		v, err := h.NewMapFromSpec(m.spec)
		if err != nil {
			return err
		}
		*m.dst = v
	}

	ctx, err := h.NewFixedArray(heap.ContextLength, h.Undefined())
	if err != nil {
		return err
	}
	h.SetField(ctx, heap.MapOffset, h.Root(heap.ContextMapRoot))
	r.GlobalContext = ctx

	if r.GlobalReceiver, err = iso.NewPlainObject(r.GlobalProxyMap); err != nil {
		return err
	}
	if r.GlobalObject, err = iso.NewPlainObject(r.GlobalObjectMap); err != nil {
		return err
	}
	h.SetField(r.GlobalObject, heap.GlobalContextOffset, ctx)
	h.SetField(r.GlobalObject, heap.GlobalReceiverOffset, r.GlobalReceiver)
	h.FixedArraySet(ctx, heap.ContextGlobalIndex, r.GlobalObject)

	functions := []struct {
		dst        *tagged.Value
		slot       int
		code       Builtin
		formals    int
		stub       Builtin
		initialMap tagged.Value
	}{
		{&r.ArrayFunction, heap.ContextArrayFunctionIndex, ArrayCode, heap.DontAdaptArgumentsSentinel, ArrayConstructCode, r.ArrayMap},
		{&r.NumberFunction, heap.ContextNumberFunctionIndex, NumberConstructor, heap.DontAdaptArgumentsSentinel, JSConstructStubGeneric, r.NumberWrapperMap},
		{&r.BooleanFunction, heap.ContextBooleanFunctionIndex, BooleanConstructor, heap.DontAdaptArgumentsSentinel, JSConstructStubGeneric, r.BooleanWrapperMap},
		{&r.CallFunction, -1, FunctionCall, heap.DontAdaptArgumentsSentinel, JSConstructStubGeneric, h.TheHole()},
		{&r.ApplyFunction, -1, FunctionApply, 2, JSConstructStubGeneric, h.TheHole()},
	}
	for _, f := range functions {
		fn, err := iso.newFunction(f.code.Code(), f.formals, f.stub, 0, f.initialMap)
		if err != nil {
			return err
		}
		*f.dst = fn
		if f.slot >= 0 {
			h.FixedArraySet(ctx, f.slot, fn)
		}
	}
	return nil
}

// NewPlainObject allocates an old-space object of map m with empty
// containers and every in-object slot undefined.
func (iso *Isolate) NewPlainObject(m tagged.Value) (tagged.Value, error) {
	h := iso.Heap
	size := tagged.Bytes(h.SmiField(m, heap.MapInstanceSizeOffset))
	raw, err := h.AllocateOld(size)
	if err != nil {
		return 0, err
	}
	h.Store(raw, m)
	h.Store(raw.Plus(heap.JSObjectPropertiesOffset), h.EmptyFixedArray())
	h.Store(raw.Plus(heap.JSObjectElementsOffset), h.EmptyFixedArray())
	for off := heap.JSObjectHeaderSize; off < size; off += tagged.PointerSize {
		h.Store(raw.Plus(off), h.Undefined())
	}
	return raw.Tag(), nil
}

func (iso *Isolate) newFunction(code CodeID, formals int, stub Builtin, flags int, initialMap tagged.Value) (tagged.Value, error) {
	h := iso.Heap
	raw, err := h.AllocateOld(heap.SharedFunctionInfoSize)
	if err != nil {
		return 0, err
	}
	h.Store(raw, h.Root(heap.SharedFunctionInfoMapRoot))
	h.Store(raw.Plus(heap.SharedFormalParameterCountOffset), tagged.FromSmi(int64(formals)))
	h.Store(raw.Plus(heap.SharedCodeOffset), code.Smi())
	h.Store(raw.Plus(heap.SharedConstructStubOffset), stub.Code().Smi())
	h.Store(raw.Plus(heap.SharedFlagsOffset), tagged.FromSmi(int64(flags)))
	shared := raw.Tag()

	fn, err := iso.NewPlainObject(iso.roots.FunctionMap)
	if err != nil {
		return 0, err
	}
	h.SetField(fn, heap.JSFunctionPrototypeOrInitialMapOffset, initialMap)
	h.SetField(fn, heap.JSFunctionSharedOffset, shared)
	h.SetField(fn, heap.JSFunctionContextOffset, iso.roots.GlobalContext)
	h.SetField(fn, heap.JSFunctionCodeOffset, code.Smi())
	return fn, nil
}
