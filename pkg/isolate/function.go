package isolate

import (
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// FunctionSpec describes a function to create.
type FunctionSpec struct {
	Name string

	// Body is the function's code. When nil, Code is used instead.
	Body Body
	Code CodeID

	// Formals is the declared parameter count, or
	// heap.DontAdaptArgumentsSentinel.
	Formals int

	// Lazy leaves the function pointing at the LazyCompile builtin until
	// its first call.
	Lazy bool

	// API marks an embedder function: it is constructed through
	// JSConstructStubApi.
	API bool

	// InitialMap, when set, is the map of objects the function constructs.
	// Without one the runtime makes a default map on the first construct.
	InitialMap *heap.MapSpec
}

// NewFunction creates a JSFunction in old space.
func (iso *Isolate) NewFunction(spec FunctionSpec) (tagged.Value, error) {
	code := spec.Code
	if spec.Body != nil {
		code = iso.AddCode(spec.Name, FunctionCode, iso.functionEntry(spec.Body))
	}
	if _, err := iso.Code(code); err != nil {
		return 0, fmt.Errorf("function %q: %w", spec.Name, err)
	}

	initialMap := iso.Heap.TheHole()
	if spec.InitialMap != nil {
		m, err := iso.Heap.NewMapFromSpec(*spec.InitialMap)
		if err != nil {
			return 0, fmt.Errorf("function %q: %w", spec.Name, err)
		}
		initialMap = m
	}

	stub, flags := JSConstructStubGeneric, 0
	if spec.API {
		stub, flags = JSConstructStubApi, heap.SharedFlagAPI
	}
	installed := code
	if spec.Lazy {
		installed = LazyCompile.Code()
	}
	fn, err := iso.newFunction(installed, spec.Formals, stub, flags, initialMap)
	if err != nil {
		return 0, fmt.Errorf("function %q: %w", spec.Name, err)
	}
	if spec.Lazy {
		iso.lazy[iso.SharedOf(fn)] = code
	}
	return fn, nil
}

// ObjectMapSpec returns the spec of a plain JSObject map with the given
// property slot counts.
func ObjectMapSpec(inObject, preAllocated, unused int) heap.MapSpec {
	return heap.MapSpec{
		Type:         heap.JSObjectType,
		InstanceSize: tagged.Words(heap.JSObjectHeaderSize) + inObject,
		InObject:     inObject,
		PreAllocated: preAllocated,
		Unused:       unused,
	}
}

// CompileLazy resolves the code a lazily compiled function stands for and
// installs it on both the function and its shared info.
func (iso *Isolate) CompileLazy(fn tagged.Value) (CodeID, error) {
	shared := iso.SharedOf(fn)
	code, ok := iso.lazy[shared]
	if !ok {
		return 0, fmt.Errorf("%w: function %v has no pending compilation", ErrUnknownCode, fn)
	}
	iso.Heap.SetField(shared, heap.SharedCodeOffset, code.Smi())
	iso.Heap.SetField(fn, heap.JSFunctionCodeOffset, code.Smi())
	delete(iso.lazy, shared)
	return code, nil
}

// IsFunction reports whether v is a JSFunction.
func (iso *Isolate) IsFunction(v tagged.Value) bool {
	return iso.Heap.InstanceType(v) == heap.JSFunctionType
}

// SharedOf returns a function's shared info.
func (iso *Isolate) SharedOf(fn tagged.Value) tagged.Value {
	return iso.Heap.Field(fn, heap.JSFunctionSharedOffset)
}

// FormalParameterCount returns the declared arity of a function, possibly
// the don't-adapt sentinel.
func (iso *Isolate) FormalParameterCount(fn tagged.Value) int {
	return iso.Heap.SmiField(iso.SharedOf(fn), heap.SharedFormalParameterCountOffset)
}

// FunctionCode returns the code currently installed on a function.
func (iso *Isolate) FunctionCode(fn tagged.Value) CodeID {
	return CodeID(iso.Heap.SmiField(fn, heap.JSFunctionCodeOffset))
}

// ConstructStub returns the construct stub recorded in a function's
// shared info.
func (iso *Isolate) ConstructStub(fn tagged.Value) CodeID {
	return CodeID(iso.Heap.SmiField(iso.SharedOf(fn), heap.SharedConstructStubOffset))
}

// IsAPIFunction reports whether fn was created by the embedder API.
func (iso *Isolate) IsAPIFunction(fn tagged.Value) bool {
	return iso.Heap.SmiField(iso.SharedOf(fn), heap.SharedFlagsOffset)&heap.SharedFlagAPI != 0
}

// InitialMap returns the prototype-or-initial-map field of a function.
func (iso *Isolate) InitialMap(fn tagged.Value) tagged.Value {
	return iso.Heap.Field(fn, heap.JSFunctionPrototypeOrInitialMapOffset)
}

// FunctionContext returns the context a function closes over.
func (iso *Isolate) FunctionContext(fn tagged.Value) tagged.Value {
	return iso.Heap.Field(fn, heap.JSFunctionContextOffset)
}

// ContextSlot reads a slot of a context.
func (iso *Isolate) ContextSlot(ctx tagged.Value, index int) tagged.Value {
	return iso.Heap.FixedArrayGet(ctx, index)
}

// GlobalReceiverOf returns the global receiver reachable from a context.
func (iso *Isolate) GlobalReceiverOf(ctx tagged.Value) tagged.Value {
	global := iso.ContextSlot(ctx, heap.ContextGlobalIndex)
	return iso.Heap.Field(global, heap.GlobalReceiverOffset)
}

// IsJSObject reports whether v is an object in the ECMA sense, functions
// excluded.
func (iso *Isolate) IsJSObject(v tagged.Value) bool {
	t := iso.Heap.InstanceType(v)
	return t >= heap.FirstJSObjectType && t <= heap.LastJSObjectType
}

// IsNullOrUndefined reports whether v is one of the two nullish oddballs.
func (iso *Isolate) IsNullOrUndefined(v tagged.Value) bool {
	return v == iso.Heap.Null() || v == iso.Heap.Undefined()
}
