package heap

import (
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// InstanceType tags the shape of a heap object. The ordering is part of the
// object model: everything at or above FirstJSObjectType is an object in the
// ECMA sense, everything below it is not.
type InstanceType uint8

const (
	InvalidType InstanceType = iota
	MapType
	FixedArrayType
	HeapNumberType
	OddballType
	SharedFunctionInfoType
	ContextType

	JSValueType
	JSObjectType
	JSGlobalObjectType
	JSGlobalProxyType
	JSArrayType
	JSFunctionType
)

const (
	FirstJSObjectType = JSValueType
	LastJSObjectType  = JSArrayType
)

var instanceTypeNames = map[InstanceType]string{
	InvalidType:            "invalid",
	MapType:                "Map",
	FixedArrayType:         "FixedArray",
	HeapNumberType:         "HeapNumber",
	OddballType:            "Oddball",
	SharedFunctionInfoType: "SharedFunctionInfo",
	ContextType:            "Context",
	JSValueType:            "JSValue",
	JSObjectType:           "JSObject",
	JSGlobalObjectType:     "JSGlobalObject",
	JSGlobalProxyType:      "JSGlobalProxy",
	JSArrayType:            "JSArray",
	JSFunctionType:         "JSFunction",
}

func (t InstanceType) String() string {
	if name, ok := instanceTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("InstanceType(%d)", uint8(t))
}

// IsJSObject reports whether objects of this type are objects in the ECMA
// sense (functions included).
func (t InstanceType) IsJSObject() bool {
	return t >= FirstJSObjectType
}

const p = tagged.PointerSize

// Every heap object starts with its map.
const MapOffset = 0

// Map layout. Counts are stored as Smis.
const (
	MapInstanceTypeOffset               = 1 * p
	MapInstanceSizeOffset               = 2 * p // in words
	MapInObjectPropertiesOffset         = 3 * p
	MapPreAllocatedPropertyFieldsOffset = 4 * p
	MapUnusedPropertyFieldsOffset       = 5 * p
	MapPrototypeOffset                  = 6 * p
	MapSize                             = 7 * p
)

// FixedArray layout.
const (
	FixedArrayLengthOffset = 1 * p
	FixedArrayHeaderSize   = 2 * p
)

// FixedArraySizeFor returns the byte size of a FixedArray with n slots.
func FixedArraySizeFor(n int) int {
	return FixedArrayHeaderSize + n*p
}

// FixedArrayOffsetOf returns the byte offset of slot i.
func FixedArrayOffsetOf(i int) int {
	return FixedArrayHeaderSize + i*p
}

// JSObject layout. In-object properties follow the header.
const (
	JSObjectPropertiesOffset = 1 * p
	JSObjectElementsOffset   = 2 * p
	JSObjectHeaderSize       = 3 * p
)

// JSArray layout.
const (
	JSArrayLengthOffset = 3 * p
	JSArraySize         = 4 * p
)

// JSFunction layout. Code fields hold Smi code ids.
const (
	JSFunctionPrototypeOrInitialMapOffset = 3 * p
	JSFunctionSharedOffset                = 4 * p
	JSFunctionContextOffset               = 5 * p
	JSFunctionCodeOffset                  = 6 * p
	JSFunctionSize                        = 7 * p
)

// SharedFunctionInfo layout.
const (
	SharedFormalParameterCountOffset = 1 * p
	SharedCodeOffset                 = 2 * p
	SharedConstructStubOffset        = 3 * p
	SharedFlagsOffset                = 4 * p
	SharedFunctionInfoSize           = 5 * p
)

// SharedFunctionInfo flag bits.
const (
	SharedFlagAPI = 1 << iota
)

// DontAdaptArgumentsSentinel in the formal parameter count tells the
// arguments adaptor to jump straight to the callee.
const DontAdaptArgumentsSentinel = -1

// Oddball layout.
const (
	OddballKindOffset = 1 * p
	OddballSize       = 2 * p
)

// OddballKind distinguishes the oddball singletons.
type OddballKind int64

const (
	OddballUndefined OddballKind = iota
	OddballNull
	OddballTrue
	OddballFalse
	OddballTheHole
)

// HeapNumber layout. The value word holds raw float64 bits, not a tagged
// value.
const (
	HeapNumberValueOffset = 1 * p
	HeapNumberSize        = 2 * p
)

// JSValue (primitive wrapper) layout.
const (
	JSValueValueOffset = 3 * p
	JSValueSize        = 4 * p
)

// Global object layout.
const (
	GlobalContextOffset  = 3 * p
	GlobalReceiverOffset = 4 * p
	GlobalObjectSize     = 5 * p
)

// Context slots. A context uses the FixedArray layout with the context map.
const (
	ContextGlobalIndex = iota
	ContextArrayFunctionIndex
	ContextNumberFunctionIndex
	ContextBooleanFunctionIndex
	ContextLength
)

// ContextSlotOffset returns the byte offset of a context slot.
func ContextSlotOffset(index int) int {
	return FixedArrayOffsetOf(index)
}

// Array limits shared by the array fast paths and the runtime.
const (
	PreallocatedArrayElements  = 4
	InitialMaxFastElementArray = 100000
)
