package heap

import (
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// RootIndex names a slot in the root list.
type RootIndex int

const (
	MetaMapRoot RootIndex = iota
	FixedArrayMapRoot
	HeapNumberMapRoot
	OddballMapRoot
	SharedFunctionInfoMapRoot
	ContextMapRoot
	UndefinedValueRoot
	NullValueRoot
	TrueValueRoot
	FalseValueRoot
	TheHoleValueRoot
	EmptyFixedArrayRoot

	numRoots
)

// Root returns a root value.
func (h *Heap) Root(i RootIndex) tagged.Value {
	return h.roots[i]
}

// Undefined returns the undefined oddball.
func (h *Heap) Undefined() tagged.Value { return h.roots[UndefinedValueRoot] }

// Null returns the null oddball.
func (h *Heap) Null() tagged.Value { return h.roots[NullValueRoot] }

// TheHole returns the hole sentinel.
func (h *Heap) TheHole() tagged.Value { return h.roots[TheHoleValueRoot] }

// EmptyFixedArray returns the canonical empty store.
func (h *Heap) EmptyFixedArray() tagged.Value { return h.roots[EmptyFixedArrayRoot] }

// Boolean returns the true or false oddball.
func (h *Heap) Boolean(b bool) tagged.Value {
	if b {
		return h.roots[TrueValueRoot]
	}
	return h.roots[FalseValueRoot]
}

func (h *Heap) bootstrap() error {
	meta, err := h.AllocateOld(MapSize)
	if err != nil {
		return err
	}
	metaMap := meta.Tag()
	h.initMap(meta, metaMap, MapType, 0, 0, 0, 0, tagged.Zero)
	h.roots[MetaMapRoot] = metaMap

	primitive := []struct {
		root RootIndex
		typ  InstanceType
	}{
		{FixedArrayMapRoot, FixedArrayType},
		{HeapNumberMapRoot, HeapNumberType},
		{OddballMapRoot, OddballType},
		{SharedFunctionInfoMapRoot, SharedFunctionInfoType},
		{ContextMapRoot, ContextType},
	}
	for _, pm := range primitive {
		m, err := h.NewMap(pm.typ, 0, 0, 0, 0, tagged.Zero)
		if err != nil {
			return err
		}
		h.roots[pm.root] = m
	}

	oddballs := []struct {
		root RootIndex
		kind OddballKind
	}{
		{UndefinedValueRoot, OddballUndefined},
		{NullValueRoot, OddballNull},
		{TrueValueRoot, OddballTrue},
		{FalseValueRoot, OddballFalse},
		{TheHoleValueRoot, OddballTheHole},
	}
	for _, ob := range oddballs {
		raw, err := h.AllocateOld(OddballSize)
		if err != nil {
			return err
		}
		h.Store(raw, h.roots[OddballMapRoot])
		h.Store(raw.Plus(OddballKindOffset), tagged.FromSmi(int64(ob.kind)))
		h.roots[ob.root] = raw.Tag()
	}

	empty, err := h.NewFixedArray(0, tagged.Zero)
	if err != nil {
		return err
	}
	h.roots[EmptyFixedArrayRoot] = empty

	// Maps made before null existed get their prototype patched now.
	for _, r := range []RootIndex{MetaMapRoot, FixedArrayMapRoot, HeapNumberMapRoot, OddballMapRoot, SharedFunctionInfoMapRoot, ContextMapRoot} {
		h.SetField(h.roots[r], MapPrototypeOffset, h.Null())
	}
	return nil
}

func (h *Heap) initMap(raw RawAddress, metaMap tagged.Value, t InstanceType, instanceSize, inObject, preAllocated, unused int, proto tagged.Value) {
	h.Store(raw, metaMap)
	h.Store(raw.Plus(MapInstanceTypeOffset), tagged.FromSmi(int64(t)))
	h.Store(raw.Plus(MapInstanceSizeOffset), tagged.FromSmi(int64(instanceSize)))
	h.Store(raw.Plus(MapInObjectPropertiesOffset), tagged.FromSmi(int64(inObject)))
	h.Store(raw.Plus(MapPreAllocatedPropertyFieldsOffset), tagged.FromSmi(int64(preAllocated)))
	h.Store(raw.Plus(MapUnusedPropertyFieldsOffset), tagged.FromSmi(int64(unused)))
	h.Store(raw.Plus(MapPrototypeOffset), proto)
}

// MapSpec describes a map to create.
type MapSpec struct {
	Type InstanceType
	// InstanceSize is in words and includes the object header.
	InstanceSize int
	InObject     int
	PreAllocated int
	Unused       int
	Prototype    tagged.Value
}

// NewMap allocates a map in old space.
func (h *Heap) NewMap(t InstanceType, instanceSize, inObject, preAllocated, unused int, proto tagged.Value) (tagged.Value, error) {
	raw, err := h.AllocateOld(MapSize)
	if err != nil {
		return 0, err
	}
	h.initMap(raw, h.roots[MetaMapRoot], t, instanceSize, inObject, preAllocated, unused, proto)
	return raw.Tag(), nil
}

// NewMapFromSpec allocates a map described by spec.
func (h *Heap) NewMapFromSpec(spec MapSpec) (tagged.Value, error) {
	proto := spec.Prototype
	if proto == tagged.Zero {
		proto = h.Null()
	}
	if spec.InObject < 0 || spec.PreAllocated < 0 || spec.Unused < 0 {
		return 0, fmt.Errorf("map for %s has negative property counts", spec.Type)
	}
	return h.NewMap(spec.Type, spec.InstanceSize, spec.InObject, spec.PreAllocated, spec.Unused, proto)
}

// NewFixedArray allocates an old-space FixedArray of n slots set to fill.
func (h *Heap) NewFixedArray(n int, fill tagged.Value) (tagged.Value, error) {
	raw, err := h.AllocateOld(FixedArraySizeFor(n))
	if err != nil {
		return 0, err
	}
	h.Store(raw, h.roots[FixedArrayMapRoot])
	h.Store(raw.Plus(FixedArrayLengthOffset), tagged.FromSmi(int64(n)))
	for i := 0; i < n; i++ {
		h.Store(raw.Plus(FixedArrayOffsetOf(i)), fill)
	}
	return raw.Tag(), nil
}

// NewHeapNumberOld allocates a heap number in old space.
func (h *Heap) NewHeapNumberOld(f float64) (tagged.Value, error) {
	raw, err := h.AllocateOld(HeapNumberSize)
	if err != nil {
		return 0, err
	}
	h.Store(raw, h.roots[HeapNumberMapRoot])
	h.StoreFloat(raw.Plus(HeapNumberValueOffset), f)
	return raw.Tag(), nil
}
