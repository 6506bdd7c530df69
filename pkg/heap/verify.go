package heap

import (
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Stats summarizes space usage.
type Stats struct {
	OldUsed, OldCapacity     int
	YoungUsed, YoungCapacity int
	Objects                  int
	Remembered               int
}

// Stats walks both spaces and reports usage.
func (h *Heap) Stats() (Stats, error) {
	s := Stats{
		OldUsed:       h.old.Used(),
		OldCapacity:   h.old.Capacity(),
		YoungUsed:     h.young.Used(),
		YoungCapacity: h.young.Capacity(),
		Remembered:    len(h.remembered),
	}
	for _, sp := range []*Space{&h.old, &h.young} {
		starts, err := h.objectStarts(sp)
		if err != nil {
			return s, err
		}
		s.Objects += len(starts)
	}
	return s, nil
}

// objectStarts parses a space linearly from start to top.
func (h *Heap) objectStarts(sp *Space) ([]tagged.Address, error) {
	var starts []tagged.Address
	for a := sp.start; a < sp.top; {
		obj := tagged.FromAddress(a)
		size, err := h.ObjectSize(obj)
		if err != nil {
			return nil, fmt.Errorf("%s space at %#x: %w", sp.Name, uint64(a), err)
		}
		if size <= 0 || a+tagged.Address(size) > sp.top {
			return nil, fmt.Errorf("%w: %s space object at %#x with size %d runs past top", ErrCorrupt, sp.Name, uint64(a), size)
		}
		starts = append(starts, a)
		a += tagged.Address(size)
	}
	return starts, nil
}

// Verify checks that every allocated object in both spaces has a valid map,
// a size consistent with its contents, and only tagged fields that are Smis
// or references to object starts. Young-to-old references held by old
// objects must be in the remembered set.
func (h *Heap) Verify() error {
	valid := make(map[tagged.Address]struct{})
	var all []tagged.Address
	for _, sp := range []*Space{&h.old, &h.young} {
		starts, err := h.objectStarts(sp)
		if err != nil {
			return err
		}
		for _, a := range starts {
			valid[a] = struct{}{}
		}
		all = append(all, starts...)
	}

	for _, a := range all {
		obj := tagged.FromAddress(a)
		size, _ := h.ObjectSize(obj)
		first := tagged.PointerSize
		if h.InstanceType(obj) == HeapNumberType {
			// raw double, nothing to check
			continue
		}
		for off := first; off < size; off += tagged.PointerSize {
			v := h.Field(obj, off)
			if v.IsSmi() {
				continue
			}
			target := v.Address()
			if _, ok := valid[target]; !ok {
				return fmt.Errorf("%w: %s at %#x field +%d points at %#x which is not an object", ErrCorrupt, h.InstanceType(obj), uint64(a), off, uint64(target))
			}
			if h.old.Contains(a) && h.young.Contains(target) {
				if _, ok := h.remembered[a+tagged.Address(off)]; !ok {
					return fmt.Errorf("%w: old object at %#x field +%d holds a young reference outside the remembered set", ErrCorrupt, uint64(a), off)
				}
			}
		}
		if err := h.verifyShape(obj); err != nil {
			return err
		}
	}
	return nil
}

func (h *Heap) verifyShape(obj tagged.Value) error {
	switch t := h.InstanceType(obj); {
	case t.IsJSObject():
		for _, off := range []int{JSObjectPropertiesOffset, JSObjectElementsOffset} {
			store := h.Field(obj, off)
			if !store.IsHeapObject() || h.InstanceType(store) != FixedArrayType {
				return fmt.Errorf("%w: %s %v container +%d is not a FixedArray", ErrCorrupt, t, obj, off)
			}
		}
		if t != JSArrayType {
			break
		}
		// A generic construct stub receiver has not had its length set yet.
		if length := h.Field(obj, JSArrayLengthOffset); !length.IsSmi() && length != h.Undefined() {
			return fmt.Errorf("%w: JSArray %v has length %v", ErrCorrupt, obj, length)
		}
	}
	return nil
}
