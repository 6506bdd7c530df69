package heap

import (
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// AllocFlags qualify a fast allocation request.
type AllocFlags uint8

const (
	// SizeInWords means the requested size counts words, not bytes.
	SizeInWords AllocFlags = 1 << iota
)

// AllocateOld bump-allocates size bytes in old space. Old space is never
// moved; exhaustion is a hard error.
func (h *Heap) AllocateOld(size int) (RawAddress, error) {
	size = align(size)
	if h.old.top+tagged.Address(size) > h.old.limit {
		return RawAddress{}, fmt.Errorf("old space: %d bytes requested, %d free: %w", size, int(h.old.limit-h.old.top), ErrOutOfMemory)
	}
	r := RawAddress{addr: h.old.top, epoch: h.epoch}
	h.old.top += tagged.Address(size)
	return r, nil
}

// TryAllocate is the inline young-space allocation. It returns
// ErrNeedsSlowPath when the space is exhausted or when a debugger step is
// armed, so stepping never misses an allocation side effect.
//
// The returned memory is zeroed and untagged; the object only becomes real
// once the caller has written its map and container fields and tagged it.
func (h *Heap) TryAllocate(size int, flags AllocFlags) (RawAddress, error) {
	if flags&SizeInWords != 0 {
		size = tagged.Bytes(size)
	}
	if size <= 0 {
		return RawAddress{}, fmt.Errorf("young space: bad size %d: %w", size, ErrNeedsSlowPath)
	}
	if h.step != nil && h.step.StepInPending() {
		return RawAddress{}, ErrNeedsSlowPath
	}
	size = align(size)
	if h.young.top+tagged.Address(size) > h.young.limit {
		return RawAddress{}, ErrNeedsSlowPath
	}
	r := RawAddress{addr: h.young.top, epoch: h.epoch}
	h.young.top += tagged.Address(size)
	return r, nil
}

// YoungTop returns the current young allocation pointer. Allocations are
// contiguous, so the top right after an allocation is the start of the next
// object.
func (h *Heap) YoungTop() RawAddress {
	return RawAddress{addr: h.young.top, epoch: h.epoch}
}

// UndoAllocation rolls the young allocation pointer back to obj. top must be
// the allocation pointer observed right after obj was allocated and nothing
// may have been allocated since. The released memory is zeroed so a later
// verification never sees a half-built object.
func (h *Heap) UndoAllocation(obj, top RawAddress) error {
	h.check(obj)
	h.check(top)
	if top.addr != h.young.top {
		return fmt.Errorf("%w: top moved from %#x to %#x", ErrUndoInvalid, uint64(top.addr), uint64(h.young.top))
	}
	if obj.addr < h.young.start || obj.addr >= h.young.top {
		return fmt.Errorf("%w: %#x is not a live young allocation", ErrUndoInvalid, uint64(obj.addr))
	}
	for a := obj.addr; a < h.young.top; a += tagged.PointerSize {
		h.mem[h.index(a)] = 0
	}
	h.young.top = obj.addr
	return nil
}
