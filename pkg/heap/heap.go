package heap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

var (
	ErrNeedsSlowPath = errors.New("allocation needs the slow path")
	ErrOutOfMemory   = errors.New("heap exhausted")
	ErrUndoInvalid   = errors.New("allocation cannot be undone")
	ErrStaleAddress  = errors.New("raw address used after a collector call")
	ErrCorrupt       = errors.New("heap verification failed")
)

// Config sizes the two spaces in bytes.
type Config struct {
	OldSpace   int
	YoungSpace int
}

// StepSignal is the debugger's "single step armed" flag.
type StepSignal interface {
	StepInPending() bool
}

// Space is a contiguous bump-pointer region.
type Space struct {
	Name  string
	start tagged.Address
	top   tagged.Address
	limit tagged.Address
}

// Contains reports whether a lies in the allocated part of the space.
func (s *Space) Contains(a tagged.Address) bool {
	return a >= s.start && a < s.top
}

// Used returns the number of allocated bytes.
func (s *Space) Used() int {
	return int(s.top - s.start)
}

// Capacity returns the size of the space in bytes.
func (s *Space) Capacity() int {
	return int(s.limit - s.start)
}

// RawAddress is an untagged address valid only in the epoch it was obtained
// in. Any call that may reach the collector bumps the epoch; using an older
// RawAddress afterwards panics.
type RawAddress struct {
	addr  tagged.Address
	epoch uint64
}

// Addr returns the untagged address.
func (r RawAddress) Addr() tagged.Address { return r.addr }

// Tag returns the tagged reference to an object starting at r.
func (r RawAddress) Tag() tagged.Value { return tagged.FromAddress(r.addr) }

// Plus offsets r by n bytes within the same epoch.
func (r RawAddress) Plus(n int) RawAddress {
	return RawAddress{addr: r.addr + tagged.Address(n), epoch: r.epoch}
}

// Heap is the simulated word-addressed heap with an old and a young space.
type Heap struct {
	mem   []uint64
	old   Space
	young Space
	epoch uint64

	roots      [numRoots]tagged.Value
	remembered map[tagged.Address]struct{}

	step StepSignal
}

// firstAddress keeps address 0 unused so a zero word is never a valid object.
const firstAddress = tagged.PointerSize

// New creates a heap and bootstraps the primitive maps and oddballs.
func New(cfg Config) (*Heap, error) {
	oldSize := align(cfg.OldSpace)
	youngSize := align(cfg.YoungSpace)
	if oldSize < minOldSpace {
		return nil, fmt.Errorf("old space of %d bytes is below the minimum %d: %w", oldSize, minOldSpace, ErrOutOfMemory)
	}
	total := firstAddress + oldSize + youngSize

	h := &Heap{
		mem:        make([]uint64, total/tagged.PointerSize),
		remembered: make(map[tagged.Address]struct{}),
	}
	h.old = Space{Name: "old", start: firstAddress, top: firstAddress, limit: tagged.Address(firstAddress + oldSize)}
	h.young = Space{Name: "young", start: h.old.limit, top: h.old.limit, limit: h.old.limit + tagged.Address(youngSize)}

	if err := h.bootstrap(); err != nil {
		return nil, err
	}
	return h, nil
}

const minOldSpace = 4096

func align(n int) int {
	return (n + tagged.PointerSize - 1) &^ (tagged.PointerSize - 1)
}

// SetStepSignal installs the debugger flag consulted by TryAllocate.
func (h *Heap) SetStepSignal(s StepSignal) {
	h.step = s
}

// Old returns the old space.
func (h *Heap) Old() *Space { return &h.old }

// Young returns the young space.
func (h *Heap) Young() *Space { return &h.young }

// Epoch returns the current raw-address epoch.
func (h *Heap) Epoch() uint64 { return h.epoch }

// Invalidate ends the current epoch. It must be called before anything that
// may run the collector; every RawAddress handed out before is dead after it.
func (h *Heap) Invalidate() {
	h.epoch++
}

// Revalidate derives a fresh raw address from a tagged reference.
func (h *Heap) Revalidate(obj tagged.Value) RawAddress {
	return RawAddress{addr: obj.Address(), epoch: h.epoch}
}

func (h *Heap) check(r RawAddress) {
	if r.epoch != h.epoch {
		panic(fmt.Errorf("%w: address %#x from epoch %d, heap at %d", ErrStaleAddress, uint64(r.addr), r.epoch, h.epoch))
	}
}

func (h *Heap) index(a tagged.Address) int {
	if uint64(a)&(tagged.PointerSize-1) != 0 {
		panic(fmt.Sprintf("heap: unaligned access at %#x", uint64(a)))
	}
	i := int(a / tagged.PointerSize)
	if a < firstAddress || i >= len(h.mem) {
		panic(fmt.Sprintf("heap: access outside the heap at %#x", uint64(a)))
	}
	return i
}

// Load reads the word at r.
func (h *Heap) Load(r RawAddress) tagged.Value {
	h.check(r)
	return tagged.Value(h.mem[h.index(r.addr)])
}

// Store writes the word at r. Raw stores bypass the write barrier; they are
// only used to initialize objects that are not yet reachable.
func (h *Heap) Store(r RawAddress, v tagged.Value) {
	h.check(r)
	h.mem[h.index(r.addr)] = uint64(v)
}

// Field reads a tagged field of obj at a byte offset.
func (h *Heap) Field(obj tagged.Value, offset int) tagged.Value {
	a := obj.Address() + tagged.Address(offset)
	return tagged.Value(h.mem[h.index(a)])
}

// SetField writes a tagged field of obj and records old-to-young stores.
func (h *Heap) SetField(obj tagged.Value, offset int, v tagged.Value) {
	a := obj.Address() + tagged.Address(offset)
	h.mem[h.index(a)] = uint64(v)
	h.RecordWrite(obj, offset)
}

// RecordWrite is the write barrier: a young reference stored into an old
// object puts the slot into the remembered set.
func (h *Heap) RecordWrite(obj tagged.Value, offset int) {
	if !obj.IsHeapObject() || !h.old.Contains(obj.Address()) {
		return
	}
	slot := obj.Address() + tagged.Address(offset)
	v := tagged.Value(h.mem[h.index(slot)])
	if v.IsHeapObject() && h.young.Contains(v.Address()) {
		h.remembered[slot] = struct{}{}
	}
}

// RememberedSet returns the recorded slots in address order.
func (h *Heap) RememberedSet() []tagged.Address {
	slots := make([]tagged.Address, 0, len(h.remembered))
	for a := range h.remembered {
		slots = append(slots, a)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// InYoung reports whether v refers to a young object.
func (h *Heap) InYoung(v tagged.Value) bool {
	return v.IsHeapObject() && h.young.Contains(v.Address())
}

// MapOf returns the map of a heap object.
func (h *Heap) MapOf(obj tagged.Value) tagged.Value {
	return h.Field(obj, MapOffset)
}

// InstanceType returns the instance type of obj, or InvalidType for a Smi
// or a word that does not look like an object.
func (h *Heap) InstanceType(obj tagged.Value) InstanceType {
	if !obj.IsHeapObject() {
		return InvalidType
	}
	m := h.MapOf(obj)
	if !m.IsHeapObject() {
		return InvalidType
	}
	return h.MapInstanceType(m)
}

// MapInstanceType reads the instance type stored in a map.
func (h *Heap) MapInstanceType(m tagged.Value) InstanceType {
	return InstanceType(h.Field(m, MapInstanceTypeOffset).Smi())
}

// IsMap reports whether v refers to a map.
func (h *Heap) IsMap(v tagged.Value) bool {
	return v.IsHeapObject() && h.MapOf(v) == h.Root(MetaMapRoot)
}

// SmiField reads a Smi field as an int.
func (h *Heap) SmiField(obj tagged.Value, offset int) int {
	return int(h.Field(obj, offset).Smi())
}

// FixedArrayLength returns the length of a FixedArray or Context.
func (h *Heap) FixedArrayLength(arr tagged.Value) int {
	return h.SmiField(arr, FixedArrayLengthOffset)
}

// FixedArrayGet reads slot i of a FixedArray.
func (h *Heap) FixedArrayGet(arr tagged.Value, i int) tagged.Value {
	return h.Field(arr, FixedArrayOffsetOf(i))
}

// FixedArraySet writes slot i of a FixedArray through the write barrier.
func (h *Heap) FixedArraySet(arr tagged.Value, i int, v tagged.Value) {
	h.SetField(arr, FixedArrayOffsetOf(i), v)
}

// HeapNumberValue reads the double held by a heap number.
func (h *Heap) HeapNumberValue(num tagged.Value) float64 {
	a := num.Address() + HeapNumberValueOffset
	return math.Float64frombits(h.mem[h.index(a)])
}

// SetHeapNumberValue overwrites the double held by a heap number.
func (h *Heap) SetHeapNumberValue(num tagged.Value, f float64) {
	a := num.Address() + HeapNumberValueOffset
	h.mem[h.index(a)] = math.Float64bits(f)
}

// StoreFloat writes raw double bits at r.
func (h *Heap) StoreFloat(r RawAddress, f float64) {
	h.check(r)
	h.mem[h.index(r.addr)] = math.Float64bits(f)
}

// IsNumber reports whether v is a Smi or a heap number.
func (h *Heap) IsNumber(v tagged.Value) bool {
	return v.IsSmi() || h.InstanceType(v) == HeapNumberType
}

// NumberValue returns the numeric value of a Smi or heap number.
func (h *Heap) NumberValue(v tagged.Value) float64 {
	if v.IsSmi() {
		return float64(v.Smi())
	}
	return h.HeapNumberValue(v)
}

// OddballKind returns the kind of an oddball.
func (h *Heap) OddballKind(v tagged.Value) OddballKind {
	return OddballKind(h.Field(v, OddballKindOffset).Smi())
}

// ObjectSize returns the size in bytes of the object at obj, derived from
// its map.
func (h *Heap) ObjectSize(obj tagged.Value) (int, error) {
	m := h.MapOf(obj)
	if !h.IsMap(m) {
		return 0, fmt.Errorf("%w: object %v has no valid map (%v)", ErrCorrupt, obj, m)
	}
	switch t := h.MapInstanceType(m); t {
	case MapType:
		return MapSize, nil
	case FixedArrayType, ContextType:
		n := h.Field(obj, FixedArrayLengthOffset)
		if !n.IsSmi() || n.Smi() < 0 {
			return 0, fmt.Errorf("%w: %s %v has length %v", ErrCorrupt, t, obj, n)
		}
		return FixedArraySizeFor(int(n.Smi())), nil
	case HeapNumberType:
		return HeapNumberSize, nil
	case OddballType:
		return OddballSize, nil
	case SharedFunctionInfoType:
		return SharedFunctionInfoSize, nil
	default:
		return tagged.Bytes(h.SmiField(m, MapInstanceSizeOffset)), nil
	}
}
