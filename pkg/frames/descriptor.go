package frames

import (
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Kind is the frame-kind marker. The numeric values are read by stack
// walkers outside this package and must never change.
type Kind int

const (
	NoFrame        Kind = 0
	Entry          Kind = 1
	EntryConstruct Kind = 2
	// 3 was the exit frame marker; it stays reserved.
	JavaScript       Kind = 4
	Internal         Kind = 5
	Construct        Kind = 6
	ArgumentsAdaptor Kind = 7
)

func (k Kind) String() string {
	switch k {
	case Entry:
		return "entry"
	case EntryConstruct:
		return "entry-construct"
	case JavaScript:
		return "javascript"
	case Internal:
		return "internal"
	case Construct:
		return "construct"
	case ArgumentsAdaptor:
		return "arguments-adaptor"
	default:
		return fmt.Sprintf("frame(%d)", int(k))
	}
}

// Marker is the Smi stored in the marker slot.
func (k Kind) Marker() tagged.Value {
	return tagged.FromSmi(int64(k))
}

// Field names a frame-specific saved value.
type Field int

const (
	FieldContext Field = iota
	FieldArgc
	FieldFunction

	numFields
)

func (f Field) String() string {
	switch f {
	case FieldContext:
		return "context"
	case FieldArgc:
		return "argc"
	case FieldFunction:
		return "function"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Fixed slots relative to the frame pointer, in words. The caller's
// outgoing arguments start right above the return address.
const (
	CallerFPOffset      = 0
	ReturnAddressOffset = 1
	CallerSPOffset      = 2
	MarkerOffset        = -1
	firstFieldOffset    = -2
)

// Descriptor is the layout of one frame kind: the named values it saves
// below the marker, in push order.
type Descriptor struct {
	Kind   Kind
	Fields []Field

	offsets [numFields]int
}

// Offset returns the fp-relative word offset of f, or false if this kind
// does not save f.
func (d *Descriptor) Offset(f Field) (int, bool) {
	off := d.offsets[f]
	return off, off != 0
}

// FixedSize returns the number of words between the marker and the end of
// the fixed part, marker included.
func (d *Descriptor) FixedSize() int {
	return 1 + len(d.Fields)
}

var descriptors = map[Kind]*Descriptor{}

func define(k Kind, fields ...Field) {
	d := &Descriptor{Kind: k, Fields: fields}
	for i, f := range fields {
		d.offsets[f] = firstFieldOffset - i
	}
	descriptors[k] = d
}

func init() {
	define(Entry, FieldContext)
	define(EntryConstruct, FieldContext)
	define(JavaScript, FieldContext, FieldFunction)
	define(Internal, FieldContext)
	define(Construct, FieldContext, FieldArgc, FieldFunction)
	define(ArgumentsAdaptor, FieldFunction, FieldArgc)
}

// Describe returns the descriptor for k.
func Describe(k Kind) (*Descriptor, error) {
	d, ok := descriptors[k]
	if !ok {
		return nil, fmt.Errorf("%w: no descriptor for %s", ErrFrameCorrupt, k)
	}
	return d, nil
}
