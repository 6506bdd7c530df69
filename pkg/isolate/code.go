package isolate

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// CodeID identifies an entry in the code table. Functions and shared infos
// hold it as a Smi.
type CodeID int

// Smi returns the id as stored in a code field.
func (id CodeID) Smi() tagged.Value {
	return tagged.FromSmi(int64(id))
}

// CodeKind says where a piece of code came from.
type CodeKind uint8

const (
	BuiltinCode CodeKind = iota
	StubCode
	FunctionCode
	NativeCode
)

func (k CodeKind) String() string {
	switch k {
	case BuiltinCode:
		return "builtin"
	case StubCode:
		return "stub"
	case FunctionCode:
		return "function"
	case NativeCode:
		return "native"
	default:
		return fmt.Sprintf("CodeKind(%d)", uint8(k))
	}
}

// Entry is executable code. It reads its inputs from the registers and the
// stack and leaves its result in Regs.Result.
type Entry func(iso *Isolate) error

// Code is one code table entry.
type Code struct {
	ID    CodeID
	Name  string
	Kind  CodeKind
	Entry Entry
}

// Builtin enumerates the builtins. Each has a code id equal to its value,
// reserved when the isolate is created.
type Builtin int

const (
	ArgumentsAdaptorTrampoline Builtin = iota
	JSConstructCall
	JSConstructStubGeneric
	JSConstructStubApi
	JSEntryTrampoline
	JSConstructEntryTrampoline
	LazyCompile
	FunctionCall
	FunctionApply
	ArrayCode
	ArrayConstructCode
	ArrayCodeGeneric
	CallNonFunction
	CallNonFunctionAsConstructor
	NumberConstructor
	BooleanConstructor

	numBuiltins
)

var builtinNames = [...]string{
	ArgumentsAdaptorTrampoline:   "ArgumentsAdaptorTrampoline",
	JSConstructCall:              "JSConstructCall",
	JSConstructStubGeneric:       "JSConstructStubGeneric",
	JSConstructStubApi:           "JSConstructStubApi",
	JSEntryTrampoline:            "JSEntryTrampoline",
	JSConstructEntryTrampoline:   "JSConstructEntryTrampoline",
	LazyCompile:                  "LazyCompile",
	FunctionCall:                 "FunctionCall",
	FunctionApply:                "FunctionApply",
	ArrayCode:                    "ArrayCode",
	ArrayConstructCode:           "ArrayConstructCode",
	ArrayCodeGeneric:             "ArrayCodeGeneric",
	CallNonFunction:              "CALL_NON_FUNCTION",
	CallNonFunctionAsConstructor: "CALL_NON_FUNCTION_AS_CONSTRUCTOR",
	NumberConstructor:            "NumberConstructor",
	BooleanConstructor:           "BooleanConstructor",
}

func (b Builtin) String() string {
	if b >= 0 && int(b) < len(builtinNames) {
		return builtinNames[b]
	}
	return fmt.Sprintf("Builtin(%d)", int(b))
}

// Code returns the code id of a builtin.
func (b Builtin) Code() CodeID {
	return CodeID(b)
}

// InstallBuiltin sets the entry of a reserved builtin.
func (iso *Isolate) InstallBuiltin(b Builtin, entry Entry) {
	iso.codes[b].Entry = entry
}

// AddCode appends a new code object and returns its id.
func (iso *Isolate) AddCode(name string, kind CodeKind, entry Entry) CodeID {
	id := CodeID(len(iso.codes))
	iso.codes = append(iso.codes, &Code{ID: id, Name: name, Kind: kind, Entry: entry})
	return id
}

// Code looks up a code object.
func (iso *Isolate) Code(id CodeID) (*Code, error) {
	if id < 0 || int(id) >= len(iso.codes) || iso.codes[id].Entry == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCode, int(id))
	}
	return iso.codes[id], nil
}

// CodeCount returns the size of the code table.
func (iso *Isolate) CodeCount() int {
	return len(iso.codes)
}

// nextReturnAddress hands out a fresh return address token.
func (iso *Isolate) nextReturnAddress() tagged.Value {
	iso.raSeq++
	return tagged.FromSmi(iso.raSeq)
}

// CallCode runs code as a call: the callee sees a fresh return address in
// Regs.RA and the caller's is restored afterwards. Anything may happen in
// the callee, so raw addresses die here.
func (iso *Isolate) CallCode(id CodeID) error {
	code, err := iso.Code(id)
	if err != nil {
		return err
	}
	saved := iso.Regs.RA
	ra := iso.nextReturnAddress()
	iso.Regs.RA = ra
	iso.Heap.Invalidate()
	if iso.Flags.Trace {
		log.Debug("call", "code", code.Name, "kind", code.Kind, "argc", iso.Regs.Argc, "sp", iso.Stack.SP())
	}
	err = code.Entry(iso)
	if err == nil && iso.Regs.RA != ra {
		err = fmt.Errorf("%s returned through %v, want %v", code.Name, iso.Regs.RA, ra)
	}
	iso.Regs.RA = saved
	return err
}

// JumpCode transfers to code as a tail call: the callee returns directly to
// the current caller.
func (iso *Isolate) JumpCode(id CodeID) error {
	code, err := iso.Code(id)
	if err != nil {
		return err
	}
	iso.Heap.Invalidate()
	if iso.Flags.Trace {
		log.Debug("jump", "code", code.Name, "kind", code.Kind, "argc", iso.Regs.Argc, "sp", iso.Stack.SP())
	}
	return code.Entry(iso)
}

// CallBuiltin calls a builtin.
func (iso *Isolate) CallBuiltin(b Builtin) error {
	return iso.CallCode(b.Code())
}

// JumpBuiltin tail-calls a builtin.
func (iso *Isolate) JumpBuiltin(b Builtin) error {
	return iso.JumpCode(b.Code())
}
