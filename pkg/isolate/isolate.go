package isolate

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

var (
	ErrUnknownCode = errors.New("no code installed under this id")
	ErrAssertion   = errors.New("debug assertion failed")
	ErrNoRuntime   = errors.New("runtime collaborator not installed")
)

// Flags are the process-wide switches the protocols consult.
type Flags struct {
	InlineNew bool // allow the construct fast path
	DebugCode bool // emit the debug-only assertions
	Trace     bool // log every builtin entry
}

// Config sizes an isolate.
type Config struct {
	Heap         heap.Config
	StackSize    int // words
	StackReserve int // words kept below the real stack limit
	Flags        Flags
}

// DefaultConfig is what the driver and the tests start from.
func DefaultConfig() Config {
	return Config{
		Heap:         heap.Config{OldSpace: 256 << 10, YoungSpace: 64 << 10},
		StackSize:    4096,
		StackReserve: 64,
		Flags:        Flags{InlineNew: true, DebugCode: true},
	}
}

// Registers is the register file shared by the protocols. Each field plays
// the role of one machine register of the calling convention.
type Registers struct {
	Argc     int          // actual argument count
	Expected int          // formal parameter count for the adaptor
	Function tagged.Value // callee
	Entry    CodeID       // code the adaptor forwards to
	Result   tagged.Value // return value
	Context  tagged.Value // current context
	RA       tagged.Value // return address token of the running code

	// Entry trampolines read the embedder's receiver and argument handles
	// from here.
	Receiver tagged.Value
	Argv     []tagged.Value

	// Operands are the caller-saved scratch slots the stubs work in.
	Operands [NumOperands]tagged.Value
}

// Counters are the statistics the protocols bump.
type Counters struct {
	ArrayFunctionNative int
	ConstructedObjects  int
	ConstructFastPath   int
	ConstructSlowPath   int
	AdaptorCalls        int
	RuntimeCalls        int
	StubCacheHits       int
	StubCacheMisses     int
}

// Isolate owns one heap, one stack and the code table.
type Isolate struct {
	ID       uuid.UUID
	Heap     *heap.Heap
	Stack    *frames.Stack
	Regs     Registers
	Flags    Flags
	Counters Counters
	Debug    *Debugger

	runtime Runtime
	codes   []*Code                 // code table, indexed by CodeID
	lazy    map[tagged.Value]CodeID // shared info -> code produced by lazy compilation
	raSeq   int64                   // return address tokens handed out so far

	roots Roots
}

type Option func(*Isolate)

// WithRuntime installs the slow-path collaborator.
func WithRuntime(rt Runtime) Option {
	return func(iso *Isolate) { iso.runtime = rt }
}

// WithFlags overrides the configured flags.
func WithFlags(f Flags) Option {
	return func(iso *Isolate) { iso.Flags = f }
}

// New creates an isolate, bootstraps its heap objects and reserves the
// builtin code ids. Builtins are installed separately.
func New(cfg Config, opts ...Option) (*Isolate, error) {
	h, err := heap.New(cfg.Heap)
	if err != nil {
		return nil, fmt.Errorf("isolate heap: %w", err)
	}
	iso := &Isolate{
		ID:    uuid.New(),
		Heap:  h,
		Stack: frames.NewStack(cfg.StackSize, cfg.StackReserve),
		Flags: cfg.Flags,
		Debug: &Debugger{},
		codes: make([]*Code, numBuiltins),
		lazy:  make(map[tagged.Value]CodeID),
	}
	for b := Builtin(0); b < numBuiltins; b++ {
		iso.codes[b] = &Code{ID: CodeID(b), Name: b.String(), Kind: BuiltinCode}
	}
	h.SetStepSignal(iso.Debug)

	for _, o := range opts {
		o(iso)
	}

	if err := iso.bootstrap(); err != nil {
		return nil, fmt.Errorf("isolate bootstrap: %w", err)
	}
	iso.Regs.Context = iso.roots.GlobalContext
	iso.Regs.RA = tagged.Zero
	log.Debug("isolate created", "id", iso.ID, "old", cfg.Heap.OldSpace, "young", cfg.Heap.YoungSpace, "stack", cfg.StackSize)
	return iso, nil
}

// SetRuntime replaces the slow-path collaborator.
func (iso *Isolate) SetRuntime(rt Runtime) {
	iso.runtime = rt
}

// RT returns the runtime collaborator for one call. The call may allocate
// and collect, so every raw address held across it is invalidated first.
func (iso *Isolate) RT() Runtime {
	iso.Heap.Invalidate()
	iso.Counters.RuntimeCalls++
	if iso.runtime == nil {
		return missingRuntime{}
	}
	return iso.runtime
}

// Roots returns the isolate's well-known objects.
func (iso *Isolate) Roots() *Roots {
	return &iso.roots
}

// Undefined is shorthand for the undefined oddball.
func (iso *Isolate) Undefined() tagged.Value {
	return iso.Heap.Undefined()
}

// Assert fails with ErrAssertion when debug code is enabled and ok is false.
func (iso *Isolate) Assert(ok bool, format string, args ...any) error {
	if !iso.Flags.DebugCode || ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAssertion, fmt.Sprintf(format, args...))
}

// Debugger holds the single-step state shared with the heap.
type Debugger struct {
	stepIn bool
}

// ArmStepIn requests a break at the next function entry.
func (d *Debugger) ArmStepIn() { d.stepIn = true }

// Disarm clears a pending step.
func (d *Debugger) Disarm() { d.stepIn = false }

// StepInPending reports whether a step-in is armed.
func (d *Debugger) StepInPending() bool { return d.stepIn }
