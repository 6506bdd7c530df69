package isolate

import (
	"fmt"

	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Runtime is the slow-path collaborator. Every method may allocate, collect
// or throw; callers reach it only through Isolate.RT.
type Runtime interface {
	// NewObject allocates an instance for a constructor without any inline
	// fast path.
	NewObject(constructor tagged.Value) (tagged.Value, error)
	// LazyCompile produces code for a function that has none yet and
	// installs it on the function.
	LazyCompile(function tagged.Value) (CodeID, error)
	// GetProperty reads an indexed property.
	GetProperty(object tagged.Value, index int) (tagged.Value, error)
	// ToObject boxes a primitive; objects are returned unchanged.
	ToObject(v tagged.Value) (tagged.Value, error)
	// ApplyPrepare validates the arguments object of an apply and returns
	// its length.
	ApplyPrepare(args tagged.Value) (int, error)
	// ApplyOverflow reports an apply that would not fit on the stack.
	ApplyOverflow(function tagged.Value, count int) error
	// NewArray constructs an array from arguments the fast path declined.
	NewArray(constructor tagged.Value, args []tagged.Value) (tagged.Value, error)
	// AllocateHeapNumber boxes a double.
	AllocateHeapNumber(f float64) (tagged.Value, error)
	// Throw creates an error object of the given kind.
	Throw(kind ErrorKind, format string, args ...any) error
}

// ErrorKind classifies a thrown exception.
type ErrorKind int

const (
	TypeError ErrorKind = iota
	RangeError
	Thrown
)

func (k ErrorKind) String() string {
	switch k {
	case TypeError:
		return "TypeError"
	case RangeError:
		return "RangeError"
	default:
		return "Error"
	}
}

// Exception is a pending exception unwinding through the protocols. Value
// is the thrown object.
type Exception struct {
	Kind    ErrorKind
	Value   tagged.Value
	Message string
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("uncaught %s %v", e.Kind, e.Value)
	}
	return fmt.Sprintf("uncaught %s: %s", e.Kind, e.Message)
}

// missingRuntime fails every slow path.
type missingRuntime struct{}

func (missingRuntime) NewObject(tagged.Value) (tagged.Value, error) { return 0, ErrNoRuntime }
func (missingRuntime) LazyCompile(tagged.Value) (CodeID, error)      { return 0, ErrNoRuntime }
func (missingRuntime) GetProperty(tagged.Value, int) (tagged.Value, error) {
	return 0, ErrNoRuntime
}
func (missingRuntime) ToObject(tagged.Value) (tagged.Value, error)  { return 0, ErrNoRuntime }
func (missingRuntime) ApplyPrepare(tagged.Value) (int, error)       { return 0, ErrNoRuntime }
func (missingRuntime) ApplyOverflow(tagged.Value, int) error        { return ErrNoRuntime }
func (missingRuntime) NewArray(tagged.Value, []tagged.Value) (tagged.Value, error) {
	return 0, ErrNoRuntime
}
func (missingRuntime) AllocateHeapNumber(float64) (tagged.Value, error) { return 0, ErrNoRuntime }
func (missingRuntime) Throw(ErrorKind, string, ...any) error            { return ErrNoRuntime }
