package builtins

import (
	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// adaptorFrameWords covers the return address, saved fp, marker and the
// two saved fields of an adaptor frame.
const adaptorFrameWords = 5

// ArgumentsAdaptorTrampoline calls Regs.Entry with exactly Regs.Expected
// arguments when the caller pushed Regs.Argc of them.
//
//	Regs.Argc     actual argument count
//	Regs.Function callee
//	Regs.Expected expected argument count or the don't-adapt sentinel
//	Regs.Entry    code to call
//
// Surplus arguments stay behind in the caller's part of the stack; missing
// ones are filled with undefined. The caller's arguments are popped using
// the actual count saved in the frame.
func ArgumentsAdaptorTrampoline(iso *isolate.Isolate) error {
	actual := iso.Regs.Argc
	expected := iso.Regs.Expected
	code := iso.Regs.Entry

	if expected == heap.DontAdaptArgumentsSentinel {
		return iso.JumpCode(code)
	}
	iso.Counters.AdaptorCalls++

	s := iso.Stack
	mark := s.Mark()
	if s.Remaining() < expected+adaptorFrameWords {
		return unwind(iso, mark, actual, iso.RT().Throw(isolate.RangeError, "Maximum call stack size exceeded"))
	}
	if err := s.Enter(frames.ArgumentsAdaptor, iso.Regs.RA, iso.Regs.Function, smi(actual)); err != nil {
		return unwind(iso, mark, actual, err)
	}

	// Copy the receiver and the first min(actual, expected) arguments,
	// lowest argument first.
	receiver := s.CallerSP() + actual
	copied := min(actual, expected)
	for i := 0; i <= copied; i++ {
		s.Push(s.At(receiver - i))
	}
	undefined := iso.Undefined()
	for i := copied; i < expected; i++ {
		s.Push(undefined)
	}

	iso.Regs.Argc = expected
	if err := iso.CallCode(code); err != nil {
		return unwind(iso, mark, actual, err)
	}

	saved, err := savedArgc(iso)
	if err != nil {
		return unwind(iso, mark, actual, err)
	}
	return leave(iso, frames.ArgumentsAdaptor, saved)
}

// ExtraArguments says what the C-function adaptor appends to the
// arguments of a native builtin.
type ExtraArguments uint8

const (
	NoExtraArguments ExtraArguments = iota
	NeedsCalledFunction
)

// Native is a builtin written in Go.
type Native func(iso *isolate.Isolate, args *NativeArguments) (tagged.Value, error)

// NativeArguments is what a native builtin sees of its call.
type NativeArguments struct {
	// Argc counts the receiver, the arguments and any extras.
	Argc      int
	Receiver  tagged.Value
	Args      []tagged.Value // arguments followed by the extras
	Construct bool           // called from a construct frame
}

// At returns argument i, or undefined past the end.
func (a *NativeArguments) At(iso *isolate.Isolate, i int) tagged.Value {
	if i < 0 || i >= len(a.Args) {
		return iso.Undefined()
	}
	return a.Args[i]
}

// CalledFunction returns the function pushed by NeedsCalledFunction.
func (a *NativeArguments) CalledFunction() tagged.Value {
	return a.Args[len(a.Args)-1]
}

// Adaptor wraps a native builtin so it can be called with the language
// calling convention.
func Adaptor(native Native, extra ExtraArguments) isolate.Entry {
	return func(iso *isolate.Isolate) error {
		s := iso.Stack
		argc := iso.Regs.Argc
		if extra == NeedsCalledFunction {
			s.Push(iso.Regs.Function)
			argc++
		}

		args := &NativeArguments{
			Argc:      argc + 1,
			Receiver:  s.Peek(argc),
			Args:      make([]tagged.Value, argc),
			Construct: s.Kind() == frames.Construct,
		}
		for i := range args.Args {
			args.Args[i] = s.Peek(argc - 1 - i)
		}

		result, err := native(iso, args)
		s.Drop(argc + 1)
		if err != nil {
			log.Debug("native builtin threw", "argc", argc, "err", err)
			return err
		}
		iso.Regs.Result = result
		return nil
	}
}
