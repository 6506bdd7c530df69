package builtins

import (
	"github.com/bplaa-yai/v8m-rb/pkg/frames"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// Call runs fn with the given receiver and arguments on behalf of the
// embedder. An exception comes back as an *isolate.Exception with the
// stack exactly as it was before the call.
func Call(iso *isolate.Isolate, fn, recv tagged.Value, args ...tagged.Value) (tagged.Value, error) {
	return enterJS(iso, frames.Entry, isolate.JSEntryTrampoline, fn, recv, args)
}

// Construct runs new fn(...args) on behalf of the embedder.
func Construct(iso *isolate.Isolate, fn tagged.Value, args ...tagged.Value) (tagged.Value, error) {
	return enterJS(iso, frames.EntryConstruct, isolate.JSConstructEntryTrampoline, fn, fn, args)
}

func enterJS(iso *isolate.Isolate, kind frames.Kind, trampoline isolate.Builtin, fn, recv tagged.Value, args []tagged.Value) (tagged.Value, error) {
	s := iso.Stack
	mark := s.Mark()
	ctx := iso.Regs.Context
	defer func() {
		iso.Regs.Context = ctx
		iso.Regs.Receiver = 0
		iso.Regs.Argv = nil
	}()

	if err := s.Enter(kind, iso.Regs.RA, ctx); err != nil {
		return 0, err
	}
	iso.Regs.Function = fn
	iso.Regs.Receiver = recv
	iso.Regs.Argv = args
	if err := iso.CallBuiltin(trampoline); err != nil {
		s.Restore(mark)
		return 0, err
	}
	if _, err := s.Leave(kind); err != nil {
		s.Restore(mark)
		return 0, err
	}
	return iso.Regs.Result, nil
}

// JSEntryTrampoline calls Regs.Function with Regs.Receiver and Regs.Argv.
func JSEntryTrampoline(iso *isolate.Isolate) error {
	return entryTrampoline(iso, false)
}

// JSConstructEntryTrampoline constructs Regs.Function with Regs.Argv.
func JSConstructEntryTrampoline(iso *isolate.Isolate) error {
	return entryTrampoline(iso, true)
}

func entryTrampoline(iso *isolate.Isolate, isConstruct bool) error {
	s := iso.Stack
	mark := s.Mark()
	fn := iso.Regs.Function
	argv := iso.Regs.Argv

	iso.Regs.Context = tagged.Zero
	if err := s.Enter(frames.Internal, iso.Regs.RA, iso.Regs.Context); err != nil {
		return err
	}
	iso.Regs.Context = iso.Roots().GlobalContext
	if iso.IsFunction(fn) {
		iso.Regs.Context = iso.FunctionContext(fn)
	}

	s.Push(fn)
	s.Push(iso.Regs.Receiver)
	s.PushAll(argv...)

	undefined := iso.Undefined()
	for i := range iso.Regs.Operands {
		iso.Regs.Operands[i] = undefined
	}

	iso.Regs.Function = fn
	iso.Regs.Argc = len(argv)
	var err error
	switch {
	case isConstruct:
		err = iso.CallBuiltin(isolate.JSConstructCall)
	case iso.IsFunction(fn):
		err = iso.InvokeFunction(fn, len(argv), isolate.CallFunctionFlag)
	default:
		err = iso.CallBuiltin(isolate.CallNonFunction)
	}
	if err != nil {
		s.Restore(mark)
		return err
	}

	ra, err := s.Leave(frames.Internal)
	if err != nil {
		s.Restore(mark)
		return err
	}
	iso.Regs.RA = ra
	return nil
}

// LazyCompile compiles Regs.Function and tail-calls the result with the
// arguments untouched.
func LazyCompile(iso *isolate.Isolate) error {
	s := iso.Stack
	mark := s.Mark()
	argc := iso.Regs.Argc

	if err := s.Enter(frames.Internal, iso.Regs.RA, iso.Regs.Context); err != nil {
		return unwind(iso, mark, argc, err)
	}
	s.Push(iso.Regs.Function)
	code, err := iso.RT().LazyCompile(iso.Regs.Function)
	if err != nil {
		return unwind(iso, mark, argc, err)
	}
	iso.Regs.Function = s.Pop()
	if err := restoreContext(iso); err != nil {
		return unwind(iso, mark, argc, err)
	}
	if _, err := s.Leave(frames.Internal); err != nil {
		return unwind(iso, mark, argc, err)
	}
	iso.Regs.Argc = argc
	return iso.JumpCode(code)
}
