package interpreter

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/bplaa-yai/v8m-rb/pkg/builtins"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/lexer"
	"github.com/bplaa-yai/v8m-rb/pkg/parser"
	"github.com/bplaa-yai/v8m-rb/pkg/runtime"
	"github.com/bplaa-yai/v8m-rb/pkg/stubs"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

var (
	ErrUnknownFunction = errors.New("unknown function")
	ErrArity           = errors.New("wrong number of arguments")
)

var binaryOps = map[lexer.TokenType]stubs.Op{
	lexer.PLUS:  stubs.OpAdd,
	lexer.MINUS: stubs.OpSub,
	lexer.MULT:  stubs.OpMul,
	lexer.DIV:   stubs.OpDiv,
	lexer.MOD:   stubs.OpMod,
	lexer.OR:    stubs.OpBitOr,
	lexer.AND:   stubs.OpBitAnd,
	lexer.XOR:   stubs.OpBitXor,
	lexer.SHL:   stubs.OpShl,
	lexer.SAR:   stubs.OpSar,
	lexer.SHR:   stubs.OpShr,
}

var transcendentals = map[string]stubs.Transcendental{
	"sin": stubs.Sin,
	"cos": stubs.Cos,
	"log": stubs.Log,
}

// Interpreter evaluates expression trees through the stub cache. Every
// operator node owns one binary op site, so evaluating the same tree again
// sees the type feedback of earlier runs.
type Interpreter struct {
	iso   *isolate.Isolate
	stubs *stubs.Cache

	sites     map[parser.Node]*stubs.BinaryOpSite
	order     []parser.Node
	constants map[*parser.Number]tagged.Value
}

// NewInterpreter creates an interpreter that calls stubs from c.
func NewInterpreter(iso *isolate.Isolate, c *stubs.Cache) *Interpreter {
	return &Interpreter{
		iso:       iso,
		stubs:     c,
		sites:     make(map[parser.Node]*stubs.BinaryOpSite),
		constants: make(map[*parser.Number]tagged.Value),
	}
}

// Eval evaluates n.
func (i *Interpreter) Eval(n parser.Node) (tagged.Value, error) {
	switch n := n.(type) {
	case *parser.Number:
		return i.constant(n)
	case *parser.Literal:
		return i.literal(n), nil
	case *parser.Unary:
		return i.negate(n)
	case *parser.Binary:
		return i.binary(n)
	case *parser.Call:
		return i.call(n)
	}
	return 0, fmt.Errorf("cannot evaluate %T", n)
}

// Site is a binary op site and the stub it currently calls.
type Site struct {
	Expr string
	Stub *stubs.Stub
}

// Sites returns the binary op sites in the order they were created.
func (i *Interpreter) Sites() []Site {
	sites := make([]Site, len(i.order))
	for k, n := range i.order {
		sites[k] = Site{Expr: n.String(), Stub: i.sites[n].Stub()}
	}
	return sites
}

// temporary reports whether evaluating n yields a fresh value that a stub
// may overwrite. Constants are shared between runs and natives may return
// their argument or a cached number.
func temporary(n parser.Node) bool {
	switch n.(type) {
	case *parser.Binary, *parser.Unary:
		return true
	}
	return false
}

func overwriteMode(left, right parser.Node) stubs.OverwriteMode {
	switch {
	case temporary(left):
		return stubs.OverwriteLeft
	case temporary(right):
		return stubs.OverwriteRight
	}
	return stubs.NoOverwrite
}

// smallInt returns the integer value of a literal right operand.
func smallInt(n parser.Node) (int, bool) {
	num, ok := n.(*parser.Number)
	if !ok || num.Value != math.Trunc(num.Value) || math.Abs(num.Value) > stubs.MaxKnownRHS {
		return 0, false
	}
	return int(num.Value), true
}

func (i *Interpreter) site(n parser.Node, d stubs.BinaryOp) (*stubs.BinaryOpSite, error) {
	if s, ok := i.sites[n]; ok {
		return s, nil
	}
	s, err := i.stubs.NewBinaryOpSite(d)
	if err != nil {
		return nil, err
	}
	i.sites[n] = s
	i.order = append(i.order, n)
	log.Debug("interpreter: new binary op site", "expr", n, "stub", s.Stub())
	return s, nil
}

func (i *Interpreter) binary(n *parser.Binary) (tagged.Value, error) {
	op, ok := binaryOps[n.Op.Type]
	if !ok {
		return 0, fmt.Errorf("%s is not a binary operator", n.Op.Type)
	}
	rhs, known := smallInt(n.Right)
	// A constant left operand is loaded last, so its value arrives in the
	// slot the right operand normally uses.
	swapped := parser.IsConstant(n.Left) && !parser.IsConstant(n.Right)
	s, err := i.site(n, stubs.NewBinaryOp(op, overwriteMode(n.Left, n.Right), swapped, rhs, known))
	if err != nil {
		return 0, err
	}

	var left, right tagged.Value
	if swapped {
		if right, err = i.Eval(n.Right); err != nil {
			return 0, err
		}
		if left, err = i.Eval(n.Left); err != nil {
			return 0, err
		}
	} else {
		if left, err = i.Eval(n.Left); err != nil {
			return 0, err
		}
		if right, err = i.Eval(n.Right); err != nil {
			return 0, err
		}
	}
	return s.Call(left, right)
}

// negate multiplies by minus one, which keeps -0 for a zero operand.
func (i *Interpreter) negate(n *parser.Unary) (tagged.Value, error) {
	mode := stubs.NoOverwrite
	if temporary(n.Operand) {
		mode = stubs.OverwriteLeft
	}
	s, err := i.site(n, stubs.NewBinaryOp(stubs.OpMul, mode, false, 0, false))
	if err != nil {
		return 0, err
	}
	v, err := i.Eval(n.Operand)
	if err != nil {
		return 0, err
	}
	return s.Call(v, tagged.FromSmi(-1))
}

func (i *Interpreter) constant(n *parser.Number) (tagged.Value, error) {
	if v, ok := i.constants[n]; ok {
		return v, nil
	}
	var v tagged.Value
	if runtime.IsSmiDouble(n.Value) {
		v = tagged.FromSmi(int64(n.Value))
	} else {
		num, err := i.iso.Heap.NewHeapNumberOld(n.Value)
		if err != nil {
			return 0, err
		}
		v = num
	}
	i.constants[n] = v
	return v, nil
}

func (i *Interpreter) literal(n *parser.Literal) tagged.Value {
	h := i.iso.Heap
	switch n.Token.Type {
	case lexer.TRUE:
		return h.Boolean(true)
	case lexer.FALSE:
		return h.Boolean(false)
	case lexer.NULL:
		return h.Null()
	}
	return i.iso.Undefined()
}

func (i *Interpreter) call(n *parser.Call) (tagged.Value, error) {
	name := n.Callee.Lexeme
	if len(n.Args) != 1 {
		return 0, fmt.Errorf("%s: %w: %d", name, ErrArity, len(n.Args))
	}
	arg, err := i.Eval(n.Args[0])
	if err != nil {
		return 0, err
	}

	iso := i.iso
	switch name {
	case "bool":
		s, err := i.stubs.Get(stubs.ToBoolean{Slot: isolate.OperandLeft})
		if err != nil {
			return 0, err
		}
		iso.Regs.Operands[isolate.OperandLeft] = arg
		if err := iso.CallCode(s.Code); err != nil {
			return 0, err
		}
		return iso.Heap.Boolean(iso.Regs.Result == tagged.FromSmi(1)), nil
	case "Number":
		return builtins.Call(iso, iso.Roots().NumberFunction, iso.Undefined(), arg)
	}

	t, ok := transcendentals[name]
	if !ok {
		return 0, fmt.Errorf("%w %s", ErrUnknownFunction, name)
	}
	s, err := i.stubs.Get(stubs.TranscendentalCache{Type: t})
	if err != nil {
		return 0, err
	}
	iso.Regs.Operands[isolate.OperandLeft] = arg
	if err := iso.CallCode(s.Code); err != nil {
		return 0, err
	}
	return iso.Regs.Result, nil
}

// Describe formats v the way a script would print it.
func Describe(h *heap.Heap, v tagged.Value) string {
	if v.IsSmi() {
		return fmt.Sprint(v.Smi())
	}
	switch t := h.InstanceType(v); t {
	case heap.HeapNumberType:
		return FormatNumber(h.HeapNumberValue(v))
	case heap.OddballType:
		switch h.OddballKind(v) {
		case heap.OddballUndefined:
			return "undefined"
		case heap.OddballNull:
			return "null"
		case heap.OddballTrue:
			return "true"
		case heap.OddballFalse:
			return "false"
		}
		return "hole"
	default:
		return "[object " + t.String() + "]"
	}
}
