package isolate

import "fmt"

// Operand names a scratch slot in Registers.Operands. Stubs address their
// inputs and temporaries by slot rather than by machine register.
type Operand uint8

const (
	OperandLeft Operand = iota
	OperandRight
	OperandResult
	OperandScratch0
	OperandScratch1
	OperandScratch2
	OperandObject
	OperandAddress

	NumOperands = 16
)

var operandNames = [...]string{
	OperandLeft:     "left",
	OperandRight:    "right",
	OperandResult:   "result",
	OperandScratch0: "scratch0",
	OperandScratch1: "scratch1",
	OperandScratch2: "scratch2",
	OperandObject:   "object",
	OperandAddress:  "address",
}

func (o Operand) String() string {
	if int(o) < len(operandNames) && operandNames[o] != "" {
		return operandNames[o]
	}
	return fmt.Sprintf("slot%d", uint8(o))
}

// Valid reports whether o addresses an existing slot.
func (o Operand) Valid() bool {
	return int(o) < NumOperands
}
