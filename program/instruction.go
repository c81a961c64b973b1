// Package program holds the data model decoded from a program JSON bundle:
// instructions, symbols, heap entries and entry points. It mirrors wasm's
// module.go in spirit — a set of plain aggregates with no behavior beyond
// lookup — but for the VM's stack bytecode instead of WebAssembly sections.
package program

import "fmt"

// OpCode is the closed set of instructions the VM's bytecode stream can
// contain. Wire values follow §6 of the spec: 0,1,2,4,5,6,7,8,9 (3 is
// reserved and never produced).
type OpCode uint32

const (
	OpNop          OpCode = 0
	OpPush         OpCode = 1
	OpPop          OpCode = 2
	OpJumpIfFalse  OpCode = 4
	OpJump         OpCode = 5
	OpExtern       OpCode = 6
	OpAnnotation   OpCode = 7
	OpJumpIndirect OpCode = 8
	OpCopy         OpCode = 9
)

// HasOperand reports whether the opcode is followed by a 4-byte operand in
// the wire format (and therefore occupies 8 bytes total instead of 4).
func (op OpCode) HasOperand() bool {
	switch op {
	case OpPush, OpJumpIfFalse, OpJump, OpExtern, OpAnnotation, OpJumpIndirect:
		return true
	default:
		return false
	}
}

// Size is the number of bytes this opcode occupies in the bytecode stream.
func (op OpCode) Size() uint32 {
	if op.HasOperand() {
		return 8
	}
	return 4
}

func (op OpCode) String() string {
	switch op {
	case OpNop:
		return "NOP"
	case OpPush:
		return "PUSH"
	case OpPop:
		return "POP"
	case OpJumpIfFalse:
		return "JUMP_IF_FALSE"
	case OpJump:
		return "JUMP"
	case OpExtern:
		return "EXTERN"
	case OpAnnotation:
		return "ANNOTATION"
	case OpJumpIndirect:
		return "JUMP_INDIRECT"
	case OpCopy:
		return "COPY"
	default:
		return fmt.Sprintf("OpCode(%d)", uint32(op))
	}
}

// IsKnown reports whether op is one of the nine wire opcodes. Every boundary
// that reads an OpCode off the wire must check this and fail fast rather
// than silently falling through — see MalformedBytecode in internal/errs.
func (op OpCode) IsKnown() bool {
	switch op {
	case OpNop, OpPush, OpPop, OpJumpIfFalse, OpJump, OpExtern, OpAnnotation, OpJumpIndirect, OpCopy:
		return true
	default:
		return false
	}
}

// Instruction is one decoded bytecode instruction (§3).
type Instruction struct {
	Addr uint32
	Op   OpCode

	HasOperand bool
	Operand    uint32

	// OperandName is resolved from the symbol table or heap string during
	// parsing: for EXTERN it is the extern function signature, for the
	// other named opcodes it is the symbol name backing the operand
	// address.
	OperandName string
}

// Size is the number of bytes this instruction occupies in the stream.
func (ins Instruction) Size() uint32 {
	return ins.Op.Size()
}

// End is the address one past the last byte of this instruction.
func (ins Instruction) End() uint32 {
	return ins.Addr + ins.Size()
}

func (ins Instruction) String() string {
	if ins.HasOperand {
		if ins.OperandName != "" {
			return fmt.Sprintf("%06x: %s %s (%d)", ins.Addr, ins.Op, ins.OperandName, ins.Operand)
		}
		return fmt.Sprintf("%06x: %s %d", ins.Addr, ins.Op, ins.Operand)
	}
	return fmt.Sprintf("%06x: %s", ins.Addr, ins.Op)
}

// HaltJumpSentinel is the all-ones value used both as the reserved constant
// pushed ahead of a function prologue and as the target of a halt jump.
const HaltJumpSentinel uint32 = 0xFFFFFFFF

// HaltJumpConstantName is the reserved symbol name that must carry
// HaltJumpSentinel as its initial heap value (§6).
const HaltJumpConstantName = "__const_SystemUInt32_0"

// ReturnJumpTempPrefix matches the reserved return-jump-address temporary
// symbol family referenced by §3's SymbolInfo invariants.
const ReturnJumpTempPrefix = "__returnJumpTarget"
