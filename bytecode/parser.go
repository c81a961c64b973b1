// Package bytecode implements §4.1: decoding the raw bytecode byte stream
// into a linear Instruction sequence, resolving named operands against the
// symbol table and heap, and deriving each entry point's call_jump_target.
//
// Grounded on disasm/disasm.go's sequential byte-reader decode loop and
// wasm/read.go's per-field explicit error returns; wrapped with
// github.com/pkg/errors so a truncated-operand failure keeps the offending
// address as it propagates out of the pipeline.
package bytecode

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/udon-tools/udecomp/internal/errs"
	"github.com/udon-tools/udecomp/program"
)

// Parse decodes prog.Bytecode into a contiguous Instruction stream and
// derives EntryPointInfo.CallJumpTarget for every declared entry point
// from its halt-jump sentinel PUSH prologue; a declared entry without that
// prologue is a MalformedProgram error, and discovered entries are skipped.
//
// Postconditions match §8's universal properties: the returned slice's
// addresses are strictly increasing and its total byte length equals
// prog.BytecodeLength.
func Parse(prog *program.UdonProgramData) ([]program.Instruction, error) {
	buf := prog.Bytecode
	if uint32(len(buf)) != prog.BytecodeLength {
		return nil, &errs.MalformedProgram{Reason: "byteCodeLength does not match decoded bytecode length"}
	}

	var out []program.Instruction
	var addr uint32
	for int(addr) < len(buf) {
		ins, err := decodeOne(prog, buf, addr)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding instruction at %#06x", addr)
		}
		out = append(out, ins)
		addr = ins.End()
	}

	if err := resolveEntryPoints(prog, out); err != nil {
		return nil, err
	}

	return out, nil
}

func decodeOne(prog *program.UdonProgramData, buf []byte, addr uint32) (program.Instruction, error) {
	if int(addr)+4 > len(buf) {
		return program.Instruction{}, &errs.MalformedBytecode{Addr: addr, Reason: "truncated opcode"}
	}
	op := program.OpCode(binary.BigEndian.Uint32(buf[addr : addr+4]))
	if !op.IsKnown() {
		return program.Instruction{}, &errs.MalformedBytecode{Addr: addr, Reason: "unknown opcode"}
	}

	ins := program.Instruction{Addr: addr, Op: op}
	if !op.HasOperand() {
		return ins, nil
	}

	operandAddr := addr + 4
	if int(operandAddr)+4 > len(buf) {
		return program.Instruction{}, &errs.MalformedBytecode{Addr: addr, Reason: "truncated operand"}
	}
	operand := binary.BigEndian.Uint32(buf[operandAddr : operandAddr+4])
	ins.HasOperand = true
	ins.Operand = operand

	name, err := resolveOperandName(prog, op, addr, operand)
	if err != nil {
		return program.Instruction{}, err
	}
	ins.OperandName = name

	return ins, nil
}

// resolveOperandName implements §4.1's resolution rule: for EXTERN the
// operand is a heap address whose string value is the function signature;
// for every other named opcode the operand is a heap address whose symbol
// name is recorded. A named operand that fails to resolve is
// MalformedBytecode.
func resolveOperandName(prog *program.UdonProgramData, op program.OpCode, insAddr, operand uint32) (string, error) {
	if op == program.OpExtern {
		entry, ok := prog.HeapAt(operand)
		if !ok {
			return "", &errs.MalformedBytecode{Addr: insAddr, Reason: "EXTERN operand has no backing heap entry"}
		}
		sig, ok := entry.StringValue()
		if !ok {
			return "", &errs.MalformedBytecode{Addr: insAddr, Reason: "EXTERN operand's heap entry is not a serializable string"}
		}
		return sig, nil
	}

	if sym, ok := prog.SymbolAt(operand); ok {
		return sym.Name, nil
	}
	// Not every named operand is required to resolve to a symbol — jump
	// targets (JUMP, JUMP_IF_FALSE, JUMP_INDIRECT) address instructions,
	// not symbols/heap cells, so absence of a symbol there is expected.
	switch op {
	case program.OpJump, program.OpJumpIfFalse, program.OpJumpIndirect, program.OpAnnotation:
		return "", nil
	default:
		return "", &errs.MalformedBytecode{Addr: insAddr, Reason: "operand has no backing symbol"}
	}
}

// resolveEntryPoints visits each declared entry point, requires its first
// instruction to be the halt-jump sentinel PUSH, and records
// call_jump_target as the address of the next instruction (§4.1, §3's
// entry-block invariant). Only declared entries are checked — a hidden
// entry the CFG builder's call-convention fixpoint discovers is, by
// construction, already the address right after a matching sentinel PUSH
// at its call site, so it never reaches this function with an unresolved
// prologue of its own to validate.
func resolveEntryPoints(prog *program.UdonProgramData, instrs []program.Instruction) error {
	byAddr := make(map[uint32]int, len(instrs))
	for i, ins := range instrs {
		byAddr[ins.Addr] = i
	}

	for i := range prog.EntryPoints {
		ep := &prog.EntryPoints[i]
		if !ep.Declared {
			continue
		}
		idx, ok := byAddr[ep.Address]
		if !ok {
			return &errs.MalformedProgram{Reason: "entry point address does not land on an instruction boundary"}
		}
		first := instrs[idx]
		if first.Op != program.OpPush {
			return &errs.MalformedProgram{Reason: "missing halt sentinel"}
		}
		entry, ok := prog.HeapAt(first.Operand)
		if !ok {
			return &errs.MalformedProgram{Reason: "missing halt sentinel"}
		}
		if first.OperandName != program.HaltJumpConstantName {
			return &errs.MalformedProgram{Reason: "missing halt sentinel"}
		}
		raw, isInt := asUint32(entry.Value.Raw)
		if !entry.Value.IsSerializable || !isInt || raw != program.HaltJumpSentinel {
			return &errs.MalformedProgram{Reason: "missing halt sentinel"}
		}
		if idx+1 >= len(instrs) {
			return &errs.MalformedProgram{Reason: "halt-jump prologue has no following instruction"}
		}
		ep.CallJumpTarget = instrs[idx+1].Addr
		ep.Resolved = true
	}
	return nil
}

func asUint32(v interface{}) (uint32, bool) {
	switch n := v.(type) {
	case uint32:
		return n, true
	case int:
		return uint32(n), true
	case float64:
		return uint32(n), true
	default:
		return 0, false
	}
}
