package bytecode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udon-tools/udecomp/internal/errs"
	"github.com/udon-tools/udecomp/program"
)

// putInstr appends one 8-byte opcode+operand pair in the wire's big-endian
// encoding; opcodes with no operand (NOP, POP, COPY) take a 4-byte form.
func putInstr(buf []byte, op program.OpCode, hasOperand bool, operand uint32) []byte {
	var head [4]byte
	binary.BigEndian.PutUint32(head[:], uint32(op))
	buf = append(buf, head[:]...)
	if !hasOperand {
		return buf
	}
	var tail [4]byte
	binary.BigEndian.PutUint32(tail[:], operand)
	return append(buf, tail[:]...)
}

func TestParse_ResolvesHaltSentinelEntryPoint(t *testing.T) {
	const sentinelAddr, bodyAddr uint32 = 0x10, 0x08

	symbols := map[string]program.SymbolInfo{
		program.HaltJumpConstantName: {Name: program.HaltJumpConstantName, Type: "SystemUInt32", Address: sentinelAddr},
	}
	heap := map[uint32]program.HeapEntry{
		sentinelAddr: {Address: sentinelAddr, Type: "SystemUInt32", Value: program.HeapValue{IsSerializable: true, Raw: program.HaltJumpSentinel}},
	}

	var buf []byte
	buf = putInstr(buf, program.OpPush, true, sentinelAddr) // addr 0x00
	buf = putInstr(buf, program.OpNop, false, 0)             // addr 0x08, the real body start

	entries := []program.EntryPointInfo{{Name: "Start", Address: 0x00, Declared: true}}
	prog, err := program.NewUdonProgramData(symbols, heap, entries, buf, uint32(len(buf)))
	require.NoError(t, err)

	instrs, err := Parse(prog)
	require.NoError(t, err)
	require.Len(t, instrs, 2)

	assert.True(t, prog.EntryPoints[0].Resolved)
	assert.Equal(t, uint32(0x08), prog.EntryPoints[0].CallJumpTarget)
	_ = bodyAddr
}

func TestParse_MissingHaltSentinelFails(t *testing.T) {
	var buf []byte
	buf = putInstr(buf, program.OpNop, false, 0) // not a PUSH at all

	entries := []program.EntryPointInfo{{Name: "Start", Address: 0x00, Declared: true}}
	prog, err := program.NewUdonProgramData(nil, nil, entries, buf, uint32(len(buf)))
	require.NoError(t, err)

	_, err = Parse(prog)
	require.Error(t, err)
	var malformed *errs.MalformedProgram
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "missing halt sentinel", malformed.Reason)
}

func TestParse_MissingHaltSentinelFailsOnWrongSentinelValue(t *testing.T) {
	const addr uint32 = 0x10
	symbols := map[string]program.SymbolInfo{
		program.HaltJumpConstantName: {Name: program.HaltJumpConstantName, Type: "SystemUInt32", Address: addr},
	}
	heap := map[uint32]program.HeapEntry{
		addr: {Address: addr, Type: "SystemUInt32", Value: program.HeapValue{IsSerializable: true, Raw: uint32(0)}}, // wrong value
	}

	var buf []byte
	buf = putInstr(buf, program.OpPush, true, addr)
	buf = putInstr(buf, program.OpNop, false, 0)

	entries := []program.EntryPointInfo{{Name: "Start", Address: 0x00, Declared: true}}
	prog, err := program.NewUdonProgramData(symbols, heap, entries, buf, uint32(len(buf)))
	require.NoError(t, err)

	_, err = Parse(prog)
	require.Error(t, err)
	var malformed *errs.MalformedProgram
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "missing halt sentinel", malformed.Reason)
}

func TestParse_EntryAddressNotOnInstructionBoundaryFails(t *testing.T) {
	var buf []byte
	buf = putInstr(buf, program.OpNop, false, 0)

	entries := []program.EntryPointInfo{{Name: "Ghost", Address: 0x04, Declared: true}} // mid-instruction
	prog, err := program.NewUdonProgramData(nil, nil, entries, buf, uint32(len(buf)))
	require.NoError(t, err)

	_, err = Parse(prog)
	require.Error(t, err)
	var malformed *errs.MalformedProgram
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "entry point address does not land on an instruction boundary", malformed.Reason)
}

func TestParse_DiscoveredEntryPointsSkipSentinelValidation(t *testing.T) {
	var buf []byte
	buf = putInstr(buf, program.OpNop, false, 0)

	prog, err := program.NewUdonProgramData(nil, nil, nil, buf, uint32(len(buf)))
	require.NoError(t, err)
	prog.AddEntryPoint(program.EntryPointInfo{Name: "function_0", Address: 0x00})

	_, err = Parse(prog)
	require.NoError(t, err, "a hidden entry with no sentinel prologue of its own is not validated here")
}

func TestParse_RejectsUnknownOpcode(t *testing.T) {
	var buf []byte
	buf = putInstr(buf, program.OpCode(99), false, 0)

	prog, err := program.NewUdonProgramData(nil, nil, nil, buf, uint32(len(buf)))
	require.NoError(t, err)

	_, err = Parse(prog)
	require.Error(t, err)
}
