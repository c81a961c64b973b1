package astexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udon-tools/udecomp/ast"
	"github.com/udon-tools/udecomp/cfg"
	"github.com/udon-tools/udecomp/modinfo"
	"github.com/udon-tools/udecomp/program"
	"github.com/udon-tools/udecomp/simulate"
	"github.com/udon-tools/udecomp/vars"
)

// buildSingleBlockFunction wires up just enough of the pipeline (program,
// one basic block, module registry) to run the simulator and the builder
// over a straight-line instruction sequence, without going through
// cfg.Build's full discovery pass.
func buildSingleBlockFunction(t *testing.T, prog *program.UdonProgramData, instrs []program.Instruction) *cfg.ControlFlowGraph {
	t.Helper()
	block := &cfg.BasicBlock{ID: 0, Start: instrs[0].Addr, End: instrs[len(instrs)-1].Addr, Instrs: instrs, Type: cfg.BlockReturn}
	return &cfg.ControlFlowGraph{
		Name:         "test",
		EntryBlockID: 0,
		BlockIDs:     []int{0},
		Blocks:       map[int]*cfg.BasicBlock{0: block},
	}
}

// scenario 1 (§8): PUSH 5; PUSH 3; PUSH result; EXTERN Addition(IN,IN,OUT) ⇒
// result = 5 + 3.
func TestBuildExtern_OperatorReceiverIsLastDeclaredParam(t *testing.T) {
	const addrFive, addrThree, addrResult = 0x10, 0x18, 0x20

	symbols := map[string]program.SymbolInfo{
		"__result": {Name: "__result", Type: "SystemInt32", Address: addrResult},
	}
	heap := map[uint32]program.HeapEntry{
		addrFive:  {Address: addrFive, Type: "SystemInt32", Value: program.HeapValue{IsSerializable: true, Raw: 5}},
		addrThree: {Address: addrThree, Type: "SystemInt32", Value: program.HeapValue{IsSerializable: true, Raw: 3}},
	}
	prog, err := program.NewUdonProgramData(symbols, heap, nil, nil, 0)
	require.NoError(t, err)

	const sig = "UnityEngineInternal__UdonBaseModule__op_Addition__SystemInt32_SystemInt32__SystemInt32"
	instrs := []program.Instruction{
		{Addr: 0x00, Op: program.OpPush, HasOperand: true, Operand: addrFive},
		{Addr: 0x08, Op: program.OpPush, HasOperand: true, Operand: addrThree},
		{Addr: 0x10, Op: program.OpPush, HasOperand: true, Operand: addrResult, OperandName: "__result"},
		{Addr: 0x18, Op: program.OpExtern, HasOperand: true, OperandName: sig},
	}

	mod := modinfo.NewUdonModuleInfo()
	mod.Register(sig, modinfo.FunctionMetadata{
		Module:       "UnityEngineInternal.UdonBaseModule",
		Name:         "op_Addition",
		OriginalName: "Addition",
		Parameters:   []modinfo.ParamKind{modinfo.ParamIn, modinfo.ParamIn, modinfo.ParamOut},
		DefType:      modinfo.DefOperator,
		ReturnsVoid:  false,
	})

	fn := buildSingleBlockFunction(t, prog, instrs)
	sim := simulate.Function(fn, prog, mod)
	vt := vars.NewTable(prog)
	vars.Identify(vt, fn, sim, mod)

	b := New(vt, mod, sim)
	exprs := b.BuildFunction(fn, prog)

	externAddr := instrs[3].Addr
	e, ok := exprs[externAddr]
	require.True(t, ok, "expected an Expression at the EXTERN instruction")
	require.Equal(t, ast.ExprAssignment, e.Kind, "the OUT parameter becomes the assignment target")
	assert.Equal(t, "__result", e.Target.VarName)

	op := e.RHS
	require.Equal(t, ast.ExprOperator, op.Kind)
	assert.Equal(t, "Addition", op.Operator)
	require.Len(t, op.Args, 2, "the OUT parameter must not appear in Args")
	assert.Equal(t, 5, op.Args[0].LiteralValue)
	assert.Equal(t, 3, op.Args[1].LiteralValue)
}

func TestBuildAssignment_TargetIsLowerStackSlot(t *testing.T) {
	const addrSrc, addrDst = 0x30, 0x38
	symbols := map[string]program.SymbolInfo{
		"x": {Name: "x", Type: "SystemInt32", Address: addrDst},
	}
	heap := map[uint32]program.HeapEntry{
		addrSrc: {Address: addrSrc, Type: "SystemInt32", Value: program.HeapValue{IsSerializable: true, Raw: 42}},
	}
	prog, err := program.NewUdonProgramData(symbols, heap, nil, nil, 0)
	require.NoError(t, err)

	instrs := []program.Instruction{
		{Addr: 0x00, Op: program.OpPush, HasOperand: true, Operand: addrDst, OperandName: "x"},
		{Addr: 0x08, Op: program.OpPush, HasOperand: true, Operand: addrSrc},
		{Addr: 0x10, Op: program.OpCopy},
	}

	mod := modinfo.NewUdonModuleInfo()
	fn := buildSingleBlockFunction(t, prog, instrs)
	sim := simulate.Function(fn, prog, mod)
	vt := vars.NewTable(prog)

	b := New(vt, mod, sim)
	exprs := b.BuildFunction(fn, prog)

	e, ok := exprs[0x10]
	require.True(t, ok)
	require.Equal(t, ast.ExprAssignment, e.Kind)
	assert.Equal(t, "x", e.Target.VarName)
	assert.Equal(t, 42, e.RHS.LiteralValue)
}

// scenario 6 (§8): an EXTERN whose signature is not in the module registry
// still produces an Expression, with its raw signature preserved.
func TestBuildExtern_UnknownSignatureFallsBack(t *testing.T) {
	prog, err := program.NewUdonProgramData(nil, nil, nil, nil, 0)
	require.NoError(t, err)
	instrs := []program.Instruction{
		{Addr: 0x00, Op: program.OpExtern, HasOperand: true, OperandName: "SomeVendor.Thing.__DoStuff__SystemVoid"},
	}
	mod := modinfo.NewUdonModuleInfo()
	fn := buildSingleBlockFunction(t, prog, instrs)
	sim := simulate.Function(fn, prog, mod)
	vt := vars.NewTable(prog)

	b := New(vt, mod, sim)
	exprs := b.BuildFunction(fn, prog)

	e, ok := exprs[0x00]
	require.True(t, ok)
	assert.True(t, e.Unknown)
	assert.Equal(t, "SomeVendor.Thing.__DoStuff__SystemVoid", e.Signature)
}
