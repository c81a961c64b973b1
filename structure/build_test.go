package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udon-tools/udecomp/ast"
	"github.com/udon-tools/udecomp/astexpr"
	"github.com/udon-tools/udecomp/cfg"
	"github.com/udon-tools/udecomp/modinfo"
	"github.com/udon-tools/udecomp/program"
	"github.com/udon-tools/udecomp/simulate"
	"github.com/udon-tools/udecomp/vars"
)

// scenario 3 (§8): a loop whose header is NORMAL and whose last block is
// CONDITIONAL jumping back to the header on false ⇒ do { … } while (<cond>);
func TestBuildFunction_DoWhileTailTest(t *testing.T) {
	const aAddr, bAddr, condAddr = 0x100, 0x108, 0x110

	symbols := map[string]program.SymbolInfo{
		"x": {Name: "x", Type: "SystemInt32", Address: bAddr},
	}
	heap := map[uint32]program.HeapEntry{
		aAddr:    {Address: aAddr, Type: "SystemInt32", Value: program.HeapValue{IsSerializable: true, Raw: 7}},
		condAddr: {Address: condAddr, Type: "SystemBoolean", Value: program.HeapValue{IsSerializable: true, Raw: true}},
	}
	prog, err := program.NewUdonProgramData(symbols, heap, nil, nil, 0)
	require.NoError(t, err)

	header := []program.Instruction{
		{Addr: 0x00, Op: program.OpPush, HasOperand: true, Operand: bAddr, OperandName: "x"},
		{Addr: 0x08, Op: program.OpPush, HasOperand: true, Operand: aAddr},
		{Addr: 0x10, Op: program.OpCopy},
		{Addr: 0x14, Op: program.OpPush, HasOperand: true, Operand: condAddr},
	}
	latch := []program.Instruction{
		{Addr: 0x1C, Op: program.OpJumpIfFalse, HasOperand: true, Operand: 0x00},
	}
	exit := []program.Instruction{
		{Addr: 0x24, Op: program.OpPop},
	}

	b0 := &cfg.BasicBlock{ID: 0, Start: 0x00, End: 0x14, Instrs: header, Type: cfg.BlockNormal, Succs: map[int]bool{1: true}}
	b1 := &cfg.BasicBlock{ID: 1, Start: 0x1C, End: 0x1C, Instrs: latch, Type: cfg.BlockConditional, Preds: map[int]bool{0: true}, Succs: map[int]bool{0: true, 2: true}}
	b2 := &cfg.BasicBlock{ID: 2, Start: 0x24, End: 0x24, Instrs: exit, Type: cfg.BlockNormal, Preds: map[int]bool{1: true}}

	fn := &cfg.ControlFlowGraph{
		Name: "loopFn", EntryBlockID: 0, BlockIDs: []int{0, 1, 2},
		Blocks: map[int]*cfg.BasicBlock{0: b0, 1: b1, 2: b2},
	}

	mod := modinfo.NewUdonModuleInfo()
	sim := simulate.Function(fn, prog, mod)
	vt := vars.NewTable(prog)
	vars.Identify(vt, fn, sim, mod)
	eb := astexpr.New(vt, mod, sim)
	exprs := eb.BuildFunction(fn, prog)

	result := BuildFunction(fn, prog, vt, exprs, eb)

	// the do-while statement (the header's label sits inside its body), the
	// exit block's label, and its return.
	require.Len(t, result.Body.Stmts, 3)

	loopStmt := result.Body.Stmts[0]
	require.Equal(t, ast.StmtDoWhile, loopStmt.Kind)
	require.Len(t, loopStmt.Body.Stmts, 2)
	assert.Equal(t, ast.StmtLabel, loopStmt.Body.Stmts[0].Kind)
	assert.Equal(t, ast.StmtExpression, loopStmt.Body.Stmts[1].Kind)
	assert.Equal(t, ast.ExprAssignment, loopStmt.Body.Stmts[1].Expr.Kind)
	assert.Equal(t, "x", loopStmt.Body.Stmts[1].Expr.Target.VarName)

	require.Equal(t, ast.ExprOperator, loopStmt.Cond.Kind)
	assert.Equal(t, "LogicalNot", loopStmt.Cond.Operator)
	require.Len(t, loopStmt.Cond.Args, 1)
	assert.Equal(t, true, loopStmt.Cond.Args[0].LiteralValue)

	assert.Equal(t, ast.StmtLabel, result.Body.Stmts[1].Kind)
	assert.Equal(t, ast.StmtReturn, result.Body.Stmts[2].Kind)
}
