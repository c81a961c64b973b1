package lifters

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

// buildVarTable simulates a tiny one-block function (PUSH temp; PUSH lit;
// COPY; PUSH temp; EXTERN Test.Method(IN, void)) so vars.Identify records a
// real single-write/single-read temporary, matching how the pipeline
// actually populates a vars.Table.
func buildVarTable(t *testing.T, tempAddr, litAddr uint32) (*vars.Table, *modinfo.UdonModuleInfo) {
	t.Helper()
	symbols := map[string]program.SymbolInfo{
		"__intnl_t0": {Name: "__intnl_t0", Type: "SystemInt32", Address: tempAddr},
	}
	heap := map[uint32]program.HeapEntry{
		litAddr: {Address: litAddr, Type: "SystemInt32", Value: program.HeapValue{IsSerializable: true, Raw: 42}},
	}
	prog, err := program.NewUdonProgramData(symbols, heap, nil, nil, 0)
	require.NoError(t, err)

	instrs := []program.Instruction{
		{Addr: 0x00, Op: program.OpPush, HasOperand: true, Operand: tempAddr, OperandName: "__intnl_t0"},
		{Addr: 0x08, Op: program.OpPush, HasOperand: true, Operand: litAddr},
		{Addr: 0x10, Op: program.OpCopy},
		{Addr: 0x14, Op: program.OpPush, HasOperand: true, Operand: tempAddr, OperandName: "__intnl_t0"},
		{Addr: 0x1C, Op: program.OpExtern, HasOperand: true, OperandName: "Test.Method"},
	}
	block := &cfg.BasicBlock{ID: 0, Start: 0x00, End: 0x1C, Instrs: instrs, Type: cfg.BlockReturn}
	fn := &cfg.ControlFlowGraph{Name: "f", EntryBlockID: 0, BlockIDs: []int{0}, Blocks: map[int]*cfg.BasicBlock{0: block}}

	mod := modinfo.NewUdonModuleInfo()
	mod.Register("Test.Method", modinfo.FunctionMetadata{
		Module: "Test", Name: "Method", OriginalName: "Method",
		Parameters: []modinfo.ParamKind{modinfo.ParamIn}, DefType: modinfo.DefMethod,
		IsStatic: true, ReturnsVoid: true,
	})

	sim := simulate.Function(fn, prog, mod)
	vt := vars.NewTable(prog)
	vars.Identify(vt, fn, sim, mod)
	return vt, mod
}

func tempVar(addr uint32) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprVariable, SourceAddr: addr, VarName: "t0", VarType: "SystemInt32", EmitAsExpression: true}
}

func TestInlineTemps_SameBlockSingleRead(t *testing.T) {
	const tempAddr, litAddr = 0x200, 0x204
	vt, _ := buildVarTable(t, tempAddr, litAddr)

	assignment := &ast.Stmt{Kind: ast.StmtExpression, Expr: &ast.Expr{
		Kind:   ast.ExprAssignment,
		Target: tempVar(tempAddr),
		RHS:    &ast.Expr{Kind: ast.ExprLiteral, LiteralValue: 42, LiteralType: "SystemInt32"},
	}}
	call := &ast.Stmt{Kind: ast.StmtExpression, Expr: &ast.Expr{
		Kind: ast.ExprExternalCall, CalleeName: "Method", ReturnsVoid: true,
		Args: []*ast.Expr{tempVar(tempAddr)},
	}}
	fn := &ast.FunctionNode{Body: &ast.Block{Stmts: []*ast.Stmt{assignment, call}}}

	InlineTemps(fn, vt)

	require.Len(t, fn.Body.Stmts, 1)
	assert.Equal(t, ast.StmtExpression, fn.Body.Stmts[0].Kind)
	call2 := fn.Body.Stmts[0].Expr
	require.Len(t, call2.Args, 1)
	assert.Equal(t, ast.ExprLiteral, call2.Args[0].Kind)
	assert.Equal(t, 42, call2.Args[0].LiteralValue)
}

// an intervening statement that rewrites a variable the temp's rhs reads
// makes inlining illegal (§8) even though the gate on the temp itself
// (single write, single read) is satisfied.
func TestInlineTemps_RefusesWhenRHSVariableRewrittenBetween(t *testing.T) {
	const tempAddr, litAddr, srcAddr = 0x200, 0x204, 0x208
	vt, _ := buildVarTable(t, tempAddr, litAddr)

	srcVar := func() *ast.Expr { return &ast.Expr{Kind: ast.ExprVariable, SourceAddr: srcAddr, VarType: "SystemInt32"} }

	assignment := &ast.Stmt{Kind: ast.StmtExpression, Expr: &ast.Expr{
		Kind:   ast.ExprAssignment,
		Target: tempVar(tempAddr),
		RHS:    srcVar(),
	}}
	clobber := &ast.Stmt{Kind: ast.StmtExpression, Expr: &ast.Expr{
		Kind:   ast.ExprAssignment,
		Target: srcVar(),
		RHS:    &ast.Expr{Kind: ast.ExprLiteral, LiteralValue: 7, LiteralType: "SystemInt32"},
	}}
	call := &ast.Stmt{Kind: ast.StmtExpression, Expr: &ast.Expr{
		Kind: ast.ExprExternalCall, CalleeName: "Method", ReturnsVoid: true,
		Args: []*ast.Expr{tempVar(tempAddr)},
	}}
	fn := &ast.FunctionNode{Body: &ast.Block{Stmts: []*ast.Stmt{assignment, clobber, call}}}

	InlineTemps(fn, vt)

	require.Len(t, fn.Body.Stmts, 3, "the temp write must survive since inlining past the clobber would read the new value")
	assert.Equal(t, ast.ExprAssignment, fn.Body.Stmts[0].Expr.Kind)
	call2 := fn.Body.Stmts[2].Expr
	require.Len(t, call2.Args, 1)
	assert.Equal(t, ast.ExprVariable, call2.Args[0].Kind)
	assert.Equal(t, uint32(tempAddr), call2.Args[0].SourceAddr)
}

// an INTERNAL_CALL between the write and the read also blocks inlining,
// since the called function may itself mutate anything the rhs reads.
func TestInlineTemps_RefusesWhenInternalCallBetween(t *testing.T) {
	const tempAddr, litAddr = 0x200, 0x204
	vt, _ := buildVarTable(t, tempAddr, litAddr)

	assignment := &ast.Stmt{Kind: ast.StmtExpression, Expr: &ast.Expr{
		Kind:   ast.ExprAssignment,
		Target: tempVar(tempAddr),
		RHS:    &ast.Expr{Kind: ast.ExprLiteral, LiteralValue: 42, LiteralType: "SystemInt32"},
	}}
	innerCall := &ast.Stmt{Kind: ast.StmtExpression, Expr: &ast.Expr{
		Kind: ast.ExprInternalCall, FunctionName: "Helper",
	}}
	call := &ast.Stmt{Kind: ast.StmtExpression, Expr: &ast.Expr{
		Kind: ast.ExprExternalCall, CalleeName: "Method", ReturnsVoid: true,
		Args: []*ast.Expr{tempVar(tempAddr)},
	}}
	fn := &ast.FunctionNode{Body: &ast.Block{Stmts: []*ast.Stmt{assignment, innerCall, call}}}

	InlineTemps(fn, vt)

	require.Len(t, fn.Body.Stmts, 3)
	assert.Equal(t, ast.ExprAssignment, fn.Body.Stmts[0].Expr.Kind)
}

func TestDropDeadStores_RemovesUnreadAssignment(t *testing.T) {
	prog, err := program.NewUdonProgramData(
		map[string]program.SymbolInfo{"__intnl_dead": {Name: "__intnl_dead", Type: "SystemInt32", Address: 0x300}},
		nil, nil, nil, 0,
	)
	require.NoError(t, err)
	vt := vars.NewTable(prog)
	v := vt.Get(0x300, "SystemInt32")
	// simulate Identify recording exactly one write, no reads, without
	// depending on vars' unexported recorder methods.
	v.Writes[0x10] = true

	assignment := &ast.Stmt{Kind: ast.StmtExpression, Expr: &ast.Expr{
		Kind:   ast.ExprAssignment,
		Target: &ast.Expr{Kind: ast.ExprVariable, SourceAddr: 0x300, VarType: "SystemInt32"},
		RHS:    &ast.Expr{Kind: ast.ExprLiteral, LiteralValue: 7},
	}}
	other := &ast.Stmt{Kind: ast.StmtReturn}
	fn := &ast.FunctionNode{Body: &ast.Block{Stmts: []*ast.Stmt{assignment, other}}}

	DropDeadStores(fn, vt)

	require.Len(t, fn.Body.Stmts, 1)
	assert.Equal(t, ast.StmtReturn, fn.Body.Stmts[0].Kind)
}

func TestPruneGotos_RemovesUnreferencedLabel(t *testing.T) {
	fn := &ast.FunctionNode{Body: &ast.Block{Stmts: []*ast.Stmt{
		{Kind: ast.StmtLabel, Label: "L1"},
		{Kind: ast.StmtLabel, Label: "L2"},
		{Kind: ast.StmtGoto, Label: "L2"},
		{Kind: ast.StmtReturn},
	}}}

	PruneGotos(fn)

	require.Len(t, fn.Body.Stmts, 3)
	assert.Equal(t, ast.StmtLabel, fn.Body.Stmts[0].Kind)
	assert.Equal(t, "L2", fn.Body.Stmts[0].Label)
	assert.Equal(t, ast.StmtGoto, fn.Body.Stmts[1].Kind)
	assert.Equal(t, ast.StmtReturn, fn.Body.Stmts[2].Kind)
}
