package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udon-tools/udecomp/ast"
)

func lit(v interface{}, typ string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLiteral, LiteralValue: v, LiteralType: typ, EmitAsExpression: true}
}

func variable(name, typ string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprVariable, VarName: name, VarType: typ, EmitAsExpression: true}
}

// scenario 1 (§8): result = 5 + 3.
func TestEmitStatementExpr_OperatorAssignment(t *testing.T) {
	assign := &ast.Expr{
		Kind:   ast.ExprAssignment,
		Target: variable("result", "SystemInt32"),
		RHS: &ast.Expr{
			Kind: ast.ExprOperator, Operator: "Addition",
			Args: []*ast.Expr{lit(5, "SystemInt32"), lit(3, "SystemInt32")},
		},
	}
	e := New(nil)
	assert.Equal(t, "result = 5 + 3;", e.renderStatementExpr(assign))
}

// scenario 2 (§8): if/else merge, each branch assigning x.
func TestEmitIfElse(t *testing.T) {
	stmt := &ast.Stmt{
		Kind: ast.StmtIfElse,
		Cond: variable("cond", "SystemBoolean"),
		Then: &ast.Block{Stmts: []*ast.Stmt{
			{Kind: ast.StmtExpression, Expr: &ast.Expr{Kind: ast.ExprAssignment, Target: variable("x", "SystemInt32"), RHS: variable("a", "SystemInt32")}},
		}},
		Else: &ast.Block{Stmts: []*ast.Stmt{
			{Kind: ast.StmtExpression, Expr: &ast.Expr{Kind: ast.ExprAssignment, Target: variable("x", "SystemInt32"), RHS: variable("b", "SystemInt32")}},
		}},
	}
	e := New(nil)
	var b strings.Builder
	e.emitStmt(&b, stmt, 1)
	out := b.String()

	assert.Contains(t, out, "if (cond)")
	assert.Contains(t, out, "x = a;")
	assert.Contains(t, out, "else")
	assert.Contains(t, out, "x = b;")
}

func TestRenderOperator_PrecedenceParenthesizesLowerChild(t *testing.T) {
	// (a + b) * c
	add := &ast.Expr{Kind: ast.ExprOperator, Operator: "Addition", Args: []*ast.Expr{variable("a", "SystemInt32"), variable("b", "SystemInt32")}}
	mul := &ast.Expr{Kind: ast.ExprOperator, Operator: "Multiplication", Args: []*ast.Expr{add, variable("c", "SystemInt32")}}

	e := New(nil)
	s := e.renderValue(mul)
	assert.Equal(t, "(a + b) * c", s)
}

func TestRenderOperator_AssociativeSameOperatorNoParens(t *testing.T) {
	// a + (b + c), but Addition is associative so the right child stays bare.
	inner := &ast.Expr{Kind: ast.ExprOperator, Operator: "Addition", Args: []*ast.Expr{variable("b", "SystemInt32"), variable("c", "SystemInt32")}}
	outer := &ast.Expr{Kind: ast.ExprOperator, Operator: "Addition", Args: []*ast.Expr{variable("a", "SystemInt32"), inner}}

	e := New(nil)
	assert.Equal(t, "a + b + c", e.renderValue(outer))
}

func TestRenderOperator_NonAssociativeSamePrecedenceRightParenthesized(t *testing.T) {
	// a - (b - c): Subtraction isn't associative, so the right child needs parens.
	inner := &ast.Expr{Kind: ast.ExprOperator, Operator: "Subtraction", Args: []*ast.Expr{variable("b", "SystemInt32"), variable("c", "SystemInt32")}}
	outer := &ast.Expr{Kind: ast.ExprOperator, Operator: "Subtraction", Args: []*ast.Expr{variable("a", "SystemInt32"), inner}}

	e := New(nil)
	assert.Equal(t, "a - (b - c)", e.renderValue(outer))
}

func TestEmitCall_InstanceReceiverAndOutputTarget(t *testing.T) {
	call := &ast.Expr{
		Kind: ast.ExprExternalCall, CalleeName: "Log", CalleeType: "UnityEngine.Debug",
		Static: true, Args: []*ast.Expr{lit("hi", "SystemString")},
	}
	e := New(nil)
	assert.Equal(t, `UnityEngine.Debug.Log("hi");`, e.renderStatementExpr(call))

	instanceCall := &ast.Expr{
		Kind: ast.ExprExternalCall, CalleeName: "GetComponent", Static: false,
		Receiver: variable("go", "UnityEngineGameObject"), OutputTarget: variable("comp", "SystemObject"),
		ReturnsVoid: false,
	}
	assert.Equal(t, "comp = go.GetComponent();", e.renderStatementExpr(instanceCall))
}

func TestEmitSwitch_BreakOmittedWhenBodyTerminal(t *testing.T) {
	sw := &ast.Stmt{
		Kind:       ast.StmtSwitch,
		SwitchExpr: variable("idx", "SystemInt32"),
		Cases: []ast.SwitchCase{
			{Values: []uint32{1}, Body: &ast.Block{Stmts: []*ast.Stmt{{Kind: ast.StmtReturn}}}},
			{IsDefault: true, Body: &ast.Block{Stmts: []*ast.Stmt{
				{Kind: ast.StmtExpression, Expr: &ast.Expr{Kind: ast.ExprAssignment, Target: variable("x", "SystemInt32"), RHS: lit(0, "SystemInt32")}},
			}}},
		},
	}
	e := New(nil)
	var b strings.Builder
	e.emitStmt(&b, sw, 1)
	out := b.String()

	lines := strings.Split(out, "\n")
	returnIdx := indexOf(lines, "            return;")
	require.GreaterOrEqual(t, returnIdx, 0)
	require.Less(t, returnIdx+1, len(lines))
	assert.NotContains(t, lines[returnIdx+1], "break;")

	assert.Contains(t, out, "default:")
	assert.Contains(t, out, "break;")
}

func indexOf(lines []string, target string) int {
	for i, l := range lines {
		if l == target {
			return i
		}
	}
	return -1
}

func TestFormatLiteral(t *testing.T) {
	assert.Equal(t, `"hi"`, FormatLiteral("hi", "SystemString"))
	assert.Equal(t, "true", FormatLiteral(true, "SystemBoolean"))
	assert.Equal(t, "null", FormatLiteral(nil, "SystemObject"))
	assert.Equal(t, "1.5f", FormatLiteral(float32(1.5), "SystemSingle"))
}

func TestEmitProgram_FunctionOrderAndGlobals(t *testing.T) {
	prog := &ast.ProgramNode{
		ClassName: "MyScript",
		Globals:   []ast.GlobalVar{{Name: "counter", Type: "SystemInt32"}},
		Functions: []*ast.FunctionNode{
			{Name: "Start", Public: true, ReturnType: "SystemVoid", Body: &ast.Block{Stmts: []*ast.Stmt{{Kind: ast.StmtReturn}}}},
		},
	}
	e := New(nil)
	out := e.EmitProgram(prog)

	assert.Contains(t, out, "public class MyScript : UdonSharpBehaviour")
	assert.Contains(t, out, "int counter;")
	assert.Contains(t, out, "public void Start()")
}
