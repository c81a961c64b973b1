// build.go implements §4.7 Strategy A's emitter: walking the CFG from its
// entry block, preferring a recognized control structure (loop,
// conditional, switch) at each header and falling back to straight-line
// translation, with a labeled goto as the last resort for an edge no
// structure covers.
package structure

import (
	"fmt"

	"github.com/udon-tools/udecomp/ast"
	"github.com/udon-tools/udecomp/astexpr"
	"github.com/udon-tools/udecomp/cfg"
	"github.com/udon-tools/udecomp/program"
	"github.com/udon-tools/udecomp/vars"
)

// noStop is never a valid block id (ids are >= 0, VirtualExit is -1); it
// marks "walk until the function naturally ends" for the top-level call.
const noStop = -2

type builder struct {
	fn   *cfg.ControlFlowGraph
	prog *program.UdonProgramData
	vt   *vars.Table
	eb   *astexpr.Builder

	exprs    map[uint32]*ast.Expr
	loops    map[int]*Loop
	conds    map[int]*Conditional
	switches map[int]*Switch

	visited  map[int]bool
	labels   map[int]string
	labelNum int
}

// BuildFunction produces fn's FunctionNode by running dominance,
// loop/conditional/switch discovery, and the structural walk (§4.7).
func BuildFunction(fn *cfg.ControlFlowGraph, prog *program.UdonProgramData, vt *vars.Table, exprs map[uint32]*ast.Expr, eb *astexpr.Builder) *ast.FunctionNode {
	dom := DominatorTree(fn)
	pdom := PostDominatorTree(fn)
	loops := FindLoops(fn, dom)
	conds := FindConditionals(fn, pdom, loops)
	switches := FindSwitches(fn, pdom)

	b := &builder{
		fn: fn, prog: prog, vt: vt, eb: eb,
		exprs: exprs, loops: loops, conds: conds, switches: switches,
		visited: make(map[int]bool),
		labels:  make(map[int]string),
	}

	body := b.walk(fn.EntryBlockID, noStop)

	return &ast.FunctionNode{
		Name:         fn.Name,
		Public:       fn.Public,
		ReturnType:   "object", // the VM has no static return-type metadata, so every recovered function is typed object.
		Body:         body,
		EntryAddress: fn.EntryBlock().Start,
	}
}

// walk translates blocks starting at id until it reaches stopAt (an
// enclosing structure's follow node) or the function ends. A loop's own
// header is never passed back into walk — buildLoop translates it directly
// — so walk never needs to special-case revisiting a structure it's still
// inside of; any id it sees twice is a genuine cross-structure merge, and
// becomes a goto.
func (b *builder) walk(id, stopAt int) *ast.Block {
	block := &ast.Block{}
	for id != stopAt && id != VirtualExit {
		if b.visited[id] {
			block.Append(&ast.Stmt{Kind: ast.StmtGoto, Label: b.labelFor(id)})
			return block
		}

		if loop, ok := b.loops[id]; ok {
			block.Append(b.buildLoop(loop))
			follow := loop.Follow(b.fn)
			if follow == -1 {
				return block
			}
			id = follow
			continue
		}

		if sw, ok := b.switches[id]; ok {
			b.markVisited(block, id)
			block.Append(b.buildSwitch(sw))
			if sw.Merge == VirtualExit {
				return block
			}
			id = sw.Merge
			continue
		}

		if cond, ok := b.conds[id]; ok {
			b.markVisited(block, id)
			b.appendStraightLine(block, id)
			block.Append(b.buildConditional(cond))
			if cond.Merge == VirtualExit {
				return block
			}
			id = cond.Merge
			continue
		}

		b.markVisited(block, id)
		b.appendStraightLine(block, id)
		succs := b.fn.Block(id).SortedSuccs()
		switch len(succs) {
		case 0:
			block.Append(&ast.Stmt{Kind: ast.StmtReturn})
			return block
		case 1:
			id = succs[0]
		default:
			// No recognized structure claims this block despite multiple
			// successors — the final-resort fallback (§4.7).
			block.Append(&ast.Stmt{Kind: ast.StmtGoto, Label: b.labelFor(succs[0])})
			return block
		}
	}
	return block
}

// appendStraightLine translates every instruction in block id that
// produced an Expression into an ExpressionStatement.
func (b *builder) appendStraightLine(block *ast.Block, id int) {
	for _, ins := range b.fn.Block(id).Instrs {
		if e, ok := b.exprs[ins.Addr]; ok {
			block.Append(&ast.Stmt{Kind: ast.StmtExpression, Expr: e})
		}
	}
}

func (b *builder) labelFor(id int) string {
	if l, ok := b.labels[id]; ok {
		return l
	}
	b.labelNum++
	label := fmt.Sprintf("L%d", b.labelNum)
	b.labels[id] = label
	return label
}

// markVisited records id as translated and emits its label up front, since
// a later goto (the final-resort fallback, or a merge reached from more
// than one structure) may need to target it — any label that turns out
// unreferenced is stripped by lifters.PruneGotos.
func (b *builder) markVisited(block *ast.Block, id int) {
	b.visited[id] = true
	block.Append(&ast.Stmt{Kind: ast.StmtLabel, Label: b.labelFor(id)})
}

func insideSuccessorOf(header *cfg.BasicBlock, l *Loop) int {
	for _, s := range header.SortedSuccs() {
		if l.Nodes[s] {
			return s
		}
	}
	succs := header.SortedSuccs()
	if len(succs) > 0 {
		return succs[0]
	}
	return -1
}

// buildLoop renders l as a while or do-while statement (§4.7). It always
// translates the header itself directly (markVisited + appendStraightLine)
// rather than recursing through walk, since the header is — by
// definition — inside its own loop and walk's revisit check would
// otherwise mistake a legitimate re-entry for a cross-structure merge.
func (b *builder) buildLoop(l *Loop) *ast.Stmt {
	header := b.fn.Block(l.Header)
	body := &ast.Block{}
	b.markVisited(body, l.Header)
	b.appendStraightLine(body, l.Header)

	if l.Kind == LoopWhile {
		inside := insideSuccessorOf(header, l)
		cond := b.continueCondition(l.Header, inside)
		rest := b.walk(inside, l.Header)
		body.Stmts = append(body.Stmts, rest.Stmts...)
		return &ast.Stmt{Kind: ast.StmtWhile, Cond: cond, Body: body}
	}

	testBlock := l.Latch
	continueTarget := l.Header
	if header.Type == cfg.BlockConditional {
		// The pure-latch sub-case: header's own terminator is the test, and
		// its only "inside" successor is the latch itself — the header is
		// the entire loop body, already appended above.
		testBlock = l.Header
		continueTarget = insideSuccessorOf(header, l)
	} else {
		succs := header.SortedSuccs()
		if len(succs) == 1 {
			rest := b.walk(succs[0], l.Latch)
			body.Stmts = append(body.Stmts, rest.Stmts...)
		}
	}
	cond := b.continueCondition(testBlock, continueTarget)
	return &ast.Stmt{Kind: ast.StmtDoWhile, Cond: cond, Body: body}
}

// continueCondition reifies testBlock's terminator condition, negating it
// (wrapping in a LogicalNot operator node) when reaching continueTarget
// requires the conditional jump to be taken rather than falling through —
// JUMP_IF_FALSE falls through when its operand is true (§4.2).
func (b *builder) continueCondition(testBlock, continueTarget int) *ast.Expr {
	term := b.fn.Block(testBlock).Terminator()
	cond := b.eb.Condition(term)
	if cond == nil {
		cond = &ast.Expr{Kind: ast.ExprLiteral, LiteralValue: true, LiteralType: "SystemBoolean"}
	}
	if b.fn.Block(continueTarget).Start == term.End() {
		return cond
	}
	return &ast.Expr{Kind: ast.ExprOperator, Operator: "LogicalNot", Args: []*ast.Expr{cond}}
}

// buildConditional renders c as an if or if/else statement (§4.7).
func (b *builder) buildConditional(c *Conditional) *ast.Stmt {
	header := b.fn.Block(c.Header)
	cond := b.eb.Condition(header.Terminator())
	if cond == nil {
		cond = &ast.Expr{Kind: ast.ExprLiteral, LiteralValue: true, LiteralType: "SystemBoolean"}
	}

	thenBlock := b.walk(c.Then, c.Merge)

	if c.Then == c.Else {
		return &ast.Stmt{Kind: ast.StmtIf, Cond: cond, Then: thenBlock}
	}

	elseBlock := b.walk(c.Else, c.Merge)
	if len(elseBlock.Stmts) == 0 {
		return &ast.Stmt{Kind: ast.StmtIf, Cond: cond, Then: thenBlock}
	}
	return &ast.Stmt{Kind: ast.StmtIfElse, Cond: cond, Then: thenBlock, Else: elseBlock}
}

// buildSwitch renders sw as a Switch statement, each arm walked up to the
// switch's merge point (§4.7).
func (b *builder) buildSwitch(sw *Switch) *ast.Stmt {
	indexExpr := b.switchIndexExpr(sw)

	var cases []ast.SwitchCase
	for _, arm := range sw.Cases {
		cases = append(cases, ast.SwitchCase{
			Values: arm.Values,
			Body:   b.walk(arm.Target, sw.Merge),
		})
	}
	cases = append(cases, ast.SwitchCase{
		Body:      b.walk(sw.Default, sw.Merge),
		IsDefault: true,
	})

	return &ast.Stmt{Kind: ast.StmtSwitch, SwitchExpr: indexExpr, Cases: cases}
}

func (b *builder) switchIndexExpr(sw *Switch) *ast.Expr {
	sym, ok := b.prog.Symbols[sw.IndexSymbol]
	if !ok {
		return &ast.Expr{Kind: ast.ExprVariable, VarName: sw.IndexSymbol}
	}
	v := b.vt.Get(sym.Address, sym.Type)
	return &ast.Expr{Kind: ast.ExprVariable, VarName: v.Name, VarType: v.Type}
}
