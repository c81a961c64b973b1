// Package lifters implements the AST cleanup pass §4.7 hands off to after
// structural recovery: inlining single-use temporaries, dropping dead
// stores, and pruning labels no goto ends up referencing.
//
// Grounded on original_source/'s dataflow_analyzer.py, which keeps exactly
// this separation — structural recovery produces a valid but literal AST,
// and a later pass folds away the VM's stack-shuffle temporaries.
package lifters

import (
	"github.com/udon-tools/udecomp/ast"
	"github.com/udon-tools/udecomp/program"
	"github.com/udon-tools/udecomp/vars"
)

// InlineTemps rewrites fn's body in place: every assignment to a
// single-write, single-read, ScopeTemporary variable is removed, and its
// right-hand side is substituted directly at the one place that reads it —
// provided vars.Variable.InlineSafe agrees that nothing between the write
// and the read could change the result (§4.6, §8). Locals and globals are
// left declared even when they happen to fit the same shape — they're
// user-meaningful names, not compiler stack shuffles.
//
// The read site must fall in the same ast.Block as the write — this
// pipeline only tracks instruction-level read/write addresses (vars.Table),
// not which block a read's enclosing statement ends up translated into, so
// a read reached through a different structural branch than its write is
// left alone rather than risking a wrong substitution. In practice nearly
// every VM-generated temporary is a same-block stack shuffle, so this
// covers the common case without attempting full cross-block dataflow.
func InlineTemps(fn *ast.FunctionNode, vt *vars.Table) {
	inlineBlock(fn.Body, vt)
}

func inlineBlock(block *ast.Block, vt *vars.Table) {
	for i := 0; i < len(block.Stmts); i++ {
		s := block.Stmts[i]
		recurseInto(s, vt)

		if s.Kind != ast.StmtExpression || s.Expr == nil || s.Expr.Kind != ast.ExprAssignment {
			continue
		}
		target := s.Expr.Target
		if target == nil || target.Kind != ast.ExprVariable {
			continue
		}
		v := vt.Get(target.SourceAddr, target.VarType)
		if v.Scope != program.ScopeTemporary || !v.SingleUse() || len(v.Reads) != 1 {
			continue
		}

		readIndex, found := findTopLevelRead(block, i+1, target.SourceAddr)
		if !found {
			continue
		}

		rhs := s.Expr.RHS
		rewritten, internalCall := scanBetween(block.Stmts[i+1:readIndex], referencedAddrs(rhs))
		if !v.InlineSafe(rewritten, internalCall) {
			continue
		}

		substituteAt(block.Stmts[readIndex], target.SourceAddr, rhs)
		block.Stmts = append(block.Stmts[:i], block.Stmts[i+1:]...)
		i--
	}
}

// recurseInto walks into s's nested blocks/expressions so inlining also
// happens inside loop bodies, if/else branches, and switch arms.
func recurseInto(s *ast.Stmt, vt *vars.Table) {
	if s.Body != nil {
		inlineBlock(s.Body, vt)
	}
	if s.Then != nil {
		inlineBlock(s.Then, vt)
	}
	if s.Else != nil {
		inlineBlock(s.Else, vt)
	}
	for _, c := range s.Cases {
		if c.Body != nil {
			inlineBlock(c.Body, vt)
		}
	}
}

// stmtExprs returns every top-level expression field a statement carries —
// the fields a read or a rewrite can appear in directly on that statement,
// not inside a nested block.
func stmtExprs(s *ast.Stmt) []*ast.Expr {
	return []*ast.Expr{s.Expr, s.Cond, s.DeclInit, s.SwitchExpr}
}

// findTopLevelRead returns the index of the first statement at or after
// from whose own top-level expression fields reference addr. It does not
// look inside nested bodies — a read reached only through a nested
// loop/if/switch arm isn't a same-block read and is left alone.
func findTopLevelRead(block *ast.Block, from int, addr uint32) (int, bool) {
	for i := from; i < len(block.Stmts); i++ {
		for _, e := range stmtExprs(block.Stmts[i]) {
			if referencesAddr(e, addr) {
				return i, true
			}
		}
	}
	return 0, false
}

// scanBetween computes the two §8 legality facts over every statement that
// executes between a write and its read — recursing into nested bodies,
// since a loop or conditional sitting between them still runs in program
// order even though it isn't itself an eligible read site.
func scanBetween(stmts []*ast.Stmt, rhsAddrs map[uint32]bool) (rewritten, internalCall bool) {
	for _, s := range stmts {
		for _, e := range stmtExprs(s) {
			if rewritesAny(e, rhsAddrs) {
				rewritten = true
			}
			if containsInternalCall(e) {
				internalCall = true
			}
		}
		for _, nested := range nestedBlocks(s) {
			r, c := scanBetween(nested.Stmts, rhsAddrs)
			rewritten = rewritten || r
			internalCall = internalCall || c
		}
	}
	return rewritten, internalCall
}

func nestedBlocks(s *ast.Stmt) []*ast.Block {
	var out []*ast.Block
	if s.Body != nil {
		out = append(out, s.Body)
	}
	if s.Then != nil {
		out = append(out, s.Then)
	}
	if s.Else != nil {
		out = append(out, s.Else)
	}
	for _, c := range s.Cases {
		if c.Body != nil {
			out = append(out, c.Body)
		}
	}
	return out
}

// substituteAt rewrites the one field of s that carries the read of addr.
func substituteAt(s *ast.Stmt, addr uint32, repl *ast.Expr) {
	if r, ok := substitute(s.Expr, addr, repl); ok {
		s.Expr = r
		return
	}
	if r, ok := substitute(s.Cond, addr, repl); ok {
		s.Cond = r
		return
	}
	if r, ok := substitute(s.DeclInit, addr, repl); ok {
		s.DeclInit = r
		return
	}
	if r, ok := substitute(s.SwitchExpr, addr, repl); ok {
		s.SwitchExpr = r
	}
}

// walkExpr visits e and every descendant reachable through the fields an
// Expr can nest through, in no particular order.
func walkExpr(e *ast.Expr, visit func(*ast.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	walkExpr(e.Target, visit)
	walkExpr(e.RHS, visit)
	walkExpr(e.Receiver, visit)
	walkExpr(e.OutputTarget, visit)
	for _, a := range e.Args {
		walkExpr(a, visit)
	}
}

// referencesAddr reports whether e's subtree reads addr as a VARIABLE node.
func referencesAddr(e *ast.Expr, addr uint32) bool {
	found := false
	walkExpr(e, func(n *ast.Expr) {
		if n.Kind == ast.ExprVariable && n.SourceAddr == addr {
			found = true
		}
	})
	return found
}

// referencedAddrs collects every VARIABLE address e's subtree reads — the
// set an intervening rewrite must avoid touching for inlining to stay safe.
func referencedAddrs(e *ast.Expr) map[uint32]bool {
	out := map[uint32]bool{}
	walkExpr(e, func(n *ast.Expr) {
		if n.Kind == ast.ExprVariable {
			out[n.SourceAddr] = true
		}
	})
	return out
}

// rewritesAny reports whether e's subtree assigns or writes (via an
// ASSIGNMENT target or an OutputTarget) any address in addrs.
func rewritesAny(e *ast.Expr, addrs map[uint32]bool) bool {
	found := false
	walkExpr(e, func(n *ast.Expr) {
		if n.Kind == ast.ExprAssignment && n.Target != nil && n.Target.Kind == ast.ExprVariable && addrs[n.Target.SourceAddr] {
			found = true
		}
		if n.OutputTarget != nil && n.OutputTarget.Kind == ast.ExprVariable && addrs[n.OutputTarget.SourceAddr] {
			found = true
		}
	})
	return found
}

// containsInternalCall reports whether e's subtree contains an INTERNAL_CALL
// node — §8's second inlining hazard, since a called function may itself
// rewrite anything the inlined expression reads.
func containsInternalCall(e *ast.Expr) bool {
	found := false
	walkExpr(e, func(n *ast.Expr) {
		if n.Kind == ast.ExprInternalCall {
			found = true
		}
	})
	return found
}

// substitute returns (repl, true) if e itself is the read of addr, or
// (e, true) with a child field rewritten in place if the read is nested
// inside e. Returns (e, false) if addr doesn't occur in e's subtree.
func substitute(e *ast.Expr, addr uint32, repl *ast.Expr) (*ast.Expr, bool) {
	if e == nil {
		return nil, false
	}
	if e.Kind == ast.ExprVariable && e.SourceAddr == addr {
		return repl, true
	}
	if r, ok := substitute(e.Target, addr, repl); ok {
		e.Target = r
		return e, true
	}
	if r, ok := substitute(e.RHS, addr, repl); ok {
		e.RHS = r
		return e, true
	}
	if r, ok := substitute(e.Receiver, addr, repl); ok {
		e.Receiver = r
		return e, true
	}
	if r, ok := substitute(e.OutputTarget, addr, repl); ok {
		e.OutputTarget = r
		return e, true
	}
	for i, a := range e.Args {
		if r, ok := substitute(a, addr, repl); ok {
			e.Args[i] = r
			return e, true
		}
	}
	return e, false
}
