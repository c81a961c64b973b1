package lifters

import (
	"github.com/udon-tools/udecomp/ast"
	"github.com/udon-tools/udecomp/program"
	"github.com/udon-tools/udecomp/vars"
)

// DropDeadStores removes assignment statements that write a ScopeTemporary
// variable nobody ever reads. Only pure ASSIGNMENT nodes (from a COPY) are
// eligible — a non-void call or property access left with an unread output
// target keeps its call (the call may have side effects beyond the write)
// and simply leaves the output target as an unread, undeclared name.
func DropDeadStores(fn *ast.FunctionNode, vt *vars.Table) {
	dropBlock(fn.Body, vt)
}

func dropBlock(block *ast.Block, vt *vars.Table) {
	kept := block.Stmts[:0]
	for _, s := range block.Stmts {
		if s.Body != nil {
			dropBlock(s.Body, vt)
		}
		if s.Then != nil {
			dropBlock(s.Then, vt)
		}
		if s.Else != nil {
			dropBlock(s.Else, vt)
		}
		for _, c := range s.Cases {
			if c.Body != nil {
				dropBlock(c.Body, vt)
			}
		}

		if isDeadAssignment(s, vt) {
			continue
		}
		kept = append(kept, s)
	}
	block.Stmts = kept
}

func isDeadAssignment(s *ast.Stmt, vt *vars.Table) bool {
	if s.Kind != ast.StmtExpression || s.Expr == nil || s.Expr.Kind != ast.ExprAssignment {
		return false
	}
	target := s.Expr.Target
	if target == nil || target.Kind != ast.ExprVariable {
		return false
	}
	v := vt.Get(target.SourceAddr, target.VarType)
	return v.Scope == program.ScopeTemporary && len(v.Writes) == 1 && len(v.Reads) == 0
}
