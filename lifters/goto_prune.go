package lifters

import "github.com/udon-tools/udecomp/ast"

// PruneGotos removes every StmtLabel in fn's body that no StmtGoto
// references. structure.BuildFunction labels every block it translates, on
// the chance a later merge or the final-resort fallback needs to jump to
// it; in the ordinary case (almost everything captured by loop/
// conditional/switch recognition) that label is never used, and leaving it
// in would clutter the output with dead labels.
func PruneGotos(fn *ast.FunctionNode) {
	used := map[string]bool{}
	collectGotoTargets(fn.Body, used)
	dropUnusedLabels(fn.Body, used)
}

func collectGotoTargets(block *ast.Block, used map[string]bool) {
	for _, s := range block.Stmts {
		if s.Kind == ast.StmtGoto {
			used[s.Label] = true
		}
		if s.Body != nil {
			collectGotoTargets(s.Body, used)
		}
		if s.Then != nil {
			collectGotoTargets(s.Then, used)
		}
		if s.Else != nil {
			collectGotoTargets(s.Else, used)
		}
		for _, c := range s.Cases {
			if c.Body != nil {
				collectGotoTargets(c.Body, used)
			}
		}
	}
}

func dropUnusedLabels(block *ast.Block, used map[string]bool) {
	kept := block.Stmts[:0]
	for _, s := range block.Stmts {
		if s.Body != nil {
			dropUnusedLabels(s.Body, used)
		}
		if s.Then != nil {
			dropUnusedLabels(s.Then, used)
		}
		if s.Else != nil {
			dropUnusedLabels(s.Else, used)
		}
		for _, c := range s.Cases {
			if c.Body != nil {
				dropUnusedLabels(c.Body, used)
			}
		}

		if s.Kind == ast.StmtLabel && !used[s.Label] {
			continue
		}
		kept = append(kept, s)
	}
	block.Stmts = kept
}
