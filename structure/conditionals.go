package structure

import (
	"github.com/udon-tools/udecomp/cfg"
	"github.com/udon-tools/udecomp/program"
)

// Conditional is a recovered if/else: a CONDITIONAL block outside any loop,
// with the nearest common post-dominator of its two successors as the
// merge point (§4.7).
type Conditional struct {
	Header int
	Then   int // the JUMP_IF_FALSE fallthrough target (condition true)
	Else   int // the JUMP_IF_FALSE jump target (condition false)
	// Merge is the block where both branches rejoin, or VirtualExit if
	// they never do (both branches terminate independently — "return in
	// both").
	Merge int
}

// FindConditionals locates every non-loop CONDITIONAL block in fn and
// computes its merge point via the post-dominator tree.
func FindConditionals(fn *cfg.ControlFlowGraph, pdom *DomTree, loopHeaders map[int]*Loop) map[int]*Conditional {
	out := make(map[int]*Conditional)
	for _, id := range fn.BlockIDs {
		b := fn.Block(id)
		if b.Type != cfg.BlockConditional {
			continue
		}
		if _, isLoopHeader := loopHeaders[id]; isLoopHeader {
			continue
		}
		succs := b.SortedSuccs()
		if len(succs) != 2 {
			continue
		}
		term := b.Terminator()
		thenID, elseID := fallthroughAndJumpTargets(fn, succs, term)
		merge := pdom.NearestCommonAncestor(thenID, elseID)
		out[id] = &Conditional{Header: id, Then: thenID, Else: elseID, Merge: merge}
	}
	return out
}

// fallthroughAndJumpTargets splits a CONDITIONAL block's two successors
// into (fallthrough-on-true, jump-target-on-false), matching JUMP_IF_FALSE
// semantics (§4.2: falls through when the condition is true, jumps to the
// operand when false).
func fallthroughAndJumpTargets(fn *cfg.ControlFlowGraph, succs []int, term program.Instruction) (int, int) {
	fallAddr := term.End()
	for _, s := range succs {
		if fn.Block(s).Start == fallAddr {
			other := succs[0]
			if other == s {
				other = succs[1]
			}
			return s, other
		}
	}
	return succs[0], succs[1]
}
