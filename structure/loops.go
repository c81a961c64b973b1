package structure

import "github.com/udon-tools/udecomp/cfg"

// LoopKind distinguishes the two loop shapes §4.7 recognizes.
type LoopKind int

const (
	LoopWhile LoopKind = iota
	LoopDoWhile
)

// Loop is one natural loop: the node set dominated by a back edge's
// target, keyed by its header block id (§4.7).
type Loop struct {
	Header int
	Latch  int // the back edge's source block
	Nodes  map[int]bool
	Kind   LoopKind
}

// FindLoops locates every natural loop in fn: for each edge src->dst where
// dst dominates src (a back edge), the loop body is dst plus every node
// that can reach src without leaving the graph through dst again (§4.7).
func FindLoops(fn *cfg.ControlFlowGraph, dom *DomTree) map[int]*Loop {
	loops := make(map[int]*Loop)
	for _, srcID := range fn.BlockIDs {
		for _, dstID := range fn.Block(srcID).SortedSuccs() {
			if !dom.Dominates(dstID, srcID) {
				continue
			}
			nodes := naturalLoopNodes(fn, srcID, dstID)
			if existing, ok := loops[dstID]; ok {
				for id := range nodes {
					existing.Nodes[id] = true
				}
				continue
			}
			loops[dstID] = &Loop{Header: dstID, Latch: srcID, Nodes: nodes}
		}
	}
	for _, l := range loops {
		l.Kind = classifyLoop(fn, l)
	}
	return loops
}

// naturalLoopNodes computes the natural loop for back edge src->header: the
// header plus everything that reaches src by walking predecessors without
// needing to pass back out through header.
func naturalLoopNodes(fn *cfg.ControlFlowGraph, src, header int) map[int]bool {
	nodes := map[int]bool{header: true, src: true}
	if src == header {
		return nodes
	}
	stack := []int{src}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range fn.Block(n).SortedPreds() {
			if !nodes[p] {
				nodes[p] = true
				stack = append(stack, p)
			}
		}
	}
	return nodes
}

// classifyLoop implements §4.7's terminator-shape rule:
//
//   - header not CONDITIONAL (the test lives at the latch instead) ⇒
//     do-while.
//   - header CONDITIONAL with one inside- and one outside-successor where
//     the inside successor is a pure latch (a single-instruction block
//     whose only edge is the back edge) ⇒ do-while.
//   - header CONDITIONAL with an immediate exit edge (the ordinary case:
//     one successor continues the body, the other leaves the loop) ⇒
//     while.
func classifyLoop(fn *cfg.ControlFlowGraph, l *Loop) LoopKind {
	header := fn.Block(l.Header)
	if header.Type != cfg.BlockConditional {
		return LoopDoWhile
	}
	succs := header.SortedSuccs()
	if len(succs) != 2 {
		return LoopWhile
	}
	var inside int
	insideFound := false
	for _, s := range succs {
		if l.Nodes[s] {
			inside, insideFound = s, true
		}
	}
	if !insideFound {
		return LoopWhile
	}
	if isPureLatch(fn.Block(inside), l.Header) {
		return LoopDoWhile
	}
	return LoopWhile
}

// isPureLatch reports whether b is a single-instruction block whose only
// successor is header — i.e. it does nothing but take the back edge.
func isPureLatch(b *cfg.BasicBlock, header int) bool {
	succs := b.SortedSuccs()
	return len(succs) == 1 && succs[0] == header && len(b.Instrs) <= 1
}

// Follow returns the loop's exit block: the single successor, among all
// nodes in the loop, that leaves the loop's node set. Returns -1 if the
// loop has no single well-defined exit (every path terminates inside it).
func (l *Loop) Follow(fn *cfg.ControlFlowGraph) int {
	exit := -1
	for id := range l.Nodes {
		for _, s := range fn.Block(id).SortedSuccs() {
			if l.Nodes[s] {
				continue
			}
			if exit != -1 && exit != s {
				return -1
			}
			exit = s
		}
	}
	return exit
}
