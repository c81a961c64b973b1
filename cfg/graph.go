package cfg

import (
	"regexp"
	"sort"

	"github.com/udon-tools/udecomp/internal/errs"
	"github.com/udon-tools/udecomp/program"
)

// ControlFlowGraph is a directed graph over BasicBlock for one recovered
// function (§3). Blocks are held by reference into the shared arena built
// by Build, so predecessor/successor ids are comparable across functions —
// useful for diagnosing a call edge, never meaningful for structural
// recovery, which only ever walks a single function's BlockIDs.
type ControlFlowGraph struct {
	Name         string
	Public       bool
	EntryBlockID int
	BlockIDs     []int // sorted ascending by start address
	Blocks       map[int]*BasicBlock
}

// Block looks up one of this function's blocks by id.
func (g *ControlFlowGraph) Block(id int) *BasicBlock { return g.Blocks[id] }

// EntryBlock returns the function's entry block.
func (g *ControlFlowGraph) EntryBlock() *BasicBlock { return g.Blocks[g.EntryBlockID] }

// Result is the output of Build: the shared block arena plus one CFG per
// recovered function, in declared-entry-point order (§5 determinism).
type Result struct {
	Blocks    []*BasicBlock
	Functions []*ControlFlowGraph
}

// Logger is the narrow warning sink cfg.Build reports recoverable errors
// through (§7 policy: log and continue). *zap.SugaredLogger satisfies it.
type Logger interface {
	Warnw(msg string, kv ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnw(string, ...interface{}) {}

// NameCounter hands out the process-monotonic function_<k> suffix used
// when name recovery misses (§4.3). Held as explicit instance state per §9
// rather than a package-level counter.
type NameCounter struct{ next int }

// Next returns the next synthetic function index.
func (c *NameCounter) Next() int {
	c.next++
	return c.next - 1
}

// Build runs §4.2+§4.3 end to end: partitions instrs into basic blocks
// (re-partitioning to a fixpoint as hidden entry points are discovered),
// constructs edges, discovers each function's reachable block set, and
// recovers or synthesizes function names.
func Build(prog *program.UdonProgramData, instrs []program.Instruction, names *NameCounter, log Logger) (*Result, error) {
	if log == nil {
		log = nopLogger{}
	}

	splits, err := fixpointPartition(prog, instrs, log)
	if err != nil {
		return nil, err
	}

	blocks, byStart := buildArena(splits)
	if err := wireEdges(prog, instrs, blocks, byStart, log); err != nil {
		return nil, err
	}

	functions, err := discoverFunctions(prog, blocks, byStart, names, log)
	if err != nil {
		return nil, err
	}

	return &Result{Blocks: blocks, Functions: functions}, nil
}

// fixpointPartition re-runs identifyBlocks, scanning each new partition for
// call sites (PUSH <fallthrough-addr>; JUMP <target>) and registering the
// target as a hidden entry point, until a pass adds nothing new (§4.3).
func fixpointPartition(prog *program.UdonProgramData, instrs []program.Instruction, log Logger) ([]blockSplit, error) {
	for {
		splits, err := identifyBlocks(prog, instrs)
		if err != nil {
			return nil, err
		}
		discovered := discoverCallSites(prog, splits)
		if len(discovered) == 0 {
			return splits, nil
		}
		for _, addr := range discovered {
			prog.AddEntryPoint(program.EntryPointInfo{Address: addr, CallJumpTarget: addr, Resolved: true})
		}
	}
}

// discoverCallSites finds JUMPs preceded by a PUSH of the literal address
// of the instruction following the JUMP — this VM's call convention absent
// a dedicated CALL opcode (§4.3, glossary "Call jump") — and returns the
// jump targets not already known as entry points.
func discoverCallSites(prog *program.UdonProgramData, splits []blockSplit) []uint32 {
	var out []uint32
	seen := map[uint32]bool{}
	for _, s := range splits {
		for i, ins := range s.instrs {
			if ins.Op != program.OpJump || i == 0 {
				continue
			}
			push := s.instrs[i-1]
			if push.Op != program.OpPush {
				continue
			}
			lit, ok := constLiteral(prog, push.Operand)
			if !ok || lit != ins.End() {
				continue
			}
			if _, already := prog.EntryPointByCallTarget(ins.Operand); already {
				continue
			}
			if seen[ins.Operand] {
				continue
			}
			seen[ins.Operand] = true
			out = append(out, ins.Operand)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func constLiteral(prog *program.UdonProgramData, addr uint32) (uint32, bool) {
	entry, ok := prog.HeapAt(addr)
	if !ok || !entry.Value.IsSerializable {
		return 0, false
	}
	switch n := entry.Value.Raw.(type) {
	case uint32:
		return n, true
	case int:
		return uint32(n), true
	case float64:
		return uint32(n), true
	default:
		return 0, false
	}
}

func buildArena(splits []blockSplit) ([]*BasicBlock, map[uint32]int) {
	blocks := make([]*BasicBlock, 0, len(splits))
	byStart := make(map[uint32]int, len(splits))
	for id, s := range splits {
		b := &BasicBlock{
			ID:     id,
			Start:  s.instrs[0].Addr,
			End:    s.instrs[len(s.instrs)-1].Addr,
			Instrs: s.instrs,
			Switch: s.sw,
		}
		b.Type = classifyTerminator(s.instrs, s.sw)
		blocks = append(blocks, b)
		byStart[b.Start] = id
	}
	return blocks, byStart
}

// blockContaining returns the id of the block whose instruction range
// contains addr.
func blockContaining(blocks []*BasicBlock, addr uint32) (int, bool) {
	// blocks are built in address order by buildArena.
	i := sort.Search(len(blocks), func(i int) bool { return blocks[i].Start > addr })
	if i == 0 {
		return 0, false
	}
	b := blocks[i-1]
	if addr >= b.Start && addr <= b.Terminator().End()-1 {
		return b.ID, true
	}
	return 0, false
}

// wireEdges implements §4.3's edge-construction rules.
func wireEdges(prog *program.UdonProgramData, instrs []program.Instruction, blocks []*BasicBlock, byStart map[uint32]int, log Logger) error {
	for _, b := range blocks {
		term := b.Terminator()
		fallthroughAddr := term.End()
		fallthroughID, hasFallthrough := blockContaining(blocks, fallthroughAddr)

		switch b.Type {
		case BlockJump:
			if b.Switch != nil {
				seen := map[uint32]bool{}
				for _, t := range b.Switch.Targets {
					if seen[t] {
						continue
					}
					seen[t] = true
					tid, ok := byStart[t]
					if !ok {
						return &errs.MalformedProgram{Reason: "switch target does not land on a block start"}
					}
					connect(blocks, b.ID, tid)
				}
				continue
			}
			// direct JUMP: a call jump resolves to the fallthrough block
			// (the call returns); everything else targets the block
			// starting at the literal target.
			if _, isCall := prog.EntryPointByCallTarget(term.Operand); isCall {
				if hasFallthrough {
					connect(blocks, b.ID, fallthroughID)
				}
				continue
			}
			tid, ok := byStart[term.Operand]
			if !ok {
				return &errs.MalformedProgram{Reason: "jump target does not land on a block start"}
			}
			connect(blocks, b.ID, tid)
		case BlockConditional:
			if hasFallthrough {
				connect(blocks, b.ID, fallthroughID)
			}
			tid, ok := byStart[term.Operand]
			if !ok {
				return &errs.MalformedProgram{Reason: "jump target does not land on a block start"}
			}
			connect(blocks, b.ID, tid)
		case BlockReturn:
			// return-jump indirect: no outgoing edges. If this
			// JUMP_INDIRECT didn't actually match the return-jump
			// temporary pattern either, it's an unrecognized indirect
			// jump — recoverable, logged, still no successors (§7).
			if len(b.Instrs) < 2 || !isReturnJumpTemp(b.Instrs[len(b.Instrs)-2].OperandName) {
				log.Warnw("unresolved indirect jump", "addr", term.Addr, "err", (&errs.UnresolvedIndirectJump{Addr: term.Addr}).Error())
			}
		default: // NORMAL
			if hasFallthrough {
				connect(blocks, b.ID, fallthroughID)
			}
		}
	}
	return nil
}

func connect(blocks []*BasicBlock, from, to int) {
	blocks[from].addSucc(to)
	blocks[to].addPred(from)
}

// retSlotPattern matches the return-slot temporary family used by §4.3's
// function-name recovery: a three-instruction window `_ PUSH sym COPY`
// where sym looks like __<id1>___<id2>_<name>__ret.
var retSlotPattern = regexp.MustCompile(`^__[^_]+___[^_]+_(.+)__ret$`)

// discoverFunctions collects each entry point's reachable block set,
// recovers or synthesizes its name, and builds its ControlFlowGraph.
func discoverFunctions(prog *program.UdonProgramData, blocks []*BasicBlock, byStart map[uint32]int, names *NameCounter, log Logger) ([]*ControlFlowGraph, error) {
	var out []*ControlFlowGraph
	for _, ep := range prog.EntryPoints {
		entryID, ok := byStart[ep.Address]
		if !ok {
			return nil, &errs.MalformedProgram{Reason: "entry point address does not land on a block start"}
		}
		ids := reachable(blocks, entryID)

		name := ep.Name
		if name == "" {
			name = recoverName(blocks, ids, log)
		}
		if name == "" {
			name = syntheticName(names)
		}

		fn := &ControlFlowGraph{
			Name:         name,
			Public:       ep.Name != "",
			EntryBlockID: entryID,
			BlockIDs:     ids,
			Blocks:       make(map[int]*BasicBlock, len(ids)),
		}
		for _, id := range ids {
			blocks[id].Function = name
			fn.Blocks[id] = blocks[id]
		}
		out = append(out, fn)
	}
	return out, nil
}

func syntheticName(names *NameCounter) string {
	return "function_" + itoa(names.Next())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// reachable collects, in ascending id order, every block transitively
// reachable from entryID via successor edges. Functions are not split by
// embedded calls because a call jump has already been rewired to edge to
// the return block (§4.3).
func reachable(blocks []*BasicBlock, entryID int) []int {
	seen := map[int]bool{entryID: true}
	queue := []int{entryID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, succ := range blocks[id].SortedSuccs() {
			if !seen[succ] {
				seen[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// recoverName scans a function's instructions for the return-slot window
// and picks the longest consensus name; on conflict the first candidate
// wins and a warning is logged (§4.3/§7 AmbiguousRecovery).
func recoverName(blocks []*BasicBlock, ids []int, log Logger) string {
	counts := map[string]int{}
	var order []string
	for _, id := range ids {
		instrs := blocks[id].Instrs
		for i := 1; i+1 < len(instrs); i++ {
			if instrs[i].Op != program.OpPush || instrs[i+1].Op != program.OpCopy {
				continue
			}
			m := retSlotPattern.FindStringSubmatch(instrs[i].OperandName)
			if m == nil {
				continue
			}
			if counts[m[1]] == 0 {
				order = append(order, m[1])
			}
			counts[m[1]]++
		}
	}
	if len(order) == 0 {
		return ""
	}
	best := order[0]
	for _, cand := range order[1:] {
		if counts[cand] > counts[best] {
			best = cand
		}
	}
	if len(order) > 1 {
		log.Warnw("ambiguous function name recovery", "chosen", best, "candidates", order,
			"err", (&errs.AmbiguousRecovery{Reason: "conflicting function-name candidates"}).Error())
	}
	return best
}
