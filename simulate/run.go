package simulate

import (
	"github.com/udon-tools/udecomp/cfg"
	"github.com/udon-tools/udecomp/modinfo"
	"github.com/udon-tools/udecomp/program"
)

// Result is the output of simulating one function: the pre-instruction
// stack snapshot used by the variable identifier (§4.5) and expression
// builder (§4.6), plus the heap simulator as it stood at the end of the
// walk.
type Result struct {
	PreState map[uint32][]StackValue // instruction address -> stack before it executes
	Heap     *HeapSimulator
}

// Function runs §4.4's transfer semantics over fn's reachable blocks via a
// depth-first walk from the entry block: each block is entered with a copy
// of the first predecessor-to-reach-it's exit stack, and re-analysis is
// not performed.
func Function(fn *cfg.ControlFlowGraph, prog *program.UdonProgramData, mod *modinfo.UdonModuleInfo) *Result {
	r := &Result{
		PreState: make(map[uint32][]StackValue),
		Heap:     NewHeapSimulator(prog),
	}
	visited := make(map[int]bool, len(fn.BlockIDs))
	walk(fn, fn.EntryBlockID, StackFrame{}, prog, mod, r, visited)
	return r
}

func walk(fn *cfg.ControlFlowGraph, id int, entry StackFrame, prog *program.UdonProgramData, mod *modinfo.UdonModuleInfo, r *Result, visited map[int]bool) {
	if visited[id] {
		return
	}
	visited[id] = true

	block := fn.Block(id)
	stack := entry.Clone()
	for _, ins := range block.Instrs {
		r.PreState[ins.Addr] = stack.Snapshot()
		step(ins, &stack, prog, mod, r.Heap)
	}

	for _, succ := range block.SortedSuccs() {
		walk(fn, succ, stack, prog, mod, r, visited)
	}
}

// step applies one instruction's transfer semantics (§4.4).
func step(ins program.Instruction, stack *StackFrame, prog *program.UdonProgramData, mod *modinfo.UdonModuleInfo, heap *HeapSimulator) {
	switch ins.Op {
	case program.OpPush:
		stack.Push(pushValue(prog, heap, ins.Operand, ins.OperandName))

	case program.OpPop, program.OpJumpIfFalse:
		stack.Pop()

	case program.OpJump:
		if _, isCall := prog.EntryPointByCallTarget(ins.Operand); isCall {
			stack.Pop()
		}

	case program.OpExtern:
		fn, ok := mod.Lookup(ins.OperandName)
		n := 0
		if ok {
			n = len(fn.Parameters)
		}
		var popped []StackValue // popped[0] is the top of stack (last pushed = last parameter)
		for i := 0; i < n; i++ {
			v, ok := stack.Pop()
			if !ok {
				break
			}
			popped = append(popped, v)
		}
		if ok && !fn.ReturnsVoid && len(popped) > 0 {
			receiver := popped[0] // the last (declaration-order) parameter is the receiver slot (§4.4)
			heap.MarkUnknown(receiver.Addr)
		}

	case program.OpCopy:
		source, _ := stack.Pop()
		target, _ := stack.Pop()
		if source.HasLiteral {
			heap.WriteKnown(target.Addr, source.Literal)
		} else {
			heap.MarkUnknown(target.Addr)
		}

	case program.OpJumpIndirect:
		// return-jump indirect halts the block; nothing more to simulate.
	}
}

func pushValue(prog *program.UdonProgramData, heap *HeapSimulator, addr uint32, name string) StackValue {
	v := StackValue{Addr: addr, Name: name, Type: typeHintFor(prog, addr)}
	if lit, known := heap.Read(addr); known {
		v.Literal = lit
		v.HasLiteral = true
	}
	return v
}
