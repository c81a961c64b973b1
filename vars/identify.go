package vars

import (
	"github.com/udon-tools/udecomp/cfg"
	"github.com/udon-tools/udecomp/modinfo"
	"github.com/udon-tools/udecomp/program"
	"github.com/udon-tools/udecomp/simulate"
)

// Identify walks fn's instructions using sim's recorded pre-instruction
// stacks and records read/write sites into t (§4.5):
//
//   - PUSH of a heap-backed address: a read at that instruction.
//   - COPY: a write to the lower stack entry, a read from the upper one.
//   - EXTERN: walks the parameter list — IN/IN_OUT params are reads,
//     OUT/IN_OUT params are writes; a non-void callee's receiver (the
//     last stack slot) is an additional write.
func Identify(t *Table, fn *cfg.ControlFlowGraph, sim *simulate.Result, mod *modinfo.UdonModuleInfo) {
	for _, id := range fn.BlockIDs {
		for _, ins := range fn.Block(id).Instrs {
			pre := sim.PreState[ins.Addr]
			identifyInstruction(t, ins, pre, mod)
		}
	}
}

func identifyInstruction(t *Table, ins program.Instruction, pre []simulate.StackValue, mod *modinfo.UdonModuleInfo) {
	switch ins.Op {
	case program.OpPush:
		if _, hasHeap := heapBacked(ins); hasHeap {
			t.Get(ins.Operand, "").recordRead(ins.Addr)
		}

	case program.OpCopy:
		if len(pre) < 2 {
			return
		}
		source := pre[len(pre)-1]
		target := pre[len(pre)-2]
		t.Get(target.Addr, target.Type).recordWrite(ins.Addr)
		if source.Addr != 0 || source.Name != "" {
			t.Get(source.Addr, source.Type).recordRead(ins.Addr)
		}

	case program.OpExtern:
		identifyExtern(t, ins, pre, mod)
	}
}

func heapBacked(ins program.Instruction) (string, bool) {
	return ins.OperandName, ins.OperandName != ""
}

func identifyExtern(t *Table, ins program.Instruction, pre []simulate.StackValue, mod *modinfo.UdonModuleInfo) {
	fn, ok := mod.Lookup(ins.OperandName)
	if !ok {
		return
	}
	n := len(fn.Parameters)
	if n > len(pre) {
		n = len(pre)
	}
	args := pre[len(pre)-n:]
	for i, kind := range fn.Parameters {
		if i >= len(args) {
			break
		}
		arg := args[i]
		if kind.IsRead() {
			t.Get(arg.Addr, arg.Type).recordRead(ins.Addr)
		}
		if kind.IsWrite() {
			t.Get(arg.Addr, arg.Type).recordWrite(ins.Addr)
		}
	}
	if !fn.ReturnsVoid && len(args) > 0 {
		receiver := args[len(args)-1]
		t.Get(receiver.Addr, receiver.Type).recordWrite(ins.Addr)
	}
}
