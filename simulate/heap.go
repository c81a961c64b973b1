package simulate

import "github.com/udon-tools/udecomp/program"

// CellState is a heap cell's known-ness at a point in the simulated walk.
type CellState int

const (
	// CellInit is the cell's initial declared value, not yet touched.
	CellInit CellState = iota
	// CellKnown means the simulator has a concrete value for this cell.
	CellKnown
	// CellUnknown means a write invalidated whatever literal the cell had.
	CellUnknown
)

type heapCell struct {
	state CellState
	value interface{}
}

// HeapSimulator is the VM's static data segment, replayed alongside the
// stack (§4.4). It is mutated in place as COPY and non-void EXTERN
// instructions are simulated; "block-local use" per §2 means callers should
// not treat its state as flow-merged across divergent predecessors, only
// as a running best-effort hint.
type HeapSimulator struct {
	prog  *program.UdonProgramData
	cells map[uint32]*heapCell
}

// NewHeapSimulator seeds a simulator from the program's initial heap
// values.
func NewHeapSimulator(prog *program.UdonProgramData) *HeapSimulator {
	h := &HeapSimulator{prog: prog, cells: make(map[uint32]*heapCell)}
	return h
}

func (h *HeapSimulator) cell(addr uint32) *heapCell {
	if c, ok := h.cells[addr]; ok {
		return c
	}
	c := &heapCell{state: CellInit}
	if entry, ok := h.prog.HeapAt(addr); ok && entry.Value.IsSerializable {
		c.value = entry.Value.Raw
	} else {
		c.state = CellUnknown
	}
	h.cells[addr] = c
	return c
}

// Read returns the cell's current value and whether it is known.
func (h *HeapSimulator) Read(addr uint32) (interface{}, bool) {
	c := h.cell(addr)
	return c.value, c.state != CellUnknown
}

// WriteKnown records a known value at addr (a COPY whose source was
// itself known).
func (h *HeapSimulator) WriteKnown(addr uint32, value interface{}) {
	h.cells[addr] = &heapCell{state: CellKnown, value: value}
}

// MarkUnknown invalidates any literal previously known at addr — used for
// COPY targets with an unknown source, and for a non-void EXTERN's
// receiver slot (§4.4).
func (h *HeapSimulator) MarkUnknown(addr uint32) {
	h.cells[addr] = &heapCell{state: CellUnknown}
}
