package program

import "github.com/udon-tools/udecomp/internal/errs"

// ClassNameSymbol is the reserved symbol name that, when present in the
// program bundle, names the emitted class directly rather than falling
// back to the §6 DecompiledClass_<k> counter. See SPEC_FULL.md's "Class
// name symbol lookup" supplement.
const ClassNameSymbol = "__className"

// UdonProgramData owns everything decoded from one program JSON bundle
// (§3). It is mutated only to append discovered entry points during CFG
// construction (the hidden-entry fixpoint in cfg.Build).
type UdonProgramData struct {
	Symbols         map[string]SymbolInfo
	SymbolsByAddr   map[uint32]SymbolInfo
	HeapInitial     map[uint32]HeapEntry
	EntryPoints     []EntryPointInfo
	Bytecode        []byte
	BytecodeLength  uint32
}

// NewUdonProgramData builds the address index used throughout the pipeline.
// Fails with MalformedProgram if two distinct symbols declare the same
// address — §3's unique-address invariant.
func NewUdonProgramData(symbols map[string]SymbolInfo, heap map[uint32]HeapEntry, entries []EntryPointInfo, bytecode []byte, bytecodeLength uint32) (*UdonProgramData, error) {
	byAddr := make(map[uint32]SymbolInfo, len(symbols))
	for _, s := range symbols {
		if _, ok := byAddr[s.Address]; ok {
			return nil, &errs.MalformedProgram{Reason: "duplicate symbol address"}
		}
		byAddr[s.Address] = s
	}
	return &UdonProgramData{
		Symbols:        symbols,
		SymbolsByAddr:  byAddr,
		HeapInitial:    heap,
		EntryPoints:    entries,
		Bytecode:       bytecode,
		BytecodeLength: bytecodeLength,
	}, nil
}

// SymbolAt looks up the declared symbol at addr, if any.
func (p *UdonProgramData) SymbolAt(addr uint32) (SymbolInfo, bool) {
	s, ok := p.SymbolsByAddr[addr]
	return s, ok
}

// HeapAt looks up the heap entry at addr, if any. Reading a value always
// requires locating the heap entry first (§3).
func (p *UdonProgramData) HeapAt(addr uint32) (HeapEntry, bool) {
	h, ok := p.HeapInitial[addr]
	return h, ok
}

// AddEntryPoint registers a newly discovered (hidden) entry point. It is a
// no-op if an entry at the same address already exists. Declared entries
// (loaded from the program bundle's entryPoints array) keep the relative
// order they were declared in — §5 pins function emission order to that
// order — so a discovered entry is never placed ahead of or used to
// reorder a Declared one; it's inserted by address among the other
// discovered entries only, wherever that falls in the slice.
func (p *UdonProgramData) AddEntryPoint(ep EntryPointInfo) {
	for _, e := range p.EntryPoints {
		if e.Address == ep.Address {
			return
		}
	}
	ep.Declared = false

	insertAt := len(p.EntryPoints)
	for i, e := range p.EntryPoints {
		if !e.Declared && e.Address > ep.Address {
			insertAt = i
			break
		}
	}
	p.EntryPoints = append(p.EntryPoints, EntryPointInfo{})
	copy(p.EntryPoints[insertAt+1:], p.EntryPoints[insertAt:])
	p.EntryPoints[insertAt] = ep
}

// EntryPointByCallTarget finds the entry point whose CallJumpTarget equals
// target, used to tell a call-jump from an ordinary jump (§4.3).
func (p *UdonProgramData) EntryPointByCallTarget(target uint32) (EntryPointInfo, bool) {
	for _, e := range p.EntryPoints {
		if e.Resolved && e.CallJumpTarget == target {
			return e, true
		}
	}
	return EntryPointInfo{}, false
}

// ClassName resolves the emitted class's name: the reserved symbol if
// present, else the caller-supplied fallback (typically
// DecompiledClass_<k>, assigned by the pipeline's process-wide counter).
func (p *UdonProgramData) ClassName(fallback string) string {
	if sym, ok := p.Symbols[ClassNameSymbol]; ok {
		if entry, ok := p.HeapAt(sym.Address); ok {
			if s, ok := entry.StringValue(); ok && s != "" {
				return s
			}
		}
	}
	return fallback
}
