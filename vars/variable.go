// Package vars implements §4.5: classifying every addressable slot into a
// scope and collecting its read/write sites from a function's simulated
// stack.
//
// Grounded on validate/operand.go's operand-type bookkeeping, generalized
// from "does this opcode's operand type-check" to "what scope does this
// operand's symbol name imply".
package vars

import (
	"sort"

	"github.com/udon-tools/udecomp/program"
)

// Variable is one addressable slot: a symbol's identity plus where it is
// read and written across a function (§3).
type Variable struct {
	Address uint32
	Name    string
	Type    string
	Scope   program.Scope

	Reads  map[uint32]bool // instruction addresses that read this variable
	Writes map[uint32]bool // instruction addresses that write this variable

	Symbol *program.SymbolInfo // back-reference, nil for synthetic/heap-only slots
}

func newVariable(addr uint32, name, typ string, scope program.Scope, sym *program.SymbolInfo) *Variable {
	return &Variable{
		Address: addr,
		Name:    name,
		Type:    typ,
		Scope:   scope,
		Reads:   map[uint32]bool{},
		Writes:  map[uint32]bool{},
		Symbol:  sym,
	}
}

func (v *Variable) recordRead(at uint32)  { v.Reads[at] = true }
func (v *Variable) recordWrite(at uint32) { v.Writes[at] = true }

// SingleUse reports whether v has exactly one write site and at least one
// read site — the shape §4.6's temp-inlining rule requires before even
// considering InlineSafe.
func (v *Variable) SingleUse() bool {
	return len(v.Writes) == 1 && len(v.Reads) >= 1
}

// InlineSafe is the §8 legality predicate for inlining a single-write
// temporary at a read site: legal iff no variable referenced in the
// write's rhs is rewritten between the write and the read, and no
// INTERNAL_CALL occurs between them. The caller (lifters) computes those
// two facts by walking the AST statements between the write and the read;
// this just encodes the boolean rule so the rule
// itself lives in one place, matching original_source/'s
// dataflow_analyzer.py keeping this check separate from read/write-site
// bookkeeping.
func (v *Variable) InlineSafe(rhsRewrittenBetween, internalCallBetween bool) bool {
	return v.SingleUse() && !rhsRewrittenBetween && !internalCallBetween
}

// Table is the per-function (or per-program, for globals) set of known
// variables, indexed by address.
type Table struct {
	byAddr map[uint32]*Variable
}

// NewTable seeds one Variable per declared symbol, classified by name
// prefix (§4.5).
func NewTable(prog *program.UdonProgramData) *Table {
	t := &Table{byAddr: make(map[uint32]*Variable, len(prog.Symbols))}
	for _, sym := range prog.Symbols {
		sym := sym
		scope := program.ClassifyName(sym.Name)
		name := sym.Name
		if scope == program.ScopeGlobal && isThis(sym.Name) {
			name = program.ThisTarget(sym.Name)
		}
		t.byAddr[sym.Address] = newVariable(sym.Address, name, sym.Type, scope, &sym)
	}
	return t
}

func isThis(name string) bool {
	const prefix = "__this_"
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}

// Get returns the variable at addr, creating a synthetic heap-only one
// (GLOBAL scope, per §4.5's "otherwise" rule) if no declared symbol backs
// it — heap-addressed constants that aren't in the symbol table still need
// a Variable for expression reification.
func (t *Table) Get(addr uint32, typeHint string) *Variable {
	if v, ok := t.byAddr[addr]; ok {
		return v
	}
	v := newVariable(addr, "", typeHint, program.ScopeGlobal, nil)
	t.byAddr[addr] = v
	return v
}

// All returns every known variable, for callers that need to iterate (e.g.
// the emitter's global-variable listing) deterministically by address.
func (t *Table) All() []*Variable {
	out := make([]*Variable, 0, len(t.byAddr))
	for _, v := range t.byAddr {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
