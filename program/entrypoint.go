package program

// EntryPointInfo is a declared or discovered function entry (§3). Name is
// empty when the function was not declared with a name in the program
// bundle and must be recovered or synthesized by the CFG builder.
type EntryPointInfo struct {
	Name    string
	Address uint32

	// Declared is true for an entry point the program bundle's JSON
	// entryPoints array named, false for one the CFG builder's hidden-entry
	// fixpoint discovered. §5's determinism requirement pins function
	// emission order to the declared array's order, so
	// UdonProgramData.AddEntryPoint never reorders a Declared entry —
	// only discovered ones get placed by address.
	Declared bool

	// CallJumpTarget is the address of the first executable instruction of
	// the callee, derived when the entry's first instruction is the
	// halt-jump sentinel PUSH that marks a function prologue. Zero (and
	// Resolved=false) until the parser derives it.
	CallJumpTarget uint32
	Resolved       bool
}
