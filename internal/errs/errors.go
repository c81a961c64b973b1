// Package errs is the §7 error taxonomy: typed errors the pipeline stages
// return, split between fatal (abort the current program) and recoverable
// (logged as a warning, pipeline continues). Grounded on wasm/errors.go's
// typed-struct-implementing-error style, wrapped across package boundaries
// with github.com/pkg/errors the way mewmew/x wraps its lifter failures.
package errs

import "fmt"

// MalformedBytecode is fatal: unknown opcode, truncated operand, or an
// operand that fails to resolve to a symbol/heap string it must resolve to.
type MalformedBytecode struct {
	Addr   uint32
	Reason string
}

func (e *MalformedBytecode) Error() string {
	return fmt.Sprintf("malformed bytecode at %#06x: %s", e.Addr, e.Reason)
}

// MalformedProgram is fatal: missing halt sentinel, duplicate symbol
// address, or an entry address that doesn't land on an instruction
// boundary.
type MalformedProgram struct {
	Reason string
}

func (e *MalformedProgram) Error() string {
	return fmt.Sprintf("malformed program: %s", e.Reason)
}

// UnknownExtern is recoverable: an EXTERN signature absent from the module
// registry. The caller emits the raw signature and logs a warning.
type UnknownExtern struct {
	Signature string
	Addr      uint32
}

func (e *UnknownExtern) Error() string {
	return fmt.Sprintf("unknown extern %q referenced at %#06x", e.Signature, e.Addr)
}

// UnresolvedIndirectJump is recoverable: a JUMP_INDIRECT matching neither
// the return-jump nor the switch pattern. The block becomes a terminator
// with no successors.
type UnresolvedIndirectJump struct {
	Addr uint32
}

func (e *UnresolvedIndirectJump) Error() string {
	return fmt.Sprintf("unresolved indirect jump at %#06x", e.Addr)
}

// AmbiguousRecovery is recoverable: conflicting function-name candidates,
// or a block with multiple successors that fits no recognized structure.
type AmbiguousRecovery struct {
	Reason string
}

func (e *AmbiguousRecovery) Error() string {
	return fmt.Sprintf("ambiguous recovery: %s", e.Reason)
}

// Recoverable reports whether err is one of the three recoverable
// categories (§7's policy: log and continue, vs. abort the current
// program).
func Recoverable(err error) bool {
	switch err.(type) {
	case *UnknownExtern, *UnresolvedIndirectJump, *AmbiguousRecovery:
		return true
	default:
		return false
	}
}
