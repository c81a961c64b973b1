// Package modinfo is the module registry: process-wide (but explicitly
// instance-held, per spec §9) lookup of extern function metadata by
// signature. Grounded on wasm/imports.go's Importer resolution-by-name
// pattern, generalized from "resolve an imported function by (module,
// field) name" to "resolve an extern's parsed signature by (module,
// function) name".
package modinfo

import "fmt"

// ParamKind is one entry of a FunctionMetadata's parameter list (§3).
type ParamKind int

const (
	ParamIn ParamKind = iota
	ParamOut
	ParamInOut
)

func (k ParamKind) String() string {
	switch k {
	case ParamIn:
		return "IN"
	case ParamOut:
		return "OUT"
	case ParamInOut:
		return "IN_OUT"
	default:
		return "UNKNOWN"
	}
}

// IsRead reports whether this parameter position is read by the callee.
func (k ParamKind) IsRead() bool { return k == ParamIn || k == ParamInOut }

// IsWrite reports whether this parameter position is written by the callee.
func (k ParamKind) IsWrite() bool { return k == ParamOut || k == ParamInOut }

// DefType classifies what kind of member an extern signature resolves to
// (§3).
type DefType int

const (
	DefMethod DefType = iota
	DefField
	DefCtor
	DefOperator
)

func (d DefType) String() string {
	switch d {
	case DefMethod:
		return "METHOD"
	case DefField:
		return "FIELD"
	case DefCtor:
		return "CTOR"
	case DefOperator:
		return "OPERATOR"
	default:
		return "UNKNOWN"
	}
}

// FunctionMetadata describes one extern function as declared in the module
// JSON (§3/§6).
type FunctionMetadata struct {
	Module       string
	Name         string // the raw signature's function name
	Parameters   []ParamKind
	DefType      DefType
	IsStatic     bool
	ReturnsVoid  bool
	OriginalName string // the pretty, human-facing name
}

// key uniquely identifies a FunctionMetadata within the registry.
type key struct {
	module string
	name   string
}

// UdonModuleInfo is the module registry: an explicit instance (not a
// package-level singleton, per §9) mapping (module, function) to metadata.
type UdonModuleInfo struct {
	byKey map[key]FunctionMetadata
	// bySignature additionally indexes by the raw extern signature string
	// (e.g. "UnityEngine.Debug.__Log__SystemString__SystemVoid"), which is
	// what astexpr.Builder, simulate and vars actually have in hand (the
	// operand name bytecode.Parse resolves for an EXTERN).
	bySignature map[string]FunctionMetadata
}

// NewUdonModuleInfo builds an empty registry.
func NewUdonModuleInfo() *UdonModuleInfo {
	return &UdonModuleInfo{
		byKey:       make(map[key]FunctionMetadata),
		bySignature: make(map[string]FunctionMetadata),
	}
}

// Register adds fn under its (module, name) key and its raw signature.
func (m *UdonModuleInfo) Register(signature string, fn FunctionMetadata) {
	m.byKey[key{fn.Module, fn.Name}] = fn
	m.bySignature[signature] = fn
}

// Lookup resolves an extern signature string to its metadata. ok is false
// when the signature is not registered — callers must treat that as
// UnknownExtern (§7), a recoverable error.
func (m *UdonModuleInfo) Lookup(signature string) (FunctionMetadata, bool) {
	fn, ok := m.bySignature[signature]
	return fn, ok
}

// LookupByName resolves by (module, function) directly, for callers that
// already parsed the signature apart.
func (m *UdonModuleInfo) LookupByName(module, name string) (FunctionMetadata, bool) {
	fn, ok := m.byKey[key{module, name}]
	return fn, ok
}

func (fn FunctionMetadata) String() string {
	return fmt.Sprintf("%s.%s(%d params, %s)", fn.Module, fn.Name, len(fn.Parameters), fn.DefType)
}
