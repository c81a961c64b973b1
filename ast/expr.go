// Package ast holds the structured program representation recovered by
// structural recovery (§4.7) and walked by the code emitter (§4.8): a
// closed set of tagged-variant nodes, following §9's design note that
// every enum-like hierarchy should be a closed sum type with exhaustive
// matching.
//
// The node shapes (If/IfElse/While/DoWhile/Switch/Block) are grounded on
// informatter-nilan/ast/statements.go; the "single struct, Kind
// discriminator, switch dispatch" representation itself follows the
// primary teacher's own style for tagged data (disasm.Instr, BasicBlock)
// rather than nilan's Visitor-interface hierarchy, which would multiply a
// dozen single-method interfaces for no benefit once the pipeline itself
// never needs double dispatch — only the emitter walks these, and a type
// switch does that perfectly well.
package ast

import "fmt"

// ExprKind is the Expression tagged variant (§3).
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprVariable
	ExprAssignment
	ExprExternalCall
	ExprInternalCall
	ExprPropertyAccess
	ExprConstructor
	ExprOperator
)

func (k ExprKind) String() string {
	switch k {
	case ExprLiteral:
		return "LITERAL"
	case ExprVariable:
		return "VARIABLE"
	case ExprAssignment:
		return "ASSIGNMENT"
	case ExprExternalCall:
		return "EXTERNAL_CALL"
	case ExprInternalCall:
		return "INTERNAL_CALL"
	case ExprPropertyAccess:
		return "PROPERTY_ACCESS"
	case ExprConstructor:
		return "CONSTRUCTOR"
	case ExprOperator:
		return "OPERATOR"
	default:
		return fmt.Sprintf("ExprKind(%d)", int(k))
	}
}

// AccessKind distinguishes a PROPERTY_ACCESS's direction.
type AccessKind int

const (
	AccessGet AccessKind = iota
	AccessSet
)

// Expr is one node of the expression tree attached to a value-producing
// instruction (§3/§4.6). Only the fields relevant to Kind are populated;
// callers must switch on Kind before reading variant-specific fields.
type Expr struct {
	Kind       ExprKind
	SourceAddr uint32 // back-reference to the instruction this node came from

	// EmitAsExpression hints whether this node should render as a bare
	// sub-expression (true) or as a standalone `receiver = expr;`
	// statement (false) — set by astexpr.Builder. emit does not read it; it
	// decides from Kind and OutputTarget.
	EmitAsExpression bool

	// LITERAL
	LiteralValue interface{}
	LiteralType  string

	// VARIABLE
	VarName string
	VarType string

	// ASSIGNMENT
	Target *Expr
	RHS    *Expr

	// EXTERNAL_CALL / CONSTRUCTOR / OPERATOR
	CalleeType  string // static type name, or the constructed type
	CalleeName  string // method/operator display name
	Args        []*Expr
	Static      bool
	ReturnsVoid bool
	Signature   string // raw extern signature, used verbatim for UnknownExtern fallback
	Unknown     bool   // true when Signature had no module-registry metadata

	// INTERNAL_CALL
	EntryPoint   uint32
	FunctionName string

	// PROPERTY_ACCESS
	Access   AccessKind
	Receiver *Expr // the `this`/instance object; nil for a static/global access
	Field    string

	// OutputTarget is set when this node is a non-void call/access whose
	// result is written to a variable rather than consumed inline — the
	// emitter renders `<OutputTarget> = <this>` instead of a bare
	// sub-expression (§4.6's emit_as_expression flag, §4.8).
	OutputTarget *Expr

	// OPERATOR
	Operator string // parsed from __op_<Name> (Addition, Subtraction, Conversion, ...)
}

func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s@%#06x", e.Kind, e.SourceAddr)
}
