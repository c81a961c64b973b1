// Package astexpr implements §4.6's expression builder: for every
// value-producing instruction in a simulated function, construct at most
// one ast.Expr, reifying its operands from the pre-instruction stack via
// the variable identifier and the heap simulator.
//
// Grounded on informatter-nilan/ast/expressions.go's per-node-kind
// construction helpers, generalized from parsing source text into building
// nodes from a simulated bytecode stack.
package astexpr

import (
	"strings"

	"github.com/udon-tools/udecomp/ast"
	"github.com/udon-tools/udecomp/cfg"
	"github.com/udon-tools/udecomp/modinfo"
	"github.com/udon-tools/udecomp/program"
	"github.com/udon-tools/udecomp/simulate"
	"github.com/udon-tools/udecomp/vars"
)

// Builder attaches an Expression to each instruction of a function (§4.6).
type Builder struct {
	vars *vars.Table
	mod  *modinfo.UdonModuleInfo
	sim  *simulate.Result
}

// New constructs a Builder over one function's already-computed variable
// table and simulation result.
func New(vt *vars.Table, mod *modinfo.UdonModuleInfo, sim *simulate.Result) *Builder {
	return &Builder{vars: vt, mod: mod, sim: sim}
}

// BuildFunction walks every instruction reachable in fn and returns the
// Expression attached at each address that produces one. Instructions with
// no Expression (PUSH, POP, JUMP_IF_FALSE, NOP, ANNOTATION, an ordinary
// JUMP) are simply absent from the result.
func (b *Builder) BuildFunction(fn *cfg.ControlFlowGraph, prog *program.UdonProgramData) map[uint32]*ast.Expr {
	out := make(map[uint32]*ast.Expr)
	for _, id := range fn.BlockIDs {
		for _, ins := range fn.Block(id).Instrs {
			if e := b.build(ins, prog); e != nil {
				out[ins.Addr] = e
			}
		}
	}
	return out
}

func (b *Builder) build(ins program.Instruction, prog *program.UdonProgramData) *ast.Expr {
	switch ins.Op {
	case program.OpJump:
		if ep, isCall := prog.EntryPointByCallTarget(ins.Operand); isCall {
			return &ast.Expr{
				Kind:             ast.ExprInternalCall,
				SourceAddr:       ins.Addr,
				EntryPoint:       ep.Address,
				FunctionName:     ep.Name,
				EmitAsExpression: false,
			}
		}
		return nil

	case program.OpCopy:
		return b.buildAssignment(ins)

	case program.OpExtern:
		return b.buildExtern(ins, prog)

	default:
		return nil
	}
}

// buildAssignment handles COPY: ASSIGNMENT(target=name-of-lower,
// rhs=stack-value-above) (§4.6).
func (b *Builder) buildAssignment(ins program.Instruction) *ast.Expr {
	pre := b.sim.PreState[ins.Addr]
	if len(pre) < 2 {
		return nil
	}
	rhsVal := pre[len(pre)-1]
	targetVal := pre[len(pre)-2]

	targetExpr := b.reifyVariable(targetVal)
	rhsExpr := b.reify(rhsVal.Addr, rhsVal)

	return &ast.Expr{
		Kind:             ast.ExprAssignment,
		SourceAddr:       ins.Addr,
		Target:           targetExpr,
		RHS:              rhsExpr,
		EmitAsExpression: false,
	}
}

// buildExtern classifies an EXTERN by the callee's def_type (§4.6).
func (b *Builder) buildExtern(ins program.Instruction, prog *program.UdonProgramData) *ast.Expr {
	pre := b.sim.PreState[ins.Addr]
	fn, known := b.mod.Lookup(ins.OperandName)

	if !known {
		return &ast.Expr{
			Kind:             ast.ExprExternalCall,
			SourceAddr:       ins.Addr,
			Signature:        ins.OperandName,
			Unknown:          true,
			Args:             b.reifyArgList(pre),
			EmitAsExpression: true,
		}
	}

	n := len(fn.Parameters)
	if n > len(pre) {
		n = len(pre)
	}
	args := pre[len(pre)-n:] // ascending: args[0] is the first-declared parameter

	var outputTarget *ast.Expr
	if !fn.ReturnsVoid && len(args) > 0 {
		outputTarget = b.reifyVariable(args[len(args)-1]) // last-declared param = top of stack (§4.4/§4.6)
		args = args[:len(args)-1]
	}

	switch fn.DefType {
	case modinfo.DefField:
		return b.buildPropertyAccess(ins, fn, args, outputTarget)
	case modinfo.DefCtor:
		return &ast.Expr{
			Kind:             ast.ExprConstructor,
			SourceAddr:       ins.Addr,
			CalleeType:       fn.OriginalName,
			Args:             b.reifyArgList(args),
			Static:           fn.IsStatic,
			ReturnsVoid:      fn.ReturnsVoid,
			Signature:        ins.OperandName,
			EmitAsExpression: outputTarget == nil,
			OutputTarget:     outputTarget,
		}
	case modinfo.DefOperator:
		opExpr := &ast.Expr{
			Kind:             ast.ExprOperator,
			SourceAddr:       ins.Addr,
			Operator:         parseOperatorTag(ins.OperandName),
			Args:             b.reifyArgList(args),
			Signature:        ins.OperandName,
			EmitAsExpression: true,
		}
		if outputTarget == nil {
			return opExpr
		}
		// An operator's result always lands in its declared OUT parameter
		// (§4.4's receiver-is-last-declared-param rule) — reify that as a
		// plain assignment rather than carrying OutputTarget, since
		// OPERATOR has no receiver/call-target slot to qualify (§4.8).
		return &ast.Expr{
			Kind:             ast.ExprAssignment,
			SourceAddr:       ins.Addr,
			Target:           outputTarget,
			RHS:              opExpr,
			EmitAsExpression: false,
		}
	default: // modinfo.DefMethod
		var instance *ast.Expr
		callArgs := args
		if !fn.IsStatic && len(callArgs) > 0 {
			instance = b.reifyVariable(callArgs[0]) // the instance object is the first-declared parameter
			callArgs = callArgs[1:]
		}
		return &ast.Expr{
			Kind:             ast.ExprExternalCall,
			SourceAddr:       ins.Addr,
			CalleeType:       fn.Module,
			CalleeName:       fn.OriginalName,
			Args:             b.reifyArgList(callArgs),
			Static:           fn.IsStatic,
			ReturnsVoid:      fn.ReturnsVoid,
			Signature:        ins.OperandName,
			EmitAsExpression: outputTarget == nil,
			Receiver:         instance,
			OutputTarget:     outputTarget,
		}
	}
}

func (b *Builder) buildPropertyAccess(ins program.Instruction, fn modinfo.FunctionMetadata, args []simulate.StackValue, outputTarget *ast.Expr) *ast.Expr {
	access := ast.AccessGet
	name := ins.OperandName
	switch {
	case strings.Contains(name, "__get"):
		access = ast.AccessGet
	case strings.Contains(name, "__set"):
		access = ast.AccessSet
	}

	var instance *ast.Expr
	if !fn.IsStatic && len(args) > 0 {
		instance = b.reifyVariable(args[0])
		args = args[1:]
	}

	e := &ast.Expr{
		Kind:             ast.ExprPropertyAccess,
		SourceAddr:       ins.Addr,
		Access:           access,
		Receiver:         instance,
		Field:            fn.OriginalName,
		Signature:        ins.OperandName,
		OutputTarget:     outputTarget,
		EmitAsExpression: access == ast.AccessGet && outputTarget == nil,
	}
	if access == ast.AccessSet && len(args) > 0 {
		e.RHS = b.reifyVariable(args[len(args)-1])
	}
	return e
}

func (b *Builder) reifyArgList(vs []simulate.StackValue) []*ast.Expr {
	out := make([]*ast.Expr, 0, len(vs))
	for _, v := range vs {
		out = append(out, b.reify(v.Addr, v))
	}
	return out
}

// Condition reifies the value a CONDITIONAL block's terminator consumes —
// the top of the pre-instruction stack at the JUMP_IF_FALSE — for use as a
// structural-recovery if/while/do-while test (§4.7). Returns nil if the
// simulator has no recorded pre-state for ins (e.g. an unreachable block).
func (b *Builder) Condition(ins program.Instruction) *ast.Expr {
	pre := b.sim.PreState[ins.Addr]
	if len(pre) == 0 {
		return nil
	}
	top := pre[len(pre)-1]
	return b.reify(top.Addr, top)
}

// reify turns one simulated stack value into a LITERAL or VARIABLE
// expression node, per §4.6's "reified by looking up the name/literal
// using the variable identifier and heap".
func (b *Builder) reify(addr uint32, v simulate.StackValue) *ast.Expr {
	if v.HasLiteral {
		return &ast.Expr{
			Kind:             ast.ExprLiteral,
			SourceAddr:       addr,
			LiteralValue:     v.Literal,
			LiteralType:      v.Type,
			EmitAsExpression: true,
		}
	}
	return b.reifyVariable(v)
}

func (b *Builder) reifyVariable(v simulate.StackValue) *ast.Expr {
	variable := b.vars.Get(v.Addr, v.Type)
	return &ast.Expr{
		Kind:             ast.ExprVariable,
		SourceAddr:       v.Addr,
		VarName:          variable.Name,
		VarType:          variable.Type,
		EmitAsExpression: true,
	}
}

// parseOperatorTag extracts the operator's display name from the
// `__op_<Name>` substring of a raw extern signature (§4.6).
func parseOperatorTag(signature string) string {
	const marker = "__op_"
	i := strings.Index(signature, marker)
	if i < 0 {
		return signature
	}
	rest := signature[i+len(marker):]
	if j := strings.Index(rest, "__"); j >= 0 {
		return rest[:j]
	}
	return rest
}
