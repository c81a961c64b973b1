// Package emit implements §4.8: walking the recovered AST and producing
// target-language source text. Grounded on
// informatter-nilan/parser/printer.go's walk-and-build-strings shape,
// generalized from a JSON AST dump to precedence-aware C-family source,
// and on original_source/'s code_generator.py for the exact per-node-kind
// rendering rules (receiver/output-target disambiguation, operator
// parenthesization, switch fallthrough).
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/udon-tools/udecomp/ast"
	"github.com/udon-tools/udecomp/program"
)

// Formatter is an optional post-processing step run over the emitted
// text — the collaborator original_source/ shells out to for whitespace
// normalization (codegen/formatter.py). The core never requires one.
type Formatter interface {
	Format(code string) string
}

// NoopFormatter returns its input unchanged; the default when no
// collaborator formatter is configured.
type NoopFormatter struct{}

func (NoopFormatter) Format(code string) string { return code }

const baseClass = "UdonSharpBehaviour"

// Emitter renders one ast.ProgramNode to source text.
type Emitter struct {
	formatter  Formatter
	referenced map[string]bool
}

// New constructs an Emitter. A nil formatter is equivalent to NoopFormatter.
func New(formatter Formatter) *Emitter {
	if formatter == nil {
		formatter = NoopFormatter{}
	}
	return &Emitter{formatter: formatter, referenced: map[string]bool{}}
}

// EmitProgram renders prog's class declaration: field declarations for its
// global variables, then one method per function in declared order. Body
// text is rendered before the globals are decided — §4.8's listing rule
// keeps a compiler-internal global only if emitted code actually names it,
// which isn't known until the bodies referencing it have been walked.
func (e *Emitter) EmitProgram(prog *ast.ProgramNode) string {
	funcTexts := make([]string, len(prog.Functions))
	for i, fn := range prog.Functions {
		var fb strings.Builder
		e.emitFunction(&fb, fn, 1)
		funcTexts[i] = fb.String()
	}

	globals := e.FilterGlobals(prog.Globals)

	var b strings.Builder
	fmt.Fprintln(&b, "// Decompiled Udon program")
	fmt.Fprintln(&b, "// This is pseudo-code reconstructed from bytecode and may not compile as-is")
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "public class %s : %s\n", prog.ClassName, baseClass)
	fmt.Fprintln(&b, "{")

	for _, g := range globals {
		fmt.Fprintf(&b, "    %s %s;\n", FriendlyType(g.Type), g.Name)
	}
	if len(globals) > 0 {
		fmt.Fprintln(&b)
	}

	for i, ft := range funcTexts {
		b.WriteString(ft)
		if i != len(funcTexts)-1 {
			fmt.Fprintln(&b)
		}
	}

	fmt.Fprintln(&b, "}")

	return e.formatter.Format(b.String())
}

// FilterGlobals applies §4.8's global-variable listing rule: keep a global
// unless it's one of the compiler-internal families
// (program.IsCompilerInternal) and was never referenced while rendering
// whatever function bodies e has rendered so far.
func (e *Emitter) FilterGlobals(candidates []ast.GlobalVar) []ast.GlobalVar {
	out := make([]ast.GlobalVar, 0, len(candidates))
	for _, g := range candidates {
		if !program.IsCompilerInternal(g.Name) || e.referenced[g.Name] {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (e *Emitter) emitFunction(b *strings.Builder, fn *ast.FunctionNode, indent int) {
	pad := strings.Repeat("    ", indent)
	fmt.Fprintf(b, "%s%s\n", pad, e.functionSignature(fn))
	fmt.Fprintf(b, "%s{\n", pad)
	if fn.Body != nil {
		e.emitBlock(b, fn.Body, indent+1)
	}
	fmt.Fprintf(b, "%s}\n", pad)
}

func (e *Emitter) functionSignature(fn *ast.FunctionNode) string {
	params := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		typ := p.Type
		if typ == "" {
			typ = "object"
		}
		params = append(params, fmt.Sprintf("%s %s", FriendlyType(typ), p.Name))
	}
	prefix := ""
	if fn.Public {
		prefix = "public "
	}
	returnType := fn.ReturnType
	if returnType == "" {
		returnType = "object"
	}
	return fmt.Sprintf("%s%s %s(%s)", prefix, FriendlyType(returnType), fn.Name, strings.Join(params, ", "))
}

func (e *Emitter) emitBlock(b *strings.Builder, block *ast.Block, indent int) {
	for _, s := range block.Stmts {
		e.emitStmt(b, s, indent)
	}
}

func (e *Emitter) emitStmt(b *strings.Builder, s *ast.Stmt, indent int) {
	pad := strings.Repeat("    ", indent)
	switch s.Kind {
	case ast.StmtVariableDecl:
		if s.DeclInit != nil {
			fmt.Fprintf(b, "%s%s %s = %s;\n", pad, FriendlyType(s.DeclType), s.DeclName, e.renderValue(s.DeclInit))
		} else {
			fmt.Fprintf(b, "%s%s %s;\n", pad, FriendlyType(s.DeclType), s.DeclName)
		}

	case ast.StmtAssignment, ast.StmtExpression:
		fmt.Fprintf(b, "%s%s\n", pad, e.renderStatementExpr(s.Expr))

	case ast.StmtIf:
		fmt.Fprintf(b, "%sif (%s)\n%s{\n", pad, e.renderValue(s.Cond), pad)
		if s.Then != nil {
			e.emitBlock(b, s.Then, indent+1)
		}
		fmt.Fprintf(b, "%s}\n", pad)

	case ast.StmtIfElse:
		fmt.Fprintf(b, "%sif (%s)\n%s{\n", pad, e.renderValue(s.Cond), pad)
		if s.Then != nil {
			e.emitBlock(b, s.Then, indent+1)
		}
		fmt.Fprintf(b, "%s}\n%selse\n%s{\n", pad, pad, pad)
		if s.Else != nil {
			e.emitBlock(b, s.Else, indent+1)
		}
		fmt.Fprintf(b, "%s}\n", pad)

	case ast.StmtWhile:
		fmt.Fprintf(b, "%swhile (%s)\n%s{\n", pad, e.renderValue(s.Cond), pad)
		if s.Body != nil {
			e.emitBlock(b, s.Body, indent+1)
		}
		fmt.Fprintf(b, "%s}\n", pad)

	case ast.StmtDoWhile:
		fmt.Fprintf(b, "%sdo\n%s{\n", pad, pad)
		if s.Body != nil {
			e.emitBlock(b, s.Body, indent+1)
		}
		fmt.Fprintf(b, "%s}\n%swhile (%s);\n", pad, pad, e.renderValue(s.Cond))

	case ast.StmtSwitch:
		e.emitSwitch(b, s, indent)

	case ast.StmtLabel:
		fmt.Fprintf(b, "%s%s:\n", pad, s.Label)

	case ast.StmtGoto:
		fmt.Fprintf(b, "%sgoto %s;\n", pad, s.Label)

	case ast.StmtReturn:
		fmt.Fprintf(b, "%sreturn;\n", pad)

	case ast.StmtBreak:
		fmt.Fprintf(b, "%sbreak;\n", pad)

	case ast.StmtContinue:
		fmt.Fprintf(b, "%scontinue;\n", pad)
	}
}

func (e *Emitter) emitSwitch(b *strings.Builder, s *ast.Stmt, indent int) {
	pad := strings.Repeat("    ", indent)
	fmt.Fprintf(b, "%sswitch (%s)\n%s{\n", pad, e.renderValue(s.SwitchExpr), pad)

	for _, c := range s.Cases {
		e.emitCase(b, c, indent+1)
	}

	fmt.Fprintf(b, "%s}\n", pad)
}

func (e *Emitter) emitCase(b *strings.Builder, c ast.SwitchCase, indent int) {
	pad := strings.Repeat("    ", indent)
	if c.IsDefault {
		fmt.Fprintf(b, "%sdefault:\n", pad)
	} else {
		for _, v := range c.Values {
			fmt.Fprintf(b, "%scase %d:\n", pad, v)
		}
	}
	if c.Body != nil {
		e.emitBlock(b, c.Body, indent+1)
	}
	if !endsInTerminal(c.Body) {
		fmt.Fprintf(b, "%s    break;\n", pad)
	}
}

// endsInTerminal reports whether block's last statement is one of §4.8's
// terminal kinds, which makes an appended break; redundant in a switch arm.
func endsInTerminal(block *ast.Block) bool {
	if block == nil || len(block.Stmts) == 0 {
		return false
	}
	switch block.Stmts[len(block.Stmts)-1].Kind {
	case ast.StmtReturn, ast.StmtGoto, ast.StmtBreak, ast.StmtContinue:
		return true
	default:
		return false
	}
}

// renderStatementExpr renders a top-level expression statement: an
// ASSIGNMENT prints target = rhs;, a call/access/constructor with an
// OutputTarget prints target = <value-rendering-without-the-target>;, and
// everything else (void calls, a bare operator, an internal call) prints
// its value rendering directly (§4.8).
func (e *Emitter) renderStatementExpr(x *ast.Expr) string {
	if x == nil {
		return ";"
	}
	if x.Kind == ast.ExprAssignment {
		return fmt.Sprintf("%s = %s;", e.renderValue(x.Target), e.renderValue(x.RHS))
	}
	if x.OutputTarget != nil {
		return fmt.Sprintf("%s = %s;", e.renderValue(x.OutputTarget), e.renderCallLike(x))
	}
	return e.renderValue(x) + ";"
}

// renderValue renders x as a value-producing sub-expression, usable
// wherever an expression is embedded (call arguments, conditions, RHS).
func (e *Emitter) renderValue(x *ast.Expr) string {
	s, _ := e.renderExpr(x)
	return s
}

// renderExpr returns x's rendering along with its operator precedence
// (precPrimary for anything that isn't itself an OPERATOR node), so a
// caller composing a parent operator can decide whether to parenthesize.
func (e *Emitter) renderExpr(x *ast.Expr) (string, int) {
	if x == nil {
		return "default", precPrimary
	}
	switch x.Kind {
	case ast.ExprLiteral:
		return FormatLiteral(x.LiteralValue, x.LiteralType), precPrimary

	case ast.ExprVariable:
		e.referenced[x.VarName] = true
		return x.VarName, precPrimary

	case ast.ExprAssignment:
		return fmt.Sprintf("%s = %s", e.renderValue(x.Target), e.renderValue(x.RHS)), precAssign

	case ast.ExprExternalCall:
		return e.renderCallLike(x), precPrimary

	case ast.ExprInternalCall:
		return x.FunctionName + "()", precPrimary

	case ast.ExprPropertyAccess:
		return e.renderCallLike(x), precPrimary

	case ast.ExprConstructor:
		return e.renderCallLike(x), precPrimary

	case ast.ExprOperator:
		return e.renderOperator(x)

	default:
		return fmt.Sprintf("/* unhandled expr kind %s */", x.Kind), precPrimary
	}
}

// renderCallLike renders the "value" half of a call/property-access/
// constructor node — the part that appears after "<target> = " when
// OutputTarget is set, or stands alone otherwise. Never looks at
// OutputTarget itself; the caller (renderStatementExpr or a parent
// expression) decides whether to prepend a target.
func (e *Emitter) renderCallLike(x *ast.Expr) string {
	switch x.Kind {
	case ast.ExprExternalCall:
		if x.Unknown {
			return fmt.Sprintf("%s(%s)", x.Signature, e.renderArgs(x.Args))
		}
		caller := x.CalleeType
		if !x.Static {
			caller = e.renderValue(x.Receiver)
		}
		return fmt.Sprintf("%s.%s(%s)", caller, x.CalleeName, e.renderArgs(x.Args))

	case ast.ExprPropertyAccess:
		this := "this"
		if x.Receiver != nil {
			this = e.renderValue(x.Receiver)
		}
		prop := fmt.Sprintf("%s.%s", this, x.Field)
		if x.Access == ast.AccessSet {
			return fmt.Sprintf("%s = %s", prop, e.renderValue(x.RHS))
		}
		return prop

	case ast.ExprConstructor:
		return fmt.Sprintf("new %s(%s)", x.CalleeType, e.renderArgs(x.Args))

	default:
		return fmt.Sprintf("/* unhandled call-like kind %s */", x.Kind)
	}
}

func (e *Emitter) renderArgs(args []*ast.Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = e.renderValue(a)
	}
	return strings.Join(parts, ", ")
}

// renderOperator renders an OPERATOR node per §4.8: a formatter string per
// operator with precedence-driven parenthesization. Conversion is a special
// case — the builder only carries one value operand for it (the target
// type lives in the raw extern signature, not as a stack argument), so its
// target type is recovered heuristically from the signature's trailing
// type segment; this is a documented best-effort rather than a guaranteed
// round-trip for that one operator.
func (e *Emitter) renderOperator(x *ast.Expr) (string, int) {
	if x.Operator == "Conversion" {
		info := conversionFormat(FriendlyType(conversionTargetType(x.Signature)))
		if len(x.Args) == 0 {
			return strings.Replace(info.format, "{}", "default", 1), info.prec
		}
		operand, childPrec := e.renderExpr(x.Args[0])
		if childPrec < info.prec {
			operand = "(" + operand + ")"
		}
		return strings.Replace(info.format, "{}", operand, 1), info.prec
	}

	info := lookupOperator(x.Operator)

	if info.unary {
		if len(x.Args) == 0 {
			return strings.Replace(info.format, "{}", "default", 1), info.prec
		}
		operand, childPrec := e.renderExpr(x.Args[0])
		if childPrec <= info.prec {
			operand = "(" + operand + ")"
		}
		return strings.Replace(info.format, "{}", operand, 1), info.prec
	}

	if len(x.Args) < 2 {
		return fmt.Sprintf("/* malformed operator %s */", x.Operator), precPrimary
	}
	left, leftPrec := e.renderExpr(x.Args[0])
	if leftPrec < info.prec {
		left = "(" + left + ")"
	}
	right, rightPrec := e.renderExpr(x.Args[1])
	if rightPrec < info.prec || (rightPrec == info.prec && !info.associative) {
		right = "(" + right + ")"
	}
	return formatBinary(info.format, left, right), info.prec
}

// formatBinary substitutes left then right into format's two "{}"
// placeholders — a small helper since fmt.Sprintf can't repeat a %s
// positionally without renumbering every format string in precedence.go.
func formatBinary(format, left, right string) string {
	s := strings.Replace(format, "{}", left, 1)
	return strings.Replace(s, "{}", right, 1)
}

// conversionTargetType recovers a Conversion operator's destination type
// from its raw extern signature's trailing "__"-separated segment — the
// convention every other extern signature in this pipeline already follows
// for its final (return-type) component.
func conversionTargetType(signature string) string {
	parts := strings.Split(signature, "__")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return "object"
}
