// Package pipeline wires every recovery stage into one end-to-end run: parse
// bytecode, build the control-flow graph, simulate each function's stack,
// identify variables, build expressions, recover structure, lift the result,
// and emit source text for one decompiled class.
//
// Grounded on exec/vm.go's single long-lived VM threading instructions
// through handler functions in sequence — here the "handlers" are whole
// packages (bytecode, cfg, simulate, vars, astexpr, structure, lifters,
// emit) and the VM's instruction loop becomes Pipeline.Decompile's per-
// function loop.
package pipeline

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/udon-tools/udecomp/ast"
	"github.com/udon-tools/udecomp/astexpr"
	"github.com/udon-tools/udecomp/bytecode"
	"github.com/udon-tools/udecomp/cfg"
	"github.com/udon-tools/udecomp/emit"
	"github.com/udon-tools/udecomp/internal/errs"
	"github.com/udon-tools/udecomp/lifters"
	"github.com/udon-tools/udecomp/modinfo"
	"github.com/udon-tools/udecomp/program"
	"github.com/udon-tools/udecomp/simulate"
	"github.com/udon-tools/udecomp/structure"
	"github.com/udon-tools/udecomp/vars"
)

// ClassCounter hands out the process-monotonic DecompiledClass_<k> suffix
// used when a program carries no ClassNameSymbol (§6). Explicit instance
// state, mirroring cfg.NameCounter, so a batch run over many programs
// shares one counter without a package-level global.
type ClassCounter struct{ next int }

// Next returns the next synthetic class index.
func (c *ClassCounter) Next() int {
	c.next++
	return c.next - 1
}

func syntheticClassName(c *ClassCounter) string {
	return "DecompiledClass_" + itoa(c.Next())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

// Pipeline owns the stateful, cross-program dependencies every stage needs:
// the module registry, a logger satisfying cfg.Logger, the function-name
// counter, and the class-name counter. One Pipeline can decompile many
// programs in a batch run (§6's directory mode) and keeps both counters
// monotonic across the whole batch.
type Pipeline struct {
	Mod       *modinfo.UdonModuleInfo
	Log       *zap.SugaredLogger
	Names     *cfg.NameCounter
	Classes   *ClassCounter
	Formatter emit.Formatter
}

// New constructs a Pipeline. mod may be empty (NewUdonModuleInfo with no
// Register calls) when no module JSON was supplied — every extern then
// resolves as UnknownExtern and is emitted with its raw signature (§7).
func New(mod *modinfo.UdonModuleInfo, log *zap.SugaredLogger) *Pipeline {
	if mod == nil {
		mod = modinfo.NewUdonModuleInfo()
	}
	return &Pipeline{
		Mod:     mod,
		Log:     log,
		Names:   &cfg.NameCounter{},
		Classes: &ClassCounter{},
	}
}

// Decompile runs the full recovery pipeline over one program and returns
// its rendered source text. Fatal errors (bytecode.Parse, cfg.Build) abort
// and propagate; recoverable errors (§7: UnknownExtern,
// UnresolvedIndirectJump, AmbiguousRecovery) are logged through p.Log and
// recovery continues with the rest of the program.
func (p *Pipeline) Decompile(prog *program.UdonProgramData) (string, error) {
	instrs, err := bytecode.Parse(prog)
	if err != nil {
		return "", errors.Wrap(err, "decoding bytecode")
	}

	result, err := cfg.Build(prog, instrs, p.Names, p.Log)
	if err != nil {
		return "", errors.Wrap(err, "building control-flow graph")
	}

	vt := vars.NewTable(prog)

	functions := make([]*ast.FunctionNode, 0, len(result.Functions))
	for _, fn := range result.Functions {
		sim := simulate.Function(fn, prog, p.Mod)
		vars.Identify(vt, fn, sim, p.Mod)

		eb := astexpr.New(vt, p.Mod, sim)
		exprs := eb.BuildFunction(fn, prog)
		p.logUnknownExterns(exprs)

		fnNode := structure.BuildFunction(fn, prog, vt, exprs, eb)

		lifters.InlineTemps(fnNode, vt)
		lifters.DropDeadStores(fnNode, vt)
		lifters.PruneGotos(fnNode)

		functions = append(functions, fnNode)
	}

	className := prog.ClassName(syntheticClassName(p.Classes))

	progNode := &ast.ProgramNode{
		ClassName: className,
		Globals:   globalsOf(vt),
		Functions: functions,
	}

	e := emit.New(p.Formatter)
	return e.EmitProgram(progNode), nil
}

// logUnknownExterns reports every expression astexpr.Builder marked Unknown
// (a signature absent from the module registry) as a recoverable
// UnknownExtern. astexpr never logs this itself — Decompile is the one
// place that sees every built expression for a function, so it owns the
// scan.
func (p *Pipeline) logUnknownExterns(exprs map[uint32]*ast.Expr) {
	if p.Log == nil {
		return
	}
	for addr, e := range exprs {
		if e != nil && e.Unknown {
			err := &errs.UnknownExtern{Signature: e.Signature, Addr: addr}
			p.Log.Warnw(err.Error(), "addr", addr, "signature", e.Signature)
		}
	}
}

// globalsOf collects every program-scope variable with a declared symbol
// into the emitted class's field list. §4.8 filters the compiler-internal
// ones further (emit.Emitter.FilterGlobals); this just gathers the
// candidates worth considering at all — a synthetic ScopeGlobal slot with
// no backing SymbolInfo has no declared name or type to emit.
func globalsOf(vt *vars.Table) []ast.GlobalVar {
	var out []ast.GlobalVar
	for _, v := range vt.All() {
		if v.Scope != program.ScopeGlobal || v.Symbol == nil {
			continue
		}
		out = append(out, ast.GlobalVar{Name: v.Name, Type: v.Type})
	}
	return out
}
