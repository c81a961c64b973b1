package program

import "strings"

// Scope classifies a SymbolInfo / Variable by where it lives (§4.5).
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeLocal
	ScopeTemporary
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeLocal:
		return "local"
	case ScopeTemporary:
		return "temporary"
	default:
		return "unknown"
	}
}

// Name-prefix conventions from §3/§4.5. Order matters: a name is tested
// against these in declaration order since "__this_" is a more specific
// prefix than the bare fallback.
const (
	PrefixConst   = "__const_"
	PrefixIntnl   = "__intnl_"
	PrefixGIntnl  = "__gintnl_"
	PrefixThis    = "__this_"
	PrefixLocalRe = `__\d+_` // documented for reference; see IsLocalName
)

// ThisDiscriminators maps substrings of a __this_ symbol name to the
// receiver expression the emitter should render.
var ThisDiscriminators = []struct {
	Substr string
	Target string
}{
	{"Transform", "this.transform"},
	{"GameObject", "this.gameObject"},
	{"", "this"}, // fallback, must stay last
}

// SymbolInfo is a declared program symbol (§3).
type SymbolInfo struct {
	Name    string
	Type    string
	Address uint32
}

// IsLocalName reports whether name matches the __<digits>_... local
// variable convention.
func IsLocalName(name string) bool {
	if !strings.HasPrefix(name, "__") {
		return false
	}
	rest := name[2:]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	return i > 0 && i < len(rest) && rest[i] == '_'
}

// ClassifyName returns the Scope a symbol name implies, following §4.5's
// prefix precedence.
func ClassifyName(name string) Scope {
	switch {
	case strings.HasPrefix(name, PrefixConst):
		return ScopeGlobal
	case strings.HasPrefix(name, PrefixIntnl):
		return ScopeTemporary
	case strings.HasPrefix(name, PrefixGIntnl):
		return ScopeGlobal
	case IsLocalName(name):
		return ScopeLocal
	case strings.HasPrefix(name, PrefixThis):
		return ScopeGlobal
	default:
		return ScopeGlobal
	}
}

// ThisTarget resolves a __this_* symbol name to its receiver expression.
func ThisTarget(name string) string {
	for _, d := range ThisDiscriminators {
		if d.Substr == "" || strings.Contains(name, d.Substr) {
			return d.Target
		}
	}
	return "this"
}

// IsCompilerInternal reports whether name is one of the compiler-internal
// families the emitter excludes from the global-variable listing unless
// actually referenced (§4.8).
func IsCompilerInternal(name string) bool {
	return strings.HasPrefix(name, PrefixConst) ||
		strings.HasPrefix(name, PrefixIntnl) ||
		strings.HasPrefix(name, PrefixGIntnl) ||
		strings.HasPrefix(name, PrefixThis)
}
