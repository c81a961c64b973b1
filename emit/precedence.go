package emit

// Precedence levels, lowest to highest, matching C-family operator
// grouping closely enough that the round-trip property in §8 holds for
// every operator this pipeline emits.
const (
	precAssign = iota
	precLogicalOr
	precLogicalAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

// opInfo describes how to render one operator name (parsed from an
// `__op_<Name>` extern signature by astexpr.parseOperatorTag) and where it
// sits in the precedence table.
type opInfo struct {
	format string // "{} + {}" for binary, "!{}" for unary, "(<type>){}" for a conversion
	prec   int
	unary  bool
	// associative operators don't need parens around a same-precedence
	// right operand (§4.8).
	associative bool
}

// operators maps the Udon operator display name (post __op_ prefix strip)
// to its rendering. Grounded on §4.8's explicit examples ("{} + {}", "!{}",
// "({}){}" for Conversion) and the common C-family operator set the
// original decompiler's expression builder recognizes.
var operators = map[string]opInfo{
	"Addition":              {"{} + {}", precAdditive, false, true},
	"Subtraction":            {"{} - {}", precAdditive, false, false},
	"Multiplication":         {"{} * {}", precMultiplicative, false, true},
	"Division":               {"{} / {}", precMultiplicative, false, false},
	"Remainder":              {"{} % {}", precMultiplicative, false, false},
	"Equality":               {"{} == {}", precEquality, false, false},
	"Inequality":             {"{} != {}", precEquality, false, false},
	"LessThan":               {"{} < {}", precRelational, false, false},
	"LessThanOrEqual":        {"{} <= {}", precRelational, false, false},
	"GreaterThan":            {"{} > {}", precRelational, false, false},
	"GreaterThanOrEqual":     {"{} >= {}", precRelational, false, false},
	"LogicalAnd":             {"{} && {}", precLogicalAnd, false, true},
	"LogicalOr":              {"{} || {}", precLogicalOr, false, true},
	"LogicalNot":             {"!{}", precUnary, true, false},
	"BitwiseAnd":             {"{} & {}", precBitAnd, false, true},
	"BitwiseOr":              {"{} | {}", precBitOr, false, true},
	"ExclusiveOr":            {"{} ^ {}", precBitXor, false, true},
	"BitwiseNot":             {"~{}", precUnary, true, false},
	"LeftShift":              {"{} << {}", precShift, false, false},
	"RightShift":             {"{} >> {}", precShift, false, false},
	"UnaryNegation":          {"-{}", precUnary, true, false},
	"UnaryPlus":              {"+{}", precUnary, true, false},
}

// lookupOperator returns the rendering info for name, falling back to a
// 2-ary call-shaped rendering for any operator this table doesn't know —
// keeps an unrecognized op name from silently producing malformed output.
func lookupOperator(name string) opInfo {
	if info, ok := operators[name]; ok {
		return info
	}
	return opInfo{format: name + "({}, {})", prec: precPrimary}
}

// conversionFormat is the rendering for a Conversion operator, which takes
// the target type recovered from the extern signature rather than being
// looked up by name.
func conversionFormat(toType string) opInfo {
	return opInfo{format: "(" + toType + "){}", prec: precUnary, unary: true}
}
