package emit

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatLiteral renders one LITERAL expr's value per §4.8: strings
// JSON-quoted, booleans as true/false, integers verbatim, 32-bit floats
// suffixed, null as "null". typ is the declared Udon type name
// (SystemSingle, SystemString, ...), used to distinguish a 32-bit float
// from a double.
func FormatLiteral(value interface{}, typ string) string {
	if value == nil {
		return "null"
	}
	switch v := value.(type) {
	case string:
		b, err := json.Marshal(v)
		if err != nil {
			return strconv.Quote(v)
		}
		return string(b)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float32:
		return formatFloat(float64(v), typ)
	case float64:
		// JSON decodes every number as float64; an integer-typed value still
		// renders as an integer.
		switch typ {
		case "SystemByte", "SystemSByte", "SystemInt16", "SystemUInt16", "SystemInt32", "SystemUInt32", "SystemInt64", "SystemUInt64":
			if v == math.Trunc(v) {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		return formatFloat(v, typ)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(v float64, typ string) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	if typ == "SystemSingle" {
		return s + "f"
	}
	return s
}

// NonSerializablePlaceholder renders a commented stand-in for a heap value
// the core declined to interpret (§6's isSerializable=false contract).
func NonSerializablePlaceholder(hint string) string {
	return fmt.Sprintf("/* non-serializable value: %s */ default", hint)
}

// friendlyTypeNames maps a handful of common Udon System.* type symbols to
// their target-language spelling. Anything not listed here is emitted
// verbatim — better an unfamiliar type name than a silently wrong one.
var friendlyTypeNames = map[string]string{
	"SystemInt32":   "int",
	"SystemInt64":   "long",
	"SystemUInt32":  "uint",
	"SystemSingle":  "float",
	"SystemDouble":  "double",
	"SystemBoolean": "bool",
	"SystemString":  "string",
	"SystemObject":  "object",
	"SystemVoid":    "void",
	"SystemChar":    "char",
	"SystemByte":    "byte",
}

// FriendlyType renames a raw Udon type symbol to its idiomatic spelling
// when one is known.
func FriendlyType(name string) string {
	if f, ok := friendlyTypeNames[name]; ok {
		return f
	}
	return name
}
