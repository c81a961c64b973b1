package ioload

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udon-tools/udecomp/modinfo"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadProgram_DecodesSchema(t *testing.T) {
	code := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00} // POP, then NOP
	hexCode := hex.EncodeToString(code)

	doc := `{
		"byteCodeHex": "` + hexCode + `",
		"byteCodeLength": ` + itoaLen(len(code)) + `,
		"symbols": {
			"__result": {"name": "__result", "type": "SystemInt32", "address": 16}
		},
		"entryPoints": [
			{"name": "Start", "address": 0}
		],
		"heapInitialValues": {
			"16": {"address": 16, "type": "SystemInt32", "value": {"isSerializable": true, "value": 5}}
		},
		"someUnknownField": "ignored"
	}`

	path := writeTemp(t, "program.json", doc)

	prog, err := LoadProgram(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(len(code)), prog.BytecodeLength)
	assert.Equal(t, code, prog.Bytecode)

	sym, ok := prog.Symbols["__result"]
	require.True(t, ok)
	assert.Equal(t, uint32(16), sym.Address)
	assert.Equal(t, "SystemInt32", sym.Type)

	require.Len(t, prog.EntryPoints, 1)
	assert.Equal(t, "Start", prog.EntryPoints[0].Name)

	entry, ok := prog.HeapInitial[16]
	require.True(t, ok)
	sval, isString := entry.StringValue()
	assert.False(t, isString)
	assert.Equal(t, float64(5), entry.Value.Raw)
	_ = sval
}

// entries out of address order in the JSON array must come back in that
// same declared order — §5 pins function emission order to it, so the
// loader must not re-sort by address.
func TestLoadProgram_PreservesDeclaredEntryPointOrder(t *testing.T) {
	doc := `{
		"byteCodeHex": "",
		"byteCodeLength": 0,
		"entryPoints": [
			{"name": "Update", "address": 64},
			{"name": "Start", "address": 0},
			{"name": "OnDisable", "address": 32}
		]
	}`

	path := writeTemp(t, "program.json", doc)

	prog, err := LoadProgram(path)
	require.NoError(t, err)

	require.Len(t, prog.EntryPoints, 3)
	assert.Equal(t, "Update", prog.EntryPoints[0].Name)
	assert.Equal(t, "Start", prog.EntryPoints[1].Name)
	assert.Equal(t, "OnDisable", prog.EntryPoints[2].Name)
	for _, ep := range prog.EntryPoints {
		assert.True(t, ep.Declared)
	}
}

func TestLoadProgram_RejectsBadHex(t *testing.T) {
	path := writeTemp(t, "program.json", `{"byteCodeHex": "not-hex", "byteCodeLength": 0}`)
	_, err := LoadProgram(path)
	assert.Error(t, err)
}

func TestLoadModuleInfo_RegistersUnderSignature(t *testing.T) {
	const sig = "UnityEngine__Debug__Log__SystemString__SystemVoid"
	doc := `{
		"UnityEngine.Debug": {
			"type": "UnityEngine.Debug",
			"functions": [
				{
					"name": "` + sig + `",
					"defType": "METHOD",
					"isStatic": true,
					"returnsVoid": true,
					"originalName": "Log",
					"parameters": ["IN"]
				}
			]
		}
	}`

	path := writeTemp(t, "module.json", doc)

	mod, err := LoadModuleInfo(path)
	require.NoError(t, err)

	fn, ok := mod.Lookup(sig)
	require.True(t, ok)
	assert.Equal(t, "UnityEngine.Debug", fn.Module)
	assert.Equal(t, "Log", fn.OriginalName)
	assert.True(t, fn.IsStatic)
	assert.True(t, fn.ReturnsVoid)
	assert.Equal(t, modinfo.DefMethod, fn.DefType)
	require.Len(t, fn.Parameters, 1)
	assert.Equal(t, modinfo.ParamIn, fn.Parameters[0])
}

func TestLoadModuleInfo_ParsesOperatorAndParamKinds(t *testing.T) {
	const sig = "UnityEngineInternal__UdonBaseModule__op_Addition__SystemInt32_SystemInt32__SystemInt32"
	doc := `{
		"UnityEngineInternal.UdonBaseModule": {
			"type": "UnityEngineInternal.UdonBaseModule",
			"functions": [
				{
					"name": "` + sig + `",
					"defType": "OPERATOR",
					"isStatic": true,
					"returnsVoid": false,
					"originalName": "Addition",
					"parameters": ["IN", "IN", "OUT"]
				}
			]
		}
	}`

	path := writeTemp(t, "module.json", doc)

	mod, err := LoadModuleInfo(path)
	require.NoError(t, err)

	fn, ok := mod.Lookup(sig)
	require.True(t, ok)
	assert.Equal(t, modinfo.DefOperator, fn.DefType)
	require.Len(t, fn.Parameters, 3)
	assert.Equal(t, modinfo.ParamOut, fn.Parameters[2])
}

// itoaLen avoids pulling in strconv just for one small test fixture.
func itoaLen(n int) string {
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
