// Package ioload is the §1/§6 out-of-scope boundary: decoding program JSON
// and module JSON off disk into the pipeline's in-memory types. Grounded on
// wagon's own preference for memory-mapping large inputs rather than
// reading them into a []byte up front — program bundles embed a full
// hex-encoded bytecode blob and batch mode opens many of them in sequence,
// so this reuses github.com/edsrzf/mmap-go (already a teacher dependency,
// there for the JIT backend's page allocator) for the read itself, copies
// the mapped bytes out and unmaps, then hands the copy to encoding/json.
package ioload

import (
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/udon-tools/udecomp/modinfo"
	"github.com/udon-tools/udecomp/program"
)

// readFile maps path read-only and returns its contents. An empty file maps
// to an empty slice directly — mmap.Map refuses a zero-length mapping.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stating %s", path)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "mapping %s", path)
	}
	defer m.Unmap()

	out := make([]byte, len(m))
	copy(out, m)
	return out, nil
}

// programJSON mirrors §6's program JSON schema. Unknown keys are ignored by
// encoding/json's default decode behavior, matching §6 directly.
type programJSON struct {
	ByteCodeHex       string                    `json:"byteCodeHex"`
	ByteCodeLength    uint32                    `json:"byteCodeLength"`
	Symbols           map[string]symbolJSON     `json:"symbols"`
	EntryPoints       []entryPointJSON          `json:"entryPoints"`
	HeapInitialValues map[string]heapEntryJSON  `json:"heapInitialValues"`
}

type symbolJSON struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address uint32 `json:"address"`
}

type entryPointJSON struct {
	Name    string `json:"name"`
	Address uint32 `json:"address"`
}

type heapEntryJSON struct {
	Address uint32 `json:"address"`
	Type    string `json:"type"`
	Value   struct {
		IsSerializable bool        `json:"isSerializable"`
		Value          interface{} `json:"value"`
	} `json:"value"`
}

// LoadProgram decodes path's program JSON into a program.UdonProgramData.
// The bytecode hex string is decoded once here; bytecode.Parse consumes the
// resulting bytes, never the hex form.
func LoadProgram(path string) (*program.UdonProgramData, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var raw programJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "decoding program JSON %s", path)
	}

	code, err := hex.DecodeString(raw.ByteCodeHex)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding byteCodeHex in %s", path)
	}

	symbols := make(map[string]program.SymbolInfo, len(raw.Symbols))
	for name, s := range raw.Symbols {
		symbols[name] = program.SymbolInfo{Name: s.Name, Type: s.Type, Address: s.Address}
	}

	heap := make(map[uint32]program.HeapEntry, len(raw.HeapInitialValues))
	for _, h := range raw.HeapInitialValues {
		heap[h.Address] = program.HeapEntry{
			Address: h.Address,
			Type:    h.Type,
			Value: program.HeapValue{
				IsSerializable: h.Value.IsSerializable,
				Raw:            h.Value.Value,
			},
		}
	}

	// Declaration order drives §5's determinism (functions emitted in
	// declared-entry-point order); the JSON array's order IS that order, so
	// it's carried through unsorted rather than re-derived by address.
	entries := make([]program.EntryPointInfo, len(raw.EntryPoints))
	for i, ep := range raw.EntryPoints {
		entries[i] = program.EntryPointInfo{Name: ep.Name, Address: ep.Address, Declared: true}
	}

	return program.NewUdonProgramData(symbols, heap, entries, code, raw.ByteCodeLength)
}

// moduleJSON mirrors §6's module JSON schema: a map from module name to its
// pretty type name and function list.
type moduleJSON map[string]moduleEntryJSON

type moduleEntryJSON struct {
	Type      string         `json:"type"`
	Functions []functionJSON `json:"functions"`
}

type functionJSON struct {
	Name         string   `json:"name"` // the raw extern signature, used verbatim as the registry key
	DefType      string   `json:"defType"`
	IsStatic     bool     `json:"isStatic"`
	ReturnsVoid  bool     `json:"returnsVoid"`
	OriginalName string   `json:"originalName"`
	Parameters   []string `json:"parameters"`
}

// LoadModuleInfo decodes path's module JSON into a modinfo.UdonModuleInfo.
// Each function entry is registered under its own name field — per §6 this
// is the raw signature exactly as it appears in an EXTERN instruction's
// resolved heap string, so no further string assembly is needed to make
// modinfo.UdonModuleInfo.Lookup succeed against what bytecode.Parse
// resolves.
func LoadModuleInfo(path string) (*modinfo.UdonModuleInfo, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var raw moduleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "decoding module JSON %s", path)
	}

	mod := modinfo.NewUdonModuleInfo()
	for moduleKey, entry := range raw {
		typeName := entry.Type
		if typeName == "" {
			typeName = moduleKey
		}
		for _, f := range entry.Functions {
			params := make([]modinfo.ParamKind, len(f.Parameters))
			for i, p := range f.Parameters {
				params[i] = parseParamKind(p)
			}
			mod.Register(f.Name, modinfo.FunctionMetadata{
				Module:       typeName,
				Name:         f.Name,
				Parameters:   params,
				DefType:      parseDefType(f.DefType),
				IsStatic:     f.IsStatic,
				ReturnsVoid:  f.ReturnsVoid,
				OriginalName: f.OriginalName,
			})
		}
	}
	return mod, nil
}

func parseParamKind(s string) modinfo.ParamKind {
	switch s {
	case "OUT":
		return modinfo.ParamOut
	case "IN_OUT":
		return modinfo.ParamInOut
	default:
		return modinfo.ParamIn
	}
}

func parseDefType(s string) modinfo.DefType {
	switch s {
	case "FIELD":
		return modinfo.DefField
	case "CTOR":
		return modinfo.DefCtor
	case "OPERATOR":
		return modinfo.DefOperator
	default:
		return modinfo.DefMethod
	}
}
