// Package wasm encodes a backend IR module into a WebAssembly binary.
// Control flow uses the loop-plus-dispatch pattern: every function
// body is one loop over a br_table on a block-index local, so
// arbitrary CFGs need no restructuring. Registers map to wasm locals
// one to one.
package wasm

import (
	"fmt"

	"solang/ir"
)

const (
	secType   = 1
	secImport = 2
	secFunc   = 3
	secMemory = 5
	secGlobal = 6
	secExport = 7
	secCode   = 10
	secData   = 11
)

// Encode serializes the module. The same module always produces a
// byte-identical binary.
func Encode(module *ir.Module) ([]byte, error) {
	encoder := &encoder{module: module}
	return encoder.encode()
}

type funcType struct {
	params  []byte
	results []byte
}

type encoder struct {
	module *ir.Module

	types     []funcType
	typeIndex map[string]int

	// function index space: imports first, then module functions
	importIndex map[string]int
	funcIndex   map[string]int
}

func valType(ty ir.Ty) byte {
	if ty == ir.I64 {
		return 0x7e
	}
	return 0x7f // i32; pointers are i32
}

func (e *encoder) typeFor(params, results []ir.Ty) int {
	signature := funcType{}
	for _, param := range params {
		signature.params = append(signature.params, valType(param))
	}
	for _, result := range results {
		signature.results = append(signature.results, valType(result))
	}
	key := fmt.Sprintf("%v:%v", signature.params, signature.results)
	if e.typeIndex == nil {
		e.typeIndex = make(map[string]int)
	}
	if index, seen := e.typeIndex[key]; seen {
		return index
	}
	e.types = append(e.types, signature)
	e.typeIndex[key] = len(e.types) - 1
	return len(e.types) - 1
}

func uleb(value uint64) []byte {
	var out []byte
	for {
		chunk := byte(value & 0x7f)
		value >>= 7
		if value != 0 {
			chunk |= 0x80
		}
		out = append(out, chunk)
		if value == 0 {
			return out
		}
	}
}

func sleb(value int64) []byte {
	var out []byte
	for {
		chunk := byte(value & 0x7f)
		value >>= 7
		done := (value == 0 && chunk&0x40 == 0) || (value == -1 && chunk&0x40 != 0)
		if !done {
			chunk |= 0x80
		}
		out = append(out, chunk)
		if done {
			return out
		}
	}
}

func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint64(len(payload)))...)
	return append(out, payload...)
}

func (e *encoder) encode() ([]byte, error) {
	module := e.module

	// assign indexes: imports first
	e.importIndex = make(map[string]int)
	for i, imported := range module.Imports {
		e.typeFor(imported.Params, imported.Results)
		e.importIndex[imported.Name] = i
	}
	e.funcIndex = make(map[string]int)
	for i, function := range module.Funcs {
		e.typeFor(function.Params, function.Results)
		e.funcIndex[function.Name] = len(module.Imports) + i
	}

	// code bodies first so every needed type is interned
	var code []byte
	code = append(code, uleb(uint64(len(module.Funcs)))...)
	for _, function := range module.Funcs {
		body, err := e.body(function)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", function.Name, err)
		}
		code = append(code, uleb(uint64(len(body)))...)
		code = append(code, body...)
	}

	var types []byte
	types = append(types, uleb(uint64(len(e.types)))...)
	for _, signature := range e.types {
		types = append(types, 0x60)
		types = append(types, uleb(uint64(len(signature.params)))...)
		types = append(types, signature.params...)
		types = append(types, uleb(uint64(len(signature.results)))...)
		types = append(types, signature.results...)
	}

	var imports []byte
	imports = append(imports, uleb(uint64(len(module.Imports)))...)
	for _, imported := range module.Imports {
		imports = append(imports, name(imported.Module)...)
		imports = append(imports, name(imported.Name)...)
		imports = append(imports, 0x00) // function import
		imports = append(imports, uleb(uint64(e.typeFor(imported.Params, imported.Results)))...)
	}

	var funcs []byte
	funcs = append(funcs, uleb(uint64(len(module.Funcs)))...)
	for _, function := range module.Funcs {
		funcs = append(funcs, uleb(uint64(e.typeFor(function.Params, function.Results)))...)
	}

	// one memory of 16 pages, growable
	memory := []byte{0x01, 0x00, 0x10}

	// global 0: the heap pointer
	var globals []byte
	globals = append(globals, 0x01)
	globals = append(globals, valType(ir.I32), 0x01) // mutable i32
	globals = append(globals, 0x41)
	globals = append(globals, sleb(int64(module.HeapBase))...)
	globals = append(globals, 0x0b)

	var exports []byte
	exportCount := len(module.Exports) + 1
	exports = append(exports, uleb(uint64(exportCount))...)
	exports = append(exports, name("memory")...)
	exports = append(exports, 0x02, 0x00)
	for _, exportName := range sortedKeys(module.Exports) {
		index, known := e.funcIndex[module.Exports[exportName]]
		if !known {
			return nil, fmt.Errorf("export %q names unknown function %q", exportName, module.Exports[exportName])
		}
		exports = append(exports, name(exportName)...)
		exports = append(exports, 0x00)
		exports = append(exports, uleb(uint64(index))...)
	}

	var data []byte
	data = append(data, uleb(uint64(len(module.Data)))...)
	for _, segment := range module.Data {
		data = append(data, 0x00, 0x41)
		data = append(data, sleb(int64(segment.Offset))...)
		data = append(data, 0x0b)
		data = append(data, uleb(uint64(len(segment.Bytes)))...)
		data = append(data, segment.Bytes...)
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(secType, types)...)
	out = append(out, section(secImport, imports)...)
	out = append(out, section(secFunc, funcs)...)
	out = append(out, section(secMemory, memory)...)
	out = append(out, section(secGlobal, globals)...)
	out = append(out, section(secExport, exports)...)
	out = append(out, section(secCode, code)...)
	out = append(out, section(secData, data)...)
	return out, nil
}

func name(text string) []byte {
	out := uleb(uint64(len(text)))
	return append(out, text...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
