package wasm

import (
	"bytes"
	"reflect"
	"testing"

	"solang/ir"
)

func testModule() *ir.Module {
	module := &ir.Module{
		Name: "t",
		Imports: []ir.Import{
			{Module: "env", Name: "host", Params: []ir.Ty{ir.I32, ir.I32}},
		},
		Exports: map[string]string{"main": "f"},
	}
	function := &ir.Func{Name: "f", Params: []ir.Ty{ir.I64}, Results: []ir.Ty{ir.I64}}
	function.Regs = append(function.Regs, ir.I64)
	block := function.NewBlock()
	one := function.NewReg(ir.I64)
	sum := function.NewReg(ir.I64)
	block.Instrs = append(block.Instrs,
		ir.Const{Dest: one, Ty: ir.I64, Value: 1},
		ir.Bin{Dest: sum, Ty: ir.I64, Op: ir.OpAdd, L: 0, R: one},
	)
	block.Term = ir.Ret{Values: []int{sum}}
	module.Funcs = append(module.Funcs, function)
	module.Data = append(module.Data, ir.Data{Offset: 16, Bytes: []byte{1, 2, 3}})
	module.HeapBase = 32
	return module
}

func TestEncodeHeader(t *testing.T) {
	binary, err := Encode(testModule())
	if err != nil {
		t.Fatal(err)
	}
	magic := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.HasPrefix(binary, magic) {
		t.Errorf("missing wasm magic: %x", binary[:8])
	}
}

func TestSectionsInOrder(t *testing.T) {
	binary, err := Encode(testModule())
	if err != nil {
		t.Fatal(err)
	}
	var sections []byte
	offset := 8
	for offset < len(binary) {
		id := binary[offset]
		sections = append(sections, id)
		offset++
		size, consumed := readULEB(binary[offset:])
		offset += consumed + int(size)
	}
	expected := []byte{secType, secImport, secFunc, secMemory, secGlobal, secExport, secCode, secData}
	if !reflect.DeepEqual(sections, expected) {
		t.Errorf("sections = %v, want %v", sections, expected)
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	first, err := Encode(testModule())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Encode(testModule())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two encodings of the same module differ")
	}
}

func TestUnknownExportIsAnError(t *testing.T) {
	module := testModule()
	module.Exports["bad"] = "missing"
	if _, err := Encode(module); err == nil {
		t.Error("export of an unknown function must fail")
	}
}

func TestLEB128(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 624485, 1 << 32}
	for _, value := range cases {
		encoded := uleb(value)
		decoded, consumed := readULEB(encoded)
		if decoded != value || consumed != len(encoded) {
			t.Errorf("uleb(%d): decoded %d from %d bytes", value, decoded, consumed)
		}
	}
	signed := []int64{0, 1, -1, 63, -64, 64, -65, 624485, -624485}
	for _, value := range signed {
		encoded := sleb(value)
		decoded, consumed := readSLEB(encoded)
		if decoded != value || consumed != len(encoded) {
			t.Errorf("sleb(%d): decoded %d from %d bytes", value, decoded, consumed)
		}
	}
}

func readULEB(data []byte) (uint64, int) {
	var value uint64
	var shift uint
	for i, chunk := range data {
		value |= uint64(chunk&0x7f) << shift
		if chunk&0x80 == 0 {
			return value, i + 1
		}
		shift += 7
	}
	return value, len(data)
}

func readSLEB(data []byte) (int64, int) {
	var value int64
	var shift uint
	for i, chunk := range data {
		value |= int64(chunk&0x7f) << shift
		shift += 7
		if chunk&0x80 == 0 {
			if shift < 64 && chunk&0x40 != 0 {
				value |= -1 << shift
			}
			return value, i + 1
		}
	}
	return value, len(data)
}
