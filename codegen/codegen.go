// Package codegen walks optimized CFGs and emits the backend IR
// module for one contract, parameterized over the Target capability
// object. Nothing in here assumes a particular chain: selector
// hashing, storage key derivation and host imports all come from the
// target.
package codegen

import (
	"fmt"
	"math/big"

	"solang/ast"
	"solang/cfg"
	"solang/ir"
	"solang/sema"
	"solang/target"
)

// Generator emits one contract's module.
type Generator struct {
	ns       *sema.Namespace
	contract *sema.ContractDecl
	tgt      target.Target
	graphs   map[int]*cfg.CFG

	module  *ir.Module
	imports map[target.Builtin]int // builtin -> import index
	data    uint32
}

// Contract generates the backend module for one contract from the
// CFGs of its functions (keyed by function id).
func Contract(ns *sema.Namespace, contract *sema.ContractDecl, tgt target.Target, graphs map[int]*cfg.CFG) *ir.Module {
	generator := &Generator{
		ns:       ns,
		contract: contract,
		tgt:      tgt,
		graphs:   graphs,
		module: &ir.Module{
			Name:    contract.Name,
			Exports: make(map[string]string),
		},
		imports: make(map[target.Builtin]int),
		data:    16, // low memory is reserved for scratch
	}

	generator.emitRuntime()

	// one canonical entry per (contract, signature), most-derived
	// definition first
	seen := make(map[string]bool)
	for _, linear := range contract.Linear {
		for _, functionID := range ns.Contracts[linear].Functions {
			function := ns.Functions[functionID]
			if !function.HasBody || seen[function.Signature] {
				continue
			}
			seen[function.Signature] = true
			if graph, ok := graphs[functionID]; ok {
				generator.function(function, graph)
			}
		}
	}

	// library and free functions are compiled into every module that
	// can reach them; calls resolve against the same canonical names
	for _, function := range ns.Functions {
		if !function.HasBody || seen[function.Signature] {
			continue
		}
		library := function.Contract < 0 || ns.Contracts[function.Contract].Kind == ast.KindLibrary
		if !library {
			continue
		}
		seen[function.Signature] = true
		if graph, ok := graphs[function.ID]; ok {
			generator.function(function, graph)
		}
	}

	generator.dispatcher()
	generator.module.HeapBase = generator.data
	return generator.module
}

// funcName is the canonical symbol of a function body.
func funcName(contract *sema.ContractDecl, function *sema.Function) string {
	return fmt.Sprintf("%s::%s", contract.Name, function.Signature)
}

// hostImport registers (once) and returns the import name of a host
// builtin.
func (g *Generator) hostImport(builtin target.Builtin) string {
	hostFn := g.tgt.HostImport(builtin)
	if _, done := g.imports[builtin]; !done {
		params := make([]ir.Ty, hostFn.Params)
		for i := range params {
			params[i] = ir.I32
		}
		results := make([]ir.Ty, hostFn.Results)
		for i := range results {
			results[i] = ir.I64
		}
		g.module.Imports = append(g.module.Imports, ir.Import{
			Module:  hostFn.Module,
			Name:    hostFn.Name,
			Params:  params,
			Results: results,
		})
		g.imports[builtin] = len(g.module.Imports) - 1
	}
	return hostFn.Name
}

// addData places a constant blob in static memory and returns its
// offset.
func (g *Generator) addData(blob []byte) uint32 {
	offset := g.data
	g.module.Data = append(g.module.Data, ir.Data{Offset: offset, Bytes: append([]byte(nil), blob...)})
	g.data += uint32(len(blob))
	if padding := g.data % 8; padding != 0 {
		g.data += 8 - padding
	}
	return offset
}

// wide reports whether a type is lowered as a pointer to a 32-byte
// little-endian limb buffer rather than a machine register.
func wide(ty sema.Type) bool {
	switch t := sema.Deref(ty).(type) {
	case sema.Int:
		return t.Width > 64
	case sema.Uint:
		return t.Width > 64
	case sema.Bytes:
		return t.N > 8
	case sema.Bool, sema.Enum:
		return false
	}
	// addresses, strings, byte arrays and aggregates are pointers
	return true
}

func lowerTy(ty sema.Type) ir.Ty {
	if wide(ty) {
		return ir.Ptr
	}
	if _, isBool := sema.Deref(ty).(sema.Bool); isBool {
		return ir.I32
	}
	return ir.I64
}

// fnContext is the per-function lowering state.
type fnContext struct {
	g        *Generator
	graph    *cfg.CFG
	function *ir.Func

	// regs maps CFG virtual registers to IR registers.
	regs []int
	// blocks maps CFG block ids to IR block ids.
	blocks []int
	block  *ir.Block
}

// function lowers one CFG into an IR function.
func (g *Generator) function(function *sema.Function, graph *cfg.CFG) {
	lowered := &ir.Func{Name: funcName(g.contract, function)}
	for _, parameter := range function.Parameters {
		lowered.Params = append(lowered.Params, lowerTy(parameter.Type))
	}
	for _, ret := range function.Returns {
		lowered.Results = append(lowered.Results, lowerTy(ret.Type))
	}

	context := &fnContext{g: g, graph: graph, function: lowered}
	for _, ty := range graph.RegTypes {
		context.regs = append(context.regs, lowered.NewReg(lowerTy(ty)))
	}
	for range graph.Blocks {
		context.blocks = append(context.blocks, lowered.NewBlock().ID)
	}
	// parameters arrive in the first IR registers; copy them into the
	// registers backing the CFG variable table
	entry := lowered.Blocks[context.blocks[0]]
	context.block = entry
	for i := range function.Parameters {
		context.emit(ir.Copy{Dest: context.regs[graph.Vars[i]], Src: i})
	}

	for index, block := range graph.Blocks {
		context.block = lowered.Blocks[context.blocks[index]]
		if index == 0 {
			context.block = entry
		}
		for _, instruction := range block.Instrs {
			context.instr(instruction)
		}
		context.terminator(block.Term)
	}
	g.module.Funcs = append(g.module.Funcs, lowered)
}

func (c *fnContext) emit(instruction ir.Instr) {
	c.block.Instrs = append(c.block.Instrs, instruction)
}

// value materializes a CFG operand into an IR register.
func (c *fnContext) value(operand cfg.Value) int {
	switch v := operand.(type) {
	case cfg.Reg:
		return c.regs[v.No]
	case cfg.ConstInt:
		if wide(v.Ty) {
			return c.wideConst(v.Value)
		}
		dest := c.function.NewReg(ir.I64)
		c.emit(ir.Const{Dest: dest, Ty: ir.I64, Value: truncate64(v.Value)})
		return dest
	case cfg.ConstBool:
		dest := c.function.NewReg(ir.I32)
		value := int64(0)
		if v.Value {
			value = 1
		}
		c.emit(ir.Const{Dest: dest, Ty: ir.I32, Value: value})
		return dest
	case cfg.ConstBytes:
		return c.blobConst(v.Value)
	case cfg.ConstString:
		return c.blobConst([]byte(v.Value))
	}
	dest := c.function.NewReg(ir.I64)
	c.emit(ir.Const{Dest: dest, Ty: ir.I64})
	return dest
}

func truncate64(value *big.Int) int64 {
	return int64(value.Uint64())
}

// wideConst writes a 32-byte little-endian buffer into static data
// and yields a pointer to it.
func (c *fnContext) wideConst(value *big.Int) int {
	buffer := make([]byte, 32)
	adjusted := value
	if value.Sign() < 0 {
		adjusted = new(big.Int).Add(value, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	raw := adjusted.Bytes()
	for i := 0; i < len(raw) && i < 32; i++ {
		buffer[i] = raw[len(raw)-1-i]
	}
	offset := c.g.addData(buffer)
	dest := c.function.NewReg(ir.Ptr)
	c.emit(ir.Const{Dest: dest, Ty: ir.I32, Value: int64(offset)})
	return dest
}

// blobConst writes a length-prefixed blob into static data: 4 bytes
// of little-endian length, then the payload.
func (c *fnContext) blobConst(blob []byte) int {
	framed := make([]byte, 4+len(blob))
	framed[0] = byte(len(blob))
	framed[1] = byte(len(blob) >> 8)
	framed[2] = byte(len(blob) >> 16)
	framed[3] = byte(len(blob) >> 24)
	copy(framed[4:], blob)
	offset := c.g.addData(framed)
	dest := c.function.NewReg(ir.Ptr)
	c.emit(ir.Const{Dest: dest, Ty: ir.I32, Value: int64(offset)})
	return dest
}

func (c *fnContext) constI32(value int64) int {
	dest := c.function.NewReg(ir.I32)
	c.emit(ir.Const{Dest: dest, Ty: ir.I32, Value: value})
	return dest
}

func (c *fnContext) constI64(value int64) int {
	dest := c.function.NewReg(ir.I64)
	c.emit(ir.Const{Dest: dest, Ty: ir.I64, Value: value})
	return dest
}

// scratch allocates a fresh heap buffer of a fixed byte size.
func (c *fnContext) scratch(size int64) int {
	sizeReg := c.constI32(size)
	dest := c.function.NewReg(ir.Ptr)
	c.emit(ir.Alloc{Dest: dest, Size: sizeReg})
	return dest
}

// widen copies an i64 register into a fresh 32-byte buffer.
func (c *fnContext) widen(register int) int {
	buffer := c.scratch(32)
	zero := c.constI64(0)
	c.emit(ir.StoreMem{Src: register, Ty: ir.I64, Addr: buffer, Offset: 0, Width: 8})
	c.emit(ir.StoreMem{Src: zero, Ty: ir.I64, Addr: buffer, Offset: 8, Width: 8})
	c.emit(ir.StoreMem{Src: zero, Ty: ir.I64, Addr: buffer, Offset: 16, Width: 8})
	c.emit(ir.StoreMem{Src: zero, Ty: ir.I64, Addr: buffer, Offset: 24, Width: 8})
	return buffer
}

// narrowed reads the low limb of a wide buffer.
func (c *fnContext) narrowed(pointer int) int {
	dest := c.function.NewReg(ir.I64)
	c.emit(ir.LoadMem{Dest: dest, Ty: ir.I64, Addr: pointer, Offset: 0, Width: 8})
	return dest
}

func (c *fnContext) terminator(terminator cfg.Terminator) {
	switch term := terminator.(type) {
	case cfg.Branch:
		c.block.Term = ir.Br{Block: c.blocks[term.Block]}
	case cfg.CondBranch:
		c.block.Term = ir.BrIf{Cond: c.value(term.Cond), True: c.blocks[term.True], False: c.blocks[term.False]}
	case cfg.Return:
		values := make([]int, len(term.Values))
		for i, value := range term.Values {
			values[i] = c.value(value)
		}
		c.block.Term = ir.Ret{Values: values}
	case cfg.Unreachable:
		c.block.Term = ir.Unreachable{}
	}
}
