package codegen

import (
	"sort"

	"solang/ir"
	"solang/sema"
	"solang/target"
)

// dispatcher emits the module's entry points: the deploy entry runs
// storage initializers and the constructor, and the message entry
// reads the selector from the input, switches on it, decodes the
// arguments with a per-signature decoder, invokes the body, encodes
// the returns and hands them back to the host.
func (g *Generator) dispatcher() {
	g.deployEntry()
	g.messageEntry()
	g.module.Exports[g.tgt.ConstructorExport()] = "__deploy"
	g.module.Exports[g.tgt.MessageExport()] = "__dispatch"
}

// deployEntry initializes storage variables in slot order and calls
// the constructor if one is defined.
func (g *Generator) deployEntry() {
	b := g.begin("__deploy", nil, nil)
	c := &fnContext{g: g, function: b.f, block: b.block}

	for _, variable := range g.contract.Layout {
		if variable.Initial == nil {
			continue
		}
		value, ok := constantInitializer(variable.Initial)
		if !ok {
			continue
		}
		slot := c.writeSlotConstant(variable)
		buffer := c.spillConstant(value, variable)
		name := g.hostImport(target.SetStorage)
		size := c.constI32(32)
		c.emit(ir.CallImport{Name: name, Args: []int{slot, buffer, size}})
	}

	for _, functionID := range g.contract.Functions {
		function := g.ns.Functions[functionID]
		if function.Kind == sema.FuncConstructor && function.HasBody {
			c.emit(ir.CallFn{Name: funcName(g.contract, function)})
			break
		}
	}
	c.block.Term = ir.Ret{}
}

// writeSlotConstant materializes a variable's slot key buffer.
func (c *fnContext) writeSlotConstant(variable *sema.StorageVariable) int {
	buffer := c.scratch(32)
	slotReg := c.constI64(int64(variable.Slot))
	c.emit(ir.StoreMem{Src: slotReg, Ty: ir.I64, Addr: buffer, Offset: 0, Width: 8})
	zero := c.constI64(0)
	c.emit(ir.StoreMem{Src: zero, Ty: ir.I64, Addr: buffer, Offset: 8, Width: 8})
	c.emit(ir.StoreMem{Src: zero, Ty: ir.I64, Addr: buffer, Offset: 16, Width: 8})
	c.emit(ir.StoreMem{Src: zero, Ty: ir.I64, Addr: buffer, Offset: 24, Width: 8})
	return buffer
}

// spillConstant writes a folded initializer into a 32-byte buffer,
// honoring the packing offset.
func (c *fnContext) spillConstant(value int64, variable *sema.StorageVariable) int {
	buffer := c.scratch(32)
	zero := c.constI64(0)
	for offset := uint32(0); offset < 32; offset += 8 {
		c.emit(ir.StoreMem{Src: zero, Ty: ir.I64, Addr: buffer, Offset: offset, Width: 8})
	}
	valueReg := c.constI64(value)
	c.emit(ir.StoreMem{Src: valueReg, Ty: ir.I64, Addr: buffer, Offset: uint32(variable.Offset), Width: loadWidth(variable.Type)})
	return buffer
}

// constantInitializer extracts the folded scalar value of a storage
// initializer; non-constant initializers run inside the constructor
// body instead.
func constantInitializer(expression sema.Expression) (int64, bool) {
	switch e := expression.(type) {
	case *sema.NumberLiteral:
		if e.Value.IsInt64() {
			return e.Value.Int64(), true
		}
	case *sema.BoolLiteral:
		if e.Value {
			return 1, true
		}
		return 0, true
	case *sema.EnumLiteral:
		return int64(e.Variant), true
	}
	return 0, false
}

// messageEntry is the selector switch.
func (g *Generator) messageEntry() {
	b := g.begin("__dispatch", nil, nil)
	c := &fnContext{g: g, function: b.f, block: b.block}

	// read the call input into a fresh buffer; 64KiB bounds one
	// message on both chains
	input := c.scratch(1 << 16)
	length := c.constI32(1 << 16)
	inputName := g.hostImport(target.Input)
	c.emit(ir.CallImport{Name: inputName, Args: []int{input, length}})

	// the selector is the first 4 bytes
	selector := c.function.NewReg(ir.I32)
	c.emit(ir.LoadMem{Dest: selector, Ty: ir.I32, Addr: input, Offset: 0, Width: 4})

	// deterministic order: sort selectors
	type entry struct {
		selector uint32
		function *sema.Function
	}
	var entries []entry
	for sel, functionID := range g.contract.Selectors {
		value := uint32(sel[0]) | uint32(sel[1])<<8 | uint32(sel[2])<<16 | uint32(sel[3])<<24
		entries = append(entries, entry{selector: value, function: g.ns.Functions[functionID]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].selector < entries[j].selector })

	fallbackBlock := c.function.NewBlock()
	for _, item := range entries {
		match := c.function.NewBlock()
		next := c.function.NewBlock()
		want := c.constI32(int64(item.selector))
		same := c.function.NewReg(ir.I32)
		c.emit(ir.Bin{Dest: same, Ty: ir.I32, Op: ir.OpEq, L: selector, R: want})
		c.block.Term = ir.BrIf{Cond: same, True: match.ID, False: next.ID}

		c.block = match
		g.invoke(c, item.function, input)

		c.block = next
	}
	c.block.Term = ir.Br{Block: fallbackBlock.ID}
	c.block = fallbackBlock

	// unmatched selector: run the fallback if one exists, else revert
	fallback := g.findSpecial(sema.FuncFallback)
	if fallback != nil {
		c.emit(ir.CallFn{Name: funcName(g.contract, fallback)})
		c.block.Term = ir.Ret{}
	} else {
		c.abort(sema.RevertUser, -1)
		c.block.Term = ir.Unreachable{}
	}
}

func (g *Generator) findSpecial(kind sema.FunctionKind) *sema.Function {
	for _, linear := range g.contract.Linear {
		for _, functionID := range g.ns.Contracts[linear].Functions {
			function := g.ns.Functions[functionID]
			if function.Kind == kind && function.HasBody {
				return function
			}
		}
	}
	return nil
}

// invoke decodes one message's arguments, calls the body and returns
// the encoded results. The decoder is specialized per signature:
// every parameter slot has a fixed shape the codec dictates.
func (g *Generator) invoke(c *fnContext, function *sema.Function, input int) {
	offset := uint32(4) // past the selector
	args := make([]int, 0, len(function.Parameters))
	for _, parameter := range function.Parameters {
		register, consumed := g.decodeParam(c, parameter.Type, input, offset)
		args = append(args, register)
		offset += consumed
	}
	dests := make([]int, len(function.Returns))
	for i, ret := range function.Returns {
		dests[i] = c.function.NewReg(lowerTy(ret.Type))
	}
	c.emit(ir.CallFn{Dests: dests, Name: funcName(g.contract, function), Args: args})

	// encode returns into an output buffer
	out := c.scratch(int64(32 * (len(dests) + 1)))
	written := uint32(0)
	for i, ret := range function.Returns {
		written += g.encodeReturn(c, ret.Type, dests[i], out, written)
	}
	name := g.hostImport(target.ReturnData)
	lengthReg := c.constI32(int64(written))
	c.emit(ir.CallImport{Name: name, Args: []int{out, lengthReg}})
	c.block.Term = ir.Ret{}
}

// decodeParam reads one argument at a fixed offset. The Ethereum
// codec uses 32-byte big-endian words; SCALE packs values tightly
// little-endian.
func (g *Generator) decodeParam(c *fnContext, ty sema.Type, input int, offset uint32) (int, uint32) {
	if g.tgt.Codec() == target.SCALE {
		width := uint32(loadWidth(ty))
		if wide(ty) {
			pointer := c.function.NewReg(ir.I32)
			base := c.constI32(int64(offset))
			c.emit(ir.Bin{Dest: pointer, Ty: ir.I32, Op: ir.OpAdd, L: input, R: base})
			return pointer, 32
		}
		register := c.function.NewReg(ir.I64)
		c.emit(ir.LoadMem{Dest: register, Ty: ir.I64, Addr: input, Offset: offset, Width: int(width)})
		c.maskTo(register, ty)
		return register, width
	}

	// Ethereum words are big-endian; __be_flip32 flips one word
	if wide(ty) {
		out := c.scratch(32)
		pointer := c.function.NewReg(ir.I32)
		base := c.constI32(int64(offset))
		c.emit(ir.Bin{Dest: pointer, Ty: ir.I32, Op: ir.OpAdd, L: input, R: base})
		c.emit(ir.CallFn{Name: "__be_flip32", Args: []int{out, pointer}})
		return out, 32
	}
	register := c.function.NewReg(ir.I64)
	pointer := c.function.NewReg(ir.I32)
	base := c.constI32(int64(offset))
	c.emit(ir.Bin{Dest: pointer, Ty: ir.I32, Op: ir.OpAdd, L: input, R: base})
	c.emit(ir.CallFn{Dests: []int{register}, Name: "__be_load", Args: []int{pointer, c.constI32(32)}})
	c.maskTo(register, ty)
	return register, 32
}

// encodeReturn writes one return value at a fixed offset and reports
// the bytes consumed.
func (g *Generator) encodeReturn(c *fnContext, ty sema.Type, register int, out int, offset uint32) uint32 {
	if g.tgt.Codec() == target.SCALE {
		if wide(ty) {
			pointer := c.function.NewReg(ir.I32)
			base := c.constI32(int64(offset))
			c.emit(ir.Bin{Dest: pointer, Ty: ir.I32, Op: ir.OpAdd, L: out, R: base})
			c.emit(ir.MemCopy{Dest: pointer, Src: register, Len: c.constI32(32)})
			return 32
		}
		width := uint32(loadWidth(ty))
		c.emit(ir.StoreMem{Src: register, Ty: ir.I64, Addr: out, Offset: offset, Width: int(width)})
		return width
	}

	pointer := c.function.NewReg(ir.I32)
	base := c.constI32(int64(offset))
	c.emit(ir.Bin{Dest: pointer, Ty: ir.I32, Op: ir.OpAdd, L: out, R: base})
	if wide(ty) {
		c.emit(ir.CallFn{Name: "__be_flip32", Args: []int{pointer, register}})
		return 32
	}
	c.emit(ir.CallFn{Name: "__be_store", Args: []int{pointer, register, c.constI32(32)}})
	return 32
}
