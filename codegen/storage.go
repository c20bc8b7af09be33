package codegen

import (
	"solang/cfg"
	"solang/ir"
	"solang/sema"
	"solang/target"
)

// slotBuffer materializes a storage slot operand as a 32-byte
// little-endian key buffer.
func (c *fnContext) slotBuffer(base cfg.Value) int {
	register := c.value(base)
	if c.function.Regs[register] == ir.Ptr {
		return register
	}
	return c.widen(register)
}

// load lowers reads from both data spaces. Storage reads call the
// host get_storage into a 32-byte scratch buffer and pick the packed
// field out of it; memory reads index an aggregate.
func (c *fnContext) load(instr cfg.Load) {
	dest := c.regs[instr.Dest]
	if instr.Space == cfg.SpaceStorage {
		key := c.slotBuffer(instr.Base)
		buffer := c.scratch(32)
		name := c.g.hostImport(target.GetStorage)
		size := c.constI32(32)
		c.emit(ir.CallImport{Name: name, Args: []int{key, buffer, size}})
		if wide(instr.Ty) {
			c.emit(ir.Copy{Dest: dest, Src: buffer})
			return
		}
		width := loadWidth(instr.Ty)
		c.emit(ir.LoadMem{Dest: dest, Ty: ir.I64, Addr: buffer, Offset: uint32(instr.Offset), Width: width})
		c.maskTo(dest, instr.Ty)
		return
	}

	// memory: elements are 8-byte cells (scalars) or pointers
	base := c.value(instr.Base)
	index := c.value(instr.Index)
	address := c.elementAddress(base, index)
	if lowerTy(instr.Ty) == ir.Ptr {
		pointer := c.function.NewReg(ir.Ptr)
		c.emit(ir.LoadMem{Dest: pointer, Ty: ir.I32, Addr: address, Offset: 0, Width: 4})
		c.emit(ir.Copy{Dest: dest, Src: pointer})
		return
	}
	c.emit(ir.LoadMem{Dest: dest, Ty: ir.I64, Addr: address, Offset: 0, Width: 8})
	c.maskTo(dest, instr.Ty)
}

// store mirrors load.
func (c *fnContext) store(instr cfg.Store) {
	value := c.value(instr.Value)
	if instr.Space == cfg.SpaceStorage {
		key := c.slotBuffer(instr.Base)
		var buffer int
		if wide(instr.Ty) && c.function.Regs[value] == ir.Ptr {
			buffer = value
		} else {
			// read-modify-write keeps the other packed fields intact
			buffer = c.scratch(32)
			nameGet := c.g.hostImport(target.GetStorage)
			size := c.constI32(32)
			c.emit(ir.CallImport{Name: nameGet, Args: []int{key, buffer, size}})
			c.emit(ir.StoreMem{Src: value, Ty: ir.I64, Addr: buffer, Offset: uint32(instr.Offset), Width: loadWidth(instr.Ty)})
		}
		name := c.g.hostImport(target.SetStorage)
		size := c.constI32(32)
		c.emit(ir.CallImport{Name: name, Args: []int{key, buffer, size}})
		return
	}

	base := c.value(instr.Base)
	index := c.value(instr.Index)
	address := c.elementAddress(base, index)
	if c.function.Regs[value] == ir.Ptr {
		c.emit(ir.StoreMem{Src: value, Ty: ir.I32, Addr: address, Offset: 0, Width: 4})
		return
	}
	c.emit(ir.StoreMem{Src: value, Ty: ir.I64, Addr: address, Offset: 0, Width: 8})
}

// elementAddress computes base + 8 + index*8: memory aggregates are a
// length header followed by 8-byte cells.
func (c *fnContext) elementAddress(base, index int) int {
	eight := c.constI64(8)
	scaled := c.function.NewReg(ir.I64)
	c.emit(ir.Bin{Dest: scaled, Ty: ir.I64, Op: ir.OpMul, L: index, R: eight})
	address := c.function.NewReg(ir.I32)
	c.emit(ir.Bin{Dest: address, Ty: ir.I32, Op: ir.OpAdd, L: base, R: scaled})
	header := c.constI32(8)
	final := c.function.NewReg(ir.I32)
	c.emit(ir.Bin{Dest: final, Ty: ir.I32, Op: ir.OpAdd, L: address, R: header})
	return final
}

// mapSlot derives a mapping entry's slot: hash over the target's
// preimage ordering of (declared slot, encoded key), salted by the
// per-contract prefix when the target has one.
func (c *fnContext) mapSlot(instr cfg.MapSlot) {
	slot := c.slotBuffer(instr.Base)
	keyPointer, keyLength := c.asBlob(instr.Key)
	out := c.scratch(32)
	c.emit(ir.CallFn{
		Dests: nil,
		Name:  "__map_slot",
		Args:  []int{out, slot, keyPointer, keyLength},
	})
	c.emit(ir.Copy{Dest: c.regs[instr.Dest], Src: out})
}

// arraySlot derives the data slot of a dynamic storage array: the
// hash of the header slot, plus the index.
func (c *fnContext) arraySlot(instr cfg.ArraySlot) {
	slot := c.slotBuffer(instr.Base)
	index := c.asWide(instr.Index)
	out := c.scratch(32)
	c.emit(ir.CallFn{Dests: nil, Name: "__array_slot", Args: []int{out, slot, index}})
	c.emit(ir.Copy{Dest: c.regs[instr.Dest], Src: out})
}

// asBlob renders an operand as (pointer, byte length) for hashing,
// printing and event payloads. Scalars are spilled to a fresh buffer.
func (c *fnContext) asBlob(operand cfg.Value) (int, int) {
	register := c.value(operand)
	ty := operandType(operand, c.graph)
	if c.function.Regs[register] == ir.Ptr {
		switch sema.Deref(typeOrDefault(ty)).(type) {
		case sema.String, sema.DynamicBytes:
			// length-prefixed blob
			length := c.function.NewReg(ir.I32)
			c.emit(ir.LoadMem{Dest: length, Ty: ir.I32, Addr: register, Offset: 0, Width: 4})
			payload := c.function.NewReg(ir.I32)
			four := c.constI32(4)
			c.emit(ir.Bin{Dest: payload, Ty: ir.I32, Op: ir.OpAdd, L: register, R: four})
			return payload, length
		}
		return register, c.constI32(32)
	}
	buffer := c.widen(register)
	return buffer, c.constI32(32)
}

func typeOrDefault(ty sema.Type) sema.Type {
	if ty == nil {
		return sema.Uint{Width: 256}
	}
	return ty
}

func loadWidth(ty sema.Type) int {
	bits := bitsOf(ty)
	switch {
	case bits <= 8:
		return 1
	case bits <= 16:
		return 2
	case bits <= 32:
		return 4
	}
	return 8
}

func (c *fnContext) keccak(instr cfg.Keccak) {
	pointer, length := c.asBlob(instr.Arg)
	out := c.scratch(32)
	name := c.g.hostImport(target.HashKeccak)
	c.emit(ir.CallImport{Name: name, Args: []int{pointer, length, out}})
	c.emit(ir.Copy{Dest: c.regs[instr.Dest], Src: out})
}

func (c *fnContext) allocArray(instr cfg.AllocArray) {
	count := int64(len(instr.Elements))
	buffer := c.scratch(8 + count*8)
	lengthReg := c.constI64(count)
	c.emit(ir.StoreMem{Src: lengthReg, Ty: ir.I64, Addr: buffer, Offset: 0, Width: 8})
	for i, element := range instr.Elements {
		value := c.value(element)
		width := 8
		ty := ir.I64
		if c.function.Regs[value] == ir.Ptr {
			width = 4
			ty = ir.I32
		}
		c.emit(ir.StoreMem{Src: value, Ty: ty, Addr: buffer, Offset: uint32(8 + i*8), Width: width})
	}
	c.emit(ir.Copy{Dest: c.regs[instr.Dest], Src: buffer})
}

func (c *fnContext) builtin(instr cfg.Builtin) {
	dest := c.regs[instr.Dest]
	switch instr.Kind {
	case sema.BuiltinMsgSender:
		buffer := c.scratch(int64(c.g.tgt.AddressLength()))
		length := c.constI32(int64(c.g.tgt.AddressLength()))
		name := c.g.hostImport(target.Caller)
		c.emit(ir.CallImport{Name: name, Args: []int{buffer, length}})
		c.emit(ir.Copy{Dest: dest, Src: buffer})
	case sema.BuiltinMsgValue:
		buffer := c.scratch(32)
		length := c.constI32(32)
		name := c.g.hostImport(target.ValueTransferred)
		c.emit(ir.CallImport{Name: name, Args: []int{buffer, length}})
		value := c.function.NewReg(ir.I64)
		c.emit(ir.LoadMem{Dest: value, Ty: ir.I64, Addr: buffer, Offset: 0, Width: 8})
		c.emit(ir.Copy{Dest: dest, Src: value})
	case sema.BuiltinBlockNumber:
		name := c.g.hostImport(target.BlockNumber)
		c.emit(ir.CallImport{Dests: []int{dest}, Name: name})
	case sema.BuiltinTimestamp:
		name := c.g.hostImport(target.Timestamp)
		c.emit(ir.CallImport{Dests: []int{dest}, Name: name})
	case sema.BuiltinArrayLength:
		array := c.value(instr.Args[0])
		c.emit(ir.LoadMem{Dest: dest, Ty: ir.I64, Addr: array, Offset: 0, Width: 8})
	}
}

// push and pop on storage arrays update the in-slot length and the
// derived data slot.
func (c *fnContext) push(instr cfg.Push) {
	if instr.Space == cfg.SpaceStorage {
		key := c.slotBuffer(instr.Base)
		var valuePointer int
		if instr.Value != nil {
			valuePointer = c.asWide(instr.Value)
		} else {
			valuePointer = c.scratch(32)
		}
		c.emit(ir.CallFn{Dests: nil, Name: "__storage_push", Args: []int{key, valuePointer}})
		return
	}
	// memory push allocates a fresh, longer aggregate
	base := c.value(instr.Base)
	var value int
	if instr.Value != nil {
		value = c.value(instr.Value)
	} else {
		value = c.constI64(0)
	}
	out := c.function.NewReg(ir.Ptr)
	c.emit(ir.CallFn{Dests: []int{out}, Name: "__memory_push", Args: []int{base, value}})
}

func (c *fnContext) pop(instr cfg.Pop) {
	dest := c.regs[instr.Dest]
	if instr.Space == cfg.SpaceStorage {
		key := c.slotBuffer(instr.Base)
		out := c.scratch(32)
		c.emit(ir.CallFn{Dests: nil, Name: "__storage_pop", Args: []int{key, out}})
		if c.function.Regs[dest] == ir.Ptr {
			c.emit(ir.Copy{Dest: dest, Src: out})
			return
		}
		value := c.function.NewReg(ir.I64)
		c.emit(ir.LoadMem{Dest: value, Ty: ir.I64, Addr: out, Offset: 0, Width: 8})
		c.emit(ir.Copy{Dest: dest, Src: value})
		return
	}
	base := c.value(instr.Base)
	c.emit(ir.CallFn{Dests: []int{dest}, Name: "__memory_pop", Args: []int{base}})
}

func (c *fnContext) emitEvent(instr cfg.Emit) {
	event := c.g.ns.Events[instr.Event]
	// topic: the event signature hash; data: scalar arguments packed
	// by __abi_encode_scalars, the same layout on both targets
	topic := c.blobRaw(c.g.tgt.Hash([]byte(event.Signature)))
	var encoded int
	args := make([]int, len(instr.Args))
	for i, argument := range instr.Args {
		args[i] = c.value(argument)
	}
	encoded = c.function.NewReg(ir.Ptr)
	c.emit(ir.CallFn{Dests: []int{encoded}, Name: "__abi_encode_scalars", Args: args})
	length := c.function.NewReg(ir.I32)
	c.emit(ir.LoadMem{Dest: length, Ty: ir.I32, Addr: encoded, Offset: 0, Width: 4})
	payload := c.function.NewReg(ir.I32)
	four := c.constI32(4)
	c.emit(ir.Bin{Dest: payload, Ty: ir.I32, Op: ir.OpAdd, L: encoded, R: four})
	name := c.g.hostImport(target.EmitEvent)
	c.emit(ir.CallImport{Name: name, Args: []int{topic, c.constI32(32), payload, length}})
}

// blobRaw places a raw constant in static memory (no length prefix).
func (c *fnContext) blobRaw(blob []byte) int {
	offset := c.g.addData(blob)
	dest := c.function.NewReg(ir.Ptr)
	c.emit(ir.Const{Dest: dest, Ty: ir.I32, Value: int64(offset)})
	return dest
}

func (c *fnContext) externalCall(instr cfg.ExternalCall) {
	function := c.g.ns.Functions[instr.Function]
	// buffer: 4-byte selector then codec-encoded arguments
	args := make([]int, 0, len(instr.Args)+1)
	selector := c.blobRaw(function.Selector[:])
	args = append(args, selector)
	for _, argument := range instr.Args {
		args = append(args, c.value(argument))
	}
	address := c.value(instr.Address)
	out := c.scratch(64)
	callArgs := append([]int{out, address}, args...)
	c.emit(ir.CallFn{Dests: nil, Name: "__external_call", Args: callArgs})
	for i, dest := range instr.Dests {
		value := c.function.NewReg(ir.I64)
		c.emit(ir.LoadMem{Dest: value, Ty: ir.I64, Addr: out, Offset: uint32(i * 8), Width: 8})
		c.emit(ir.Copy{Dest: c.regs[dest], Src: value})
	}
}

func (c *fnContext) assertFailure(instr cfg.AssertFailure) {
	if instr.Reason != nil {
		pointer := c.value(instr.Reason)
		c.abort(instr.Kind, pointer)
		return
	}
	c.abort(instr.Kind, -1)
}
