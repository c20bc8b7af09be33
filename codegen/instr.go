package codegen

import (
	"solang/cfg"
	"solang/ir"
	"solang/sema"
	"solang/target"
)

// instr lowers one CFG instruction.
func (c *fnContext) instr(instruction cfg.Instruction) {
	switch instr := instruction.(type) {
	case cfg.Set:
		c.emit(ir.Copy{Dest: c.regs[instr.Dest], Src: c.value(instr.Value)})
	case cfg.BinOp:
		c.binop(instr)
	case cfg.UnOp:
		c.unop(instr)
	case cfg.Cast:
		c.cast(instr)
	case cfg.Load:
		c.load(instr)
	case cfg.Store:
		c.store(instr)
	case cfg.MapSlot:
		c.mapSlot(instr)
	case cfg.ArraySlot:
		c.arraySlot(instr)
	case cfg.Call:
		function := c.g.ns.Functions[instr.Function]
		args := make([]int, len(instr.Args))
		for i, argument := range instr.Args {
			args[i] = c.value(argument)
		}
		dests := make([]int, len(instr.Dests))
		for i, dest := range instr.Dests {
			dests[i] = c.regs[dest]
		}
		c.emit(ir.CallFn{Dests: dests, Name: funcName(c.g.contract, function), Args: args})
	case cfg.ExternalCall:
		c.externalCall(instr)
	case cfg.Emit:
		c.emitEvent(instr)
	case cfg.AbiEncode:
		args := make([]int, len(instr.Args))
		for i, argument := range instr.Args {
			args[i] = c.value(argument)
		}
		c.emit(ir.CallFn{Dests: []int{c.regs[instr.Dest]}, Name: "__abi_encode_scalars", Args: args})
	case cfg.Keccak:
		c.keccak(instr)
	case cfg.AllocArray:
		c.allocArray(instr)
	case cfg.AllocDynamic:
		length := c.value(instr.Length)
		size := c.function.NewReg(ir.I32)
		eight := c.constI64(8)
		scaled := c.function.NewReg(ir.I64)
		c.emit(ir.Bin{Dest: scaled, Ty: ir.I64, Op: ir.OpMul, L: length, R: eight})
		c.emit(ir.Copy{Dest: size, Src: scaled})
		header := c.constI32(8)
		total := c.function.NewReg(ir.I32)
		c.emit(ir.Bin{Dest: total, Ty: ir.I32, Op: ir.OpAdd, L: size, R: header})
		buffer := c.function.NewReg(ir.Ptr)
		c.emit(ir.Alloc{Dest: buffer, Size: total})
		c.emit(ir.StoreMem{Src: length, Ty: ir.I64, Addr: buffer, Offset: 0, Width: 8})
		c.emit(ir.Copy{Dest: c.regs[instr.Dest], Src: buffer})
	case cfg.Builtin:
		c.builtin(instr)
	case cfg.Push:
		c.push(instr)
	case cfg.Pop:
		c.pop(instr)
	case cfg.Print:
		pointer, length := c.asBlob(instr.Value)
		name := c.g.hostImport(target.Print)
		c.emit(ir.CallImport{Name: name, Args: []int{pointer, length}})
	case cfg.AssertFailure:
		c.assertFailure(instr)
	}
}

var binOps = map[cfg.BinKind]struct {
	unsigned ir.Op
	signed   ir.Op
}{
	cfg.BinAdd: {ir.OpAdd, ir.OpAdd},
	cfg.BinSub: {ir.OpSub, ir.OpSub},
	cfg.BinMul: {ir.OpMul, ir.OpMul},
	cfg.BinDiv: {ir.OpDivU, ir.OpDivS},
	cfg.BinMod: {ir.OpRemU, ir.OpRemS},
	cfg.BinAnd: {ir.OpAnd, ir.OpAnd},
	cfg.BinOr:  {ir.OpOr, ir.OpOr},
	cfg.BinXor: {ir.OpXor, ir.OpXor},
	cfg.BinShl: {ir.OpShl, ir.OpShl},
	cfg.BinShr: {ir.OpShrU, ir.OpShrS},
	cfg.BinEq:  {ir.OpEq, ir.OpEq},
	cfg.BinNe:  {ir.OpNe, ir.OpNe},
	cfg.BinLt:  {ir.OpLtU, ir.OpLtS},
	cfg.BinLe:  {ir.OpLeU, ir.OpLeS},
	cfg.BinGt:  {ir.OpGtU, ir.OpGtS},
	cfg.BinGe:  {ir.OpGeU, ir.OpGeS},
}

// wideBinFns name the multi-limb helpers; multiplication is the
// generated schoolbook routine, divide and modulo come from the
// standard-library module linked into the final artifact.
var wideBinFns = map[cfg.BinKind]string{
	cfg.BinAdd: "__add256",
	cfg.BinSub: "__sub256",
	cfg.BinMul: "__mul256",
	cfg.BinDiv: "__udivmod256_quot",
	cfg.BinMod: "__udivmod256_rem",
	cfg.BinPow: "__pow256",
	cfg.BinAnd: "__and256",
	cfg.BinOr:  "__or256",
	cfg.BinXor: "__xor256",
	cfg.BinShl: "__shl256",
	cfg.BinShr: "__shr256",
}

func (c *fnContext) binop(instr cfg.BinOp) {
	ty := instr.Ty
	if wide(ty) {
		c.wideBinop(instr)
		return
	}
	signed := isSigned(ty)
	ops := binOps[instr.Op]
	op := ops.unsigned
	if signed {
		op = ops.signed
	}
	if instr.Op == cfg.BinPow {
		c.emit(ir.CallFn{
			Dests: []int{c.regs[instr.Dest]},
			Name:  "__pow64",
			Args:  []int{c.value(instr.Left), c.value(instr.Right)},
		})
		return
	}

	left := c.value(instr.Left)
	right := c.value(instr.Right)

	if instr.Op == cfg.BinDiv || instr.Op == cfg.BinMod {
		// trap on a zero divisor with the dedicated reason code
		isZero := c.function.NewReg(ir.I32)
		c.emit(ir.Un{Dest: isZero, Ty: ir.I64, Op: ir.OpEqz, Value: right})
		c.trapIf(isZero, sema.RevertDivByZero)
	}

	switch instr.Op {
	case cfg.BinEq, cfg.BinNe, cfg.BinLt, cfg.BinLe, cfg.BinGt, cfg.BinGe:
		dest := c.regs[instr.Dest]
		c.emit(ir.Bin{Dest: dest, Ty: ir.I64, Op: op, L: left, R: right})
		return
	}

	dest := c.regs[instr.Dest]
	c.emit(ir.Bin{Dest: dest, Ty: ir.I64, Op: op, L: left, R: right})
	c.maskTo(dest, ty)

	if instr.Checked {
		c.overflowCheck(instr, dest, left, right)
	}
}

// maskTo wraps a register to its declared width when the width is
// below the machine word.
func (c *fnContext) maskTo(register int, ty sema.Type) {
	width := bitsOf(ty)
	if width >= 64 || width <= 0 {
		return
	}
	mask := c.constI64(int64(1)<<uint(width) - 1)
	c.emit(ir.Bin{Dest: register, Ty: ir.I64, Op: ir.OpAnd, L: register, R: mask})
}

// overflowCheck traps when a checked narrow operation wrapped.
func (c *fnContext) overflowCheck(instr cfg.BinOp, result, left, right int) {
	switch instr.Op {
	case cfg.BinAdd:
		// unsigned wrap: result < left
		bad := c.function.NewReg(ir.I32)
		c.emit(ir.Bin{Dest: bad, Ty: ir.I64, Op: ir.OpLtU, L: result, R: left})
		c.trapIf(bad, sema.RevertOverflow)
	case cfg.BinSub:
		bad := c.function.NewReg(ir.I32)
		c.emit(ir.Bin{Dest: bad, Ty: ir.I64, Op: ir.OpGtU, L: right, R: left})
		c.trapIf(bad, sema.RevertOverflow)
	case cfg.BinMul:
		// re-divide and compare; the helper keeps the common path
		// branch-free
		c.emit(ir.CallFn{Dests: nil, Name: "__mulcheck64", Args: []int{left, right, result}})
	}
}

// trapIf branches to a failure block when cond is nonzero.
func (c *fnContext) trapIf(cond int, kind sema.RevertKind) {
	fail := c.function.NewBlock()
	cont := c.function.NewBlock()
	c.block.Term = ir.BrIf{Cond: cond, True: fail.ID, False: cont.ID}
	c.block = fail
	c.abort(kind, -1)
	c.block = cont
}

// abort emits the target's failure primitive with a reason code.
func (c *fnContext) abort(kind sema.RevertKind, reason int) {
	name := c.g.hostImport(target.Revert)
	var pointer, length int
	if reason >= 0 {
		pointer = reason
		length = c.function.NewReg(ir.I32)
		c.emit(ir.LoadMem{Dest: length, Ty: ir.I32, Addr: pointer, Offset: 0, Width: 4})
		payload := c.function.NewReg(ir.I32)
		four := c.constI32(4)
		c.emit(ir.Bin{Dest: payload, Ty: ir.I32, Op: ir.OpAdd, L: pointer, R: four})
		pointer = payload
	} else {
		code := c.constI32(int64(kind))
		buffer := c.scratch(4)
		c.emit(ir.StoreMem{Src: code, Ty: ir.I32, Addr: buffer, Offset: 0, Width: 4})
		pointer = buffer
		length = c.constI32(4)
	}
	c.emit(ir.CallImport{Name: name, Args: []int{pointer, length}})
	c.block.Term = ir.Unreachable{}
	dead := c.function.NewBlock()
	c.block = dead
}

func (c *fnContext) wideBinop(instr cfg.BinOp) {
	left := c.asWide(instr.Left)
	right := c.asWide(instr.Right)
	out := c.scratch(32)
	name := wideBinFns[instr.Op]
	if isSigned(instr.Ty) {
		switch instr.Op {
		case cfg.BinDiv:
			name = "__sdivmod256_quot"
		case cfg.BinMod:
			name = "__sdivmod256_rem"
		case cfg.BinShr:
			name = "__sar256"
		}
	}
	switch instr.Op {
	case cfg.BinEq, cfg.BinNe, cfg.BinLt, cfg.BinLe, cfg.BinGt, cfg.BinGe:
		compared := c.function.NewReg(ir.I64)
		cmp := "__cmp256"
		if isSigned(instr.Ty) {
			cmp = "__scmp256"
		}
		c.emit(ir.CallFn{Dests: []int{compared}, Name: cmp, Args: []int{left, right}})
		zero := c.constI64(0)
		ops := binOps[instr.Op]
		c.emit(ir.Bin{Dest: c.regs[instr.Dest], Ty: ir.I64, Op: ops.signed, L: compared, R: zero})
		return
	}
	c.emit(ir.CallFn{Dests: nil, Name: name, Args: []int{out, left, right}})
	if instr.Checked && (instr.Op == cfg.BinAdd || instr.Op == cfg.BinSub) {
		c.emit(ir.CallFn{Dests: nil, Name: "__overflowcheck256", Args: []int{out, left, right, c.constI32(int64(instr.Op))}})
	}
	c.emit(ir.Copy{Dest: c.regs[instr.Dest], Src: out})
}

// asWide materializes any integer operand as a 32-byte buffer.
func (c *fnContext) asWide(operand cfg.Value) int {
	register := c.value(operand)
	ty := operandType(operand, c.graph)
	if ty != nil && !wide(ty) {
		return c.widen(register)
	}
	if c.function.Regs[register] != ir.Ptr {
		return c.widen(register)
	}
	return register
}

func operandType(operand cfg.Value, graph *cfg.CFG) sema.Type {
	switch v := operand.(type) {
	case cfg.Reg:
		return graph.RegTypes[v.No]
	case cfg.ConstInt:
		return v.Ty
	case cfg.ConstBytes:
		return v.Ty
	}
	return nil
}

func (c *fnContext) unop(instr cfg.UnOp) {
	value := c.value(instr.Value)
	dest := c.regs[instr.Dest]
	switch instr.Op {
	case cfg.UnNot:
		c.emit(ir.Un{Dest: dest, Ty: ir.I32, Op: ir.OpEqz, Value: value})
	case cfg.UnNeg:
		if wide(instr.Ty) {
			out := c.scratch(32)
			c.emit(ir.CallFn{Dests: nil, Name: "__neg256", Args: []int{out, value}})
			c.emit(ir.Copy{Dest: dest, Src: out})
			return
		}
		zero := c.constI64(0)
		c.emit(ir.Bin{Dest: dest, Ty: ir.I64, Op: ir.OpSub, L: zero, R: value})
		c.maskTo(dest, instr.Ty)
	case cfg.UnCompl:
		if wide(instr.Ty) {
			out := c.scratch(32)
			c.emit(ir.CallFn{Dests: nil, Name: "__not256", Args: []int{out, value}})
			c.emit(ir.Copy{Dest: dest, Src: out})
			return
		}
		mask := c.constI64(-1)
		c.emit(ir.Bin{Dest: dest, Ty: ir.I64, Op: ir.OpXor, L: value, R: mask})
		c.maskTo(dest, instr.Ty)
	}
}

// cast lowers the explicit-cast bit-pattern rules. Integers extend
// with zeros and truncate on the high-order side; fixed bytes extend
// with zeros and truncate on the low-order side, which in the
// little-endian limb representation is the high memory end.
func (c *fnContext) cast(instr cfg.Cast) {
	value := c.value(instr.Value)
	dest := c.regs[instr.Dest]
	fromWide, toWide := wide(instr.From), wide(instr.To)
	fromBytes := isBytesTy(instr.From)
	toBytes := isBytesTy(instr.To)

	switch {
	case fromBytes && toBytes:
		// bytesM -> bytesN keeps the leading bytes
		out := c.scratch(32)
		c.emit(ir.CallFn{Dests: nil, Name: "__bytes_resize", Args: []int{out, value, c.constI32(int64(bytesLen(instr.From))), c.constI32(int64(bytesLen(instr.To)))}})
		c.emit(ir.Copy{Dest: dest, Src: out})
	case !fromWide && !toWide:
		c.emit(ir.Copy{Dest: dest, Src: value})
		c.maskTo(dest, instr.To)
	case fromWide && !toWide:
		narrowed := c.narrowed(value)
		c.emit(ir.Copy{Dest: dest, Src: narrowed})
		c.maskTo(dest, instr.To)
	case !fromWide && toWide:
		c.emit(ir.Copy{Dest: dest, Src: c.widen(value)})
	default:
		c.emit(ir.Copy{Dest: dest, Src: value})
	}
}

func isBytesTy(ty sema.Type) bool {
	_, ok := sema.Deref(ty).(sema.Bytes)
	return ok
}

func bytesLen(ty sema.Type) int {
	if t, ok := sema.Deref(ty).(sema.Bytes); ok {
		return t.N
	}
	return 0
}

func isSigned(ty sema.Type) bool {
	_, ok := sema.Deref(ty).(sema.Int)
	return ok
}

func bitsOf(ty sema.Type) int {
	switch t := sema.Deref(ty).(type) {
	case sema.Int:
		return t.Width
	case sema.Uint:
		return t.Width
	case sema.Bytes:
		return t.N * 8
	case sema.Bool:
		return 1
	case sema.Enum:
		return 8
	case sema.Address:
		return 160
	}
	return 256
}
