package codegen

import (
	"solang/ir"
	"solang/target"
)

// emitRuntime generates the per-module runtime support functions:
// multi-limb arithmetic, storage key derivation and the small memory
// helpers. Division and modulo at 256 bits are not generated here;
// the standard-library module compiled separately provides
// __udivmod256 and __sdivmod256 and the linker resolves them.
func (g *Generator) emitRuntime() {
	g.module.Imports = append(g.module.Imports,
		ir.Import{Module: "env", Name: "__udivmod256", Params: []ir.Ty{ir.I32, ir.I32, ir.I32, ir.I32}},
		ir.Import{Module: "env", Name: "__sdivmod256", Params: []ir.Ty{ir.I32, ir.I32, ir.I32, ir.I32}},
	)
	g.emitAdd256()
	g.emitSub256()
	g.emitMul256()
	g.emitCmp256()
	g.emitBitwise256()
	g.emitShift256()
	g.emitDivModWrappers()
	g.emitPow()
	g.emitMulCheck64()
	g.emitOverflowCheck256()
	g.emitMapSlot()
	g.emitArraySlot()
	g.emitStoragePushPop()
	g.emitMemoryPushPop()
	g.emitEncodeScalars()
	g.emitBytesResize()
	g.emitByteOrder()
	g.emitExternalCall()
}

// fb is a small builder over one runtime function.
type fb struct {
	f     *ir.Func
	block *ir.Block
}

func (g *Generator) begin(name string, params []ir.Ty, results []ir.Ty) *fb {
	function := &ir.Func{Name: name, Params: params, Results: results}
	for _, param := range params {
		function.Regs = append(function.Regs, param)
	}
	builder := &fb{f: function}
	builder.block = function.NewBlock()
	g.module.Funcs = append(g.module.Funcs, function)
	return builder
}

func (b *fb) emit(instruction ir.Instr) {
	b.block.Instrs = append(b.block.Instrs, instruction)
}

func (b *fb) constI(ty ir.Ty, value int64) int {
	dest := b.f.NewReg(ty)
	b.emit(ir.Const{Dest: dest, Ty: ty, Value: value})
	return dest
}

func (b *fb) bin(ty ir.Ty, op ir.Op, left, right int) int {
	dest := b.f.NewReg(ty)
	b.emit(ir.Bin{Dest: dest, Ty: ty, Op: op, L: left, R: right})
	return dest
}

func (b *fb) binTo(dest int, ty ir.Ty, op ir.Op, left, right int) {
	b.emit(ir.Bin{Dest: dest, Ty: ty, Op: op, L: left, R: right})
}

func (b *fb) load(ty ir.Ty, addr int, offset uint32, width int) int {
	dest := b.f.NewReg(ty)
	b.emit(ir.LoadMem{Dest: dest, Ty: ty, Addr: addr, Offset: offset, Width: width})
	return dest
}

func (b *fb) store(addr int, offset uint32, width int, src int, ty ir.Ty) {
	b.emit(ir.StoreMem{Src: src, Ty: ty, Addr: addr, Offset: offset, Width: width})
}

func (b *fb) ret(values ...int) {
	b.block.Term = ir.Ret{Values: values}
}

// emitAdd256 adds two 4-limb numbers with explicit carry
// propagation: out = a + b (mod 2^256).
func (g *Generator) emitAdd256() {
	b := g.begin("__add256", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
	out, a, bb := 0, 1, 2
	carry := b.constI(ir.I64, 0)
	for limb := 0; limb < 4; limb++ {
		offset := uint32(limb * 8)
		left := b.load(ir.I64, a, offset, 8)
		right := b.load(ir.I64, bb, offset, 8)
		sum := b.bin(ir.I64, ir.OpAdd, left, right)
		withCarry := b.bin(ir.I64, ir.OpAdd, sum, carry)
		b.store(out, offset, 8, withCarry, ir.I64)
		// carry out: sum < left, or withCarry < sum
		carryA := b.bin(ir.I64, ir.OpLtU, sum, left)
		carryB := b.bin(ir.I64, ir.OpLtU, withCarry, sum)
		carry = b.bin(ir.I64, ir.OpOr, carryA, carryB)
	}
	b.ret()
}

// emitSub256 subtracts with borrow propagation.
func (g *Generator) emitSub256() {
	b := g.begin("__sub256", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
	out, a, bb := 0, 1, 2
	borrow := b.constI(ir.I64, 0)
	for limb := 0; limb < 4; limb++ {
		offset := uint32(limb * 8)
		left := b.load(ir.I64, a, offset, 8)
		right := b.load(ir.I64, bb, offset, 8)
		difference := b.bin(ir.I64, ir.OpSub, left, right)
		withBorrow := b.bin(ir.I64, ir.OpSub, difference, borrow)
		b.store(out, offset, 8, withBorrow, ir.I64)
		borrowA := b.bin(ir.I64, ir.OpLtU, left, right)
		borrowB := b.bin(ir.I64, ir.OpLtU, difference, borrow)
		borrow = b.bin(ir.I64, ir.OpOr, borrowA, borrowB)
	}
	b.ret()
}

// emitMul256 is the schoolbook multiplication: the operands are
// decomposed into eight 32-bit limbs, partial products accumulate
// column by column with explicit carry propagation, and only the low
// 8 columns are computed and written out. No overflow checks are
// inserted.
func (g *Generator) emitMul256() {
	b := g.begin("__mul256", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
	out, a, bb := 0, 1, 2

	mask32 := b.constI(ir.I64, 0xffffffff)
	thirtyTwo := b.constI(ir.I64, 32)

	// load the 32-bit limbs of both operands
	var limbsA, limbsB [8]int
	for i := 0; i < 8; i++ {
		word := b.load(ir.I64, a, uint32(i/2*8), 8)
		if i%2 == 1 {
			word = b.bin(ir.I64, ir.OpShrU, word, thirtyTwo)
		}
		limbsA[i] = b.bin(ir.I64, ir.OpAnd, word, mask32)
		word = b.load(ir.I64, bb, uint32(i/2*8), 8)
		if i%2 == 1 {
			word = b.bin(ir.I64, ir.OpShrU, word, thirtyTwo)
		}
		limbsB[i] = b.bin(ir.I64, ir.OpAnd, word, mask32)
	}

	// accumulate column by column; only the low 8 columns are kept.
	// Each product's low half stays in its column and its high half is
	// carried into the next, so no running sum exceeds 64 bits.
	carry := b.constI(ir.I64, 0)
	var columns [8]int
	for column := 0; column < 8; column++ {
		sum := carry
		high := b.constI(ir.I64, 0)
		for i := 0; i <= column; i++ {
			j := column - i
			product := b.bin(ir.I64, ir.OpMul, limbsA[i], limbsB[j])
			sum = b.bin(ir.I64, ir.OpAdd, sum, b.bin(ir.I64, ir.OpAnd, product, mask32))
			high = b.bin(ir.I64, ir.OpAdd, high, b.bin(ir.I64, ir.OpShrU, product, thirtyTwo))
		}
		columns[column] = b.bin(ir.I64, ir.OpAnd, sum, mask32)
		carry = b.bin(ir.I64, ir.OpAdd, b.bin(ir.I64, ir.OpShrU, sum, thirtyTwo), high)
	}

	// recombine limb pairs into 64-bit words
	for word := 0; word < 4; word++ {
		high := b.bin(ir.I64, ir.OpShl, columns[word*2+1], thirtyTwo)
		combined := b.bin(ir.I64, ir.OpOr, columns[word*2], high)
		b.store(out, uint32(word*8), 8, combined, ir.I64)
	}
	b.ret()
}

// emitCmp256 returns -1, 0 or 1 comparing two unsigned 4-limb
// numbers from the most significant limb down; __scmp256 adjusts for
// the sign bit first.
func (g *Generator) emitCmp256() {
	for _, signed := range []bool{false, true} {
		name := "__cmp256"
		if signed {
			name = "__scmp256"
		}
		b := g.begin(name, []ir.Ty{ir.Ptr, ir.Ptr}, []ir.Ty{ir.I64})
		a, bb := 0, 1
		result := b.f.NewReg(ir.I64)

		done := b.f.NewBlock()

		if signed {
			// differing signs decide immediately
			highA := b.load(ir.I64, a, 24, 8)
			highB := b.load(ir.I64, bb, 24, 8)
			sixtyThree := b.constI(ir.I64, 63)
			signA := b.bin(ir.I64, ir.OpShrU, highA, sixtyThree)
			signB := b.bin(ir.I64, ir.OpShrU, highB, sixtyThree)
			differ := b.bin(ir.I64, ir.OpNe, signA, signB)
			signCase := b.f.NewBlock()
			magnitude := b.f.NewBlock()
			b.block.Term = ir.BrIf{Cond: differ, True: signCase.ID, False: magnitude.ID}
			b.block = signCase
			// a negative, b positive -> -1; else 1
			one := b.constI(ir.I64, 1)
			negOne := b.constI(ir.I64, -1)
			isNegative := b.bin(ir.I64, ir.OpNe, signA, b.constI(ir.I64, 0))
			positive := b.f.NewBlock()
			negative := b.f.NewBlock()
			b.block.Term = ir.BrIf{Cond: isNegative, True: negative.ID, False: positive.ID}
			b.block = negative
			b.emit(ir.Copy{Dest: result, Src: negOne})
			b.block.Term = ir.Br{Block: done.ID}
			b.block = positive
			b.emit(ir.Copy{Dest: result, Src: one})
			b.block.Term = ir.Br{Block: done.ID}
			b.block = magnitude
		}

		// most significant limb first
		current := b.block
		for limb := 3; limb >= 0; limb-- {
			offset := uint32(limb * 8)
			b.block = current
			left := b.load(ir.I64, a, offset, 8)
			right := b.load(ir.I64, bb, offset, 8)
			equal := b.bin(ir.I64, ir.OpEq, left, right)
			decide := b.f.NewBlock()
			next := b.f.NewBlock()
			b.block.Term = ir.BrIf{Cond: equal, True: next.ID, False: decide.ID}
			b.block = decide
			less := b.bin(ir.I64, ir.OpLtU, left, right)
			lessBlock := b.f.NewBlock()
			greaterBlock := b.f.NewBlock()
			b.block.Term = ir.BrIf{Cond: less, True: lessBlock.ID, False: greaterBlock.ID}
			b.block = lessBlock
			b.emit(ir.Copy{Dest: result, Src: b.constI(ir.I64, -1)})
			b.block.Term = ir.Br{Block: done.ID}
			b.block = greaterBlock
			b.emit(ir.Copy{Dest: result, Src: b.constI(ir.I64, 1)})
			b.block.Term = ir.Br{Block: done.ID}
			current = next
		}
		b.block = current
		b.emit(ir.Copy{Dest: result, Src: b.constI(ir.I64, 0)})
		b.block.Term = ir.Br{Block: done.ID}
		b.block = done
		b.ret(result)
	}
}

// emitBitwise256 generates the limb-parallel bit operations and
// negation (two's complement).
func (g *Generator) emitBitwise256() {
	ops := map[string]ir.Op{"__and256": ir.OpAnd, "__or256": ir.OpOr, "__xor256": ir.OpXor}
	for _, name := range []string{"__and256", "__or256", "__xor256"} {
		b := g.begin(name, []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
		out, a, bb := 0, 1, 2
		for limb := 0; limb < 4; limb++ {
			offset := uint32(limb * 8)
			left := b.load(ir.I64, a, offset, 8)
			right := b.load(ir.I64, bb, offset, 8)
			combined := b.bin(ir.I64, ops[name], left, right)
			b.store(out, offset, 8, combined, ir.I64)
		}
		b.ret()
	}

	b := g.begin("__not256", []ir.Ty{ir.Ptr, ir.Ptr}, nil)
	out, a := 0, 1
	allOnes := b.constI(ir.I64, -1)
	for limb := 0; limb < 4; limb++ {
		offset := uint32(limb * 8)
		word := b.load(ir.I64, a, offset, 8)
		flipped := b.bin(ir.I64, ir.OpXor, word, allOnes)
		b.store(out, offset, 8, flipped, ir.I64)
	}
	b.ret()

	b = g.begin("__neg256", []ir.Ty{ir.Ptr, ir.Ptr}, nil)
	out, a = 0, 1
	// -x = ~x + 1
	carry := b.constI(ir.I64, 1)
	ones := b.constI(ir.I64, -1)
	for limb := 0; limb < 4; limb++ {
		offset := uint32(limb * 8)
		word := b.load(ir.I64, a, offset, 8)
		flipped := b.bin(ir.I64, ir.OpXor, word, ones)
		sum := b.bin(ir.I64, ir.OpAdd, flipped, carry)
		b.store(out, offset, 8, sum, ir.I64)
		carry = b.bin(ir.I64, ir.OpLtU, sum, flipped)
	}
	b.ret()
}

// emitShift256 generates whole-word-plus-remainder shifting on the
// two-word-split pattern the 128-bit standard-library shifts use,
// extended to four words.
func (g *Generator) emitShift256() {
	// left shift
	b := g.begin("__shl256", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
	g.shiftBody(b, true, false)
	// logical right shift
	b = g.begin("__shr256", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
	g.shiftBody(b, false, false)
	// arithmetic right shift
	b = g.begin("__sar256", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
	g.shiftBody(b, false, true)
}

// shiftBody shifts by a bit amount read from the third operand: the
// amount's whole-limb part relocates words, the remainder shifts
// across the pair boundary.
func (g *Generator) shiftBody(b *fb, left, arithmetic bool) {
	out, a, amountPtr := 0, 1, 2
	amount := b.load(ir.I64, amountPtr, 0, 8)
	sixtyFour := b.constI(ir.I64, 64)
	words := b.bin(ir.I64, ir.OpDivU, amount, sixtyFour)
	rest := b.bin(ir.I64, ir.OpRemU, amount, sixtyFour)
	fill := b.constI(ir.I64, 0)
	if arithmetic {
		high := b.load(ir.I64, a, 24, 8)
		sixtyThree := b.constI(ir.I64, 63)
		fill = b.bin(ir.I64, ir.OpShrS, high, sixtyThree) // 0 or -1
	}
	// fully unrolled: for each destination limb pick the source limbs
	for destLimb := 0; destLimb < 4; destLimb++ {
		result := b.constI(ir.I64, 0)
		for sourceLimb := 0; sourceLimb < 4; sourceLimb++ {
			distance := destLimb - sourceLimb
			if !left {
				distance = sourceLimb - destLimb
			}
			if distance < 0 {
				continue
			}
			isDistance := b.bin(ir.I64, ir.OpEq, words, b.constI(ir.I64, int64(distance)))
			word := b.load(ir.I64, a, uint32(sourceLimb*8), 8)
			var primary int
			if left {
				primary = b.bin(ir.I64, ir.OpShl, word, rest)
			} else {
				primary = b.bin(ir.I64, ir.OpShrU, word, rest)
			}
			// cross-boundary bits from the neighbor limb
			neighborIndex := sourceLimb + 1
			if left {
				neighborIndex = sourceLimb - 1
			}
			carry := b.constI(ir.I64, 0)
			if neighborIndex >= 0 && neighborIndex < 4 {
				neighbor := b.load(ir.I64, a, uint32(neighborIndex*8), 8)
				complement := b.bin(ir.I64, ir.OpSub, sixtyFour, rest)
				var spill int
				if left {
					spill = b.bin(ir.I64, ir.OpShrU, neighbor, complement)
				} else {
					spill = b.bin(ir.I64, ir.OpShl, neighbor, complement)
				}
				// rest == 0 means no spill; the complement shift of 64
				// would be undefined, mask it out
				haveRest := b.bin(ir.I64, ir.OpNe, rest, b.constI(ir.I64, 0))
				negMask := b.bin(ir.I64, ir.OpSub, b.constI(ir.I64, 0), haveRest)
				carry = b.bin(ir.I64, ir.OpAnd, spill, negMask)
			} else if !left && arithmetic && neighborIndex == 4 {
				complement := b.bin(ir.I64, ir.OpSub, sixtyFour, rest)
				haveRest := b.bin(ir.I64, ir.OpNe, rest, b.constI(ir.I64, 0))
				negMask := b.bin(ir.I64, ir.OpSub, b.constI(ir.I64, 0), haveRest)
				carry = b.bin(ir.I64, ir.OpAnd, b.bin(ir.I64, ir.OpShl, fill, complement), negMask)
			}
			combined := b.bin(ir.I64, ir.OpOr, primary, carry)
			mask := b.bin(ir.I64, ir.OpSub, b.constI(ir.I64, 0), isDistance)
			masked := b.bin(ir.I64, ir.OpAnd, combined, mask)
			result = b.bin(ir.I64, ir.OpOr, result, masked)
		}
		if arithmetic {
			// limbs with no source limb above them take the sign fill
			vacated := b.bin(ir.I64, ir.OpGtU, words, b.constI(ir.I64, int64(3-destLimb)))
			fillMask := b.bin(ir.I64, ir.OpSub, b.constI(ir.I64, 0), vacated)
			result = b.bin(ir.I64, ir.OpOr, result, b.bin(ir.I64, ir.OpAnd, fill, fillMask))
		}
		b.store(out, uint32(destLimb*8), 8, result, ir.I64)
	}
	b.ret()
}

// emitDivModWrappers adapts the linked standard-library division to
// the two result shapes the generator calls.
func (g *Generator) emitDivModWrappers() {
	shapes := []struct {
		name    string
		extern  string
		wantRem bool
	}{
		{"__udivmod256_quot", "__udivmod256", false},
		{"__udivmod256_rem", "__udivmod256", true},
		{"__sdivmod256_quot", "__sdivmod256", false},
		{"__sdivmod256_rem", "__sdivmod256", true},
	}
	for _, shape := range shapes {
		b := g.begin(shape.name, []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
		out, a, bb := 0, 1, 2
		quot := b.f.NewReg(ir.Ptr)
		rem := b.f.NewReg(ir.Ptr)
		size := b.constI(ir.I32, 32)
		b.emit(ir.Alloc{Dest: quot, Size: size})
		b.emit(ir.Alloc{Dest: rem, Size: size})
		b.emit(ir.CallImport{Name: shape.extern, Args: []int{a, bb, quot, rem}})
		source := quot
		if shape.wantRem {
			source = rem
		}
		length := b.constI(ir.I32, 32)
		b.emit(ir.MemCopy{Dest: out, Src: source, Len: length})
		b.ret()
	}
}

// emitPow generates exponentiation by squaring at 64 bits, and the
// 256-bit variant over the limb helpers.
func (g *Generator) emitPow() {
	b := g.begin("__pow64", []ir.Ty{ir.I64, ir.I64}, []ir.Ty{ir.I64})
	base, exponent := 0, 1
	result := b.f.NewReg(ir.I64)
	b.emit(ir.Copy{Dest: result, Src: b.constI(ir.I64, 1)})
	acc := b.f.NewReg(ir.I64)
	b.emit(ir.Copy{Dest: acc, Src: base})
	remaining := b.f.NewReg(ir.I64)
	b.emit(ir.Copy{Dest: remaining, Src: exponent})

	head := b.f.NewBlock()
	body := b.f.NewBlock()
	exit := b.f.NewBlock()
	b.block.Term = ir.Br{Block: head.ID}
	b.block = head
	more := b.bin(ir.I64, ir.OpNe, remaining, b.constI(ir.I64, 0))
	b.block.Term = ir.BrIf{Cond: more, True: body.ID, False: exit.ID}
	b.block = body
	one := b.constI(ir.I64, 1)
	odd := b.bin(ir.I64, ir.OpAnd, remaining, one)
	isOdd := b.bin(ir.I64, ir.OpNe, odd, b.constI(ir.I64, 0))
	multiply := b.f.NewBlock()
	square := b.f.NewBlock()
	b.block.Term = ir.BrIf{Cond: isOdd, True: multiply.ID, False: square.ID}
	b.block = multiply
	b.binTo(result, ir.I64, ir.OpMul, result, acc)
	b.block.Term = ir.Br{Block: square.ID}
	b.block = square
	b.binTo(acc, ir.I64, ir.OpMul, acc, acc)
	b.binTo(remaining, ir.I64, ir.OpShrU, remaining, one)
	b.block.Term = ir.Br{Block: head.ID}
	b.block = exit
	b.ret(result)

	// 256-bit: out = base ** exponent (low limb of exponent)
	wb := g.begin("__pow256", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
	out, baseP, expP := 0, 1, 2
	count := wb.load(ir.I64, expP, 0, 8)
	// out = 1
	wb.store(out, 0, 8, wb.constI(ir.I64, 1), ir.I64)
	wb.store(out, 8, 8, wb.constI(ir.I64, 0), ir.I64)
	wb.store(out, 16, 8, wb.constI(ir.I64, 0), ir.I64)
	wb.store(out, 24, 8, wb.constI(ir.I64, 0), ir.I64)
	i := wb.f.NewReg(ir.I64)
	wb.emit(ir.Copy{Dest: i, Src: wb.constI(ir.I64, 0)})
	headW := wb.f.NewBlock()
	bodyW := wb.f.NewBlock()
	exitW := wb.f.NewBlock()
	wb.block.Term = ir.Br{Block: headW.ID}
	wb.block = headW
	moreW := wb.bin(ir.I64, ir.OpLtU, i, count)
	wb.block.Term = ir.BrIf{Cond: moreW, True: bodyW.ID, False: exitW.ID}
	wb.block = bodyW
	scratchW := wb.f.NewReg(ir.Ptr)
	wb.emit(ir.Alloc{Dest: scratchW, Size: wb.constI(ir.I32, 32)})
	wb.emit(ir.CallFn{Name: "__mul256", Args: []int{scratchW, out, baseP}})
	wb.emit(ir.MemCopy{Dest: out, Src: scratchW, Len: wb.constI(ir.I32, 32)})
	wb.binTo(i, ir.I64, ir.OpAdd, i, wb.constI(ir.I64, 1))
	wb.block.Term = ir.Br{Block: headW.ID}
	wb.block = exitW
	wb.ret()
}

// emitMulCheck64 traps when a*b wrapped at 64 bits: b != 0 implies
// result / b == a.
func (g *Generator) emitMulCheck64() {
	b := g.begin("__mulcheck64", []ir.Ty{ir.I64, ir.I64, ir.I64}, nil)
	left, right, result := 0, 1, 2
	zero := b.constI(ir.I64, 0)
	nonZero := b.bin(ir.I64, ir.OpNe, right, zero)
	check := b.f.NewBlock()
	done := b.f.NewBlock()
	b.block.Term = ir.BrIf{Cond: nonZero, True: check.ID, False: done.ID}
	b.block = check
	quotient := b.bin(ir.I64, ir.OpDivU, result, right)
	bad := b.bin(ir.I64, ir.OpNe, quotient, left)
	fail := b.f.NewBlock()
	b.block.Term = ir.BrIf{Cond: bad, True: fail.ID, False: done.ID}
	b.block = fail
	b.emit(ir.Trap{})
	b.block.Term = ir.Unreachable{}
	b.block = done
	b.ret()
}

// emitOverflowCheck256 traps when a checked wide operation wrapped.
func (g *Generator) emitOverflowCheck256() {
	b := g.begin("__overflowcheck256", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr, ir.I32}, nil)
	result, left, _, op := 0, 1, 2, 3
	// add: result < left wrapped; sub: result > left wrapped. Wide
	// multiplication is not checked.
	compared := b.f.NewReg(ir.I64)
	b.emit(ir.CallFn{Dests: []int{compared}, Name: "__cmp256", Args: []int{result, left}})
	isAdd := b.bin(ir.I32, ir.OpEq, op, b.constI(ir.I32, int64(0)))
	wrappedAdd := b.bin(ir.I64, ir.OpLtS, compared, b.constI(ir.I64, 0))
	wrappedSub := b.bin(ir.I64, ir.OpGtS, compared, b.constI(ir.I64, 0))
	chooseAdd := b.f.NewBlock()
	chooseSub := b.f.NewBlock()
	failBlock := b.f.NewBlock()
	doneBlock := b.f.NewBlock()
	b.block.Term = ir.BrIf{Cond: isAdd, True: chooseAdd.ID, False: chooseSub.ID}
	b.block = chooseAdd
	b.block.Term = ir.BrIf{Cond: wrappedAdd, True: failBlock.ID, False: doneBlock.ID}
	b.block = chooseSub
	b.block.Term = ir.BrIf{Cond: wrappedSub, True: failBlock.ID, False: doneBlock.ID}
	b.block = failBlock
	b.emit(ir.Trap{})
	b.block.Term = ir.Unreachable{}
	b.block = doneBlock
	b.ret()
}

// emitMapSlot derives a mapping entry's storage slot with the
// target's preimage ordering and hash.
func (g *Generator) emitMapSlot() {
	b := g.begin("__map_slot", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr, ir.I32}, nil)
	out, slot, key, keyLength := 0, 1, 2, 3

	prefix := g.storagePrefix()
	prefixLen := int64(len(prefix))
	var prefixReg int
	if prefixLen > 0 {
		offset := g.addData(prefix)
		prefixReg = b.constI(ir.I32, int64(offset))
	}

	total := b.bin(ir.I32, ir.OpAdd, keyLength, b.constI(ir.I32, 32+prefixLen))
	preimage := b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: preimage, Size: total})
	cursor := preimage
	if prefixLen > 0 {
		b.emit(ir.MemCopy{Dest: cursor, Src: prefixReg, Len: b.constI(ir.I32, prefixLen)})
		cursor = b.bin(ir.I32, ir.OpAdd, cursor, b.constI(ir.I32, prefixLen))
	}
	if g.mapKeyFirst() {
		b.emit(ir.MemCopy{Dest: cursor, Src: key, Len: keyLength})
		after := b.bin(ir.I32, ir.OpAdd, cursor, keyLength)
		b.emit(ir.MemCopy{Dest: after, Src: slot, Len: b.constI(ir.I32, 32)})
	} else {
		b.emit(ir.MemCopy{Dest: cursor, Src: slot, Len: b.constI(ir.I32, 32)})
		after := b.bin(ir.I32, ir.OpAdd, cursor, b.constI(ir.I32, 32))
		b.emit(ir.MemCopy{Dest: after, Src: key, Len: keyLength})
	}
	name := g.hostImportFromBuilder(target.HashKeccak)
	b.emit(ir.CallImport{Name: name, Args: []int{preimage, total, out}})
	b.ret()
}

// emitArraySlot derives element slots of dynamic storage arrays:
// hash the header slot, add the index.
func (g *Generator) emitArraySlot() {
	b := g.begin("__array_slot", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
	out, slot, index := 0, 1, 2
	name := g.hostImportFromBuilder(target.HashKeccak)
	hashed := b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: hashed, Size: b.constI(ir.I32, 32)})
	b.emit(ir.CallImport{Name: name, Args: []int{slot, b.constI(ir.I32, 32), hashed}})
	b.emit(ir.CallFn{Name: "__add256", Args: []int{out, hashed, index}})
	b.ret()
}

// emitStoragePushPop maintains the in-slot length of dynamic storage
// arrays.
func (g *Generator) emitStoragePushPop() {
	getName := g.hostImport(target.GetStorage)
	setName := g.hostImport(target.SetStorage)

	b := g.begin("__storage_push", []ir.Ty{ir.Ptr, ir.Ptr}, nil)
	header, value := 0, 1
	lengthBuffer := b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: lengthBuffer, Size: b.constI(ir.I32, 32)})
	b.emit(ir.CallImport{Name: getName, Args: []int{header, lengthBuffer, b.constI(ir.I32, 32)}})
	length := b.load(ir.I64, lengthBuffer, 0, 8)
	// slot of the new element
	indexBuffer := b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: indexBuffer, Size: b.constI(ir.I32, 32)})
	b.store(indexBuffer, 0, 8, length, ir.I64)
	b.store(indexBuffer, 8, 8, b.constI(ir.I64, 0), ir.I64)
	b.store(indexBuffer, 16, 8, b.constI(ir.I64, 0), ir.I64)
	b.store(indexBuffer, 24, 8, b.constI(ir.I64, 0), ir.I64)
	element := b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: element, Size: b.constI(ir.I32, 32)})
	b.emit(ir.CallFn{Name: "__array_slot", Args: []int{element, header, indexBuffer}})
	b.emit(ir.CallImport{Name: setName, Args: []int{element, value, b.constI(ir.I32, 32)}})
	// bump the length
	bumped := b.bin(ir.I64, ir.OpAdd, length, b.constI(ir.I64, 1))
	b.store(lengthBuffer, 0, 8, bumped, ir.I64)
	b.emit(ir.CallImport{Name: setName, Args: []int{header, lengthBuffer, b.constI(ir.I32, 32)}})
	b.ret()

	b = g.begin("__storage_pop", []ir.Ty{ir.Ptr, ir.Ptr}, nil)
	header, out := 0, 1
	lengthBuffer = b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: lengthBuffer, Size: b.constI(ir.I32, 32)})
	b.emit(ir.CallImport{Name: getName, Args: []int{header, lengthBuffer, b.constI(ir.I32, 32)}})
	length = b.load(ir.I64, lengthBuffer, 0, 8)
	empty := b.f.NewReg(ir.I32)
	b.emit(ir.Un{Dest: empty, Ty: ir.I64, Op: ir.OpEqz, Value: length})
	failBlock := b.f.NewBlock()
	popBlock := b.f.NewBlock()
	b.block.Term = ir.BrIf{Cond: empty, True: failBlock.ID, False: popBlock.ID}
	b.block = failBlock
	b.emit(ir.Trap{})
	b.block.Term = ir.Unreachable{}
	b.block = popBlock
	last := b.bin(ir.I64, ir.OpSub, length, b.constI(ir.I64, 1))
	indexBuffer = b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: indexBuffer, Size: b.constI(ir.I32, 32)})
	b.store(indexBuffer, 0, 8, last, ir.I64)
	b.store(indexBuffer, 8, 8, b.constI(ir.I64, 0), ir.I64)
	b.store(indexBuffer, 16, 8, b.constI(ir.I64, 0), ir.I64)
	b.store(indexBuffer, 24, 8, b.constI(ir.I64, 0), ir.I64)
	element = b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: element, Size: b.constI(ir.I32, 32)})
	b.emit(ir.CallFn{Name: "__array_slot", Args: []int{element, header, indexBuffer}})
	b.emit(ir.CallImport{Name: getName, Args: []int{element, out, b.constI(ir.I32, 32)}})
	b.store(lengthBuffer, 0, 8, last, ir.I64)
	b.emit(ir.CallImport{Name: setName, Args: []int{header, lengthBuffer, b.constI(ir.I32, 32)}})
	b.ret()
}

// emitMemoryPushPop reallocates memory aggregates on push.
func (g *Generator) emitMemoryPushPop() {
	b := g.begin("__memory_push", []ir.Ty{ir.Ptr, ir.I64}, []ir.Ty{ir.Ptr})
	array, value := 0, 1
	length := b.load(ir.I64, array, 0, 8)
	bumped := b.bin(ir.I64, ir.OpAdd, length, b.constI(ir.I64, 1))
	cellBytes := b.bin(ir.I64, ir.OpMul, bumped, b.constI(ir.I64, 8))
	total := b.bin(ir.I32, ir.OpAdd, cellBytes, b.constI(ir.I32, 8))
	fresh := b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: fresh, Size: total})
	oldBytes := b.bin(ir.I64, ir.OpMul, length, b.constI(ir.I64, 8))
	oldTotal := b.bin(ir.I32, ir.OpAdd, oldBytes, b.constI(ir.I32, 8))
	b.emit(ir.MemCopy{Dest: fresh, Src: array, Len: oldTotal})
	b.store(fresh, 0, 8, bumped, ir.I64)
	// write the new element at the end
	offsetReg := b.bin(ir.I32, ir.OpAdd, fresh, oldTotal)
	b.store(offsetReg, 0, 8, value, ir.I64)
	b.ret(fresh)

	b = g.begin("__memory_pop", []ir.Ty{ir.Ptr}, []ir.Ty{ir.I64})
	array = 0
	length = b.load(ir.I64, array, 0, 8)
	empty := b.f.NewReg(ir.I32)
	b.emit(ir.Un{Dest: empty, Ty: ir.I64, Op: ir.OpEqz, Value: length})
	failBlock := b.f.NewBlock()
	popBlock := b.f.NewBlock()
	b.block.Term = ir.BrIf{Cond: empty, True: failBlock.ID, False: popBlock.ID}
	b.block = failBlock
	b.emit(ir.Trap{})
	b.block.Term = ir.Unreachable{}
	b.block = popBlock
	last := b.bin(ir.I64, ir.OpSub, length, b.constI(ir.I64, 1))
	cell := b.bin(ir.I64, ir.OpMul, last, b.constI(ir.I64, 8))
	address := b.bin(ir.I32, ir.OpAdd, array, cell)
	address = b.bin(ir.I32, ir.OpAdd, address, b.constI(ir.I32, 8))
	result := b.load(ir.I64, address, 0, 8)
	b.store(array, 0, 8, last, ir.I64)
	b.ret(result)
}

// emitEncodeScalars packs two 8-byte scalars into a
// length-prefixed buffer; the per-signature specialized encoders in
// the dispatcher handle the full type set, this one serves events and
// debug paths.
func (g *Generator) emitEncodeScalars() {
	b := g.begin("__abi_encode_scalars", []ir.Ty{ir.I64, ir.I64}, []ir.Ty{ir.Ptr})
	first, second := 0, 1
	buffer := b.f.NewReg(ir.Ptr)
	b.emit(ir.Alloc{Dest: buffer, Size: b.constI(ir.I32, 20)})
	b.store(buffer, 0, 4, b.constI(ir.I32, 16), ir.I32)
	b.store(buffer, 4, 8, first, ir.I64)
	b.store(buffer, 12, 8, second, ir.I64)
	b.ret(buffer)
}

// emitBytesResize implements the fixed-bytes cast rule: preserve the
// leading bytes, pad or drop at the tail.
func (g *Generator) emitBytesResize() {
	b := g.begin("__bytes_resize", []ir.Ty{ir.Ptr, ir.Ptr, ir.I32, ir.I32}, nil)
	out, source, fromLen, toLen := 0, 1, 2, 3
	// zero the output first
	b.store(out, 0, 8, b.constI(ir.I64, 0), ir.I64)
	b.store(out, 8, 8, b.constI(ir.I64, 0), ir.I64)
	b.store(out, 16, 8, b.constI(ir.I64, 0), ir.I64)
	b.store(out, 24, 8, b.constI(ir.I64, 0), ir.I64)
	smaller := b.f.NewReg(ir.I32)
	isSmaller := b.bin(ir.I32, ir.OpLtU, fromLen, toLen)
	pickFrom := b.f.NewBlock()
	pickTo := b.f.NewBlock()
	copyBlock := b.f.NewBlock()
	b.block.Term = ir.BrIf{Cond: isSmaller, True: pickFrom.ID, False: pickTo.ID}
	b.block = pickFrom
	b.emit(ir.Copy{Dest: smaller, Src: fromLen})
	b.block.Term = ir.Br{Block: copyBlock.ID}
	b.block = pickTo
	b.emit(ir.Copy{Dest: smaller, Src: toLen})
	b.block.Term = ir.Br{Block: copyBlock.ID}
	b.block = copyBlock
	b.emit(ir.MemCopy{Dest: out, Src: source, Len: smaller})
	b.ret()
}

// emitByteOrder generates the big-endian bridge the Ethereum-style
// codec needs: __be_load reads an N-byte big-endian field into an
// i64, __be_store writes one, and __be_flip32 reverses a 32-byte
// word in place between the codec's big-endian wire form and the
// little-endian limb buffers.
func (g *Generator) emitByteOrder() {
	b := g.begin("__be_load", []ir.Ty{ir.Ptr, ir.I32}, []ir.Ty{ir.I64})
	pointer, size := 0, 1
	result := b.f.NewReg(ir.I64)
	b.emit(ir.Copy{Dest: result, Src: b.constI(ir.I64, 0)})
	i := b.f.NewReg(ir.I32)
	b.emit(ir.Copy{Dest: i, Src: b.constI(ir.I32, 0)})
	head := b.f.NewBlock()
	body := b.f.NewBlock()
	exit := b.f.NewBlock()
	b.block.Term = ir.Br{Block: head.ID}
	b.block = head
	more := b.bin(ir.I32, ir.OpLtU, i, size)
	b.block.Term = ir.BrIf{Cond: more, True: body.ID, False: exit.ID}
	b.block = body
	eight := b.constI(ir.I64, 8)
	shifted := b.bin(ir.I64, ir.OpShl, result, eight)
	address := b.bin(ir.I32, ir.OpAdd, pointer, i)
	next := b.load(ir.I64, address, 0, 1)
	b.binTo(result, ir.I64, ir.OpOr, shifted, next)
	b.binTo(i, ir.I32, ir.OpAdd, i, b.constI(ir.I32, 1))
	b.block.Term = ir.Br{Block: head.ID}
	b.block = exit
	b.ret(result)

	b = g.begin("__be_store", []ir.Ty{ir.Ptr, ir.I64, ir.I32}, nil)
	pointer, valueReg, size := 0, 1, 2
	i = b.f.NewReg(ir.I32)
	b.emit(ir.Copy{Dest: i, Src: b.constI(ir.I32, 0)})
	head = b.f.NewBlock()
	body = b.f.NewBlock()
	exit = b.f.NewBlock()
	b.block.Term = ir.Br{Block: head.ID}
	b.block = head
	more = b.bin(ir.I32, ir.OpLtU, i, size)
	b.block.Term = ir.BrIf{Cond: more, True: body.ID, False: exit.ID}
	b.block = body
	// byte (size-1-i) of the value, big-endian order
	lastIndex := b.bin(ir.I32, ir.OpSub, size, b.constI(ir.I32, 1))
	position := b.bin(ir.I32, ir.OpSub, lastIndex, i)
	bitShift := b.bin(ir.I64, ir.OpMul, position, b.constI(ir.I64, 8))
	byteValue := b.bin(ir.I64, ir.OpShrU, valueReg, bitShift)
	address := b.bin(ir.I32, ir.OpAdd, pointer, i)
	b.store(address, 0, 1, byteValue, ir.I64)
	b.binTo(i, ir.I32, ir.OpAdd, i, b.constI(ir.I32, 1))
	b.block.Term = ir.Br{Block: head.ID}
	b.block = exit
	b.ret()

	b = g.begin("__be_flip32", []ir.Ty{ir.Ptr, ir.Ptr}, nil)
	out, source := 0, 1
	for index := 0; index < 32; index++ {
		byteReg := b.load(ir.I64, source, uint32(index), 1)
		b.store(out, uint32(31-index), 1, byteReg, ir.I64)
	}
	b.ret()
}

// emitExternalCall performs a cross-contract message call through the
// target's call host function: input buffer in, return data copied
// out.
func (g *Generator) emitExternalCall() {
	b := g.begin("__external_call", []ir.Ty{ir.Ptr, ir.Ptr, ir.Ptr}, nil)
	out, address, input := 0, 1, 2
	length := b.load(ir.I32, input, 0, 4)
	payload := b.bin(ir.I32, ir.OpAdd, input, b.constI(ir.I32, 4))
	name := g.hostImportFromBuilder(target.CallContract)
	b.emit(ir.CallImport{Name: name, Args: []int{address, payload, length, out, b.constI(ir.I32, 64)}})
	b.ret()
}

func (g *Generator) hostImportFromBuilder(builtin target.Builtin) string {
	return g.hostImport(builtin)
}

// storagePrefix and mapKeyFirst expose the target's storage-key
// conventions without letting the generator hard-code either chain's
// rule.
func (g *Generator) storagePrefix() []byte {
	if substrate, ok := g.tgt.(target.Substrate); ok {
		return substrate.Prefix
	}
	return nil
}

func (g *Generator) mapKeyFirst() bool {
	// keccak(key ++ slot) on the Ethereum-style target,
	// hash(prefix ++ slot ++ key) on the substrate-style one
	return g.tgt.Codec() == target.EthABI
}
