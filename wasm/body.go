package wasm

import (
	"fmt"

	"solang/ir"
)

// opcode tables per value type
var i32Ops = map[ir.Op]byte{
	ir.OpAdd: 0x6a, ir.OpSub: 0x6b, ir.OpMul: 0x6c,
	ir.OpDivS: 0x6d, ir.OpDivU: 0x6e, ir.OpRemS: 0x6f, ir.OpRemU: 0x70,
	ir.OpAnd: 0x71, ir.OpOr: 0x72, ir.OpXor: 0x73,
	ir.OpShl: 0x74, ir.OpShrS: 0x75, ir.OpShrU: 0x76,
	ir.OpEq: 0x46, ir.OpNe: 0x47,
	ir.OpLtS: 0x48, ir.OpLtU: 0x49, ir.OpGtS: 0x4a, ir.OpGtU: 0x4b,
	ir.OpLeS: 0x4c, ir.OpLeU: 0x4d, ir.OpGeS: 0x4e, ir.OpGeU: 0x4f,
}

var i64Ops = map[ir.Op]byte{
	ir.OpAdd: 0x7c, ir.OpSub: 0x7d, ir.OpMul: 0x7e,
	ir.OpDivS: 0x7f, ir.OpDivU: 0x80, ir.OpRemS: 0x81, ir.OpRemU: 0x82,
	ir.OpAnd: 0x83, ir.OpOr: 0x84, ir.OpXor: 0x85,
	ir.OpShl: 0x86, ir.OpShrS: 0x87, ir.OpShrU: 0x88,
	ir.OpEq: 0x51, ir.OpNe: 0x52,
	ir.OpLtS: 0x53, ir.OpLtU: 0x54, ir.OpGtS: 0x55, ir.OpGtU: 0x56,
	ir.OpLeS: 0x57, ir.OpLeU: 0x58, ir.OpGeS: 0x59, ir.OpGeU: 0x5a,
}

// comparison ops produce i32 regardless of operand type
func producesI32(op ir.Op) bool {
	switch op {
	case ir.OpEq, ir.OpNe, ir.OpLtS, ir.OpLtU, ir.OpLeS, ir.OpLeU,
		ir.OpGtS, ir.OpGtU, ir.OpGeS, ir.OpGeU, ir.OpEqz:
		return true
	}
	return false
}

// bodyState encodes one function.
type bodyState struct {
	e        *encoder
	function *ir.Func
	out      []byte

	// wasm local index of each IR register, and the dispatch local
	locals []int
	next   int
}

func (e *encoder) body(function *ir.Func) ([]byte, error) {
	state := &bodyState{e: e, function: function}

	// params occupy the first locals; remaining registers and the
	// dispatch local are declared extras, grouped by type
	state.locals = make([]int, len(function.Regs))
	for i := range function.Params {
		state.locals[i] = i
	}
	var extraI32, extraI64 []int
	for i := len(function.Params); i < len(function.Regs); i++ {
		if valType(function.Regs[i]) == 0x7e {
			extraI64 = append(extraI64, i)
		} else {
			extraI32 = append(extraI32, i)
		}
	}
	index := len(function.Params)
	for _, reg := range extraI32 {
		state.locals[reg] = index
		index++
	}
	state.next = index // dispatch local, i32
	index++
	for _, reg := range extraI64 {
		state.locals[reg] = index
		index++
	}

	// local declarations: run of i32s (registers + dispatch), then i64s
	var header []byte
	header = append(header, uleb(2)...)
	header = append(header, uleb(uint64(len(extraI32)+1))...)
	header = append(header, 0x7f)
	header = append(header, uleb(uint64(len(extraI64)))...)
	header = append(header, 0x7e)

	if err := state.emitBody(); err != nil {
		return nil, err
	}
	out := append(header, state.out...)
	out = append(out, 0x0b) // end of function body
	return out, nil
}

func (s *bodyState) op(bytes ...byte) {
	s.out = append(s.out, bytes...)
}

func (s *bodyState) localGet(local int) { s.op(0x20); s.out = append(s.out, uleb(uint64(local))...) }
func (s *bodyState) localSet(local int) { s.op(0x21); s.out = append(s.out, uleb(uint64(local))...) }

func (s *bodyState) regTy(reg int) ir.Ty {
	return s.function.Regs[reg]
}

// push loads a register on the stack coerced to the wanted type.
func (s *bodyState) push(reg int, want ir.Ty) {
	s.localGet(s.locals[reg])
	have := valType(s.regTy(reg))
	target := valType(want)
	if have == target {
		return
	}
	if have == 0x7e {
		s.op(0xa7) // i32.wrap_i64
	} else {
		s.op(0xad) // i64.extend_i32_u
	}
}

// popInto stores the stack top into a register, coercing from the
// produced type.
func (s *bodyState) popInto(reg int, produced ir.Ty) {
	have := valType(produced)
	want := valType(s.regTy(reg))
	if have != want {
		if have == 0x7e {
			s.op(0xa7)
		} else {
			s.op(0xad)
		}
	}
	s.localSet(s.locals[reg])
}

func (s *bodyState) emitBody() error {
	blocks := s.function.Blocks
	if len(blocks) == 0 {
		s.op(0x0f) // return
		return nil
	}

	// next = 0
	s.op(0x41, 0x00)
	s.localSet(s.next)

	// loop wrapping n nested blocks and a br_table
	s.op(0x03, 0x40) // loop void
	for range blocks {
		s.op(0x02, 0x40) // block void
	}
	s.localGet(s.next)
	s.op(0x0e)
	s.out = append(s.out, uleb(uint64(len(blocks)))...)
	for i := range blocks {
		s.out = append(s.out, uleb(uint64(i))...)
	}
	// default: first block again; the dispatch local never exceeds
	// the block count
	s.out = append(s.out, uleb(0)...)

	for i, block := range blocks {
		s.op(0x0b) // end of the dispatch block for this basic block
		for _, instruction := range block.Instrs {
			if err := s.instr(instruction); err != nil {
				return err
			}
		}
		loopDepth := len(blocks) - 1 - i
		if err := s.terminator(block.Term, loopDepth); err != nil {
			return err
		}
	}
	s.op(0x0b) // end loop
	// falling out of the loop is impossible; every path returns or
	// traps, but the validator wants an end state
	s.op(0x00) // unreachable
	return nil
}

func (s *bodyState) setNext(block int, loopDepth int) {
	s.op(0x41)
	s.out = append(s.out, sleb(int64(block))...)
	s.localSet(s.next)
	s.op(0x0c)
	s.out = append(s.out, uleb(uint64(loopDepth))...)
}

func (s *bodyState) terminator(terminator ir.Term, loopDepth int) error {
	switch term := terminator.(type) {
	case ir.Br:
		s.setNext(term.Block, loopDepth)
	case ir.BrIf:
		s.pushCondition(term.Cond)
		s.op(0x04, 0x40) // if void
		s.op(0x41)
		s.out = append(s.out, sleb(int64(term.True))...)
		s.localSet(s.next)
		s.op(0x05) // else
		s.op(0x41)
		s.out = append(s.out, sleb(int64(term.False))...)
		s.localSet(s.next)
		s.op(0x0b) // end if
		s.op(0x0c)
		s.out = append(s.out, uleb(uint64(loopDepth))...)
	case ir.Ret:
		if len(term.Values) != len(s.function.Results) {
			// zero-fill missing results keeps the body valid
			for _, result := range s.function.Results {
				if valType(result) == 0x7e {
					s.op(0x42, 0x00)
				} else {
					s.op(0x41, 0x00)
				}
			}
		} else {
			for i, value := range term.Values {
				s.push(value, s.function.Results[i])
			}
		}
		s.op(0x0f)
	case ir.Unreachable:
		s.op(0x00)
	default:
		return fmt.Errorf("unknown terminator %T", terminator)
	}
	return nil
}

// pushCondition loads a register as an i32 truth value.
func (s *bodyState) pushCondition(reg int) {
	if valType(s.regTy(reg)) == 0x7e {
		s.localGet(s.locals[reg])
		s.op(0x42, 0x00) // i64.const 0
		s.op(0x52)       // i64.ne
		return
	}
	s.localGet(s.locals[reg])
}

func (s *bodyState) instr(instruction ir.Instr) error {
	switch instr := instruction.(type) {
	case ir.Const:
		if valType(s.regTy(instr.Dest)) == 0x7e {
			s.op(0x42)
			s.out = append(s.out, sleb(instr.Value)...)
			s.popInto(instr.Dest, ir.I64)
		} else {
			s.op(0x41)
			// i32 immediates are signed; wrap values above 2^31
			s.out = append(s.out, sleb(int64(int32(instr.Value)))...)
			s.popInto(instr.Dest, ir.I32)
		}
	case ir.Copy:
		s.push(instr.Src, s.regTy(instr.Dest))
		s.localSet(s.locals[instr.Dest])
	case ir.Bin:
		ty := instr.Ty
		if ty == ir.Ptr {
			ty = ir.I32
		}
		s.push(instr.L, ty)
		s.push(instr.R, ty)
		table := i32Ops
		if ty == ir.I64 {
			table = i64Ops
		}
		opcode, known := table[instr.Op]
		if !known {
			return fmt.Errorf("no opcode for %v", instr.Op)
		}
		s.op(opcode)
		produced := ty
		if producesI32(instr.Op) {
			produced = ir.I32
		}
		s.popInto(instr.Dest, produced)
	case ir.Un:
		if instr.Op != ir.OpEqz {
			return fmt.Errorf("unsupported unary op")
		}
		if valType(instr.Ty) == 0x7e {
			s.push(instr.Value, ir.I64)
			s.op(0x50)
		} else {
			s.push(instr.Value, ir.I32)
			s.op(0x45)
		}
		s.popInto(instr.Dest, ir.I32)
	case ir.LoadMem:
		s.push(instr.Addr, ir.I32)
		wide := valType(s.regTy(instr.Dest)) == 0x7e
		switch {
		case wide && instr.Width == 8:
			s.op(0x29)
		case wide && instr.Width == 4:
			s.op(0x35) // i64.load32_u
		case wide && instr.Width == 2:
			s.op(0x33)
		case wide && instr.Width == 1:
			s.op(0x31)
		case !wide && instr.Width == 8:
			// narrow destination of an 8-byte load: load i64, wrap
			s.op(0x29, 0x00)
			s.out = append(s.out, uleb(uint64(instr.Offset))...)
			s.op(0xa7)
			s.localSet(s.locals[instr.Dest])
			return nil
		case !wide && instr.Width == 4:
			s.op(0x28)
		case !wide && instr.Width == 2:
			s.op(0x2f)
		default:
			s.op(0x2d)
		}
		s.op(0x00) // alignment hint 1
		s.out = append(s.out, uleb(uint64(instr.Offset))...)
		s.localSet(s.locals[instr.Dest])
	case ir.StoreMem:
		s.push(instr.Addr, ir.I32)
		wide := valType(s.regTy(instr.Src)) == 0x7e
		if wide {
			s.push(instr.Src, ir.I64)
			switch instr.Width {
			case 8:
				s.op(0x37)
			case 4:
				s.op(0x3e)
			case 2:
				s.op(0x3d)
			default:
				s.op(0x3c)
			}
		} else {
			s.push(instr.Src, ir.I32)
			switch instr.Width {
			case 8:
				// widen a 4-byte register into an 8-byte cell
				s.op(0xad, 0x37)
			case 4:
				s.op(0x36)
			case 2:
				s.op(0x3b)
			default:
				s.op(0x3a)
			}
		}
		s.op(0x00)
		s.out = append(s.out, uleb(uint64(instr.Offset))...)
	case ir.CallFn:
		callee := s.findFunc(instr.Name)
		if callee == nil {
			return fmt.Errorf("call to unknown function %q", instr.Name)
		}
		for i, argument := range instr.Args {
			want := ir.I64
			if i < len(callee.Params) {
				want = callee.Params[i]
			}
			s.push(argument, want)
		}
		s.op(0x10)
		s.out = append(s.out, uleb(uint64(s.e.funcIndex[instr.Name]))...)
		for i := len(instr.Dests) - 1; i >= 0; i-- {
			produced := ir.I64
			if i < len(callee.Results) {
				produced = callee.Results[i]
			}
			s.popInto(instr.Dests[i], produced)
		}
		// drop ignored results
		for i := len(instr.Dests); i < len(callee.Results); i++ {
			s.op(0x1a)
		}
	case ir.CallImport:
		index, imported := s.findImport(instr.Name)
		if imported == nil {
			return fmt.Errorf("call to unknown import %q", instr.Name)
		}
		for i, argument := range instr.Args {
			want := ir.I32
			if i < len(imported.Params) {
				want = imported.Params[i]
			}
			s.push(argument, want)
		}
		s.op(0x10)
		s.out = append(s.out, uleb(uint64(index))...)
		for i := len(instr.Dests) - 1; i >= 0; i-- {
			produced := ir.I32
			if i < len(imported.Results) {
				produced = imported.Results[i]
			}
			s.popInto(instr.Dests[i], produced)
		}
		for i := len(instr.Dests); i < len(imported.Results); i++ {
			s.op(0x1a)
		}
	case ir.MemCopy:
		s.push(instr.Dest, ir.I32)
		s.push(instr.Src, ir.I32)
		s.push(instr.Len, ir.I32)
		s.op(0xfc, 0x0a, 0x00, 0x00) // memory.copy
	case ir.Alloc:
		// dest = heap; heap += align8(size)
		s.op(0x23, 0x00) // global.get 0
		s.localSet(s.locals[instr.Dest])
		s.op(0x23, 0x00)
		s.push(instr.Size, ir.I32)
		s.op(0x41, 0x07, 0x6a) // +7
		s.op(0x41, 0x78, 0x71) // & ~7 (sleb -8 is 0x78)
		s.op(0x6a)             // add
		s.op(0x24, 0x00)       // global.set 0
	case ir.Trap:
		s.op(0x00)
	default:
		return fmt.Errorf("unknown instruction %T", instruction)
	}
	return nil
}

func (s *bodyState) findFunc(name string) *ir.Func {
	for _, function := range s.e.module.Funcs {
		if function.Name == name {
			return function
		}
	}
	return nil
}

func (s *bodyState) findImport(name string) (int, *ir.Import) {
	for i, imported := range s.e.module.Imports {
		if imported.Name == name {
			return i, &imported
		}
	}
	return 0, nil
}
