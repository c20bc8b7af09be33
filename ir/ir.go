// Package ir is the backend intermediate representation: a module of
// functions over typed virtual registers, close enough to WebAssembly
// that the wasm encoder maps registers to locals one to one, and
// rendered textually for --emit llvm-ir. Modules are generated from
// the Namespace and may outlive it.
package ir

import (
	"fmt"
	"strings"
)

// Ty is a machine-level value type.
type Ty int

const (
	I32 Ty = iota
	I64
	Ptr // pointer into linear memory, i32 at encoding time
)

func (t Ty) String() string {
	switch t {
	case I64:
		return "i64"
	case Ptr:
		return "ptr"
	}
	return "i32"
}

// Import is a host function the module requires.
type Import struct {
	Module  string
	Name    string
	Params  []Ty
	Results []Ty
}

// Data is one pre-initialized linear memory segment.
type Data struct {
	Offset uint32
	Bytes  []byte
}

// Module is one per-contract compilation result.
type Module struct {
	Name    string
	Imports []Import
	Funcs   []*Func
	Data    []Data

	// Exports maps export names to function names.
	Exports map[string]string

	// HeapBase is the first free byte after static data; the bump
	// allocator global starts here.
	HeapBase uint32
}

// Func is one function of registers and basic blocks. Registers
// 0..len(Params)-1 are the parameters.
type Func struct {
	Name    string
	Params  []Ty
	Results []Ty
	Regs    []Ty
	Blocks  []*Block
}

// NewReg allocates a register.
func (f *Func) NewReg(ty Ty) int {
	f.Regs = append(f.Regs, ty)
	return len(f.Regs) - 1
}

// NewBlock appends an empty block.
func (f *Func) NewBlock() *Block {
	block := &Block{ID: len(f.Blocks)}
	f.Blocks = append(f.Blocks, block)
	return block
}

// Block is a basic block of instructions ending in a terminator.
type Block struct {
	ID     int
	Instrs []Instr
	Term   Term
}

// Op enumerates the machine operations.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDivU
	OpDivS
	OpRemU
	OpRemS
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShrU
	OpShrS
	OpEq
	OpNe
	OpLtU
	OpLtS
	OpLeU
	OpLeS
	OpGtU
	OpGtS
	OpGeU
	OpGeS
	OpEqz
)

var opNames = map[Op]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul",
	OpDivU: "div_u", OpDivS: "div_s", OpRemU: "rem_u", OpRemS: "rem_s",
	OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpShl: "shl", OpShrU: "shr_u", OpShrS: "shr_s",
	OpEq: "eq", OpNe: "ne",
	OpLtU: "lt_u", OpLtS: "lt_s", OpLeU: "le_u", OpLeS: "le_s",
	OpGtU: "gt_u", OpGtS: "gt_s", OpGeU: "ge_u", OpGeS: "ge_s",
	OpEqz: "eqz",
}

// Instr is the closed instruction variant.
type Instr interface {
	instr()
}

// Const loads an immediate.
type Const struct {
	Dest  int
	Ty    Ty
	Value int64
}

// Bin is Dest = Left op Right.
type Bin struct {
	Dest int
	Ty   Ty
	Op   Op
	L, R int
}

// Un is Dest = op Value (eqz).
type Un struct {
	Dest  int
	Ty    Ty
	Op    Op
	Value int
}

// Copy moves a register.
type Copy struct {
	Dest, Src int
}

// LoadMem reads Width bytes (1, 2, 4 or 8) little-endian from
// Addr+Offset.
type LoadMem struct {
	Dest   int
	Ty     Ty
	Addr   int
	Offset uint32
	Width  int
}

// StoreMem writes Width bytes of Src to Addr+Offset.
type StoreMem struct {
	Src    int
	Ty     Ty
	Addr   int
	Offset uint32
	Width  int
}

// CallFn invokes a module-local function.
type CallFn struct {
	Dests []int
	Name  string
	Args  []int
}

// CallImport invokes a host import.
type CallImport struct {
	Dests []int
	Name  string // import name within the module
	Args  []int
}

// MemCopy copies Len bytes from Src to Dest addresses.
type MemCopy struct {
	Dest, Src, Len int
}

// Alloc bumps the heap pointer by Size (a register) and yields the
// old heap pointer.
type Alloc struct {
	Dest int
	Size int
}

// Trap aborts execution.
type Trap struct{}

func (Const) instr()      {}
func (Bin) instr()        {}
func (Un) instr()         {}
func (Copy) instr()       {}
func (LoadMem) instr()    {}
func (StoreMem) instr()   {}
func (CallFn) instr()     {}
func (CallImport) instr() {}
func (MemCopy) instr()    {}
func (Alloc) instr()      {}
func (Trap) instr()       {}

// Term is a block terminator.
type Term interface {
	term()
}

type Br struct {
	Block int
}

type BrIf struct {
	Cond        int
	True, False int
}

type Ret struct {
	Values []int
}

type Unreachable struct{}

func (Br) term()          {}
func (BrIf) term()        {}
func (Ret) term()         {}
func (Unreachable) term() {}

// Render prints the module in a readable SSA-style text form. The
// rendering is deterministic: the same namespace always produces
// byte-identical output.
func (m *Module) Render() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "; module %s\n", m.Name)
	for _, imported := range m.Imports {
		fmt.Fprintf(&builder, "declare %s.%s(%d) -> %d\n", imported.Module, imported.Name, len(imported.Params), len(imported.Results))
	}
	for _, data := range m.Data {
		fmt.Fprintf(&builder, "data @%d = %x\n", data.Offset, data.Bytes)
	}
	for _, function := range m.Funcs {
		fmt.Fprintf(&builder, "\ndefine %s(", function.Name)
		for i, param := range function.Params {
			if i > 0 {
				builder.WriteString(", ")
			}
			fmt.Fprintf(&builder, "%s %%%d", param, i)
		}
		builder.WriteString(") {\n")
		for _, block := range function.Blocks {
			fmt.Fprintf(&builder, "b%d:\n", block.ID)
			for _, instruction := range block.Instrs {
				fmt.Fprintf(&builder, "\t%s\n", renderInstr(instruction))
			}
			fmt.Fprintf(&builder, "\t%s\n", renderTerm(block.Term))
		}
		builder.WriteString("}\n")
	}
	return builder.String()
}

func regs(list []int) string {
	parts := make([]string, len(list))
	for i, register := range list {
		parts[i] = fmt.Sprintf("%%%d", register)
	}
	return strings.Join(parts, ", ")
}

func renderInstr(instruction Instr) string {
	switch instr := instruction.(type) {
	case Const:
		return fmt.Sprintf("%%%d = %s.const %d", instr.Dest, instr.Ty, instr.Value)
	case Bin:
		return fmt.Sprintf("%%%d = %s.%s %%%d, %%%d", instr.Dest, instr.Ty, opNames[instr.Op], instr.L, instr.R)
	case Un:
		return fmt.Sprintf("%%%d = %s.%s %%%d", instr.Dest, instr.Ty, opNames[instr.Op], instr.Value)
	case Copy:
		return fmt.Sprintf("%%%d = %%%d", instr.Dest, instr.Src)
	case LoadMem:
		return fmt.Sprintf("%%%d = load%d %%%d+%d", instr.Dest, instr.Width*8, instr.Addr, instr.Offset)
	case StoreMem:
		return fmt.Sprintf("store%d %%%d+%d = %%%d", instr.Width*8, instr.Addr, instr.Offset, instr.Src)
	case CallFn:
		return fmt.Sprintf("[%s] = call %s(%s)", regs(instr.Dests), instr.Name, regs(instr.Args))
	case CallImport:
		return fmt.Sprintf("[%s] = call.host %s(%s)", regs(instr.Dests), instr.Name, regs(instr.Args))
	case MemCopy:
		return fmt.Sprintf("memcpy %%%d <- %%%d, %%%d", instr.Dest, instr.Src, instr.Len)
	case Alloc:
		return fmt.Sprintf("%%%d = alloc %%%d", instr.Dest, instr.Size)
	case Trap:
		return "trap"
	}
	return "?"
}

func renderTerm(terminator Term) string {
	switch term := terminator.(type) {
	case Br:
		return fmt.Sprintf("br b%d", term.Block)
	case BrIf:
		return fmt.Sprintf("br_if %%%d, b%d, b%d", term.Cond, term.True, term.False)
	case Ret:
		return fmt.Sprintf("ret %s", regs(term.Values))
	case Unreachable:
		return "unreachable"
	}
	return "?"
}
