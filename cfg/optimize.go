package cfg

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"solang/sema"
)

// Passes is the fixed, named set of optimizer passes. Each is an
// idempotent CFG-to-CFG transform; Optimize runs them in this order
// to a fixed point, with a bounded iteration cap.
type Passes struct {
	ConstantFolding   bool
	StrengthReduction bool
	CommonSubexpr     bool
	VectorToSlice     bool
	DeadStorage       bool
}

// DefaultPasses enables every pass.
func DefaultPasses() Passes {
	return Passes{
		ConstantFolding:   true,
		StrengthReduction: true,
		CommonSubexpr:     true,
		VectorToSlice:     true,
		DeadStorage:       true,
	}
}

// NoPasses disables the optimizer.
func NoPasses() Passes { return Passes{} }

const maxRounds = 8

// Optimize runs the enabled passes over the graph.
func Optimize(graph *CFG, passes Passes) {
	for round := 0; round < maxRounds; round++ {
		changed := false
		if passes.ConstantFolding {
			changed = foldConstants(graph) || changed
		}
		if passes.StrengthReduction {
			changed = reduceStrength(graph) || changed
		}
		if passes.CommonSubexpr {
			changed = eliminateCommon(graph) || changed
		}
		if passes.VectorToSlice {
			changed = vectorToSlice(graph) || changed
		}
		if passes.DeadStorage {
			changed = eliminateDeadStores(graph) || changed
		}
		if !changed {
			return
		}
	}
}

// widthMask returns the modulus mask of an integer type's width.
func widthMask(ty sema.Type) *big.Int {
	width := typeBits(ty)
	mask := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return mask.Sub(mask, big.NewInt(1))
}

func typeBits(ty sema.Type) int {
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

func isSignedType(ty sema.Type) bool {
	_, signed := sema.Deref(ty).(sema.Int)
	return signed
}

// inRange reports whether a value fits the declared integer type.
func inRange(value *big.Int, ty sema.Type) bool {
	width := typeBits(ty)
	if isSignedType(ty) {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
		return value.Cmp(new(big.Int).Neg(limit)) >= 0 && value.Cmp(limit) < 0
	}
	return value.Sign() >= 0 && value.BitLen() <= width
}

// evalBinOp computes a binary operation over constants at the
// declared width. Unsigned arithmetic up to 256 bits runs on
// fixed-width uint256 words; signed folding falls back to big.Int
// with an explicit range check. Returns nil when folding must not
// happen (division by zero, checked overflow), so the runtime trap
// survives.
func evalBinOp(instr BinOp, left, right *big.Int) Value {
	ty := instr.Ty
	switch instr.Op {
	case BinEq, BinNe, BinLt, BinLe, BinGt, BinGe:
		comparison := left.Cmp(right)
		var result bool
		switch instr.Op {
		case BinEq:
			result = comparison == 0
		case BinNe:
			result = comparison != 0
		case BinLt:
			result = comparison < 0
		case BinLe:
			result = comparison <= 0
		case BinGt:
			result = comparison > 0
		case BinGe:
			result = comparison >= 0
		}
		return ConstBool{Value: result}
	}

	if instr.Checked {
		exact := exactResult(instr.Op, left, right)
		if exact == nil || !inRange(exact, ty) {
			return nil
		}
	}

	if !isSignedType(ty) && left.Sign() >= 0 && right.Sign() >= 0 {
		a, overflowA := uint256.FromBig(left)
		b, overflowB := uint256.FromBig(right)
		if overflowA || overflowB {
			return nil
		}
		result := new(uint256.Int)
		switch instr.Op {
		case BinAdd:
			result.Add(a, b)
		case BinSub:
			result.Sub(a, b)
		case BinMul:
			result.Mul(a, b)
		case BinDiv:
			if b.IsZero() {
				return nil
			}
			result.Div(a, b)
		case BinMod:
			if b.IsZero() {
				return nil
			}
			result.Mod(a, b)
		case BinPow:
			result.Exp(a, b)
		case BinAnd:
			result.And(a, b)
		case BinOr:
			result.Or(a, b)
		case BinXor:
			result.Xor(a, b)
		case BinShl:
			if !b.IsUint64() || b.Uint64() > 256 {
				return nil
			}
			result.Lsh(a, uint(b.Uint64()))
		case BinShr:
			if !b.IsUint64() || b.Uint64() > 256 {
				return nil
			}
			result.Rsh(a, uint(b.Uint64()))
		default:
			return nil
		}
		folded := result.ToBig()
		folded.And(folded, widthMask(ty))
		return ConstInt{Value: folded, Ty: sema.Deref(ty)}
	}

	// signed folding on exact integers, wrapped to width
	result := exactResult(instr.Op, left, right)
	if result == nil {
		switch instr.Op {
		case BinAnd:
			result = new(big.Int).And(left, right)
		case BinOr:
			result = new(big.Int).Or(left, right)
		case BinXor:
			result = new(big.Int).Xor(left, right)
		default:
			return nil
		}
	}
	if !inRange(result, ty) {
		if instr.Checked {
			return nil
		}
		result.And(result, widthMask(ty))
	}
	return ConstInt{Value: result, Ty: sema.Deref(ty)}
}

// exactResult computes the untruncated arithmetic result, or nil for
// operations that cannot fold (division by zero, huge exponents,
// non-arithmetic kinds).
func exactResult(op BinKind, left, right *big.Int) *big.Int {
	result := new(big.Int)
	switch op {
	case BinAdd:
		return result.Add(left, right)
	case BinSub:
		return result.Sub(left, right)
	case BinMul:
		return result.Mul(left, right)
	case BinDiv:
		if right.Sign() == 0 {
			return nil
		}
		return result.Quo(left, right)
	case BinMod:
		if right.Sign() == 0 {
			return nil
		}
		return result.Rem(left, right)
	case BinPow:
		if right.Sign() < 0 || !right.IsUint64() || right.Uint64() > 0xffff {
			return nil
		}
		return result.Exp(left, right, nil)
	case BinShl:
		if right.Sign() < 0 || !right.IsUint64() || right.Uint64() > 256 {
			return nil
		}
		return result.Lsh(left, uint(right.Uint64()))
	case BinShr:
		if right.Sign() < 0 || !right.IsUint64() || right.Uint64() > 256 {
			return nil
		}
		return result.Rsh(left, uint(right.Uint64()))
	}
	return nil
}

// foldConstants propagates constants block-locally and folds constant
// operations, replacing them with Set instructions.
func foldConstants(graph *CFG) bool {
	changed := false
	for _, block := range graph.Blocks {
		consts := make(map[int]Value)
		substitute := func(value Value) Value {
			if reg, isReg := value.(Reg); isReg {
				if constant, known := consts[reg.No]; known {
					return constant
				}
			}
			return value
		}
		for i, instruction := range block.Instrs {
			switch instr := instruction.(type) {
			case Set:
				instr.Value = substitute(instr.Value)
				block.Instrs[i] = instr
				if isConst(instr.Value) {
					consts[instr.Dest] = instr.Value
				} else {
					delete(consts, instr.Dest)
				}
			case BinOp:
				substituted := false
				if replacement := substitute(instr.Left); !sameValue(replacement, instr.Left) {
					instr.Left = replacement
					substituted = true
				}
				if replacement := substitute(instr.Right); !sameValue(replacement, instr.Right) {
					instr.Right = replacement
					substituted = true
				}
				if leftConst, okLeft := instr.Left.(ConstInt); okLeft {
					if rightConst, okRight := instr.Right.(ConstInt); okRight {
						if folded := evalBinOp(instr, leftConst.Value, rightConst.Value); folded != nil {
							block.Instrs[i] = Set{Dest: instr.Dest, Value: folded}
							consts[instr.Dest] = folded
							changed = true
							continue
						}
					}
				}
				if leftBool, okLeft := instr.Left.(ConstBool); okLeft {
					if rightBool, okRight := instr.Right.(ConstBool); okRight && (instr.Op == BinEq || instr.Op == BinNe) {
						folded := ConstBool{Value: (leftBool.Value == rightBool.Value) == (instr.Op == BinEq)}
						block.Instrs[i] = Set{Dest: instr.Dest, Value: folded}
						consts[instr.Dest] = folded
						changed = true
						continue
					}
				}
				block.Instrs[i] = instr
				if substituted {
					changed = true
				}
				delete(consts, instr.Dest)
			case UnOp:
				instr.Value = substitute(instr.Value)
				if constant, okBool := instr.Value.(ConstBool); okBool && instr.Op == UnNot {
					folded := ConstBool{Value: !constant.Value}
					block.Instrs[i] = Set{Dest: instr.Dest, Value: folded}
					consts[instr.Dest] = folded
					changed = true
					continue
				}
				if constant, okInt := instr.Value.(ConstInt); okInt && instr.Op == UnNeg {
					negated := new(big.Int).Neg(constant.Value)
					if inRange(negated, instr.Ty) {
						folded := ConstInt{Value: negated, Ty: sema.Deref(instr.Ty)}
						block.Instrs[i] = Set{Dest: instr.Dest, Value: folded}
						consts[instr.Dest] = folded
						changed = true
						continue
					}
				}
				block.Instrs[i] = instr
				delete(consts, instr.Dest)
			default:
				forEachDest(instruction, func(dest int) {
					delete(consts, dest)
				})
			}
		}
		// a constant branch condition folds the terminator
		if cond, isCond := block.Term.(CondBranch); isCond {
			resolved := substitute(cond.Cond)
			if constant, known := resolved.(ConstBool); known {
				target := cond.False
				if constant.Value {
					target = cond.True
				}
				block.Term = Branch{Block: target}
				changed = true
			} else if !sameValue(resolved, cond.Cond) {
				cond.Cond = resolved
				block.Term = cond
				changed = true
			}
		}
	}
	return changed
}

// sameValue compares operands without tripping over incomparable
// dynamic types; registers compare by number, everything else only by
// identity of the substitution.
func sameValue(a, b Value) bool {
	regA, okA := a.(Reg)
	regB, okB := b.(Reg)
	if okA && okB {
		return regA.No == regB.No
	}
	return okA == okB
}

func isConst(value Value) bool {
	switch value.(type) {
	case ConstInt, ConstBool, ConstBytes, ConstString:
		return true
	}
	return false
}

// forEachDest visits every register an instruction defines.
func forEachDest(instruction Instruction, visit func(int)) {
	switch instr := instruction.(type) {
	case Set:
		visit(instr.Dest)
	case BinOp:
		visit(instr.Dest)
	case UnOp:
		visit(instr.Dest)
	case Cast:
		visit(instr.Dest)
	case Load:
		visit(instr.Dest)
	case MapSlot:
		visit(instr.Dest)
	case ArraySlot:
		visit(instr.Dest)
	case Builtin:
		visit(instr.Dest)
	case Keccak:
		visit(instr.Dest)
	case AllocArray:
		visit(instr.Dest)
	case AllocDynamic:
		visit(instr.Dest)
	case Pop:
		visit(instr.Dest)
	case AbiEncode:
		visit(instr.Dest)
	case Call:
		for _, dest := range instr.Dests {
			visit(dest)
		}
	case ExternalCall:
		for _, dest := range instr.Dests {
			visit(dest)
		}
	case AbiDecode:
		for _, dest := range instr.Dests {
			visit(dest)
		}
	}
}

// reduceStrength rewrites multiplications and divisions by powers of
// two into shifts, and modulo by a power of two into a mask.
func reduceStrength(graph *CFG) bool {
	changed := false
	for _, block := range graph.Blocks {
		for i, instruction := range block.Instrs {
			instr, isBinOp := instruction.(BinOp)
			if !isBinOp || isSignedType(instr.Ty) {
				continue
			}
			constant, isConstRight := instr.Right.(ConstInt)
			if !isConstRight || constant.Value.Sign() <= 0 {
				continue
			}
			if !isPowerOfTwo(constant.Value) {
				continue
			}
			shift := big.NewInt(int64(constant.Value.BitLen() - 1))
			switch instr.Op {
			case BinMul:
				block.Instrs[i] = BinOp{Dest: instr.Dest, Op: BinShl, Left: instr.Left, Right: ConstInt{Value: shift, Ty: instr.Ty}, Ty: instr.Ty, Checked: instr.Checked}
				changed = true
			case BinDiv:
				block.Instrs[i] = BinOp{Dest: instr.Dest, Op: BinShr, Left: instr.Left, Right: ConstInt{Value: shift, Ty: instr.Ty}, Ty: instr.Ty}
				changed = true
			case BinMod:
				mask := new(big.Int).Sub(constant.Value, big.NewInt(1))
				block.Instrs[i] = BinOp{Dest: instr.Dest, Op: BinAnd, Left: instr.Left, Right: ConstInt{Value: mask, Ty: instr.Ty}, Ty: instr.Ty}
				changed = true
			}
		}
	}
	return changed
}

func isPowerOfTwo(value *big.Int) bool {
	if value.Sign() <= 0 {
		return false
	}
	probe := new(big.Int).Sub(value, big.NewInt(1))
	return probe.And(probe, value).Sign() == 0
}

// eliminateCommon removes repeated pure computations. Availability is
// block-local, extended into blocks with a unique predecessor, which
// is the cheap part of dominance. An expression dies when any
// register it reads (or defines) is reassigned.
func eliminateCommon(graph *CFG) bool {
	predecessors := make(map[int][]int)
	for from, block := range graph.Blocks {
		switch term := block.Term.(type) {
		case Branch:
			predecessors[term.Block] = append(predecessors[term.Block], from)
		case CondBranch:
			predecessors[term.True] = append(predecessors[term.True], from)
			predecessors[term.False] = append(predecessors[term.False], from)
		}
	}

	type available struct {
		dest        int
		left, right Value
	}

	changed := false
	blockExprs := make(map[int]map[string]available)

	usesReg := func(value Value, reg int) bool {
		r, ok := value.(Reg)
		return ok && r.No == reg
	}

	for index, block := range graph.Blocks {
		expressions := make(map[string]available)
		if preds := predecessors[index]; len(preds) == 1 && preds[0] < index {
			for key, entry := range blockExprs[preds[0]] {
				expressions[key] = entry
			}
		}
		kill := func(reg int) {
			for key, entry := range expressions {
				if entry.dest == reg || usesReg(entry.left, reg) || usesReg(entry.right, reg) {
					delete(expressions, key)
				}
			}
		}
		for i, instruction := range block.Instrs {
			instr, isBinOp := instruction.(BinOp)
			if !isBinOp {
				forEachDest(instruction, kill)
				continue
			}
			key := fmt.Sprintf("%s|%s|%s|%v", instr.Op, renderValue(instr.Left), renderValue(instr.Right), instr.Ty)
			if previous, seen := expressions[key]; seen && previous.dest != instr.Dest {
				block.Instrs[i] = Set{Dest: instr.Dest, Value: Reg{No: previous.dest}}
				changed = true
				kill(instr.Dest)
				continue
			}
			kill(instr.Dest)
			expressions[key] = available{dest: instr.Dest, left: instr.Left, right: instr.Right}
		}
		blockExprs[index] = expressions
	}
	return changed
}

// vectorToSlice bypasses the allocation of a temporary array literal
// that only feeds constant-index loads: the element value is used
// directly and, when nothing else reads the array, the allocation is
// dropped.
func vectorToSlice(graph *CFG) bool {
	// count uses of every AllocArray result
	uses := make(map[int]int)
	for _, block := range graph.Blocks {
		for _, instruction := range block.Instrs {
			forEachUse(instruction, func(value Value) {
				if reg, isReg := value.(Reg); isReg {
					uses[reg.No]++
				}
			})
		}
		forEachTermUse(block.Term, func(value Value) {
			if reg, isReg := value.(Reg); isReg {
				uses[reg.No]++
			}
		})
	}

	allocs := make(map[int]AllocArray)
	for _, block := range graph.Blocks {
		for _, instruction := range block.Instrs {
			if alloc, isAlloc := instruction.(AllocArray); isAlloc {
				allocs[alloc.Dest] = alloc
			}
		}
	}

	changed := false
	for _, block := range graph.Blocks {
		for i, instruction := range block.Instrs {
			load, isLoad := instruction.(Load)
			if !isLoad || load.Space != SpaceMemory {
				continue
			}
			base, isReg := load.Base.(Reg)
			if !isReg {
				continue
			}
			alloc, isAlloc := allocs[base.No]
			if !isAlloc {
				continue
			}
			index, isConst := load.Index.(ConstInt)
			if !isConst || !index.Value.IsUint64() || index.Value.Uint64() >= uint64(len(alloc.Elements)) {
				continue
			}
			block.Instrs[i] = Set{Dest: load.Dest, Value: alloc.Elements[index.Value.Uint64()]}
			uses[base.No]--
			changed = true
		}
	}

	// drop allocations nothing reads anymore
	for _, block := range graph.Blocks {
		kept := block.Instrs[:0]
		for _, instruction := range block.Instrs {
			if alloc, isAlloc := instruction.(AllocArray); isAlloc && uses[alloc.Dest] == 0 {
				changed = true
				continue
			}
			kept = append(kept, instruction)
		}
		block.Instrs = kept
	}
	return changed
}

// forEachUse visits every operand an instruction reads.
func forEachUse(instruction Instruction, visit func(Value)) {
	switch instr := instruction.(type) {
	case Set:
		visit(instr.Value)
	case BinOp:
		visit(instr.Left)
		visit(instr.Right)
	case UnOp:
		visit(instr.Value)
	case Cast:
		visit(instr.Value)
	case Load:
		visit(instr.Base)
		if instr.Index != nil {
			visit(instr.Index)
		}
	case Store:
		visit(instr.Base)
		if instr.Index != nil {
			visit(instr.Index)
		}
		visit(instr.Value)
	case MapSlot:
		visit(instr.Base)
		visit(instr.Key)
	case ArraySlot:
		visit(instr.Base)
		visit(instr.Index)
	case Call:
		for _, argument := range instr.Args {
			visit(argument)
		}
	case ExternalCall:
		visit(instr.Address)
		for _, argument := range instr.Args {
			visit(argument)
		}
	case Emit:
		for _, argument := range instr.Args {
			visit(argument)
		}
	case AbiEncode:
		for _, argument := range instr.Args {
			visit(argument)
		}
	case AbiDecode:
		visit(instr.Buffer)
	case Keccak:
		visit(instr.Arg)
	case AllocArray:
		for _, element := range instr.Elements {
			visit(element)
		}
	case AllocDynamic:
		visit(instr.Length)
	case Builtin:
		for _, argument := range instr.Args {
			visit(argument)
		}
	case Push:
		visit(instr.Base)
		if instr.Value != nil {
			visit(instr.Value)
		}
	case Pop:
		visit(instr.Base)
	case Print:
		visit(instr.Value)
	case AssertFailure:
		if instr.Reason != nil {
			visit(instr.Reason)
		}
	}
}

func forEachTermUse(terminator Terminator, visit func(Value)) {
	switch term := terminator.(type) {
	case CondBranch:
		visit(term.Cond)
	case Return:
		for _, value := range term.Values {
			visit(value)
		}
	}
}

// eliminateDeadStores drops a storage write that is overwritten by a
// later write to the same slot and offset in the same block, with no
// intervening read, call or hashing of storage.
func eliminateDeadStores(graph *CFG) bool {
	changed := false
	for _, block := range graph.Blocks {
		// pending maps slot key to the instruction index of the last
		// unobserved store
		pending := make(map[string]int)
		drop := make(map[int]bool)
		barrier := func() {
			pending = make(map[string]int)
		}
		for i, instruction := range block.Instrs {
			switch instr := instruction.(type) {
			case Store:
				if instr.Space != SpaceStorage {
					continue
				}
				constant, isConst := instr.Base.(ConstInt)
				if !isConst {
					barrier()
					continue
				}
				key := fmt.Sprintf("%s+%d", constant.Value, instr.Offset)
				if previous, dead := pending[key]; dead {
					drop[previous] = true
					changed = true
				}
				pending[key] = i
			case Load:
				if instr.Space == SpaceStorage {
					barrier()
				}
			case Call, ExternalCall, Push, Pop, MapSlot, ArraySlot, Emit:
				barrier()
			}
		}
		if len(drop) > 0 {
			kept := block.Instrs[:0]
			for i, instruction := range block.Instrs {
				if drop[i] {
					continue
				}
				kept = append(kept, instruction)
			}
			block.Instrs = kept
		}
	}
	return changed
}
