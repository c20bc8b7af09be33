package cfg

import (
	"fmt"
	"math/big"
	"strings"

	"solang/sema"
)

// Interp executes control-flow graphs directly. It is the executor
// behind the debug target's Print instruction and the harness the
// optimizer tests use to check passes are semantics-preserving: run
// the graph before and after a pass and compare results, storage and
// output.
type Interp struct {
	ns     *sema.Namespace
	graphs map[int]*CFG

	// Storage is the mock storage of the debug target, keyed by slot
	// and intra-slot offset.
	Storage map[string]any

	// Output collects Print output.
	Output []string

	// host environment values
	Sender []byte
	Value  *big.Int
	Block  uint64
	Time   uint64
}

// Failure is a trap raised by AssertFailure or a checked operation.
type Failure struct {
	Kind   sema.RevertKind
	Reason string
}

func (f *Failure) Error() string {
	if f.Reason != "" {
		return fmt.Sprintf("execution reverted: %s", f.Reason)
	}
	return fmt.Sprintf("execution aborted (code %d)", f.Kind)
}

// NewInterp creates an interpreter over the given function graphs.
func NewInterp(ns *sema.Namespace, graphs map[int]*CFG) *Interp {
	return &Interp{
		ns:      ns,
		graphs:  graphs,
		Storage: make(map[string]any),
		Sender:  make([]byte, 20),
		Value:   new(big.Int),
	}
}

// Run executes one function graph with the given arguments and
// returns its return values.
func (interp *Interp) Run(functionID int, arguments ...any) ([]any, error) {
	graph, ok := interp.graphs[functionID]
	if !ok {
		return nil, fmt.Errorf("no graph for function %d", functionID)
	}
	registers := make([]any, len(graph.RegTypes))
	for i, argument := range arguments {
		registers[graph.Vars[i]] = argument
	}

	const maxSteps = 1 << 20
	block := 0
	for steps := 0; ; steps++ {
		if steps > maxSteps {
			return nil, fmt.Errorf("execution did not terminate")
		}
		current := graph.Blocks[block]
		for _, instruction := range current.Instrs {
			if err := interp.step(registers, instruction); err != nil {
				return nil, err
			}
		}
		switch term := current.Term.(type) {
		case Branch:
			block = term.Block
		case CondBranch:
			condition, _ := interp.operand(registers, term.Cond).(bool)
			if condition {
				block = term.True
			} else {
				block = term.False
			}
		case Return:
			results := make([]any, len(term.Values))
			for i, value := range term.Values {
				results[i] = interp.operand(registers, value)
			}
			return results, nil
		case Unreachable:
			return nil, fmt.Errorf("reached unreachable terminator")
		}
	}
}

func (interp *Interp) operand(registers []any, value Value) any {
	switch v := value.(type) {
	case Reg:
		return registers[v.No]
	case ConstInt:
		return new(big.Int).Set(v.Value)
	case ConstBool:
		return v.Value
	case ConstBytes:
		return append([]byte(nil), v.Value...)
	case ConstString:
		return v.Value
	}
	return nil
}

func (interp *Interp) step(registers []any, instruction Instruction) error {
	switch instr := instruction.(type) {
	case Set:
		registers[instr.Dest] = interp.operand(registers, instr.Value)
	case BinOp:
		return interp.stepBinOp(registers, instr)
	case UnOp:
		switch instr.Op {
		case UnNot:
			operand, _ := interp.operand(registers, instr.Value).(bool)
			registers[instr.Dest] = !operand
		case UnNeg:
			operand, _ := interp.operand(registers, instr.Value).(*big.Int)
			registers[instr.Dest] = wrap(new(big.Int).Neg(operand), instr.Ty)
		case UnCompl:
			operand, _ := interp.operand(registers, instr.Value).(*big.Int)
			mask := widthMask(instr.Ty)
			registers[instr.Dest] = new(big.Int).AndNot(mask, operand)
		}
	case Cast:
		registers[instr.Dest] = castValue(interp.operand(registers, instr.Value), instr.From, instr.To)
	case Load:
		if instr.Space == SpaceStorage {
			registers[instr.Dest] = interp.loadStorage(registers, instr)
			return nil
		}
		base := interp.operand(registers, instr.Base)
		index, _ := interp.operand(registers, instr.Index).(*big.Int)
		registers[instr.Dest] = indexAggregate(base, index)
	case Store:
		value := interp.operand(registers, instr.Value)
		if instr.Space == SpaceStorage {
			interp.Storage[interp.slotKey(registers, instr.Base, instr.Offset)] = value
			return nil
		}
		base := interp.operand(registers, instr.Base)
		index, _ := interp.operand(registers, instr.Index).(*big.Int)
		if aggregate, ok := base.([]any); ok && index != nil && index.IsUint64() && index.Uint64() < uint64(len(aggregate)) {
			aggregate[index.Uint64()] = value
		}
	case MapSlot:
		base := interp.operand(registers, instr.Base)
		key := interp.operand(registers, instr.Key)
		registers[instr.Dest] = syntheticSlot("map", base, key)
	case ArraySlot:
		base := interp.operand(registers, instr.Base)
		index := interp.operand(registers, instr.Index)
		registers[instr.Dest] = syntheticSlot("array", base, index)
	case Call:
		arguments := make([]any, len(instr.Args))
		for i, argument := range instr.Args {
			arguments[i] = interp.operand(registers, argument)
		}
		results, err := interp.Run(instr.Function, arguments...)
		if err != nil {
			return err
		}
		for i, dest := range instr.Dests {
			if i < len(results) {
				registers[dest] = results[i]
			}
		}
	case Emit:
		// events have no observable effect on the debug target
	case Keccak:
		// the debug target has no hash host; a fixed-width echo keeps
		// runs deterministic
		registers[instr.Dest] = []byte(fmt.Sprintf("%032v", interp.operand(registers, instr.Arg)))[:32]
	case AllocArray:
		elements := make([]any, len(instr.Elements))
		for i, element := range instr.Elements {
			elements[i] = interp.operand(registers, element)
		}
		registers[instr.Dest] = elements
	case AllocDynamic:
		length, _ := interp.operand(registers, instr.Length).(*big.Int)
		count := uint64(0)
		if length != nil && length.IsUint64() {
			count = length.Uint64()
		}
		elements := make([]any, count)
		for i := range elements {
			elements[i] = new(big.Int)
		}
		registers[instr.Dest] = elements
	case Builtin:
		switch instr.Kind {
		case sema.BuiltinMsgSender:
			registers[instr.Dest] = append([]byte(nil), interp.Sender...)
		case sema.BuiltinMsgValue:
			registers[instr.Dest] = new(big.Int).Set(interp.Value)
		case sema.BuiltinBlockNumber:
			registers[instr.Dest] = new(big.Int).SetUint64(interp.Block)
		case sema.BuiltinTimestamp:
			registers[instr.Dest] = new(big.Int).SetUint64(interp.Time)
		case sema.BuiltinArrayLength:
			if aggregate, ok := interp.operand(registers, instr.Args[0]).([]any); ok {
				registers[instr.Dest] = big.NewInt(int64(len(aggregate)))
			}
		}
	case Print:
		interp.Output = append(interp.Output, renderAny(interp.operand(registers, instr.Value)))
	case AssertFailure:
		failure := &Failure{Kind: instr.Kind}
		if instr.Reason != nil {
			if reason, ok := interp.operand(registers, instr.Reason).(string); ok {
				failure.Reason = reason
			}
		}
		return failure
	}
	return nil
}

func (interp *Interp) stepBinOp(registers []any, instr BinOp) error {
	leftAny := interp.operand(registers, instr.Left)
	rightAny := interp.operand(registers, instr.Right)

	if leftBool, ok := leftAny.(bool); ok {
		rightBool, _ := rightAny.(bool)
		switch instr.Op {
		case BinEq:
			registers[instr.Dest] = leftBool == rightBool
		case BinNe:
			registers[instr.Dest] = leftBool != rightBool
		}
		return nil
	}
	left := toInt(leftAny)
	right := toInt(rightAny)

	switch instr.Op {
	case BinEq, BinNe, BinLt, BinLe, BinGt, BinGe:
		comparison := left.Cmp(right)
		switch instr.Op {
		case BinEq:
			registers[instr.Dest] = comparison == 0
		case BinNe:
			registers[instr.Dest] = comparison != 0
		case BinLt:
			registers[instr.Dest] = comparison < 0
		case BinLe:
			registers[instr.Dest] = comparison <= 0
		case BinGt:
			registers[instr.Dest] = comparison > 0
		case BinGe:
			registers[instr.Dest] = comparison >= 0
		}
		return nil
	case BinDiv, BinMod:
		if right.Sign() == 0 {
			return &Failure{Kind: sema.RevertDivByZero}
		}
	}

	exact := exactResult(instr.Op, left, right)
	if exact == nil {
		switch instr.Op {
		case BinAnd:
			exact = new(big.Int).And(left, right)
		case BinOr:
			exact = new(big.Int).Or(left, right)
		case BinXor:
			exact = new(big.Int).Xor(left, right)
		default:
			return fmt.Errorf("cannot evaluate operation %v", instr.Op)
		}
	}
	if instr.Checked && !inRange(exact, instr.Ty) {
		return &Failure{Kind: sema.RevertOverflow}
	}
	registers[instr.Dest] = wrap(exact, instr.Ty)
	return nil
}

func (interp *Interp) slotKey(registers []any, base Value, offset int) string {
	return fmt.Sprintf("%s+%d", renderAny(interp.operand(registers, base)), offset)
}

func (interp *Interp) loadStorage(registers []any, instr Load) any {
	value, ok := interp.Storage[interp.slotKey(registers, instr.Base, instr.Offset)]
	if !ok {
		return zeroOf(instr.Ty)
	}
	return value
}

func syntheticSlot(kind string, base, key any) string {
	return fmt.Sprintf("%s(%s,%s)", kind, renderAny(base), renderAny(key))
}

func indexAggregate(base any, index *big.Int) any {
	aggregate, ok := base.([]any)
	if !ok || index == nil || !index.IsUint64() || index.Uint64() >= uint64(len(aggregate)) {
		return nil
	}
	return aggregate[index.Uint64()]
}

func toInt(value any) *big.Int {
	switch v := value.(type) {
	case *big.Int:
		return v
	case []byte:
		return new(big.Int).SetBytes(v)
	case string:
		// synthetic storage slots compare as opaque strings hashed
		// into integers
		sum := new(big.Int)
		for _, char := range v {
			sum.Mul(sum, big.NewInt(31))
			sum.Add(sum, big.NewInt(int64(char)))
		}
		return sum
	}
	return new(big.Int)
}

func wrap(value *big.Int, ty sema.Type) *big.Int {
	wrapped := new(big.Int).And(value, widthMask(ty))
	if isSignedType(ty) {
		width := typeBits(ty)
		if wrapped.Bit(width-1) == 1 {
			wrapped.Sub(wrapped, new(big.Int).Lsh(big.NewInt(1), uint(width)))
		}
	}
	return wrapped
}

// castValue applies the cast bit-pattern rules: integers extend and
// truncate on the high-order side, bytes on the low-order side.
func castValue(value any, from, to sema.Type) any {
	fromBytes, fromIsBytes := sema.Deref(from).(sema.Bytes)
	toBytes, toIsBytes := sema.Deref(to).(sema.Bytes)

	switch {
	case fromIsBytes && toIsBytes:
		raw, _ := value.([]byte)
		out := make([]byte, toBytes.N)
		copy(out, raw) // leading bytes preserved; pad or drop at the tail
		return out
	case fromIsBytes && !toIsBytes:
		// bytesN -> uintN reinterprets big-endian
		raw, _ := value.([]byte)
		return wrap(new(big.Int).SetBytes(raw), to)
	case !fromIsBytes && toIsBytes:
		integer := toInt(value)
		out := make([]byte, toBytes.N)
		integer.FillBytes(out)
		return out
	}

	if _, toAddress := sema.Deref(to).(sema.Address); toAddress {
		integer := toInt(value)
		out := make([]byte, 20)
		integer.FillBytes(out)
		return out
	}
	if raw, isRaw := value.([]byte); isRaw {
		return wrap(new(big.Int).SetBytes(raw), to)
	}
	return wrap(toInt(value), to)
}

func zeroOf(ty sema.Type) any {
	switch t := sema.Deref(ty).(type) {
	case sema.Bool:
		return false
	case sema.Bytes:
		return make([]byte, t.N)
	case sema.Address:
		return make([]byte, 20)
	case sema.String:
		return ""
	}
	return new(big.Int)
}

func renderAny(value any) string {
	switch v := value.(type) {
	case *big.Int:
		return v.String()
	case bool:
		return fmt.Sprintf("%t", v)
	case []byte:
		return fmt.Sprintf("%x", v)
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, element := range v {
			parts[i] = renderAny(element)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "<nil>"
}
