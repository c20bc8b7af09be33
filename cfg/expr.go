package cfg

import (
	"math/big"

	"solang/sema"
)

// reference describes where an lvalue lives: a plain register, a
// storage slot (Base = slot value, Offset = packed byte offset) or a
// memory aggregate element (Base = aggregate, Index = element).
type reference struct {
	space  Space
	reg    int // valid when direct
	direct bool
	base   Value
	index  Value
	offset int
	ty     sema.Type
}

// expr lowers a typed expression, emitting instructions into the
// current block, and returns the operand holding the result.
func (builder *Builder) expr(expression sema.Expression) Value {
	graph := builder.graph
	switch e := expression.(type) {
	case *sema.NumberLiteral:
		ty := e.Ty
		if ty == nil {
			ty = sema.Uint{Width: 256}
		}
		return ConstInt{Value: e.Value, Ty: sema.Deref(ty)}
	case *sema.BoolLiteral:
		return ConstBool{Value: e.Value}
	case *sema.BytesLiteral:
		return ConstBytes{Value: e.Value, Ty: e.Ty}
	case *sema.StringLiteral:
		return ConstString{Value: e.Value}
	case *sema.AddressLiteral:
		return ConstBytes{Value: e.Value, Ty: sema.Address{}}
	case *sema.EnumLiteral:
		return ConstInt{Value: big.NewInt(int64(e.Variant)), Ty: sema.Enum{ID: e.Enum}}
	case *sema.Variable:
		return Reg{No: graph.Vars[e.No]}
	case *sema.Load:
		ref := builder.lvalue(e.Ref)
		return builder.loadRef(ref, e.Ty)
	case *sema.Assign:
		value := builder.expr(e.Value)
		ref := builder.lvalue(e.Target)
		builder.storeRef(ref, value)
		return value
	case *sema.Arithmetic:
		return builder.binop(arithKind(e.Op), e.Left, e.Right, e.Ty, true)
	case *sema.Bitwise:
		kinds := map[sema.BitOp]BinKind{sema.OpAnd: BinAnd, sema.OpOr: BinOr, sema.OpXor: BinXor}
		return builder.binop(kinds[e.Op], e.Left, e.Right, e.Ty, false)
	case *sema.Shift:
		kind := BinShr
		if e.Left {
			kind = BinShl
		}
		left := builder.expr(e.Value)
		right := builder.expr(e.Amount)
		dest := graph.NewReg(e.Ty)
		builder.emit(BinOp{Dest: dest, Op: kind, Left: left, Right: right, Ty: e.Ty})
		return Reg{No: dest}
	case *sema.Compare:
		kinds := map[sema.CompareOp]BinKind{
			sema.OpEq: BinEq, sema.OpNe: BinNe, sema.OpLt: BinLt,
			sema.OpLe: BinLe, sema.OpGt: BinGt, sema.OpGe: BinGe,
		}
		left := builder.expr(e.Left)
		right := builder.expr(e.Right)
		dest := graph.NewReg(sema.Bool{})
		builder.emit(BinOp{Dest: dest, Op: kinds[e.Op], Left: left, Right: right, Ty: sema.Deref(e.Left.Type())})
		return Reg{No: dest}
	case *sema.Logical:
		return builder.shortCircuit(e)
	case *sema.Not:
		value := builder.expr(e.Value)
		dest := graph.NewReg(sema.Bool{})
		builder.emit(UnOp{Dest: dest, Op: UnNot, Value: value, Ty: sema.Bool{}})
		return Reg{No: dest}
	case *sema.Complement:
		value := builder.expr(e.Value)
		dest := graph.NewReg(e.Ty)
		builder.emit(UnOp{Dest: dest, Op: UnCompl, Value: value, Ty: e.Ty})
		return Reg{No: dest}
	case *sema.Negate:
		value := builder.expr(e.Value)
		dest := graph.NewReg(e.Ty)
		builder.emit(UnOp{Dest: dest, Op: UnNeg, Value: value, Ty: e.Ty})
		return Reg{No: dest}
	case *sema.Ternary:
		return builder.ternary(e)
	case *sema.Cast:
		value := builder.expr(e.Value)
		from := sema.Deref(e.Value.Type())
		to := sema.Deref(e.Ty)
		if sema.Equal(from, to) {
			return value
		}
		dest := graph.NewReg(to)
		builder.emit(Cast{Dest: dest, Value: value, From: from, To: to})
		return Reg{No: dest}
	case *sema.PreIncDec:
		return builder.incDec(e.Target, e.Decrement, e.Ty, false)
	case *sema.PostIncDec:
		return builder.incDec(e.Target, e.Decrement, e.Ty, true)
	case *sema.FunctionCall:
		return builder.call(e)
	case *sema.ExternalCall:
		address := builder.expr(e.Address)
		arguments := make([]Value, len(e.Arguments))
		for i, argument := range e.Arguments {
			arguments[i] = builder.expr(argument)
		}
		dests := make([]int, len(e.Returns))
		for i, ret := range e.Returns {
			dests[i] = graph.NewReg(ret)
		}
		builder.emit(ExternalCall{Dests: dests, Address: address, Function: e.Function, Args: arguments})
		if len(dests) > 0 {
			return Reg{No: dests[0]}
		}
		return ConstBool{}
	case *sema.Builtin:
		return builder.builtin(e)
	case *sema.StructMember:
		ref := builder.memberRef(e)
		return builder.loadRef(ref, sema.Deref(e.Ty))
	case *sema.Subscript:
		ref := builder.subscriptRef(e)
		return builder.loadRef(ref, sema.Deref(e.Ty))
	case *sema.StorageVar:
		// bare storage reference in value position: its slot number
		variable := builder.ns.Contracts[e.Contract].Layout[e.Index]
		return ConstInt{Value: new(big.Int).SetUint64(variable.Slot), Ty: sema.Uint{Width: 256}}
	case *sema.StructLiteral:
		fields := make([]Value, len(e.Fields))
		for i, field := range e.Fields {
			fields[i] = builder.expr(field)
		}
		dest := graph.NewReg(e.Type())
		builder.emit(AllocArray{Dest: dest, Elements: fields, Ty: e.Type()})
		return Reg{No: dest}
	case *sema.ArrayLiteral:
		elements := make([]Value, len(e.Elements))
		for i, element := range e.Elements {
			elements[i] = builder.expr(element)
		}
		dest := graph.NewReg(e.Ty)
		builder.emit(AllocArray{Dest: dest, Elements: elements, Ty: e.Ty})
		return Reg{No: dest}
	case *sema.AllocDynamic:
		length := builder.expr(e.Length)
		dest := graph.NewReg(e.Ty)
		builder.emit(AllocDynamic{Dest: dest, Length: length, Ty: e.Ty})
		return Reg{No: dest}
	}
	return ConstBool{}
}

func arithKind(op sema.ArithOp) BinKind {
	switch op {
	case sema.OpAdd:
		return BinAdd
	case sema.OpSub:
		return BinSub
	case sema.OpMul:
		return BinMul
	case sema.OpDiv:
		return BinDiv
	case sema.OpMod:
		return BinMod
	}
	return BinPow
}

func (builder *Builder) binop(kind BinKind, left, right sema.Expression, ty sema.Type, checked bool) Value {
	leftValue := builder.expr(left)
	rightValue := builder.expr(right)
	dest := builder.graph.NewReg(ty)
	builder.emit(BinOp{Dest: dest, Op: kind, Left: leftValue, Right: rightValue, Ty: ty, Checked: checked})
	return Reg{No: dest}
}

// shortCircuit lowers && and ||: the right operand is evaluated in a
// fresh block and the result joined through a Set in the
// continuation.
func (builder *Builder) shortCircuit(expression *sema.Logical) Value {
	graph := builder.graph
	result := graph.NewReg(sema.Bool{})
	left := builder.expr(expression.Left)
	builder.emit(Set{Dest: result, Value: left})

	rightBlock := graph.NewBlock("rhs")
	joinBlock := graph.NewBlock("join")
	if expression.And {
		builder.terminate(CondBranch{Cond: left, True: rightBlock, False: joinBlock})
	} else {
		builder.terminate(CondBranch{Cond: left, True: joinBlock, False: rightBlock})
	}
	builder.open(rightBlock)
	right := builder.expr(expression.Right)
	builder.emit(Set{Dest: result, Value: right})
	builder.terminate(Branch{Block: joinBlock})
	builder.open(joinBlock)
	return Reg{No: result}
}

func (builder *Builder) ternary(expression *sema.Ternary) Value {
	graph := builder.graph
	result := graph.NewReg(expression.Ty)
	condition := builder.expr(expression.Condition)
	trueBlock := graph.NewBlock("then")
	falseBlock := graph.NewBlock("else")
	joinBlock := graph.NewBlock("join")
	builder.terminate(CondBranch{Cond: condition, True: trueBlock, False: falseBlock})
	builder.open(trueBlock)
	builder.emit(Set{Dest: result, Value: builder.expr(expression.True)})
	builder.terminate(Branch{Block: joinBlock})
	builder.open(falseBlock)
	builder.emit(Set{Dest: result, Value: builder.expr(expression.False)})
	builder.terminate(Branch{Block: joinBlock})
	builder.open(joinBlock)
	return Reg{No: result}
}

// incDec lowers ++/--; post variants yield the original value.
func (builder *Builder) incDec(target sema.Expression, decrement bool, ty sema.Type, post bool) Value {
	graph := builder.graph
	ref := builder.lvalue(target)
	current := builder.loadRef(ref, ty)
	kind := BinAdd
	if decrement {
		kind = BinSub
	}
	updated := graph.NewReg(ty)
	builder.emit(BinOp{Dest: updated, Op: kind, Left: current, Right: ConstInt{Value: big.NewInt(1), Ty: ty}, Ty: ty, Checked: true})
	builder.storeRef(ref, Reg{No: updated})
	if post {
		return current
	}
	return Reg{No: updated}
}

// call lowers an internal function call. Calls whose callee carries
// the inline hint are expanded in place; everything else becomes a
// Call instruction resolved by the code generator against the single
// canonical entry per (contract, signature).
func (builder *Builder) call(expression *sema.FunctionCall) Value {
	graph := builder.graph
	function := builder.ns.Functions[expression.Function]
	arguments := make([]Value, len(expression.Arguments))
	for i, argument := range expression.Arguments {
		arguments[i] = builder.expr(argument)
	}
	if function.InlineHint && (function.Visibility == sema.Internal || function.Visibility == sema.Private) {
		return builder.inline(function, arguments)
	}
	dests := make([]int, len(expression.Returns))
	for i, ret := range expression.Returns {
		dests[i] = graph.NewReg(ret)
	}
	builder.emit(Call{Dests: dests, Function: expression.Function, Args: arguments})
	if len(dests) > 0 {
		return Reg{No: dests[0]}
	}
	return ConstBool{}
}

// inline expands a small internal function at the call site: fresh
// registers for the callee's variable table, arguments copied in, and
// every Return rewritten as a branch to the continuation block.
func (builder *Builder) inline(function *sema.Function, arguments []Value) Value {
	graph := builder.graph

	saved := builder.graph.Vars
	savedFunction := builder.function
	savedExit := builder.exit

	vars := make([]int, len(function.Variables))
	for i, local := range function.Variables {
		vars[i] = graph.NewReg(local.Type)
	}
	for i, argument := range arguments {
		builder.emit(Set{Dest: vars[i], Value: argument})
	}

	graph.Vars = vars
	builder.function = function
	// returns flow into the callee's return slot registers via a
	// synthetic exit block
	builder.exit = graph.NewBlock("inlineexit")
	builder.statements(function.Body)
	if builder.reachable {
		builder.terminate(Branch{Block: builder.exit})
	}
	continuation := builder.exit

	graph.Vars = saved
	builder.function = savedFunction
	builder.exit = savedExit

	builder.open(continuation)
	if len(function.Returns) > 0 {
		return Reg{No: vars[len(function.Parameters)]}
	}
	return ConstBool{}
}

func (builder *Builder) builtin(expression *sema.Builtin) Value {
	graph := builder.graph
	switch expression.Kind {
	case sema.BuiltinArrayLength:
		array := expression.Arguments[0]
		if isStorageRef(array) {
			slot := builder.slotOf(array)
			dest := graph.NewReg(sema.Uint{Width: 256})
			builder.emit(Load{Dest: dest, Space: SpaceStorage, Base: slot, Ty: sema.Uint{Width: 256}})
			return Reg{No: dest}
		}
		value := builder.expr(array)
		dest := graph.NewReg(sema.Uint{Width: 256})
		builder.emit(Builtin{Dest: dest, Kind: expression.Kind, Args: []Value{value}, Ty: sema.Uint{Width: 256}})
		return Reg{No: dest}
	case sema.BuiltinArrayPush:
		array := expression.Arguments[0]
		var pushed Value
		if len(expression.Arguments) > 1 {
			pushed = builder.expr(expression.Arguments[1])
		}
		if isStorageRef(array) {
			builder.emit(Push{Space: SpaceStorage, Base: builder.slotOf(array), Value: pushed, Ty: sema.Deref(array.Type())})
		} else {
			builder.emit(Push{Space: SpaceMemory, Base: builder.expr(array), Value: pushed, Ty: sema.Deref(array.Type())})
		}
		return ConstBool{}
	case sema.BuiltinArrayPop:
		array := expression.Arguments[0]
		dest := graph.NewReg(expression.Ty)
		if isStorageRef(array) {
			builder.emit(Pop{Dest: dest, Space: SpaceStorage, Base: builder.slotOf(array), Ty: sema.Deref(array.Type())})
		} else {
			builder.emit(Pop{Dest: dest, Space: SpaceMemory, Base: builder.expr(array), Ty: sema.Deref(array.Type())})
		}
		return Reg{No: dest}
	case sema.BuiltinKeccak256:
		argument := builder.expr(expression.Arguments[0])
		dest := graph.NewReg(sema.Bytes{N: 32})
		builder.emit(Keccak{Dest: dest, Arg: argument})
		return Reg{No: dest}
	default:
		dest := graph.NewReg(expression.Ty)
		builder.emit(Builtin{Dest: dest, Kind: expression.Kind, Ty: expression.Ty})
		return Reg{No: dest}
	}
}

func isStorageRef(expression sema.Expression) bool {
	ref, ok := expression.Type().(sema.Ref)
	return ok && ref.Loc == sema.Storage
}

// lvalue resolves an assignable expression to a reference.
func (builder *Builder) lvalue(expression sema.Expression) reference {
	switch e := expression.(type) {
	case *sema.Variable:
		return reference{direct: true, reg: builder.graph.Vars[e.No], ty: sema.Deref(e.Ty)}
	case *sema.StorageVar:
		variable := builder.ns.Contracts[e.Contract].Layout[e.Index]
		return reference{
			space:  SpaceStorage,
			base:   ConstInt{Value: new(big.Int).SetUint64(variable.Slot), Ty: sema.Uint{Width: 256}},
			offset: variable.Offset,
			ty:     sema.Deref(variable.Type),
		}
	case *sema.Subscript:
		return builder.subscriptRef(e)
	case *sema.StructMember:
		return builder.memberRef(e)
	case *sema.Load:
		// assigning through an explicit load target: use its ref
		return builder.lvalue(e.Ref)
	}
	// not assignable; sema already diagnosed. A scratch register
	// keeps lowering going.
	return reference{direct: true, reg: builder.graph.NewReg(sema.Deref(expression.Type())), ty: sema.Deref(expression.Type())}
}

// slotOf computes the storage slot value of a storage reference
// expression, emitting the address arithmetic.
func (builder *Builder) slotOf(expression sema.Expression) Value {
	switch e := expression.(type) {
	case *sema.StorageVar:
		variable := builder.ns.Contracts[e.Contract].Layout[e.Index]
		return ConstInt{Value: new(big.Int).SetUint64(variable.Slot), Ty: sema.Uint{Width: 256}}
	case *sema.Subscript:
		ref := builder.subscriptRef(e)
		return ref.base
	case *sema.StructMember:
		ref := builder.memberRef(e)
		return ref.base
	}
	return ConstInt{Value: new(big.Int), Ty: sema.Uint{Width: 256}}
}

// subscriptRef computes the reference of arr[i] for storage arrays,
// mappings, memory aggregates and bytes values.
func (builder *Builder) subscriptRef(expression *sema.Subscript) reference {
	graph := builder.graph
	ns := builder.ns
	arrayType := sema.Deref(expression.Array.Type())

	switch t := arrayType.(type) {
	case sema.Mapping:
		base := builder.slotOf(expression.Array)
		key := builder.expr(expression.Index)
		dest := graph.NewReg(sema.Uint{Width: 256})
		builder.emit(MapSlot{Dest: dest, Base: base, Key: key, KeyTy: sema.Deref(t.Key)})
		return reference{space: SpaceStorage, base: Reg{No: dest}, ty: sema.Deref(t.Value)}
	case sema.Array:
		index := builder.expr(expression.Index)
		if isStorageRef(expression.Array) {
			base := builder.slotOf(expression.Array)
			if t.Length == nil {
				dest := graph.NewReg(sema.Uint{Width: 256})
				builder.emit(ArraySlot{Dest: dest, Base: base, Index: index})
				return reference{space: SpaceStorage, base: Reg{No: dest}, ty: sema.Deref(t.Element)}
			}
			// fixed array: slot = base + index * slots(element), with
			// a bounds check against the static length
			builder.boundsCheck(index, *t.Length)
			span := ns.SlotCount(t.Element)
			scaled := index
			if span != 1 {
				scaledReg := graph.NewReg(sema.Uint{Width: 256})
				builder.emit(BinOp{Dest: scaledReg, Op: BinMul, Left: index, Right: ConstInt{Value: new(big.Int).SetUint64(span), Ty: sema.Uint{Width: 256}}, Ty: sema.Uint{Width: 256}})
				scaled = Reg{No: scaledReg}
			}
			slotReg := graph.NewReg(sema.Uint{Width: 256})
			builder.emit(BinOp{Dest: slotReg, Op: BinAdd, Left: base, Right: scaled, Ty: sema.Uint{Width: 256}})
			return reference{space: SpaceStorage, base: Reg{No: slotReg}, ty: sema.Deref(t.Element)}
		}
		array := builder.expr(expression.Array)
		if t.Length != nil {
			builder.boundsCheck(index, *t.Length)
		}
		return reference{space: SpaceMemory, base: array, index: index, ty: sema.Deref(t.Element)}
	case sema.DynamicBytes:
		array := builder.expr(expression.Array)
		index := builder.expr(expression.Index)
		return reference{space: SpaceMemory, base: array, index: index, ty: sema.Bytes{N: 1}}
	case sema.Bytes:
		// extracting a byte of a bytesN value: read-only
		array := builder.expr(expression.Array)
		index := builder.expr(expression.Index)
		return reference{space: SpaceMemory, base: array, index: index, ty: sema.Bytes{N: 1}}
	}
	return reference{direct: true, reg: graph.NewReg(sema.Deref(expression.Ty)), ty: sema.Deref(expression.Ty)}
}

// boundsCheck traps when index >= length.
func (builder *Builder) boundsCheck(index Value, length uint64) {
	if constant, isConst := index.(ConstInt); isConst {
		if constant.Value.IsUint64() && constant.Value.Uint64() < length {
			return
		}
	}
	graph := builder.graph
	inRange := graph.NewReg(sema.Bool{})
	builder.emit(BinOp{Dest: inRange, Op: BinLt, Left: index, Right: ConstInt{Value: new(big.Int).SetUint64(length), Ty: sema.Uint{Width: 256}}, Ty: sema.Uint{Width: 256}})
	okBlock := graph.NewBlock("inbounds")
	failBlock := graph.NewBlock("outofbounds")
	builder.terminate(CondBranch{Cond: Reg{No: inRange}, True: okBlock, False: failBlock})
	builder.open(failBlock)
	builder.emit(AssertFailure{Kind: sema.RevertBounds})
	builder.terminate(Unreachable{})
	builder.open(okBlock)
}

// memberRef computes the reference of value.field for storage and
// memory structs.
func (builder *Builder) memberRef(expression *sema.StructMember) reference {
	graph := builder.graph
	ns := builder.ns
	structType, _ := sema.Deref(expression.Value.Type()).(sema.StructType)

	if isStorageRef(expression.Value) {
		base := builder.slotOf(expression.Value)
		offset := ns.FieldSlotOffset(structType.ID, expression.Field)
		slotReg := graph.NewReg(sema.Uint{Width: 256})
		builder.emit(BinOp{Dest: slotReg, Op: BinAdd, Left: base, Right: ConstInt{Value: new(big.Int).SetUint64(offset), Ty: sema.Uint{Width: 256}}, Ty: sema.Uint{Width: 256}})
		return reference{space: SpaceStorage, base: Reg{No: slotReg}, ty: sema.Deref(expression.Ty)}
	}
	value := builder.expr(expression.Value)
	return reference{
		space: SpaceMemory,
		base:  value,
		index: ConstInt{Value: big.NewInt(int64(expression.Field)), Ty: sema.Uint{Width: 256}},
		ty:    sema.Deref(expression.Ty),
	}
}

// loadRef reads a reference into a fresh register.
func (builder *Builder) loadRef(ref reference, ty sema.Type) Value {
	if ref.direct {
		return Reg{No: ref.reg}
	}
	dest := builder.graph.NewReg(sema.Deref(ty))
	builder.emit(Load{Dest: dest, Space: ref.space, Base: ref.base, Index: ref.index, Offset: ref.offset, Ty: sema.Deref(ty)})
	return Reg{No: dest}
}

// storeRef writes a value through a reference.
func (builder *Builder) storeRef(ref reference, value Value) {
	if ref.direct {
		builder.emit(Set{Dest: ref.reg, Value: value})
		return
	}
	builder.emit(Store{Space: ref.space, Base: ref.base, Index: ref.index, Offset: ref.offset, Value: value, Ty: ref.ty})
}
