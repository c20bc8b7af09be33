package sema

import (
	"math/big"

	"solang/ast"
	"solang/token"
)

// bodyContext carries the state of one body resolution: the scope
// chain of local variables, the enclosing function, and the effect
// flags used to enforce mutability.
type bodyContext struct {
	ns       *Namespace
	unit     int
	contract int
	function *Function

	scopes    []map[string]int
	loopDepth int

	readsState  bool
	writesState bool
}

func (ns *Namespace) bodyContext(unit, contract int, function *Function) *bodyContext {
	return &bodyContext{
		ns:       ns,
		unit:     unit,
		contract: contract,
		function: function,
		scopes:   []map[string]int{make(map[string]int)},
	}
}

func (context *bodyContext) push() { context.scopes = append(context.scopes, make(map[string]int)) }
func (context *bodyContext) pop()  { context.scopes = context.scopes[:len(context.scopes)-1] }
func (context *bodyContext) errorAt(span token.Span) Expression {
	return &Error{Loc: span}
}

// declareLocal adds a slot to the function's variable table and binds
// the name in the innermost scope.
func (context *bodyContext) declareLocal(name string, ty Type, span token.Span) int {
	no := len(context.function.Variables)
	context.function.Variables = append(context.function.Variables, LocalVariable{Name: name, Type: ty, Loc: span})
	if name != "" {
		context.scopes[len(context.scopes)-1][name] = no
	}
	return no
}

func (context *bodyContext) lookupLocal(name string) (int, bool) {
	for i := len(context.scopes) - 1; i >= 0; i-- {
		if no, ok := context.scopes[i][name]; ok {
			return no, true
		}
	}
	return 0, false
}

// resolveExpression resolves one parsed expression to a typed
// expression. When expected is non-nil the expression is implicitly
// converted to it (and literals are pinned against it); a failure
// produces an Error node and a diagnostic, and resolution continues.
func (context *bodyContext) resolveExpression(node ast.Expression, expected Type) Expression {
	resolved := context.resolveWithExpected(node, expected)
	if _, failed := resolved.(*Error); failed {
		return resolved
	}
	if expected != nil {
		return context.convert(resolved, expected, false)
	}
	return resolved
}

// resolveWithExpected defers to resolve; array literals peek at the
// expected type so their elements pin against the declared element
// type instead of the literal default.
func (context *bodyContext) resolveWithExpected(node ast.Expression, expected Type) Expression {
	if literal, isArray := node.(*ast.ArrayLiteral); isArray && expected != nil {
		if array, isArrayType := Deref(expected).(Array); isArrayType {
			return context.resolveArrayLiteralAs(literal, array.Element)
		}
	}
	return context.resolve(node)
}

// convert coerces an expression to a destination type, implicitly or
// explicitly. Unpinned literals are pinned against the destination
// with a range check.
func (context *bodyContext) convert(expression Expression, to Type, explicit bool) Expression {
	ns := context.ns
	if literal, ok := expression.(*NumberLiteral); ok && literal.Ty == nil {
		return ns.pinLiteral(literal, to)
	}
	from := expression.Type()
	// reading through a reference yields the value type, unless the
	// destination wants a reference too (storage parameters)
	if ref, isRef := from.(Ref); isRef {
		if _, wantRef := to.(Ref); !wantRef {
			if _, isMapping := ref.Inner.(Mapping); !isMapping {
				expression = &Load{Ref: expression, Ty: ref.Inner}
				context.noteRead(ref)
				from = ref.Inner
			}
		}
	}
	if Equal(Deref(from), Deref(to)) {
		return expression
	}
	if explicit {
		if !explicitOK(from, to) {
			ns.Diagnostics.Errorf(expression.Span(), "no cast exists from '%s' to '%s'; length and category changes are separate casts",
				ns.TypeString(from), ns.TypeString(to))
			return context.errorAt(expression.Span())
		}
		return &Cast{Value: expression, Ty: Deref(to), Explicit: true}
	}
	if !implicitOK(from, to) {
		message := "cannot implicitly convert '%s' to '%s'"
		if isInteger(from) && isInteger(to) {
			if isSigned(from) != isSigned(to) {
				message = "implicit conversion between '%s' and '%s' changes sign"
			} else if bits(from) > bits(to) {
				message = "implicit conversion from '%s' to '%s' would truncate"
			}
		}
		ns.Diagnostics.Errorf(expression.Span(), message, ns.TypeString(from), ns.TypeString(to))
		return context.errorAt(expression.Span())
	}
	return &Cast{Value: expression, Ty: Deref(to)}
}

func (context *bodyContext) noteRead(ty Type) {
	if ref, ok := ty.(Ref); ok && ref.Loc == Storage {
		context.readsState = true
	}
}

// loadIfRef wraps storage or memory references in a Load so the
// expression yields a value.
func (context *bodyContext) loadIfRef(expression Expression) Expression {
	if ref, ok := expression.Type().(Ref); ok {
		switch Deref(expression.Type()).(type) {
		case Mapping:
			return expression
		}
		context.noteRead(expression.Type())
		return &Load{Ref: expression, Ty: ref.Inner}
	}
	return expression
}

func (context *bodyContext) resolve(node ast.Expression) Expression {
	ns := context.ns
	switch expression := node.(type) {
	case *ast.NumberLiteral:
		base := 10
		if expression.Hex {
			base = 16
		}
		value, ok := new(big.Int).SetString(expression.Digits, base)
		if !ok {
			ns.Diagnostics.Errorf(expression.Loc, "malformed number literal")
			return context.errorAt(expression.Loc)
		}
		return &NumberLiteral{Value: value, Loc: expression.Loc}
	case *ast.BoolLiteral:
		return &BoolLiteral{Value: expression.Value, Loc: expression.Loc}
	case *ast.StringLiteral:
		return &StringLiteral{Value: expression.Value, Loc: expression.Loc}
	case *ast.HexLiteral:
		ty := Type(DynamicBytes{})
		if len(expression.Value) >= 1 && len(expression.Value) <= 32 {
			ty = Bytes{N: len(expression.Value)}
		}
		return &BytesLiteral{Value: expression.Value, Ty: ty, Loc: expression.Loc}
	case *ast.AddressLiteral:
		return &AddressLiteral{Value: expression.Value, Loc: expression.Loc}
	case *ast.Identifier:
		return context.resolveIdentifier(expression)
	case *ast.TypeExpression:
		ns.Diagnostics.Errorf(expression.Span(), "type name is not a value")
		return context.errorAt(expression.Span())
	case *ast.Unary:
		return context.resolveUnary(expression)
	case *ast.Postfix:
		target := context.resolveLvalue(expression.Left)
		if _, failed := target.(*Error); failed {
			return target
		}
		ty := Deref(target.Type())
		if !isInteger(ty) {
			ns.Diagnostics.Errorf(expression.Span(), "'%s' cannot be incremented", ns.TypeString(target.Type()))
			return context.errorAt(expression.Span())
		}
		context.noteWrite(target)
		return &PostIncDec{Target: target, Decrement: expression.Operator.Kind == token.DECREMENT, Ty: ty}
	case *ast.Binary:
		return context.resolveBinary(expression)
	case *ast.Assign:
		return context.resolveAssign(expression)
	case *ast.Ternary:
		condition := context.resolveExpression(expression.Condition, Bool{})
		trueValue := context.loadIfRef(context.resolve(expression.True))
		falseValue := context.loadIfRef(context.resolve(expression.False))
		common, ok := context.commonType(&trueValue, &falseValue, expression.Span())
		if !ok {
			return context.errorAt(expression.Span())
		}
		return &Ternary{Condition: condition, True: trueValue, False: falseValue, Ty: common}
	case *ast.Call:
		return context.resolveCall(expression)
	case *ast.MemberAccess:
		return context.resolveMember(expression)
	case *ast.Subscript:
		return context.resolveSubscript(expression)
	case *ast.ArrayLiteral:
		return context.resolveArrayLiteral(expression)
	case *ast.New:
		newType := ns.resolveType(context.unit, context.contract, expression.Type)
		if newType == nil {
			return context.errorAt(expression.Loc)
		}
		array, isArray := newType.(Array)
		if !isArray || array.Length != nil {
			ns.Diagnostics.Errorf(expression.Loc, "'new' allocates dynamic arrays; '%s' is not one", ns.TypeString(newType))
			return context.errorAt(expression.Loc)
		}
		if len(expression.Arguments) != 1 {
			ns.Diagnostics.Errorf(expression.Loc, "'new' takes a single length argument")
			return context.errorAt(expression.Loc)
		}
		length := context.resolveExpression(expression.Arguments[0], Uint{Width: 256})
		return &AllocDynamic{Length: length, Ty: Ref{Inner: newType, Loc: Memory}, Loc: expression.Loc}
	}
	ns.Diagnostics.Errorf(node.Span(), "expression cannot be resolved")
	return context.errorAt(node.Span())
}

func (context *bodyContext) resolveIdentifier(expression *ast.Identifier) Expression {
	ns := context.ns
	if context.function != nil {
		if no, ok := context.lookupLocal(expression.Name); ok {
			return &Variable{No: no, Ty: context.function.Variables[no].Type, Loc: expression.Loc}
		}
	}
	if context.contract >= 0 {
		for _, linear := range ns.Contracts[context.contract].Linear {
			if symbol, ok := ns.contractScopes[linear][expression.Name]; ok {
				return context.symbolExpression(symbol, linear, expression)
			}
		}
	}
	if symbol, ok := ns.lookupFile(context.unit, expression.Name); ok {
		return context.symbolExpression(symbol, -1, expression)
	}
	ns.Diagnostics.Errorf(expression.Loc, "unknown identifier '%s'", expression.Name)
	return context.errorAt(expression.Loc)
}

// symbolExpression turns a resolved symbol into an expression where
// one makes sense outside call position.
func (context *bodyContext) symbolExpression(symbol Symbol, declaredOn int, expression *ast.Identifier) Expression {
	ns := context.ns
	if symbol.ambiguous {
		ns.Diagnostics.Errorf(expression.Loc, "'%s' is ambiguous between multiple imports", expression.Name)
		return context.errorAt(expression.Loc)
	}
	switch symbol.Kind {
	case SymVariable:
		variable := ns.Contracts[declaredOn].Variables[symbol.ID]
		if variable.Constant {
			return context.constantValue(variable, expression.Loc)
		}
		index := ns.LayoutIndex(context.contract, variable.Name)
		if index < 0 {
			return context.errorAt(expression.Loc)
		}
		return &StorageVar{
			Contract: context.contract,
			Index:    index,
			Ty:       Ref{Inner: variable.Type, Loc: Storage},
			Loc:      expression.Loc,
		}
	case SymConstant:
		return context.constantValue(ns.Constants[symbol.ID], expression.Loc)
	case SymEnum, SymStruct, SymContract, SymFunction, SymEvent:
		// legal only in call or member position; those paths resolve
		// the symbol themselves before coming here
		ns.Diagnostics.Errorf(expression.Loc, "'%s' is not a value", expression.Name)
		return context.errorAt(expression.Loc)
	}
	return context.errorAt(expression.Loc)
}

// constantValue returns a constant's resolved initializer; the
// expression is shared, not copied.
func (context *bodyContext) constantValue(variable *StorageVariable, span token.Span) Expression {
	if variable.Initial == nil {
		return context.errorAt(span)
	}
	return variable.Initial
}

func (context *bodyContext) resolveUnary(expression *ast.Unary) Expression {
	ns := context.ns
	switch expression.Operator.Kind {
	case token.BANG:
		value := context.resolveExpression(expression.Right, Bool{})
		return &Not{Value: value}
	case token.SUB:
		value := context.loadIfRef(context.resolve(expression.Right))
		if literal, ok := value.(*NumberLiteral); ok && literal.Ty == nil {
			return &NumberLiteral{Value: new(big.Int).Neg(literal.Value), Loc: expression.Span()}
		}
		if !isSigned(value.Type()) {
			ns.Diagnostics.Errorf(expression.Span(), "cannot negate a value of type '%s'", ns.TypeString(value.Type()))
			return context.errorAt(expression.Span())
		}
		return &Negate{Value: value, Ty: Deref(value.Type())}
	case token.TILDE:
		value := context.loadIfRef(context.resolve(expression.Right))
		ty := Deref(value.Type())
		if !isInteger(ty) {
			if _, isBytes := ty.(Bytes); !isBytes {
				ns.Diagnostics.Errorf(expression.Span(), "operator '~' needs an integer or fixed bytes operand")
				return context.errorAt(expression.Span())
			}
		}
		if literal, ok := value.(*NumberLiteral); ok && literal.Ty == nil {
			ns.Diagnostics.Errorf(expression.Span(), "operator '~' needs a pinned operand; cast the literal first")
			return context.errorAt(expression.Span())
		}
		return &Complement{Value: value, Ty: ty}
	case token.INCREMENT, token.DECREMENT:
		target := context.resolveLvalue(expression.Right)
		if _, failed := target.(*Error); failed {
			return target
		}
		ty := Deref(target.Type())
		if !isInteger(ty) {
			ns.Diagnostics.Errorf(expression.Span(), "'%s' cannot be incremented", ns.TypeString(target.Type()))
			return context.errorAt(expression.Span())
		}
		context.noteWrite(target)
		return &PreIncDec{Target: target, Decrement: expression.Operator.Kind == token.DECREMENT, Ty: ty}
	}
	ns.Diagnostics.Errorf(expression.Span(), "unsupported unary operator '%s'", expression.Operator.Lexeme)
	return context.errorAt(expression.Span())
}

// commonType unifies the types of two already-resolved operands,
// pinning literals against the other side and inserting widening
// casts. Both slots are updated in place.
func (context *bodyContext) commonType(left, right *Expression, span token.Span) (Type, bool) {
	ns := context.ns
	leftLiteral, leftUnpinned := (*left).(*NumberLiteral)
	rightLiteral, rightUnpinned := (*right).(*NumberLiteral)
	leftUnpinned = leftUnpinned && leftLiteral.Ty == nil
	rightUnpinned = rightUnpinned && rightLiteral.Ty == nil

	switch {
	case leftUnpinned && rightUnpinned:
		return nil, true // still unpinned; caller folds
	case leftUnpinned:
		*left = ns.pinLiteral(leftLiteral, (*right).Type())
		if _, failed := (*left).(*Error); failed {
			return nil, false
		}
		return Deref((*right).Type()), true
	case rightUnpinned:
		*right = ns.pinLiteral(rightLiteral, (*left).Type())
		if _, failed := (*right).(*Error); failed {
			return nil, false
		}
		return Deref((*left).Type()), true
	}

	leftType, rightType := Deref((*left).Type()), Deref((*right).Type())
	if Equal(leftType, rightType) {
		return leftType, true
	}
	if implicitOK(leftType, rightType) {
		*left = &Cast{Value: *left, Ty: rightType}
		return rightType, true
	}
	if implicitOK(rightType, leftType) {
		*right = &Cast{Value: *right, Ty: leftType}
		return leftType, true
	}
	ns.Diagnostics.Errorf(span, "incompatible types '%s' and '%s'", ns.TypeString(leftType), ns.TypeString(rightType))
	return nil, false
}

func arithOp(kind token.Kind) (ArithOp, bool) {
	switch kind {
	case token.ADD, token.ADD_ASSIGN:
		return OpAdd, true
	case token.SUB, token.SUB_ASSIGN:
		return OpSub, true
	case token.MULT, token.MULT_ASSIGN:
		return OpMul, true
	case token.DIV, token.DIV_ASSIGN:
		return OpDiv, true
	case token.MOD:
		return OpMod, true
	case token.POWER:
		return OpPow, true
	}
	return 0, false
}

func (context *bodyContext) resolveBinary(expression *ast.Binary) Expression {
	ns := context.ns
	kind := expression.Operator.Kind

	if kind == token.AND_AND || kind == token.OR_OR {
		left := context.resolveExpression(expression.Left, Bool{})
		right := context.resolveExpression(expression.Right, Bool{})
		return &Logical{And: kind == token.AND_AND, Left: left, Right: right}
	}

	left := context.loadIfRef(context.resolve(expression.Left))
	right := context.loadIfRef(context.resolve(expression.Right))
	if isError(left) || isError(right) {
		return context.errorAt(expression.Span())
	}

	if op, isArith := arithOp(kind); isArith && kind != token.ADD_ASSIGN && kind != token.SUB_ASSIGN && kind != token.MULT_ASSIGN && kind != token.DIV_ASSIGN {
		common, ok := context.commonType(&left, &right, expression.Span())
		if !ok {
			return context.errorAt(expression.Span())
		}
		if common == nil {
			return context.foldArithmetic(op, left.(*NumberLiteral), right.(*NumberLiteral), expression.Span())
		}
		if !isInteger(common) {
			ns.Diagnostics.Errorf(expression.Span(), "arithmetic needs integer operands, not '%s'", ns.TypeString(common))
			return context.errorAt(expression.Span())
		}
		return &Arithmetic{Op: op, Left: left, Right: right, Ty: common}
	}

	switch kind {
	case token.AMPERSAND, token.PIPE, token.CARET:
		common, ok := context.commonType(&left, &right, expression.Span())
		if !ok {
			return context.errorAt(expression.Span())
		}
		op := OpAnd
		if kind == token.PIPE {
			op = OpOr
		} else if kind == token.CARET {
			op = OpXor
		}
		if common == nil {
			return context.foldBitwise(op, left.(*NumberLiteral), right.(*NumberLiteral), expression.Span())
		}
		if !isInteger(common) {
			if _, isBytes := common.(Bytes); !isBytes {
				ns.Diagnostics.Errorf(expression.Span(), "bitwise operators need integer or fixed bytes operands")
				return context.errorAt(expression.Span())
			}
		}
		return &Bitwise{Op: op, Left: left, Right: right, Ty: common}
	case token.SHIFT_LEFT, token.SHIFT_RIGHT:
		if leftLiteral, ok := left.(*NumberLiteral); ok && leftLiteral.Ty == nil {
			if rightLiteral, okRight := right.(*NumberLiteral); okRight && rightLiteral.Ty == nil {
				return context.foldShift(kind == token.SHIFT_LEFT, leftLiteral, rightLiteral, expression.Span())
			}
			ns.Diagnostics.Errorf(expression.Span(), "shifted literal needs a type; cast it first")
			return context.errorAt(expression.Span())
		}
		valueType := Deref(left.Type())
		if !isInteger(valueType) {
			if _, isBytes := valueType.(Bytes); !isBytes {
				ns.Diagnostics.Errorf(expression.Span(), "cannot shift a value of type '%s'", ns.TypeString(valueType))
				return context.errorAt(expression.Span())
			}
		}
		if amountLiteral, ok := right.(*NumberLiteral); ok && amountLiteral.Ty == nil {
			right = ns.pinLiteral(amountLiteral, Uint{Width: 256})
		}
		return &Shift{Left: kind == token.SHIFT_LEFT, Value: left, Amount: right, Ty: valueType}
	case token.EQUAL_EQUAL, token.NOT_EQUAL, token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL:
		common, ok := context.commonType(&left, &right, expression.Span())
		if !ok {
			return context.errorAt(expression.Span())
		}
		op := map[token.Kind]CompareOp{
			token.EQUAL_EQUAL: OpEq, token.NOT_EQUAL: OpNe,
			token.LESS: OpLt, token.LESS_EQUAL: OpLe,
			token.LARGER: OpGt, token.LARGER_EQUAL: OpGe,
		}[kind]
		if common == nil {
			return context.foldCompare(op, left.(*NumberLiteral), right.(*NumberLiteral), expression.Span())
		}
		return &Compare{Op: op, Left: left, Right: right}
	}
	ns.Diagnostics.Errorf(expression.Span(), "unsupported binary operator '%s'", expression.Operator.Lexeme)
	return context.errorAt(expression.Span())
}

func (context *bodyContext) resolveAssign(expression *ast.Assign) Expression {
	ns := context.ns
	target := context.resolveLvalue(expression.Target)
	if isError(target) {
		return target
	}
	targetType := Deref(target.Type())
	context.noteWrite(target)

	if expression.Operator.Kind == token.ASSIGN {
		value := context.resolveExpression(expression.Value, targetType)
		return &Assign{Target: target, Value: value}
	}
	op, _ := arithOp(expression.Operator.Kind)
	if !isInteger(targetType) {
		ns.Diagnostics.Errorf(expression.Span(), "compound assignment needs an integer target")
		return context.errorAt(expression.Span())
	}
	current := context.loadIfRef(cloneRead(target))
	value := context.resolveExpression(expression.Value, targetType)
	return &Assign{Target: target, Value: &Arithmetic{Op: op, Left: current, Right: value, Ty: targetType}}
}

// cloneRead re-uses an lvalue expression as a read; the CFG builder
// evaluates the address computation once per occurrence, which is
// safe because lvalues here have no side effects.
func cloneRead(expression Expression) Expression {
	return expression
}

// resolveLvalue resolves an expression that will be stored through:
// a local, a storage variable, a subscript or a struct member.
func (context *bodyContext) resolveLvalue(node ast.Expression) Expression {
	ns := context.ns
	resolved := context.resolve(node)
	if isError(resolved) {
		return resolved
	}
	switch resolved.(type) {
	case *Variable, *StorageVar, *Subscript, *StructMember:
		return resolved
	}
	ns.Diagnostics.Errorf(node.Span(), "expression is not assignable")
	return context.errorAt(node.Span())
}

// noteWrite records a storage write for mutability checking.
func (context *bodyContext) noteWrite(target Expression) {
	switch expression := target.(type) {
	case *StorageVar:
		context.writesState = true
	case *Subscript:
		if ref, ok := expression.Ty.(Ref); ok && ref.Loc == Storage {
			context.writesState = true
		}
		context.noteWrite(expression.Array)
	case *StructMember:
		if ref, ok := expression.Ty.(Ref); ok && ref.Loc == Storage {
			context.writesState = true
		}
		context.noteWrite(expression.Value)
	}
}

func isError(expression Expression) bool {
	_, failed := expression.(*Error)
	return failed
}
