package sema

import (
	"math/big"

	"solang/ast"
)

// resolveCall resolves calls, which cover explicit casts (type name
// in callee position), struct literals, builtin invocations, plain
// function calls, base-qualified calls and external calls.
func (context *bodyContext) resolveCall(expression *ast.Call) Expression {
	ns := context.ns

	// explicit cast: T(expr)
	if typeExpression, isType := expression.Callee.(*ast.TypeExpression); isType {
		target := ns.resolveType(context.unit, context.contract, typeExpression.Type)
		if target == nil {
			return context.errorAt(expression.Loc)
		}
		if len(expression.Arguments) != 1 {
			ns.Diagnostics.Errorf(expression.Loc, "cast to '%s' takes exactly one argument", ns.TypeString(target))
			return context.errorAt(expression.Loc)
		}
		value := context.loadIfRef(context.resolve(expression.Arguments[0]))
		if isError(value) {
			return value
		}
		return context.convert(value, target, true)
	}

	if identifier, isIdentifier := expression.Callee.(*ast.Identifier); isIdentifier {
		return context.resolveNamedCall(identifier, expression)
	}
	if member, isMember := expression.Callee.(*ast.MemberAccess); isMember {
		return context.resolveMethodCall(member, expression)
	}
	ns.Diagnostics.Errorf(expression.Loc, "expression is not callable")
	return context.errorAt(expression.Loc)
}

// resolveNamedCall handles "name(args…)": user-type casts and struct
// literals, keccak256, and overloadable function calls found through
// the contract linearization or the file scope.
func (context *bodyContext) resolveNamedCall(identifier *ast.Identifier, expression *ast.Call) Expression {
	ns := context.ns

	if identifier.Name == "keccak256" {
		if len(expression.Arguments) != 1 {
			ns.Diagnostics.Errorf(expression.Loc, "keccak256 takes one bytes argument")
			return context.errorAt(expression.Loc)
		}
		argument := context.loadIfRef(context.resolve(expression.Arguments[0]))
		return &Builtin{Kind: BuiltinKeccak256, Arguments: []Expression{argument}, Ty: Bytes{N: 32}, Loc: expression.Loc}
	}

	var symbol Symbol
	found := false
	if context.contract >= 0 {
		for _, linear := range ns.Contracts[context.contract].Linear {
			if candidate, ok := ns.contractScopes[linear][identifier.Name]; ok {
				symbol, found = candidate, true
				break
			}
		}
	}
	if !found {
		if candidate, ok := ns.lookupFile(context.unit, identifier.Name); ok {
			symbol, found = candidate, true
		}
	}
	if !found {
		ns.Diagnostics.Errorf(identifier.Loc, "unknown function '%s'", identifier.Name)
		return context.errorAt(identifier.Loc)
	}
	if symbol.ambiguous {
		ns.Diagnostics.Errorf(identifier.Loc, "'%s' is ambiguous between multiple imports", identifier.Name)
		return context.errorAt(identifier.Loc)
	}

	switch symbol.Kind {
	case SymStruct:
		return context.resolveStructLiteral(symbol.ID, expression)
	case SymEnum, SymContract:
		target := ns.symbolType(symbol, &ast.UserType{Names: []string{identifier.Name}, Loc: identifier.Loc})
		if target == nil {
			return context.errorAt(identifier.Loc)
		}
		if len(expression.Arguments) != 1 {
			ns.Diagnostics.Errorf(expression.Loc, "cast to '%s' takes exactly one argument", ns.TypeString(target))
			return context.errorAt(expression.Loc)
		}
		value := context.loadIfRef(context.resolve(expression.Arguments[0]))
		if isError(value) {
			return value
		}
		return context.convert(value, target, true)
	case SymFunction:
		return context.dispatch(symbol.Overloads, expression, nil)
	}
	ns.Diagnostics.Errorf(identifier.Loc, "'%s' is not callable", identifier.Name)
	return context.errorAt(identifier.Loc)
}

// resolveMethodCall handles "expr.member(args…)": base-qualified
// calls, builtin array methods, library dispatch via using-for, and
// external calls on contract-typed values.
func (context *bodyContext) resolveMethodCall(member *ast.MemberAccess, expression *ast.Call) Expression {
	ns := context.ns

	// Base.f(…) or Library.f(…) or alias.f(…)
	if identifier, isIdentifier := member.Expression.(*ast.Identifier); isIdentifier {
		if _, isLocal := context.lookupLocal(identifier.Name); !isLocal {
			if symbol, ok := ns.lookupFile(context.unit, identifier.Name); ok && symbol.Kind == SymContract {
				if memberSymbol, okMember := ns.contractScopes[symbol.ID][member.Member]; okMember && memberSymbol.Kind == SymFunction {
					return context.dispatch(memberSymbol.Overloads, expression, nil)
				}
				ns.Diagnostics.Errorf(member.MemberLoc, "contract '%s' has no function '%s'", identifier.Name, member.Member)
				return context.errorAt(member.MemberLoc)
			}
		}
	}

	receiver := context.resolve(member.Expression)
	if isError(receiver) {
		return receiver
	}
	receiverType := Deref(receiver.Type())

	// builtin array methods
	if array, isArray := receiverType.(Array); isArray && array.Length == nil {
		switch member.Member {
		case "push":
			var arguments []Expression
			if len(expression.Arguments) == 1 {
				arguments = append(arguments, context.resolveExpression(expression.Arguments[0], array.Element))
			}
			return &Builtin{Kind: BuiltinArrayPush, Arguments: append([]Expression{receiver}, arguments...), Ty: Void{}, Loc: expression.Loc}
		case "pop":
			return &Builtin{Kind: BuiltinArrayPop, Arguments: []Expression{receiver}, Ty: array.Element, Loc: expression.Loc}
		}
	}

	// using-for library dispatch: a.f(x) where a's type matches f's
	// first parameter
	if context.contract >= 0 {
		for _, using := range ns.Contracts[context.contract].UsingFor {
			if using.Type != nil && !Equal(Deref(using.Type), receiverType) {
				continue
			}
			librarySymbol, ok := ns.contractScopes[using.Library][member.Member]
			if !ok || librarySymbol.Kind != SymFunction {
				continue
			}
			return context.dispatch(librarySymbol.Overloads, expression, receiver)
		}
	}

	// external call on a contract value
	if contractType, isContract := receiverType.(Contract); isContract {
		memberSymbol, ok := ns.contractScopes[contractType.ID][member.Member]
		if !ok || memberSymbol.Kind != SymFunction {
			ns.Diagnostics.Errorf(member.MemberLoc, "contract '%s' has no function '%s'", ns.Contracts[contractType.ID].Name, member.Member)
			return context.errorAt(member.MemberLoc)
		}
		call := context.dispatch(memberSymbol.Overloads, expression, nil)
		if internal, isCall := call.(*FunctionCall); isCall {
			callee := ns.Functions[internal.Function]
			if callee.Visibility == Internal || callee.Visibility == Private {
				ns.Diagnostics.Errorf(member.MemberLoc, "'%s' is not externally callable", callee.Name)
				return context.errorAt(member.MemberLoc)
			}
			return &ExternalCall{
				Address:   context.loadIfRef(receiver),
				Function:  internal.Function,
				Arguments: internal.Arguments,
				Returns:   internal.Returns,
				Loc:       expression.Loc,
			}
		}
		return call
	}

	ns.Diagnostics.Errorf(member.MemberLoc, "'%s' has no member '%s'", ns.TypeString(receiver.Type()), member.Member)
	return context.errorAt(member.MemberLoc)
}

// dispatch performs overload resolution over candidate function ids
// and builds the call. Resolution considers call-site arity and
// implicit convertibility only; the best match is the unique
// candidate with the fewest implicit conversions, ties broken by
// preferring the narrower parameter types.
func (context *bodyContext) dispatch(candidates []int, expression *ast.Call, receiver Expression) Expression {
	ns := context.ns

	arguments := make([]Expression, 0, len(expression.Arguments)+1)
	if receiver != nil {
		arguments = append(arguments, receiver)
	}
	for _, argument := range expression.Arguments {
		arguments = append(arguments, context.resolve(argument))
	}
	for _, argument := range arguments {
		if isError(argument) {
			return context.errorAt(expression.Loc)
		}
	}

	type match struct {
		id   int
		cost int
	}
	var feasible []match
	for _, candidate := range candidates {
		function := ns.Functions[candidate]
		if len(function.Parameters) != len(arguments) {
			continue
		}
		cost, ok := 0, true
		for i, argument := range arguments {
			parameter := function.Parameters[i]
			if literal, unpinned := argument.(*NumberLiteral); unpinned && literal.Ty == nil {
				if literalFits(literal, parameter.Type) {
					continue // exact for costing purposes
				}
				ok = false
				break
			}
			argumentType := argument.Type()
			if Equal(Deref(argumentType), Deref(parameter.Type)) {
				continue
			}
			if implicitOK(argumentType, parameter.Type) {
				cost++
				continue
			}
			// storage reference arguments may bind library storage
			// parameters directly
			if Equal(argumentType, parameter.Type) {
				continue
			}
			ok = false
			break
		}
		if ok {
			feasible = append(feasible, match{id: candidate, cost: cost})
		}
	}

	if len(feasible) == 0 {
		ns.Diagnostics.Errorf(expression.Loc, "no overload of '%s' matches these arguments", ns.Functions[candidates[0]].Name)
		return context.errorAt(expression.Loc)
	}

	minimum := feasible[0].cost
	for _, candidate := range feasible[1:] {
		if candidate.cost < minimum {
			minimum = candidate.cost
		}
	}
	var best []int
	for _, candidate := range feasible {
		if candidate.cost == minimum {
			best = append(best, candidate.id)
		}
	}
	if len(best) > 1 {
		best = narrowest(ns, best)
	}
	if len(best) != 1 {
		ns.Diagnostics.Errorf(expression.Loc, "call to '%s' is ambiguous", ns.Functions[feasible[0].id].Name)
		return context.errorAt(expression.Loc)
	}

	function := ns.Functions[best[0]]
	converted := make([]Expression, len(arguments))
	for i, argument := range arguments {
		converted[i] = context.convert(argument, function.Parameters[i].Type, false)
	}
	returns := make([]Type, len(function.Returns))
	for i, ret := range function.Returns {
		returns[i] = ret.Type
	}
	if function.Mutability != Pure && function.Mutability != View {
		context.writesState = true
	} else if function.Mutability == View {
		context.readsState = true
	}
	return &FunctionCall{Function: function.ID, Arguments: converted, Returns: returns, Loc: expression.Loc}
}

// narrowest keeps the candidates whose parameter widths are not
// strictly wider than some other candidate's: A beats B when every
// parameter of A is at most as wide as B's and at least one is
// strictly narrower.
func narrowest(ns *Namespace, candidates []int) []int {
	beats := func(a, b *Function) bool {
		strict := false
		for i := range a.Parameters {
			widthA, widthB := bits(a.Parameters[i].Type), bits(b.Parameters[i].Type)
			if widthA > widthB {
				return false
			}
			if widthA < widthB {
				strict = true
			}
		}
		return strict
	}
	var kept []int
	for _, candidate := range candidates {
		dominated := false
		for _, other := range candidates {
			if other != candidate && beats(ns.Functions[other], ns.Functions[candidate]) {
				dominated = true
				break
			}
		}
		if !dominated {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// literalFits reports whether an unpinned literal can pin to an
// integer parameter type without a range error; for any other
// parameter type it reports false.
func literalFits(literal *NumberLiteral, to Type) bool {
	to = Deref(to)
	width := bits(to)
	switch to.(type) {
	case Uint:
		return literal.Value.Sign() >= 0 && literal.Value.BitLen() <= width
	case Int:
		limit := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
		return literal.Value.Cmp(limit) < 0 && literal.Value.Cmp(new(big.Int).Neg(limit)) >= 0
	}
	return false
}

// resolveStructLiteral builds a struct value from positional
// arguments: S(a, b, …).
func (context *bodyContext) resolveStructLiteral(structID int, expression *ast.Call) Expression {
	ns := context.ns
	declaration := ns.Structs[structID]
	if len(expression.Arguments) != len(declaration.Fields) {
		ns.Diagnostics.Errorf(expression.Loc, "struct '%s' has %d fields, got %d values",
			declaration.Name, len(declaration.Fields), len(expression.Arguments))
		return context.errorAt(expression.Loc)
	}
	fields := make([]Expression, len(expression.Arguments))
	for i, argument := range expression.Arguments {
		fields[i] = context.resolveExpression(argument, declaration.Fields[i].Type)
	}
	return &StructLiteral{Struct: structID, Fields: fields, Loc: expression.Loc}
}

// resolveMember handles non-call member accesses: enum variants,
// struct fields, array length, and the msg/block builtins.
func (context *bodyContext) resolveMember(expression *ast.MemberAccess) Expression {
	ns := context.ns

	if identifier, isIdentifier := expression.Expression.(*ast.Identifier); isIdentifier {
		if _, isLocal := context.lookupLocal(identifier.Name); !isLocal {
			switch identifier.Name {
			case "msg":
				switch expression.Member {
				case "sender":
					return &Builtin{Kind: BuiltinMsgSender, Ty: Address{Payable: true}, Loc: expression.Span()}
				case "value":
					return &Builtin{Kind: BuiltinMsgValue, Ty: Uint{Width: 128}, Loc: expression.Span()}
				}
			case "block":
				switch expression.Member {
				case "number":
					return &Builtin{Kind: BuiltinBlockNumber, Ty: Uint{Width: 64}, Loc: expression.Span()}
				case "timestamp":
					return &Builtin{Kind: BuiltinTimestamp, Ty: Uint{Width: 64}, Loc: expression.Span()}
				}
			}
			// EnumName.Variant
			symbol, found := Symbol{}, false
			if context.contract >= 0 {
				for _, linear := range ns.Contracts[context.contract].Linear {
					if candidate, ok := ns.contractScopes[linear][identifier.Name]; ok {
						symbol, found = candidate, true
						break
					}
				}
			}
			if !found {
				if candidate, ok := ns.lookupFile(context.unit, identifier.Name); ok {
					symbol, found = candidate, true
				}
			}
			if found && symbol.Kind == SymEnum {
				declaration := ns.Enums[symbol.ID]
				for index, variant := range declaration.Variants {
					if variant == expression.Member {
						return &EnumLiteral{Enum: symbol.ID, Variant: index, Loc: expression.Span()}
					}
				}
				ns.Diagnostics.Errorf(expression.MemberLoc, "enum '%s' has no variant '%s'", declaration.Name, expression.Member)
				return context.errorAt(expression.MemberLoc)
			}
		}
	}

	receiver := context.resolve(expression.Expression)
	if isError(receiver) {
		return receiver
	}
	receiverType := Deref(receiver.Type())

	switch t := receiverType.(type) {
	case StructType:
		declaration := ns.Structs[t.ID]
		for index, field := range declaration.Fields {
			if field.Name == expression.Member {
				fieldType := field.Type
				if ref, isRef := receiver.Type().(Ref); isRef {
					fieldType = locateAs(fieldType, ref.Loc)
				}
				return &StructMember{Value: receiver, Field: index, Ty: fieldType}
			}
		}
		ns.Diagnostics.Errorf(expression.MemberLoc, "struct '%s' has no field '%s'", declaration.Name, expression.Member)
		return context.errorAt(expression.MemberLoc)
	case Array:
		if expression.Member == "length" {
			if t.Length != nil {
				return &NumberLiteral{Value: new(big.Int).SetUint64(*t.Length), Ty: Uint{Width: 256}, Loc: expression.Span()}
			}
			return &Builtin{Kind: BuiltinArrayLength, Arguments: []Expression{receiver}, Ty: Uint{Width: 256}, Loc: expression.Span()}
		}
	case DynamicBytes:
		if expression.Member == "length" {
			return &Builtin{Kind: BuiltinArrayLength, Arguments: []Expression{receiver}, Ty: Uint{Width: 256}, Loc: expression.Span()}
		}
	}
	ns.Diagnostics.Errorf(expression.MemberLoc, "'%s' has no member '%s'", ns.TypeString(receiver.Type()), expression.Member)
	return context.errorAt(expression.MemberLoc)
}

// locateAs propagates the containing reference's location onto a
// selected member of reference type.
func locateAs(ty Type, loc Location) Type {
	switch ty.(type) {
	case Array, StructType, Mapping, String, DynamicBytes:
		return Ref{Inner: ty, Loc: loc}
	}
	return ty
}

// resolveSubscript resolves array, bytes and mapping indexing.
// Constant indexes into fixed arrays are bounds-checked here.
func (context *bodyContext) resolveSubscript(expression *ast.Subscript) Expression {
	ns := context.ns
	array := context.resolve(expression.Array)
	if isError(array) {
		return array
	}
	if expression.Index == nil {
		return context.errorAt(expression.Loc)
	}
	arrayType := Deref(array.Type())

	switch t := arrayType.(type) {
	case Mapping:
		if ref, isRef := array.Type().(Ref); !isRef || ref.Loc != Storage {
			ns.Diagnostics.Errorf(expression.Loc, "mappings exist only in storage")
			return context.errorAt(expression.Loc)
		}
		key := context.resolveExpression(expression.Index, t.Key)
		return &Subscript{Array: array, Index: key, Ty: locateAs(t.Value, Storage)}
	case Array:
		index := context.resolveExpression(expression.Index, Uint{Width: 256})
		if literal, isLiteral := index.(*NumberLiteral); isLiteral && t.Length != nil {
			if literal.Value.IsUint64() && literal.Value.Uint64() >= *t.Length {
				ns.Diagnostics.Errorf(expression.Loc, "index %s is out of bounds for '%s'", literal.Value, ns.TypeString(arrayType))
				return context.errorAt(expression.Loc)
			}
		}
		elementType := t.Element
		if ref, isRef := array.Type().(Ref); isRef {
			elementType = locateAs(elementType, ref.Loc)
		} else {
			elementType = locateAs(elementType, Memory)
		}
		return &Subscript{Array: array, Index: index, Ty: elementType}
	case DynamicBytes:
		index := context.resolveExpression(expression.Index, Uint{Width: 256})
		return &Subscript{Array: array, Index: index, Ty: Bytes{N: 1}}
	case Bytes:
		index := context.resolveExpression(expression.Index, Uint{Width: 256})
		if literal, isLiteral := index.(*NumberLiteral); isLiteral {
			if literal.Value.IsUint64() && literal.Value.Uint64() >= uint64(t.N) {
				ns.Diagnostics.Errorf(expression.Loc, "index %s is out of bounds for '%s'", literal.Value, ns.TypeString(arrayType))
				return context.errorAt(expression.Loc)
			}
		}
		return &Subscript{Array: context.loadIfRef(array), Index: index, Ty: Bytes{N: 1}}
	}
	ns.Diagnostics.Errorf(expression.Loc, "'%s' cannot be indexed", ns.TypeString(array.Type()))
	return context.errorAt(expression.Loc)
}

// resolveArrayLiteralAs types "[a, b, c]" against a known element
// type.
func (context *bodyContext) resolveArrayLiteralAs(expression *ast.ArrayLiteral, element Type) Expression {
	ns := context.ns
	if len(expression.Elements) == 0 {
		ns.Diagnostics.Errorf(expression.Loc, "array literals cannot be empty")
		return context.errorAt(expression.Loc)
	}
	elements := make([]Expression, len(expression.Elements))
	for i, node := range expression.Elements {
		elements[i] = context.resolveExpression(node, element)
		if isError(elements[i]) {
			return context.errorAt(expression.Loc)
		}
	}
	length := uint64(len(elements))
	return &ArrayLiteral{Elements: elements, Ty: Array{Element: Deref(element), Length: &length}, Loc: expression.Loc}
}

// resolveArrayLiteral types "[a, b, c]" as a fixed array of the
// unified element type.
func (context *bodyContext) resolveArrayLiteral(expression *ast.ArrayLiteral) Expression {
	ns := context.ns
	if len(expression.Elements) == 0 {
		ns.Diagnostics.Errorf(expression.Loc, "array literals cannot be empty")
		return context.errorAt(expression.Loc)
	}
	elements := make([]Expression, len(expression.Elements))
	for i, element := range expression.Elements {
		elements[i] = context.loadIfRef(context.resolve(element))
		if isError(elements[i]) {
			return context.errorAt(expression.Loc)
		}
	}
	// unify: first pinned element's type wins; all-literal arrays pin
	// to the default
	var elementType Type
	for _, element := range elements {
		if literal, unpinned := element.(*NumberLiteral); unpinned && literal.Ty == nil {
			continue
		}
		elementType = Deref(element.Type())
		break
	}
	if elementType == nil {
		pinned := ns.pinDefault(elements[0])
		if isError(pinned) {
			return pinned
		}
		elements[0] = pinned
		elementType = Deref(pinned.Type())
	}
	for i, element := range elements {
		elements[i] = context.convert(element, elementType, false)
	}
	length := uint64(len(elements))
	return &ArrayLiteral{Elements: elements, Ty: Array{Element: elementType, Length: &length}, Loc: expression.Loc}
}
