package sema

import (
	"math/big"

	"solang/ast"
	"solang/diag"
	"solang/token"
)

// Resolve runs pass B over every declared unit: inheritance
// resolution and C3 linearization, type resolution of structs, events
// and signatures, selector tables, constants and storage variables,
// slot assignment, using-for directives, and finally every function
// body in function id order (not in linearized order).
func (ns *Namespace) Resolve() {
	ns.resolveBases()
	ns.resolveLinearizations()
	ns.resolveStructs()
	ns.resolveEvents()
	ns.resolveSignatures()
	ns.resolveSelectors()
	ns.resolveConstants()
	ns.resolveVariables()
	for _, contract := range ns.Contracts {
		ns.assignSlots(contract.ID)
	}
	ns.resolveUsing()
	ns.resolveBodies()
}

// resolveBases turns the syntactic base lists into contract ids.
func (ns *Namespace) resolveBases() {
	for _, contract := range ns.Contracts {
		for _, base := range contract.astBases {
			symbol, ok := ns.lookupType(contract.Unit, base.Name)
			if !ok || symbol.Kind != SymContract {
				ns.Diagnostics.Errorf(base.Name.Loc, "unknown base contract '%s'", base.Name.Names[len(base.Name.Names)-1])
				continue
			}
			if symbol.ID == contract.ID {
				ns.Diagnostics.Errorf(base.Name.Loc, "contract '%s' cannot inherit from itself", contract.Name)
				continue
			}
			contract.Bases = append(contract.Bases, symbol.ID)
		}
	}
}

// resolveLinearizations computes C3 for every contract. Contracts are
// processed to a fixed point so that bases are linearized before
// their derived contracts; anything left over is either cyclic or
// non-linearizable.
func (ns *Namespace) resolveLinearizations() {
	remaining := len(ns.Contracts)
	for remaining > 0 {
		progress := false
		for _, contract := range ns.Contracts {
			if contract.Linear != nil {
				continue
			}
			ready := true
			for _, base := range contract.Bases {
				if ns.Contracts[base].Linear == nil {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			linear := ns.linearize(contract.ID)
			if linear == nil {
				ns.Diagnostics.Errorf(contract.Loc, "inheritance graph of '%s' cannot be linearized", contract.Name)
				linear = []int{contract.ID}
			}
			contract.Linear = linear
			remaining--
			progress = true
		}
		if !progress {
			// the contracts still missing a linearization sit on an
			// inheritance cycle
			for _, contract := range ns.Contracts {
				if contract.Linear == nil {
					ns.Diagnostics.Errorf(contract.Loc, "inheritance graph of '%s' cannot be linearized", contract.Name)
					contract.Linear = []int{contract.ID}
					remaining--
				}
			}
		}
	}
}

func (ns *Namespace) resolveStructs() {
	for _, declaration := range ns.Structs {
		for _, field := range declaration.astFields {
			fieldType := ns.resolveType(ns.unitOf(declaration.Contract), declaration.Contract, field.Type)
			if fieldType == nil {
				continue
			}
			if _, bad := fieldType.(Mapping); bad {
				ns.Diagnostics.Errorf(field.Loc, "mapping fields are only legal in storage-resident structs")
			}
			declaration.Fields = append(declaration.Fields, Field{Name: field.Name, Type: fieldType, Loc: field.Loc})
		}
	}
}

func (ns *Namespace) resolveEvents() {
	for _, declaration := range ns.Events {
		for _, field := range declaration.astFields {
			fieldType := ns.resolveType(ns.unitOf(declaration.Contract), declaration.Contract, field.Type)
			if fieldType == nil {
				continue
			}
			declaration.Fields = append(declaration.Fields, Field{Name: field.Name, Type: fieldType, Loc: field.Loc})
			declaration.Indexed = append(declaration.Indexed, field.Indexed)
		}
		types := make([]Type, len(declaration.Fields))
		for i, field := range declaration.Fields {
			types[i] = field.Type
		}
		declaration.Signature = ns.Signature(declaration.Name, types)
	}
}

// resolveSignatures resolves parameter and return types of every
// function and computes its canonical signature and selector.
func (ns *Namespace) resolveSignatures() {
	for _, function := range ns.Functions {
		node := function.astNode
		unit := ns.unitOf(function.Contract)

		switch node.Visibility {
		case token.EXTERNAL:
			function.Visibility = External
		case token.INTERNAL:
			function.Visibility = Internal
		case token.PRIVATE:
			function.Visibility = Private
		default:
			function.Visibility = Public
		}
		switch node.Mutability {
		case token.PURE:
			function.Mutability = Pure
		case token.VIEW:
			function.Mutability = View
		case token.PAYABLE:
			function.Mutability = Payable
		}

		public := function.Visibility == Public || function.Visibility == External
		for _, parameter := range node.Parameters {
			parameterType := ns.resolveType(unit, function.Contract, parameter.Type)
			if parameterType == nil {
				continue
			}
			parameterType = locate(parameterType, parameter.Location)
			if !validParameterType(parameterType, public) {
				ns.Diagnostics.Errorf(parameter.Loc, "illegal parameter type '%s'", ns.TypeString(parameterType))
			}
			function.Parameters = append(function.Parameters, Parameter{Name: parameter.Name, Type: parameterType, Loc: parameter.Loc})
		}
		for _, ret := range node.Returns {
			returnType := ns.resolveType(unit, function.Contract, ret.Type)
			if returnType == nil {
				continue
			}
			returnType = locate(returnType, ret.Location)
			if !validParameterType(returnType, public) {
				ns.Diagnostics.Errorf(ret.Loc, "illegal return type '%s'", ns.TypeString(returnType))
			}
			function.Returns = append(function.Returns, Parameter{Name: ret.Name, Type: returnType, Loc: ret.Loc})
		}

		types := make([]Type, len(function.Parameters))
		for i, parameter := range function.Parameters {
			types[i] = parameter.Type
		}
		name := function.Name
		if function.Kind == FuncConstructor {
			name = "constructor"
		}
		function.Signature = ns.Signature(name, types)
		if function.Kind == FuncPlain && (function.Visibility == Public || function.Visibility == External) {
			function.Selector = ns.SelectorHash([]byte(function.Signature))
		}
		if function.Kind == FuncReceive && function.Mutability != Payable {
			ns.Diagnostics.Errorf(function.Loc, "receive function must be payable")
		}
	}

	// duplicate signatures within one contract are errors
	for _, contract := range ns.Contracts {
		seen := make(map[string]token.Span)
		for _, functionID := range contract.Functions {
			function := ns.Functions[functionID]
			if function.Kind != FuncPlain {
				continue
			}
			if previous, clash := seen[function.Signature]; clash {
				ns.Diagnostics.Add(diag.Diagnostic{
					Severity: diag.Error,
					Span:     function.Loc,
					Message:  "function '" + function.Signature + "' is declared twice",
					Notes:    []diag.Note{{Span: previous, Message: "previous declaration is here"}},
				})
				continue
			}
			seen[function.Signature] = function.Loc
		}
	}
}

// resolveSelectors builds the selector table of every contract over
// its linearization: the most-derived definition of each signature
// wins, and two different signatures hashing to the same 4 bytes is a
// selector-collision error.
func (ns *Namespace) resolveSelectors() {
	for _, contract := range ns.Contracts {
		contract.Selectors = make(map[[4]byte]int)
		bySignature := make(map[string]int)
		for _, linear := range contract.Linear {
			for _, functionID := range ns.Contracts[linear].Functions {
				function := ns.Functions[functionID]
				if function.Kind != FuncPlain || (function.Visibility != Public && function.Visibility != External) {
					continue
				}
				if _, overridden := bySignature[function.Signature]; overridden {
					// a more-derived contract already defined it
					continue
				}
				bySignature[function.Signature] = functionID
				if existing, collision := contract.Selectors[function.Selector]; collision {
					ns.Diagnostics.Errorf(function.Loc,
						"selector collision in contract '%s': '%s' and '%s' share selector %x",
						contract.Name, function.Signature, ns.Functions[existing].Signature, function.Selector)
					continue
				}
				contract.Selectors[function.Selector] = functionID
			}
		}
	}
}

func (ns *Namespace) resolveConstants() {
	for _, constant := range ns.Constants {
		ns.resolveStorageVariable(constant, ns.unitForConstant(constant))
	}
}

func (ns *Namespace) resolveVariables() {
	for _, contract := range ns.Contracts {
		for _, variable := range contract.Variables {
			ns.resolveStorageVariable(variable, contract.Unit)
		}
	}
}

func (ns *Namespace) resolveStorageVariable(variable *StorageVariable, unit int) {
	variableType := ns.resolveType(unit, variable.Contract, variable.astType)
	if variableType == nil {
		variableType = Void{}
	}
	variable.Type = variableType
	if variable.astValue != nil {
		context := ns.bodyContext(unit, variable.Contract, nil)
		value := context.resolveExpression(variable.astValue, variableType)
		variable.Initial = value
		if variable.Constant && !isConstantExpression(value) {
			ns.Diagnostics.Errorf(variable.Loc, "initializer of constant '%s' is not a compile-time constant", variable.Name)
		}
	} else if variable.Constant {
		ns.Diagnostics.Errorf(variable.Loc, "constant '%s' requires an initializer", variable.Name)
	}
	if _, isMapping := Deref(variable.Type).(Mapping); isMapping && variable.astValue != nil {
		ns.Diagnostics.Errorf(variable.Loc, "mappings cannot be initialized")
	}
}

// resolveUsing resolves using-for directives into library/type pairs.
func (ns *Namespace) resolveUsing() {
	for _, contract := range ns.Contracts {
		for _, using := range contract.astUsing {
			symbol, ok := ns.lookupType(contract.Unit, using.Library)
			if !ok || symbol.Kind != SymContract || ns.Contracts[symbol.ID].Kind != ast.KindLibrary {
				ns.Diagnostics.Errorf(using.Loc, "'using' requires a library")
				continue
			}
			entry := UsingEntry{Library: symbol.ID}
			if using.Type != nil {
				entry.Type = ns.resolveType(contract.Unit, contract.ID, using.Type)
				if entry.Type == nil {
					continue
				}
			}
			contract.UsingFor = append(contract.UsingFor, entry)
		}
	}
}

// resolveBodies resolves every function body in function id order,
// which is declaration order and not linearized order; then modifiers
// are desugared into the bodies of the functions that invoke them.
func (ns *Namespace) resolveBodies() {
	for _, function := range ns.Functions {
		if !function.HasBody {
			continue
		}
		ns.resolveBody(function)
	}
	for _, function := range ns.Functions {
		if function.Kind != FuncModifier && len(function.astNode.Modifiers) > 0 {
			ns.desugarModifiers(function)
		}
	}
}

// unitOf returns the source unit a contract was declared in, or 0 for
// file-level entities of the root unit.
func (ns *Namespace) unitOf(contract int) int {
	if contract < 0 {
		return 0
	}
	return ns.Contracts[contract].Unit
}

func (ns *Namespace) unitForConstant(constant *StorageVariable) int {
	return 0
}

// locate wraps reference types in a Ref for the given (or default)
// data location.
func locate(ty Type, location token.Kind) Type {
	loc := Memory
	switch location {
	case token.STORAGE:
		loc = Storage
	case token.CALLDATA:
		loc = CallData
	}
	switch ty.(type) {
	case Array, StructType, Mapping:
		return Ref{Inner: ty, Loc: loc}
	case String, DynamicBytes:
		if loc == Storage || loc == CallData {
			return Ref{Inner: ty, Loc: loc}
		}
	}
	return ty
}

// lookupType resolves a possibly alias-qualified user type name in a
// unit's scopes.
func (ns *Namespace) lookupType(unit int, name *ast.UserType) (Symbol, bool) {
	if len(name.Names) == 2 {
		if imported, ok := ns.aliases[unit][name.Names[0]]; ok {
			symbol, found := ns.fileScopes[imported][name.Names[1]]
			return symbol, found
		}
		// Contract.Type member access
		if symbol, ok := ns.lookupFile(unit, name.Names[0]); ok && symbol.Kind == SymContract {
			member, found := ns.contractScopes[symbol.ID][name.Names[1]]
			return member, found
		}
		return Symbol{}, false
	}
	symbol, ok := ns.lookupFile(unit, name.Names[0])
	return symbol, ok
}

// resolveType resolves a syntactic type reference in the scope of a
// unit and optional contract.
func (ns *Namespace) resolveType(unit, contract int, node ast.TypeName) Type {
	switch t := node.(type) {
	case *ast.ElementaryType:
		switch t.Kind {
		case token.BOOL:
			return Bool{}
		case token.INT:
			return Int{Width: t.Width}
		case token.UINT:
			return Uint{Width: t.Width}
		case token.BYTES_SIZED:
			return Bytes{N: t.Width}
		case token.BYTES:
			return DynamicBytes{}
		case token.STRING_TYPE:
			return String{}
		case token.ADDRESS:
			return Address{Payable: t.Payable}
		}
	case *ast.UserType:
		// contract member scope first, then file scope
		if contract >= 0 && len(t.Names) == 1 {
			for _, linear := range ns.Contracts[contract].Linear {
				if symbol, ok := ns.contractScopes[linear][t.Names[0]]; ok {
					return ns.symbolType(symbol, t)
				}
			}
			if symbol, ok := ns.contractScopes[contract][t.Names[0]]; ok {
				return ns.symbolType(symbol, t)
			}
		}
		if symbol, ok := ns.lookupType(unit, t); ok {
			return ns.symbolType(symbol, t)
		}
		ns.Diagnostics.Errorf(t.Loc, "unknown type '%s'", t.Names[len(t.Names)-1])
		return nil
	case *ast.ArrayType:
		element := ns.resolveType(unit, contract, t.Element)
		if element == nil {
			return nil
		}
		if _, bad := element.(Mapping); bad {
			ns.Diagnostics.Errorf(t.Loc, "mappings may not be array elements")
			return nil
		}
		if t.Length == nil {
			return Array{Element: element}
		}
		length, ok := ns.constantLength(unit, contract, t.Length)
		if !ok {
			return nil
		}
		return Array{Element: element, Length: &length}
	case *ast.MappingType:
		key := ns.resolveType(unit, contract, t.Key)
		value := ns.resolveType(unit, contract, t.Value)
		if key == nil || value == nil {
			return nil
		}
		switch key.(type) {
		case Bool, Int, Uint, Bytes, Address, Enum, String, DynamicBytes, Contract:
		default:
			ns.Diagnostics.Errorf(t.Key.Span(), "'%s' is not a legal mapping key type", ns.TypeString(key))
			return nil
		}
		return Mapping{Key: key, Value: value}
	}
	return nil
}

func (ns *Namespace) symbolType(symbol Symbol, node *ast.UserType) Type {
	if symbol.ambiguous {
		ns.Diagnostics.Errorf(node.Loc, "'%s' is ambiguous between multiple imports", node.Names[len(node.Names)-1])
		return nil
	}
	switch symbol.Kind {
	case SymEnum:
		return Enum{ID: symbol.ID}
	case SymStruct:
		return StructType{ID: symbol.ID}
	case SymContract:
		return Contract{ID: symbol.ID}
	}
	ns.Diagnostics.Errorf(node.Loc, "'%s' does not name a type", node.Names[len(node.Names)-1])
	return nil
}

// constantLength evaluates an array length expression, which must be
// a positive compile-time integer constant.
func (ns *Namespace) constantLength(unit, contract int, node ast.Expression) (uint64, bool) {
	context := ns.bodyContext(unit, contract, nil)
	value := context.resolveExpression(node, nil)
	literal, ok := value.(*NumberLiteral)
	if !ok {
		ns.Diagnostics.Errorf(node.Span(), "array length must be a constant expression")
		return 0, false
	}
	if literal.Value.Sign() <= 0 || !literal.Value.IsUint64() {
		ns.Diagnostics.Errorf(node.Span(), "array length must be positive")
		return 0, false
	}
	return literal.Value.Uint64(), true
}

// pinDefault pins a still-unpinned literal to uint256 or int256, the
// defaults when no context constrained it earlier.
func (ns *Namespace) pinDefault(expression Expression) Expression {
	literal, ok := expression.(*NumberLiteral)
	if !ok || literal.Ty != nil {
		return expression
	}
	if literal.Value.Sign() < 0 {
		return ns.pinLiteral(literal, Int{Width: 256})
	}
	return ns.pinLiteral(literal, Uint{Width: 256})
}

// pinLiteral pins an infinite-precision literal to a concrete type,
// detecting overflow at pin time as an error rather than silently
// truncating.
func (ns *Namespace) pinLiteral(literal *NumberLiteral, to Type) Expression {
	to = Deref(to)
	width := bits(to)
	switch to.(type) {
	case Uint:
		if literal.Value.Sign() < 0 || literal.Value.BitLen() > width {
			ns.Diagnostics.Errorf(literal.Loc, "literal %s is out of range for %s", literal.Value, ns.TypeString(to))
			return &Error{Loc: literal.Loc}
		}
	case Int:
		limit := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
		low := new(big.Int).Neg(limit)
		if literal.Value.Cmp(limit) >= 0 || literal.Value.Cmp(low) < 0 {
			ns.Diagnostics.Errorf(literal.Loc, "literal %s is out of range for %s", literal.Value, ns.TypeString(to))
			return &Error{Loc: literal.Loc}
		}
	case Address:
		// address literals arrive as AddressLiteral, not numbers
		ns.Diagnostics.Errorf(literal.Loc, "number literal cannot be used as an address; address literals require an EIP-55 checksum")
		return &Error{Loc: literal.Loc}
	case Bytes:
		if literal.Value.Sign() < 0 || literal.Value.BitLen() > width {
			ns.Diagnostics.Errorf(literal.Loc, "literal %s does not fit %s", literal.Value, ns.TypeString(to))
			return &Error{Loc: literal.Loc}
		}
	case Enum:
		count := len(ns.Enums[to.(Enum).ID].Variants)
		if literal.Value.Sign() < 0 || !literal.Value.IsInt64() || literal.Value.Int64() >= int64(count) {
			ns.Diagnostics.Errorf(literal.Loc, "literal %s is not a variant of %s", literal.Value, ns.TypeString(to))
			return &Error{Loc: literal.Loc}
		}
	default:
		ns.Diagnostics.Errorf(literal.Loc, "number literal cannot convert to '%s'", ns.TypeString(to))
		return &Error{Loc: literal.Loc}
	}
	return &NumberLiteral{Value: literal.Value, Ty: to, Loc: literal.Loc}
}

// isConstantExpression reports whether a resolved expression is a
// compile-time constant: a literal, or an array of them.
func isConstantExpression(expression Expression) bool {
	switch e := expression.(type) {
	case *NumberLiteral, *BoolLiteral, *StringLiteral, *BytesLiteral, *AddressLiteral, *EnumLiteral:
		return true
	case *ArrayLiteral:
		for _, element := range e.Elements {
			if !isConstantExpression(element) {
				return false
			}
		}
		return true
	case *Cast:
		return isConstantExpression(e.Value)
	}
	return false
}
