package sema

import (
	"solang/ast"
	"solang/token"
)

// resolveBody resolves one function's statements into the typed form.
// The variable table is laid out parameters first, then return slots
// (named or not), then declared locals; the CFG builder relies on
// that layout.
func (ns *Namespace) resolveBody(function *Function) {
	context := ns.bodyContext(ns.unitOf(function.Contract), function.Contract, function)
	for _, parameter := range function.Parameters {
		context.declareLocal(parameter.Name, parameter.Type, parameter.Loc)
	}
	for _, ret := range function.Returns {
		context.declareLocal(ret.Name, ret.Type, ret.Loc)
	}
	function.Body = context.resolveStatements(function.astNode.Body.Statements)

	switch function.Mutability {
	case View:
		if context.writesState {
			ns.Diagnostics.Errorf(function.Loc, "function declared 'view' but it writes contract storage")
		}
	case Pure:
		if context.writesState {
			ns.Diagnostics.Errorf(function.Loc, "function declared 'pure' but it writes contract storage")
		} else if context.readsState {
			ns.Diagnostics.Errorf(function.Loc, "function declared 'pure' but it reads contract storage")
		}
	}
}

func (context *bodyContext) resolveStatements(statements []ast.Statement) []Statement {
	var resolved []Statement
	for _, statement := range statements {
		typed := context.resolveStatement(statement)
		if typed != nil {
			resolved = append(resolved, typed)
		}
	}
	return resolved
}

func (context *bodyContext) resolveStatement(node ast.Statement) Statement {
	ns := context.ns
	switch statement := node.(type) {
	case *ast.Block:
		context.push()
		inner := context.resolveStatements(statement.Statements)
		context.pop()
		return &Block{Statements: inner, Loc: statement.Loc}
	case *ast.VarDeclStmt:
		declarationType := ns.resolveType(context.unit, context.contract, statement.Type)
		if declarationType == nil {
			return nil
		}
		declarationType = locate(declarationType, statement.Location)
		if _, bad := Deref(declarationType).(Mapping); bad {
			if ref, isRef := declarationType.(Ref); !isRef || ref.Loc != Storage {
				ns.Diagnostics.Errorf(statement.Loc, "mappings can only be declared as storage references")
				return nil
			}
		}
		var initializer Expression
		if statement.Value != nil {
			initializer = context.resolveExpression(statement.Value, declarationType)
		}
		no := context.declareLocal(statement.Name, declarationType, statement.Loc)
		return &VarDecl{Local: no, Init: initializer, Loc: statement.Loc}
	case *ast.ExpressionStmt:
		expression := context.resolve(statement.Expression)
		if isError(expression) {
			return nil
		}
		expression = context.pinned(expression)
		return &ExprStmt{Expr: expression}
	case *ast.If:
		condition := context.resolveExpression(statement.Condition, Bool{})
		context.push()
		then := context.resolveBranch(statement.Then)
		context.pop()
		var otherwise []Statement
		if statement.Else != nil {
			context.push()
			otherwise = context.resolveBranch(statement.Else)
			context.pop()
		}
		return &If{Condition: condition, Then: then, Else: otherwise, Loc: statement.Loc}
	case *ast.While:
		condition := context.resolveExpression(statement.Condition, Bool{})
		context.loopDepth++
		context.push()
		body := context.resolveBranch(statement.Body)
		context.pop()
		context.loopDepth--
		return &While{Condition: condition, Body: body, Loc: statement.Loc}
	case *ast.DoWhile:
		context.loopDepth++
		context.push()
		body := context.resolveBranch(statement.Body)
		context.pop()
		context.loopDepth--
		condition := context.resolveExpression(statement.Condition, Bool{})
		return &DoWhile{Body: body, Condition: condition, Loc: statement.Loc}
	case *ast.For:
		context.push()
		var initializer []Statement
		if statement.Init != nil {
			if typed := context.resolveStatement(statement.Init); typed != nil {
				initializer = append(initializer, typed)
			}
		}
		var condition Expression
		if statement.Condition != nil {
			condition = context.resolveExpression(statement.Condition, Bool{})
		}
		var post []Statement
		if statement.Post != nil {
			if typed := context.resolveStatement(statement.Post); typed != nil {
				post = append(post, typed)
			}
		}
		context.loopDepth++
		body := context.resolveBranch(statement.Body)
		context.loopDepth--
		context.pop()
		return &For{Init: initializer, Condition: condition, Post: post, Body: body, Loc: statement.Loc}
	case *ast.Break:
		if context.loopDepth == 0 {
			ns.Diagnostics.Errorf(statement.Loc, "'break' outside of a loop")
			return nil
		}
		return &Break{Loc: statement.Loc}
	case *ast.Continue:
		if context.loopDepth == 0 {
			ns.Diagnostics.Errorf(statement.Loc, "'continue' outside of a loop")
			return nil
		}
		return &Continue{Loc: statement.Loc}
	case *ast.Return:
		return context.resolveReturn(statement)
	case *ast.Emit:
		return context.resolveEmit(statement)
	case *ast.Revert:
		revert := &Revert{Kind: RevertUser, Loc: statement.Loc}
		if statement.Reason != nil {
			revert.Reason = context.resolveExpression(statement.Reason, String{})
		}
		return revert
	case *ast.Require:
		condition := context.resolveExpression(statement.Condition, Bool{})
		revert := &Revert{Kind: RevertUser, Loc: statement.Loc}
		if statement.Reason != nil {
			revert.Reason = context.resolveExpression(statement.Reason, String{})
		}
		return &If{Condition: &Not{Value: condition}, Then: []Statement{revert}, Loc: statement.Loc}
	case *ast.Assert:
		condition := context.resolveExpression(statement.Condition, Bool{})
		return &If{
			Condition: &Not{Value: condition},
			Then:      []Statement{&Revert{Kind: RevertAssert, Loc: statement.Loc}},
			Loc:       statement.Loc,
		}
	case *ast.Delete:
		target := context.resolveLvalue(statement.Target)
		if isError(target) {
			return nil
		}
		context.noteWrite(target)
		return &ExprStmt{Expr: &Assign{Target: target, Value: zeroValue(ns, Deref(target.Type()), statement.Loc)}}
	case *ast.Placeholder:
		if context.function == nil || context.function.Kind != FuncModifier {
			ns.Diagnostics.Errorf(statement.Loc, "'_' is only valid inside a modifier body")
			return nil
		}
		return &Placeholder{Loc: statement.Loc}
	}
	ns.Diagnostics.Errorf(node.Span(), "statement cannot be resolved")
	return nil
}

// resolveBranch resolves a statement that syntactically is a single
// statement but semantically a list (if/loop bodies).
func (context *bodyContext) resolveBranch(node ast.Statement) []Statement {
	if block, isBlock := node.(*ast.Block); isBlock {
		return context.resolveStatements(block.Statements)
	}
	statement := context.resolveStatement(node)
	if statement == nil {
		return nil
	}
	return []Statement{statement}
}

// pinned applies the default pinning to a bare expression statement's
// value so no unpinned literal survives resolution.
func (context *bodyContext) pinned(expression Expression) Expression {
	return context.ns.pinDefault(expression)
}

func (context *bodyContext) resolveReturn(statement *ast.Return) Statement {
	ns := context.ns
	function := context.function
	if function == nil {
		return nil
	}
	if len(statement.Values) == 0 {
		// bare return; legal when the function has no returns or all
		// returns are named
		for _, ret := range function.Returns {
			if ret.Name == "" {
				ns.Diagnostics.Errorf(statement.Loc, "return without values, but function returns are unnamed")
				break
			}
		}
		return &Return{Loc: statement.Loc}
	}
	if len(statement.Values) != len(function.Returns) {
		ns.Diagnostics.Errorf(statement.Loc, "function returns %d values, statement has %d",
			len(function.Returns), len(statement.Values))
		return &Return{Loc: statement.Loc}
	}
	values := make([]Expression, len(statement.Values))
	for i, value := range statement.Values {
		values[i] = context.resolveExpression(value, function.Returns[i].Type)
	}
	return &Return{Values: values, Loc: statement.Loc}
}

func (context *bodyContext) resolveEmit(statement *ast.Emit) Statement {
	ns := context.ns
	call, isCall := statement.Event.(*ast.Call)
	if !isCall {
		return nil
	}
	identifier, isIdentifier := call.Callee.(*ast.Identifier)
	if !isIdentifier {
		ns.Diagnostics.Errorf(statement.Loc, "emit requires an event name")
		return nil
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
	if !found || symbol.Kind != SymEvent {
		ns.Diagnostics.Errorf(identifier.Loc, "unknown event '%s'", identifier.Name)
		return nil
	}

	// pick the overload whose arity matches
	eventID := -1
	for _, candidate := range symbol.Overloads {
		if len(ns.Events[candidate].Fields) == len(call.Arguments) {
			eventID = candidate
			break
		}
	}
	if eventID < 0 {
		ns.Diagnostics.Errorf(statement.Loc, "no declaration of event '%s' takes %d arguments", identifier.Name, len(call.Arguments))
		return nil
	}
	declaration := ns.Events[eventID]
	arguments := make([]Expression, len(call.Arguments))
	for i, argument := range call.Arguments {
		arguments[i] = context.resolveExpression(argument, declaration.Fields[i].Type)
	}
	return &Emit{Event: eventID, Arguments: arguments, Loc: statement.Loc}
}

// zeroValue builds the default value of a type, used by delete.
func zeroValue(ns *Namespace, ty Type, span token.Span) Expression {
	switch t := ty.(type) {
	case Bool:
		return &BoolLiteral{Value: false, Loc: span}
	case Int, Uint:
		return &NumberLiteral{Value: bigZero(), Ty: t, Loc: span}
	case Bytes:
		return &BytesLiteral{Value: make([]byte, t.N), Ty: t, Loc: span}
	case Address:
		return &AddressLiteral{Value: make([]byte, 20), Loc: span}
	case Enum:
		return &EnumLiteral{Enum: t.ID, Variant: 0, Loc: span}
	case String:
		return &StringLiteral{Value: "", Loc: span}
	case DynamicBytes:
		return &BytesLiteral{Value: nil, Ty: t, Loc: span}
	}
	return &NumberLiteral{Value: bigZero(), Ty: Uint{Width: 256}, Loc: span}
}
