package sema

import (
	"math/big"
)

func bigZero() *big.Int { return new(big.Int) }

// desugarModifiers rewrites a function body as wrapping layers: the
// original body is the innermost "_" placeholder, and each modifier's
// body is substituted with the composition to its left. Modifier
// locals are appended to the function's variable table and their
// bodies renumbered accordingly.
func (ns *Namespace) desugarModifiers(function *Function) {
	wrapped := function.Body
	invocations := function.astNode.Modifiers

	for i := len(invocations) - 1; i >= 0; i-- {
		invocation := invocations[i]
		modifier := ns.findModifier(function.Contract, invocation.Name.Names[len(invocation.Name.Names)-1])
		if modifier == nil {
			ns.Diagnostics.Errorf(invocation.Loc, "unknown modifier '%s'", invocation.Name.Names[len(invocation.Name.Names)-1])
			continue
		}
		context := ns.bodyContext(ns.unitOf(function.Contract), function.Contract, function)
		if len(invocation.Arguments) != len(modifier.Parameters) {
			ns.Diagnostics.Errorf(invocation.Loc, "modifier '%s' takes %d arguments, got %d",
				modifier.Name, len(modifier.Parameters), len(invocation.Arguments))
			continue
		}

		// bind the modifier's parameters as fresh function locals
		offset := len(function.Variables)
		for _, local := range modifier.Variables {
			function.Variables = append(function.Variables, local)
		}
		var prelude []Statement
		for argIndex, argument := range invocation.Arguments {
			value := context.resolveExpression(argument, modifier.Parameters[argIndex].Type)
			prelude = append(prelude, &VarDecl{Local: offset + argIndex, Init: value, Loc: invocation.Loc})
		}

		body := renumberStatements(modifier.Body, offset)
		body = substitute(body, wrapped)
		wrapped = append(prelude, body...)
	}
	function.Body = wrapped
}

// findModifier resolves a modifier name over the contract's
// linearization, most-derived definition first.
func (ns *Namespace) findModifier(contract int, name string) *Function {
	if contract < 0 {
		return nil
	}
	for _, linear := range ns.Contracts[contract].Linear {
		if symbol, ok := ns.contractScopes[linear][name]; ok && symbol.Kind == SymFunction {
			for _, candidate := range symbol.Overloads {
				if ns.Functions[candidate].Kind == FuncModifier {
					return ns.Functions[candidate]
				}
			}
		}
	}
	return nil
}

// substitute replaces every Placeholder statement with the inner
// composition. A modifier body may use "_" more than once; the inner
// statements are substituted at each occurrence.
func substitute(statements []Statement, inner []Statement) []Statement {
	var out []Statement
	for _, statement := range statements {
		switch s := statement.(type) {
		case *Placeholder:
			out = append(out, inner...)
		case *Block:
			out = append(out, &Block{Statements: substitute(s.Statements, inner), Loc: s.Loc})
		case *If:
			out = append(out, &If{
				Condition: s.Condition,
				Then:      substitute(s.Then, inner),
				Else:      substitute(s.Else, inner),
				Loc:       s.Loc,
			})
		case *While:
			out = append(out, &While{Condition: s.Condition, Body: substitute(s.Body, inner), Loc: s.Loc})
		case *DoWhile:
			out = append(out, &DoWhile{Body: substitute(s.Body, inner), Condition: s.Condition, Loc: s.Loc})
		case *For:
			out = append(out, &For{
				Init:      substitute(s.Init, inner),
				Condition: s.Condition,
				Post:      substitute(s.Post, inner),
				Body:      substitute(s.Body, inner),
				Loc:       s.Loc,
			})
		default:
			out = append(out, statement)
		}
	}
	return out
}

// renumberStatements shifts every local variable reference in a
// cloned modifier body by offset, so the clone reads and writes the
// slots appended to the enclosing function's table.
func renumberStatements(statements []Statement, offset int) []Statement {
	out := make([]Statement, 0, len(statements))
	for _, statement := range statements {
		out = append(out, renumberStatement(statement, offset))
	}
	return out
}

func renumberStatement(statement Statement, offset int) Statement {
	switch s := statement.(type) {
	case *VarDecl:
		return &VarDecl{Local: s.Local + offset, Init: renumber(s.Init, offset), Loc: s.Loc}
	case *ExprStmt:
		return &ExprStmt{Expr: renumber(s.Expr, offset)}
	case *Block:
		return &Block{Statements: renumberStatements(s.Statements, offset), Loc: s.Loc}
	case *If:
		return &If{
			Condition: renumber(s.Condition, offset),
			Then:      renumberStatements(s.Then, offset),
			Else:      renumberStatements(s.Else, offset),
			Loc:       s.Loc,
		}
	case *While:
		return &While{Condition: renumber(s.Condition, offset), Body: renumberStatements(s.Body, offset), Loc: s.Loc}
	case *DoWhile:
		return &DoWhile{Body: renumberStatements(s.Body, offset), Condition: renumber(s.Condition, offset), Loc: s.Loc}
	case *For:
		return &For{
			Init:      renumberStatements(s.Init, offset),
			Condition: renumber(s.Condition, offset),
			Post:      renumberStatements(s.Post, offset),
			Body:      renumberStatements(s.Body, offset),
			Loc:       s.Loc,
		}
	case *Return:
		values := make([]Expression, len(s.Values))
		for i, value := range s.Values {
			values[i] = renumber(value, offset)
		}
		return &Return{Values: values, Loc: s.Loc}
	case *Emit:
		arguments := make([]Expression, len(s.Arguments))
		for i, argument := range s.Arguments {
			arguments[i] = renumber(argument, offset)
		}
		return &Emit{Event: s.Event, Arguments: arguments, Loc: s.Loc}
	case *Revert:
		return &Revert{Kind: s.Kind, Reason: renumber(s.Reason, offset), Loc: s.Loc}
	default:
		return statement
	}
}

// renumber rewrites local variable indexes inside an expression tree.
func renumber(expression Expression, offset int) Expression {
	if expression == nil {
		return nil
	}
	switch e := expression.(type) {
	case *Variable:
		return &Variable{No: e.No + offset, Ty: e.Ty, Loc: e.Loc}
	case *Load:
		return &Load{Ref: renumber(e.Ref, offset), Ty: e.Ty}
	case *Assign:
		return &Assign{Target: renumber(e.Target, offset), Value: renumber(e.Value, offset)}
	case *Arithmetic:
		return &Arithmetic{Op: e.Op, Left: renumber(e.Left, offset), Right: renumber(e.Right, offset), Ty: e.Ty}
	case *Bitwise:
		return &Bitwise{Op: e.Op, Left: renumber(e.Left, offset), Right: renumber(e.Right, offset), Ty: e.Ty}
	case *Shift:
		return &Shift{Left: e.Left, Value: renumber(e.Value, offset), Amount: renumber(e.Amount, offset), Ty: e.Ty}
	case *Compare:
		return &Compare{Op: e.Op, Left: renumber(e.Left, offset), Right: renumber(e.Right, offset)}
	case *Logical:
		return &Logical{And: e.And, Left: renumber(e.Left, offset), Right: renumber(e.Right, offset)}
	case *Not:
		return &Not{Value: renumber(e.Value, offset)}
	case *Complement:
		return &Complement{Value: renumber(e.Value, offset), Ty: e.Ty}
	case *Negate:
		return &Negate{Value: renumber(e.Value, offset), Ty: e.Ty}
	case *Ternary:
		return &Ternary{
			Condition: renumber(e.Condition, offset),
			True:      renumber(e.True, offset),
			False:     renumber(e.False, offset),
			Ty:        e.Ty,
		}
	case *Cast:
		return &Cast{Value: renumber(e.Value, offset), Ty: e.Ty, Explicit: e.Explicit}
	case *PreIncDec:
		return &PreIncDec{Target: renumber(e.Target, offset), Decrement: e.Decrement, Ty: e.Ty}
	case *PostIncDec:
		return &PostIncDec{Target: renumber(e.Target, offset), Decrement: e.Decrement, Ty: e.Ty}
	case *FunctionCall:
		arguments := make([]Expression, len(e.Arguments))
		for i, argument := range e.Arguments {
			arguments[i] = renumber(argument, offset)
		}
		return &FunctionCall{Function: e.Function, Arguments: arguments, Returns: e.Returns, Loc: e.Loc}
	case *ExternalCall:
		arguments := make([]Expression, len(e.Arguments))
		for i, argument := range e.Arguments {
			arguments[i] = renumber(argument, offset)
		}
		return &ExternalCall{Address: renumber(e.Address, offset), Function: e.Function, Arguments: arguments, Returns: e.Returns, Loc: e.Loc}
	case *Builtin:
		arguments := make([]Expression, len(e.Arguments))
		for i, argument := range e.Arguments {
			arguments[i] = renumber(argument, offset)
		}
		return &Builtin{Kind: e.Kind, Arguments: arguments, Ty: e.Ty, Loc: e.Loc}
	case *StructMember:
		return &StructMember{Value: renumber(e.Value, offset), Field: e.Field, Ty: e.Ty}
	case *Subscript:
		return &Subscript{Array: renumber(e.Array, offset), Index: renumber(e.Index, offset), Ty: e.Ty}
	case *StructLiteral:
		fields := make([]Expression, len(e.Fields))
		for i, field := range e.Fields {
			fields[i] = renumber(field, offset)
		}
		return &StructLiteral{Struct: e.Struct, Fields: fields, Loc: e.Loc}
	case *ArrayLiteral:
		elements := make([]Expression, len(e.Elements))
		for i, element := range e.Elements {
			elements[i] = renumber(element, offset)
		}
		return &ArrayLiteral{Elements: elements, Ty: e.Ty, Loc: e.Loc}
	case *AllocDynamic:
		return &AllocDynamic{Length: renumber(e.Length, offset), Ty: e.Ty, Loc: e.Loc}
	default:
		// literals and storage variables carry no local references
		return expression
	}
}
