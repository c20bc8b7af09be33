package cfg

import (
	"math/big"

	"solang/sema"
)

// Builder lowers one typed function body into a CFG. Each statement
// contributes zero or more instructions plus at most one terminator;
// loops and conditionals open fresh blocks.
type Builder struct {
	ns       *sema.Namespace
	graph    *CFG
	function *sema.Function

	current   int
	breaks    []int
	continues []int

	// exit block for functions with named returns; -1 when unused
	exit int

	reachable bool
	warned    bool
}

// Build lowers a resolved function into a control-flow graph.
func Build(ns *sema.Namespace, function *sema.Function) *CFG {
	graph := &CFG{FunctionID: function.ID}
	builder := &Builder{ns: ns, graph: graph, function: function, exit: -1, reachable: true}

	for _, local := range function.Variables {
		graph.Vars = append(graph.Vars, graph.NewReg(local.Type))
	}
	builder.current = graph.NewBlock("entry")

	// return slots start zeroed
	for i, ret := range function.Returns {
		builder.emit(Set{Dest: graph.Vars[len(function.Parameters)+i], Value: zeroConst(ret.Type)})
	}

	named := false
	for _, ret := range function.Returns {
		if ret.Name != "" {
			named = true
		}
	}
	if named {
		builder.exit = graph.NewBlock("exit")
	}

	builder.statements(function.Body)

	// fall off the end of the body
	if builder.reachable {
		if named {
			builder.terminate(Branch{Block: builder.exit})
		} else if len(function.Returns) == 0 {
			builder.terminate(Return{})
		} else {
			// missing return; zero values keep the graph well formed
			values := make([]Value, len(function.Returns))
			for i, ret := range function.Returns {
				values[i] = zeroConst(ret.Type)
			}
			builder.terminate(Return{Values: values})
		}
	}

	if named {
		returnRegs := make([]Value, len(function.Returns))
		for i := range function.Returns {
			returnRegs[i] = Reg{No: graph.Vars[len(function.Parameters)+i]}
		}
		exitBlock := graph.Blocks[builder.exit]
		exitBlock.Term = Return{Values: returnRegs}
	}

	// every block must carry a terminator
	for _, block := range graph.Blocks {
		if block.Term == nil {
			block.Term = Unreachable{}
		}
	}
	return graph
}

func (builder *Builder) emit(instruction Instruction) {
	builder.graph.Blocks[builder.current].Instrs = append(builder.graph.Blocks[builder.current].Instrs, instruction)
}

// terminate seals the current block and marks the following code
// unreachable until a new block is opened.
func (builder *Builder) terminate(terminator Terminator) {
	block := builder.graph.Blocks[builder.current]
	if block.Term == nil {
		block.Term = terminator
	}
	builder.reachable = false
}

// open makes a block current and resumes emission into it.
func (builder *Builder) open(block int) {
	builder.current = block
	builder.reachable = true
	builder.warned = false
}

func (builder *Builder) statements(statements []sema.Statement) {
	for _, statement := range statements {
		if !builder.reachable {
			if !builder.warned {
				builder.ns.Diagnostics.Warnf(statement.Span(), "unreachable code")
				builder.warned = true
			}
			// keep lowering into a detached block so diagnostics in
			// dead code still surface
			builder.open(builder.graph.NewBlock("dead"))
			builder.graph.Blocks[builder.current].Term = Unreachable{}
		}
		builder.statement(statement)
	}
}

func (builder *Builder) statement(statement sema.Statement) {
	graph := builder.graph
	switch s := statement.(type) {
	case *sema.VarDecl:
		dest := graph.Vars[s.Local]
		if s.Init != nil {
			value := builder.expr(s.Init)
			builder.emit(Set{Dest: dest, Value: value})
		} else {
			builder.emit(Set{Dest: dest, Value: zeroConst(builder.function.Variables[s.Local].Type)})
		}
	case *sema.ExprStmt:
		builder.expr(s.Expr)
	case *sema.Block:
		builder.statements(s.Statements)
	case *sema.If:
		condition := builder.expr(s.Condition)
		thenBlock := graph.NewBlock("then")
		endBlock := graph.NewBlock("endif")
		elseBlock := endBlock
		if len(s.Else) > 0 {
			elseBlock = graph.NewBlock("else")
		}
		builder.terminate(CondBranch{Cond: condition, True: thenBlock, False: elseBlock})
		builder.open(thenBlock)
		builder.statements(s.Then)
		if builder.reachable {
			builder.terminate(Branch{Block: endBlock})
		}
		if len(s.Else) > 0 {
			builder.open(elseBlock)
			builder.statements(s.Else)
			if builder.reachable {
				builder.terminate(Branch{Block: endBlock})
			}
		}
		builder.open(endBlock)
	case *sema.While:
		header := graph.NewBlock("cond")
		body := graph.NewBlock("body")
		exit := graph.NewBlock("endwhile")
		builder.terminate(Branch{Block: header})
		builder.open(header)
		condition := builder.expr(s.Condition)
		builder.terminate(CondBranch{Cond: condition, True: body, False: exit})
		builder.loop(body, s.Body, exit, header, header)
		builder.open(exit)
	case *sema.DoWhile:
		body := graph.NewBlock("body")
		header := graph.NewBlock("cond")
		exit := graph.NewBlock("enddowhile")
		builder.terminate(Branch{Block: body})
		builder.loop(body, s.Body, exit, header, header)
		builder.open(header)
		condition := builder.expr(s.Condition)
		builder.terminate(CondBranch{Cond: condition, True: body, False: exit})
		builder.open(exit)
	case *sema.For:
		builder.statements(s.Init)
		header := graph.NewBlock("cond")
		body := graph.NewBlock("body")
		post := graph.NewBlock("next")
		exit := graph.NewBlock("endfor")
		builder.terminate(Branch{Block: header})
		builder.open(header)
		if s.Condition != nil {
			condition := builder.expr(s.Condition)
			builder.terminate(CondBranch{Cond: condition, True: body, False: exit})
		} else {
			builder.terminate(Branch{Block: body})
		}
		// continue targets the post-update block
		builder.loop(body, s.Body, exit, post, post)
		builder.open(post)
		builder.statements(s.Post)
		builder.terminate(Branch{Block: header})
		builder.open(exit)
	case *sema.Break:
		builder.terminate(Branch{Block: builder.breaks[len(builder.breaks)-1]})
	case *sema.Continue:
		builder.terminate(Branch{Block: builder.continues[len(builder.continues)-1]})
	case *sema.Return:
		builder.lowerReturn(s)
	case *sema.Emit:
		arguments := make([]Value, len(s.Arguments))
		for i, argument := range s.Arguments {
			arguments[i] = builder.expr(argument)
		}
		builder.emit(Emit{Event: s.Event, Args: arguments})
	case *sema.Revert:
		var reason Value
		if s.Reason != nil {
			reason = builder.expr(s.Reason)
		}
		builder.emit(AssertFailure{Kind: s.Kind, Reason: reason})
		builder.terminate(Unreachable{})
	}
}

// loop lowers a loop body with break/continue targets pushed, then
// branches back to backEdge if the body end is reachable.
func (builder *Builder) loop(body int, statements []sema.Statement, breakTarget, continueTarget, backEdge int) {
	builder.open(body)
	builder.breaks = append(builder.breaks, breakTarget)
	builder.continues = append(builder.continues, continueTarget)
	builder.statements(statements)
	builder.breaks = builder.breaks[:len(builder.breaks)-1]
	builder.continues = builder.continues[:len(builder.continues)-1]
	if builder.reachable {
		builder.terminate(Branch{Block: backEdge})
	}
}

// lowerReturn emits either a direct Return or, for named returns,
// assignments to the return slots and a branch to the exit block.
func (builder *Builder) lowerReturn(statement *sema.Return) {
	function := builder.function
	if builder.exit >= 0 {
		for i, value := range statement.Values {
			lowered := builder.expr(value)
			builder.emit(Set{Dest: builder.graph.Vars[len(function.Parameters)+i], Value: lowered})
		}
		builder.terminate(Branch{Block: builder.exit})
		return
	}
	values := make([]Value, len(statement.Values))
	for i, value := range statement.Values {
		values[i] = builder.expr(value)
	}
	builder.terminate(Return{Values: values})
}

// zeroConst builds the all-zero constant of a scalar type.
func zeroConst(ty sema.Type) Value {
	switch t := sema.Deref(ty).(type) {
	case sema.Bool:
		return ConstBool{}
	case sema.Bytes:
		return ConstBytes{Value: make([]byte, t.N), Ty: t}
	case sema.Address:
		return ConstBytes{Value: make([]byte, 20), Ty: t}
	case sema.String:
		return ConstString{}
	case sema.DynamicBytes:
		return ConstBytes{Ty: t}
	}
	return ConstInt{Value: new(big.Int), Ty: sema.Deref(ty)}
}
