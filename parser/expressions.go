package parser

import (
	"solang/ast"
	"solang/token"
)

// Binding powers for the expression grammar, lowest first. Expression
// parsing is precedence climbing: parseBinary consumes operators of
// at least the requested level, recursing with level+1 for the right
// operand (same level for the right-associative power operator).
const (
	precTernary = iota + 1
	precOr
	precAnd
	precEquality
	precComparison
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precTerm
	precFactor
	precPower
	precUnary
)

var binaryPrecedence = map[token.Kind]int{
	token.OR_OR:        precOr,
	token.AND_AND:      precAnd,
	token.EQUAL_EQUAL:  precEquality,
	token.NOT_EQUAL:    precEquality,
	token.LESS:         precComparison,
	token.LESS_EQUAL:   precComparison,
	token.LARGER:       precComparison,
	token.LARGER_EQUAL: precComparison,
	token.PIPE:         precBitOr,
	token.CARET:        precBitXor,
	token.AMPERSAND:    precBitAnd,
	token.SHIFT_LEFT:   precShift,
	token.SHIFT_RIGHT:  precShift,
	token.ADD:          precTerm,
	token.SUB:          precTerm,
	token.MULT:         precFactor,
	token.DIV:          precFactor,
	token.MOD:          precFactor,
	token.POWER:        precPower,
}

// parseExpression parses a full expression including assignment and
// the ternary operator.
func (parser *Parser) parseExpression() ast.Expression {
	return parser.parseAssignment()
}

func (parser *Parser) parseAssignment() ast.Expression {
	target := parser.parseTernary()
	if target == nil {
		return nil
	}
	switch parser.peek().Kind {
	case token.ASSIGN, token.ADD_ASSIGN, token.SUB_ASSIGN, token.MULT_ASSIGN, token.DIV_ASSIGN:
		operator := parser.advance()
		value := parser.parseAssignment()
		if value == nil {
			return nil
		}
		return &ast.Assign{Target: target, Operator: operator, Value: value}
	}
	return target
}

func (parser *Parser) parseTernary() ast.Expression {
	condition := parser.parseBinary(precOr)
	if condition == nil || !parser.match(token.QUESTION) {
		return condition
	}
	trueValue := parser.parseExpression()
	if _, ok := parser.expect(token.COLON, "in ternary expression"); !ok {
		return nil
	}
	falseValue := parser.parseTernary()
	if trueValue == nil || falseValue == nil {
		return nil
	}
	return &ast.Ternary{Condition: condition, True: trueValue, False: falseValue}
}

func (parser *Parser) parseBinary(level int) ast.Expression {
	if level >= precUnary {
		return parser.parseUnary()
	}
	left := parser.parseBinary(level + 1)
	if left == nil {
		return nil
	}
	for {
		operatorLevel, isBinary := binaryPrecedence[parser.peek().Kind]
		if !isBinary || operatorLevel != level {
			return left
		}
		operator := parser.advance()
		rightLevel := level + 1
		if operator.Kind == token.POWER {
			// ** is right-associative
			rightLevel = level
		}
		right := parser.parseBinary(rightLevel)
		if right == nil {
			return nil
		}
		left = &ast.Binary{Left: left, Operator: operator, Right: right}
	}
}

func (parser *Parser) parseUnary() ast.Expression {
	switch parser.peek().Kind {
	case token.BANG, token.SUB, token.TILDE, token.INCREMENT, token.DECREMENT:
		operator := parser.advance()
		right := parser.parseUnary()
		if right == nil {
			return nil
		}
		return &ast.Unary{Operator: operator, Right: right}
	}
	return parser.parsePostfix()
}

// parsePostfix parses a primary expression followed by any chain of
// calls, member accesses, subscripts and ++/-- postfix operators.
func (parser *Parser) parsePostfix() ast.Expression {
	expression := parser.parsePrimary()
	if expression == nil {
		return nil
	}
	for {
		switch parser.peek().Kind {
		case token.LPA:
			open := parser.advance().Span
			arguments := parser.parseArguments()
			expression = &ast.Call{
				Callee:    expression,
				Arguments: arguments,
				Loc:       expression.Span().Merge(open).Merge(parser.previous().Span),
			}
		case token.DOT:
			parser.advance()
			member, ok := parser.expect(token.IDENTIFIER, "after '.'")
			if !ok {
				return nil
			}
			expression = &ast.MemberAccess{Expression: expression, Member: member.Lexeme, MemberLoc: member.Span}
		case token.LBRA:
			open := parser.advance().Span
			index := parser.parseExpression()
			end, _ := parser.expect(token.RBRA, "to close subscript")
			expression = &ast.Subscript{Array: expression, Index: index, Loc: expression.Span().Merge(open).Merge(end.Span)}
		case token.INCREMENT, token.DECREMENT:
			operator := parser.advance()
			expression = &ast.Postfix{Operator: operator, Left: expression}
		default:
			return expression
		}
	}
}

// parseArguments parses a comma-separated argument list up to and
// including the closing parenthesis; the opening parenthesis has
// already been consumed.
func (parser *Parser) parseArguments() []ast.Expression {
	var arguments []ast.Expression
	for !parser.check(token.RPA) && !parser.isFinished() {
		argument := parser.parseExpression()
		if argument == nil {
			break
		}
		arguments = append(arguments, argument)
		if !parser.match(token.COMMA) {
			break
		}
	}
	parser.expect(token.RPA, "to close argument list")
	return arguments
}

func (parser *Parser) parsePrimary() ast.Expression {
	current := parser.peek()
	switch current.Kind {
	case token.NUMBER:
		parser.advance()
		digits, _ := current.Value.(string)
		return &ast.NumberLiteral{Digits: digits, Loc: current.Span}
	case token.HEX_NUMBER:
		parser.advance()
		digits, _ := current.Value.(string)
		return &ast.NumberLiteral{Digits: digits, Hex: true, Loc: current.Span}
	case token.TRUE, token.FALSE:
		parser.advance()
		return &ast.BoolLiteral{Value: current.Kind == token.TRUE, Loc: current.Span}
	case token.STRING:
		parser.advance()
		value, _ := current.Value.(string)
		return &ast.StringLiteral{Value: value, Loc: current.Span}
	case token.HEX_STRING:
		parser.advance()
		value, _ := current.Value.([]byte)
		return &ast.HexLiteral{Value: value, Loc: current.Span}
	case token.ADDRESS_LITERAL:
		parser.advance()
		value, _ := current.Value.([]byte)
		return &ast.AddressLiteral{Value: value, Loc: current.Span}
	case token.IDENTIFIER:
		parser.advance()
		return &ast.Identifier{Name: current.Lexeme, Loc: current.Span}
	case token.BOOL, token.INT, token.UINT, token.BYTES_SIZED, token.BYTES, token.STRING_TYPE, token.ADDRESS, token.MAPPING:
		typeName := parser.parseTypeName()
		if typeName == nil {
			return nil
		}
		return &ast.TypeExpression{Type: typeName}
	case token.NEW:
		start := parser.advance().Span
		typeName := parser.parseTypeName()
		if typeName == nil {
			return nil
		}
		expression := &ast.New{Type: typeName, Loc: start.Merge(typeName.Span())}
		if parser.match(token.LPA) {
			expression.Arguments = parser.parseArguments()
			expression.Loc = expression.Loc.Merge(parser.previous().Span)
		}
		return expression
	case token.LPA:
		parser.advance()
		expression := parser.parseExpression()
		parser.expect(token.RPA, "to close parenthesized expression")
		return expression
	case token.LBRA:
		open := parser.advance().Span
		literal := &ast.ArrayLiteral{}
		for !parser.check(token.RBRA) && !parser.isFinished() {
			element := parser.parseExpression()
			if element == nil {
				break
			}
			literal.Elements = append(literal.Elements, element)
			if !parser.match(token.COMMA) {
				break
			}
		}
		end, _ := parser.expect(token.RBRA, "to close array literal")
		literal.Loc = open.Merge(end.Span)
		return literal
	default:
		parser.diagnostics.Errorf(current.Span, "expected an expression, found '%s'", current.Lexeme)
		parser.advance()
		return nil
	}
}
