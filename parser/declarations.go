package parser

import (
	"strings"

	"solang/ast"
	"solang/token"
)

// parseUnitItem parses one top-level item of a source unit: a pragma,
// an import, a contract-like declaration, or a file-level struct,
// enum, event, constant or free function.
func (parser *Parser) parseUnitItem() ast.Node {
	parser.takeDoc()
	switch parser.peek().Kind {
	case token.PRAGMA:
		return parser.parsePragma()
	case token.IMPORT:
		return parser.parseImport()
	case token.ABSTRACT, token.CONTRACT, token.INTERFACE, token.LIBRARY:
		return parser.parseContract()
	case token.STRUCT:
		return parser.parseStruct()
	case token.ENUM:
		return parser.parseEnum()
	case token.EVENT:
		return parser.parseEvent()
	case token.FUNCTION:
		return parser.parseFunction(ast.KindFunction)
	default:
		if typeStart[parser.peek().Kind] || parser.check(token.IDENTIFIER) {
			return parser.parseVariable()
		}
		parser.diagnostics.Errorf(parser.peek().Span, "unexpected token '%s' at file level", parser.peek().Lexeme)
		parser.synchronize()
		return nil
	}
}

var typeStart = map[token.Kind]bool{
	token.BOOL: true, token.INT: true, token.UINT: true, token.BYTES_SIZED: true,
	token.BYTES: true, token.STRING_TYPE: true, token.ADDRESS: true, token.MAPPING: true,
}

// parsePragma accepts and stores a pragma line; the resolver warns
// that it is ignored.
func (parser *Parser) parsePragma() ast.Node {
	start := parser.advance().Span
	name := ""
	if parser.check(token.IDENTIFIER) {
		name = parser.advance().Lexeme
	}
	var value strings.Builder
	for !parser.check(token.SEMICOLON) && !parser.isFinished() {
		value.WriteString(parser.advance().Lexeme)
	}
	end, _ := parser.expect(token.SEMICOLON, "after pragma")
	return &ast.Pragma{Name: name, Value: value.String(), Loc: start.Merge(end.Span)}
}

func (parser *Parser) parseImport() ast.Node {
	start := parser.advance().Span
	path, ok := parser.expect(token.STRING, "after 'import'")
	if !ok {
		parser.synchronize()
		return nil
	}
	alias := ""
	if parser.match(token.AS) {
		name, okAlias := parser.expect(token.IDENTIFIER, "after 'as'")
		if okAlias {
			alias = name.Lexeme
		}
	}
	end, _ := parser.expect(token.SEMICOLON, "after import directive")
	pathValue, _ := path.Value.(string)
	return &ast.Import{Path: pathValue, Alias: alias, Loc: start.Merge(end.Span)}
}

func (parser *Parser) parseContract() ast.Node {
	doc := parser.doc()
	start := parser.peek().Span
	kind := ast.KindContract
	if parser.match(token.ABSTRACT) {
		kind = ast.KindAbstract
		if _, ok := parser.expect(token.CONTRACT, "after 'abstract'"); !ok {
			parser.synchronize()
			return nil
		}
	} else {
		switch parser.advance().Kind {
		case token.INTERFACE:
			kind = ast.KindInterface
		case token.LIBRARY:
			kind = ast.KindLibrary
		}
	}
	name, ok := parser.expect(token.IDENTIFIER, "after contract keyword")
	if !ok {
		parser.synchronize()
		return nil
	}

	contract := &ast.ContractDef{Kind: kind, Name: name.Lexeme, Doc: doc}
	if parser.match(token.IS) {
		for {
			base := parser.parseUserType()
			if base == nil {
				break
			}
			entry := ast.Base{Name: base}
			if parser.match(token.LPA) {
				entry.Arguments = parser.parseArguments()
			}
			contract.Bases = append(contract.Bases, entry)
			if !parser.match(token.COMMA) {
				break
			}
		}
	}

	if _, ok := parser.expect(token.LCUR, "to open contract body"); !ok {
		parser.synchronize()
		return nil
	}
	for !parser.check(token.RCUR) && !parser.isFinished() {
		part := parser.parseContractPart()
		if part != nil {
			contract.Parts = append(contract.Parts, part)
		}
	}
	end, _ := parser.expect(token.RCUR, "to close contract body")
	contract.Loc = start.Merge(end.Span)
	return contract
}

// parseContractPart parses one member of a contract body.
func (parser *Parser) parseContractPart() ast.Node {
	parser.takeDoc()
	switch parser.peek().Kind {
	case token.STRUCT:
		return parser.parseStruct()
	case token.ENUM:
		return parser.parseEnum()
	case token.EVENT:
		return parser.parseEvent()
	case token.USING:
		return parser.parseUsing()
	case token.FUNCTION:
		return parser.parseFunction(ast.KindFunction)
	case token.CONSTRUCTOR:
		return parser.parseFunction(ast.KindConstructor)
	case token.FALLBACK:
		return parser.parseFunction(ast.KindFallback)
	case token.RECEIVE:
		return parser.parseFunction(ast.KindReceive)
	case token.MODIFIER:
		return parser.parseFunction(ast.KindModifier)
	default:
		if typeStart[parser.peek().Kind] || parser.check(token.IDENTIFIER) {
			return parser.parseVariable()
		}
		parser.diagnostics.Errorf(parser.peek().Span, "unexpected token '%s' in contract body", parser.peek().Lexeme)
		parser.synchronize()
		return nil
	}
}

func (parser *Parser) parseStruct() ast.Node {
	doc := parser.doc()
	start := parser.advance().Span
	name, ok := parser.expect(token.IDENTIFIER, "after 'struct'")
	if !ok {
		parser.synchronize()
		return nil
	}
	definition := &ast.StructDef{Name: name.Lexeme, Doc: doc}
	if _, ok := parser.expect(token.LCUR, "to open struct body"); !ok {
		parser.synchronize()
		return nil
	}
	for !parser.check(token.RCUR) && !parser.isFinished() {
		fieldStart := parser.peek().Span
		fieldType := parser.parseTypeName()
		if fieldType == nil {
			parser.synchronize()
			continue
		}
		fieldName, okName := parser.expect(token.IDENTIFIER, "as struct field name")
		if !okName {
			parser.synchronize()
			continue
		}
		end, _ := parser.expect(token.SEMICOLON, "after struct field")
		definition.Fields = append(definition.Fields, ast.StructField{
			Type: fieldType,
			Name: fieldName.Lexeme,
			Loc:  fieldStart.Merge(end.Span),
		})
	}
	end, _ := parser.expect(token.RCUR, "to close struct body")
	definition.Loc = start.Merge(end.Span)
	return definition
}

func (parser *Parser) parseEnum() ast.Node {
	doc := parser.doc()
	start := parser.advance().Span
	name, ok := parser.expect(token.IDENTIFIER, "after 'enum'")
	if !ok {
		parser.synchronize()
		return nil
	}
	definition := &ast.EnumDef{Name: name.Lexeme, Doc: doc}
	if _, ok := parser.expect(token.LCUR, "to open enum body"); !ok {
		parser.synchronize()
		return nil
	}
	for !parser.check(token.RCUR) && !parser.isFinished() {
		variant, okVariant := parser.expect(token.IDENTIFIER, "as enum variant")
		if !okVariant {
			parser.synchronize()
			break
		}
		definition.Variants = append(definition.Variants, variant.Lexeme)
		if !parser.match(token.COMMA) {
			break
		}
	}
	end, _ := parser.expect(token.RCUR, "to close enum body")
	definition.Loc = start.Merge(end.Span)
	return definition
}

func (parser *Parser) parseEvent() ast.Node {
	doc := parser.doc()
	start := parser.advance().Span
	name, ok := parser.expect(token.IDENTIFIER, "after 'event'")
	if !ok {
		parser.synchronize()
		return nil
	}
	definition := &ast.EventDef{Name: name.Lexeme, Doc: doc}
	if _, ok := parser.expect(token.LPA, "after event name"); !ok {
		parser.synchronize()
		return nil
	}
	for !parser.check(token.RPA) && !parser.isFinished() {
		fieldStart := parser.peek().Span
		fieldType := parser.parseTypeName()
		if fieldType == nil {
			parser.synchronize()
			return definition
		}
		field := ast.EventField{Type: fieldType, Loc: fieldStart}
		if parser.match(token.INDEXED) {
			field.Indexed = true
		}
		if parser.check(token.IDENTIFIER) {
			field.Name = parser.advance().Lexeme
		}
		definition.Fields = append(definition.Fields, field)
		if !parser.match(token.COMMA) {
			break
		}
	}
	parser.expect(token.RPA, "to close event parameter list")
	if parser.match(token.ANONYMOUS) {
		definition.Anonymous = true
	}
	end, _ := parser.expect(token.SEMICOLON, "after event declaration")
	definition.Loc = start.Merge(end.Span)
	return definition
}

func (parser *Parser) parseUsing() ast.Node {
	start := parser.advance().Span
	library := parser.parseUserType()
	if library == nil {
		parser.synchronize()
		return nil
	}
	if _, ok := parser.expect(token.FOR, "in using directive"); !ok {
		parser.synchronize()
		return nil
	}
	using := &ast.UsingFor{Library: library}
	if !parser.match(token.MULT) {
		using.Type = parser.parseTypeName()
	}
	end, _ := parser.expect(token.SEMICOLON, "after using directive")
	using.Loc = start.Merge(end.Span)
	return using
}

// parseFunction parses a function, constructor, fallback, receive or
// modifier declaration; the leading keyword has not been consumed.
func (parser *Parser) parseFunction(kind ast.FunctionKind) ast.Node {
	doc := parser.doc()
	start := parser.advance().Span
	definition := &ast.FunctionDef{Kind: kind, Doc: doc}
	if kind == ast.KindFunction || kind == ast.KindModifier {
		name, ok := parser.expect(token.IDENTIFIER, "as function name")
		if !ok {
			parser.synchronize()
			return nil
		}
		definition.Name = name.Lexeme
	}

	if kind == ast.KindModifier && !parser.check(token.LPA) {
		// parameterless modifier: "modifier onlyOwner { … }"
	} else {
		if _, ok := parser.expect(token.LPA, "to open parameter list"); !ok {
			parser.synchronize()
			return nil
		}
		definition.Parameters = parser.parseParameters()
	}

	// attributes: visibility, mutability and modifier invocations may
	// appear in any order
	for {
		switch parser.peek().Kind {
		case token.PUBLIC, token.EXTERNAL, token.INTERNAL, token.PRIVATE:
			if definition.Visibility != "" {
				parser.diagnostics.Errorf(parser.peek().Span, "duplicate visibility specifier '%s'", parser.peek().Lexeme)
			}
			definition.Visibility = parser.advance().Kind
			continue
		case token.PURE, token.VIEW, token.PAYABLE:
			if definition.Mutability != "" {
				parser.diagnostics.Errorf(parser.peek().Span, "duplicate mutability specifier '%s'", parser.peek().Lexeme)
			}
			definition.Mutability = parser.advance().Kind
			continue
		case token.IDENTIFIER:
			invocation := ast.ModifierInvocation{Loc: parser.peek().Span}
			invocation.Name = parser.parseUserType()
			if parser.match(token.LPA) {
				invocation.Arguments = parser.parseArguments()
			}
			definition.Modifiers = append(definition.Modifiers, invocation)
			continue
		case token.RETURNS:
			parser.advance()
			if _, ok := parser.expect(token.LPA, "after 'returns'"); !ok {
				parser.synchronize()
				return nil
			}
			definition.Returns = parser.parseParameters()
			continue
		}
		break
	}

	if parser.match(token.SEMICOLON) {
		definition.Loc = start.Merge(parser.previous().Span)
		return definition
	}
	body := parser.parseBlock()
	if body == nil {
		return nil
	}
	definition.Body = body
	definition.Loc = start.Merge(body.Loc)
	return definition
}

// parseParameters parses a comma-separated parameter list up to and
// including the closing parenthesis.
func (parser *Parser) parseParameters() []ast.Parameter {
	var parameters []ast.Parameter
	for !parser.check(token.RPA) && !parser.isFinished() {
		start := parser.peek().Span
		parameterType := parser.parseTypeName()
		if parameterType == nil {
			parser.synchronize()
			return parameters
		}
		parameter := ast.Parameter{Type: parameterType, Loc: start}
		if parser.check(token.MEMORY) || parser.check(token.STORAGE) || parser.check(token.CALLDATA) {
			parameter.Location = parser.advance().Kind
		}
		if parser.check(token.IDENTIFIER) {
			parameter.Name = parser.advance().Lexeme
		}
		parameters = append(parameters, parameter)
		if !parser.match(token.COMMA) {
			break
		}
	}
	parser.expect(token.RPA, "to close parameter list")
	return parameters
}

// parseVariable parses a state variable or file-level constant:
// type [visibility] [constant] name [= value] ;
func (parser *Parser) parseVariable() ast.Node {
	doc := parser.doc()
	start := parser.peek().Span
	variableType := parser.parseTypeName()
	if variableType == nil {
		parser.synchronize()
		return nil
	}
	variable := &ast.VariableDef{Type: variableType, Doc: doc}
	for {
		switch parser.peek().Kind {
		case token.PUBLIC, token.INTERNAL, token.PRIVATE:
			variable.Visibility = parser.advance().Kind
			continue
		case token.CONSTANT:
			parser.advance()
			variable.Constant = true
			continue
		}
		break
	}
	name, ok := parser.expect(token.IDENTIFIER, "as variable name")
	if !ok {
		parser.synchronize()
		return nil
	}
	variable.Name = name.Lexeme
	if parser.match(token.ASSIGN) {
		variable.Value = parser.parseExpression()
	}
	end, _ := parser.expect(token.SEMICOLON, "after variable declaration")
	variable.Loc = start.Merge(end.Span)
	return variable
}

// parseUserType parses a possibly dotted user-defined type name.
func (parser *Parser) parseUserType() *ast.UserType {
	name, ok := parser.expect(token.IDENTIFIER, "as type name")
	if !ok {
		return nil
	}
	userType := &ast.UserType{Names: []string{name.Lexeme}, Loc: name.Span}
	for parser.check(token.DOT) && parser.tokens[parser.position+1].Kind == token.IDENTIFIER {
		parser.advance()
		part := parser.advance()
		userType.Names = append(userType.Names, part.Lexeme)
		userType.Loc = userType.Loc.Merge(part.Span)
	}
	return userType
}

// parseTypeName parses a syntactic type reference: an elementary
// type, mapping, user type, with any number of array suffixes.
func (parser *Parser) parseTypeName() ast.TypeName {
	var base ast.TypeName
	current := parser.peek()
	switch current.Kind {
	case token.BOOL, token.STRING_TYPE, token.BYTES:
		parser.advance()
		base = &ast.ElementaryType{Kind: current.Kind, Loc: current.Span}
	case token.ADDRESS:
		parser.advance()
		elementary := &ast.ElementaryType{Kind: current.Kind, Loc: current.Span}
		if parser.match(token.PAYABLE) {
			elementary.Payable = true
			elementary.Loc = elementary.Loc.Merge(parser.previous().Span)
		}
		base = elementary
	case token.INT, token.UINT, token.BYTES_SIZED:
		parser.advance()
		width := 256
		if current.Kind == token.BYTES_SIZED {
			width = 32
		}
		if value, ok := current.Value.(int); ok {
			width = value
		}
		base = &ast.ElementaryType{Kind: current.Kind, Width: width, Loc: current.Span}
	case token.MAPPING:
		parser.advance()
		if _, ok := parser.expect(token.LPA, "after 'mapping'"); !ok {
			return nil
		}
		key := parser.parseTypeName()
		if key == nil {
			return nil
		}
		if _, ok := parser.expect(token.ARROW, "between mapping key and value"); !ok {
			return nil
		}
		value := parser.parseTypeName()
		if value == nil {
			return nil
		}
		end, _ := parser.expect(token.RPA, "to close mapping type")
		base = &ast.MappingType{Key: key, Value: value, Loc: current.Span.Merge(end.Span)}
	case token.IDENTIFIER:
		userType := parser.parseUserType()
		if userType == nil {
			return nil
		}
		base = userType
	default:
		parser.diagnostics.Errorf(current.Span, "expected a type, found '%s'", current.Lexeme)
		return nil
	}

	for parser.check(token.LBRA) {
		open := parser.advance().Span
		array := &ast.ArrayType{Element: base}
		if !parser.check(token.RBRA) {
			array.Length = parser.parseExpression()
		}
		end, _ := parser.expect(token.RBRA, "to close array type")
		array.Loc = open.Merge(end.Span)
		base = array
	}
	return base
}
