// Recursive descent parser
// https://en.wikipedia.org/wiki/Recursive_descent_parser
//
// The parser is tolerant: a syntax error is recorded on the shared
// diagnostics accumulator and the parser synchronizes to the next
// statement or declaration boundary, so one broken construct does not
// hide every diagnostic after it.
package parser

import (
	"solang/ast"
	"solang/diag"
	"solang/token"
)

type Parser struct {
	tokens      []token.Token
	position    int
	diagnostics *diag.Diagnostics

	// doc comment seen immediately before the declaration being parsed
	pendingDoc string
}

// Make initializes a Parser over a token stream. The stream must be
// terminated by an EOF token, which the lexer guarantees.
func Make(tokens []token.Token, diagnostics *diag.Diagnostics) *Parser {
	return &Parser{
		tokens:      tokens,
		diagnostics: diagnostics,
	}
}

// Parse consumes the whole token stream and returns the source unit.
func (parser *Parser) Parse() *ast.SourceUnit {
	unit := &ast.SourceUnit{}
	if len(parser.tokens) > 0 {
		unit.Loc = parser.tokens[0].Span.Merge(parser.tokens[len(parser.tokens)-1].Span)
	}
	for !parser.isFinished() {
		item := parser.parseUnitItem()
		if item != nil {
			unit.Items = append(unit.Items, item)
		}
	}
	return unit
}

// peek returns the token at the parser's current position without
// advancing.
func (parser *Parser) peek() token.Token {
	return parser.tokens[parser.position]
}

// previous returns the token before the current position.
func (parser *Parser) previous() token.Token {
	return parser.tokens[parser.position-1]
}

// advance consumes the current token and returns it.
func (parser *Parser) advance() token.Token {
	if !parser.isFinished() {
		parser.position++
	}
	return parser.previous()
}

func (parser *Parser) isFinished() bool {
	return parser.peek().Kind == token.EOF
}

// check reports whether the current token has the given kind.
func (parser *Parser) check(kind token.Kind) bool {
	return parser.peek().Kind == kind
}

// match consumes the current token if it has one of the given kinds.
func (parser *Parser) match(kinds ...token.Kind) bool {
	for _, kind := range kinds {
		if parser.check(kind) {
			parser.advance()
			return true
		}
	}
	return false
}

// expect consumes a token of the given kind or records a diagnostic.
// The second result reports whether the token was present.
func (parser *Parser) expect(kind token.Kind, context string) (token.Token, bool) {
	if parser.check(kind) {
		return parser.advance(), true
	}
	parser.diagnostics.Errorf(parser.peek().Span, "expected '%s' %s, found '%s'", kind, context, parser.peek().Lexeme)
	return parser.peek(), false
}

// takeDoc collects any doc-comment tokens at the current position and
// remembers their text for the next declaration.
func (parser *Parser) takeDoc() {
	for parser.check(token.DOC_COMMENT) {
		text, _ := parser.advance().Value.(string)
		if parser.pendingDoc != "" {
			parser.pendingDoc += "\n"
		}
		parser.pendingDoc += text
	}
}

// doc returns and clears the pending doc comment.
func (parser *Parser) doc() string {
	text := parser.pendingDoc
	parser.pendingDoc = ""
	return text
}

// synchronize skips tokens until just past the next ';' or up to a
// token that can begin a new statement or declaration, so parsing can
// resume after an error.
func (parser *Parser) synchronize() {
	for !parser.isFinished() {
		if parser.advance().Kind == token.SEMICOLON {
			return
		}
		switch parser.peek().Kind {
		case token.RCUR, token.CONTRACT, token.INTERFACE, token.LIBRARY, token.ABSTRACT,
			token.FUNCTION, token.STRUCT, token.ENUM, token.EVENT, token.MODIFIER,
			token.CONSTRUCTOR, token.IF, token.WHILE, token.DO, token.FOR, token.RETURN:
			return
		}
	}
}
