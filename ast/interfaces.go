// Package ast holds the positional syntax tree produced by the
// parser. Nodes carry no type information; the resolver turns them
// into typed expressions owned by the namespace. Every node keeps the
// span of the source text it came from.
package ast

import (
	"solang/token"
)

// Node is the base interface of every syntax tree node.
type Node interface {
	// Span returns the byte range of the source text this node was
	// parsed from.
	Span() token.Span
}

// Expression is the marker interface for expression nodes. An
// expression always evaluates to a value.
type Expression interface {
	Node
	expressionNode()
}

// Statement is the marker interface for statement nodes. A statement
// represents an action and does not produce a value.
type Statement interface {
	Node
	statementNode()
}

// TypeName is the marker interface for syntactic type references
// (elementary types, user-defined names, arrays, mappings).
type TypeName interface {
	Node
	typeNameNode()
}
