// expressions.go contains all the expression AST nodes. An expression
// node always evaluates to a value.

package ast

import (
	"solang/token"
)

// NumberLiteral represents an integer literal. Digits holds the
// decimal or hexadecimal digits with underscore separators already
// stripped; Hex records which base the literal was written in. The
// value stays textual here because literals are infinite precision
// until the resolver pins them to a concrete integer type.
type NumberLiteral struct {
	Digits string
	Hex    bool
	Loc    token.Span
}

func (n *NumberLiteral) Span() token.Span { return n.Loc }
func (n *NumberLiteral) expressionNode()  {}

// BoolLiteral represents `true` or `false`.
type BoolLiteral struct {
	Value bool
	Loc   token.Span
}

func (b *BoolLiteral) Span() token.Span { return b.Loc }
func (b *BoolLiteral) expressionNode()  {}

// StringLiteral represents a double-quoted string literal with
// escapes already decoded.
type StringLiteral struct {
	Value string
	Loc   token.Span
}

func (s *StringLiteral) Span() token.Span { return s.Loc }
func (s *StringLiteral) expressionNode()  {}

// HexLiteral represents a hex"…" literal; Value holds the decoded
// bytes.
type HexLiteral struct {
	Value []byte
	Loc   token.Span
}

func (h *HexLiteral) Span() token.Span { return h.Loc }
func (h *HexLiteral) expressionNode()  {}

// AddressLiteral represents a checksum-validated address literal.
// Value holds the 20 raw bytes.
type AddressLiteral struct {
	Value []byte
	Loc   token.Span
}

func (a *AddressLiteral) Span() token.Span { return a.Loc }
func (a *AddressLiteral) expressionNode()  {}

// Identifier represents a bare name.
type Identifier struct {
	Name string
	Loc  token.Span
}

func (i *Identifier) Span() token.Span { return i.Loc }
func (i *Identifier) expressionNode()  {}

// Binary represents a binary operation such as "a + b". The operator
// token distinguishes arithmetic, bitwise, shift, comparison and
// short-circuit logical forms.
type Binary struct {
	Left     Expression
	Operator token.Token
	Right    Expression
}

func (b *Binary) Span() token.Span { return b.Left.Span().Merge(b.Right.Span()) }
func (b *Binary) expressionNode()  {}

// Unary represents a prefix operation: "!a", "-b", "~c", "++d", "--e".
type Unary struct {
	Operator token.Token
	Right    Expression
}

func (u *Unary) Span() token.Span { return u.Operator.Span.Merge(u.Right.Span()) }
func (u *Unary) expressionNode()  {}

// Postfix represents "a++" or "a--".
type Postfix struct {
	Operator token.Token
	Left     Expression
}

func (p *Postfix) Span() token.Span { return p.Left.Span().Merge(p.Operator.Span) }
func (p *Postfix) expressionNode()  {}

// Assign represents an assignment expression, plain or compound
// ("=", "+=", "-=", "*=", "/=").
type Assign struct {
	Target   Expression
	Operator token.Token
	Value    Expression
}

func (a *Assign) Span() token.Span { return a.Target.Span().Merge(a.Value.Span()) }
func (a *Assign) expressionNode()  {}

// Ternary represents "cond ? a : b".
type Ternary struct {
	Condition Expression
	True      Expression
	False     Expression
}

func (t *Ternary) Span() token.Span { return t.Condition.Span().Merge(t.False.Span()) }
func (t *Ternary) expressionNode()  {}

// Call represents "callee(args…)". Explicit casts parse as a Call
// whose callee is a TypeExpression; the resolver tells them apart.
type Call struct {
	Callee    Expression
	Arguments []Expression
	Loc       token.Span
}

func (c *Call) Span() token.Span { return c.Loc }
func (c *Call) expressionNode()  {}

// MemberAccess represents "expr.member".
type MemberAccess struct {
	Expression Expression
	Member     string
	MemberLoc  token.Span
}

func (m *MemberAccess) Span() token.Span { return m.Expression.Span().Merge(m.MemberLoc) }
func (m *MemberAccess) expressionNode()  {}

// Subscript represents "expr[index]".
type Subscript struct {
	Array Expression
	Index Expression
	Loc   token.Span
}

func (s *Subscript) Span() token.Span { return s.Loc }
func (s *Subscript) expressionNode()  {}

// ArrayLiteral represents "[a, b, c]".
type ArrayLiteral struct {
	Elements []Expression
	Loc      token.Span
}

func (a *ArrayLiteral) Span() token.Span { return a.Loc }
func (a *ArrayLiteral) expressionNode()  {}

// New represents "new T(args…)" for dynamic array and contract
// creation.
type New struct {
	Type      TypeName
	Arguments []Expression
	Loc       token.Span
}

func (n *New) Span() token.Span { return n.Loc }
func (n *New) expressionNode()  {}

// TypeExpression wraps a type name appearing in expression position,
// which is how explicit casts like uint32(x) parse.
type TypeExpression struct {
	Type TypeName
}

func (t *TypeExpression) Span() token.Span { return t.Type.Span() }
func (t *TypeExpression) expressionNode()  {}

// ElementaryType is a builtin type keyword: bool, address, address
// payable, string, bytes, intN/uintN and bytesN (Kind tells these
// apart, Width holds N).
type ElementaryType struct {
	Kind    token.Kind
	Width   int
	Payable bool
	Loc     token.Span
}

func (e *ElementaryType) Span() token.Span { return e.Loc }
func (e *ElementaryType) typeNameNode()    {}

// UserType is a possibly qualified user-defined type name such as
// "Token" or "lib.Token".
type UserType struct {
	Names []string
	Loc   token.Span
}

func (u *UserType) Span() token.Span { return u.Loc }
func (u *UserType) typeNameNode()    {}

// ArrayType is "T[]" (Length nil) or "T[n]".
type ArrayType struct {
	Element TypeName
	Length  Expression
	Loc     token.Span
}

func (a *ArrayType) Span() token.Span { return a.Loc }
func (a *ArrayType) typeNameNode()    {}

// MappingType is "mapping(K => V)".
type MappingType struct {
	Key   TypeName
	Value TypeName
	Loc   token.Span
}

func (m *MappingType) Span() token.Span { return m.Loc }
func (m *MappingType) typeNameNode()    {}
