// declarations.go contains the top-level declaration nodes of a
// source unit: pragmas, imports, contracts and their members.

package ast

import (
	"solang/token"
)

// SourceUnit is the root node of one parsed file.
type SourceUnit struct {
	Items []Node
	Loc   token.Span
}

func (s *SourceUnit) Span() token.Span { return s.Loc }

// Pragma is a parsed-and-ignored pragma line.
type Pragma struct {
	Name  string
	Value string
	Loc   token.Span
}

func (p *Pragma) Span() token.Span { return p.Loc }

// Import is an import directive, optionally aliased:
// import "path";  import "path" as alias;
type Import struct {
	Path  string
	Alias string
	Loc   token.Span
}

func (i *Import) Span() token.Span { return i.Loc }

// ContractKind distinguishes the four contract-like declarations.
type ContractKind int

const (
	KindContract ContractKind = iota
	KindInterface
	KindLibrary
	KindAbstract
)

func (k ContractKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindLibrary:
		return "library"
	case KindAbstract:
		return "abstract contract"
	default:
		return "contract"
	}
}

// Base is one entry of an "is" inheritance list, with optional
// constructor arguments: "is Base(1, 2)".
type Base struct {
	Name      *UserType
	Arguments []Expression
}

// ContractDef declares a contract, interface, library or abstract
// contract together with all its parts in source order.
type ContractDef struct {
	Kind  ContractKind
	Name  string
	Bases []Base
	Parts []Node
	Doc   string
	Loc   token.Span
}

func (c *ContractDef) Span() token.Span { return c.Loc }

// StructField is one field of a struct definition.
type StructField struct {
	Type TypeName
	Name string
	Loc  token.Span
}

// StructDef declares a struct, at file level or inside a contract.
type StructDef struct {
	Name   string
	Fields []StructField
	Doc    string
	Loc    token.Span
}

func (s *StructDef) Span() token.Span { return s.Loc }

// EnumDef declares an enum and its variants in source order.
type EnumDef struct {
	Name     string
	Variants []string
	Doc      string
	Loc      token.Span
}

func (e *EnumDef) Span() token.Span { return e.Loc }

// EventField is one parameter of an event declaration.
type EventField struct {
	Type    TypeName
	Indexed bool
	Name    string
	Loc     token.Span
}

// EventDef declares an event.
type EventDef struct {
	Name      string
	Fields    []EventField
	Anonymous bool
	Doc       string
	Loc       token.Span
}

func (e *EventDef) Span() token.Span { return e.Loc }

// Parameter is one function parameter or return slot. Name may be
// empty for unnamed returns.
type Parameter struct {
	Type     TypeName
	Location token.Kind // MEMORY, STORAGE, CALLDATA or ""
	Name     string
	Loc      token.Span
}

// FunctionKind distinguishes the function-like members of a contract.
type FunctionKind int

const (
	KindFunction FunctionKind = iota
	KindConstructor
	KindFallback
	KindReceive
	KindModifier
)

// ModifierInvocation is one modifier applied to a function, with
// optional arguments.
type ModifierInvocation struct {
	Name      *UserType
	Arguments []Expression
	Loc       token.Span
}

// FunctionDef declares a function, constructor, fallback, receive or
// modifier. Body is nil for unimplemented (interface/abstract)
// functions.
type FunctionDef struct {
	Kind       FunctionKind
	Name       string
	Parameters []Parameter
	Returns    []Parameter
	Visibility token.Kind // PUBLIC, EXTERNAL, INTERNAL, PRIVATE or ""
	Mutability token.Kind // PURE, VIEW, PAYABLE or ""
	Modifiers  []ModifierInvocation
	Body       *Block
	Doc        string
	Loc        token.Span
}

func (f *FunctionDef) Span() token.Span { return f.Loc }

// VariableDef declares a contract storage variable or a file-level
// constant.
type VariableDef struct {
	Type       TypeName
	Name       string
	Visibility token.Kind
	Constant   bool
	Value      Expression
	Doc        string
	Loc        token.Span
}

func (v *VariableDef) Span() token.Span { return v.Loc }

// UsingFor attaches a library's functions to a type:
// "using Lib for T;" ("using Lib for *;" leaves Type nil).
type UsingFor struct {
	Library *UserType
	Type    TypeName
	Loc     token.Span
}

func (u *UsingFor) Span() token.Span { return u.Loc }
