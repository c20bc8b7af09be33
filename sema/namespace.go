package sema

import (
	"solang/ast"
	"solang/diag"
	"solang/token"
)

// SourceUnit is one loaded file, identified by its monotonic id.
type SourceUnit struct {
	ID   int
	Path string
	Tree *ast.SourceUnit
}

// EnumDecl is a resolved enum declaration. Variant values are their
// declaration index; the underlying representation is uint8.
type EnumDecl struct {
	ID       int
	Name     string
	Contract int // enclosing contract id, -1 at file level
	Variants []string
	Doc      string
	Loc      token.Span
}

// Field is one resolved struct field with its type.
type Field struct {
	Name string
	Type Type
	Loc  token.Span
}

// StructDecl is a resolved struct declaration.
type StructDecl struct {
	ID       int
	Name     string
	Contract int
	Fields   []Field
	Doc      string
	Loc      token.Span

	astFields []ast.StructField
}

// EventDecl is a resolved event declaration.
type EventDecl struct {
	ID        int
	Name      string
	Contract  int
	Fields    []Field
	Indexed   []bool
	Anonymous bool
	Signature string
	Loc       token.Span

	astFields []ast.EventField
}

// Parameter is one resolved function parameter or return slot.
type Parameter struct {
	Name string
	Type Type
	Loc  token.Span
}

// FunctionKind mirrors the function-like declaration forms.
type FunctionKind int

const (
	FuncPlain FunctionKind = iota
	FuncConstructor
	FuncFallback
	FuncReceive
	FuncModifier
)

// Function is a resolved function, constructor, fallback, receive or
// modifier. Body is the typed statement list; for functions with
// modifiers, Body is already the desugared composition with each
// modifier's placeholder substituted.
type Function struct {
	ID         int
	Name       string
	Kind       FunctionKind
	Contract   int // declaring contract id, -1 for free functions
	Parameters []Parameter
	Returns    []Parameter
	Visibility Visibility
	Mutability Mutability
	Signature  string
	Selector   [4]byte
	InlineHint bool
	Body       []Statement
	HasBody    bool
	Doc        string
	Loc        token.Span

	astNode *ast.FunctionDef

	// locals assigned during body resolution; parameters first, then
	// return slots, then declared variables
	Variables []LocalVariable
}

// LocalVariable is one slot of a function's variable table.
type LocalVariable struct {
	Name string
	Type Type
	Loc  token.Span
}

// StorageVariable is a contract state variable with its assigned
// storage slot. Slot and Offset are filled by slot assignment after
// linearization.
type StorageVariable struct {
	Name     string
	Type     Type
	Contract int
	Constant bool
	Public   bool
	Initial  Expression // nil when defaulted
	Slot     uint64
	Offset   int // byte offset within the slot for packed primitives
	Loc      token.Span

	astType  ast.TypeName
	astValue ast.Expression
}

// ContractDecl is a resolved contract, interface, library or abstract
// contract.
type ContractDecl struct {
	ID     int
	Name   string
	Kind   ast.ContractKind
	Unit   int
	Bases  []int // direct bases, declaration order
	Linear []int // C3 linearization, the contract itself first
	Doc    string
	Loc    token.Span

	// Variables are the storage variables declared by this contract
	// only; Layout is the slot-assigned union over the linearization.
	Variables []*StorageVariable
	Layout    []*StorageVariable

	Functions []int // ids of functions declared directly on this contract
	UsingFor  []UsingEntry

	// Selectors maps the 4-byte selector of every externally callable
	// function in the linearized contract to its function id.
	Selectors map[[4]byte]int

	astBases []ast.Base
	astUsing []*ast.UsingFor
}

// UsingEntry attaches a library to a type; Type nil means "for *".
type UsingEntry struct {
	Library int
	Type    Type
}

// Namespace bundles everything declared across the loaded source
// units. A single Namespace value threads through resolution, CFG
// construction and code generation; the diagnostics accumulator
// lives on it.
type Namespace struct {
	Files     []*SourceUnit
	Enums     []*EnumDecl
	Structs   []*StructDecl
	Events    []*EventDecl
	Contracts []*ContractDecl
	Functions []*Function
	Constants []*StorageVariable

	Diagnostics *diag.Diagnostics

	// SelectorHash is the target's selector scheme: the first 4 bytes
	// of a hash over the canonical signature. Installed by the driver
	// before resolution.
	SelectorHash func([]byte) [4]byte

	// symbol tables: file scope (per unit, including import aliases)
	// and per-contract member scope
	fileScopes     []map[string]Symbol
	aliases        []map[string]int // alias name -> unit id, per importing unit
	contractScopes map[int]map[string]Symbol
}

// SymbolKind discriminates what a name resolves to.
type SymbolKind int

const (
	SymEnum SymbolKind = iota
	SymStruct
	SymEvent
	SymContract
	SymFunction
	SymConstant
	SymVariable
)

// Symbol is one entry of a symbol table. Overloadable symbols
// (functions, events) carry every candidate id.
type Symbol struct {
	Kind      SymbolKind
	ID        int
	Overloads []int
	Loc       token.Span
	ambiguous bool
}

// NewNamespace creates an empty namespace with a fresh diagnostics
// accumulator.
func NewNamespace() *Namespace {
	return &Namespace{
		Diagnostics: diag.New(),
		SelectorHash: func([]byte) [4]byte {
			return [4]byte{}
		},
	}
}

// AddFile registers a parsed source unit and returns it.
func (ns *Namespace) AddFile(path string, tree *ast.SourceUnit) *SourceUnit {
	unit := &SourceUnit{ID: len(ns.Files), Path: path, Tree: tree}
	ns.Files = append(ns.Files, unit)
	ns.fileScopes = append(ns.fileScopes, make(map[string]Symbol))
	ns.aliases = append(ns.aliases, make(map[string]int))
	return unit
}

// declare inserts a symbol into a file scope, reporting duplicate
// declarations.
func (ns *Namespace) declare(unit int, name string, symbol Symbol) {
	scope := ns.fileScopes[unit]
	if existing, clash := scope[name]; clash {
		// functions and events overload rather than clash
		if (existing.Kind == SymFunction && symbol.Kind == SymFunction) ||
			(existing.Kind == SymEvent && symbol.Kind == SymEvent) {
			existing.Overloads = append(existing.Overloads, symbol.ID)
			scope[name] = existing
			return
		}
		ns.Diagnostics.Add(diag.Diagnostic{
			Severity: diag.Error,
			Span:     symbol.Loc,
			Message:  "duplicate declaration of '" + name + "'",
			Notes:    []diag.Note{{Span: existing.Loc, Message: "previous declaration is here"}},
		})
		return
	}
	symbol.Overloads = []int{symbol.ID}
	scope[name] = symbol
}

// lookupFile resolves a plain name in a unit's file scope; import
// aliases ("alias.Name") are followed by lookupType.
func (ns *Namespace) lookupFile(unit int, name string) (Symbol, bool) {
	symbol, ok := ns.fileScopes[unit][name]
	return symbol, ok
}

// FunctionBySignature finds the most-derived definition of a
// signature over a contract's linearization.
func (ns *Namespace) FunctionBySignature(contract int, signature string) *Function {
	declaration := ns.Contracts[contract]
	for _, linear := range declaration.Linear {
		for _, functionID := range ns.Contracts[linear].Functions {
			function := ns.Functions[functionID]
			if function.Signature == signature {
				return function
			}
		}
	}
	return nil
}
