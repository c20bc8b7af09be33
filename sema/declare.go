package sema

import (
	"solang/ast"
)

// Pass A: register every enum, struct, contract, event, free function
// and constant declared by a source unit, without type-checking
// anything. Inheritance edges are recorded as names and resolved in
// pass B, so import cycles and forward references are legal.
func (ns *Namespace) DeclareUnit(unit *SourceUnit) {
	if ns.contractScopes == nil {
		ns.contractScopes = make(map[int]map[string]Symbol)
	}
	for _, item := range unit.Tree.Items {
		switch node := item.(type) {
		case *ast.Pragma:
			ns.Diagnostics.Warnf(node.Loc, "pragma '%s' is ignored", node.Name)
		case *ast.Import:
			// resolved by the driver, which loads the referenced
			// unit and calls FoldImport
		case *ast.ContractDef:
			ns.declareContract(unit.ID, node)
		case *ast.EnumDef:
			ns.declareEnum(unit.ID, -1, node)
		case *ast.StructDef:
			ns.declareStruct(unit.ID, -1, node)
		case *ast.EventDef:
			ns.declareEvent(unit.ID, -1, node)
		case *ast.FunctionDef:
			ns.declareFunction(unit.ID, -1, node)
		case *ast.VariableDef:
			ns.declareConstant(unit.ID, node)
		}
	}
}

// FoldImport folds the declarations of an imported unit into the
// importer's scope. With an alias, the imported unit is reachable
// only through "alias.Name"; otherwise every name is folded in
// directly and a clash between two imports is an ambiguous-import
// error at use time.
func (ns *Namespace) FoldImport(importer, imported int, alias string) {
	if alias != "" {
		ns.aliases[importer][alias] = imported
		return
	}
	for name, symbol := range ns.fileScopes[imported] {
		if existing, clash := ns.fileScopes[importer][name]; clash {
			if existing.ID == symbol.ID && existing.Kind == symbol.Kind {
				continue
			}
			// mark ambiguous by remembering both; lookups report it
			ambiguous := existing
			ambiguous.ambiguous = true
			ns.fileScopes[importer][name] = ambiguous
			continue
		}
		ns.fileScopes[importer][name] = symbol
	}
}

func (ns *Namespace) declareContract(unit int, node *ast.ContractDef) {
	declaration := &ContractDecl{
		ID:       len(ns.Contracts),
		Name:     node.Name,
		Kind:     node.Kind,
		Unit:     unit,
		Doc:      node.Doc,
		Loc:      node.Loc,
		astBases: node.Bases,
	}
	ns.Contracts = append(ns.Contracts, declaration)
	ns.contractScopes[declaration.ID] = make(map[string]Symbol)
	ns.declare(unit, node.Name, Symbol{Kind: SymContract, ID: declaration.ID, Loc: node.Loc})

	for _, part := range node.Parts {
		switch member := part.(type) {
		case *ast.EnumDef:
			ns.declareEnum(unit, declaration.ID, member)
		case *ast.StructDef:
			ns.declareStruct(unit, declaration.ID, member)
		case *ast.EventDef:
			ns.declareEvent(unit, declaration.ID, member)
		case *ast.FunctionDef:
			ns.declareFunction(unit, declaration.ID, member)
		case *ast.VariableDef:
			variable := &StorageVariable{
				Name:     member.Name,
				Contract: declaration.ID,
				Constant: member.Constant,
				Public:   member.Visibility == "" || member.Visibility == "PUBLIC",
				Loc:      member.Loc,
				astType:  member.Type,
				astValue: member.Value,
			}
			declaration.Variables = append(declaration.Variables, variable)
			ns.declareMember(declaration.ID, member.Name, Symbol{Kind: SymVariable, ID: len(declaration.Variables) - 1, Loc: member.Loc})
		case *ast.UsingFor:
			declaration.astUsing = append(declaration.astUsing, member)
		}
	}
}

func (ns *Namespace) declareEnum(unit, contract int, node *ast.EnumDef) {
	declaration := &EnumDecl{
		ID:       len(ns.Enums),
		Name:     node.Name,
		Contract: contract,
		Variants: node.Variants,
		Doc:      node.Doc,
		Loc:      node.Loc,
	}
	ns.Enums = append(ns.Enums, declaration)
	symbol := Symbol{Kind: SymEnum, ID: declaration.ID, Loc: node.Loc}
	if contract < 0 {
		ns.declare(unit, node.Name, symbol)
	} else {
		ns.declareMember(contract, node.Name, symbol)
	}
	seen := make(map[string]bool)
	for _, variant := range node.Variants {
		if seen[variant] {
			ns.Diagnostics.Errorf(node.Loc, "duplicate enum variant '%s' in '%s'", variant, node.Name)
		}
		seen[variant] = true
	}
}

func (ns *Namespace) declareStruct(unit, contract int, node *ast.StructDef) {
	declaration := &StructDecl{
		ID:        len(ns.Structs),
		Name:      node.Name,
		Contract:  contract,
		Doc:       node.Doc,
		Loc:       node.Loc,
		astFields: node.Fields,
	}
	ns.Structs = append(ns.Structs, declaration)
	symbol := Symbol{Kind: SymStruct, ID: declaration.ID, Loc: node.Loc}
	if contract < 0 {
		ns.declare(unit, node.Name, symbol)
	} else {
		ns.declareMember(contract, node.Name, symbol)
	}
}

func (ns *Namespace) declareEvent(unit, contract int, node *ast.EventDef) {
	declaration := &EventDecl{
		ID:        len(ns.Events),
		Name:      node.Name,
		Contract:  contract,
		Anonymous: node.Anonymous,
		Loc:       node.Loc,
		astFields: node.Fields,
	}
	ns.Events = append(ns.Events, declaration)
	symbol := Symbol{Kind: SymEvent, ID: declaration.ID, Loc: node.Loc}
	if contract < 0 {
		ns.declare(unit, node.Name, symbol)
	} else {
		ns.declareMember(contract, node.Name, symbol)
	}
}

func (ns *Namespace) declareFunction(unit, contract int, node *ast.FunctionDef) {
	kind := FuncPlain
	switch node.Kind {
	case ast.KindConstructor:
		kind = FuncConstructor
	case ast.KindFallback:
		kind = FuncFallback
	case ast.KindReceive:
		kind = FuncReceive
	case ast.KindModifier:
		kind = FuncModifier
	}
	function := &Function{
		ID:       len(ns.Functions),
		Name:     node.Name,
		Kind:     kind,
		Contract: contract,
		HasBody:  node.Body != nil,
		Doc:      node.Doc,
		Loc:      node.Loc,
		astNode:  node,
	}
	ns.Functions = append(ns.Functions, function)
	if contract >= 0 {
		ns.Contracts[contract].Functions = append(ns.Contracts[contract].Functions, function.ID)
	}
	symbol := Symbol{Kind: SymFunction, ID: function.ID, Loc: node.Loc}
	switch {
	case kind != FuncPlain && kind != FuncModifier:
		// constructors, fallback and receive are not name-addressable
	case contract < 0:
		ns.declare(unit, node.Name, symbol)
	default:
		ns.declareMember(contract, node.Name, symbol)
	}
}

func (ns *Namespace) declareConstant(unit int, node *ast.VariableDef) {
	if !node.Constant {
		ns.Diagnostics.Errorf(node.Loc, "file-level variable '%s' must be constant", node.Name)
	}
	constant := &StorageVariable{
		Name:     node.Name,
		Contract: -1,
		Constant: true,
		Loc:      node.Loc,
		astType:  node.Type,
		astValue: node.Value,
	}
	ns.Constants = append(ns.Constants, constant)
	ns.declare(unit, node.Name, Symbol{Kind: SymConstant, ID: len(ns.Constants) - 1, Loc: node.Loc})
}

// declareMember inserts a symbol into a contract's member scope.
func (ns *Namespace) declareMember(contract int, name string, symbol Symbol) {
	scope := ns.contractScopes[contract]
	if existing, clash := scope[name]; clash {
		if (existing.Kind == SymFunction && symbol.Kind == SymFunction) ||
			(existing.Kind == SymEvent && symbol.Kind == SymEvent) {
			existing.Overloads = append(existing.Overloads, symbol.ID)
			scope[name] = existing
			return
		}
		ns.Diagnostics.Errorf(symbol.Loc, "duplicate declaration of '%s' in contract '%s'", name, ns.Contracts[contract].Name)
		return
	}
	symbol.Overloads = []int{symbol.ID}
	scope[name] = symbol
}
