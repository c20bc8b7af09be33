// Package driver orchestrates the pipeline: it loads source units,
// resolves the import graph in deterministic order, and runs the
// stages, aborting at a stage boundary as soon as the namespace
// carries an error. The core is single-threaded and synchronous by
// construction; a fresh Namespace per invocation means independent
// compilations share nothing.
package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"solang/ast"
	"solang/cfg"
	"solang/codegen"
	"solang/diag"
	"solang/emit"
	"solang/ir"
	"solang/lexer"
	"solang/parser"
	"solang/sema"
	"solang/target"
	"solang/token"
	"solang/wasm"
)

// Emit selects what the pipeline produces.
type Emit int

const (
	EmitArtifact Emit = iota
	EmitAST
	EmitCFG
	EmitIR
	EmitWasm
)

// Options configures one compilation.
type Options struct {
	Target      target.Target
	ImportPaths []string
	Emit        Emit
	Passes      cfg.Passes
	OutputDir   string
}

// Result is everything a compilation produced.
type Result struct {
	Namespace *sema.Namespace
	FileSet   *diag.FileSet
	Graphs    map[int]*cfg.CFG
	Modules   []*ir.Module
	Written   []string
	Dumps     []string // textual output for the ast/cfg/ir emit modes
}

// Compile runs the pipeline over the given root source files.
func Compile(paths []string, options Options) (*Result, error) {
	if options.Target == nil {
		options.Target = target.Ethereum{}
	}
	ns := sema.NewNamespace()
	ns.SelectorHash = options.Target.SelectorHash
	fileSet := &diag.FileSet{}
	result := &Result{Namespace: ns, FileSet: fileSet, Graphs: make(map[int]*cfg.CFG)}

	loader := &loader{
		ns:          ns,
		fileSet:     fileSet,
		importPaths: options.ImportPaths,
		loaded:      make(map[string]int),
	}

	// stage 1+2: lex and parse every reachable unit, imports resolved
	// depth first so unit order is deterministic
	for _, path := range paths {
		loader.load(path, token.Span{})
	}
	if ns.Diagnostics.HasErrors() {
		return result, nil
	}

	// stage 3: declare then define (two passes, so import cycles are
	// fine), then resolve everything
	for _, unit := range ns.Files {
		ns.DeclareUnit(unit)
	}
	loader.foldImports()
	ns.Resolve()
	if ns.Diagnostics.HasErrors() {
		return result, nil
	}
	if options.Emit == EmitAST {
		for _, unit := range ns.Files {
			result.Dumps = append(result.Dumps, fmt.Sprintf("; unit %d: %s, %d items", unit.ID, unit.Path, len(unit.Tree.Items)))
		}
		return result, nil
	}

	// stage 4+5: CFG construction and optimization
	for _, function := range ns.Functions {
		if !function.HasBody {
			continue
		}
		graph := cfg.Build(ns, function)
		cfg.Optimize(graph, options.Passes)
		result.Graphs[function.ID] = graph
	}
	if ns.Diagnostics.HasErrors() {
		return result, nil
	}
	if options.Emit == EmitCFG {
		for _, function := range ns.Functions {
			if graph, ok := result.Graphs[function.ID]; ok {
				result.Dumps = append(result.Dumps, fmt.Sprintf("; %s\n%s", function.Signature, graph.String()))
			}
		}
		return result, nil
	}

	// stage 6: code generation and artifact emission, one module per
	// concrete contract
	for _, contract := range ns.Contracts {
		if contract.Kind == ast.KindInterface || contract.Kind == ast.KindAbstract || contract.Kind == ast.KindLibrary {
			continue
		}
		module := codegen.Contract(ns, contract, options.Target, result.Graphs)
		result.Modules = append(result.Modules, module)
		if options.Emit == EmitIR {
			result.Dumps = append(result.Dumps, module.Render())
			continue
		}
		binary, err := wasm.Encode(module)
		if err != nil {
			ns.Diagnostics.Errorf(contract.Loc, "internal error encoding '%s': %v", contract.Name, err)
			continue
		}
		if options.Emit == EmitWasm || options.Emit == EmitArtifact {
			metadata := emit.Describe(ns, contract, options.Target)
			written, err := emit.Write(options.OutputDir, metadata, binary, options.Target)
			if err != nil {
				ns.Diagnostics.Errorf(contract.Loc, "cannot write artifact for '%s': %v", contract.Name, err)
				continue
			}
			result.Written = append(result.Written, written...)
		}
	}
	return result, nil
}

// CompileSource runs the front half of the pipeline (through CFG
// construction) over an in-memory buffer. The REPL and the test
// suites use it; no artifacts are written.
func CompileSource(name, source string, options Options) *Result {
	if options.Target == nil {
		options.Target = target.Ethereum{}
	}
	ns := sema.NewNamespace()
	ns.SelectorHash = options.Target.SelectorHash
	fileSet := &diag.FileSet{}
	result := &Result{Namespace: ns, FileSet: fileSet, Graphs: make(map[int]*cfg.CFG)}

	fileID := fileSet.AddFile(name, source)
	tokens := lexer.New(fileID, source, ns.Diagnostics).Scan()
	tree := parser.Make(tokens, ns.Diagnostics).Parse()
	unit := ns.AddFile(name, tree)
	if ns.Diagnostics.HasErrors() {
		return result
	}
	ns.DeclareUnit(unit)
	ns.Resolve()
	if ns.Diagnostics.HasErrors() {
		return result
	}
	for _, function := range ns.Functions {
		if !function.HasBody {
			continue
		}
		graph := cfg.Build(ns, function)
		cfg.Optimize(graph, options.Passes)
		result.Graphs[function.ID] = graph
	}
	return result
}

// loader resolves import directives to source units.
type loader struct {
	ns          *sema.Namespace
	fileSet     *diag.FileSet
	importPaths []string
	loaded      map[string]int

	// imports records (importer unit, imported unit, alias) edges to
	// fold after declaration
	imports []importEdge
}

type importEdge struct {
	importer int
	imported int
	alias    string
}

// load reads, lexes and parses one file, then loads its imports
// depth first. Cyclic imports terminate because a unit is registered
// before its imports are followed.
func (l *loader) load(path string, at token.Span) int {
	resolved, err := l.resolve(path)
	if err != nil {
		l.ns.Diagnostics.Errorf(at, "cannot open '%s': %v", path, err)
		return -1
	}
	if id, done := l.loaded[resolved]; done {
		return id
	}

	source, err := os.ReadFile(resolved)
	if err != nil {
		l.ns.Diagnostics.Errorf(at, "cannot read '%s': %v", path, err)
		return -1
	}
	fileID := l.fileSet.AddFile(resolved, string(source))
	tokens := lexer.New(fileID, string(source), l.ns.Diagnostics).Scan()
	tree := parser.Make(tokens, l.ns.Diagnostics).Parse()
	unit := l.ns.AddFile(resolved, tree)
	l.loaded[resolved] = unit.ID

	for _, item := range tree.Items {
		directive, isImport := item.(*ast.Import)
		if !isImport {
			continue
		}
		importedPath := directive.Path
		if !filepath.IsAbs(importedPath) {
			relative := filepath.Join(filepath.Dir(resolved), importedPath)
			if _, statErr := os.Stat(relative); statErr == nil {
				importedPath = relative
			}
		}
		imported := l.load(importedPath, directive.Loc)
		if imported >= 0 {
			l.imports = append(l.imports, importEdge{importer: unit.ID, imported: imported, alias: directive.Alias})
		}
	}
	return unit.ID
}

// resolve finds a path directly or through the import directories.
func (l *loader) resolve(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	for _, dir := range l.importPaths {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("not found")
}

// foldImports merges imported declarations into importer scopes; runs
// after every unit has declared so cycles resolve.
func (l *loader) foldImports() {
	for _, edge := range l.imports {
		l.ns.FoldImport(edge.importer, edge.imported, edge.alias)
	}
}
