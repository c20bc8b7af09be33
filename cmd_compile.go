package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"

	"solang/cfg"
	"solang/diag"
	"solang/driver"
	"solang/target"
)

// projectConfig is the optional solang.yaml file next to the sources;
// command-line flags override whatever it sets.
type projectConfig struct {
	Target      string   `yaml:"target"`
	ImportPaths []string `yaml:"importpath"`
	Optimize    string   `yaml:"optimize"`
	OutputDir   string   `yaml:"output"`
}

type importPathList []string

func (l *importPathList) String() string     { return strings.Join(*l, ",") }
func (l *importPathList) Set(v string) error { *l = append(*l, v); return nil }

type compileCmd struct {
	targetName  string
	importPaths importPathList
	emit        string
	optimize    string
	outputDir   string
	stdJSON     bool
}

func (*compileCmd) Name() string     { return "compile" }
func (*compileCmd) Synopsis() string { return "Compile Solidity sources to a wasm contract" }
func (*compileCmd) Usage() string {
	return `compile [flags] file.sol...:
  Compile each contract in the given sources to a deployable artifact.
`
}

func (cmd *compileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.targetName, "target", "", "blockchain target: ethereum or substrate")
	f.Var(&cmd.importPaths, "importpath", "directory to search for imported files (repeatable)")
	f.StringVar(&cmd.emit, "emit", "", "stop after a stage: ast, cfg, llvm-ir or wasm")
	f.StringVar(&cmd.optimize, "O", "", "optimization level: none, less, default or aggressive")
	f.StringVar(&cmd.outputDir, "output-dir", "", "directory the artifacts are written to")
	f.BoolVar(&cmd.stdJSON, "std-json", false, "write one structured JSON document to stdout")
}

func (cmd *compileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	files := f.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "no source files provided\n")
		return subcommands.ExitUsageError
	}

	config := loadProjectConfig(filepath.Dir(files[0]))
	if cmd.targetName == "" {
		cmd.targetName = config.Target
	}
	if cmd.targetName == "" {
		cmd.targetName = "ethereum"
	}
	if cmd.optimize == "" {
		cmd.optimize = config.Optimize
	}
	if cmd.outputDir == "" {
		cmd.outputDir = config.OutputDir
	}
	importPaths := append([]string(nil), config.ImportPaths...)
	importPaths = append(importPaths, cmd.importPaths...)

	tgt, ok := target.ByName(cmd.targetName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown target '%s'\n", cmd.targetName)
		return subcommands.ExitUsageError
	}

	options := driver.Options{
		Target:      tgt,
		ImportPaths: importPaths,
		Passes:      passesFor(cmd.optimize),
		OutputDir:   cmd.outputDir,
	}
	switch cmd.emit {
	case "", "wasm":
		options.Emit = driver.EmitArtifact
	case "ast":
		options.Emit = driver.EmitAST
	case "cfg":
		options.Emit = driver.EmitCFG
	case "llvm-ir", "llvm-bc", "object", "asm":
		options.Emit = driver.EmitIR
	default:
		fmt.Fprintf(os.Stderr, "unknown emit mode '%s'\n", cmd.emit)
		return subcommands.ExitUsageError
	}

	result, err := driver.Compile(files, options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return subcommands.ExitFailure
	}

	diagnostics := result.Namespace.Diagnostics.All()
	if cmd.stdJSON {
		printStdJSON(result, diagnostics)
	} else {
		for _, diagnostic := range diagnostics {
			fmt.Fprint(os.Stderr, result.FileSet.Render(diagnostic))
		}
		for _, dump := range result.Dumps {
			fmt.Println(dump)
		}
		for _, path := range result.Written {
			fmt.Printf("wrote %s\n", path)
		}
	}

	if result.Namespace.Diagnostics.HasErrors() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func loadProjectConfig(dir string) projectConfig {
	var config projectConfig
	blob, err := os.ReadFile(filepath.Join(dir, "solang.yaml"))
	if err != nil {
		return config
	}
	if err := yaml.Unmarshal(blob, &config); err != nil {
		fmt.Fprintf(os.Stderr, "solang.yaml: %v\n", err)
	}
	return config
}

func passesFor(level string) cfg.Passes {
	switch level {
	case "none":
		return cfg.NoPasses()
	case "less":
		passes := cfg.NoPasses()
		passes.ConstantFolding = true
		return passes
	case "aggressive", "default", "":
		return cfg.DefaultPasses()
	}
	return cfg.DefaultPasses()
}

// stdJSONDiag mirrors the reference compiler's structured output
// schema closely enough for tooling to consume.
type stdJSONDiag struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	File     string `json:"file"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

func printStdJSON(result *driver.Result, diagnostics []diag.Diagnostic) {
	document := struct {
		Diagnostics []stdJSONDiag `json:"errors"`
		Files       []string      `json:"written"`
	}{Files: result.Written}
	for _, diagnostic := range diagnostics {
		document.Diagnostics = append(document.Diagnostics, stdJSONDiag{
			Severity: diagnostic.Severity.String(),
			Message:  diagnostic.Message,
			File:     result.FileSet.Name(diagnostic.Span.File),
			Start:    diagnostic.Span.Start,
			End:      diagnostic.Span.End,
		})
	}
	encoded, _ := json.MarshalIndent(document, "", "  ")
	fmt.Println(string(encoded))
}
