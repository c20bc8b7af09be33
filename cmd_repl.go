package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"solang/cfg"
	"solang/driver"
)

// replCmd is an interactive playground: each line is wrapped into a
// scratch contract, run through the front half of the pipeline, and
// the optimized CFG of the scratch function is printed. Handy for
// poking at folding and lowering without writing a file.
type replCmd struct {
	dumpCFG bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Interactive expression and statement playground" }
func (*replCmd) Usage() string {
	return `repl:
  Type statements; the optimized lowering is shown. 'exit' quits.
`
}

func (cmd *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.dumpCFG, "cfg", true, "print the optimized control-flow graph")
}

func (cmd *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("solang playground; statements compile into a scratch contract")

	line, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open terminal: %v\n", err)
		return subcommands.ExitFailure
	}
	defer line.Close()

	for {
		input, err := line.Readline()
		if err != nil {
			return subcommands.ExitSuccess
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" {
			return subcommands.ExitSuccess
		}
		if !strings.HasSuffix(input, ";") && !strings.HasSuffix(input, "}") {
			input += ";"
		}

		source := fmt.Sprintf("contract scratch { function play() public { %s } }", input)
		result := driver.CompileSource("<repl>", source, driver.Options{Passes: cfg.DefaultPasses()})
		diagnostics := result.Namespace.Diagnostics.All()
		for _, diagnostic := range diagnostics {
			fmt.Print(result.FileSet.Render(diagnostic))
		}
		if result.Namespace.Diagnostics.HasErrors() {
			continue
		}
		if cmd.dumpCFG {
			for _, function := range result.Namespace.Functions {
				if graph, ok := result.Graphs[function.ID]; ok && function.Name == "play" {
					fmt.Print(graph.String())
				}
			}
		}
	}
}
