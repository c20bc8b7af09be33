package cfg_test

import (
	"math/big"
	"strings"
	"testing"

	"solang/cfg"
	"solang/diag"
	"solang/driver"
)

func compile(t *testing.T, source string, passes cfg.Passes) *driver.Result {
	t.Helper()
	result := driver.CompileSource("test.sol", source, driver.Options{Passes: passes})
	if result.Namespace.Diagnostics.HasErrors() {
		var messages []string
		for _, diagnostic := range result.Namespace.Diagnostics.All() {
			messages = append(messages, diagnostic.Message)
		}
		t.Fatalf("unexpected errors: %v", messages)
	}
	return result
}

func graphOf(t *testing.T, result *driver.Result, name string) *cfg.CFG {
	t.Helper()
	for _, function := range result.Namespace.Functions {
		if function.Name == name {
			if graph, ok := result.Graphs[function.ID]; ok {
				return graph
			}
		}
	}
	t.Fatalf("no graph for %q", name)
	return nil
}

func functionID(t *testing.T, result *driver.Result, name string) int {
	t.Helper()
	for _, function := range result.Namespace.Functions {
		if function.Name == name {
			return function.ID
		}
	}
	t.Fatalf("no function %q", name)
	return -1
}

func terminators(graph *cfg.CFG) []cfg.Terminator {
	out := make([]cfg.Terminator, len(graph.Blocks))
	for i, block := range graph.Blocks {
		out[i] = block.Term
	}
	return out
}

func TestEveryBlockHasOneTerminator(t *testing.T) {
	result := compile(t, `
		contract c {
			function f(uint n) public returns (uint) {
				if (n > 2) {
					return 1;
				}
				while (n < 10) {
					n = n + 1;
				}
				return n;
			}
		}
	`, cfg.NoPasses())
	graph := graphOf(t, result, "f")
	for i, terminator := range terminators(graph) {
		if terminator == nil {
			t.Errorf("block %d has no terminator", i)
		}
	}
}

func TestIfLowering(t *testing.T) {
	result := compile(t, `
		contract c {
			function f(bool b) public returns (uint) {
				if (b) {
					return 1;
				}
				return 2;
			}
		}
	`, cfg.NoPasses())
	graph := graphOf(t, result, "f")
	entry := graph.Blocks[0]
	cond, ok := entry.Term.(cfg.CondBranch)
	if !ok {
		t.Fatalf("entry terminator is %T, want CondBranch", entry.Term)
	}
	then := graph.Blocks[cond.True]
	if _, isReturn := then.Term.(cfg.Return); !isReturn {
		t.Errorf("then block ends in %T, want Return", then.Term)
	}
}

func TestShortCircuitBranches(t *testing.T) {
	result := compile(t, `
		contract c {
			function f(bool a, bool b) public returns (bool) {
				return a && b;
			}
		}
	`, cfg.NoPasses())
	graph := graphOf(t, result, "f")
	// the right operand lives in its own block, entered only when the
	// left operand is true
	entry := graph.Blocks[0]
	cond, ok := entry.Term.(cfg.CondBranch)
	if !ok {
		t.Fatalf("entry terminator is %T", entry.Term)
	}
	if cond.True == cond.False {
		t.Error("short-circuit did not fork")
	}
}

func TestNamedReturnsUseExitBlock(t *testing.T) {
	result := compile(t, `
		contract c {
			function f(uint n) public returns (uint total) {
				if (n > 0) {
					return n;
				}
				total = 1;
			}
		}
	`, cfg.NoPasses())
	graph := graphOf(t, result, "f")
	returns := 0
	for _, terminator := range terminators(graph) {
		if _, isReturn := terminator.(cfg.Return); isReturn {
			returns++
		}
	}
	if returns != 1 {
		t.Errorf("named returns should funnel into one exit Return, found %d", returns)
	}
}

func TestUnreachableCodeWarns(t *testing.T) {
	result := driver.CompileSource("test.sol", `
		contract c {
			function f() public returns (uint) {
				return 1;
				uint dead = 2;
			}
		}
	`, driver.Options{Passes: cfg.NoPasses()})
	found := false
	for _, diagnostic := range result.Namespace.Diagnostics.All() {
		if diagnostic.Severity == diag.Warning && strings.Contains(diagnostic.Message, "unreachable") {
			found = true
		}
	}
	if !found {
		t.Error("no unreachable-code warning issued")
	}
}

func TestRevertLowersToAssertFailure(t *testing.T) {
	result := compile(t, `
		contract c {
			function f() public {
				revert("nope");
			}
		}
	`, cfg.NoPasses())
	graph := graphOf(t, result, "f")
	foundFailure := false
	foundUnreachable := false
	for _, block := range graph.Blocks {
		for _, instruction := range block.Instrs {
			if failure, ok := instruction.(cfg.AssertFailure); ok {
				foundFailure = true
				if failure.Reason == nil {
					t.Error("revert reason was dropped")
				}
			}
		}
		if _, ok := block.Term.(cfg.Unreachable); ok {
			foundUnreachable = true
		}
	}
	if !foundFailure || !foundUnreachable {
		t.Errorf("revert lowering: failure=%t unreachable=%t", foundFailure, foundUnreachable)
	}
}

func TestForLoopContinueTargetsPostBlock(t *testing.T) {
	result := compile(t, `
		contract c {
			function f(uint n) public returns (uint total) {
				for (uint i = 0; i < n; i++) {
					if (i == 2) {
						continue;
					}
					total = total + i;
				}
			}
		}
	`, cfg.NoPasses())
	graph := graphOf(t, result, "f")
	// sanity: run it; continue must still advance the loop
	interp := cfg.NewInterp(result.Namespace, result.Graphs)
	results, err := interp.Run(graph.FunctionID, big.NewInt(5))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// 0+1+3+4 = 8, skipping i == 2
	if results[0].(*big.Int).Int64() != 8 {
		t.Errorf("total = %v, want 8", results[0])
	}
}
