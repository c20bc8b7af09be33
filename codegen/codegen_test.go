package codegen_test

import (
	"strings"
	"testing"

	"solang/cfg"
	"solang/codegen"
	"solang/driver"
	"solang/ir"
	"solang/target"
)

func module(t *testing.T, source string, tgt target.Target) *ir.Module {
	t.Helper()
	result := driver.CompileSource("test.sol", source, driver.Options{Target: tgt, Passes: cfg.DefaultPasses()})
	if result.Namespace.Diagnostics.HasErrors() {
		var messages []string
		for _, diagnostic := range result.Namespace.Diagnostics.All() {
			messages = append(messages, diagnostic.Message)
		}
		t.Fatalf("unexpected errors: %v", messages)
	}
	contract := result.Namespace.Contracts[0]
	return codegen.Contract(result.Namespace, contract, tgt, result.Graphs)
}

const hitcount = `
contract hitcount {
	uint counter = 1;
	function hit() public { counter = counter + 1; }
	function count() public view returns (uint) { return counter; }
}
`

func funcNames(m *ir.Module) map[string]bool {
	names := make(map[string]bool)
	for _, function := range m.Funcs {
		names[function.Name] = true
	}
	return names
}

func TestModuleCarriesRuntimeAndBodies(t *testing.T) {
	m := module(t, hitcount, target.Ethereum{})
	names := funcNames(m)
	for _, required := range []string{
		"__add256", "__sub256", "__mul256", "__cmp256",
		"hitcount::hit()", "hitcount::count()",
		"__deploy", "__dispatch",
	} {
		if !names[required] {
			t.Errorf("module is missing %q", required)
		}
	}
}

func TestEntryPointsFollowTarget(t *testing.T) {
	eth := module(t, hitcount, target.Ethereum{})
	if eth.Exports["main"] == "" {
		t.Errorf("ethereum exports = %v", eth.Exports)
	}
	sub := module(t, hitcount, target.Substrate{})
	if sub.Exports["deploy"] != "__deploy" || sub.Exports["call"] != "__dispatch" {
		t.Errorf("substrate exports = %v", sub.Exports)
	}
}

func TestSchoolbookMultiplyShape(t *testing.T) {
	m := module(t, hitcount, target.Ethereum{})
	var mul *ir.Func
	for _, function := range m.Funcs {
		if function.Name == "__mul256" {
			mul = function
		}
	}
	if mul == nil {
		t.Fatal("no __mul256")
	}
	// eight 32-bit limbs per operand give 36 partial products over
	// the low columns; the function is straight-line
	products := 0
	for _, block := range mul.Blocks {
		for _, instruction := range block.Instrs {
			if bin, ok := instruction.(ir.Bin); ok && bin.Op == ir.OpMul {
				products++
			}
		}
	}
	if products != 36 {
		t.Errorf("partial products = %d, want 36", products)
	}
	if len(mul.Blocks) != 1 {
		t.Errorf("schoolbook multiply should be straight-line, has %d blocks", len(mul.Blocks))
	}
}

func TestDivisionComesFromTheStdlib(t *testing.T) {
	m := module(t, hitcount, target.Ethereum{})
	found := false
	for _, imported := range m.Imports {
		if imported.Name == "__udivmod256" {
			found = true
		}
	}
	if !found {
		t.Error("the stdlib division helper is not declared")
	}
	if funcNames(m)["__udivmod256"] {
		t.Error("division must be linked in, not generated")
	}
}

func TestRenderIsStable(t *testing.T) {
	first := module(t, hitcount, target.Ethereum{}).Render()
	second := module(t, hitcount, target.Ethereum{}).Render()
	if first != second {
		t.Error("renderings differ across runs")
	}
	if !strings.Contains(first, "define hitcount::hit()") {
		t.Errorf("rendering lost the function bodies:\n%s", first[:200])
	}
}

func TestSelectorSwitchIsSorted(t *testing.T) {
	result := driver.CompileSource("test.sol", hitcount, driver.Options{Target: target.Ethereum{}, Passes: cfg.DefaultPasses()})
	contract := result.Namespace.Contracts[0]
	m := codegen.Contract(result.Namespace, contract, target.Ethereum{}, result.Graphs)

	var dispatch *ir.Func
	for _, function := range m.Funcs {
		if function.Name == "__dispatch" {
			dispatch = function
		}
	}
	if dispatch == nil {
		t.Fatal("no dispatcher")
	}

	want := make(map[int64]bool)
	for selector := range contract.Selectors {
		value := int64(uint32(selector[0]) | uint32(selector[1])<<8 | uint32(selector[2])<<16 | uint32(selector[3])<<24)
		want[value] = true
	}

	// the selector constants must appear in ascending numeric order,
	// which is what makes the module deterministic
	var seen []int64
	for _, block := range dispatch.Blocks {
		for _, instruction := range block.Instrs {
			if constant, ok := instruction.(ir.Const); ok && want[constant.Value] {
				seen = append(seen, constant.Value)
			}
		}
	}
	if len(seen) != len(want) {
		t.Fatalf("found %d selector constants, want %d", len(seen), len(want))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Errorf("selector constants out of order: %v", seen)
		}
	}
}
