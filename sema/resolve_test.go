package sema_test

import (
	"strings"
	"testing"

	"solang/cfg"
	"solang/diag"
	"solang/driver"
	"solang/sema"
)

func compile(t *testing.T, source string) *driver.Result {
	t.Helper()
	return driver.CompileSource("test.sol", source, driver.Options{Passes: cfg.NoPasses()})
}

func mustResolve(t *testing.T, source string) *sema.Namespace {
	t.Helper()
	result := compile(t, source)
	if result.Namespace.Diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", messages(result.Namespace))
	}
	return result.Namespace
}

func messages(ns *sema.Namespace) []string {
	var out []string
	for _, diagnostic := range ns.Diagnostics.All() {
		if diagnostic.Severity == diag.Error {
			out = append(out, diagnostic.Message)
		}
	}
	return out
}

func expectError(t *testing.T, source, fragment string) {
	t.Helper()
	result := compile(t, source)
	if !result.Namespace.Diagnostics.HasErrors() {
		t.Fatalf("expected an error containing %q", fragment)
	}
	for _, message := range messages(result.Namespace) {
		if strings.Contains(message, fragment) {
			return
		}
	}
	t.Errorf("no error contains %q; got %v", fragment, messages(result.Namespace))
}

func TestHitcountResolves(t *testing.T) {
	ns := mustResolve(t, `
		contract hitcount {
			uint counter = 1;
			function hit() public { counter = counter + 1; }
			function count() public view returns (uint) { return counter; }
		}
	`)
	if len(ns.Contracts) != 1 {
		t.Fatalf("contracts = %d", len(ns.Contracts))
	}
	contract := ns.Contracts[0]
	if len(contract.Layout) != 1 || contract.Layout[0].Slot != 0 {
		t.Errorf("layout = %+v", contract.Layout)
	}
	if len(contract.Selectors) != 2 {
		t.Errorf("selectors = %d, want 2", len(contract.Selectors))
	}
}

func TestLiteralPinBoundaries(t *testing.T) {
	// 2**8 - 1 fits uint8; 2**8 does not
	mustResolve(t, "contract c { function f() public { uint8 x = 255; } }")
	expectError(t, "contract c { function f() public { uint8 x = 256; } }", "out of range")
	mustResolve(t, "contract c { function f() public { uint256 x = 2 ** 256 - 1; } }")
	expectError(t, "contract c { function f() public { uint256 x = 2 ** 256; } }", "out of range")
}

func TestConstantDivisionByZero(t *testing.T) {
	expectError(t, "contract c { function f() public { uint x = 10 / 0; } }", "division by zero")
}

func TestImplicitConversionRules(t *testing.T) {
	mustResolve(t, "contract c { function f(uint32 a) public returns (uint64) { return a; } }")
	expectError(t, "contract c { function f(uint64 a) public returns (uint32) { return a; } }", "truncate")
	expectError(t, "contract c { function f(int32 a) public returns (uint32) { return a; } }", "sign")
	expectError(t, "contract c { function f(bytes4 a) public returns (uint32) { return a; } }", "convert")
}

func TestExplicitCastMatrix(t *testing.T) {
	mustResolve(t, "contract c { function f(uint64 a) public returns (uint32) { return uint32(a); } }")
	mustResolve(t, "contract c { function f(uint32 a) public returns (bytes4) { return bytes4(a); } }")
	// length and category in one step is rejected; it must be two casts
	expectError(t, "contract c { function f(uint32 a) public returns (bytes8) { return bytes8(a); } }", "cast")
	mustResolve(t, "contract c { function f(uint32 a) public returns (bytes8) { return bytes8(bytes4(a)); } }")
}

func TestInheritanceLinearization(t *testing.T) {
	ns := mustResolve(t, `
		contract A { function f() public { } }
		contract B is A { }
		contract C is B, A { }
	`)
	var c *sema.ContractDecl
	for _, contract := range ns.Contracts {
		if contract.Name == "C" {
			c = contract
		}
	}
	names := make([]string, len(c.Linear))
	for i, id := range c.Linear {
		names[i] = ns.Contracts[id].Name
	}
	expected := []string{"C", "B", "A"}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("linearization = %v, want %v", names, expected)
		}
	}
}

func TestNonLinearizableInheritance(t *testing.T) {
	expectError(t, `
		contract A { }
		contract B is A { }
		contract C is A, B { }
	`, "cannot be linearized")
}

func TestInheritanceCycle(t *testing.T) {
	expectError(t, `
		contract A is B { }
		contract B is A { }
	`, "cannot be linearized")
}

func TestStorageSlotPacking(t *testing.T) {
	ns := mustResolve(t, `
		contract c {
			uint128 a;
			uint128 b;
			uint256 wide;
			uint64 small;
		}
	`)
	layout := ns.Contracts[0].Layout
	if layout[0].Slot != 0 || layout[0].Offset != 0 {
		t.Errorf("a = slot %d offset %d", layout[0].Slot, layout[0].Offset)
	}
	// a and b are packing compatible and consecutive: same slot
	if layout[1].Slot != 0 || layout[1].Offset != 16 {
		t.Errorf("b = slot %d offset %d", layout[1].Slot, layout[1].Offset)
	}
	if layout[2].Slot != 1 {
		t.Errorf("wide = slot %d", layout[2].Slot)
	}
	if layout[3].Slot != 2 {
		t.Errorf("small = slot %d", layout[3].Slot)
	}
}

func TestInheritedSlotsComeFirst(t *testing.T) {
	ns := mustResolve(t, `
		contract base { uint a; }
		contract derived is base { uint b; }
	`)
	var derived *sema.ContractDecl
	for _, contract := range ns.Contracts {
		if contract.Name == "derived" {
			derived = contract
		}
	}
	if derived.Layout[0].Name != "a" || derived.Layout[0].Slot != 0 {
		t.Errorf("base variable = %+v", derived.Layout[0])
	}
	if derived.Layout[1].Name != "b" || derived.Layout[1].Slot != 1 {
		t.Errorf("derived variable = %+v", derived.Layout[1])
	}
}

func TestOverloadResolution(t *testing.T) {
	// the narrower parameter wins a tie
	ns := mustResolve(t, `
		contract c {
			function pick(uint8 v) internal returns (uint8) { return v; }
			function pick(uint64 v) internal returns (uint8) { return 64; }
			function f() public returns (uint8) { return pick(1); }
		}
	`)
	_ = ns
	expectError(t, `
		contract c {
			function pick(uint32 v, uint64 w) internal { }
			function pick(uint64 v, uint32 w) internal { }
			function f(uint8 a) public { pick(a, a); }
		}
	`, "ambiguous")
	expectError(t, `
		contract c {
			function pick(uint8 v) internal { }
			function f(uint64 a) public { pick(a, a); }
		}
	`, "no overload")
}

func TestMappingRestrictions(t *testing.T) {
	expectError(t, "contract c { function f(mapping(uint => uint) m) public { } }", "illegal parameter")
	expectError(t, "contract c { function f() public returns (mapping(uint => uint)) { } }", "illegal return")
	expectError(t, "contract c { mapping(uint => uint)[] arr; function f() public { } }", "array element")
}

func TestBreakOutsideLoop(t *testing.T) {
	expectError(t, "contract c { function f() public { break; } }", "'break' outside")
	expectError(t, "contract c { function f() public { continue; } }", "'continue' outside")
}

func TestMutabilityEnforcement(t *testing.T) {
	expectError(t, `
		contract c {
			uint x;
			function f() public view { x = 1; }
		}
	`, "view")
	expectError(t, `
		contract c {
			uint x;
			function f() public pure returns (uint) { return x; }
		}
	`, "pure")
}

func TestDuplicateDeclarations(t *testing.T) {
	expectError(t, `
		contract c { uint a; uint a; }
	`, "duplicate declaration")
	expectError(t, `
		contract c {
			function f(uint a) public { }
			function f(uint b) public { }
		}
	`, "declared twice")
}

func TestEnumResolution(t *testing.T) {
	ns := mustResolve(t, `
		contract c {
			enum Weekday { Monday, Saturday, Sunday }
			function isWeekend(Weekday day) public returns (bool) {
				return day == Weekday.Saturday || day == Weekday.Sunday;
			}
		}
	`)
	if len(ns.Enums) != 1 || len(ns.Enums[0].Variants) != 3 {
		t.Fatalf("enums = %+v", ns.Enums)
	}
	// enums are uint8 in the canonical signature
	function := ns.Functions[0]
	if function.Signature != "isWeekend(uint8)" {
		t.Errorf("signature = %q", function.Signature)
	}
}

func TestSelectorsAreKeccakPrefix(t *testing.T) {
	ns := mustResolve(t, `
		contract token {
			function transfer(address to, uint256 amount) public returns (bool) { return true; }
		}
	`)
	function := ns.Functions[0]
	// the well-known ERC-20 transfer selector
	expected := [4]byte{0xa9, 0x05, 0x9c, 0xbb}
	if function.Selector != expected {
		t.Errorf("selector = %x, want %x", function.Selector, expected)
	}
}

func TestModifierDesugaring(t *testing.T) {
	ns := mustResolve(t, `
		contract c {
			uint guard;
			modifier nonzero(uint v) {
				require(v > 0);
				_;
			}
			function f(uint v) public nonzero(v) { guard = v; }
		}
	`)
	var target *sema.Function
	for _, function := range ns.Functions {
		if function.Name == "f" {
			target = function
		}
	}
	if len(target.Body) < 2 {
		t.Fatalf("desugared body has %d statements", len(target.Body))
	}
	// the require If wraps first; no placeholder survives
	for _, statement := range target.Body {
		if _, bad := statement.(*sema.Placeholder); bad {
			t.Error("placeholder survived desugaring")
		}
	}
}

func TestConstantFixedArray(t *testing.T) {
	mustResolve(t, `
		contract primes {
			uint64[10] constant table = [2, 3, 5, 7, 11, 13, 17, 19, 23, 29];
			function primenumber(uint32 n) public returns (uint64) {
				return table[n];
			}
		}
	`)
}

func TestConstantSubscriptOutOfBounds(t *testing.T) {
	expectError(t, `
		contract c {
			function f() public returns (uint64) {
				uint64[3] memory a = [1, 2, 3];
				return a[3];
			}
		}
	`, "out of bounds")
}

func TestUnknownIdentifier(t *testing.T) {
	expectError(t, "contract c { function f() public { x = 1; } }", "unknown identifier")
}
