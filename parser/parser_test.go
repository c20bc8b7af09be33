package parser

import (
	"testing"

	"solang/ast"
	"solang/diag"
	"solang/lexer"
	"solang/token"
)

func parse(t *testing.T, source string) (*ast.SourceUnit, *diag.Diagnostics) {
	t.Helper()
	diagnostics := diag.New()
	tokens := lexer.New(0, source, diagnostics).Scan()
	unit := Make(tokens, diagnostics).Parse()
	return unit, diagnostics
}

func TestContractDeclaration(t *testing.T) {
	unit, diagnostics := parse(t, `
		contract counter is base, other {
			uint counter = 1;

			function hit() public {
				counter = counter + 1;
			}

			function count() public view returns (uint) {
				return counter;
			}
		}
	`)
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	if len(unit.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(unit.Items))
	}
	contract, ok := unit.Items[0].(*ast.ContractDef)
	if !ok {
		t.Fatalf("item is %T", unit.Items[0])
	}
	if contract.Name != "counter" || len(contract.Bases) != 2 {
		t.Errorf("contract = %q, bases = %d", contract.Name, len(contract.Bases))
	}
	if len(contract.Parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(contract.Parts))
	}
	variable := contract.Parts[0].(*ast.VariableDef)
	if variable.Name != "counter" || variable.Value == nil {
		t.Errorf("state variable = %+v", variable)
	}
	count := contract.Parts[2].(*ast.FunctionDef)
	if count.Mutability != token.VIEW || len(count.Returns) != 1 {
		t.Errorf("count() = %+v", count)
	}
}

func TestPrecedence(t *testing.T) {
	unit, diagnostics := parse(t, "contract c { function f() public { x = 1 + 2 * 3; } }")
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	contract := unit.Items[0].(*ast.ContractDef)
	body := contract.Parts[0].(*ast.FunctionDef).Body
	assign := body.Statements[0].(*ast.ExpressionStmt).Expression.(*ast.Assign)
	sum := assign.Value.(*ast.Binary)
	if sum.Operator.Kind != token.ADD {
		t.Fatalf("top operator = %v, want +", sum.Operator.Kind)
	}
	product, ok := sum.Right.(*ast.Binary)
	if !ok || product.Operator.Kind != token.MULT {
		t.Errorf("right operand is %T, want * expression", sum.Right)
	}
}

func TestPowerIsRightAssociative(t *testing.T) {
	unit, diagnostics := parse(t, "contract c { function f() public { x = 2 ** 3 ** 2; } }")
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	contract := unit.Items[0].(*ast.ContractDef)
	body := contract.Parts[0].(*ast.FunctionDef).Body
	assign := body.Statements[0].(*ast.ExpressionStmt).Expression.(*ast.Assign)
	power := assign.Value.(*ast.Binary)
	if _, ok := power.Right.(*ast.Binary); !ok {
		t.Errorf("right operand is %T; ** should nest to the right", power.Right)
	}
}

func TestStatements(t *testing.T) {
	_, diagnostics := parse(t, `
		contract c {
			function f(uint n) public returns (uint total) {
				for (uint i = 0; i < n; i++) {
					if (i == 3) {
						continue;
					}
					total += i;
				}
				do {
					n--;
				} while (n > 0);
				while (true) {
					break;
				}
				return total;
			}
		}
	`)
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
}

func TestMappingAndArrayTypes(t *testing.T) {
	unit, diagnostics := parse(t, `
		contract c {
			mapping(address => uint256) balances;
			uint64[10] fixed;
			uint[] dynamic;
		}
	`)
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	contract := unit.Items[0].(*ast.ContractDef)
	if _, ok := contract.Parts[0].(*ast.VariableDef).Type.(*ast.MappingType); !ok {
		t.Error("first part should be a mapping")
	}
	fixed := contract.Parts[1].(*ast.VariableDef).Type.(*ast.ArrayType)
	if fixed.Length == nil {
		t.Error("fixed array lost its length")
	}
	dynamic := contract.Parts[2].(*ast.VariableDef).Type.(*ast.ArrayType)
	if dynamic.Length != nil {
		t.Error("dynamic array should have no length")
	}
}

func TestEnumStructEvent(t *testing.T) {
	unit, diagnostics := parse(t, `
		enum Weekday { Monday, Saturday, Sunday }
		struct Point { uint64 x; uint64 y; }
		contract c {
			event Transfer(address indexed from, address indexed to, uint256 amount);
		}
	`)
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	enum := unit.Items[0].(*ast.EnumDef)
	if len(enum.Variants) != 3 {
		t.Errorf("variants = %v", enum.Variants)
	}
	point := unit.Items[1].(*ast.StructDef)
	if len(point.Fields) != 2 {
		t.Errorf("fields = %d", len(point.Fields))
	}
	event := unit.Items[2].(*ast.ContractDef).Parts[0].(*ast.EventDef)
	if len(event.Fields) != 3 || !event.Fields[0].Indexed || event.Fields[2].Indexed {
		t.Errorf("event fields = %+v", event.Fields)
	}
}

func TestPragmaIsAcceptedWithWarning(t *testing.T) {
	unit, diagnostics := parse(t, "pragma solidity ^0.8.0;\ncontract c { }")
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	if _, ok := unit.Items[0].(*ast.Pragma); !ok {
		t.Errorf("first item is %T", unit.Items[0])
	}
}

func TestImports(t *testing.T) {
	unit, diagnostics := parse(t, `import "lib.sol"; import "other.sol" as other; contract c { }`)
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	plain := unit.Items[0].(*ast.Import)
	aliased := unit.Items[1].(*ast.Import)
	if plain.Path != "lib.sol" || plain.Alias != "" {
		t.Errorf("plain import = %+v", plain)
	}
	if aliased.Path != "other.sol" || aliased.Alias != "other" {
		t.Errorf("aliased import = %+v", aliased)
	}
}

func TestModifierAndPlaceholder(t *testing.T) {
	unit, diagnostics := parse(t, `
		contract c {
			modifier only(address who) {
				require(msg.sender == who);
				_;
			}
			function f() public only(owner) { }
		}
	`)
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	contract := unit.Items[0].(*ast.ContractDef)
	modifier := contract.Parts[0].(*ast.FunctionDef)
	if modifier.Kind != ast.KindModifier {
		t.Fatalf("kind = %v", modifier.Kind)
	}
	if _, ok := modifier.Body.Statements[1].(*ast.Placeholder); !ok {
		t.Errorf("second statement is %T, want placeholder", modifier.Body.Statements[1])
	}
	function := contract.Parts[1].(*ast.FunctionDef)
	if len(function.Modifiers) != 1 || function.Modifiers[0].Name.Names[0] != "only" {
		t.Errorf("modifier invocations = %+v", function.Modifiers)
	}
}

func TestRecoveryAfterError(t *testing.T) {
	unit, diagnostics := parse(t, `
		contract broken {
			function f( public { }
			function ok() public { }
		}
	`)
	if !diagnostics.HasErrors() {
		t.Fatal("expected a syntax error")
	}
	contract, ok := unit.Items[0].(*ast.ContractDef)
	if !ok {
		t.Fatal("recovery lost the contract")
	}
	found := false
	for _, part := range contract.Parts {
		if function, isFunc := part.(*ast.FunctionDef); isFunc && function.Name == "ok" {
			found = true
		}
	}
	if !found {
		t.Error("parser did not recover to parse the next function")
	}
}

func TestDocCommentAttachesToDeclaration(t *testing.T) {
	unit, diagnostics := parse(t, `
		/// counts the hits
		contract counter { }
	`)
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	contract := unit.Items[0].(*ast.ContractDef)
	if contract.Doc != "counts the hits" {
		t.Errorf("doc = %q", contract.Doc)
	}
}
