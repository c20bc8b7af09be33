package sema_test

import (
	"testing"

	"solang/sema"
)

func TestUsingForDispatch(t *testing.T) {
	ns := mustResolve(t, `
		library math {
			function double(uint64 v) internal returns (uint64) {
				return v * 2;
			}
		}
		contract c {
			using math for uint64;
			function f(uint64 x) public returns (uint64) {
				return x.double();
			}
		}
	`)
	var f *sema.Function
	for _, function := range ns.Functions {
		if function.Name == "f" {
			f = function
		}
	}
	ret, ok := f.Body[0].(*sema.Return)
	if !ok {
		t.Fatalf("body[0] is %T", f.Body[0])
	}
	call, ok := ret.Values[0].(*sema.FunctionCall)
	if !ok {
		t.Fatalf("return value is %T, want a library call", ret.Values[0])
	}
	if ns.Functions[call.Function].Name != "double" {
		t.Errorf("dispatched to %q", ns.Functions[call.Function].Name)
	}
	if len(call.Arguments) != 1 {
		t.Errorf("receiver was not passed as the first argument")
	}
}

func TestUsingRequiresLibrary(t *testing.T) {
	expectError(t, `
		contract notalib { }
		contract c {
			using notalib for uint64;
		}
	`, "requires a library")
}

func TestEmitResolvesEvent(t *testing.T) {
	ns := mustResolve(t, `
		contract c {
			event Hit(address indexed who, uint256 total);
			uint total;
			function hit() public {
				total = total + 1;
				emit Hit(msg.sender, total);
			}
		}
	`)
	if len(ns.Events) != 1 {
		t.Fatalf("events = %d", len(ns.Events))
	}
	if ns.Events[0].Signature != "Hit(address,uint256)" {
		t.Errorf("event signature = %q", ns.Events[0].Signature)
	}
	var hit *sema.Function
	for _, function := range ns.Functions {
		if function.Name == "hit" {
			hit = function
		}
	}
	found := false
	for _, statement := range hit.Body {
		if emit, ok := statement.(*sema.Emit); ok {
			found = true
			if len(emit.Arguments) != 2 {
				t.Errorf("emit arguments = %d", len(emit.Arguments))
			}
		}
	}
	if !found {
		t.Error("emit statement was not resolved")
	}
}

func TestEmitUnknownEvent(t *testing.T) {
	expectError(t, `
		contract c {
			function f() public {
				emit Missing(1);
			}
		}
	`, "unknown event")
}
