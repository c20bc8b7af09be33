package cfg_test

import (
	"math/big"
	"testing"

	"solang/cfg"
)

func countInstrs(graph *cfg.CFG, match func(cfg.Instruction) bool) int {
	count := 0
	for _, block := range graph.Blocks {
		for _, instruction := range block.Instrs {
			if match(instruction) {
				count++
			}
		}
	}
	return count
}

func TestConstantFolding(t *testing.T) {
	source := `
		contract c {
			function f() public returns (uint) {
				uint a = 5;
				uint b = a * 2;
				return b + 1;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	graph := graphOf(t, result, "f")
	// after folding the arithmetic is gone; only Set instructions and
	// the constant 11 remain on the return path
	folded := false
	for _, block := range graph.Blocks {
		for _, instruction := range block.Instrs {
			if set, ok := instruction.(cfg.Set); ok {
				if constant, isConst := set.Value.(cfg.ConstInt); isConst && constant.Value.Int64() == 11 {
					folded = true
				}
			}
		}
	}
	if !folded {
		t.Errorf("constant folding did not produce 11:\n%s", graph.String())
	}
}

func TestFoldingPreservesDivisionByZeroTrap(t *testing.T) {
	source := `
		contract c {
			function f(uint n) public returns (uint) {
				uint zero = n - n;
				return 10 / zero;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	interp := cfg.NewInterp(result.Namespace, result.Graphs)
	_, err := interp.Run(functionID(t, result, "f"), big.NewInt(3))
	failure, ok := err.(*cfg.Failure)
	if !ok {
		t.Fatalf("err = %v, want a failure", err)
	}
	if failure.Kind != 3 { // division by zero
		t.Errorf("failure kind = %d", failure.Kind)
	}
}

func TestStrengthReduction(t *testing.T) {
	source := `
		contract c {
			function f(uint x) public returns (uint) {
				return x * 8;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	graph := graphOf(t, result, "f")
	shifts := countInstrs(graph, func(instruction cfg.Instruction) bool {
		binop, ok := instruction.(cfg.BinOp)
		return ok && binop.Op == cfg.BinShl
	})
	muls := countInstrs(graph, func(instruction cfg.Instruction) bool {
		binop, ok := instruction.(cfg.BinOp)
		return ok && binop.Op == cfg.BinMul
	})
	if shifts != 1 || muls != 0 {
		t.Errorf("shifts = %d muls = %d:\n%s", shifts, muls, graph.String())
	}
}

func TestModuloStrengthReduction(t *testing.T) {
	source := `
		contract c {
			function f(uint x) public returns (uint) {
				return x % 16;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	graph := graphOf(t, result, "f")
	ands := countInstrs(graph, func(instruction cfg.Instruction) bool {
		binop, ok := instruction.(cfg.BinOp)
		if !ok || binop.Op != cfg.BinAnd {
			return false
		}
		constant, isConst := binop.Right.(cfg.ConstInt)
		return isConst && constant.Value.Int64() == 15
	})
	if ands != 1 {
		t.Errorf("modulo was not reduced to a mask:\n%s", graph.String())
	}
}

func TestCommonSubexpressionElimination(t *testing.T) {
	source := `
		contract c {
			function f(uint x, uint y) public returns (uint) {
				uint a = x * y;
				uint b = x * y;
				return a + b;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	graph := graphOf(t, result, "f")
	muls := countInstrs(graph, func(instruction cfg.Instruction) bool {
		binop, ok := instruction.(cfg.BinOp)
		return ok && binop.Op == cfg.BinMul
	})
	if muls != 1 {
		t.Errorf("x*y computed %d times, want 1:\n%s", muls, graph.String())
	}
}

func TestVectorToSlice(t *testing.T) {
	source := `
		contract c {
			function f() public returns (uint) {
				return [10, 20, 30][1];
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	graph := graphOf(t, result, "f")
	allocs := countInstrs(graph, func(instruction cfg.Instruction) bool {
		_, ok := instruction.(cfg.AllocArray)
		return ok
	})
	if allocs != 0 {
		t.Errorf("temporary array literal was not bypassed:\n%s", graph.String())
	}
}

func TestDeadStorageElimination(t *testing.T) {
	source := `
		contract c {
			uint x;
			function f() public {
				x = 1;
				x = 2;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	graph := graphOf(t, result, "f")
	stores := countInstrs(graph, func(instruction cfg.Instruction) bool {
		store, ok := instruction.(cfg.Store)
		return ok && store.Space == cfg.SpaceStorage
	})
	if stores != 1 {
		t.Errorf("overwritten store was not dropped, %d stores remain:\n%s", stores, graph.String())
	}
}

func TestStoreBeforeReadIsKept(t *testing.T) {
	source := `
		contract c {
			uint x;
			function f() public returns (uint) {
				x = 1;
				uint y = x;
				x = 2;
				return y;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	graph := graphOf(t, result, "f")
	stores := countInstrs(graph, func(instruction cfg.Instruction) bool {
		store, ok := instruction.(cfg.Store)
		return ok && store.Space == cfg.SpaceStorage
	})
	if stores != 2 {
		t.Errorf("a store observed by a read was dropped, %d stores remain", stores)
	}
}

// every pass must preserve semantics; the same source runs unoptimized
// and optimized and the observable results must agree
func TestPassesPreserveSemantics(t *testing.T) {
	source := `
		contract c {
			uint acc;
			function f(uint n) public returns (uint) {
				uint total = 0;
				for (uint i = 1; i <= n; i++) {
					total = total + i * 4;
					total = total % 1024;
					acc = total;
				}
				return total;
			}
		}
	`
	plain := compile(t, source, cfg.NoPasses())
	optimized := compile(t, source, cfg.DefaultPasses())

	for _, n := range []int64{0, 1, 7, 100} {
		interpPlain := cfg.NewInterp(plain.Namespace, plain.Graphs)
		interpOptimized := cfg.NewInterp(optimized.Namespace, optimized.Graphs)
		resultPlain, errPlain := interpPlain.Run(functionID(t, plain, "f"), big.NewInt(n))
		resultOptimized, errOptimized := interpOptimized.Run(functionID(t, optimized, "f"), big.NewInt(n))
		if (errPlain == nil) != (errOptimized == nil) {
			t.Fatalf("n=%d: errors diverge: %v vs %v", n, errPlain, errOptimized)
		}
		if errPlain != nil {
			continue
		}
		left := resultPlain[0].(*big.Int)
		right := resultOptimized[0].(*big.Int)
		if left.Cmp(right) != 0 {
			t.Errorf("n=%d: %v != %v", n, left, right)
		}
	}
}
