package cfg_test

import (
	"math/big"
	"testing"

	"solang/cfg"
	"solang/sema"
)

// The end-to-end scenarios run on the debug-target interpreter: the
// resolved contracts are lowered, optimized and executed against a
// mock storage.

func TestScenarioHitcount(t *testing.T) {
	source := `
		contract hitcount {
			uint counter = 1;
			function hit() public {
				counter = counter + 1;
			}
			function count() public view returns (uint) {
				return counter;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	interp := cfg.NewInterp(result.Namespace, result.Graphs)

	// deploy writes the initializer
	interp.Storage["0+0"] = big.NewInt(1)

	counted, err := interp.Run(functionID(t, result, "count"))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counted[0].(*big.Int).Int64() != 1 {
		t.Errorf("count after deploy = %v, want 1", counted[0])
	}

	if _, err := interp.Run(functionID(t, result, "hit")); err != nil {
		t.Fatalf("hit: %v", err)
	}
	counted, err = interp.Run(functionID(t, result, "count"))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counted[0].(*big.Int).Int64() != 2 {
		t.Errorf("count after one hit = %v, want 2", counted[0])
	}
}

func TestScenarioPrimes(t *testing.T) {
	source := `
		contract primes {
			uint64[10] constant table = [2, 3, 5, 7, 11, 13, 17, 19, 23, 29];
			function primenumber(uint32 n) public returns (uint64) {
				return table[n];
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	interp := cfg.NewInterp(result.Namespace, result.Graphs)
	id := functionID(t, result, "primenumber")

	first, err := interp.Run(id, big.NewInt(0))
	if err != nil {
		t.Fatalf("primenumber(0): %v", err)
	}
	if first[0].(*big.Int).Int64() != 2 {
		t.Errorf("primenumber(0) = %v, want 2", first[0])
	}

	last, err := interp.Run(id, big.NewInt(9))
	if err != nil {
		t.Fatalf("primenumber(9): %v", err)
	}
	if last[0].(*big.Int).Int64() != 29 {
		t.Errorf("primenumber(9) = %v, want 29", last[0])
	}

	_, err = interp.Run(id, big.NewInt(10))
	failure, ok := err.(*cfg.Failure)
	if !ok {
		t.Fatalf("primenumber(10) = %v, want the abort primitive", err)
	}
	if failure.Kind != sema.RevertBounds {
		t.Errorf("failure kind = %d, want out-of-bounds", failure.Kind)
	}
}

func TestScenarioEnumWeekend(t *testing.T) {
	source := `
		contract week {
			enum Weekday { Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday }
			function isWeekend(Weekday day) public returns (bool) {
				return day == Weekday.Saturday || day == Weekday.Sunday;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	interp := cfg.NewInterp(result.Namespace, result.Graphs)
	id := functionID(t, result, "isWeekend")

	cases := []struct {
		day     int64
		weekend bool
	}{
		{0, false}, {4, false}, {5, true}, {6, true},
	}
	for _, test := range cases {
		out, err := interp.Run(id, big.NewInt(test.day))
		if err != nil {
			t.Fatalf("isWeekend(%d): %v", test.day, err)
		}
		if out[0].(bool) != test.weekend {
			t.Errorf("isWeekend(%d) = %v, want %v", test.day, out[0], test.weekend)
		}
	}
}

func TestScenarioCastTruncation(t *testing.T) {
	source := `
		contract casts {
			function low(uint64 x) public returns (uint64) {
				return uint64(uint16(uint32(x)));
			}
			function lead(uint32 x) public returns (bytes2) {
				return bytes2(bytes4(x));
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	interp := cfg.NewInterp(result.Namespace, result.Graphs)

	// integers truncate keeping the low-order bits and widen with
	// zeros on the high-order side
	out, err := interp.Run(functionID(t, result, "low"), big.NewInt(0xdeadcafe))
	if err != nil {
		t.Fatalf("low: %v", err)
	}
	if out[0].(*big.Int).Int64() != 0xcafe {
		t.Errorf("low(0xdeadcafe) = %#x, want 0xcafe", out[0])
	}

	// fixed bytes keep their leading bytes when narrowed
	out, err = interp.Run(functionID(t, result, "lead"), big.NewInt(0xdeadcafe))
	if err != nil {
		t.Fatalf("lead: %v", err)
	}
	raw := out[0].([]byte)
	if len(raw) != 2 || raw[0] != 0xde || raw[1] != 0xad {
		t.Errorf("lead(0xdeadcafe) = %x, want dead", raw)
	}
}

func TestScenarioModifierGuard(t *testing.T) {
	source := `
		contract guarded {
			uint value;
			modifier positive(uint v) {
				require(v > 0, "must be positive");
				_;
			}
			function set(uint v) public positive(v) {
				value = v;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	interp := cfg.NewInterp(result.Namespace, result.Graphs)
	id := functionID(t, result, "set")

	if _, err := interp.Run(id, big.NewInt(5)); err != nil {
		t.Fatalf("set(5): %v", err)
	}
	if interp.Storage["0+0"].(*big.Int).Int64() != 5 {
		t.Errorf("storage = %v", interp.Storage["0+0"])
	}

	_, err := interp.Run(id, big.NewInt(0))
	failure, ok := err.(*cfg.Failure)
	if !ok || failure.Reason != "must be positive" {
		t.Errorf("set(0) = %v, want the guard revert", err)
	}
}

func TestScenarioCheckedOverflowTraps(t *testing.T) {
	source := `
		contract c {
			function f(uint8 x) public returns (uint8) {
				return x + 1;
			}
		}
	`
	result := compile(t, source, cfg.DefaultPasses())
	interp := cfg.NewInterp(result.Namespace, result.Graphs)
	id := functionID(t, result, "f")

	out, err := interp.Run(id, big.NewInt(254))
	if err != nil {
		t.Fatalf("f(254): %v", err)
	}
	if out[0].(*big.Int).Int64() != 255 {
		t.Errorf("f(254) = %v", out[0])
	}

	_, err = interp.Run(id, big.NewInt(255))
	failure, ok := err.(*cfg.Failure)
	if !ok || failure.Kind != sema.RevertOverflow {
		t.Errorf("f(255) = %v, want the overflow trap", err)
	}
}
