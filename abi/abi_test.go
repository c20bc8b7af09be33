package abi

import (
	"math/big"
	"reflect"
	"testing"

	"solang/sema"
)

func roundTripEth(t *testing.T, types []sema.Type, values []any) {
	t.Helper()
	ns := sema.NewNamespace()
	encoded, err := EthEncode(ns, types, values)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded)%32 != 0 {
		t.Errorf("eth encoding is not word aligned: %d bytes", len(encoded))
	}
	decoded, err := EthDecode(ns, types, encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, values) {
		t.Errorf("round trip: %v != %v", decoded, values)
	}
}

func roundTripScale(t *testing.T, types []sema.Type, values []any) {
	t.Helper()
	ns := sema.NewNamespace()
	encoded, err := ScaleEncode(ns, types, values)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := ScaleDecode(ns, types, encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, values) {
		t.Errorf("round trip: %v != %v", decoded, values)
	}
}

func TestEthScalars(t *testing.T) {
	roundTripEth(t,
		[]sema.Type{sema.Uint{Width: 64}, sema.Bool{}, sema.Int{Width: 32}},
		[]any{big.NewInt(12345), true, big.NewInt(-7)},
	)
}

func TestEthAddressAndBytes(t *testing.T) {
	address := make([]byte, 20)
	address[19] = 0xaa
	roundTripEth(t,
		[]sema.Type{sema.Address{}, sema.Bytes{N: 4}},
		[]any{address, []byte{0xde, 0xad, 0xca, 0xfe}},
	)
}

func TestEthDynamic(t *testing.T) {
	roundTripEth(t,
		[]sema.Type{sema.String{}, sema.Uint{Width: 8}, sema.DynamicBytes{}},
		[]any{"hello world", big.NewInt(3), []byte{1, 2, 3}},
	)
}

func TestEthDynamicArray(t *testing.T) {
	roundTripEth(t,
		[]sema.Type{sema.Array{Element: sema.Uint{Width: 64}}},
		[]any{[]any{big.NewInt(1), big.NewInt(2), big.NewInt(3)}},
	)
}

func TestEthFixedArray(t *testing.T) {
	length := uint64(2)
	roundTripEth(t,
		[]sema.Type{sema.Array{Element: sema.Uint{Width: 64}, Length: &length}},
		[]any{[]any{big.NewInt(10), big.NewInt(20)}},
	)
}

func TestEthHeadTailOffsets(t *testing.T) {
	ns := sema.NewNamespace()
	encoded, err := EthEncode(ns,
		[]sema.Type{sema.Uint{Width: 64}, sema.String{}},
		[]any{big.NewInt(1), "ab"},
	)
	if err != nil {
		t.Fatal(err)
	}
	// head: word 1, then an offset pointing just past the head
	offset := new(big.Int).SetBytes(encoded[32:64])
	if offset.Int64() != 64 {
		t.Errorf("tail offset = %v, want 64", offset)
	}
	length := new(big.Int).SetBytes(encoded[64:96])
	if length.Int64() != 2 {
		t.Errorf("string length = %v, want 2", length)
	}
}

func TestScaleScalars(t *testing.T) {
	roundTripScale(t,
		[]sema.Type{sema.Uint{Width: 64}, sema.Bool{}, sema.Int{Width: 32}, sema.Uint{Width: 8}},
		[]any{big.NewInt(12345), true, big.NewInt(-7), big.NewInt(255)},
	)
}

func TestScaleIsTight(t *testing.T) {
	ns := sema.NewNamespace()
	encoded, err := ScaleEncode(ns,
		[]sema.Type{sema.Uint{Width: 32}, sema.Bool{}},
		[]any{big.NewInt(0x01020304), true},
	)
	if err != nil {
		t.Fatal(err)
	}
	// 4 little-endian bytes plus 1 bool byte, nothing more
	expected := []byte{0x04, 0x03, 0x02, 0x01, 0x01}
	if !reflect.DeepEqual(encoded, expected) {
		t.Errorf("encoding = %x, want %x", encoded, expected)
	}
}

func TestScaleDynamic(t *testing.T) {
	roundTripScale(t,
		[]sema.Type{sema.String{}, sema.DynamicBytes{}, sema.Array{Element: sema.Uint{Width: 16}}},
		[]any{"scale", []byte{9, 8}, []any{big.NewInt(1), big.NewInt(2)}},
	)
}

func TestCompactLengths(t *testing.T) {
	cases := []uint64{0, 1, 63, 64, 16383, 16384, 1 << 20}
	for _, value := range cases {
		encoded := CompactEncode(value)
		decoded, consumed, err := CompactDecode(encoded)
		if err != nil {
			t.Fatalf("decode %d: %v", value, err)
		}
		if decoded != value || consumed != len(encoded) {
			t.Errorf("compact %d: decoded %d, consumed %d of %d", value, decoded, consumed, len(encoded))
		}
	}
}

func TestScaleEnumTag(t *testing.T) {
	ns := sema.NewNamespace()
	// an enum value is a single tag byte
	encoded, err := ScaleEncode(ns, []sema.Type{sema.Enum{ID: 0}}, []any{big.NewInt(2)})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(encoded, []byte{2}) {
		t.Errorf("enum encoding = %x", encoded)
	}
}
