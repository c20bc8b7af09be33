package sema

import (
	"testing"
)

func TestImplicitMatrix(t *testing.T) {
	cases := []struct {
		from, to Type
		ok       bool
	}{
		{Uint{Width: 8}, Uint{Width: 256}, true},   // widening
		{Uint{Width: 256}, Uint{Width: 8}, false},  // narrowing
		{Int{Width: 8}, Int{Width: 64}, true},      // widening, signed
		{Int{Width: 32}, Uint{Width: 64}, false},   // sign change
		{Uint{Width: 32}, Int{Width: 64}, false},   // sign change
		{Bytes{N: 4}, Uint{Width: 32}, false},      // bytes never implicit
		{Uint{Width: 32}, Bytes{N: 4}, false},      // and not the other way
		{Address{Payable: true}, Address{}, true},  // payable decays
		{Address{}, Address{Payable: true}, false}, // but not back
		{Bool{}, Uint{Width: 8}, false},
	}
	for _, test := range cases {
		if implicitOK(test.from, test.to) != test.ok {
			t.Errorf("implicitOK(%T%v, %T%v) != %t", test.from, test.from, test.to, test.to, test.ok)
		}
	}
}

func TestExplicitMatrix(t *testing.T) {
	cases := []struct {
		from, to Type
		ok       bool
	}{
		{Uint{Width: 256}, Uint{Width: 8}, true}, // narrowing allowed
		{Int{Width: 64}, Uint{Width: 64}, true},  // sign reinterpret
		{Uint{Width: 32}, Bytes{N: 4}, true},     // same width reinterpret
		{Uint{Width: 32}, Bytes{N: 8}, false},    // width and category at once
		{Bytes{N: 4}, Bytes{N: 8}, true},         // bytes resize
		{Bytes{N: 4}, Uint{Width: 32}, true},     // reinterpret back
		{Bytes{N: 4}, Uint{Width: 64}, false},    // width change too
		{Uint{Width: 160}, Address{}, true},      // address is 160 bits
		{Uint{Width: 128}, Address{}, false},     //
		{Bytes{N: 20}, Address{}, true},          //
		{Address{}, Bytes{N: 20}, true},          //
		{String{}, DynamicBytes{}, true},         //
		{DynamicBytes{}, String{}, true},         //
		{Enum{ID: 0}, Uint{Width: 8}, true},      // enums convert to ints
		{Uint{Width: 8}, Enum{ID: 0}, true},      // and back, checked
		{Bool{}, Uint{Width: 8}, false},          // never through bool
	}
	for _, test := range cases {
		if explicitOK(test.from, test.to) != test.ok {
			t.Errorf("explicitOK(%T%v, %T%v) != %t", test.from, test.from, test.to, test.to, test.ok)
		}
	}
}

func TestTypeEquality(t *testing.T) {
	ten := uint64(10)
	also := uint64(10)
	other := uint64(11)
	four := uint64(4)
	if !Equal(Array{Element: Uint{Width: 64}, Length: &ten}, Array{Element: Uint{Width: 64}, Length: &also}) {
		t.Error("equal fixed arrays compare unequal")
	}
	if Equal(Array{Element: Uint{Width: 64}, Length: &ten}, Array{Element: Uint{Width: 64}, Length: &other}) {
		t.Error("different lengths compare equal")
	}
	if Equal(Array{Element: Uint{Width: 64}, Length: &ten}, Array{Element: Uint{Width: 64}}) {
		t.Error("fixed and dynamic arrays compare equal")
	}
	if Equal(Bytes{N: 4}, Array{Element: Uint{Width: 8}, Length: &four}) {
		t.Error("bytes4 must stay distinct from uint8[4]")
	}
}

func TestCanonicalNames(t *testing.T) {
	ns := NewNamespace()
	ns.Contracts = append(ns.Contracts, &ContractDecl{Name: "token"})
	ns.Enums = append(ns.Enums, &EnumDecl{Name: "Weekday", Variants: []string{"Mon"}})
	length := uint64(3)

	cases := []struct {
		ty   Type
		name string
	}{
		{Uint{Width: 256}, "uint256"},
		{Enum{ID: 0}, "uint8"},
		{Contract{ID: 0}, "address"},
		{Array{Element: Uint{Width: 64}, Length: &length}, "uint64[3]"},
		{Array{Element: String{}}, "string[]"},
		{Ref{Inner: DynamicBytes{}, Loc: Memory}, "bytes"},
	}
	for _, test := range cases {
		if name := ns.CanonicalName(test.ty); name != test.name {
			t.Errorf("CanonicalName = %q, want %q", name, test.name)
		}
	}

	signature := ns.Signature("transfer", []Type{Address{}, Uint{Width: 256}})
	if signature != "transfer(address,uint256)" {
		t.Errorf("signature = %q", signature)
	}
}
