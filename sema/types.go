// Package sema resolves parsed source units into a typed Namespace:
// symbol tables, linearized inheritance, typed function bodies and
// storage layouts. The Namespace owns every resolved entity; all
// cross references go through numeric ids so ownership stays a tree.
package sema

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Location of a reference type.
type Location int

const (
	Memory Location = iota
	Storage
	CallData
)

func (l Location) String() string {
	switch l {
	case Storage:
		return "storage"
	case CallData:
		return "calldata"
	default:
		return "memory"
	}
}

// Type is the compiler's type algebra, a closed tagged variant. All
// polymorphism in the pipeline is a switch over these members.
type Type interface {
	typeNode()
}

type Bool struct{}

// Int is a signed integer of Width bits, 8..256 in steps of 8.
type Int struct{ Width int }

// Uint is an unsigned integer of Width bits, 8..256 in steps of 8.
type Uint struct{ Width int }

// Bytes is a fixed-width binary of N bytes, 1..32. Distinct from
// Array{Uint{8}, N} for ABI purposes.
type Bytes struct{ N int }

type DynamicBytes struct{}

type String struct{}

type Address struct{ Payable bool }

// Enum references an enum declaration by namespace id.
type Enum struct{ ID int }

// StructType references a struct declaration by namespace id.
type StructType struct{ ID int }

// Array has a nil Length for dynamic arrays.
type Array struct {
	Element Type
	Length  *uint64
}

// Mapping is only legal storage-located.
type Mapping struct {
	Key   Type
	Value Type
}

// Contract references a contract declaration by namespace id.
type Contract struct{ ID int }

// Ref is a reference to Inner located in Loc.
type Ref struct {
	Inner Type
	Loc   Location
}

// FunctionType is the type of an internal or external function value.
type FunctionType struct {
	Parameters []Type
	Returns    []Type
	Mutability Mutability
}

type Void struct{}

func (Bool) typeNode()         {}
func (Int) typeNode()          {}
func (Uint) typeNode()         {}
func (Bytes) typeNode()        {}
func (DynamicBytes) typeNode() {}
func (String) typeNode()       {}
func (Address) typeNode()      {}
func (Enum) typeNode()         {}
func (StructType) typeNode()   {}
func (Array) typeNode()        {}
func (Mapping) typeNode()      {}
func (Contract) typeNode()     {}
func (Ref) typeNode()          {}
func (FunctionType) typeNode() {}
func (Void) typeNode()         {}

// Mutability of a function.
type Mutability int

const (
	Nonpayable Mutability = iota
	Pure
	View
	Payable
)

func (m Mutability) String() string {
	switch m {
	case Pure:
		return "pure"
	case View:
		return "view"
	case Payable:
		return "payable"
	default:
		return "nonpayable"
	}
}

// Visibility of a function or state variable.
type Visibility int

const (
	Public Visibility = iota
	External
	Internal
	Private
)

func (v Visibility) String() string {
	switch v {
	case External:
		return "external"
	case Internal:
		return "internal"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// Deref peels a Ref and returns the inner type, or the type itself.
func Deref(ty Type) Type {
	if ref, ok := ty.(Ref); ok {
		return ref.Inner
	}
	return ty
}

// Equal reports structural equality of two types. Refs compare by
// their inner type and location.
func Equal(a, b Type) bool {
	switch left := a.(type) {
	case Bool:
		_, ok := b.(Bool)
		return ok
	case Int:
		right, ok := b.(Int)
		return ok && left.Width == right.Width
	case Uint:
		right, ok := b.(Uint)
		return ok && left.Width == right.Width
	case Bytes:
		right, ok := b.(Bytes)
		return ok && left.N == right.N
	case DynamicBytes:
		_, ok := b.(DynamicBytes)
		return ok
	case String:
		_, ok := b.(String)
		return ok
	case Address:
		right, ok := b.(Address)
		return ok && left.Payable == right.Payable
	case Enum:
		right, ok := b.(Enum)
		return ok && left.ID == right.ID
	case StructType:
		right, ok := b.(StructType)
		return ok && left.ID == right.ID
	case Array:
		right, ok := b.(Array)
		if !ok || !Equal(left.Element, right.Element) {
			return false
		}
		if left.Length == nil || right.Length == nil {
			return left.Length == nil && right.Length == nil
		}
		return *left.Length == *right.Length
	case Mapping:
		right, ok := b.(Mapping)
		return ok && Equal(left.Key, right.Key) && Equal(left.Value, right.Value)
	case Contract:
		right, ok := b.(Contract)
		return ok && left.ID == right.ID
	case Ref:
		right, ok := b.(Ref)
		return ok && left.Loc == right.Loc && Equal(left.Inner, right.Inner)
	case FunctionType:
		right, ok := b.(FunctionType)
		if !ok || len(left.Parameters) != len(right.Parameters) || len(left.Returns) != len(right.Returns) {
			return false
		}
		for i := range left.Parameters {
			if !Equal(left.Parameters[i], right.Parameters[i]) {
				return false
			}
		}
		for i := range left.Returns {
			if !Equal(left.Returns[i], right.Returns[i]) {
				return false
			}
		}
		return true
	case Void:
		_, ok := b.(Void)
		return ok
	}
	return false
}

// TypeString renders a type the way the user wrote it, for
// diagnostics.
func (ns *Namespace) TypeString(ty Type) string {
	switch t := ty.(type) {
	case Bool:
		return "bool"
	case Int:
		return fmt.Sprintf("int%d", t.Width)
	case Uint:
		return fmt.Sprintf("uint%d", t.Width)
	case Bytes:
		return fmt.Sprintf("bytes%d", t.N)
	case DynamicBytes:
		return "bytes"
	case String:
		return "string"
	case Address:
		if t.Payable {
			return "address payable"
		}
		return "address"
	case Enum:
		return "enum " + ns.Enums[t.ID].Name
	case StructType:
		return "struct " + ns.Structs[t.ID].Name
	case Array:
		if t.Length == nil {
			return ns.TypeString(t.Element) + "[]"
		}
		return fmt.Sprintf("%s[%d]", ns.TypeString(t.Element), *t.Length)
	case Mapping:
		return fmt.Sprintf("mapping(%s => %s)", ns.TypeString(t.Key), ns.TypeString(t.Value))
	case Contract:
		return "contract " + ns.Contracts[t.ID].Name
	case Ref:
		return fmt.Sprintf("%s %s", ns.TypeString(t.Inner), t.Loc)
	case FunctionType:
		return "function"
	case Void:
		return "void"
	}
	return "<unknown>"
}

// CanonicalName renders a type for the canonical function signature
// string that selectors are hashed from: enums become their
// underlying uint8, contracts become address, structs a parenthesized
// tuple of their field types.
func (ns *Namespace) CanonicalName(ty Type) string {
	switch t := Deref(ty).(type) {
	case Bool:
		return "bool"
	case Int:
		return fmt.Sprintf("int%d", t.Width)
	case Uint:
		return fmt.Sprintf("uint%d", t.Width)
	case Bytes:
		return fmt.Sprintf("bytes%d", t.N)
	case DynamicBytes:
		return "bytes"
	case String:
		return "string"
	case Address:
		return "address"
	case Enum:
		return "uint8"
	case StructType:
		fields := lo.Map(ns.Structs[t.ID].Fields, func(field Field, _ int) string {
			return ns.CanonicalName(field.Type)
		})
		return "(" + strings.Join(fields, ",") + ")"
	case Array:
		if t.Length == nil {
			return ns.CanonicalName(t.Element) + "[]"
		}
		return fmt.Sprintf("%s[%d]", ns.CanonicalName(t.Element), *t.Length)
	case Contract:
		return "address"
	}
	return "<illegal>"
}

// Signature assembles the canonical signature string for a function
// name and its parameter types.
func (ns *Namespace) Signature(name string, parameters []Type) string {
	names := lo.Map(parameters, func(ty Type, _ int) string {
		return ns.CanonicalName(ty)
	})
	return name + "(" + strings.Join(names, ",") + ")"
}

// bits returns the bit width of an integer, bytes, address or enum
// type, or 0 when the type has no fixed scalar width.
func bits(ty Type) int {
	switch t := Deref(ty).(type) {
	case Bool:
		return 1
	case Int:
		return t.Width
	case Uint:
		return t.Width
	case Bytes:
		return t.N * 8
	case Address:
		return 160
	case Enum:
		return 8
	}
	return 0
}

// isSigned reports whether ty is a signed integer.
func isSigned(ty Type) bool {
	_, ok := Deref(ty).(Int)
	return ok
}

// isInteger reports whether ty is Int or Uint of any width.
func isInteger(ty Type) bool {
	switch Deref(ty).(type) {
	case Int, Uint:
		return true
	}
	return false
}

// primitiveByteSize returns the packed byte size of a primitive for
// storage-slot packing, or 0 when the type always occupies whole
// slots.
func primitiveByteSize(ty Type) int {
	switch t := Deref(ty).(type) {
	case Bool:
		return 1
	case Int:
		return t.Width / 8
	case Uint:
		return t.Width / 8
	case Bytes:
		return t.N
	case Address:
		return 20
	case Enum:
		return 1
	}
	return 0
}

// implicitOK reports whether a value of type from may be implicitly
// converted to type to: identical types, widening among
// same-signedness integers, address payable to address (not the
// reverse), enums to nothing, bytesN to nothing. Signed/unsigned,
// bytes/integer and any narrowing conversions are never implicit.
func implicitOK(from, to Type) bool {
	from, to = Deref(from), Deref(to)
	if Equal(from, to) {
		return true
	}
	switch source := from.(type) {
	case Uint:
		if destination, ok := to.(Uint); ok {
			return destination.Width >= source.Width
		}
	case Int:
		if destination, ok := to.(Int); ok {
			return destination.Width >= source.Width
		}
	case Address:
		if destination, ok := to.(Address); ok {
			// address payable -> address is always fine; the
			// opposite direction needs an explicit cast
			return !destination.Payable
		}
	}
	return false
}

// explicitOK reports whether an explicit cast from one type to the
// other is in the cast matrix. Length changes and category changes
// must be separate casts: uint32 -> bytes8 is rejected, it has to be
// written bytes4(uint32) then widened, so the bit pattern the user
// gets is the one they spelled out.
func explicitOK(from, to Type) bool {
	from, to = Deref(from), Deref(to)
	if implicitOK(from, to) {
		return true
	}
	switch source := from.(type) {
	case Uint:
		switch destination := to.(type) {
		case Uint, Int:
			return true
		case Bytes:
			return destination.N*8 == source.Width
		case Address:
			return source.Width == 160
		case Enum:
			return true
		}
	case Int:
		switch to.(type) {
		case Uint, Int:
			return true
		}
	case Bytes:
		switch destination := to.(type) {
		case Bytes:
			return true
		case Uint:
			return destination.Width == source.N*8
		case Address:
			return source.N == 20
		}
	case Address:
		switch destination := to.(type) {
		case Address:
			return true
		case Uint:
			return destination.Width == 160
		case Bytes:
			return destination.N == 20
		case Contract:
			return true
		}
	case Enum:
		switch to.(type) {
		case Uint, Int:
			return true
		}
	case Contract:
		if _, ok := to.(Address); ok {
			return true
		}
	case String:
		if _, ok := to.(DynamicBytes); ok {
			return true
		}
	case DynamicBytes:
		if _, ok := to.(String); ok {
			return true
		}
	}
	return false
}

// validParameterType rejects types that may not cross a function
// boundary: mappings and storage references over the public ABI.
func validParameterType(ty Type, public bool) bool {
	switch t := ty.(type) {
	case Mapping:
		return false
	case Ref:
		if t.Loc == Storage && public {
			return false
		}
		return validParameterType(t.Inner, public)
	case Array:
		return validParameterType(t.Element, public)
	}
	return true
}
