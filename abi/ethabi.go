// Package abi implements the two ABI encodings the compiler targets:
// the Ethereum-style head-tail scheme with 32-byte word padding, and
// the SCALE codec used by the substrate-style target. The code
// generator specializes these rules into per-signature encoders; this
// package is a standalone reference implementation of both codecs,
// exercised by its own round-trip tests.
package abi

import (
	"fmt"
	"math/big"

	"solang/sema"
)

const wordBytes = 32

// EthEncode encodes values of the given types with the head-tail
// scheme: every static field is one padded 32-byte word in the head;
// dynamic fields put an offset word in the head and their data in the
// tail.
func EthEncode(ns *sema.Namespace, types []sema.Type, values []any) ([]byte, error) {
	if len(types) != len(values) {
		return nil, fmt.Errorf("abi: %d types but %d values", len(types), len(values))
	}
	head := make([]byte, 0, len(types)*wordBytes)
	var tail []byte
	headSize := 0
	for _, ty := range types {
		headSize += wordBytes * ethHeadWords(ns, ty)
	}
	for i, ty := range types {
		if ethIsDynamic(ty) {
			offset := headSize + len(tail)
			head = append(head, ethWordInt(big.NewInt(int64(offset)))...)
			encoded, err := ethEncodeDynamic(ns, ty, values[i])
			if err != nil {
				return nil, err
			}
			tail = append(tail, encoded...)
			continue
		}
		encoded, err := ethEncodeStatic(ns, ty, values[i])
		if err != nil {
			return nil, err
		}
		head = append(head, encoded...)
	}
	return append(head, tail...), nil
}

// EthDecode decodes a head-tail buffer back into Go values.
func EthDecode(ns *sema.Namespace, types []sema.Type, data []byte) ([]any, error) {
	values := make([]any, len(types))
	offset := 0
	for i, ty := range types {
		if ethIsDynamic(ty) {
			if offset+wordBytes > len(data) {
				return nil, fmt.Errorf("abi: truncated head")
			}
			at := new(big.Int).SetBytes(data[offset : offset+wordBytes])
			if !at.IsUint64() || at.Uint64() > uint64(len(data)) {
				return nil, fmt.Errorf("abi: offset out of range")
			}
			value, _, err := ethDecodeDynamic(ns, ty, data, int(at.Uint64()))
			if err != nil {
				return nil, err
			}
			values[i] = value
			offset += wordBytes
			continue
		}
		value, consumed, err := ethDecodeStatic(ns, ty, data, offset)
		if err != nil {
			return nil, err
		}
		values[i] = value
		offset += consumed
	}
	return values, nil
}

func ethIsDynamic(ty sema.Type) bool {
	switch t := sema.Deref(ty).(type) {
	case sema.String, sema.DynamicBytes:
		return true
	case sema.Array:
		return t.Length == nil || ethIsDynamic(t.Element)
	}
	return false
}

func ethHeadWords(ns *sema.Namespace, ty sema.Type) int {
	if ethIsDynamic(ty) {
		return 1
	}
	switch t := sema.Deref(ty).(type) {
	case sema.Array:
		return int(*t.Length) * ethHeadWords(ns, t.Element)
	case sema.StructType:
		words := 0
		for _, field := range ns.Structs[t.ID].Fields {
			words += ethHeadWords(ns, field.Type)
		}
		return words
	}
	return 1
}

func ethWordInt(value *big.Int) []byte {
	word := make([]byte, wordBytes)
	adjusted := value
	if value.Sign() < 0 {
		// two's complement over the full word
		adjusted = new(big.Int).Add(value, new(big.Int).Lsh(big.NewInt(1), wordBytes*8))
	}
	adjusted.FillBytes(word)
	return word
}

func ethEncodeStatic(ns *sema.Namespace, ty sema.Type, value any) ([]byte, error) {
	switch t := sema.Deref(ty).(type) {
	case sema.Bool:
		boolean, _ := value.(bool)
		word := make([]byte, wordBytes)
		if boolean {
			word[wordBytes-1] = 1
		}
		return word, nil
	case sema.Int, sema.Uint, sema.Enum:
		integer, ok := value.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("abi: expected integer, got %T", value)
		}
		return ethWordInt(integer), nil
	case sema.Address:
		raw, _ := value.([]byte)
		word := make([]byte, wordBytes)
		copy(word[wordBytes-len(raw):], raw)
		return word, nil
	case sema.Bytes:
		raw, _ := value.([]byte)
		word := make([]byte, wordBytes)
		copy(word, raw) // fixed bytes are left-aligned
		return word, nil
	case sema.Array:
		elements, ok := value.([]any)
		if !ok || uint64(len(elements)) != *t.Length {
			return nil, fmt.Errorf("abi: fixed array length mismatch")
		}
		var out []byte
		for _, element := range elements {
			encoded, err := ethEncodeStatic(ns, t.Element, element)
			if err != nil {
				return nil, err
			}
			out = append(out, encoded...)
		}
		return out, nil
	case sema.StructType:
		elements, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("abi: expected struct fields")
		}
		var out []byte
		for i, field := range ns.Structs[t.ID].Fields {
			encoded, err := ethEncodeStatic(ns, field.Type, elements[i])
			if err != nil {
				return nil, err
			}
			out = append(out, encoded...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("abi: type cannot cross the ABI boundary")
}

func ethEncodeDynamic(ns *sema.Namespace, ty sema.Type, value any) ([]byte, error) {
	switch t := sema.Deref(ty).(type) {
	case sema.String:
		text, _ := value.(string)
		return ethLengthPrefixed([]byte(text)), nil
	case sema.DynamicBytes:
		raw, _ := value.([]byte)
		return ethLengthPrefixed(raw), nil
	case sema.Array:
		elements, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("abi: expected array elements")
		}
		out := ethWordInt(big.NewInt(int64(len(elements))))
		for _, element := range elements {
			encoded, err := ethEncodeStatic(ns, t.Element, element)
			if err != nil {
				return nil, err
			}
			out = append(out, encoded...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("abi: type is not dynamic")
}

func ethLengthPrefixed(data []byte) []byte {
	out := ethWordInt(big.NewInt(int64(len(data))))
	out = append(out, data...)
	if padding := len(data) % wordBytes; padding != 0 {
		out = append(out, make([]byte, wordBytes-padding)...)
	}
	return out
}

func ethDecodeStatic(ns *sema.Namespace, ty sema.Type, data []byte, offset int) (any, int, error) {
	if offset+wordBytes > len(data) {
		return nil, 0, fmt.Errorf("abi: truncated word")
	}
	word := data[offset : offset+wordBytes]
	switch t := sema.Deref(ty).(type) {
	case sema.Bool:
		return word[wordBytes-1] != 0, wordBytes, nil
	case sema.Uint, sema.Enum:
		return new(big.Int).SetBytes(word), wordBytes, nil
	case sema.Int:
		value := new(big.Int).SetBytes(word)
		if word[0]&0x80 != 0 {
			value.Sub(value, new(big.Int).Lsh(big.NewInt(1), wordBytes*8))
		}
		return value, wordBytes, nil
	case sema.Address:
		out := make([]byte, 20)
		copy(out, word[wordBytes-20:])
		return out, wordBytes, nil
	case sema.Bytes:
		out := make([]byte, t.N)
		copy(out, word[:t.N])
		return out, wordBytes, nil
	case sema.Array:
		elements := make([]any, *t.Length)
		consumed := 0
		for i := range elements {
			value, used, err := ethDecodeStatic(ns, t.Element, data, offset+consumed)
			if err != nil {
				return nil, 0, err
			}
			elements[i] = value
			consumed += used
		}
		return elements, consumed, nil
	case sema.StructType:
		fields := ns.Structs[t.ID].Fields
		elements := make([]any, len(fields))
		consumed := 0
		for i, field := range fields {
			value, used, err := ethDecodeStatic(ns, field.Type, data, offset+consumed)
			if err != nil {
				return nil, 0, err
			}
			elements[i] = value
			consumed += used
		}
		return elements, consumed, nil
	}
	return nil, 0, fmt.Errorf("abi: type cannot cross the ABI boundary")
}

func ethDecodeDynamic(ns *sema.Namespace, ty sema.Type, data []byte, offset int) (any, int, error) {
	if offset+wordBytes > len(data) {
		return nil, 0, fmt.Errorf("abi: truncated length")
	}
	length := new(big.Int).SetBytes(data[offset : offset+wordBytes])
	if !length.IsUint64() {
		return nil, 0, fmt.Errorf("abi: length out of range")
	}
	count := int(length.Uint64())
	switch t := sema.Deref(ty).(type) {
	case sema.String:
		if offset+wordBytes+count > len(data) {
			return nil, 0, fmt.Errorf("abi: truncated string")
		}
		return string(data[offset+wordBytes : offset+wordBytes+count]), 0, nil
	case sema.DynamicBytes:
		if offset+wordBytes+count > len(data) {
			return nil, 0, fmt.Errorf("abi: truncated bytes")
		}
		out := make([]byte, count)
		copy(out, data[offset+wordBytes:])
		return out, 0, nil
	case sema.Array:
		elements := make([]any, count)
		consumed := wordBytes
		for i := range elements {
			value, used, err := ethDecodeStatic(ns, t.Element, data, offset+consumed)
			if err != nil {
				return nil, 0, err
			}
			elements[i] = value
			consumed += used
		}
		return elements, 0, nil
	}
	return nil, 0, fmt.Errorf("abi: type is not dynamic")
}
