package abi

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"solang/sema"
)

// The SCALE codec: tight little-endian fixed-width fields, compact
// length prefixes for sequences, enums tagged by a single-byte index.

// ScaleEncode encodes values of the given types into one tight
// buffer.
func ScaleEncode(ns *sema.Namespace, types []sema.Type, values []any) ([]byte, error) {
	if len(types) != len(values) {
		return nil, fmt.Errorf("abi: %d types but %d values", len(types), len(values))
	}
	var out []byte
	for i, ty := range types {
		encoded, err := scaleEncodeOne(ns, ty, values[i])
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}
	return out, nil
}

// ScaleDecode decodes a tight buffer back into Go values.
func ScaleDecode(ns *sema.Namespace, types []sema.Type, data []byte) ([]any, error) {
	values := make([]any, len(types))
	offset := 0
	for i, ty := range types {
		value, consumed, err := scaleDecodeOne(ns, ty, data[offset:])
		if err != nil {
			return nil, err
		}
		values[i] = value
		offset += consumed
	}
	return values, nil
}

// CompactEncode is the SCALE compact length prefix for values below
// 2^30.
func CompactEncode(length uint64) []byte {
	switch {
	case length < 1<<6:
		return []byte{byte(length << 2)}
	case length < 1<<14:
		var out [2]byte
		binary.LittleEndian.PutUint16(out[:], uint16(length<<2)|0b01)
		return out[:]
	default:
		var out [4]byte
		binary.LittleEndian.PutUint32(out[:], uint32(length<<2)|0b10)
		return out[:]
	}
}

// CompactDecode reads a compact length prefix, returning the value
// and the number of bytes consumed.
func CompactDecode(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("abi: truncated compact length")
	}
	switch data[0] & 0b11 {
	case 0b00:
		return uint64(data[0] >> 2), 1, nil
	case 0b01:
		if len(data) < 2 {
			return 0, 0, fmt.Errorf("abi: truncated compact length")
		}
		return uint64(binary.LittleEndian.Uint16(data) >> 2), 2, nil
	case 0b10:
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("abi: truncated compact length")
		}
		return uint64(binary.LittleEndian.Uint32(data) >> 2), 4, nil
	}
	return 0, 0, fmt.Errorf("abi: big-integer compact lengths are not produced by this compiler")
}

// scaleIntBytes writes an integer little-endian at its exact width.
func scaleIntBytes(value *big.Int, width int) []byte {
	size := width / 8
	out := make([]byte, size)
	adjusted := value
	if value.Sign() < 0 {
		adjusted = new(big.Int).Add(value, new(big.Int).Lsh(big.NewInt(1), uint(width)))
	}
	raw := adjusted.Bytes() // big-endian
	for i := 0; i < len(raw) && i < size; i++ {
		out[i] = raw[len(raw)-1-i]
	}
	return out
}

func scaleReadInt(data []byte, width int, signed bool) (*big.Int, error) {
	size := width / 8
	if len(data) < size {
		return nil, fmt.Errorf("abi: truncated integer")
	}
	raw := make([]byte, size)
	for i := 0; i < size; i++ {
		raw[i] = data[size-1-i]
	}
	value := new(big.Int).SetBytes(raw)
	if signed && size > 0 && raw[0]&0x80 != 0 {
		value.Sub(value, new(big.Int).Lsh(big.NewInt(1), uint(width)))
	}
	return value, nil
}

func scaleEncodeOne(ns *sema.Namespace, ty sema.Type, value any) ([]byte, error) {
	switch t := sema.Deref(ty).(type) {
	case sema.Bool:
		boolean, _ := value.(bool)
		if boolean {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case sema.Uint:
		integer, _ := value.(*big.Int)
		return scaleIntBytes(integer, t.Width), nil
	case sema.Int:
		integer, _ := value.(*big.Int)
		return scaleIntBytes(integer, t.Width), nil
	case sema.Enum:
		integer, _ := value.(*big.Int)
		return []byte{byte(integer.Uint64())}, nil
	case sema.Bytes:
		raw, _ := value.([]byte)
		out := make([]byte, t.N)
		copy(out, raw)
		return out, nil
	case sema.Address:
		raw, _ := value.([]byte)
		out := make([]byte, 32)
		copy(out, raw)
		return out, nil
	case sema.String:
		text, _ := value.(string)
		return append(CompactEncode(uint64(len(text))), text...), nil
	case sema.DynamicBytes:
		raw, _ := value.([]byte)
		return append(CompactEncode(uint64(len(raw))), raw...), nil
	case sema.Array:
		elements, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("abi: expected array elements")
		}
		var out []byte
		if t.Length == nil {
			out = CompactEncode(uint64(len(elements)))
		} else if uint64(len(elements)) != *t.Length {
			return nil, fmt.Errorf("abi: fixed array length mismatch")
		}
		for _, element := range elements {
			encoded, err := scaleEncodeOne(ns, t.Element, element)
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
			encoded, err := scaleEncodeOne(ns, field.Type, elements[i])
			if err != nil {
				return nil, err
			}
			out = append(out, encoded...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("abi: type cannot cross the ABI boundary")
}

func scaleDecodeOne(ns *sema.Namespace, ty sema.Type, data []byte) (any, int, error) {
	switch t := sema.Deref(ty).(type) {
	case sema.Bool:
		if len(data) < 1 {
			return nil, 0, fmt.Errorf("abi: truncated bool")
		}
		return data[0] != 0, 1, nil
	case sema.Uint:
		value, err := scaleReadInt(data, t.Width, false)
		return value, t.Width / 8, err
	case sema.Int:
		value, err := scaleReadInt(data, t.Width, true)
		return value, t.Width / 8, err
	case sema.Enum:
		if len(data) < 1 {
			return nil, 0, fmt.Errorf("abi: truncated enum tag")
		}
		return new(big.Int).SetUint64(uint64(data[0])), 1, nil
	case sema.Bytes:
		if len(data) < t.N {
			return nil, 0, fmt.Errorf("abi: truncated bytes%d", t.N)
		}
		out := make([]byte, t.N)
		copy(out, data)
		return out, t.N, nil
	case sema.Address:
		if len(data) < 32 {
			return nil, 0, fmt.Errorf("abi: truncated address")
		}
		out := make([]byte, 32)
		copy(out, data)
		return out, 32, nil
	case sema.String:
		length, prefix, err := CompactDecode(data)
		if err != nil {
			return nil, 0, err
		}
		if uint64(len(data)-prefix) < length {
			return nil, 0, fmt.Errorf("abi: truncated string")
		}
		return string(data[prefix : prefix+int(length)]), prefix + int(length), nil
	case sema.DynamicBytes:
		length, prefix, err := CompactDecode(data)
		if err != nil {
			return nil, 0, err
		}
		if uint64(len(data)-prefix) < length {
			return nil, 0, fmt.Errorf("abi: truncated bytes")
		}
		out := make([]byte, length)
		copy(out, data[prefix:])
		return out, prefix + int(length), nil
	case sema.Array:
		count := uint64(0)
		consumed := 0
		if t.Length == nil {
			length, prefix, err := CompactDecode(data)
			if err != nil {
				return nil, 0, err
			}
			count, consumed = length, prefix
		} else {
			count = *t.Length
		}
		elements := make([]any, count)
		for i := range elements {
			value, used, err := scaleDecodeOne(ns, t.Element, data[consumed:])
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
			value, used, err := scaleDecodeOne(ns, field.Type, data[consumed:])
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
