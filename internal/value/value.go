// Package value defines the typed runtime values carried by staged leaves,
// environments and closure results.
package value

import (
	"fmt"
	"math"
)

// Kind identifies the static type of a leaf or a runtime Value.
type Kind uint8

const (
	// KindInvalid represents an invalid value.
	KindInvalid Kind = iota
	// KindBool represents a boolean value.
	KindBool
	// KindByte represents a signed 8-bit integer.
	KindByte
	// KindChar represents a 16-bit code unit.
	KindChar
	// KindShort represents a signed 16-bit integer.
	KindShort
	// KindInt represents a signed 32-bit integer.
	KindInt
	// KindLong represents a signed 64-bit integer.
	KindLong
	// KindFloat represents a 32-bit float.
	KindFloat
	// KindDouble represents a 64-bit float.
	KindDouble
	// KindObject represents an opaque host object.
	KindObject
)

// String returns a human-readable name for the value kind.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindByte:
		return "byte"
	case KindChar:
		return "char"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k := KindBool; k <= KindObject; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("invalid value kind: %q", s)
}

// IsIntegral reports whether the kind is an integer kind (char included).
func (k Kind) IsIntegral() bool {
	switch k {
	case KindByte, KindChar, KindShort, KindInt, KindLong:
		return true
	default:
		return false
	}
}

// IsFloating reports whether the kind is a floating point kind.
func (k Kind) IsFloating() bool {
	return k == KindFloat || k == KindDouble
}

// Value is a small tagged union. Scalars live in bits, objects in obj.
type Value struct {
	Kind Kind
	bits uint64
	obj  any
}

// Bool creates a boolean value.
func Bool(b bool) Value {
	var bits uint64
	if b {
		bits = 1
	}
	return Value{Kind: KindBool, bits: bits}
}

// Byte creates a byte value.
func Byte(v int8) Value { return Value{Kind: KindByte, bits: uint64(int64(v))} }

// Char creates a char value.
func Char(v uint16) Value { return Value{Kind: KindChar, bits: uint64(v)} }

// Short creates a short value.
func Short(v int16) Value { return Value{Kind: KindShort, bits: uint64(int64(v))} }

// Int creates an int value.
func Int(v int32) Value { return Value{Kind: KindInt, bits: uint64(int64(v))} }

// Long creates a long value.
func Long(v int64) Value { return Value{Kind: KindLong, bits: uint64(v)} }

// Float creates a float value.
func Float(v float32) Value { return Value{Kind: KindFloat, bits: uint64(math.Float32bits(v))} }

// Double creates a double value.
func Double(v float64) Value { return Value{Kind: KindDouble, bits: math.Float64bits(v)} }

// Object wraps an opaque host object.
func Object(v any) Value { return Value{Kind: KindObject, obj: v} }

// IsZero returns true if this is a zero/invalid value.
func (v Value) IsZero() bool {
	return v.Kind == KindInvalid
}

// AsBool returns the boolean payload.
func (v Value) AsBool() bool {
	return v.bits != 0
}

// AsLong widens any integral payload to int64.
func (v Value) AsLong() int64 {
	switch v.Kind {
	case KindChar:
		return int64(uint16(v.bits))
	case KindFloat:
		return int64(math.Float32frombits(uint32(v.bits)))
	case KindDouble:
		return int64(math.Float64frombits(v.bits))
	default:
		return int64(v.bits)
	}
}

// AsDouble widens any numeric payload to float64.
func (v Value) AsDouble() float64 {
	switch v.Kind {
	case KindFloat:
		return float64(math.Float32frombits(uint32(v.bits)))
	case KindDouble:
		return math.Float64frombits(v.bits)
	default:
		return float64(v.AsLong())
	}
}

// AsObject returns the object payload, nil for scalars.
func (v Value) AsObject() any {
	return v.obj
}

// Equal compares kinds and payloads. Objects compare with ==, so
// non-comparable objects (slices, maps, funcs) are never equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind != KindObject {
		return v.bits == o.bits
	}
	return objectsEqual(v.obj, o.obj)
}

func objectsEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// String renders the value for diagnostics and CLI output.
func (v Value) String() string {
	switch v.Kind {
	case KindInvalid:
		return "<invalid>"
	case KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindChar:
		return fmt.Sprintf("%q", rune(uint16(v.bits)))
	case KindFloat, KindDouble:
		return fmt.Sprintf("%g", v.AsDouble())
	case KindObject:
		if vs, ok := v.obj.([]Value); ok {
			return FormatList(vs)
		}
		return fmt.Sprintf("%v", v.obj)
	default:
		return fmt.Sprintf("%d", v.AsLong())
	}
}

// FormatList renders a list of values as "[a, b, c]".
func FormatList(vs []Value) string {
	out := "["
	for i, v := range vs {
		if i > 0 {
			out += ", "
		}
		out += v.String()
	}
	return out + "]"
}

// Longs builds a list of long values.
func Longs(xs ...int64) []Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[i] = Long(x)
	}
	return out
}
