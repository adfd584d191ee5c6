// Package dtype defines the closed set of tensor element types understood by
// the graph builder, the execution backends and the comparator, together with
// the little-endian raw codecs used for tensor payloads.
package dtype

import (
	"fmt"
	"strings"
)

// ElementType identifies the storage type of one tensor element.
type ElementType uint8

const (
	Float32 ElementType = iota
	Float16
	Int8
	UInt8
	Int16
	Int32
	Bool
)

// All lists every element type in declaration order.
var All = []ElementType{Float32, Float16, Int8, UInt8, Int16, Int32, Bool}

// Size returns the byte size of one element.
func (t ElementType) Size() int {
	switch t {
	case Float32, Int32:
		return 4
	case Float16, Int16:
		return 2
	case Int8, UInt8, Bool:
		return 1
	default:
		return 0
	}
}

func (t ElementType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Int8:
		return "int8"
	case UInt8:
		return "uint8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(t))
	}
}

// Valid reports whether t is a member of the closed enumeration.
func (t ElementType) Valid() bool {
	return t <= Bool
}

// IsFloat reports whether t is a floating point type.
func (t ElementType) IsFloat() bool {
	return t == Float32 || t == Float16
}

// IsInteger reports whether t is a (possibly quantized) integer type.
func (t ElementType) IsInteger() bool {
	switch t {
	case Int8, UInt8, Int16, Int32:
		return true
	default:
		return false
	}
}

// Range returns the representable integer range of t. Float and bool types
// return (0, 0).
func (t ElementType) Range() (lo, hi int64) {
	switch t {
	case Int8:
		return -128, 127
	case UInt8:
		return 0, 255
	case Int16:
		return -32768, 32767
	case Int32:
		return -2147483648, 2147483647
	default:
		return 0, 0
	}
}

// Parse converts a type name such as "uint8" or "float" into an ElementType.
func Parse(raw string) (ElementType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "float32", "float", "f32":
		return Float32, nil
	case "float16", "half", "f16":
		return Float16, nil
	case "int8", "i8":
		return Int8, nil
	case "uint8", "u8":
		return UInt8, nil
	case "int16", "i16":
		return Int16, nil
	case "int32", "i32":
		return Int32, nil
	case "bool", "boolean":
		return Bool, nil
	default:
		return 0, fmt.Errorf("dtype: unknown element type %q", raw)
	}
}
