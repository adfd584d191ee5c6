package dtype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Native is the set of Go types that map one-to-one onto an ElementType.
type Native interface {
	float32 | float16.Float16 | int8 | uint8 | int16 | int32 | bool
}

// TypeOf returns the ElementType that stores values of type T.
func TypeOf[T Native]() ElementType {
	var zero T
	switch any(zero).(type) {
	case float16.Float16:
		return Float16
	case int8:
		return Int8
	case uint8:
		return UInt8
	case int16:
		return Int16
	case int32:
		return Int32
	case bool:
		return Bool
	default:
		return Float32
	}
}

// Encode packs values into a little-endian byte payload.
func Encode[T Native](values []T) []byte {
	et := TypeOf[T]()
	out := make([]byte, len(values)*et.Size())

	for i, v := range values {
		putElement(out, i, any(v))
	}

	return out
}

// Decode unpacks a little-endian payload into values of type T. The payload
// length must be a multiple of the element size.
func Decode[T Native](raw []byte) ([]T, error) {
	et := TypeOf[T]()
	if len(raw)%et.Size() != 0 {
		return nil, fmt.Errorf("dtype: %d bytes is not a multiple of %s size %d", len(raw), et, et.Size())
	}

	n := len(raw) / et.Size()
	out := make([]T, n)

	for i := range out {
		v, ok := getElement(raw, et, i).(T)
		if !ok {
			return nil, fmt.Errorf("dtype: cannot decode %s into %T", et, out[i])
		}

		out[i] = v
	}

	return out, nil
}

// ToFloat32 converts a raw payload of type et into float32 values without
// applying any quantization parameters. Bool elements map to 0 or 1.
func ToFloat32(et ElementType, raw []byte) []float32 {
	n := len(raw) / max(et.Size(), 1)
	out := make([]float32, n)

	for i := range out {
		out[i] = float32(ElementFloat64(et, raw, i))
	}

	return out
}

// FromFloat32 converts float32 values into a payload of type et. Integer
// targets round half away from zero and saturate; bool targets store 1 for
// any non-zero value.
func FromFloat32(et ElementType, values []float32) []byte {
	out := make([]byte, len(values)*et.Size())

	for i, v := range values {
		SetElementFloat64(et, out, i, float64(v))
	}

	return out
}

// ElementFloat64 reads element i of raw as a float64.
func ElementFloat64(et ElementType, raw []byte, i int) float64 {
	switch et {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
	case Float16:
		return float64(float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32())
	case Int8:
		return float64(int8(raw[i]))
	case UInt8:
		return float64(raw[i])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(raw[i*4:])))
	case Bool:
		if raw[i] != 0 {
			return 1
		}

		return 0
	default:
		return 0
	}
}

// SetElementFloat64 writes v into element i of raw, converting to et.
func SetElementFloat64(et ElementType, raw []byte, i int, v float64) {
	switch et {
	case Float32:
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(float32(v)))
	case Float16:
		binary.LittleEndian.PutUint16(raw[i*2:], float16.Fromfloat32(float32(v)).Bits())
	case Int8, UInt8, Int16, Int32:
		SetElementInt64(et, raw, i, Saturate(et, RoundHalfAway(v)))
	case Bool:
		if v != 0 {
			raw[i] = 1
		} else {
			raw[i] = 0
		}
	}
}

// ElementInt64 reads element i of an integer or bool payload.
func ElementInt64(et ElementType, raw []byte, i int) int64 {
	switch et {
	case Int8:
		return int64(int8(raw[i]))
	case UInt8, Bool:
		return int64(raw[i])
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(raw[i*4:])))
	case Float16:
		return int64(binary.LittleEndian.Uint16(raw[i*2:]))
	default:
		return int64(ElementFloat64(et, raw, i))
	}
}

// SetElementInt64 stores an already range-checked integer into element i.
func SetElementInt64(et ElementType, raw []byte, i int, v int64) {
	switch et {
	case Int8, UInt8, Bool:
		raw[i] = byte(v)
	case Int16:
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(v)))
	case Int32:
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(int32(v)))
	case Float16:
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(v))
	case Float32:
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(float32(v)))
	}
}

// RoundHalfAway rounds to the nearest integer, ties away from zero.
func RoundHalfAway(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}

	if v >= math.MaxInt64 {
		return math.MaxInt64
	}

	if v <= math.MinInt64 {
		return math.MinInt64
	}

	return int64(math.Round(v))
}

// Saturate clamps v into the representable range of an integer type.
func Saturate(et ElementType, v int64) int64 {
	lo, hi := et.Range()
	if lo == 0 && hi == 0 {
		return v
	}

	return min(max(v, lo), hi)
}

func putElement(out []byte, i int, v any) {
	switch x := v.(type) {
	case float16.Float16:
		binary.LittleEndian.PutUint16(out[i*2:], x.Bits())
	case float32:
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(x))
	case int8:
		out[i] = byte(x)
	case uint8:
		out[i] = x
	case int16:
		binary.LittleEndian.PutUint16(out[i*2:], uint16(x))
	case int32:
		binary.LittleEndian.PutUint32(out[i*4:], uint32(x))
	case bool:
		if x {
			out[i] = 1
		}
	}
}

func getElement(raw []byte, et ElementType, i int) any {
	switch et {
	case Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	case Float16:
		return float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:]))
	case Int8:
		return int8(raw[i])
	case UInt8:
		return raw[i]
	case Int16:
		return int16(binary.LittleEndian.Uint16(raw[i*2:]))
	case Int32:
		return int32(binary.LittleEndian.Uint32(raw[i*4:]))
	case Bool:
		return raw[i] != 0
	default:
		return nil
	}
}
