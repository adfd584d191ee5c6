package cpuacc

import (
	"math"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

// QuantizeMultiplier expresses a positive real multiplier as a Q31 fixed
// point value m and a power-of-two exponent such that
// real ≈ m * 2^(shift-31).
func QuantizeMultiplier(real float64) (m int32, shift int) {
	if real <= 0 || math.IsNaN(real) || math.IsInf(real, 0) {
		return 0, 0
	}

	q, exp := math.Frexp(real)
	fixed := int64(math.Round(q * (1 << 31)))

	if fixed == 1<<31 {
		fixed /= 2
		exp++
	}

	if exp < -31 {
		return 0, 0
	}

	return int32(fixed), exp
}

// SaturatingRoundingDoublingHighMul returns the high 32 bits of 2*a*b,
// rounded to nearest. The single overflowing case saturates.
func SaturatingRoundingDoublingHighMul(a, b int32) int32 {
	if a == math.MinInt32 && b == math.MinInt32 {
		return math.MaxInt32
	}

	ab := int64(a) * int64(b)

	nudge := int64(1 << 30)
	if ab < 0 {
		nudge = 1 - (1 << 30)
	}

	return int32((ab + nudge) / (1 << 31))
}

// RoundingDivideByPOT divides x by 2^exponent, rounding half away from zero.
func RoundingDivideByPOT(x int32, exponent int) int32 {
	if exponent <= 0 {
		return x
	}

	mask := int32(1)<<exponent - 1
	remainder := x & mask

	threshold := mask >> 1
	if x < 0 {
		threshold++
	}

	out := x >> exponent
	if remainder > threshold {
		out++
	}

	return out
}

// MultiplyByQuantizedMultiplier scales an int32 accumulator by the real
// multiplier encoded as (m, shift).
func MultiplyByQuantizedMultiplier(x, m int32, shift int) int32 {
	left := max(shift, 0)
	right := max(-shift, 0)

	v := int64(x) << left
	v = min(max(v, math.MinInt32), math.MaxInt32)

	return RoundingDivideByPOT(SaturatingRoundingDoublingHighMul(int32(v), m), right)
}

// requant carries everything needed to turn an int32 accumulator at scale
// in*filter into a raw output value.
type requant struct {
	m      int32
	shift  int
	zp     int32
	lo, hi int32
}

func newRequant(inScale, filterScale float32, out *backend.Buffer, act graph.Activation) requant {
	m, shift := QuantizeMultiplier(float64(inScale) * float64(filterScale) / float64(out.Quant.Scale))
	lo, hi := activationRange(out, act)

	return requant{m: m, shift: shift, zp: out.Quant.ZeroPoint, lo: lo, hi: hi}
}

func (r requant) apply(acc int32) int32 {
	v := int64(MultiplyByQuantizedMultiplier(acc, r.m, r.shift)) + int64(r.zp)
	return int32(min(max(v, int64(r.lo)), int64(r.hi)))
}

// activationRange returns the raw output range after a fused activation,
// intersected with the representable range of the output type.
func activationRange(out *backend.Buffer, act graph.Activation) (int32, int32) {
	lo64, hi64 := out.Type.Range()
	lo, hi := int32(lo64), int32(hi64)

	q := func(real float64) int32 {
		return int32(dtype.Saturate(out.Type, dtype.RoundHalfAway(out.Quant.Quantize(real))))
	}

	switch act {
	case graph.ActRelu:
		lo = max(lo, q(0))
	case graph.ActRelu6:
		lo = max(lo, q(0))
		hi = min(hi, q(6))
	case graph.ActReluN1To1:
		lo = max(lo, q(-1))
		hi = min(hi, q(1))
	}

	return lo, hi
}

// readInt32 returns the raw integer values of an integer buffer.
func readInt32(b *backend.Buffer) []int32 {
	out := make([]int32, b.Len())
	for i := range out {
		out[i] = int32(dtype.ElementInt64(b.Type, b.Data, i))
	}

	return out
}

// writeInt32 stores already clamped raw values into an integer buffer.
func writeInt32(b *backend.Buffer, vals []int32) {
	for i, v := range vals {
		dtype.SetElementInt64(b.Type, b.Data, i, int64(v))
	}
}

// readFloat32 returns the real values of any non-bool buffer.
func readFloat32(b *backend.Buffer) []float32 {
	out := make([]float32, b.Len())
	readFloat32Range(b, out, 0, len(out))

	return out
}

func readFloat32Range(b *backend.Buffer, dst []float32, lo, hi int) {
	for i := lo; i < hi; i++ {
		v := dtype.ElementFloat64(b.Type, b.Data, i)
		if b.Type.IsInteger() {
			v = b.Quant.Dequantize(v)
		}

		dst[i] = float32(v)
	}
}

// writeFloat32Range quantizes real values [lo, hi) into out.
func writeFloat32Range(out *backend.Buffer, vals []float32, lo, hi int) {
	for i := lo; i < hi; i++ {
		x := float64(vals[i])
		if out.Type.IsInteger() {
			x = out.Quant.Quantize(x)
		}

		dtype.SetElementFloat64(out.Type, out.Data, i, x)
	}
}

// accumulatorBias converts an optional bias operand into int32 values at
// the accumulator scale in*filter.
func accumulatorBias(in []*backend.Buffer, n int, accScale float32) ([]int32, bool) {
	out := make([]int32, n)
	if len(in) < 3 || in[2] == nil {
		return out, true
	}

	b := in[2]
	if b.Len() != n {
		return nil, false
	}

	if b.Type == dtype.Int32 && b.Quant.ZeroPoint == 0 && b.Quant.Scale == accScale {
		return readInt32(b), true
	}

	for i, v := range readFloat32(b) {
		out[i] = int32(dtype.Saturate(dtype.Int32, dtype.RoundHalfAway(float64(v)/float64(accScale))))
	}

	return out, true
}
