package reference

import (
	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/runtime/tensor"
)

// Dequantize converts a buffer into a float32 tensor of real values.
func Dequantize(b *backend.Buffer) *tensor.Tensor {
	vals := make([]float32, b.Len())
	for i := range vals {
		v := dtype.ElementFloat64(b.Type, b.Data, i)
		if b.Type.IsInteger() {
			v = b.Quant.Dequantize(v)
		}

		vals[i] = float32(v)
	}

	t, _ := tensor.New(vals, shape64(b.Shape))

	return t
}

// Requantize stores real values into out, quantizing integer types.
func Requantize(out *backend.Buffer, vals []float32) {
	for i, v := range vals {
		x := float64(v)
		if out.Type.IsInteger() {
			x = out.Quant.Quantize(x)
		}

		dtype.SetElementFloat64(out.Type, out.Data, i, x)
	}
}

func shape64(s []int32) []int64 {
	out := make([]int64, len(s))
	for i, d := range s {
		out[i] = int64(d)
	}

	return out
}

// sameEncoding reports whether raw values of a and b mean the same reals.
func sameEncoding(a, b *backend.Buffer) bool {
	if a.Type != b.Type {
		return false
	}

	return !a.Type.IsInteger() || a.Quant == b.Quant
}

// zeroElement encodes real zero in the element type and quantization of b.
func zeroElement(b *backend.Buffer) []byte {
	raw := make([]byte, b.Type.Size())
	if b.Type.IsInteger() {
		dtype.SetElementFloat64(b.Type, raw, 0, b.Quant.Quantize(0))
	}

	return raw
}
