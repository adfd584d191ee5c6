package reference

import (
	"fmt"
	"math"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/runtime/tensor"
)

// l2Epsilon bounds the squared norm away from zero in L2_NORMALIZATION.
const l2Epsilon = 1e-6

func runNormalization(op *graph.Operator, in, out []*backend.Buffer) error {
	x := Dequantize(in[0])
	if x.Rank() == 0 {
		return fmt.Errorf("%w: %s needs rank >= 1", graph.ErrInvalidShape, op.Kind)
	}

	var (
		res *tensor.Tensor
		err error
	)

	switch op.Kind {
	case graph.OpSoftmax:
		res, err = Softmax(x, op.Options.Beta)
	case graph.OpL2Normalization:
		res = lastAxis(x, func(row []float32) {
			var sum float64
			for _, v := range row {
				sum += float64(v) * float64(v)
			}

			inv := 1 / math.Sqrt(math.Max(sum, l2Epsilon))
			for i := range row {
				row[i] = float32(float64(row[i]) * inv)
			}
		})
	case graph.OpLocalResponseNorm:
		res = localResponseNorm(x, op.Options)
	default:
		return fmt.Errorf("%w: %s", backend.ErrNotSupported, op.Kind)
	}

	if err != nil {
		return err
	}

	Requantize(out[0], res.RawData())

	return nil
}

// Softmax computes softmax(beta * x) over the last axis. A zero beta means 1.
func Softmax(x *tensor.Tensor, beta float32) (*tensor.Tensor, error) {
	if beta != 0 && beta != 1 {
		x = x.Map(func(v float32) float32 { return v * beta })
	}

	return tensor.Softmax(x, -1)
}

// localResponseNorm normalizes each channel by the squared sum of its
// neighbours within Radius: x / (Bias + Alpha * sum)^Beta.
func localResponseNorm(x *tensor.Tensor, o graph.Options) *tensor.Tensor {
	r := int(o.Radius)

	return lastAxis(x, func(row []float32) {
		src := append([]float32(nil), row...)
		for c := range src {
			var sum float64
			for k := max(c-r, 0); k <= min(c+r, len(src)-1); k++ {
				sum += float64(src[k]) * float64(src[k])
			}

			row[c] = float32(float64(src[c]) / math.Pow(float64(o.Bias)+float64(o.Alpha)*sum, float64(o.Beta)))
		}
	})
}

// lastAxis applies fn in place to every row along the innermost dimension of a copy of x.
func lastAxis(x *tensor.Tensor, fn func(row []float32)) *tensor.Tensor {
	out := x.Clone()
	shape := out.Shape()
	d := int(shape[len(shape)-1])
	data := out.RawData()

	for start := 0; start+d <= len(data) && d > 0; start += d {
		fn(data[start : start+d])
	}

	return out
}
