package cpuacc

import (
	"context"
	"fmt"
	"math"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/runtime/tensor"
)

// runReshape copies the payload unchanged when encodings match and
// requantizes otherwise.
func runReshape(_ *graph.Operator, in, out []*backend.Buffer) error {
	src, dst := in[0], out[0]
	if src.Len() != dst.Len() {
		return fmt.Errorf("%w: RESHAPE %v (%d elements) -> %v (%d elements)", graph.ErrInvalidShape, src.Shape, src.Len(), dst.Shape, dst.Len())
	}

	if sameEncoding(src, dst) {
		copy(dst.Data, src.Data)
		return nil
	}

	writeFloat32Range(dst, readFloat32(src), 0, dst.Len())

	return nil
}

// runConcat joins the primary inputs along Options.Axis.
func runConcat(op *graph.Operator, in, out []*backend.Buffer) error {
	dst := out[0]

	axis, ok := graph.NormalizeAxis(op.Options.Axis, len(dst.Shape))
	if !ok {
		return fmt.Errorf("%w: CONCATENATION axis %d for rank %d", graph.ErrInvalidShape, op.Options.Axis, len(dst.Shape))
	}

	shapes := make([][]int64, len(in))
	for i, b := range in {
		shapes[i] = shape64(b.Shape)
	}

	plan, err := tensor.ConcatPlan(shapes, axis)
	if err != nil {
		return fmt.Errorf("%w: %v", graph.ErrInvalidShape, err)
	}

	exact := true
	for _, b := range in {
		exact = exact && sameEncoding(b, dst)
	}

	if exact {
		var joined []byte
		for _, b := range in {
			joined = append(joined, b.Data...)
		}

		copy(dst.Data, plan.ApplyBytes(joined, dst.Type.Size(), make([]byte, dst.Type.Size())))

		return nil
	}

	var joined []float32
	for _, b := range in {
		joined = append(joined, readFloat32(b)...)
	}

	vals := plan.Apply(joined, 0)
	writeFloat32Range(dst, vals, 0, len(vals))

	return nil
}

// runSoftmax normalizes the last axis, one row per task.
func runSoftmax(ctx context.Context, op *graph.Operator, in, out []*backend.Buffer) error {
	src, dst := in[0], out[0]
	if src.Len() != dst.Len() || len(src.Shape) == 0 {
		return fmt.Errorf("%w: SOFTMAX %v -> %v", graph.ErrInvalidShape, src.Shape, dst.Shape)
	}

	beta := float64(op.Options.Beta)
	if beta == 0 {
		beta = 1
	}

	depth := int(src.Shape[len(src.Shape)-1])
	if depth == 0 {
		return nil
	}

	x := readFloat32(src)
	rows := len(x) / depth

	return chunked(ctx, rows, func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			row := x[r*depth : (r+1)*depth]

			peak := math.Inf(-1)
			for _, v := range row {
				peak = math.Max(peak, float64(v))
			}

			var sum float64
			for i, v := range row {
				e := math.Exp((float64(v) - peak) * beta)
				row[i] = float32(e)
				sum += e
			}

			for i := range row {
				row[i] = float32(float64(row[i]) / sum)
			}
		}

		writeFloat32Range(dst, x, lo*depth, hi*depth)

		return nil
	})
}

func sameEncoding(a, b *backend.Buffer) bool {
	if a.Type != b.Type {
		return false
	}

	return !a.Type.IsInteger() || a.Quant == b.Quant
}

func shape64(s []int32) []int64 {
	out := make([]int64, len(s))
	for i, d := range s {
		out[i] = int64(d)
	}

	return out
}
