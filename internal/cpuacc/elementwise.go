package cpuacc

import (
	"context"
	"fmt"
	"math"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/graph"
)

func unaryFunc(op *graph.Operator) (func(float32) float32, bool) {
	wrap := func(fn func(float64) float64) func(float32) float32 {
		return func(x float32) float32 { return float32(fn(float64(x))) }
	}

	switch op.Kind {
	case graph.OpAbs:
		return wrap(math.Abs), true
	case graph.OpNeg:
		return func(x float32) float32 { return -x }, true
	case graph.OpSqrt:
		return wrap(math.Sqrt), true
	case graph.OpRsqrt:
		return wrap(func(x float64) float64 { return 1 / math.Sqrt(x) }), true
	case graph.OpExp:
		return wrap(math.Exp), true
	case graph.OpLog:
		return wrap(math.Log), true
	case graph.OpSin:
		return wrap(math.Sin), true
	case graph.OpCeil:
		return wrap(math.Ceil), true
	case graph.OpFloor:
		return wrap(math.Floor), true
	case graph.OpRelu:
		return activation(graph.ActRelu), true
	case graph.OpRelu6:
		return activation(graph.ActRelu6), true
	case graph.OpReluN1To1:
		return activation(graph.ActReluN1To1), true
	case graph.OpLogistic:
		return activation(graph.ActSigmoid), true
	case graph.OpTanh:
		return activation(graph.ActTanh), true
	case graph.OpElu:
		return wrap(func(x float64) float64 {
			if x < 0 {
				return math.Exp(x) - 1
			}

			return x
		}), true
	case graph.OpHardSwish:
		return func(x float32) float32 {
			r := x + 3
			if r < 0 {
				r = 0
			} else if r > 6 {
				r = 6
			}

			return x * r / 6
		}, true
	case graph.OpLeakyRelu:
		alpha := op.Options.Alpha
		return func(x float32) float32 {
			if x >= 0 {
				return x
			}

			return alpha * x
		}, true
	}

	return nil, false
}

func activation(a graph.Activation) func(float32) float32 {
	switch a {
	case graph.ActRelu:
		return func(x float32) float32 { return max(x, 0) }
	case graph.ActRelu6:
		return func(x float32) float32 { return min(max(x, 0), 6) }
	case graph.ActReluN1To1:
		return func(x float32) float32 { return min(max(x, -1), 1) }
	case graph.ActTanh:
		return func(x float32) float32 { return float32(math.Tanh(float64(x))) }
	case graph.ActSigmoid:
		return func(x float32) float32 { return float32(1 / (1 + math.Exp(-float64(x)))) }
	default:
		return func(x float32) float32 { return x }
	}
}

func binaryFunc(kind graph.OpKind) (func(a, b float32) float32, bool) {
	switch kind {
	case graph.OpAdd:
		return func(a, b float32) float32 { return a + b }, true
	case graph.OpSub:
		return func(a, b float32) float32 { return a - b }, true
	case graph.OpMul:
		return func(a, b float32) float32 { return a * b }, true
	case graph.OpDiv:
		return func(a, b float32) float32 { return a / b }, true
	case graph.OpMaximum:
		return func(a, b float32) float32 { return max(a, b) }, true
	case graph.OpMinimum:
		return func(a, b float32) float32 { return min(a, b) }, true
	case graph.OpPow:
		return func(a, b float32) float32 { return float32(math.Pow(float64(a), float64(b))) }, true
	case graph.OpSquaredDifference:
		return func(a, b float32) float32 { return (a - b) * (a - b) }, true
	case graph.OpFloorDiv:
		return func(a, b float32) float32 { return float32(math.Floor(float64(a) / float64(b))) }, true
	}

	return nil, false
}

func runUnary(ctx context.Context, op *graph.Operator, in, out []*backend.Buffer) error {
	fn, ok := unaryFunc(op)
	if !ok {
		return fmt.Errorf("%w: %s on %s", backend.ErrNotSupported, op.Kind, Name)
	}

	src, dst := in[0], out[0]
	if src.Len() != dst.Len() {
		return fmt.Errorf("%w: %s %v -> %v", graph.ErrInvalidShape, op.Kind, src.Shape, dst.Shape)
	}

	vals := make([]float32, src.Len())

	return chunked(ctx, len(vals), func(lo, hi int) error {
		readFloat32Range(src, vals, lo, hi)

		for i := lo; i < hi; i++ {
			vals[i] = fn(vals[i])
		}

		writeFloat32Range(dst, vals, lo, hi)

		return nil
	})
}

// runBinary broadcasts both operands onto the output shape through
// zero-stride indexing.
func runBinary(ctx context.Context, op *graph.Operator, in, out []*backend.Buffer) error {
	fn, ok := binaryFunc(op.Kind)
	if !ok {
		return fmt.Errorf("%w: %s on %s", backend.ErrNotSupported, op.Kind, Name)
	}

	act := activation(op.Options.Activation)
	dst := out[0]

	shape, ok := graph.BroadcastShape(in[0].Shape, in[1].Shape)
	if !ok || !graph.EqualShape(shape, dst.Shape) {
		return fmt.Errorf("%w: %s cannot broadcast %v and %v to %v", graph.ErrInvalidShape, op.Kind, in[0].Shape, in[1].Shape, dst.Shape)
	}

	a, b := readFloat32(in[0]), readFloat32(in[1])
	sa, sb := broadcastStrides(in[0].Shape, shape), broadcastStrides(in[1].Shape, shape)
	res := make([]float32, dst.Len())

	return chunked(ctx, len(res), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			ia, ib := sourceIndex(i, shape, sa, sb)
			res[i] = act(fn(a[ia], b[ib]))
		}

		writeFloat32Range(dst, res, lo, hi)

		return nil
	})
}

// broadcastStrides returns the element strides of shape aligned to the
// right of out, with zero strides on broadcast dimensions.
func broadcastStrides(shape, out []int32) []int {
	strides := make([]int, len(out))
	stride := 1

	for i := len(out) - 1; i >= 0; i-- {
		j := i - (len(out) - len(shape))
		if j < 0 {
			continue
		}

		if shape[j] != 1 {
			strides[i] = stride
		}

		stride *= int(shape[j])
	}

	return strides
}

func sourceIndex(linear int, shape []int32, sa, sb []int) (int, int) {
	var ia, ib int

	for d := len(shape) - 1; d >= 0; d-- {
		dim := int(shape[d])
		c := linear % dim
		linear /= dim
		ia += c * sa[d]
		ib += c * sb[d]
	}

	return ia, ib
}
