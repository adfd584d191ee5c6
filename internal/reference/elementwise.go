package reference

import (
	"fmt"
	"math"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/runtime/tensor"
)

// UnaryFunc returns the scalar function of a unary or activation kind.
func UnaryFunc(op *graph.Operator) (func(float32) float32, bool) {
	f64 := func(fn func(float64) float64) func(float32) float32 {
		return func(x float32) float32 { return float32(fn(float64(x))) }
	}

	switch op.Kind {
	case graph.OpAbs:
		return func(x float32) float32 { return float32(math.Abs(float64(x))) }, true
	case graph.OpNeg:
		return func(x float32) float32 { return -x }, true
	case graph.OpSqrt:
		return f64(math.Sqrt), true
	case graph.OpRsqrt:
		return f64(func(x float64) float64 { return 1 / math.Sqrt(x) }), true
	case graph.OpExp:
		return f64(math.Exp), true
	case graph.OpLog:
		return f64(math.Log), true
	case graph.OpSin:
		return f64(math.Sin), true
	case graph.OpCeil:
		return f64(math.Ceil), true
	case graph.OpFloor:
		return f64(math.Floor), true
	case graph.OpRelu:
		return Activate(graph.ActRelu), true
	case graph.OpRelu6:
		return Activate(graph.ActRelu6), true
	case graph.OpReluN1To1:
		return Activate(graph.ActReluN1To1), true
	case graph.OpLogistic:
		return Activate(graph.ActSigmoid), true
	case graph.OpTanh:
		return Activate(graph.ActTanh), true
	case graph.OpElu:
		return f64(func(x float64) float64 {
			if x < 0 {
				return math.Expm1(x)
			}

			return x
		}), true
	case graph.OpHardSwish:
		return func(x float32) float32 { return x * min(max(x+3, 0), 6) / 6 }, true
	case graph.OpLeakyRelu:
		alpha := op.Options.Alpha
		return func(x float32) float32 {
			if x < 0 {
				return alpha * x
			}

			return x
		}, true
	}

	return nil, false
}

// Activate returns the fused activation function a.
func Activate(a graph.Activation) func(float32) float32 {
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

// BinaryFunc returns the scalar function of a binary arithmetic kind.
func BinaryFunc(kind graph.OpKind) (func(a, b float32) float32, bool) {
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
		return func(a, b float32) float32 { d := a - b; return d * d }, true
	case graph.OpFloorDiv:
		return func(a, b float32) float32 { return float32(math.Floor(float64(a) / float64(b))) }, true
	}

	return nil, false
}

// hasFusedActivation lists the binary kinds that honour Options.Activation.
func hasFusedActivation(kind graph.OpKind) bool {
	switch kind {
	case graph.OpAdd, graph.OpSub, graph.OpMul, graph.OpDiv:
		return true
	}

	return false
}

func runUnary(op *graph.Operator, in, out []*backend.Buffer) error {
	fn, ok := UnaryFunc(op)
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrNotSupported, op.Kind)
	}

	Requantize(out[0], Dequantize(in[0]).Map(fn).RawData())

	return nil
}

func runBinary(op *graph.Operator, in, out []*backend.Buffer) error {
	fn, ok := BinaryFunc(op.Kind)
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrNotSupported, op.Kind)
	}

	if hasFusedActivation(op.Kind) && op.Options.Activation != graph.ActNone {
		act := Activate(op.Options.Activation)
		inner := fn
		fn = func(a, b float32) float32 { return act(inner(a, b)) }
	}

	res, err := tensor.BroadcastBinary(Dequantize(in[0]), Dequantize(in[1]), fn)
	if err != nil {
		return err
	}

	Requantize(out[0], res.RawData())

	return nil
}

func runComparison(op *graph.Operator, in, out []*backend.Buffer) error {
	var cmp func(a, b float32) bool

	switch op.Kind {
	case graph.OpEqual:
		cmp = func(a, b float32) bool { return a == b }
	case graph.OpNotEqual:
		cmp = func(a, b float32) bool { return a != b }
	case graph.OpLess:
		cmp = func(a, b float32) bool { return a < b }
	case graph.OpLessEqual:
		cmp = func(a, b float32) bool { return a <= b }
	case graph.OpGreater:
		cmp = func(a, b float32) bool { return a > b }
	case graph.OpGreaterEqual:
		cmp = func(a, b float32) bool { return a >= b }
	default:
		return fmt.Errorf("%w: %s", backend.ErrNotSupported, op.Kind)
	}

	res, err := tensor.BroadcastBinary(Dequantize(in[0]), Dequantize(in[1]), func(a, b float32) float32 {
		if cmp(a, b) {
			return 1
		}

		return 0
	})
	if err != nil {
		return err
	}

	Requantize(out[0], res.RawData())

	return nil
}

func runLogical(op *graph.Operator, in, out []*backend.Buffer) error {
	a := Dequantize(in[0])

	if op.Kind == graph.OpLogicalNot {
		Requantize(out[0], a.Map(func(x float32) float32 { return b2f(x == 0) }).RawData())
		return nil
	}

	fn := func(x, y float32) float32 { return b2f(x != 0 && y != 0) }
	if op.Kind == graph.OpLogicalOr {
		fn = func(x, y float32) float32 { return b2f(x != 0 || y != 0) }
	}

	res, err := tensor.BroadcastBinary(a, Dequantize(in[1]), fn)
	if err != nil {
		return err
	}

	Requantize(out[0], res.RawData())

	return nil
}

// runCast converts raw values between element types, ignoring quantization.
// Float to integer conversion truncates toward zero and saturates.
func runCast(_ *graph.Operator, in, out []*backend.Buffer) error {
	src, dst := in[0], out[0]
	if src.Len() != dst.Len() {
		return fmt.Errorf("%w: CAST %d elements into %d", graph.ErrInvalidShape, src.Len(), dst.Len())
	}

	for i := range src.Len() {
		v := dtype.ElementFloat64(src.Type, src.Data, i)
		if src.Type.IsFloat() && dst.Type.IsInteger() {
			v = math.Trunc(v)
		}

		dtype.SetElementFloat64(dst.Type, dst.Data, i, v)
	}

	return nil
}

func b2f(b bool) float32 {
	if b {
		return 1
	}

	return 0
}
