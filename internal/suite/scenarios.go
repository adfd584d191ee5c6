package suite

import (
	"math"

	"github.com/x448/float16"

	"github.com/example/go-opverify/internal/compare"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/opgraph"
)

// Tags used by the built-in scenarios.
const (
	TagEndToEnd  = "e2e"
	TagQuantized = "quantized"
	TagFloat     = "float"
	TagUnary     = "unary"
	TagBinary    = "binary"
	TagConv      = "conv"
	TagPool      = "pool"
	TagShape     = "shape"
	TagNorm      = "norm"
	TagLogical   = "logical"
	TagRecurrent = "recurrent"
)

// RegisterDefaults registers the built-in scenarios in their canonical order.
func RegisterDefaults(r *Registry) error {
	for _, s := range defaultScenarios() {
		if err := r.Register(s); err != nil {
			return err
		}
	}

	return nil
}

// Defaults returns a registry holding the built-in scenarios.
func Defaults() (*Registry, error) {
	r := NewRegistry()
	if err := RegisterDefaults(r); err != nil {
		return nil, err
	}

	return r, nil
}

func single(shape []int32) opgraph.IOShapes {
	return opgraph.IOShapes{Inputs: [][]int32{shape}, Outputs: [][]int32{shape}}
}

func shapes(in [][]int32, out ...[]int32) opgraph.IOShapes {
	return opgraph.IOShapes{Inputs: in, Outputs: out}
}

func q(scale float32, zp int32) *graph.QuantParams {
	return &graph.QuantParams{Scale: scale, ZeroPoint: zp}
}

// newCase builds the graph and pairs it with its inputs and expected outputs.
func newCase(kind graph.OpKind, et dtype.ElementType, io opgraph.IOShapes, attrs opgraph.Attributes, inputs [][]byte, expected ...compare.TensorView) (*Case, error) {
	g, err := opgraph.BuildGraph(kind, et, io, attrs)
	if err != nil {
		return nil, err
	}

	return &Case{Graph: g, Inputs: inputs, Expected: expected}, nil
}

func raw(payloads ...[]byte) [][]byte { return payloads }

var poolOptions = graph.Options{Padding: graph.PaddingSame, FilterH: 2, FilterW: 2, StrideH: 2, StrideW: 2}

func defaultScenarios() []Scenario {
	return []Scenario{
		{
			Name: "abs/float32",
			Tags: []string{TagEndToEnd, TagUnary, TagFloat},
			Build: func() (*Case, error) {
				shape := []int32{3, 1, 2}

				return newCase(graph.OpAbs, dtype.Float32, single(shape), opgraph.Attributes{},
					raw(dtype.Encode([]float32{-0.1, -0.2, -0.3, 0.1, 0.2, 0.3})),
					compare.View(shape, []float32{0.1, 0.2, 0.3, 0.1, 0.2, 0.3}))
			},
		},
		{
			Name: "depthwise_conv2d/uint8",
			Tags: []string{TagEndToEnd, TagConv, TagQuantized},
			Build: func() (*Case, error) {
				shape := []int32{1, 3, 3, 1}

				return newCase(graph.OpDepthwiseConv2D, dtype.UInt8, single(shape), opgraph.Attributes{
					InputQuant:  q(1, 0),
					OutputQuant: q(2, 0),
					Constants: []opgraph.ConstTensor{
						opgraph.QuantConst("filter", []int32{1, 3, 3, 1}, []uint8{9, 8, 7, 6, 5, 4, 3, 2, 1}, *q(1, 0)),
						opgraph.QuantConst("bias", []int32{1}, []int32{10}, *q(1, 0)),
					},
					Options: graph.Options{Padding: graph.PaddingSame, DepthMultiplier: 1},
				},
					raw([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8}),
					compare.QuantView(shape, []uint8{12, 23, 24, 34, 65, 61, 60, 104, 84}, *q(2, 0)))
			},
		},
		{
			Name: "abs/float16",
			Tags: []string{TagUnary, TagFloat},
			Build: func() (*Case, error) {
				in := []float16.Float16{float16.Fromfloat32(-1.5), float16.Fromfloat32(2), float16.Fromfloat32(-0.25)}
				want := []float16.Float16{float16.Fromfloat32(1.5), float16.Fromfloat32(2), float16.Fromfloat32(0.25)}

				return newCase(graph.OpAbs, dtype.Float16, single([]int32{3}), opgraph.Attributes{},
					raw(dtype.Encode(in)),
					compare.View([]int32{3}, want))
			},
		},
		{
			Name: "tanh/float32",
			Tags: []string{TagUnary, TagFloat},
			Build: func() (*Case, error) {
				in := []float32{-2, -0.5, 0, 0.5, 2}
				want := make([]float32, len(in))

				for i, v := range in {
					want[i] = float32(math.Tanh(float64(v)))
				}

				return newCase(graph.OpTanh, dtype.Float32, single([]int32{5}), opgraph.Attributes{},
					raw(dtype.Encode(in)),
					compare.View([]int32{5}, want))
			},
		},
		{
			Name: "add_relu/float32",
			Tags: []string{TagBinary, TagFloat},
			Build: func() (*Case, error) {
				shape := []int32{2, 2}

				return newCase(graph.OpAdd, dtype.Float32, shapes([][]int32{shape, shape}, shape),
					opgraph.Attributes{Options: graph.Options{Activation: graph.ActRelu}},
					raw(dtype.Encode([]float32{1, -2, 3, -4}), dtype.Encode([]float32{0.5, 0.5, 0.5, 0.5})),
					compare.View(shape, []float32{1.5, 0, 3.5, 0}))
			},
		},
		{
			Name: "add/int8",
			Tags: []string{TagBinary, TagQuantized},
			Build: func() (*Case, error) {
				// Reals: a = {0.5, 1.5, -10.5, 63.5}, b = 0; halves round away from zero.
				return newCase(graph.OpAdd, dtype.Int8, shapes([][]int32{{4}, {1}}, []int32{4}), opgraph.Attributes{
					InputQuant:  q(0.5, -1),
					OutputQuant: q(1, 0),
				},
					raw(dtype.Encode([]int8{0, 2, -22, 126}), dtype.Encode([]int8{-1})),
					compare.View([]int32{4}, []int8{1, 2, -11, 64}))
			},
		},
		{
			Name: "mul_broadcast/float32",
			Tags: []string{TagBinary, TagFloat},
			Build: func() (*Case, error) {
				return newCase(graph.OpMul, dtype.Float32, shapes([][]int32{{2, 3}, {3}}, []int32{2, 3}), opgraph.Attributes{},
					raw(dtype.Encode([]float32{1, 2, 3, 4, 5, 6}), dtype.Encode([]float32{10, 0, -1})),
					compare.View([]int32{2, 3}, []float32{10, 0, -3, 40, 0, -6}))
			},
		},
		{
			Name: "greater/float32",
			Tags: []string{TagLogical, TagFloat},
			Build: func() (*Case, error) {
				return newCase(graph.OpGreater, dtype.Float32, shapes([][]int32{{3}, {1}}, []int32{3}), opgraph.Attributes{},
					raw(dtype.Encode([]float32{-1, 0, 1}), dtype.Encode([]float32{0})),
					compare.View([]int32{3}, []bool{false, false, true}))
			},
		},
		{
			Name: "logical_or/bool",
			Tags: []string{TagLogical},
			Build: func() (*Case, error) {
				shape := []int32{4}

				return newCase(graph.OpLogicalOr, dtype.Bool, shapes([][]int32{shape, shape}, shape), opgraph.Attributes{},
					raw([]byte{0, 0, 7, 1}, []byte{0, 5, 0, 1}),
					compare.View(shape, []bool{false, true, true, true}))
			},
		},
		{
			Name: "conv2d/float32",
			Tags: []string{TagConv, TagFloat},
			Build: func() (*Case, error) {
				in := make([]float32, 16)
				for i := range in {
					in[i] = float32(i + 1)
				}

				return newCase(graph.OpConv2D, dtype.Float32, shapes([][]int32{{1, 4, 4, 1}}, []int32{1, 2, 2, 2}), opgraph.Attributes{
					Constants: []opgraph.ConstTensor{
						opgraph.Const("filter", []int32{2, 2, 2, 1}, []float32{1, 0, 0, 1, 1, 1, 1, 1}),
						opgraph.Const("bias", []int32{2}, []float32{0, -10}),
					},
					Options: graph.Options{Padding: graph.PaddingValid, StrideH: 2, StrideW: 2},
				},
					raw(dtype.Encode(in)),
					compare.View([]int32{1, 2, 2, 2}, []float32{7, 4, 11, 12, 23, 36, 27, 44}))
			},
		},
		{
			Name: "fully_connected_relu/float32",
			Tags: []string{TagConv, TagFloat},
			Build: func() (*Case, error) {
				return newCase(graph.OpFullyConnected, dtype.Float32, single([]int32{2, 2}), opgraph.Attributes{
					Constants: []opgraph.ConstTensor{
						opgraph.Const("weights", []int32{2, 2}, []float32{1, 1, -1, 0}),
						opgraph.Const("bias", []int32{2}, []float32{0.5, 0}),
					},
					Options: graph.Options{Activation: graph.ActRelu},
				},
					raw(dtype.Encode([]float32{1, 2, -3, 4})),
					compare.View([]int32{2, 2}, []float32{3.5, 0, 1.5, 3}))
			},
		},
		{
			Name: "fully_connected/uint8",
			Tags: []string{TagConv, TagQuantized},
			Build: func() (*Case, error) {
				// Reals: x = {1, 2, 3, 4}; weight rows {1,1,1,1} and {-1,0,0,0}.
				return newCase(graph.OpFullyConnected, dtype.UInt8, shapes([][]int32{{1, 4}}, []int32{1, 2}), opgraph.Attributes{
					InputQuant:  q(1, 128),
					OutputQuant: q(1, 128),
					Constants: []opgraph.ConstTensor{
						opgraph.QuantConst("weights", []int32{2, 4}, []uint8{129, 129, 129, 129, 127, 128, 128, 128}, *q(1, 128)),
						opgraph.QuantConst("bias", []int32{2}, []int32{3, 0}, *q(1, 0)),
					},
				},
					raw([]byte{129, 130, 131, 132}),
					compare.QuantView([]int32{1, 2}, []uint8{141, 127}, *q(1, 128)))
			},
		},
		{
			Name: "max_pool2d/uint8",
			Tags: []string{TagPool, TagQuantized},
			Build: func() (*Case, error) {
				return newCase(graph.OpMaxPool2D, dtype.UInt8, shapes([][]int32{{1, 3, 3, 1}}, []int32{1, 2, 2, 1}),
					opgraph.Attributes{Options: poolOptions},
					raw([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}),
					compare.View([]int32{1, 2, 2, 1}, []uint8{5, 6, 8, 9}))
			},
		},
		{
			Name: "average_pool2d/uint8",
			Tags: []string{TagPool, TagQuantized},
			Build: func() (*Case, error) {
				// Edge windows average only their in-bounds taps: (3+6)/2 rounds to 5.
				return newCase(graph.OpAveragePool2D, dtype.UInt8, shapes([][]int32{{1, 3, 3, 1}}, []int32{1, 2, 2, 1}),
					opgraph.Attributes{Options: poolOptions},
					raw([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}),
					compare.View([]int32{1, 2, 2, 1}, []uint8{3, 5, 8, 9}))
			},
		},
		{
			Name: "l2_pool2d/float32",
			Tags: []string{TagPool, TagFloat},
			Build: func() (*Case, error) {
				want := []float32{float32(math.Sqrt(46.0 / 4)), float32(math.Sqrt(45.0 / 2)), float32(math.Sqrt(113.0 / 2)), 9}

				return newCase(graph.OpL2Pool2D, dtype.Float32, shapes([][]int32{{1, 3, 3, 1}}, []int32{1, 2, 2, 1}),
					opgraph.Attributes{Options: poolOptions},
					raw(dtype.Encode([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9})),
					compare.View([]int32{1, 2, 2, 1}, want))
			},
		},
		{
			Name: "softmax/float32",
			Tags: []string{TagNorm, TagFloat},
			Build: func() (*Case, error) {
				return newCase(graph.OpSoftmax, dtype.Float32, single([]int32{1, 3}), opgraph.Attributes{},
					raw(dtype.Encode([]float32{1, 2, 3})),
					compare.View([]int32{1, 3}, []float32{0.09003057, 0.24472848, 0.66524094}))
			},
		},
		{
			Name: "l2_normalization/float32",
			Tags: []string{TagNorm, TagFloat},
			Build: func() (*Case, error) {
				return newCase(graph.OpL2Normalization, dtype.Float32, single([]int32{1, 2}), opgraph.Attributes{},
					raw(dtype.Encode([]float32{3, 4})),
					compare.View([]int32{1, 2}, []float32{0.6, 0.8}))
			},
		},
		{
			Name: "cast/float32_to_int8",
			Tags: []string{TagUnary, TagFloat},
			Build: func() (*Case, error) {
				return newCase(graph.OpCast, dtype.Float32, single([]int32{4}),
					opgraph.Attributes{Options: graph.Options{OutType: dtype.Int8}},
					raw(dtype.Encode([]float32{1.9, -1.9, 300, -0.2})),
					compare.View([]int32{4}, []int8{1, -1, 127, 0}))
			},
		},
		{
			Name: "concatenation/int16",
			Tags: []string{TagShape},
			Build: func() (*Case, error) {
				return newCase(graph.OpConcatenation, dtype.Int16, shapes([][]int32{{2, 1}, {2, 2}}, []int32{2, 3}),
					opgraph.Attributes{Options: graph.Options{Axis: 1, Count: 2}},
					raw(dtype.Encode([]int16{1, 4}), dtype.Encode([]int16{2, 3, 5, 6})),
					compare.View([]int32{2, 3}, []int16{1, 2, 3, 4, 5, 6}))
			},
		},
		{
			Name: "transpose/int16",
			Tags: []string{TagShape},
			Build: func() (*Case, error) {
				return newCase(graph.OpTranspose, dtype.Int16, shapes([][]int32{{2, 3}}, []int32{3, 2}), opgraph.Attributes{
					Constants: []opgraph.ConstTensor{opgraph.Const("perm", []int32{2}, []int32{1, 0})},
				},
					raw(dtype.Encode([]int16{1, 2, 3, 4, 5, 6})),
					compare.View([]int32{3, 2}, []int16{1, 4, 2, 5, 3, 6}))
			},
		},
		{
			Name: "split/int16",
			Tags: []string{TagShape},
			Build: func() (*Case, error) {
				return newCase(graph.OpSplit, dtype.Int16, shapes([][]int32{{2, 3}}, []int32{2, 1}, []int32{2, 2}), opgraph.Attributes{
					Constants: []opgraph.ConstTensor{opgraph.Const("axis", []int32{1}, []int32{1})},
				},
					raw(dtype.Encode([]int16{1, 2, 3, 4, 5, 6})),
					compare.View([]int32{2, 1}, []int16{1, 4}),
					compare.View([]int32{2, 2}, []int16{2, 3, 5, 6}))
			},
		},
		{
			Name: "pack/bool",
			Tags: []string{TagShape, TagLogical},
			Build: func() (*Case, error) {
				return newCase(graph.OpPack, dtype.Bool, shapes([][]int32{{2}}, []int32{2, 2}),
					opgraph.Attributes{Options: graph.Options{Count: 2, Axis: 1}},
					raw([]byte{1, 0}, []byte{0, 1}),
					compare.View([]int32{2, 2}, []bool{true, false, false, true}))
			},
		},
		{
			Name:  "unidirectional_sequence_lstm/float32",
			Tags:  []string{TagRecurrent, TagFloat},
			Build: buildLSTM,
		},
	}
}

// buildLSTM is a one-cell CIFG LSTM with zero recurrent weights: the cell
// state accumulates (1 - f) * tanh(x) with f = sigmoid(0) = 0.5.
func buildLSTM() (*Case, error) {
	w := opgraph.LSTMWeights{
		Input: 1, Cell: 1,
		InputToForget: []float32{0}, InputToCell: []float32{1}, InputToOutput: []float32{0},
		RecurrentToForget: []float32{0}, RecurrentToCell: []float32{0}, RecurrentToOutput: []float32{0},
		ForgetBias: []float32{0}, CellBias: []float32{0}, OutputBias: []float32{0},
	}

	th := math.Tanh(1)
	c1 := 0.5 * th
	c2 := 0.5*c1 + 0.5*th
	want := []float32{float32(0.5 * math.Tanh(c1)), float32(0.5 * math.Tanh(c2))}

	c, err := newCase(graph.OpUnidirectionalSequenceLSTM, dtype.Float32, single([]int32{2, 1, 1}), opgraph.LSTMAttributes(w, 1),
		raw(dtype.Encode([]float32{1, 1})),
		compare.View([]int32{2, 1, 1}, want))
	if err != nil {
		return nil, err
	}

	c.Rule = compare.Percent(1)

	return c, nil
}
