package reference

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/opgraph"
)

// execute runs every operator of g on the reference backend with the given
// raw input payloads and returns the graph output buffers.
func execute(t *testing.T, g *graph.Graph, inputs ...[]byte) []*backend.Buffer {
	t.Helper()

	bufs := make([]*backend.Buffer, len(g.Tensors))
	for i := range g.Tensors {
		bufs[i] = backend.NewBuffer(&g.Tensors[i])
	}

	if len(inputs) != len(g.Inputs) {
		t.Fatalf("got %d inputs for %d graph inputs", len(inputs), len(g.Inputs))
	}

	for i, idx := range g.Inputs {
		copy(bufs[idx].Data, inputs[i])
	}

	b := New()
	for i := range g.Operators {
		op := &g.Operators[i]
		if !b.Supports(g, op) {
			t.Fatalf("cpuref does not support %s", op.Kind)
		}

		k, err := b.Prepare(g, op)
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}

		in := make([]*backend.Buffer, len(op.Inputs))
		for j, idx := range op.Inputs {
			if idx != graph.OptionalInput {
				in[j] = bufs[idx]
			}
		}

		out := make([]*backend.Buffer, len(op.Outputs))
		for j, idx := range op.Outputs {
			out[j] = bufs[idx]
		}

		if err := k.Run(context.Background(), in, out); err != nil {
			t.Fatalf("Run %s: %v", op.Kind, err)
		}
	}

	outs := make([]*backend.Buffer, len(g.Outputs))
	for i, idx := range g.Outputs {
		outs[i] = bufs[idx]
	}

	return outs
}

func build(t *testing.T, kind graph.OpKind, et dtype.ElementType, shapes opgraph.IOShapes, attrs opgraph.Attributes) *graph.Graph {
	t.Helper()

	g, err := opgraph.BuildGraph(kind, et, shapes, attrs)
	if err != nil {
		t.Fatalf("BuildGraph %s: %v", kind, err)
	}

	return g
}

func io(in, out []int32) opgraph.IOShapes {
	return opgraph.IOShapes{Inputs: [][]int32{in}, Outputs: [][]int32{out}}
}

func decode[T dtype.Native](t *testing.T, b *backend.Buffer) []T {
	t.Helper()

	v, err := dtype.Decode[T](b.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	return v
}

var approx = cmpopts.EquateApprox(0, 1e-5)

func TestAbsFloat32(t *testing.T) {
	g := build(t, graph.OpAbs, dtype.Float32, io([]int32{3, 1, 2}, []int32{3, 1, 2}), opgraph.Attributes{})

	out := execute(t, g, dtype.Encode([]float32{-0.1, -0.2, -0.3, 0.1, 0.2, 0.3}))

	want := []float32{0.1, 0.2, 0.3, 0.1, 0.2, 0.3}
	if diff := cmp.Diff(want, decode[float32](t, out[0]), approx); diff != "" {
		t.Fatalf("abs (-want +got):\n%s", diff)
	}
}

func TestDepthwiseConvUint8(t *testing.T) {
	g := build(t, graph.OpDepthwiseConv2D, dtype.UInt8, io([]int32{1, 3, 3, 1}, []int32{1, 3, 3, 1}), opgraph.Attributes{
		InputQuant:  &graph.QuantParams{Scale: 1},
		OutputQuant: &graph.QuantParams{Scale: 2},
		Constants: []opgraph.ConstTensor{
			opgraph.QuantConst("filter", []int32{1, 3, 3, 1}, []uint8{9, 8, 7, 6, 5, 4, 3, 2, 1}, graph.QuantParams{Scale: 1}),
			opgraph.QuantConst("bias", []int32{1}, []int32{10}, graph.QuantParams{Scale: 1}),
		},
		Options: graph.Options{Padding: graph.PaddingSame, DepthMultiplier: 1},
	})

	out := execute(t, g, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8})

	want := []uint8{12, 23, 24, 34, 65, 61, 60, 104, 84}
	if diff := cmp.Diff(want, decode[uint8](t, out[0])); diff != "" {
		t.Fatalf("depthwise (-want +got):\n%s", diff)
	}
}

func TestConv2DValidStride(t *testing.T) {
	// 1x4x4x1 input, two 2x2 filters, stride 2.
	in := make([]float32, 16)
	for i := range in {
		in[i] = float32(i + 1)
	}

	g := build(t, graph.OpConv2D, dtype.Float32, io([]int32{1, 4, 4, 1}, []int32{1, 2, 2, 2}), opgraph.Attributes{
		Constants: []opgraph.ConstTensor{
			opgraph.Const("filter", []int32{2, 2, 2, 1}, []float32{1, 0, 0, 1, 1, 1, 1, 1}),
			opgraph.Const("bias", []int32{2}, []float32{0, -10}),
		},
		Options: graph.Options{Padding: graph.PaddingValid, StrideH: 2, StrideW: 2},
	})

	out := execute(t, g, dtype.Encode(in))

	// Top-left window {1,2,5,6}: diag 1+6=7, sum 14-10=4.
	want := []float32{7, 4, 11, 12, 23, 36, 27, 44}
	if diff := cmp.Diff(want, decode[float32](t, out[0]), approx); diff != "" {
		t.Fatalf("conv (-want +got):\n%s", diff)
	}
}

func TestFullyConnectedRelu(t *testing.T) {
	g := build(t, graph.OpFullyConnected, dtype.Float32, io([]int32{2, 2}, []int32{2, 2}), opgraph.Attributes{
		Constants: []opgraph.ConstTensor{
			opgraph.Const("weights", []int32{2, 2}, []float32{1, 1, -1, 0}),
			opgraph.Const("bias", []int32{2}, []float32{0.5, 0}),
		},
		Options: graph.Options{Activation: graph.ActRelu},
	})

	out := execute(t, g, dtype.Encode([]float32{1, 2, -3, 4}))

	want := []float32{3.5, 0, 1.5, 3}
	if diff := cmp.Diff(want, decode[float32](t, out[0]), approx); diff != "" {
		t.Fatalf("fc (-want +got):\n%s", diff)
	}
}

func TestPooling(t *testing.T) {
	in := dtype.Encode([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	opts := graph.Options{Padding: graph.PaddingSame, FilterH: 2, FilterW: 2, StrideH: 2, StrideW: 2}

	tests := []struct {
		kind graph.OpKind
		want []float32
	}{
		{graph.OpMaxPool2D, []float32{5, 6, 8, 9}},
		{graph.OpAveragePool2D, []float32{3, 4.5, 7.5, 9}},
		{graph.OpL2Pool2D, []float32{float32(math.Sqrt(46.0 / 4)), float32(math.Sqrt(45.0 / 2)), float32(math.Sqrt(113.0 / 2)), 9}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			g := build(t, tt.kind, dtype.Float32, io([]int32{1, 3, 3, 1}, []int32{1, 2, 2, 1}), opgraph.Attributes{Options: opts})

			out := execute(t, g, in)
			if diff := cmp.Diff(tt.want, decode[float32](t, out[0]), approx); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuantizedAddRoundsHalfAway(t *testing.T) {
	g := build(t, graph.OpAdd, dtype.Int8, opgraph.IOShapes{
		Inputs:  [][]int32{{4}, {1}},
		Outputs: [][]int32{{4}},
	}, opgraph.Attributes{
		InputQuant:  &graph.QuantParams{Scale: 0.5, ZeroPoint: -1},
		OutputQuant: &graph.QuantParams{Scale: 1},
	})

	// Reals: a = {0.5, 1.5, -10.5, 63.5}, b = 0.
	out := execute(t, g, dtype.Encode([]int8{0, 2, -22, 126}), dtype.Encode([]int8{-1}))

	want := []int8{1, 2, -11, 64}
	if diff := cmp.Diff(want, decode[int8](t, out[0])); diff != "" {
		t.Fatalf("add (-want +got):\n%s", diff)
	}
}

func TestComparisonAndLogical(t *testing.T) {
	g := build(t, graph.OpGreater, dtype.Float32, opgraph.IOShapes{
		Inputs:  [][]int32{{3}, {1}},
		Outputs: [][]int32{{3}},
	}, opgraph.Attributes{})

	out := execute(t, g, dtype.Encode([]float32{-1, 0, 1}), dtype.Encode([]float32{0}))
	if diff := cmp.Diff([]bool{false, false, true}, decode[bool](t, out[0])); diff != "" {
		t.Fatalf("greater (-want +got):\n%s", diff)
	}

	g = build(t, graph.OpLogicalOr, dtype.Bool, opgraph.IOShapes{
		Inputs:  [][]int32{{4}, {4}},
		Outputs: [][]int32{{4}},
	}, opgraph.Attributes{})

	out = execute(t, g, []byte{0, 0, 7, 1}, []byte{0, 5, 0, 1})
	if diff := cmp.Diff([]byte{0, 1, 1, 1}, out[0].Data); diff != "" {
		t.Fatalf("or (-want +got):\n%s", diff)
	}
}

func TestCastTruncates(t *testing.T) {
	g := build(t, graph.OpCast, dtype.Float32, io([]int32{4}, []int32{4}), opgraph.Attributes{
		Options: graph.Options{OutType: dtype.Int8},
	})

	out := execute(t, g, dtype.Encode([]float32{1.9, -1.9, 300, -0.2}))
	if diff := cmp.Diff([]int8{1, -1, 127, 0}, decode[int8](t, out[0])); diff != "" {
		t.Fatalf("cast (-want +got):\n%s", diff)
	}
}

func TestDataMovement(t *testing.T) {
	six := dtype.Encode([]int16{1, 2, 3, 4, 5, 6})

	t.Run("transpose", func(t *testing.T) {
		g := build(t, graph.OpTranspose, dtype.Int16, io([]int32{2, 3}, []int32{3, 2}), opgraph.Attributes{
			Constants: []opgraph.ConstTensor{opgraph.Const("perm", []int32{2}, []int32{1, 0})},
		})

		out := execute(t, g, six)
		if diff := cmp.Diff([]int16{1, 4, 2, 5, 3, 6}, decode[int16](t, out[0])); diff != "" {
			t.Fatalf("(-want +got):\n%s", diff)
		}
	})

	t.Run("gather", func(t *testing.T) {
		g := build(t, graph.OpGather, dtype.Int16, io([]int32{3, 2}, []int32{2, 2}), opgraph.Attributes{
			Constants: []opgraph.ConstTensor{opgraph.Const("indices", []int32{2}, []int32{2, 0})},
		})

		out := execute(t, g, six)
		if diff := cmp.Diff([]int16{5, 6, 1, 2}, decode[int16](t, out[0])); diff != "" {
			t.Fatalf("(-want +got):\n%s", diff)
		}
	})

	t.Run("split", func(t *testing.T) {
		g := build(t, graph.OpSplit, dtype.Int16, opgraph.IOShapes{
			Inputs:  [][]int32{{2, 3}},
			Outputs: [][]int32{{2, 1}, {2, 2}},
		}, opgraph.Attributes{
			Constants: []opgraph.ConstTensor{opgraph.Const("axis", []int32{1}, []int32{1})},
		})

		out := execute(t, g, six)
		if diff := cmp.Diff([]int16{1, 4}, decode[int16](t, out[0])); diff != "" {
			t.Fatalf("first (-want +got):\n%s", diff)
		}

		if diff := cmp.Diff([]int16{2, 3, 5, 6}, decode[int16](t, out[1])); diff != "" {
			t.Fatalf("second (-want +got):\n%s", diff)
		}
	})

	t.Run("pack", func(t *testing.T) {
		g := build(t, graph.OpPack, dtype.Bool, opgraph.IOShapes{
			Inputs:  [][]int32{{2}},
			Outputs: [][]int32{{2, 2}},
		}, opgraph.Attributes{Options: graph.Options{Count: 2, Axis: 1}})

		out := execute(t, g, []byte{1, 0}, []byte{0, 1})
		if diff := cmp.Diff([]byte{1, 0, 0, 1}, out[0].Data); diff != "" {
			t.Fatalf("(-want +got):\n%s", diff)
		}
	})

	t.Run("space to batch pads with zero point", func(t *testing.T) {
		g := build(t, graph.OpSpaceToBatchND, dtype.UInt8, io([]int32{1, 1, 1, 1}, []int32{2, 1, 1, 1}), opgraph.Attributes{
			InputQuant:  &graph.QuantParams{Scale: 1, ZeroPoint: 128},
			OutputQuant: &graph.QuantParams{Scale: 1, ZeroPoint: 128},
			Constants: []opgraph.ConstTensor{
				opgraph.Const("block", []int32{2}, []int32{1, 2}),
				opgraph.Const("paddings", []int32{2, 2}, []int32{0, 0, 0, 1}),
			},
		})

		out := execute(t, g, []byte{200})
		if diff := cmp.Diff([]byte{200, 128}, out[0].Data); diff != "" {
			t.Fatalf("(-want +got):\n%s", diff)
		}
	})
}

func TestSoftmaxAndL2Norm(t *testing.T) {
	g := build(t, graph.OpSoftmax, dtype.Float32, io([]int32{1, 3}, []int32{1, 3}), opgraph.Attributes{})

	out := execute(t, g, dtype.Encode([]float32{1, 2, 3}))
	want := []float32{0.09003057, 0.24472848, 0.66524094}
	if diff := cmp.Diff(want, decode[float32](t, out[0]), approx); diff != "" {
		t.Fatalf("softmax (-want +got):\n%s", diff)
	}

	g = build(t, graph.OpL2Normalization, dtype.Float32, io([]int32{1, 2}, []int32{1, 2}), opgraph.Attributes{})

	out = execute(t, g, dtype.Encode([]float32{3, 4}))
	if diff := cmp.Diff([]float32{0.6, 0.8}, decode[float32](t, out[0]), approx); diff != "" {
		t.Fatalf("l2norm (-want +got):\n%s", diff)
	}
}

func TestLSTMUpdatesState(t *testing.T) {
	// One cell, no projection, CIFG, zero recurrent weights: the cell state
	// accumulates (1 - f) * tanh(x) with f = sigmoid(0) = 0.5.
	w := opgraph.LSTMWeights{
		Input: 1, Cell: 1,
		InputToForget: []float32{0}, InputToCell: []float32{1}, InputToOutput: []float32{0},
		RecurrentToForget: []float32{0}, RecurrentToCell: []float32{0}, RecurrentToOutput: []float32{0},
		ForgetBias: []float32{0}, CellBias: []float32{0}, OutputBias: []float32{0},
	}

	g := build(t, graph.OpUnidirectionalSequenceLSTM, dtype.Float32, io([]int32{2, 1, 1}, []int32{2, 1, 1}), opgraph.LSTMAttributes(w, 1))

	out := execute(t, g, dtype.Encode([]float32{1, 1}))

	th := math.Tanh(1)
	c1 := 0.5 * th
	c2 := 0.5*c1 + 0.5*th
	want := []float32{float32(0.5 * math.Tanh(c1)), float32(0.5 * math.Tanh(c2))}

	if diff := cmp.Diff(want, decode[float32](t, out[0]), approx); diff != "" {
		t.Fatalf("lstm (-want +got):\n%s", diff)
	}
}
