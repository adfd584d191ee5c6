package opgraph

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

func depthwiseAttrs() Attributes {
	return Attributes{
		InputQuant:  &graph.QuantParams{Scale: 1},
		OutputQuant: &graph.QuantParams{Scale: 2},
		Constants: []ConstTensor{
			QuantConst("filter", []int32{1, 3, 3, 1}, []uint8{9, 8, 7, 6, 5, 4, 3, 2, 1}, graph.QuantParams{Scale: 1}),
			QuantConst("bias", []int32{1}, []int32{10}, graph.QuantParams{Scale: 1}),
		},
		Options: graph.Options{Padding: graph.PaddingSame, StrideH: 1, StrideW: 1, DepthMultiplier: 1},
	}
}

func TestBuildAbs(t *testing.T) {
	g, err := BuildGraph(graph.OpAbs, dtype.Float32, IOShapes{
		Inputs:  [][]int32{{3, 1, 2}},
		Outputs: [][]int32{{3, 1, 2}},
	}, Attributes{})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	if len(g.Tensors) != 2 || len(g.Operators) != 1 {
		t.Fatalf("got %d tensors, %d operators", len(g.Tensors), len(g.Operators))
	}

	if diff := cmp.Diff([]int32{0}, g.Inputs); diff != "" {
		t.Fatalf("inputs (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int32{1}, g.Outputs); diff != "" {
		t.Fatalf("outputs (-want +got):\n%s", diff)
	}

	if g.Tensors[0].Quant != nil {
		t.Fatalf("float input carries quantization %+v", *g.Tensors[0].Quant)
	}
}

func TestBuildOrdersInputsConstantsOutputs(t *testing.T) {
	g, err := BuildGraph(graph.OpDepthwiseConv2D, dtype.UInt8, IOShapes{
		Inputs:  [][]int32{{1, 3, 3, 1}},
		Outputs: [][]int32{{1, 3, 3, 1}},
	}, depthwiseAttrs())
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	var names []string
	for _, tensor := range g.Tensors {
		names = append(names, tensor.Name)
	}

	if diff := cmp.Diff([]string{"input", "filter", "bias", "output"}, names); diff != "" {
		t.Fatalf("tensor order (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int32{0, 1, 2}, g.Operators[0].Inputs); diff != "" {
		t.Fatalf("operator inputs (-want +got):\n%s", diff)
	}

	if got := g.Tensors[3].QuantOrDefault(); got.Scale != 2 {
		t.Fatalf("output quant = %+v", got)
	}
}

func TestBuildReportsOnlyPrimaryInputs(t *testing.T) {
	tests := []struct {
		name      string
		kind      graph.OpKind
		shapes    IOShapes
		attrs     Attributes
		wantInput int
	}{
		{
			name:      "binary two inputs",
			kind:      graph.OpAdd,
			shapes:    IOShapes{Inputs: [][]int32{{2, 2}, {2, 2}}, Outputs: [][]int32{{2, 2}}},
			wantInput: 2,
		},
		{
			name: "binary one constant",
			kind: graph.OpAdd,
			shapes: IOShapes{
				Inputs:  [][]int32{{2, 2}},
				Outputs: [][]int32{{2, 2}},
			},
			attrs:     Attributes{Constants: []ConstTensor{Const("rhs", []int32{2, 2}, []float32{1, 2, 3, 4})}},
			wantInput: 1,
		},
		{
			name:      "pack by count",
			kind:      graph.OpPack,
			shapes:    IOShapes{Inputs: [][]int32{{2, 3}}, Outputs: [][]int32{{4, 2, 3}}},
			attrs:     Attributes{Options: graph.Options{Count: 4}},
			wantInput: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildGraph(tt.kind, dtype.Float32, tt.shapes, tt.attrs)
			if err != nil {
				t.Fatalf("BuildGraph: %v", err)
			}

			if len(g.Inputs) != tt.wantInput {
				t.Fatalf("graph inputs = %d, want %d", len(g.Inputs), tt.wantInput)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	unary := IOShapes{Inputs: [][]int32{{2, 2}}, Outputs: [][]int32{{2, 2}}}
	binary := IOShapes{Inputs: [][]int32{{2, 2}, {2, 2}}, Outputs: [][]int32{{2, 2}}}

	tests := []struct {
		name   string
		kind   graph.OpKind
		et     dtype.ElementType
		shapes IOShapes
		attrs  Attributes
		want   error
	}{
		{name: "unknown operator", kind: graph.OpUnknown, et: dtype.Float32, shapes: unary, want: graph.ErrUnsupportedOperator},
		{name: "logical on float", kind: graph.OpLogicalAnd, et: dtype.Float32, shapes: binary, want: graph.ErrTypeMismatch},
		{name: "sqrt on int8", kind: graph.OpSqrt, et: dtype.Int8, shapes: unary, want: graph.ErrTypeMismatch},
		{name: "add on bool", kind: graph.OpAdd, et: dtype.Bool, shapes: binary, want: graph.ErrTypeMismatch},
		{name: "less on bool", kind: graph.OpLess, et: dtype.Bool, shapes: binary, want: graph.ErrTypeMismatch},
		{
			name: "zero dimension", kind: graph.OpAbs, et: dtype.Float32,
			shapes: IOShapes{Inputs: [][]int32{{2, 0}}, Outputs: [][]int32{{2, 0}}},
			want:   graph.ErrInvalidShape,
		},
		{
			name: "empty shape", kind: graph.OpAbs, et: dtype.Float32,
			shapes: IOShapes{Inputs: [][]int32{{}}, Outputs: [][]int32{{}}},
			want:   graph.ErrInvalidShape,
		},
		{
			name: "unary output shape", kind: graph.OpRelu, et: dtype.Float32,
			shapes: IOShapes{Inputs: [][]int32{{2, 2}}, Outputs: [][]int32{{4}}},
			want:   graph.ErrInvalidShape,
		},
		{
			name: "broadcast mismatch", kind: graph.OpMul, et: dtype.Float32,
			shapes: IOShapes{Inputs: [][]int32{{2, 3}, {2, 2}}, Outputs: [][]int32{{2, 3}}},
			want:   graph.ErrInvalidShape,
		},
		{
			name: "float indices", kind: graph.OpGather, et: dtype.Float32,
			shapes: IOShapes{Inputs: [][]int32{{4}}, Outputs: [][]int32{{2}}},
			attrs:  Attributes{Constants: []ConstTensor{Const("indices", []int32{2}, []float32{0, 1})}},
			want:   graph.ErrTypeMismatch,
		},
		{
			name: "quantized float", kind: graph.OpAbs, et: dtype.Float32, shapes: unary,
			attrs: Attributes{InputQuant: &graph.QuantParams{Scale: 0.5, ZeroPoint: 1}},
			want:  graph.ErrTypeMismatch,
		},
		{
			name: "constant payload", kind: graph.OpAdd, et: dtype.Float32, shapes: unary,
			attrs: Attributes{Constants: []ConstTensor{Const("rhs", []int32{2, 2}, []float32{1, 2, 3})}},
			want:  graph.ErrInvalidShape,
		},
		{
			name: "missing operand", kind: graph.OpAdd, et: dtype.Float32, shapes: unary,
			want: graph.ErrInvalidGraph,
		},
		{
			name: "depthwise output shape", kind: graph.OpDepthwiseConv2D, et: dtype.UInt8,
			shapes: IOShapes{Inputs: [][]int32{{1, 3, 3, 1}}, Outputs: [][]int32{{1, 1, 1, 1}}},
			attrs:  depthwiseAttrs(),
			want:   graph.ErrInvalidShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildGraph(tt.kind, tt.et, tt.shapes, tt.attrs)
			if !errors.Is(err, tt.want) {
				t.Fatalf("BuildGraph error = %v, want %v", err, tt.want)
			}

			if g != nil {
				t.Fatal("BuildGraph returned a partial graph alongside an error")
			}
		})
	}
}

func TestBuildSplitHeterogeneousOutputs(t *testing.T) {
	axis := Const("axis", []int32{1}, []int32{1})

	g, err := BuildGraph(graph.OpSplit, dtype.Float32, IOShapes{
		Inputs:  [][]int32{{1, 6}},
		Outputs: [][]int32{{1, 2}, {1, 4}},
	}, Attributes{Constants: []ConstTensor{axis}})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	if len(g.Outputs) != 2 || g.Operators[0].Options.Count != 2 {
		t.Fatalf("outputs = %v, count = %d", g.Outputs, g.Operators[0].Options.Count)
	}

	_, err = BuildGraph(graph.OpSplit, dtype.Float32, IOShapes{
		Inputs:  [][]int32{{1, 6}},
		Outputs: [][]int32{{1, 2}, {1, 3}},
	}, Attributes{Constants: []ConstTensor{axis}})
	if !errors.Is(err, graph.ErrInvalidShape) {
		t.Fatalf("uneven split error = %v, want ErrInvalidShape", err)
	}
}

func TestBuildConcatenationCount(t *testing.T) {
	g, err := BuildGraph(graph.OpConcatenation, dtype.Int8, IOShapes{
		Inputs:  [][]int32{{1, 2}},
		Outputs: [][]int32{{1, 6}},
	}, Attributes{Options: graph.Options{Axis: -1, Count: 3}})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	if got := len(g.Operators[0].Inputs); got != 3 {
		t.Fatalf("operator inputs = %d, want 3", got)
	}

	if g.Tensors[0].Name != "input_0" || g.Tensors[2].Name != "input_2" {
		t.Fatalf("unexpected names %q, %q", g.Tensors[0].Name, g.Tensors[2].Name)
	}
}

func TestBuildComparisonProducesBool(t *testing.T) {
	g, err := BuildGraph(graph.OpGreater, dtype.Int16, IOShapes{
		Inputs:  [][]int32{{1, 4}, {1}},
		Outputs: [][]int32{{1, 4}},
	}, Attributes{})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	out := g.Tensors[g.Outputs[0]]
	if out.Type != dtype.Bool || out.Quant != nil {
		t.Fatalf("output type %s quant %v", out.Type, out.Quant)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	shapes := IOShapes{Inputs: [][]int32{{1, 3, 3, 1}}, Outputs: [][]int32{{1, 3, 3, 1}}}

	_, a, err := Build(graph.OpDepthwiseConv2D, dtype.UInt8, shapes, depthwiseAttrs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	_, b, err := Build(graph.OpDepthwiseConv2D, dtype.UInt8, shapes, depthwiseAttrs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !bytes.Equal(a, b) {
		t.Fatal("identical builds serialized differently")
	}
}

func TestBuildLSTMRequiresStateVariables(t *testing.T) {
	attrs := LSTMAttributes(LSTMWeights{
		Input: 2, Cell: 2,
		InputToForget: make([]float32, 4), InputToCell: make([]float32, 4), InputToOutput: make([]float32, 4),
		RecurrentToForget: make([]float32, 4), RecurrentToCell: make([]float32, 4), RecurrentToOutput: make([]float32, 4),
		ForgetBias: make([]float32, 2), CellBias: make([]float32, 2), OutputBias: make([]float32, 2),
	}, 1)

	shapes := IOShapes{Inputs: [][]int32{{3, 1, 2}}, Outputs: [][]int32{{3, 1, 2}}}
	if _, err := BuildGraph(graph.OpUnidirectionalSequenceLSTM, dtype.Float32, shapes, attrs); err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	attrs.Constants[graph.LSTMCellState-1] = Const("cell", []int32{1, 2}, []float32{0, 0})
	if _, err := BuildGraph(graph.OpUnidirectionalSequenceLSTM, dtype.Float32, shapes, attrs); !errors.Is(err, graph.ErrInvalidGraph) {
		t.Fatalf("constant cell state error = %v, want ErrInvalidGraph", err)
	}
}
