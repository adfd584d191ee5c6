package graph

import (
	"errors"
	"testing"

	"github.com/example/go-opverify/internal/dtype"
)

func absGraph() *Graph {
	return &Graph{
		Description: "abs",
		Tensors: []Tensor{
			{Name: "input", Type: dtype.Float32, Shape: []int32{3, 1, 2}},
			{Name: "output", Type: dtype.Float32, Shape: []int32{3, 1, 2}},
		},
		Operators: []Operator{{Kind: OpAbs, Inputs: []int32{0}, Outputs: []int32{1}}},
		Inputs:    []int32{0},
		Outputs:   []int32{1},
	}
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	if err := absGraph().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Graph)
		want   error
	}{
		{
			name:   "input index out of range",
			mutate: func(g *Graph) { g.Operators[0].Inputs = []int32{7} },
			want:   ErrInvalidGraph,
		},
		{
			name:   "output aliases input",
			mutate: func(g *Graph) { g.Operators[0].Outputs = []int32{0} },
			want:   ErrInvalidGraph,
		},
		{
			name: "output never produced",
			mutate: func(g *Graph) {
				g.Tensors = append(g.Tensors, Tensor{Type: dtype.Float32, Shape: []int32{1}})
				g.Outputs = []int32{2}
			},
			want: ErrInvalidGraph,
		},
		{
			name: "constant payload size",
			mutate: func(g *Graph) {
				g.Tensors = append(g.Tensors, Tensor{Type: dtype.Float32, Shape: []int32{2}, Data: []byte{1, 2, 3}})
			},
			want: ErrInvalidShape,
		},
		{
			name:   "zero dimension",
			mutate: func(g *Graph) { g.Tensors[0].Shape = []int32{3, 0, 2} },
			want:   ErrInvalidShape,
		},
		{
			name:   "quantized float",
			mutate: func(g *Graph) { g.Tensors[0].Quant = &QuantParams{Scale: 0.5, ZeroPoint: 3} },
			want:   ErrTypeMismatch,
		},
		{
			name:   "unknown operator",
			mutate: func(g *Graph) { g.Operators[0].Kind = opKindCount + 4 },
			want:   ErrUnsupportedOperator,
		},
		{
			name: "tensor produced twice",
			mutate: func(g *Graph) {
				g.Operators = append(g.Operators, Operator{Kind: OpNeg, Inputs: []int32{0}, Outputs: []int32{1}})
			},
			want: ErrInvalidGraph,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := absGraph()
			tt.mutate(g)

			err := g.Validate()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateAllowsDefaultQuantOnFloat(t *testing.T) {
	g := absGraph()
	q := DefaultQuant
	g.Tensors[0].Quant = &q

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateSkipsOptionalInputs(t *testing.T) {
	g := absGraph()
	g.Operators[0].Inputs = []int32{0, OptionalInput}

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestQuantParams(t *testing.T) {
	q := QuantParams{Scale: 0.5, ZeroPoint: 10}

	if got := q.Dequantize(14); got != 2 {
		t.Fatalf("Dequantize(14) = %v, want 2", got)
	}

	if got := q.Quantize(2); got != 14 {
		t.Fatalf("Quantize(2) = %v, want 14", got)
	}
}

func TestParseOpKind(t *testing.T) {
	k, err := ParseOpKind("depthwise-conv-2d")
	if err != nil || k != OpDepthwiseConv2D {
		t.Fatalf("ParseOpKind = %v, %v", k, err)
	}

	if _, err := ParseOpKind("fft"); !errors.Is(err, ErrUnsupportedOperator) {
		t.Fatalf("ParseOpKind(fft) error = %v", err)
	}
}

func TestEveryKindHasNameAndFamily(t *testing.T) {
	for k := OpKind(1); k < opKindCount; k++ {
		if opNames[k] == "" {
			t.Errorf("op %d has no name", k)
		}
	}

	if OpLogicalNot.Family() != FamilyLogical {
		t.Errorf("LOGICAL_NOT family = %v", OpLogicalNot.Family())
	}

	if OpHardSwish.Family() != FamilyActivation {
		t.Errorf("HARD_SWISH family = %v", OpHardSwish.Family())
	}
}

func TestShapeElemCount(t *testing.T) {
	if got := ShapeElemCount(nil); got != 1 {
		t.Fatalf("scalar count = %d", got)
	}

	if got := ShapeElemCount([]int32{1 << 30, 1 << 30, 1 << 30}); got != -1 {
		t.Fatalf("overflowing count = %d, want -1", got)
	}

	if got := ShapeElemCount([]int32{2, -1}); got != -1 {
		t.Fatalf("negative dim count = %d", got)
	}
}
