package opgraph

import (
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

// LSTMWeights holds the float32 operands of a unidirectional sequence LSTM.
// Nil slices become absent optional operands: no InputToInput weights selects
// the coupled input/forget gate (CIFG) variant, no CellTo* weights disables
// peepholes, and no Projection weights makes the output size equal Cell.
type LSTMWeights struct {
	Input  int32 // input feature size
	Cell   int32 // cell units
	Output int32 // projection size; 0 means Cell

	InputToInput, InputToForget, InputToCell, InputToOutput                 []float32 // [Cell, Input]
	RecurrentToInput, RecurrentToForget, RecurrentToCell, RecurrentToOutput []float32 // [Cell, Output]
	CellToInput, CellToForget, CellToOutput                                 []float32 // [Cell]
	InputGateBias, ForgetBias, CellBias, OutputBias                         []float32 // [Cell]
	Projection                                                              []float32 // [Output, Cell]
	ProjectionBias                                                          []float32 // [Output]
	InputLayerNorm, ForgetLayerNorm, CellLayerNorm, OutputLayerNorm         []float32 // [Cell]

	CellClip float32
	ProjClip float32
}

// OutputSize returns the projection size, or Cell without projection.
func (w LSTMWeights) OutputSize() int32 {
	if w.Output > 0 {
		return w.Output
	}

	return w.Cell
}

// LSTMAttributes lays out the 23 auxiliary operands that follow the primary
// input, including the zero-initialised output and cell state variables for
// the given batch size.
func LSTMAttributes(w LSTMWeights, batch int32) Attributes {
	out := w.OutputSize()

	opt := func(name string, shape []int32, v []float32) ConstTensor {
		if v == nil {
			return Absent()
		}

		return Const(name, shape, v)
	}

	inW := []int32{w.Cell, w.Input}
	recW := []int32{w.Cell, out}
	vec := []int32{w.Cell}

	return Attributes{
		Constants: []ConstTensor{
			opt("input_to_input", inW, w.InputToInput),
			opt("input_to_forget", inW, w.InputToForget),
			opt("input_to_cell", inW, w.InputToCell),
			opt("input_to_output", inW, w.InputToOutput),
			opt("recurrent_to_input", recW, w.RecurrentToInput),
			opt("recurrent_to_forget", recW, w.RecurrentToForget),
			opt("recurrent_to_cell", recW, w.RecurrentToCell),
			opt("recurrent_to_output", recW, w.RecurrentToOutput),
			opt("cell_to_input", vec, w.CellToInput),
			opt("cell_to_forget", vec, w.CellToForget),
			opt("cell_to_output", vec, w.CellToOutput),
			opt("input_gate_bias", vec, w.InputGateBias),
			opt("forget_gate_bias", vec, w.ForgetBias),
			opt("cell_gate_bias", vec, w.CellBias),
			opt("output_gate_bias", vec, w.OutputBias),
			opt("projection_weights", []int32{out, w.Cell}, w.Projection),
			opt("projection_bias", []int32{out}, w.ProjectionBias),
			State("output_state", dtype.Float32, []int32{batch, out}),
			State("cell_state", dtype.Float32, []int32{batch, w.Cell}),
			opt("input_layer_norm", vec, w.InputLayerNorm),
			opt("forget_layer_norm", vec, w.ForgetLayerNorm),
			opt("cell_layer_norm", vec, w.CellLayerNorm),
			opt("output_layer_norm", vec, w.OutputLayerNorm),
		},
		Options: graph.Options{CellClip: w.CellClip, ProjClip: w.ProjClip},
	}
}
