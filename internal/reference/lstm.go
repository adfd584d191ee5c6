package reference

import (
	"fmt"
	"math"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/runtime/tensor"
)

// layerNormEpsilon matches the variance floor of gate layer normalization.
const layerNormEpsilon = 1e-8

type lstmGate struct {
	input, recurrent, peephole, bias, norm *tensor.Tensor
}

func operand(in []*backend.Buffer, i int) *tensor.Tensor {
	if i >= len(in) || in[i] == nil {
		return nil
	}

	return Dequantize(in[i])
}

// runLSTM evaluates a time-major [time, batch, input] unidirectional LSTM.
// Without input-gate weights the input gate is coupled to the forget gate
// (1 - f). Peephole, projection and layer-norm operands are optional. The
// output and cell state operands are updated in place.
func runLSTM(op *graph.Operator, in, out []*backend.Buffer) error {
	if len(in) != graph.LSTMOperandCount {
		return fmt.Errorf("%w: LSTM has %d operands", graph.ErrInvalidGraph, len(in))
	}

	x := Dequantize(in[graph.LSTMInput])
	xs := x.Shape()
	if len(xs) != 3 {
		return fmt.Errorf("%w: LSTM input %v", graph.ErrInvalidShape, xs)
	}

	steps, batch, inputSize := xs[0], xs[1], xs[2]

	gates := [4]lstmGate{}
	for g, ops := range [4][5]int{
		{graph.LSTMInputToInput, graph.LSTMRecurrentToInput, graph.LSTMCellToInput, graph.LSTMInputGateBias, graph.LSTMInputLayerNorm},
		{graph.LSTMInputToForget, graph.LSTMRecurrentToForget, graph.LSTMCellToForget, graph.LSTMForgetBias, graph.LSTMForgetLayerNorm},
		{graph.LSTMInputToCell, graph.LSTMRecurrentToCell, -1, graph.LSTMCellBias, graph.LSTMCellLayerNorm},
		{graph.LSTMInputToOutput, graph.LSTMRecurrentToOutput, graph.LSTMCellToOutput, graph.LSTMOutputBias, graph.LSTMOutputLayerNorm},
	} {
		gates[g] = lstmGate{
			input:     operand(in, ops[0]),
			recurrent: operand(in, ops[1]),
			bias:      operand(in, ops[3]),
			norm:      operand(in, ops[4]),
		}
		if ops[2] >= 0 {
			gates[g].peephole = operand(in, ops[2])
		}
	}

	for g := 1; g < len(gates); g++ {
		if gates[g].input == nil || gates[g].recurrent == nil {
			return fmt.Errorf("%w: LSTM gate %d weights missing", graph.ErrInvalidGraph, g)
		}
	}

	cifg := gates[0].input == nil
	proj := operand(in, graph.LSTMProjectionWeights)
	projBias := operand(in, graph.LSTMProjectionBias)
	outState, cellState := in[graph.LSTMOutputState], in[graph.LSTMCellState]

	if outState == nil || cellState == nil {
		return fmt.Errorf("%w: LSTM state operands missing", graph.ErrInvalidGraph)
	}

	cellSize := gates[1].input.Shape()[0]
	outSize := cellSize
	if proj != nil {
		outSize = proj.Shape()[0]
	}

	h := Dequantize(outState)
	c := Dequantize(cellState)

	if int64(h.ElemCount()) != batch*outSize || int64(c.ElemCount()) != batch*cellSize {
		return fmt.Errorf("%w: LSTM state sizes %d/%d for batch %d", graph.ErrInvalidShape, h.ElemCount(), c.ElemCount(), batch)
	}

	if int64(out[0].Len()) != steps*batch*outSize {
		return fmt.Errorf("%w: LSTM output %v for %d steps x %d batch x %d", graph.ErrInvalidShape, out[0].Shape, steps, batch, outSize)
	}

	h, _ = h.Reshape([]int64{batch, outSize})
	c, _ = c.Reshape([]int64{batch, cellSize})

	result := make([]float32, 0, steps*batch*outSize)
	clip := func(v, limit float32) float32 {
		if limit > 0 {
			return min(max(v, -limit), limit)
		}

		return v
	}

	for t := range steps {
		xt, err := x.Narrow(0, t, 1)
		if err != nil {
			return err
		}

		xt, _ = xt.Reshape([]int64{batch, inputSize})

		pre := [3][]float32{}
		for g := range pre {
			if g == 0 && cifg {
				continue
			}

			if pre[g], err = gates[g].preActivation(xt, h, c); err != nil {
				return fmt.Errorf("LSTM gate %d: %w", g, err)
			}
		}

		cd := c.RawData()
		cellNew := make([]float32, len(cd))
		outGate := make([]float32, len(cd))

		for i := range cd {
			f := sigmoid(pre[1][i])
			var ig float32
			if cifg {
				ig = 1 - f
			} else {
				ig = sigmoid(pre[0][i])
			}

			cellNew[i] = clip(f*cd[i]+ig*tanh(pre[2][i]), op.Options.CellClip)
		}

		cNext, _ := tensor.New(cellNew, []int64{batch, cellSize})

		// The output gate peephole reads the updated cell state.
		og, err := gates[3].preActivation(xt, h, cNext)
		if err != nil {
			return fmt.Errorf("LSTM output gate: %w", err)
		}

		for i := range outGate {
			outGate[i] = sigmoid(og[i]) * tanh(cellNew[i])
		}

		m, _ := tensor.New(outGate, []int64{batch, cellSize})
		if proj != nil {
			if m, err = tensor.Linear(m, proj, projBias); err != nil {
				return fmt.Errorf("LSTM projection: %w", err)
			}

			m = m.Map(func(v float32) float32 { return clip(v, op.Options.ProjClip) })
		}

		h, c = m, cNext
		result = append(result, h.RawData()...)
	}

	Requantize(out[0], result)
	Requantize(outState, h.RawData())
	Requantize(cellState, c.RawData())

	return nil
}

// preActivation returns W_x x + W_h h (+ peephole * c), layer-normalized when
// norm weights are present, plus the gate bias.
func (g lstmGate) preActivation(x, h, c *tensor.Tensor) ([]float32, error) {
	acc, err := tensor.Linear(x, g.input, nil)
	if err != nil {
		return nil, err
	}

	rec, err := tensor.Linear(h, g.recurrent, nil)
	if err != nil {
		return nil, err
	}

	if acc, err = tensor.BroadcastAdd(acc, rec); err != nil {
		return nil, err
	}

	if g.peephole != nil {
		pc, err := tensor.BroadcastMul(c, g.peephole)
		if err != nil {
			return nil, err
		}

		if acc, err = tensor.BroadcastAdd(acc, pc); err != nil {
			return nil, err
		}
	}

	if g.norm != nil {
		if acc, err = tensor.LayerNorm(acc, g.norm, nil, layerNormEpsilon); err != nil {
			return nil, err
		}
	}

	if g.bias != nil {
		if acc, err = tensor.BroadcastAdd(acc, g.bias); err != nil {
			return nil, err
		}
	}

	return acc.RawData(), nil
}

func sigmoid(x float32) float32 { return float32(1 / (1 + math.Exp(-float64(x)))) }

func tanh(x float32) float32 { return float32(math.Tanh(float64(x))) }
