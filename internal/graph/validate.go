package graph

import (
	"fmt"
	"slices"
)

// Validate checks the structural invariants of the graph: tensor payloads
// match their shape and type, quantization is only attached to integer
// tensors, every operator index refers to a tensor in the graph, outputs do
// not alias inputs, and operators taken in order never read a tensor that is
// neither a graph input, a constant, a variable, nor produced earlier.
func (g *Graph) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil graph", ErrInvalidGraph)
	}

	for i := range g.Tensors {
		if err := validateTensor(i, &g.Tensors[i]); err != nil {
			return err
		}
	}

	n := int32(len(g.Tensors))
	checkIndex := func(what string, idx int32) error {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: %s references tensor %d, graph has %d tensors", ErrInvalidGraph, what, idx, n)
		}

		return nil
	}

	if len(g.Outputs) == 0 {
		return fmt.Errorf("%w: graph has no outputs", ErrInvalidGraph)
	}

	available := make([]bool, n)
	for _, idx := range g.Inputs {
		if err := checkIndex("graph input", idx); err != nil {
			return err
		}

		if g.Tensors[idx].IsConstant() {
			return fmt.Errorf("%w: graph input %d is a constant", ErrInvalidGraph, idx)
		}

		available[idx] = true
	}

	for i := range g.Tensors {
		if g.Tensors[i].IsConstant() || g.Tensors[i].Variable {
			available[i] = true
		}
	}

	produced := make([]bool, n)
	for oi, op := range g.Operators {
		if !op.Kind.Supported() {
			return fmt.Errorf("%w: operator %d has kind %s", ErrUnsupportedOperator, oi, op.Kind)
		}

		if len(op.Outputs) == 0 {
			return fmt.Errorf("%w: operator %d (%s) has no outputs", ErrInvalidGraph, oi, op.Kind)
		}

		for _, in := range op.Inputs {
			if in == OptionalInput {
				continue
			}

			if err := checkIndex(fmt.Sprintf("operator %d (%s) input", oi, op.Kind), in); err != nil {
				return err
			}

			if !available[in] {
				return fmt.Errorf("%w: operator %d (%s) reads tensor %d before it is produced", ErrInvalidGraph, oi, op.Kind, in)
			}
		}

		for _, out := range op.Outputs {
			if err := checkIndex(fmt.Sprintf("operator %d (%s) output", oi, op.Kind), out); err != nil {
				return err
			}

			if slices.Contains(op.Inputs, out) {
				return fmt.Errorf("%w: operator %d (%s) output %d aliases an input", ErrInvalidGraph, oi, op.Kind, out)
			}

			t := &g.Tensors[out]
			if t.IsConstant() || t.Variable || slices.Contains(g.Inputs, out) {
				return fmt.Errorf("%w: operator %d (%s) writes non-writable tensor %d", ErrInvalidGraph, oi, op.Kind, out)
			}

			if produced[out] {
				return fmt.Errorf("%w: tensor %d is produced by more than one operator", ErrInvalidGraph, out)
			}

			produced[out] = true
			available[out] = true
		}
	}

	for _, idx := range g.Outputs {
		if err := checkIndex("graph output", idx); err != nil {
			return err
		}

		if !available[idx] {
			return fmt.Errorf("%w: graph output %d is never produced", ErrInvalidGraph, idx)
		}
	}

	return nil
}

func validateTensor(i int, t *Tensor) error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: tensor %d (%q) has unknown element type %d", ErrTypeMismatch, i, t.Name, uint8(t.Type))
	}

	for d, dim := range t.Shape {
		if dim <= 0 {
			return fmt.Errorf("%w: tensor %d (%q) dimension %d is %d", ErrInvalidShape, i, t.Name, d, dim)
		}
	}

	if t.Quant != nil && !t.Type.IsInteger() && *t.Quant != DefaultQuant {
		return fmt.Errorf("%w: tensor %d (%q) of type %s carries quantization %+v", ErrTypeMismatch, i, t.Name, t.Type, *t.Quant)
	}

	if t.Data != nil {
		want := t.ByteSize()
		if want < 0 || int64(len(t.Data)) != want {
			return fmt.Errorf("%w: tensor %d (%q) payload is %d bytes, want %d", ErrInvalidShape, i, t.Name, len(t.Data), want)
		}

		if t.Variable {
			return fmt.Errorf("%w: tensor %d (%q) is both constant and variable", ErrInvalidGraph, i, t.Name)
		}
	}

	return nil
}
