package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/compare"
)

// DualResult holds the outputs of one reference and one accelerated run of
// the same graph over the same inputs.
type DualResult struct {
	Reference   []compare.TensorView
	Accelerated []compare.TensorView
	// Assignments records where each operator ran in the accelerated context.
	Assignments []backend.Assignment
}

// RunDual loads buf twice, runs refBackends alone in one context and
// accBackends attached in the other, and returns both output sets. inputs
// holds one raw little-endian payload per graph input.
func (h *Harness) RunDual(ctx context.Context, buf []byte, inputs [][]byte, refBackends, accBackends []string) (*DualResult, error) {
	ref, err := h.runOnce(ctx, buf, inputs, refBackends, nil)
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}

	acc, err := h.runOnce(ctx, buf, inputs, refBackends, accBackends)
	if err != nil {
		return nil, fmt.Errorf("accelerated run: %w", err)
	}

	return &DualResult{Reference: ref.outputs, Accelerated: acc.outputs, Assignments: acc.assignments}, nil
}

type runOutput struct {
	outputs     []compare.TensorView
	assignments []backend.Assignment
}

func (h *Harness) runOnce(ctx context.Context, buf []byte, inputs [][]byte, backends, accel []string) (out runOutput, err error) {
	c, err := h.CreateExecutionContext(buf, backends)
	if err != nil {
		return out, err
	}

	defer func() {
		err = errors.Join(err, c.Close())
	}()

	if accel != nil {
		if err := h.AttachAccelerator(c, accel); err != nil {
			return out, err
		}
	}

	if len(inputs) != c.NumInputs() {
		return out, fmt.Errorf("%w: graph has %d inputs, got %d payloads", ErrExecution, c.NumInputs(), len(inputs))
	}

	for i, raw := range inputs {
		if err := c.FillRaw(i, raw); err != nil {
			return out, err
		}
	}

	if err := c.Invoke(ctx); err != nil {
		return out, err
	}

	out.outputs = make([]compare.TensorView, c.NumOutputs())
	for i := range out.outputs {
		if out.outputs[i], err = c.Output(i); err != nil {
			return out, err
		}
	}

	out.assignments = c.Assignments()

	return out, nil
}
