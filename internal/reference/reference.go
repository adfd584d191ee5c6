// Package reference implements cpuref, the portable backend every scenario
// is checked against. Quantized operands are dequantized with
// real = (raw - zero_point) * scale, the operator is computed in float32 on
// the runtime/tensor substrate, and results are requantized with
// round-half-away-from-zero and saturation to the output type.
package reference

import (
	"context"
	"fmt"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/graph"
)

// Name is the backend identifier.
const Name = "cpuref"

type kernelFunc func(op *graph.Operator, in, out []*backend.Buffer) error

// Backend is the reference CPU backend. It supports every operator kind.
type Backend struct{}

// New returns the reference backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return Name }

func (*Backend) Available() error { return nil }

func (*Backend) Supports(_ *graph.Graph, op *graph.Operator) bool {
	_, ok := kernelFor(op.Kind)
	return ok
}

func (*Backend) Prepare(_ *graph.Graph, op *graph.Operator) (backend.Kernel, error) {
	fn, ok := kernelFor(op.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", backend.ErrNotSupported, op.Kind, Name)
	}

	o := *op

	return backend.KernelFunc(func(ctx context.Context, in, out []*backend.Buffer) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		return fn(&o, in, out)
	}), nil
}

func kernelFor(kind graph.OpKind) (kernelFunc, bool) {
	switch kind.Family() {
	case graph.FamilyUnary, graph.FamilyActivation:
		return runUnary, true
	case graph.FamilyBinary:
		return runBinary, true
	case graph.FamilyComparison:
		return runComparison, true
	case graph.FamilyLogical:
		return runLogical, true
	case graph.FamilyConvolution:
		switch kind {
		case graph.OpConv2D:
			return runConv2D, true
		case graph.OpDepthwiseConv2D:
			return runDepthwiseConv2D, true
		default:
			return runFullyConnected, true
		}
	case graph.FamilyPooling:
		return runPool, true
	case graph.FamilyShape:
		return runDataMovement, true
	case graph.FamilyNormalization:
		return runNormalization, true
	}

	switch kind {
	case graph.OpCast:
		return runCast, true
	case graph.OpUnidirectionalSequenceLSTM:
		return runLSTM, true
	}

	return nil, false
}
