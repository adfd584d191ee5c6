// Package backend defines the contract between the execution harness and the
// numeric backends that compute operators, plus the ordered backend registry
// and the per-operator partitioning rule.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

var (
	// ErrNoBackend is returned when none of the requested backends is usable.
	ErrNoBackend = errors.New("backend: no usable backend")
	// ErrNotSupported is returned when no usable backend supports an operator.
	ErrNotSupported = errors.New("backend: operator not supported")
	// ErrUnavailable is returned by Available when a backend cannot run here.
	ErrUnavailable = errors.New("backend: unavailable")
)

// Buffer is the storage of one tensor inside an execution context.
type Buffer struct {
	Type  dtype.ElementType
	Shape []int32
	Quant graph.QuantParams
	Data  []byte
}

// NewBuffer allocates storage for t. Constant payloads are copied; every other
// tensor starts zeroed.
func NewBuffer(t *graph.Tensor) *Buffer {
	b := &Buffer{
		Type:  t.Type,
		Shape: append([]int32{}, t.Shape...),
		Quant: t.QuantOrDefault(),
	}

	if t.IsConstant() {
		b.Data = append([]byte{}, t.Data...)
	} else {
		b.Data = make([]byte, max(t.ByteSize(), 0))
	}

	return b
}

// Len returns the element count.
func (b *Buffer) Len() int {
	if b == nil || b.Type.Size() == 0 {
		return 0
	}

	return len(b.Data) / b.Type.Size()
}

// Int32s decodes an int32 index or shape operand.
func (b *Buffer) Int32s() ([]int32, error) {
	if b == nil {
		return nil, errors.New("backend: missing index operand")
	}

	if b.Type != dtype.Int32 {
		return nil, fmt.Errorf("%w: index operand is %s, want int32", graph.ErrTypeMismatch, b.Type)
	}

	return dtype.Decode[int32](b.Data)
}

// Kernel computes one prepared operator. Inputs holds nil for absent optional
// operands. Variable inputs may be updated in place.
type Kernel interface {
	Run(ctx context.Context, inputs, outputs []*Buffer) error
	Close() error
}

// KernelFunc adapts a function into a Kernel with nothing to release.
type KernelFunc func(ctx context.Context, inputs, outputs []*Buffer) error

func (f KernelFunc) Run(ctx context.Context, inputs, outputs []*Buffer) error {
	return f(ctx, inputs, outputs)
}

func (f KernelFunc) Close() error { return nil }

// Backend computes operators of a graph.
type Backend interface {
	// Name is the identifier used in backend preference lists.
	Name() string
	// Available returns nil when the backend can run on this host.
	Available() error
	// Supports reports whether the backend can compute op within g.
	Supports(g *graph.Graph, op *graph.Operator) bool
	// Prepare builds the kernel for op. It is called once per context.
	Prepare(g *graph.Graph, op *graph.Operator) (Kernel, error)
}
