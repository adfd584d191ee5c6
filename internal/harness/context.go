// Package harness loads a serialized graph into isolated execution contexts
// and runs identical inputs through a reference and an accelerated context.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/compare"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/logger"
	"github.com/example/go-opverify/internal/metrics"
)

// State is the lifecycle position of an execution context.
type State uint8

const (
	Uninitialized State = iota
	Allocated
	AcceleratorAttached
	Invoked
	HasOutput
	Failed
)

func (s State) String() string {
	switch s {
	case Allocated:
		return "allocated"
	case AcceleratorAttached:
		return "accelerator-attached"
	case Invoked:
		return "invoked"
	case HasOutput:
		return "has-output"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// DefaultMaxTensorBytes bounds a single tensor and the whole context.
const DefaultMaxTensorBytes int64 = 256 << 20

// Limits bounds allocation per context.
type Limits struct {
	MaxTensorBytes int64
}

// Harness creates execution contexts over a backend registry.
type Harness struct {
	reg     *backend.Registry
	limits  Limits
	metrics *metrics.Metrics
}

// Option configures a Harness.
type Option func(*Harness)

// WithLimits overrides the allocation limits.
func WithLimits(l Limits) Option {
	return func(h *Harness) {
		if l.MaxTensorBytes > 0 {
			h.limits = l
		}
	}
}

// WithMetrics records invokes and allocations into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// New returns a harness resolving backend names through reg.
func New(reg *backend.Registry, opts ...Option) *Harness {
	h := &Harness{reg: reg, limits: Limits{MaxTensorBytes: DefaultMaxTensorBytes}}
	for _, o := range opts {
		o(h)
	}

	return h
}

// Context is one execution context. It owns private buffers for every
// tensor of its graph; two contexts never share buffers.
type Context struct {
	h           *Harness
	graph       *graph.Graph
	buffers     []*backend.Buffer
	fallback    []backend.Backend
	assignments []backend.Assignment
	kernels     []backend.Kernel
	state       State
	failure     error
}

// CreateExecutionContext deserializes buf, allocates every tensor and binds
// each operator to the first listed backend supporting it. On error nothing
// is retained.
func (h *Harness) CreateExecutionContext(buf []byte, backends []string) (*Context, error) {
	g, err := graph.Deserialize(buf)
	if err != nil {
		return nil, &GraphLoadError{Err: err}
	}

	resolved, err := h.reg.Resolve(backends)
	if err != nil {
		return nil, &GraphLoadError{Err: err}
	}

	assignments, err := backend.Partition(g, resolved)
	if err != nil {
		return nil, &GraphLoadError{Err: err}
	}

	c := &Context{h: h, graph: g, fallback: resolved}

	if err := c.allocate(); err != nil {
		c.release()
		return nil, err
	}

	if err := c.bind(assignments); err != nil {
		c.release()
		return nil, &GraphLoadError{Err: err}
	}

	c.state = Allocated

	logger.Log.Debug("execution context allocated",
		"graph", g.Description, "tensors", len(g.Tensors), "operators", len(g.Operators), "backends", backends)

	return c, nil
}

func (c *Context) allocate() error {
	limit := c.h.limits.MaxTensorBytes
	c.buffers = make([]*backend.Buffer, len(c.graph.Tensors))

	var total int64

	for i := range c.graph.Tensors {
		t := &c.graph.Tensors[i]

		n := t.ByteSize()
		if n < 0 || n > limit || total+n > limit {
			return &TensorAllocationError{Tensor: i, Name: t.Name, Shape: t.Shape, Bytes: n, Limit: limit}
		}

		total += n
		c.buffers[i] = backend.NewBuffer(t)
	}

	c.h.metrics.RecordAllocation(total)
	logger.Log.Debug("tensor buffers allocated", "bytes", humanize.IBytes(uint64(total)))

	return nil
}

// bind prepares a kernel per assignment, replacing any previous binding.
func (c *Context) bind(assignments []backend.Assignment) error {
	kernels := make([]backend.Kernel, len(assignments))

	for i, a := range assignments {
		k, err := a.Backend.Prepare(c.graph, &c.graph.Operators[a.Operator])
		if err != nil {
			closeKernels(kernels[:i])
			return fmt.Errorf("prepare %s: %w", a, err)
		}

		kernels[i] = k
	}

	closeKernels(c.kernels)
	c.kernels = kernels
	c.assignments = assignments

	return nil
}

// AttachAccelerator re-partitions the graph so every operator one of the
// listed backends supports runs there; the rest stay on the backends the
// context was created with. Only valid in Allocated.
func (h *Harness) AttachAccelerator(c *Context, backends []string) error {
	if c == nil || c.state != Allocated {
		return c.stateError("attach accelerator")
	}

	attach := func() error {
		accel, err := h.reg.Resolve(backends)
		if err != nil {
			return err
		}

		assignments, err := backend.Partition(c.graph, append(accel, c.fallback...))
		if err != nil {
			return err
		}

		return c.bind(assignments)
	}

	if err := attach(); err != nil {
		c.release()
		c.state = Uninitialized

		return &AcceleratorAttachError{Backends: backends, Err: err}
	}

	c.state = AcceleratorAttached

	for _, a := range c.assignments {
		logger.Log.Debug("operator assigned", "assignment", a.String())
	}

	return nil
}

// NumInputs returns the number of externally fillable graph inputs.
func (c *Context) NumInputs() int { return len(c.graph.Inputs) }

// NumOutputs returns the number of graph outputs.
func (c *Context) NumOutputs() int { return len(c.graph.Outputs) }

// InputTensor returns the descriptor of graph input i.
func (c *Context) InputTensor(i int) (*graph.Tensor, error) {
	if i < 0 || i >= len(c.graph.Inputs) {
		return nil, fmt.Errorf("%w: input %d of %d", graph.ErrInvalidShape, i, len(c.graph.Inputs))
	}

	return c.graph.Tensor(c.graph.Inputs[i]), nil
}

// Graph returns the loaded graph. It must not be modified.
func (c *Context) Graph() *graph.Graph { return c.graph }

// State returns the lifecycle state.
func (c *Context) State() State {
	if c == nil {
		return Uninitialized
	}

	return c.state
}

// Assignments lists which backend computes each operator.
func (c *Context) Assignments() []backend.Assignment {
	return append([]backend.Assignment(nil), c.assignments...)
}

// FillInput copies data into graph input i. The element type must match
// the tensor and len(data) must equal its element count.
func FillInput[T dtype.Native](c *Context, i int, data []T) error {
	if et := dtype.TypeOf[T](); c != nil && i >= 0 && i < c.NumInputs() {
		if t := c.graph.Tensor(c.graph.Inputs[i]); t.Type != et {
			return fmt.Errorf("%w: input %d is %s, got %s data", graph.ErrTypeMismatch, i, t.Type, et)
		}
	}

	return c.FillRaw(i, dtype.Encode(data))
}

// FillRaw copies a little-endian payload into graph input i.
func (c *Context) FillRaw(i int, raw []byte) error {
	if c == nil || (c.state != Allocated && c.state != AcceleratorAttached) {
		return c.stateError("fill input")
	}

	t, err := c.InputTensor(i)
	if err != nil {
		return err
	}

	buf := c.buffers[c.graph.Inputs[i]]
	if len(raw) != len(buf.Data) {
		return fmt.Errorf("%w: input %d %s holds %d elements, got %d bytes of %s",
			graph.ErrInvalidShape, i, graph.ShapeString(t.Shape), t.ElemCount(), len(raw), t.Type)
	}

	copy(buf.Data, raw)

	return nil
}

// Invoke runs every operator in order. A kernel failure moves the context
// to Failed; its outputs can no longer be read.
func (c *Context) Invoke(ctx context.Context) error {
	if c == nil || (c.state != Allocated && c.state != AcceleratorAttached) {
		return c.stateError("invoke")
	}

	c.state = Invoked

	for i, a := range c.assignments {
		op := &c.graph.Operators[a.Operator]

		in := make([]*backend.Buffer, len(op.Inputs))
		for j, idx := range op.Inputs {
			if idx != graph.OptionalInput {
				in[j] = c.buffers[idx]
			}
		}

		out := make([]*backend.Buffer, len(op.Outputs))
		for j, idx := range op.Outputs {
			out[j] = c.buffers[idx]
		}

		start := time.Now()
		err := c.kernels[i].Run(ctx, in, out)
		c.h.metrics.RecordInvoke(a.Backend.Name(), time.Since(start))

		if err != nil {
			c.state = Failed
			c.failure = &ExecutionError{Operator: a.Operator, Kind: a.Kind, Backend: a.Backend.Name(), Err: err}

			return c.failure
		}
	}

	c.state = HasOutput

	return nil
}

// Output returns an owned copy of graph output i. Only valid in HasOutput.
func (c *Context) Output(i int) (compare.TensorView, error) {
	if c == nil || c.state != HasOutput {
		return compare.TensorView{}, c.stateError("read output")
	}

	if i < 0 || i >= len(c.graph.Outputs) {
		return compare.TensorView{}, fmt.Errorf("%w: output %d of %d", graph.ErrInvalidShape, i, len(c.graph.Outputs))
	}

	b := c.buffers[c.graph.Outputs[i]]

	return compare.TensorView{
		Type:  b.Type,
		Shape: append([]int32{}, b.Shape...),
		Quant: b.Quant,
		Data:  append([]byte{}, b.Data...),
	}, nil
}

// Close releases kernels and buffers. It is safe to call more than once.
func (c *Context) Close() error {
	if c == nil {
		return nil
	}

	err := c.release()
	c.state = Uninitialized

	return err
}

func (c *Context) release() error {
	err := closeKernels(c.kernels)
	c.kernels = nil
	c.assignments = nil
	c.buffers = nil

	return err
}

func (c *Context) stateError(op string) error {
	if c == nil {
		return &NotAllocatedError{Op: op, State: Uninitialized}
	}

	return &NotAllocatedError{Op: op, State: c.state, Cause: c.failure}
}

func closeKernels(ks []backend.Kernel) error {
	var errs []error

	for _, k := range ks {
		if k == nil {
			continue
		}

		if err := k.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
