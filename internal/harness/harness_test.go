package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/compare"
	"github.com/example/go-opverify/internal/cpuacc"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/opgraph"
	"github.com/example/go-opverify/internal/reference"
)

var (
	refBackends = []string{reference.Name}
	accBackends = []string{cpuacc.Name}
)

func newHarness(t *testing.T, extra ...backend.Backend) *Harness {
	t.Helper()

	reg, err := backend.NewRegistry(append([]backend.Backend{reference.New(), cpuacc.New()}, extra...)...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	return New(reg)
}

func serialize(t *testing.T, kind graph.OpKind, et dtype.ElementType, shapes opgraph.IOShapes, attrs opgraph.Attributes) []byte {
	t.Helper()

	_, buf, err := opgraph.Build(kind, et, shapes, attrs)
	if err != nil {
		t.Fatalf("Build %s: %v", kind, err)
	}

	return buf
}

func absModel(t *testing.T) []byte {
	t.Helper()

	shape := []int32{3, 1, 2}

	return serialize(t, graph.OpAbs, dtype.Float32, opgraph.IOShapes{Inputs: [][]int32{shape}, Outputs: [][]int32{shape}}, opgraph.Attributes{})
}

func depthwiseModel(t *testing.T) []byte {
	t.Helper()

	shape := []int32{1, 3, 3, 1}

	return serialize(t, graph.OpDepthwiseConv2D, dtype.UInt8, opgraph.IOShapes{Inputs: [][]int32{shape}, Outputs: [][]int32{shape}}, opgraph.Attributes{
		InputQuant:  &graph.QuantParams{Scale: 1},
		OutputQuant: &graph.QuantParams{Scale: 2},
		Constants: []opgraph.ConstTensor{
			opgraph.QuantConst("filter", []int32{1, 3, 3, 1}, []uint8{9, 8, 7, 6, 5, 4, 3, 2, 1}, graph.QuantParams{Scale: 1}),
			opgraph.QuantConst("bias", []int32{1}, []int32{10}, graph.QuantParams{Scale: 1}),
		},
		Options: graph.Options{Padding: graph.PaddingSame, DepthMultiplier: 1},
	})
}

// create builds an allocated context and registers its Close.
func create(t *testing.T, h *Harness, buf []byte, backends []string) *Context {
	t.Helper()

	c, err := h.CreateExecutionContext(buf, backends)
	if err != nil {
		t.Fatalf("CreateExecutionContext: %v", err)
	}

	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestDualRunAbsFloat32(t *testing.T) {
	h := newHarness(t)
	buf := absModel(t)
	input := []float32{-0.1, -0.2, -0.3, 0.1, 0.2, 0.3}

	ref := create(t, h, buf, refBackends)
	acc := create(t, h, buf, refBackends)

	if err := h.AttachAccelerator(acc, accBackends); err != nil {
		t.Fatalf("AttachAccelerator: %v", err)
	}

	if acc.State() != AcceleratorAttached {
		t.Fatalf("state = %s, want %s", acc.State(), AcceleratorAttached)
	}

	for _, c := range []*Context{ref, acc} {
		if err := FillInput(c, 0, input); err != nil {
			t.Fatalf("FillInput: %v", err)
		}

		if err := c.Invoke(context.Background()); err != nil {
			t.Fatalf("Invoke: %v", err)
		}
	}

	refOut, err := ref.Output(0)
	if err != nil {
		t.Fatalf("reference Output: %v", err)
	}

	accOut, err := acc.Output(0)
	if err != nil {
		t.Fatalf("accelerated Output: %v", err)
	}

	expected := compare.View([]int32{3, 1, 2}, []float32{0.1, 0.2, 0.3, 0.1, 0.2, 0.3})

	tr, err := compare.Triangular(expected, refOut, accOut, compare.Rule{})
	if err != nil {
		t.Fatalf("Triangular: %v", err)
	}

	if !tr.Pass() {
		t.Fatalf("report = %+v", tr)
	}

	got := acc.Assignments()
	if len(got) != 1 || got[0].Backend.Name() != cpuacc.Name {
		t.Fatalf("assignments = %v, want abs on %s", got, cpuacc.Name)
	}
}

func TestRunDualDepthwiseUint8(t *testing.T) {
	h := newHarness(t)

	res, err := h.RunDual(context.Background(), depthwiseModel(t), [][]byte{{0, 1, 2, 3, 4, 5, 6, 7, 8}}, refBackends, accBackends)
	if err != nil {
		t.Fatalf("RunDual: %v", err)
	}

	expected := compare.QuantView([]int32{1, 3, 3, 1}, []uint8{12, 23, 24, 34, 65, 61, 60, 104, 84}, graph.QuantParams{Scale: 2})

	if _, err := compare.Triangular(expected, res.Reference[0], res.Accelerated[0], compare.Rule{}); err != nil {
		t.Fatalf("Triangular: %v", err)
	}

	if res.Assignments[0].Backend.Name() != cpuacc.Name {
		t.Fatalf("depthwise ran on %s", res.Assignments[0].Backend.Name())
	}
}

func TestAttachFallsBackForUnsupportedOperators(t *testing.T) {
	h := newHarness(t)
	shape := []int32{4}
	buf := serialize(t, graph.OpLogicalAnd, dtype.Bool, opgraph.IOShapes{Inputs: [][]int32{shape, shape}, Outputs: [][]int32{shape}}, opgraph.Attributes{})

	res, err := h.RunDual(context.Background(), buf, [][]byte{{1, 1, 0, 0}, {1, 0, 1, 0}}, refBackends, accBackends)
	if err != nil {
		t.Fatalf("RunDual: %v", err)
	}

	if name := res.Assignments[0].Backend.Name(); name != reference.Name {
		t.Fatalf("logical and ran on %s, want fallback %s", name, reference.Name)
	}

	if diff := cmp.Diff([]byte{1, 0, 0, 0}, res.Accelerated[0].Data); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
}

func TestFillInputRoundTrip(t *testing.T) {
	h := newHarness(t)
	buf := serialize(t, graph.OpPack, dtype.Int16, opgraph.IOShapes{
		Inputs:  [][]int32{{2}},
		Outputs: [][]int32{{3, 2}},
	}, opgraph.Attributes{Options: graph.Options{Count: 3}})

	c := create(t, h, buf, refBackends)

	if n := c.NumInputs(); n != 3 {
		t.Fatalf("NumInputs = %d, want 3", n)
	}

	inputs := [][]int16{{1, -2}, {300, 4}, {-32768, 32767}}
	for i, in := range inputs {
		if err := FillInput(c, i, in); err != nil {
			t.Fatalf("FillInput %d: %v", i, err)
		}
	}

	if err := c.Invoke(context.Background()); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	out, err := c.Output(0)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}

	got, err := dtype.Decode[int16](out.Data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if diff := cmp.Diff([]int16{1, -2, 300, 4, -32768, 32767}, got); diff != "" {
		t.Fatalf("packed (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int32{3, 2}, out.Shape); diff != "" {
		t.Fatalf("shape (-want +got):\n%s", diff)
	}
}

func TestConstantsAreNotFillable(t *testing.T) {
	h := newHarness(t)
	c := create(t, h, depthwiseModel(t), refBackends)

	if n := c.NumInputs(); n != 1 {
		t.Fatalf("NumInputs = %d, want 1", n)
	}

	if err := c.FillRaw(1, []byte{1}); !errors.Is(err, graph.ErrInvalidShape) {
		t.Fatalf("FillRaw(filter) err = %v, want ErrInvalidShape", err)
	}
}

func TestFillInputChecks(t *testing.T) {
	h := newHarness(t)
	c := create(t, h, absModel(t), refBackends)

	tests := []struct {
		name string
		fill func() error
		want error
	}{
		{"wrong type", func() error { return FillInput(c, 0, []int32{1, 2, 3, 4, 5, 6}) }, graph.ErrTypeMismatch},
		{"wrong count", func() error { return FillInput(c, 0, []float32{1, 2}) }, graph.ErrInvalidShape},
		{"bad index", func() error { return FillInput(c, 1, []float32{1, 2, 3, 4, 5, 6}) }, graph.ErrInvalidShape},
		{"negative index", func() error { return c.FillRaw(-1, nil) }, graph.ErrInvalidShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fill(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStateViolations(t *testing.T) {
	h := newHarness(t)
	buf := absModel(t)

	t.Run("output before invoke", func(t *testing.T) {
		c := create(t, h, buf, refBackends)

		if _, err := c.Output(0); !errors.Is(err, ErrNotAllocated) {
			t.Fatalf("err = %v, want ErrNotAllocated", err)
		}
	})

	t.Run("invoke twice", func(t *testing.T) {
		c := create(t, h, buf, refBackends)

		if err := c.Invoke(context.Background()); err != nil {
			t.Fatalf("Invoke: %v", err)
		}

		if err := c.Invoke(context.Background()); !errors.Is(err, ErrNotAllocated) {
			t.Fatalf("second Invoke err = %v, want ErrNotAllocated", err)
		}

		if err := FillInput(c, 0, make([]float32, 6)); !errors.Is(err, ErrNotAllocated) {
			t.Fatalf("FillInput after Invoke err = %v, want ErrNotAllocated", err)
		}
	})

	t.Run("attach after attach", func(t *testing.T) {
		c := create(t, h, buf, refBackends)

		if err := h.AttachAccelerator(c, accBackends); err != nil {
			t.Fatalf("AttachAccelerator: %v", err)
		}

		if err := h.AttachAccelerator(c, accBackends); !errors.Is(err, ErrNotAllocated) {
			t.Fatalf("err = %v, want ErrNotAllocated", err)
		}
	})

	t.Run("closed context", func(t *testing.T) {
		c := create(t, h, buf, refBackends)

		if err := c.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		if err := c.Close(); err != nil {
			t.Fatalf("second Close: %v", err)
		}

		if err := c.Invoke(context.Background()); !errors.Is(err, ErrNotAllocated) {
			t.Fatalf("err = %v, want ErrNotAllocated", err)
		}
	})

	t.Run("nil context", func(t *testing.T) {
		var c *Context

		if err := h.AttachAccelerator(c, accBackends); !errors.Is(err, ErrNotAllocated) {
			t.Fatalf("err = %v, want ErrNotAllocated", err)
		}

		if c.State() != Uninitialized {
			t.Fatalf("state = %s", c.State())
		}
	})
}

func TestAttachUnknownBackend(t *testing.T) {
	h := newHarness(t)
	c := create(t, h, absModel(t), refBackends)

	err := h.AttachAccelerator(c, []string{"gpu-that-is-not-there"})
	if !errors.Is(err, ErrAcceleratorAttach) || !errors.Is(err, backend.ErrNoBackend) {
		t.Fatalf("err = %v, want ErrAcceleratorAttach wrapping ErrNoBackend", err)
	}

	if c.State() != Uninitialized {
		t.Fatalf("state after failed attach = %s", c.State())
	}
}

func TestCreateExecutionContextErrors(t *testing.T) {
	h := newHarness(t)

	t.Run("malformed buffer", func(t *testing.T) {
		_, err := h.CreateExecutionContext([]byte("not a graph"), refBackends)
		if !errors.Is(err, ErrGraphLoad) || !errors.Is(err, graph.ErrMalformedBuffer) {
			t.Fatalf("err = %v, want ErrGraphLoad wrapping ErrMalformedBuffer", err)
		}
	})

	t.Run("operator without backend", func(t *testing.T) {
		shape := []int32{4}
		buf := serialize(t, graph.OpLogicalNot, dtype.Bool, opgraph.IOShapes{Inputs: [][]int32{shape}, Outputs: [][]int32{shape}}, opgraph.Attributes{})

		_, err := h.CreateExecutionContext(buf, accBackends)
		if !errors.Is(err, ErrGraphLoad) || !errors.Is(err, backend.ErrNotSupported) {
			t.Fatalf("err = %v, want ErrGraphLoad wrapping ErrNotSupported", err)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		small := New(h.reg, WithLimits(Limits{MaxTensorBytes: 16}))

		_, err := small.CreateExecutionContext(absModel(t), refBackends)

		var ae *TensorAllocationError
		if !errors.As(err, &ae) || ae.Bytes != 24 || ae.Limit != 16 {
			t.Fatalf("err = %v, want TensorAllocationError for 24 bytes", err)
		}
	})

	t.Run("overflow", func(t *testing.T) {
		huge := []int32{1 << 30, 1 << 30, 1 << 30}
		g := &graph.Graph{
			Tensors: []graph.Tensor{
				{Name: "input", Type: dtype.Float32, Shape: huge},
				{Name: "output", Type: dtype.Float32, Shape: huge},
			},
			Operators: []graph.Operator{{Kind: graph.OpAbs, Inputs: []int32{0}, Outputs: []int32{1}}},
			Inputs:    []int32{0},
			Outputs:   []int32{1},
		}

		buf, err := graph.Serialize(g)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}

		_, err = h.CreateExecutionContext(buf, refBackends)

		var ae *TensorAllocationError
		if !errors.As(err, &ae) || ae.Bytes != -1 {
			t.Fatalf("err = %v, want overflowing TensorAllocationError", err)
		}
	})
}

// failing supports everything and fails every run.
type failing struct{}

var errKernel = errors.New("kernel exploded")

func (failing) Name() string                                { return "failing" }
func (failing) Available() error                            { return nil }
func (failing) Supports(*graph.Graph, *graph.Operator) bool { return true }

func (failing) Prepare(*graph.Graph, *graph.Operator) (backend.Kernel, error) {
	return backend.KernelFunc(func(context.Context, []*backend.Buffer, []*backend.Buffer) error {
		return errKernel
	}), nil
}

func TestExecutionFailureFailsClosed(t *testing.T) {
	h := newHarness(t, failing{})
	c := create(t, h, absModel(t), refBackends)

	if err := h.AttachAccelerator(c, []string{"failing"}); err != nil {
		t.Fatalf("AttachAccelerator: %v", err)
	}

	err := c.Invoke(context.Background())

	var ee *ExecutionError
	if !errors.As(err, &ee) || ee.Backend != "failing" || ee.Kind != graph.OpAbs || !errors.Is(err, errKernel) {
		t.Fatalf("err = %v, want ExecutionError from failing", err)
	}

	if c.State() != Failed {
		t.Fatalf("state = %s, want %s", c.State(), Failed)
	}

	_, err = c.Output(0)

	var ne *NotAllocatedError
	if !errors.As(err, &ne) || !errors.Is(ne.Cause, errKernel) {
		t.Fatalf("Output err = %v, want NotAllocatedError carrying the kernel failure", err)
	}
}

func TestContextsDoNotShareBuffers(t *testing.T) {
	h := newHarness(t)
	buf := absModel(t)

	a := create(t, h, buf, refBackends)
	b := create(t, h, buf, refBackends)

	if err := FillInput(a, 0, []float32{-1, -2, -3, -4, -5, -6}); err != nil {
		t.Fatalf("FillInput: %v", err)
	}

	if err := FillInput(b, 0, []float32{1, 1, 1, 1, 1, 1}); err != nil {
		t.Fatalf("FillInput: %v", err)
	}

	for _, c := range []*Context{a, b} {
		if err := c.Invoke(context.Background()); err != nil {
			t.Fatalf("Invoke: %v", err)
		}
	}

	out, err := a.Output(0)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}

	got, _ := dtype.Decode[float32](out.Data)
	if diff := cmp.Diff([]float32{1, 2, 3, 4, 5, 6}, got); diff != "" {
		t.Fatalf("context a (-want +got):\n%s", diff)
	}
}
