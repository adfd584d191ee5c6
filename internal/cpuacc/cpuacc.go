// Package cpuacc implements the accelerated CPU backend. Convolutions run as
// im2col plus a BLAS GEMM, 8-bit convolutions and fully-connected layers
// accumulate in int32 and requantize with Q31 fixed-point multipliers, and
// element-wise work is split across goroutines.
package cpuacc

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

// Name is the backend identifier.
const Name = "cpuacc"

type kernelFunc func(ctx context.Context, op *graph.Operator, in, out []*backend.Buffer) error

// Backend is the accelerated CPU backend.
type Backend struct{}

// New returns the accelerated backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return Name }

func (*Backend) Available() error { return nil }

// Supports accepts the element-wise, activation, convolution,
// fully-connected, pooling, reshape, concatenation and softmax operators
// over non-bool element types.
func (*Backend) Supports(g *graph.Graph, op *graph.Operator) bool {
	if _, ok := kernelFor(op.Kind); !ok {
		return false
	}

	for _, idx := range append(append([]int32{}, op.Inputs...), op.Outputs...) {
		t := g.Tensor(idx)
		if t == nil {
			continue
		}

		if t.Type == dtype.Bool {
			return false
		}
	}

	return true
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

		return fn(ctx, &o, in, out)
	}), nil
}

func kernelFor(kind graph.OpKind) (kernelFunc, bool) {
	switch kind.Family() {
	case graph.FamilyUnary, graph.FamilyActivation:
		return runUnary, true
	case graph.FamilyBinary:
		return runBinary, true
	case graph.FamilyConvolution:
		switch kind {
		case graph.OpConv2D:
			return plain(runConv2D), true
		case graph.OpDepthwiseConv2D:
			return plain(runDepthwiseConv2D), true
		default:
			return plain(runFullyConnected), true
		}
	case graph.FamilyPooling:
		return plain(runPool), true
	}

	switch kind {
	case graph.OpReshape:
		return plain(runReshape), true
	case graph.OpConcatenation:
		return plain(runConcat), true
	case graph.OpSoftmax:
		return runSoftmax, true
	}

	return nil, false
}

// plain adapts a kernel that does not observe the context.
func plain(fn func(op *graph.Operator, in, out []*backend.Buffer) error) kernelFunc {
	return func(_ context.Context, op *graph.Operator, in, out []*backend.Buffer) error {
		return fn(op, in, out)
	}
}

// Features lists the SIMD extensions detected on this host.
func Features() []string {
	var out []string

	switch runtime.GOARCH {
	case "amd64", "386":
		for _, f := range []struct {
			name string
			ok   bool
		}{
			{"sse4.1", cpu.X86.HasSSE41},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"fma", cpu.X86.HasFMA},
			{"avx512f", cpu.X86.HasAVX512F},
		} {
			if f.ok {
				out = append(out, f.name)
			}
		}
	case "arm64":
		for _, f := range []struct {
			name string
			ok   bool
		}{
			{"asimd", cpu.ARM64.HasASIMD},
			{"asimddp", cpu.ARM64.HasASIMDDP},
			{"sve", cpu.ARM64.HasSVE},
		} {
			if f.ok {
				out = append(out, f.name)
			}
		}
	}

	return out
}

// Describe summarises the backend configuration for diagnostics.
func Describe() string {
	feats := Features()
	if len(feats) == 0 {
		feats = []string{"generic"}
	}

	return fmt.Sprintf("%s/%s workers=%d features=%s", runtime.GOOS, runtime.GOARCH, Workers(), strings.Join(feats, ","))
}
