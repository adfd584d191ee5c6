package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/config"
	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/logger"
)

// Name is the backend identifier.
const Name = "ort"

// Backend computes float32 operators by translating each one into a
// single-operator ONNX model and running it in ONNX Runtime.
type Backend struct {
	cfg config.RuntimeConfig

	mu     sync.Mutex
	env    *Environment
	envErr error
}

// NewBackend returns an ONNX Runtime backend. The runtime library is loaded
// on first use.
func NewBackend(cfg config.RuntimeConfig) *Backend {
	return &Backend{cfg: cfg}
}

func (*Backend) Name() string { return Name }

// Available reports ErrUnavailable when the ONNX Runtime library cannot be
// found or loaded.
func (b *Backend) Available() error {
	if _, err := b.environment(); err != nil {
		return fmt.Errorf("%w: %s: %v", backend.ErrUnavailable, Name, err)
	}

	return nil
}

func (*Backend) Supports(g *graph.Graph, op *graph.Operator) bool {
	return Translatable(g, op)
}

func (b *Backend) Prepare(g *graph.Graph, op *graph.Operator) (backend.Kernel, error) {
	env, err := b.environment()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", backend.ErrUnavailable, Name, err)
	}

	tr, err := translate(g, op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrNotSupported, err)
	}

	path, err := writeModel(tr.model)
	if err != nil {
		return nil, err
	}

	runner, err := env.NewRunner(op.Kind.String(), path)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	logger.Log.Debug("ort session created", "op", op.Kind.String(), "nodes", len(tr.model.Nodes), "model", path)

	return &kernel{runner: runner, path: path, operands: tr.operands}, nil
}

// Close releases the ONNX Runtime environment.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.env == nil {
		return nil
	}

	err := b.env.Close()
	b.env = nil

	return err
}

func (b *Backend) environment() (*Environment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.env != nil || b.envErr != nil {
		return b.env, b.envErr
	}

	info, err := Bootstrap(b.cfg)
	if err != nil {
		b.envErr = err
		return nil, err
	}

	b.env, b.envErr = NewEnvironment(RunnerConfig{LibraryPath: info.LibraryPath, APIVersion: b.cfg.ORTAPIVersion})
	if b.envErr == nil {
		logger.Log.Debug("ort runtime loaded", "library", info.LibraryPath, "version", info.Version)
	}

	return b.env, b.envErr
}

func writeModel(m *Model) (string, error) {
	f, err := os.CreateTemp("", "opverify-*.onnx")
	if err != nil {
		return "", fmt.Errorf("create model file: %w", err)
	}

	_, werr := f.Write(m.Marshal())
	if err := errors.Join(werr, f.Close()); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write model file: %w", err)
	}

	return f.Name(), nil
}

type kernel struct {
	runner   *Runner
	path     string
	operands []int
}

func (k *kernel) Run(ctx context.Context, in, out []*backend.Buffer) error {
	feeds := make(map[string]*Tensor, len(k.operands))

	for _, j := range k.operands {
		data, err := dtype.Decode[float32](in[j].Data)
		if err != nil {
			return err
		}

		t, err := NewTensor(data, dims64(in[j].Shape))
		if err != nil {
			return fmt.Errorf("operand %d: %w", j, err)
		}

		feeds[fmt.Sprintf("in%d", j)] = t
	}

	results, err := k.runner.Run(ctx, feeds)
	if err != nil {
		return err
	}

	data, err := ExtractFloat32(results["out0"])
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if len(data) != out[0].Len() {
		return fmt.Errorf("%w: ort produced %d elements, want %d", graph.ErrInvalidShape, len(data), out[0].Len())
	}

	copy(out[0].Data, dtype.Encode(data))

	return nil
}

func (k *kernel) Close() error {
	k.runner.Close()
	return os.Remove(k.path)
}
