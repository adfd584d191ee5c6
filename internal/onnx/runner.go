//go:build !windows && !(js && wasm)

package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// RunnerConfig holds ORT library settings for creating an Environment.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// Environment owns the loaded ORT library and one ORT env shared by every
// session created from it.
type Environment struct {
	mu      sync.Mutex
	runtime *ort.Runtime
	env     *ort.Env
}

// NewEnvironment loads the ORT library.
func NewEnvironment(cfg RunnerConfig) (*Environment, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = 23
	}

	runtime, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime %q: %w", cfg.LibraryPath, err)
	}

	env, err := runtime.NewEnv("opverify", ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("ort env: %w", err)
	}

	return &Environment{runtime: runtime, env: env}, nil
}

// Close releases the env and unloads the library. Safe to call multiple times.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.env != nil {
		e.env.Close()
		e.env = nil
	}

	if e.runtime != nil {
		err := e.runtime.Close()
		e.runtime = nil

		return err
	}

	return nil
}

// Runner wraps an ORT session for a single ONNX graph.
type Runner struct {
	name    string
	env     *Environment
	session *ort.Session
}

// NewRunner opens a session for the model file at path.
func (e *Environment) NewRunner(name, path string) (*Runner, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runtime == nil {
		return nil, fmt.Errorf("ort session for %q: environment closed", name)
	}

	session, err := e.runtime.NewSession(e.env, path, nil)
	if err != nil {
		return nil, fmt.Errorf("ort session for %q (%s): %w", name, path, err)
	}

	return &Runner{name: name, env: e, session: session}, nil
}

// Run executes the ONNX graph with the given named input tensors.
func (r *Runner) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	if r.session == nil {
		return nil, fmt.Errorf("run %q: runner closed", r.name)
	}

	ortInputs := make(map[string]*ort.Value, len(inputs))
	for name, t := range inputs {
		v, err := tensorToORT(r.env.runtime, t)
		if err != nil {
			closeORTValues(ortInputs)
			return nil, fmt.Errorf("input %q: %w", name, err)
		}

		ortInputs[name] = v
	}

	defer closeORTValues(ortInputs)

	ortOutputs, err := r.session.Run(ctx, ortInputs)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", r.name, err)
	}
	defer closeORTValues(ortOutputs)

	results := make(map[string]*Tensor, len(ortOutputs))
	for name, v := range ortOutputs {
		t, err := ortToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}

		results[name] = t
	}

	return results, nil
}

// Close releases the session. Safe to call multiple times.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}
}

func (r *Runner) Name() string {
	return r.name
}

func tensorToORT(runtime *ort.Runtime, t *Tensor) (*ort.Value, error) {
	switch data := t.Data().(type) {
	case []float32:
		return ort.NewTensorValue(runtime, data, t.Shape())
	case []int64:
		return ort.NewTensorValue(runtime, data, t.Shape())
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %T", data)
	}
}

func ortToTensor(v *ort.Value) (*Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	default:
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
