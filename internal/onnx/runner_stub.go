//go:build windows || (js && wasm)

package onnx

import (
	"context"
	"errors"
	"fmt"
)

var errNoNativeRunner = errors.New("native onnx runner is unavailable on this platform")

// RunnerConfig holds ORT library settings for creating an Environment.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// Environment is unavailable in windows and js/wasm builds.
type Environment struct{}

// NewEnvironment always returns an error in windows and js/wasm builds.
func NewEnvironment(RunnerConfig) (*Environment, error) {
	return nil, errNoNativeRunner
}

func (e *Environment) Close() error { return nil }

// Runner is unavailable in windows and js/wasm builds.
type Runner struct {
	name string
}

func (e *Environment) NewRunner(name, _ string) (*Runner, error) {
	return nil, fmt.Errorf("graph %q: %w", name, errNoNativeRunner)
}

func (r *Runner) Run(context.Context, map[string]*Tensor) (map[string]*Tensor, error) {
	return nil, fmt.Errorf("graph %q: %w", r.name, errNoNativeRunner)
}

func (r *Runner) Close() {}

func (r *Runner) Name() string {
	return r.name
}
