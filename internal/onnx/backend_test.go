package onnx_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/config"
	"github.com/example/go-opverify/internal/harness"
	"github.com/example/go-opverify/internal/onnx"
	"github.com/example/go-opverify/internal/reference"
	"github.com/example/go-opverify/internal/suite"
	"github.com/example/go-opverify/internal/testutil"
)

func TestBackendUnavailableWithoutLibrary(t *testing.T) {
	onnx.Shutdown()
	t.Cleanup(onnx.Shutdown)

	b := onnx.NewBackend(config.RuntimeConfig{ORTLibraryPath: filepath.Join(t.TempDir(), "missing.so")})

	if err := b.Available(); !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("Available() = %v, want ErrUnavailable", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDefaultScenariosAgainstORT(t *testing.T) {
	lib := testutil.RequireONNXRuntime(t)

	onnx.Shutdown()
	t.Cleanup(onnx.Shutdown)

	ort := onnx.NewBackend(config.RuntimeConfig{ORTLibraryPath: lib, ORTAPIVersion: 23})
	t.Cleanup(func() { _ = ort.Close() })

	if err := ort.Available(); err != nil {
		t.Skipf("ONNX Runtime not loadable: %v", err)
	}

	reg, err := backend.NewRegistry(reference.New(), ort)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	scenarios, err := suite.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}

	float, err := scenarios.Filter("^float$")
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}

	runner := suite.NewRunner(harness.New(reg), suite.RunnerConfig{
		Reference:   []string{reference.Name},
		Accelerated: []string{onnx.Name},
	}, nil)

	results, err := runner.Run(context.Background(), float, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, r := range results {
		if r.Status != suite.StatusPass {
			t.Errorf("%s: %s %s", r.Name, r.Status, r.Reason)
		}
	}
}
