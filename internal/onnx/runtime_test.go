package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-opverify/internal/config"
)

func fakeLib(t *testing.T, name string) string {
	t.Helper()

	lib := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(lib, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write fake lib: %v", err)
	}

	return lib
}

func TestDetectRuntimePrefersOPVERIFYORTLIB(t *testing.T) {
	lib := fakeLib(t, "libonnxruntime.so")

	t.Setenv("OPVERIFY_ORT_LIB", lib)
	t.Setenv("ORT_LIBRARY_PATH", filepath.Join(t.TempDir(), "does-not-exist"))

	info, err := DetectRuntime(config.RuntimeConfig{})
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}

	if info.LibraryPath != lib {
		t.Fatalf("expected %q, got %q", lib, info.LibraryPath)
	}
}

func TestDetectRuntimeVersion(t *testing.T) {
	lib := fakeLib(t, "libonnxruntime.so.1.22.0")
	t.Setenv("ORT_VERSION", "")

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: lib})
	if err != nil {
		t.Fatalf("DetectRuntime: %v", err)
	}

	if info.Version != "1.22.0" {
		t.Errorf("Version = %q, want 1.22.0", info.Version)
	}

	info, err = DetectRuntime(config.RuntimeConfig{ORTLibraryPath: lib, ORTVersion: "1.23.1"})
	if err != nil {
		t.Fatalf("DetectRuntime: %v", err)
	}

	if info.Version != "1.23.1" {
		t.Errorf("Version = %q, want configured 1.23.1", info.Version)
	}
}

func TestDetectRuntimeMissingPath(t *testing.T) {
	_, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: filepath.Join(t.TempDir(), "missing.so")})
	if err == nil {
		t.Fatal("DetectRuntime = nil error for a missing library")
	}
}

func TestBootstrapRunsOnce(t *testing.T) {
	Shutdown()
	t.Cleanup(Shutdown)

	lib1 := fakeLib(t, "lib1.so")
	lib2 := fakeLib(t, "lib2.so")

	info1, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib1})
	if err != nil {
		t.Fatalf("first bootstrap failed: %v", err)
	}

	info2, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib2})
	if err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	if info1.LibraryPath != lib1 || !info1.Initialized {
		t.Fatalf("first bootstrap = %+v", info1)
	}

	if info2.LibraryPath != lib1 {
		t.Fatalf("expected once semantics to keep %q, got %q", lib1, info2.LibraryPath)
	}

	Shutdown()

	info3, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib2})
	if err != nil {
		t.Fatalf("bootstrap after shutdown: %v", err)
	}

	if info3.LibraryPath != lib2 {
		t.Fatalf("after Shutdown got %q, want %q", info3.LibraryPath, lib2)
	}
}
