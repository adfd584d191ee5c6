// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skipf with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestORTIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    ...
//	}
package testutil

import (
	"os"
	"testing"
)

var ortCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and otherwise returns its path. It checks (in order): the
// OPVERIFY_ORT_LIB env var, then ORT_LIBRARY_PATH, then common system paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"OPVERIFY_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)

			return ""
		}
	}

	for _, p := range ortCandidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set OPVERIFY_ORT_LIB or ORT_LIBRARY_PATH")

	return ""
}
