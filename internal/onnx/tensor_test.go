package onnx

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewTensor(t *testing.T) {
	t.Run("float32 ok", func(t *testing.T) {
		tt, err := NewTensor([]float32{1, 2, 3, 4}, []int64{2, 2})
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}

		if tt.DType() != DTypeFloat32 {
			t.Fatalf("expected dtype float32, got %s", tt.DType())
		}

		if diff := cmp.Diff([]int64{2, 2}, tt.Shape()); diff != "" {
			t.Fatalf("shape (-want +got):\n%s", diff)
		}

		got, err := ExtractFloat32(tt)
		if err != nil {
			t.Fatalf("ExtractFloat32 failed: %v", err)
		}

		if diff := cmp.Diff([]float32{1, 2, 3, 4}, got); diff != "" {
			t.Fatalf("data (-want +got):\n%s", diff)
		}
	})

	t.Run("scalar", func(t *testing.T) {
		if _, err := NewTensor([]float32{7}, nil); err != nil {
			t.Fatalf("NewTensor scalar: %v", err)
		}
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := NewTensor([]int64{1, 2, 3}, []int64{2, 2})
		if err == nil {
			t.Fatal("expected shape mismatch error")
		}

		if !strings.Contains(err.Error(), "expects 4 elements, got 3") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("negative dim", func(t *testing.T) {
		if _, err := NewTensor([]float32{}, []int64{-1}); err == nil {
			t.Fatal("expected negative dim error")
		}
	})
}

func TestNewTensorCopiesInput(t *testing.T) {
	data := []float32{1, 2}

	tt, err := NewTensor(data, []int64{2})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	data[0] = 99

	got, _ := ExtractFloat32(tt)
	if got[0] != 1 {
		t.Fatalf("tensor aliases caller slice: %v", got)
	}
}

func TestExtractFloat32RejectsInt64(t *testing.T) {
	tt, err := NewTensor([]int64{1}, []int64{1})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	if tt.DType() != DTypeInt64 {
		t.Fatalf("dtype = %s, want int64", tt.DType())
	}

	if _, err := ExtractFloat32(tt); err == nil {
		t.Fatal("ExtractFloat32(int64) = nil error")
	}

	if _, err := ExtractFloat32(nil); err == nil {
		t.Fatal("ExtractFloat32(nil) = nil error")
	}
}
