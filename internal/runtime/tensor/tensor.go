package tensor

import (
	"errors"
	"fmt"
	"iter"
)

// Tensor is a dense, row-major float32 tensor. The reference backend
// dequantizes operands into tensors, computes, and requantizes the result.
type Tensor struct {
	shape []int64
	data  []float32
}

// New copies data and shape into a tensor, checking that they agree.
func New(data []float32, shape []int64) (*Tensor, error) {
	n, err := elemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != n {
		return nil, fmt.Errorf("tensor: %d values for shape %v (%d elements)", len(data), shape, n)
	}

	return newOwned(append([]float32(nil), data...), append([]int64(nil), shape...)), nil
}

// newOwned adopts data and shape without copying or validation.
func newOwned(data []float32, shape []int64) *Tensor {
	return &Tensor{shape: shape, data: data}
}

func Zeros(shape []int64) (*Tensor, error) {
	n, err := elemCount(shape)
	if err != nil {
		return nil, err
	}

	return newOwned(make([]float32, n), append([]int64(nil), shape...)), nil
}

func (t *Tensor) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the underlying tensor data.
func (t *Tensor) Data() []float32 {
	if t == nil {
		return nil
	}

	return append([]float32(nil), t.data...)
}

// RawData returns the underlying data slice.
// Callers must treat it as read-only.
func (t *Tensor) RawData() []float32 {
	if t == nil {
		return nil
	}

	return t.data
}

func (t *Tensor) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

func (t *Tensor) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}

	dup, _ := New(t.data, t.shape)

	return dup
}

// Reshape returns a tensor with a new shape and shared values.
func (t *Tensor) Reshape(shape []int64) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: reshape on nil tensor")
	}

	total, err := elemCount(shape)
	if err != nil {
		return nil, err
	}

	if total != len(t.data) {
		return nil, fmt.Errorf("tensor: cannot reshape %v (%d elements) to %v (%d elements)", t.shape, len(t.data), shape, total)
	}

	return &Tensor{shape: append([]int64(nil), shape...), data: append([]float32(nil), t.data...)}, nil
}

// Map applies fn to every element and returns a new tensor.
func (t *Tensor) Map(fn func(float32) float32) *Tensor {
	if t == nil {
		return nil
	}

	out := make([]float32, len(t.data))
	for i, v := range t.data {
		out[i] = fn(v)
	}

	return newOwned(out, append([]int64(nil), t.shape...))
}

// Rows yields consecutive writable windows of n elements.
func (t *Tensor) Rows(n int) iter.Seq[[]float32] {
	return func(yield func([]float32) bool) {
		if t == nil || n <= 0 {
			return
		}

		for lo := 0; lo+n <= len(t.data); lo += n {
			if !yield(t.data[lo : lo+n : lo+n]) {
				return
			}
		}
	}
}
