package tensor

import (
	"errors"
	"fmt"
)

// Apply runs a layout plan against the tensor. Fill positions become fill.
func (t *Tensor) Apply(p Plan, fill float32) *Tensor {
	return newOwned(p.Apply(t.data, fill), append([]int64(nil), p.Shape...))
}

// Narrow slices the tensor along a single dimension.
func (t *Tensor) Narrow(dim int, start, length int64) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: narrow on nil tensor")
	}

	dim, err := normalizeAxis(dim, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("tensor: narrow: %w", err)
	}

	begin := make([]int64, len(t.shape))
	size := append([]int64(nil), t.shape...)
	begin[dim], size[dim] = start, length

	p, err := SlicePlan(t.shape, begin, size)
	if err != nil {
		return nil, fmt.Errorf("tensor: narrow: %w", err)
	}

	return t.Apply(p, 0), nil
}
