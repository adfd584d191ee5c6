package tensor

import (
	"fmt"
	"math"
)

// elemCount returns the number of elements of shape. A rank-0 shape holds
// one element.
func elemCount(shape []int64) (int, error) {
	n := int64(1)

	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: dimension %d of %v is negative", i, shape)
		}

		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("tensor: shape %v overflows int", shape)
		}

		n *= d
	}

	return int(n), nil
}

// normalizeAxis resolves a possibly negative axis against rank.
func normalizeAxis(axis, rank int) (int, error) {
	if axis < 0 {
		axis += rank
	}

	if axis < 0 || axis >= rank {
		return 0, fmt.Errorf("axis out of range for rank %d", rank)
	}

	return axis, nil
}

func rowMajorStrides(shape []int64) []int64 {
	if len(shape) == 0 {
		return nil
	}

	st := make([]int64, len(shape))
	st[len(st)-1] = 1

	for i := len(shape) - 2; i >= 0; i-- {
		st[i] = st[i+1] * shape[i+1]
	}

	return st
}

// unravel writes the coordinate of flat offset off into coord.
func unravel(off int64, shape, strides, coord []int64) {
	for i, d := range shape {
		if d == 0 {
			coord[i] = 0
			continue
		}

		coord[i] = off / strides[i] % d
	}
}

func ravel(coord, strides []int64) int64 {
	var off int64
	for i, c := range coord {
		off += c * strides[i]
	}

	return off
}
