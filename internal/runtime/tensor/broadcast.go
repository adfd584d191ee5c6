package tensor

import "fmt"

// BroadcastBinary applies fn element-wise after aligning a and b on their
// trailing axes. Axes of size 1 stretch to match the other operand.
func BroadcastBinary(a, b *Tensor, fn func(x, y float32) float32) (*Tensor, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("tensor: broadcast needs two operands")
	}

	shape, err := broadcastShape(a.shape, b.shape)
	if err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}

	out, err := Zeros(shape)
	if err != nil {
		return nil, err
	}

	as, bs := stretchStrides(a.shape, len(shape)), stretchStrides(b.shape, len(shape))
	outStrides := rowMajorStrides(shape)
	coord := make([]int64, len(shape))

	for i := range out.data {
		unravel(int64(i), shape, outStrides, coord)
		out.data[i] = fn(a.data[ravel(coord, as)], b.data[ravel(coord, bs)])
	}

	return out, nil
}

func BroadcastAdd(a, b *Tensor) (*Tensor, error) {
	return BroadcastBinary(a, b, func(x, y float32) float32 { return x + y })
}

func BroadcastMul(a, b *Tensor) (*Tensor, error) {
	return BroadcastBinary(a, b, func(x, y float32) float32 { return x * y })
}

func broadcastShape(a, b []int64) ([]int64, error) {
	rank := max(len(a), len(b))
	out := make([]int64, rank)

	for i := range rank {
		da, db := dimFromEnd(a, rank-1-i), dimFromEnd(b, rank-1-i)

		switch {
		case da == db || da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			return nil, fmt.Errorf("shapes %v and %v do not broadcast", a, b)
		}
	}

	return out, nil
}

// dimFromEnd returns shape[len-1-k], or 1 past the leading axis.
func dimFromEnd(shape []int64, k int) int64 {
	if k >= len(shape) {
		return 1
	}

	return shape[len(shape)-1-k]
}

// stretchStrides returns row-major strides for shape left-padded to rank,
// with a zero stride on every axis of size 1.
func stretchStrides(shape []int64, rank int) []int64 {
	st := make([]int64, rank)
	step := int64(1)

	for k := range len(shape) {
		d := shape[len(shape)-1-k]
		if d != 1 {
			st[rank-1-k] = step
		}

		step *= d
	}

	return st
}
