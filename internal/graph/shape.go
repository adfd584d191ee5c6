package graph

// BroadcastShape returns the NumPy-style broadcast of a and b, or false when
// the shapes are incompatible.
func BroadcastShape(a, b []int32) ([]int32, bool) {
	rank := max(len(a), len(b))
	out := make([]int32, rank)

	for i := range rank {
		da, db := int32(1), int32(1)
		if j := i - (rank - len(a)); j >= 0 {
			da = a[j]
		}

		if j := i - (rank - len(b)); j >= 0 {
			db = b[j]
		}

		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			return nil, false
		}
	}

	return out, true
}

// WindowOutput returns the output length of a sliding window over in, and the
// number of padding elements placed before the first element.
func WindowOutput(in, filter, stride, dilation int32, padding Padding) (out, padBefore int32) {
	stride = max(stride, 1)
	dilation = max(dilation, 1)
	effective := (filter-1)*dilation + 1

	if padding == PaddingValid {
		if in < effective {
			return 0, 0
		}

		return (in-effective)/stride + 1, 0
	}

	out = (in + stride - 1) / stride
	total := max((out-1)*stride+effective-in, 0)

	return out, total / 2
}

// NormalizeAxis maps a possibly negative axis into [0, rank).
func NormalizeAxis(axis int32, rank int) (int, bool) {
	a := int(axis)
	if a < 0 {
		a += rank
	}

	if a < 0 || a >= rank {
		return 0, false
	}

	return a, true
}
