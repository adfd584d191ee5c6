package tensor

import (
	"errors"
	"fmt"
)

// Plan describes a pure data-movement operation: output element i copies the
// source element at flat index Src[i], or the fill value when Src[i] < 0.
// For multi-input plans the source index space is the concatenation of the
// flattened inputs in order.
type Plan struct {
	Shape []int64
	Src   []int
}

// Apply executes the plan on float32 data.
func (p Plan) Apply(src []float32, fill float32) []float32 {
	out := make([]float32, len(p.Src))
	for i, s := range p.Src {
		if s < 0 {
			out[i] = fill
			continue
		}

		out[i] = src[s]
	}

	return out
}

// ApplyBytes executes the plan on a raw payload with the given element size.
// fill must hold exactly one element.
func (p Plan) ApplyBytes(src []byte, elemSize int, fill []byte) []byte {
	out := make([]byte, len(p.Src)*elemSize)
	for i, s := range p.Src {
		dst := out[i*elemSize : (i+1)*elemSize]
		if s < 0 {
			copy(dst, fill)
			continue
		}

		copy(dst, src[s*elemSize:(s+1)*elemSize])
	}

	return out
}

// mapCoords builds a plan by visiting every output coordinate; srcOf returns
// the source flat index for the coordinate or -1 for fill.
func mapCoords(outShape []int64, srcOf func(coord []int64) int) (Plan, error) {
	total, err := elemCount(outShape)
	if err != nil {
		return Plan{}, err
	}

	strides := rowMajorStrides(outShape)
	coord := make([]int64, len(outShape))
	src := make([]int, total)

	for i := range src {
		unravel(int64(i), outShape, strides, coord)
		src[i] = srcOf(coord)
	}

	return Plan{Shape: append([]int64(nil), outShape...), Src: src}, nil
}

// SlicePlan selects size[d] elements starting at begin[d] in every dimension.
// A size of -1 extends to the end of the dimension.
func SlicePlan(shape, begin, size []int64) (Plan, error) {
	rank := len(shape)
	if len(begin) != rank || len(size) != rank {
		return Plan{}, fmt.Errorf("tensor: slice begin/size rank %d/%d for shape %v", len(begin), len(size), shape)
	}

	outShape := make([]int64, rank)
	for d := range rank {
		n := size[d]
		if n == -1 {
			n = shape[d] - begin[d]
		}

		if begin[d] < 0 || n < 0 || begin[d]+n > shape[d] {
			return Plan{}, fmt.Errorf("tensor: slice [%d:+%d] out of bounds for dim %d size %d", begin[d], n, d, shape[d])
		}

		outShape[d] = n
	}

	strides := rowMajorStrides(shape)

	return mapCoords(outShape, func(c []int64) int {
		var off int64
		for d := range c {
			off += (c[d] + begin[d]) * strides[d]
		}

		return int(off)
	})
}

// StridedSlicePlan follows the begin/end/stride semantics of a strided slice
// with begin, end and shrink-axis bit masks. Shrunk axes are dropped from
// the output shape.
func StridedSlicePlan(shape, begin, end, strides []int64, beginMask, endMask, shrinkMask int32) (Plan, error) {
	rank := len(shape)
	if len(begin) != rank || len(end) != rank || len(strides) != rank {
		return Plan{}, fmt.Errorf("tensor: strided slice params rank mismatch for shape %v", shape)
	}

	starts := make([]int64, rank)
	counts := make([]int64, rank)
	var outShape []int64

	for d := range rank {
		st := strides[d]
		if st == 0 {
			return Plan{}, errors.New("tensor: strided slice stride must be non-zero")
		}

		dim := shape[d]
		b := clampIndex(begin[d], dim, st > 0)
		e := clampIndex(end[d], dim, st > 0)

		if beginMask&(1<<d) != 0 {
			if st > 0 {
				b = 0
			} else {
				b = dim - 1
			}
		}

		if endMask&(1<<d) != 0 {
			if st > 0 {
				e = dim
			} else {
				e = -1
			}
		}

		if shrinkMask&(1<<d) != 0 {
			b = begin[d]
			if b < 0 {
				b += dim
			}

			if b < 0 || b >= dim {
				return Plan{}, fmt.Errorf("tensor: strided slice shrink index %d out of range for dim %d", begin[d], dim)
			}

			starts[d], counts[d] = b, 1

			continue
		}

		var n int64
		if st > 0 && e > b {
			n = (e - b + st - 1) / st
		} else if st < 0 && e < b {
			n = (b - e - st - 1) / -st
		}

		starts[d], counts[d] = b, n
		outShape = append(outShape, n)
	}

	srcStrides := rowMajorStrides(shape)
	full := make([]int64, rank)
	fullStrides := rowMajorStrides(counts)

	total, err := elemCount(counts)
	if err != nil {
		return Plan{}, err
	}

	src := make([]int, total)
	for i := range src {
		unravel(int64(i), counts, fullStrides, full)

		var off int64
		for d := range rank {
			off += (starts[d] + full[d]*strides[d]) * srcStrides[d]
		}

		src[i] = int(off)
	}

	if outShape == nil {
		outShape = []int64{}
	}

	return Plan{Shape: outShape, Src: src}, nil
}

func clampIndex(idx, dim int64, forward bool) int64 {
	if idx < 0 {
		idx += dim
	}

	if forward {
		return min(max(idx, 0), dim)
	}

	return min(max(idx, -1), dim-1)
}

// PermutePlan reorders dimensions: output dimension i is input dimension perm[i].
func PermutePlan(shape []int64, perm []int) (Plan, error) {
	rank := len(shape)
	if len(perm) != rank {
		return Plan{}, fmt.Errorf("tensor: permutation %v for rank %d", perm, rank)
	}

	seen := make([]bool, rank)
	outShape := make([]int64, rank)

	for i, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return Plan{}, fmt.Errorf("tensor: invalid permutation %v", perm)
		}

		seen[p] = true
		outShape[i] = shape[p]
	}

	strides := rowMajorStrides(shape)

	return mapCoords(outShape, func(c []int64) int {
		var off int64
		for i, p := range perm {
			off += c[i] * strides[p]
		}

		return int(off)
	})
}

// GatherPlan takes slices along axis at the given indices; the indices shape
// replaces the axis in the output shape.
func GatherPlan(shape []int64, axis int, indices, indicesShape []int64) (Plan, error) {
	axis, err := normalizeAxis(axis, len(shape))
	if err != nil {
		return Plan{}, fmt.Errorf("tensor: gather: %w", err)
	}

	for i, idx := range indices {
		if idx < 0 || idx >= shape[axis] {
			return Plan{}, fmt.Errorf("tensor: gather index %d (%d) out of range for dim %d size %d", i, idx, axis, shape[axis])
		}
	}

	outer, inner := splitAt(shape, axis)
	outShape := append(append(append([]int64{}, shape[:axis]...), indicesShape...), shape[axis+1:]...)

	total, err := elemCount(outShape)
	if err != nil {
		return Plan{}, err
	}

	src := make([]int, 0, total)
	for o := range outer {
		for _, idx := range indices {
			base := (o*shape[axis] + idx) * inner
			for in := range inner {
				src = append(src, int(base+in))
			}
		}
	}

	return Plan{Shape: outShape, Src: src}, nil
}

// ConcatPlan joins shapes along axis. Every shape must match on the other
// dimensions.
func ConcatPlan(shapes [][]int64, axis int) (Plan, error) {
	if len(shapes) == 0 {
		return Plan{}, errors.New("tensor: concat requires at least one tensor")
	}

	first := shapes[0]
	rank := len(first)

	axis, err := normalizeAxis(axis, rank)
	if err != nil {
		return Plan{}, fmt.Errorf("tensor: concat: %w", err)
	}

	outShape := append([]int64(nil), first...)
	outShape[axis] = 0
	bases := make([]int64, len(shapes))

	var base int64
	for i, s := range shapes {
		if len(s) != rank {
			return Plan{}, fmt.Errorf("tensor: concat tensor %d rank %d does not match rank %d", i, len(s), rank)
		}

		for d := range rank {
			if d != axis && s[d] != first[d] {
				return Plan{}, fmt.Errorf("tensor: concat tensor %d shape %v does not match base shape %v on dim %d", i, s, first, d)
			}
		}

		bases[i] = base
		n, _ := elemCount(s)
		base += int64(n)
		outShape[axis] += s[axis]
	}

	outer, inner := splitAt(outShape, axis)

	total, err := elemCount(outShape)
	if err != nil {
		return Plan{}, err
	}

	src := make([]int, 0, total)
	for o := range outer {
		for i, s := range shapes {
			span := s[axis] * inner
			start := bases[i] + o*span

			for k := range span {
				src = append(src, int(start+k))
			}
		}
	}

	return Plan{Shape: outShape, Src: src}, nil
}

// SpaceToDepthPlan moves NHWC spatial blocks of size bs into the channel dimension.
func SpaceToDepthPlan(shape []int64, bs int64) (Plan, error) {
	if len(shape) != 4 || bs < 1 || shape[1]%bs != 0 || shape[2]%bs != 0 {
		return Plan{}, fmt.Errorf("tensor: space_to_depth block %d for shape %v", bs, shape)
	}

	c := shape[3]
	out := []int64{shape[0], shape[1] / bs, shape[2] / bs, c * bs * bs}
	strides := rowMajorStrides(shape)

	return mapCoords(out, func(k []int64) int {
		oc := k[3]
		by, bx, ic := oc/(bs*c), (oc/c)%bs, oc%c

		return int(k[0]*strides[0] + (k[1]*bs+by)*strides[1] + (k[2]*bs+bx)*strides[2] + ic)
	})
}

// DepthToSpacePlan is the inverse of SpaceToDepthPlan.
func DepthToSpacePlan(shape []int64, bs int64) (Plan, error) {
	if len(shape) != 4 || bs < 1 || shape[3]%(bs*bs) != 0 {
		return Plan{}, fmt.Errorf("tensor: depth_to_space block %d for shape %v", bs, shape)
	}

	oc := shape[3] / (bs * bs)
	out := []int64{shape[0], shape[1] * bs, shape[2] * bs, oc}
	strides := rowMajorStrides(shape)

	return mapCoords(out, func(k []int64) int {
		ic := ((k[1]%bs)*bs+k[2]%bs)*oc + k[3]

		return int(k[0]*strides[0] + (k[1]/bs)*strides[1] + (k[2]/bs)*strides[2] + ic)
	})
}

// SpaceToBatchPlan pads the spatial dimensions of an [N, spatial..., C]
// tensor by pads[d] = {before, after} and moves blocks into the batch.
// Padded positions map to -1.
func SpaceToBatchPlan(shape, block []int64, pads [][2]int64) (Plan, error) {
	m := len(block)
	if len(shape) < m+1 || len(pads) != m {
		return Plan{}, fmt.Errorf("tensor: space_to_batch block %v for shape %v", block, shape)
	}

	out := append([]int64(nil), shape...)
	blocks := int64(1)

	for d := range m {
		padded := shape[d+1] + pads[d][0] + pads[d][1]
		if block[d] < 1 || padded%block[d] != 0 {
			return Plan{}, fmt.Errorf("tensor: space_to_batch dim %d padded size %d not divisible by %d", d+1, padded, block[d])
		}

		out[d+1] = padded / block[d]
		blocks *= block[d]
	}

	out[0] = shape[0] * blocks
	strides := rowMajorStrides(shape)
	inBatch := shape[0]

	return mapCoords(out, func(k []int64) int {
		b := k[0] % inBatch
		offset := k[0] / inBatch
		off := b * strides[0]

		for d := m - 1; d >= 0; d-- {
			bo := offset % block[d]
			offset /= block[d]

			pos := k[d+1]*block[d] + bo - pads[d][0]
			if pos < 0 || pos >= shape[d+1] {
				return -1
			}

			off += pos * strides[d+1]
		}

		for d := m + 1; d < len(shape); d++ {
			off += k[d] * strides[d]
		}

		return int(off)
	})
}

// BatchToSpacePlan moves batch blocks back into the spatial dimensions and
// removes crops[d] = {before, after}.
func BatchToSpacePlan(shape, block []int64, crops [][2]int64) (Plan, error) {
	m := len(block)
	if len(shape) < m+1 || len(crops) != m {
		return Plan{}, fmt.Errorf("tensor: batch_to_space block %v for shape %v", block, shape)
	}

	blocks := int64(1)
	for _, b := range block {
		if b < 1 {
			return Plan{}, fmt.Errorf("tensor: batch_to_space block %v", block)
		}

		blocks *= b
	}

	if shape[0]%blocks != 0 {
		return Plan{}, fmt.Errorf("tensor: batch_to_space batch %d not divisible by %d", shape[0], blocks)
	}

	out := append([]int64(nil), shape...)
	out[0] = shape[0] / blocks

	for d := range m {
		out[d+1] = shape[d+1]*block[d] - crops[d][0] - crops[d][1]
		if out[d+1] < 0 {
			return Plan{}, fmt.Errorf("tensor: batch_to_space crops %v exceed dim %d", crops[d], d+1)
		}
	}

	strides := rowMajorStrides(shape)
	outBatch := out[0]

	return mapCoords(out, func(k []int64) int {
		var blockIdx int64
		off := int64(0)

		for d := range m {
			pos := k[d+1] + crops[d][0]
			blockIdx = blockIdx*block[d] + pos%block[d]
			off += (pos / block[d]) * strides[d+1]
		}

		off += (blockIdx*outBatch + k[0]) * strides[0]
		for d := m + 1; d < len(shape); d++ {
			off += k[d] * strides[d]
		}

		return int(off)
	})
}

// splitAt returns the element counts before and after axis.
func splitAt(shape []int64, axis int) (outer, inner int64) {
	outer, inner = 1, 1
	for i := range axis {
		outer *= shape[i]
	}

	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	return outer, inner
}
