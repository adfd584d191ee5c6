package reference

import (
	"fmt"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/runtime/tensor"
)

// runDataMovement computes the shape family with layout plans over raw
// payloads, so every element type moves bit-exactly. Values are requantized
// only when input and output encodings differ.
func runDataMovement(op *graph.Operator, in, out []*backend.Buffer) error {
	switch op.Kind {
	case graph.OpReshape:
		return move(identityPlan(in[0]), in[:1], out[0])
	case graph.OpConcatenation:
		return concat(in, out[0], int(op.Options.Axis))
	case graph.OpPack:
		return pack(in, out[0], int(op.Options.Axis))
	case graph.OpUnpack:
		return unpack(in[0], out, int(op.Options.Axis))
	case graph.OpSplit:
		return split(in, out)
	case graph.OpGather:
		return gather(in, out[0], int(op.Options.Axis))
	case graph.OpSlice:
		return slice(in, out[0])
	case graph.OpStridedSlice:
		return stridedSlice(op, in, out[0])
	case graph.OpTranspose:
		return transpose(in, out[0])
	case graph.OpSpaceToDepth:
		p, err := tensor.SpaceToDepthPlan(shape64(in[0].Shape), int64(op.Options.BlockSize))
		if err != nil {
			return err
		}

		return move(p, in[:1], out[0])
	case graph.OpDepthToSpace:
		p, err := tensor.DepthToSpacePlan(shape64(in[0].Shape), int64(op.Options.BlockSize))
		if err != nil {
			return err
		}

		return move(p, in[:1], out[0])
	case graph.OpSpaceToBatchND, graph.OpBatchToSpaceND:
		return spaceBatch(op.Kind, in, out[0])
	}

	return fmt.Errorf("%w: %s", backend.ErrNotSupported, op.Kind)
}

func identityPlan(b *backend.Buffer) tensor.Plan {
	src := make([]int, b.Len())
	for i := range src {
		src[i] = i
	}

	return tensor.Plan{Shape: shape64(b.Shape), Src: src}
}

// move applies p to the concatenated payloads of ins and writes out. The
// plan's element count must match the output; its shape need not, so a
// plan can feed a reshaped output.
func move(p tensor.Plan, ins []*backend.Buffer, out *backend.Buffer) error {
	if len(p.Src) != out.Len() {
		return fmt.Errorf("%w: plan yields %d elements (%v), output %v holds %d",
			graph.ErrInvalidShape, len(p.Src), p.Shape, out.Shape, out.Len())
	}

	exact := true
	for _, b := range ins {
		exact = exact && sameEncoding(b, out)
	}

	if exact {
		var raw []byte
		for _, b := range ins {
			raw = append(raw, b.Data...)
		}

		copy(out.Data, p.ApplyBytes(raw, out.Type.Size(), zeroElement(out)))

		return nil
	}

	var vals []float32
	for _, b := range ins {
		vals = append(vals, Dequantize(b).RawData()...)
	}

	Requantize(out, p.Apply(vals, 0))

	return nil
}

func concat(in []*backend.Buffer, out *backend.Buffer, axis int) error {
	shapes := make([][]int64, len(in))
	for i, b := range in {
		shapes[i] = shape64(b.Shape)
	}

	p, err := tensor.ConcatPlan(shapes, axis)
	if err != nil {
		return err
	}

	return move(p, in, out)
}

// pack stacks equally shaped inputs along a new axis.
func pack(in []*backend.Buffer, out *backend.Buffer, axis int) error {
	rank := len(in[0].Shape) + 1
	if axis < 0 {
		axis += rank
	}

	if axis < 0 || axis >= rank {
		return fmt.Errorf("%w: PACK axis %d for rank %d", graph.ErrInvalidShape, axis, rank)
	}

	shapes := make([][]int64, len(in))
	for i, b := range in {
		s := shape64(b.Shape)
		shapes[i] = append(append(append([]int64{}, s[:axis]...), 1), s[axis:]...)
	}

	p, err := tensor.ConcatPlan(shapes, axis)
	if err != nil {
		return err
	}

	return move(p, in, out)
}

// unpack splits the input into unit slices along axis, dropping that axis.
func unpack(in *backend.Buffer, outs []*backend.Buffer, axis int) error {
	shape := shape64(in.Shape)
	if axis < 0 {
		axis += len(shape)
	}

	if axis < 0 || axis >= len(shape) || int(shape[axis]) != len(outs) {
		return fmt.Errorf("%w: UNPACK %v into %d along %d", graph.ErrInvalidShape, in.Shape, len(outs), axis)
	}

	for j, out := range outs {
		if err := sliceAlong(in, out, shape, axis, int64(j), 1); err != nil {
			return err
		}
	}

	return nil
}

// split takes output sizes along the axis from the output shapes.
func split(in []*backend.Buffer, outs []*backend.Buffer) error {
	axes, err := in[1].Int32s()
	if err != nil {
		return err
	}

	if len(axes) != 1 {
		return fmt.Errorf("%w: SPLIT axis operand has %d values", graph.ErrInvalidShape, len(axes))
	}

	shape := shape64(in[0].Shape)

	axis, ok := graph.NormalizeAxis(axes[0], len(shape))
	if !ok {
		return fmt.Errorf("%w: SPLIT axis %d for %v", graph.ErrInvalidShape, axes[0], in[0].Shape)
	}

	var start int64
	for _, out := range outs {
		if len(out.Shape) != len(shape) {
			return fmt.Errorf("%w: SPLIT output %v for input %v", graph.ErrInvalidShape, out.Shape, in[0].Shape)
		}

		n := int64(out.Shape[axis])
		if err := sliceAlong(in[0], out, shape, axis, start, n); err != nil {
			return err
		}

		start += n
	}

	return nil
}

func sliceAlong(in, out *backend.Buffer, shape []int64, axis int, start, n int64) error {
	begin := make([]int64, len(shape))
	size := append([]int64{}, shape...)
	begin[axis], size[axis] = start, n

	p, err := tensor.SlicePlan(shape, begin, size)
	if err != nil {
		return err
	}

	return move(p, []*backend.Buffer{in}, out)
}

func gather(in []*backend.Buffer, out *backend.Buffer, axis int) error {
	idx, err := in[1].Int32s()
	if err != nil {
		return err
	}

	p, err := tensor.GatherPlan(shape64(in[0].Shape), axis, int32To64(idx), shape64(in[1].Shape))
	if err != nil {
		return err
	}

	return move(p, in[:1], out)
}

func slice(in []*backend.Buffer, out *backend.Buffer) error {
	begin, err := in[1].Int32s()
	if err != nil {
		return err
	}

	size, err := in[2].Int32s()
	if err != nil {
		return err
	}

	p, err := tensor.SlicePlan(shape64(in[0].Shape), int32To64(begin), int32To64(size))
	if err != nil {
		return err
	}

	return move(p, in[:1], out)
}

func stridedSlice(op *graph.Operator, in []*backend.Buffer, out *backend.Buffer) error {
	var params [3][]int64

	for i := range params {
		v, err := in[i+1].Int32s()
		if err != nil {
			return err
		}

		params[i] = int32To64(v)
	}

	o := op.Options

	p, err := tensor.StridedSlicePlan(shape64(in[0].Shape), params[0], params[1], params[2],
		o.BeginMask, o.EndMask, o.ShrinkAxisMask)
	if err != nil {
		return err
	}

	return move(p, in[:1], out)
}

func transpose(in []*backend.Buffer, out *backend.Buffer) error {
	perm, err := in[1].Int32s()
	if err != nil {
		return err
	}

	axes := make([]int, len(perm))
	for i, v := range perm {
		axes[i] = int(v)
	}

	p, err := tensor.PermutePlan(shape64(in[0].Shape), axes)
	if err != nil {
		return err
	}

	if !equal64(p.Shape, shape64(out.Shape)) {
		return fmt.Errorf("%w: TRANSPOSE yields %v, output is %v", graph.ErrInvalidShape, p.Shape, out.Shape)
	}

	return move(p, in[:1], out)
}

// spaceBatch reads the block shape and the [M, 2] paddings or crops operand.
func spaceBatch(kind graph.OpKind, in []*backend.Buffer, out *backend.Buffer) error {
	block, err := in[1].Int32s()
	if err != nil {
		return err
	}

	flat, err := in[2].Int32s()
	if err != nil {
		return err
	}

	if len(flat) != 2*len(block) {
		return fmt.Errorf("%w: %s needs %d pad values, got %d", graph.ErrInvalidShape, kind, 2*len(block), len(flat))
	}

	pads := make([][2]int64, len(block))
	for i := range pads {
		pads[i] = [2]int64{int64(flat[2*i]), int64(flat[2*i+1])}
	}

	var p tensor.Plan
	if kind == graph.OpSpaceToBatchND {
		p, err = tensor.SpaceToBatchPlan(shape64(in[0].Shape), int32To64(block), pads)
	} else {
		p, err = tensor.BatchToSpacePlan(shape64(in[0].Shape), int32To64(block), pads)
	}

	if err != nil {
		return err
	}

	return move(p, in[:1], out)
}

func int32To64(v []int32) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}

	return out
}

func equal64(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
