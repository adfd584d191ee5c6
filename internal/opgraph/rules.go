package opgraph

import (
	"fmt"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

var floatOnly = map[graph.OpKind]bool{
	graph.OpSqrt:                       true,
	graph.OpRsqrt:                      true,
	graph.OpExp:                        true,
	graph.OpLog:                        true,
	graph.OpSin:                        true,
	graph.OpCeil:                       true,
	graph.OpFloor:                      true,
	graph.OpElu:                        true,
	graph.OpHardSwish:                  true,
	graph.OpL2Normalization:            true,
	graph.OpPow:                        true,
	graph.OpUnidirectionalSequenceLSTM: true,
}

// int32Operands lists, per kind, the operand positions that must be int32
// index/shape tensors.
var int32Operands = map[graph.OpKind][]int{
	graph.OpReshape:        {1},
	graph.OpGather:         {1},
	graph.OpSplit:          {1},
	graph.OpSlice:          {1, 2},
	graph.OpStridedSlice:   {1, 2, 3},
	graph.OpTranspose:      {1},
	graph.OpSpaceToBatchND: {1, 2},
	graph.OpBatchToSpaceND: {1, 2},
}

type arity struct {
	minOperands, maxOperands int
	// variadic operators take Count primary inputs or produce Count outputs.
	variadicIn, variadicOut bool
}

func arityOf(kind graph.OpKind) arity {
	switch kind {
	case graph.OpConcatenation, graph.OpPack:
		return arity{variadicIn: true}
	case graph.OpUnpack:
		return arity{minOperands: 1, maxOperands: 1, variadicOut: true}
	case graph.OpSplit:
		return arity{minOperands: 2, maxOperands: 2, variadicOut: true}
	case graph.OpConv2D, graph.OpDepthwiseConv2D, graph.OpSlice,
		graph.OpSpaceToBatchND, graph.OpBatchToSpaceND:
		return arity{minOperands: 3, maxOperands: 3}
	case graph.OpFullyConnected:
		return arity{minOperands: 2, maxOperands: 3}
	case graph.OpReshape:
		return arity{minOperands: 1, maxOperands: 2}
	case graph.OpGather, graph.OpTranspose:
		return arity{minOperands: 2, maxOperands: 2}
	case graph.OpStridedSlice:
		return arity{minOperands: 4, maxOperands: 4}
	case graph.OpUnidirectionalSequenceLSTM:
		return arity{minOperands: graph.LSTMOperandCount, maxOperands: graph.LSTMOperandCount}
	}

	switch kind.Family() {
	case graph.FamilyBinary, graph.FamilyComparison:
		return arity{minOperands: 2, maxOperands: 2}
	case graph.FamilyLogical:
		if kind == graph.OpLogicalNot {
			return arity{minOperands: 1, maxOperands: 1}
		}

		return arity{minOperands: 2, maxOperands: 2}
	default:
		return arity{minOperands: 1, maxOperands: 1}
	}
}

func checkElementType(kind graph.OpKind, et dtype.ElementType, opts graph.Options) error {
	switch {
	case kind.Family() == graph.FamilyLogical:
		if et != dtype.Bool {
			return fmt.Errorf("%w: %s requires bool, got %s", graph.ErrTypeMismatch, kind, et)
		}
	case kind == graph.OpUnidirectionalSequenceLSTM:
		if et != dtype.Float32 {
			return fmt.Errorf("%w: %s requires float32, got %s", graph.ErrTypeMismatch, kind, et)
		}
	case floatOnly[kind]:
		if !et.IsFloat() {
			return fmt.Errorf("%w: %s requires a float type, got %s", graph.ErrTypeMismatch, kind, et)
		}
	case et == dtype.Bool:
		if !acceptsBool(kind) {
			return fmt.Errorf("%w: %s does not accept bool", graph.ErrTypeMismatch, kind)
		}
	}

	if kind == graph.OpCast && !opts.OutType.Valid() {
		return fmt.Errorf("%w: CAST output type %d", graph.ErrTypeMismatch, uint8(opts.OutType))
	}

	return nil
}

func acceptsBool(kind graph.OpKind) bool {
	switch kind {
	case graph.OpCast, graph.OpEqual, graph.OpNotEqual:
		return true
	}

	return kind.Family() == graph.FamilyShape
}

// expandShapes resolves the count attribute of variadic operators and checks
// that every primary input and output shape is a non-empty list of positive
// dimensions.
func expandShapes(kind graph.OpKind, shapes IOShapes, opts *graph.Options) ([][]int32, [][]int32, error) {
	ar := arityOf(kind)
	ins, outs := shapes.Inputs, shapes.Outputs

	var err error
	if ar.variadicIn {
		if ins, err = repeat(kind, "input", ins, opts); err != nil {
			return nil, nil, err
		}
	}

	if ar.variadicOut {
		if outs, err = repeat(kind, "output", outs, opts); err != nil {
			return nil, nil, err
		}
	}

	if len(ins) == 0 {
		return nil, nil, fmt.Errorf("%w: %s needs at least one input shape", graph.ErrInvalidShape, kind)
	}

	if !ar.variadicOut && len(outs) != 1 {
		return nil, nil, fmt.Errorf("%w: %s produces exactly one output, got %d shapes", graph.ErrInvalidShape, kind, len(outs))
	}

	for _, group := range [][][]int32{ins, outs} {
		for _, s := range group {
			if len(s) == 0 {
				return nil, nil, fmt.Errorf("%w: %s has an empty shape", graph.ErrInvalidShape, kind)
			}

			if err := checkDims(s); err != nil {
				return nil, nil, fmt.Errorf("%s: %w", kind, err)
			}
		}
	}

	return ins, outs, nil
}

func repeat(kind graph.OpKind, what string, shapes [][]int32, opts *graph.Options) ([][]int32, error) {
	count := int(opts.Count)

	switch {
	case count < 0:
		return nil, fmt.Errorf("%w: %s count %d", graph.ErrInvalidShape, kind, count)
	case count == 0:
		count = len(shapes)
	case len(shapes) == 1 && count > 1:
		out := make([][]int32, count)
		for i := range out {
			out[i] = shapes[0]
		}

		shapes = out
	case len(shapes) != count:
		return nil, fmt.Errorf("%w: %s count %d but %d %s shapes", graph.ErrInvalidShape, kind, count, len(shapes), what)
	}

	if count == 0 {
		return nil, fmt.Errorf("%w: %s needs at least one %s", graph.ErrInvalidShape, kind, what)
	}

	opts.Count = int32(count)

	return shapes, nil
}

func checkDims(shape []int32) error {
	for i, d := range shape {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d of %v is %d", graph.ErrInvalidShape, i, shape, d)
		}
	}

	if graph.ShapeElemCount(shape) < 0 {
		return fmt.Errorf("%w: %v overflows", graph.ErrInvalidShape, shape)
	}

	return nil
}

func checkArity(kind graph.OpKind, primary, constants, outputs int) error {
	ar := arityOf(kind)
	if ar.variadicIn {
		if constants != 0 {
			return fmt.Errorf("%w: %s takes no constant operands", graph.ErrInvalidGraph, kind)
		}

		return nil
	}

	total := primary + constants
	if total < ar.minOperands || total > ar.maxOperands {
		return fmt.Errorf("%w: %s takes %d..%d operands, got %d", graph.ErrInvalidGraph, kind, ar.minOperands, ar.maxOperands, total)
	}

	if outputs == 0 {
		return fmt.Errorf("%w: %s has no outputs", graph.ErrInvalidShape, kind)
	}

	return nil
}

// inputType returns the element type of primary input i.
func inputType(kind graph.OpKind, et dtype.ElementType, i int) dtype.ElementType {
	for _, pos := range int32Operands[kind] {
		if pos == i {
			return dtype.Int32
		}
	}

	return et
}

func outputType(kind graph.OpKind, et dtype.ElementType, opts graph.Options) dtype.ElementType {
	switch {
	case kind == graph.OpCast:
		return opts.OutType
	case kind.Family() == graph.FamilyComparison:
		return dtype.Bool
	default:
		return et
	}
}

// checkShapes verifies operand types and the relationship between input and
// output shapes once the operator is wired.
func checkShapes(g *graph.Graph, op *graph.Operator) error {
	operand := func(i int) *graph.Tensor {
		if i >= len(op.Inputs) {
			return nil
		}

		return g.Tensor(op.Inputs[i])
	}

	in := operand(0)
	out := g.Tensor(op.Outputs[0])

	for _, pos := range int32Operands[op.Kind] {
		if t := operand(pos); t != nil && t.Type != dtype.Int32 {
			return fmt.Errorf("%w: %s operand %d must be int32, got %s", graph.ErrTypeMismatch, op.Kind, pos, t.Type)
		}
	}

	switch op.Kind.Family() {
	case graph.FamilyUnary, graph.FamilyActivation, graph.FamilyNormalization:
		return sameShape(op.Kind, in.Shape, out.Shape)
	case graph.FamilyBinary, graph.FamilyComparison, graph.FamilyLogical:
		if op.Kind == graph.OpLogicalNot {
			return sameShape(op.Kind, in.Shape, out.Shape)
		}

		b := operand(1)
		if b == nil {
			return fmt.Errorf("%w: %s requires two operands", graph.ErrInvalidGraph, op.Kind)
		}

		if b.Type != in.Type {
			return fmt.Errorf("%w: %s operands are %s and %s", graph.ErrTypeMismatch, op.Kind, in.Type, b.Type)
		}

		want, ok := graph.BroadcastShape(in.Shape, b.Shape)
		if !ok {
			return fmt.Errorf("%w: %s cannot broadcast %v with %v", graph.ErrInvalidShape, op.Kind, in.Shape, b.Shape)
		}

		return sameShape(op.Kind, want, out.Shape)
	case graph.FamilyConvolution:
		return checkConvolution(g, op)
	case graph.FamilyPooling:
		return checkPooling(op, in, out)
	case graph.FamilyShape:
		return checkDataMovement(g, op)
	}

	switch op.Kind {
	case graph.OpCast:
		return sameShape(op.Kind, in.Shape, out.Shape)
	case graph.OpUnidirectionalSequenceLSTM:
		return checkLSTM(g, op)
	}

	return nil
}

func sameShape(kind graph.OpKind, want, got []int32) error {
	if !graph.EqualShape(want, got) {
		return fmt.Errorf("%w: %s output shape %v, want %v", graph.ErrInvalidShape, kind, got, want)
	}

	return nil
}

func checkConvolution(g *graph.Graph, op *graph.Operator) error {
	in := g.Tensor(op.Inputs[0])
	filter := g.Tensor(op.Inputs[1])
	out := g.Tensor(op.Outputs[0])

	var bias *graph.Tensor
	if len(op.Inputs) > 2 {
		bias = g.Tensor(op.Inputs[2])
	}

	if filter == nil {
		return fmt.Errorf("%w: %s requires a filter", graph.ErrInvalidGraph, op.Kind)
	}

	if filter.Type != in.Type {
		return fmt.Errorf("%w: %s filter is %s, input is %s", graph.ErrTypeMismatch, op.Kind, filter.Type, in.Type)
	}

	if bias != nil {
		want := in.Type
		if in.Type.IsInteger() {
			want = dtype.Int32
		}

		if bias.Type != want {
			return fmt.Errorf("%w: %s bias is %s, want %s", graph.ErrTypeMismatch, op.Kind, bias.Type, want)
		}
	}

	if op.Kind == graph.OpFullyConnected {
		if len(filter.Shape) != 2 {
			return fmt.Errorf("%w: FULLY_CONNECTED weights must be rank 2, got %v", graph.ErrInvalidShape, filter.Shape)
		}

		units, depth := filter.Shape[0], filter.Shape[1]
		if in.ElemCount()%int64(depth) != 0 || out.Shape[len(out.Shape)-1] != units {
			return fmt.Errorf("%w: FULLY_CONNECTED input %v, weights %v, output %v", graph.ErrInvalidShape, in.Shape, filter.Shape, out.Shape)
		}

		return nil
	}

	if len(in.Shape) != 4 || len(filter.Shape) != 4 || len(out.Shape) != 4 {
		return fmt.Errorf("%w: %s needs NHWC rank-4 tensors", graph.ErrInvalidShape, op.Kind)
	}

	sh, sw := op.Options.StridesOrDefault()
	dh, dw := op.Options.DilationsOrDefault()
	oh, _ := graph.WindowOutput(in.Shape[1], filter.Shape[1], sh, dh, op.Options.Padding)
	ow, _ := graph.WindowOutput(in.Shape[2], filter.Shape[2], sw, dw, op.Options.Padding)

	var oc int32
	if op.Kind == graph.OpConv2D {
		if filter.Shape[3] != in.Shape[3] {
			return fmt.Errorf("%w: CONV_2D filter depth %d, input depth %d", graph.ErrInvalidShape, filter.Shape[3], in.Shape[3])
		}

		oc = filter.Shape[0]
	} else {
		mult := op.Options.DepthMultiplier
		if mult == 0 {
			mult = 1
		}

		oc = in.Shape[3] * mult
		if filter.Shape[0] != 1 || filter.Shape[3] != oc {
			return fmt.Errorf("%w: DEPTHWISE_CONV_2D filter %v for input depth %d x %d", graph.ErrInvalidShape, filter.Shape, in.Shape[3], mult)
		}
	}

	want := []int32{in.Shape[0], oh, ow, oc}

	return sameShape(op.Kind, want, out.Shape)
}

func checkPooling(op *graph.Operator, in, out *graph.Tensor) error {
	if len(in.Shape) != 4 {
		return fmt.Errorf("%w: %s needs an NHWC rank-4 input", graph.ErrInvalidShape, op.Kind)
	}

	if op.Options.FilterH <= 0 || op.Options.FilterW <= 0 {
		return fmt.Errorf("%w: %s filter %dx%d", graph.ErrInvalidShape, op.Kind, op.Options.FilterH, op.Options.FilterW)
	}

	sh, sw := op.Options.StridesOrDefault()
	oh, _ := graph.WindowOutput(in.Shape[1], op.Options.FilterH, sh, 1, op.Options.Padding)
	ow, _ := graph.WindowOutput(in.Shape[2], op.Options.FilterW, sw, 1, op.Options.Padding)

	return sameShape(op.Kind, []int32{in.Shape[0], oh, ow, in.Shape[3]}, out.Shape)
}

func checkDataMovement(g *graph.Graph, op *graph.Operator) error {
	in := g.Tensor(op.Inputs[0])
	out := g.Tensor(op.Outputs[0])

	switch op.Kind {
	case graph.OpReshape, graph.OpSpaceToDepth, graph.OpDepthToSpace, graph.OpTranspose:
		if in.ElemCount() != out.ElemCount() {
			return fmt.Errorf("%w: %s maps %v to %v", graph.ErrInvalidShape, op.Kind, in.Shape, out.Shape)
		}
	case graph.OpConcatenation:
		return checkConcat(g, op, out)
	case graph.OpPack:
		axis, ok := graph.NormalizeAxis(op.Options.Axis, len(in.Shape)+1)
		if !ok || len(out.Shape) != len(in.Shape)+1 || out.Shape[axis] != op.Options.Count {
			return fmt.Errorf("%w: PACK of %d x %v on axis %d gives %v", graph.ErrInvalidShape, op.Options.Count, in.Shape, op.Options.Axis, out.Shape)
		}
	case graph.OpUnpack:
		axis, ok := graph.NormalizeAxis(op.Options.Axis, len(in.Shape))
		if !ok || in.Shape[axis] != op.Options.Count {
			return fmt.Errorf("%w: UNPACK %v into %d on axis %d", graph.ErrInvalidShape, in.Shape, op.Options.Count, op.Options.Axis)
		}

		for _, idx := range op.Outputs {
			if len(g.Tensors[idx].Shape) != len(in.Shape)-1 {
				return fmt.Errorf("%w: UNPACK output %v for input %v", graph.ErrInvalidShape, g.Tensors[idx].Shape, in.Shape)
			}
		}
	case graph.OpSplit:
		return checkSplit(g, op, in)
	}

	return nil
}

func checkConcat(g *graph.Graph, op *graph.Operator, out *graph.Tensor) error {
	first := g.Tensor(op.Inputs[0])

	axis, ok := graph.NormalizeAxis(op.Options.Axis, len(first.Shape))
	if !ok {
		return fmt.Errorf("%w: CONCATENATION axis %d for rank %d", graph.ErrInvalidShape, op.Options.Axis, len(first.Shape))
	}

	want := cloneShape(first.Shape)
	want[axis] = 0

	for _, idx := range op.Inputs {
		t := g.Tensor(idx)
		if len(t.Shape) != len(want) {
			return fmt.Errorf("%w: CONCATENATION rank mismatch %v vs %v", graph.ErrInvalidShape, t.Shape, first.Shape)
		}

		for d := range want {
			if d != axis && t.Shape[d] != want[d] {
				return fmt.Errorf("%w: CONCATENATION dimension %d mismatch %v vs %v", graph.ErrInvalidShape, d, t.Shape, first.Shape)
			}
		}

		want[axis] += t.Shape[axis]
	}

	return sameShape(op.Kind, want, out.Shape)
}

func checkSplit(g *graph.Graph, op *graph.Operator, in *graph.Tensor) error {
	axisTensor := g.Tensor(op.Inputs[1])
	if axisTensor == nil || !axisTensor.IsConstant() || axisTensor.ElemCount() != 1 {
		return fmt.Errorf("%w: SPLIT axis must be a single int32 constant", graph.ErrInvalidGraph)
	}

	axis, ok := graph.NormalizeAxis(int32(dtype.ElementInt64(dtype.Int32, axisTensor.Data, 0)), len(in.Shape))
	if !ok {
		return fmt.Errorf("%w: SPLIT axis out of range for %v", graph.ErrInvalidShape, in.Shape)
	}

	var sum int32
	for _, idx := range op.Outputs {
		s := g.Tensors[idx].Shape
		if len(s) != len(in.Shape) {
			return fmt.Errorf("%w: SPLIT output %v for input %v", graph.ErrInvalidShape, s, in.Shape)
		}

		for d := range s {
			if d != axis && s[d] != in.Shape[d] {
				return fmt.Errorf("%w: SPLIT output %v for input %v", graph.ErrInvalidShape, s, in.Shape)
			}
		}

		sum += s[axis]
	}

	if sum != in.Shape[axis] {
		return fmt.Errorf("%w: SPLIT outputs cover %d of %d along axis %d", graph.ErrInvalidShape, sum, in.Shape[axis], axis)
	}

	return nil
}

func checkLSTM(g *graph.Graph, op *graph.Operator) error {
	in := g.Tensor(op.Inputs[0])
	if len(in.Shape) != 3 {
		return fmt.Errorf("%w: LSTM input must be [time, batch, input], got %v", graph.ErrInvalidShape, in.Shape)
	}

	for i, idx := range op.Inputs {
		t := g.Tensor(idx)
		if t != nil && t.Type != dtype.Float32 {
			return fmt.Errorf("%w: LSTM operand %d is %s", graph.ErrTypeMismatch, i, t.Type)
		}
	}

	for _, required := range []int{graph.LSTMInputToForget, graph.LSTMInputToCell, graph.LSTMInputToOutput,
		graph.LSTMRecurrentToForget, graph.LSTMRecurrentToCell, graph.LSTMRecurrentToOutput,
		graph.LSTMForgetBias, graph.LSTMCellBias, graph.LSTMOutputBias} {
		if op.Inputs[required] == graph.OptionalInput {
			return fmt.Errorf("%w: LSTM operand %d is required", graph.ErrInvalidGraph, required)
		}
	}

	for _, state := range []int{graph.LSTMOutputState, graph.LSTMCellState} {
		t := g.Tensor(op.Inputs[state])
		if t == nil || !t.Variable {
			return fmt.Errorf("%w: LSTM operand %d must be a variable state tensor", graph.ErrInvalidGraph, state)
		}
	}

	return nil
}
