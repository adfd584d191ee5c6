package onnx

import (
	"encoding/binary"
	"fmt"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

var unaryOps = map[graph.OpKind]string{
	graph.OpAbs:      "Abs",
	graph.OpNeg:      "Neg",
	graph.OpSqrt:     "Sqrt",
	graph.OpExp:      "Exp",
	graph.OpLog:      "Log",
	graph.OpSin:      "Sin",
	graph.OpCeil:     "Ceil",
	graph.OpFloor:    "Floor",
	graph.OpRelu:     "Relu",
	graph.OpLogistic: "Sigmoid",
	graph.OpTanh:     "Tanh",
}

var binaryOps = map[graph.OpKind]string{
	graph.OpAdd:     "Add",
	graph.OpSub:     "Sub",
	graph.OpMul:     "Mul",
	graph.OpDiv:     "Div",
	graph.OpMaximum: "Max",
	graph.OpMinimum: "Min",
	graph.OpPow:     "Pow",
}

// Translatable reports whether op in g maps onto an ONNX graph this package
// can build: float32 tensors only, constant convolution weights, and fused
// activations ONNX can express.
func Translatable(g *graph.Graph, op *graph.Operator) bool {
	for _, lists := range [][]int32{op.Inputs, op.Outputs} {
		for _, idx := range lists {
			t := g.Tensor(idx)
			if t == nil {
				continue
			}

			if t.Variable || (t.Type != dtype.Float32 && !(op.Kind == graph.OpReshape && t.IsConstant())) {
				return false
			}
		}
	}

	if op.Options.Activation > graph.ActSigmoid {
		return false
	}

	switch {
	case unaryOps[op.Kind] != "", binaryOps[op.Kind] != "":
		return true
	}

	switch op.Kind {
	case graph.OpConcatenation, graph.OpReshape, graph.OpAveragePool2D, graph.OpMaxPool2D:
		return true
	case graph.OpSoftmax:
		return op.Options.Beta == 0 || op.Options.Beta == 1
	case graph.OpConv2D, graph.OpDepthwiseConv2D:
		for _, idx := range op.Inputs[1:] {
			if t := g.Tensor(idx); t != nil && !t.IsConstant() {
				return false
			}
		}

		return true
	}

	return false
}

// translation is a one-operator ONNX model plus the operand positions fed
// at run time, in model input order.
type translation struct {
	model    *Model
	operands []int
}

type builder struct {
	g        *graph.Graph
	op       *graph.Operator
	m        *Model
	operands []int
}

// translate builds the ONNX model computing op. The model's single output
// is named "out0".
func translate(g *graph.Graph, op *graph.Operator) (*translation, error) {
	if !Translatable(g, op) {
		return nil, fmt.Errorf("onnx: cannot translate %s", op.Kind)
	}

	b := &builder{g: g, op: op, m: &Model{Name: op.Kind.String()}}

	out := g.Tensor(op.Outputs[0])
	b.m.Outputs = []ValueInfo{{Name: "out0", ElemType: elemFloat, Dims: dims64(out.Shape)}}

	var err error

	switch {
	case unaryOps[op.Kind] != "":
		b.emitActivated(unaryOps[op.Kind], []string{b.operand(0)}, nil, "out0")
	case binaryOps[op.Kind] != "":
		b.emitActivated(binaryOps[op.Kind], []string{b.operand(0), b.operand(1)}, nil, "out0")
	default:
		err = b.translateStructured()
	}

	if err != nil {
		return nil, err
	}

	return &translation{model: b.m, operands: b.operands}, nil
}

func (b *builder) translateStructured() error {
	op := b.op

	switch op.Kind {
	case graph.OpConcatenation:
		names := make([]string, len(op.Inputs))
		for i := range op.Inputs {
			names[i] = b.operand(i)
		}

		b.emitActivated("Concat", names, []Attribute{intAttr("axis", int64(op.Options.Axis))}, "out0")
	case graph.OpReshape:
		out := b.g.Tensor(op.Outputs[0])
		b.m.Initializers = append(b.m.Initializers, Initializer{
			Name: "shape", DataType: elemInt64, Dims: []int64{int64(len(out.Shape))}, Raw: int64Raw(dims64(out.Shape)),
		})
		b.emit("Reshape", []string{b.operand(0), "shape"}, nil, "out0")
	case graph.OpSoftmax:
		b.emit("Softmax", []string{b.operand(0)}, []Attribute{intAttr("axis", -1)}, "out0")
	case graph.OpConv2D, graph.OpDepthwiseConv2D:
		return b.conv()
	case graph.OpAveragePool2D, graph.OpMaxPool2D:
		return b.pool()
	default:
		return fmt.Errorf("onnx: no translation for %s", op.Kind)
	}

	return nil
}

// operand names operand i, declaring it as a model input or, for constants,
// as an initializer.
func (b *builder) operand(i int) string {
	t := b.g.Tensor(b.op.Inputs[i])
	name := fmt.Sprintf("in%d", i)

	if t.IsConstant() {
		b.m.Initializers = append(b.m.Initializers, Initializer{Name: name, DataType: elemFloat, Dims: dims64(t.Shape), Raw: t.Data})
		return name
	}

	b.m.Inputs = append(b.m.Inputs, ValueInfo{Name: name, ElemType: elemFloat, Dims: dims64(t.Shape)})
	b.operands = append(b.operands, i)

	return name
}

func (b *builder) emit(opType string, inputs []string, attrs []Attribute, output string) {
	b.m.Nodes = append(b.m.Nodes, Node{
		OpType:  opType,
		Name:    fmt.Sprintf("n%d_%s", len(b.m.Nodes), opType),
		Inputs:  inputs,
		Outputs: []string{output},
		Attrs:   attrs,
	})
}

// emitActivated emits the node followed by the operator's fused activation.
func (b *builder) emitActivated(opType string, inputs []string, attrs []Attribute, output string) {
	act := b.op.Options.Activation
	if act == graph.ActNone {
		b.emit(opType, inputs, attrs, output)
		return
	}

	pre := output + "_pre"
	b.emit(opType, inputs, attrs, pre)

	switch act {
	case graph.ActRelu:
		b.emit("Relu", []string{pre}, nil, output)
	case graph.ActRelu6:
		b.emit("Clip", []string{pre, b.scalar("clip_lo", 0), b.scalar("clip_hi", 6)}, nil, output)
	case graph.ActReluN1To1:
		b.emit("Clip", []string{pre, b.scalar("clip_lo", -1), b.scalar("clip_hi", 1)}, nil, output)
	case graph.ActTanh:
		b.emit("Tanh", []string{pre}, nil, output)
	case graph.ActSigmoid:
		b.emit("Sigmoid", []string{pre}, nil, output)
	}
}

func (b *builder) scalar(name string, v float32) string {
	b.m.Initializers = append(b.m.Initializers, Initializer{Name: name, DataType: elemFloat, Raw: dtype.Encode([]float32{v})})
	return name
}

// window returns ONNX strides, dilations and explicit pads for a kH x kW
// window over the NHWC input.
func (b *builder) window(kH, kW int32) (strides, dilations, pads []int64) {
	in := b.g.Tensor(b.op.Inputs[0])
	sh, sw := b.op.Options.StridesOrDefault()
	dh, dw := b.op.Options.DilationsOrDefault()

	oh, top := graph.WindowOutput(in.Shape[1], kH, sh, dh, b.op.Options.Padding)
	ow, left := graph.WindowOutput(in.Shape[2], kW, sw, dw, b.op.Options.Padding)

	bottom := max(0, (oh-1)*sh+(kH-1)*dh+1-in.Shape[1]-top)
	right := max(0, (ow-1)*sw+(kW-1)*dw+1-in.Shape[2]-left)

	return []int64{int64(sh), int64(sw)}, []int64{int64(dh), int64(dw)},
		[]int64{int64(top), int64(left), int64(bottom), int64(right)}
}

// nchw wraps a spatial node between NHWC<->NCHW transposes.
func (b *builder) nchw(opType string, inputs []string, attrs []Attribute) {
	b.emit("Transpose", []string{inputs[0]}, []Attribute{intsAttr("perm", 0, 3, 1, 2)}, "x_nchw")
	b.emitActivated(opType, append([]string{"x_nchw"}, inputs[1:]...), attrs, "y_nchw")
	b.emit("Transpose", []string{"y_nchw"}, []Attribute{intsAttr("perm", 0, 2, 3, 1)}, "out0")
}

func (b *builder) conv() error {
	filter := b.g.Tensor(b.op.Inputs[1])
	if filter == nil || len(filter.Shape) != 4 {
		return fmt.Errorf("%w: %s filter must be 4-D", graph.ErrInvalidShape, b.op.Kind)
	}

	f, err := dtype.Decode[float32](filter.Data)
	if err != nil {
		return err
	}

	in := b.g.Tensor(b.op.Inputs[0])
	kH, kW := filter.Shape[1], filter.Shape[2]

	var (
		w     []float32
		wDims []int64
		group = int64(1)
	)

	if b.op.Kind == graph.OpConv2D {
		w, wDims = ohwiToOIHW(f, filter.Shape)
	} else {
		w, wDims = depthwiseToOIHW(f, filter.Shape)
		group = int64(in.Shape[3])
	}

	x := b.operand(0)
	b.m.Initializers = append(b.m.Initializers, Initializer{Name: "w", DataType: elemFloat, Dims: wDims, Raw: dtype.Encode(w)})

	inputs := []string{x, "w"}
	if bias := b.g.Tensor(b.op.Inputs[2]); bias != nil {
		b.m.Initializers = append(b.m.Initializers, Initializer{Name: "b", DataType: elemFloat, Dims: dims64(bias.Shape), Raw: bias.Data})
		inputs = append(inputs, "b")
	}

	strides, dilations, pads := b.window(kH, kW)
	b.nchw("Conv", inputs, []Attribute{
		intsAttr("kernel_shape", int64(kH), int64(kW)),
		intsAttr("strides", strides...),
		intsAttr("dilations", dilations...),
		intsAttr("pads", pads...),
		intAttr("group", group),
	})

	return nil
}

func (b *builder) pool() error {
	kH, kW := b.op.Options.FilterH, b.op.Options.FilterW
	if kH <= 0 || kW <= 0 {
		return fmt.Errorf("%w: %s filter %dx%d", graph.ErrInvalidShape, b.op.Kind, kH, kW)
	}

	strides, _, pads := b.window(kH, kW)

	opType := "MaxPool"
	if b.op.Kind == graph.OpAveragePool2D {
		opType = "AveragePool"
	}

	b.nchw(opType, []string{b.operand(0)}, []Attribute{
		intsAttr("kernel_shape", int64(kH), int64(kW)),
		intsAttr("strides", strides...),
		intsAttr("pads", pads...),
	})

	return nil
}

// ohwiToOIHW reorders a [OC, KH, KW, IC] filter into ONNX [OC, IC, KH, KW].
func ohwiToOIHW(f []float32, shape []int32) ([]float32, []int64) {
	oc, kh, kw, ic := int(shape[0]), int(shape[1]), int(shape[2]), int(shape[3])
	w := make([]float32, len(f))

	for o := range oc {
		for y := range kh {
			for x := range kw {
				for c := range ic {
					w[((o*ic+c)*kh+y)*kw+x] = f[((o*kh+y)*kw+x)*ic+c]
				}
			}
		}
	}

	return w, []int64{int64(oc), int64(ic), int64(kh), int64(kw)}
}

// depthwiseToOIHW reorders a [1, KH, KW, C] depthwise filter into the
// grouped-convolution layout [C, 1, KH, KW].
func depthwiseToOIHW(f []float32, shape []int32) ([]float32, []int64) {
	kh, kw, ch := int(shape[1]), int(shape[2]), int(shape[3])
	w := make([]float32, len(f))

	for c := range ch {
		for y := range kh {
			for x := range kw {
				w[(c*kh+y)*kw+x] = f[(y*kw+x)*ch+c]
			}
		}
	}

	return w, []int64{int64(ch), 1, int64(kh), int64(kw)}
}

func dims64(shape []int32) []int64 {
	out := make([]int64, len(shape))
	for i, d := range shape {
		out[i] = int64(d)
	}

	return out
}

func int64Raw(values []int64) []byte {
	out := make([]byte, 0, 8*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint64(out, uint64(v))
	}

	return out
}
