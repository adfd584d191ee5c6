package graph

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph/schema"
)

// Serialize encodes g into a self-describing OPVG flatbuffer. Constant
// payloads are stored in the buffer table in tensor order; buffer 0 is the
// empty buffer shared by every non-constant tensor. The same graph always
// produces the same bytes.
func Serialize(g *Graph) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	b := flatbuffers.NewBuilder(1024)

	bufferIndex := make([]uint32, len(g.Tensors))
	bufferOffsets := []flatbuffers.UOffsetT{emptyBuffer(b)}

	for i := range g.Tensors {
		t := &g.Tensors[i]
		if !t.IsConstant() {
			continue
		}

		data := b.CreateByteVector(t.Data)
		schema.BufferStart(b)
		schema.BufferAddData(b, data)
		bufferIndex[i] = uint32(len(bufferOffsets))
		bufferOffsets = append(bufferOffsets, schema.BufferEnd(b))
	}

	tensorOffsets := make([]flatbuffers.UOffsetT, len(g.Tensors))
	for i := range g.Tensors {
		tensorOffsets[i] = encodeTensor(b, &g.Tensors[i], bufferIndex[i])
	}

	operatorOffsets := make([]flatbuffers.UOffsetT, len(g.Operators))
	for i := range g.Operators {
		operatorOffsets[i] = encodeOperator(b, &g.Operators[i])
	}

	description := b.CreateString(g.Description)
	tensors := b.CreateVectorOfTables(tensorOffsets)
	operators := b.CreateVectorOfTables(operatorOffsets)
	inputs := schema.CreateInt32Vector(b, g.Inputs)
	outputs := schema.CreateInt32Vector(b, g.Outputs)
	buffers := b.CreateVectorOfTables(bufferOffsets)

	schema.ModelStart(b)
	schema.ModelAddVersion(b, schema.SchemaVersion)
	schema.ModelAddDescription(b, description)
	schema.ModelAddTensors(b, tensors)
	schema.ModelAddOperators(b, operators)
	schema.ModelAddInputs(b, inputs)
	schema.ModelAddOutputs(b, outputs)
	schema.ModelAddBuffers(b, buffers)
	schema.FinishModelBuffer(b, schema.ModelEnd(b))

	return b.FinishedBytes(), nil
}

func emptyBuffer(b *flatbuffers.Builder) flatbuffers.UOffsetT {
	schema.BufferStart(b)
	return schema.BufferEnd(b)
}

func encodeTensor(b *flatbuffers.Builder, t *Tensor, buffer uint32) flatbuffers.UOffsetT {
	shape := schema.CreateInt32Vector(b, t.Shape)

	var name flatbuffers.UOffsetT
	if t.Name != "" {
		name = b.CreateString(t.Name)
	}

	var quant flatbuffers.UOffsetT
	if t.Quant != nil {
		schema.QuantizationParametersStart(b)
		schema.QuantizationParametersAddScale(b, t.Quant.Scale)
		schema.QuantizationParametersAddZeroPoint(b, t.Quant.ZeroPoint)
		quant = schema.QuantizationParametersEnd(b)
	}

	schema.TensorStart(b)
	schema.TensorAddShape(b, shape)
	schema.TensorAddType(b, byte(t.Type))
	schema.TensorAddBuffer(b, buffer)

	if name != 0 {
		schema.TensorAddName(b, name)
	}

	if quant != 0 {
		schema.TensorAddQuantization(b, quant)
	}

	schema.TensorAddIsVariable(b, t.Variable)

	return schema.TensorEnd(b)
}

func encodeOperator(b *flatbuffers.Builder, op *Operator) flatbuffers.UOffsetT {
	inputs := schema.CreateInt32Vector(b, op.Inputs)
	outputs := schema.CreateInt32Vector(b, op.Outputs)
	options := encodeOptions(b, &op.Options)

	schema.OperatorStart(b)
	schema.OperatorAddOpcode(b, uint16(op.Kind))
	schema.OperatorAddInputs(b, inputs)
	schema.OperatorAddOutputs(b, outputs)
	schema.OperatorAddOptions(b, options)

	return schema.OperatorEnd(b)
}

func encodeOptions(b *flatbuffers.Builder, o *Options) flatbuffers.UOffsetT {
	var newShape flatbuffers.UOffsetT
	if o.NewShape != nil {
		newShape = schema.CreateInt32Vector(b, o.NewShape)
	}

	schema.OperatorOptionsStart(b)
	schema.OperatorOptionsAddPadding(b, byte(o.Padding))
	schema.OperatorOptionsAddStrideW(b, o.StrideW)
	schema.OperatorOptionsAddStrideH(b, o.StrideH)
	schema.OperatorOptionsAddDilationW(b, o.DilationW)
	schema.OperatorOptionsAddDilationH(b, o.DilationH)
	schema.OperatorOptionsAddFilterW(b, o.FilterW)
	schema.OperatorOptionsAddFilterH(b, o.FilterH)
	schema.OperatorOptionsAddDepthMultiplier(b, o.DepthMultiplier)
	schema.OperatorOptionsAddFusedActivation(b, byte(o.Activation))
	schema.OperatorOptionsAddAxis(b, o.Axis)
	schema.OperatorOptionsAddCount(b, o.Count)
	schema.OperatorOptionsAddBlockSize(b, o.BlockSize)
	schema.OperatorOptionsAddRadius(b, o.Radius)
	schema.OperatorOptionsAddBias(b, o.Bias)
	schema.OperatorOptionsAddAlpha(b, o.Alpha)
	schema.OperatorOptionsAddBeta(b, o.Beta)
	schema.OperatorOptionsAddBeginMask(b, o.BeginMask)
	schema.OperatorOptionsAddEndMask(b, o.EndMask)
	schema.OperatorOptionsAddShrinkAxisMask(b, o.ShrinkAxisMask)
	schema.OperatorOptionsAddKeepDims(b, o.KeepDims)

	if newShape != 0 {
		schema.OperatorOptionsAddNewShape(b, newShape)
	}

	schema.OperatorOptionsAddOutType(b, byte(o.OutType))
	schema.OperatorOptionsAddCellClip(b, o.CellClip)
	schema.OperatorOptionsAddProjClip(b, o.ProjClip)

	return schema.OperatorOptionsEnd(b)
}

// Deserialize decodes an OPVG buffer produced by Serialize and validates the
// result. Any decoding failure, including an out-of-range offset inside the
// buffer, is reported as ErrMalformedBuffer.
func Deserialize(buf []byte) (g *Graph, err error) {
	if !schema.BufferHasIdentifier(buf) {
		return nil, fmt.Errorf("%w: missing %q file identifier", ErrMalformedBuffer, schema.FileIdentifier)
	}

	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = fmt.Errorf("%w: %v", ErrMalformedBuffer, r)
		}
	}()

	m := schema.GetRootAsModel(buf, 0)
	if v := m.Version(); v != schema.SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d", ErrMalformedBuffer, v, schema.SchemaVersion)
	}

	g = &Graph{
		Description: string(m.Description()),
		Inputs:      m.Inputs(),
		Outputs:     m.Outputs(),
	}

	buffers := make([][]byte, m.BuffersLength())
	var fb schema.Buffer
	for i := range buffers {
		if !m.Buffers(&fb, i) {
			return nil, fmt.Errorf("%w: buffer %d unreadable", ErrMalformedBuffer, i)
		}

		buffers[i] = fb.DataBytes()
	}

	g.Tensors = make([]Tensor, m.TensorsLength())
	var ft schema.Tensor
	for i := range g.Tensors {
		if !m.Tensors(&ft, i) {
			return nil, fmt.Errorf("%w: tensor %d unreadable", ErrMalformedBuffer, i)
		}

		t, err := decodeTensor(&ft, buffers)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}

		g.Tensors[i] = t
	}

	g.Operators = make([]Operator, m.OperatorsLength())
	var fo schema.Operator
	for i := range g.Operators {
		if !m.Operators(&fo, i) {
			return nil, fmt.Errorf("%w: operator %d unreadable", ErrMalformedBuffer, i)
		}

		g.Operators[i] = decodeOperator(&fo)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

func decodeTensor(ft *schema.Tensor, buffers [][]byte) (Tensor, error) {
	t := Tensor{
		Name:     string(ft.Name()),
		Type:     dtype.ElementType(ft.Type()),
		Shape:    ft.Shape(),
		Variable: ft.IsVariable(),
	}

	if t.Shape == nil {
		t.Shape = []int32{}
	}

	if q := ft.Quantization(nil); q != nil {
		t.Quant = &QuantParams{Scale: q.Scale(), ZeroPoint: q.ZeroPoint()}
	}

	idx := ft.Buffer()
	if int(idx) >= len(buffers) {
		return Tensor{}, fmt.Errorf("%w: buffer index %d out of range (%d buffers)", ErrMalformedBuffer, idx, len(buffers))
	}

	if idx != 0 {
		t.Data = append([]byte{}, buffers[idx]...)
	}

	return t, nil
}

func decodeOperator(fo *schema.Operator) Operator {
	op := Operator{
		Kind:    OpKind(fo.Opcode()),
		Inputs:  fo.Inputs(),
		Outputs: fo.Outputs(),
	}

	fopts := fo.Options(nil)
	if fopts == nil {
		return op
	}

	op.Options = Options{
		Padding:         Padding(fopts.Padding()),
		StrideW:         fopts.StrideW(),
		StrideH:         fopts.StrideH(),
		DilationW:       fopts.DilationW(),
		DilationH:       fopts.DilationH(),
		FilterW:         fopts.FilterW(),
		FilterH:         fopts.FilterH(),
		DepthMultiplier: fopts.DepthMultiplier(),
		Activation:      Activation(fopts.FusedActivation()),
		Axis:            fopts.Axis(),
		Count:           fopts.Count(),
		BlockSize:       fopts.BlockSize(),
		Radius:          fopts.Radius(),
		Bias:            fopts.Bias(),
		Alpha:           fopts.Alpha(),
		Beta:            fopts.Beta(),
		BeginMask:       fopts.BeginMask(),
		EndMask:         fopts.EndMask(),
		ShrinkAxisMask:  fopts.ShrinkAxisMask(),
		KeepDims:        fopts.KeepDims(),
		NewShape:        fopts.NewShape(),
		OutType:         dtype.ElementType(fopts.OutType()),
		CellClip:        fopts.CellClip(),
		ProjClip:        fopts.ProjClip(),
	}

	return op
}
