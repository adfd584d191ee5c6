package schema

import flatbuffers "github.com/google/flatbuffers/go"

type Operator struct {
	_tab flatbuffers.Table
}

func (rcv *Operator) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *Operator) Opcode() uint16 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetUint16(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *Operator) Inputs() []int32 {
	return int32Slot(&rcv._tab, 6)
}

func (rcv *Operator) Outputs() []int32 {
	return int32Slot(&rcv._tab, 8)
}

func (rcv *Operator) Options(obj *OperatorOptions) *OperatorOptions {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(10))
	if o != 0 {
		x := rcv._tab.Indirect(o + rcv._tab.Pos)
		if obj == nil {
			obj = new(OperatorOptions)
		}

		obj.Init(rcv._tab.Bytes, x)

		return obj
	}

	return nil
}

func OperatorStart(builder *flatbuffers.Builder) {
	builder.StartObject(4)
}

func OperatorAddOpcode(builder *flatbuffers.Builder, opcode uint16) {
	builder.PrependUint16Slot(0, opcode, 0)
}

func OperatorAddInputs(builder *flatbuffers.Builder, inputs flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, inputs, 0)
}

func OperatorAddOutputs(builder *flatbuffers.Builder, outputs flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(2, outputs, 0)
}

func OperatorAddOptions(builder *flatbuffers.Builder, options flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(3, options, 0)
}

func OperatorEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type OperatorOptions struct {
	_tab flatbuffers.Table
}

func (rcv *OperatorOptions) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *OperatorOptions) Padding() byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetByte(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) StrideW() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) StrideH() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) DilationW() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(10))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) DilationH() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(12))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) FilterW() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(14))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) FilterH() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(16))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) DepthMultiplier() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(18))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) FusedActivation() byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(20))
	if o != 0 {
		return rcv._tab.GetByte(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) Axis() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(22))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) Count() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(24))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) BlockSize() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(26))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) Radius() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(28))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) Bias() float32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(30))
	if o != 0 {
		return rcv._tab.GetFloat32(o + rcv._tab.Pos)
	}

	return 0.0
}

func (rcv *OperatorOptions) Alpha() float32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(32))
	if o != 0 {
		return rcv._tab.GetFloat32(o + rcv._tab.Pos)
	}

	return 0.0
}

func (rcv *OperatorOptions) Beta() float32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(34))
	if o != 0 {
		return rcv._tab.GetFloat32(o + rcv._tab.Pos)
	}

	return 0.0
}

func (rcv *OperatorOptions) BeginMask() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(36))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) EndMask() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(38))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) ShrinkAxisMask() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(40))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) KeepDims() bool {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(42))
	if o != 0 {
		return rcv._tab.GetBool(o + rcv._tab.Pos)
	}

	return false
}

func (rcv *OperatorOptions) NewShape() []int32 {
	return int32Slot(&rcv._tab, 44)
}

func (rcv *OperatorOptions) OutType() byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(46))
	if o != 0 {
		return rcv._tab.GetByte(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *OperatorOptions) CellClip() float32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(48))
	if o != 0 {
		return rcv._tab.GetFloat32(o + rcv._tab.Pos)
	}

	return 0.0
}

func (rcv *OperatorOptions) ProjClip() float32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(50))
	if o != 0 {
		return rcv._tab.GetFloat32(o + rcv._tab.Pos)
	}

	return 0.0
}

func OperatorOptionsStart(builder *flatbuffers.Builder) {
	builder.StartObject(24)
}

func OperatorOptionsAddPadding(builder *flatbuffers.Builder, padding byte) {
	builder.PrependByteSlot(0, padding, 0)
}

func OperatorOptionsAddStrideW(builder *flatbuffers.Builder, strideW int32) {
	builder.PrependInt32Slot(1, strideW, 0)
}

func OperatorOptionsAddStrideH(builder *flatbuffers.Builder, strideH int32) {
	builder.PrependInt32Slot(2, strideH, 0)
}

func OperatorOptionsAddDilationW(builder *flatbuffers.Builder, dilationW int32) {
	builder.PrependInt32Slot(3, dilationW, 0)
}

func OperatorOptionsAddDilationH(builder *flatbuffers.Builder, dilationH int32) {
	builder.PrependInt32Slot(4, dilationH, 0)
}

func OperatorOptionsAddFilterW(builder *flatbuffers.Builder, filterW int32) {
	builder.PrependInt32Slot(5, filterW, 0)
}

func OperatorOptionsAddFilterH(builder *flatbuffers.Builder, filterH int32) {
	builder.PrependInt32Slot(6, filterH, 0)
}

func OperatorOptionsAddDepthMultiplier(builder *flatbuffers.Builder, depthMultiplier int32) {
	builder.PrependInt32Slot(7, depthMultiplier, 0)
}

func OperatorOptionsAddFusedActivation(builder *flatbuffers.Builder, fusedActivation byte) {
	builder.PrependByteSlot(8, fusedActivation, 0)
}

func OperatorOptionsAddAxis(builder *flatbuffers.Builder, axis int32) {
	builder.PrependInt32Slot(9, axis, 0)
}

func OperatorOptionsAddCount(builder *flatbuffers.Builder, count int32) {
	builder.PrependInt32Slot(10, count, 0)
}

func OperatorOptionsAddBlockSize(builder *flatbuffers.Builder, blockSize int32) {
	builder.PrependInt32Slot(11, blockSize, 0)
}

func OperatorOptionsAddRadius(builder *flatbuffers.Builder, radius int32) {
	builder.PrependInt32Slot(12, radius, 0)
}

func OperatorOptionsAddBias(builder *flatbuffers.Builder, bias float32) {
	builder.PrependFloat32Slot(13, bias, 0.0)
}

func OperatorOptionsAddAlpha(builder *flatbuffers.Builder, alpha float32) {
	builder.PrependFloat32Slot(14, alpha, 0.0)
}

func OperatorOptionsAddBeta(builder *flatbuffers.Builder, beta float32) {
	builder.PrependFloat32Slot(15, beta, 0.0)
}

func OperatorOptionsAddBeginMask(builder *flatbuffers.Builder, beginMask int32) {
	builder.PrependInt32Slot(16, beginMask, 0)
}

func OperatorOptionsAddEndMask(builder *flatbuffers.Builder, endMask int32) {
	builder.PrependInt32Slot(17, endMask, 0)
}

func OperatorOptionsAddShrinkAxisMask(builder *flatbuffers.Builder, shrinkAxisMask int32) {
	builder.PrependInt32Slot(18, shrinkAxisMask, 0)
}

func OperatorOptionsAddKeepDims(builder *flatbuffers.Builder, keepDims bool) {
	builder.PrependBoolSlot(19, keepDims, false)
}

func OperatorOptionsAddNewShape(builder *flatbuffers.Builder, newShape flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(20, newShape, 0)
}

func OperatorOptionsAddOutType(builder *flatbuffers.Builder, outType byte) {
	builder.PrependByteSlot(21, outType, 0)
}

func OperatorOptionsAddCellClip(builder *flatbuffers.Builder, cellClip float32) {
	builder.PrependFloat32Slot(22, cellClip, 0.0)
}

func OperatorOptionsAddProjClip(builder *flatbuffers.Builder, projClip float32) {
	builder.PrependFloat32Slot(23, projClip, 0.0)
}

func OperatorOptionsEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
