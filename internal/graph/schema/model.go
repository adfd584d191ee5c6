package schema

import flatbuffers "github.com/google/flatbuffers/go"

type Model struct {
	_tab flatbuffers.Table
}

func GetRootAsModel(buf []byte, offset flatbuffers.UOffsetT) *Model {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &Model{}
	x.Init(buf, n+offset)

	return x
}

func FinishModelBuffer(builder *flatbuffers.Builder, offset flatbuffers.UOffsetT) {
	builder.FinishWithFileIdentifier(offset, []byte(FileIdentifier))
}

func (rcv *Model) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *Model) Table() flatbuffers.Table {
	return rcv._tab
}

func (rcv *Model) Version() uint32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetUint32(o + rcv._tab.Pos)
	}

	return 0
}

func (rcv *Model) Description() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}

	return nil
}

func (rcv *Model) Tensors(obj *Tensor, j int) bool {
	x, ok := tableAt(&rcv._tab, 8, j)
	if ok {
		obj.Init(rcv._tab.Bytes, x)
	}

	return ok
}

func (rcv *Model) TensorsLength() int {
	return vectorLen(&rcv._tab, 8)
}

func (rcv *Model) Operators(obj *Operator, j int) bool {
	x, ok := tableAt(&rcv._tab, 10, j)
	if ok {
		obj.Init(rcv._tab.Bytes, x)
	}

	return ok
}

func (rcv *Model) OperatorsLength() int {
	return vectorLen(&rcv._tab, 10)
}

func (rcv *Model) Inputs() []int32 {
	return int32Slot(&rcv._tab, 12)
}

func (rcv *Model) Outputs() []int32 {
	return int32Slot(&rcv._tab, 14)
}

func (rcv *Model) Buffers(obj *Buffer, j int) bool {
	x, ok := tableAt(&rcv._tab, 16, j)
	if ok {
		obj.Init(rcv._tab.Bytes, x)
	}

	return ok
}

func (rcv *Model) BuffersLength() int {
	return vectorLen(&rcv._tab, 16)
}

func ModelStart(builder *flatbuffers.Builder) {
	builder.StartObject(7)
}

func ModelAddVersion(builder *flatbuffers.Builder, version uint32) {
	builder.PrependUint32Slot(0, version, 0)
}

func ModelAddDescription(builder *flatbuffers.Builder, description flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, description, 0)
}

func ModelAddTensors(builder *flatbuffers.Builder, tensors flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(2, tensors, 0)
}

func ModelAddOperators(builder *flatbuffers.Builder, operators flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(3, operators, 0)
}

func ModelAddInputs(builder *flatbuffers.Builder, inputs flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(4, inputs, 0)
}

func ModelAddOutputs(builder *flatbuffers.Builder, outputs flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(5, outputs, 0)
}

func ModelAddBuffers(builder *flatbuffers.Builder, buffers flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(6, buffers, 0)
}

func ModelEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
