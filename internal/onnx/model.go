package onnx

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Constants of the ONNX model format written by Model.Marshal.
const (
	irVersion    = 8
	opsetVersion = 13
	producerName = "opverify"
)

// ONNX TensorProto.DataType values used here.
const (
	elemFloat = 1
	elemInt64 = 7
)

type attrType int32

const (
	attrFloat  attrType = 1
	attrInt    attrType = 2
	attrString attrType = 3
	attrFloats attrType = 6
	attrInts   attrType = 7
)

// Model is the subset of an ONNX ModelProto needed for single-operator
// graphs: nodes, constant initializers and fully static tensor signatures.
type Model struct {
	Name         string
	Nodes        []Node
	Initializers []Initializer
	Inputs       []ValueInfo
	Outputs      []ValueInfo
}

type Node struct {
	OpType  string
	Name    string
	Inputs  []string
	Outputs []string
	Attrs   []Attribute
}

type Attribute struct {
	Name   string
	Type   attrType
	F      float32
	I      int64
	S      string
	Floats []float32
	Ints   []int64
}

func intAttr(name string, v int64) Attribute {
	return Attribute{Name: name, Type: attrInt, I: v}
}

func intsAttr(name string, v ...int64) Attribute {
	return Attribute{Name: name, Type: attrInts, Ints: v}
}

type Initializer struct {
	Name     string
	DataType int32
	Dims     []int64
	Raw      []byte
}

type ValueInfo struct {
	Name     string
	ElemType int32
	Dims     []int64
}

// Marshal encodes m as a serialized onnx.ModelProto.
func (m *Model) Marshal() []byte {
	var b []byte

	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, irVersion)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, producerName)
	b = appendMessage(b, 7, m.marshalGraph())

	var opset []byte
	opset = protowire.AppendTag(opset, 1, protowire.BytesType)
	opset = protowire.AppendString(opset, "")
	opset = protowire.AppendTag(opset, 2, protowire.VarintType)
	opset = protowire.AppendVarint(opset, opsetVersion)

	return appendMessage(b, 8, opset)
}

func (m *Model) marshalGraph() []byte {
	var b []byte

	for i := range m.Nodes {
		b = appendMessage(b, 1, m.Nodes[i].marshal())
	}

	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, m.Name)

	for i := range m.Initializers {
		b = appendMessage(b, 5, m.Initializers[i].marshal())
	}

	for i := range m.Inputs {
		b = appendMessage(b, 11, m.Inputs[i].marshal())
	}

	for i := range m.Outputs {
		b = appendMessage(b, 12, m.Outputs[i].marshal())
	}

	return b
}

func (n *Node) marshal() []byte {
	var b []byte

	for _, in := range n.Inputs {
		b = appendString(b, 1, in)
	}

	for _, out := range n.Outputs {
		b = appendString(b, 2, out)
	}

	if n.Name != "" {
		b = appendString(b, 3, n.Name)
	}

	b = appendString(b, 4, n.OpType)

	for i := range n.Attrs {
		b = appendMessage(b, 5, n.Attrs[i].marshal())
	}

	return b
}

func (a *Attribute) marshal() []byte {
	b := appendString(nil, 1, a.Name)

	switch a.Type {
	case attrFloat:
		b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(a.F))
	case attrInt:
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(a.I))
	case attrString:
		b = appendString(b, 4, a.S)
	case attrFloats:
		for _, f := range a.Floats {
			b = protowire.AppendTag(b, 7, protowire.Fixed32Type)
			b = protowire.AppendFixed32(b, math.Float32bits(f))
		}
	case attrInts:
		for _, v := range a.Ints {
			b = protowire.AppendTag(b, 8, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(v))
		}
	}

	b = protowire.AppendTag(b, 20, protowire.VarintType)

	return protowire.AppendVarint(b, uint64(a.Type))
}

func (t *Initializer) marshal() []byte {
	var b []byte

	for _, d := range t.Dims {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d))
	}

	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.DataType))
	b = appendString(b, 8, t.Name)
	b = protowire.AppendTag(b, 9, protowire.BytesType)

	return protowire.AppendBytes(b, t.Raw)
}

func (v *ValueInfo) marshal() []byte {
	var shape []byte

	for _, d := range v.Dims {
		var dim []byte
		dim = protowire.AppendTag(dim, 1, protowire.VarintType)
		dim = protowire.AppendVarint(dim, uint64(d))
		shape = appendMessage(shape, 1, dim)
	}

	var tensor []byte
	tensor = protowire.AppendTag(tensor, 1, protowire.VarintType)
	tensor = protowire.AppendVarint(tensor, uint64(v.ElemType))
	tensor = appendMessage(tensor, 2, shape)

	b := appendString(nil, 1, v.Name)

	return appendMessage(b, 2, appendMessage(nil, 1, tensor))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}
