package graph

import "github.com/example/go-opverify/internal/dtype"

// Padding selects the spatial padding scheme of convolution and pooling.
type Padding uint8

const (
	PaddingSame Padding = iota
	PaddingValid
)

func (p Padding) String() string {
	if p == PaddingValid {
		return "VALID"
	}

	return "SAME"
}

// Activation is a fused activation applied to an operator's output.
type Activation uint8

const (
	ActNone Activation = iota
	ActRelu
	ActReluN1To1
	ActRelu6
	ActTanh
	ActSigmoid
)

func (a Activation) String() string {
	switch a {
	case ActRelu:
		return "RELU"
	case ActReluN1To1:
		return "RELU_N1_TO_1"
	case ActRelu6:
		return "RELU6"
	case ActTanh:
		return "TANH"
	case ActSigmoid:
		return "SIGMOID"
	default:
		return "NONE"
	}
}

// Options is the operator parameter block. Each operator kind reads only the
// fields that apply to it; the rest keep their zero value and are omitted
// from the serialized form.
type Options struct {
	Padding         Padding
	StrideW         int32
	StrideH         int32
	DilationW       int32
	DilationH       int32
	FilterW         int32
	FilterH         int32
	DepthMultiplier int32
	Activation      Activation

	// Axis for concatenation, gather, pack, unpack, split and softmax-like ops.
	Axis int32
	// Count is the number of inputs (pack) or outputs (unpack, split).
	Count int32
	// BlockSize for space-to-depth / depth-to-space.
	BlockSize int32

	// Local response normalization parameters; Alpha doubles as the
	// leaky-relu slope and Beta as the softmax beta.
	Radius int32
	Bias   float32
	Alpha  float32
	Beta   float32

	BeginMask      int32
	EndMask        int32
	ShrinkAxisMask int32

	KeepDims bool
	NewShape []int32
	OutType  dtype.ElementType

	// LSTM clipping; zero disables clipping.
	CellClip float32
	ProjClip float32
}

// StridesOrDefault returns (strideH, strideW) with zero mapped to 1.
func (o Options) StridesOrDefault() (int32, int32) {
	return orOne(o.StrideH), orOne(o.StrideW)
}

// DilationsOrDefault returns (dilationH, dilationW) with zero mapped to 1.
func (o Options) DilationsOrDefault() (int32, int32) {
	return orOne(o.DilationH), orOne(o.DilationW)
}

func orOne(v int32) int32 {
	if v == 0 {
		return 1
	}

	return v
}
