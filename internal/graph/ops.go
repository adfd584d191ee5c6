package graph

import (
	"fmt"
	"strings"
)

// OpKind identifies the computation performed by an operator. The numeric
// values are part of the serialized format and must not be reordered.
type OpKind uint16

const (
	OpUnknown OpKind = iota

	OpAbs
	OpNeg
	OpSqrt
	OpRsqrt
	OpExp
	OpLog
	OpSin
	OpCeil
	OpFloor
	OpLogicalNot

	OpRelu
	OpRelu6
	OpReluN1To1
	OpLogistic
	OpTanh
	OpElu
	OpHardSwish
	OpLeakyRelu

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMaximum
	OpMinimum
	OpPow
	OpSquaredDifference
	OpFloorDiv

	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpLogicalAnd
	OpLogicalOr

	OpConv2D
	OpDepthwiseConv2D
	OpFullyConnected

	OpAveragePool2D
	OpMaxPool2D
	OpL2Pool2D

	OpReshape
	OpConcatenation
	OpGather
	OpPack
	OpUnpack
	OpSplit
	OpSlice
	OpStridedSlice
	OpTranspose
	OpSpaceToDepth
	OpDepthToSpace
	OpSpaceToBatchND
	OpBatchToSpaceND

	OpLocalResponseNorm
	OpL2Normalization
	OpSoftmax

	OpCast
	OpUnidirectionalSequenceLSTM

	opKindCount
)

var opNames = [...]string{
	OpUnknown:                    "UNKNOWN",
	OpAbs:                        "ABS",
	OpNeg:                        "NEG",
	OpSqrt:                       "SQRT",
	OpRsqrt:                      "RSQRT",
	OpExp:                        "EXP",
	OpLog:                        "LOG",
	OpSin:                        "SIN",
	OpCeil:                       "CEIL",
	OpFloor:                      "FLOOR",
	OpLogicalNot:                 "LOGICAL_NOT",
	OpRelu:                       "RELU",
	OpRelu6:                      "RELU6",
	OpReluN1To1:                  "RELU_N1_TO_1",
	OpLogistic:                   "LOGISTIC",
	OpTanh:                       "TANH",
	OpElu:                        "ELU",
	OpHardSwish:                  "HARD_SWISH",
	OpLeakyRelu:                  "LEAKY_RELU",
	OpAdd:                        "ADD",
	OpSub:                        "SUB",
	OpMul:                        "MUL",
	OpDiv:                        "DIV",
	OpMaximum:                    "MAXIMUM",
	OpMinimum:                    "MINIMUM",
	OpPow:                        "POW",
	OpSquaredDifference:          "SQUARED_DIFFERENCE",
	OpFloorDiv:                   "FLOOR_DIV",
	OpEqual:                      "EQUAL",
	OpNotEqual:                   "NOT_EQUAL",
	OpLess:                       "LESS",
	OpLessEqual:                  "LESS_EQUAL",
	OpGreater:                    "GREATER",
	OpGreaterEqual:               "GREATER_EQUAL",
	OpLogicalAnd:                 "LOGICAL_AND",
	OpLogicalOr:                  "LOGICAL_OR",
	OpConv2D:                     "CONV_2D",
	OpDepthwiseConv2D:            "DEPTHWISE_CONV_2D",
	OpFullyConnected:             "FULLY_CONNECTED",
	OpAveragePool2D:              "AVERAGE_POOL_2D",
	OpMaxPool2D:                  "MAX_POOL_2D",
	OpL2Pool2D:                   "L2_POOL_2D",
	OpReshape:                    "RESHAPE",
	OpConcatenation:              "CONCATENATION",
	OpGather:                     "GATHER",
	OpPack:                       "PACK",
	OpUnpack:                     "UNPACK",
	OpSplit:                      "SPLIT",
	OpSlice:                      "SLICE",
	OpStridedSlice:               "STRIDED_SLICE",
	OpTranspose:                  "TRANSPOSE",
	OpSpaceToDepth:               "SPACE_TO_DEPTH",
	OpDepthToSpace:               "DEPTH_TO_SPACE",
	OpSpaceToBatchND:             "SPACE_TO_BATCH_ND",
	OpBatchToSpaceND:             "BATCH_TO_SPACE_ND",
	OpLocalResponseNorm:          "LOCAL_RESPONSE_NORMALIZATION",
	OpL2Normalization:            "L2_NORMALIZATION",
	OpSoftmax:                    "SOFTMAX",
	OpCast:                       "CAST",
	OpUnidirectionalSequenceLSTM: "UNIDIRECTIONAL_SEQUENCE_LSTM",
}

func (k OpKind) String() string {
	if k < opKindCount {
		return opNames[k]
	}

	return fmt.Sprintf("OP(%d)", uint16(k))
}

// Supported reports whether k is a known, executable operator kind.
func (k OpKind) Supported() bool {
	return k > OpUnknown && k < opKindCount
}

// ParseOpKind resolves an operator name (case-insensitive, "-" or "_").
func ParseOpKind(raw string) (OpKind, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_"))
	for k := OpKind(1); k < opKindCount; k++ {
		if opNames[k] == name {
			return k, nil
		}
	}

	return OpUnknown, fmt.Errorf("%w: %q", ErrUnsupportedOperator, raw)
}

// Family groups operators that share arity, type rules and kernels.
type Family uint8

const (
	FamilyOther Family = iota
	FamilyUnary
	FamilyActivation
	FamilyBinary
	FamilyComparison
	FamilyLogical
	FamilyConvolution
	FamilyPooling
	FamilyShape
	FamilyNormalization
)

// Family returns the operator family of k.
func (k OpKind) Family() Family {
	switch {
	case k >= OpAbs && k <= OpFloor:
		return FamilyUnary
	case k == OpLogicalNot, k == OpLogicalAnd, k == OpLogicalOr:
		return FamilyLogical
	case k >= OpRelu && k <= OpLeakyRelu:
		return FamilyActivation
	case k >= OpAdd && k <= OpFloorDiv:
		return FamilyBinary
	case k >= OpEqual && k <= OpGreaterEqual:
		return FamilyComparison
	case k >= OpConv2D && k <= OpFullyConnected:
		return FamilyConvolution
	case k >= OpAveragePool2D && k <= OpL2Pool2D:
		return FamilyPooling
	case k >= OpReshape && k <= OpBatchToSpaceND:
		return FamilyShape
	case k >= OpLocalResponseNorm && k <= OpSoftmax:
		return FamilyNormalization
	default:
		return FamilyOther
	}
}
