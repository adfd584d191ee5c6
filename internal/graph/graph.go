// Package graph holds the in-memory model descriptor shared by the builder,
// the serializer and the execution harness: tensors, operators and the graph
// input/output designation.
package graph

import (
	"fmt"
	"math"

	"github.com/example/go-opverify/internal/dtype"
)

// OptionalInput marks an absent optional operand in an operator input list.
const OptionalInput int32 = -1

// QuantParams maps raw integer values to reals: real = (raw - ZeroPoint) * Scale.
type QuantParams struct {
	Scale     float32
	ZeroPoint int32
}

// DefaultQuant is the pass-through quantization used when none is supplied.
var DefaultQuant = QuantParams{Scale: 1, ZeroPoint: 0}

// Dequantize converts a raw value into its real value.
func (q QuantParams) Dequantize(raw float64) float64 {
	return (raw - float64(q.ZeroPoint)) * float64(q.Scale)
}

// Quantize converts a real value into the raw domain (unrounded).
func (q QuantParams) Quantize(real float64) float64 {
	if q.Scale == 0 {
		return float64(q.ZeroPoint)
	}

	return real/float64(q.Scale) + float64(q.ZeroPoint)
}

// Tensor describes one tensor slot.
type Tensor struct {
	Name  string
	Type  dtype.ElementType
	Shape []int32
	Quant *QuantParams
	// Data is the constant payload; nil for inputs, outputs and intermediates.
	Data []byte
	// Variable tensors hold zero-initialised state (e.g. LSTM output/cell
	// state). They are neither constant nor externally fillable.
	Variable bool
}

// IsConstant reports whether the tensor carries a constant payload.
func (t *Tensor) IsConstant() bool {
	return t.Data != nil
}

// ElemCount returns the product of the shape dimensions.
func (t *Tensor) ElemCount() int64 {
	return ShapeElemCount(t.Shape)
}

// ByteSize returns ElemCount times the element size.
func (t *Tensor) ByteSize() int64 {
	n := t.ElemCount()
	sz := int64(t.Type.Size())
	if n < 0 || (sz > 0 && n > math.MaxInt64/sz) {
		return -1
	}

	return n * sz
}

// QuantOrDefault returns the tensor quantization or the pass-through default.
func (t *Tensor) QuantOrDefault() QuantParams {
	if t.Quant == nil {
		return DefaultQuant
	}

	return *t.Quant
}

// Operator describes one computation node.
type Operator struct {
	Kind    OpKind
	Inputs  []int32
	Outputs []int32
	Options Options
}

// Graph is the complete model descriptor.
type Graph struct {
	Description string
	Tensors     []Tensor
	Operators   []Operator
	Inputs      []int32
	Outputs     []int32
}

// Tensor returns the descriptor at index i or nil for the optional sentinel.
func (g *Graph) Tensor(i int32) *Tensor {
	if i == OptionalInput || i < 0 || int(i) >= len(g.Tensors) {
		return nil
	}

	return &g.Tensors[i]
}

// ShapeElemCount returns the element count of shape; -1 on overflow or a
// negative dimension. An empty shape is a scalar with one element.
func ShapeElemCount(shape []int32) int64 {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return -1
		}

		if d != 0 && n > math.MaxInt64/int64(d) {
			return -1
		}

		n *= int64(d)
	}

	return n
}

// ShapeString formats a shape as [d0,d1,...].
func ShapeString(shape []int32) string {
	return fmt.Sprint(shape)
}

// EqualShape reports whether a and b have identical rank and dimensions.
func EqualShape(a, b []int32) bool {
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
