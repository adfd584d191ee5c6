// Package opgraph builds single-operator graphs: one computation operator
// wired to its primary inputs, auxiliary constants and outputs. These are the
// unit-test models the harness loads into each backend.
package opgraph

import (
	"fmt"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

// IOShapes lists the shapes of the primary (fillable) inputs and of the
// outputs. Operators with a count attribute may pass a single input or output
// shape, which is then repeated Count times.
type IOShapes struct {
	Inputs  [][]int32
	Outputs [][]int32
}

// ConstTensor is an auxiliary operand: a constant payload, an absent optional
// operand or a zero-initialised state tensor.
type ConstTensor struct {
	Name     string
	Type     dtype.ElementType
	Shape    []int32
	Data     []byte
	Quant    *graph.QuantParams
	Absent   bool
	Variable bool
}

// Const builds a constant operand from native values.
func Const[T dtype.Native](name string, shape []int32, values []T) ConstTensor {
	return ConstTensor{
		Name:  name,
		Type:  dtype.TypeOf[T](),
		Shape: shape,
		Data:  dtype.Encode(values),
	}
}

// QuantConst builds a quantized constant operand.
func QuantConst[T dtype.Native](name string, shape []int32, values []T, q graph.QuantParams) ConstTensor {
	c := Const(name, shape, values)
	c.Quant = &q

	return c
}

// Absent marks an omitted optional operand.
func Absent() ConstTensor {
	return ConstTensor{Absent: true}
}

// State declares a zero-initialised variable tensor.
func State(name string, et dtype.ElementType, shape []int32) ConstTensor {
	return ConstTensor{Name: name, Type: et, Shape: shape, Variable: true}
}

// Attributes carries everything besides kind, element type and shapes.
type Attributes struct {
	// InputQuant and OutputQuant apply to integer primary inputs and outputs.
	// Nil means scale 1, zero point 0.
	InputQuant  *graph.QuantParams
	OutputQuant *graph.QuantParams
	Constants   []ConstTensor
	Options     graph.Options
	Description string
}

// BuildGraph assembles the single-operator graph for kind over element type
// et. Tensors are appended as primary inputs, then constants (in operand
// order), then outputs. On error no graph is returned.
func BuildGraph(kind graph.OpKind, et dtype.ElementType, shapes IOShapes, attrs Attributes) (*graph.Graph, error) {
	if !kind.Supported() {
		return nil, fmt.Errorf("%w: %s", graph.ErrUnsupportedOperator, kind)
	}

	if !et.Valid() {
		return nil, fmt.Errorf("%w: %s has unknown element type %d", graph.ErrTypeMismatch, kind, uint8(et))
	}

	if err := checkElementType(kind, et, attrs.Options); err != nil {
		return nil, err
	}

	if attrs.Options.NewShape != nil {
		attrs.Options.NewShape = cloneShape(attrs.Options.NewShape)
	}

	inShapes, outShapes, err := expandShapes(kind, shapes, &attrs.Options)
	if err != nil {
		return nil, err
	}

	if err := checkArity(kind, len(inShapes), len(attrs.Constants), len(outShapes)); err != nil {
		return nil, err
	}

	inQuant, outQuant, err := resolveQuant(kind, et, attrs)
	if err != nil {
		return nil, err
	}

	g := &graph.Graph{Description: attrs.Description}
	if g.Description == "" {
		g.Description = fmt.Sprintf("%s %s", kind, et)
	}

	op := graph.Operator{Kind: kind, Options: attrs.Options}

	for i, shape := range inShapes {
		t := graph.Tensor{
			Name:  indexedName("input", i, len(inShapes)),
			Type:  inputType(kind, et, i),
			Shape: cloneShape(shape),
		}
		if t.Type == et {
			t.Quant = inQuant
		}

		idx := appendTensor(g, t)
		g.Inputs = append(g.Inputs, idx)
		op.Inputs = append(op.Inputs, idx)
	}

	for i, c := range attrs.Constants {
		if c.Absent {
			op.Inputs = append(op.Inputs, graph.OptionalInput)
			continue
		}

		t, err := constantTensor(i, c)
		if err != nil {
			return nil, fmt.Errorf("%s constant %d: %w", kind, i, err)
		}

		op.Inputs = append(op.Inputs, appendTensor(g, t))
	}

	outType := outputType(kind, et, attrs.Options)
	for i, shape := range outShapes {
		t := graph.Tensor{
			Name:  indexedName("output", i, len(outShapes)),
			Type:  outType,
			Shape: cloneShape(shape),
		}
		if outType.IsInteger() {
			t.Quant = outQuant
		}

		idx := appendTensor(g, t)
		g.Outputs = append(g.Outputs, idx)
		op.Outputs = append(op.Outputs, idx)
	}

	g.Operators = []graph.Operator{op}

	if err := checkShapes(g, &g.Operators[0]); err != nil {
		return nil, err
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// Build is BuildGraph followed by graph.Serialize.
func Build(kind graph.OpKind, et dtype.ElementType, shapes IOShapes, attrs Attributes) (*graph.Graph, []byte, error) {
	g, err := BuildGraph(kind, et, shapes, attrs)
	if err != nil {
		return nil, nil, err
	}

	buf, err := graph.Serialize(g)
	if err != nil {
		return nil, nil, err
	}

	return g, buf, nil
}

func appendTensor(g *graph.Graph, t graph.Tensor) int32 {
	g.Tensors = append(g.Tensors, t)
	return int32(len(g.Tensors) - 1)
}

func indexedName(base string, i, n int) string {
	if n == 1 {
		return base
	}

	return fmt.Sprintf("%s_%d", base, i)
}

func cloneShape(shape []int32) []int32 {
	return append([]int32{}, shape...)
}

func constantTensor(i int, c ConstTensor) (graph.Tensor, error) {
	if !c.Type.Valid() {
		return graph.Tensor{}, fmt.Errorf("%w: unknown element type %d", graph.ErrTypeMismatch, uint8(c.Type))
	}

	if err := checkDims(c.Shape); err != nil {
		return graph.Tensor{}, err
	}

	name := c.Name
	if name == "" {
		name = fmt.Sprintf("const_%d", i)
	}

	t := graph.Tensor{Name: name, Type: c.Type, Shape: cloneShape(c.Shape), Variable: c.Variable}

	if c.Quant != nil {
		if !c.Type.IsInteger() && *c.Quant != graph.DefaultQuant {
			return graph.Tensor{}, fmt.Errorf("%w: quantization on %s constant", graph.ErrTypeMismatch, c.Type)
		}

		q := *c.Quant
		t.Quant = &q
	} else if c.Type.IsInteger() {
		q := graph.DefaultQuant
		t.Quant = &q
	}

	if c.Variable {
		if c.Data != nil {
			return graph.Tensor{}, fmt.Errorf("%w: variable tensor %q carries data", graph.ErrInvalidGraph, name)
		}

		return t, nil
	}

	if want := t.ByteSize(); want < 0 || int64(len(c.Data)) != want {
		return graph.Tensor{}, fmt.Errorf("%w: constant %q has %d bytes, shape %v of %s needs %d",
			graph.ErrInvalidShape, name, len(c.Data), c.Shape, c.Type, want)
	}

	t.Data = append([]byte{}, c.Data...)

	return t, nil
}

func resolveQuant(kind graph.OpKind, et dtype.ElementType, attrs Attributes) (*graph.QuantParams, *graph.QuantParams, error) {
	pick := func(what string, q *graph.QuantParams, integer bool) (*graph.QuantParams, error) {
		if q == nil {
			if !integer {
				return nil, nil
			}

			d := graph.DefaultQuant

			return &d, nil
		}

		if !integer && *q != graph.DefaultQuant {
			return nil, fmt.Errorf("%w: %s %s quantization requires an integer type", graph.ErrTypeMismatch, kind, what)
		}

		if !integer {
			return nil, nil
		}

		if q.Scale <= 0 {
			return nil, fmt.Errorf("%w: %s %s quantization scale %v must be positive", graph.ErrTypeMismatch, kind, what, q.Scale)
		}

		c := *q

		return &c, nil
	}

	in, err := pick("input", attrs.InputQuant, et.IsInteger())
	if err != nil {
		return nil, nil, err
	}

	out, err := pick("output", attrs.OutputQuant, outputType(kind, et, attrs.Options).IsInteger())
	if err != nil {
		return nil, nil, err
	}

	return in, out, nil
}
