package compare

import (
	"errors"
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

// Pair names which two tensors a comparison covered.
type Pair uint8

const (
	PairExpectedActual Pair = iota
	PairExpectedAccelerated
	PairExpectedReference
	PairReferenceAccelerated
)

func (p Pair) String() string {
	switch p {
	case PairExpectedAccelerated:
		return "expected-vs-accelerated"
	case PairExpectedReference:
		return "expected-vs-reference"
	case PairReferenceAccelerated:
		return "reference-vs-accelerated"
	default:
		return "expected-vs-actual"
	}
}

// MarshalText renders the pair name in reports.
func (p Pair) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// TensorView is a read-only tensor taken out of an execution context or
// built from expected values.
type TensorView struct {
	Type  dtype.ElementType
	Shape []int32
	Quant graph.QuantParams
	Data  []byte
}

// View builds a TensorView from native values.
func View[T dtype.Native](shape []int32, values []T) TensorView {
	return TensorView{Type: dtype.TypeOf[T](), Shape: shape, Quant: graph.DefaultQuant, Data: dtype.Encode(values)}
}

// QuantView builds a quantized TensorView from raw integer values.
func QuantView[T dtype.Native](shape []int32, values []T, q graph.QuantParams) TensorView {
	v := View(shape, values)
	v.Quant = q

	return v
}

// Len returns the element count carried by the payload.
func (v TensorView) Len() int {
	if v.Type.Size() == 0 {
		return 0
	}

	return len(v.Data) / v.Type.Size()
}

// maxListed bounds Report.Mismatches.
const maxListed = 16

// Mismatch is one failing element. Values are raw for integer and bool
// tensors and real for floats.
type Mismatch struct {
	Index    int     `json:"index"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

// Report is the per-element outcome of one comparison.
type Report struct {
	Pair       Pair       `json:"pair"`
	Rule       string     `json:"rule"`
	Size       int        `json:"size"`
	Failed     int        `json:"failed"`
	FirstIndex int        `json:"first_index"`
	MaxAbsDiff float64    `json:"max_abs_diff"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// Pass reports whether every element passed.
func (r Report) Pass() bool { return r.Failed == 0 }

// Compare checks actual against expected element by element. Shapes are
// asserted first; a failing element yields a ValueToleranceExceededError
// alongside the full report.
func Compare(expected, actual TensorView, rule Rule) (Report, error) {
	return comparePair(PairExpectedActual, expected, actual, rule)
}

func comparePair(pair Pair, expected, actual TensorView, rule Rule) (Report, error) {
	if expected.Shape != nil && actual.Shape != nil && !graph.EqualShape(expected.Shape, actual.Shape) {
		return Report{Pair: pair, FirstIndex: -1}, &ShapeMismatchError{Pair: pair, Expected: expected.Shape, Actual: actual.Shape}
	}

	if expected.Type != actual.Type {
		return Report{Pair: pair, FirstIndex: -1}, fmt.Errorf("%w: %s compares %s with %s", graph.ErrTypeMismatch, pair, expected.Type, actual.Type)
	}

	size := expected.Len()
	if actual.Len() != size {
		return Report{Pair: pair, FirstIndex: -1}, &ShapeMismatchError{Pair: pair, Expected: expected.Shape, Actual: actual.Shape, ExpectedLen: size, ActualLen: actual.Len()}
	}

	return compareRaw(pair, expected.Type, expected.Data, actual.Data, size, rule)
}

// CompareRaw compares the first size elements of two raw payloads of type et.
func CompareRaw(et dtype.ElementType, expected, actual []byte, size int, rule Rule) (Report, error) {
	return compareRaw(PairExpectedActual, et, expected, actual, size, rule)
}

func compareRaw(pair Pair, et dtype.ElementType, expected, actual []byte, size int, rule Rule) (Report, error) {
	rule = rule.Resolve(et)
	r := Report{Pair: pair, Rule: rule.String(), Size: size, FirstIndex: -1}

	if !et.Valid() {
		return r, fmt.Errorf("%w: unknown element type %d", graph.ErrTypeMismatch, uint8(et))
	}

	need := size * et.Size()
	if size < 0 || len(expected) < need || len(actual) < need {
		return r, fmt.Errorf("%w: %d elements of %s need %d bytes, got %d and %d", graph.ErrInvalidShape, size, et, need, len(expected), len(actual))
	}

	for i := range size {
		ok, a, b := elementEqual(et, expected, actual, i, rule)
		if d := math.Abs(a - b); d > r.MaxAbsDiff || math.IsNaN(d) {
			r.MaxAbsDiff = d
		}

		if ok {
			continue
		}

		if r.Failed == 0 {
			r.FirstIndex = i
		}

		r.Failed++

		if len(r.Mismatches) < maxListed {
			r.Mismatches = append(r.Mismatches, Mismatch{Index: i, Expected: a, Actual: b})
		}
	}

	if r.Failed > 0 {
		m := r.Mismatches[0]

		return r, &ValueToleranceExceededError{
			Pair: pair, Type: et, Rule: rule.String(),
			Index: m.Index, Expected: m.Expected, Actual: m.Actual, Failed: r.Failed, Size: size,
		}
	}

	return r, nil
}

// elementEqual applies rule to element i and returns the two values it
// compared, for reporting.
func elementEqual(et dtype.ElementType, expected, actual []byte, i int, rule Rule) (bool, float64, float64) {
	switch rule.Kind {
	case KindBool:
		a, b := expected[i] != 0, actual[i] != 0
		return a == b, float64(expected[i]), float64(actual[i])
	case KindExact:
		sz := et.Size()
		return string(expected[i*sz:(i+1)*sz]) == string(actual[i*sz:(i+1)*sz]), valueOf(et, expected, i), valueOf(et, actual, i)
	case KindUnits:
		a, b := rawUnits(et, expected, i), rawUnits(et, actual, i)
		d := a - b

		return d <= rule.Units && d >= -rule.Units, valueOf(et, expected, i), valueOf(et, actual, i)
	}

	a, b := valueOf(et, expected, i), valueOf(et, actual, i)
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b), a, b
	}

	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b, a, b
	}

	d := math.Abs(a - b)
	if rule.Kind == KindPercent {
		return d <= math.Abs(a)*rule.Percent/100, a, b
	}

	return d <= rule.Epsilon, a, b
}

// valueOf reads element i as a real number for floats and as the raw value
// for integers.
func valueOf(et dtype.ElementType, raw []byte, i int) float64 {
	return dtype.ElementFloat64(et, raw, i)
}

// rawUnits reads element i in the unit the Units rule counts: raw integers,
// and for floats the bit pattern mapped onto a monotonic ordinal so that
// signed zeros coincide and neighbours across zero are one unit apart.
func rawUnits(et dtype.ElementType, raw []byte, i int) int64 {
	switch et {
	case dtype.Float32:
		return floatOrdinal(int64(math.Float32bits(float32(dtype.ElementFloat64(et, raw, i)))), 1<<31)
	case dtype.Float16:
		return floatOrdinal(dtype.ElementInt64(et, raw, i), 1<<15)
	}

	return dtype.ElementInt64(et, raw, i)
}

// floatOrdinal turns sign-magnitude bits into a two's-complement style
// ordinal. signBit is the mask of the sign bit.
func floatOrdinal(bits, signBit int64) int64 {
	if bits&signBit != 0 {
		return -(bits &^ signBit)
	}

	return bits
}

// PackFloat16 converts native values into the packed half-precision layout
// so they can be compared against a float16 tensor payload.
func PackFloat16(values []float32) []byte {
	halves := make([]float16.Float16, len(values))
	for i, v := range values {
		halves[i] = float16.Fromfloat32(v)
	}

	return dtype.Encode(halves)
}

// CompareHalf compares float32 expectations against a packed float16
// payload by first packing the expectations.
func CompareHalf(expected []float32, actual []byte, rule Rule) (Report, error) {
	return CompareRaw(dtype.Float16, PackFloat16(expected), actual, len(expected), rule)
}

// AssertShapesEqual checks the reference shape a and the accelerated shape b
// against expected on rank and every dimension. Every mismatch is reported.
func AssertShapesEqual(expected, a, b []int32) error {
	var errs []error

	if !graph.EqualShape(expected, a) {
		errs = append(errs, &ShapeMismatchError{Pair: PairExpectedReference, Expected: expected, Actual: a})
	}

	if !graph.EqualShape(expected, b) {
		errs = append(errs, &ShapeMismatchError{Pair: PairExpectedAccelerated, Expected: expected, Actual: b})
	}

	return errors.Join(errs...)
}

// TriangularReport holds the three pairwise reports in check order.
type TriangularReport struct {
	Reports []Report `json:"reports"`
}

// Pass reports whether all three pairs passed.
func (t TriangularReport) Pass() bool {
	if len(t.Reports) != 3 {
		return false
	}

	for _, r := range t.Reports {
		if !r.Pass() {
			return false
		}
	}

	return true
}

// Triangular asserts shapes, then compares expected-vs-accelerated,
// expected-vs-reference and reference-vs-accelerated. Every failing pair is
// returned, joined.
func Triangular(expected, reference, accelerated TensorView, rule Rule) (TriangularReport, error) {
	var tr TriangularReport

	if err := AssertShapesEqual(expected.Shape, reference.Shape, accelerated.Shape); err != nil {
		return tr, err
	}

	var errs []error

	for _, p := range []struct {
		pair Pair
		a, b TensorView
	}{
		{PairExpectedAccelerated, expected, accelerated},
		{PairExpectedReference, expected, reference},
		{PairReferenceAccelerated, reference, accelerated},
	} {
		r, err := comparePair(p.pair, p.a, p.b, rule)
		tr.Reports = append(tr.Reports, r)

		if err != nil {
			errs = append(errs, err)
		}
	}

	return tr, errors.Join(errs...)
}
