package compare

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/x448/float16"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

func TestBoolTruthiness(t *testing.T) {
	tests := []struct {
		a, b byte
		want bool
	}{
		{0, 0, true},
		{1, 0, false},
		{0, 5, false},
		// Any nonzero byte is true, so differing true patterns agree.
		{255, 1, true},
	}

	for _, tt := range tests {
		r, err := CompareRaw(dtype.Bool, []byte{tt.a}, []byte{tt.b}, 1, Rule{})
		if got := err == nil; got != tt.want || r.Pass() != tt.want {
			t.Errorf("Compare(%d, %d) pass = %v (err %v), want %v", tt.a, tt.b, got, err, tt.want)
		}
	}
}

func TestIntegerUnits(t *testing.T) {
	tests := []struct {
		name string
		et   dtype.ElementType
		a, b []byte
		want bool
	}{
		{"int8 off by one", dtype.Int8, dtype.Encode([]int8{10}), dtype.Encode([]int8{11}), true},
		{"int8 off by two", dtype.Int8, dtype.Encode([]int8{10}), dtype.Encode([]int8{12}), false},
		{"uint8 off by one", dtype.UInt8, []byte{255}, []byte{254}, true},
		{"int16 off by two", dtype.Int16, dtype.Encode([]int16{-300}), dtype.Encode([]int16{-302}), false},
		{"int32 off by one", dtype.Int32, dtype.Encode([]int32{1 << 20}), dtype.Encode([]int32{1<<20 - 1}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompareRaw(tt.et, tt.a, tt.b, 1, Rule{})
			if got := err == nil; got != tt.want {
				t.Fatalf("pass = %v (err %v), want %v", got, err, tt.want)
			}
		})
	}
}

func TestFloatEpsilon(t *testing.T) {
	tests := []struct {
		a, b float32
		want bool
	}{
		{1.0, 1.000001, true},
		{1.0, 1.1, false},
		{-0.5, -0.500009, true},
	}

	for _, tt := range tests {
		_, err := Compare(View([]int32{1}, []float32{tt.a}), View([]int32{1}, []float32{tt.b}), Rule{})
		if got := err == nil; got != tt.want {
			t.Errorf("Compare(%v, %v) pass = %v (err %v), want %v", tt.a, tt.b, got, err, tt.want)
		}
	}
}

func TestPercentRule(t *testing.T) {
	exp := View([]int32{3}, []float32{100, -10, 0})

	tests := []struct {
		name   string
		actual []float32
		want   bool
	}{
		{"within one percent", []float32{100.9, -10.09, 0}, true},
		{"outside one percent", []float32{101.5, -10, 0}, false},
		{"zero needs exact", []float32{100, -10, 1e-9}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compare(exp, View([]int32{3}, tt.actual), Percent(1))
			if got := err == nil; got != tt.want {
				t.Fatalf("pass = %v (err %v), want %v", got, err, tt.want)
			}
		})
	}
}

func TestFloat16PackedAndNativeAgree(t *testing.T) {
	values := []float32{0.5, -1.25, 3.0}

	exact := PackFloat16(values)
	nudged := append([]byte{}, exact...)
	// Bump the first element by one unit in the last place.
	h := float16.Fromfloat32(values[0]).Bits() + 1
	nudged[0], nudged[1] = byte(h), byte(h>>8)

	far := PackFloat16([]float32{0.75, -1.25, 3.0})

	for _, tt := range []struct {
		name     string
		expected []float32
		actual   []byte
		want     bool
	}{
		{"identical", values, exact, true},
		{"one unit", values, nudged, true},
		{"far", values, far, false},
		{"negative zero", []float32{0}, halves(0x8000), true},
		{"positive zero vs negative", []float32{float32(math.Copysign(0, -1))}, halves(0x0000), true},
		{"smallest negative subnormal", []float32{0}, halves(0x8001), true},
		{"smallest positive subnormal", []float32{0}, halves(0x0001), true},
		{"opposite subnormals", []float32{float16.Frombits(0x0001).Float32()}, halves(0x8001), false},
		{"two units", []float32{0}, halves(0x0002), false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, packedErr := CompareRaw(dtype.Float16, PackFloat16(tt.expected), tt.actual, len(tt.expected), Rule{})
			_, nativeErr := CompareHalf(tt.expected, tt.actual, Rule{})

			if (packedErr == nil) != tt.want || (nativeErr == nil) != tt.want {
				t.Fatalf("packed err = %v, native err = %v, want pass %v", packedErr, nativeErr, tt.want)
			}
		})
	}
}

func halves(bits ...uint16) []byte {
	hs := make([]float16.Float16, len(bits))
	for i, b := range bits {
		hs[i] = float16.Frombits(b)
	}

	return dtype.Encode(hs)
}

func TestFloat16ViewSignedZero(t *testing.T) {
	pos := View([]int32{1}, []float16.Float16{float16.Frombits(0x0000)})
	neg := View([]int32{1}, []float16.Float16{float16.Frombits(0x8000)})

	if _, err := Compare(pos, neg, Rule{}); err != nil {
		t.Fatalf("Compare(+0, -0) = %v, want pass", err)
	}
}

func TestFloat32UnitsSignedZero(t *testing.T) {
	negZero := float32(math.Copysign(0, -1))
	tiny := math.Float32frombits(1)

	for _, tt := range []struct {
		name string
		a, b float32
		want bool
	}{
		{"signed zeros", 0, negZero, true},
		{"zero vs smallest negative", 0, -tiny, true},
		{"opposite smallest", tiny, -tiny, false},
		{"adjacent", 1, math.Nextafter32(1, 2), true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compare(View([]int32{1}, []float32{tt.a}), View([]int32{1}, []float32{tt.b}), Units(1))
			if (err == nil) != tt.want {
				t.Fatalf("Compare(%v, %v) err = %v, want pass %v", tt.a, tt.b, err, tt.want)
			}
		})
	}
}

func TestShapeMismatchPrecedence(t *testing.T) {
	err := AssertShapesEqual([]int32{1, 2, 2, 1}, []int32{1, 2, 2, 1}, []int32{1, 4, 1, 1})

	var sm *ShapeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("err = %v, want ShapeMismatchError", err)
	}

	if sm.Pair != PairExpectedAccelerated {
		t.Fatalf("pair = %s, want %s", sm.Pair, PairExpectedAccelerated)
	}

	a := View([]int32{1, 2, 2, 1}, []float32{1, 2, 3, 4})
	b := View([]int32{1, 4, 1, 1}, []float32{1, 2, 3, 4})

	if _, err := Compare(a, b, Rule{}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Compare err = %v, want ErrShapeMismatch", err)
	}
}

func TestReportFirstMismatch(t *testing.T) {
	exp := View([]int32{4}, []int8{1, 2, 3, 4})
	act := View([]int32{4}, []int8{1, 5, 3, -4})

	r, err := Compare(exp, act, Rule{})

	var vt *ValueToleranceExceededError
	if !errors.As(err, &vt) {
		t.Fatalf("err = %v, want ValueToleranceExceededError", err)
	}

	if vt.Index != 1 || vt.Expected != 2 || vt.Actual != 5 || vt.Failed != 2 {
		t.Fatalf("error = %+v", vt)
	}

	want := []Mismatch{{Index: 1, Expected: 2, Actual: 5}, {Index: 3, Expected: 4, Actual: -4}}
	if diff := cmp.Diff(want, r.Mismatches); diff != "" {
		t.Fatalf("mismatches (-want +got):\n%s", diff)
	}

	if r.FirstIndex != 1 || r.MaxAbsDiff != 8 {
		t.Fatalf("report = %+v", r)
	}
}

func TestTriangular(t *testing.T) {
	shape := []int32{1, 3, 3, 1}
	q := graph.QuantParams{Scale: 2}
	expected := QuantView(shape, []uint8{12, 23, 24, 34, 65, 61, 60, 104, 84}, q)

	t.Run("all pass", func(t *testing.T) {
		ref := QuantView(shape, []uint8{12, 23, 24, 34, 65, 61, 60, 104, 84}, q)
		acc := QuantView(shape, []uint8{12, 22, 24, 34, 65, 61, 60, 104, 85}, q)

		tr, err := Triangular(expected, ref, acc, Rule{})
		if err != nil {
			t.Fatalf("Triangular: %v", err)
		}

		if !tr.Pass() || len(tr.Reports) != 3 {
			t.Fatalf("report = %+v", tr)
		}

		order := []Pair{PairExpectedAccelerated, PairExpectedReference, PairReferenceAccelerated}
		for i, r := range tr.Reports {
			if r.Pair != order[i] {
				t.Fatalf("report %d pair = %s, want %s", i, r.Pair, order[i])
			}
		}
	})

	t.Run("accelerated diverges", func(t *testing.T) {
		ref := expected
		acc := QuantView(shape, []uint8{12, 23, 24, 34, 70, 61, 60, 104, 84}, q)

		tr, err := Triangular(expected, ref, acc, Rule{})
		if err == nil {
			t.Fatal("Triangular passed, want failure")
		}

		var pairs []Pair
		for _, r := range tr.Reports {
			if !r.Pass() {
				pairs = append(pairs, r.Pair)
			}
		}

		want := []Pair{PairExpectedAccelerated, PairReferenceAccelerated}
		if diff := cmp.Diff(want, pairs); diff != "" {
			t.Fatalf("failing pairs (-want +got):\n%s", diff)
		}

		if !errors.Is(err, ErrValueToleranceExceeded) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("shape mismatch stops values", func(t *testing.T) {
		bad := QuantView([]int32{1, 9}, []uint8{12, 23, 24, 34, 65, 61, 60, 104, 84}, q)

		tr, err := Triangular(expected, bad, expected, Rule{})
		if !errors.Is(err, ErrShapeMismatch) || len(tr.Reports) != 0 {
			t.Fatalf("err = %v, reports = %d", err, len(tr.Reports))
		}
	})
}

func TestRuleFor(t *testing.T) {
	tests := []struct {
		kind graph.OpKind
		et   dtype.ElementType
		want Rule
	}{
		{graph.OpAbs, dtype.Float32, Abs(DefaultEpsilon)},
		{graph.OpAbs, dtype.Bool, Rule{Kind: KindBool}},
		{graph.OpUnidirectionalSequenceLSTM, dtype.Float32, Percent(1)},
		{graph.OpAdd, dtype.Int8, Units(1)},
		{graph.OpAdd, dtype.Float16, Units(1)},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, RuleFor(tt.kind, tt.et)); diff != "" {
			t.Errorf("RuleFor(%s, %s) (-want +got):\n%s", tt.kind, tt.et, diff)
		}
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Percent ")
	if err != nil || k != KindPercent {
		t.Fatalf("ParseKind = %v, %v", k, err)
	}

	if _, err := ParseKind("relative"); err == nil {
		t.Fatal("ParseKind accepted an unknown kind")
	}
}

func TestCompareRawRejectsShortPayload(t *testing.T) {
	if _, err := CompareRaw(dtype.Float32, make([]byte, 4), make([]byte, 8), 2, Rule{}); !errors.Is(err, graph.ErrInvalidShape) {
		t.Fatalf("err = %v, want ErrInvalidShape", err)
	}
}
