package tensor

import (
	"math"
	"testing"
)

func TestSoftmax(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 1, 1, 1}, []int64{2, 3})

	y, err := Softmax(x, -1)
	if err != nil {
		t.Fatalf("softmax: %v", err)
	}

	e1, e2, e3 := math.Exp(1), math.Exp(2), math.Exp(3)
	s := e1 + e2 + e3
	want := []float32{float32(e1 / s), float32(e2 / s), float32(e3 / s), 1.0 / 3, 1.0 / 3, 1.0 / 3}

	if got := y.Data(); !equalF32(got, want, 1e-6) {
		t.Fatalf("softmax = %v, want %v", got, want)
	}
}

func TestSoftmaxInnerAxis(t *testing.T) {
	x, _ := New([]float32{0, 5, 0, 5}, []int64{2, 2})

	y, err := Softmax(x, 0)
	if err != nil {
		t.Fatalf("softmax: %v", err)
	}

	if got := y.Data(); !equalF32(got, []float32{0.5, 0.5, 0.5, 0.5}, 1e-6) {
		t.Fatalf("softmax axis 0 = %v", got)
	}
}

func TestSoftmaxLargeInputsStayFinite(t *testing.T) {
	x, _ := New([]float32{1000, 1000}, []int64{2})

	y, err := Softmax(x, 0)
	if err != nil {
		t.Fatalf("softmax: %v", err)
	}

	if got := y.Data(); !equalF32(got, []float32{0.5, 0.5}, 0) {
		t.Fatalf("softmax = %v", got)
	}
}

func TestSoftmaxErrors(t *testing.T) {
	scalar, _ := New([]float32{1}, nil)
	if _, err := Softmax(scalar, 0); err == nil {
		t.Error("softmax on rank 0 succeeded")
	}

	x, _ := New([]float32{1, 2}, []int64{2})
	if _, err := Softmax(x, 1); err == nil {
		t.Error("softmax on out-of-range axis succeeded")
	}
}

func TestLayerNorm(t *testing.T) {
	x, _ := New([]float32{1, 3, 2, 2}, []int64{2, 2})
	w, _ := New([]float32{2, 1}, []int64{2})
	b, _ := New([]float32{0, 10}, []int64{2})

	y, err := LayerNorm(x, w, b, 1e-12)
	if err != nil {
		t.Fatalf("layernorm: %v", err)
	}

	want := []float32{-2, 11, 0, 10}
	if got := y.Data(); !equalF32(got, want, 1e-5) {
		t.Fatalf("layernorm = %v, want %v", got, want)
	}

	if _, err := LayerNorm(x, b, nil, 0); err == nil {
		t.Error("layernorm with eps 0 succeeded")
	}

	bad, _ := New([]float32{1, 2, 3}, []int64{3})
	if _, err := LayerNorm(x, bad, nil, 1e-5); err == nil {
		t.Error("layernorm with mismatched weight succeeded")
	}
}

func TestLinear(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})
	w, _ := New([]float32{1, 0, 0, 0, 1, 1}, []int64{2, 3})
	b, _ := New([]float32{0.5, -1}, []int64{2})

	y, err := Linear(x, w, b)
	if err != nil {
		t.Fatalf("linear: %v", err)
	}

	if got := y.Shape(); !equalI64(got, []int64{2, 2}) {
		t.Fatalf("shape = %v", got)
	}

	if got := y.Data(); !equalF32(got, []float32{1.5, 4, 4.5, 10}, 0) {
		t.Fatalf("linear = %v", got)
	}

	wt, _ := New([]float32{1, 2}, []int64{1, 2})
	if _, err := Linear(x, wt, nil); err == nil {
		t.Error("linear with mismatched depth succeeded")
	}
}

func TestRows(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4, 5, 6}, []int64{3, 2})

	var sums []float32
	for row := range x.Rows(2) {
		sums = append(sums, row[0]+row[1])
		row[0] = 0
	}

	if !equalF32(sums, []float32{3, 7, 11}, 0) {
		t.Fatalf("row sums = %v", sums)
	}

	if got := x.Data(); !equalF32(got, []float32{0, 2, 0, 4, 0, 6}, 0) {
		t.Fatalf("rows are not writable views: %v", got)
	}
}
