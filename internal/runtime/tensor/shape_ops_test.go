package tensor

import "testing"

func TestNarrow(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})

	tests := []struct {
		dim           int
		start, length int64
		shape         []int64
		want          []float32
	}{
		{1, 1, 2, []int64{2, 2}, []float32{2, 3, 5, 6}},
		{0, 1, 1, []int64{1, 3}, []float32{4, 5, 6}},
		{-1, 0, 1, []int64{2, 1}, []float32{1, 4}},
	}

	for _, tt := range tests {
		out, err := x.Narrow(tt.dim, tt.start, tt.length)
		if err != nil {
			t.Fatalf("Narrow(%d, %d, %d): %v", tt.dim, tt.start, tt.length, err)
		}

		if got := out.Shape(); !equalI64(got, tt.shape) {
			t.Errorf("Narrow(%d, %d, %d) shape = %v, want %v", tt.dim, tt.start, tt.length, got, tt.shape)
		}

		if got := out.Data(); !equalF32(got, tt.want, 0) {
			t.Errorf("Narrow(%d, %d, %d) = %v, want %v", tt.dim, tt.start, tt.length, got, tt.want)
		}
	}
}

func TestNarrowOutOfRange(t *testing.T) {
	x, _ := New([]float32{1, 2, 3}, []int64{3})

	if _, err := x.Narrow(0, 2, 2); err == nil {
		t.Fatal("expected bounds error")
	}

	if _, err := x.Narrow(1, 0, 1); err == nil {
		t.Fatal("expected axis error")
	}
}

func TestApplyPermute(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})

	p, err := PermutePlan(x.Shape(), []int{1, 0})
	if err != nil {
		t.Fatalf("PermutePlan: %v", err)
	}

	out := x.Apply(p, 0)

	if got := out.Shape(); !equalI64(got, []int64{3, 2}) {
		t.Fatalf("shape = %v, want [3 2]", got)
	}

	if got := out.Data(); !equalF32(got, []float32{1, 4, 2, 5, 3, 6}, 0) {
		t.Fatalf("data = %v", got)
	}

	if got := x.Data(); !equalF32(got, []float32{1, 2, 3, 4, 5, 6}, 0) {
		t.Fatalf("Apply modified its source: %v", got)
	}
}
