package tensor

import "testing"

func TestElemCount(t *testing.T) {
	tests := []struct {
		shape   []int64
		want    int
		wantErr bool
	}{
		{nil, 1, false},
		{[]int64{2, 3, 4}, 24, false},
		{[]int64{2, 0, 4}, 0, false},
		{[]int64{2, -1}, 0, true},
		{[]int64{1 << 40, 1 << 40}, 0, true},
	}

	for _, tt := range tests {
		got, err := elemCount(tt.shape)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("elemCount(%v) = %d, %v; want %d, err %v", tt.shape, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestNormalizeAxis(t *testing.T) {
	tests := []struct {
		axis, rank, want int
		wantErr          bool
	}{
		{0, 3, 0, false},
		{-1, 3, 2, false},
		{-3, 3, 0, false},
		{3, 3, 0, true},
		{-4, 3, 0, true},
		{0, 0, 0, true},
	}

	for _, tt := range tests {
		got, err := normalizeAxis(tt.axis, tt.rank)
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Errorf("normalizeAxis(%d, %d) = %d, %v", tt.axis, tt.rank, got, err)
		}
	}
}

func TestRavelRoundTrip(t *testing.T) {
	shape := []int64{2, 3, 4}
	strides := rowMajorStrides(shape)

	if !equalI64(strides, []int64{12, 4, 1}) {
		t.Fatalf("strides = %v", strides)
	}

	coord := make([]int64, len(shape))
	for off := range int64(24) {
		unravel(off, shape, strides, coord)

		if got := ravel(coord, strides); got != off {
			t.Fatalf("ravel(unravel(%d)) = %d (coord %v)", off, got, coord)
		}
	}

	if rowMajorStrides(nil) != nil {
		t.Error("strides of rank 0 should be nil")
	}
}
