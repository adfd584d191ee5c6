package tensor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLayoutPlans(t *testing.T) {
	tests := []struct {
		name      string
		plan      func() (Plan, error)
		wantShape []int64
		wantSrc   []int
	}{
		{
			name:      "slice",
			plan:      func() (Plan, error) { return SlicePlan([]int64{2, 3}, []int64{0, 1}, []int64{-1, 2}) },
			wantShape: []int64{2, 2},
			wantSrc:   []int{1, 2, 4, 5},
		},
		{
			name: "strided forward",
			plan: func() (Plan, error) {
				return StridedSlicePlan([]int64{6}, []int64{1}, []int64{5}, []int64{2}, 0, 0, 0)
			},
			wantShape: []int64{2},
			wantSrc:   []int{1, 3},
		},
		{
			name: "strided reverse",
			plan: func() (Plan, error) {
				return StridedSlicePlan([]int64{4}, []int64{-1}, []int64{0}, []int64{-1}, 0, 0, 0)
			},
			wantShape: []int64{3},
			wantSrc:   []int{3, 2, 1},
		},
		{
			name: "strided masks",
			plan: func() (Plan, error) {
				return StridedSlicePlan([]int64{4}, []int64{2}, []int64{3}, []int64{1}, 1, 1, 0)
			},
			wantShape: []int64{4},
			wantSrc:   []int{0, 1, 2, 3},
		},
		{
			name: "strided shrink",
			plan: func() (Plan, error) {
				return StridedSlicePlan([]int64{2, 3}, []int64{1, 0}, []int64{2, 3}, []int64{1, 1}, 0, 0, 1)
			},
			wantShape: []int64{3},
			wantSrc:   []int{3, 4, 5},
		},
		{
			name:      "gather 2d indices",
			plan:      func() (Plan, error) { return GatherPlan([]int64{3, 2}, 0, []int64{2, 0, 1, 1}, []int64{2, 2}) },
			wantShape: []int64{2, 2, 2},
			wantSrc:   []int{4, 5, 0, 1, 2, 3, 2, 3},
		},
		{
			name:      "concat axis 1",
			plan:      func() (Plan, error) { return ConcatPlan([][]int64{{2, 1}, {2, 2}}, 1) },
			wantShape: []int64{2, 3},
			wantSrc:   []int{0, 2, 3, 1, 4, 5},
		},
		{
			name:      "space to depth",
			plan:      func() (Plan, error) { return SpaceToDepthPlan([]int64{1, 2, 2, 1}, 2) },
			wantShape: []int64{1, 1, 1, 4},
			wantSrc:   []int{0, 1, 2, 3},
		},
		{
			name:      "depth to space",
			plan:      func() (Plan, error) { return DepthToSpacePlan([]int64{1, 1, 1, 4}, 2) },
			wantShape: []int64{1, 2, 2, 1},
			wantSrc:   []int{0, 1, 2, 3},
		},
		{
			name: "space to batch",
			plan: func() (Plan, error) {
				return SpaceToBatchPlan([]int64{1, 2, 2, 1}, []int64{2, 2}, [][2]int64{{0, 0}, {0, 0}})
			},
			wantShape: []int64{4, 1, 1, 1},
			wantSrc:   []int{0, 1, 2, 3},
		},
		{
			name: "space to batch padded",
			plan: func() (Plan, error) {
				return SpaceToBatchPlan([]int64{1, 1, 1, 1}, []int64{1, 2}, [][2]int64{{0, 0}, {0, 1}})
			},
			wantShape: []int64{2, 1, 1, 1},
			wantSrc:   []int{0, -1},
		},
		{
			name: "batch to space",
			plan: func() (Plan, error) {
				return BatchToSpacePlan([]int64{4, 1, 1, 1}, []int64{2, 2}, [][2]int64{{0, 0}, {0, 0}})
			},
			wantShape: []int64{1, 2, 2, 1},
			wantSrc:   []int{0, 1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.plan()
			if err != nil {
				t.Fatalf("plan: %v", err)
			}

			if diff := cmp.Diff(tt.wantShape, p.Shape); diff != "" {
				t.Errorf("shape mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(tt.wantSrc, p.Src); diff != "" {
				t.Errorf("src mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLayoutPlanErrors(t *testing.T) {
	if _, err := GatherPlan([]int64{3}, 0, []int64{3}, []int64{1}); err == nil {
		t.Error("gather index out of range accepted")
	}

	if _, err := ConcatPlan([][]int64{{2, 1}, {3, 1}}, 1); err == nil {
		t.Error("concat with mismatched dims accepted")
	}

	if _, err := SpaceToDepthPlan([]int64{1, 3, 2, 1}, 2); err == nil {
		t.Error("space_to_depth with indivisible height accepted")
	}

	if _, err := StridedSlicePlan([]int64{4}, []int64{0}, []int64{4}, []int64{0}, 0, 0, 0); err == nil {
		t.Error("zero stride accepted")
	}
}

func TestApplyBytesFill(t *testing.T) {
	p := Plan{Shape: []int64{3}, Src: []int{1, -1, 0}}
	src := []byte{0x01, 0x00, 0x02, 0x00}

	got := p.ApplyBytes(src, 2, []byte{0x7f, 0x00})
	want := []byte{0x02, 0x00, 0x7f, 0x00, 0x01, 0x00}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("bytes mismatch (-want +got):\n%s", diff)
	}
}
