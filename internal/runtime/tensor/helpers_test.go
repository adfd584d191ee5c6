package tensor

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func equalI64(a, b []int64) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// equalF32 compares element-wise within an absolute tolerance.
func equalF32(a, b []float32, tol float64) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty(), cmpopts.EquateApprox(0, tol))
}
