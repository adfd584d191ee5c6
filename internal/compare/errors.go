package compare

import (
	"errors"
	"fmt"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

var (
	// ErrShapeMismatch matches every ShapeMismatchError.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrValueToleranceExceeded matches every ValueToleranceExceededError.
	ErrValueToleranceExceeded = errors.New("value tolerance exceeded")
)

// ShapeMismatchError reports differing rank or dimensions. It takes
// precedence over any value comparison.
type ShapeMismatchError struct {
	Pair     Pair
	Expected []int32
	Actual   []int32
	// ExpectedLen and ActualLen are set when the payload lengths disagree.
	ExpectedLen, ActualLen int
}

func (e *ShapeMismatchError) Error() string {
	if e.ExpectedLen != e.ActualLen {
		return fmt.Sprintf("%s: shape mismatch: expected %d elements %s, got %d elements %s",
			e.Pair, e.ExpectedLen, graph.ShapeString(e.Expected), e.ActualLen, graph.ShapeString(e.Actual))
	}

	return fmt.Sprintf("%s: shape mismatch: expected %s, got %s", e.Pair, graph.ShapeString(e.Expected), graph.ShapeString(e.Actual))
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// ValueToleranceExceededError reports the first element outside the rule.
type ValueToleranceExceededError struct {
	Pair     Pair
	Type     dtype.ElementType
	Rule     string
	Index    int
	Expected float64
	Actual   float64
	Failed   int
	Size     int
}

func (e *ValueToleranceExceededError) Error() string {
	return fmt.Sprintf("%s: %s element %d: expected %v, got %v under %s (%d of %d elements differ)",
		e.Pair, e.Type, e.Index, e.Expected, e.Actual, e.Rule, e.Failed, e.Size)
}

func (e *ValueToleranceExceededError) Unwrap() error { return ErrValueToleranceExceeded }
