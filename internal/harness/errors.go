package harness

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/example/go-opverify/internal/graph"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrGraphLoad         = errors.New("graph load failed")
	ErrTensorAllocation  = errors.New("tensor allocation failed")
	ErrAcceleratorAttach = errors.New("accelerator attach failed")
	ErrNotAllocated      = errors.New("execution context not in the required state")
	ErrExecution         = errors.New("execution failed")
)

// GraphLoadError reports a malformed buffer or a graph the requested
// backends cannot run.
type GraphLoadError struct {
	Err error
}

func (e *GraphLoadError) Error() string { return fmt.Sprintf("graph load: %v", e.Err) }

func (e *GraphLoadError) Unwrap() []error { return []error{ErrGraphLoad, e.Err} }

// TensorAllocationError reports a tensor whose byte size overflows or
// exceeds the allocation limit.
type TensorAllocationError struct {
	Tensor int
	Name   string
	Shape  []int32
	// Bytes is -1 when shape product times element size overflows.
	Bytes int64
	Limit int64
}

func (e *TensorAllocationError) Error() string {
	if e.Bytes < 0 {
		return fmt.Sprintf("tensor allocation: tensor %d %q shape %s overflows byte accounting", e.Tensor, e.Name, graph.ShapeString(e.Shape))
	}

	return fmt.Sprintf("tensor allocation: tensor %d %q needs %s, limit %s",
		e.Tensor, e.Name, humanize.IBytes(uint64(e.Bytes)), humanize.IBytes(uint64(e.Limit)))
}

func (e *TensorAllocationError) Unwrap() error { return ErrTensorAllocation }

// AcceleratorAttachError reports a failed accelerator attach.
type AcceleratorAttachError struct {
	Backends []string
	Err      error
}

func (e *AcceleratorAttachError) Error() string {
	return fmt.Sprintf("accelerator attach %v: %v", e.Backends, e.Err)
}

func (e *AcceleratorAttachError) Unwrap() []error { return []error{ErrAcceleratorAttach, e.Err} }

// NotAllocatedError reports an operation attempted in the wrong state.
type NotAllocatedError struct {
	Op    string
	State State
	// Cause is the failure that moved the context to Failed, if any.
	Cause error
}

func (e *NotAllocatedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: context is %s after: %v", e.Op, e.State, e.Cause)
	}

	return fmt.Sprintf("%s: context is %s", e.Op, e.State)
}

func (e *NotAllocatedError) Unwrap() error { return ErrNotAllocated }

// ExecutionError names the operator and backend whose kernel failed.
type ExecutionError struct {
	Operator int
	Kind     graph.OpKind
	Backend  string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute operator %d (%s) on %s: %v", e.Operator, e.Kind, e.Backend, e.Err)
}

func (e *ExecutionError) Unwrap() []error { return []error{ErrExecution, e.Err} }
