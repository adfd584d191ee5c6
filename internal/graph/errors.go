package graph

import "errors"

// Construction-time errors. Builders wrap them with detail via fmt.Errorf.
var (
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrInvalidShape        = errors.New("invalid shape")
	ErrInvalidGraph        = errors.New("invalid graph")
	ErrMalformedBuffer     = errors.New("malformed graph buffer")
)
