package expr

import "errors"

var (
	// ErrUnknownOperator is returned for operators outside the supported set.
	ErrUnknownOperator = errors.New("unknown expression operator")

	// ErrArity is returned when an operator receives the wrong number of arguments.
	ErrArity = errors.New("wrong number of arguments")

	// ErrType is returned when an arithmetic operator receives a non-numeric value.
	ErrType = errors.New("type mismatch")

	// ErrOverflow is returned when integer arithmetic overflows int64.
	ErrOverflow = errors.New("integer overflow")
)
