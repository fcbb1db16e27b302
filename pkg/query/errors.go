package query

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is returned when request parameters fail validation.
// It is always raised before any request is sent.
var ErrInvalidParameter = errors.New("invalid parameter")

// ParameterError describes a single rejected parameter.
type ParameterError struct {
	// Param is the offending parameter or filter name.
	Param string

	// Reason explains why the value was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidParameter, e.Param, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidParameter.
func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

func invalid(param, format string, args ...any) error {
	return &ParameterError{Param: param, Reason: fmt.Sprintf(format, args...)}
}
