package client

import (
	"errors"
	"fmt"
)

// ErrTransport matches every failure of the fetch path: network errors,
// non-success statuses and undecodable bodies.
var ErrTransport = errors.New("transport failure")

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that are not a listing response.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError represents a listing API failure with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("listing API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("listing API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports every APIError as ErrTransport.
func (e *APIError) Is(target error) bool {
	return target == ErrTransport
}

// classifyStatus maps an HTTP status to an error class.
// Returns "" for success statuses.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}
