package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the supplied documents cannot be summarized
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration indicates that summarizer settings are inconsistent
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEngineContract indicates that an inference engine returned a different
	// number of summaries than spans it was given
	ErrEngineContract = errors.New("inference engine contract violated")
)
