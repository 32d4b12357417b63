package util

import "errors"

var (
	// ErrValidation covers bad input shape, rejected before any state mutation.
	ErrValidation = errors.New("validation error")

	// ErrIntegrity covers fatal inconsistencies inside one ingestion run,
	// e.g. an embedding count that does not match the passage count.
	ErrIntegrity = errors.New("integrity error")

	// ErrDependencyUnavailable covers unreachable collaborators (vector
	// index, embedding or generation backends). Safe to retry later.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	ErrNotFound = errors.New("not found")

	ErrNoExtractableText = errors.New("no extractable text found in PDF")
)
