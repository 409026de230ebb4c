// Package apperrors defines sentinel errors shared across layers.
package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrLoad marks an uploaded file that could not be decoded or parsed.
	// Recoverable by uploading again.
	ErrLoad = errors.New("load error")

	// ErrInvalidMapping is returned when a target/source binding is rejected.
	// The mapping state is left unchanged.
	ErrInvalidMapping = errors.New("invalid mapping")

	// ErrSchema marks a missing or degenerate target schema. Fatal at startup.
	ErrSchema = errors.New("schema error")

	// ErrTemplate covers duplicate or invalid template names and missing templates.
	ErrTemplate = errors.New("template error")

	// ErrInvalidInput marks a request value that is blank or malformed.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidState      = errors.New("invalid session state")
	ErrIncompleteMapping = errors.New("required fields are not mapped")
)
