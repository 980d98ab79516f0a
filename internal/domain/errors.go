package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedOperator signals an operator document with zero or multiple entries.
	ErrMalformedOperator = errors.New("operator document must have exactly one entry")
	// ErrInvalidPath signals a path that traverses a reference into a non-identifier property.
	ErrInvalidPath = errors.New("invalid path reference")
	// ErrBadDocument signals input that is not a structured document.
	ErrBadDocument = errors.New("not a document")
	// ErrUnknownSchema signals a schema name missing from the registry.
	ErrUnknownSchema = errors.New("unknown schema")
	// ErrInvalidSchema signals an invalid schema definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrConversion signals a value that cannot be coerced to its target kind.
	ErrConversion = errors.New("cannot convert value")
)

// InvalidPathError wraps ErrInvalidPath with the offending path expression.
// References can only be pointed to directly or via their identifier property.
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("%s %q: references can only be pointed to directly or via their id property", ErrInvalidPath.Error(), e.Path)
}

func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// NewInvalidPath creates an invalid path reference error.
func NewInvalidPath(path string) error {
	return &InvalidPathError{Path: path}
}
