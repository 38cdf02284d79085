package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing structure.
	ErrNotFound = errors.New("not found")
	// ErrSetNotFound signals an unknown structure set.
	ErrSetNotFound = errors.New("structure set not found")
	// ErrInvalidSchema signals a schema that cannot be built for a type or definition.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrSchemaMismatch signals that a declared member path cannot be resolved
	// against the shape of an instance. The cached schema is stale.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInvalidQueryShape signals a forbidden combination of query parts.
	ErrInvalidQueryShape = errors.New("invalid query shape")
	// ErrUnsupportedIdentifierOperation signals an id operation the set's id kind does not support.
	ErrUnsupportedIdentifierOperation = errors.New("unsupported identifier operation")
	// ErrInvalidQuery signals a query that references unknown members or misuses an operator.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUniqueViolation signals a duplicate value for a unique member.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrInvalidDocument signals a document rejected by validation.
	ErrInvalidDocument = errors.New("invalid document")
)

// SchemaMismatchError wraps ErrSchemaMismatch with the failing location.
type SchemaMismatchError struct {
	Set     string
	Path    string
	Segment string
	Got     string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: %s.%s: segment %q resolved to %s",
		ErrSchemaMismatch.Error(), e.Set, e.Path, e.Segment, e.Got)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// NewSchemaMismatch creates a schema mismatch error.
func NewSchemaMismatch(set, path, segment, got string) error {
	return &SchemaMismatchError{Set: set, Path: path, Segment: segment, Got: got}
}

// QueryShapeError wraps ErrInvalidQueryShape with the rejected combination.
type QueryShapeError struct {
	Reason string
}

func (e *QueryShapeError) Error() string {
	return ErrInvalidQueryShape.Error() + ": " + e.Reason
}

func (e *QueryShapeError) Unwrap() error { return ErrInvalidQueryShape }

// NewQueryShape creates an invalid query shape error.
func NewQueryShape(reason string) error {
	return &QueryShapeError{Reason: reason}
}
