package structdex

import "github.com/kailas-cloud/structdex/internal/domain"

// Errors returned by the SDK. Match them with errors.Is.
var (
	ErrNotFound                       = domain.ErrNotFound
	ErrSetNotFound                    = domain.ErrSetNotFound
	ErrInvalidSchema                  = domain.ErrInvalidSchema
	ErrSchemaMismatch                 = domain.ErrSchemaMismatch
	ErrInvalidQuery                   = domain.ErrInvalidQuery
	ErrInvalidQueryShape              = domain.ErrInvalidQueryShape
	ErrUnsupportedIdentifierOperation = domain.ErrUnsupportedIdentifierOperation
	ErrUniqueViolation                = domain.ErrUniqueViolation
)
