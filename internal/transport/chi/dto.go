package chi

import (
	"encoding/json"

	"github.com/kailas-cloud/structdex/internal/version"
)

// ErrorCode identifies an API error class.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeForbidden         ErrorCode = "forbidden"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeSetNotFound       ErrorCode = "set_not_found"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeUniqueViolation   ErrorCode = "unique_violation"
	ErrorCodeInvalidQuery      ErrorCode = "invalid_query"
	ErrorCodeInvalidQueryShape ErrorCode = "invalid_query_shape"
	ErrorCodeUnsupportedIDOp   ErrorCode = "unsupported_identifier_operation"
	ErrorCodeSchemaMismatch    ErrorCode = "schema_mismatch"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// MemberDTO declares one indexed member of a set.
type MemberDTO struct {
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	Enumerable bool   `json:"enumerable,omitempty"`
	Unique     bool   `json:"unique,omitempty"`
}

// SetRequest declares a dynamic structure set.
type SetRequest struct {
	IDPath     string          `json:"id_path,omitempty"`
	IDKind     string          `json:"id_kind,omitempty"`
	Members    []MemberDTO     `json:"members"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// SetResponse describes a structure set.
type SetResponse struct {
	Name    string      `json:"name"`
	IDPath  string      `json:"id_path"`
	IDKind  string      `json:"id_kind"`
	Members []MemberDTO `json:"members"`
	Tables  []string    `json:"tables"`
}

// SetListResponse lists structure set names.
type SetListResponse struct {
	Items []string `json:"items"`
}

// InsertRequest carries documents to insert.
type InsertRequest struct {
	Documents []json.RawMessage `json:"documents"`
}

// InsertResponse lists the ids of inserted documents in request order.
type InsertResponse struct {
	IDs []string `json:"ids"`
}

// CountResponse carries a structure count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// DeleteResponse carries the number of deleted structures.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// NamedQueryRequest carries the arguments of a named query.
type NamedQueryRequest struct {
	Args []any `json:"args"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Build  version.Info      `json:"build"`
}
