package structdex

import (
	"github.com/google/uuid"

	"github.com/kailas-cloud/structdex/internal/domain/query"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
)

// Expr is a where-expression over member paths such as "Address.City".
type Expr = query.Expr

// ID identifies a structure within its set.
type ID = structure.ID

// IdentityID returns a sequential id.
func IdentityID(n int64) ID { return structure.IdentityID(n) }

// GuidID returns a UUID id.
func GuidID(u uuid.UUID) ID { return structure.GuidID(u) }

// StringID returns a caller-supplied string id.
func StringID(s string) ID { return structure.StringID(s) }

// Comparisons.
func Eq(path string, v any) Expr           { return query.Eq(path, v) }
func Neq(path string, v any) Expr          { return query.Neq(path, v) }
func Lt(path string, v any) Expr           { return query.Lt(path, v) }
func Lte(path string, v any) Expr          { return query.Lte(path, v) }
func Gt(path string, v any) Expr           { return query.Gt(path, v) }
func Gte(path string, v any) Expr          { return query.Gte(path, v) }
func Between(path string, lo, hi any) Expr { return query.Between(path, lo, hi) }
func In(path string, values ...any) Expr   { return query.In(path, values...) }
func Like(path, pattern string) Expr       { return query.Like(path, pattern) }
func StartsWith(path, prefix string) Expr  { return query.StartsWith(path, prefix) }
func EndsWith(path, suffix string) Expr    { return query.EndsWith(path, suffix) }
func HasElement(path string, v any) Expr   { return query.HasElement(path, v) }

// Junctions.
func And(exprs ...Expr) Expr { return query.And(exprs...) }
func Or(exprs ...Expr) Expr  { return query.Or(exprs...) }
func Not(e Expr) Expr        { return query.Not(e) }
