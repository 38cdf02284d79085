// Package query models backend-agnostic structure queries: a where-expression
// over member paths plus sortings, includes, take and paging.
package query

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/structdex/internal/domain"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sorting orders results by one member path.
type Sorting struct {
	Path      string
	Direction Direction
}

// Include inlines the structure referenced by Path (a member holding the
// target's id) as field As of each result document.
type Include struct {
	Path   string
	Target string // referenced set name
	As     string
}

// Paging selects one page of Size rows; Page is zero-based.
type Paging struct {
	Page int
	Size int
}

// Offset returns the number of rows skipped.
func (p Paging) Offset() int { return p.Page * p.Size }

// Query is an immutable structure query.
type Query struct {
	where    Expr
	sortings []Sorting
	includes []Include
	take     int
	paging   *Paging
}

// Where returns the where-expression, nil when absent.
func (q Query) Where() Expr { return q.where }

// Sortings returns the sortings in declared order.
func (q Query) Sortings() []Sorting { return q.sortings }

// Includes returns the includes in declared order.
func (q Query) Includes() []Include { return q.includes }

// Take returns the row limit, 0 when unset.
func (q Query) Take() int { return q.take }

// Paging returns the paging window, nil when unset.
func (q Query) Paging() *Paging { return q.paging }

// Single returns a copy of q that stops after the first result. A paged
// query keeps its window.
func (q Query) Single() Query {
	if q.paging == nil && q.take != 1 {
		q.take = 1
	}
	return q
}

// HasWhere reports whether a where-expression is present.
func (q Query) HasWhere() bool { return q.where != nil }

// IsEmpty reports whether the query selects every structure unordered by members.
func (q Query) IsEmpty() bool {
	return q.where == nil && len(q.sortings) == 0 && len(q.includes) == 0 && q.take == 0 && q.paging == nil
}

// Validate checks combinations that are never translatable.
func (q Query) Validate() error {
	if q.take < 0 {
		return fmt.Errorf("take must not be negative: %w", domain.ErrInvalidQuery)
	}
	if q.paging != nil {
		if q.take > 0 {
			return domain.NewQueryShape("take and paging are mutually exclusive")
		}
		if q.paging.Size <= 0 || q.paging.Page < 0 {
			return fmt.Errorf("paging requires page >= 0 and size > 0: %w", domain.ErrInvalidQuery)
		}
	}
	as := make(map[string]bool, len(q.includes))
	for _, inc := range q.includes {
		if inc.Path == "" || inc.Target == "" || inc.As == "" {
			return fmt.Errorf("include requires path, target and field name: %w", domain.ErrInvalidQuery)
		}
		if as[inc.As] {
			return fmt.Errorf("duplicate include field %q: %w", inc.As, domain.ErrInvalidQuery)
		}
		as[inc.As] = true
	}
	return nil
}

// ValidateIDsOnly checks the restricted form used for scoped count and delete.
func (q Query) ValidateIDsOnly() error {
	var parts []string
	if q.take > 0 {
		parts = append(parts, "take")
	}
	if len(q.includes) > 0 {
		parts = append(parts, "includes")
	}
	if len(q.sortings) > 0 {
		parts = append(parts, "sortings")
	}
	if q.paging != nil {
		parts = append(parts, "paging")
	}
	if len(parts) > 0 {
		return domain.NewQueryShape("id-only query must not set " + strings.Join(parts, ", "))
	}
	if q.where == nil {
		return domain.NewQueryShape("id-only query requires a where-expression")
	}
	return nil
}
