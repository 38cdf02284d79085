package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/structdex/internal/domain"
)

// Document is the JSON form of a query used by the HTTP API and the CLI.
type Document struct {
	Where   *Condition     `json:"where,omitempty"`
	OrderBy []SortDocument `json:"orderBy,omitempty"`
	Include []IncludeDoc   `json:"include,omitempty"`
	Take    int            `json:"take,omitempty"`
	Page    *PageDocument  `json:"page,omitempty"`
}

// Condition is one node of a JSON where-expression. Exactly one of And, Or,
// Not or Path must be set.
type Condition struct {
	And    []Condition `json:"and,omitempty"`
	Or     []Condition `json:"or,omitempty"`
	Not    *Condition  `json:"not,omitempty"`
	Path   string      `json:"path,omitempty"`
	Op     string      `json:"op,omitempty"`
	Value  any         `json:"value,omitempty"`
	Values []any       `json:"values,omitempty"`
}

// SortDocument is the JSON form of a sorting.
type SortDocument struct {
	Path string `json:"path"`
	Desc bool   `json:"desc,omitempty"`
}

// IncludeDoc is the JSON form of an include.
type IncludeDoc struct {
	Path   string `json:"path"`
	Target string `json:"target"`
	As     string `json:"as"`
}

// PageDocument is the JSON form of paging.
type PageDocument struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// Parse decodes a JSON query. Numbers are kept as json.Number so integer
// members compare exactly.
func Parse(data []byte) (Query, error) {
	var doc Document
	if len(bytes.TrimSpace(data)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Query{}, fmt.Errorf("decode query: %v: %w", err, domain.ErrInvalidQuery)
		}
	}
	return doc.Query()
}

// Query converts the document into a validated Query.
func (d Document) Query() (Query, error) {
	b := New()
	if d.Where != nil {
		e, err := d.Where.expr()
		if err != nil {
			return Query{}, err
		}
		b.Where(e)
	}
	for _, s := range d.OrderBy {
		if s.Desc {
			b.OrderByDesc(s.Path)
		} else {
			b.OrderBy(s.Path)
		}
	}
	for _, inc := range d.Include {
		b.Include(inc.Path, inc.Target, inc.As)
	}
	if d.Take > 0 {
		b.Take(d.Take)
	}
	if d.Page != nil {
		b.Page(d.Page.Page, d.Page.Size)
	}
	return b.Build()
}

func (c *Condition) expr() (Expr, error) {
	set := 0
	if c.And != nil {
		set++
	}
	if c.Or != nil {
		set++
	}
	if c.Not != nil {
		set++
	}
	if c.Path != "" {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("condition must set exactly one of and, or, not, path: %w", domain.ErrInvalidQuery)
	}

	switch {
	case c.And != nil, c.Or != nil:
		list := c.And
		if c.Or != nil {
			list = c.Or
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("empty junction: %w", domain.ErrInvalidQuery)
		}
		exprs := make([]Expr, 0, len(list))
		for i := range list {
			e, err := list[i].expr()
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		if c.Or != nil {
			return Or(exprs...), nil
		}
		return And(exprs...), nil
	case c.Not != nil:
		e, err := c.Not.expr()
		if err != nil {
			return nil, err
		}
		return Not(e), nil
	}

	op, ok := ParseOp(c.Op)
	if !ok {
		return nil, fmt.Errorf("unknown operator %q: %w", c.Op, domain.ErrInvalidQuery)
	}
	values := c.Values
	if c.Value != nil {
		values = append([]any{c.Value}, values...)
	}
	return Compare(c.Path, op, values...), nil
}
