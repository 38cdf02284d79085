// Package translator compiles structure queries into SQL over the per-set
// structure and index tables. Every query compiles into one fixed join shape:
// one aliased index-table join per referenced member path, an optional
// grouping when sortings or includes need one row per structure, and an outer
// re-join for included structures.
package translator

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/structdex/internal/db"
	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/query"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

// JSONMarker suffixes the columns carrying included structure JSON.
const JSONMarker = "Json"

// Statement is SQL text with its bound arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Shape names the physical form a query compiled into.
type Shape string

// Query shapes.
const (
	ShapeAll      Shape = "all"
	ShapePlain    Shape = "plain"
	ShapeGrouped  Shape = "grouped"
	ShapeIncludes Shape = "includes"
	ShapeIDs      Shape = "ids"
)

// Translator compiles queries for one dialect. It holds no mutable state and
// is safe for concurrent use.
type Translator struct {
	d db.Dialect
}

// New creates a Translator for dialect d.
func New(d db.Dialect) *Translator {
	return &Translator{d: d}
}

// Dialect returns the target dialect.
func (t *Translator) Dialect() db.Dialect { return t.d }

// ShapeOf returns the shape Translate picks for q.
func ShapeOf(q query.Query) Shape {
	switch {
	case q.IsEmpty():
		return ShapeAll
	case len(q.Includes()) > 0:
		return ShapeIncludes
	case len(q.Sortings()) > 0:
		return ShapeGrouped
	default:
		return ShapePlain
	}
}

// Translate compiles a full query. The first result column is always the
// structure JSON, followed by one <As>Json column per include.
func (t *Translator) Translate(s *schema.Schema, q query.Query) (Statement, error) {
	if err := q.Validate(); err != nil {
		return Statement{}, err
	}
	if q.IsEmpty() {
		return t.GetAll(s), nil
	}

	c, err := t.compile(s, q.Where(), q.Sortings())
	if err != nil {
		return Statement{}, err
	}
	incs, err := t.includes(s, q.Includes())
	if err != nil {
		return Statement{}, err
	}

	switch ShapeOf(q) {
	case ShapePlain:
		return t.plain(s, c, q), nil
	case ShapeGrouped:
		return t.grouped(s, c, q), nil
	default:
		return t.withIncludes(s, c, q, incs), nil
	}
}

// TranslateIDs compiles the id-only form used by scoped count and delete.
// It selects the StructureId of every matching structure once.
func (t *Translator) TranslateIDs(s *schema.Schema, q query.Query) (Statement, error) {
	c, err := t.idsOnly(s, q)
	if err != nil {
		return Statement{}, err
	}
	var sb strings.Builder
	sb.WriteString("select distinct s." + t.d.Quote(schema.ColStructureID))
	t.writeFrom(&sb, s, c)
	t.writeWhere(&sb, c)
	return Statement{SQL: sb.String(), Args: c.args}, nil
}

// CountWhere compiles a count of structures matching q's where-expression.
func (t *Translator) CountWhere(s *schema.Schema, q query.Query) (Statement, error) {
	c, err := t.idsOnly(s, q)
	if err != nil {
		return Statement{}, err
	}
	var sb strings.Builder
	sb.WriteString("select count(distinct s." + t.d.Quote(schema.ColStructureID) + ")")
	t.writeFrom(&sb, s, c)
	t.writeWhere(&sb, c)
	return Statement{SQL: sb.String(), Args: c.args}, nil
}

func (t *Translator) idsOnly(s *schema.Schema, q query.Query) (*compiler, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := q.ValidateIDsOnly(); err != nil {
		return nil, err
	}
	return t.compile(s, q.Where(), nil)
}

// plain: no sortings and no includes, one row per structure without grouping.
func (t *Translator) plain(s *schema.Schema, c *compiler, q query.Query) Statement {
	var sb strings.Builder
	sb.WriteString("select s." + t.d.Quote(schema.ColJSON))
	t.writeFrom(&sb, s, c)
	t.writeWhere(&sb, c)
	if q.Take() > 0 || q.Paging() != nil {
		sb.WriteString(" order by s." + t.d.Quote(schema.ColStructureID))
		t.writeWindow(&sb, c, q)
	}
	return Statement{SQL: sb.String(), Args: c.args}
}

// grouped: sortings project min(member) per sort key, grouped per structure.
func (t *Translator) grouped(s *schema.Schema, c *compiler, q query.Query) Statement {
	var sb strings.Builder
	sb.WriteString("select s." + t.d.Quote(schema.ColJSON))
	t.writeSortProjections(&sb, c, q.Sortings())
	t.writeFrom(&sb, s, c)
	t.writeWhere(&sb, c)
	t.writeGroupBy(&sb)
	t.writeOrderBy(&sb, "", q)
	t.writeWindow(&sb, c, q)
	return Statement{SQL: sb.String(), Args: c.args}
}

// withIncludes groups per structure in a derived table, keeping the minimal
// surrogate RowId of each referenced structure, and re-joins the referenced
// structures by RowId to project their JSON.
func (t *Translator) withIncludes(s *schema.Schema, c *compiler, q query.Query, incs []include) Statement {
	qt := t.d.Quote
	var inner strings.Builder
	inner.WriteString("select s." + qt(schema.ColJSON) + ", s." + qt(schema.ColStructureID))
	t.writeSortProjections(&inner, c, q.Sortings())
	for _, inc := range incs {
		inner.WriteString(", min(" + inc.structAlias + "." + qt(schema.ColRowID) + ") " + qt(inc.as+schema.ColRowID))
	}
	t.writeFrom(&inner, s, c)
	for _, inc := range incs {
		fmt.Fprintf(&inner, " left join %s %s on %s.%s = s.%s and %s.%s = %s",
			qt(s.IndexesTable()), inc.indexAlias,
			inc.indexAlias, qt(schema.ColStructureID), qt(schema.ColStructureID),
			inc.indexAlias, qt(schema.ColMemberPath), literal(inc.path))
		fmt.Fprintf(&inner, " left join %s %s on %s.%s = %s.%s",
			qt(inc.table), inc.structAlias,
			inc.structAlias, qt(schema.ColStructureID), inc.indexAlias, qt(inc.column))
	}
	t.writeWhere(&inner, c)
	t.writeGroupBy(&inner)

	var sb strings.Builder
	sb.WriteString("select rs." + qt(schema.ColJSON))
	for _, inc := range incs {
		sb.WriteString(", " + inc.structAlias + "." + qt(schema.ColJSON) + " " + qt(inc.as+JSONMarker))
	}
	sb.WriteString(" from (" + inner.String() + ") rs")
	for _, inc := range incs {
		fmt.Fprintf(&sb, " left join %s %s on %s.%s = rs.%s",
			qt(inc.table), inc.structAlias,
			inc.structAlias, qt(schema.ColRowID), qt(inc.as+schema.ColRowID))
	}
	t.writeOrderBy(&sb, "rs.", q)
	t.writeWindow(&sb, c, q)
	return Statement{SQL: sb.String(), Args: c.args}
}

func (t *Translator) writeFrom(sb *strings.Builder, s *schema.Schema, c *compiler) {
	qt := t.d.Quote
	sb.WriteString(" from " + qt(s.StructureTable()) + " s")
	for _, m := range c.members {
		fmt.Fprintf(sb, " inner join %s %s on %s.%s = s.%s and %s.%s = %s",
			qt(s.IndexesTable()), m.alias,
			m.alias, qt(schema.ColStructureID), qt(schema.ColStructureID),
			m.alias, qt(schema.ColMemberPath), literal(m.path))
	}
}

func (t *Translator) writeWhere(sb *strings.Builder, c *compiler) {
	if c.where != "" {
		sb.WriteString(" where " + c.where)
	}
}

func (t *Translator) writeGroupBy(sb *strings.Builder) {
	sb.WriteString(" group by s." + t.d.Quote(schema.ColStructureID) + ", s." + t.d.Quote(schema.ColJSON))
}

func (t *Translator) writeSortProjections(sb *strings.Builder, c *compiler, sortings []query.Sorting) {
	for i, so := range sortings {
		m := c.byPath[so.Path]
		expr := m.alias + "." + t.d.Quote(m.column)
		sb.WriteString(", " + t.d.MinOf(expr, m.columnType) + " " + sortAlias(i))
	}
}

// writeOrderBy orders by the projected sort aliases in declared order. Without
// sortings, and as a tie-break when a row window applies, StructureId orders.
func (t *Translator) writeOrderBy(sb *strings.Builder, prefix string, q query.Query) {
	sortings := q.Sortings()
	id := prefix + t.d.Quote(schema.ColStructureID)
	if prefix == "" {
		id = "s." + t.d.Quote(schema.ColStructureID)
	}
	if len(sortings) == 0 {
		sb.WriteString(" order by " + id)
		return
	}
	parts := make([]string, 0, len(sortings)+1)
	for i, so := range sortings {
		dir := "asc"
		if so.Direction == query.Desc {
			dir = "desc"
		}
		parts = append(parts, prefix+sortAlias(i)+" "+dir)
	}
	if q.Take() > 0 || q.Paging() != nil {
		parts = append(parts, id)
	}
	sb.WriteString(" order by " + strings.Join(parts, ", "))
}

func (t *Translator) writeWindow(sb *strings.Builder, c *compiler, q query.Query) {
	switch {
	case q.Paging() != nil:
		p := q.Paging()
		sb.WriteString(" " + t.d.Page(c.bind, p.Offset(), p.Size))
	case q.Take() > 0:
		sb.WriteString(" " + t.d.Limit(c.bind, q.Take()))
	}
}

func sortAlias(i int) string { return fmt.Sprintf("sort%d", i) }

// literal renders a member path as an inlined SQL string literal.
func literal(path string) string {
	return "'" + strings.ReplaceAll(path, "'", "''") + "'"
}

type include struct {
	path        string
	column      string
	table       string
	as          string
	indexAlias  string
	structAlias string
}

func (t *Translator) includes(s *schema.Schema, incs []query.Include) ([]include, error) {
	out := make([]include, 0, len(incs))
	for i, inc := range incs {
		a, ok := s.Index(inc.Path)
		if !ok {
			return nil, fmt.Errorf("include %s: unknown member path %q in %s: %w",
				inc.As, inc.Path, s.Name(), domain.ErrInvalidQuery)
		}
		if a.Enumerable() {
			return nil, fmt.Errorf("include %s: member %q is enumerable: %w", inc.As, inc.Path, domain.ErrInvalidQuery)
		}
		if !db.IsValidIdentifier(inc.As) || !db.IsValidIdentifier(inc.Target) {
			return nil, fmt.Errorf("include %s: field and target must be identifiers: %w", inc.As, domain.ErrInvalidQuery)
		}
		out = append(out, include{
			path:        inc.Path,
			column:      a.Column(),
			table:       schema.StructureTableFor(inc.Target),
			as:          inc.As,
			indexAlias:  fmt.Sprintf("inc%d", i),
			structAlias: fmt.Sprintf("cs%d", i),
		})
	}
	return out, nil
}
