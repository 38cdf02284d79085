package translator

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
)

// GetAll selects every structure ordered by id.
func (t *Translator) GetAll(s *schema.Schema) Statement {
	return Statement{SQL: fmt.Sprintf("select s.%s from %s s order by s.%s",
		t.d.Quote(schema.ColJSON), t.d.Quote(s.StructureTable()), t.d.Quote(schema.ColStructureID))}
}

// GetByID selects one structure.
func (t *Translator) GetByID(s *schema.Schema, id structure.ID) Statement {
	return Statement{
		SQL: fmt.Sprintf("select s.%s from %s s where s.%s = %s",
			t.d.Quote(schema.ColJSON), t.d.Quote(s.StructureTable()),
			t.d.Quote(schema.ColStructureID), t.d.Placeholder(1)),
		Args: []any{id.Value()},
	}
}

// GetByIDs selects the listed structures ordered by id.
func (t *Translator) GetByIDs(s *schema.Schema, ids []structure.ID) (Statement, error) {
	if len(ids) == 0 {
		return Statement{}, fmt.Errorf("at least one id is required: %w", domain.ErrInvalidQuery)
	}
	args := make([]any, len(ids))
	ph := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id.Value()
		ph[i] = t.d.Placeholder(i + 1)
	}
	return Statement{
		SQL: fmt.Sprintf("select s.%s from %s s where s.%s in (%s) order by s.%s",
			t.d.Quote(schema.ColJSON), t.d.Quote(s.StructureTable()),
			t.d.Quote(schema.ColStructureID), strings.Join(ph, ", "), t.d.Quote(schema.ColStructureID)),
		Args: args,
	}, nil
}

// GetByIDInterval selects structures with ids in [from, to]. Only identity
// ids have a meaningful order.
func (t *Translator) GetByIDInterval(s *schema.Schema, from, to structure.ID) (Statement, error) {
	if !s.ID().Kind().IsIdentity() {
		return Statement{}, fmt.Errorf("id interval on %s ids of %s: %w",
			s.ID().Kind(), s.Name(), domain.ErrUnsupportedIdentifierOperation)
	}
	if from.Kind() != schema.IDIdentity || to.Kind() != schema.IDIdentity {
		return Statement{}, fmt.Errorf("id interval bounds must be identity ids: %w", domain.ErrUnsupportedIdentifierOperation)
	}
	return Statement{
		SQL: fmt.Sprintf("select s.%s from %s s where s.%s between %s and %s order by s.%s",
			t.d.Quote(schema.ColJSON), t.d.Quote(s.StructureTable()),
			t.d.Quote(schema.ColStructureID), t.d.Placeholder(1), t.d.Placeholder(2),
			t.d.Quote(schema.ColStructureID)),
		Args: []any{from.Int(), to.Int()},
	}, nil
}

// Count counts every structure of a set.
func (t *Translator) Count(s *schema.Schema) Statement {
	return Statement{SQL: "select count(*) from " + t.d.Quote(s.StructureTable())}
}

// DeleteByIDs removes the listed structures with their index and unique rows,
// dependents first.
func (t *Translator) DeleteByIDs(s *schema.Schema, ids []any) []Statement {
	if len(ids) == 0 {
		return nil
	}
	ph := make([]string, len(ids))
	for i := range ids {
		ph[i] = t.d.Placeholder(i + 1)
	}
	in := strings.Join(ph, ", ")
	tables := []string{s.UniquesTable(), s.IndexesTable(), s.StructureTable()}
	out := make([]Statement, 0, len(tables))
	for _, table := range tables {
		out = append(out, Statement{
			SQL: fmt.Sprintf("delete from %s where %s in (%s)",
				t.d.Quote(table), t.d.Quote(schema.ColStructureID), in),
			Args: ids,
		})
	}
	return out
}

// DeleteAll clears a set.
func (t *Translator) DeleteAll(s *schema.Schema) []Statement {
	tables := []string{s.UniquesTable(), s.IndexesTable(), s.StructureTable()}
	out := make([]Statement, 0, len(tables))
	for _, table := range tables {
		out = append(out, Statement{SQL: "delete from " + t.d.Quote(table)})
	}
	return out
}
