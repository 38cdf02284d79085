package translator

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/structdex/internal/db"
	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/query"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/domain/value"
)

// likeEscape is the escape character of generated like patterns. A backslash
// would need doubling on MySQL.
const likeEscape = "!"

type member struct {
	path       string
	alias      string
	column     string
	columnType db.ColumnType
	accessor   *schema.IndexAccessor
}

// compiler holds the state of one translation: the member joins in
// first-appearance order, the rendered where clause and the bound arguments.
type compiler struct {
	t       *Translator
	s       *schema.Schema
	members []*member
	byPath  map[string]*member
	where   string
	args    []any
}

// compile numbers every member path of where and sortings, where first, and
// renders the where clause. Arguments are bound in text order.
func (t *Translator) compile(s *schema.Schema, where query.Expr, sortings []query.Sorting) (*compiler, error) {
	c := &compiler{t: t, s: s, byPath: map[string]*member{}}
	for _, p := range query.Paths(where) {
		if err := c.addMember(p); err != nil {
			return nil, err
		}
	}
	for _, so := range sortings {
		if err := c.addMember(so.Path); err != nil {
			return nil, err
		}
		if c.byPath[so.Path].accessor.Enumerable() {
			return nil, fmt.Errorf("cannot sort by enumerable member %q: %w", so.Path, domain.ErrInvalidQuery)
		}
	}
	if where != nil {
		w, err := c.expr(where)
		if err != nil {
			return nil, err
		}
		c.where = w
	}
	return c, nil
}

func (c *compiler) addMember(path string) error {
	if _, ok := c.byPath[path]; ok {
		return nil
	}
	a, ok := c.s.Index(path)
	if !ok {
		return fmt.Errorf("unknown member path %q in %s: %w", path, c.s.Name(), domain.ErrInvalidQuery)
	}
	m := &member{
		path:       path,
		alias:      fmt.Sprintf("mem%d", len(c.members)),
		column:     a.Column(),
		columnType: columnType(a),
		accessor:   a,
	}
	c.members = append(c.members, m)
	c.byPath[path] = m
	return nil
}

// bind appends v to the arguments and returns its placeholder.
func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return c.t.d.Placeholder(len(c.args))
}

func (c *compiler) expr(e query.Expr) (string, error) {
	switch x := e.(type) {
	case query.Comparison:
		return c.comparison(x)
	case query.Junction:
		sep := " and "
		if x.IsOr() {
			sep = " or "
		}
		parts := make([]string, 0, len(x.Operands()))
		for _, o := range x.Operands() {
			p, err := c.expr(o)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	case query.Negation:
		p, err := c.expr(x.Operand())
		if err != nil {
			return "", err
		}
		return "not (" + p + ")", nil
	default:
		return "", fmt.Errorf("unsupported expression %T: %w", e, domain.ErrInvalidQuery)
	}
}

func (c *compiler) comparison(cmp query.Comparison) (string, error) {
	m := c.byPath[cmp.Path()]
	if err := checkArity(cmp); err != nil {
		return "", err
	}
	col := m.alias + "." + c.t.d.Quote(m.column)
	if m.accessor.Enumerable() {
		return c.enumerable(m, col, cmp)
	}

	a := m.accessor
	switch op := cmp.Op(); op {
	case query.OpEq, query.OpNeq, query.OpLt, query.OpLte, query.OpGt, query.OpGte:
		v, err := c.normalize(a, cmp, cmp.Values()[0])
		if err != nil {
			return "", err
		}
		return col + " " + sqlOperator(op) + " " + c.bind(v), nil
	case query.OpBetween:
		lo, err := c.normalize(a, cmp, cmp.Values()[0])
		if err != nil {
			return "", err
		}
		hi, err := c.normalize(a, cmp, cmp.Values()[1])
		if err != nil {
			return "", err
		}
		return col + " between " + c.bind(lo) + " and " + c.bind(hi), nil
	case query.OpIn:
		ph := make([]string, 0, len(cmp.Values()))
		for _, raw := range cmp.Values() {
			v, err := c.normalize(a, cmp, raw)
			if err != nil {
				return "", err
			}
			ph = append(ph, c.bind(v))
		}
		return col + " in (" + strings.Join(ph, ", ") + ")", nil
	case query.OpLike, query.OpStartsWith, query.OpEndsWith:
		if a.Kind() != schema.KindString && a.Kind() != schema.KindEnum {
			return "", fmt.Errorf("%s requires a string member, %q is %s: %w", op, cmp.Path(), a.Kind(), domain.ErrInvalidQuery)
		}
		s, ok := cmp.Values()[0].(string)
		if !ok {
			return "", fmt.Errorf("%s on %q requires a string pattern: %w", op, cmp.Path(), domain.ErrInvalidQuery)
		}
		switch op {
		case query.OpStartsWith:
			return col + " like " + c.bind(escapeLike(s)+"%") + " escape '" + likeEscape + "'", nil
		case query.OpEndsWith:
			return col + " like " + c.bind("%"+escapeLike(s)) + " escape '" + likeEscape + "'", nil
		default:
			return col + " like " + c.bind(s), nil
		}
	case query.OpHasElement:
		return "", fmt.Errorf("%s requires an enumerable member, %q is scalar: %w", op, cmp.Path(), domain.ErrInvalidQuery)
	default:
		return "", fmt.Errorf("unknown operator %q: %w", op, domain.ErrInvalidQuery)
	}
}

// enumerable compiles element predicates against the encoded token string.
// Equality against an enumerable member means "has element".
func (c *compiler) enumerable(m *member, col string, cmp query.Comparison) (string, error) {
	switch cmp.Op() {
	case query.OpHasElement, query.OpEq, query.OpNeq:
		s, err := value.Render(m.accessor.Kind(), cmp.Values()[0])
		if err != nil {
			return "", fmt.Errorf("value for %q: %w: %w", cmp.Path(), domain.ErrInvalidQuery, err)
		}
		pattern := "%" + escapeLike(value.Token(s)) + "%"
		clause := col + " like " + c.bind(pattern) + " escape '" + likeEscape + "'"
		if cmp.Op() == query.OpNeq {
			clause = "not (" + clause + ")"
		}
		return clause, nil
	default:
		return "", fmt.Errorf("%s is not supported on enumerable member %q: %w",
			cmp.Op(), cmp.Path(), domain.ErrInvalidQuery)
	}
}

func (c *compiler) normalize(a *schema.IndexAccessor, cmp query.Comparison, v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("null value for %q: %w", cmp.Path(), domain.ErrInvalidQuery)
	}
	n, err := value.Normalize(a.Kind(), v)
	if err != nil {
		return nil, fmt.Errorf("value for %q: %w: %w", cmp.Path(), domain.ErrInvalidQuery, err)
	}
	return n, nil
}

func checkArity(cmp query.Comparison) error {
	n := len(cmp.Values())
	switch cmp.Op() {
	case query.OpBetween:
		if n != 2 {
			return fmt.Errorf("between on %q needs 2 values, got %d: %w", cmp.Path(), n, domain.ErrInvalidQuery)
		}
	case query.OpIn:
		if n == 0 {
			return fmt.Errorf("in on %q needs at least one value: %w", cmp.Path(), domain.ErrInvalidQuery)
		}
	default:
		if n != 1 {
			return fmt.Errorf("%s on %q needs 1 value, got %d: %w", cmp.Op(), cmp.Path(), n, domain.ErrInvalidQuery)
		}
	}
	return nil
}

func sqlOperator(op query.Op) string {
	switch op {
	case query.OpNeq:
		return "<>"
	case query.OpLt:
		return "<"
	case query.OpLte:
		return "<="
	case query.OpGt:
		return ">"
	case query.OpGte:
		return ">="
	default:
		return "="
	}
}

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

func escapeLike(s string) string { return likeReplacer.Replace(s) }

func columnType(a *schema.IndexAccessor) db.ColumnType {
	if a.Enumerable() {
		return db.ColumnText
	}
	switch a.Kind() {
	case schema.KindInteger:
		return db.ColumnBigInt
	case schema.KindFractional:
		return db.ColumnFloat
	case schema.KindBoolean:
		return db.ColumnBool
	case schema.KindDateTime, schema.KindGuid:
		return db.ColumnKey
	default:
		return db.ColumnText
	}
}
