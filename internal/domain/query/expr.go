package query

// Op is a comparison operator over one member path.
type Op string

// Comparison operators.
const (
	OpEq         Op = "eq"
	OpNeq        Op = "neq"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpBetween    Op = "between"
	OpIn         Op = "in"
	OpLike       Op = "like"
	OpStartsWith Op = "startsWith"
	OpEndsWith   Op = "endsWith"
	// OpHasElement matches an enumerable member containing the value.
	OpHasElement Op = "hasElement"
)

// ParseOp validates an operator name.
func ParseOp(s string) (Op, bool) {
	switch op := Op(s); op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpBetween, OpIn,
		OpLike, OpStartsWith, OpEndsWith, OpHasElement:
		return op, true
	default:
		return "", false
	}
}

// Expr is a node of a where-expression tree.
type Expr interface {
	expr()
}

// Comparison compares one member path against literal values.
type Comparison struct {
	path   string
	op     Op
	values []any
}

func (Comparison) expr() {}

// Path returns the member path.
func (c Comparison) Path() string { return c.path }

// Op returns the operator.
func (c Comparison) Op() Op { return c.op }

// Values returns the literal operands.
func (c Comparison) Values() []any { return c.values }

// Junction combines operands with and (default) or or.
type Junction struct {
	or       bool
	operands []Expr
}

func (Junction) expr() {}

// IsOr reports whether operands are combined with or.
func (j Junction) IsOr() bool { return j.or }

// Operands returns the combined expressions.
func (j Junction) Operands() []Expr { return j.operands }

// Negation inverts an expression.
type Negation struct {
	operand Expr
}

func (Negation) expr() {}

// Operand returns the negated expression.
func (n Negation) Operand() Expr { return n.operand }

// Compare creates a comparison with an explicit operator.
func Compare(path string, op Op, values ...any) Expr {
	return Comparison{path: path, op: op, values: values}
}

func Eq(path string, v any) Expr  { return Compare(path, OpEq, v) }
func Neq(path string, v any) Expr { return Compare(path, OpNeq, v) }
func Lt(path string, v any) Expr  { return Compare(path, OpLt, v) }
func Lte(path string, v any) Expr { return Compare(path, OpLte, v) }
func Gt(path string, v any) Expr  { return Compare(path, OpGt, v) }
func Gte(path string, v any) Expr { return Compare(path, OpGte, v) }

// Between matches lo <= path <= hi.
func Between(path string, lo, hi any) Expr { return Compare(path, OpBetween, lo, hi) }

// In matches any of values.
func In(path string, values ...any) Expr { return Compare(path, OpIn, values...) }

// Like matches a SQL like pattern.
func Like(path, pattern string) Expr { return Compare(path, OpLike, pattern) }

func StartsWith(path, prefix string) Expr { return Compare(path, OpStartsWith, prefix) }
func EndsWith(path, suffix string) Expr   { return Compare(path, OpEndsWith, suffix) }

// HasElement matches enumerable members containing v.
func HasElement(path string, v any) Expr { return Compare(path, OpHasElement, v) }

// And combines expressions; nil operands are dropped and a single operand is returned as is.
func And(exprs ...Expr) Expr { return junction(false, exprs) }

// Or combines expressions; nil operands are dropped and a single operand is returned as is.
func Or(exprs ...Expr) Expr { return junction(true, exprs) }

// Not negates e.
func Not(e Expr) Expr {
	if e == nil {
		return nil
	}
	return Negation{operand: e}
}

func junction(or bool, exprs []Expr) Expr {
	operands := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			operands = append(operands, e)
		}
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return Junction{or: or, operands: operands}
	}
}

// Paths returns the distinct member paths of e in first-appearance order.
func Paths(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	Walk(e, func(c Comparison) {
		if !seen[c.path] {
			seen[c.path] = true
			out = append(out, c.path)
		}
	})
	return out
}

// Walk calls fn for every comparison of e, depth first, left to right.
func Walk(e Expr, fn func(Comparison)) {
	switch x := e.(type) {
	case Comparison:
		fn(x)
	case Junction:
		for _, o := range x.operands {
			Walk(o, fn)
		}
	case Negation:
		Walk(x.operand, fn)
	}
}
