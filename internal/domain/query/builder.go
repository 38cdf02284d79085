package query

// Builder is a fluent builder for queries. Where calls are combined with and.
type Builder struct {
	q Query
}

// New starts building a query.
func New() *Builder {
	return &Builder{}
}

// Where adds a predicate, and-ed with previous ones.
func (b *Builder) Where(e Expr) *Builder {
	b.q.where = And(b.q.where, e)
	return b
}

// OrderBy adds an ascending sorting.
func (b *Builder) OrderBy(path string) *Builder {
	b.q.sortings = append(b.q.sortings, Sorting{Path: path, Direction: Asc})
	return b
}

// OrderByDesc adds a descending sorting.
func (b *Builder) OrderByDesc(path string) *Builder {
	b.q.sortings = append(b.q.sortings, Sorting{Path: path, Direction: Desc})
	return b
}

// Include inlines the structure of set target referenced by path as field as.
func (b *Builder) Include(path, target, as string) *Builder {
	b.q.includes = append(b.q.includes, Include{Path: path, Target: target, As: as})
	return b
}

// Take limits the number of rows.
func (b *Builder) Take(n int) *Builder {
	b.q.take = n
	return b
}

// Page selects zero-based page of size rows.
func (b *Builder) Page(page, size int) *Builder {
	b.q.paging = &Paging{Page: page, Size: size}
	return b
}

// Build validates and returns the query.
func (b *Builder) Build() (Query, error) {
	q := b.q
	q.sortings = append([]Sorting(nil), b.q.sortings...)
	q.includes = append([]Include(nil), b.q.includes...)
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// MustBuild is Build that panics on error, for statically known queries.
func (b *Builder) MustBuild() Query {
	q, err := b.Build()
	if err != nil {
		panic(err)
	}
	return q
}
