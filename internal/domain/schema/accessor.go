package schema

import (
	"fmt"

	"github.com/kailas-cloud/structdex/internal/domain"
)

// resolver walks a root instance and returns the leaf values a path reaches.
// A nil intermediate ends the walk without values and without error.
type resolver func(root any) ([]any, error)

// mismatch is raised by resolvers; the owning accessor adds set and path.
type mismatch struct {
	segment string
	got     string
}

func (m *mismatch) Error() string {
	return fmt.Sprintf("segment %q resolved to %s", m.segment, m.got)
}

// IndexAccessor is one indexable member of a schema with its compiled resolver.
type IndexAccessor struct {
	set        string
	path       string
	kind       Kind
	enumerable bool
	unique     bool
	resolve    resolver
}

// Path returns the dotted member path.
func (a *IndexAccessor) Path() string { return a.path }

// Kind returns the declared value kind (the element kind for enumerables).
func (a *IndexAccessor) Kind() Kind { return a.kind }

// Enumerable reports whether the member holds a collection of values.
func (a *IndexAccessor) Enumerable() bool { return a.enumerable }

// Unique reports whether the member enforces cross-document uniqueness.
func (a *IndexAccessor) Unique() bool { return a.unique }

// Column returns the index table column storing this member.
// Enumerables are stored in their encoded string form.
func (a *IndexAccessor) Column() string {
	if a.enumerable {
		return ColStringValue
	}
	return a.kind.Column()
}

// Resolve returns the values reached from root. Scalar members return at most
// one value; an absent member returns nil.
func (a *IndexAccessor) Resolve(root any) ([]any, error) {
	vals, err := a.resolve(root)
	if err != nil {
		return nil, a.wrap(err)
	}
	return vals, nil
}

func (a *IndexAccessor) wrap(err error) error {
	if m, ok := err.(*mismatch); ok {
		return domain.NewSchemaMismatch(a.set, a.path, m.segment, m.got)
	}
	return err
}

// IDAccessor reads and assigns the identity member of an instance.
type IDAccessor struct {
	set  string
	path string
	kind IDKind
	get  func(root any) (any, error)
	put  func(root any, v any) error
}

// Path returns the identity member path.
func (a *IDAccessor) Path() string { return a.path }

// Kind returns the identifier kind.
func (a *IDAccessor) Kind() IDKind { return a.kind }

// Get reads the raw identifier value from root.
func (a *IDAccessor) Get(root any) (any, error) {
	v, err := a.get(root)
	if err != nil {
		if m, ok := err.(*mismatch); ok {
			return nil, domain.NewSchemaMismatch(a.set, a.path, m.segment, m.got)
		}
		return nil, err
	}
	return v, nil
}

// Set assigns a generated identifier onto root.
func (a *IDAccessor) Set(root, v any) error {
	if err := a.put(root, v); err != nil {
		if m, ok := err.(*mismatch); ok {
			return domain.NewSchemaMismatch(a.set, a.path, m.segment, m.got)
		}
		return err
	}
	return nil
}
