package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/kailas-cloud/structdex/internal/domain"
)

// Table name suffixes of a structure set.
const (
	StructureSuffix = "Structure"
	IndexesSuffix   = "Indexes"
	UniquesSuffix   = "Uniques"
)

// MaxNameLength bounds set names and path segments, which end up in SQL identifiers.
const MaxNameLength = 64

var nameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Schema is the static description of a structure set (immutable once built).
type Schema struct {
	name    string
	typ     reflect.Type // nil for definition-based schemas
	id      *IDAccessor
	indexes []IndexAccessor
	byPath  map[string]int
	uniques []string
}

func newSchema(name string, typ reflect.Type, id *IDAccessor, indexes []IndexAccessor) (*Schema, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("set name: %w", err)
	}
	s := &Schema{
		name:    name,
		typ:     typ,
		id:      id,
		indexes: indexes,
		byPath:  make(map[string]int, len(indexes)),
	}
	for i := range indexes {
		a := &indexes[i]
		if err := validatePath(a.path); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if _, dup := s.byPath[a.path]; dup {
			return nil, fmt.Errorf("duplicate member path %q in %s: %w", a.path, name, domain.ErrInvalidSchema)
		}
		if a.path == id.path {
			return nil, fmt.Errorf("member path %q collides with the id member in %s: %w",
				a.path, name, domain.ErrInvalidSchema)
		}
		if a.unique && a.enumerable {
			return nil, fmt.Errorf("unique member %q in %s is enumerable: %w", a.path, name, domain.ErrInvalidSchema)
		}
		s.byPath[a.path] = i
		if a.unique {
			s.uniques = append(s.uniques, a.path)
		}
	}
	return s, nil
}

// Name returns the set name.
func (s *Schema) Name() string { return s.name }

// Type returns the Go type the schema was built from, or nil for a definition.
func (s *Schema) Type() reflect.Type { return s.typ }

// ID returns the identity member accessor.
func (s *Schema) ID() *IDAccessor { return s.id }

// Indexes returns the index accessors in declaration order.
func (s *Schema) Indexes() []IndexAccessor { return s.indexes }

// Index returns the accessor for a member path.
func (s *Schema) Index(path string) (*IndexAccessor, bool) {
	i, ok := s.byPath[path]
	if !ok {
		return nil, false
	}
	return &s.indexes[i], true
}

// IndexPaths returns all member paths in declaration order.
func (s *Schema) IndexPaths() []string {
	paths := make([]string, len(s.indexes))
	for i := range s.indexes {
		paths[i] = s.indexes[i].path
	}
	return paths
}

// UniquePaths returns the unique-constrained member paths.
func (s *Schema) UniquePaths() []string { return s.uniques }

// StructureTable returns the name of the table holding JSON rows.
func (s *Schema) StructureTable() string { return s.name + StructureSuffix }

// IndexesTable returns the name of the table holding index rows.
func (s *Schema) IndexesTable() string { return s.name + IndexesSuffix }

// UniquesTable returns the name of the table holding unique rows.
func (s *Schema) UniquesTable() string { return s.name + UniquesSuffix }

// StructureTableFor derives the structure table of another set by name.
func StructureTableFor(set string) string { return set + StructureSuffix }

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrInvalidSchema)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name %q too long (max %d): %w", name, MaxNameLength, domain.ErrInvalidSchema)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("name %q must be an identifier: %w", name, domain.ErrInvalidSchema)
	}
	return nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("member path is required: %w", domain.ErrInvalidSchema)
	}
	for _, seg := range strings.Split(path, ".") {
		if err := validateName(seg); err != nil {
			return fmt.Errorf("member path %q: %w", path, err)
		}
	}
	return nil
}
