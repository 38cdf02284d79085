package schema

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/structdex/internal/domain"
)

// Definition declares a structure set whose documents are decoded JSON objects.
type Definition struct {
	Name    string
	ID      IDDefinition
	Members []MemberDefinition
}

// IDDefinition declares the identity member of a dynamic set.
type IDDefinition struct {
	Path string // top-level key, default StructureId
	Kind IDKind
}

// MemberDefinition declares one indexable member of a dynamic set.
type MemberDefinition struct {
	Path       string
	Kind       Kind
	Enumerable bool
	Unique     bool
}

// FromDefinition compiles a dynamic schema. Documents must be map[string]any
// as produced by encoding/json; arrays anywhere on a path fan out.
func FromDefinition(def Definition) (*Schema, error) {
	idPath := def.ID.Path
	if idPath == "" {
		idPath = DefaultIDMember
	}
	if strings.Contains(idPath, ".") {
		return nil, fmt.Errorf("%s: id member %q must be a top-level key: %w", def.Name, idPath, domain.ErrInvalidSchema)
	}
	if err := validatePath(idPath); err != nil {
		return nil, fmt.Errorf("%s: %w", def.Name, err)
	}
	idKind, err := ParseIDKind(string(def.ID.Kind))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", def.Name, err, domain.ErrInvalidSchema)
	}

	indexes := make([]IndexAccessor, 0, len(def.Members))
	for _, m := range def.Members {
		if err := validatePath(m.Path); err != nil {
			return nil, fmt.Errorf("%s: %w", def.Name, err)
		}
		kind, err := ParseKind(string(m.Kind))
		if err != nil {
			return nil, fmt.Errorf("%s: member %s: %w: %w", def.Name, m.Path, err, domain.ErrInvalidSchema)
		}
		indexes = append(indexes, IndexAccessor{
			set:        def.Name,
			path:       m.Path,
			kind:       kind,
			enumerable: m.Enumerable,
			unique:     m.Unique,
			resolve:    mapResolver(strings.Split(m.Path, "."), m.Enumerable),
		})
	}

	id := &IDAccessor{
		set:  def.Name,
		path: idPath,
		kind: idKind,
		get: func(v any) (any, error) {
			doc, err := asObject(v, idPath)
			if err != nil || doc == nil {
				return nil, err
			}
			return doc[idPath], nil
		},
		put: func(v any, id any) error {
			doc, err := asObject(v, idPath)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("cannot assign id to a nil document")
			}
			doc[idPath] = id
			return nil
		},
	}
	return newSchema(def.Name, nil, id, indexes)
}

func mapResolver(segments []string, enumerable bool) resolver {
	last := len(segments) - 1
	return func(v any) ([]any, error) {
		root, err := asObject(v, segments[0])
		if err != nil || root == nil {
			return nil, err
		}
		cur := []any{root}
		for i, seg := range segments {
			var next []any
			for _, node := range cur {
				obj, ok := node.(map[string]any)
				if !ok {
					return nil, &mismatch{segment: segments[i-1], got: jsonType(node)}
				}
				child, ok := obj[seg]
				if !ok || child == nil {
					continue
				}
				arr, isArr := child.([]any)
				if !isArr {
					next = append(next, child)
					continue
				}
				// a scalar member resolves to at most one value
				if !enumerable {
					return nil, &mismatch{segment: seg, got: "array"}
				}
				for _, el := range arr {
					if el != nil {
						next = append(next, el)
					}
				}
			}
			cur = next
		}
		for _, leaf := range cur {
			switch leaf.(type) {
			case map[string]any:
				return nil, &mismatch{segment: segments[last], got: "object"}
			case []any:
				return nil, &mismatch{segment: segments[last], got: "array"}
			}
		}
		return cur, nil
	}
}

func asObject(v any, segment string) (map[string]any, error) {
	switch doc := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return doc, nil
	case *map[string]any:
		if doc == nil {
			return nil, nil
		}
		return *doc, nil
	default:
		return nil, &mismatch{segment: segment, got: fmt.Sprintf("%T", v)}
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "number"
	}
}
