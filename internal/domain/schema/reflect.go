package schema

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/structdex/internal/domain"
)

const tagKey = "structdex"

// DefaultIDMember is the identity member used when no field carries the id modifier.
const DefaultIDMember = "StructureId"

var (
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// step selects one struct field; spread iterates the field's elements.
type step struct {
	index  int
	spread bool
}

// For builds the schema of T.
func For[T any]() (*Schema, error) {
	return FromType(reflect.TypeOf((*T)(nil)).Elem())
}

// FromType reflects on a struct type and compiles one accessor per indexable
// member. Nested structs are flattened into dotted paths, collections become
// enumerable members, and byte sequences are skipped.
func FromType(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct: %w", t, domain.ErrInvalidSchema)
	}

	b := &typeBuilder{root: t, set: t.Name()}
	if err := b.walk(t, nil, "", false, map[reflect.Type]bool{t: true}); err != nil {
		return nil, err
	}

	id, err := b.idAccessor()
	if err != nil {
		return nil, err
	}
	return newSchema(b.set, t, id, b.indexes)
}

type typeBuilder struct {
	root    reflect.Type
	set     string
	indexes []IndexAccessor

	explicitID []step
	explicitT  reflect.Type
	defaultID  []step
	defaultT   reflect.Type
	idPath     string
}

func (b *typeBuilder) walk(
	t reflect.Type, steps []step, prefix string, enumerable bool, visiting map[reflect.Type]bool,
) error {
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tagName, modifier := parseTag(f.Tag.Get(tagKey))
		if tagName == "-" {
			continue
		}
		st := append(slices.Clone(steps), step{index: i})

		if f.Anonymous && tagName == "" {
			if et := deref(f.Type); et.Kind() == reflect.Struct && !isScalar(et) {
				if err := b.nested(et, st, prefix, enumerable, visiting); err != nil {
					return err
				}
				continue
			}
		}

		name := f.Name
		if tagName != "" {
			name = tagName
		}
		path := joinPath(prefix, name)

		if modifier == "id" {
			if err := b.setExplicitID(f, st, path, prefix, enumerable); err != nil {
				return err
			}
			continue
		}
		if prefix == "" && !enumerable && name == DefaultIDMember && modifier == "" {
			b.defaultID, b.defaultT = st, f.Type
			continue
		}
		if err := b.member(f.Type, st, path, enumerable, modifier, visiting); err != nil {
			return err
		}
	}
	return nil
}

func (b *typeBuilder) setExplicitID(f reflect.StructField, st []step, path, prefix string, enumerable bool) error {
	if prefix != "" || enumerable {
		return fmt.Errorf("%s: id member %s must be a top-level field: %w", b.set, path, domain.ErrInvalidSchema)
	}
	if b.explicitID != nil {
		return fmt.Errorf("%s: duplicate id modifier on field %s: %w", b.set, f.Name, domain.ErrInvalidSchema)
	}
	b.explicitID, b.explicitT, b.idPath = st, f.Type, path
	return nil
}

func (b *typeBuilder) nested(
	t reflect.Type, steps []step, path string, enumerable bool, visiting map[reflect.Type]bool,
) error {
	if visiting[t] {
		return nil
	}
	visiting[t] = true
	defer delete(visiting, t)
	return b.walk(t, steps, path, enumerable, visiting)
}

func (b *typeBuilder) member(
	ft reflect.Type, steps []step, path string, enumerable bool, modifier string, visiting map[reflect.Type]bool,
) error {
	unique := false
	switch modifier {
	case "":
	case "unique":
		unique = true
	default:
		return fmt.Errorf("%s: unknown modifier %q on %s: %w", b.set, modifier, path, domain.ErrInvalidSchema)
	}

	t := deref(ft)
	if kind, ok := scalarKind(t); ok {
		b.add(path, kind, enumerable, unique, steps)
		return nil
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		et := deref(t.Elem())
		if et.Kind() == reflect.Uint8 {
			return nil
		}
		steps[len(steps)-1].spread = true
		if kind, ok := scalarKind(et); ok {
			b.add(path, kind, true, unique, steps)
			return nil
		}
		if et.Kind() == reflect.Struct {
			if unique {
				return fmt.Errorf("%s: unique modifier on collection %s: %w", b.set, path, domain.ErrInvalidSchema)
			}
			return b.nested(et, steps, path, true, visiting)
		}
		return nil
	case reflect.Struct:
		if unique {
			return fmt.Errorf("%s: unique modifier on object %s: %w", b.set, path, domain.ErrInvalidSchema)
		}
		return b.nested(t, steps, path, enumerable, visiting)
	default:
		// maps, interfaces, channels and funcs carry no static shape to index
		return nil
	}
}

func (b *typeBuilder) add(path string, kind Kind, enumerable, unique bool, steps []step) {
	b.indexes = append(b.indexes, IndexAccessor{
		set:        b.set,
		path:       path,
		kind:       kind,
		enumerable: enumerable,
		unique:     unique,
		resolve:    reflectResolver(b.root, steps),
	})
}

func (b *typeBuilder) idAccessor() (*IDAccessor, error) {
	steps, ft, path := b.explicitID, b.explicitT, b.idPath
	if steps == nil {
		steps, ft, path = b.defaultID, b.defaultT, DefaultIDMember
	}
	if steps == nil {
		return nil, fmt.Errorf("%s: no %s field and no field with `%s:\",id\"` tag: %w",
			b.set, DefaultIDMember, tagKey, domain.ErrInvalidSchema)
	}

	kind, err := idKindOf(ft)
	if err != nil {
		return nil, fmt.Errorf("%s: id member %s: %w", b.set, path, err)
	}

	root := b.root
	return &IDAccessor{
		set:  b.set,
		path: path,
		kind: kind,
		get: func(v any) (any, error) {
			rv, err := rootValue(v, root)
			if err != nil || !rv.IsValid() {
				return nil, err
			}
			f, ok := fieldAt(rv, steps)
			if !ok {
				return nil, nil
			}
			return f.Interface(), nil
		},
		put: func(v any, id any) error {
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Pointer || rv.IsNil() {
				return fmt.Errorf("cannot assign id to %T, pass a pointer", v)
			}
			rv, err := rootValue(v, root)
			if err != nil {
				return err
			}
			f, ok := fieldAt(rv, steps)
			if !ok || !f.CanSet() {
				return fmt.Errorf("id member %s is not assignable", path)
			}
			idv := reflect.ValueOf(id)
			if !idv.Type().ConvertibleTo(f.Type()) {
				return fmt.Errorf("id value %T does not convert to %s", id, f.Type())
			}
			f.Set(idv.Convert(f.Type()))
			return nil
		},
	}, nil
}

func reflectResolver(root reflect.Type, steps []step) resolver {
	return func(v any) ([]any, error) {
		rv, err := rootValue(v, root)
		if err != nil || !rv.IsValid() {
			return nil, err
		}
		return collect(rv, steps, nil), nil
	}
}

// collect follows steps from a struct value, fanning out on spread steps.
func collect(v reflect.Value, steps []step, out []any) []any {
	f, ok := indirect(v.Field(steps[0].index))
	if !ok {
		return out
	}
	rest := steps[1:]
	if !steps[0].spread {
		if len(rest) == 0 {
			return append(out, f.Interface())
		}
		return collect(f, rest, out)
	}
	for i := range f.Len() {
		e, ok := indirect(f.Index(i))
		if !ok {
			continue
		}
		if len(rest) == 0 {
			out = append(out, e.Interface())
			continue
		}
		out = collect(e, rest, out)
	}
	return out
}

func fieldAt(v reflect.Value, steps []step) (reflect.Value, bool) {
	for i, s := range steps {
		f := v.Field(s.index)
		if i == len(steps)-1 {
			return f, true
		}
		var ok bool
		if v, ok = indirect(f); !ok {
			return reflect.Value{}, false
		}
	}
	return reflect.Value{}, false
}

func rootValue(v any, root reflect.Type) (reflect.Value, error) {
	rv, ok := indirect(reflect.ValueOf(v))
	if !ok {
		return reflect.Value{}, nil
	}
	if rv.Type() != root {
		return reflect.Value{}, &mismatch{segment: root.Name(), got: rv.Type().String()}
	}
	return rv, nil
}

func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func isScalar(t reflect.Type) bool {
	_, ok := scalarKind(t)
	return ok
}

func scalarKind(t reflect.Type) (Kind, bool) {
	switch {
	case t == timeType:
		return KindDateTime, true
	case t == uuidType:
		return KindGuid, true
	case isIntegerKind(t.Kind()) && t.Implements(stringerType):
		return KindEnum, true
	}
	switch t.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Bool:
		return KindBoolean, true
	case reflect.Float32, reflect.Float64:
		return KindFractional, true
	default:
		if isIntegerKind(t.Kind()) {
			return KindInteger, true
		}
		return "", false
	}
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func idKindOf(t reflect.Type) (IDKind, error) {
	switch {
	case t == uuidType:
		return IDGuid, nil
	case t.Kind() == reflect.String:
		return IDString, nil
	case isIntegerKind(t.Kind()):
		return IDIdentity, nil
	default:
		return "", fmt.Errorf("unsupported id type %s: %w", t, domain.ErrInvalidSchema)
	}
}

func parseTag(tag string) (name, modifier string) {
	name, modifier, _ = strings.Cut(tag, ",")
	return name, modifier
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
