package structure

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/domain/value"
)

// ID is a structure identifier of one of the three id kinds.
type ID struct {
	kind schema.IDKind
	num  int64
	guid uuid.UUID
	str  string
}

// IdentityID creates a sequential identifier.
func IdentityID(n int64) ID { return ID{kind: schema.IDIdentity, num: n} }

// GuidID creates a guid identifier.
func GuidID(u uuid.UUID) ID { return ID{kind: schema.IDGuid, guid: u} }

// StringID creates a client supplied identifier.
func StringID(s string) ID { return ID{kind: schema.IDString, str: s} }

// Kind returns the identifier kind.
func (id ID) Kind() schema.IDKind { return id.kind }

// Int returns the sequential value of an identity id.
func (id ID) Int() int64 { return id.num }

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	switch id.kind {
	case schema.IDIdentity:
		return id.num == 0
	case schema.IDGuid:
		return id.guid == uuid.Nil
	case schema.IDString:
		return id.str == ""
	default:
		return true
	}
}

// Value returns the id as bound into the StructureId column.
func (id ID) Value() any {
	if id.kind == schema.IDIdentity {
		return id.num
	}
	return id.String()
}

// Native returns the id in the Go form assigned onto instances:
// int64, uuid.UUID or string.
func (id ID) Native() any {
	switch id.kind {
	case schema.IDIdentity:
		return id.num
	case schema.IDGuid:
		return id.guid
	default:
		return id.str
	}
}

func (id ID) String() string {
	switch id.kind {
	case schema.IDIdentity:
		return strconv.FormatInt(id.num, 10)
	case schema.IDGuid:
		return id.guid.String()
	default:
		return id.str
	}
}

// ParseID parses the text form of an identifier of the given kind.
func ParseID(kind schema.IDKind, s string) (ID, error) {
	switch kind {
	case schema.IDIdentity:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ID{}, fmt.Errorf("identity id %q: %w", s, domain.ErrInvalidDocument)
		}
		return IdentityID(n), nil
	case schema.IDGuid:
		u, err := uuid.Parse(s)
		if err != nil {
			return ID{}, fmt.Errorf("guid id %q: %w", s, domain.ErrInvalidDocument)
		}
		return GuidID(u), nil
	case schema.IDString:
		return StringID(s), nil
	default:
		return ID{}, fmt.Errorf("unknown id kind %q: %w", kind, domain.ErrInvalidSchema)
	}
}

// IDFromValue converts a raw id member value. A nil value yields a zero id.
func IDFromValue(kind schema.IDKind, v any) (ID, error) {
	if v == nil {
		return ID{kind: kind}, nil
	}
	switch kind {
	case schema.IDIdentity:
		n, err := value.Normalize(schema.KindInteger, v)
		if err != nil {
			return ID{}, fmt.Errorf("identity id: %w: %w", err, domain.ErrInvalidDocument)
		}
		return IdentityID(n.(int64)), nil //nolint:forcetypeassert // integer kind normalizes to int64
	case schema.IDGuid:
		if s, ok := v.(string); ok && s == "" {
			return ID{kind: kind}, nil
		}
		g, err := value.Normalize(schema.KindGuid, v)
		if err != nil {
			return ID{}, fmt.Errorf("guid id: %w: %w", err, domain.ErrInvalidDocument)
		}
		return GuidID(uuid.MustParse(g.(string))), nil //nolint:forcetypeassert // normalized guid text
	case schema.IDString:
		s, ok := v.(string)
		if !ok {
			if sv, err := value.Normalize(schema.KindString, v); err == nil {
				s = sv.(string) //nolint:forcetypeassert // string kind normalizes to string
			} else {
				return ID{}, fmt.Errorf("string id from %T: %w", v, domain.ErrInvalidDocument)
			}
		}
		return StringID(s), nil
	default:
		return ID{}, fmt.Errorf("unknown id kind %q: %w", kind, domain.ErrInvalidSchema)
	}
}
