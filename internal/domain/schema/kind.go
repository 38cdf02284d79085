package schema

import "fmt"

// Kind is the declared value kind of an indexed member.
type Kind string

// Value kind constants.
const (
	KindString     Kind = "string"
	KindInteger    Kind = "integer"
	KindFractional Kind = "fractional"
	KindBoolean    Kind = "boolean"
	KindDateTime   Kind = "datetime"
	KindEnum       Kind = "enum"
	KindGuid       Kind = "guid"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindString, KindInteger, KindFractional, KindBoolean, KindDateTime, KindEnum, KindGuid:
		return k, nil
	default:
		return "", fmt.Errorf("unknown value kind %q", s)
	}
}

// Column returns the index table column holding values of this kind.
func (k Kind) Column() string {
	switch k {
	case KindInteger:
		return ColIntegerValue
	case KindFractional:
		return ColFractionalValue
	case KindBoolean:
		return ColBooleanValue
	case KindDateTime:
		return ColDateTimeValue
	case KindGuid:
		return ColGuidValue
	default:
		return ColStringValue
	}
}

// IDKind is how a set's identifiers are produced.
type IDKind string

// Identifier kind constants.
const (
	// IDIdentity is a sequential int64 generated by the store.
	IDIdentity IDKind = "identity"
	// IDGuid is a random UUID generated on insert.
	IDGuid IDKind = "guid"
	// IDString is supplied by the caller and never generated.
	IDString IDKind = "string"
)

// ParseIDKind validates an identifier kind name.
func ParseIDKind(s string) (IDKind, error) {
	switch k := IDKind(s); k {
	case IDIdentity, IDGuid, IDString:
		return k, nil
	case "":
		return IDIdentity, nil
	default:
		return "", fmt.Errorf("unknown id kind %q", s)
	}
}

// IsIdentity reports whether ids are sequential integers.
func (k IDKind) IsIdentity() bool { return k == IDIdentity }

// Generated reports whether missing ids are generated on insert.
func (k IDKind) Generated() bool { return k == IDIdentity || k == IDGuid }

// Storage column names shared by every structure set.
const (
	ColStructureID     = "StructureId"
	ColRowID           = "RowId"
	ColJSON            = "Json"
	ColMemberPath      = "MemberPath"
	ColStringValue     = "StringValue"
	ColIntegerValue    = "IntegerValue"
	ColFractionalValue = "FractionalValue"
	ColBooleanValue    = "BooleanValue"
	ColDateTimeValue   = "DateTimeValue"
	ColGuidValue       = "GuidValue"
	ColUqName          = "UqName"
	ColUqValue         = "UqValue"
)

// ValueColumns lists the typed value columns of an index table in storage order.
var ValueColumns = []string{
	ColStringValue, ColIntegerValue, ColFractionalValue,
	ColBooleanValue, ColDateTimeValue, ColGuidValue,
}
