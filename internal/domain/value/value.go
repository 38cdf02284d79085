// Package value renders member values to the canonical forms stored in index
// tables and bound as query parameters. Indexing and querying share it so that
// a predicate always compares against the same rendering the indexer wrote.
package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

// DateTimeLayout is the fixed-width, lexically sortable form of DateTime values (UTC).
const DateTimeLayout = "2006-01-02T15:04:05.0000000Z"

// Enumerable element delimiters.
const (
	TokenStart = "<$"
	TokenEnd   = "$>"
)

// ErrKind signals a value that cannot be represented in a member's kind.
var ErrKind = errors.New("value does not match kind")

// Normalize converts v to the Go value stored in kind's typed column:
// int64, float64, bool or string.
func Normalize(kind schema.Kind, v any) (any, error) {
	switch kind {
	case schema.KindString:
		return toString(kind, v)
	case schema.KindInteger:
		return toInt64(v)
	case schema.KindFractional:
		return toFloat64(v)
	case schema.KindBoolean:
		return toBool(v)
	case schema.KindDateTime:
		return toDateTime(v)
	case schema.KindEnum:
		return toEnum(v)
	case schema.KindGuid:
		return toGuid(v)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrKind, kind)
	}
}

// Render returns the canonical string form of v.
func Render(kind schema.Kind, v any) (string, error) {
	n, err := Normalize(kind, v)
	if err != nil {
		return "", err
	}
	return Format(n), nil
}

// Format renders an already normalized value.
func Format(n any) string {
	switch x := n.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Token wraps one rendered element of an enumerable member.
func Token(s string) string {
	return TokenStart + s + TokenEnd
}

// Encode concatenates rendered elements as tokens, keeping the first
// occurrence of each distinct rendering. Elements that render identically are
// conflated: datetimes differing below 100ns collapse into one token.
func Encode(elements []string) string {
	seen := make(map[string]struct{}, len(elements))
	var sb strings.Builder
	for _, e := range elements {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		sb.WriteString(Token(e))
	}
	return sb.String()
}

func toString(kind schema.Kind, v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", fmt.Errorf("%w: %s from %T", ErrKind, kind, v)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: integer from %q", ErrKind, x.String())
		}
		return n, nil
	case float64:
		if x != math.Trunc(x) || x >= math.MaxInt64 || x < math.MinInt64 {
			return 0, fmt.Errorf("%w: integer from %v", ErrKind, x)
		}
		return int64(x), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: integer %d overflows int64", ErrKind, u)
		}
		return int64(u), nil
	default:
		return 0, fmt.Errorf("%w: integer from %T", ErrKind, v)
	}
}

func toFloat64(v any) (float64, error) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: fractional from %q", ErrKind, n.String())
		}
		return f, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	default:
		return 0, fmt.Errorf("%w: fractional from %T", ErrKind, v)
	}
}

func toBool(v any) (bool, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Bool {
		return rv.Bool(), nil
	}
	return false, fmt.Errorf("%w: boolean from %T", ErrKind, v)
}

func toDateTime(v any) (string, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(DateTimeLayout), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return "", fmt.Errorf("%w: datetime from %q", ErrKind, x)
		}
		return t.UTC().Format(DateTimeLayout), nil
	default:
		return "", fmt.Errorf("%w: datetime from %T", ErrKind, v)
	}
}

func toEnum(v any) (string, error) {
	switch x := v.(type) {
	case fmt.Stringer:
		return x.String(), nil
	case string:
		return x, nil
	}
	if s, err := toString(schema.KindEnum, v); err == nil {
		return s, nil
	}
	if n, err := toInt64(v); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	return "", fmt.Errorf("%w: enum from %T", ErrKind, v)
}

func toGuid(v any) (string, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String(), nil
	case [16]byte:
		return uuid.UUID(x).String(), nil
	case string:
		u, err := uuid.Parse(x)
		if err != nil {
			return "", fmt.Errorf("%w: guid from %q", ErrKind, x)
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("%w: guid from %T", ErrKind, v)
	}
}
