package value

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

type color int

func (c color) String() string {
	if c == 1 {
		return "Red"
	}
	return "Blue"
}

func TestRender(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 9, 123456700, time.FixedZone("CET", 3600))
	id := uuid.MustParse("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")

	tests := []struct {
		name string
		kind schema.Kind
		in   any
		want string
	}{
		{"string", schema.KindString, "Hello", "Hello"},
		{"int", schema.KindInteger, 42, "42"},
		{"negative int8", schema.KindInteger, int8(-7), "-7"},
		{"uint", schema.KindInteger, uint16(9), "9"},
		{"json number int", schema.KindInteger, json.Number("12"), "12"},
		{"float64 integral", schema.KindInteger, float64(3), "3"},
		{"fractional", schema.KindFractional, 1.5, "1.5"},
		{"fractional from int", schema.KindFractional, 2, "2"},
		{"fractional small", schema.KindFractional, 0.000001, "0.000001"},
		{"bool", schema.KindBoolean, true, "true"},
		{"datetime utc", schema.KindDateTime, ts, "2024-03-05T13:07:09.1234567Z"},
		{"datetime string", schema.KindDateTime, "2024-03-05T13:07:09Z", "2024-03-05T13:07:09.0000000Z"},
		{"enum stringer", schema.KindEnum, color(1), "Red"},
		{"enum string", schema.KindEnum, "Blue", "Blue"},
		{"guid", schema.KindGuid, id, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"guid string", schema.KindGuid, "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.kind, tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name string
		kind schema.Kind
		in   any
	}{
		{"string from int", schema.KindString, 5},
		{"int from fraction", schema.KindInteger, 1.5},
		{"int from huge float", schema.KindInteger, math.MaxFloat64},
		{"uint overflow", schema.KindInteger, uint64(math.MaxUint64)},
		{"int from string", schema.KindInteger, "5"},
		{"bool from string", schema.KindBoolean, "true"},
		{"datetime garbage", schema.KindDateTime, "yesterday"},
		{"guid garbage", schema.KindGuid, "not-a-guid"},
		{"unknown kind", schema.Kind("money"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.kind, tt.in)
			if !errors.Is(err, ErrKind) {
				t.Fatalf("error = %v, want ErrKind", err)
			}
		})
	}
}

func TestNormalize_Types(t *testing.T) {
	n, err := Normalize(schema.KindInteger, int32(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := n.(int64); !ok {
		t.Errorf("Normalize(integer) = %T, want int64", n)
	}

	n, err = Normalize(schema.KindFractional, float32(0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0.5 {
		t.Errorf("Normalize(fractional) = %v, want 0.5", n)
	}

	n, err = Normalize(schema.KindDateTime, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != "1970-01-01T00:00:00.0000000Z" {
		t.Errorf("Normalize(datetime) = %v", n)
	}
}

func TestDateTimeSortsLexically(t *testing.T) {
	a, _ := Render(schema.KindDateTime, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	b, _ := Render(schema.KindDateTime, time.Date(2020, 1, 1, 0, 0, 0, 500, time.UTC))
	c, _ := Render(schema.KindDateTime, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	if a >= b || b >= c {
		t.Errorf("renderings not ordered: %q %q %q", a, b, c)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"single", []string{"A"}, "<$A$>"},
		{"two", []string{"A", "B"}, "<$A$><$B$>"},
		{"duplicates collapse", []string{"A", "A"}, "<$A$>"},
		{"first occurrence order", []string{"B", "A", "B"}, "<$B$><$A$>"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.in); got != tt.want {
				t.Errorf("Encode(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToken(t *testing.T) {
	if got := Token("42"); got != "<$42$>" {
		t.Errorf("Token() = %q, want <$42$>", got)
	}
}
