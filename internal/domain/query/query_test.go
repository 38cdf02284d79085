package query

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/structdex/internal/domain"
)

func TestBuilder_Empty(t *testing.T) {
	q, err := New().Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.IsEmpty() {
		t.Error("IsEmpty() = false, want true")
	}
	if q.HasWhere() {
		t.Error("HasWhere() = true, want false")
	}
}

func TestBuilder_WhereCombinesWithAnd(t *testing.T) {
	q := New().Where(Eq("A", 1)).Where(Gt("B", 2)).MustBuild()
	j, ok := q.Where().(Junction)
	if !ok {
		t.Fatalf("Where() = %T, want Junction", q.Where())
	}
	if j.IsOr() || len(j.Operands()) != 2 {
		t.Errorf("junction = %+v", j)
	}
}

func TestBuilder_TakeAndPaging(t *testing.T) {
	_, err := New().Take(5).Page(0, 10).Build()
	if !errors.Is(err, domain.ErrInvalidQueryShape) {
		t.Fatalf("error = %v, want ErrInvalidQueryShape", err)
	}
}

func TestSingle(t *testing.T) {
	tests := []struct {
		name     string
		q        Query
		wantTake int
		paged    bool
	}{
		{"unbounded", New().OrderBy("A").MustBuild(), 1, false},
		{"take", New().Take(10).MustBuild(), 1, false},
		{"paged", New().Page(2, 5).MustBuild(), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := tt.q.Take()
			got := tt.q.Single()
			if got.Take() != tt.wantTake || (got.Paging() != nil) != tt.paged {
				t.Errorf("Single() take = %d, paging = %v", got.Take(), got.Paging())
			}
			if err := got.Validate(); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.q.Take() != orig {
				t.Errorf("receiver changed: take = %d, want %d", tt.q.Take(), orig)
			}
		})
	}
}

func TestBuilder_Invalid(t *testing.T) {
	tests := []struct {
		name string
		b    *Builder
	}{
		{"negative take", New().Take(-1)},
		{"zero page size", New().Page(0, 0)},
		{"negative page", New().Page(-1, 10)},
		{"include without field", New().Include("RefId", "Item", "")},
		{"duplicate include field", New().Include("A", "X", "Item").Include("B", "Y", "Item")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			if !errors.Is(err, domain.ErrInvalidQuery) {
				t.Fatalf("error = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestBuilder_CopiesSlices(t *testing.T) {
	b := New().OrderBy("A")
	q := b.MustBuild()
	b.OrderByDesc("B")
	if len(q.Sortings()) != 1 {
		t.Errorf("Sortings() = %v, want 1 entry", q.Sortings())
	}
}

func TestValidateIDsOnly(t *testing.T) {
	where := Eq("A", 1)
	tests := []struct {
		name string
		q    Query
		ok   bool
	}{
		{"where only", New().Where(where).MustBuild(), true},
		{"missing where", New().MustBuild(), false},
		{"take", New().Where(where).Take(1).MustBuild(), false},
		{"sortings", New().Where(where).OrderBy("A").MustBuild(), false},
		{"includes", New().Where(where).Include("R", "T", "Item").MustBuild(), false},
		{"paging", New().Where(where).Page(0, 5).MustBuild(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.ValidateIDsOnly()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrInvalidQueryShape) {
				t.Fatalf("error = %v, want ErrInvalidQueryShape", err)
			}
		})
	}
}

func TestPaths_FirstAppearance(t *testing.T) {
	e := And(Eq("B", 1), Or(Eq("A", 2), Not(Eq("B", 3))), Gt("C", 0))
	got := Paths(e)
	want := []string{"B", "A", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestJunction_DropsNil(t *testing.T) {
	if And() != nil {
		t.Error("And() should be nil")
	}
	got, ok := Or(nil, Eq("A", 1)).(Comparison)
	if !ok || got.Path() != "A" {
		t.Errorf("Or(nil, e) = %#v, want the comparison", got)
	}
	if Not(nil) != nil {
		t.Error("Not(nil) should be nil")
	}
}

func TestPaging_Offset(t *testing.T) {
	if got := (Paging{Page: 3, Size: 20}).Offset(); got != 60 {
		t.Errorf("Offset() = %d, want 60", got)
	}
}

// --- JSON form ---

func TestParse(t *testing.T) {
	data := []byte(`{
		"where": {"and": [
			{"path": "Value", "op": "between", "values": [20, 30]},
			{"not": {"path": "Tags", "op": "hasElement", "value": "x"}}
		]},
		"orderBy": [{"path": "Value"}, {"path": "Name", "desc": true}],
		"include": [{"path": "CustomerId", "target": "Customer", "as": "Customer"}],
		"page": {"page": 1, "size": 10}
	}`)
	q, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	j, ok := q.Where().(Junction)
	if !ok || len(j.Operands()) != 2 {
		t.Fatalf("Where() = %#v", q.Where())
	}
	between := j.Operands()[0].(Comparison)
	if between.Op() != OpBetween || len(between.Values()) != 2 {
		t.Errorf("between = %+v", between)
	}
	if between.Values()[0] != json.Number("20") {
		t.Errorf("between lo = %#v, want json.Number", between.Values()[0])
	}
	if _, ok := j.Operands()[1].(Negation); !ok {
		t.Errorf("second operand = %T, want Negation", j.Operands()[1])
	}

	wantSort := []Sorting{{Path: "Value", Direction: Asc}, {Path: "Name", Direction: Desc}}
	if !reflect.DeepEqual(q.Sortings(), wantSort) {
		t.Errorf("Sortings() = %v", q.Sortings())
	}
	if len(q.Includes()) != 1 || q.Includes()[0].Target != "Customer" {
		t.Errorf("Includes() = %v", q.Includes())
	}
	if q.Paging() == nil || q.Paging().Offset() != 10 {
		t.Errorf("Paging() = %v", q.Paging())
	}
}

func TestParse_Empty(t *testing.T) {
	q, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.IsEmpty() {
		t.Error("IsEmpty() = false, want true")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"malformed", `{"where":`, domain.ErrInvalidQuery},
		{"unknown field", `{"limit": 3}`, domain.ErrInvalidQuery},
		{"unknown op", `{"where": {"path": "A", "op": "near", "value": 1}}`, domain.ErrInvalidQuery},
		{"ambiguous node", `{"where": {"path": "A", "op": "eq", "value": 1, "and": []}}`, domain.ErrInvalidQuery},
		{"empty junction", `{"where": {"or": []}}`, domain.ErrInvalidQuery},
		{"take and page", `{"take": 1, "page": {"page": 0, "size": 1}}`, domain.ErrInvalidQueryShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
