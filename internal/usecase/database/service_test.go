package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

// --- Mocks ---

type mockTables struct {
	upserts   []string
	drops     []string
	upsertErr error
	dropErr   error
}

func (m *mockTables) Upsert(_ context.Context, s *schema.Schema) error {
	m.upserts = append(m.upserts, s.Name())
	return m.upsertErr
}

func (m *mockTables) Drop(_ context.Context, s *schema.Schema) error {
	m.drops = append(m.drops, s.Name())
	return m.dropErr
}

type mockSync struct {
	calls int
	err   error
}

func (m *mockSync) All(_ context.Context, _ *schema.Schema) error {
	m.calls++
	return m.err
}

type mockIdentity struct {
	forgotten []string
}

func (m *mockIdentity) Forget(_ context.Context, set string) error {
	m.forgotten = append(m.forgotten, set)
	return nil
}

type mockResetter struct {
	reset []string
}

func (m *mockResetter) Reset(set string) { m.reset = append(m.reset, set) }

func makeSchema(t *testing.T, name string, kind schema.IDKind) *schema.Schema {
	t.Helper()
	s, err := schema.FromDefinition(schema.Definition{
		Name: name,
		ID:   schema.IDDefinition{Kind: kind},
		Members: []schema.MemberDefinition{
			{Path: "Name", Kind: schema.KindString},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

// --- UpsertSet ---

func TestUpsertSet_CachesSchema(t *testing.T) {
	tables, sy, rs := &mockTables{}, &mockSync{}, &mockResetter{}
	svc := New(tables, sy, nil).WithSyncResetter(rs)

	s := makeSchema(t, "Order", schema.IDIdentity)
	if err := svc.UpsertSet(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.Schema("Order")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != s {
		t.Error("expected the upserted schema to be cached")
	}
	if sy.calls != 1 {
		t.Errorf("sync calls = %d, want 1", sy.calls)
	}
	if len(rs.reset) != 1 || rs.reset[0] != "Order" {
		t.Errorf("reset = %v", rs.reset)
	}
}

func TestUpsertSet_ReplacesCachedSchema(t *testing.T) {
	svc := New(&mockTables{}, &mockSync{}, nil)
	ctx := context.Background()

	first := makeSchema(t, "Order", schema.IDIdentity)
	second := makeSchema(t, "Order", schema.IDIdentity)
	_ = svc.UpsertSet(ctx, first)
	_ = svc.UpsertSet(ctx, second)

	got, _ := svc.Schema("Order")
	if got != second {
		t.Error("expected the second schema to replace the first")
	}
}

func TestUpsertSet_FailureLeavesNothingCached(t *testing.T) {
	tests := []struct {
		name   string
		tables *mockTables
		sync   *mockSync
	}{
		{"tables", &mockTables{upsertErr: errors.New("disk full")}, &mockSync{}},
		{"sync", &mockTables{}, &mockSync{err: errors.New("locked")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(tt.tables, tt.sync, nil)
			if err := svc.UpsertSet(context.Background(), makeSchema(t, "Order", schema.IDIdentity)); err == nil {
				t.Fatal("expected error")
			}
			if _, err := svc.Schema("Order"); !errors.Is(err, domain.ErrSetNotFound) {
				t.Errorf("expected ErrSetNotFound, got %v", err)
			}
		})
	}
}

// --- DropSet ---

func TestDropSet(t *testing.T) {
	tables, ids := &mockTables{}, &mockIdentity{}
	svc := New(tables, &mockSync{}, ids)
	ctx := context.Background()

	_ = svc.UpsertSet(ctx, makeSchema(t, "Order", schema.IDIdentity))
	_ = svc.UpsertSet(ctx, makeSchema(t, "Event", schema.IDGuid))

	for _, name := range []string{"Order", "Event"} {
		if err := svc.DropSet(ctx, name); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(tables.drops) != 2 {
		t.Errorf("drops = %v", tables.drops)
	}
	if len(ids.forgotten) != 1 || ids.forgotten[0] != "Order" {
		t.Errorf("forgotten = %v, want only the identity set", ids.forgotten)
	}
	if names := svc.Names(); len(names) != 0 {
		t.Errorf("names = %v, want none", names)
	}
}

func TestDropSet_Unknown(t *testing.T) {
	svc := New(&mockTables{}, &mockSync{}, nil)
	if err := svc.DropSet(context.Background(), "Nope"); !errors.Is(err, domain.ErrSetNotFound) {
		t.Errorf("expected ErrSetNotFound, got %v", err)
	}
}

// --- Ensure ---

func TestEnsure_BuildsOnce(t *testing.T) {
	tables := &mockTables{}
	svc := New(tables, &mockSync{}, nil)
	ctx := context.Background()

	var builds atomic.Int32
	build := func() (*schema.Schema, error) {
		builds.Add(1)
		return makeSchema(t, "Order", schema.IDIdentity), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Ensure(ctx, "Order", build); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("builds = %d, want 1", builds.Load())
	}
	if len(tables.upserts) != 1 {
		t.Errorf("upserts = %v, want one", tables.upserts)
	}
}

func TestEnsure_BuildError(t *testing.T) {
	svc := New(&mockTables{}, &mockSync{}, nil)
	_, err := svc.Ensure(context.Background(), "Order", func() (*schema.Schema, error) {
		return nil, domain.ErrInvalidSchema
	})
	if !errors.Is(err, domain.ErrInvalidSchema) {
		t.Errorf("expected ErrInvalidSchema, got %v", err)
	}
}

func TestNames(t *testing.T) {
	svc := New(&mockTables{}, &mockSync{}, nil)
	ctx := context.Background()
	for _, n := range []string{"Order", "Customer"} {
		_ = svc.UpsertSet(ctx, makeSchema(t, n, schema.IDIdentity))
	}
	names := svc.Names()
	if len(names) != 2 || names[0] != "Customer" || names[1] != "Order" {
		t.Errorf("names = %v", names)
	}
}
