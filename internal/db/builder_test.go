package db

import (
	"errors"
	"strings"
	"testing"
)

func indexesTable() *TableDefinition {
	return NewTable("OrderIndexes").
		BigInt("StructureId").NotNull().
		Key("MemberPath").NotNull().
		Text("StringValue").
		BigInt("IntegerValue").
		Bool("BooleanValue").
		Index("IX_OrderIndexes_Member", "MemberPath", "StructureId").
		MustBuild()
}

func TestTableBuilder_Simple(t *testing.T) {
	def := indexesTable()
	if def.Name != "OrderIndexes" {
		t.Errorf("name = %q, want OrderIndexes", def.Name)
	}
	if len(def.Columns) != 5 {
		t.Fatalf("columns count = %d, want 5", len(def.Columns))
	}
	if !def.Columns[0].NotNull || def.Columns[2].NotNull {
		t.Errorf("not null flags = %+v", def.Columns)
	}
	if len(def.Indexes) != 1 || def.Indexes[0].Unique {
		t.Errorf("indexes = %+v", def.Indexes)
	}
}

func TestTableBuilder_Validation(t *testing.T) {
	tests := []struct {
		name string
		b    *TableBuilder
	}{
		{"empty name", NewTable("").BigInt("A")},
		{"bad name", NewTable("a-b").BigInt("A")},
		{"no columns", NewTable("T")},
		{"duplicate column", NewTable("T").BigInt("A").Text("A")},
		{"two row ids", NewTable("T").RowID("A").RowID("B")},
		{"row id with primary key", NewTable("T").RowID("A").BigInt("B").PrimaryKey("B")},
		{"unknown pk column", NewTable("T").BigInt("A").PrimaryKey("B")},
		{"unknown index column", NewTable("T").BigInt("A").Index("IX", "B")},
		{"empty index", NewTable("T").BigInt("A").Index("IX")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestTableBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewTable("").MustBuild()
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"OrderStructure", true},
		{"order_1", true},
		{"", false},
		{"drop table", false},
		{"a;b", false},
		{`a"b`, false},
	}
	for _, tc := range tests {
		if got := IsValidIdentifier(tc.s); got != tc.want {
			t.Errorf("IsValidIdentifier(%q) = %v, want %v", tc.s, got, tc.want)
		}
	}
}

// --- dialect.go tests ---

func TestDialect_CreateTable_SQLite(t *testing.T) {
	stmts := SQLite.CreateTable(indexesTable())
	if len(stmts) != 2 {
		t.Fatalf("stmts = %v, want table + index", stmts)
	}
	want := `create table if not exists "OrderIndexes" (` +
		`"StructureId" integer not null, "MemberPath" text not null, ` +
		`"StringValue" text, "IntegerValue" integer, "BooleanValue" integer)`
	if stmts[0] != want {
		t.Errorf("table =\n%s\nwant\n%s", stmts[0], want)
	}
	wantIdx := `create index if not exists "IX_OrderIndexes_Member" on "OrderIndexes" ("MemberPath", "StructureId")`
	if stmts[1] != wantIdx {
		t.Errorf("index =\n%s\nwant\n%s", stmts[1], wantIdx)
	}
}

func TestDialect_CreateTable_MySQLInlinesIndexes(t *testing.T) {
	def := NewTable("OrderUniques").
		BigInt("StructureId").NotNull().
		Key("UqName").NotNull().
		LongKey("UqValue").NotNull().
		Unique("UQ_OrderUniques", "UqName", "UqValue").
		MustBuild()
	stmts := MySQL.CreateTable(def)
	if len(stmts) != 1 {
		t.Fatalf("stmts = %v, want one statement", stmts)
	}
	if !strings.Contains(stmts[0], "unique key `UQ_OrderUniques` (`UqName`, `UqValue`)") {
		t.Errorf("table = %s", stmts[0])
	}
	if !strings.Contains(stmts[0], "`UqValue` varchar(512) not null") {
		t.Errorf("table = %s", stmts[0])
	}
}

func TestDialect_CreateTable_RowID(t *testing.T) {
	def := NewTable("OrderStructure").
		RowID("RowId").
		BigInt("StructureId").NotNull().
		Text("Json").NotNull().
		Unique("UQ_OrderStructure_Id", "StructureId").
		MustBuild()

	tests := []struct {
		d    Dialect
		want string
	}{
		{SQLite, `"RowId" integer primary key autoincrement`},
		{Postgres, `"RowId" bigserial primary key`},
		{MySQL, "`RowId` bigint not null auto_increment primary key"},
		{SQLServer, "[RowId] bigint identity(1,1) primary key"},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name, func(t *testing.T) {
			stmt := tt.d.CreateTable(def)[0]
			if !strings.Contains(stmt, tt.want) {
				t.Errorf("table = %s, want %s", stmt, tt.want)
			}
		})
	}
}

func TestDialect_SQLServerGuardsCreate(t *testing.T) {
	stmts := SQLServer.CreateTable(indexesTable())
	if !strings.HasPrefix(stmts[0], "if object_id(N'[OrderIndexes]', N'U') is null create table [OrderIndexes]") {
		t.Errorf("table = %s", stmts[0])
	}
	if !strings.HasPrefix(stmts[1], "if not exists (select 1 from sys.indexes where name = N'IX_OrderIndexes_Member')") {
		t.Errorf("index = %s", stmts[1])
	}
}

func TestDialect_Placeholders(t *testing.T) {
	tests := []struct {
		d    Dialect
		want string
	}{
		{SQLite, "?"},
		{MySQL, "?"},
		{Postgres, "$3"},
		{SQLServer, "@p3"},
	}
	for _, tt := range tests {
		if got := tt.d.Placeholder(3); got != tt.want {
			t.Errorf("%s Placeholder(3) = %q, want %q", tt.d.Name, got, tt.want)
		}
	}
}

func TestDialect_PageBindsInTextOrder(t *testing.T) {
	bind := func(args *[]any, d Dialect) Bind {
		return func(v any) string {
			*args = append(*args, v)
			return d.Placeholder(len(*args))
		}
	}

	var args []any
	got := Postgres.Page(bind(&args, Postgres), 20, 10)
	if got != "limit $1 offset $2" {
		t.Errorf("Postgres page = %q", got)
	}
	if args[0] != 10 || args[1] != 20 {
		t.Errorf("Postgres args = %v, want [10 20]", args)
	}

	args = nil
	got = SQLServer.Page(bind(&args, SQLServer), 20, 10)
	if got != "offset @p1 rows fetch next @p2 rows only" {
		t.Errorf("SQLServer page = %q", got)
	}
	if args[0] != 20 || args[1] != 10 {
		t.Errorf("SQLServer args = %v, want [20 10]", args)
	}
}

func TestDialect_MinOf(t *testing.T) {
	if got := SQLite.MinOf("mem0.BooleanValue", ColumnBool); got != "min(mem0.BooleanValue)" {
		t.Errorf("SQLite MinOf = %q", got)
	}
	if got := Postgres.MinOf("mem0.BooleanValue", ColumnBool); got != "bool_and(mem0.BooleanValue)" {
		t.Errorf("Postgres MinOf = %q", got)
	}
	if got := Postgres.MinOf("mem0.IntegerValue", ColumnBigInt); got != "min(mem0.IntegerValue)" {
		t.Errorf("Postgres MinOf = %q", got)
	}
}

func TestDialect_Quote(t *testing.T) {
	if got := SQLite.Quote(`a"b`); got != `"a""b"` {
		t.Errorf("SQLite Quote = %s", got)
	}
	if got := MySQL.Quote("a`b"); got != "`a``b`" {
		t.Errorf("MySQL Quote = %s", got)
	}
	if got := SQLServer.Quote("a]b"); got != "[a]]b]" {
		t.Errorf("SQLServer Quote = %s", got)
	}
}

func TestDialectByName(t *testing.T) {
	for _, name := range []string{"sqlite", "mysql", "postgres", "pgx", "sqlserver", "MSSQL"} {
		if _, err := DialectByName(name); err != nil {
			t.Errorf("DialectByName(%q): %v", name, err)
		}
	}
	if _, err := DialectByName("oracle"); err == nil {
		t.Error("expected error")
	}
}

func TestError_Unwrap(t *testing.T) {
	err := &Error{Op: OpExec, Err: ErrUniqueViolation}
	if err.Error() != "EXEC: db: unique constraint violation" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrUniqueViolation) {
		t.Error("errors.Is failed")
	}
}
