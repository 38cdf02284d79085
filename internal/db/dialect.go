package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Bind appends one argument to a statement and returns its placeholder.
type Bind func(v any) string

// Dialect is the set of per-backend strategies a translation composes.
// One value is selected per backend; the translation algorithm is shared.
type Dialect struct {
	Name string

	// Quote quotes an identifier.
	Quote func(ident string) string
	// Placeholder returns the n-th (1-based) parameter marker.
	Placeholder func(n int) string
	// Limit renders a row limit clause placed after order by.
	Limit func(bind Bind, n int) string
	// Page renders a row window clause placed after order by.
	Page func(bind Bind, offset, n int) string
	// Min aggregates a column; nil means min(expr).
	Min func(expr string, typ ColumnType) string

	types map[ColumnType]string
	// createTable wraps a table body; nil means "create table if not exists".
	createTable func(quotedName, body string) string
	// createIndex renders a standalone index statement; nil means the
	// indexes are declared inline in the table body.
	createIndex func(d Dialect, table string, idx TableIndex) string
}

// Type returns the column type name.
func (d Dialect) Type(t ColumnType) string { return d.types[t] }

// MinOf aggregates expr of column type t with min or the dialect's equivalent.
func (d Dialect) MinOf(expr string, t ColumnType) string {
	if d.Min != nil {
		return d.Min(expr, t)
	}
	return "min(" + expr + ")"
}

// CreateTable renders the statements creating def when absent.
func (d Dialect) CreateTable(def *TableDefinition) []string {
	parts := make([]string, 0, len(def.Columns)+len(def.Indexes)+1)
	for _, c := range def.Columns {
		col := d.Quote(c.Name) + " " + d.types[c.Type]
		if c.NotNull && c.Type != ColumnRowID {
			col += " not null"
		}
		parts = append(parts, col)
	}
	if len(def.PrimaryKey) > 0 {
		parts = append(parts, "primary key ("+d.quoteList(def.PrimaryKey)+")")
	}
	if d.createIndex == nil {
		for _, idx := range def.Indexes {
			kw := "index"
			if idx.Unique {
				kw = "unique key"
			}
			parts = append(parts, kw+" "+d.Quote(idx.Name)+" ("+d.quoteList(idx.Columns)+")")
		}
	} else {
		for _, idx := range def.Indexes {
			if idx.Unique {
				parts = append(parts, "constraint "+d.Quote(idx.Name)+" unique ("+d.quoteList(idx.Columns)+")")
			}
		}
	}

	body := strings.Join(parts, ", ")
	var stmt string
	if d.createTable != nil {
		stmt = d.createTable(d.Quote(def.Name), body)
	} else {
		stmt = "create table if not exists " + d.Quote(def.Name) + " (" + body + ")"
	}

	stmts := []string{stmt}
	if d.createIndex != nil {
		for _, idx := range def.Indexes {
			if !idx.Unique {
				stmts = append(stmts, d.createIndex(d, def.Name, idx))
			}
		}
	}
	return stmts
}

// DropTable renders the statement dropping a table when present.
func (d Dialect) DropTable(name string) string {
	return "drop table if exists " + d.Quote(name)
}

func (d Dialect) quoteList(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	return strings.Join(q, ", ")
}

func createIndexIfNotExists(d Dialect, table string, idx TableIndex) string {
	return fmt.Sprintf("create index if not exists %s on %s (%s)",
		d.Quote(idx.Name), d.Quote(table), d.quoteList(idx.Columns))
}

func question(int) string { return "?" }

func limitClause(bind Bind, n int) string { return "limit " + bind(n) }

func limitOffsetClause(bind Bind, offset, n int) string {
	l := bind(n)
	return "limit " + l + " offset " + bind(offset)
}

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// SQLite is the dialect of modernc.org/sqlite.
var SQLite = Dialect{
	Name:        "sqlite",
	Quote:       doubleQuote,
	Placeholder: question,
	Limit:       limitClause,
	Page:        limitOffsetClause,
	types: map[ColumnType]string{
		ColumnRowID:   "integer primary key autoincrement",
		ColumnBigInt:  "integer",
		ColumnFloat:   "real",
		ColumnBool:    "integer",
		ColumnText:    "text",
		ColumnKey:     "text",
		ColumnLongKey: "text",
	},
	createIndex: createIndexIfNotExists,
}

// MySQL is the dialect of go-sql-driver/mysql.
var MySQL = Dialect{
	Name: "mysql",
	Quote: func(ident string) string {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	},
	Placeholder: question,
	Limit:       limitClause,
	Page:        limitOffsetClause,
	types: map[ColumnType]string{
		ColumnRowID:   "bigint not null auto_increment primary key",
		ColumnBigInt:  "bigint",
		ColumnFloat:   "double",
		ColumnBool:    "tinyint(1)",
		ColumnText:    "longtext",
		ColumnKey:     "varchar(255)",
		ColumnLongKey: "varchar(512)",
	},
}

// Postgres is the dialect of jackc/pgx.
var Postgres = Dialect{
	Name:        "postgres",
	Quote:       doubleQuote,
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Limit:       limitClause,
	Page:        limitOffsetClause,
	Min: func(expr string, t ColumnType) string {
		if t == ColumnBool {
			return "bool_and(" + expr + ")"
		}
		return "min(" + expr + ")"
	},
	types: map[ColumnType]string{
		ColumnRowID:   "bigserial primary key",
		ColumnBigInt:  "bigint",
		ColumnFloat:   "double precision",
		ColumnBool:    "boolean",
		ColumnText:    "text",
		ColumnKey:     "varchar(255)",
		ColumnLongKey: "varchar(512)",
	},
	createIndex: createIndexIfNotExists,
}

// SQLServer is a translation-only dialect; no driver is shipped for it.
var SQLServer = Dialect{
	Name: "sqlserver",
	Quote: func(ident string) string {
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	},
	Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	Limit: func(bind Bind, n int) string {
		return "offset 0 rows fetch next " + bind(n) + " rows only"
	},
	Page: func(bind Bind, offset, n int) string {
		o := bind(offset)
		return "offset " + o + " rows fetch next " + bind(n) + " rows only"
	},
	Min: func(expr string, t ColumnType) string {
		if t == ColumnBool {
			return "min(cast(" + expr + " as int))"
		}
		return "min(" + expr + ")"
	},
	types: map[ColumnType]string{
		ColumnRowID:   "bigint identity(1,1) primary key",
		ColumnBigInt:  "bigint",
		ColumnFloat:   "float",
		ColumnBool:    "bit",
		ColumnText:    "nvarchar(max)",
		ColumnKey:     "nvarchar(255)",
		ColumnLongKey: "nvarchar(450)",
	},
	createTable: func(quotedName, body string) string {
		name := strings.ReplaceAll(quotedName, "'", "''")
		return "if object_id(N'" + name + "', N'U') is null create table " + quotedName + " (" + body + ")"
	},
	createIndex: func(d Dialect, table string, idx TableIndex) string {
		return fmt.Sprintf("if not exists (select 1 from sys.indexes where name = N'%s') create index %s on %s (%s)",
			strings.ReplaceAll(idx.Name, "'", "''"), d.Quote(idx.Name), d.Quote(table), d.quoteList(idx.Columns))
	},
}

// DialectByName returns a registered dialect.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case SQLite.Name:
		return SQLite, nil
	case MySQL.Name:
		return MySQL, nil
	case Postgres.Name, "pgx":
		return Postgres, nil
	case SQLServer.Name, "mssql":
		return SQLServer, nil
	default:
		return Dialect{}, fmt.Errorf("unknown dialect %q", name)
	}
}
