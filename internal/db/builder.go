package db

// TableBuilder is a fluent builder for table definitions.
type TableBuilder struct {
	def TableDefinition
}

// NewTable starts building a table definition.
func NewTable(name string) *TableBuilder {
	return &TableBuilder{def: TableDefinition{Name: name}}
}

func (b *TableBuilder) column(name string, typ ColumnType) *TableBuilder {
	b.def.Columns = append(b.def.Columns, TableColumn{Name: name, Type: typ})
	return b
}

// RowID adds an auto-incremented surrogate primary key.
func (b *TableBuilder) RowID(name string) *TableBuilder { return b.column(name, ColumnRowID) }

// BigInt adds a 64-bit integer column.
func (b *TableBuilder) BigInt(name string) *TableBuilder { return b.column(name, ColumnBigInt) }

// Float adds a double precision column.
func (b *TableBuilder) Float(name string) *TableBuilder { return b.column(name, ColumnFloat) }

// Bool adds a boolean column.
func (b *TableBuilder) Bool(name string) *TableBuilder { return b.column(name, ColumnBool) }

// Text adds an unbounded text column.
func (b *TableBuilder) Text(name string) *TableBuilder { return b.column(name, ColumnText) }

// Key adds a short indexable text column.
func (b *TableBuilder) Key(name string) *TableBuilder { return b.column(name, ColumnKey) }

// LongKey adds a longer indexable text column.
func (b *TableBuilder) LongKey(name string) *TableBuilder { return b.column(name, ColumnLongKey) }

// Typed adds a column of an explicit type.
func (b *TableBuilder) Typed(name string, typ ColumnType) *TableBuilder { return b.column(name, typ) }

// NotNull marks the last added column as not nullable.
func (b *TableBuilder) NotNull() *TableBuilder {
	if n := len(b.def.Columns); n > 0 {
		b.def.Columns[n-1].NotNull = true
	}
	return b
}

// PrimaryKey sets the primary key columns.
func (b *TableBuilder) PrimaryKey(columns ...string) *TableBuilder {
	b.def.PrimaryKey = columns
	return b
}

// Index adds a secondary index.
func (b *TableBuilder) Index(name string, columns ...string) *TableBuilder {
	b.def.Indexes = append(b.def.Indexes, TableIndex{Name: name, Columns: columns})
	return b
}

// Unique adds a unique key.
func (b *TableBuilder) Unique(name string, columns ...string) *TableBuilder {
	b.def.Indexes = append(b.def.Indexes, TableIndex{Name: name, Columns: columns, Unique: true})
	return b
}

// Build validates and returns the table definition.
func (b *TableBuilder) Build() (*TableDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}

// MustBuild calls Build and panics on error.
func (b *TableBuilder) MustBuild() *TableDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
