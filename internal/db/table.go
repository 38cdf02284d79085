package db

import (
	"errors"
	"strconv"
)

// ColumnType is a portable column type resolved per dialect.
type ColumnType int

const (
	// ColumnRowID is an auto-incremented surrogate primary key.
	ColumnRowID ColumnType = iota
	// ColumnBigInt is a 64-bit integer.
	ColumnBigInt
	// ColumnFloat is a double precision float.
	ColumnFloat
	// ColumnBool is a boolean.
	ColumnBool
	// ColumnText is unbounded text, not indexable everywhere.
	ColumnText
	// ColumnKey is short indexable text (names, ids, guids, datetimes).
	ColumnKey
	// ColumnLongKey is longer indexable text (unique values).
	ColumnLongKey
)

// TableColumn describes one column of a table.
type TableColumn struct {
	Name    string
	Type    ColumnType
	NotNull bool
}

// TableIndex describes a secondary index or unique key.
type TableIndex struct {
	Name    string
	Columns []string
	Unique  bool
}

// TableDefinition is a complete table definition rendered by a Dialect.
type TableDefinition struct {
	Name       string
	Columns    []TableColumn
	PrimaryKey []string
	Indexes    []TableIndex
}

// Validate checks that the table definition is well-formed.
func (t *TableDefinition) Validate() error {
	if t.Name == "" {
		return errors.New("table name is required")
	}
	if !IsValidIdentifier(t.Name) {
		return errors.New("table name contains invalid characters")
	}
	if len(t.Columns) == 0 {
		return errors.New("at least one column is required")
	}

	seen := make(map[string]bool)
	rowIDs := 0
	for i := range t.Columns {
		c := &t.Columns[i]
		if c.Name == "" {
			return errors.New("column name is required at index " + strconv.Itoa(i))
		}
		if !IsValidIdentifier(c.Name) {
			return errors.New("column name contains invalid characters: " + c.Name)
		}
		if seen[c.Name] {
			return errors.New("duplicate column name: " + c.Name)
		}
		seen[c.Name] = true
		if c.Type == ColumnRowID {
			rowIDs++
		}
	}
	if rowIDs > 1 {
		return errors.New("at most one row id column is allowed")
	}
	if rowIDs == 1 && len(t.PrimaryKey) > 0 {
		return errors.New("row id column already is the primary key")
	}

	for _, c := range t.PrimaryKey {
		if !seen[c] {
			return errors.New("primary key references unknown column: " + c)
		}
	}
	for _, idx := range t.Indexes {
		if !IsValidIdentifier(idx.Name) {
			return errors.New("index name contains invalid characters: " + idx.Name)
		}
		if len(idx.Columns) == 0 {
			return errors.New("index requires columns: " + idx.Name)
		}
		for _, c := range idx.Columns {
			if !seen[c] {
				return errors.New("index " + idx.Name + " references unknown column: " + c)
			}
		}
	}
	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !isDigit && r != '_' {
			return false
		}
	}
	return true
}
