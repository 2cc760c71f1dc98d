// Package schema translates index declarations into column and index DDL
// and reconciles a collection's materialized SQLite schema with those
// declarations on open: CREATE TABLE IF NOT EXISTS, then add any missing
// index columns, generalized to arbitrary declared index specifications
// over a single id/json/date document table.
package schema

import (
	"fmt"
	"strings"
)

// ColumnType is one of the data types an index column may hold. Columns
// are otherwise untyped in SQLite; the type is recorded on the declaration
// only and is used neither in the ADD COLUMN statement nor in queries.
type ColumnType string

// Recognized column types.
const (
	V8      ColumnType = "V8"
	V16     ColumnType = "V16"
	V32     ColumnType = "V32"
	Int     ColumnType = "INT"
	Real    ColumnType = "REAL"
	Boolean ColumnType = "BOOLEAN"
	Blob    ColumnType = "BLOB"
	Text    ColumnType = "TEXT"
)

// Field is one element of a compound index: a dotted document path plus
// its column type.
type Field struct {
	Path string
	Type ColumnType
}

// Index describes either a single-path or compound index declared on a
// collection.
type Index struct {
	// Fields has exactly one entry for a single-path index or more than
	// one for a compound index.
	Fields []Field
	Unique bool
}

// Single builds a single-field index, defaulting Type to V32.
func Single(path string, t ColumnType, unique bool) Index {
	if t == "" {
		t = V32
	}
	return Index{Fields: []Field{{Path: path, Type: t}}, Unique: unique}
}

// Compound builds a multi-field index from an ordered field list.
func Compound(unique bool, fields ...Field) Index {
	for i, f := range fields {
		if f.Type == "" {
			fields[i].Type = V32
		}
	}
	return Index{Fields: fields, Unique: unique}
}

// ColumnName maps a dotted document path to its materialized column name:
// dots become double underscores.
func ColumnName(path string) string {
	return strings.ReplaceAll(path, ".", "__")
}

// PathFromColumn is ColumnName's inverse, used when a caller needs to
// resolve a stored column back to the document path it mirrors.
func PathFromColumn(col string) string {
	return strings.ReplaceAll(col, "__", ".")
}

// IndexName returns the materialized index name: the single column name for
// a single-field index, or every field's column name joined by "___" for a
// compound index.
func IndexName(idx Index) string {
	names := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		names[i] = ColumnName(f.Path)
	}
	return strings.Join(names, "___")
}

// Columns returns the column names an index requires, in field order. It
// does not deduplicate; RequiredColumns does.
func Columns(idx Index) []string {
	cols := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		cols[i] = ColumnName(f.Path)
	}
	return cols
}

// RequiredColumns computes the deduplicated set of index columns a
// collection's declared indices require, preserving
// first-seen order so DDL emission is deterministic.
func RequiredColumns(indices []Index) []string {
	seen := make(map[string]bool)
	var out []string
	for _, idx := range indices {
		for _, col := range Columns(idx) {
			if !seen[col] {
				seen[col] = true
				out = append(out, col)
			}
		}
	}
	return out
}

// CreateTableSQL returns the base document table DDL.
func CreateTableSQL(collection string) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id VARCHAR(32) PRIMARY KEY, json TEXT NOT NULL, date INTEGER NOT NULL)`,
		collection,
	)
}

// AddColumnSQL returns the (untyped) ADD COLUMN statement for a single
// index column.
func AddColumnSQL(collection, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", collection, column)
}

// CreateIndexSQL returns the CREATE [UNIQUE] INDEX statement for a
// declared index.
func CreateIndexSQL(collection string, idx Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, IndexName(idx), collection, strings.Join(Columns(idx), ", "),
	)
}
