// Package types defines the shared data model for the result streaming
// protocol: schemas, rows, partitions, stream sessions, and the wire
// message envelopes. It is a leaf package with no internal dependencies.
package types

import "fmt"

// ColumnType identifies the value type of a column.
type ColumnType string

// Column type constants. These are the types the columnar payload
// encoder understands; a schema carrying any other type is malformed.
const (
	ColumnTypeBool      ColumnType = "bool"
	ColumnTypeInt64     ColumnType = "int64"
	ColumnTypeFloat64   ColumnType = "float64"
	ColumnTypeString    ColumnType = "string"
	ColumnTypeBytes     ColumnType = "bytes"
	ColumnTypeTimestamp ColumnType = "timestamp"
)

// IsValid reports whether t is a known column type.
func (t ColumnType) IsValid() bool {
	switch t {
	case ColumnTypeBool, ColumnTypeInt64, ColumnTypeFloat64,
		ColumnTypeString, ColumnTypeBytes, ColumnTypeTimestamp:
		return true
	}
	return false
}

// Column is a single named, typed column of a schema.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is an ordered sequence of named, typed columns.
// Immutable once constructed; supplied once per result set.
type Schema struct {
	Columns []Column
}

// Validate checks that the schema is well-formed: at least one column,
// no empty or duplicate names, and only known column types.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}

	seen := make(map[string]bool, len(s.Columns))
	for i, col := range s.Columns {
		if col.Name == "" {
			return fmt.Errorf("column %d has empty name", i)
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate column name %q", col.Name)
		}
		seen[col.Name] = true

		if !col.Type.IsValid() {
			return fmt.Errorf("column %q has unknown type %q", col.Name, col.Type)
		}
	}
	return nil
}

// Names returns the column names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}
