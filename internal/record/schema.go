// Package record defines rows and schemas flowing between plan operators.
package record

import (
	"fmt"

	"github.com/quelldb/quell/internal/sql/value"
)

// ColumnType declares the stored type of a column.
type ColumnType uint8

const (
	ColInt64 ColumnType = iota
	ColBool
	ColFloat64
	ColText // UTF-8
)

func (t ColumnType) String() string {
	switch t {
	case ColInt64:
		return "INTEGER"
	case ColBool:
		return "BOOLEAN"
	case ColFloat64:
		return "FLOAT"
	case ColText:
		return "TEXT"
	default:
		return fmt.Sprintf("ColumnType(%d)", uint8(t))
	}
}

// Column describes one schema position. Table is the qualifier (table name
// or alias) the column is visible under; it is empty for computed columns.
// Hidden columns carry values needed by upstream operators (e.g. sort keys
// not in the select list) and are stripped from the final result.
type Column struct {
	Table    string
	Name     string
	Type     ColumnType
	Nullable bool
	Hidden   bool
}

// Schema is an ordered sequence of columns. Rows are positionally aligned
// to it.
type Schema struct {
	Cols []Column
}

// Row is an ordered sequence of values aligned to a Schema. Rows are
// immutable once produced; ownership passes downstream and is never shared
// back.
type Row []value.Value

func (s Schema) NumCols() int { return len(s.Cols) }

// Qualify returns a copy of the schema with every column visible under the
// given qualifier (a scan alias takes precedence over the table name).
func (s Schema) Qualify(qualifier string) Schema {
	cols := make([]Column, len(s.Cols))
	copy(cols, s.Cols)
	for i := range cols {
		cols[i].Table = qualifier
	}
	return Schema{Cols: cols}
}

// Join concatenates two schemas, left columns first.
func (s Schema) Join(other Schema) Schema {
	cols := make([]Column, 0, len(s.Cols)+len(other.Cols))
	cols = append(cols, s.Cols...)
	cols = append(cols, other.Cols...)
	return Schema{Cols: cols}
}

// Index resolves a possibly-qualified column reference to a position.
// An empty qualifier matches any table but must be unambiguous.
func (s Schema) Index(table, name string) (int, error) {
	found := -1
	for i, c := range s.Cols {
		if c.Name != name {
			continue
		}
		if table != "" && c.Table != table {
			continue
		}
		if found >= 0 {
			return -1, fmt.Errorf("ambiguous column reference %q", name)
		}
		found = i
	}
	if found < 0 {
		if table != "" {
			return -1, fmt.Errorf("unknown column %s.%s", table, name)
		}
		return -1, fmt.Errorf("unknown column %s", name)
	}
	return found, nil
}

// Visible returns the positions of non-hidden columns, in order.
func (s Schema) Visible() []int {
	idx := make([]int, 0, len(s.Cols))
	for i, c := range s.Cols {
		if !c.Hidden {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	cp := make(Row, len(r))
	copy(cp, r)
	return cp
}

// TypeOf maps a value kind to a column type for computed columns; Null maps
// to TEXT for lack of better information.
func TypeOf(v value.Value) ColumnType {
	switch v.Kind() {
	case value.KindBoolean:
		return ColBool
	case value.KindInteger:
		return ColInt64
	case value.KindFloat:
		return ColFloat64
	default:
		return ColText
	}
}
