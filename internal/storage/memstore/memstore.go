// Package memstore is the in-memory storage engine. It backs embedded use
// and tests, and doubles as the planner's catalog since it already holds
// every table's schema.
package memstore

import (
	"fmt"
	"sync"

	"github.com/quelldb/quell/internal/catalog"
	"github.com/quelldb/quell/internal/record"
	"github.com/quelldb/quell/internal/storage"
)

type table struct {
	schema record.Schema
	rows   []record.Row
}

// Store holds tables in memory. Safe for concurrent readers and writers.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// CreateTable registers a new empty table.
func (s *Store) CreateTable(name string, schema record.Schema) error {
	if name == "" {
		return fmt.Errorf("memstore: table name must not be empty")
	}
	if len(schema.Cols) == 0 {
		return fmt.Errorf("memstore: table %q must have at least one column", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; ok {
		return fmt.Errorf("memstore: table %q already exists", name)
	}
	s.tables[name] = &table{schema: schema}
	return nil
}

// Insert appends a row, validating arity, types and nullability against the
// table schema. The row is copied; callers may reuse their slice.
func (s *Store) Insert(name string, row record.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("memstore: table %q does not exist", name)
	}
	if len(row) != t.schema.NumCols() {
		return fmt.Errorf("memstore: table %q expects %d columns, got %d",
			name, t.schema.NumCols(), len(row))
	}
	for i, v := range row {
		col := t.schema.Cols[i]
		if v.IsNull() {
			if !col.Nullable {
				return fmt.Errorf("memstore: column %q of table %q is not nullable", col.Name, name)
			}
			continue
		}
		if record.TypeOf(v) != col.Type {
			return fmt.Errorf("memstore: column %q of table %q expects %v, got %s",
				col.Name, name, col.Type, v)
		}
	}
	t.rows = append(t.rows, row.Clone())
	return nil
}

// Scan opens an iterator over a snapshot of the table's rows in insertion
// order. Rows are copied out, so writes after Scan do not affect it.
func (s *Store) Scan(name string) (storage.RowIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("memstore: table %q does not exist", name)
	}
	rows := make([]record.Row, len(t.rows))
	for i, r := range t.rows {
		rows[i] = r.Clone()
	}
	return &sliceIter{rows: rows}, nil
}

// Schema returns the table's column layout.
func (s *Store) Schema(name string) (record.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return record.Schema{}, fmt.Errorf("memstore: table %q does not exist", name)
	}
	return t.schema, nil
}

// Table implements catalog.Catalog for the planner.
func (s *Store) Table(name string) (*catalog.TableMeta, error) {
	schema, err := s.Schema(name)
	if err != nil {
		return nil, err
	}
	return &catalog.TableMeta{Name: name, Schema: schema}, nil
}

var (
	_ storage.Engine  = (*Store)(nil)
	_ catalog.Catalog = (*Store)(nil)
)

type sliceIter struct {
	rows []record.Row
	pos  int
}

func (it *sliceIter) Next() (record.Row, error) {
	if it.pos >= len(it.rows) {
		return nil, nil
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}
