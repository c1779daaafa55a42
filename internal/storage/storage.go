// Package storage defines the row-source contract the executor pulls table
// data through. Implementations supply full-table scans and per-table
// schemas; everything above (filtering, projection, joins) is the query
// pipeline's job.
package storage

import (
	"github.com/quelldb/quell/internal/record"
)

// RowIter streams the rows of one table. Next returns the next row, or
// (nil, nil) once the table is exhausted. Iterators are single-use and not
// safe for concurrent calls.
type RowIter interface {
	Next() (record.Row, error)
}

// Engine is a table-oriented row store.
//
// Different implementations are possible: in-memory for embedding and
// tests, or a disk-backed engine behind the same interface. The query
// pipeline only ever scans whole tables and asks for schemas.
type Engine interface {
	// Scan opens a full-table scan. Row order is the engine's insertion
	// order and is stable across scans with no intervening writes.
	Scan(table string) (RowIter, error)

	// Schema returns the table's column layout.
	Schema(table string) (record.Schema, error)
}
