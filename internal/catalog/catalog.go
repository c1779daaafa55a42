// Package catalog exposes table metadata to the planner. The catalog is
// consumed, never mutated: its durable form lives with the storage
// collaborator.
package catalog

import (
	"github.com/quelldb/quell/internal/record"
)

// TableMeta describes one table.
type TableMeta struct {
	Name   string        `json:"name"`
	Schema record.Schema `json:"schema"`
}

// Catalog resolves table names. Implementations return an error for
// unknown tables rather than a nil TableMeta.
type Catalog interface {
	Table(name string) (*TableMeta, error)
}
