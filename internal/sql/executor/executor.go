// Package executor runs optimized plans against a storage engine with a
// pull-based iterator per plan operator. Execution is all-or-nothing: the
// root is drained completely and the first error aborts the query with no
// partial result.
package executor

import (
	"github.com/quelldb/quell/internal/record"
	"github.com/quelldb/quell/internal/sql/planner"
	"github.com/quelldb/quell/internal/sqlerr"
	"github.com/quelldb/quell/internal/storage"
)

type Executor struct {
	store storage.Engine
}

func New(store storage.Engine) *Executor {
	return &Executor{store: store}
}

// Execute runs the plan to completion and returns the full result set.
// Hidden columns introduced for ORDER BY are stripped here; they never
// reach the caller.
func (e *Executor) Execute(p *planner.Plan) (*Result, error) {
	root, schema, err := e.build(p.Root)
	if err != nil {
		return nil, err
	}

	visible := schema.Visible()
	columns := make([]string, len(visible))
	for i, idx := range visible {
		columns[i] = schema.Cols[idx].Name
	}

	var rows []record.Row
	for {
		row, err := root.Next()
		if err != nil {
			if _, tagged := sqlerr.KindOf(err); !tagged {
				err = sqlerr.Wrap(sqlerr.KindExecution, err)
			}
			return nil, err
		}
		if row == nil {
			break
		}
		if len(visible) != len(schema.Cols) {
			stripped := make(record.Row, len(visible))
			for i, idx := range visible {
				stripped[i] = row[idx]
			}
			row = stripped
		}
		rows = append(rows, row)
	}
	return &Result{Columns: columns, Rows: rows}, nil
}

// Stream builds the iterator tree and hands the root to the caller
// instead of draining it. Column names and hidden-column stripping match
// Execute; errors coming off the iterator are tagged the same way.
func (e *Executor) Stream(p *planner.Plan) (RowIterator, []string, error) {
	root, schema, err := e.build(p.Root)
	if err != nil {
		return nil, nil, err
	}
	visible := schema.Visible()
	columns := make([]string, len(visible))
	for i, idx := range visible {
		columns[i] = schema.Cols[idx].Name
	}
	if len(visible) != len(schema.Cols) {
		root = &stripIter{source: root, visible: visible}
	}
	return &tagErrIter{source: root}, columns, nil
}

type stripIter struct {
	source  RowIterator
	visible []int
}

func (it *stripIter) Next() (record.Row, error) {
	row, err := it.source.Next()
	if err != nil || row == nil {
		return nil, err
	}
	out := make(record.Row, len(it.visible))
	for i, idx := range it.visible {
		out[i] = row[idx]
	}
	return out, nil
}

type tagErrIter struct {
	source RowIterator
}

func (it *tagErrIter) Next() (record.Row, error) {
	row, err := it.source.Next()
	if err != nil {
		if _, tagged := sqlerr.KindOf(err); !tagged {
			err = sqlerr.Wrap(sqlerr.KindExecution, err)
		}
		return nil, err
	}
	return row, nil
}

// build assembles the iterator for a plan node and reports the node's
// output schema, which parent iterators evaluate expressions against.
func (e *Executor) build(n planner.Node) (RowIterator, record.Schema, error) {
	switch t := n.(type) {
	case *planner.Scan:
		base, err := e.store.Schema(t.Table)
		if err != nil {
			return nil, record.Schema{}, sqlerr.Storage(err)
		}
		rows, err := e.store.Scan(t.Table)
		if err != nil {
			return nil, record.Schema{}, sqlerr.Storage(err)
		}
		schema := planner.ScanSchema(t, base)
		return &scanIter{rows: rows, schema: schema, filter: t.Filter}, schema, nil

	case *planner.Filter:
		source, schema, err := e.build(t.Source)
		if err != nil {
			return nil, record.Schema{}, err
		}
		return &filterIter{source: source, schema: schema, predicate: t.Predicate}, schema, nil

	case *planner.Project:
		source, in, err := e.build(t.Source)
		if err != nil {
			return nil, record.Schema{}, err
		}
		out := planner.ProjectSchema(t.Expressions, in)
		return &projectIter{source: source, in: in, items: t.Expressions}, out, nil

	case *planner.Join:
		left, leftSchema, err := e.build(t.Left)
		if err != nil {
			return nil, record.Schema{}, err
		}
		right, rightSchema, err := e.build(t.Right)
		if err != nil {
			return nil, record.Schema{}, err
		}
		it := newJoinIter(left, right, leftSchema, rightSchema, t)
		return it, it.schema, nil

	case *planner.Aggregate:
		source, in, err := e.build(t.Source)
		if err != nil {
			return nil, record.Schema{}, err
		}
		it := newAggIter(source, in, t)
		return it, it.out, nil

	case *planner.Order:
		source, schema, err := e.build(t.Source)
		if err != nil {
			return nil, record.Schema{}, err
		}
		return &orderIter{source: source, schema: schema, keys: t.Keys}, schema, nil

	case *planner.Offset:
		source, schema, err := e.build(t.Source)
		if err != nil {
			return nil, record.Schema{}, err
		}
		return &offsetIter{source: source, n: t.N}, schema, nil

	case *planner.Limit:
		source, schema, err := e.build(t.Source)
		if err != nil {
			return nil, record.Schema{}, err
		}
		return &limitIter{source: source, n: t.N}, schema, nil

	default:
		return nil, record.Schema{}, sqlerr.Execution("unsupported plan node %T", n)
	}
}
