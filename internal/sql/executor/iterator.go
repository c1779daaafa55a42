package executor

import (
	"sort"

	"github.com/quelldb/quell/internal/record"
	"github.com/quelldb/quell/internal/sql/expr"
	"github.com/quelldb/quell/internal/sql/parser"
	"github.com/quelldb/quell/internal/sql/planner"
	"github.com/quelldb/quell/internal/sql/value"
	"github.com/quelldb/quell/internal/sqlerr"
	"github.com/quelldb/quell/internal/storage"
)

// RowIterator streams rows through the operator tree. Next returns the
// next row, or (nil, nil) once the input is exhausted. After an error the
// iterator must not be advanced again.
type RowIterator interface {
	Next() (record.Row, error)
}

// scanIter pulls rows from the storage engine, applying the scan's
// pushed-down filter before handing rows upward.
type scanIter struct {
	rows   storage.RowIter
	schema record.Schema
	filter parser.Expr
}

func (it *scanIter) Next() (record.Row, error) {
	for {
		row, err := it.rows.Next()
		if err != nil {
			return nil, sqlerr.Storage(err)
		}
		if row == nil {
			return nil, nil
		}
		if it.filter == nil {
			return row, nil
		}
		keep, err := evalPredicate(it.filter, it.schema, row)
		if err != nil {
			return nil, err
		}
		if keep {
			return row, nil
		}
	}
}

// filterIter drops rows whose predicate is not true. A predicate
// evaluating to Null excludes the row, same as false.
type filterIter struct {
	source    RowIterator
	schema    record.Schema
	predicate parser.Expr
}

func (it *filterIter) Next() (record.Row, error) {
	for {
		row, err := it.source.Next()
		if row == nil || err != nil {
			return nil, err
		}
		keep, err := evalPredicate(it.predicate, it.schema, row)
		if err != nil {
			return nil, err
		}
		if keep {
			return row, nil
		}
	}
}

func evalPredicate(pred parser.Expr, schema record.Schema, row record.Row) (bool, error) {
	v, err := expr.Eval(pred, schema, row)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, nil
	}
	if v.Kind() != value.KindBoolean {
		return false, sqlerr.Execution("filter predicate must be a boolean, got %s", v)
	}
	return v.Bool(), nil
}

// projectIter evaluates each output expression against the source row.
type projectIter struct {
	source RowIterator
	in     record.Schema
	items  []planner.ProjectItem
}

func (it *projectIter) Next() (record.Row, error) {
	row, err := it.source.Next()
	if row == nil || err != nil {
		return nil, err
	}
	out := make(record.Row, len(it.items))
	for i, item := range it.items {
		v, err := expr.Eval(item.Expr, it.in, row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// limitIter caps the number of rows. The count is compared before it is
// advanced, so a cap of math.MaxInt64 behaves as "no limit" without
// overflow.
type limitIter struct {
	source RowIterator
	n      int64
	seen   int64
}

func (it *limitIter) Next() (record.Row, error) {
	if it.seen >= it.n {
		return nil, nil
	}
	row, err := it.source.Next()
	if row == nil || err != nil {
		return nil, err
	}
	it.seen++
	return row, nil
}

// offsetIter discards the first n rows.
type offsetIter struct {
	source  RowIterator
	n       int64
	skipped int64
}

func (it *offsetIter) Next() (record.Row, error) {
	for it.skipped < it.n {
		row, err := it.source.Next()
		if row == nil || err != nil {
			return nil, err
		}
		it.skipped++
	}
	return it.source.Next()
}

// orderIter materializes its input and sorts it by the key expressions.
// The sort is stable, so rows equal under every key keep their input
// order. Nulls sort before every value ascending, after every value
// descending.
type orderIter struct {
	source RowIterator
	schema record.Schema
	keys   []planner.OrderKey

	sorted []record.Row
	pos    int
	done   bool
}

func (it *orderIter) Next() (record.Row, error) {
	if !it.done {
		if err := it.sort(); err != nil {
			return nil, err
		}
		it.done = true
	}
	if it.pos >= len(it.sorted) {
		return nil, nil
	}
	row := it.sorted[it.pos]
	it.pos++
	return row, nil
}

func (it *orderIter) sort() error {
	type keyedRow struct {
		row record.Row
		key []value.Value
	}
	var rows []keyedRow
	for {
		row, err := it.source.Next()
		if err != nil {
			return err
		}
		if row == nil {
			break
		}
		k := make([]value.Value, len(it.keys))
		for i, key := range it.keys {
			v, err := expr.Eval(key.Expr, it.schema, row)
			if err != nil {
				return err
			}
			k[i] = v
		}
		rows = append(rows, keyedRow{row: row, key: k})
	}

	var sortErr error
	sort.SliceStable(rows, func(a, b int) bool {
		if sortErr != nil {
			return false
		}
		for i, key := range it.keys {
			ord, err := orderValues(rows[a].key[i], rows[b].key[i])
			if err != nil {
				sortErr = err
				return false
			}
			if ord == value.Equal {
				continue
			}
			if key.Desc {
				return ord == value.Greater
			}
			return ord == value.Less
		}
		return false
	})
	if sortErr != nil {
		return sortErr
	}
	it.sorted = make([]record.Row, len(rows))
	for i, r := range rows {
		it.sorted[i] = r.row
	}
	return nil
}

// orderValues totals the partial comparison for sorting: Null compares
// below every value and equal to itself.
func orderValues(a, b value.Value) (value.Ordering, error) {
	switch {
	case a.IsNull() && b.IsNull():
		return value.Equal, nil
	case a.IsNull():
		return value.Less, nil
	case b.IsNull():
		return value.Greater, nil
	}
	ord, err := value.Compare(a, b)
	if err != nil {
		return value.Unknown, sqlerr.Execution("cannot order %s against %s", a, b)
	}
	return ord, nil
}
