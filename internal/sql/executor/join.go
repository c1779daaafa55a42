package executor

import (
	"github.com/quelldb/quell/internal/record"
	"github.com/quelldb/quell/internal/sql/parser"
	"github.com/quelldb/quell/internal/sql/planner"
	"github.com/quelldb/quell/internal/sql/value"
)

// joinIter is a nested-loop join. The inner side is materialized once;
// the outer side streams. For LEFT and RIGHT joins the preserved side is
// the outer loop, with the other side padded with nulls when no row
// matches.
type joinIter struct {
	outer RowIterator
	inner RowIterator

	// swapped is set for RIGHT joins: the right input drives the loop but
	// output rows still lay out left columns first.
	swapped   bool
	preserve  bool // emit a padded row for unmatched outer rows
	predicate parser.Expr
	schema    record.Schema // output schema, left columns then right

	innerRows  []record.Row
	innerWidth int
	outerRow   record.Row
	innerPos   int
	matched    bool
	done       bool
}

func newJoinIter(left, right RowIterator, leftSchema, rightSchema record.Schema, node *planner.Join) *joinIter {
	it := &joinIter{
		predicate: node.Predicate,
		schema:    leftSchema.Join(rightSchema),
	}
	switch node.Kind {
	case parser.JoinRight:
		it.outer, it.inner = right, left
		it.swapped = true
		it.preserve = true
		it.innerWidth = len(leftSchema.Cols)
	case parser.JoinLeft:
		it.outer, it.inner = left, right
		it.preserve = true
		it.innerWidth = len(rightSchema.Cols)
	default: // inner, cross
		it.outer, it.inner = left, right
		it.innerWidth = len(rightSchema.Cols)
	}
	return it
}

func (it *joinIter) Next() (record.Row, error) {
	if it.done {
		return nil, nil
	}
	if it.innerRows == nil {
		if err := it.materialize(); err != nil {
			return nil, err
		}
	}

	for {
		if it.outerRow == nil {
			row, err := it.outer.Next()
			if err != nil {
				return nil, err
			}
			if row == nil {
				it.done = true
				return nil, nil
			}
			it.outerRow = row
			it.innerPos = 0
			it.matched = false
		}

		for it.innerPos < len(it.innerRows) {
			innerRow := it.innerRows[it.innerPos]
			it.innerPos++
			joined := it.combine(it.outerRow, innerRow)
			if it.predicate != nil {
				keep, err := evalPredicate(it.predicate, it.schema, joined)
				if err != nil {
					return nil, err
				}
				if !keep {
					continue
				}
			}
			it.matched = true
			return joined, nil
		}

		outerRow := it.outerRow
		it.outerRow = nil
		if it.preserve && !it.matched {
			return it.combine(outerRow, it.nullPad()), nil
		}
	}
}

func (it *joinIter) materialize() error {
	it.innerRows = []record.Row{}
	for {
		row, err := it.inner.Next()
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		it.innerRows = append(it.innerRows, row)
	}
}

// combine lays out left columns before right columns regardless of which
// side drives the loop.
func (it *joinIter) combine(outer, inner record.Row) record.Row {
	left, right := outer, inner
	if it.swapped {
		left, right = inner, outer
	}
	row := make(record.Row, 0, len(left)+len(right))
	row = append(row, left...)
	row = append(row, right...)
	return row
}

func (it *joinIter) nullPad() record.Row {
	pad := make(record.Row, it.innerWidth)
	for i := range pad {
		pad[i] = value.Null()
	}
	return pad
}
