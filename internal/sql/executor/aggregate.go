package executor

import (
	"strings"

	"github.com/quelldb/quell/internal/record"
	"github.com/quelldb/quell/internal/sql/expr"
	"github.com/quelldb/quell/internal/sql/parser"
	"github.com/quelldb/quell/internal/sql/planner"
	"github.com/quelldb/quell/internal/sql/value"
	"github.com/quelldb/quell/internal/sqlerr"
)

// aggIter consumes its whole input on the first Next, buckets rows by
// their group-by key values, and emits one output row per group in first-
// seen order. Without GROUP BY a single global group is emitted even for
// empty input: COUNT is 0, the rest are NULL.
type aggIter struct {
	source RowIterator
	in     record.Schema
	out    record.Schema
	node   *planner.Aggregate

	groups []*group
	pos    int
	done   bool
}

type group struct {
	key  []value.Value
	accs []*accumulator
}

func newAggIter(source RowIterator, in record.Schema, node *planner.Aggregate) *aggIter {
	return &aggIter{
		source: source,
		in:     in,
		out:    planner.AggregateSchema(node, in),
		node:   node,
	}
}

func (it *aggIter) Next() (record.Row, error) {
	if !it.done {
		if err := it.consume(); err != nil {
			return nil, err
		}
		it.done = true
	}
	if it.pos >= len(it.groups) {
		return nil, nil
	}
	g := it.groups[it.pos]
	it.pos++

	out := make(record.Row, 0, len(g.key)+len(g.accs))
	out = append(out, g.key...)
	for _, acc := range g.accs {
		out = append(out, acc.result())
	}
	return out, nil
}

func (it *aggIter) consume() error {
	index := make(map[string]*group)
	for {
		row, err := it.source.Next()
		if err != nil {
			return err
		}
		if row == nil {
			break
		}

		key := make([]value.Value, len(it.node.GroupBy))
		for i, g := range it.node.GroupBy {
			v, err := expr.Eval(g, it.in, row)
			if err != nil {
				return err
			}
			key[i] = v
		}

		hash := groupHash(key)
		grp, ok := index[hash]
		if !ok {
			grp = &group{key: key, accs: newAccumulators(it.node.Aggregates)}
			index[hash] = grp
			it.groups = append(it.groups, grp)
		}

		schema, evalRow := it.extend(row, key)
		for _, acc := range grp.accs {
			if err := acc.add(schema, evalRow); err != nil {
				return err
			}
		}
	}

	if len(it.node.GroupBy) == 0 && len(it.groups) == 0 {
		it.groups = append(it.groups, &group{accs: newAccumulators(it.node.Aggregates)})
	}
	return nil
}

// extend appends computed group-key values to the row under their
// synthetic column names (#group0, ...) so rewritten aggregate arguments
// resolve. Plain-column group keys already resolve in the input schema.
func (it *aggIter) extend(row record.Row, key []value.Value) (record.Schema, record.Row) {
	var extraCols []record.Column
	var extraVals []value.Value
	for i, g := range it.node.GroupBy {
		if _, plain := g.(*parser.Column); plain {
			continue
		}
		extraCols = append(extraCols, it.out.Cols[i])
		extraVals = append(extraVals, key[i])
	}
	if len(extraCols) == 0 {
		return it.in, row
	}
	schema := it.in.Join(record.Schema{Cols: extraCols})
	extended := make(record.Row, 0, len(row)+len(extraVals))
	extended = append(extended, row...)
	extended = append(extended, extraVals...)
	return schema, extended
}

// groupHash builds a bucket key from the group values. Null groups with
// Null here, matching grouping semantics rather than comparison
// semantics.
func groupHash(key []value.Value) string {
	var b strings.Builder
	for _, v := range key {
		b.WriteString(v.String())
		b.WriteByte(0)
	}
	return b.String()
}

// accumulator folds one aggregate over the rows of a group. Null
// arguments are skipped by every function.
type accumulator struct {
	agg   planner.AggregateExpr
	rows  int64 // every row, for COUNT(*)
	count int64 // rows with a non-null argument
	sum   value.Value
	min   value.Value
	max   value.Value
}

func newAccumulators(aggs []planner.AggregateExpr) []*accumulator {
	accs := make([]*accumulator, len(aggs))
	for i, agg := range aggs {
		accs[i] = &accumulator{
			agg: agg,
			sum: value.Null(),
			min: value.Null(),
			max: value.Null(),
		}
	}
	return accs
}

func (a *accumulator) add(schema record.Schema, row record.Row) error {
	a.rows++
	if a.agg.Arg == nil {
		return nil
	}
	v, err := expr.Eval(a.agg.Arg, schema, row)
	if err != nil {
		return err
	}
	if v.IsNull() {
		return nil
	}
	a.count++

	switch a.agg.Func {
	case planner.AggCount:
		// Only the non-null count matters.
	case planner.AggSum, planner.AggAvg:
		if a.sum.IsNull() {
			a.sum = v
			return nil
		}
		sum, err := value.Add(a.sum, v)
		if err != nil {
			return sqlerr.Wrap(sqlerr.KindExecution, err)
		}
		a.sum = sum
	case planner.AggMin:
		less, err := compareAgg(v, a.min)
		if err != nil {
			return err
		}
		if a.min.IsNull() || less {
			a.min = v
		}
	case planner.AggMax:
		more, err := compareAgg(a.max, v)
		if err != nil {
			return err
		}
		if a.max.IsNull() || more {
			a.max = v
		}
	}
	return nil
}

// result finalizes the aggregate for one group.
func (a *accumulator) result() value.Value {
	switch a.agg.Func {
	case planner.AggCount:
		if a.agg.Arg == nil {
			return value.Integer(a.rows)
		}
		return value.Integer(a.count)
	case planner.AggSum:
		return a.sum
	case planner.AggMin:
		return a.min
	case planner.AggMax:
		return a.max
	case planner.AggAvg:
		if a.count == 0 {
			return value.Null()
		}
		return value.Float(a.sum.Float() / float64(a.count))
	default:
		return value.Null()
	}
}

// compareAgg reports a < b for MIN/MAX folding; a Null on either side is
// never smaller.
func compareAgg(a, b value.Value) (bool, error) {
	if a.IsNull() || b.IsNull() {
		return false, nil
	}
	ord, err := value.Compare(a, b)
	if err != nil {
		return false, sqlerr.Execution("cannot compare %s against %s in aggregate", a, b)
	}
	return ord == value.Less, nil
}
