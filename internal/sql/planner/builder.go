package planner

import (
	"fmt"
	"strings"

	"github.com/quelldb/quell/internal/catalog"
	"github.com/quelldb/quell/internal/record"
	"github.com/quelldb/quell/internal/sql/expr"
	"github.com/quelldb/quell/internal/sql/parser"
	"github.com/quelldb/quell/internal/sql/value"
	"github.com/quelldb/quell/internal/sqlerr"
)

// BuildPlan builds the initial logical plan from an AST statement,
// resolving table and column references against the catalog. The operator
// nesting fixes the semantic evaluation order regardless of clause syntax:
// scan/join, filter, aggregate, having, project, order, offset, limit.
func BuildPlan(stmt parser.Statement, cat catalog.Catalog) (*Plan, error) {
	switch s := stmt.(type) {
	case *parser.SelectStmt:
		return buildSelect(s, cat)
	default:
		return nil, sqlerr.Plan("unsupported statement type %T", stmt)
	}
}

func buildSelect(s *parser.SelectStmt, cat catalog.Catalog) (*Plan, error) {
	if len(s.From) == 0 {
		return nil, sqlerr.Plan("missing FROM clause")
	}

	node, schema, err := buildFrom(s.From, cat)
	if err != nil {
		return nil, err
	}

	if s.Where != nil {
		if hasAggregate(s.Where) {
			return nil, sqlerr.Plan("aggregate functions are not allowed in WHERE")
		}
		if err := checkRefs(s.Where, schema); err != nil {
			return nil, err
		}
		node = &Filter{Source: node, Predicate: s.Where}
	}

	selectItems := s.Select
	having := s.Having
	order := s.Order

	if needsAggregate(s) {
		node, schema, selectItems, having, order, err = buildAggregate(s, node, schema)
		if err != nil {
			return nil, err
		}
	} else if s.Having != nil {
		return nil, sqlerr.Plan("HAVING requires GROUP BY or aggregate functions")
	} else {
		for _, item := range selectItems {
			if err := checkScalar(item.Expr, schema); err != nil {
				return nil, err
			}
		}
	}

	if having != nil {
		if err := checkRefs(having, schema); err != nil {
			return nil, err
		}
		node = &Filter{Source: node, Predicate: having}
	}

	var project *Project
	if len(selectItems) > 0 {
		items := make([]ProjectItem, len(selectItems))
		for i, item := range selectItems {
			items[i] = ProjectItem{Expr: item.Expr, Alias: item.Alias}
		}
		project = &Project{Source: node, Expressions: items}
		node = project
		schema = ProjectSchema(items, schema)
	}

	if len(order) > 0 {
		keys := make([]OrderKey, len(order))
		for i, item := range order {
			keys[i] = OrderKey{Expr: item.Expr, Desc: item.Desc}
		}
		if project != nil {
			inSchema, err := hiddenInputSchema(project, cat)
			if err != nil {
				return nil, err
			}
			for _, key := range keys {
				schema, err = addHiddenColumns(project, key.Expr, schema, inSchema)
				if err != nil {
					return nil, err
				}
			}
		} else {
			for _, key := range keys {
				if err := checkRefs(key.Expr, schema); err != nil {
					return nil, err
				}
			}
		}
		node = &Order{Source: node, Keys: keys}
	}

	if s.Offset != nil {
		n, err := constCount(s.Offset, "OFFSET")
		if err != nil {
			return nil, err
		}
		node = &Offset{Source: node, N: n}
	}
	if s.Limit != nil {
		n, err := constCount(s.Limit, "LIMIT")
		if err != nil {
			return nil, err
		}
		node = &Limit{Source: node, N: n}
	}

	return &Plan{Root: node}, nil
}

// buildFrom builds a scan or join tree for the FROM clause. Multiple
// comma-separated items become a left-deep chain of cross joins.
func buildFrom(items []parser.FromItem, cat catalog.Catalog) (Node, record.Schema, error) {
	node, schema, err := buildFromItem(items[0], cat)
	if err != nil {
		return nil, record.Schema{}, err
	}
	for _, item := range items[1:] {
		right, rightSchema, err := buildFromItem(item, cat)
		if err != nil {
			return nil, record.Schema{}, err
		}
		node = &Join{Left: node, Right: right, Kind: parser.JoinCross}
		schema = schema.Join(rightSchema)
	}
	return node, schema, nil
}

func buildFromItem(item parser.FromItem, cat catalog.Catalog) (Node, record.Schema, error) {
	switch t := item.(type) {
	case *parser.Table:
		meta, err := cat.Table(t.Name)
		if err != nil {
			return nil, record.Schema{}, sqlerr.Plan("unknown table %s", t.Name)
		}
		scan := &Scan{Table: t.Name, Alias: t.Alias}
		return scan, ScanSchema(scan, meta.Schema), nil

	case *parser.Join:
		left, leftSchema, err := buildFromItem(t.Left, cat)
		if err != nil {
			return nil, record.Schema{}, err
		}
		right, rightSchema, err := buildFromItem(t.Right, cat)
		if err != nil {
			return nil, record.Schema{}, err
		}
		schema := leftSchema.Join(rightSchema)
		if t.Predicate != nil {
			if err := checkRefs(t.Predicate, schema); err != nil {
				return nil, record.Schema{}, err
			}
		}
		join := &Join{Left: left, Right: right, Predicate: t.Predicate, Kind: t.Kind}
		return join, schema, nil

	default:
		return nil, record.Schema{}, sqlerr.Plan("unsupported FROM item %T", item)
	}
}

// needsAggregate reports whether the statement requires an Aggregate
// operator: an explicit GROUP BY, or aggregate calls in the select list,
// HAVING or ORDER BY.
func needsAggregate(s *parser.SelectStmt) bool {
	if len(s.GroupBy) > 0 {
		return true
	}
	for _, item := range s.Select {
		if hasAggregate(item.Expr) {
			return true
		}
	}
	if s.Having != nil && hasAggregate(s.Having) {
		return true
	}
	for _, item := range s.Order {
		if hasAggregate(item.Expr) {
			return true
		}
	}
	return false
}

var aggFuncs = map[string]AggFunc{
	"count": AggCount,
	"sum":   AggSum,
	"avg":   AggAvg,
	"min":   AggMin,
	"max":   AggMax,
}

func hasAggregate(e parser.Expr) bool {
	found := false
	expr.Walk(e, func(e parser.Expr) {
		if c, ok := e.(*parser.Call); ok {
			if _, ok := aggFuncs[c.Name]; ok {
				found = true
			}
		}
	})
	return found
}

// aggContext collects aggregate calls and group-by keys while rewriting
// the post-aggregate expressions to reference the Aggregate operator's
// output columns (#agg0, #agg1, ... for aggregates; group columns keep
// their names).
type aggContext struct {
	groupBy    []parser.Expr
	groupNames []parser.Column
	aggregates []AggregateExpr
	aggKeys    []string // dump strings, for dedup
	inSchema   record.Schema
}

func buildAggregate(
	s *parser.SelectStmt, source Node, schema record.Schema,
) (Node, record.Schema, []parser.SelectItem, parser.Expr, []parser.OrderItem, error) {
	if len(s.Select) == 0 {
		return nil, record.Schema{}, nil, nil, nil, sqlerr.Plan("SELECT * cannot be used with GROUP BY or aggregates")
	}

	ctx := &aggContext{inSchema: schema}
	for i, g := range s.GroupBy {
		if hasAggregate(g) {
			return nil, record.Schema{}, nil, nil, nil, sqlerr.Plan("aggregate functions are not allowed in GROUP BY")
		}
		if err := checkRefs(g, schema); err != nil {
			return nil, record.Schema{}, nil, nil, nil, err
		}
		ctx.groupBy = append(ctx.groupBy, g)
		if c, ok := g.(*parser.Column); ok {
			ctx.groupNames = append(ctx.groupNames, parser.Column{Table: c.Table, Name: c.Name})
		} else {
			ctx.groupNames = append(ctx.groupNames, parser.Column{Name: fmt.Sprintf("#group%d", i)})
		}
	}

	rewritten := make([]parser.SelectItem, len(s.Select))
	for i, item := range s.Select {
		out, err := ctx.rewrite(item.Expr)
		if err != nil {
			return nil, record.Schema{}, nil, nil, nil, err
		}
		rewritten[i] = parser.SelectItem{Expr: out, Alias: item.Alias}
	}

	var having parser.Expr
	if s.Having != nil {
		out, err := ctx.rewrite(s.Having)
		if err != nil {
			return nil, record.Schema{}, nil, nil, nil, err
		}
		having = out
	}

	order := make([]parser.OrderItem, len(s.Order))
	for i, item := range s.Order {
		out, err := ctx.rewrite(item.Expr)
		if err != nil {
			return nil, record.Schema{}, nil, nil, nil, err
		}
		order[i] = parser.OrderItem{Expr: out, Desc: item.Desc}
	}

	agg := &Aggregate{Source: source, GroupBy: ctx.groupBy, Aggregates: ctx.aggregates}
	outSchema := AggregateSchema(agg, schema)

	// Every remaining column reference must resolve to a group key or an
	// aggregate output.
	for _, item := range rewritten {
		if err := checkGrouped(item.Expr, outSchema); err != nil {
			return nil, record.Schema{}, nil, nil, nil, err
		}
	}
	if having != nil {
		if err := checkGrouped(having, outSchema); err != nil {
			return nil, record.Schema{}, nil, nil, nil, err
		}
	}
	for _, item := range order {
		if err := checkGrouped(item.Expr, outSchema); err != nil {
			return nil, record.Schema{}, nil, nil, nil, err
		}
	}

	return agg, outSchema, rewritten, having, order, nil
}

// rewrite replaces aggregate calls and group-by expressions with column
// references into the Aggregate operator's output.
func (ctx *aggContext) rewrite(e parser.Expr) (parser.Expr, error) {
	// Nesting must be checked on the original expression: the bottom-up
	// transform below replaces inner calls before the outer call is seen.
	if err := checkNotNested(e); err != nil {
		return nil, err
	}
	return expr.Transform(e, func(e parser.Expr) (parser.Expr, error) {
		// A subexpression structurally equal to a group-by key reads the
		// group column.
		dump := e.String()
		for i, g := range ctx.groupBy {
			if g.String() == dump {
				name := ctx.groupNames[i]
				return &parser.Column{Table: name.Table, Name: name.Name}, nil
			}
		}

		call, ok := e.(*parser.Call)
		if !ok {
			return e, nil
		}
		fn, ok := aggFuncs[call.Name]
		if !ok {
			return nil, sqlerr.Plan("unknown function %s", call.Name)
		}
		if len(call.Args) != 1 {
			return nil, sqlerr.Plan("%s takes exactly one argument", call.Name)
		}

		var arg parser.Expr
		if _, isAll := call.Args[0].(*parser.All); isAll {
			if fn != AggCount {
				return nil, sqlerr.Plan("%s(*) is not supported", call.Name)
			}
		} else {
			arg = call.Args[0]
			// The argument was already rewritten bottom-up; group-column
			// references are fine, anything else must resolve in the
			// pre-aggregate schema.
			if err := checkAggArg(arg, ctx.inSchema, ctx.groupNames); err != nil {
				return nil, err
			}
		}

		agg := AggregateExpr{Func: fn, Arg: arg}
		key := fmt.Sprintf("%s(%s)", agg.Func, dumpArg(arg))
		for i, existing := range ctx.aggKeys {
			if existing == key {
				return &parser.Column{Name: fmt.Sprintf("#agg%d", i)}, nil
			}
		}
		ctx.aggregates = append(ctx.aggregates, agg)
		ctx.aggKeys = append(ctx.aggKeys, key)
		return &parser.Column{Name: fmt.Sprintf("#agg%d", len(ctx.aggregates)-1)}, nil
	})
}

// checkNotNested rejects an aggregate call anywhere inside another
// aggregate call's arguments.
func checkNotNested(e parser.Expr) error {
	var bad error
	expr.Walk(e, func(n parser.Expr) {
		c, ok := n.(*parser.Call)
		if !ok || bad != nil {
			return
		}
		if _, isAgg := aggFuncs[c.Name]; !isAgg {
			return
		}
		for _, arg := range c.Args {
			if hasAggregate(arg) {
				bad = sqlerr.Plan("aggregate functions cannot be nested")
			}
		}
	})
	return bad
}

func dumpArg(e parser.Expr) string {
	if e == nil {
		return "All"
	}
	return e.String()
}

// checkAggArg validates an aggregate argument against the pre-aggregate
// schema. Group-column references that were substituted during the
// bottom-up rewrite are translated back for validation.
func checkAggArg(arg parser.Expr, schema record.Schema, groupNames []parser.Column) error {
	for _, c := range expr.Columns(arg) {
		if _, err := schema.Index(c.Table, c.Name); err == nil {
			continue
		}
		ok := false
		for _, g := range groupNames {
			if g.Table == c.Table && g.Name == c.Name {
				ok = true
				break
			}
		}
		if !ok {
			return sqlerr.Plan("unknown column %s", columnName(c))
		}
	}
	return nil
}

// checkGrouped validates a rewritten post-aggregate expression: every
// column must be a group key or an aggregate output.
func checkGrouped(e parser.Expr, aggSchema record.Schema) error {
	for _, c := range expr.Columns(e) {
		if _, err := aggSchema.Index(c.Table, c.Name); err != nil {
			return sqlerr.Plan("column %s must appear in the GROUP BY clause or be used in an aggregate function",
				columnName(c))
		}
	}
	return nil
}

// checkRefs validates that every column reference in e resolves against
// the schema.
func checkRefs(e parser.Expr, schema record.Schema) error {
	for _, c := range expr.Columns(e) {
		if _, err := schema.Index(c.Table, c.Name); err != nil {
			return sqlerr.Plan("%s", err)
		}
	}
	return nil
}

// checkScalar additionally rejects function calls in plain (non-aggregate)
// expressions.
func checkScalar(e parser.Expr, schema record.Schema) error {
	if err := checkRefs(e, schema); err != nil {
		return err
	}
	var bad error
	expr.Walk(e, func(e parser.Expr) {
		if c, ok := e.(*parser.Call); ok && bad == nil {
			bad = sqlerr.Plan("unknown function %s", c.Name)
		}
	})
	return bad
}

func columnName(c *parser.Column) string {
	if c.Table != "" {
		return c.Table + "." + c.Name
	}
	return c.Name
}

// constCount folds a LIMIT/OFFSET expression to a non-negative integer at
// plan time.
func constCount(e parser.Expr, clause string) (int64, error) {
	if !expr.IsConstant(e) {
		return 0, sqlerr.Plan("%s must be a constant expression", clause)
	}
	v, err := expr.EvalConst(e)
	if err != nil {
		return 0, sqlerr.Plan("invalid %s expression: %s", clause, err)
	}
	if v.Kind() != value.KindInteger {
		return 0, sqlerr.Plan("%s must be an integer, got %s", clause, v.Kind())
	}
	if v.Int() < 0 {
		return 0, sqlerr.Plan("%s cannot be negative", clause)
	}
	return v.Int(), nil
}

// hiddenInputSchema recomputes the schema feeding a Project so order keys
// can fall back to pre-projection columns.
func hiddenInputSchema(project *Project, cat catalog.Catalog) (record.Schema, error) {
	return NodeSchema(project.Source, func(table string) (record.Schema, error) {
		meta, err := cat.Table(table)
		if err != nil {
			return record.Schema{}, sqlerr.Plan("unknown table %s", table)
		}
		return meta.Schema, nil
	})
}

// addHiddenColumns resolves an order key against the projected schema,
// appending hidden projection items for columns only available before the
// projection. Hidden columns flow to the top of the plan and are stripped
// from the final result.
func addHiddenColumns(
	project *Project, key parser.Expr, outSchema, inSchema record.Schema,
) (record.Schema, error) {
	for _, c := range expr.Columns(key) {
		if _, err := outSchema.Index(c.Table, c.Name); err == nil {
			continue
		}
		if _, err := inSchema.Index(c.Table, c.Name); err != nil {
			return record.Schema{}, sqlerr.Plan("%s", err)
		}
		project.Expressions = append(project.Expressions, ProjectItem{
			Expr:   &parser.Column{Table: c.Table, Name: c.Name},
			Hidden: true,
		})
		outSchema = ProjectSchema(project.Expressions, inSchema)
	}
	return outSchema, nil
}

// ----- schema derivation -----
//
// These rules are shared with the executor so plan-time validation and
// run-time resolution can never disagree.

// ScanSchema qualifies a base table schema by the scan's visible name.
func ScanSchema(scan *Scan, base record.Schema) record.Schema {
	qualifier := scan.Table
	if scan.Alias != "" {
		qualifier = scan.Alias
	}
	return base.Qualify(qualifier)
}

// ProjectSchema derives the output schema of a projection.
func ProjectSchema(items []ProjectItem, in record.Schema) record.Schema {
	cols := make([]record.Column, len(items))
	for i, item := range items {
		col := record.Column{Hidden: item.Hidden}
		switch t := item.Expr.(type) {
		case *parser.Column:
			if idx, err := in.Index(t.Table, t.Name); err == nil {
				col.Type = in.Cols[idx].Type
				col.Nullable = in.Cols[idx].Nullable
			}
			col.Table = t.Table
			col.Name = t.Name
		case *parser.Literal:
			col.Type = record.TypeOf(t.Value)
			col.Nullable = t.Value.IsNull()
			col.Name = "?column?"
		default:
			col.Type = record.ColText
			col.Nullable = true
			col.Name = "?column?"
		}
		if item.Alias != "" {
			col.Table = ""
			col.Name = item.Alias
		}
		cols[i] = col
	}
	return record.Schema{Cols: cols}
}

// AggregateSchema derives the output schema of an aggregation: group
// columns first, aggregate outputs (#agg0, ...) after.
func AggregateSchema(a *Aggregate, in record.Schema) record.Schema {
	var cols []record.Column
	for i, g := range a.GroupBy {
		col := record.Column{Nullable: true}
		if c, ok := g.(*parser.Column); ok {
			if idx, err := in.Index(c.Table, c.Name); err == nil {
				col.Type = in.Cols[idx].Type
				col.Nullable = in.Cols[idx].Nullable
			}
			col.Table = c.Table
			col.Name = c.Name
		} else {
			col.Type = record.ColText
			col.Name = fmt.Sprintf("#group%d", i)
		}
		cols = append(cols, col)
	}
	for i, agg := range a.Aggregates {
		col := record.Column{Name: fmt.Sprintf("#agg%d", i), Nullable: true}
		switch agg.Func {
		case AggCount:
			col.Type = record.ColInt64
			col.Nullable = false
		case AggAvg:
			col.Type = record.ColFloat64
		default:
			col.Type = record.ColFloat64
			if c, ok := agg.Arg.(*parser.Column); ok {
				if idx, err := in.Index(c.Table, c.Name); err == nil {
					col.Type = in.Cols[idx].Type
				}
			}
		}
		cols = append(cols, col)
	}
	return record.Schema{Cols: cols}
}

// NodeSchema derives the output schema of any plan node, pulling base
// table schemas through lookup.
func NodeSchema(n Node, lookup func(table string) (record.Schema, error)) (record.Schema, error) {
	switch t := n.(type) {
	case *Scan:
		base, err := lookup(t.Table)
		if err != nil {
			return record.Schema{}, err
		}
		return ScanSchema(t, base), nil
	case *Filter:
		return NodeSchema(t.Source, lookup)
	case *Project:
		in, err := NodeSchema(t.Source, lookup)
		if err != nil {
			return record.Schema{}, err
		}
		return ProjectSchema(t.Expressions, in), nil
	case *Join:
		left, err := NodeSchema(t.Left, lookup)
		if err != nil {
			return record.Schema{}, err
		}
		right, err := NodeSchema(t.Right, lookup)
		if err != nil {
			return record.Schema{}, err
		}
		return left.Join(right), nil
	case *Aggregate:
		in, err := NodeSchema(t.Source, lookup)
		if err != nil {
			return record.Schema{}, err
		}
		return AggregateSchema(t, in), nil
	case *Order:
		return NodeSchema(t.Source, lookup)
	case *Offset:
		return NodeSchema(t.Source, lookup)
	case *Limit:
		return NodeSchema(t.Source, lookup)
	default:
		return record.Schema{}, sqlerr.Plan("unsupported plan node %T", n)
	}
}

// Describe renders a one-line summary of the plan shape for logs, e.g.
// Limit/Offset/Order/Project/Scan.
func Describe(p *Plan) string {
	var names []string
	for n := p.Root; n != nil; {
		switch t := n.(type) {
		case *Scan:
			names = append(names, "Scan")
			n = nil
		case *Filter:
			names = append(names, "Filter")
			n = t.Source
		case *Project:
			names = append(names, "Project")
			n = t.Source
		case *Join:
			names = append(names, "Join")
			n = nil
		case *Aggregate:
			names = append(names, "Aggregate")
			n = t.Source
		case *Order:
			names = append(names, "Order")
			n = t.Source
		case *Offset:
			names = append(names, "Offset")
			n = t.Source
		case *Limit:
			names = append(names, "Limit")
			n = t.Source
		default:
			n = nil
		}
	}
	return strings.Join(names, "/")
}
