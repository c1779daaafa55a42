package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quelldb/quell/internal/record"
	"github.com/quelldb/quell/internal/sql/parser"
	"github.com/quelldb/quell/internal/storage/memstore"
)

func testCatalog(t *testing.T) *memstore.Store {
	t.Helper()
	store := memstore.New()
	require.NoError(t, store.CreateTable("movies", record.Schema{Cols: []record.Column{
		{Name: "id", Type: record.ColInt64},
		{Name: "title", Type: record.ColText},
		{Name: "studio_id", Type: record.ColInt64},
		{Name: "rating", Type: record.ColFloat64, Nullable: true},
	}}))
	require.NoError(t, store.CreateTable("studios", record.Schema{Cols: []record.Column{
		{Name: "id", Type: record.ColInt64},
		{Name: "name", Type: record.ColText},
	}}))
	return store
}

func mustPlan(t *testing.T, sql string) *Plan {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	plan, err := BuildPlan(stmt, testCatalog(t))
	require.NoError(t, err)
	return plan
}

func planErr(t *testing.T, sql string) error {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	_, err = BuildPlan(stmt, testCatalog(t))
	require.Error(t, err)
	return err
}

func TestBuildPlan_SelectStarLimitDump(t *testing.T) {
	plan := mustPlan(t, "SELECT * FROM movies LIMIT 9223372036854775807")
	assert.Equal(t,
		`Plan(Limit { source: Scan { table: "movies", alias: None, filter: None }, `+
			`limit: 9223372036854775807 })`,
		plan.String())
}

func TestBuildPlan_SelectStarHasNoProject(t *testing.T) {
	plan := mustPlan(t, "SELECT * FROM movies")
	_, ok := plan.Root.(*Scan)
	assert.True(t, ok, "want bare Scan, got %T", plan.Root)
}

func TestBuildPlan_OperatorNesting(t *testing.T) {
	plan := mustPlan(t,
		"SELECT title FROM movies WHERE rating > 8.0 ORDER BY rating DESC")

	order, ok := plan.Root.(*Order)
	require.True(t, ok, "want Order at root, got %T", plan.Root)
	project, ok := order.Source.(*Project)
	require.True(t, ok, "want Project below Order, got %T", order.Source)
	filter, ok := project.Source.(*Filter)
	require.True(t, ok, "want Filter below Project, got %T", project.Source)
	_, ok = filter.Source.(*Scan)
	require.True(t, ok)

	// the sort key is not in the select list, so the projection carries it
	// as a hidden output
	require.Len(t, project.Expressions, 2)
	assert.False(t, project.Expressions[0].Hidden)
	assert.True(t, project.Expressions[1].Hidden)
}

func TestBuildPlan_OffsetBelowLimit(t *testing.T) {
	plan := mustPlan(t, "SELECT title FROM movies LIMIT 2 OFFSET 3")
	limit, ok := plan.Root.(*Limit)
	require.True(t, ok)
	assert.Equal(t, int64(2), limit.N)
	offset, ok := limit.Source.(*Offset)
	require.True(t, ok)
	assert.Equal(t, int64(3), offset.N)
}

func TestBuildPlan_LimitFoldsConstantExpr(t *testing.T) {
	plan := mustPlan(t, "SELECT title FROM movies LIMIT 1 + 2")
	limit := plan.Root.(*Limit)
	assert.Equal(t, int64(3), limit.N)
}

func TestBuildPlan_LimitRejectsNegativeAndNonConst(t *testing.T) {
	err := planErr(t, "SELECT title FROM movies LIMIT -1")
	assert.Contains(t, err.Error(), "cannot be negative")

	err = planErr(t, "SELECT title FROM movies LIMIT rating")
	assert.Contains(t, err.Error(), "constant")

	err = planErr(t, "SELECT title FROM movies LIMIT 1.5")
	assert.Contains(t, err.Error(), "integer")
}

func TestBuildPlan_MissingFrom(t *testing.T) {
	err := planErr(t, "SELECT 1")
	assert.Contains(t, err.Error(), "missing FROM")
}

func TestBuildPlan_UnknownTable(t *testing.T) {
	err := planErr(t, "SELECT * FROM nope")
	assert.Contains(t, err.Error(), "unknown table nope")
}

func TestBuildPlan_UnknownColumn(t *testing.T) {
	err := planErr(t, "SELECT nope FROM movies")
	assert.Contains(t, err.Error(), "nope")
}

func TestBuildPlan_AmbiguousColumn(t *testing.T) {
	err := planErr(t, "SELECT id FROM movies, studios")
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestBuildPlan_AliasHidesTableName(t *testing.T) {
	err := planErr(t, "SELECT movies.title FROM movies m")
	assert.Contains(t, err.Error(), "movies.title")

	plan := mustPlan(t, "SELECT m.title FROM movies m")
	project := plan.Root.(*Project)
	scan := project.Source.(*Scan)
	assert.Equal(t, "m", scan.Alias)
}

func TestBuildPlan_CommaFromIsCrossJoin(t *testing.T) {
	plan := mustPlan(t, "SELECT movies.title, studios.name FROM movies, studios")
	project := plan.Root.(*Project)
	join, ok := project.Source.(*Join)
	require.True(t, ok)
	assert.Equal(t, parser.JoinCross, join.Kind)
	assert.Nil(t, join.Predicate)
}

func TestBuildPlan_JoinPredicateResolvesBothSides(t *testing.T) {
	plan := mustPlan(t,
		"SELECT title FROM movies m JOIN studios s ON m.studio_id = s.id")
	project := plan.Root.(*Project)
	join := project.Source.(*Join)
	require.NotNil(t, join.Predicate)

	err := planErr(t,
		"SELECT title FROM movies m JOIN studios s ON m.studio_id = x.id")
	assert.Contains(t, err.Error(), "x.id")
}

func TestBuildPlan_WhereRejectsAggregates(t *testing.T) {
	err := planErr(t, "SELECT title FROM movies WHERE COUNT(*) > 1")
	assert.Contains(t, err.Error(), "WHERE")
}

func TestBuildPlan_HavingRequiresAggregation(t *testing.T) {
	err := planErr(t, "SELECT title FROM movies HAVING rating > 1")
	assert.Contains(t, err.Error(), "HAVING")
}

func TestBuildPlan_GroupByRejectsUngroupedColumn(t *testing.T) {
	err := planErr(t, "SELECT title, COUNT(*) FROM movies GROUP BY studio_id")
	assert.Contains(t, err.Error(), "GROUP BY clause")
}

func TestBuildPlan_GroupByRejectsAggregate(t *testing.T) {
	err := planErr(t, "SELECT studio_id FROM movies GROUP BY COUNT(*)")
	assert.Contains(t, err.Error(), "GROUP BY")
}

func TestBuildPlan_NestedAggregateRejected(t *testing.T) {
	err := planErr(t, "SELECT SUM(COUNT(*)) FROM movies")
	assert.Contains(t, err.Error(), "nested")
}

func TestBuildPlan_SelectStarWithGroupByRejected(t *testing.T) {
	err := planErr(t, "SELECT * FROM movies GROUP BY studio_id")
	assert.Contains(t, err.Error(), "SELECT *")
}

func TestBuildPlan_UnknownFunction(t *testing.T) {
	err := planErr(t, "SELECT upper(title) FROM movies")
	assert.Contains(t, err.Error(), "unknown function upper")
}

func TestBuildPlan_AggregateRewrite(t *testing.T) {
	plan := mustPlan(t,
		"SELECT studio_id, COUNT(*), AVG(rating) FROM movies GROUP BY studio_id HAVING COUNT(*) > 1")

	// Filter(having) above Aggregate, Project on top
	project, ok := plan.Root.(*Project)
	require.True(t, ok, "want Project at root, got %T", plan.Root)
	filter, ok := project.Source.(*Filter)
	require.True(t, ok, "want having Filter, got %T", project.Source)
	agg, ok := filter.Source.(*Aggregate)
	require.True(t, ok)

	require.Len(t, agg.GroupBy, 1)
	require.Len(t, agg.Aggregates, 2)
	assert.Equal(t, AggCount, agg.Aggregates[0].Func)
	assert.Nil(t, agg.Aggregates[0].Arg)
	assert.Equal(t, AggAvg, agg.Aggregates[1].Func)

	// select list references the aggregate outputs by synthetic name
	col, ok := project.Expressions[1].Expr.(*parser.Column)
	require.True(t, ok)
	assert.Equal(t, "#agg0", col.Name)

	// duplicate COUNT(*) in HAVING reuses the same output column
	pred, ok := filter.Predicate.(*parser.Binary)
	require.True(t, ok)
	havingCol, ok := pred.Left.(*parser.Column)
	require.True(t, ok)
	assert.Equal(t, "#agg0", havingCol.Name)
}

func TestBuildPlan_GroupByExpression(t *testing.T) {
	plan := mustPlan(t,
		"SELECT studio_id * 2, COUNT(*) FROM movies GROUP BY studio_id * 2")
	project := plan.Root.(*Project)
	agg := project.Source.(*Aggregate)
	require.Len(t, agg.GroupBy, 1)

	// the select item was rewritten to read the computed group column
	col, ok := project.Expressions[0].Expr.(*parser.Column)
	require.True(t, ok)
	assert.Equal(t, "#group0", col.Name)
}

func TestBuildPlan_OrderByAggregate(t *testing.T) {
	plan := mustPlan(t,
		"SELECT studio_id FROM movies GROUP BY studio_id ORDER BY COUNT(*) DESC")
	order, ok := plan.Root.(*Order)
	require.True(t, ok)
	col, ok := order.Keys[0].Expr.(*parser.Column)
	require.True(t, ok)
	assert.Equal(t, "#agg0", col.Name)
}

func TestProjectSchema_ComputedColumnName(t *testing.T) {
	plan := mustPlan(t, "SELECT rating * 2, rating * 2 AS doubled FROM movies")
	schema, err := NodeSchema(plan.Root, func(string) (record.Schema, error) {
		return record.Schema{Cols: []record.Column{
			{Name: "rating", Type: record.ColFloat64, Nullable: true},
		}}, nil
	})
	require.NoError(t, err)
	require.Len(t, schema.Cols, 2)
	assert.Equal(t, "?column?", schema.Cols[0].Name)
	assert.Equal(t, "doubled", schema.Cols[1].Name)
}

func TestDescribe(t *testing.T) {
	plan := mustPlan(t,
		"SELECT title FROM movies WHERE rating > 8.0 ORDER BY rating DESC LIMIT 3")
	assert.Equal(t, "Limit/Order/Project/Filter/Scan", Describe(plan))
}
