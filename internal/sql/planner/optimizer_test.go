package planner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOptimize(t *testing.T, plan *Plan) *Plan {
	t.Helper()
	out, err := NewOptimizer().Optimize(plan)
	require.NoError(t, err)
	return out
}

func TestOptimize_BareScanPlanUnchanged(t *testing.T) {
	plan := mustPlan(t, "SELECT * FROM movies LIMIT 9223372036854775807")
	before := plan.String()
	optimized := mustOptimize(t, plan)
	assert.Equal(t, before, optimized.String())
	// the input plan is never mutated
	assert.Equal(t, before, plan.String())
}

func TestOptimize_FilterFusesIntoScan(t *testing.T) {
	plan := mustPlan(t,
		"SELECT title FROM movies WHERE rating > 8.0 ORDER BY rating DESC")
	optimized := mustOptimize(t, plan)

	order, ok := optimized.Root.(*Order)
	require.True(t, ok, "want Order at root, got %T", optimized.Root)
	project, ok := order.Source.(*Project)
	require.True(t, ok, "want Project below Order, got %T", order.Source)
	scan, ok := project.Source.(*Scan)
	require.True(t, ok, "want Scan below Project, got %T", project.Source)
	require.NotNil(t, scan.Filter)
	assert.Contains(t, scan.Filter.String(), "Gt")
}

func TestOptimize_FilterConjoinsExistingScanFilter(t *testing.T) {
	// two stacked filters both end up ANDed into the scan
	inner := mustPlan(t, "SELECT * FROM movies WHERE rating > 8.0")
	filtered := &Plan{Root: &Filter{
		Source:    inner.Root,
		Predicate: mustPlan(t, "SELECT * FROM movies WHERE id < 5").Root.(*Filter).Predicate,
	}}
	optimized := mustOptimize(t, filtered)

	scan, ok := optimized.Root.(*Scan)
	require.True(t, ok, "want Scan at root, got %T", optimized.Root)
	require.NotNil(t, scan.Filter)
	assert.Contains(t, scan.Filter.String(), "And")
}

func TestOptimize_ConstantFolding(t *testing.T) {
	plan := mustPlan(t, "SELECT title FROM movies WHERE rating > 4.0 + 4.0")
	optimized := mustOptimize(t, plan)
	dump := optimized.String()
	assert.Contains(t, dump, "Literal(Float(8))")
	assert.NotContains(t, dump, "Add")
}

func TestOptimize_FoldLeavesFailingExprForExecution(t *testing.T) {
	plan := mustPlan(t, "SELECT title FROM movies WHERE id = 1 / 0")
	optimized := mustOptimize(t, plan)
	assert.Contains(t, optimized.String(), "Div")
}

func TestOptimize_LimitBelowProject(t *testing.T) {
	plan := mustPlan(t, "SELECT title FROM movies LIMIT 2 OFFSET 1")
	optimized := mustOptimize(t, plan)

	project, ok := optimized.Root.(*Project)
	require.True(t, ok, "want Project at root, got %T", optimized.Root)
	limit, ok := project.Source.(*Limit)
	require.True(t, ok, "want Limit below Project, got %T", project.Source)
	offset, ok := limit.Source.(*Offset)
	require.True(t, ok)
	_, ok = offset.Source.(*Scan)
	require.True(t, ok)
}

func TestOptimize_LimitStaysAboveOrder(t *testing.T) {
	plan := mustPlan(t, "SELECT title FROM movies ORDER BY title LIMIT 2")
	optimized := mustOptimize(t, plan)
	limit, ok := optimized.Root.(*Limit)
	require.True(t, ok, "want Limit at root, got %T", optimized.Root)
	_, ok = limit.Source.(*Order)
	require.True(t, ok)
}

func TestOptimize_PruneInsertsNarrowProject(t *testing.T) {
	plan := mustPlan(t, "SELECT title, rating * 2 FROM movies")
	optimized := mustOptimize(t, plan)

	outer, ok := optimized.Root.(*Project)
	require.True(t, ok)
	narrow, ok := outer.Source.(*Project)
	require.True(t, ok, "want narrowing Project above Scan, got %T", outer.Source)
	require.Len(t, narrow.Expressions, 2) // title, rating
	_, ok = narrow.Source.(*Scan)
	require.True(t, ok)
}

func TestOptimize_PruneAndLimitPushdownConverge(t *testing.T) {
	// Pruning inserts a narrowing projection above the scan and limit
	// pushdown then sinks Limit/Offset below it. The pruning rule must
	// recognize that chain as already narrow instead of wrapping the scan
	// again on every pass.
	plan := mustPlan(t, "SELECT title, rating * 2 FROM movies LIMIT 2 OFFSET 1")
	optimized := mustOptimize(t, plan)

	assert.Equal(t, 2, strings.Count(optimized.String(), "Project {"))

	outer, ok := optimized.Root.(*Project)
	require.True(t, ok, "want Project at root, got %T", optimized.Root)
	narrow, ok := outer.Source.(*Project)
	require.True(t, ok, "want narrowing Project, got %T", outer.Source)
	require.Len(t, narrow.Expressions, 2) // title, rating
	limit, ok := narrow.Source.(*Limit)
	require.True(t, ok, "want Limit below narrowing Project, got %T", narrow.Source)
	offset, ok := limit.Source.(*Offset)
	require.True(t, ok)
	_, ok = offset.Source.(*Scan)
	require.True(t, ok)
}

func TestOptimize_PruneSkipsPureColumnProject(t *testing.T) {
	plan := mustPlan(t, "SELECT title FROM movies")
	before := plan.String()
	optimized := mustOptimize(t, plan)
	assert.Equal(t, before, optimized.String())
}

func TestOptimize_Idempotent(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM movies LIMIT 9223372036854775807",
		"SELECT title FROM movies WHERE rating > 8.0 ORDER BY rating DESC",
		"SELECT title, rating * 2 FROM movies LIMIT 2 OFFSET 1",
		"SELECT studio_id, COUNT(*) FROM movies GROUP BY studio_id HAVING COUNT(*) > 1",
		"SELECT m.title, s.name FROM movies m JOIN studios s ON m.studio_id = s.id",
	} {
		once := mustOptimize(t, mustPlan(t, sql))
		twice := mustOptimize(t, once)
		assert.Equal(t, once.String(), twice.String(), sql)
	}
}

func TestOptimize_PassCapHonored(t *testing.T) {
	opt := &Optimizer{MaxPasses: 1}
	plan := mustPlan(t, "SELECT title FROM movies WHERE rating > 8.0")
	out, err := opt.Optimize(plan)
	require.NoError(t, err)
	require.NotNil(t, out)
}
