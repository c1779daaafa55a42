// Package quell is an embeddable SQL query core: a SELECT pipeline of
// lexer, parser, planner, optimizer and a pull-based executor over a
// pluggable row store.
package quell

import (
	"log/slog"

	"github.com/quelldb/quell/internal"
	"github.com/quelldb/quell/internal/catalog"
	"github.com/quelldb/quell/internal/plancache"
	"github.com/quelldb/quell/internal/sql/executor"
	"github.com/quelldb/quell/internal/sql/parser"
	"github.com/quelldb/quell/internal/sql/planner"
	"github.com/quelldb/quell/internal/sqlerr"
	"github.com/quelldb/quell/internal/storage"
)

// Store is what an engine runs queries against: a row source plus the
// table metadata the planner resolves names through. memstore.Store
// satisfies both.
type Store interface {
	storage.Engine
	catalog.Catalog
}

type Engine struct {
	store Store
	opt   *planner.Optimizer
	exec  *executor.Executor
	plans *plancache.Cache // nil when disabled
	log   *slog.Logger
}

func NewEngine(store Store, cfg *internal.QuellConfig) *Engine {
	if cfg == nil {
		cfg = internal.DefaultConfig()
	}
	opt := planner.NewOptimizer()
	if cfg.Query.MaxOptimizerPasses > 0 {
		opt.MaxPasses = cfg.Query.MaxOptimizerPasses
	}
	var plans *plancache.Cache
	if cfg.Query.PlanCacheSize > 0 {
		plans = plancache.New(cfg.Query.PlanCacheSize)
	}
	return &Engine{
		store: store,
		opt:   opt,
		exec:  executor.New(store),
		plans: plans,
		log:   slog.Default(),
	}
}

// Query runs one SELECT statement end to end and returns the full result
// set. Errors carry the pipeline stage that produced them.
func (e *Engine) Query(sql string) (*executor.Result, error) {
	plan, err := e.plan(sql)
	if err != nil {
		return nil, err
	}
	result, err := e.exec.Execute(plan)
	if err != nil {
		kind, _ := sqlerr.KindOf(err)
		e.log.Debug("query failed", "stage", kind.String(), "err", err)
		return nil, err
	}
	return result, nil
}

// Explanation carries the three introspection artifacts for one query:
// the parsed statement, the naive plan, and the optimized plan, each in
// its debug dump form.
type Explanation struct {
	AST       string
	Plan      string
	Optimized string
}

// Explain compiles the query without executing it.
func (e *Engine) Explain(sql string) (*Explanation, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	plan, err := planner.BuildPlan(stmt, e.store)
	if err != nil {
		return nil, err
	}
	optimized, err := e.opt.Optimize(plan)
	if err != nil {
		return nil, err
	}
	return &Explanation{
		AST:       stmt.String(),
		Plan:      plan.String(),
		Optimized: optimized.String(),
	}, nil
}

func (e *Engine) plan(sql string) (*planner.Plan, error) {
	if e.plans != nil {
		if plan, ok := e.plans.Get(sql); ok {
			return plan, nil
		}
	}
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	plan, err := planner.BuildPlan(stmt, e.store)
	if err != nil {
		return nil, err
	}
	optimized, err := e.opt.Optimize(plan)
	if err != nil {
		return nil, err
	}
	e.log.Debug("query planned", "plan", planner.Describe(optimized))
	if e.plans != nil {
		e.plans.Put(sql, optimized)
	}
	return optimized, nil
}
