package planner

import (
	"github.com/quelldb/quell/internal/sql/expr"
	"github.com/quelldb/quell/internal/sql/parser"
)

// DefaultMaxPasses caps optimizer iterations when a fixed point is slow to
// appear. Plans written by the builder converge in one or two passes.
const DefaultMaxPasses = 10

// Optimizer rewrites a logical plan through a fixed, ordered list of
// equivalence-preserving rules. Every rule is a pure Node -> Node rewrite:
// a rule that cannot apply returns its input unchanged, so optimization is
// idempotent and a second run yields an identical plan.
type Optimizer struct {
	MaxPasses int
}

func NewOptimizer() *Optimizer {
	return &Optimizer{MaxPasses: DefaultMaxPasses}
}

// Optimize rewrites the plan. The input plan is not mutated except for
// shared leaf expressions, which are never rewritten in place; callers may
// keep the unoptimized plan for introspection.
func (o *Optimizer) Optimize(p *Plan) (*Plan, error) {
	root := p.Root
	passes := o.MaxPasses
	if passes <= 0 {
		passes = DefaultMaxPasses
	}
	for i := 0; i < passes; i++ {
		changed := false
		for _, rule := range rules {
			next, ch, err := rule(root)
			if err != nil {
				return nil, err
			}
			root = next
			changed = changed || ch
		}
		if !changed {
			break
		}
	}
	return &Plan{Root: root}, nil
}

type rule func(Node) (Node, bool, error)

// Rule order is fixed; each runs over the whole tree.
var rules = []rule{
	foldConstants,
	pushdownFilters,
	pruneColumns,
	pushdownLimits,
}

// foldConstants evaluates literal-only subexpressions once at plan time.
// Subexpressions whose evaluation fails (division by zero, overflow) are
// left for the executor so the error surfaces at the right stage.
func foldConstants(n Node) (Node, bool, error) {
	changed := false
	fold := func(e parser.Expr) parser.Expr {
		if e == nil {
			return nil
		}
		out, err := expr.Transform(e, func(e parser.Expr) (parser.Expr, error) {
			if _, ok := e.(*parser.Literal); ok {
				return e, nil
			}
			if !expr.IsConstant(e) {
				return e, nil
			}
			v, err := expr.EvalConst(e)
			if err != nil {
				return e, nil
			}
			return &parser.Literal{Value: v}, nil
		})
		if err != nil {
			return e
		}
		if out != e {
			changed = true
		}
		return out
	}

	root, err := Transform(n, func(n Node) (Node, error) {
		switch t := n.(type) {
		case *Scan:
			if filter := fold(t.Filter); filter != t.Filter {
				return &Scan{Table: t.Table, Alias: t.Alias, Filter: filter}, nil
			}
		case *Filter:
			if pred := fold(t.Predicate); pred != t.Predicate {
				return &Filter{Source: t.Source, Predicate: pred}, nil
			}
		case *Project:
			items := make([]ProjectItem, len(t.Expressions))
			itemChanged := false
			for i, item := range t.Expressions {
				out := fold(item.Expr)
				items[i] = ProjectItem{Expr: out, Alias: item.Alias, Hidden: item.Hidden}
				if out != item.Expr {
					itemChanged = true
				}
			}
			if itemChanged {
				return &Project{Source: t.Source, Expressions: items}, nil
			}
		case *Join:
			if pred := fold(t.Predicate); pred != t.Predicate {
				return &Join{Left: t.Left, Right: t.Right, Predicate: pred, Kind: t.Kind}, nil
			}
		case *Order:
			keys := make([]OrderKey, len(t.Keys))
			keyChanged := false
			for i, k := range t.Keys {
				out := fold(k.Expr)
				keys[i] = OrderKey{Expr: out, Desc: k.Desc}
				if out != k.Expr {
					keyChanged = true
				}
			}
			if keyChanged {
				return &Order{Source: t.Source, Keys: keys}, nil
			}
		}
		return n, nil
	})
	return root, changed, err
}

// pushdownFilters moves filters toward the scans that feed them: a Filter
// above an Order swaps below it, a Filter above a pure-column Project
// moves below it, and a Filter directly above a Scan fuses into the scan's
// own filter field.
func pushdownFilters(n Node) (Node, bool, error) {
	changed := false
	root, err := Transform(n, func(n Node) (Node, error) {
		f, ok := n.(*Filter)
		if !ok {
			return n, nil
		}
		switch src := f.Source.(type) {
		case *Scan:
			filter := f.Predicate
			if src.Filter != nil {
				filter = &parser.Binary{Op: parser.OpAnd, Left: src.Filter, Right: filter}
			}
			changed = true
			return &Scan{Table: src.Table, Alias: src.Alias, Filter: filter}, nil

		case *Order:
			changed = true
			return &Order{
				Source: &Filter{Source: src.Source, Predicate: f.Predicate},
				Keys:   src.Keys,
			}, nil

		case *Project:
			pred, ok := remapThroughProject(f.Predicate, src.Expressions)
			if !ok {
				return n, nil
			}
			changed = true
			return &Project{
				Source:      &Filter{Source: src.Source, Predicate: pred},
				Expressions: src.Expressions,
			}, nil
		}
		return n, nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		// Fuse again in case a pushed filter now sits on a scan. The
		// recursion converges on its own, but this invocation still made a
		// change and must say so.
		root, _, err = pushdownFilters(root)
		return root, true, err
	}
	return root, changed, nil
}

// remapThroughProject rewrites a predicate so it can run below a
// projection. Only predicates whose column references map to plain column
// passthroughs qualify; anything referencing a computed column stays put.
func remapThroughProject(pred parser.Expr, items []ProjectItem) (parser.Expr, bool) {
	ok := true
	out, err := expr.Transform(pred, func(e parser.Expr) (parser.Expr, error) {
		c, isCol := e.(*parser.Column)
		if !isCol {
			return e, nil
		}
		for _, item := range items {
			src, isSrcCol := item.Expr.(*parser.Column)
			if !isSrcCol {
				continue
			}
			if item.Alias != "" {
				if c.Table == "" && c.Name == item.Alias {
					return &parser.Column{Table: src.Table, Name: src.Name}, nil
				}
				continue
			}
			if c.Name == src.Name && (c.Table == "" || c.Table == src.Table) {
				return &parser.Column{Table: src.Table, Name: src.Name}, nil
			}
		}
		ok = false
		return e, nil
	})
	if err != nil || !ok {
		return nil, false
	}
	return out, true
}

// colref identifies a required column.
type colref struct {
	table string
	name  string
}

// pruneColumns narrows scan output as early as possible by inserting a
// pure-column projection directly above a scan carrying only the columns
// any ancestor references. SELECT * plans have no projection and are left
// alone, as are subtrees under joins (no schema information to split the
// requirement by side).
func pruneColumns(n Node) (Node, bool, error) {
	changed := false
	root := pruneNode(n, nil, &changed)
	return root, changed, nil
}

// pruneNode rebuilds the subtree given the set of columns required by
// ancestors; a nil required set means "everything" and disables narrowing.
func pruneNode(n Node, required []colref, changed *bool) Node {
	switch t := n.(type) {
	case *Scan:
		if len(required) == 0 {
			return t
		}
		items := make([]ProjectItem, len(required))
		for i, c := range required {
			items[i] = ProjectItem{Expr: &parser.Column{Table: c.table, Name: c.name}}
		}
		*changed = true
		return &Project{Source: t, Expressions: items}

	case *Project:
		// A projection of plain columns already bounds its source; only
		// projections that compute expressions leave the scan wide. Limit
		// and Offset may sit between the projection and the scan after
		// limit pushdown without widening anything.
		if pureColumns(t.Expressions) && narrowsScan(t.Source) {
			return t
		}
		srcRequired := []colref{}
		for _, item := range t.Expressions {
			srcRequired = addExprRefs(srcRequired, item.Expr)
		}
		source := pruneNode(t.Source, srcRequired, changed)
		if source != t.Source {
			return &Project{Source: source, Expressions: t.Expressions}
		}
		return t

	case *Filter:
		req := required
		if req != nil {
			req = addExprRefs(req, t.Predicate)
		}
		source := pruneNode(t.Source, req, changed)
		if source != t.Source {
			return &Filter{Source: source, Predicate: t.Predicate}
		}
		return t

	case *Order:
		req := required
		if req != nil {
			for _, k := range t.Keys {
				req = addExprRefs(req, k.Expr)
			}
		}
		source := pruneNode(t.Source, req, changed)
		if source != t.Source {
			return &Order{Source: source, Keys: t.Keys}
		}
		return t

	case *Offset:
		source := pruneNode(t.Source, required, changed)
		if source != t.Source {
			return &Offset{Source: source, N: t.N}
		}
		return t

	case *Limit:
		source := pruneNode(t.Source, required, changed)
		if source != t.Source {
			return &Limit{Source: source, N: t.N}
		}
		return t

	case *Aggregate:
		srcRequired := []colref{}
		for _, g := range t.GroupBy {
			srcRequired = addExprRefs(srcRequired, g)
		}
		for _, agg := range t.Aggregates {
			if agg.Arg != nil {
				srcRequired = addExprRefs(srcRequired, agg.Arg)
			}
		}
		source := pruneNode(t.Source, srcRequired, changed)
		if source != t.Source {
			return &Aggregate{Source: source, GroupBy: t.GroupBy, Aggregates: t.Aggregates}
		}
		return t

	case *Join:
		left := pruneNode(t.Left, nil, changed)
		right := pruneNode(t.Right, nil, changed)
		if left != t.Left || right != t.Right {
			return &Join{Left: left, Right: right, Predicate: t.Predicate, Kind: t.Kind}
		}
		return t

	default:
		return n
	}
}

// narrowsScan reports whether n is a scan, possibly under Limit/Offset
// nodes. A pure-column projection over such a chain is already the
// narrowing projection and must not be wrapped again.
func narrowsScan(n Node) bool {
	for {
		switch t := n.(type) {
		case *Scan:
			return true
		case *Limit:
			n = t.Source
		case *Offset:
			n = t.Source
		default:
			return false
		}
	}
}

// pureColumns reports whether every projection item is a plain column
// reference.
func pureColumns(items []ProjectItem) bool {
	for _, item := range items {
		if _, ok := item.Expr.(*parser.Column); !ok {
			return false
		}
	}
	return true
}

// addExprRefs appends e's column references to required without
// duplicates. Callers pass a non-nil slice; nil means "everything" and is
// handled before adding.
func addExprRefs(required []colref, e parser.Expr) []colref {
	if e == nil {
		return required
	}
	for _, c := range expr.Columns(e) {
		ref := colref{table: c.Table, name: c.Name}
		dup := false
		for i, existing := range required {
			if existing.name != ref.name {
				continue
			}
			// Qualified and unqualified references to the same column
			// merge into one entry, keeping the qualified form so both
			// reference styles still resolve.
			if existing == ref || ref.table == "" {
				dup = true
				break
			}
			if existing.table == "" {
				required[i] = ref
				dup = true
				break
			}
		}
		if !dup {
			required = append(required, ref)
		}
	}
	return required
}

// pushdownLimits moves Limit and Offset below a Project, where the
// projection work for rows past the cap can be skipped. They never move
// below Order, Filter, Aggregate or Join, which change which rows survive
// or their count.
func pushdownLimits(n Node) (Node, bool, error) {
	changed := false
	root, err := Transform(n, func(n Node) (Node, error) {
		switch t := n.(type) {
		case *Limit:
			if src, ok := t.Source.(*Project); ok {
				changed = true
				return &Project{
					Source:      &Limit{Source: src.Source, N: t.N},
					Expressions: src.Expressions,
				}, nil
			}
		case *Offset:
			if src, ok := t.Source.(*Project); ok {
				changed = true
				return &Project{
					Source:      &Offset{Source: src.Source, N: t.N},
					Expressions: src.Expressions,
				}, nil
			}
		}
		return n, nil
	})
	return root, changed, err
}
