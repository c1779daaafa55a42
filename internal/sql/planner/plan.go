package planner

import (
	"fmt"
	"strings"

	"github.com/quelldb/quell/internal/sql/parser"
)

// Plan wraps exactly one root operator. The tree is single-owner: every
// non-leaf node owns its source(s) completely, no sharing, no cycles.
type Plan struct {
	Root Node
}

// String renders the stable introspection dump, e.g.
// Plan(Limit { source: Scan { table: "movies", alias: None, filter: None }, limit: 9223372036854775807 }).
// Field order and presence (None for absent optionals) are a compatibility
// contract with tooling that diffs these strings.
func (p *Plan) String() string {
	return "Plan(" + p.Root.String() + ")"
}

// Node is a relational operator in a plan tree.
type Node interface {
	planNode()
	String() string
}

// Scan reads a base table, optionally applying a pushed-down filter. It is
// the only operator that performs I/O.
type Scan struct {
	Table  string
	Alias  string
	Filter parser.Expr
}

func (*Scan) planNode() {}

// Filter drops rows whose predicate does not evaluate to true; an Unknown
// (Null) result excludes the row, matching WHERE semantics.
type Filter struct {
	Source    Node
	Predicate parser.Expr
}

func (*Filter) planNode() {}

// ProjectItem is one output column of a Project. Hidden items carry values
// required by upstream operators (typically sort keys not in the select
// list) and are stripped from the final result.
type ProjectItem struct {
	Expr   parser.Expr
	Alias  string
	Hidden bool
}

// Project computes the output expressions for each input row.
type Project struct {
	Source      Node
	Expressions []ProjectItem
}

func (*Project) planNode() {}

// Join combines two sources under inner/left/right/cross semantics.
type Join struct {
	Left      Node
	Right     Node
	Predicate parser.Expr
	Kind      parser.JoinKind
}

func (*Join) planNode() {}

// AggFunc identifies an aggregate function.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (f AggFunc) String() string {
	switch f {
	case AggCount:
		return "Count"
	case AggSum:
		return "Sum"
	case AggAvg:
		return "Avg"
	case AggMin:
		return "Min"
	case AggMax:
		return "Max"
	default:
		return fmt.Sprintf("AggFunc(%d)", int(f))
	}
}

// AggregateExpr is one aggregate computation. A nil Arg means COUNT(*).
type AggregateExpr struct {
	Func AggFunc
	Arg  parser.Expr
}

// Aggregate groups its entire input by the group-by expressions and emits
// one row per group: group values first, aggregate values after.
type Aggregate struct {
	Source     Node
	GroupBy    []parser.Expr
	Aggregates []AggregateExpr
}

func (*Aggregate) planNode() {}

// OrderKey is one sort key.
type OrderKey struct {
	Expr parser.Expr
	Desc bool
}

// Order materializes its entire input and sorts it.
type Order struct {
	Source Node
	Keys   []OrderKey
}

func (*Order) planNode() {}

// Offset skips the first N input rows.
type Offset struct {
	Source Node
	N      int64
}

func (*Offset) planNode() {}

// Limit caps output at N rows. N = MaxInt64 is an effectively-unbounded
// cap; the executor compares counters and never adds to N.
type Limit struct {
	Source Node
	N      int64
}

func (*Limit) planNode() {}

// ----- dumps -----

func (s *Scan) String() string {
	return fmt.Sprintf("Scan { table: %q, alias: %s, filter: %s }",
		s.Table, dumpOptString(s.Alias), dumpOptExpr(s.Filter))
}

func (f *Filter) String() string {
	return fmt.Sprintf("Filter { source: %s, predicate: %s }", f.Source, f.Predicate)
}

func (p *Project) String() string {
	parts := make([]string, len(p.Expressions))
	for i, item := range p.Expressions {
		parts[i] = fmt.Sprintf("(%s, %s)", item.Expr, dumpOptString(item.Alias))
	}
	return fmt.Sprintf("Project { source: %s, expressions: [%s] }",
		p.Source, strings.Join(parts, ", "))
}

func (j *Join) String() string {
	return fmt.Sprintf("Join { left: %s, right: %s, predicate: %s, kind: %s }",
		j.Left, j.Right, dumpOptExpr(j.Predicate), j.Kind)
}

func (a *Aggregate) String() string {
	groups := make([]string, len(a.GroupBy))
	for i, g := range a.GroupBy {
		groups[i] = g.String()
	}
	aggs := make([]string, len(a.Aggregates))
	for i, agg := range a.Aggregates {
		arg := "All"
		if agg.Arg != nil {
			arg = agg.Arg.String()
		}
		aggs[i] = fmt.Sprintf("%s(%s)", agg.Func, arg)
	}
	return fmt.Sprintf("Aggregate { source: %s, group_by: [%s], aggregates: [%s] }",
		a.Source, strings.Join(groups, ", "), strings.Join(aggs, ", "))
}

func (o *Order) String() string {
	keys := make([]string, len(o.Keys))
	for i, k := range o.Keys {
		dir := "Ascending"
		if k.Desc {
			dir = "Descending"
		}
		keys[i] = fmt.Sprintf("(%s, %s)", k.Expr, dir)
	}
	return fmt.Sprintf("Order { source: %s, keys: [%s] }", o.Source, strings.Join(keys, ", "))
}

func (o *Offset) String() string {
	return fmt.Sprintf("Offset { source: %s, offset: %d }", o.Source, o.N)
}

func (l *Limit) String() string {
	return fmt.Sprintf("Limit { source: %s, limit: %d }", l.Source, l.N)
}

func dumpOptExpr(e parser.Expr) string {
	if e == nil {
		return "None"
	}
	return e.String()
}

func dumpOptString(s string) string {
	if s == "" {
		return "None"
	}
	return fmt.Sprintf("Some(%q)", s)
}

// Transform rebuilds the tree bottom-up, applying fn to every node after
// its children have been transformed. Returning the node unchanged keeps
// the original structure, so rules that do not apply are no-ops.
func Transform(n Node, fn func(Node) (Node, error)) (Node, error) {
	switch t := n.(type) {
	case *Scan:
		// leaf
	case *Filter:
		source, err := Transform(t.Source, fn)
		if err != nil {
			return nil, err
		}
		if source != t.Source {
			n = &Filter{Source: source, Predicate: t.Predicate}
		}
	case *Project:
		source, err := Transform(t.Source, fn)
		if err != nil {
			return nil, err
		}
		if source != t.Source {
			n = &Project{Source: source, Expressions: t.Expressions}
		}
	case *Join:
		left, err := Transform(t.Left, fn)
		if err != nil {
			return nil, err
		}
		right, err := Transform(t.Right, fn)
		if err != nil {
			return nil, err
		}
		if left != t.Left || right != t.Right {
			n = &Join{Left: left, Right: right, Predicate: t.Predicate, Kind: t.Kind}
		}
	case *Aggregate:
		source, err := Transform(t.Source, fn)
		if err != nil {
			return nil, err
		}
		if source != t.Source {
			n = &Aggregate{Source: source, GroupBy: t.GroupBy, Aggregates: t.Aggregates}
		}
	case *Order:
		source, err := Transform(t.Source, fn)
		if err != nil {
			return nil, err
		}
		if source != t.Source {
			n = &Order{Source: source, Keys: t.Keys}
		}
	case *Offset:
		source, err := Transform(t.Source, fn)
		if err != nil {
			return nil, err
		}
		if source != t.Source {
			n = &Offset{Source: source, N: t.N}
		}
	case *Limit:
		source, err := Transform(t.Source, fn)
		if err != nil {
			return nil, err
		}
		if source != t.Source {
			n = &Limit{Source: source, N: t.N}
		}
	}
	return fn(n)
}
