package parser

import (
	"fmt"
	"strings"

	"github.com/quelldb/quell/internal/sql/value"
)

// Statement is the root interface for all SQL statements.
type Statement interface {
	stmtNode()
	String() string
}

// SelectStmt is the parsed form of a SELECT statement. It is purely
// syntactic: no names have been resolved against a catalog yet. Absent
// optional clauses are nil, never zero values.
type SelectStmt struct {
	Select  []SelectItem // empty means SELECT *
	From    []FromItem
	Where   Expr
	GroupBy []Expr
	Having  Expr
	Order   []OrderItem
	Offset  Expr
	Limit   Expr
}

func (*SelectStmt) stmtNode() {}

// SelectItem is one select-list entry with an optional alias.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// FromItem is a table reference or a join between two of them.
type FromItem interface {
	fromNode()
	String() string
}

// Table references a base table with an optional alias.
type Table struct {
	Name  string
	Alias string
}

func (*Table) fromNode() {}

// JoinKind selects the join semantics.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinCross
)

func (k JoinKind) String() string {
	switch k {
	case JoinInner:
		return "Inner"
	case JoinLeft:
		return "Left"
	case JoinRight:
		return "Right"
	case JoinCross:
		return "Cross"
	default:
		return fmt.Sprintf("JoinKind(%d)", int(k))
	}
}

// Join combines two from-items with a kind and an optional ON predicate.
type Join struct {
	Left      FromItem
	Right     FromItem
	Kind      JoinKind
	Predicate Expr
}

func (*Join) fromNode() {}

// ----- Expressions -----

// Expr is the recursive expression variant.
type Expr interface {
	exprNode()
	String() string
}

// Literal is a scalar constant.
type Literal struct {
	Value value.Value
}

func (*Literal) exprNode() {}

// Column references a column, optionally qualified by table or alias.
type Column struct {
	Table string
	Name  string
}

func (*Column) exprNode() {}

// All is the * argument of COUNT(*).
type All struct{}

func (*All) exprNode() {}

type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

func (op UnaryOp) String() string {
	switch op {
	case OpNeg:
		return "Neg"
	case OpNot:
		return "Not"
	default:
		return fmt.Sprintf("UnaryOp(%d)", int(op))
	}
}

// Unary applies a prefix operator.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

func (*Unary) exprNode() {}

type BinaryOp int

const (
	OpAnd BinaryOp = iota
	OpOr
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

func (op BinaryOp) String() string {
	switch op {
	case OpAnd:
		return "And"
	case OpOr:
		return "Or"
	case OpEq:
		return "Eq"
	case OpNotEq:
		return "NotEq"
	case OpLt:
		return "Lt"
	case OpLtEq:
		return "LtEq"
	case OpGt:
		return "Gt"
	case OpGtEq:
		return "GtEq"
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpMul:
		return "Mul"
	case OpDiv:
		return "Div"
	case OpMod:
		return "Mod"
	default:
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
}

// Binary applies an infix operator.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*Binary) exprNode() {}

// Call is a function call; only aggregate functions exist today.
type Call struct {
	Name string // lowercased
	Args []Expr
}

func (*Call) exprNode() {}

// IsNull tests a value, short-circuiting three-valued logic.
type IsNull struct {
	Expr   Expr
	Negate bool // IS NOT NULL
}

func (*IsNull) exprNode() {}

// ----- Structured textual dumps -----
//
// The dump strings are the introspection contract: field order and the
// presence of None for absent optionals must stay stable, since tooling
// diffs them.

func (s *SelectStmt) String() string {
	var sb strings.Builder
	sb.WriteString("Select { select: ")
	sb.WriteString(dumpSelectItems(s.Select))
	sb.WriteString(", from: ")
	sb.WriteString(dumpFromItems(s.From))
	sb.WriteString(", where: ")
	sb.WriteString(dumpOptExpr(s.Where))
	sb.WriteString(", group_by: ")
	sb.WriteString(dumpExprs(s.GroupBy))
	sb.WriteString(", having: ")
	sb.WriteString(dumpOptExpr(s.Having))
	sb.WriteString(", order: ")
	sb.WriteString(dumpOrderItems(s.Order))
	sb.WriteString(", offset: ")
	sb.WriteString(dumpOptExpr(s.Offset))
	sb.WriteString(", limit: ")
	sb.WriteString(dumpOptExpr(s.Limit))
	sb.WriteString(" }")
	return sb.String()
}

func (t *Table) String() string {
	return fmt.Sprintf("Table { name: %q, alias: %s }", t.Name, dumpOptString(t.Alias))
}

func (j *Join) String() string {
	return fmt.Sprintf("Join { left: %s, right: %s, kind: %s, predicate: %s }",
		j.Left, j.Right, j.Kind, dumpOptExpr(j.Predicate))
}

func (l *Literal) String() string {
	return fmt.Sprintf("Literal(%s)", l.Value)
}

func (c *Column) String() string {
	return fmt.Sprintf("Column { table: %s, name: %q }", dumpOptString(c.Table), c.Name)
}

func (*All) String() string { return "All" }

func (u *Unary) String() string {
	return fmt.Sprintf("Unary { op: %s, operand: %s }", u.Op, u.Operand)
}

func (b *Binary) String() string {
	return fmt.Sprintf("Binary { op: %s, left: %s, right: %s }", b.Op, b.Left, b.Right)
}

func (c *Call) String() string {
	return fmt.Sprintf("Call { name: %q, args: %s }", c.Name, dumpExprs(c.Args))
}

func (i *IsNull) String() string {
	return fmt.Sprintf("IsNull { expr: %s, negate: %t }", i.Expr, i.Negate)
}

func dumpOptExpr(e Expr) string {
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

func dumpExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func dumpSelectItems(items []SelectItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("(%s, %s)", it.Expr, dumpOptString(it.Alias))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func dumpFromItems(items []FromItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func dumpOrderItems(items []OrderItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		dir := "Ascending"
		if it.Desc {
			dir = "Descending"
		}
		parts[i] = fmt.Sprintf("(%s, %s)", it.Expr, dir)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
