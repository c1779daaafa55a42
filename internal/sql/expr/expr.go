// Package expr evaluates parsed expressions against rows. Both the
// planner (constant folding, reference analysis) and the executor (row
// evaluation) use it.
package expr

import (
	"github.com/quelldb/quell/internal/record"
	"github.com/quelldb/quell/internal/sql/parser"
	"github.com/quelldb/quell/internal/sql/value"
	"github.com/quelldb/quell/internal/sqlerr"
)

// Eval evaluates e against a row positionally aligned to schema. Column
// references resolve by (qualifier, name); a failed resolution here is an
// execution error since the planner validates references up front.
func Eval(e parser.Expr, schema record.Schema, row record.Row) (value.Value, error) {
	switch t := e.(type) {
	case *parser.Literal:
		return t.Value, nil

	case *parser.Column:
		idx, err := schema.Index(t.Table, t.Name)
		if err != nil {
			return value.Null(), sqlerr.Wrap(sqlerr.KindExecution, err)
		}
		return row[idx], nil

	case *parser.Unary:
		operand, err := Eval(t.Operand, schema, row)
		if err != nil {
			return value.Null(), err
		}
		switch t.Op {
		case parser.OpNeg:
			return value.Neg(operand)
		case parser.OpNot:
			return value.Not(operand)
		default:
			return value.Null(), sqlerr.Execution("unknown unary operator %s", t.Op)
		}

	case *parser.Binary:
		left, err := Eval(t.Left, schema, row)
		if err != nil {
			return value.Null(), err
		}
		right, err := Eval(t.Right, schema, row)
		if err != nil {
			return value.Null(), err
		}
		return applyBinary(t.Op, left, right)

	case *parser.IsNull:
		v, err := Eval(t.Expr, schema, row)
		if err != nil {
			return value.Null(), err
		}
		return value.Boolean(v.IsNull() != t.Negate), nil

	case *parser.Call:
		// Aggregates are computed by the Aggregate operator; the planner
		// rewrites their references before execution.
		return value.Null(), sqlerr.Execution("function %s cannot be evaluated per row", t.Name)

	case *parser.All:
		return value.Null(), sqlerr.Execution("* is only valid inside an aggregate call")

	default:
		return value.Null(), sqlerr.Execution("unsupported expression %T", e)
	}
}

func applyBinary(op parser.BinaryOp, left, right value.Value) (value.Value, error) {
	switch op {
	case parser.OpAnd:
		return value.And(left, right)
	case parser.OpOr:
		return value.Or(left, right)
	case parser.OpAdd:
		return value.Add(left, right)
	case parser.OpSub:
		return value.Sub(left, right)
	case parser.OpMul:
		return value.Mul(left, right)
	case parser.OpDiv:
		return value.Div(left, right)
	case parser.OpMod:
		return value.Mod(left, right)
	case parser.OpEq, parser.OpNotEq, parser.OpLt, parser.OpLtEq, parser.OpGt, parser.OpGtEq:
		ord, err := value.Compare(left, right)
		if err != nil {
			return value.Null(), err
		}
		if ord == value.Unknown {
			return value.Null(), nil
		}
		switch op {
		case parser.OpEq:
			return value.Boolean(ord == value.Equal), nil
		case parser.OpNotEq:
			return value.Boolean(ord != value.Equal), nil
		case parser.OpLt:
			return value.Boolean(ord == value.Less), nil
		case parser.OpLtEq:
			return value.Boolean(ord != value.Greater), nil
		case parser.OpGt:
			return value.Boolean(ord == value.Greater), nil
		default: // OpGtEq
			return value.Boolean(ord != value.Less), nil
		}
	default:
		return value.Null(), sqlerr.Execution("unknown binary operator %s", op)
	}
}

// EvalConst evaluates a constant expression (no column references, no
// aggregate calls).
func EvalConst(e parser.Expr) (value.Value, error) {
	return Eval(e, record.Schema{}, nil)
}

// IsConstant reports whether e contains no column references and no
// function calls.
func IsConstant(e parser.Expr) bool {
	constant := true
	Walk(e, func(e parser.Expr) {
		switch e.(type) {
		case *parser.Column, *parser.Call, *parser.All:
			constant = false
		}
	})
	return constant
}

// Columns returns every column reference in e, in first-occurrence order,
// deduplicated.
func Columns(e parser.Expr) []*parser.Column {
	var cols []*parser.Column
	seen := map[[2]string]bool{}
	Walk(e, func(e parser.Expr) {
		if c, ok := e.(*parser.Column); ok {
			key := [2]string{c.Table, c.Name}
			if !seen[key] {
				seen[key] = true
				cols = append(cols, c)
			}
		}
	})
	return cols
}

// Walk visits e and every child expression, depth first.
func Walk(e parser.Expr, visit func(parser.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch t := e.(type) {
	case *parser.Unary:
		Walk(t.Operand, visit)
	case *parser.Binary:
		Walk(t.Left, visit)
		Walk(t.Right, visit)
	case *parser.IsNull:
		Walk(t.Expr, visit)
	case *parser.Call:
		for _, arg := range t.Args {
			Walk(arg, visit)
		}
	}
}

// Transform rebuilds e bottom-up, applying fn to every node. fn returning
// the node unchanged keeps the original structure.
func Transform(e parser.Expr, fn func(parser.Expr) (parser.Expr, error)) (parser.Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch t := e.(type) {
	case *parser.Unary:
		operand, err := Transform(t.Operand, fn)
		if err != nil {
			return nil, err
		}
		if operand != t.Operand {
			e = &parser.Unary{Op: t.Op, Operand: operand}
		}
	case *parser.Binary:
		left, err := Transform(t.Left, fn)
		if err != nil {
			return nil, err
		}
		right, err := Transform(t.Right, fn)
		if err != nil {
			return nil, err
		}
		if left != t.Left || right != t.Right {
			e = &parser.Binary{Op: t.Op, Left: left, Right: right}
		}
	case *parser.IsNull:
		inner, err := Transform(t.Expr, fn)
		if err != nil {
			return nil, err
		}
		if inner != t.Expr {
			e = &parser.IsNull{Expr: inner, Negate: t.Negate}
		}
	case *parser.Call:
		args := make([]parser.Expr, len(t.Args))
		changed := false
		for i, arg := range t.Args {
			out, err := Transform(arg, fn)
			if err != nil {
				return nil, err
			}
			args[i] = out
			if out != arg {
				changed = true
			}
		}
		if changed {
			e = &parser.Call{Name: t.Name, Args: args}
		}
	}
	return fn(e)
}
