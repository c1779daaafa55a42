// Package value implements the scalar type system: a tagged union of
// Null, Boolean, Integer, Float and String with SQL three-valued logic.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/quelldb/quell/internal/sqlerr"
)

// Kind tags a Value variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBoolean:
		return "Boolean"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a scalar. The zero value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

func Null() Value              { return Value{} }
func Boolean(b bool) Value     { return Value{kind: KindBoolean, b: b} }
func Integer(i int64) Value    { return Value{kind: KindInteger, i: i} }
func Float(f float64) Value    { return Value{kind: KindFloat, f: f} }
func String(s string) Value    { return Value{kind: KindString, s: s} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) Bool() bool    { return v.b }
func (v Value) Int() int64    { return v.i }
func (v Value) Float() float64 {
	if v.kind == KindInteger {
		return float64(v.i)
	}
	return v.f
}
func (v Value) Str() string { return v.s }

func (v Value) isNumeric() bool { return v.kind == KindInteger || v.kind == KindFloat }

// String renders the stable textual form: Integer(1), Float(8.2),
// String("x"), Boolean(true), and a bare Null.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "Null"
	case KindBoolean:
		return fmt.Sprintf("Boolean(%t)", v.b)
	case KindInteger:
		return fmt.Sprintf("Integer(%d)", v.i)
	case KindFloat:
		return "Float(" + strconv.FormatFloat(v.f, 'g', -1, 64) + ")"
	case KindString:
		return fmt.Sprintf("String(%q)", v.s)
	default:
		return fmt.Sprintf("Value(%d)", uint8(v.kind))
	}
}

// Ordering is the result of a comparison. Unknown means at least one
// operand was Null.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
	Unknown Ordering = 2
)

// Compare orders two values. Integer and Float compare numerically, not by
// variant tag. Comparing incompatible variants (e.g. Boolean vs String) is
// an execution error.
func Compare(a, b Value) (Ordering, error) {
	if a.IsNull() || b.IsNull() {
		return Unknown, nil
	}
	if a.isNumeric() && b.isNumeric() {
		if a.kind == KindInteger && b.kind == KindInteger {
			return orderInt(a.i, b.i), nil
		}
		return orderFloat(a.Float(), b.Float()), nil
	}
	if a.kind != b.kind {
		return Unknown, sqlerr.Execution("cannot compare %s and %s", a.kind, b.kind)
	}
	switch a.kind {
	case KindBoolean:
		if a.b == b.b {
			return Equal, nil
		}
		if !a.b {
			return Less, nil
		}
		return Greater, nil
	case KindString:
		return Ordering(strings.Compare(a.s, b.s)), nil
	default:
		return Unknown, sqlerr.Execution("cannot compare %s values", a.kind)
	}
}

func orderInt(a, b int64) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func orderFloat(a, b float64) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

// Add returns a+b with numeric coercion and Null propagation. Integer
// overflow is an error, not a wraparound.
func Add(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if !a.isNumeric() || !b.isNumeric() {
		return Null(), sqlerr.Execution("cannot add %s and %s", a.kind, b.kind)
	}
	if a.kind == KindInteger && b.kind == KindInteger {
		sum := a.i + b.i
		if (a.i > 0 && b.i > 0 && sum < 0) || (a.i < 0 && b.i < 0 && sum >= 0) {
			return Null(), sqlerr.Wrap(sqlerr.KindExecution, sqlerr.ErrOverflow)
		}
		return Integer(sum), nil
	}
	return Float(a.Float() + b.Float()), nil
}

// Sub returns a-b.
func Sub(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if !a.isNumeric() || !b.isNumeric() {
		return Null(), sqlerr.Execution("cannot subtract %s and %s", a.kind, b.kind)
	}
	if a.kind == KindInteger && b.kind == KindInteger {
		diff := a.i - b.i
		if (a.i >= 0 && b.i < 0 && diff < 0) || (a.i < 0 && b.i > 0 && diff > 0) {
			return Null(), sqlerr.Wrap(sqlerr.KindExecution, sqlerr.ErrOverflow)
		}
		return Integer(diff), nil
	}
	return Float(a.Float() - b.Float()), nil
}

// Mul returns a*b.
func Mul(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if !a.isNumeric() || !b.isNumeric() {
		return Null(), sqlerr.Execution("cannot multiply %s and %s", a.kind, b.kind)
	}
	if a.kind == KindInteger && b.kind == KindInteger {
		if a.i != 0 && b.i != 0 {
			prod := a.i * b.i
			if prod/b.i != a.i || (a.i == math.MinInt64 && b.i == -1) {
				return Null(), sqlerr.Wrap(sqlerr.KindExecution, sqlerr.ErrOverflow)
			}
			return Integer(prod), nil
		}
		return Integer(0), nil
	}
	return Float(a.Float() * b.Float()), nil
}

// Div returns a/b. Integer division truncates; dividing by integer zero is
// an error (not Null). Float division follows IEEE semantics.
func Div(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if !a.isNumeric() || !b.isNumeric() {
		return Null(), sqlerr.Execution("cannot divide %s and %s", a.kind, b.kind)
	}
	if a.kind == KindInteger && b.kind == KindInteger {
		if b.i == 0 {
			return Null(), sqlerr.Wrap(sqlerr.KindExecution, sqlerr.ErrDivisionByZero)
		}
		if a.i == math.MinInt64 && b.i == -1 {
			return Null(), sqlerr.Wrap(sqlerr.KindExecution, sqlerr.ErrOverflow)
		}
		return Integer(a.i / b.i), nil
	}
	if b.Float() == 0 {
		return Null(), sqlerr.Wrap(sqlerr.KindExecution, sqlerr.ErrDivisionByZero)
	}
	return Float(a.Float() / b.Float()), nil
}

// Mod returns a%b for integers.
func Mod(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if a.kind != KindInteger || b.kind != KindInteger {
		return Null(), sqlerr.Execution("cannot take modulo of %s and %s", a.kind, b.kind)
	}
	if b.i == 0 {
		return Null(), sqlerr.Wrap(sqlerr.KindExecution, sqlerr.ErrDivisionByZero)
	}
	return Integer(a.i % b.i), nil
}

// Neg returns -a.
func Neg(a Value) (Value, error) {
	switch a.kind {
	case KindNull:
		return Null(), nil
	case KindInteger:
		if a.i == math.MinInt64 {
			return Null(), sqlerr.Wrap(sqlerr.KindExecution, sqlerr.ErrOverflow)
		}
		return Integer(-a.i), nil
	case KindFloat:
		return Float(-a.f), nil
	default:
		return Null(), sqlerr.Execution("cannot negate %s", a.kind)
	}
}

// Not returns NOT a under three-valued logic.
func Not(a Value) (Value, error) {
	switch a.kind {
	case KindNull:
		return Null(), nil
	case KindBoolean:
		return Boolean(!a.b), nil
	default:
		return Null(), sqlerr.Execution("NOT requires a boolean, got %s", a.kind)
	}
}

// And returns a AND b: false dominates Null.
func And(a, b Value) (Value, error) {
	af, aerr := toBoolOrNull(a)
	bf, berr := toBoolOrNull(b)
	if aerr != nil {
		return Null(), aerr
	}
	if berr != nil {
		return Null(), berr
	}
	switch {
	case af == tvFalse || bf == tvFalse:
		return Boolean(false), nil
	case af == tvNull || bf == tvNull:
		return Null(), nil
	default:
		return Boolean(true), nil
	}
}

// Or returns a OR b: true dominates Null.
func Or(a, b Value) (Value, error) {
	af, aerr := toBoolOrNull(a)
	bf, berr := toBoolOrNull(b)
	if aerr != nil {
		return Null(), aerr
	}
	if berr != nil {
		return Null(), berr
	}
	switch {
	case af == tvTrue || bf == tvTrue:
		return Boolean(true), nil
	case af == tvNull || bf == tvNull:
		return Null(), nil
	default:
		return Boolean(false), nil
	}
}

type tv int

const (
	tvFalse tv = iota
	tvTrue
	tvNull
)

func toBoolOrNull(v Value) (tv, error) {
	switch v.kind {
	case KindNull:
		return tvNull, nil
	case KindBoolean:
		if v.b {
			return tvTrue, nil
		}
		return tvFalse, nil
	default:
		return tvNull, sqlerr.Execution("expected a boolean, got %s", v.kind)
	}
}
