package value

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quelldb/quell/internal/sqlerr"
)

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, "Null", v.String())
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "Integer(1)", Integer(1).String())
	assert.Equal(t, "Float(8.2)", Float(8.2).String())
	assert.Equal(t, "Float(8)", Float(8.0).String())
	assert.Equal(t, `String("it's")`, String("it's").String())
	assert.Equal(t, "Boolean(true)", Boolean(true).String())
}

func TestCompare_NullIsUnknown(t *testing.T) {
	ord, err := Compare(Null(), Integer(1))
	require.NoError(t, err)
	assert.Equal(t, Unknown, ord)

	ord, err = Compare(Null(), Null())
	require.NoError(t, err)
	assert.Equal(t, Unknown, ord)
}

func TestCompare_NumericCrossKind(t *testing.T) {
	ord, err := Compare(Integer(2), Float(1.5))
	require.NoError(t, err)
	assert.Equal(t, Greater, ord)

	ord, err = Compare(Float(2.0), Integer(2))
	require.NoError(t, err)
	assert.Equal(t, Equal, ord)
}

func TestCompare_Incompatible(t *testing.T) {
	_, err := Compare(Boolean(true), String("true"))
	require.Error(t, err)

	_, err = Compare(Integer(1), String("1"))
	require.Error(t, err)
}

func TestCompare_Strings(t *testing.T) {
	ord, err := Compare(String("a"), String("b"))
	require.NoError(t, err)
	assert.Equal(t, Less, ord)
}

func TestAdd_NullPropagates(t *testing.T) {
	v, err := Add(Null(), Integer(1))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestAdd_Overflow(t *testing.T) {
	_, err := Add(Integer(math.MaxInt64), Integer(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrOverflow))

	_, err = Add(Integer(math.MinInt64), Integer(-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrOverflow))
}

func TestAdd_IntFloatCoercion(t *testing.T) {
	v, err := Add(Integer(1), Float(0.5))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind())
	assert.Equal(t, 1.5, v.Float())
}

func TestDiv_ByZero(t *testing.T) {
	_, err := Div(Integer(1), Integer(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrDivisionByZero))

	_, err = Div(Float(1.0), Float(0.0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrDivisionByZero))
}

func TestDiv_IntegerTruncates(t *testing.T) {
	v, err := Div(Integer(7), Integer(2))
	require.NoError(t, err)
	assert.Equal(t, Integer(3), v)
}

func TestMul_Overflow(t *testing.T) {
	_, err := Mul(Integer(math.MaxInt64), Integer(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrOverflow))
}

func TestMod_Basics(t *testing.T) {
	v, err := Mod(Integer(7), Integer(3))
	require.NoError(t, err)
	assert.Equal(t, Integer(1), v)

	_, err = Mod(Integer(7), Integer(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrDivisionByZero))
}

func TestNeg_MinInt(t *testing.T) {
	_, err := Neg(Integer(math.MinInt64))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrOverflow))
}

func TestAnd_ThreeValued(t *testing.T) {
	// false dominates Null
	v, err := And(Boolean(false), Null())
	require.NoError(t, err)
	assert.Equal(t, Boolean(false), v)

	v, err = And(Boolean(true), Null())
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = And(Boolean(true), Boolean(true))
	require.NoError(t, err)
	assert.Equal(t, Boolean(true), v)
}

func TestOr_ThreeValued(t *testing.T) {
	// true dominates Null
	v, err := Or(Boolean(true), Null())
	require.NoError(t, err)
	assert.Equal(t, Boolean(true), v)

	v, err = Or(Boolean(false), Null())
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestNot_Null(t *testing.T) {
	v, err := Not(Null())
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = Not(Integer(1))
	require.Error(t, err)
}
