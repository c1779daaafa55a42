package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quelldb/quell/internal/sql/value"
)

func TestLexer_Symbols(t *testing.T) {
	l := NewLexer("<= <> != >= = ; .")
	types := []TokenType{
		TokenLessEqual, TokenNotEqual, TokenNotEqual,
		TokenGreaterEqual, TokenEqual, TokenSemicolon, TokenDot,
	}
	for _, want := range types {
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equal(t, want, tok.Type)
	}
	tok, err := l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokenEOF, tok.Type)
}

func TestLexer_StringEscape(t *testing.T) {
	l := NewLexer("'it''s'")
	tok, err := l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokenString, tok.Type)
	assert.Equal(t, "it's", tok.Value)
}

func TestLexer_UnterminatedString(t *testing.T) {
	l := NewLexer("  'abc")
	_, err := l.NextToken()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated")
	require.Contains(t, err.Error(), "position 2")
}

func TestLexer_Numbers(t *testing.T) {
	l := NewLexer("42 3.14 1e3 2.5e-1")
	for _, want := range []string{"42", "3.14", "1e3", "2.5e-1"} {
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equal(t, TokenNumber, tok.Type)
		assert.Equal(t, want, tok.Value)
	}
}

func TestLexer_KeywordCaseInsensitive(t *testing.T) {
	l := NewLexer("select TiTle")
	tok, err := l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokenKeyword, tok.Type)
	assert.Equal(t, "SELECT", tok.Value)

	tok, err = l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokenIdent, tok.Type)
	assert.Equal(t, "TiTle", tok.Value)
}

func TestLexer_UnexpectedCharacter(t *testing.T) {
	l := NewLexer("a ^ b")
	_, err := l.NextToken()
	require.NoError(t, err)
	_, err = l.NextToken()
	require.Error(t, err)
}

func TestParse_SelectStarDump(t *testing.T) {
	stmt, err := Parse("SELECT * FROM movies LIMIT 9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t,
		`Select { select: [], from: [Table { name: "movies", alias: None }], `+
			`where: None, group_by: [], having: None, order: [], offset: None, `+
			`limit: Literal(Integer(9223372036854775807)) }`,
		stmt.String())
}

func TestParse_TrailingSemicolonOptional(t *testing.T) {
	for _, sql := range []string{"SELECT * FROM t", "SELECT * FROM t;"} {
		_, err := Parse(sql)
		require.NoError(t, err, sql)
	}
	_, err := Parse("SELECT * FROM t;;")
	require.Error(t, err)
}

func TestParse_SelectStarMixRejected(t *testing.T) {
	_, err := Parse("SELECT *, title FROM movies")
	require.Error(t, err)
}

func TestParse_Aliases(t *testing.T) {
	stmt, err := Parse("SELECT title AS name, rating score FROM movies m")
	require.NoError(t, err)

	s, ok := stmt.(*SelectStmt)
	require.True(t, ok, "want *SelectStmt, got %T", stmt)
	require.Len(t, s.Select, 2)
	assert.Equal(t, "name", s.Select[0].Alias)
	assert.Equal(t, "score", s.Select[1].Alias)

	require.Len(t, s.From, 1)
	tbl, ok := s.From[0].(*Table)
	require.True(t, ok)
	assert.Equal(t, "movies", tbl.Name)
	assert.Equal(t, "m", tbl.Alias)
}

func TestParse_Precedence(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a + b * 2 = c AND NOT d OR e")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)

	// ((a + (b * 2)) = c AND NOT d) OR e
	or, ok := s.Where.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpOr, or.Op)

	and, ok := or.Left.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpAnd, and.Op)

	eq, ok := and.Left.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpEq, eq.Op)

	add, ok := eq.Left.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpAdd, add.Op)

	mul, ok := add.Right.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpMul, mul.Op)

	not, ok := and.Right.(*Unary)
	require.True(t, ok)
	assert.Equal(t, OpNot, not.Op)
}

func TestParse_UnaryMinus(t *testing.T) {
	stmt, err := Parse("SELECT -1, +2 FROM t")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)
	require.Len(t, s.Select, 2)

	neg, ok := s.Select[0].Expr.(*Unary)
	require.True(t, ok)
	assert.Equal(t, OpNeg, neg.Op)

	// unary plus is dropped
	lit, ok := s.Select[1].Expr.(*Literal)
	require.True(t, ok)
	assert.Equal(t, value.Integer(2), lit.Value)
}

func TestParse_NumberKinds(t *testing.T) {
	stmt, err := Parse("SELECT 1, 1.5, 1e3 FROM t")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)

	assert.Equal(t, value.Integer(1), s.Select[0].Expr.(*Literal).Value)
	assert.Equal(t, value.Float(1.5), s.Select[1].Expr.(*Literal).Value)
	assert.Equal(t, value.Float(1000), s.Select[2].Expr.(*Literal).Value)
}

func TestParse_IntegerOutOfRange(t *testing.T) {
	_, err := Parse("SELECT 99999999999999999999 FROM t")
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")
}

func TestParse_IsNull(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a IS NULL AND b IS NOT NULL")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)

	and := s.Where.(*Binary)
	left, ok := and.Left.(*IsNull)
	require.True(t, ok)
	assert.False(t, left.Negate)

	right, ok := and.Right.(*IsNull)
	require.True(t, ok)
	assert.True(t, right.Negate)
}

func TestParse_QualifiedColumn(t *testing.T) {
	stmt, err := Parse("SELECT m.title FROM movies m")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)

	col, ok := s.Select[0].Expr.(*Column)
	require.True(t, ok)
	assert.Equal(t, "m", col.Table)
	assert.Equal(t, "title", col.Name)
}

func TestParse_CountStar(t *testing.T) {
	stmt, err := Parse("SELECT COUNT(*) FROM movies")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)

	call, ok := s.Select[0].Expr.(*Call)
	require.True(t, ok)
	assert.Equal(t, "count", call.Name)
	require.Len(t, call.Args, 1)
	_, ok = call.Args[0].(*All)
	assert.True(t, ok)
}

func TestParse_Joins(t *testing.T) {
	stmt, err := Parse(
		"SELECT * FROM movies m LEFT OUTER JOIN studios s ON m.studio_id = s.id")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)
	require.Len(t, s.From, 1)

	join, ok := s.From[0].(*Join)
	require.True(t, ok)
	assert.Equal(t, JoinLeft, join.Kind)
	require.NotNil(t, join.Predicate)

	left, ok := join.Left.(*Table)
	require.True(t, ok)
	assert.Equal(t, "movies", left.Name)
}

func TestParse_JoinsLeftAssociated(t *testing.T) {
	stmt, err := Parse("SELECT * FROM a JOIN b ON x = y JOIN c ON y = z")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)

	outer, ok := s.From[0].(*Join)
	require.True(t, ok)
	inner, ok := outer.Left.(*Join)
	require.True(t, ok)
	assert.Equal(t, "a", inner.Left.(*Table).Name)
	assert.Equal(t, "b", inner.Right.(*Table).Name)
	assert.Equal(t, "c", outer.Right.(*Table).Name)
}

func TestParse_CrossJoinTakesNoPredicate(t *testing.T) {
	_, err := Parse("SELECT * FROM a CROSS JOIN b ON x = y")
	require.Error(t, err)
}

func TestParse_GroupByHaving(t *testing.T) {
	stmt, err := Parse(
		"SELECT studio_id, COUNT(*) FROM movies GROUP BY studio_id HAVING COUNT(*) > 1")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)
	require.Len(t, s.GroupBy, 1)
	require.NotNil(t, s.Having)
}

func TestParse_OrderByDirections(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t ORDER BY a, b ASC, c DESC")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)
	require.Len(t, s.Order, 3)
	assert.False(t, s.Order[0].Desc)
	assert.False(t, s.Order[1].Desc)
	assert.True(t, s.Order[2].Desc)
}

func TestParse_LimitOffsetEitherOrder(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM t LIMIT 2 OFFSET 3",
		"SELECT * FROM t OFFSET 3 LIMIT 2",
	} {
		stmt, err := Parse(sql)
		require.NoError(t, err, sql)
		s := stmt.(*SelectStmt)
		require.NotNil(t, s.Limit, sql)
		require.NotNil(t, s.Offset, sql)
	}
}

func TestParse_DuplicateLimitRejected(t *testing.T) {
	_, err := Parse("SELECT * FROM t LIMIT 1 LIMIT 2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate LIMIT")
}

func TestParse_UnsupportedStatement(t *testing.T) {
	_, err := Parse("INSERT INTO t VALUES (1)")
	require.Error(t, err)
}

func TestParse_SyntaxErrorHasPosition(t *testing.T) {
	_, err := Parse("SELECT FROM t")
	require.Error(t, err)
	require.Contains(t, err.Error(), "syntax error at position")
}
