package parser

import (
	"strconv"
	"strings"

	"github.com/quelldb/quell/internal/sql/value"
	"github.com/quelldb/quell/internal/sqlerr"
)

// Parse parses a single SQL statement into an AST. A trailing ';' is
// accepted but not required. No semantic checks happen here; unknown
// tables and columns are deferred to planning.
func Parse(sql string) (Statement, error) {
	p := &parser{lexer: NewLexer(sql)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.tok.Type == TokenSemicolon {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return stmt, nil
}

type parser struct {
	lexer *Lexer
	tok   Token
}

func (p *parser) advance() error {
	tok, err := p.lexer.NextToken()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.Type == TokenKeyword && p.tok.Value == kw
}

func (p *parser) acceptKeyword(kw string) (bool, error) {
	if !p.isKeyword(kw) {
		return false, nil
	}
	return true, p.advance()
}

func (p *parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return sqlerr.Syntax(p.tok.Pos, "expected %s, got %q", kw, p.tok.Value)
	}
	return p.advance()
}

func (p *parser) expect(tt TokenType, what string) (Token, error) {
	if p.tok.Type != tt {
		return Token{}, sqlerr.Syntax(p.tok.Pos, "expected %s, got %q", what, p.tok.Value)
	}
	tok := p.tok
	return tok, p.advance()
}

func (p *parser) expectEnd() error {
	if p.tok.Type == TokenEOF {
		return nil
	}
	return sqlerr.Syntax(p.tok.Pos, "unexpected token %q", p.tok.Value)
}

func (p *parser) parseStatement() (Statement, error) {
	if p.isKeyword("SELECT") {
		return p.parseSelect()
	}
	return nil, sqlerr.Syntax(p.tok.Pos, "unsupported statement starting with %q", p.tok.Value)
}

func (p *parser) parseSelect() (Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &SelectStmt{}

	if err := p.parseSelectList(stmt); err != nil {
		return nil, err
	}

	if ok, err := p.acceptKeyword("FROM"); err != nil {
		return nil, err
	} else if ok {
		if err := p.parseFrom(stmt); err != nil {
			return nil, err
		}
	}

	if ok, err := p.acceptKeyword("WHERE"); err != nil {
		return nil, err
	} else if ok {
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if ok, err := p.acceptKeyword("GROUP"); err != nil {
		return nil, err
	} else if ok {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, expr)
			if p.tok.Type != TokenComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}

	if ok, err := p.acceptKeyword("HAVING"); err != nil {
		return nil, err
	} else if ok {
		having, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Having = having
	}

	if ok, err := p.acceptKeyword("ORDER"); err != nil {
		return nil, err
	} else if ok {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: expr}
			if ok, err := p.acceptKeyword("DESC"); err != nil {
				return nil, err
			} else if ok {
				item.Desc = true
			} else if _, err := p.acceptKeyword("ASC"); err != nil {
				return nil, err
			}
			stmt.Order = append(stmt.Order, item)
			if p.tok.Type != TokenComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}

	// LIMIT and OFFSET are accepted in either syntactic order; semantics
	// (offset before limit) are fixed by the planner regardless.
	for p.isKeyword("LIMIT") || p.isKeyword("OFFSET") {
		kw := p.tok.Value
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		switch kw {
		case "LIMIT":
			if stmt.Limit != nil {
				return nil, sqlerr.Syntax(pos, "duplicate LIMIT clause")
			}
			stmt.Limit = expr
		case "OFFSET":
			if stmt.Offset != nil {
				return nil, sqlerr.Syntax(pos, "duplicate OFFSET clause")
			}
			stmt.Offset = expr
		}
	}

	return stmt, nil
}

// parseSelectList parses the select list. A lone * yields an empty list,
// meaning "all columns"; mixing * with expressions is rejected.
func (p *parser) parseSelectList(stmt *SelectStmt) error {
	if p.tok.Type == TokenStar {
		if err := p.advance(); err != nil {
			return err
		}
		if p.tok.Type == TokenComma {
			return sqlerr.Syntax(p.tok.Pos, "cannot mix * with other select expressions")
		}
		return nil
	}

	for {
		expr, err := p.parseExpr()
		if err != nil {
			return err
		}
		item := SelectItem{Expr: expr}
		if ok, err := p.acceptKeyword("AS"); err != nil {
			return err
		} else if ok {
			alias, err := p.expect(TokenIdent, "alias")
			if err != nil {
				return err
			}
			item.Alias = alias.Value
		} else if p.tok.Type == TokenIdent {
			// bare alias: SELECT title t
			item.Alias = p.tok.Value
			if err := p.advance(); err != nil {
				return err
			}
		}
		stmt.Select = append(stmt.Select, item)
		if p.tok.Type != TokenComma {
			return nil
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
}

func (p *parser) parseFrom(stmt *SelectStmt) error {
	for {
		item, err := p.parseFromItem()
		if err != nil {
			return err
		}
		stmt.From = append(stmt.From, item)
		if p.tok.Type != TokenComma {
			return nil
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
}

// parseFromItem parses a table reference followed by any number of join
// clauses, left-associated.
func (p *parser) parseFromItem() (FromItem, error) {
	var item FromItem
	table, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	item = table

	for {
		kind, ok, err := p.parseJoinKind()
		if err != nil {
			return nil, err
		}
		if !ok {
			return item, nil
		}
		right, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}
		join := &Join{Left: item, Right: right, Kind: kind}
		if kind != JoinCross {
			if ok, err := p.acceptKeyword("ON"); err != nil {
				return nil, err
			} else if ok {
				pred, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				join.Predicate = pred
			}
		}
		item = join
	}
}

func (p *parser) parseJoinKind() (JoinKind, bool, error) {
	switch {
	case p.isKeyword("JOIN"):
		return JoinInner, true, p.advance()
	case p.isKeyword("INNER"):
		if err := p.advance(); err != nil {
			return 0, false, err
		}
		return JoinInner, true, p.expectKeyword("JOIN")
	case p.isKeyword("CROSS"):
		if err := p.advance(); err != nil {
			return 0, false, err
		}
		return JoinCross, true, p.expectKeyword("JOIN")
	case p.isKeyword("LEFT"), p.isKeyword("RIGHT"):
		kind := JoinLeft
		if p.isKeyword("RIGHT") {
			kind = JoinRight
		}
		if err := p.advance(); err != nil {
			return 0, false, err
		}
		if ok, err := p.acceptKeyword("OUTER"); err != nil {
			return 0, false, err
		} else {
			_ = ok
		}
		return kind, true, p.expectKeyword("JOIN")
	default:
		return 0, false, nil
	}
}

func (p *parser) parseTableRef() (*Table, error) {
	name, err := p.expect(TokenIdent, "table name")
	if err != nil {
		return nil, err
	}
	ref := &Table{Name: name.Value}
	if ok, err := p.acceptKeyword("AS"); err != nil {
		return nil, err
	} else if ok {
		alias, err := p.expect(TokenIdent, "table alias")
		if err != nil {
			return nil, err
		}
		ref.Alias = alias.Value
	} else if p.tok.Type == TokenIdent {
		ref.Alias = p.tok.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

// ----- Expressions, precedence climbing -----
//
// unary > * / % > + - > comparisons > NOT > AND > OR

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.isKeyword("NOT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch p.tok.Type {
		case TokenEqual:
			op = OpEq
		case TokenNotEqual:
			op = OpNotEq
		case TokenLessThan:
			op = OpLt
		case TokenLessEqual:
			op = OpLtEq
		case TokenGreaterThan:
			op = OpGt
		case TokenGreaterEqual:
			op = OpGtEq
		default:
			if p.isKeyword("IS") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				negate := false
				if ok, err := p.acceptKeyword("NOT"); err != nil {
					return nil, err
				} else if ok {
					negate = true
				}
				if err := p.expectKeyword("NULL"); err != nil {
					return nil, err
				}
				left = &IsNull{Expr: left, Negate: negate}
				continue
			}
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TokenPlus || p.tok.Type == TokenMinus {
		op := OpAdd
		if p.tok.Type == TokenMinus {
			op = OpSub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TokenStar || p.tok.Type == TokenSlash || p.tok.Type == TokenPercent {
		var op BinaryOp
		switch p.tok.Type {
		case TokenStar:
			op = OpMul
		case TokenSlash:
			op = OpDiv
		case TokenPercent:
			op = OpMod
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	switch p.tok.Type {
	case TokenMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpNeg, Operand: operand}, nil
	case TokenPlus:
		// unary plus is a no-op
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.tok
	switch tok.Type {
	case TokenNumber:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return parseNumber(tok)
	case TokenString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{Value: value.String(tok.Value)}, nil
	case TokenKeyword:
		switch tok.Value {
		case "TRUE":
			return &Literal{Value: value.Boolean(true)}, p.advance()
		case "FALSE":
			return &Literal{Value: value.Boolean(false)}, p.advance()
		case "NULL":
			return &Literal{Value: value.Null()}, p.advance()
		}
		return nil, sqlerr.Syntax(tok.Pos, "unexpected keyword %q in expression", tok.Value)
	case TokenLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, ")"); err != nil {
			return nil, err
		}
		return expr, nil
	case TokenIdent:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Type == TokenLParen {
			return p.parseCall(tok)
		}
		if p.tok.Type == TokenDot {
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, err := p.expect(TokenIdent, "column name")
			if err != nil {
				return nil, err
			}
			return &Column{Table: tok.Value, Name: name.Value}, nil
		}
		return &Column{Name: tok.Value}, nil
	}
	return nil, sqlerr.Syntax(tok.Pos, "unexpected token %q in expression", tok.Value)
}

func (p *parser) parseCall(name Token) (Expr, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	call := &Call{Name: strings.ToLower(name.Value)}
	if p.tok.Type == TokenRParen {
		return nil, sqlerr.Syntax(p.tok.Pos, "function %s requires an argument", call.Name)
	}
	for {
		if p.tok.Type == TokenStar {
			call.Args = append(call.Args, &All{})
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
		if p.tok.Type != TokenComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, err
	}
	return call, nil
}

func parseNumber(tok Token) (Expr, error) {
	if strings.ContainsAny(tok.Value, ".eE") {
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, sqlerr.Syntax(tok.Pos, "invalid number %q", tok.Value)
		}
		return &Literal{Value: value.Float(f)}, nil
	}
	i, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		return nil, sqlerr.Syntax(tok.Pos, "integer %q out of range", tok.Value)
	}
	return &Literal{Value: value.Integer(i)}, nil
}
