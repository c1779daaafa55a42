package parser

import (
	"strings"
	"unicode"

	"github.com/quelldb/quell/internal/sqlerr"
)

// TokenType classifies a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenKeyword
	TokenComma
	TokenSemicolon
	TokenLParen
	TokenRParen
	TokenStar
	TokenDot
	TokenPlus
	TokenMinus
	TokenSlash
	TokenPercent
	TokenEqual
	TokenNotEqual
	TokenLessThan
	TokenLessEqual
	TokenGreaterThan
	TokenGreaterEqual
)

// Token is a single lexical unit. Pos is the byte offset of its first
// character in the input.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true,
	"GROUP": true, "BY": true, "HAVING": true,
	"ORDER": true, "LIMIT": true, "OFFSET": true,
	"AS": true, "ASC": true, "DESC": true,
	"AND": true, "OR": true, "NOT": true,
	"TRUE": true, "FALSE": true, "NULL": true, "IS": true,
	"JOIN": true, "ON": true, "INNER": true, "OUTER": true,
	"LEFT": true, "RIGHT": true, "CROSS": true,
}

// Lexer turns a query string into a token stream. Each NextToken call
// advances the position.
type Lexer struct {
	input string
	pos   int
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// NextToken returns the next token, or an error for an unterminated string
// or an unrecognized character.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case ',':
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: start}, nil
	case ';':
		l.pos++
		return Token{Type: TokenSemicolon, Value: ";", Pos: start}, nil
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}, nil
	case '*':
		l.pos++
		return Token{Type: TokenStar, Value: "*", Pos: start}, nil
	case '.':
		l.pos++
		return Token{Type: TokenDot, Value: ".", Pos: start}, nil
	case '+':
		l.pos++
		return Token{Type: TokenPlus, Value: "+", Pos: start}, nil
	case '-':
		l.pos++
		return Token{Type: TokenMinus, Value: "-", Pos: start}, nil
	case '/':
		l.pos++
		return Token{Type: TokenSlash, Value: "/", Pos: start}, nil
	case '%':
		l.pos++
		return Token{Type: TokenPercent, Value: "%", Pos: start}, nil
	case '=':
		l.pos++
		return Token{Type: TokenEqual, Value: "=", Pos: start}, nil
	case '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return Token{Type: TokenNotEqual, Value: "!=", Pos: start}, nil
		}
		return Token{}, sqlerr.Syntax(start, "unexpected character %q", ch)
	case '<':
		if l.pos+1 < len(l.input) {
			switch l.input[l.pos+1] {
			case '=':
				l.pos += 2
				return Token{Type: TokenLessEqual, Value: "<=", Pos: start}, nil
			case '>':
				l.pos += 2
				return Token{Type: TokenNotEqual, Value: "<>", Pos: start}, nil
			}
		}
		l.pos++
		return Token{Type: TokenLessThan, Value: "<", Pos: start}, nil
	case '>':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return Token{Type: TokenGreaterEqual, Value: ">=", Pos: start}, nil
		}
		l.pos++
		return Token{Type: TokenGreaterThan, Value: ">", Pos: start}, nil
	case '\'':
		return l.lexString()
	}

	if unicode.IsDigit(rune(ch)) {
		return l.lexNumber(), nil
	}
	if unicode.IsLetter(rune(ch)) || ch == '_' {
		return l.lexIdentOrKeyword(), nil
	}
	return Token{}, sqlerr.Syntax(start, "unexpected character %q", ch)
}

// lexString scans a single-quoted literal. A doubled quote ('') is an
// escaped quote.
func (l *Lexer) lexString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Value: sb.String(), Pos: start}, nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return Token{}, sqlerr.Syntax(start, "unterminated string literal")
}

func (l *Lexer) lexNumber() Token {
	start := l.pos
	for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' &&
		l.pos+1 < len(l.input) && unicode.IsDigit(rune(l.input[l.pos+1])) {
		l.pos++
		for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		// exponent: e[+-]digits
		mark := l.pos
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
			for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
				l.pos++
			}
		} else {
			l.pos = mark
		}
	}
	return Token{Type: TokenNumber, Value: l.input[start:l.pos], Pos: start}
}

func (l *Lexer) lexIdentOrKeyword() Token {
	start := l.pos
	for l.pos < len(l.input) {
		ch := rune(l.input[l.pos])
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '_' {
			break
		}
		l.pos++
	}
	word := l.input[start:l.pos]
	if keywords[strings.ToUpper(word)] {
		return Token{Type: TokenKeyword, Value: strings.ToUpper(word), Pos: start}
	}
	return Token{Type: TokenIdent, Value: word, Pos: start}
}
