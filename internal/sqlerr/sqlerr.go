// Package sqlerr defines the error taxonomy shared by the query pipeline.
// Every stage fails fast with a kind-tagged error; nothing is retried
// inside the core.
package sqlerr

import (
	"errors"
	"fmt"
)

// Kind classifies which pipeline stage produced an error.
type Kind int

const (
	KindSyntax    Kind = iota // lexer/parser
	KindPlan                  // planner: unknown table/column, invalid aggregate
	KindExecution             // executor: type mismatch, division by zero, overflow
	KindStorage               // propagated verbatim from the storage engine
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindPlan:
		return "plan error"
	case KindExecution:
		return "execution error"
	case KindStorage:
		return "storage error"
	default:
		return "error"
	}
}

// Error is a kind-tagged error. Pos is a byte offset into the query text;
// it is only meaningful for syntax errors (-1 elsewhere).
type Error struct {
	Kind Kind
	Msg  string
	Pos  int
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Kind == KindSyntax && e.Pos >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Kind, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Syntax reports a lexing/parsing failure at the given byte offset.
func Syntax(pos int, format string, args ...any) error {
	return &Error{Kind: KindSyntax, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Plan reports a planning failure (resolution, aggregate misuse, ...).
func Plan(format string, args ...any) error {
	return &Error{Kind: KindPlan, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

// Execution reports a runtime evaluation failure.
func Execution(format string, args ...any) error {
	return &Error{Kind: KindExecution, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

// Storage wraps a storage engine error without rewriting its message.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStorage, Pos: -1, Msg: err.Error(), Err: err}
}

// Sentinels for execution failures that callers may want to branch on.
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("integer overflow")
)

// Wrap tags an existing error with a kind, keeping it unwrappable.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Pos: -1, Msg: err.Error(), Err: err}
}

// KindOf extracts the stage kind from err, or (0, false) if err is not a
// pipeline error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
