package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Conditions a GenerationError can wrap. Test with errors.Is.
var (
	ErrNoMain     = errors.New("no main function")
	ErrUndefined  = errors.New("unresolved identifier")
	ErrRedeclared = errors.New("redeclared name")
	ErrCallOrder  = errors.New("call to function declared later")
	ErrArity      = errors.New("wrong number of arguments")
	ErrReserved   = errors.New("reserved name")
	ErrRange      = errors.New("integer literal out of range")
	ErrMalformed  = errors.New("malformed expression")
)

// LexicalError reports a malformed literal found by the scanner.
type LexicalError struct {
	Pos Pos
	Msg string
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("line %s: %s", e.Pos, e.Msg)
}

// SyntaxError reports a token the parser did not expect.
type SyntaxError struct {
	Expected string
	Found    Token
	Pos      Pos
	Snippet  string // trimmed source line, may be empty
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("line %s: expected %s, found %s", e.Pos, e.Expected, e.Found.describe())
	if e.Snippet != "" {
		msg += "\n  |> " + e.Snippet
	}
	return msg
}

// GenerationError reports a program the code generator cannot lower.
// Err is one of the sentinel conditions above.
type GenerationError struct {
	Func string // enclosing function, empty for globals
	Pos  Pos
	Msg  string
	Err  error
}

func (e *GenerationError) Error() string {
	var b strings.Builder
	if e.Pos.Line > 0 {
		fmt.Fprintf(&b, "line %s: ", e.Pos)
	}
	if e.Func != "" {
		fmt.Fprintf(&b, "in %s: ", e.Func)
	}
	b.WriteString(e.Err.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *GenerationError) Unwrap() error { return e.Err }

func genErrorf(fn string, pos Pos, cause error, format string, args ...any) *GenerationError {
	return &GenerationError{Func: fn, Pos: pos, Msg: fmt.Sprintf(format, args...), Err: cause}
}
