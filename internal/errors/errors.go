// Package errors defines the error kinds the engine raises and how they
// carry source location and call-stack context as they unwind through
// interpreter call frames.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind is one of the error kinds surfaced to the user.
type Kind string

const (
	NameError      Kind = "NameError"
	TypeError      Kind = "TypeError"
	CastError      Kind = "CastError"
	MathError      Kind = "MathError"
	IndexError     Kind = "IndexError"
	ReferenceError Kind = "ReferenceError"
	RuntimeError   Kind = "RuntimeError"
	SyntaxError    Kind = "SyntaxError"
	InternalError  Kind = "InternalError"
)

// SourceLocation is a position in source text.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// StackFrame is a single entry of the call stack attached to an error as it
// unwinds through interpreter call frames.
type StackFrame struct {
	Function string
	Line     int
}

// LumenError is the error type raised by every component of the engine.
type LumenError struct {
	Kind      Kind
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string // the source line where the error occurred, if known
	cause     error
}

// Error implements the error interface.
func (e *LumenError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s\n", e.Kind, e.Message))

	if e.Location.Line > 0 {
		file := e.Location.File
		if file == "" {
			file = "<script>"
		}
		sb.WriteString(fmt.Sprintf("  at %s:%d", file, e.Location.Line))
		if e.Location.Column > 0 {
			sb.WriteString(fmt.Sprintf(":%d", e.Location.Column))
		}
		sb.WriteString("\n")

		if e.Source != "" {
			sb.WriteString(fmt.Sprintf("\n  %d | %s\n", e.Location.Line, e.Source))
			if e.Location.Column > 0 {
				pad := len(fmt.Sprintf("%d | ", e.Location.Line))
				sb.WriteString(strings.Repeat(" ", pad+e.Location.Column-1))
				sb.WriteString("^\n")
			}
		}
	}

	if len(e.CallStack) > 0 {
		sb.WriteString("\nCall Stack:\n")
		for _, frame := range e.CallStack {
			sb.WriteString(fmt.Sprintf("  at %s (line %d)\n", frame.Function, frame.Line))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *LumenError) Unwrap() error { return e.cause }

// New builds a LumenError of the given kind at the given line.
func New(kind Kind, line int, format string, args ...interface{}) *LumenError {
	return &LumenError{Kind: kind, Message: fmt.Sprintf(format, args...), Location: SourceLocation{Line: line}}
}

// WithFile attaches the source file name.
func (e *LumenError) WithFile(file string) *LumenError {
	e.Location.File = file
	return e
}

// WithColumn attaches a source column.
func (e *LumenError) WithColumn(col int) *LumenError {
	e.Location.Column = col
	return e
}

// WithSource attaches the literal source line for caret-pointer display.
func (e *LumenError) WithSource(source string) *LumenError {
	e.Source = source
	return e
}

// Push records one more call frame on the unwind path, innermost first.
func (e *LumenError) Push(function string, line int) *LumenError {
	e.CallStack = append(e.CallStack, StackFrame{Function: function, Line: line})
	return e
}

// Internal wraps a genuine Go error (a VM invariant violation, e.g. a stack
// underflow or an opcode operand out of range) as an InternalError, using
// github.com/pkg/errors to capture a Go-level stack trace alongside the
// source line -- useful when the invariant should never have been
// observable from well-formed bytecode.
func Internal(line int, cause error) *LumenError {
	wrapped := pkgerrors.WithStack(cause)
	return &LumenError{
		Kind:     InternalError,
		Message:  cause.Error(),
		Location: SourceLocation{Line: line},
		cause:    wrapped,
	}
}

// Is reports whether err is a *LumenError of the given kind.
func Is(err error, kind Kind) bool {
	le, ok := err.(*LumenError)
	return ok && le.Kind == kind
}
