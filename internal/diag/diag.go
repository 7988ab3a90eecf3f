// Package diag implements a structured diagnostic model: severities, a
// single primary label plus any number of secondary labels, free-
// floating notes, and an accumulate-and-continue ErrorFlag so a single
// pass can report many diagnostics before failing.
package diag

import (
	"errors"
	"fmt"

	"github.com/zero318/truth/internal/pos"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	Bug Severity = iota
	Error
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Bug:
		return "bug"
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Label attaches a short message to a span. The primary label is the one
// rendered with a caret; secondary labels annotate other spans relevant to
// the same diagnostic (e.g. "first defined here").
type Label struct {
	Span    pos.Span
	Message string
}

// Category roughly tags which pipeline stage emitted a diagnostic: Parse,
// Mapfile, Name resolution, Type, Lowering, Raising, IO, or Bug.
type Category string

const (
	CategoryParse    Category = "parse"
	CategoryMapfile  Category = "mapfile"
	CategoryResolve  Category = "resolve"
	CategoryType     Category = "type"
	CategoryLower    Category = "lower"
	CategoryRaise    Category = "raise"
	CategoryIO       Category = "io"
	CategoryBug      Category = "bug"
)

// Diagnostic is a single structured diagnostic record.
type Diagnostic struct {
	Severity Severity
	Category Category
	Message  string
	Primary  Label
	Extra    []Label
	Notes    []string
}

// New constructs a bare diagnostic with only a message; use the With*
// methods to attach labels and notes in a builder style.
func New(sev Severity, cat Category, message string, args ...any) *Diagnostic {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	return &Diagnostic{Severity: sev, Category: cat, Message: message}
}

// WithPrimary sets the primary (caret-rendered) label.
func (d *Diagnostic) WithPrimary(span pos.Span, message string, args ...any) *Diagnostic {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	d.Primary = Label{Span: span, Message: message}
	return d
}

// WithSecondary appends a secondary label.
func (d *Diagnostic) WithSecondary(span pos.Span, message string, args ...any) *Diagnostic {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	d.Extra = append(d.Extra, Label{Span: span, Message: message})
	return d
}

// WithNote appends a free-floating note.
func (d *Diagnostic) WithNote(note string, args ...any) *Diagnostic {
	if len(args) > 0 {
		note = fmt.Sprintf(note, args...)
	}
	d.Notes = append(d.Notes, note)
	return d
}

// Error implements the error interface so a Diagnostic can be passed around
// as a plain Go error when convenient (e.g. in a mapfile-only standalone
// check, where diagnostics need to be usable outside a full compile).
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// ErrReported is a sentinel witnessing that one or more diagnostics have
// already been emitted to an Emitter. Passes return this (wrapped) instead
// of a fresh error so that callers never print the same failure twice.
var ErrReported = errors.New("diag: error already reported")

// IsReported reports whether err wraps ErrReported.
func IsReported(err error) bool { return errors.Is(err, ErrReported) }

// Emitter receives diagnostics as they are produced. A RootEmitter is the
// concrete sink; ErrorFlag is a per-pass accumulator that also implements
// this interface so passes can be written generically.
type Emitter interface {
	Emit(d *Diagnostic)
}

// RootEmitter is the single top-level diagnostic sink for one compiler
// invocation. It never discards diagnostics and never itself decides to
// abort; that decision belongs to the caller.
type RootEmitter struct {
	Diagnostics []*Diagnostic
	// ErrorCount is the number of emitted diagnostics with Severity <= Error.
	ErrorCount int
	// SuppressedWarnings disables emission of warnings whose message is
	// tagged with one of these categories.
	SuppressedWarnings map[string]bool
}

// NewRootEmitter constructs an empty emitter.
func NewRootEmitter() *RootEmitter {
	return &RootEmitter{SuppressedWarnings: map[string]bool{}}
}

// Emit records a diagnostic. Errors and bugs always flow through; warnings
// tagged in SuppressedWarnings (by Category) are dropped.
func (e *RootEmitter) Emit(d *Diagnostic) {
	if d.Severity == Warning && e.SuppressedWarnings[string(d.Category)] {
		return
	}
	e.Diagnostics = append(e.Diagnostics, d)
	if d.Severity == Error || d.Severity == Bug {
		e.ErrorCount++
	}
}

// AsReported emits d and returns the ErrReported sentinel wrapped with d's
// message, for use as a pass's terminal return value.
func (e *RootEmitter) AsReported(d *Diagnostic) error {
	e.Emit(d)
	return fmt.Errorf("%s: %w", d.Message, ErrReported)
}

// HasErrors reports whether any error- or bug-severity diagnostic has been
// emitted so far.
func (e *RootEmitter) HasErrors() bool { return e.ErrorCount > 0 }

// ErrorFlag accumulates "an error has been reported" across many node
// visits within a single pass, without re-emitting or storing the
// diagnostics itself (they go straight to the wrapped Emitter). A pass
// checks Errored() at the end to decide whether to return ErrReported.
//
// This is the Go counterpart of the original Rust `ErrorFlag`/
// `GatherErrorIteratorExt` combo: many sub-operations can fail
// independently, and the pass still visits all of them, accumulating
// every diagnostic before deciding as a whole whether it succeeded.
type ErrorFlag struct {
	inner   Emitter
	errored bool
}

// NewErrorFlag wraps an Emitter with error-accumulation tracking.
func NewErrorFlag(inner Emitter) *ErrorFlag {
	return &ErrorFlag{inner: inner}
}

// Emit forwards d to the wrapped emitter and records that an error/bug
// occurred if applicable.
func (f *ErrorFlag) Emit(d *Diagnostic) {
	if d.Severity == Error || d.Severity == Bug {
		f.errored = true
	}
	f.inner.Emit(d)
}

// Errored reports whether any error/bug has been emitted through this flag.
func (f *ErrorFlag) Errored() bool { return f.errored }

// AsResult returns ErrReported if Errored(), else nil. Idiomatic end-of-pass
// check: `return flag.AsResult()`.
func (f *ErrorFlag) AsResult() error {
	if f.errored {
		return ErrReported
	}
	return nil
}
