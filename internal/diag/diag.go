// Package diag is the error taxonomy of spec.md §7, generalizing the
// teacher's internal/errors.SentraError to the six-category split the
// compiler needs: Syntactic, Semantic, Internal, Forbidden, Decompile,
// External.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the top-level error category from spec.md §7.
type Kind string

const (
	Syntactic Kind = "SyntaxError"
	Semantic  Kind = "TypeError"
	Internal  Kind = "InternalError"
	Forbidden Kind = "ForbiddenConstruct"
	Decompile Kind = "DecompileError"
	External  Kind = "ExternalError"
)

// Reason is the fine-grained failure kind from §4.1 and §4.7. Reason is
// empty for error kinds that don't need one (External, Syntactic).
type Reason string

const (
	UnboundVar         Reason = "UnboundVar"
	UnknownField       Reason = "UnknownField"
	UnknownConstructor Reason = "UnknownConstructor"
	TypeMismatch       Reason = "TypeMismatch"
	ArityMismatch      Reason = "ArityMismatch"
	ForbiddenEffect    Reason = "ForbiddenEffect"
	BadBigMap          Reason = "BadBigMap"
	UnannotatedSum     Reason = "UnannotatedSum"

	UnstructuredProgram  Reason = "UnstructuredProgram"
	UnboundStackPosition Reason = "UnboundStackPosition"
	AnnotationConflict   Reason = "AnnotationConflict"
)

// Loc is a source location. Line/Col are 1-based; File may be empty for
// synthesized nodes (the encoder/decompiler).
type Loc struct {
	File string
	Line int
	Col  int
}

func (l Loc) String() string {
	if l.File == "" && l.Line == 0 {
		return "<generated>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Error is the uniform located error every stage returns (spec.md §7:
// "no error is swallowed inside a pass; every error carries its source
// location").
type Error struct {
	K        Kind
	Reason   Reason
	Message  string
	At       Loc
	Expected *Loc // optional secondary "expected here" location (§4.1)
	Stage    string // populated for Internal errors: the stage name
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("internal error: %s: %s at %s", e.Stage, e.Message, e.At)
	}
	return fmt.Sprintf("%s: %s at %s", e.K, e.Message, e.At)
}

// New builds a located semantic/forbidden/decompile error.
func New(k Kind, reason Reason, at Loc, format string, args ...interface{}) *Error {
	return &Error{K: k, Reason: reason, Message: fmt.Sprintf(format, args...), At: at}
}

// WithExpected attaches the secondary "expected here" location.
func (e *Error) WithExpected(at Loc) *Error {
	e.Expected = &at
	return e
}

// Internalf builds a stage-tagged internal error (§7 category 3): an
// invariant violation, never a user mistake.
func Internalf(stage string, at Loc, format string, args ...interface{}) *Error {
	return &Error{K: Internal, Stage: stage, Message: fmt.Sprintf(format, args...), At: at}
}

// Wrap attaches a causal chain to a located error using pkg/errors, so a
// stage boundary can add context (e.g. "while compiling entry main")
// without discarding the original diag.Error for errors.As inspection.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// AsError extracts the first *diag.Error in err's cause chain, if any.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
