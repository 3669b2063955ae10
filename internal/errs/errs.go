// Package errs defines the closed set of error kinds used across the
// analysis engine.
//
// Every failure that crosses a package boundary is wrapped in an *Error
// carrying one of the Kind values below plus the operation that failed and
// the underlying cause. Callers match on the kind via IsKind and never
// depend on the concrete error type of a storage engine or parser.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a failure category.
type Kind int

const (
	// KindUnknown is the zero value and never constructed explicitly.
	KindUnknown Kind = iota

	// KindPathNotFound means the scan root does not exist. Fatal to the scan.
	KindPathNotFound

	// KindParseFailure means an environment-level I/O fault while reading a
	// collected file. Fatal, unlike per-file syntax errors which are skipped.
	KindParseFailure

	// KindInvalidImportSyntax means import analysis was asked to process a
	// malformed import target directly.
	KindInvalidImportSyntax

	// KindInvalidPattern means a knowledge-store insert with a missing
	// pattern type or payload.
	KindInvalidPattern

	// KindKnowledgeStore wraps any persistence-layer failure.
	KindKnowledgeStore
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindPathNotFound:
		return "path_not_found"
	case KindParseFailure:
		return "parse_failure"
	case KindInvalidImportSyntax:
		return "invalid_import_syntax"
	case KindInvalidPattern:
		return "invalid_pattern"
	case KindKnowledgeStore:
		return "knowledge_store"
	default:
		return "unknown"
	}
}

// Error is a kinded error with the failing operation and wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error from a kind, an operation name, and a cause.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether any error in err's chain is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind == kind {
			return true
		}
		err = e.Err
		e = nil
	}
	return false
}
