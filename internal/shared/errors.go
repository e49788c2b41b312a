package shared

import "errors"

// Kind classifies domain errors into the taxonomy surfaced to callers.
type Kind int

const (
	// KindUnknown is the zero value for untagged errors.
	KindUnknown Kind = iota
	// KindValidation marks malformed or missing input, locally recoverable.
	KindValidation
	// KindInvariant marks a domain rule violation rejected before any write.
	KindInvariant
	// KindConflict marks a state conflict the caller may retry or abandon.
	KindConflict
	// KindNotFound marks a missing resource.
	KindNotFound
	// KindConfiguration marks an operator setup gap, fatal for the operation only.
	KindConfiguration
)

// Error tags a message with its taxonomy kind. Domain packages declare their
// sentinels through the constructors below so errors.Is chains keep working.
type Error struct {
	kind Kind
	msg  string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.msg }

// Kind returns the taxonomy kind.
func (e *Error) Kind() Kind { return e.kind }

// Validation constructs a validation sentinel.
func Validation(msg string) *Error { return &Error{kind: KindValidation, msg: msg} }

// Invariant constructs an invariant-violation sentinel.
func Invariant(msg string) *Error { return &Error{kind: KindInvariant, msg: msg} }

// Conflict constructs a conflict sentinel.
func Conflict(msg string) *Error { return &Error{kind: KindConflict, msg: msg} }

// NotFound constructs a not-found sentinel.
func NotFound(msg string) *Error { return &Error{kind: KindNotFound, msg: msg} }

// Configuration constructs a configuration-error sentinel.
func Configuration(msg string) *Error { return &Error{kind: KindConfiguration, msg: msg} }

// KindOf extracts the taxonomy kind from an error chain.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.kind
	}
	return KindUnknown
}
