package pipeline

import (
	"fmt"

	"github.com/corisec/cori/internal/validator"
)

// Kind classifies a pipeline failure per spec.md §7's error taxonomy. The
// transport adapters switch on Kind to decide the externally visible
// status and pass Message through to the agent. For the
// authentication/authorization kinds Message is a fixed generic string
// ("token verification failed", "tool not found", ...) carrying no token
// or policy detail; for InvalidArgument, Violations carry the field names
// the agent needs to self-correct.
type Kind string

const (
	KindUnauthenticated     Kind = "unauthenticated"
	KindUnauthorized        Kind = "unauthorized"
	KindInvalidArgument     Kind = "invalid_argument"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindRowCapExceeded      Kind = "row_cap_exceeded"
	KindDeadlineExceeded    Kind = "deadline_exceeded"
	KindInternal            Kind = "internal"
)

// Error is the typed error a pipeline call can terminate with. Violations
// is populated only for KindInvalidArgument, carrying the field/constraint
// detail spec.md §7 requires without echoing any sensitive value back.
type Error struct {
	Kind       Kind
	Message    string
	Violations []validator.Violation
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func errUnauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func errUnauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func errInvalidArgument(violations []validator.Violation) *Error {
	return &Error{Kind: KindInvalidArgument, Message: "invalid arguments", Violations: violations}
}

func errUpstreamUnavailable(msg string) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: msg}
}

func errRowCapExceeded(msg string) *Error {
	return &Error{Kind: KindRowCapExceeded, Message: msg}
}

func errDeadlineExceeded() *Error {
	return &Error{Kind: KindDeadlineExceeded, Message: "deadline exceeded before the call completed"}
}

func errInternal(msg string) *Error {
	return &Error{Kind: KindInternal, Message: msg}
}
