// Package apperrors defines the typed failure kinds services return so
// handlers can map them to HTTP status codes without string matching.
package apperrors

import "errors"

// Kind classifies an application failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindValidation
)

// Error carries a failure kind and a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound reports a missing demand signal, match, contract or delivery.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden reports a caller without ownership or admin privilege.
func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// InvalidState reports an operation against an entity whose current state
// does not permit it.
func InvalidState(message string) error {
	return &Error{Kind: KindInvalidState, Message: message}
}

// Validation reports malformed input.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// KindOf returns the kind attached to err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusCode maps a failure kind to the HTTP status handlers respond with.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return 404
	case KindForbidden:
		return 403
	case KindInvalidState:
		return 409
	case KindValidation:
		return 400
	default:
		return 500
	}
}
