package types

import (
	"errors"
	"time"
)

// ErrorKind classifies domain errors so callers can translate them into
// the right outbound frame without inspecting error strings.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindAuthentication
	KindNotFound
	KindNoPermission
	KindAlreadyExists
	KindInvalidArguments
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication_failure"
	case KindNotFound:
		return "not_found"
	case KindNoPermission:
		return "no_permission"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidArguments:
		return "invalid_arguments"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unexpected"
	}
}

// Error is a domain error. Handler-local domain errors never close the
// connection; they are converted to structured error frames.
type Error struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return e.Message
}

func NewAuthenticationError(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func NewNoPermissionError(msg string) *Error {
	return &Error{Kind: KindNoPermission, Message: msg}
}

func NewAlreadyExistsError(msg string) *Error {
	return &Error{Kind: KindAlreadyExists, Message: msg}
}

func NewInvalidArgumentsError(msg string) *Error {
	return &Error{Kind: KindInvalidArguments, Message: msg}
}

func NewRateLimitedError(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// KindOf returns the kind of err if it is a domain error, or
// KindUnexpected otherwise.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}
