package session

import (
	"errors"

	"github.com/mfelder/liveline/internal/types"
)

// Outbound frame types that are not action responses or fan-out
// events.
const (
	EventHello         = "hello"
	EventAuthenticated = "authenticated"
	EventError         = "error"
)

// ActionFrame is the structured inbound payload after authentication.
// Anything without a usable action field is a protocol error.
type ActionFrame struct {
	Action string `json:"action"`
}

type HelloPayload struct {
	Version string `json:"version"`
}

type AuthenticatedPayload struct {
	User types.User `json:"user"`
}

// ErrorPayload is the body of every non-fatal error frame. Action
// correlates the error to the inbound action that caused it; it is
// empty for pre-auth errors.
type ErrorPayload struct {
	Action       string `json:"action,omitempty"`
	Kind         string `json:"kind"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

func helloEvent(version string) types.ServerEvent {
	return types.ServerEvent{
		Type:     EventHello,
		Response: HelloPayload{Version: version},
	}
}

func authenticatedEvent(user types.User) types.ServerEvent {
	return types.ServerEvent{
		Type:     EventAuthenticated,
		Response: AuthenticatedPayload{User: user},
	}
}

func errorEvent(action string, err error) types.ServerEvent {
	payload := ErrorPayload{
		Action:  action,
		Kind:    types.KindOf(err).String(),
		Message: err.Error(),
	}

	var de *types.Error
	if errors.As(err, &de) && de.RetryAfter > 0 {
		payload.RetryAfterMs = de.RetryAfter.Milliseconds()
	}

	return types.ServerEvent{
		Type:     EventError,
		Response: payload,
	}
}

// genericFailureEvent hides unexpected error details from the client.
func genericFailureEvent(action string) types.ServerEvent {
	return types.ServerEvent{
		Type: EventError,
		Response: ErrorPayload{
			Action:  action,
			Kind:    types.KindUnexpected.String(),
			Message: "internal error",
		},
	}
}
