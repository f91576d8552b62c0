package session

import (
	"encoding/json"

	"github.com/mfelder/liveline/internal/ratelimit"
)

type pongPayload struct {
	OnlineUsers int `json:"online_users"`
}

func (d *Dispatcher) defaultActions() []Action {
	return []Action{
		{
			Name:         "ping",
			Class:        ratelimit.ClassDefault,
			ResponseType: "pong",
			Handler:      d.handlePing,
		},
	}
}

func (d *Dispatcher) handlePing(_ *Client, _ json.RawMessage) (any, error) {
	return pongPayload{OnlineUsers: d.registry.OnlineCount()}, nil
}
