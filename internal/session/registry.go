package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mfelder/liveline/internal/ratelimit"
)

// HandlerFunc executes one action for an authenticated client. The
// returned value becomes the response payload of the success frame.
type HandlerFunc func(c *Client, payload json.RawMessage) (any, error)

type Action struct {
	Name    string
	Class   ratelimit.Class
	Handler HandlerFunc

	// ResponseType overrides the type of the success frame; it
	// defaults to the action name.
	ResponseType string
}

// Registry is the flat action table, built once at startup and
// immutable afterwards. Lookup is case-insensitive.
type Registry struct {
	actions map[string]Action
}

// NewActionRegistry assembles the table from per-feature action
// groups. A duplicate identifier is a configuration error.
func NewActionRegistry(groups ...[]Action) (*Registry, error) {
	actions := make(map[string]Action)
	for _, group := range groups {
		for _, action := range group {
			key := strings.ToLower(action.Name)
			if key == "" {
				return nil, fmt.Errorf("action with empty identifier")
			}
			if _, exists := actions[key]; exists {
				return nil, fmt.Errorf("action %q registered twice", key)
			}
			if action.Handler == nil {
				return nil, fmt.Errorf("action %q has no handler", key)
			}
			actions[key] = action
		}
	}

	return &Registry{actions: actions}, nil
}

func (r *Registry) Lookup(name string) (Action, bool) {
	action, ok := r.actions[strings.ToLower(name)]
	return action, ok
}

func (r *Registry) Len() int {
	return len(r.actions)
}
