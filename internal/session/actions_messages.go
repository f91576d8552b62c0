package session

import (
	"encoding/json"

	"github.com/mfelder/liveline/internal/ratelimit"
	"github.com/mfelder/liveline/internal/stats"
	"github.com/mfelder/liveline/internal/types"
)

type sendMessageArgs struct {
	Channel int    `json:"channel"`
	Message string `json:"message"`
}

type getMessagesArgs struct {
	Channel int `json:"channel"`
	Page    int `json:"page"`
}

type deleteMessageArgs struct {
	MessageId string `json:"message_id"`
}

type startTypingArgs struct {
	Channel int `json:"channel"`
}

type messagePageResult struct {
	Channel  int             `json:"channel"`
	Page     int             `json:"page"`
	Messages []types.Message `json:"messages"`
}

func (d *Dispatcher) messageActions() []Action {
	return []Action{
		{
			Name:    "send_message",
			Class:   ratelimit.ClassMessage,
			Handler: d.handleSendMessage,
		},
		{
			Name:    "get_messages",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleGetMessages,
		},
		{
			Name:    "delete_message",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleDeleteMessage,
		},
		{
			Name:    "start_typing",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleStartTyping,
		},
	}
}

func (d *Dispatcher) handleSendMessage(c *Client, payload json.RawMessage) (any, error) {
	var args sendMessageArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	msg, err := d.messages.Send(c.user.Id, args.Channel, args.Message)
	if err != nil {
		return nil, err
	}

	d.stats.Incr(stats.MessagesSent)
	return msg, nil
}

func (d *Dispatcher) handleGetMessages(c *Client, payload json.RawMessage) (any, error) {
	var args getMessagesArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	page, err := d.messages.Page(c.user.Id, args.Channel, args.Page)
	if err != nil {
		return nil, err
	}

	return messagePageResult{
		Channel:  args.Channel,
		Page:     args.Page,
		Messages: page,
	}, nil
}

func (d *Dispatcher) handleDeleteMessage(c *Client, payload json.RawMessage) (any, error) {
	var args deleteMessageArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	if err := d.messages.Delete(args.MessageId, c.user.Id); err != nil {
		return nil, err
	}

	return deleteMessageArgs{MessageId: args.MessageId}, nil
}

func (d *Dispatcher) handleStartTyping(c *Client, payload json.RawMessage) (any, error) {
	var args startTypingArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	if err := d.messages.StartTyping(c.user.Id, args.Channel); err != nil {
		return nil, err
	}

	return startTypingArgs{Channel: args.Channel}, nil
}
