package session

import (
	"encoding/json"

	"github.com/mfelder/liveline/internal/ratelimit"
	"github.com/mfelder/liveline/internal/types"
)

type createDirectChannelArgs struct {
	UserId int `json:"user_id"`
}

type createGroupChannelArgs struct {
	Name    string `json:"name"`
	Members []int  `json:"members"`
}

type renameChannelArgs struct {
	Channel int    `json:"channel"`
	Name    string `json:"name"`
}

type setChannelDescriptionArgs struct {
	Channel     int    `json:"channel"`
	Description string `json:"description"`
}

type kickMemberArgs struct {
	Channel int `json:"channel"`
	UserId  int `json:"user_id"`
}

type channelListResult struct {
	Channels []types.Channel `json:"channels"`
}

func (d *Dispatcher) channelActions() []Action {
	return []Action{
		{
			Name:    "create_direct_channel",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleCreateDirectChannel,
		},
		{
			Name:    "create_group_channel",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleCreateGroupChannel,
		},
		{
			Name:    "rename_channel",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleRenameChannel,
		},
		{
			Name:    "set_channel_description",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleSetChannelDescription,
		},
		{
			Name:    "kick_member",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleKickMember,
		},
		{
			Name:    "get_channels",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleGetChannels,
		},
	}
}

func (d *Dispatcher) handleCreateDirectChannel(c *Client, payload json.RawMessage) (any, error) {
	var args createDirectChannelArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	return d.channels.CreateDirect(c.user.Id, args.UserId)
}

func (d *Dispatcher) handleCreateGroupChannel(c *Client, payload json.RawMessage) (any, error) {
	var args createGroupChannelArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	return d.channels.CreateGroup(c.user.Id, args.Members, args.Name)
}

func (d *Dispatcher) handleRenameChannel(c *Client, payload json.RawMessage) (any, error) {
	var args renameChannelArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	if err := d.channels.Rename(args.Channel, args.Name, c.user.Id); err != nil {
		return nil, err
	}

	return args, nil
}

func (d *Dispatcher) handleSetChannelDescription(c *Client, payload json.RawMessage) (any, error) {
	var args setChannelDescriptionArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	if err := d.channels.SetDescription(args.Channel, args.Description, c.user.Id); err != nil {
		return nil, err
	}

	return args, nil
}

func (d *Dispatcher) handleKickMember(c *Client, payload json.RawMessage) (any, error) {
	var args kickMemberArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	if err := d.channels.RemoveMember(args.Channel, args.UserId, c.user.Id); err != nil {
		return nil, err
	}

	return args, nil
}

func (d *Dispatcher) handleGetChannels(c *Client, _ json.RawMessage) (any, error) {
	list, err := d.channels.ListForUser(c.user.Id)
	if err != nil {
		return nil, err
	}

	return channelListResult{Channels: list}, nil
}
