// Package channels owns direct and group channel records and their
// membership rules. Mutations commit to storage first; pushes to live
// members are best-effort afterwards.
package channels

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/teris-io/shortid"

	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/messages"
	"github.com/mfelder/liveline/internal/presence"
	"github.com/mfelder/liveline/internal/types"
)

const (
	EventChannelCreated = "CHANNEL_CREATED"
	EventChannelUpdated = "CHANNEL_UPDATED"
	EventMemberKicked   = "MEMBER_KICKED"
)

type ChannelChange struct {
	Channel types.Channel `json:"channel"`
}

type MemberKicked struct {
	Channel string `json:"channel"`
	UserId  int    `json:"user_id"`
}

type groupNameInput struct {
	Name string `validate:"required,min=1,max=64"`
}

type descriptionInput struct {
	Description string `validate:"max=256"`
}

type Store struct {
	db       database.Repository
	registry *presence.Registry
	messages *messages.Store
	validate *validator.Validate
	log      *log.Logger

	generateShortId func() (string, error)
}

func NewStore(db database.Repository, registry *presence.Registry, msgs *messages.Store, logger *log.Logger) *Store {
	return &Store{
		db:              db,
		registry:        registry,
		messages:        msgs,
		validate:        validator.New(),
		log:             logger,
		generateShortId: shortid.Generate,
	}
}

// CreateDirect creates the single direct channel for an unordered user
// pair. The two users must be mutual friends; a second direct channel
// for the same pair is AlreadyExists.
func (s *Store) CreateDirect(userA, userB int) (types.Channel, error) {
	if userA == userB {
		return types.Channel{}, types.NewInvalidArgumentsError("cannot open a direct channel with yourself")
	}

	friends, err := s.db.AreFriends(userA, userB)
	if err != nil {
		return types.Channel{}, fmt.Errorf("check friendship: %w", err)
	}
	if !friends {
		return types.Channel{}, types.NewNoPermissionError("direct channels require mutual friendship")
	}

	if _, err := s.db.GetDirectChannelByPair(userA, userB); err == nil {
		return types.Channel{}, types.NewAlreadyExistsError("a direct channel for this pair already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return types.Channel{}, fmt.Errorf("get direct channel: %w", err)
	}

	sid, err := s.generateShortId()
	if err != nil {
		return types.Channel{}, fmt.Errorf("generate short id: %w", err)
	}

	channel, err := s.db.CreateChannel(database.CreateChannelParams{
		ExternalId: sid,
		Kind:       database.ChannelKindDirect,
		MemberIds:  []int{userA, userB},
	})
	if err != nil {
		return types.Channel{}, fmt.Errorf("create channel: %w", err)
	}

	out := toChannel(channel)
	s.registry.Push(userB, types.ServerEvent{
		Type:     EventChannelCreated,
		Response: ChannelChange{Channel: out},
	})

	return out, nil
}

// CreateGroup creates a group channel owned by the creator. Every
// listed member must be a current friend of the creator; the creator
// is always part of the final member set even if omitted.
func (s *Store) CreateGroup(creatorId int, memberIds []int, name string) (types.Channel, error) {
	if err := s.validate.Struct(groupNameInput{Name: name}); err != nil {
		return types.Channel{}, types.NewInvalidArgumentsError("group name must be between 1 and 64 characters")
	}

	for _, memberId := range lo.Uniq(memberIds) {
		if memberId == creatorId {
			continue
		}
		friends, err := s.db.AreFriends(creatorId, memberId)
		if err != nil {
			return types.Channel{}, fmt.Errorf("check friendship: %w", err)
		}
		if !friends {
			return types.Channel{}, types.NewNoPermissionError("group members must be friends of the creator")
		}
	}

	sid, err := s.generateShortId()
	if err != nil {
		return types.Channel{}, fmt.Errorf("generate short id: %w", err)
	}

	members := lo.Uniq(append([]int{creatorId}, memberIds...))
	channel, err := s.db.CreateChannel(database.CreateChannelParams{
		ExternalId: sid,
		Kind:       database.ChannelKindGroup,
		Name:       name,
		OwnerId:    creatorId,
		MemberIds:  members,
	})
	if err != nil {
		return types.Channel{}, fmt.Errorf("create channel: %w", err)
	}

	out := toChannel(channel)
	for _, memberId := range lo.Without(members, creatorId) {
		s.registry.Push(memberId, types.ServerEvent{
			Type:     EventChannelCreated,
			Response: ChannelChange{Channel: out},
		})
	}

	return out, nil
}

// Rename changes a group channel's name. Owner only.
func (s *Store) Rename(channelId int, newName string, requesterId int) error {
	channel, err := s.groupOwnedBy(channelId, requesterId)
	if err != nil {
		return err
	}

	if err := s.validate.Struct(groupNameInput{Name: newName}); err != nil {
		return types.NewInvalidArgumentsError("group name must be between 1 and 64 characters")
	}

	if err := s.db.UpdateChannelName(channel.Id, newName); err != nil {
		return fmt.Errorf("update channel name: %w", err)
	}

	s.narrate(channel.Id, fmt.Sprintf("channel renamed to %q", newName))

	channel.Name = newName
	s.pushToMembers(channel, types.ServerEvent{
		Type:     EventChannelUpdated,
		Response: ChannelChange{Channel: toChannel(channel)},
	})

	return nil
}

// SetDescription changes a group channel's description. Owner only.
func (s *Store) SetDescription(channelId int, description string, requesterId int) error {
	channel, err := s.groupOwnedBy(channelId, requesterId)
	if err != nil {
		return err
	}

	if err := s.validate.Struct(descriptionInput{Description: description}); err != nil {
		return types.NewInvalidArgumentsError("description cannot exceed 256 characters")
	}

	if err := s.db.UpdateChannelDescription(channel.Id, description); err != nil {
		return fmt.Errorf("update channel description: %w", err)
	}

	s.narrate(channel.Id, "channel description updated")

	channel.Description = description
	s.pushToMembers(channel, types.ServerEvent{
		Type:     EventChannelUpdated,
		Response: ChannelChange{Channel: toChannel(channel)},
	})

	return nil
}

// RemoveMember kicks a member from a group channel. Owner only; the
// owner cannot remove themselves this way. The removed member is
// excluded from the resulting fan-out.
func (s *Store) RemoveMember(channelId, targetId, requesterId int) error {
	channel, err := s.groupOwnedBy(channelId, requesterId)
	if err != nil {
		return err
	}

	if targetId == requesterId {
		return types.NewNoPermissionError("the owner cannot remove themselves")
	}

	if !lo.Contains(channel.MemberIds, targetId) {
		return types.NewNotFoundError("user is not a member of this channel")
	}

	if err := s.db.RemoveChannelMember(channel.Id, targetId); err != nil {
		return fmt.Errorf("remove channel member: %w", err)
	}

	// the system message re-reads the channel from storage, so it only
	// reaches the remaining members
	s.narrate(channel.Id, fmt.Sprintf("user %d was removed from the channel", targetId))

	channel.MemberIds = lo.Without(channel.MemberIds, targetId)
	s.pushToMembers(channel, types.ServerEvent{
		Type: EventMemberKicked,
		Response: MemberKicked{
			Channel: channel.ExternalId,
			UserId:  targetId,
		},
	})

	return nil
}

// Get returns a channel the requester is a member of.
func (s *Store) Get(channelId, requesterId int) (types.Channel, error) {
	channel, err := s.db.GetChannelById(channelId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Channel{}, types.NewNotFoundError("channel not found")
		}
		return types.Channel{}, fmt.Errorf("get channel: %w", err)
	}

	if !lo.Contains(channel.MemberIds, requesterId) {
		return types.Channel{}, types.NewNoPermissionError("not a member of this channel")
	}

	return toChannel(channel), nil
}

// ListForUser returns every channel the user is a member of.
func (s *Store) ListForUser(userId int) ([]types.Channel, error) {
	rows, err := s.db.ListChannelsForAccount(userId)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	return lo.Map(rows, func(c database.Channel, _ int) types.Channel {
		return toChannel(c)
	}), nil
}

// Receivers returns the fan-out audience for a channel: the member set
// for groups, the fixed user pair for direct channels.
func (s *Store) Receivers(channelId int) ([]int, error) {
	channel, err := s.db.GetChannelById(channelId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFoundError("channel not found")
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}

	return toChannel(channel).Receivers(), nil
}

func (s *Store) groupOwnedBy(channelId, requesterId int) (database.Channel, error) {
	channel, err := s.db.GetChannelById(channelId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Channel{}, types.NewNotFoundError("channel not found")
		}
		return database.Channel{}, fmt.Errorf("get channel: %w", err)
	}

	if channel.Kind != database.ChannelKindGroup {
		return database.Channel{}, types.NewInvalidArgumentsError("operation only applies to group channels")
	}

	if channel.OwnerId != requesterId {
		return database.Channel{}, types.NewNoPermissionError("only the channel owner can do this")
	}

	return channel, nil
}

func (s *Store) narrate(channelId int, text string) {
	if _, err := s.messages.Send(types.SystemUserId, channelId, text); err != nil {
		s.log.Println("system message:", err)
	}
}

func (s *Store) pushToMembers(channel database.Channel, event types.ServerEvent) {
	for _, memberId := range channel.MemberIds {
		s.registry.Push(memberId, event)
	}
}

func toChannel(c database.Channel) types.Channel {
	channelType := types.ChannelDirect
	if c.Kind == database.ChannelKindGroup {
		channelType = types.ChannelGroup
	}

	return types.Channel{
		Id:          c.Id,
		ExternalId:  c.ExternalId,
		Type:        channelType,
		Name:        c.Name,
		Description: c.Description,
		OwnerId:     c.OwnerId,
		Members:     append([]int(nil), c.MemberIds...),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
