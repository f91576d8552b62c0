// Package messages owns message persistence, per-channel ordering and
// fan-out of incoming-message events to the channel's live receivers.
package messages

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/presence"
	"github.com/mfelder/liveline/internal/ratelimit"
	"github.com/mfelder/liveline/internal/types"
)

const (
	EventIncomingMessage = "INCOMING_MESSAGE"
	EventTyping          = "TYPING"

	// PageSize is fixed; pages are 1-indexed.
	PageSize = 100

	maxContentLength = 2000
)

type IncomingMessage struct {
	Channel string        `json:"channel"`
	Message types.Message `json:"message"`
}

type TypingEvent struct {
	Channel string `json:"channel"`
	UserId  int    `json:"user_id"`
}

type Store struct {
	db       database.Repository
	registry *presence.Registry
	limiter  *ratelimit.Limiter
	log      *log.Logger

	typingMu sync.Mutex
	// channel id -> set of user ids with an active typing indicator
	typing map[int]map[int]struct{}
}

func NewStore(db database.Repository, registry *presence.Registry, limiter *ratelimit.Limiter, logger *log.Logger) *Store {
	return &Store{
		db:       db,
		registry: registry,
		limiter:  limiter,
		log:      logger,
		typing:   make(map[int]map[int]struct{}),
	}
}

// Send persists a message and fans it out to the channel's live
// receivers. User-authored sends are rate limited and exclude the
// sender from the fan-out; system messages reach the full receiver
// set. The send also clears any typing indicator the sender had set.
func (s *Store) Send(senderId, channelId int, content string) (types.Message, error) {
	if content == "" {
		return types.Message{}, types.NewInvalidArgumentsError("message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return types.Message{}, types.NewInvalidArgumentsError(
			fmt.Sprintf("message content exceeds %d characters", maxContentLength))
	}

	if senderId != types.SystemUserId {
		ok, retryAfter := s.limiter.Allow(ratelimit.ClassMessage, strconv.Itoa(senderId))
		if !ok {
			return types.Message{}, types.NewRateLimitedError(retryAfter)
		}
	}

	channel, err := s.db.GetChannelById(channelId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, types.NewNotFoundError("channel not found")
		}
		return types.Message{}, fmt.Errorf("get channel: %w", err)
	}

	if senderId != types.SystemUserId && !hasMember(channel, senderId) {
		return types.Message{}, types.NewNoPermissionError("not a member of this channel")
	}

	msg := database.Message{
		Id:        uuid.NewString(),
		ChannelId: channel.Id,
		AuthorId:  senderId,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.CreateMessage(msg); err != nil {
		return types.Message{}, fmt.Errorf("create message: %w", err)
	}

	s.clearTyping(senderId, channel.Id)

	receivers := channel.MemberIds
	if senderId != types.SystemUserId {
		receivers = lo.Without(receivers, senderId)
	}

	out := toMessage(msg)
	for _, userId := range receivers {
		s.registry.Push(userId, types.ServerEvent{
			Type: EventIncomingMessage,
			Response: IncomingMessage{
				Channel: channel.ExternalId,
				Message: out,
			},
		})
	}

	return out, nil
}

// Page returns one page of channel history, oldest first within the
// page. Pages are counted from the newest message: page 1 holds the
// most recent PageSize messages. A page beyond the last one is
// NotFound.
func (s *Store) Page(requesterId, channelId, page int) ([]types.Message, error) {
	if page < 1 {
		return nil, types.NewInvalidArgumentsError("page numbers start at 1")
	}

	channel, err := s.db.GetChannelById(channelId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFoundError("channel not found")
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}

	if !hasMember(channel, requesterId) {
		return nil, types.NewNoPermissionError("not a member of this channel")
	}

	pages, err := s.PageCount(channel.Id)
	if err != nil {
		return nil, err
	}
	if page > pages {
		return nil, types.NewNotFoundError(fmt.Sprintf("page %d does not exist", page))
	}

	rows, err := s.db.GetMessagePage(channel.Id, (page-1)*PageSize, PageSize)
	if err != nil {
		return nil, fmt.Errorf("get message page: %w", err)
	}

	// query is newest first, presentation is oldest first
	msgs := make([]types.Message, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = toMessage(row)
	}

	return msgs, nil
}

// Delete removes a message. Only the author may delete their own
// messages.
func (s *Store) Delete(messageId string, requesterId int) error {
	msg, err := s.db.GetMessageById(messageId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.NewNotFoundError("message not found")
		}
		return fmt.Errorf("get message: %w", err)
	}

	if msg.AuthorId != requesterId {
		return types.NewNoPermissionError("only the author can delete a message")
	}

	if err := s.db.DeleteMessage(messageId); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

func (s *Store) Count(channelId int) (int, error) {
	count, err := s.db.CountMessages(channelId)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// PageCount is the message count divided by PageSize, rounded up.
func (s *Store) PageCount(channelId int) (int, error) {
	count, err := s.Count(channelId)
	if err != nil {
		return 0, err
	}
	return (count + PageSize - 1) / PageSize, nil
}

// StartTyping sets the user's typing indicator on a channel and fans
// it out to the other receivers. The indicator is cleared by the
// user's next send.
func (s *Store) StartTyping(userId, channelId int) error {
	channel, err := s.db.GetChannelById(channelId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.NewNotFoundError("channel not found")
		}
		return fmt.Errorf("get channel: %w", err)
	}

	if !hasMember(channel, userId) {
		return types.NewNoPermissionError("not a member of this channel")
	}

	s.typingMu.Lock()
	if s.typing[channel.Id] == nil {
		s.typing[channel.Id] = make(map[int]struct{})
	}
	alreadyTyping := false
	if _, ok := s.typing[channel.Id][userId]; ok {
		alreadyTyping = true
	}
	s.typing[channel.Id][userId] = struct{}{}
	s.typingMu.Unlock()

	if alreadyTyping {
		return nil
	}

	for _, memberId := range lo.Without(channel.MemberIds, userId) {
		s.registry.Push(memberId, types.ServerEvent{
			Type: EventTyping,
			Response: TypingEvent{
				Channel: channel.ExternalId,
				UserId:  userId,
			},
		})
	}

	return nil
}

// IsTyping reports whether the user currently has a typing indicator
// set on the channel.
func (s *Store) IsTyping(userId, channelId int) bool {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()

	_, ok := s.typing[channelId][userId]
	return ok
}

func (s *Store) clearTyping(userId, channelId int) {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()

	if users, ok := s.typing[channelId]; ok {
		delete(users, userId)
		if len(users) == 0 {
			delete(s.typing, channelId)
		}
	}
}

func hasMember(c database.Channel, userId int) bool {
	for _, id := range c.MemberIds {
		if id == userId {
			return true
		}
	}
	return false
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:        m.Id,
		ChannelId: m.ChannelId,
		AuthorId:  m.AuthorId,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
