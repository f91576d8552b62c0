package types

import (
	"time"
)

// SystemUserId is the reserved author id for system messages that
// narrate channel-state changes.
const SystemUserId = 0

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type ChannelType int

const (
	ChannelDirect ChannelType = iota
	ChannelGroup
)

func (t ChannelType) String() string {
	switch t {
	case ChannelDirect:
		return "direct"
	case ChannelGroup:
		return "group"
	default:
		return "unknown"
	}
}

func (t ChannelType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type Channel struct {
	Id          int         `json:"id"`
	ExternalId  string      `json:"external_id"`
	Type        ChannelType `json:"type"`
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	OwnerId     int         `json:"owner_id,omitempty"`
	Members     []int       `json:"members"`
	CreatedAt   time.Time   `json:"created_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at,omitempty"`
}

// Receivers returns the audience for fan-out: the full member set. For
// direct channels this is always the two fixed members.
func (c Channel) Receivers() []int {
	receivers := make([]int, len(c.Members))
	copy(receivers, c.Members)
	return receivers
}

func (c Channel) HasMember(userId int) bool {
	for _, id := range c.Members {
		if id == userId {
			return true
		}
	}
	return false
}

type Message struct {
	Id        string    `json:"id"`
	ChannelId int       `json:"channel_id"`
	AuthorId  int       `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Reactions []string  `json:"reactions,omitempty"`
}

// System reports whether the message was authored by the reserved
// system identity.
func (m Message) System() bool {
	return m.AuthorId == SystemUserId
}

type Notification struct {
	Id        string    `json:"id"`
	UserId    int       `json:"user_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ServerEvent is the single outbound frame shape: every push and every
// action response is one of these.
type ServerEvent struct {
	Type     string `json:"type"`
	Response any    `json:"response,omitempty"`
}
