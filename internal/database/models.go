package database

import "time"

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	ChannelKindDirect = 0
	ChannelKindGroup  = 1
)

type Channel struct {
	Id          int
	ExternalId  string
	Kind        int
	Name        string
	Description string
	OwnerId     int
	MemberIds   []int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Message struct {
	Id        string
	ChannelId int
	AuthorId  int
	Content   string
	CreatedAt time.Time
}

type Notification struct {
	Id        string
	AccountId int
	Message   string
	Read      bool
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateChannelParams struct {
	ExternalId  string
	Kind        int
	Name        string
	Description string
	OwnerId     int
	MemberIds   []int
}
