package database

type Repository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	CreateFriendship(accountId, friendId int) error
	AreFriends(accountId, friendId int) (bool, error)
	ListFriends(accountId int) ([]Account, error)
	CreateChannel(params CreateChannelParams) (Channel, error)
	GetChannelById(channelId int) (Channel, error)
	GetDirectChannelByPair(accountId, friendId int) (Channel, error)
	ListChannelsForAccount(accountId int) ([]Channel, error)
	UpdateChannelName(channelId int, name string) error
	UpdateChannelDescription(channelId int, description string) error
	RemoveChannelMember(channelId, accountId int) error
	CreateMessage(msg Message) error
	GetMessageById(messageId string) (Message, error)
	GetMessagePage(channelId, offset, limit int) ([]Message, error)
	DeleteMessage(messageId string) error
	CountMessages(channelId int) (int, error)
	CreateNotification(n Notification) error
	GetNotificationById(notificationId string) (Notification, error)
	ListRecentNotifications(accountId, limit int) ([]Notification, error)
	ListUnreadNotifications(accountId, limit int) ([]Notification, error)
	SetNotificationRead(notificationId string, read bool) error
	MarkAllNotificationsRead(accountId int) error
	DeleteNotification(notificationId string) error
	DeleteAllNotifications(accountId int) error
}
