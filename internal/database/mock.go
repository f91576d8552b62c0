package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) CreateFriendship(accountId, friendId int) error {
	args := m.Called(accountId, friendId)
	return args.Error(0)
}
func (m *MockRepository) AreFriends(accountId, friendId int) (bool, error) {
	args := m.Called(accountId, friendId)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) ListFriends(accountId int) ([]Account, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockRepository) CreateChannel(params CreateChannelParams) (Channel, error) {
	args := m.Called(params)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockRepository) GetChannelById(channelId int) (Channel, error) {
	args := m.Called(channelId)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockRepository) GetDirectChannelByPair(accountId, friendId int) (Channel, error) {
	args := m.Called(accountId, friendId)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockRepository) ListChannelsForAccount(accountId int) ([]Channel, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Channel), args.Error(1)
}
func (m *MockRepository) UpdateChannelName(channelId int, name string) error {
	args := m.Called(channelId, name)
	return args.Error(0)
}
func (m *MockRepository) UpdateChannelDescription(channelId int, description string) error {
	args := m.Called(channelId, description)
	return args.Error(0)
}
func (m *MockRepository) RemoveChannelMember(channelId, accountId int) error {
	args := m.Called(channelId, accountId)
	return args.Error(0)
}
func (m *MockRepository) CreateMessage(msg Message) error {
	args := m.Called(msg)
	return args.Error(0)
}
func (m *MockRepository) GetMessageById(messageId string) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessagePage(channelId, offset, limit int) ([]Message, error) {
	args := m.Called(channelId, offset, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) DeleteMessage(messageId string) error {
	args := m.Called(messageId)
	return args.Error(0)
}
func (m *MockRepository) CountMessages(channelId int) (int, error) {
	args := m.Called(channelId)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) CreateNotification(n Notification) error {
	args := m.Called(n)
	return args.Error(0)
}
func (m *MockRepository) GetNotificationById(notificationId string) (Notification, error) {
	args := m.Called(notificationId)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockRepository) ListRecentNotifications(accountId, limit int) ([]Notification, error) {
	args := m.Called(accountId, limit)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockRepository) ListUnreadNotifications(accountId, limit int) ([]Notification, error) {
	args := m.Called(accountId, limit)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockRepository) SetNotificationRead(notificationId string, read bool) error {
	args := m.Called(notificationId, read)
	return args.Error(0)
}
func (m *MockRepository) MarkAllNotificationsRead(accountId int) error {
	args := m.Called(accountId)
	return args.Error(0)
}
func (m *MockRepository) DeleteNotification(notificationId string) error {
	args := m.Called(notificationId)
	return args.Error(0)
}
func (m *MockRepository) DeleteAllNotifications(accountId int) error {
	args := m.Called(accountId)
	return args.Error(0)
}
