// Package notifications persists one-off notifications and pushes them
// to the owning user's live connection when present.
package notifications

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/presence"
	"github.com/mfelder/liveline/internal/types"
)

const EventNotification = "NOTIFICATION"

// RecentLimit caps every retrieval window to the most recent records.
const RecentLimit = 50

type Dispatcher struct {
	db       database.Repository
	registry *presence.Registry
	log      *log.Logger
}

func NewDispatcher(db database.Repository, registry *presence.Registry, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		db:       db,
		registry: registry,
		log:      logger,
	}
}

// Post persists an unread notification for the user and pushes it live
// if they are connected. The push is best-effort; the stored record is
// the source of truth.
func (d *Dispatcher) Post(userId int, text string) (types.Notification, error) {
	if text == "" {
		return types.Notification{}, types.NewInvalidArgumentsError("notification text cannot be empty")
	}

	row := database.Notification{
		Id:        uuid.NewString(),
		AccountId: userId,
		Message:   text,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}

	if err := d.db.CreateNotification(row); err != nil {
		return types.Notification{}, fmt.Errorf("create notification: %w", err)
	}

	out := toNotification(row)
	d.registry.Push(userId, types.ServerEvent{
		Type:     EventNotification,
		Response: out,
	})

	return out, nil
}

func (d *Dispatcher) GetRecent(userId int) ([]types.Notification, error) {
	rows, err := d.db.ListRecentNotifications(userId, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return lo.Map(rows, func(n database.Notification, _ int) types.Notification {
		return toNotification(n)
	}), nil
}

func (d *Dispatcher) GetUnread(userId int) ([]types.Notification, error) {
	rows, err := d.db.ListUnreadNotifications(userId, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}

	return lo.Map(rows, func(n database.Notification, _ int) types.Notification {
		return toNotification(n)
	}), nil
}

func (d *Dispatcher) MarkRead(notificationId string, requesterId int) error {
	return d.setRead(notificationId, requesterId, true)
}

func (d *Dispatcher) MarkUnread(notificationId string, requesterId int) error {
	return d.setRead(notificationId, requesterId, false)
}

func (d *Dispatcher) MarkAllRead(userId int) error {
	if err := d.db.MarkAllNotificationsRead(userId); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (d *Dispatcher) DeleteOne(notificationId string, requesterId int) error {
	if _, err := d.owned(notificationId, requesterId); err != nil {
		return err
	}

	if err := d.db.DeleteNotification(notificationId); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

func (d *Dispatcher) DeleteAll(userId int) error {
	if err := d.db.DeleteAllNotifications(userId); err != nil {
		return fmt.Errorf("delete all notifications: %w", err)
	}
	return nil
}

func (d *Dispatcher) setRead(notificationId string, requesterId int, read bool) error {
	if _, err := d.owned(notificationId, requesterId); err != nil {
		return err
	}

	if err := d.db.SetNotificationRead(notificationId, read); err != nil {
		return fmt.Errorf("set notification read: %w", err)
	}
	return nil
}

func (d *Dispatcher) owned(notificationId string, requesterId int) (database.Notification, error) {
	row, err := d.db.GetNotificationById(notificationId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Notification{}, types.NewNotFoundError("notification not found")
		}
		return database.Notification{}, fmt.Errorf("get notification: %w", err)
	}

	if row.AccountId != requesterId {
		return database.Notification{}, types.NewNoPermissionError("notification belongs to another user")
	}

	return row, nil
}

func toNotification(n database.Notification) types.Notification {
	return types.Notification{
		Id:        n.Id,
		UserId:    n.AccountId,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
