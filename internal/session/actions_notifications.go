package session

import (
	"encoding/json"

	"github.com/mfelder/liveline/internal/ratelimit"
	"github.com/mfelder/liveline/internal/types"
)

type notificationArgs struct {
	NotificationId string `json:"notification_id"`
}

type notificationListResult struct {
	Notifications []types.Notification `json:"notifications"`
}

func (d *Dispatcher) notificationActions() []Action {
	return []Action{
		{
			Name:    "get_notifications",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleGetNotifications,
		},
		{
			Name:    "get_unread_notifications",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleGetUnreadNotifications,
		},
		{
			Name:    "mark_notification_read",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleMarkNotificationRead,
		},
		{
			Name:    "mark_notification_unread",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleMarkNotificationUnread,
		},
		{
			Name:    "mark_all_notifications_read",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleMarkAllNotificationsRead,
		},
		{
			Name:    "delete_notification",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleDeleteNotification,
		},
		{
			Name:    "delete_all_notifications",
			Class:   ratelimit.ClassDefault,
			Handler: d.handleDeleteAllNotifications,
		},
	}
}

func (d *Dispatcher) handleGetNotifications(c *Client, _ json.RawMessage) (any, error) {
	list, err := d.notifications.GetRecent(c.user.Id)
	if err != nil {
		return nil, err
	}

	return notificationListResult{Notifications: list}, nil
}

func (d *Dispatcher) handleGetUnreadNotifications(c *Client, _ json.RawMessage) (any, error) {
	list, err := d.notifications.GetUnread(c.user.Id)
	if err != nil {
		return nil, err
	}

	return notificationListResult{Notifications: list}, nil
}

func (d *Dispatcher) handleMarkNotificationRead(c *Client, payload json.RawMessage) (any, error) {
	var args notificationArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	if err := d.notifications.MarkRead(args.NotificationId, c.user.Id); err != nil {
		return nil, err
	}

	return args, nil
}

func (d *Dispatcher) handleMarkNotificationUnread(c *Client, payload json.RawMessage) (any, error) {
	var args notificationArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	if err := d.notifications.MarkUnread(args.NotificationId, c.user.Id); err != nil {
		return nil, err
	}

	return args, nil
}

func (d *Dispatcher) handleMarkAllNotificationsRead(c *Client, _ json.RawMessage) (any, error) {
	if err := d.notifications.MarkAllRead(c.user.Id); err != nil {
		return nil, err
	}

	return struct{}{}, nil
}

func (d *Dispatcher) handleDeleteNotification(c *Client, payload json.RawMessage) (any, error) {
	var args notificationArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, types.NewInvalidArgumentsError("malformed arguments")
	}

	if err := d.notifications.DeleteOne(args.NotificationId, c.user.Id); err != nil {
		return nil, err
	}

	return args, nil
}

func (d *Dispatcher) handleDeleteAllNotifications(c *Client, _ json.RawMessage) (any, error) {
	if err := d.notifications.DeleteAll(c.user.Id); err != nil {
		return nil, err
	}

	return struct{}{}, nil
}
