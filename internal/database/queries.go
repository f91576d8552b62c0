package database

import (
	"time"
)

func (db *PgRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
	)

	return a, err
}

func (db *PgRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

// Friendships are stored once per pair with the smaller id first.
func (db *PgRepository) CreateFriendship(accountId, friendId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO friendships (account_a, account_b, created_at) "+
			"VALUES (LEAST($1, $2), GREATEST($1, $2), $3)",
		accountId,
		friendId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgRepository) AreFriends(accountId, friendId int) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM friendships "+
			"WHERE account_a = LEAST($1, $2) AND account_b = GREATEST($1, $2))",
		accountId,
		friendId,
	)

	var exists bool
	err := row.Scan(&exists)

	return exists, err
}

func (db *PgRepository) ListFriends(accountId int) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.email FROM accounts a "+
			"JOIN friendships f ON (f.account_a = $1 AND f.account_b = a.id) "+
			"OR (f.account_b = $1 AND f.account_a = a.id)",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Id, &a.Username, &a.EmailAddress); err != nil {
			return nil, err
		}
		friends = append(friends, a)
	}

	return friends, rows.Err()
}

func (db *PgRepository) CreateChannel(params CreateChannelParams) (Channel, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Channel{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		"INSERT INTO channels (external_id, kind, name, description, owner_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, external_id, kind, name, description, owner_id, created_at",
		params.ExternalId,
		params.Kind,
		params.Name,
		params.Description,
		params.OwnerId,
		time.Now().UTC(),
	)

	var c Channel
	if err := row.Scan(
		&c.Id,
		&c.ExternalId,
		&c.Kind,
		&c.Name,
		&c.Description,
		&c.OwnerId,
		&c.CreatedAt,
	); err != nil {
		return Channel{}, err
	}

	for _, memberId := range params.MemberIds {
		if _, err := tx.Exec(
			"INSERT INTO channel_members (channel_id, account_id, created_at) VALUES ($1, $2, $3)",
			c.Id,
			memberId,
			time.Now().UTC(),
		); err != nil {
			return Channel{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Channel{}, err
	}

	c.MemberIds = append([]int(nil), params.MemberIds...)
	return c, nil
}

func (db *PgRepository) getChannelMembers(channelId int) ([]int, error) {
	rows, err := db.conn.Query(
		"SELECT account_id FROM channel_members WHERE channel_id = $1",
		channelId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}

	return members, rows.Err()
}

func (db *PgRepository) GetChannelById(channelId int) (Channel, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, kind, name, description, owner_id, created_at, updated_at FROM channels "+
			"WHERE id = $1 LIMIT 1",
		channelId,
	)

	var c Channel
	if err := row.Scan(
		&c.Id,
		&c.ExternalId,
		&c.Kind,
		&c.Name,
		&c.Description,
		&c.OwnerId,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Channel{}, err
	}

	members, err := db.getChannelMembers(c.Id)
	if err != nil {
		return Channel{}, err
	}
	c.MemberIds = members

	return c, nil
}

func (db *PgRepository) GetDirectChannelByPair(accountId, friendId int) (Channel, error) {
	row := db.conn.QueryRow(
		"SELECT c.id, c.external_id, c.kind, c.name, c.description, c.owner_id, c.created_at, c.updated_at "+
			"FROM channels c "+
			"JOIN channel_members ma ON ma.channel_id = c.id AND ma.account_id = $1 "+
			"JOIN channel_members mb ON mb.channel_id = c.id AND mb.account_id = $2 "+
			"WHERE c.kind = $3 LIMIT 1",
		accountId,
		friendId,
		ChannelKindDirect,
	)

	var c Channel
	if err := row.Scan(
		&c.Id,
		&c.ExternalId,
		&c.Kind,
		&c.Name,
		&c.Description,
		&c.OwnerId,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Channel{}, err
	}

	c.MemberIds = []int{accountId, friendId}
	return c, nil
}

func (db *PgRepository) ListChannelsForAccount(accountId int) ([]Channel, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.external_id, c.kind, c.name, c.description, c.owner_id, c.created_at, c.updated_at "+
			"FROM channels c "+
			"JOIN channel_members m ON m.channel_id = c.id "+
			"WHERE m.account_id = $1",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(
			&c.Id,
			&c.ExternalId,
			&c.Kind,
			&c.Name,
			&c.Description,
			&c.OwnerId,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range channels {
		members, err := db.getChannelMembers(channels[i].Id)
		if err != nil {
			return nil, err
		}
		channels[i].MemberIds = members
	}

	return channels, nil
}

func (db *PgRepository) UpdateChannelName(channelId int, name string) error {
	_, err := db.conn.Exec(
		"UPDATE channels SET name = $2, updated_at = $3 WHERE id = $1",
		channelId,
		name,
		time.Now().UTC(),
	)

	return err
}

func (db *PgRepository) UpdateChannelDescription(channelId int, description string) error {
	_, err := db.conn.Exec(
		"UPDATE channels SET description = $2, updated_at = $3 WHERE id = $1",
		channelId,
		description,
		time.Now().UTC(),
	)

	return err
}

func (db *PgRepository) RemoveChannelMember(channelId, accountId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM channel_members WHERE channel_id = $1 AND account_id = $2",
		channelId,
		accountId,
	)

	return err
}

func (db *PgRepository) CreateMessage(msg Message) error {
	_, err := db.conn.Exec(
		"INSERT INTO messages (id, channel_id, author_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5)",
		msg.Id,
		msg.ChannelId,
		msg.AuthorId,
		msg.Content,
		msg.CreatedAt,
	)

	return err
}

func (db *PgRepository) GetMessageById(messageId string) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, channel_id, author_id, content, created_at FROM messages "+
			"WHERE id = $1 LIMIT 1",
		messageId,
	)

	var m Message
	err := row.Scan(
		&m.Id,
		&m.ChannelId,
		&m.AuthorId,
		&m.Content,
		&m.CreatedAt,
	)

	return m, err
}

// GetMessagePage returns messages newest first; callers reverse for
// oldest-first presentation.
func (db *PgRepository) GetMessagePage(channelId, offset, limit int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, channel_id, author_id, content, created_at FROM messages "+
			"WHERE channel_id = $1 ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3",
		channelId,
		offset,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.Id,
			&m.ChannelId,
			&m.AuthorId,
			&m.Content,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (db *PgRepository) DeleteMessage(messageId string) error {
	_, err := db.conn.Exec(
		"DELETE FROM messages WHERE id = $1",
		messageId,
	)

	return err
}

func (db *PgRepository) CountMessages(channelId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE channel_id = $1",
		channelId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

func (db *PgRepository) CreateNotification(n Notification) error {
	_, err := db.conn.Exec(
		"INSERT INTO notifications (id, account_id, message, read, created_at) "+
			"VALUES ($1, $2, $3, $4, $5)",
		n.Id,
		n.AccountId,
		n.Message,
		n.Read,
		n.CreatedAt,
	)

	return err
}

func (db *PgRepository) GetNotificationById(notificationId string) (Notification, error) {
	row := db.conn.QueryRow(
		"SELECT id, account_id, message, read, created_at FROM notifications "+
			"WHERE id = $1 LIMIT 1",
		notificationId,
	)

	var n Notification
	err := row.Scan(
		&n.Id,
		&n.AccountId,
		&n.Message,
		&n.Read,
		&n.CreatedAt,
	)

	return n, err
}

func (db *PgRepository) ListRecentNotifications(accountId, limit int) ([]Notification, error) {
	return db.listNotifications(
		"SELECT id, account_id, message, read, created_at FROM notifications "+
			"WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2",
		accountId,
		limit,
	)
}

func (db *PgRepository) ListUnreadNotifications(accountId, limit int) ([]Notification, error) {
	return db.listNotifications(
		"SELECT id, account_id, message, read, created_at FROM notifications "+
			"WHERE account_id = $1 AND read = FALSE ORDER BY created_at DESC LIMIT $2",
		accountId,
		limit,
	)
}

func (db *PgRepository) listNotifications(query string, accountId, limit int) ([]Notification, error) {
	rows, err := db.conn.Query(query, accountId, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.Id,
			&n.AccountId,
			&n.Message,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (db *PgRepository) SetNotificationRead(notificationId string, read bool) error {
	_, err := db.conn.Exec(
		"UPDATE notifications SET read = $2 WHERE id = $1",
		notificationId,
		read,
	)

	return err
}

func (db *PgRepository) MarkAllNotificationsRead(accountId int) error {
	_, err := db.conn.Exec(
		"UPDATE notifications SET read = TRUE WHERE account_id = $1",
		accountId,
	)

	return err
}

func (db *PgRepository) DeleteNotification(notificationId string) error {
	_, err := db.conn.Exec(
		"DELETE FROM notifications WHERE id = $1",
		notificationId,
	)

	return err
}

func (db *PgRepository) DeleteAllNotifications(accountId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM notifications WHERE account_id = $1",
		accountId,
	)

	return err
}
