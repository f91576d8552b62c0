// Package presence tracks which users currently hold a live connection
// and provides best-effort push to them. Delivery is at-most-once:
// there is no queuing and no confirmation.
package presence

import (
	"log"
	"sync"

	"github.com/samber/lo"

	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/types"
)

const (
	EventFriendOnline  = "FRIEND_ONLINE"
	EventFriendOffline = "FRIEND_OFFLINE"
)

// Handle is the outbound delivery side of a live connection. Queue
// reports false when the frame was dropped.
type Handle interface {
	Queue(event types.ServerEvent) bool
}

// FriendDirectory is the external collaborator used to compute the
// audience for online/offline broadcasts.
type FriendDirectory interface {
	ListFriends(accountId int) ([]database.Account, error)
}

type FriendPresenceChange struct {
	User          types.User `json:"user"`
	Online        bool       `json:"online"`
	OnlineFriends int        `json:"online_friends"`
}

type Registry struct {
	mu      sync.RWMutex
	handles map[int]Handle
	friends FriendDirectory
	log     *log.Logger
}

func NewRegistry(friends FriendDirectory, logger *log.Logger) *Registry {
	return &Registry{
		handles: make(map[int]Handle),
		friends: friends,
		log:     logger,
	}
}

// SetOnline registers the delivery handle for a user and notifies each
// online friend. A second connection for the same user overwrites the
// previous handle: last writer wins, there is no multi-device fan-out.
func (r *Registry) SetOnline(user types.User, h Handle) {
	r.mu.Lock()
	r.handles[user.Id] = h
	r.mu.Unlock()

	r.broadcastToFriends(user, true)
}

// SetOffline removes the user's handle and notifies each online
// friend. Calling it for a user that is not online is a no-op for the
// registry but still recomputes friend counts on the broadcast.
func (r *Registry) SetOffline(user types.User) {
	r.mu.Lock()
	delete(r.handles, user.Id)
	r.mu.Unlock()

	r.broadcastToFriends(user, false)
}

// Push sends an event to the user's current handle if one exists.
// Silently drops otherwise.
func (r *Registry) Push(userId int, event types.ServerEvent) bool {
	r.mu.RLock()
	h, ok := r.handles[userId]
	r.mu.RUnlock()

	if !ok {
		return false
	}

	return h.Queue(event)
}

func (r *Registry) IsOnline(userId int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.handles[userId]
	return ok
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.handles)
}

// OnlineFriendCount returns how many of the user's friends currently
// hold a live connection.
func (r *Registry) OnlineFriendCount(accountId int) int {
	friends, err := r.friends.ListFriends(accountId)
	if err != nil {
		r.log.Println("ListFriends:", err)
		return 0
	}

	return lo.CountBy(friends, func(f database.Account) bool {
		return r.IsOnline(f.Id)
	})
}

func (r *Registry) broadcastToFriends(user types.User, online bool) {
	friends, err := r.friends.ListFriends(user.Id)
	if err != nil {
		r.log.Println("ListFriends:", err)
		return
	}

	eventType := EventFriendOffline
	if online {
		eventType = EventFriendOnline
	}

	for _, friend := range friends {
		if !r.IsOnline(friend.Id) {
			continue
		}

		r.Push(friend.Id, types.ServerEvent{
			Type: eventType,
			Response: FriendPresenceChange{
				User:          types.User{Id: user.Id, Username: user.Username},
				Online:        online,
				OnlineFriends: r.OnlineFriendCount(friend.Id),
			},
		})
	}
}
