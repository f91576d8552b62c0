package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/testutil"
	"github.com/mfelder/liveline/internal/types"
)

type fakeHandle struct {
	events []types.ServerEvent
}

func (h *fakeHandle) Queue(event types.ServerEvent) bool {
	h.events = append(h.events, event)
	return true
}

func newTestRegistry(t *testing.T, db *database.MockRepository) *Registry {
	return NewRegistry(db, testutil.TestLogger(t))
}

func TestSetOnline_notifiesOnlineFriends(t *testing.T) {
	db := &database.MockRepository{}
	reg := newTestRegistry(t, db)

	alice := types.User{Id: 1, Username: "alice"}
	bob := types.User{Id: 2, Username: "bob"}

	db.On("ListFriends", bob.Id).Return([]database.Account{{Id: alice.Id, Username: alice.Username}}, nil)
	db.On("ListFriends", alice.Id).Return([]database.Account{{Id: bob.Id, Username: bob.Username}}, nil)

	bobHandle := &fakeHandle{}
	reg.SetOnline(bob, bobHandle)
	// bob has no online friends yet, nothing delivered
	assert.Empty(t, bobHandle.events)

	aliceHandle := &fakeHandle{}
	reg.SetOnline(alice, aliceHandle)

	assert.Len(t, bobHandle.events, 1, "expected exactly one friend-online event")
	assert.Equal(t, EventFriendOnline, bobHandle.events[0].Type)

	change := bobHandle.events[0].Response.(FriendPresenceChange)
	assert.Equal(t, alice.Id, change.User.Id)
	assert.True(t, change.Online)
	assert.Equal(t, 1, change.OnlineFriends, "expected bob's online friend count to include alice")
	assert.Empty(t, aliceHandle.events, "the connecting user receives no event for their own arrival")
}

func TestSetOffline_notifiesOnlineFriends(t *testing.T) {
	db := &database.MockRepository{}
	reg := newTestRegistry(t, db)

	alice := types.User{Id: 1, Username: "alice"}
	bob := types.User{Id: 2, Username: "bob"}

	db.On("ListFriends", bob.Id).Return([]database.Account{{Id: alice.Id, Username: alice.Username}}, nil)
	db.On("ListFriends", alice.Id).Return([]database.Account{{Id: bob.Id, Username: bob.Username}}, nil)

	bobHandle := &fakeHandle{}
	reg.SetOnline(bob, bobHandle)
	aliceHandle := &fakeHandle{}
	reg.SetOnline(alice, aliceHandle)
	bobHandle.events = nil

	reg.SetOffline(alice)

	assert.False(t, reg.IsOnline(alice.Id), "expected alice to be reported offline")
	assert.Len(t, bobHandle.events, 1, "expected exactly one friend-offline event")
	assert.Equal(t, EventFriendOffline, bobHandle.events[0].Type)

	change := bobHandle.events[0].Response.(FriendPresenceChange)
	assert.False(t, change.Online)
	assert.Equal(t, 0, change.OnlineFriends, "expected bob's online friend count to drop to zero")
}

func TestSetOnline_lastWriterWins(t *testing.T) {
	db := &database.MockRepository{}
	reg := newTestRegistry(t, db)

	alice := types.User{Id: 1, Username: "alice"}
	db.On("ListFriends", alice.Id).Return([]database.Account{}, nil)

	first := &fakeHandle{}
	second := &fakeHandle{}
	reg.SetOnline(alice, first)
	reg.SetOnline(alice, second)

	assert.Equal(t, 1, reg.OnlineCount(), "expected a single presence entry per user")

	reg.Push(alice.Id, types.ServerEvent{Type: "NOTIFICATION"})
	assert.Empty(t, first.events, "expected the overwritten handle to receive nothing")
	assert.Len(t, second.events, 1, "expected the newest handle to receive the push")
}

func TestPush_dropsWhenOffline(t *testing.T) {
	db := &database.MockRepository{}
	reg := newTestRegistry(t, db)

	delivered := reg.Push(99, types.ServerEvent{Type: "NOTIFICATION"})
	assert.False(t, delivered, "expected push to an offline user to report a drop")
}

func TestOnlineCount(t *testing.T) {
	db := &database.MockRepository{}
	reg := newTestRegistry(t, db)

	db.On("ListFriends", 1).Return([]database.Account{}, nil)
	db.On("ListFriends", 2).Return([]database.Account{}, nil)

	reg.SetOnline(types.User{Id: 1}, &fakeHandle{})
	reg.SetOnline(types.User{Id: 2}, &fakeHandle{})
	assert.Equal(t, 2, reg.OnlineCount())

	reg.SetOffline(types.User{Id: 1})
	assert.Equal(t, 1, reg.OnlineCount())
}
