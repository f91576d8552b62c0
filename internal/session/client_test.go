package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/types"
)

func TestQueueDropsWhenBufferFull(t *testing.T) {
	d := newTestDispatcher(t, &database.MockRepository{}, generousLimits())
	c := newClient(nil, d, d.log)

	for i := 0; i < cap(c.send); i++ {
		require.True(t, c.Queue(types.ServerEvent{Type: "pong"}))
	}

	assert.False(t, c.Queue(types.ServerEvent{Type: "pong"}))
}

func TestCleanupRunsExactlyOnce(t *testing.T) {
	db := &database.MockRepository{}
	db.On("ListFriends", 3).Return([]database.Account{}, nil)

	d := newTestDispatcher(t, db, generousLimits())
	c := newAuthedClient(d, types.User{Id: 3})
	d.addClient(c)
	d.registry.SetOnline(c.user, c)
	require.True(t, d.registry.IsOnline(3))

	c.cleanup()

	assert.False(t, d.registry.IsOnline(3))
	assert.Equal(t, stateClosed, c.state)

	c.cleanup()

	// one broadcast for going online, one for going offline
	db.AssertNumberOfCalls(t, "ListFriends", 2)
}
