package session

import (
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mfelder/liveline/internal/channels"
	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/messages"
	"github.com/mfelder/liveline/internal/notifications"
	"github.com/mfelder/liveline/internal/presence"
	"github.com/mfelder/liveline/internal/ratelimit"
	"github.com/mfelder/liveline/internal/stats"
	"github.com/mfelder/liveline/internal/testutil"
	"github.com/mfelder/liveline/internal/types"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func generousLimits() map[ratelimit.Class]ratelimit.Limit {
	return map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassDefault:  {Capacity: 100, RefillInterval: time.Millisecond},
		ratelimit.ClassMessage:  {Capacity: 100, RefillInterval: time.Millisecond},
		ratelimit.ClassExternal: {Capacity: 100, RefillInterval: time.Millisecond},
	}
}

func newTestDispatcher(t *testing.T, db *database.MockRepository, limits map[ratelimit.Class]ratelimit.Limit) *Dispatcher {
	t.Helper()

	logger := testutil.TestLogger(t)
	limiter, err := ratelimit.NewLimiter(limits)
	require.NoError(t, err)

	registry := presence.NewRegistry(db, logger)
	msgs := messages.NewStore(db, registry, limiter, logger)
	chans := channels.NewStore(db, registry, msgs, logger)
	notifs := notifications.NewDispatcher(db, registry, logger)

	statsUpdater := &stats.MockStatsUpdater{}
	statsUpdater.On("Incr", mock.Anything).Maybe()
	statsUpdater.On("Decr", mock.Anything).Maybe()

	d, err := NewDispatcher(Deps{
		Log:           logger,
		DB:            db,
		Presence:      registry,
		Limiter:       limiter,
		Channels:      chans,
		Messages:      msgs,
		Notifications: notifs,
		Stats:         statsUpdater,
		SigningKey:    testSigningKey,
	})
	require.NoError(t, err)

	return d
}

func newAuthedClient(d *Dispatcher, user types.User) *Client {
	c := newClient(nil, d, d.log)
	c.user = user
	c.state = stateAuthenticated
	return c
}

func drainEvents(c *Client) []types.ServerEvent {
	var events []types.ServerEvent
	for {
		select {
		case event := <-c.send:
			events = append(events, event)
		default:
			return events
		}
	}
}

func signToken(t *testing.T, userId int) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	signed, err := token.SignedString(testSigningKey)
	require.NoError(t, err)
	return signed
}

type fakeHandle struct {
	mu     sync.Mutex
	events []types.ServerEvent
}

func (h *fakeHandle) Queue(event types.ServerEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return true
}

func (h *fakeHandle) received() []types.ServerEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.ServerEvent(nil), h.events...)
}

func TestNewDispatcherRegistersAllActions(t *testing.T) {
	d := newTestDispatcher(t, &database.MockRepository{}, generousLimits())
	assert.Equal(t, 18, d.actions.Len())
}

func TestHandleAuthFrame(t *testing.T) {
	t.Run("valid bearer token authenticates the session", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetAccountById", 7).Return(database.Account{Id: 7, Username: "ana"}, nil)
		db.On("ListFriends", 7).Return([]database.Account{}, nil)

		d := newTestDispatcher(t, db, generousLimits())
		c := newClient(nil, d, d.log)

		d.handleAuthFrame(c, []byte("bearer "+signToken(t, 7)))

		assert.Equal(t, stateAuthenticated, c.state)
		assert.Equal(t, 7, c.UserId())
		assert.True(t, d.registry.IsOnline(7))

		events := drainEvents(c)
		require.Len(t, events, 1)
		assert.Equal(t, EventAuthenticated, events[0].Type)
		payload, ok := events[0].Response.(AuthenticatedPayload)
		require.True(t, ok)
		assert.Equal(t, "ana", payload.User.Username)
		db.AssertExpectations(t)
	})

	t.Run("frame without bearer prefix is rejected", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockRepository{}, generousLimits())
		c := newClient(nil, d, d.log)

		d.handleAuthFrame(c, []byte(`{"action":"ping"}`))

		assert.Equal(t, stateUnauthenticated, c.state)
		events := drainEvents(c)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
		payload := events[0].Response.(ErrorPayload)
		assert.Equal(t, types.KindAuthentication.String(), payload.Kind)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockRepository{}, generousLimits())
		c := newClient(nil, d, d.log)

		d.handleAuthFrame(c, []byte("bearer not-a-token"))

		assert.Equal(t, stateUnauthenticated, c.state)
		events := drainEvents(c)
		require.Len(t, events, 1)
		payload := events[0].Response.(ErrorPayload)
		assert.Equal(t, types.KindAuthentication.String(), payload.Kind)
	})

	t.Run("token signed with another key is rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			userIdClaim: 7,
			"exp":       time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("another-signing-key-entirely!!!!"))
		require.NoError(t, err)

		d := newTestDispatcher(t, &database.MockRepository{}, generousLimits())
		c := newClient(nil, d, d.log)

		d.handleAuthFrame(c, []byte("bearer "+signed))

		assert.Equal(t, stateUnauthenticated, c.state)
		assert.False(t, d.registry.IsOnline(7))
	})

	t.Run("unknown user is rejected", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetAccountById", 7).Return(database.Account{}, sql.ErrNoRows)

		d := newTestDispatcher(t, db, generousLimits())
		c := newClient(nil, d, d.log)

		d.handleAuthFrame(c, []byte("bearer "+signToken(t, 7)))

		assert.Equal(t, stateUnauthenticated, c.state)
		events := drainEvents(c)
		require.Len(t, events, 1)
		payload := events[0].Response.(ErrorPayload)
		assert.Equal(t, types.KindAuthentication.String(), payload.Kind)
	})
}

func TestHandleActionFrame(t *testing.T) {
	t.Run("malformed json closes the connection", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockRepository{}, generousLimits())
		c := newAuthedClient(d, types.User{Id: 1})

		fatal := d.handleActionFrame(c, []byte(`{"action":`))

		require.NotNil(t, fatal)
		assert.Equal(t, websocket.CloseInvalidFramePayloadData, fatal.Code)
	})

	t.Run("missing action closes the connection", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockRepository{}, generousLimits())
		c := newAuthedClient(d, types.User{Id: 1})

		fatal := d.handleActionFrame(c, []byte(`{"channel":5}`))

		require.NotNil(t, fatal)
		assert.Equal(t, websocket.ClosePolicyViolation, fatal.Code)
	})

	t.Run("unknown action stays on the connection", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockRepository{}, generousLimits())
		c := newAuthedClient(d, types.User{Id: 1})

		fatal := d.handleActionFrame(c, []byte(`{"action":"warp_core_breach"}`))

		require.Nil(t, fatal)
		events := drainEvents(c)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
		payload := events[0].Response.(ErrorPayload)
		assert.Equal(t, types.KindInvalidArguments.String(), payload.Kind)
	})

	t.Run("exhausted bucket returns rate_limited with retry hint", func(t *testing.T) {
		limits := generousLimits()
		limits[ratelimit.ClassDefault] = ratelimit.Limit{Capacity: 1, RefillInterval: time.Minute}

		d := newTestDispatcher(t, &database.MockRepository{}, limits)
		c := newAuthedClient(d, types.User{Id: 1})

		require.Nil(t, d.handleActionFrame(c, []byte(`{"action":"ping"}`)))
		require.Nil(t, d.handleActionFrame(c, []byte(`{"action":"ping"}`)))

		events := drainEvents(c)
		require.Len(t, events, 2)
		assert.Equal(t, "pong", events[0].Type)
		assert.Equal(t, EventError, events[1].Type)
		payload := events[1].Response.(ErrorPayload)
		assert.Equal(t, types.KindRateLimited.String(), payload.Kind)
		assert.Greater(t, payload.RetryAfterMs, int64(0))
	})

	t.Run("ping responds with pong and the online count", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("ListFriends", 2).Return([]database.Account{}, nil)

		d := newTestDispatcher(t, db, generousLimits())
		d.registry.SetOnline(types.User{Id: 2}, &fakeHandle{})
		c := newAuthedClient(d, types.User{Id: 1})

		require.Nil(t, d.handleActionFrame(c, []byte(`{"action":"ping"}`)))

		events := drainEvents(c)
		require.Len(t, events, 1)
		assert.Equal(t, "pong", events[0].Type)
		assert.Equal(t, pongPayload{OnlineUsers: 1}, events[0].Response)
	})

	t.Run("domain error becomes a structured error frame", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetChannelById", 9).Return(database.Channel{}, sql.ErrNoRows)

		d := newTestDispatcher(t, db, generousLimits())
		c := newAuthedClient(d, types.User{Id: 1})

		fatal := d.handleActionFrame(c, []byte(`{"action":"send_message","channel":9,"message":"hi"}`))

		require.Nil(t, fatal)
		events := drainEvents(c)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
		payload := events[0].Response.(ErrorPayload)
		assert.Equal(t, "send_message", payload.Action)
		assert.Equal(t, types.KindNotFound.String(), payload.Kind)
	})

	t.Run("handler panic is contained", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockRepository{}, generousLimits())
		d.actions, _ = NewActionRegistry([]Action{{
			Name:  "boom",
			Class: ratelimit.ClassDefault,
			Handler: func(_ *Client, _ json.RawMessage) (any, error) {
				panic("kaput")
			},
		}})
		c := newAuthedClient(d, types.User{Id: 1})

		fatal := d.handleActionFrame(c, []byte(`{"action":"boom"}`))

		require.Nil(t, fatal)
		events := drainEvents(c)
		require.Len(t, events, 1)
		payload := events[0].Response.(ErrorPayload)
		assert.Equal(t, types.KindUnexpected.String(), payload.Kind)
	})
}

func TestSendMessageReachesOnlyOtherMembers(t *testing.T) {
	db := &database.MockRepository{}
	db.On("ListFriends", 2).Return([]database.Account{}, nil)
	db.On("GetChannelById", 5).Return(database.Channel{
		Id:         5,
		ExternalId: "c4Xr2",
		Kind:       database.ChannelKindDirect,
		MemberIds:  []int{1, 2},
	}, nil)
	db.On("CreateMessage", mock.AnythingOfType("database.Message")).Return(nil)

	d := newTestDispatcher(t, db, generousLimits())

	recipient := &fakeHandle{}
	d.registry.SetOnline(types.User{Id: 2}, recipient)

	sender := newAuthedClient(d, types.User{Id: 1})
	fatal := d.handleActionFrame(sender, []byte(`{"action":"send_message","channel":5,"message":"hi"}`))
	require.Nil(t, fatal)

	delivered := recipient.received()
	require.Len(t, delivered, 1)
	assert.Equal(t, messages.EventIncomingMessage, delivered[0].Type)
	incoming := delivered[0].Response.(messages.IncomingMessage)
	assert.Equal(t, "c4Xr2", incoming.Channel)
	assert.Equal(t, "hi", incoming.Message.Content)
	assert.Equal(t, 1, incoming.Message.AuthorId)

	senderEvents := drainEvents(sender)
	require.Len(t, senderEvents, 1)
	assert.Equal(t, "send_message", senderEvents[0].Type)
	sent, ok := senderEvents[0].Response.(types.Message)
	require.True(t, ok)
	assert.Equal(t, "hi", sent.Content)
	db.AssertExpectations(t)
}

func TestGetChannelsReturnsMembership(t *testing.T) {
	db := &database.MockRepository{}
	db.On("ListChannelsForAccount", 1).Return([]database.Channel{
		{Id: 5, ExternalId: "a", Kind: database.ChannelKindGroup, Name: "ops", MemberIds: []int{1, 2}},
	}, nil)

	d := newTestDispatcher(t, db, generousLimits())
	c := newAuthedClient(d, types.User{Id: 1})

	fatal := d.handleActionFrame(c, []byte(`{"action":"get_channels"}`))
	require.Nil(t, fatal)

	events := drainEvents(c)
	require.Len(t, events, 1)
	assert.Equal(t, "get_channels", events[0].Type)
	result := events[0].Response.(channelListResult)
	require.Len(t, result.Channels, 1)
	assert.Equal(t, "ops", result.Channels[0].Name)
}

func TestNotificationActions(t *testing.T) {
	t.Run("mark_notification_read", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetNotificationById", "n-1").Return(database.Notification{Id: "n-1", AccountId: 1}, nil)
		db.On("SetNotificationRead", "n-1", true).Return(nil)

		d := newTestDispatcher(t, db, generousLimits())
		c := newAuthedClient(d, types.User{Id: 1})

		fatal := d.handleActionFrame(c, []byte(`{"action":"mark_notification_read","notification_id":"n-1"}`))
		require.Nil(t, fatal)

		events := drainEvents(c)
		require.Len(t, events, 1)
		assert.Equal(t, "mark_notification_read", events[0].Type)
		db.AssertExpectations(t)
	})

	t.Run("another user's notification is not found", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetNotificationById", "n-1").Return(database.Notification{Id: "n-1", AccountId: 9}, nil)

		d := newTestDispatcher(t, db, generousLimits())
		c := newAuthedClient(d, types.User{Id: 1})

		fatal := d.handleActionFrame(c, []byte(`{"action":"delete_notification","notification_id":"n-1"}`))
		require.Nil(t, fatal)

		events := drainEvents(c)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
	})
}
