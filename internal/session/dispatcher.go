package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"

	"github.com/mfelder/liveline/internal/channels"
	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/messages"
	"github.com/mfelder/liveline/internal/notifications"
	"github.com/mfelder/liveline/internal/presence"
	"github.com/mfelder/liveline/internal/ratelimit"
	"github.com/mfelder/liveline/internal/stats"
	"github.com/mfelder/liveline/internal/types"
)

// Version is reported in the hello frame on connect.
const Version = "1.0.0"

const userIdClaim = "user-id"

// FatalError closes the connection with an explicit close code and
// reason. Handlers return it for non-recoverable protocol conditions;
// everything else stays on the connection.
type FatalError struct {
	Code   int
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s (%d)", e.Reason, e.Code)
}

// Dispatcher owns every live connection. It authenticates sessions,
// resolves inbound frames to registered actions, rate limits them and
// routes fan-out through the presence registry.
type Dispatcher struct {
	log           *log.Logger
	db            database.Repository
	registry      *presence.Registry
	actions       *Registry
	limiter       *ratelimit.Limiter
	channels      *channels.Store
	messages      *messages.Store
	notifications *notifications.Dispatcher
	stats         stats.StatsProvider
	signingKey    []byte

	clients     map[*Client]struct{}
	clientsLock sync.Mutex
}

type Deps struct {
	Log           *log.Logger
	DB            database.Repository
	Presence      *presence.Registry
	Limiter       *ratelimit.Limiter
	Channels      *channels.Store
	Messages      *messages.Store
	Notifications *notifications.Dispatcher
	Stats         stats.StatsProvider
	SigningKey    []byte
}

func NewDispatcher(deps Deps) (*Dispatcher, error) {
	d := &Dispatcher{
		log:           deps.Log,
		db:            deps.DB,
		registry:      deps.Presence,
		limiter:       deps.Limiter,
		channels:      deps.Channels,
		messages:      deps.Messages,
		notifications: deps.Notifications,
		stats:         deps.Stats,
		signingKey:    deps.SigningKey,
		clients:       make(map[*Client]struct{}),
	}

	actions, err := NewActionRegistry(
		d.defaultActions(),
		d.messageActions(),
		d.channelActions(),
		d.notificationActions(),
	)
	if err != nil {
		return nil, fmt.Errorf("build action registry: %w", err)
	}
	d.actions = actions

	return d, nil
}

// HandleConn takes ownership of an upgraded connection: it sends the
// hello frame and runs the read pump until the connection dies.
func (d *Dispatcher) HandleConn(conn *websocket.Conn) {
	client := newClient(conn, d, d.log)
	d.addClient(client)
	d.stats.Incr(stats.LiveConnections)

	client.Queue(helloEvent(Version))

	go client.Write()
	client.Read()

	d.stats.Decr(stats.LiveConnections)
}

func (d *Dispatcher) OnlineCount() int {
	return d.registry.OnlineCount()
}

// Shutdown stops every live connection.
func (d *Dispatcher) Shutdown() {
	d.clientsLock.Lock()
	defer d.clientsLock.Unlock()

	d.log.Println("stopping live connections")
	for c := range d.clients {
		c.stopClient()
		c.conn.Close()
	}
}

// handleAuthFrame processes an inbound frame from an unauthenticated
// session. Only a "bearer <token>" credential frame is acceptable;
// failures are non-fatal and leave the session unauthenticated.
func (d *Dispatcher) handleAuthFrame(c *Client, raw []byte) {
	frame := string(raw)
	token, ok := strings.CutPrefix(frame, "bearer ")
	if !ok {
		c.Queue(errorEvent("", types.NewAuthenticationError("not authenticated")))
		return
	}

	userId, err := d.verifyToken(token)
	if err != nil {
		d.log.Println("verify token:", err)
		c.Queue(errorEvent("", types.NewAuthenticationError("invalid or expired token")))
		return
	}

	account, err := d.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.Queue(errorEvent("", types.NewAuthenticationError("unknown user")))
			return
		}
		d.log.Println("get account:", err)
		c.Queue(genericFailureEvent(""))
		return
	}

	c.user = types.User{
		Id:           account.Id,
		Username:     account.Username,
		EmailAddress: account.EmailAddress,
	}
	c.state = stateAuthenticated

	// registration also broadcasts "friend online" to online friends
	d.registry.SetOnline(c.user, c)
	d.stats.Incr(stats.AuthenticatedSessions)

	c.Queue(authenticatedEvent(c.user))
}

// handleActionFrame resolves and executes one structured frame from an
// authenticated session. It returns a FatalError only for protocol
// malformation; every other outcome produces exactly one outbound
// frame.
func (d *Dispatcher) handleActionFrame(c *Client, raw []byte) *FatalError {
	var frame ActionFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return &FatalError{
			Code:   websocket.CloseInvalidFramePayloadData,
			Reason: "malformed payload",
		}
	}
	if frame.Action == "" {
		return &FatalError{
			Code:   websocket.ClosePolicyViolation,
			Reason: "missing action",
		}
	}

	action, ok := d.actions.Lookup(frame.Action)
	if !ok {
		c.Queue(errorEvent(frame.Action, types.NewInvalidArgumentsError("unknown action")))
		return nil
	}

	if allowed, retryAfter := d.limiter.Allow(action.Class, strconv.Itoa(c.user.Id)); !allowed {
		c.Queue(errorEvent(action.Name, types.NewRateLimitedError(retryAfter)))
		return nil
	}

	result, err := d.invoke(action, c, raw)
	if err != nil {
		var fatal *FatalError
		if errors.As(err, &fatal) {
			return fatal
		}

		if types.KindOf(err) != types.KindUnexpected {
			c.Queue(errorEvent(action.Name, err))
			return nil
		}

		d.log.Printf("action %q: %v", action.Name, err)
		c.Queue(genericFailureEvent(action.Name))
		return nil
	}

	responseType := action.Name
	if action.ResponseType != "" {
		responseType = action.ResponseType
	}
	c.Queue(types.ServerEvent{
		Type:     responseType,
		Response: result,
	})

	return nil
}

// invoke shields the connection from handler panics; an unexpected
// panic is reported like any other unexpected error.
func (d *Dispatcher) invoke(action Action, c *Client, raw []byte) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in action %q: %v", action.Name, r)
		}
	}()

	return action.Handler(c, raw)
}

func (d *Dispatcher) verifyToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return d.signingKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return 0, fmt.Errorf("invalid user id claim")
	}

	return int(userId), nil
}

func (d *Dispatcher) addClient(c *Client) {
	d.clientsLock.Lock()
	defer d.clientsLock.Unlock()
	d.clients[c] = struct{}{}
}

func (d *Dispatcher) removeClient(c *Client) {
	d.clientsLock.Lock()
	defer d.clientsLock.Unlock()
	delete(d.clients, c)
}
