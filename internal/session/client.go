package session

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mfelder/liveline/internal/stats"
	"github.com/mfelder/liveline/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
	stateClosed
)

// Client is one live connection. Its state machine is owned
// exclusively by the read pump; the write pump only drains the send
// channel.
type Client struct {
	conn       *websocket.Conn
	dispatcher *Dispatcher
	log        *log.Logger

	send chan types.ServerEvent
	stop chan struct{}

	stopOnce    sync.Once
	cleanupOnce sync.Once

	state     sessionState
	user      types.User
	createdAt time.Time
}

func newClient(conn *websocket.Conn, d *Dispatcher, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		dispatcher: d,
		log:        l,
		send:       make(chan types.ServerEvent, 256),
		stop:       make(chan struct{}),
		state:      stateUnauthenticated,
		createdAt:  time.Now().UTC(),
	}
}

// Queue enqueues an outbound frame, reporting false when the send
// buffer is full and the frame was dropped.
func (c *Client) Queue(event types.ServerEvent) bool {
	select {
	case c.send <- event:
	default:
		c.log.Println("dropping frame, send buffer full")
		return false
	}

	return true
}

func (c *Client) UserId() int {
	return c.user.Id
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(event)
			if err != nil {
				c.log.Println("failed to serialize frame:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}

			c.dispatcher.stats.Incr(stats.EventsDelivered)
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var fatal *FatalError
		switch c.state {
		case stateUnauthenticated:
			c.dispatcher.handleAuthFrame(c, raw)
		case stateAuthenticated:
			fatal = c.dispatcher.handleActionFrame(c, raw)
		}

		if fatal != nil {
			c.closeWithReason(fatal.Code, fatal.Reason)
			break
		}
	}
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// closeWithReason sends a close frame with an explicit code and
// human-readable reason before tearing the connection down.
func (c *Client) closeWithReason(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.log.Printf("write close frame: %v", err)
	}
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup runs exactly once on every exit path: presence
// deregistration (with the friend-offline broadcast) must not be
// skipped or doubled regardless of how the connection ended.
func (c *Client) cleanup() {
	c.cleanupOnce.Do(func() {
		if c.state == stateAuthenticated {
			c.dispatcher.registry.SetOffline(c.user)
			c.dispatcher.stats.Decr(stats.AuthenticatedSessions)
		}
		c.state = stateClosed

		c.dispatcher.removeClient(c)
		c.stopClient()
	})
}
