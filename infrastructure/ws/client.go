package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrAlreadyAuthenticated = errors.New("connection already authenticated")

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufSize    = 256
)

// UserClient is one live socket connection. It starts unauthenticated; the
// hub binds it to a user id exactly once, and there is no way back except
// disconnecting.
type UserClient struct {
	Id   string
	hub  IHub
	conn *websocket.Conn
	send chan []byte
	log  *zap.SugaredLogger

	mu     sync.RWMutex
	userId string
}

func NewClient(hub IHub, conn *websocket.Conn, log *zap.SugaredLogger) *UserClient {
	return &UserClient{
		Id:   uuid.New().String(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufSize),
		log:  log,
	}
}

// UserId returns the bound user id, or "" while unauthenticated.
func (c *UserClient) UserId() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userId
}

func (c *UserClient) Authenticated() bool {
	return c.UserId() != ""
}

// bind is called by the hub under its own lock; it only guards the field.
func (c *UserClient) bind(userId string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userId != "" {
		return ErrAlreadyAuthenticated
	}
	c.userId = userId
	return nil
}

// Enqueue offers a payload to this connection without blocking; it is
// dropped if the send buffer is full.
func (c *UserClient) Enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

// ReadPump reads inbound frames and hands them to handler until the
// connection drops, then unregisters the client.
func (c *UserClient) ReadPump(handler func(data []byte)) {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warnw("socket read", "connId", c.Id, "error", err)
			}
			return
		}
		handler(data)
	}
}

// WritePump drains the send channel to the socket and keeps the connection
// alive with pings.
func (c *UserClient) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
