package ws

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrNotAuthenticated = errors.New("connection is not authenticated")

// Hub is the connection registry and fan-out core: connection → user
// bindings, per-chat rooms, and room broadcasts. A user may hold several
// simultaneous connections (multi-device); the registry is a multimap.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*UserClient            // conn id → client
	byUser  map[string]map[string]*UserClient // user id → conn id → client
	rooms   map[string]map[string]*UserClient // room id → conn id → client

	Register   chan *UserClient
	Unregister chan *UserClient

	log                *zap.SugaredLogger
	onClientUnregister func(client *UserClient) error
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[string]*UserClient),
		byUser:     make(map[string]map[string]*UserClient),
		rooms:      make(map[string]map[string]*UserClient),
		Register:   make(chan *UserClient),
		Unregister: make(chan *UserClient),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

			if h.onClientUnregister != nil {
				if err := h.onClientUnregister(client); err != nil {
					h.log.Warnw("client unregister callback", "error", err)
				}
			}
		}
	}
}

func (h *Hub) RegisterClient(client *UserClient) {
	h.Register <- client
}

func (h *Hub) UnregisterClient(client *UserClient) {
	h.Unregister <- client
}

func (h *Hub) addClient(client *UserClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.Id] = client
	h.log.Debugw("connection registered", "connId", client.Id)
}

// removeClient drops every room membership and the user binding of one
// connection. Other connections of the same user keep their memberships.
func (h *Hub) removeClient(client *UserClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.Id]; !ok {
		return
	}
	delete(h.clients, client.Id)

	if userId := client.UserId(); userId != "" {
		if conns, ok := h.byUser[userId]; ok {
			delete(conns, client.Id)
			if len(conns) == 0 {
				delete(h.byUser, userId)
			}
		}
	}

	for roomId, members := range h.rooms {
		delete(members, client.Id)
		if len(members) == 0 {
			delete(h.rooms, roomId)
		}
	}

	close(client.send)
	h.log.Debugw("connection unregistered", "connId", client.Id)
}

func (h *Hub) Authenticate(client *UserClient, userId string) error {
	if err := client.bind(userId); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byUser[userId]; !ok {
		h.byUser[userId] = make(map[string]*UserClient)
	}
	h.byUser[userId][client.Id] = client

	h.log.Infow("connection authenticated", "connId", client.Id, "userId", userId)
	return nil
}

// JoinRoom is idempotent. Unauthenticated connections are refused.
func (h *Hub) JoinRoom(client *UserClient, roomId string) error {
	if !client.Authenticated() {
		return ErrNotAuthenticated
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomId]; !ok {
		h.rooms[roomId] = make(map[string]*UserClient)
	}
	h.rooms[roomId][client.Id] = client
	return nil
}

func (h *Hub) LeaveRoom(client *UserClient, roomId string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomId]; ok {
		delete(members, client.Id)
		if len(members) == 0 {
			delete(h.rooms, roomId)
		}
	}
}

func (h *Hub) BroadcastToRoom(roomId string, payload []byte, exclude *UserClient) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.rooms[roomId] {
		if exclude != nil && client.Id == exclude.Id {
			continue
		}
		select {
		case client.send <- payload:
		default:
			h.log.Warnw("send buffer full, dropping event", "connId", client.Id, "roomId", roomId)
		}
	}
}

func (h *Hub) SendToUser(userId string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.byUser[userId] {
		select {
		case client.send <- payload:
		default:
			h.log.Warnw("send buffer full, dropping event", "connId", client.Id, "userId", userId)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SetOnClientUnregister(callback func(client *UserClient) error) {
	h.onClientUnregister = callback
}
