// internal/realtime/hub.go
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusgig/campusgig-backend/internal/metrics"
)

// Frame is the JSON envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *WebSocketConn
	Send   chan []byte
}

func NewClient(userID uuid.UUID, conn *WebSocketConn) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
}

// Hub tracks open connections and the rooms they joined.
type Hub struct {
	clients   map[string]*Client
	rooms     map[string]map[string]struct{}
	joined    map[string]map[string]struct{} // client id -> rooms
	broadcast chan []byte
	quit      chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	onEvict   func(*Client)
	log       *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:   make(map[string]*Client),
		rooms:     make(map[string]map[string]struct{}),
		joined:    make(map[string]map[string]struct{}),
		broadcast: make(chan []byte, 256),
		quit:      make(chan struct{}),
		log:       log.Named("hub"),
	}
}

func encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

func (h *Hub) RegisterClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	metrics.OpenConnections.Inc()
	h.log.Debug("client registered", zap.String("client", client.ID), zap.Stringer("user", client.UserID))
}

// UnregisterClient drops the client from every room and closes its send channel.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client.ID)
}

func (h *Hub) removeLocked(id string) {
	old, ok := h.clients[id]
	if !ok {
		return
	}
	for room := range h.joined[id] {
		delete(h.rooms[room], id)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, id)
	delete(h.clients, id)
	close(old.Send)
	metrics.OpenConnections.Dec()
	h.log.Debug("client unregistered", zap.String("client", id))
}

func (h *Hub) Join(clientID, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[clientID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][clientID] = struct{}{}
	if h.joined[clientID] == nil {
		h.joined[clientID] = make(map[string]struct{})
	}
	h.joined[clientID][room] = struct{}{}
}

func (h *Hub) Leave(clientID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], clientID)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	delete(h.joined[clientID], room)
}

// RoomSize is the number of connections joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastRoom sends the event to every connection in room and returns how
// many were reached.
func (h *Hub) BroadcastRoom(room, event string, data interface{}) int {
	payload, err := encode(event, data)
	if err != nil {
		h.log.Error("marshal room payload", zap.String("event", event), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for id := range h.rooms[room] {
		if c, ok := h.clients[id]; ok && h.offer(c, payload) {
			sent++
		}
	}
	return sent
}

// SendTo delivers the event to one connection. It reports false when the
// connection is gone or its buffer is full.
func (h *Hub) SendTo(clientID, event string, data interface{}) bool {
	payload, err := encode(event, data)
	if err != nil {
		h.log.Error("marshal payload", zap.String("event", event), zap.Error(err))
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	return h.offer(c, payload)
}

// BroadcastAll queues the event for every connection; Run delivers it.
func (h *Hub) BroadcastAll(event string, data interface{}) {
	payload, err := encode(event, data)
	if err != nil {
		h.log.Error("marshal broadcast payload", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.quit:
	}
}

func (h *Hub) offer(c *Client, payload []byte) bool {
	select {
	case c.Send <- payload:
		return true
	default:
		// slow consumer, skip rather than block
		return false
	}
}

// OnEvict sets the callback run for every client Run drops for a full send
// buffer. It runs on its own goroutine, after the client has left the hub.
func (h *Hub) OnEvict(fn func(*Client)) {
	h.mu.Lock()
	h.onEvict = fn
	h.mu.Unlock()
}

func (h *Hub) Run() {
	for {
		select {
		case message := <-h.broadcast:
			var evicted []*Client
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.Send <- message:
				default:
					h.removeLocked(id)
					evicted = append(evicted, client)
				}
			}
			onEvict := h.onEvict
			h.mu.Unlock()

			for _, c := range evicted {
				h.log.Info("evicted slow client", zap.String("client", c.ID), zap.Stringer("user", c.UserID))
				// onEvict may broadcast, which needs Run free to drain.
				if onEvict != nil {
					go onEvict(c)
				}
			}
		case <-h.quit:
			return
		}
	}
}

// Stop ends Run and closes every connection's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		h.mu.Lock()
		defer h.mu.Unlock()
		for id := range h.clients {
			h.removeLocked(id)
		}
	})
}
