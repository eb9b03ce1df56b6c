package http

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// HubConfig holds per-connection tuning.
type HubConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     256,
	}
}

type client struct {
	id    string
	ws    *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
	rooms map[string]bool // guarded by Hub.mu
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Hub tracks live WebSocket connections and their room memberships. It implements app.Transport:
// every method only enqueues, and a client whose buffer is full is dropped instead of waited on.
type Hub struct {
	config HubConfig

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client
}

func NewHub(config HubConfig) *Hub {
	return &Hub{
		config:  config,
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]*client),
	}
}

func (h *Hub) register(id string, ws *websocket.Conn) *client {
	c := &client{
		id:    id,
		ws:    ws,
		send:  make(chan []byte, h.config.SendBuffer),
		done:  make(chan struct{}),
		rooms: make(map[string]bool),
	}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	for room := range c.rooms {
		delete(h.rooms[room], c.id)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) Broadcast(room, event string, payload any) {
	data, err := json.Marshal(outboundMessage[any]{Type: event, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("room", room).Str("event", event).Msg("failed to marshal event for broadcast")
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, data)
	}
}

func (h *Hub) Send(conn, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}
	data, err := json.Marshal(outboundMessage[any]{Type: event, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("conn", conn).Str("event", event).Msg("failed to marshal event")
		return
	}
	h.enqueue(c, data)
}

func (h *Hub) Join(conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*client)
	}
	h.rooms[room][conn] = c
	c.rooms[room] = true
}

func (h *Hub) Leave(conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.rooms[room][conn]; ok {
		delete(c.rooms, room)
		delete(h.rooms[room], conn)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
}

// CloseRoom drops every membership of room. Connections stay open so clients can create or join
// another room.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.rooms[room] {
		delete(c.rooms, room)
	}
	delete(h.rooms, room)
}

// Members reports how many connections are in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) enqueue(c *client, data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		// Connection is slow/dead, close it; its read loop reports the disconnect.
		log.Warn().Str("conn", c.id).Msg("connection send buffer full, closing connection")
		c.close()
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("failed to send ping")
				return
			}
		}
	}
}
