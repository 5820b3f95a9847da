// Package ws fans editor events out to connected browser clients over
// WebSocket, one room per project, and carries media feedback (timeupdate
// ticks, play results, pointer drags) back into the agent.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event types broadcast to clients.
const (
	EventTimeline    = "timeline"
	EventPlayback    = "playback"
	EventOverlay     = "overlay"
	EventSuggestions = "suggestions"
	EventAnalysis    = "analysis"
	EventExport      = "export"
	EventError       = "error"
	EventPong        = "pong"
)

// Message types clients send in.
const (
	MsgPing       = "ping"
	MsgTimeUpdate = "timeupdate"
	MsgEnded      = "ended"
	MsgPlayResult = "play_result"
	MsgSeek       = "seek"
	MsgPlay       = "play"
	MsgPause      = "pause"
	MsgViewport   = "viewport"
	MsgSourceSize = "source_size"
	MsgDragBegin  = "drag_begin"
	MsgDragMove   = "drag_move"
	MsgDragEnd    = "drag_end"
)

// Message is the wire envelope in both directions.
type Message struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"projectId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type outbound struct {
	projectID string
	payload   []byte
}

// Hub routes broadcast events to the clients of each project room. Clients
// register and unregister through channels serviced by one Run loop, so room
// bookkeeping never races with delivery.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound

	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run services registration and broadcast until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop shuts the hub down and releases every connected client. Safe to
// call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register and Unregister hand the client to the Run loop. Both return
// without effect once the hub is stopped, so lingering connection
// goroutines do not block on a dead loop.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish marshals an event and broadcasts it to the project's room. It
// satisfies the session layer's publisher contract.
func (h *Hub) Publish(projectID, eventType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal event data", "type", eventType, "error", err)
		}
		return
	}
	msg := Message{
		Type:      eventType,
		ProjectID: projectID,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- outbound{projectID: projectID, payload: payload}:
	case <-h.done:
	}
}

// RoomSize reports how many clients are connected to a project's room.
func (h *Hub) RoomSize(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[c.projectID] == nil {
		h.rooms[c.projectID] = make(map[*Client]bool)
	}
	h.rooms[c.projectID][c] = true

	if h.logger != nil {
		h.logger.Info("ws client connected", "project_id", c.projectID, "room_size", len(h.rooms[c.projectID]))
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.projectID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	c.close()
	if len(room) == 0 {
		delete(h.rooms, c.projectID)
	}

	if h.logger != nil {
		h.logger.Info("ws client disconnected", "project_id", c.projectID)
	}
}

// deliver copies the room's client list under a read lock, then sends
// outside it. A client whose buffer is full is dropped rather than allowed
// to stall the room.
func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	room := h.rooms[msg.projectID]
	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg.payload:
		default:
			if h.logger != nil {
				h.logger.Warn("dropping slow ws client", "project_id", msg.projectID)
			}
			h.removeClient(c)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range h.rooms {
		for c := range room {
			c.close()
		}
	}
	h.rooms = make(map[string]map[*Client]bool)
}
