// Package realtime maintains websocket subscriptions to job and user rooms
// and broadcasts lifecycle events to them.
package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browser clients connect from the SPA origin
	},
}

// Event names pushed to subscribers.
const (
	EventJobUpdated       = "job_updated"
	EventHandoffRequested = "handoff_requested"
	EventHandoffResolved  = "handoff_resolved"
)

// UserRoom is the topic carrying every job event for one account.
func UserRoom(userID uuid.UUID) string { return fmt.Sprintf("user:%s", userID) }

// JobRoom is the topic carrying events for a single job.
func JobRoom(jobID uuid.UUID) string { return fmt.Sprintf("job:%s", jobID) }

type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type subscribeMsg struct {
	Action string `json:"action"` // join_user | join_job | leave_job
	ID     string `json:"id"`
}

// Hub tracks connected clients and their room memberships. Safe for
// concurrent use; a write mutex per connection serializes frames.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*websocket.Conn]struct{}
	writeMu map[*websocket.Conn]*sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*websocket.Conn]struct{}),
		writeMu: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeHTTP upgrades the connection and processes join/leave messages until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.writeMu[conn] = &sync.Mutex{}
	h.mu.Unlock()

	defer h.removeConn(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.handleSubscribe(conn, msg)
	}
}

func (h *Hub) handleSubscribe(conn *websocket.Conn, msg subscribeMsg) {
	id, err := uuid.Parse(msg.ID)
	if err != nil {
		return
	}
	switch msg.Action {
	case "join_user":
		h.join(conn, UserRoom(id))
	case "join_job":
		h.join(conn, JobRoom(id))
	case "leave_job":
		h.leave(conn, JobRoom(id))
	}
}

func (h *Hub) join(conn *websocket.Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*websocket.Conn]struct{})
	}
	h.rooms[room][conn] = struct{}{}
}

func (h *Hub) leave(conn *websocket.Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], conn)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) removeConn(conn *websocket.Conn) {
	h.mu.Lock()
	for room, conns := range h.rooms {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.writeMu, conn)
	h.mu.Unlock()
	conn.Close()
}

// Publish sends one event to every subscriber of room. Slow or broken
// connections are dropped rather than blocking the caller.
func (h *Hub) Publish(room, event string, payload any) {
	data, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		slog.Error("marshal realtime event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.mu.RLock()
		mu := h.writeMu[conn]
		h.mu.RUnlock()
		if mu == nil {
			continue
		}

		mu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := conn.WriteMessage(websocket.TextMessage, data)
		mu.Unlock()

		if err != nil {
			slog.Warn("dropping websocket client", "room", room, "error", err)
			h.removeConn(conn)
		}
	}
}

// RoomSize reports current subscriber count for a room. Used by tests.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
