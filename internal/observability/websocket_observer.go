package observability

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// wsMessage is the wire representation of an Event.
type wsMessage struct {
	Type     string `json:"type"`
	AgentID  string `json:"agent_id,omitempty"`
	GraphID  string `json:"graph_id,omitempty"`
	NodeID   string `json:"node_id,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration,omitempty"`
}

func toWireMessage(event Event) wsMessage {
	msg := wsMessage{
		Type:    string(event.Type),
		AgentID: event.AgentID.String(),
		Message: event.Message,
	}
	if event.GraphID != uuid.Nil {
		msg.GraphID = event.GraphID.String()
	}
	if event.NodeID != uuid.Nil {
		msg.NodeID = event.NodeID.String()
	}
	if event.Err != nil {
		msg.Error = event.Err.Error()
	}
	if event.Duration > 0 {
		msg.Duration = event.Duration.String()
	}
	return msg
}

// client is a single live websocket connection registered with a Hub.
type client struct {
	conn *websocket.Conn
	send chan wsMessage
}

// Hub broadcasts kernel Events to every connected websocket client. It
// implements Observer so it can be registered directly with a Manager.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	logger  *slog.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		logger:  logger,
	}
}

// Register begins broadcasting Events to conn, returning a function the
// caller should invoke from its read loop once the connection closes.
func (h *Hub) Register(conn *websocket.Conn) func() {
	c := &client{conn: conn, send: make(chan wsMessage, sendBufferSize)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)

	return func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("websocket write failed, dropping client", slog.String("error", err.Error()))
			return
		}
	}
}

// ServeWS upgrades r to a websocket connection and registers it with the
// hub, blocking until the client disconnects. It never expects any message
// from the client; the connection is purely a broadcast sink.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	unregister := h.Register(conn)
	defer unregister()
	defer conn.Close()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Notify broadcasts event to every connected client, dropping it for any
// client whose send buffer is full rather than blocking the caller.
func (h *Hub) Notify(event Event) {
	msg := toWireMessage(event)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("websocket client send buffer full, dropping event")
		}
	}
}

var _ Observer = (*Hub)(nil)
