package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/utility-sim/internal/engine"
	"github.com/talgya/utility-sim/internal/world"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TickMessage is the JSON frame pushed to stream clients after every tick.
type TickMessage struct {
	Tick          uint64          `json:"tick"`
	DeltaTime     float64         `json:"dt"`
	Decisions     []TickDecision  `json:"decisions"`
	CustomActions []CustomMessage `json:"custom_actions,omitempty"`
}

// TickDecision is one agent's outcome in a tick.
type TickDecision struct {
	Agent    string     `json:"agent"`
	Position world.Vec2 `json:"position"`
	Behavior string     `json:"behavior,omitempty"`
	Action   string     `json:"action,omitempty"`
	Target   string     `json:"target,omitempty"`
	Score    float64    `json:"score"`
	Stalled  bool       `json:"stalled,omitempty"`
}

// CustomMessage is a talk or custom action for external consumers.
type CustomMessage struct {
	Agent    string `json:"agent"`
	Behavior string `json:"behavior"`
	Action   string `json:"action"`
	Target   string `json:"target,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

// NewTickMessage flattens a tick report for the wire.
func NewTickMessage(r engine.TickReport) TickMessage {
	msg := TickMessage{
		Tick:      r.Tick,
		DeltaTime: r.DeltaTime,
		Decisions: make([]TickDecision, 0, len(r.Order)),
	}
	for _, a := range r.Order {
		d := TickDecision{Agent: a.Name(), Position: a.Pos}
		h := r.Decisions[a]
		if h == nil || h.Winner == nil {
			d.Stalled = true
		} else {
			d.Behavior = h.Winner.Behavior.Name
			d.Action = h.Winner.Behavior.Action.String()
			if h.Winner.Target != nil {
				d.Target = h.Winner.Target.Name()
			}
			d.Score = h.Winner.FinalScore()
		}
		msg.Decisions = append(msg.Decisions, d)
	}
	for _, ctx := range r.CustomActions {
		cm := CustomMessage{
			Agent:    ctx.Agent.Name(),
			Behavior: ctx.Behavior.Name,
			Action:   ctx.Behavior.Action.String(),
			Payload:  ctx.Behavior.Payload,
		}
		if ctx.Target != nil {
			cm.Target = ctx.Target.Name()
		}
		msg.CustomActions = append(msg.CustomActions, cm)
	}
	return msg
}

// client is one stream subscriber.
type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans tick messages out to websocket clients. Slow clients drop frames
// rather than stall the simulation.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]*client
	nextID  uint64
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[uint64]*client)}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Observe is a tick observer: it encodes the report and broadcasts it.
func (h *Hub) Observe(r engine.TickReport) {
	if h.Len() == 0 {
		return
	}
	data, err := json.Marshal(NewTickMessage(r))
	if err != nil {
		slog.Error("failed to encode tick", "tick", r.Tick, "error", err)
		return
	}
	h.Broadcast(data)
}

// Broadcast sends a frame to every client.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- message:
		default:
			// Drop if buffer full
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.nextID++
	c := &client{id: h.nextID, conn: conn, send: make(chan []byte, sendBuffer), hub: h}
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	slog.Info("stream client connected", "client", c.id, "total", total)

	go c.readPump()
	go c.writePump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	slog.Info("stream client disconnected", "client", c.id, "total", len(h.clients))
}

// readPump discards client frames; it exists to process pongs and notice
// disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("stream read error", "client", c.id, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
